package main

import (
	"context"
	"fmt"
	"io"
	"net/netip"
	"strings"

	"github.com/cuemby/burrow/pkg/datastore"
	"github.com/cuemby/burrow/pkg/network"
	"github.com/cuemby/burrow/pkg/paths"
	"github.com/cuemby/burrow/pkg/types"
	"github.com/spf13/cobra"
)

type endpointView struct {
	Hostname       string          `json:"hostname"`
	OrchestratorID string          `json:"orchestrator_id"`
	WorkloadID     string          `json:"workload_id"`
	EndpointID     string          `json:"endpoint_id"`
	Endpoint       *types.Endpoint `json:"endpoint"`
}

func renderEndpoints(cmd *cobra.Command, endpoints []*datastore.VersionedEndpoint) error {
	views := make([]endpointView, 0, len(endpoints))
	for _, vep := range endpoints {
		ep := vep.Endpoint
		views = append(views, endpointView{
			Hostname:       ep.Hostname,
			OrchestratorID: ep.OrchestratorID,
			WorkloadID:     ep.WorkloadID,
			EndpointID:     ep.EndpointID,
			Endpoint:       ep,
		})
	}
	return render(cmd, views, func(w io.Writer) {
		fmt.Fprintln(w, "HOSTNAME\tORCHESTRATOR\tWORKLOAD\tENDPOINT\tINTERFACE\tSTATE\tMAC\tNETS\tPROFILES")
		for _, v := range views {
			ep := v.Endpoint
			var nets []string
			for _, n := range append(append([]types.Net{}, ep.IPv4Nets...), ep.IPv6Nets...) {
				nets = append(nets, n.String())
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
				v.Hostname, v.OrchestratorID, v.WorkloadID, v.EndpointID,
				ep.Name, ep.State, ep.MAC, strings.Join(nets, ","), strings.Join(ep.ProfileIDs, ","))
		}
	})
}

// endpointFilter builds a filter from the --node, --orchestrator and
// --workload flags plus an optional endpoint id
func endpointFilter(cmd *cobra.Command, endpointID string) paths.EndpointFilter {
	host, _ := cmd.Flags().GetString("node")
	orch, _ := cmd.Flags().GetString("orchestrator")
	workload, _ := cmd.Flags().GetString("workload")
	return paths.EndpointFilter{
		Hostname:       host,
		OrchestratorID: orch,
		WorkloadID:     workload,
		EndpointID:     endpointID,
	}
}

func addFilterFlags(cmd *cobra.Command) {
	cmd.Flags().String("node", "", "Only endpoints on this host")
	cmd.Flags().String("orchestrator", "", "Only endpoints of this orchestrator")
	cmd.Flags().String("workload", "", "Only endpoints of this workload")
}

func newEndpointCmd() *cobra.Command {
	endpointCmd := &cobra.Command{
		Use:   "endpoint",
		Short: "Manage container endpoints",
	}

	showCmd := &cobra.Command{
		Use:   "show [ENDPOINT_ID]",
		Short: "List endpoints",
		Args:  cobra.MaximumNArgs(1),
		RunE: withClient(func(cmd *cobra.Command, args []string, c *datastore.Client) error {
			id := ""
			if len(args) == 1 {
				id = args[0]
			}
			endpoints, err := c.GetEndpoints(cmd.Context(), endpointFilter(cmd, id))
			if err != nil {
				return err
			}
			return renderEndpoints(cmd, endpoints)
		}),
	}
	addFilterFlags(showCmd)

	addCmd := &cobra.Command{
		Use:   "add",
		Short: "Create an endpoint on this host",
		Long: `Create an endpoint for a workload on this host.

Examples:
  burrowctl endpoint add --orchestrator docker --workload web-1 --ip 10.0.0.2`,
		Args: cobra.NoArgs,
		RunE: withClient(func(cmd *cobra.Command, args []string, c *datastore.Client) error {
			orch, _ := cmd.Flags().GetString("orchestrator")
			workload, _ := cmd.Flags().GetString("workload")
			ips, _ := cmd.Flags().GetStringSlice("ip")
			mac, _ := cmd.Flags().GetString("mac")

			addrs := make([]netip.Addr, 0, len(ips))
			for _, ip := range ips {
				addr, err := netip.ParseAddr(ip)
				if err != nil {
					return fmt.Errorf("invalid --ip %q: %w", ip, err)
				}
				addrs = append(addrs, addr)
			}

			vep, err := c.CreateEndpoint(cmd.Context(), c.Hostname(), orch, workload, addrs, mac)
			if err != nil {
				return err
			}
			return renderEndpoints(cmd, []*datastore.VersionedEndpoint{vep})
		}),
	}
	addCmd.Flags().String("orchestrator", "", "Orchestrator id (required)")
	addCmd.Flags().String("workload", "", "Workload id (required)")
	addCmd.Flags().StringSlice("ip", nil, "Address of the endpoint, repeatable")
	addCmd.Flags().String("mac", "", "MAC address of the endpoint")
	_ = addCmd.MarkFlagRequired("orchestrator")
	_ = addCmd.MarkFlagRequired("workload")

	removeCmd := &cobra.Command{
		Use:   "remove ENDPOINT_ID",
		Short: "Remove an endpoint",
		Args:  cobra.ExactArgs(1),
		RunE: withClient(func(cmd *cobra.Command, args []string, c *datastore.Client) error {
			ctx := cmd.Context()
			vep, err := c.GetEndpoint(ctx, endpointFilter(cmd, args[0]))
			if err != nil {
				return err
			}
			if err := c.RemoveEndpoint(ctx, vep.Endpoint.EndpointKey); err != nil {
				return err
			}
			done(cmd, "Endpoint %s removed", args[0])
			return nil
		}),
	}
	addFilterFlags(removeCmd)

	attachCmd := &cobra.Command{
		Use:   "attach ENDPOINT_ID",
		Short: "Wire an endpoint into a container network namespace",
		Long: `Create the veth pair of an endpoint, move one end into the network
namespace of a process, and record the resulting MAC address.

Examples:
  burrowctl endpoint attach 0a1b2c3d --pid 4242
  burrowctl endpoint attach 0a1b2c3d --netns /var/run/netns/web --interface eth1`,
		Args: cobra.ExactArgs(1),
		RunE: withClient(runEndpointAttach),
	}
	addFilterFlags(attachCmd)
	attachCmd.Flags().Int("pid", 0, "Process whose network namespace to use")
	attachCmd.Flags().String("netns", "", "Path of the network namespace to use")
	attachCmd.Flags().String("interface", "eth0", "Interface name inside the namespace")

	profileCmd := &cobra.Command{
		Use:   "profile",
		Short: "Manage the profiles of an endpoint",
	}
	profileCmd.AddCommand(
		newMembershipCmd("append", "Add profiles to an endpoint", (*datastore.Client).AppendProfilesToEndpoint),
		newMembershipCmd("set", "Replace the profiles of an endpoint", (*datastore.Client).SetProfilesOnEndpoint),
		newMembershipCmd("remove", "Remove profiles from an endpoint", (*datastore.Client).RemoveProfilesFromEndpoint),
	)

	endpointCmd.AddCommand(showCmd, addCmd, removeCmd, attachCmd, profileCmd)
	return endpointCmd
}

type membershipFunc func(c *datastore.Client, ctx context.Context, filter paths.EndpointFilter, ids ...string) (*datastore.VersionedEndpoint, error)

func newMembershipCmd(use, short string, fn membershipFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   use + " ENDPOINT_ID [PROFILE...]",
		Short: short,
		Args:  cobra.MinimumNArgs(1),
		RunE: withClient(func(cmd *cobra.Command, args []string, c *datastore.Client) error {
			vep, err := fn(c, cmd.Context(), endpointFilter(cmd, args[0]), args[1:]...)
			if err != nil {
				return err
			}
			return renderEndpoints(cmd, []*datastore.VersionedEndpoint{vep})
		}),
	}
	addFilterFlags(cmd)
	return cmd
}

func runEndpointAttach(cmd *cobra.Command, args []string, c *datastore.Client) error {
	ctx := cmd.Context()
	pid, _ := cmd.Flags().GetInt("pid")
	nsPath, _ := cmd.Flags().GetString("netns")
	ifName, _ := cmd.Flags().GetString("interface")

	var ns network.Namespace
	switch {
	case nsPath != "" && pid != 0:
		return fmt.Errorf("--pid and --netns are mutually exclusive")
	case nsPath != "":
		ns = network.Namespace{Path: nsPath}
	case pid > 0:
		ns = network.PidNamespace(pid)
	default:
		return fmt.Errorf("one of --pid or --netns is required")
	}

	vep, err := c.GetEndpoint(ctx, endpointFilter(cmd, args[0]))
	if err != nil {
		return err
	}

	mac, err := network.NewProvisioner(network.NewNetlinkOps()).ProvisionVeth(vep.Endpoint, ns, ifName)
	if err != nil {
		return err
	}

	vep.Endpoint.MAC = mac
	if err := c.UpdateEndpoint(ctx, vep); err != nil {
		return err
	}
	return renderEndpoints(cmd, []*datastore.VersionedEndpoint{vep})
}
