package main

import (
	"fmt"
	"io"
	"net/netip"
	"sort"

	"github.com/cuemby/burrow/pkg/datastore"
	"github.com/cuemby/burrow/pkg/types"
	"github.com/spf13/cobra"
)

func newNodeCmd() *cobra.Command {
	nodeCmd := &cobra.Command{
		Use:   "node",
		Short: "Manage burrow hosts",
	}

	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Register this host",
		Long: `Write the global defaults if missing and register this host with its
BGP addresses.

Examples:
  burrowctl node init --ip 10.0.0.1
  burrowctl node init --ip 10.0.0.1 --ip6 fd00::1 --as 64512`,
		Args: cobra.NoArgs,
		RunE: withClient(runNodeInit),
	}
	initCmd.Flags().String("ip", "", "IPv4 address used for BGP (required)")
	initCmd.Flags().String("ip6", "", "IPv6 address used for BGP")
	initCmd.Flags().String("as", "", "AS number of this host (defaults to the global AS)")
	_ = initCmd.MarkFlagRequired("ip")

	removeCmd := &cobra.Command{
		Use:   "remove [HOSTNAME]",
		Short: "Remove a host and everything under it",
		Args:  cobra.MaximumNArgs(1),
		RunE: withClient(func(cmd *cobra.Command, args []string, c *datastore.Client) error {
			hostname := c.Hostname()
			if len(args) == 1 {
				hostname = args[0]
			}
			if err := c.RemoveHost(cmd.Context(), hostname); err != nil {
				return err
			}
			done(cmd, "Host %s removed", hostname)
			return nil
		}),
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List hosts with their BGP settings",
		Args:  cobra.NoArgs,
		RunE: withClient(func(cmd *cobra.Command, args []string, c *datastore.Client) error {
			hosts, err := c.GetHostsData(cmd.Context())
			if err != nil {
				return err
			}
			return render(cmd, hosts, func(w io.Writer) {
				names := make([]string, 0, len(hosts))
				for name := range hosts {
					names = append(names, name)
				}
				sort.Strings(names)

				fmt.Fprintln(w, "HOSTNAME\tIPV4\tIPV6\tAS\tPEERS")
				for _, name := range names {
					h := hosts[name]
					as := h.ASNumber
					if as == "" {
						as = "(global)"
					}
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\n", name, h.IPv4, h.IPv6, as, len(h.PeersV4)+len(h.PeersV6))
				}
			})
		}),
	}

	nodeCmd.AddCommand(initCmd, removeCmd, listCmd)
	return nodeCmd
}

func runNodeInit(cmd *cobra.Command, args []string, c *datastore.Client) error {
	ctx := cmd.Context()
	ip, _ := cmd.Flags().GetString("ip")
	ip6, _ := cmd.Flags().GetString("ip6")
	asFlag, _ := cmd.Flags().GetString("as")

	spec := datastore.HostSpec{Hostname: c.Hostname()}

	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return fmt.Errorf("invalid --ip: %w", err)
	}
	spec.IPv4 = addr

	if ip6 != "" {
		addr, err := netip.ParseAddr(ip6)
		if err != nil {
			return fmt.Errorf("invalid --ip6: %w", err)
		}
		spec.IPv6 = addr
	}

	if asFlag != "" {
		as, err := types.ParseASNumber(asFlag)
		if err != nil {
			return err
		}
		spec.AS = &as
	}

	if err := c.EnsureGlobalConfig(ctx); err != nil {
		return err
	}
	if err := c.CreateHost(ctx, spec); err != nil {
		return err
	}

	done(cmd, "Host %s initialized", spec.Hostname)
	return nil
}
