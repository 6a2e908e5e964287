package main

import (
	"fmt"
	"io"
	"net/netip"

	"github.com/cuemby/burrow/pkg/datastore"
	"github.com/cuemby/burrow/pkg/paths"
	"github.com/cuemby/burrow/pkg/types"
	"github.com/spf13/cobra"
)

// peerScope returns the hostname a peer command applies to, or "" for the
// global peers
func peerScope(cmd *cobra.Command, c *datastore.Client) (string, error) {
	scope, _ := cmd.Flags().GetString("scope")
	switch scope {
	case "global":
		return "", nil
	case "node":
		return c.Hostname(), nil
	default:
		return "", fmt.Errorf("invalid --scope %q: must be global or node", scope)
	}
}

func newBGPCmd() *cobra.Command {
	bgpCmd := &cobra.Command{
		Use:   "bgp",
		Short: "Manage BGP peering",
	}

	peerCmd := &cobra.Command{
		Use:   "peer",
		Short: "Manage BGP peers",
	}
	peerCmd.PersistentFlags().String("scope", "global", "Peer with every node (global) or this node only (node)")

	peerAddCmd := &cobra.Command{
		Use:   "add IP AS",
		Short: "Add a BGP peer",
		Args:  cobra.ExactArgs(2),
		RunE: withClient(func(cmd *cobra.Command, args []string, c *datastore.Client) error {
			hostname, err := peerScope(cmd, c)
			if err != nil {
				return err
			}
			peer, err := types.NewBGPPeer(args[0], args[1])
			if err != nil {
				return err
			}
			if err := c.AddBGPPeer(cmd.Context(), hostname, peer); err != nil {
				return err
			}
			done(cmd, "BGP peer %s added", peer.IP)
			return nil
		}),
	}

	peerRemoveCmd := &cobra.Command{
		Use:   "remove IP",
		Short: "Remove a BGP peer",
		Args:  cobra.ExactArgs(1),
		RunE: withClient(func(cmd *cobra.Command, args []string, c *datastore.Client) error {
			hostname, err := peerScope(cmd, c)
			if err != nil {
				return err
			}
			ip, err := netip.ParseAddr(args[0])
			if err != nil {
				return fmt.Errorf("invalid IP: %w", err)
			}
			if err := c.RemoveBGPPeer(cmd.Context(), hostname, ip); err != nil {
				return err
			}
			done(cmd, "BGP peer %s removed", ip)
			return nil
		}),
	}

	peerShowCmd := &cobra.Command{
		Use:   "show",
		Short: "List BGP peers",
		Args:  cobra.NoArgs,
		RunE: withClient(func(cmd *cobra.Command, args []string, c *datastore.Client) error {
			hostname, err := peerScope(cmd, c)
			if err != nil {
				return err
			}
			peers := []*types.BGPPeer{}
			for _, v := range paths.Versions {
				found, err := c.GetBGPPeers(cmd.Context(), v, hostname)
				if err != nil {
					return err
				}
				peers = append(peers, found...)
			}
			return render(cmd, peers, func(w io.Writer) {
				fmt.Fprintln(w, "PEER\tAS")
				for _, p := range peers {
					fmt.Fprintf(w, "%s\t%s\n", p.IP, p.ASNumber)
				}
			})
		}),
	}
	peerCmd.AddCommand(peerAddCmd, peerRemoveCmd, peerShowCmd)

	meshCmd := &cobra.Command{
		Use:       "node-mesh [on|off]",
		Short:     "Show or set the full node-to-node mesh",
		Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"on", "off"},
		RunE: withClient(func(cmd *cobra.Command, args []string, c *datastore.Client) error {
			if len(args) == 1 {
				enabled := args[0] == "on"
				if err := c.SetBGPNodeMesh(cmd.Context(), enabled); err != nil {
					return err
				}
				done(cmd, "Node mesh %s", args[0])
				return nil
			}
			enabled, err := c.GetBGPNodeMesh(cmd.Context())
			if err != nil {
				return err
			}
			return render(cmd, types.NodeMesh{Enabled: enabled}, func(w io.Writer) {
				state := "off"
				if enabled {
					state = "on"
				}
				fmt.Fprintln(w, state)
			})
		}),
	}

	defaultASCmd := &cobra.Command{
		Use:   "default-as [AS]",
		Short: "Show or set the default AS of nodes",
		Args:  cobra.MaximumNArgs(1),
		RunE: withClient(func(cmd *cobra.Command, args []string, c *datastore.Client) error {
			if len(args) == 1 {
				as, err := types.ParseASNumber(args[0])
				if err != nil {
					return err
				}
				if err := c.SetDefaultNodeAS(cmd.Context(), as); err != nil {
					return err
				}
				done(cmd, "Default AS set to %s", as)
				return nil
			}
			as, err := c.GetDefaultNodeAS(cmd.Context())
			if err != nil {
				return err
			}
			return render(cmd, as, func(w io.Writer) {
				fmt.Fprintln(w, as)
			})
		}),
	}

	bgpCmd.AddCommand(peerCmd, meshCmd, defaultASCmd)
	return bgpCmd
}
