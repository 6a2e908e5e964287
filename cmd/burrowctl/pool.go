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

func newPoolCmd() *cobra.Command {
	poolCmd := &cobra.Command{
		Use:   "pool",
		Short: "Manage IP address pools",
	}

	addCmd := &cobra.Command{
		Use:   "add CIDR",
		Short: "Add an IP pool",
		Long: `Add an IP pool, replacing any pool with the same CIDR.

Examples:
  burrowctl pool add 192.168.0.0/16 --ipip --nat-outgoing
  burrowctl pool add fd80:24e2:f998:72d6::/64`,
		Args: cobra.ExactArgs(1),
		RunE: withClient(func(cmd *cobra.Command, args []string, c *datastore.Client) error {
			cidr, err := netip.ParsePrefix(args[0])
			if err != nil {
				return fmt.Errorf("invalid CIDR: %w", err)
			}

			var opts []types.PoolOption
			if on, _ := cmd.Flags().GetBool("ipip"); on {
				opts = append(opts, types.WithIPIP())
			}
			if on, _ := cmd.Flags().GetBool("nat-outgoing"); on {
				opts = append(opts, types.WithMasquerade())
			}
			if on, _ := cmd.Flags().GetBool("no-ipam"); on {
				opts = append(opts, types.WithoutIPAM())
			}
			if on, _ := cmd.Flags().GetBool("disabled"); on {
				opts = append(opts, types.WithDisabled())
			}

			pool, err := types.NewIPPool(cidr, opts...)
			if err != nil {
				return err
			}
			if err := c.AddIPPool(cmd.Context(), pool); err != nil {
				return err
			}
			done(cmd, "Pool %s added", pool.CIDR)
			return nil
		}),
	}
	addCmd.Flags().Bool("ipip", false, "Encapsulate traffic to this pool with IP-in-IP")
	addCmd.Flags().Bool("nat-outgoing", false, "Masquerade traffic leaving this pool")
	addCmd.Flags().Bool("no-ipam", false, "Do not allocate addresses from this pool")
	addCmd.Flags().Bool("disabled", false, "Keep the pool but stop allocating from it")

	removeCmd := &cobra.Command{
		Use:   "remove CIDR",
		Short: "Remove an IP pool",
		Args:  cobra.ExactArgs(1),
		RunE: withClient(func(cmd *cobra.Command, args []string, c *datastore.Client) error {
			cidr, err := netip.ParsePrefix(args[0])
			if err != nil {
				return fmt.Errorf("invalid CIDR: %w", err)
			}
			if err := c.RemoveIPPool(cmd.Context(), cidr); err != nil {
				return err
			}
			done(cmd, "Pool %s removed", cidr.Masked())
			return nil
		}),
	}

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "List IP pools",
		Args:  cobra.NoArgs,
		RunE: withClient(func(cmd *cobra.Command, args []string, c *datastore.Client) error {
			only4, _ := cmd.Flags().GetBool("ipv4")
			only6, _ := cmd.Flags().GetBool("ipv6")
			versions := paths.Versions
			switch {
			case only4 && !only6:
				versions = []paths.IPVersion{paths.IPv4}
			case only6 && !only4:
				versions = []paths.IPVersion{paths.IPv6}
			}

			pools := []*types.IPPool{}
			for _, v := range versions {
				found, err := c.GetIPPools(cmd.Context(), v, datastore.PoolFilter{})
				if err != nil {
					return err
				}
				pools = append(pools, found...)
			}

			return render(cmd, pools, func(w io.Writer) {
				fmt.Fprintln(w, "CIDR\tIPIP\tNAT-OUTGOING\tIPAM\tDISABLED")
				for _, p := range pools {
					fmt.Fprintf(w, "%s\t%t\t%t\t%t\t%t\n", p.CIDR, p.IPIP, p.Masquerade, p.IPAM, p.Disabled)
				}
			})
		}),
	}
	showCmd.Flags().Bool("ipv4", false, "Only IPv4 pools")
	showCmd.Flags().Bool("ipv6", false, "Only IPv6 pools")

	poolCmd.AddCommand(addCmd, removeCmd, showCmd)
	return poolCmd
}
