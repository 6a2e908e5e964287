package main

import (
	"fmt"
	"io"
	"net/netip"
	"strings"

	"github.com/cuemby/burrow/pkg/datastore"
	"github.com/spf13/cobra"
)

type assignedOutput struct {
	IPv4 []netip.Addr `json:"ipv4"`
	IPv6 []netip.Addr `json:"ipv6"`
}

func joinAddrs(addrs []netip.Addr) string {
	s := make([]string, 0, len(addrs))
	for _, addr := range addrs {
		s = append(s, addr.String())
	}
	return strings.Join(s, ",")
}

func parseAddrs(args []string) ([]netip.Addr, error) {
	addrs := make([]netip.Addr, 0, len(args))
	for _, arg := range args {
		addr, err := netip.ParseAddr(arg)
		if err != nil {
			return nil, fmt.Errorf("invalid IP address: %w", err)
		}
		addrs = append(addrs, addr)
	}
	return addrs, nil
}

func optionalPrefix(cmd *cobra.Command, flag string) (netip.Prefix, error) {
	value, _ := cmd.Flags().GetString(flag)
	if value == "" {
		return netip.Prefix{}, nil
	}
	cidr, err := netip.ParsePrefix(value)
	if err != nil {
		return netip.Prefix{}, fmt.Errorf("invalid --%s: %w", flag, err)
	}
	return cidr, nil
}

func newIPAMCmd() *cobra.Command {
	ipamCmd := &cobra.Command{
		Use:   "ipam",
		Short: "Assign and release addresses from the IP pools",
	}

	assignCmd := &cobra.Command{
		Use:   "assign",
		Short: "Assign addresses",
		Long: `Assign addresses out of the configured IPAM pools. With --ip the given
address is assigned; otherwise --ipv4 and --ipv6 addresses are picked from
the blocks this host has affinity to.

Examples:
  burrowctl ipam assign --ipv4 1 --handle web-1
  burrowctl ipam assign --ip 192.168.0.10 --attr container=web-1`,
		Args: cobra.NoArgs,
		RunE: withClient(func(cmd *cobra.Command, args []string, c *datastore.Client) error {
			handle, _ := cmd.Flags().GetString("handle")
			attrs, _ := cmd.Flags().GetStringToString("attr")
			host, _ := cmd.Flags().GetString("host")

			if ip, _ := cmd.Flags().GetString("ip"); ip != "" {
				addr, err := netip.ParseAddr(ip)
				if err != nil {
					return fmt.Errorf("invalid IP address: %w", err)
				}
				err = c.AssignIP(cmd.Context(), datastore.AssignIPArgs{IP: addr, HandleID: handle, Attrs: attrs, Hostname: host})
				if err != nil {
					return err
				}
				done(cmd, "Address %s assigned", addr.Unmap())
				return nil
			}

			num4, _ := cmd.Flags().GetInt("ipv4")
			num6, _ := cmd.Flags().GetInt("ipv6")
			pool4, err := optionalPrefix(cmd, "ipv4-pool")
			if err != nil {
				return err
			}
			pool6, err := optionalPrefix(cmd, "ipv6-pool")
			if err != nil {
				return err
			}
			v4, v6, err := c.AutoAssign(cmd.Context(), datastore.AutoAssignArgs{
				Num4:     num4,
				Num6:     num6,
				HandleID: handle,
				Attrs:    attrs,
				Hostname: host,
				IPv4Pool: pool4,
				IPv6Pool: pool6,
			})
			if err != nil {
				return err
			}
			out := assignedOutput{IPv4: v4, IPv6: v6}
			if out.IPv4 == nil {
				out.IPv4 = []netip.Addr{}
			}
			if out.IPv6 == nil {
				out.IPv6 = []netip.Addr{}
			}
			return render(cmd, out, func(w io.Writer) {
				fmt.Fprintln(w, "IPV4\tIPV6")
				fmt.Fprintf(w, "%s\t%s\n", joinAddrs(v4), joinAddrs(v6))
			})
		}),
	}
	assignCmd.Flags().String("ip", "", "Assign this address")
	assignCmd.Flags().Int("ipv4", 0, "Number of IPv4 addresses to pick")
	assignCmd.Flags().Int("ipv6", 0, "Number of IPv6 addresses to pick")
	assignCmd.Flags().String("ipv4-pool", "", "Only pick IPv4 addresses from this pool")
	assignCmd.Flags().String("ipv6-pool", "", "Only pick IPv6 addresses from this pool")
	assignCmd.Flags().String("handle", "", "Handle to tag the addresses with")
	assignCmd.Flags().StringToString("attr", nil, "Attribute to store with the addresses (key=value)")
	assignCmd.Flags().String("host", "", "Host whose blocks are used (defaults to --hostname)")

	releaseCmd := &cobra.Command{
		Use:   "release [IP...]",
		Short: "Release addresses",
		RunE: withClient(func(cmd *cobra.Command, args []string, c *datastore.Client) error {
			if handle, _ := cmd.Flags().GetString("handle"); handle != "" {
				if len(args) > 0 {
					return fmt.Errorf("--handle and addresses are mutually exclusive")
				}
				if err := c.ReleaseByHandle(cmd.Context(), handle); err != nil {
					return err
				}
				done(cmd, "Handle %s released", handle)
				return nil
			}
			if len(args) == 0 {
				return fmt.Errorf("addresses or --handle required")
			}

			addrs, err := parseAddrs(args)
			if err != nil {
				return err
			}
			unallocated, err := c.ReleaseIPs(cmd.Context(), addrs)
			if err != nil {
				return err
			}
			if unallocated == nil {
				unallocated = []netip.Addr{}
			}
			return render(cmd, map[string][]netip.Addr{"unallocated": unallocated}, func(w io.Writer) {
				fmt.Fprintf(w, "Released %d of %d addresses\n", len(addrs)-len(unallocated), len(addrs))
				for _, addr := range unallocated {
					fmt.Fprintf(w, "%s was not assigned\n", addr)
				}
			})
		}),
	}
	releaseCmd.Flags().String("handle", "", "Release every address tagged with this handle")

	showCmd := &cobra.Command{
		Use:   "show [IP]",
		Short: "Show an assignment or the addresses of a handle",
		Args:  cobra.MaximumNArgs(1),
		RunE: withClient(func(cmd *cobra.Command, args []string, c *datastore.Client) error {
			handle, _ := cmd.Flags().GetString("handle")
			switch {
			case handle != "" && len(args) == 0:
				addrs, err := c.GetAssignmentsByHandle(cmd.Context(), handle)
				if err != nil {
					return err
				}
				if addrs == nil {
					addrs = []netip.Addr{}
				}
				return render(cmd, addrs, func(w io.Writer) {
					for _, addr := range addrs {
						fmt.Fprintln(w, addr)
					}
				})
			case handle == "" && len(args) == 1:
				addr, err := netip.ParseAddr(args[0])
				if err != nil {
					return fmt.Errorf("invalid IP address: %w", err)
				}
				attrs, err := c.GetAssignmentAttributes(cmd.Context(), addr)
				if err != nil {
					return err
				}
				return render(cmd, attrs, func(w io.Writer) {
					fmt.Fprintln(w, "IP\tHANDLE\tATTRIBUTES")
					fmt.Fprintf(w, "%s\t%s\t%s\n", addr.Unmap(), attrs.HandleID, formatLabels(attrs.Secondary))
				})
			default:
				return fmt.Errorf("exactly one of an address or --handle is required")
			}
		}),
	}
	showCmd.Flags().String("handle", "", "List the addresses tagged with this handle")

	ipamCmd.AddCommand(assignCmd, releaseCmd, showCmd, newAffinityCmd(), newIPAMConfigCmd())
	return ipamCmd
}

func newAffinityCmd() *cobra.Command {
	affinityCmd := &cobra.Command{
		Use:   "affinity",
		Short: "Manage which host owns which allocation blocks",
	}

	claimCmd := &cobra.Command{
		Use:   "claim CIDR",
		Short: "Claim the blocks of CIDR for this host",
		Args:  cobra.ExactArgs(1),
		RunE: withClient(func(cmd *cobra.Command, args []string, c *datastore.Client) error {
			cidr, err := netip.ParsePrefix(args[0])
			if err != nil {
				return fmt.Errorf("invalid CIDR: %w", err)
			}
			host, _ := cmd.Flags().GetString("host")
			claimed, failed, err := c.ClaimAffinity(cmd.Context(), cidr, host)
			if err != nil {
				return err
			}
			out := map[string][]netip.Prefix{"claimed": claimed, "claimed_by_other": failed}
			return render(cmd, out, func(w io.Writer) {
				fmt.Fprintln(w, "BLOCK\tRESULT")
				for _, block := range claimed {
					fmt.Fprintf(w, "%s\tclaimed\n", block)
				}
				for _, block := range failed {
					fmt.Fprintf(w, "%s\tclaimed by another host\n", block)
				}
			})
		}),
	}
	claimCmd.Flags().String("host", "", "Host to claim for (defaults to --hostname)")

	releaseCmd := &cobra.Command{
		Use:   "release CIDR",
		Short: "Release this host's blocks in CIDR",
		Args:  cobra.ExactArgs(1),
		RunE: withClient(func(cmd *cobra.Command, args []string, c *datastore.Client) error {
			cidr, err := netip.ParsePrefix(args[0])
			if err != nil {
				return fmt.Errorf("invalid CIDR: %w", err)
			}
			host, _ := cmd.Flags().GetString("host")
			res, err := c.ReleaseAffinity(cmd.Context(), cidr, host)
			if err != nil {
				return err
			}
			out := map[string][]netip.Prefix{
				"released":         res.Released,
				"not_claimed":      res.NotClaimed,
				"claimed_by_other": res.ClaimedByOther,
			}
			return render(cmd, out, func(w io.Writer) {
				fmt.Fprintln(w, "BLOCK\tRESULT")
				for _, block := range res.Released {
					fmt.Fprintf(w, "%s\treleased\n", block)
				}
				for _, block := range res.NotClaimed {
					fmt.Fprintf(w, "%s\tnot claimed\n", block)
				}
				for _, block := range res.ClaimedByOther {
					fmt.Fprintf(w, "%s\tclaimed by another host\n", block)
				}
			})
		}),
	}
	releaseCmd.Flags().String("host", "", "Host to release for (defaults to --hostname)")

	affinityCmd.AddCommand(claimCmd, releaseCmd)
	return affinityCmd
}

func newIPAMConfigCmd() *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Show or change the allocation settings",
		Long: `Show the allocation settings, or change them with the flags. Settings
cannot change while any addresses are assigned.`,
		Args: cobra.NoArgs,
		RunE: withClient(func(cmd *cobra.Command, args []string, c *datastore.Client) error {
			cfg, err := c.GetIPAMConfig(cmd.Context())
			if err != nil {
				return err
			}

			strictSet := cmd.Flags().Changed("strict-affinity")
			autoSet := cmd.Flags().Changed("auto-allocate-blocks")
			if strictSet || autoSet {
				if strictSet {
					cfg.StrictAffinity, _ = cmd.Flags().GetBool("strict-affinity")
				}
				if autoSet {
					cfg.AutoAllocateBlocks, _ = cmd.Flags().GetBool("auto-allocate-blocks")
				}
				if err := c.SetIPAMConfig(cmd.Context(), cfg); err != nil {
					return err
				}
			}
			return render(cmd, cfg, func(w io.Writer) {
				fmt.Fprintln(w, "STRICT-AFFINITY\tAUTO-ALLOCATE-BLOCKS")
				fmt.Fprintf(w, "%t\t%t\n", cfg.StrictAffinity, cfg.AutoAllocateBlocks)
			})
		}),
	}
	configCmd.Flags().Bool("strict-affinity", false, "Only assign from blocks the host owns")
	configCmd.Flags().Bool("auto-allocate-blocks", true, "Claim new blocks when the host's blocks are full")
	return configCmd
}
