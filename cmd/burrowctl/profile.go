package main

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/cuemby/burrow/pkg/datastore"
	"github.com/cuemby/burrow/pkg/types"
	"github.com/spf13/cobra"
)

type profileView struct {
	Name   string            `json:"name"`
	Tags   []string          `json:"tags"`
	Labels map[string]string `json:"labels,omitempty"`
	Rules  types.RuleSet     `json:"rules"`
}

func newProfileCmd() *cobra.Command {
	profileCmd := &cobra.Command{
		Use:   "profile",
		Short: "Manage security profiles",
	}

	addCmd := &cobra.Command{
		Use:   "add NAME",
		Short: "Create a profile with default rules",
		Long: `Create a profile. Its default rules allow traffic from members of the
profile and all outbound traffic.

Examples:
  burrowctl profile add web
  burrowctl profile add db --label tier=backend`,
		Args: cobra.ExactArgs(1),
		RunE: withClient(func(cmd *cobra.Command, args []string, c *datastore.Client) error {
			labelFlags, _ := cmd.Flags().GetStringToString("label")
			var labels map[string]string
			if len(labelFlags) > 0 {
				labels = labelFlags
			}
			if err := c.CreateProfile(cmd.Context(), args[0], nil, labels); err != nil {
				return err
			}
			done(cmd, "Profile %s created", args[0])
			return nil
		}),
	}
	addCmd.Flags().StringToString("label", nil, "Label to set on the profile (key=value)")

	removeCmd := &cobra.Command{
		Use:   "remove NAME",
		Short: "Remove a profile",
		Args:  cobra.ExactArgs(1),
		RunE: withClient(func(cmd *cobra.Command, args []string, c *datastore.Client) error {
			if err := c.RemoveProfile(cmd.Context(), args[0]); err != nil {
				return err
			}
			done(cmd, "Profile %s removed", args[0])
			return nil
		}),
	}

	showCmd := &cobra.Command{
		Use:   "show [NAME]",
		Short: "List profiles, or show one in detail",
		Args:  cobra.MaximumNArgs(1),
		RunE: withClient(func(cmd *cobra.Command, args []string, c *datastore.Client) error {
			ctx := cmd.Context()
			if len(args) == 0 {
				names, err := c.GetProfileNames(ctx)
				if err != nil {
					return err
				}
				return render(cmd, names, func(w io.Writer) {
					fmt.Fprintln(w, "NAME")
					for _, name := range names {
						fmt.Fprintln(w, name)
					}
				})
			}

			p, err := c.GetProfile(ctx, args[0])
			if err != nil {
				return err
			}
			view := profileView{Name: p.Name, Tags: p.Tags, Labels: p.Labels, Rules: p.Rules}
			return render(cmd, view, func(w io.Writer) {
				fmt.Fprintf(w, "Name:\t%s\n", p.Name)
				fmt.Fprintf(w, "Tags:\t%s\n", strings.Join(p.Tags, ", "))
				fmt.Fprintf(w, "Labels:\t%s\n", formatLabels(p.Labels))
				fmt.Fprintf(w, "Inbound rules:\t%d\n", len(p.Rules.InboundRules))
				fmt.Fprintf(w, "Outbound rules:\t%d\n", len(p.Rules.OutboundRules))
			})
		}),
	}

	membersCmd := &cobra.Command{
		Use:   "members NAME",
		Short: "List endpoints that are members of a profile",
		Args:  cobra.ExactArgs(1),
		RunE: withClient(func(cmd *cobra.Command, args []string, c *datastore.Client) error {
			members, err := c.GetProfileMembers(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return renderEndpoints(cmd, members)
		}),
	}

	profileCmd.AddCommand(addCmd, removeCmd, showCmd, membersCmd)
	return profileCmd
}

func formatLabels(labels map[string]string) string {
	pairs := make([]string, 0, len(labels))
	for k, v := range labels {
		pairs = append(pairs, k+"="+v)
	}
	sort.Strings(pairs)
	return strings.Join(pairs, ",")
}
