package main

import (
	"fmt"

	"github.com/cuemby/burrow/pkg/datastore"
	"github.com/spf13/cobra"
)

func newDatastoreCmd() *cobra.Command {
	datastoreCmd := &cobra.Command{
		Use:   "datastore",
		Short: "Maintain the datastore",
	}

	resetCmd := &cobra.Command{
		Use:   "reset",
		Short: "Delete all burrow data",
		Long: `Delete every key under the burrow root, including hosts, endpoints,
profiles, pools and global config. Requires --yes.`,
		Args: cobra.NoArgs,
		RunE: withClient(func(cmd *cobra.Command, args []string, c *datastore.Client) error {
			if yes, _ := cmd.Flags().GetBool("yes"); !yes {
				return fmt.Errorf("refusing to delete all data without --yes")
			}
			if err := c.RemoveAllData(cmd.Context()); err != nil {
				return err
			}
			done(cmd, "All data removed")
			return nil
		}),
	}
	resetCmd.Flags().Bool("yes", false, "Confirm deletion of all data")

	datastoreCmd.AddCommand(resetCmd)
	return datastoreCmd
}
