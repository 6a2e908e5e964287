package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

const (
	formatTable = "table"
	formatJSON  = "json"
	formatYAML  = "yaml"
)

func validateFormat(format string) error {
	switch format {
	case formatTable, formatJSON, formatYAML:
		return nil
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}

// render writes v in the selected format. table draws the table form; when
// nil the JSON form is used for tables too.
func render(cmd *cobra.Command, v any, table func(w io.Writer)) error {
	format, _ := cmd.Flags().GetString("output")
	out := cmd.OutOrStdout()

	switch format {
	case formatYAML:
		// Go through JSON so values keep their stored field names
		data, err := json.Marshal(v)
		if err != nil {
			return err
		}
		var doc any
		if err := json.Unmarshal(data, &doc); err != nil {
			return err
		}
		enc := yaml.NewEncoder(out)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return err
		}
		return enc.Close()

	case formatTable:
		if table != nil {
			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			table(w)
			return w.Flush()
		}
		fallthrough

	default:
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
}

// done prints a confirmation line for table output only
func done(cmd *cobra.Command, format string, args ...any) {
	if f, _ := cmd.Flags().GetString("output"); f != formatTable {
		return
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✓ "+format+"\n", args...)
}
