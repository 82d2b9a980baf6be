package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/user/courier/internal/engine"
)

var channelsJSON bool

func init() {
	channelsCmd.Flags().BoolVar(&channelsJSON, "json", false, "print as JSON")
	rootCmd.AddCommand(channelsCmd)
}

var channelsCmd = &cobra.Command{
	Use:   "channels",
	Short: "List the configured channels in fallback order",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		infos := engine.Describe(cfg)

		out := cmd.OutOrStdout()
		if channelsJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(infos)
		}

		w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "#\tLABEL\tTYPE\tDELIVERY\tTARGET")
		for i, info := range infos {
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", i+1, info.Label, info.Type, info.Delivery, info.Target)
		}
		return w.Flush()
	},
}
