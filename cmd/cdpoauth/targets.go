package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"cdpoauth/internal/browser"
)

var targetsCmd = &cobra.Command{
	Use:   "targets",
	Short: "List page targets of the DevTools endpoint",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, closer, err := setup()
		if err != nil {
			return err
		}
		defer closer.Close()

		targets, err := browser.New(cfg.Browser.DevToolsURL, cfg.Browser.ProcessTimeoutMS, log).ListTargets(cmd.Context())
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tTITLE\tURL")
		for _, t := range targets {
			fmt.Fprintf(w, "%s\t%s\t%s\n", t.ID, t.Title, t.URL)
		}
		return w.Flush()
	},
}
