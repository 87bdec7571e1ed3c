package main

import (
	"encoding/json"
	"os"

	"github.com/Promptonauts/ballot/pkg/models"
	"github.com/spf13/cobra"
)

func newCycleCmd(flags *rootFlags) *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "cycle",
		Short: "Run a single voting cycle and print its summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(flags)
			if err != nil {
				return err
			}
			defer a.Close()

			var summary *models.CycleSummary
			if dryRun {
				summary, err = a.supervisor.TriggerDryRun(cmd.Context())
			} else {
				summary, err = a.supervisor.TriggerCycle(cmd.Context())
			}
			if err != nil {
				return err
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(summary)
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "analyze without submitting or recording votes")
	return cmd
}
