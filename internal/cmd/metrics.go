package cmd

import (
	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/okr/internal/metrics"
)

func (c *cli) newMetricsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "metrics",
		Short: "Print client metrics in the Prometheus text format",
		Long: `Print the metrics collected while booting this invocation: session
transitions, cache sizes and API calls. Use 'okr notifications watch --listen'
to scrape a long-running client.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			// Let rehydration settle so the session metrics are final.
			if err := c.app.Session.Wait(cmd.Context()); err != nil {
				return err
			}
			return metrics.WriteText(cmd.OutOrStdout(), c.app.Registry)
		},
	}
}
