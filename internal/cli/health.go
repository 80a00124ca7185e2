package cli

import (
	"encoding/json"
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	healthuc "github.com/kailas-cloud/vecline/internal/usecase/health"
)

// NewHealthCmd checks the index and the embedding provider.
func NewHealthCmd(open Opener) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check index and embedding provider availability",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			asJSON, _ := cmd.Flags().GetBool("json")

			p, err := openFromFlags(cmd, open)
			if err != nil {
				return fmt.Errorf("open pipeline: %w", err)
			}
			defer func() { _ = p.Close() }()

			report := p.Health.Check(cmd.Context())

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				if err := enc.Encode(map[string]any{"status": report.Status, "checks": report.Checks}); err != nil {
					return fmt.Errorf("encode report: %w", err)
				}
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "status: %s\n", report.Status)
				names := make([]string, 0, len(report.Checks))
				for name := range report.Checks {
					names = append(names, name)
				}
				slices.Sort(names)
				for _, name := range names {
					fmt.Fprintf(cmd.OutOrStdout(), "  %-10s %s\n", name, report.Checks[name])
				}
			}

			if report.Status == healthuc.Unhealthy {
				return fmt.Errorf("index unavailable")
			}
			return nil
		},
	}
}
