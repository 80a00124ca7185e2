// Package cli implements the veclinectl command tree.
package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/kailas-cloud/vecline/internal/domain/retrieval/match"
	"github.com/kailas-cloud/vecline/internal/domain/retrieval/mode"
	"github.com/kailas-cloud/vecline/internal/domain/retrieval/request"
	healthuc "github.com/kailas-cloud/vecline/internal/usecase/health"
)

// Retriever runs one retrieval.
type Retriever interface {
	Retrieve(ctx context.Context, req *request.Request) (match.Result, error)
}

// Orderer applies the presentation mode.
type Orderer interface {
	Order(matches []match.Match, m mode.Mode) []match.Match
	DateFields() []string
}

// HealthChecker reports component health.
type HealthChecker interface {
	Check(ctx context.Context) healthuc.Report
}

// Pipeline is the opened retrieval stack a command runs against.
type Pipeline struct {
	Engine  Retriever
	Orderer Orderer
	Health  HealthChecker
	Limits  request.Limits
	Close   func() error
}

// Opener builds a Pipeline from a config file path; empty path means config/<ENV>.yaml.
type Opener func(ctx context.Context, configPath string) (*Pipeline, error)

// NewRootCmd builds the command tree. open may be nil for help-only use.
func NewRootCmd(version string, open Opener) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "veclinectl",
		Short: "Query a vecline retrieval pipeline from the command line",
		Long: `veclinectl runs one-shot semantic retrievals against the configured
embedding provider and vector index, using the same configuration as the server.

Examples:
  veclinectl query "treaty signed" -k 5
  veclinectl query "treaty signed" --mode chronological --json
  veclinectl health`,
		Version:       version,
		SilenceErrors: true,
		SilenceUsage:  true,
		Run: func(cmd *cobra.Command, _ []string) {
			_ = cmd.Help()
		},
	}

	rootCmd.PersistentFlags().String("config", "", "config file (default is config/$ENV.yaml)")
	rootCmd.PersistentFlags().Bool("json", false, "Output in JSON format")

	if open != nil {
		rootCmd.AddCommand(
			NewQueryCmd(open),
			NewHealthCmd(open),
		)
	}
	return rootCmd
}

func openFromFlags(cmd *cobra.Command, open Opener) (*Pipeline, error) {
	path, _ := cmd.Flags().GetString("config")
	return open(cmd.Context(), path)
}
