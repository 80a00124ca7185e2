package cli

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/kailas-cloud/vecline/internal/domain"
	"github.com/kailas-cloud/vecline/internal/domain/retrieval/match"
	"github.com/kailas-cloud/vecline/internal/domain/retrieval/mode"
	"github.com/kailas-cloud/vecline/internal/domain/retrieval/request"
)

const titleWidth = 60

// NewQueryCmd runs a single retrieval and prints the matches.
func NewQueryCmd(open Opener) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "query [text]",
		Short: "Retrieve the nearest documents for a query",
		Long: `Embed the query, search the vector index and print the matches.
Without text the default vector is used and no provider call is made.`,
		Args: cobra.MaximumNArgs(1),
		RunE: makeQueryRunner(open),
	}

	cmd.Flags().IntP("top-k", "k", 0, "Number of matches (default from config)")
	cmd.Flags().StringP("mode", "m", string(mode.Relevance), "Ordering: relevance or chronological")
	return cmd
}

func makeQueryRunner(open Opener) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		topK, _ := cmd.Flags().GetInt("top-k")
		rawMode, _ := cmd.Flags().GetString("mode")
		asJSON, _ := cmd.Flags().GetBool("json")

		m, err := mode.Parse(rawMode)
		if err != nil {
			return err //nolint:wrapcheck // message is already user-facing
		}

		var query string
		if len(args) > 0 {
			query = args[0]
		}

		p, err := openFromFlags(cmd, open)
		if err != nil {
			return fmt.Errorf("open pipeline: %w", err)
		}
		defer func() { _ = p.Close() }()

		req, err := request.New(query, topK, m, p.Limits)
		if err != nil {
			return err //nolint:wrapcheck // carries its kind
		}

		res, err := p.Engine.Retrieve(cmd.Context(), &req)
		if err != nil {
			return fmt.Errorf("retrieve (%s): %w", domain.KindOf(err), err)
		}
		ordered := p.Orderer.Order(res.Matches, req.Mode())

		if asJSON {
			return outputMatchesJSON(cmd, ordered, req.Mode(), len(res.Anomalies))
		}
		return outputMatchesTable(cmd, ordered, p.Orderer.DateFields(), len(res.Anomalies))
	}
}

func outputMatchesJSON(cmd *cobra.Command, ms []match.Match, m mode.Mode, dropped int) error {
	items := make([]map[string]any, 0, len(ms))
	for i := range ms {
		items = append(items, map[string]any{
			"id":       ms[i].ID(),
			"score":    ms[i].Score(),
			"metadata": ms[i].Metadata(),
		})
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(map[string]any{ //nolint:wrapcheck // stdout
		"items":   items,
		"mode":    m,
		"total":   len(ms),
		"dropped": dropped,
	})
}

func outputMatchesTable(cmd *cobra.Command, ms []match.Match, dateFields []string, dropped int) error {
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SCORE\tID\tDATE\tTITLE")
	for i := range ms {
		date := firstField(ms[i], dateFields)
		title, _ := ms[i].StringField("title")
		fmt.Fprintf(tw, "%.4f\t%s\t%s\t%s\n", ms[i].Score(), ms[i].ID(), dash(date), dash(truncate(title, titleWidth)))
	}
	if err := tw.Flush(); err != nil {
		return fmt.Errorf("write table: %w", err)
	}
	if dropped > 0 {
		fmt.Fprintf(cmd.ErrOrStderr(), "%d malformed index entries dropped\n", dropped)
	}
	return nil
}

// firstField returns the first non-empty string among fields, in order.
func firstField(m match.Match, fields []string) string {
	for _, f := range fields {
		if v, _ := m.StringField(f); v != "" {
			return v
		}
	}
	return ""
}

func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
