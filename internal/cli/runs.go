package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/assayimport/internal/core"
)

func newRunsCmd(root *rootOptions) *cobra.Command {
	var (
		limit  int
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recent import runs",
		Long: `List the import run history, newest first.

Examples:
  assayimport runs
  assayimport runs --limit 5 --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if limit <= 0 {
				return fmt.Errorf("%w: --limit must be positive", core.ErrUsage)
			}
			cfg, err := root.loadConfig()
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			s, err := openStore(ctx, cfg)
			if err != nil {
				return err
			}
			defer s.Close()

			runs, err := s.ListRuns(ctx, limit)
			if err != nil {
				return fmt.Errorf("list runs: %w", err)
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(runs)
			}
			printRuns(cmd.OutOrStdout(), runs)
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of runs to show")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output in JSON format")
	return cmd
}

func printRuns(out io.Writer, runs []core.ImportRun) {
	if len(runs) == 0 {
		fmt.Fprintln(out, "No import runs recorded.")
		return
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "STARTED\tTYPE\tSOURCE\tRECORDS\tCREATED\tUPDATED\tFAILED\tSTATUS")
	for _, r := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%d\t%d\t%s\n",
			r.StartedAt.Local().Format(time.DateTime),
			r.EntityType,
			r.Source,
			r.Records,
			r.Created,
			r.Updated,
			r.Failed,
			runStatus(r),
		)
	}
	w.Flush()
}

func runStatus(r core.ImportRun) string {
	switch {
	case r.Error != "":
		msg := r.Error
		if len(msg) > 40 {
			msg = msg[:37] + "..."
		}
		return "aborted: " + strings.ReplaceAll(msg, "\t", " ")
	case r.Failed > 0:
		return "partial"
	default:
		return "ok"
	}
}
