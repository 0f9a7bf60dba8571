package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jonathan/plan-auditor/internal/fetch"
)

func newFetchCmd(a *app) *cobra.Command {
	var (
		output string
		flags  fetchFlags
	)
	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Download the training-plan page",
		Long: `Retrieves the 培养方案完成情况 page, either over HTTP with the cookies of an
existing learning-site login or through a headless Chrome login, and saves
the HTML for later analysis.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			database, err := a.openDB(ctx)
			if err != nil {
				return err
			}
			defer closeDB(database)

			fetcher, _, err := a.newFetcher(cmd, &flags, database)
			if err != nil {
				return err
			}
			res, err := fetcher.FetchPlan(ctx)
			if err != nil {
				return err
			}
			if !fetch.LooksLikePlan(res.HTML) {
				a.logger.Warn("page does not look like a plan page; the session may have expired", zap.Int("bytes", len(res.HTML)))
			}

			if dir := filepath.Dir(output); dir != "" {
				if err := os.MkdirAll(dir, 0755); err != nil {
					return fmt.Errorf("failed to create output directory: %w", err)
				}
			}
			if err := os.WriteFile(output, []byte(res.HTML), 0644); err != nil {
				return fmt.Errorf("failed to write plan page: %w", err)
			}

			suffix := ""
			if res.FromCache {
				suffix = fmt.Sprintf(" (cached %s)", res.FetchedAt.Format("2006-01-02 15:04"))
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved plan page (%d bytes) to %s%s\n", len(res.HTML), output, suffix) //nolint:errcheck
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "out", "o", "plan.html", "Where to save the page")
	flags.bind(cmd)
	return cmd
}
