package main

import (
	"github.com/spf13/cobra"

	"github.com/jonathan/plan-auditor/internal/pipeline"
)

func newRunCmd(a *app) *cobra.Command {
	var (
		fetchOpts fetchFlags
		flags     analysisFlags
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Fetch, analyze and export in one go",
		Long: `Runs the whole pipeline: retrieve the plan page, decode it, aggregate the
completion report, rank recommendations, annotate them with course ratings,
persist the run when a database is configured and write the export files.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			database, err := a.openStore(cmd, &flags)
			if err != nil {
				return err
			}
			defer closeDB(database)

			fetcher, source, err := a.newFetcher(cmd, &fetchOpts, database)
			if err != nil {
				return err
			}
			return a.runAnalysis(cmd, &flags, database, pipeline.RunOptions{
				Fetcher: fetcher,
				Source:  source,
			})
		},
	}
	fetchOpts.bind(cmd)
	flags.bind(cmd)
	return cmd
}
