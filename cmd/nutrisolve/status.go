package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newStatusCmd() *cobra.Command {
	var jobTimeout string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Report in-progress and timed-out exclusions without touching the queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, map[string]interface{}{"job_timeout": jobTimeout})
			if err != nil {
				return err
			}

			st, err := openStore(cmd, cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			ctx := cmd.Context()

			has, err := st.HasWork(ctx)
			if err != nil {
				return fmt.Errorf("status: has_work: %w", err)
			}
			fmt.Printf("has_work: %v\n", has)

			inProgress, err := st.ProcessStatus(ctx)
			if err != nil {
				return fmt.Errorf("status: process_status: %w", err)
			}
			fmt.Printf("in_progress: %d\n", len(inProgress))
			for _, rec := range inProgress {
				fmt.Printf("  exclusion=%v claimed_by=%s running=%s\n", rec.Exclusion, rec.ClaimedBy, rec.Duration.Round(time.Second))
			}

			stale, err := st.TimedOutWorkers(ctx, time.Now().Add(-cfg.JobTimeout))
			if err != nil {
				return fmt.Errorf("status: timed_out_workers: %w", err)
			}
			fmt.Printf("timed_out_workers: %v\n", stale)

			solutions, err := st.Solutions(ctx)
			if err != nil {
				return fmt.Errorf("status: solutions: %w", err)
			}
			fmt.Printf("solutions_found: %d\n", len(solutions))

			return nil
		},
	}

	cmd.Flags().StringVar(&jobTimeout, "job-timeout", "", "per-exclusion deadline used to classify stale workers")

	return cmd
}
