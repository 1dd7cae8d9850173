package main

import (
	"fmt"
	"io"
	"log/slog"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/example/internship-platform/internal/config"
	"github.com/example/internship-platform/internal/scheduler"
)

func newJobsCommand(opts *rootOptions) *cobra.Command {
	jobs := &cobra.Command{
		Use:   "jobs",
		Short: "Inspect and cancel scheduled jobs in the configured job store",
	}

	var jobType string
	list := &cobra.Command{
		Use:   "list",
		Short: "List scheduled jobs ordered by fire time",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			return withJobScheduler(cmd, cfg, func(s *scheduler.Scheduler) error {
				all, err := s.Jobs(cmd.Context())
				if err != nil {
					return err
				}
				return printJobs(cmd.OutOrStdout(), filterJobs(all, jobType))
			})
		},
	}
	list.Flags().StringVar(&jobType, "type", "", "only show jobs of this type (email, season_reminder)")

	cancel := &cobra.Command{
		Use:   "cancel <key>",
		Short: "Cancel the job stored under key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			return withJobScheduler(cmd, cfg, func(s *scheduler.Scheduler) error {
				if err := s.Cancel(cmd.Context(), args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "cancelled %s\n", args[0])
				return nil
			})
		},
	}

	jobs.AddCommand(list, cancel)
	return jobs
}

func withJobScheduler(cmd *cobra.Command, cfg config.Config, fn func(*scheduler.Scheduler) error) error {
	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: cfg.LogLevel}))
	if cfg.JobStore == config.JobStoreMemory {
		return fmt.Errorf("job store %q is private to the serving process; set INTERNSHIP_JOB_STORE to sqlite or redis", cfg.JobStore)
	}
	store, closer, err := openJobStore(cmd.Context(), cfg, time.Now, logger)
	if err != nil {
		return err
	}
	defer closer.Close()
	return fn(scheduler.New(store, scheduler.Config{}, uuid.NewString, time.Now, logger))
}

func filterJobs(jobs []scheduler.Job, jobType string) []scheduler.Job {
	if jobType == "" {
		return jobs
	}
	out := make([]scheduler.Job, 0, len(jobs))
	for _, job := range jobs {
		if job.Type == jobType {
			out = append(out, job)
		}
	}
	return out
}

func printJobs(w io.Writer, jobs []scheduler.Job) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "KEY\tTYPE\tFIRE AT\tRETRIES\tRECIPIENT")
	for _, job := range jobs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d/%d\t%s\n",
			job.Key,
			job.Type,
			job.FireAt.UTC().Format(time.RFC3339),
			job.RetryCount,
			job.MaxRetries,
			job.Payload[scheduler.PayloadEmail],
		)
	}
	return tw.Flush()
}
