// ABOUTME: CLI subcommands around the core: enqueue, worker start/stop/run,
// ABOUTME: status, list, logs, dlq, config. Output formatting only, no core logic.
package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/scarson/queuectl/internal/config"
	"github.com/scarson/queuectl/internal/executor"
	"github.com/scarson/queuectl/internal/store"
	"github.com/scarson/queuectl/internal/supervisor"
)

// ── enqueue ───────────────────────────────────────────────────────────────────

func enqueueCmd() *cobra.Command {
	return &cobra.Command{
		Use:   `enqueue '{"id":"job1","command":"echo hello","max_retries":3}'`,
		Short: "Submit a job as a JSON payload",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, st, err := setup()
			if err != nil {
				return err
			}
			defer st.Close()

			var params store.EnqueueParams
			if err := json.Unmarshal([]byte(args[0]), &params); err != nil {
				return fmt.Errorf("%w: %v", store.ErrInvalidInput, err)
			}
			job, err := st.EnqueueJob(cmd.Context(), params)
			if err != nil {
				return err
			}
			fmt.Printf("Enqueued job %s\n", job.ID)
			return nil
		},
	}
}

// ── worker ────────────────────────────────────────────────────────────────────

func workerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Start, stop, or run worker processes",
	}
	cmd.AddCommand(workerStartCmd(), workerStopCmd(), workerRunCmd())
	return cmd
}

func workerStartCmd() *cobra.Command {
	var count int
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start N background worker processes",
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
				return err
			}
			sup := supervisor.New(supervisor.NewFileRegistry(cfg.PIDPath()))
			pids, err := sup.Start(count)
			for _, pid := range pids {
				fmt.Printf("Started worker pid=%d\n", pid)
			}
			return err
		},
	}
	cmd.Flags().IntVar(&count, "count", 1, "number of workers to start")
	return cmd
}

func workerStopCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Signal all registered workers to shut down gracefully",
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			sup := supervisor.New(supervisor.NewFileRegistry(cfg.PIDPath()))
			n, err := sup.Stop()
			if err != nil {
				return err
			}
			fmt.Printf("Signalled %d worker(s) for termination\n", n)
			return nil
		},
	}
}

func workerRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run a single worker loop in the foreground",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, st, err := setup()
			if err != nil {
				return err
			}
			defer st.Close()

			w, err := newWorker(cfg, st)
			if err != nil {
				return err
			}

			// SIGTERM/SIGINT request a graceful stop: the loop finishes the
			// in-flight command, persists its outcome, then exits.
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			w.Run(ctx)
			return nil
		},
	}
}

// ── status / list / logs ──────────────────────────────────────────────────────

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show job-state counts and live worker PIDs",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, st, err := setup()
			if err != nil {
				return err
			}
			defer st.Close()

			stats, err := st.Stats(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Println("Job states:")
			for _, state := range store.States {
				fmt.Printf("  %-10s : %d\n", state, stats[state])
			}

			sup := supervisor.New(supervisor.NewFileRegistry(cfg.PIDPath()))
			pids, err := sup.Running()
			if err != nil {
				return err
			}
			fmt.Printf("Active worker pids: %v\n", pids)
			return nil
		},
	}
}

func listCmd() *cobra.Command {
	var state string
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List jobs, optionally filtered by state",
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, st, err := setup()
			if err != nil {
				return err
			}
			defer st.Close()

			filter := store.State(state)
			if filter != "" && !filter.Valid() {
				return fmt.Errorf("%w: unknown state %q", store.ErrInvalidInput, state)
			}
			jobs, err := st.ListJobs(cmd.Context(), filter, limit)
			if err != nil {
				return err
			}
			printJobs(jobs)
			return nil
		},
	}
	cmd.Flags().StringVar(&state, "state", "", "filter by state (pending, processing, completed, dead)")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum rows to print (0 = all)")
	return cmd
}

func printJobs(jobs []*store.Job) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTATE\tATTEMPTS\tPRIORITY\tNEXT RUN\tCOMMAND")
	for _, j := range jobs {
		nextRun := "-"
		if j.State == store.StatePending && j.NextRun > 0 {
			nextRun = time.Unix(j.NextRun, 0).UTC().Format(time.RFC3339)
		}
		fmt.Fprintf(w, "%s\t%s\t%d/%d\t%d\t%s\t%q\n",
			j.ID, j.State, j.Attempts, j.MaxRetries, j.Priority, nextRun, j.Command)
	}
	w.Flush()
}

func logsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logs <job-id>",
		Short: "Print a job's captured stdout/stderr",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			sink, err := executor.NewFileSink(cfg.LogDir())
			if err != nil {
				return err
			}
			data, err := os.ReadFile(sink.Path(args[0]))
			if errors.Is(err, os.ErrNotExist) {
				fmt.Printf("No logs for job %s\n", args[0])
				return nil
			}
			if err != nil {
				return err
			}
			os.Stdout.Write(data)
			return nil
		},
	}
}

// ── dlq ───────────────────────────────────────────────────────────────────────

func dlqCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dlq",
		Short: "Dead-letter queue management",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List jobs in the dead-letter queue",
			RunE: func(cmd *cobra.Command, _ []string) error {
				_, st, err := setup()
				if err != nil {
					return err
				}
				defer st.Close()

				jobs, err := st.ListDead(cmd.Context())
				if err != nil {
					return err
				}
				if len(jobs) == 0 {
					fmt.Println("DLQ is empty.")
					return nil
				}
				printJobs(jobs)
				return nil
			},
		},
		&cobra.Command{
			Use:   "retry <job-id>",
			Short: "Move a dead job back to pending with attempts reset",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				_, st, err := setup()
				if err != nil {
					return err
				}
				defer st.Close()

				if err := st.RetryDead(cmd.Context(), args[0]); err != nil {
					return err
				}
				fmt.Printf("Moved %s back to pending\n", args[0])
				return nil
			},
		},
	)
	return cmd
}

// ── config ────────────────────────────────────────────────────────────────────

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Get or set queue settings stored in the database",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "get <key>",
			Short: "Print a config value",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				_, st, err := setup()
				if err != nil {
					return err
				}
				defer st.Close()

				v, err := st.GetValue(cmd.Context(), args[0], "")
				if err != nil {
					return err
				}
				fmt.Printf("%s = %s\n", args[0], v)
				return nil
			},
		},
		&cobra.Command{
			Use:   "set <key> <value>",
			Short: "Set a config value",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				_, st, err := setup()
				if err != nil {
					return err
				}
				defer st.Close()

				if err := st.SetValue(cmd.Context(), args[0], args[1]); err != nil {
					return err
				}
				fmt.Printf("Config %s set to %s\n", args[0], args[1])
				return nil
			},
		},
	)
	return cmd
}
