package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/frahmantamala/leave-management/internal/scheduler"
	"github.com/spf13/cobra"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Start background workers",
	Long:  `Start background workers that run outside the HTTP server.`,
}

var schedulerWorkerCmd = &cobra.Command{
	Use:   "scheduler",
	Short: "Start the daily activation reconciliation",
	Long: `Deactivate employees whose validated leave starts today and reactivate those
whose leave has ended. Runs both jobs at their configured wall clock times, or a
single job immediately with --once.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return startSchedulerWorker(cmd.Context())
	},
}

var (
	schedulerJob  string
	schedulerOnce bool
)

func startSchedulerWorker(parent context.Context) error {
	config, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	deps, err := initializeDependencies(config)
	if err != nil {
		return fmt.Errorf("failed to initialize dependencies: %w", err)
	}
	defer deps.Close()
	log := deps.Logger

	runner, closeLocker, err := newSchedulerRunner(deps)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeLocker(); err != nil {
			log.Error("scheduler lock close error", "error", err)
		}
	}()

	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if schedulerOnce {
		jobs := scheduler.Jobs()
		if schedulerJob != "" {
			jobs = []string{schedulerJob}
		}
		for _, job := range jobs {
			report, err := runner.RunOnce(ctx, job)
			if errors.Is(err, scheduler.ErrJobLocked) {
				log.Info("job is running on another instance", "job", job)
				continue
			}
			if err != nil {
				return fmt.Errorf("job %s: %w", job, err)
			}
			fmt.Printf("%s %s: candidates=%d changed=%d kept=%d failed=%d\n",
				report.Job, report.Day.Format("2006-01-02"), report.Candidates, report.Changed, report.Kept, report.Failed)
		}
		return nil
	}

	if !config.Scheduler.Enabled {
		log.Warn("scheduler disabled by configuration, nothing to run")
		return nil
	}

	log.Info("scheduler worker is running. Press Ctrl+C to stop.",
		"timezone", config.Scheduler.Timezone,
		"deactivate_at", config.Scheduler.DeactivateAt,
		"reactivate_at", config.Scheduler.ReactivateAt,
		"lock_backend", config.Scheduler.LockBackend)
	runner.Start(ctx)

	<-ctx.Done()
	log.Info("received signal, shutting down scheduler worker")
	runner.Wait()
	log.Info("scheduler worker shutdown complete")
	return nil
}

func init() {
	schedulerWorkerCmd.Flags().StringVar(&schedulerJob, "job", "", "run only this job (deactivate or reactivate); requires --once")
	schedulerWorkerCmd.Flags().BoolVar(&schedulerOnce, "once", false, "run the job(s) for today and exit")

	workerCmd.AddCommand(schedulerWorkerCmd)
}
