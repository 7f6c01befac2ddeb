// Package scheduler implements the scheduler command: run all update
// pipelines on a cron schedule until interrupted.
package scheduler

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/jonesrussell/campuscnr/cmd/common"
	"github.com/jonesrussell/campuscnr/cmd/update"
)

// Command returns the scheduler command.
func Command() *cobra.Command {
	return &cobra.Command{
		Use:   "scheduler",
		Short: "Run periodic updates on a cron schedule",
		Long: `Run all update pipelines on the configured cron schedule.
The scheduler runs continuously until interrupted with Ctrl+C.`,
		RunE: runScheduler,
	}
}

// runScheduler starts the cron loop and blocks until interrupted.
func runScheduler(cmd *cobra.Command, _ []string) error {
	deps, err := common.NewDeps()
	if err != nil {
		return err
	}
	defer deps.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	all := update.Selection{Calendar: true, Notice: true, ExamRoutine: true}

	// Runs are strictly sequential: cron skips a tick if the previous
	// run is still in flight.
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))

	_, err = c.AddFunc(deps.Config.Schedule, func() {
		deps.Logger.Info("scheduled update starting", "schedule", deps.Config.Schedule)
		if runErr := update.Run(ctx, deps, all); runErr != nil {
			deps.Logger.Error("scheduled update failed", "error", runErr)
		}
	})
	if err != nil {
		return fmt.Errorf("invalid schedule %q: %w", deps.Config.Schedule, err)
	}

	deps.Logger.Info("scheduler started", "schedule", deps.Config.Schedule)
	c.Start()

	<-ctx.Done()

	deps.Logger.Info("scheduler stopping")
	<-c.Stop().Done()

	return nil
}
