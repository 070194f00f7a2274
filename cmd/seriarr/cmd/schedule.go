package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/seriarr/seriarr/internal/rescan"
)

var scheduleCron string

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Run organize on a cron schedule until interrupted",
	RunE:  runSchedule,
}

func init() {
	scheduleCmd.Flags().StringVar(&scheduleCron, "cron", "", "cron expression (overrides config)")
	rootCmd.AddCommand(scheduleCmd)
}

func runSchedule(cmd *cobra.Command, args []string) error {
	if scheduleCron != "" {
		cfg.Schedule.Cron = scheduleCron
	}
	if cfg.Library.Root == "" {
		return fmt.Errorf("no library root configured; set library.root")
	}
	if err := rescan.ValidateCron(cfg.Schedule.Cron); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc, cleanup, err := newLibraryService()
	if err != nil {
		return err
	}
	defer cleanup()

	sched, err := rescan.New(cfg.Schedule, func(ctx context.Context) error {
		report, err := svc.Organize(ctx)
		if err != nil {
			return err
		}
		if !report.Success() {
			return fmt.Errorf("run %s finished with failed stages", report.RunID)
		}
		return nil
	}, logger)
	if err != nil {
		return err
	}

	if err := sched.Start(ctx); err != nil {
		return err
	}
	defer sched.Stop()

	<-ctx.Done()
	return nil
}
