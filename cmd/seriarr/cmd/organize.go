package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

var (
	organizeRoot   string
	organizeTarget string
	organizeDryRun bool
	organizeReport string
)

var organizeCmd = &cobra.Command{
	Use:   "organize",
	Short: "Scan, group, enrich, and move the library into the target layout",
	RunE:  runOrganize,
}

func init() {
	organizeCmd.Flags().StringVar(&organizeRoot, "root", "", "library root to scan (overrides config)")
	organizeCmd.Flags().StringVar(&organizeTarget, "target", "", "target directory (overrides config)")
	organizeCmd.Flags().BoolVar(&organizeDryRun, "dry-run", false, "plan moves without touching files")
	organizeCmd.Flags().StringVar(&organizeReport, "report", "", "write a YAML report to this path")
	rootCmd.AddCommand(organizeCmd)
}

func runOrganize(cmd *cobra.Command, args []string) error {
	if organizeRoot != "" {
		cfg.Library.Root = organizeRoot
	}
	if organizeTarget != "" {
		cfg.Library.TargetDir = organizeTarget
	}
	if organizeDryRun {
		cfg.Library.DryRun = true
	}
	if cfg.Library.Root == "" {
		return fmt.Errorf("no library root configured; set library.root or pass --root")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc, cleanup, err := newLibraryService()
	if err != nil {
		return err
	}
	defer cleanup()

	report, err := svc.Organize(ctx)
	if err != nil {
		return err
	}

	verb := "organized"
	if report.DryRun {
		verb = "planned"
	}
	fmt.Printf("Run %s: %s %d groups from %d scanned files\n",
		report.RunID, verb, len(report.Groups), report.Scanned)
	for _, s := range report.Stages {
		status := "ok"
		if !s.Success {
			status = "FAILED"
		}
		fmt.Printf("  %-28s %-6s total %3d  failed %3d  %s\n",
			s.Stage, status, s.Total, s.Failed, s.Duration.Round(time.Millisecond))
	}

	if err := exportReport(report, organizeReport); err != nil {
		return err
	}
	if !report.Success() {
		return fmt.Errorf("run finished with failed stages")
	}
	return nil
}
