package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var (
	scanRoot   string
	scanReport string
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan the library and report the groups found, without moving files",
	RunE:  runScan,
}

func init() {
	scanCmd.Flags().StringVar(&scanRoot, "root", "", "library root to scan (overrides config)")
	scanCmd.Flags().StringVar(&scanReport, "report", "", "write a YAML report to this path")
	rootCmd.AddCommand(scanCmd)
}

func runScan(cmd *cobra.Command, args []string) error {
	if scanRoot != "" {
		cfg.Library.Root = scanRoot
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

	report, err := svc.Scan(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("Scanned %d files, found %d groups (%d ungrouped)\n",
		report.Scanned, len(report.Groups), len(report.Ungrouped))
	for _, g := range report.Groups {
		fmt.Printf("  %-40s season %2d  files %2d  similarity %.2f\n",
			g.Title, g.Season, g.Files, g.Similarity)
	}

	return exportReport(report, scanReport)
}
