// Package cmd implements the seriarr command line interface.
package cmd

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/seriarr/seriarr/internal/config"
	"github.com/seriarr/seriarr/internal/observability"
)

var (
	cfgFile   string
	logLevel  string
	logFormat string

	cfg    *config.Config
	logger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "seriarr",
	Short: "Organize a TV library into a canonical series layout",
	Long: `Seriarr scans a media library, groups episode files by series using
filename similarity, enriches the groups with series metadata, and moves the
files into a "Series/Season NN" layout.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: initConfig,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&cfgFile, "config", "c", "", "path to config file")
	flags.StringVar(&logLevel, "log-level", "", "log level override (debug, info, warn, error)")
	flags.StringVar(&logFormat, "log-format", "", "log format override (json, text)")
}

func initConfig(cmd *cobra.Command, args []string) error {
	var err error
	cfg, err = config.Load(cfgFile)
	if err != nil {
		return err
	}

	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if logFormat != "" {
		cfg.Logging.Format = logFormat
	}

	logger = observability.NewLogger(cfg.Logging)
	observability.SetDefault(logger)
	return nil
}
