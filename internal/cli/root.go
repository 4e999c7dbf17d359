package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"patient-monitor/internal/app"
	"patient-monitor/internal/config"
	"patient-monitor/internal/logging"
)

var (
	cfgFile   string
	logLevel  string
	bedLabel  string
	appHandle *app.App
	logCloser io.Closer
)

var rootCmd = &cobra.Command{
	Use:           "patient-monitor",
	Short:         "Simulated bedside patient monitor with rhythm and vital-sign alarms",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if appHandle != nil {
			return nil
		}

		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		if logLevel != "" {
			cfg.Logging.Level = logLevel
		}
		if bedLabel != "" {
			cfg.App.Bed = bedLabel
		}

		logger, closer, err := logging.Open(cfg.Logging, cfg.App.Bed)
		if err != nil {
			return err
		}
		logCloser = closer
		appHandle = app.NewApp(cfg, logger)
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if logCloser == nil {
			return nil
		}
		return logCloser.Close()
	},
}

// Execute runs the command line and exits non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "patient-monitor: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "YAML configuration file (PATIENTMONITOR_* environment variables override it)")
	flags.StringVar(&logLevel, "log-level", "", "Override logging.level")
	flags.StringVar(&bedLabel, "bed", "", "Override app.bed, the label used in logs, notifications and subjects")

	rootCmd.AddCommand(runCmd, analyzeCmd, showCmd, exportCmd, simulateCmd, versionCmd)
}

func getApp() *app.App {
	if appHandle == nil {
		panic("cli: command ran before configuration was loaded")
	}
	return appHandle
}
