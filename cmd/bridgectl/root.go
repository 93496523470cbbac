// Command bridgectl drives the bridge from a terminal: it runs calls against an in-process
// bridge and sqflite plugin, and inspects or replays recorded call traces.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap/zapcore"

	"guru-bridge/config"
	"guru-bridge/host"
	"guru-bridge/logging"
)

var (
	configPath   string
	rootOverride string
	logLevel     string
	traceOut     string
)

var rootCmd = &cobra.Command{
	Use:           "bridgectl",
	Short:         "Drive the guru bridge from the command line",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "",
		"Configuration file (default: $GURU_BRIDGE_CONFIG or guru-bridge.yaml)")
	rootCmd.PersistentFlags().StringVar(&rootOverride, "root", "",
		"Database root path (overrides config)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "error",
		"Log level written to stderr: debug, info, warn, error, none")

	rootCmd.AddCommand(invokeCmd)
	rootCmd.AddCommand(traceCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if configPath != "" {
		cfg, err = config.LoadFromFile(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if rootOverride != "" {
		cfg.Database.RootPath = rootOverride
	}
	if traceOut != "" {
		cfg.Trace.Path = traceOut
	}
	cfg.Log.Level = logLevel
	cfg.Log.Format = "console"
	return cfg, nil
}

// startRuntime builds a runtime that logs to the command's stderr.
func startRuntime(cmd *cobra.Command, cfg *config.Config) (*host.Runtime, error) {
	logger, level, err := logging.NewWithSink(cfg.Log, zapcore.AddSync(cmd.ErrOrStderr()))
	if err != nil {
		return nil, err
	}
	return host.StartWithLogger(cfg, logger, level)
}

func closeRuntime(cmd *cobra.Command, rt *host.Runtime) {
	if err := rt.Close(5 * time.Second); err != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), "shutdown:", err)
	}
}
