package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

const (
	appName = "sentinel"
	version = "v0.1.0"
)

func main() {
	rootCmd := &cobra.Command{
		Use:     appName,
		Short:   "Bearing condition-monitoring diagnostic engine",
		Version: version,
		Long: `sentinel ingests vibration and temperature samples from a fleet of bearing
sensors, runs the SKF/baseline/thermal/isolation-forest analyzer chain, fuses
the four verdicts into one alarm state, and publishes a Health Index and
failure probability per sensor.`,
	}

	rootCmd.PersistentFlags().String("config", "./sentinel.yaml", "path to the engine config YAML file")
	rootCmd.PersistentFlags().Bool("pretty", true, "use human-readable console logging instead of JSON lines")
	rootCmd.PersistentFlags().String("log-level", "info", "log level: debug|info|warn|error")

	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newBackfillCmd())
	rootCmd.AddCommand(newSnapshotCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func parseLevel(s string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(s)
	if err != nil {
		return zerolog.InfoLevel
	}
	return lvl
}
