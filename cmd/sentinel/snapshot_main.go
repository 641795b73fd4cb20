package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	applog "github.com/sawpanic/sentinel/internal/log"
)

func newSnapshotCmd() *cobra.Command {
	var fromFile bool

	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Print the current snapshot as JSON",
		Long: `snapshot either runs one poll cycle and prints the resulting publish
document, or (with --from-file) simply re-prints the snapshot file already
on disk, without touching the vendor API.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			pretty, _ := cmd.Flags().GetBool("pretty")
			level, _ := cmd.Flags().GetString("log-level")
			applog.Bootstrap(pretty, parseLevel(level))

			configPath, _ := cmd.Flags().GetString("config")
			return runSnapshot(configPath, fromFile)
		},
	}

	cmd.Flags().BoolVar(&fromFile, "from-file", false, "print the on-disk snapshot file instead of running a cycle")
	return cmd
}

func runSnapshot(configPath string, fromFile bool) error {
	dep, err := buildDeployment(configPath)
	if err != nil {
		return err
	}

	if fromFile {
		data, err := os.ReadFile(dep.cfg.SnapshotPath)
		if err != nil {
			return fmt.Errorf("read snapshot file: %w", err)
		}
		fmt.Println(string(data))
		return nil
	}

	ctx := context.Background()
	if err := dep.eng.Bootstrap(ctx); err != nil {
		return err
	}
	if err := dep.eng.RunCycle(ctx); err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(dep.eng.Snapshot())
}
