package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	applog "github.com/sawpanic/sentinel/internal/log"

	"github.com/sawpanic/sentinel/internal/httpapi"
)

func newServeCmd() *cobra.Command {
	var httpAddr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the continuous polling loop and the read-only HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			pretty, _ := cmd.Flags().GetBool("pretty")
			level, _ := cmd.Flags().GetString("log-level")
			applog.Bootstrap(pretty, parseLevel(level))

			configPath, _ := cmd.Flags().GetString("config")
			return runServe(configPath, httpAddr)
		},
	}

	cmd.Flags().StringVar(&httpAddr, "http-addr", ":8090", "address the snapshot/metrics server listens on")
	return cmd
}

func runServe(configPath, httpAddr string) error {
	dep, err := buildDeployment(configPath)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := dep.eng.Bootstrap(ctx); err != nil {
		return err
	}

	metrics := httpapi.NewMetrics()
	server := httpapi.NewServer(httpAddr, dep.eng, metrics)

	serverErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil {
			serverErr <- err
		}
	}()

	ticker := time.NewTicker(dep.cfg.PollInterval)
	defer ticker.Stop()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	log.Info().Dur("interval", dep.cfg.PollInterval).Str("addr", httpAddr).Msg("sentinel serve starting")

	for {
		select {
		case <-ticker.C:
			runCycleAndPublish(ctx, dep, metrics)

		case <-quit:
			log.Info().Msg("shutdown signal received")
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
			err := server.Shutdown(shutdownCtx)
			shutdownCancel()
			return err

		case err := <-serverErr:
			return err
		}
	}
}

// runCycleAndPublish runs one poll cycle, republishes the snapshot, and
// updates the metrics the HTTP server exposes. A cycle error is logged and
// counted, never fatal to the serve loop.
func runCycleAndPublish(ctx context.Context, dep *deployment, metrics *httpapi.Metrics) {
	start := time.Now()
	if err := dep.eng.RunCycle(ctx); err != nil {
		log.Error().Err(err).Msg("poll cycle canceled")
		metrics.CycleErrors.Inc()
		return
	}
	metrics.CycleDuration.Observe(time.Since(start).Seconds())

	if changed, err := dep.settings.ReloadAndDiff(); err != nil {
		log.Warn().Err(err).Msg("failed to reload runtime settings")
	} else if changed {
		log.Info().Msg("runtime settings changed, forcing immediate republish")
	}

	if err := dep.eng.Publish(dep.cfg.SnapshotPath); err != nil {
		log.Error().Err(err).Msg("snapshot publish failed")
		metrics.PersistFailure.Inc()
	}

	for sensorID, n := range dep.eng.LastFetchErrors() {
		metrics.FetchErrors.WithLabelValues(sensorID).Add(float64(n))
	}

	snap := dep.eng.Snapshot()
	active := 0
	for _, s := range snap.Sensors {
		if s.Status != "INAKTIV" {
			active++
		}
	}
	metrics.ActiveSensors.Set(float64(active))

	if len(snap.Events) > dep.prevEventCount {
		for _, e := range snap.Events[dep.prevEventCount:] {
			metrics.EventsEmitted.WithLabelValues(e.Type).Inc()
		}
		dep.prevEventCount = len(snap.Events)
	}
}
