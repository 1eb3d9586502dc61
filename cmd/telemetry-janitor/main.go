// Command telemetry-janitor trims expired telemetry out of Redis on a
// schedule: events past the retention horizon are dropped from the
// global log and orphaned day shards are deleted. Day shards carry
// their own TTL, so the janitor is the safety net for keys whose
// expiry was lost.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/starsystemlabs/nebula-telemetry/pkg/config"
	"github.com/starsystemlabs/nebula-telemetry/pkg/observability"
	"github.com/starsystemlabs/nebula-telemetry/pkg/store"
)

var (
	schedule = flag.String("schedule", "30 0 * * *", "Cron schedule for retention cleanup (default: 00:30 UTC)")
	runOnce  = flag.Bool("run-once", false, "Run cleanup once and exit")
)

func main() {
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		observability.NewLogger(observability.ErrorLevel, os.Stderr).WithError(err).Error("failed to load config")
		os.Exit(1)
	}
	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)

	st, err := store.New(cfg.Store)
	if err != nil {
		logger.WithError(err).Error("failed to connect to redis")
		os.Exit(1)
	}
	defer st.Close()

	if *runOnce {
		if err := runCleanup(st, cfg.Store.EventRetention, logger); err != nil {
			logger.WithError(err).Error("cleanup failed")
			os.Exit(1)
		}
		return
	}

	c := cron.New()
	_, err = c.AddFunc(*schedule, func() {
		if err := runCleanup(st, cfg.Store.EventRetention, logger); err != nil {
			logger.WithError(err).Error("scheduled cleanup failed")
		}
	})
	if err != nil {
		logger.WithError(err).Error("failed to schedule cleanup")
		os.Exit(1)
	}

	c.Start()
	logger.WithField("schedule", *schedule).Info("telemetry janitor started")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutting down")
	<-c.Stop().Done()
}

func runCleanup(st *store.Client, retention time.Duration, logger *observability.Logger) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	horizon := time.Now().UTC().Add(-retention)
	logger.WithField("horizon", horizon.Format(time.RFC3339)).Info("starting retention cleanup")

	dropped, err := st.TrimBefore(ctx, horizon)
	if err != nil {
		return err
	}
	shards, err := st.CleanupDayShards(ctx, horizon)
	if err != nil {
		return err
	}

	logger.WithFields(map[string]interface{}{
		"events_dropped": dropped,
		"shards_deleted": shards,
	}).Info("retention cleanup completed")
	return nil
}
