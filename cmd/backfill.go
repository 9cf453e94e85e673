package cmd

import (
	"context"

	log "github.com/sirupsen/logrus"

	"earnings/config"
)

// Backfill fills missing rate snapshots on archived history records
func Backfill(ctx context.Context) error {
	cfg := config.Get()
	ConfigureLogging(cfg)

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.db.Close()

	result, err := a.closure.BackfillRates(ctx)
	if err != nil {
		return err
	}

	log.WithFields(log.Fields{
		"scanned": result.Scanned,
		"updated": result.Updated,
		"failed":  result.Failed,
	}).Info("Backfill finished")
	return nil
}
