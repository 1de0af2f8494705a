package cmd

import (
	"context"
	"fmt"
	"log"

	"github.com/fuelwatch/fuelwatch/internal"
)

// Update runs a single update cycle and prints the resulting aggregate.
func Update(dbPath string, forceStations bool) error {

	registry, cfg, db, err := bootstrap(dbPath, nil)
	if err != nil {
		return err
	}
	defer registry.Close()
	defer func() {
		if err := db.Close(); err != nil {
			log.Printf("failed to close database: %v", err)
		}
	}()

	coordinator, ok := registry.Resolve(cfg.Instance)
	if !ok {
		return fmt.Errorf("no coordinator for instance %q", cfg.Instance)
	}

	outcome := coordinator.RunUpdate(context.Background(), forceStations)
	if outcome.Status == internal.StatusFailure {
		return fmt.Errorf("update failed: %s", outcome.Reason)
	}

	log.Printf("update finished: %s", outcome.Status)
	if outcome.Reason != "" {
		log.Printf("degraded: %s", outcome.Reason)
	}

	agg := outcome.Aggregate
	log.Printf("%d stations, %d with prices", agg.StationCount, agg.StationsWithPriceCount)
	for fuelType, entry := range agg.Cheapest {
		log.Printf("cheapest %s: %.1fp at %s", fuelType, entry.PencePerLitre, entry.StationID)
	}

	return nil
}
