package cmd

import (
	"database/sql"
	"fmt"
	"log"

	"github.com/joho/godotenv"
	"github.com/rm-hull/godx"

	"github.com/fuelwatch/fuelwatch/internal"
	"github.com/fuelwatch/fuelwatch/internal/config"
)

// bootstrap initialises the shared resources used by the server and update
// commands: configuration, the sqlite cache, and one coordinator per
// configured instance (currently a single instance from the environment).
func bootstrap(dbPath string, metrics *internal.Metrics) (*internal.Registry, *config.Config, *sql.DB, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	godx.GitVersion()
	godx.EnvironmentVars()
	godx.UserInfo()

	cfg, err := config.Load()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("configuration rejected: %w", err)
	}

	db, err := internal.Connect(dbPath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	if err := internal.Migrate("migrations", dbPath); err != nil {
		_ = db.Close()
		return nil, nil, nil, fmt.Errorf("failed to migrate SQL: %w", err)
	}

	client := internal.NewFuelFinderClient()
	creds := internal.NewCredentialManager(client, cfg.ClientId, cfg.ClientSecret)
	repo := internal.NewStationRepository(db, cfg.Instance, client)
	merger := internal.NewPriceMerger(client)

	coordinator := internal.NewCoordinator(cfg.Instance, cfg.Key(), creds, repo, merger, metrics)
	if err := coordinator.InitializeFromCache(); err != nil {
		log.Printf("failed to restore cached state: %v", err)
	}

	registry := internal.NewRegistry()
	registry.Add(coordinator)

	return registry, cfg, db, nil
}
