package cmd

import (
	"fmt"
	"log"
	"net/http"

	"github.com/Depado/ginprom"
	"github.com/aurowora/compress"
	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/pprof"
	"github.com/gin-gonic/gin"
	_ "github.com/mattn/go-sqlite3"

	"github.com/fuelwatch/fuelwatch/internal"
	"github.com/fuelwatch/fuelwatch/internal/brands"
	"github.com/fuelwatch/fuelwatch/internal/routes"
	healthcheck "github.com/tavsec/gin-healthcheck"
	"github.com/tavsec/gin-healthcheck/checks"
	hc_config "github.com/tavsec/gin-healthcheck/config"
)

func ApiServer(dbPath string, port int, debug bool) error {

	metrics := internal.NewMetrics()

	registry, cfg, db, err := bootstrap(dbPath, metrics)
	if err != nil {
		return err
	}
	defer registry.Close()
	defer func() {
		if err := db.Close(); err != nil {
			log.Printf("failed to close database: %v", err)
		}
	}()

	if _, err := internal.StartCron(registry, cfg.ScanIntervalMinutes); err != nil {
		return fmt.Errorf("failed to start CRON jobs: %w", err)
	}

	// First refresh runs in the background so startup is not blocked by API
	// latency; cached data (when restored) is served in the meantime.
	if coordinator, ok := registry.Resolve(cfg.Instance); ok {
		coordinator.Trigger(false)
	}

	retailers, err := brands.GetRetailersMap()
	if err != nil {
		return fmt.Errorf("failed to load retailers: %w", err)
	}

	r := gin.New()

	prometheus := ginprom.New(
		ginprom.Engine(r),
		ginprom.Path("/metrics"),
		ginprom.Ignore("/healthz"),
	)

	r.Use(
		gin.Recovery(),
		gin.LoggerWithWriter(gin.DefaultWriter, "/healthz", "/metrics"),
		prometheus.Instrument(),
		compress.Compress(),
		cors.Default(),
	)

	if debug {
		log.Println("WARNING: pprof endpoints are enabled and exposed. Do not run with this flag in production.")
		pprof.Register(r)
	}

	err = healthcheck.New(r, hc_config.DefaultConfig(), []checks.Check{
		checks.SqlCheck{Sql: db},
	})
	if err != nil {
		return fmt.Errorf("failed to initialize healthcheck: %v", err)
	}

	v1 := r.Group("/v1/fuel-watch")
	v1.GET("/aggregate", routes.Aggregate(registry))
	v1.GET("/stations", routes.Stations(registry, retailers))
	v1.POST("/refresh", routes.Refresh(registry))

	addr := fmt.Sprintf(":%d", port)
	log.Printf("Starting HTTP API Server on port %d...", port)
	if err := r.Run(addr); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("HTTP API Server failed to start on port %d: %v", port, err)
	}

	return nil
}
