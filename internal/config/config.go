// Package config loads and validates the per-instance fuelwatch settings.
package config

import (
	"os"
	"strconv"

	"github.com/cockroachdb/errors"

	"github.com/fuelwatch/fuelwatch/internal"
	"github.com/fuelwatch/fuelwatch/internal/models"
)

// UK geographical bounds and API limits for validation.
const (
	LatMin = 49.9
	LatMax = 60.9
	LonMin = -8.65
	LonMax = 1.77

	MinRadiusMiles         = 0.1
	MaxRadiusMiles         = 50.0
	MinScanIntervalMinutes = 5
	MaxScanIntervalMinutes = 720

	DefaultRadiusMiles         = 10.0
	DefaultScanIntervalMinutes = 15
	DefaultInstance            = "home"
)

// ErrConfig marks every validation failure so callers can reject bad
// configuration before any update runs.
var ErrConfig = internal.ErrConfig

// Config holds one instance's settings.
type Config struct {
	Instance     string
	ClientId     string
	ClientSecret string
	Latitude     float64
	Longitude    float64
	RadiusMiles  float64
	// Minutes between scheduled updates
	ScanIntervalMinutes int
}

// Load reads configuration from environment variables (a .env file has
// normally been loaded beforehand) and validates it.
func Load() (*Config, error) {
	cfg := &Config{
		Instance:            envOr("INSTANCE", DefaultInstance),
		ClientId:            os.Getenv("CLIENT_ID"),
		ClientSecret:        os.Getenv("CLIENT_SECRET"),
		RadiusMiles:         DefaultRadiusMiles,
		ScanIntervalMinutes: DefaultScanIntervalMinutes,
	}

	var err error
	if cfg.Latitude, err = envFloat("LATITUDE"); err != nil {
		return nil, err
	}
	if cfg.Longitude, err = envFloat("LONGITUDE"); err != nil {
		return nil, err
	}
	if v := os.Getenv("RADIUS_MILES"); v != "" {
		if cfg.RadiusMiles, err = parseFloat("RADIUS_MILES", v); err != nil {
			return nil, err
		}
	}
	if v := os.Getenv("SCAN_INTERVAL_MINUTES"); v != "" {
		interval, convErr := strconv.Atoi(v)
		if convErr != nil {
			return nil, errors.Mark(errors.Newf("SCAN_INTERVAL_MINUTES: %q is not an integer", v), ErrConfig)
		}
		cfg.ScanIntervalMinutes = interval
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate enforces credential presence, UK coordinate bounds, and the API's
// radius and interval limits.
func (cfg *Config) Validate() error {
	if cfg.ClientId == "" || cfg.ClientSecret == "" {
		return errors.Mark(errors.New("client id and secret are required"), ErrConfig)
	}
	if cfg.Latitude < LatMin || cfg.Latitude > LatMax {
		return errors.Mark(errors.Newf("latitude %.4f outside UK bounds [%.1f, %.1f]", cfg.Latitude, LatMin, LatMax), ErrConfig)
	}
	if cfg.Longitude < LonMin || cfg.Longitude > LonMax {
		return errors.Mark(errors.Newf("longitude %.4f outside UK bounds [%.2f, %.2f]", cfg.Longitude, LonMin, LonMax), ErrConfig)
	}
	if cfg.RadiusMiles < MinRadiusMiles || cfg.RadiusMiles > MaxRadiusMiles {
		return errors.Mark(errors.Newf("radius %.1f miles outside [%.1f, %.1f]", cfg.RadiusMiles, MinRadiusMiles, MaxRadiusMiles), ErrConfig)
	}
	if cfg.ScanIntervalMinutes < MinScanIntervalMinutes || cfg.ScanIntervalMinutes > MaxScanIntervalMinutes {
		return errors.Mark(errors.Newf("scan interval %d minutes outside [%d, %d]", cfg.ScanIntervalMinutes, MinScanIntervalMinutes, MaxScanIntervalMinutes), ErrConfig)
	}
	return nil
}

// Key returns the StationKey that scopes this instance's station cache.
func (cfg *Config) Key() models.StationKey {
	return models.StationKey{
		Latitude:    cfg.Latitude,
		Longitude:   cfg.Longitude,
		RadiusMiles: cfg.RadiusMiles,
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envFloat(key string) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return 0, errors.Mark(errors.Newf("%s is required", key), ErrConfig)
	}
	return parseFloat(key, v)
}

func parseFloat(key, v string) (float64, error) {
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, errors.Mark(errors.Newf("%s: %q is not a number", key, v), ErrConfig)
	}
	return f, nil
}
