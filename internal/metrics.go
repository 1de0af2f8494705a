package internal

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus instruments for the update pipeline. Create it
// once per process: promauto registers against the default registry.
type Metrics struct {
	UpdatesTotal         *prometheus.CounterVec
	UpdateDuration       *prometheus.HistogramVec
	LastSuccessTimestamp *prometheus.GaugeVec
	StationCount         *prometheus.GaugeVec
	CheapestPence        *prometheus.GaugeVec
}

func NewMetrics() *Metrics {
	return &Metrics{
		UpdatesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fuelwatch_updates_total",
				Help: "Total number of update runs by instance and outcome",
			},
			[]string{"instance", "outcome"},
		),
		UpdateDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "fuelwatch_update_duration_seconds",
				Help:    "Update pipeline duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"instance"},
		),
		LastSuccessTimestamp: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "fuelwatch_last_success_timestamp",
				Help: "Unix timestamp of the last fully successful update",
			},
			[]string{"instance"},
		),
		StationCount: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "fuelwatch_station_count",
				Help: "Number of stations in the cached set",
			},
			[]string{"instance"},
		),
		CheapestPence: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "fuelwatch_cheapest_pence_per_litre",
				Help: "Cheapest tracked price by fuel type",
			},
			[]string{"instance", "fuel_type"},
		),
	}
}
