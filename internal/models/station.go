package models

import (
	"math"
	"time"
)

// FuelType is the closed set of fuel grades tracked by fuelwatch.
type FuelType string

const (
	FuelTypeE10 FuelType = "E10"
	FuelTypeB7  FuelType = "B7"
)

// FuelTypes lists every tracked fuel type, in a fixed order.
var FuelTypes = []FuelType{FuelTypeE10, FuelTypeB7}

// ParseFuelType maps an upstream fuel code onto a tracked FuelType. The live
// API labels standard diesel "B7_STANDARD", older payloads just "B7". Codes
// outside the tracked set (E5, SDV, ...) report ok=false and are skipped.
func ParseFuelType(code string) (FuelType, bool) {
	switch code {
	case "E10":
		return FuelTypeE10, true
	case "B7", "B7_STANDARD":
		return FuelTypeB7, true
	default:
		return "", false
	}
}

const keyTolerance = 1e-6

// StationKey is the (centre, radius) triple that scopes a discovered station
// set. Two keys compare equal when each component matches within 1e-6, so
// config round-trips through storage never force a spurious re-discovery.
type StationKey struct {
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	RadiusMiles float64 `json:"radius_miles"`
}

func (k StationKey) Equal(other StationKey) bool {
	return math.Abs(k.Latitude-other.Latitude) <= keyTolerance &&
		math.Abs(k.Longitude-other.Longitude) <= keyTolerance &&
		math.Abs(k.RadiusMiles-other.RadiusMiles) <= keyTolerance
}

// IsZero reports whether the key has never been set.
func (k StationKey) IsZero() bool {
	return k == StationKey{}
}

// PriceEntry is the latest known price for one fuel type at one station.
type PriceEntry struct {
	PencePerLitre float64   `json:"pence_per_litre"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Station is one forecourt within the configured radius. Prices entries are
// written only by the price merger; everything else is fixed at discovery.
type Station struct {
	ID            string                  `json:"id"`
	Name          string                  `json:"name"`
	Brand         string                  `json:"brand"`
	Postcode      string                  `json:"postcode"`
	Latitude      float64                 `json:"latitude"`
	Longitude     float64                 `json:"longitude"`
	DistanceMiles float64                 `json:"distance_miles"`
	OpenToday     string                  `json:"open_today,omitempty"`
	IsMotorway    bool                    `json:"is_motorway"`
	IsSupermarket bool                    `json:"is_supermarket"`
	Prices        map[FuelType]PriceEntry `json:"prices"`
}

func (s *Station) Clone() *Station {
	clone := *s
	clone.Prices = make(map[FuelType]PriceEntry, len(s.Prices))
	for ft, p := range s.Prices {
		clone.Prices[ft] = p
	}
	return &clone
}

// StationSet is the authoritative cached view of the neighbourhood: every
// known station keyed by upstream id, plus the bookkeeping needed to decide
// whether the next update can reuse it.
//
// PriceCursor is the newest upstream price_last_updated seen so far. It
// drives the incremental effective-start-timestamp request parameter and is
// deliberately separate from LastPriceUpdateAt, which is our own wall clock.
type StationSet struct {
	Key               StationKey          `json:"key"`
	Stations          map[string]*Station `json:"stations"`
	LastDiscoveryAt   time.Time           `json:"last_discovery_at"`
	LastPriceUpdateAt time.Time           `json:"last_price_update_at"`
	PriceCursor       time.Time           `json:"price_cursor"`
}

func NewStationSet(key StationKey) *StationSet {
	return &StationSet{
		Key:      key,
		Stations: make(map[string]*Station),
	}
}

// Clone deep-copies the set so readers never observe a merge mid-flight.
func (set *StationSet) Clone() *StationSet {
	if set == nil {
		return nil
	}
	clone := *set
	clone.Stations = make(map[string]*Station, len(set.Stations))
	for id, station := range set.Stations {
		clone.Stations[id] = station.Clone()
	}
	return &clone
}

// CheapestEntry identifies the winning station for one fuel type.
type CheapestEntry struct {
	PencePerLitre float64 `json:"pence_per_litre"`
	StationID     string  `json:"station_id"`
}

// AggregateResult is the derived cheapest-price snapshot. A fuel type with no
// priced station is absent from Cheapest, which consumers must read as "no
// data yet" rather than a zero price.
type AggregateResult struct {
	Cheapest               map[FuelType]CheapestEntry `json:"cheapest"`
	StationCount           int                        `json:"station_count"`
	StationsWithPriceCount int                        `json:"stations_with_price_count"`
	ComputedAt             time.Time                  `json:"computed_at"`
}
