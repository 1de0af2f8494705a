// Package stats derives aggregate facts from a StationSet snapshot. All
// functions are pure: no I/O, no failure modes, recomputed on every call.
package stats

import (
	"time"

	"github.com/fuelwatch/fuelwatch/internal/models"
)

type candidate struct {
	price    float64
	distance float64
	id       string
}

// beats implements the deterministic tie-break: lowest price, then smallest
// distance, then lexicographically smallest id.
func (c candidate) beats(other candidate) bool {
	if c.price != other.price {
		return c.price < other.price
	}
	if c.distance != other.distance {
		return c.distance < other.distance
	}
	return c.id < other.id
}

// Compute derives the cheapest-price facts from the given set. Fuel types
// with no priced station are absent from Cheapest, which is distinct from a
// zero price. The tie-break makes results reproducible regardless of map
// iteration order.
func Compute(set *models.StationSet) models.AggregateResult {
	result := models.AggregateResult{
		Cheapest:   make(map[models.FuelType]models.CheapestEntry),
		ComputedAt: time.Now().UTC(),
	}
	if set == nil {
		return result
	}

	result.StationCount = len(set.Stations)

	best := make(map[models.FuelType]candidate)
	for id, station := range set.Stations {
		if len(station.Prices) > 0 {
			result.StationsWithPriceCount++
		}
		for fuelType, entry := range station.Prices {
			c := candidate{price: entry.PencePerLitre, distance: station.DistanceMiles, id: id}
			current, ok := best[fuelType]
			if !ok || c.beats(current) {
				best[fuelType] = c
			}
		}
	}

	for fuelType, w := range best {
		result.Cheapest[fuelType] = models.CheapestEntry{
			PencePerLitre: w.price,
			StationID:     w.id,
		}
	}
	return result
}
