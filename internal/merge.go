package internal

import (
	"context"
	"log"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/fuelwatch/fuelwatch/internal/models"
)

// priceCursorLookback is subtracted from the stored cursor when requesting
// incremental updates, so records whose server-side timestamp lags our last
// observation are not missed.
const priceCursorLookback = 30 * time.Minute

// PriceMerger fetches price updates and reconciles them into the StationSet
// by station id. It never removes stations or clears prices: a failed fetch
// leaves the set untouched, and price entries only ever move forward.
type PriceMerger struct {
	client FuelFinderClient
	now    func() time.Time
}

func NewPriceMerger(client FuelFinderClient) *PriceMerger {
	return &PriceMerger{client: client, now: time.Now}
}

// MergePrices fetches current prices (incrementally, when a cursor exists)
// and merges them into set. The set is only mutated after a fully successful
// fetch, so callers can safely continue with prior prices on error.
func (m *PriceMerger) MergePrices(ctx context.Context, token string, set *models.StationSet) error {
	since := time.Time{}
	if !set.PriceCursor.IsZero() {
		since = set.PriceCursor.Add(-priceCursorLookback)
	}

	records, err := m.client.FetchPrices(ctx, token, since)
	if err != nil {
		return errors.Wrap(err, "price fetch failed")
	}

	updated := 0
	cursor := set.PriceCursor
	for i := range records {
		station, ok := set.Stations[records[i].NodeId]
		if !ok {
			// Not in the current discovery: out of scope, not an error.
			continue
		}
		for _, fuelPrice := range records[i].FuelPrices {
			fuelType, ok := models.ParseFuelType(fuelPrice.FuelType)
			if !ok || fuelPrice.Price <= 0 {
				continue
			}
			// The API is the source of truth: latest response wins.
			station.Prices[fuelType] = models.PriceEntry{
				PencePerLitre: fuelPrice.Price,
				UpdatedAt:     fuelPrice.PriceLastUpdated,
			}
			updated++
			if fuelPrice.PriceLastUpdated.After(cursor) {
				cursor = fuelPrice.PriceLastUpdated
			}
		}
	}

	set.PriceCursor = cursor
	set.LastPriceUpdateAt = m.now()
	if updated > 0 {
		log.Printf("merged %d price entries", updated)
	}
	return nil
}
