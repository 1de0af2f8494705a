package internal

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/fuelwatch/fuelwatch/internal/models"
)

// fakeFuelFinder is an in-memory FuelFinderClient with per-endpoint call
// counters and injectable failures.
type fakeFuelFinder struct {
	tokenCalls    int
	refreshCalls  int
	stationCalls  int
	priceCalls    int
	lastSince     time.Time
	lastPriceAuth string

	token        models.TokenData
	tokenErr     error
	refreshErr   error
	stations     []models.PetrolFillingStation
	stationsErr  error
	prices       []models.ForecourtPrices
	pricesErr    error
}

func newFakeFuelFinder() *fakeFuelFinder {
	return &fakeFuelFinder{
		token: models.TokenData{
			AccessToken:  "token-1",
			ExpiresIn:    3600,
			RefreshToken: "refresh-1",
		},
	}
}

func (f *fakeFuelFinder) GenerateToken(_ context.Context, _ models.AuthRequest) (models.TokenData, error) {
	f.tokenCalls++
	if f.tokenErr != nil {
		return models.TokenData{}, f.tokenErr
	}
	return f.token, nil
}

func (f *fakeFuelFinder) RegenerateToken(_ context.Context, _ models.TokenRefreshRequest) (models.TokenData, error) {
	f.refreshCalls++
	if f.refreshErr != nil {
		return models.TokenData{}, f.refreshErr
	}
	return f.token, nil
}

func (f *fakeFuelFinder) FetchStations(_ context.Context, _ string) ([]models.PetrolFillingStation, error) {
	f.stationCalls++
	if f.stationsErr != nil {
		return nil, f.stationsErr
	}
	return f.stations, nil
}

func (f *fakeFuelFinder) FetchPrices(_ context.Context, token string, since time.Time) ([]models.ForecourtPrices, error) {
	f.priceCalls++
	f.lastSince = since
	f.lastPriceAuth = token
	if f.pricesErr != nil {
		return nil, f.pricesErr
	}
	return f.prices, nil
}

func fetchFailure() error {
	return errors.Mark(errors.New("connection refused"), ErrFetch)
}

func authFailure() error {
	return errors.Mark(errors.New("invalid client"), ErrAuth)
}

// pfs builds an upstream station record at the given coordinates.
func pfs(id, name string, lat, lon float64) models.PetrolFillingStation {
	station := models.PetrolFillingStation{
		NodeId:      id,
		TradingName: name,
		BrandName:   name,
	}
	station.Location.Latitude = lat
	station.Location.Longitude = lon
	station.Location.Postcode = "AB1 2CD"
	return station
}
