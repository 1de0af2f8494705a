package routes

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fuelwatch/fuelwatch/internal"
	"github.com/fuelwatch/fuelwatch/internal/brands"
	"github.com/fuelwatch/fuelwatch/internal/models"
)

// stubClient serves canned upstream data so a real Coordinator can run its
// pipeline end to end inside the handler tests.
type stubClient struct {
	stations []models.PetrolFillingStation
	prices   []models.ForecourtPrices
}

func (s *stubClient) GenerateToken(context.Context, models.AuthRequest) (models.TokenData, error) {
	return models.TokenData{AccessToken: "token-1", ExpiresIn: 3600}, nil
}

func (s *stubClient) RegenerateToken(context.Context, models.TokenRefreshRequest) (models.TokenData, error) {
	return models.TokenData{AccessToken: "token-1", ExpiresIn: 3600}, nil
}

func (s *stubClient) FetchStations(context.Context, string) ([]models.PetrolFillingStation, error) {
	return s.stations, nil
}

func (s *stubClient) FetchPrices(context.Context, string, time.Time) ([]models.ForecourtPrices, error) {
	return s.prices, nil
}

func upstreamStation(id, name, brand string, lat, lon float64) models.PetrolFillingStation {
	station := models.PetrolFillingStation{NodeId: id, TradingName: name, BrandName: brand}
	station.Location.Latitude = lat
	station.Location.Longitude = lon
	return station
}

func testRegistry(t *testing.T) (*internal.Registry, *internal.Coordinator) {
	updated := time.Date(2026, 8, 28, 9, 0, 0, 0, time.UTC)
	client := &stubClient{
		stations: []models.PetrolFillingStation{
			upstreamStation("station-a", "Alpha", "ASDA", 51.51, -0.11),
			upstreamStation("station-b", "Bravo", "Shell", 51.5, -0.1),
		},
		prices: []models.ForecourtPrices{
			{NodeId: "station-b", FuelPrices: []models.FuelPrice{
				{FuelType: "E10", Price: 137.5, PriceLastUpdated: updated},
			}},
		},
	}

	key := models.StationKey{Latitude: 51.5, Longitude: -0.1, RadiusMiles: 5}
	coordinator := internal.NewCoordinator("home", key,
		internal.NewCredentialManager(client, "id", "secret"),
		internal.NewStationRepository(nil, "home", client),
		internal.NewPriceMerger(client), nil)
	t.Cleanup(coordinator.Close)

	registry := internal.NewRegistry()
	registry.Add(coordinator)
	return registry, coordinator
}

func testRouter(registry *internal.Registry) *gin.Engine {
	gin.SetMode(gin.TestMode)
	retailers := brands.Retailers{
		"Shell": &models.Retailer{Name: "Shell", Url: "https://www.shell.co.uk"},
	}

	r := gin.New()
	r.GET("/aggregate", Aggregate(registry))
	r.GET("/stations", Stations(registry, retailers))
	r.POST("/refresh", Refresh(registry))
	return r
}

func get(r *gin.Engine, url string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, url, nil)
	r.ServeHTTP(w, req)
	return w
}

func TestAggregateRoute(t *testing.T) {
	registry, coordinator := testRegistry(t)
	r := testRouter(registry)

	// Nothing has run yet.
	w := get(r, "/aggregate")
	assert.Equal(t, http.StatusNotFound, w.Code)

	require.Equal(t, internal.StatusSuccess, coordinator.RunUpdate(context.Background(), false).Status)

	w = get(r, "/aggregate")
	require.Equal(t, http.StatusOK, w.Code)

	var resp models.AggregateResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "home", resp.Instance)
	assert.False(t, resp.Stale)
	assert.NotNil(t, resp.LastSuccessAt)
	assert.NotEmpty(t, resp.Attribution)
	require.NotNil(t, resp.Aggregate)
	assert.Equal(t, 2, resp.Aggregate.StationCount)
	assert.Equal(t, 137.5, resp.Aggregate.Cheapest[models.FuelTypeE10].PencePerLitre)

	// The empty instance name resolves to the sole registered instance,
	// anything else is a 404.
	assert.Equal(t, http.StatusOK, get(r, "/aggregate?instance=home").Code)
	assert.Equal(t, http.StatusNotFound, get(r, "/aggregate?instance=nope").Code)
}

func TestStationsRoute(t *testing.T) {
	registry, coordinator := testRegistry(t)
	require.Equal(t, internal.StatusSuccess, coordinator.RunUpdate(context.Background(), false).Status)
	r := testRouter(registry)

	w := get(r, "/stations")
	require.Equal(t, http.StatusOK, w.Code)

	var resp models.StationListResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "home", resp.Instance)
	require.Len(t, resp.Stations, 2)

	// Sorted by distance: station-b sits on the centre point.
	assert.Equal(t, "station-b", resp.Stations[0].ID)
	assert.Equal(t, "station-a", resp.Stations[1].ID)

	// Retailer enrichment is keyed by brand; unknown brands stay bare.
	require.NotNil(t, resp.Stations[0].Retailer)
	assert.Equal(t, "https://www.shell.co.uk", resp.Stations[0].Retailer.Url)
	assert.Nil(t, resp.Stations[1].Retailer)

	assert.NotNil(t, resp.LastUpdated)
	assert.NotEmpty(t, resp.Attribution)
}

func TestRefreshRoute(t *testing.T) {
	registry, _ := testRegistry(t)
	r := testRouter(registry)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/refresh?stations=true", nil)
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusAccepted, w.Code)
	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "home", resp["instance"])
	assert.Equal(t, true, resp["force_stations"])

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/refresh?instance=nope", nil)
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
