package routes

import (
	"log"
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kofalt/go-memoize"

	"github.com/fuelwatch/fuelwatch/internal"
	"github.com/fuelwatch/fuelwatch/internal/brands"
	"github.com/fuelwatch/fuelwatch/internal/models"
)

// Aggregate serves the current cheapest-price snapshot for an instance.
// During degradation it keeps returning the last successful result with a
// staleness flag; 404 only when no data has ever been produced.
func Aggregate(registry *internal.Registry) func(c *gin.Context) {
	return func(c *gin.Context) {
		coordinator, ok := registry.Resolve(c.Query("instance"))
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "unknown instance"})
			return
		}

		aggregate, stale, lastSuccessAt := coordinator.LastResult()
		if aggregate == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "no data available yet"})
			return
		}

		resp := models.AggregateResponse{
			Instance:    coordinator.Instance,
			Aggregate:   aggregate,
			Stale:       stale,
			Attribution: internal.ATTRIBUTION,
		}
		if !lastSuccessAt.IsZero() {
			resp.LastSuccessAt = &lastSuccessAt
		}
		c.JSON(http.StatusOK, resp)
	}
}

// Stations serves the diagnostic station listing, sorted by distance and
// enriched with retailer branding. Responses are memoized briefly: the
// listing is cosmetic and the snapshot copy is not free.
func Stations(registry *internal.Registry, retailers brands.Retailers) func(c *gin.Context) {
	cache := memoize.NewMemoizer(30*time.Second, 5*time.Minute)

	return func(c *gin.Context) {
		coordinator, ok := registry.Resolve(c.Query("instance"))
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "unknown instance"})
			return
		}

		result, err, _ := cache.Memoize(coordinator.Instance, func() (interface{}, error) {
			return buildListing(coordinator, retailers), nil
		})
		if err != nil {
			log.Printf("error while building station listing: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "An internal server error occurred"})
			return
		}

		c.JSON(http.StatusOK, result)
	}
}

func buildListing(coordinator *internal.Coordinator, retailers brands.Retailers) models.StationListResponse {
	resp := models.StationListResponse{
		Instance:    coordinator.Instance,
		Attribution: internal.ATTRIBUTION,
	}

	set := coordinator.Snapshot()
	if set == nil {
		return resp
	}

	resp.Key = set.Key
	if !set.LastPriceUpdateAt.IsZero() {
		lastUpdated := set.LastPriceUpdateAt
		resp.LastUpdated = &lastUpdated
	}

	resp.Stations = make([]models.StationView, 0, len(set.Stations))
	for _, station := range set.Stations {
		view := models.StationView{Station: *station}
		if retailer, ok := retailers[station.Brand]; ok {
			view.Retailer = retailer
		}
		resp.Stations = append(resp.Stations, view)
	}
	sort.Slice(resp.Stations, func(i, j int) bool {
		a, b := &resp.Stations[i], &resp.Stations[j]
		if a.DistanceMiles != b.DistanceMiles {
			return a.DistanceMiles < b.DistanceMiles
		}
		return a.ID < b.ID
	})
	return resp
}

// Refresh queues a manual update. With stations=true the station discovery is
// forced as well. Triggers coalesce, so hammering this endpoint cannot stack
// concurrent pipelines.
func Refresh(registry *internal.Registry) func(c *gin.Context) {
	return func(c *gin.Context) {
		coordinator, ok := registry.Resolve(c.Query("instance"))
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "unknown instance"})
			return
		}

		forceStations := c.Query("stations") == "true"
		coordinator.Trigger(forceStations)
		c.JSON(http.StatusAccepted, gin.H{
			"instance":       coordinator.Instance,
			"force_stations": forceStations,
		})
	}
}
