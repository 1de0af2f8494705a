package internal

import (
	"context"
	"database/sql"
	_ "embed"
	"log"
	"math"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/fuelwatch/fuelwatch/internal/models"
)

//go:embed sql/insert_station_set.sql
var insertStationSetSQL string

//go:embed sql/insert_station.sql
var insertStationSQL string

//go:embed sql/insert_price.sql
var insertPriceSQL string

//go:embed sql/delete_stations.sql
var deleteStationsSQL string

//go:embed sql/delete_prices.sql
var deletePricesSQL string

//go:embed sql/select_station_set.sql
var selectStationSetSQL string

//go:embed sql/select_stations.sql
var selectStationsSQL string

//go:embed sql/select_prices.sql
var selectPricesSQL string

const milesPerKm = 1 / 1.609344

// haversineMiles is the great-circle distance between two coordinates.
func haversineMiles(lat1, lon1, lat2, lon2 float64) float64 {
	const earthRadiusKm = 6371.0
	rad := func(deg float64) float64 { return deg * math.Pi / 180 }

	dLat := rad(lat2 - lat1)
	dLon := rad(lon2 - lon1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(rad(lat1))*math.Cos(rad(lat2))*math.Sin(dLon/2)*math.Sin(dLon/2)
	km := 2 * earthRadiusKm * math.Asin(math.Sqrt(a))
	return km * milesPerKm
}

// StationRepository owns the authoritative StationSet for one configured
// instance. The set lives in memory and is mirrored to sqlite so a restart
// can serve cached data before the first poll. All mutation happens under the
// coordinator's single-flight discipline.
type StationRepository struct {
	db       *sql.DB // nil disables persistence
	instance string
	client   FuelFinderClient
	now      func() time.Time

	set *models.StationSet
}

func NewStationRepository(db *sql.DB, instance string, client FuelFinderClient) *StationRepository {
	return &StationRepository{
		db:       db,
		instance: instance,
		client:   client,
		now:      time.Now,
	}
}

// Snapshot returns a deep copy of the current set for readers, or nil when
// nothing has been discovered yet.
func (repo *StationRepository) Snapshot() *models.StationSet {
	return repo.set.Clone()
}

// Current returns the owned set for use inside the update pipeline. Readers
// outside the single-flight discipline must use Snapshot.
func (repo *StationRepository) Current() *models.StationSet {
	return repo.set
}

// GetOrDiscover returns the StationSet for the requested key. The cached set
// is reused untouched while its key matches and no force is requested;
// otherwise a full discovery replaces the set wholesale. A failed discovery
// degrades to the previous set (whatever its key) with stale=true, and is
// only fatal when there has never been a successful discovery.
func (repo *StationRepository) GetOrDiscover(ctx context.Context, token string, key models.StationKey, force bool) (*models.StationSet, bool, error) {
	if !force && repo.set != nil && repo.set.Key.Equal(key) {
		return repo.set, false, nil
	}

	stations, err := repo.client.FetchStations(ctx, token)
	if err != nil {
		if repo.set != nil && !errors.Is(err, ErrAuth) {
			log.Printf("station discovery failed, keeping previous set: %v", err)
			return repo.set, true, nil
		}
		return nil, false, errors.Wrap(err, "station discovery failed")
	}

	set := models.NewStationSet(key)
	set.LastDiscoveryAt = repo.now()
	for i := range stations {
		if station := processStation(&stations[i], key, set.LastDiscoveryAt); station != nil {
			set.Stations[station.ID] = station
		}
	}
	log.Printf("discovered %d stations within %.1f miles", len(set.Stations), key.RadiusMiles)

	repo.set = set
	return repo.set, false, nil
}

// processStation converts one upstream record into a domain Station, or nil
// when it is closed, unlocatable, or outside the radius. Radius is a soft
// upper bound upstream, so over-returned stations are dropped here.
func processStation(pfs *models.PetrolFillingStation, key models.StationKey, now time.Time) *models.Station {
	if pfs.NodeId == "" || pfs.TemporaryClosure || pfs.PermanentClosure {
		return nil
	}
	if pfs.Location.Latitude == 0 && pfs.Location.Longitude == 0 {
		return nil
	}

	miles := haversineMiles(key.Latitude, key.Longitude, pfs.Location.Latitude, pfs.Location.Longitude)
	if miles > key.RadiusMiles {
		return nil
	}

	name := pfs.TradingName
	if name == "" {
		name = pfs.BrandName
	}

	return &models.Station{
		ID:            pfs.NodeId,
		Name:          name,
		Brand:         pfs.BrandName,
		Postcode:      pfs.Location.Postcode,
		Latitude:      pfs.Location.Latitude,
		Longitude:     pfs.Location.Longitude,
		DistanceMiles: math.Round(miles*100) / 100,
		OpenToday:     pfs.OpeningToday(now),
		IsMotorway:    pfs.IsMotorwayServiceStation,
		IsSupermarket: pfs.IsSupermarketServiceStation,
		Prices:        make(map[models.FuelType]models.PriceEntry),
	}
}

// Persist mirrors the current set to sqlite in a single transaction.
func (repo *StationRepository) Persist() (err error) {
	if repo.db == nil || repo.set == nil {
		return nil
	}

	tx, err := repo.db.Begin()
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				log.Printf("error rolling back transaction: %v", rbErr)
			}
		}
	}()

	set := repo.set
	var lastPriceUpdate, priceCursor any
	if !set.LastPriceUpdateAt.IsZero() {
		lastPriceUpdate = set.LastPriceUpdateAt
	}
	if !set.PriceCursor.IsZero() {
		priceCursor = set.PriceCursor
	}

	if _, err = tx.Exec(insertStationSetSQL,
		repo.instance, set.Key.Latitude, set.Key.Longitude, set.Key.RadiusMiles,
		set.LastDiscoveryAt, lastPriceUpdate, priceCursor,
	); err != nil {
		return errors.Wrap(err, "failed to persist station set")
	}

	for _, stmt := range []string{deletePricesSQL, deleteStationsSQL} {
		if _, err = tx.Exec(stmt, repo.instance); err != nil {
			return errors.Wrap(err, "failed to clear previous snapshot")
		}
	}

	for _, station := range set.Stations {
		if _, err = tx.Exec(insertStationSQL,
			repo.instance, station.ID, station.Name, station.Brand, station.Postcode,
			station.Latitude, station.Longitude, station.DistanceMiles, station.OpenToday,
			station.IsMotorway, station.IsSupermarket,
		); err != nil {
			return errors.Wrap(err, "failed to persist station")
		}
		for fuelType, price := range station.Prices {
			if _, err = tx.Exec(insertPriceSQL,
				repo.instance, station.ID, string(fuelType), price.PencePerLitre, price.UpdatedAt,
			); err != nil {
				return errors.Wrap(err, "failed to persist price")
			}
		}
	}

	if err = tx.Commit(); err != nil {
		return errors.Wrap(err, "failed to commit transaction")
	}
	return nil
}

// Restore loads the persisted set, if any, so cached data is served before
// the first poll completes. A missing snapshot is not an error.
func (repo *StationRepository) Restore() error {
	if repo.db == nil {
		return nil
	}

	set := models.NewStationSet(models.StationKey{})
	var lastPriceUpdate, priceCursor sql.NullTime

	row := repo.db.QueryRow(selectStationSetSQL, repo.instance)
	err := row.Scan(&set.Key.Latitude, &set.Key.Longitude, &set.Key.RadiusMiles,
		&set.LastDiscoveryAt, &lastPriceUpdate, &priceCursor)
	if err == sql.ErrNoRows {
		return nil
	}
	if err != nil {
		return errors.Wrap(err, "failed to load station set")
	}
	set.LastPriceUpdateAt = lastPriceUpdate.Time
	set.PriceCursor = priceCursor.Time

	if err := repo.restoreStations(set); err != nil {
		return err
	}
	if err := repo.restorePrices(set); err != nil {
		return err
	}

	repo.set = set
	log.Printf("restored %d cached stations for instance %q", len(set.Stations), repo.instance)
	return nil
}

func (repo *StationRepository) restoreStations(set *models.StationSet) error {
	rows, err := repo.db.Query(selectStationsSQL, repo.instance)
	if err != nil {
		return errors.Wrap(err, "failed to load stations")
	}
	defer closeRows(rows)

	for rows.Next() {
		station := &models.Station{Prices: make(map[models.FuelType]models.PriceEntry)}
		if err := rows.Scan(&station.ID, &station.Name, &station.Brand, &station.Postcode,
			&station.Latitude, &station.Longitude, &station.DistanceMiles, &station.OpenToday,
			&station.IsMotorway, &station.IsSupermarket,
		); err != nil {
			return errors.Wrap(err, "failed to scan station row")
		}
		set.Stations[station.ID] = station
	}
	return errors.Wrap(rows.Err(), "error iterating over station rows")
}

func (repo *StationRepository) restorePrices(set *models.StationSet) error {
	rows, err := repo.db.Query(selectPricesSQL, repo.instance)
	if err != nil {
		return errors.Wrap(err, "failed to load prices")
	}
	defer closeRows(rows)

	for rows.Next() {
		var stationId, fuelCode string
		var entry models.PriceEntry
		if err := rows.Scan(&stationId, &fuelCode, &entry.PencePerLitre, &entry.UpdatedAt); err != nil {
			return errors.Wrap(err, "failed to scan price row")
		}
		station, ok := set.Stations[stationId]
		if !ok {
			continue
		}
		if fuelType, ok := models.ParseFuelType(fuelCode); ok {
			station.Prices[fuelType] = entry
		}
	}
	return errors.Wrap(rows.Err(), "error iterating over price rows")
}

func closeRows(rows *sql.Rows) {
	if err := rows.Close(); err != nil {
		log.Printf("failed to close rows: %v", err)
	}
}
