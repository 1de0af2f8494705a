package models

import (
	"strings"
	"time"
)

type Location struct {
	AddressLine1 string  `json:"address_line_1"`
	AddressLine2 string  `json:"address_line_2,omitempty"`
	City         string  `json:"city"`
	Country      string  `json:"country"`
	County       string  `json:"county,omitempty"`
	Postcode     string  `json:"postcode"`
	Latitude     float64 `json:"latitude,string"`
	Longitude    float64 `json:"longitude,string"`
}

type DailyOpeningTimes struct {
	Open      string `json:"open"`
	Close     string `json:"close"`
	Is24Hours bool   `json:"is_24_hours"`
}

type PetrolFillingStation struct {
	NodeId                      string     `json:"node_id"`
	MftOrganisationName         string     `json:"mft_organisation_name"`
	PublicPhoneNumber           string     `json:"public_phone_number"`
	TradingName                 string     `json:"trading_name"`
	IsSameTradingAndBrandName   bool       `json:"is_same_trading_and_brand_name"`
	BrandName                   string     `json:"brand_name"`
	TemporaryClosure            bool       `json:"temporary_closure"`
	PermanentClosure            bool       `json:"permanent_closure"`
	PermanentClosureDate        *time.Time `json:"permanent_closure_date"`
	IsMotorwayServiceStation    bool       `json:"is_motorway_service_station"`
	IsSupermarketServiceStation bool       `json:"is_supermarket_service_station"`
	Location                    Location   `json:"location"`
	Amenities                   []string   `json:"amenities"`
	OpeningTimes                struct {
		UsualDays   map[string]DailyOpeningTimes `json:"usual_days"`
		BankHoliday struct {
			Type      string `json:"type"`
			OpenTime  string `json:"open_time"`
			CloseTime string `json:"close_time"`
			Is24Hours bool   `json:"is_24_hours"`
		} `json:"bank_holiday"`
	} `json:"opening_times"`
	FuelTypes []string `json:"fuel_types"`
}

var weekdays = []string{"sunday", "monday", "tuesday", "wednesday", "thursday", "friday", "saturday"}

// OpeningToday renders the station's usual opening hours for the given day as
// a short digest: "24h", "HH:MM-HH:MM", or "" when the data is unusable.
func (pfs *PetrolFillingStation) OpeningToday(now time.Time) string {
	times, ok := pfs.OpeningTimes.UsualDays[weekdays[now.Weekday()]]
	if !ok {
		return ""
	}
	if times.Is24Hours {
		return "24h"
	}

	open := clipHHMM(times.Open)
	close := clipHHMM(times.Close)
	if open == "" || close == "" {
		return ""
	}
	if open == "00:00" && close == "00:00" {
		return ""
	}
	return open + "-" + close
}

func clipHHMM(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > 5 {
		return s[:5]
	}
	return s
}

type FuelPrice struct {
	FuelType         string    `json:"fuel_type"`
	Price            float64   `json:"price"`
	PriceLastUpdated time.Time `json:"price_last_updated"`
}

type ForecourtPrices struct {
	NodeId              string      `json:"node_id"`
	MftOrganisationName string      `json:"mft_organisation_name"`
	PublicPhoneNumber   string      `json:"public_phone_number"`
	TradingName         string      `json:"trading_name"`
	FuelPrices          []FuelPrice `json:"fuel_prices"`
}

type MetaData struct {
	BatchNumber  int  `json:"batch_number"`
	BatchSize    int  `json:"batch_size"`
	TotalBatches int  `json:"total_batches"`
	Cached       bool `json:"cached"`
}
