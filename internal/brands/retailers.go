// Package brands maps upstream brand names onto retailer identities used to
// decorate station listings.
package brands

import (
	"encoding/csv"
	_ "embed"
	"io"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/fuelwatch/fuelwatch/internal/models"
)

//go:embed retailers.csv
var retailersCSV string

type Retailers map[string]*models.Retailer

// GetRetailersList parses the embedded retailer catalogue. The first row is a
// header.
func GetRetailersList() ([]*models.Retailer, error) {
	reader := csv.NewReader(strings.NewReader(retailersCSV))
	reader.FieldsPerRecord = -1

	arr := make([]*models.Retailer, 0, 32)
	header := true
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, "failed to load retailers")
		}
		if header {
			header = false
			continue
		}
		if len(record) < 2 {
			return nil, errors.Newf("malformed retailer record: %v", record)
		}
		arr = append(arr, models.RetailerFromCSV(record))
	}

	return arr, nil
}

func GetRetailersMap() (Retailers, error) {
	retailers, err := GetRetailersList()
	if err != nil {
		return nil, err
	}

	m := make(Retailers, len(retailers))
	for _, record := range retailers {
		if _, ok := m[record.Name]; ok {
			return nil, errors.Newf("duplicate key detected: %s", record.Name)
		}
		m[record.Name] = record
	}

	return m, nil
}
