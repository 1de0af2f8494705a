package models

// Retailer is the public-facing identity behind a forecourt brand, used to
// decorate station listings with a website and favicon.
type Retailer struct {
	Name    string  `json:"name"`
	Url     string  `json:"url"`
	Favicon *string `json:"favicon,omitempty"`
}

func (r *Retailer) ToCSV() []string {
	row := []string{r.Name, r.Url, ""}
	if r.Favicon != nil {
		row[2] = *r.Favicon
	}
	return row
}

func RetailerFromCSV(record []string) *Retailer {
	retailer := &Retailer{
		Name: record[0],
		Url:  record[1],
	}
	if len(record) == 3 && record[2] != "" {
		retailer.Favicon = &record[2]
	}
	return retailer
}
