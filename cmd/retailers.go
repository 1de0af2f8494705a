package cmd

import (
	"encoding/csv"
	"fmt"
	"log"
	"net/http"
	neturl "net/url"
	"os"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/fuelwatch/fuelwatch/internal/brands"
)

// Retailers re-resolves the favicon for every retailer in the embedded
// catalogue and writes an updated CSV to outPath, ready to be committed back
// into internal/brands.
func Retailers(outPath string) error {

	retailers, err := brands.GetRetailersList()
	if err != nil {
		return err
	}

	client := &http.Client{Timeout: 15 * time.Second}
	for _, retailer := range retailers {
		favicon, err := resolveFavicon(client, retailer.Url)
		if err != nil {
			log.Printf("favicon lookup failed for %s: %v", retailer.Name, err)
			continue
		}
		retailer.Favicon = &favicon
	}

	f, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", outPath, err)
	}
	defer func() {
		if err := f.Close(); err != nil {
			log.Printf("failed to close %s: %v", outPath, err)
		}
	}()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"name", "url", "favicon"}); err != nil {
		return err
	}
	for _, retailer := range retailers {
		if err := w.Write(retailer.ToCSV()); err != nil {
			return err
		}
	}
	w.Flush()

	log.Printf("wrote %d retailers to %s", len(retailers), outPath)
	return w.Error()
}

// resolveFavicon scrapes the site's <link rel="icon"> (or falls back to
// /favicon.ico) and returns an absolute URL.
func resolveFavicon(client *http.Client, site string) (string, error) {
	resp, err := client.Get(site)
	if err != nil {
		return "", err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode > 299 {
		return "", fmt.Errorf("unexpected status: %s", resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return "", err
	}

	href := "/favicon.ico"
	doc.Find(`link[rel~="icon"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if v, ok := s.Attr("href"); ok && v != "" {
			href = v
			return false
		}
		return true
	})

	base, err := neturl.Parse(site)
	if err != nil {
		return "", err
	}
	ref, err := neturl.Parse(href)
	if err != nil {
		return "", err
	}
	return base.ResolveReference(ref).String(), nil
}
