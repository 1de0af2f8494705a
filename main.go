package main

import (
	"log"

	"github.com/spf13/cobra"

	"github.com/fuelwatch/fuelwatch/cmd"
)

func main() {

	var dbPath string
	var port int
	var debug bool
	var forceStations bool
	var retailersOut string

	rootCmd := &cobra.Command{
		Use:   "fuelwatch",
		Short: "Cheapest local fuel prices from the GOV.UK Fuel Finder service",
	}
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "data/fuelwatch.db", "path to the sqlite cache")

	serverCmd := &cobra.Command{
		Use:   "server",
		Short: "Run the HTTP API with scheduled background updates",
		RunE: func(_ *cobra.Command, _ []string) error {
			return cmd.ApiServer(dbPath, port, debug)
		},
	}
	serverCmd.Flags().IntVar(&port, "port", 8080, "HTTP listen port")
	serverCmd.Flags().BoolVar(&debug, "debug", false, "expose pprof endpoints")

	updateCmd := &cobra.Command{
		Use:   "update",
		Short: "Run a single update cycle and print the aggregate",
		RunE: func(_ *cobra.Command, _ []string) error {
			return cmd.Update(dbPath, forceStations)
		},
	}
	updateCmd.Flags().BoolVar(&forceStations, "stations", false, "force a full station discovery")

	retailersCmd := &cobra.Command{
		Use:   "retailers",
		Short: "Refresh retailer favicons in the embedded catalogue",
		RunE: func(_ *cobra.Command, _ []string) error {
			return cmd.Retailers(retailersOut)
		},
	}
	retailersCmd.Flags().StringVar(&retailersOut, "out", "internal/brands/retailers.csv", "output CSV path")

	rootCmd.AddCommand(serverCmd, updateCmd, retailersCmd)

	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
