package main

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/rodaine/table"
	"github.com/spf13/cobra"

	"lora-locator/internal/metadata"
)

var metadataCmd = &cobra.Command{
	Use:   "metadata",
	Short: "Print the gateway and sensor catalogs",
	RunE: func(cmd *cobra.Command, args []string) error {
		catalog, err := loadCatalog(cfg)
		if err != nil {
			return err
		}
		printCatalog(os.Stdout, catalog)
		return nil
	},
}

func printCatalog(w io.Writer, catalog *metadata.Catalog) {
	header := color.New(color.BgHiBlue, color.FgHiWhite).SprintfFunc()
	first := color.New(color.FgYellow).SprintfFunc()

	gws := table.New("GATEWAY", "NAME", "LAT", "LON", "ALT (m)").
		WithWriter(w).
		WithHeaderFormatter(header).
		WithFirstColumnFormatter(first)
	for _, g := range catalog.Gateways() {
		gws.AddRow(g.ID, g.Name, fmt.Sprintf("%.6f", g.Position.Lat), fmt.Sprintf("%.6f", g.Position.Lon), g.AltitudeM)
	}
	gws.Print()
	fmt.Fprintln(w)

	sensors := table.New("SENSOR", "ROOM", "FLOOR", "REFERENCE").
		WithWriter(w).
		WithHeaderFormatter(color.New(color.BgHiCyan, color.FgHiWhite).SprintfFunc()).
		WithFirstColumnFormatter(first)
	known := 0
	for _, s := range catalog.Sensors() {
		ref := "unknown"
		if s.HasReference {
			ref = fmt.Sprintf("%.6f,%.6f", s.Reference.Lat, s.Reference.Lon)
			known++
		}
		sensors.AddRow(s.ID, s.Room, s.Floor, ref)
	}
	sensors.Print()
	fmt.Fprintf(w, "\n%d gateways, %d sensors (%d with surveyed position)\n",
		len(catalog.Gateways()), len(catalog.Sensors()), known)
}
