// Package disks is a registry of media geometries iRMX 86 volumes were
// commonly distributed on. It exists for reporting only: given an image, the
// registry can suggest which physical media it was dumped from.
package disks

import (
	_ "embed"
	"encoding/csv"
	"fmt"
	"strings"

	"github.com/gocarina/gocsv"
)

type DiskGeometry struct {
	Name               string `csv:"name"`
	Slug               string `csv:"slug"`
	FirstYearAvailable uint   `csv:"first_year_available"`
	FormFactor         string `csv:"form_factor"`
	IsRemovable        uint   `csv:"is_removable"`

	// BitsPerAddressUnit gives the number of bits in the device's smallest
	// addressible unit of memory. For these Intel-era devices it's always a
	// byte (8); the field is kept for parity with other media tables.
	BitsPerAddressUnit uint `csv:"bits_per_address_unit"`

	// AddressUnitsPerSector gives the number of address units in a sector, or
	// "record".
	AddressUnitsPerSector uint `csv:"address_units_per_sector"`
	SectorsPerTrack       uint `csv:"sectors_per_track"`

	// TotalDataTracks gives the number of data tracks per head.
	TotalDataTracks uint `csv:"total_data_tracks"`
	HiddenTracks    uint `csv:"hidden_tracks"`
	// Heads gives the number of heads in the device.
	Heads uint   `csv:"heads"`
	Notes string `csv:"notes"`
}

// TotalSizeBytes gives the size of the storage device, rounded up to the nearest
// byte. This gives the minimum size of the image file.
func (g *DiskGeometry) TotalSizeBytes() int64 {
	bits := int64(
		g.BitsPerAddressUnit * g.AddressUnitsPerSector * g.SectorsPerTrack *
			g.TotalDataTracks * g.Heads)
	if bits%8 == 0 {
		return bits / 8
	}
	return (bits / 8) + 1
}

////////////////////////////////////////////////////////////////////////////////

//go:embed disk-geometries.csv
var diskGeometriesRawCSV string
var diskGeometries map[string]DiskGeometry

// GetPredefinedDiskGeometry looks up a geometry by its slug.
func GetPredefinedDiskGeometry(slug string) (DiskGeometry, error) {
	geometry, ok := diskGeometries[slug]
	if ok {
		return geometry, nil
	}

	err := fmt.Errorf("no predefined disk geometry exists with slug %q", slug)
	return DiskGeometry{}, err
}

// FindGeometriesBySize returns every known geometry whose total capacity
// matches the given image size exactly.
func FindGeometriesBySize(sizeBytes int64) []DiskGeometry {
	var matches []DiskGeometry
	for _, geometry := range diskGeometries {
		if geometry.TotalSizeBytes() == sizeBytes {
			matches = append(matches, geometry)
		}
	}
	return matches
}

func init() {
	csvReader := csv.NewReader(strings.NewReader(diskGeometriesRawCSV))
	csvReader.Comma = '|'
	// Names like `8" SSSD floppy` carry a bare quote in an unquoted field.
	csvReader.LazyQuotes = true

	var rows []DiskGeometry
	err := gocsv.UnmarshalCSV(csvReader, &rows)
	if err != nil {
		panic(fmt.Errorf("failed to decode disk geometry table: %w", err))
	}

	diskGeometries = make(map[string]DiskGeometry, len(rows))
	for i, row := range rows {
		_, exists := diskGeometries[row.Slug]
		if exists {
			panic(fmt.Errorf(
				"duplicate definition for disk %q found on row %d", row.Slug, i+1))
		}
		diskGeometries[row.Slug] = row
	}
}
