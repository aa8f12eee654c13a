package store

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/APKaudio/OPEN-AIR-sub001/pkg/models"
)

// markerHeader is the column layout of the marker table.
var markerHeader = []string{"ZONE", "GROUP", "NAME", "DEVICE", "FREQ", "Peak"}

// MarkerStore reads and writes the marker table CSV.
type MarkerStore struct {
	path string
}

func NewMarkerStore(path string) *MarkerStore {
	return &MarkerStore{path: path}
}

// Load parses the marker table. Rows with an unparseable frequency are
// skipped; an empty or missing Peak column yields a nil PeakDBm.
func (m *MarkerStore) Load() ([]models.Marker, error) {
	f, err := os.Open(m.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open markers file: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read markers file: %w", err)
	}

	var markers []models.Marker
	for i, row := range rows {
		if len(row) < 5 {
			continue
		}
		if i == 0 && strings.EqualFold(row[0], "ZONE") {
			continue
		}
		freq, err := strconv.ParseFloat(strings.TrimSpace(row[4]), 64)
		if err != nil {
			continue
		}
		mk := models.Marker{
			Zone:    strings.TrimSpace(row[0]),
			Group:   strings.TrimSpace(row[1]),
			Name:    strings.TrimSpace(row[2]),
			Device:  strings.TrimSpace(row[3]),
			FreqMHz: freq,
		}
		if len(row) > 5 {
			if peak, err := strconv.ParseFloat(strings.TrimSpace(row[5]), 64); err == nil {
				mk.PeakDBm = &peak
			}
		}
		markers = append(markers, mk)
	}
	return markers, nil
}

// Save rewrites the marker table with a header row.
func (m *MarkerStore) Save(markers []models.Marker) error {
	f, err := os.Create(m.path)
	if err != nil {
		return fmt.Errorf("create markers file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(markerHeader); err != nil {
		return err
	}
	for _, mk := range markers {
		peak := ""
		if mk.PeakDBm != nil {
			peak = strconv.FormatFloat(*mk.PeakDBm, 'f', 2, 64)
		}
		row := []string{
			mk.Zone,
			mk.Group,
			mk.Name,
			mk.Device,
			strconv.FormatFloat(mk.FreqMHz, 'f', 3, 64),
			peak,
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

// ZonesFromMarkers groups markers by zone name. Marker rows carry no
// coordinates, so grouped zones sit at the origin until positioned by the
// caller.
func ZonesFromMarkers(markers []models.Marker) map[string]models.Zone {
	zones := make(map[string]models.Zone)
	for _, mk := range markers {
		if mk.Zone == "" {
			continue
		}
		z := zones[mk.Zone]
		z.Emitters = append(z.Emitters, models.Emitter{FreqMHz: mk.FreqMHz, Device: mk.Device})
		zones[mk.Zone] = z
	}
	return zones
}
