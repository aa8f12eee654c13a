package imd

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/APKaudio/OPEN-AIR-sub001/pkg/models"
)

func zone(x, y float64, emitters ...models.Emitter) models.Zone {
	return models.Zone{Emitters: emitters, X: x, Y: y}
}

func TestThirdOrderExample(t *testing.T) {
	zones := map[string]models.Zone{
		"A": zone(0, 0,
			models.Emitter{FreqMHz: 100.0, Device: "dev1"},
			models.Emitter{FreqMHz: 150.0, Device: "dev2"},
		),
	}

	products, err := Products(zones, Options{Include3rdOrder: true})
	require.NoError(t, err)
	require.Len(t, products, 2)

	// 2*100-150 = 50 and 2*150-100 = 200, sorted ascending.
	assert.Equal(t, 50.0, products[0].FreqMHz)
	assert.Equal(t, Order3Low, products[0].Order)
	assert.Equal(t, 200.0, products[1].FreqMHz)
	assert.Equal(t, Order3High, products[1].Order)

	for _, p := range products {
		assert.Equal(t, models.IMDIntraZone, p.Type)
		assert.Equal(t, "High", p.Severity)
		assert.Equal(t, 0.0, p.DistanceM)
		assert.Equal(t, "dev1", p.Device1)
		assert.Equal(t, "dev2", p.Device2)
	}
}

func TestFourProductsPerPair(t *testing.T) {
	zones := map[string]models.Zone{
		"A": zone(0, 0,
			models.Emitter{FreqMHz: 470.0, Device: "mic1"},
			models.Emitter{FreqMHz: 471.2, Device: "mic2"},
			models.Emitter{FreqMHz: 473.8, Device: "mic3"},
		),
	}

	products, err := Products(zones, Options{Include3rdOrder: true, Include5thOrder: true})
	require.NoError(t, err)

	// 3 unordered pairs, 4 formulas each, all positive at these frequencies.
	assert.Len(t, products, 12)

	// Sorted by resulting frequency.
	for i := 1; i < len(products); i++ {
		assert.LessOrEqual(t, products[i-1].FreqMHz, products[i].FreqMHz)
	}
}

func TestParentsSwappedSoF1IsLower(t *testing.T) {
	zones := map[string]models.Zone{
		"A": zone(0, 0,
			models.Emitter{FreqMHz: 150.0, Device: "high"},
			models.Emitter{FreqMHz: 100.0, Device: "low"},
		),
	}

	products, err := Products(zones, Options{Include3rdOrder: true})
	require.NoError(t, err)
	require.NotEmpty(t, products)

	for _, p := range products {
		assert.Equal(t, 100.0, p.ParentFreq1)
		assert.Equal(t, 150.0, p.ParentFreq2)
		assert.Equal(t, "low", p.Device1)
		assert.Equal(t, "high", p.Device2)
	}
}

func TestNonPositiveProductsDropped(t *testing.T) {
	// 2*10-500 and 3*10-2*500 are far below zero.
	zones := map[string]models.Zone{
		"A": zone(0, 0,
			models.Emitter{FreqMHz: 10.0, Device: "a"},
			models.Emitter{FreqMHz: 500.0, Device: "b"},
		),
	}

	products, err := Products(zones, Options{Include3rdOrder: true, Include5thOrder: true})
	require.NoError(t, err)

	for _, p := range products {
		assert.Greater(t, p.FreqMHz, 0.0)
	}
	// Only 2f2-f1=990 and 3f2-2f1=1480 survive.
	assert.Len(t, products, 2)
}

func TestCrossZoneGatedByDistance(t *testing.T) {
	near := map[string]models.Zone{
		"A": zone(0, 0, models.Emitter{FreqMHz: 100.0, Device: "a"}),
		"B": zone(60, 80, models.Emitter{FreqMHz: 150.0, Device: "b"}), // exactly 100 m
	}
	far := map[string]models.Zone{
		"A": zone(0, 0, models.Emitter{FreqMHz: 100.0, Device: "a"}),
		"B": zone(60, 81, models.Emitter{FreqMHz: 150.0, Device: "b"}), // just over 100 m
	}

	opts := Options{Include3rdOrder: true, IncludeCrossZone: true}

	products, err := Products(near, opts)
	require.NoError(t, err)
	require.NotEmpty(t, products)
	for _, p := range products {
		assert.Equal(t, models.IMDCrossZone, p.Type)
		assert.Equal(t, 100.0, p.DistanceM)
	}

	products, err = Products(far, opts)
	require.NoError(t, err)
	assert.Empty(t, products)
}

func TestCrossZoneDisabled(t *testing.T) {
	zones := map[string]models.Zone{
		"A": zone(0, 0, models.Emitter{FreqMHz: 100.0, Device: "a"}),
		"B": zone(1, 1, models.Emitter{FreqMHz: 150.0, Device: "b"}),
	}

	products, err := Products(zones, Options{Include3rdOrder: true, Include5thOrder: true})
	require.NoError(t, err)
	assert.Empty(t, products) // single emitter per zone, no cross-zone
}

func TestInBandFilter(t *testing.T) {
	zones := map[string]models.Zone{
		"A": zone(0, 0,
			models.Emitter{FreqMHz: 100.0, Device: "dev1"},
			models.Emitter{FreqMHz: 150.0, Device: "dev2"},
		),
	}

	products, err := Products(zones, Options{
		Include3rdOrder: true,
		InBandLowMHz:    40,
		InBandHighMHz:   60,
	})
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, 50.0, products[0].FreqMHz)
}

func TestOrderFlags(t *testing.T) {
	zones := map[string]models.Zone{
		"A": zone(0, 0,
			models.Emitter{FreqMHz: 500.0, Device: "d1"},
			models.Emitter{FreqMHz: 502.0, Device: "d2"},
		),
	}

	only5th, err := Products(zones, Options{Include5thOrder: true})
	require.NoError(t, err)
	require.Len(t, only5th, 2)
	for _, p := range only5th {
		assert.Equal(t, "Medium", p.Severity)
	}

	_, err = Products(zones, Options{})
	assert.Error(t, err)
}

func TestSeverityLookup(t *testing.T) {
	assert.Equal(t, "High", Severity(Order3Low))
	assert.Equal(t, "High", Severity(Order3High))
	assert.Equal(t, "Medium", Severity(Order5Low))
	assert.Equal(t, "Medium", Severity(Order5High))
	assert.Equal(t, "Low", Severity("4f1-3f2"))
}

func TestWriteCSV(t *testing.T) {
	zones := map[string]models.Zone{
		"A": zone(0, 0,
			models.Emitter{FreqMHz: 100.0, Device: "dev1"},
			models.Emitter{FreqMHz: 150.0, Device: "dev2"},
		),
	}
	products, err := Products(zones, Options{Include3rdOrder: true})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, products))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "Zone_1,Zone_2,Type,Order,Distance,Frequency_MHz,Severity,Device_1,Device_2,Parent_Freq1,Parent_Freq2", lines[0])
	assert.Contains(t, lines[1], "50.000")
	assert.Contains(t, lines[2], "200.000")
}
