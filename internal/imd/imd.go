// Package imd computes intermodulation distortion products among emitters
// grouped into spatial zones.
package imd

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"

	"github.com/APKaudio/OPEN-AIR-sub001/pkg/models"
)

// DistanceLimitMeters gates cross-zone analysis: zone pairs farther apart do
// not produce meaningful intermod interaction.
const DistanceLimitMeters = 100.0

// The four fixed product formulas.
const (
	Order3Low  = "2f1-f2"
	Order3High = "2f2-f1"
	Order5Low  = "3f1-2f2"
	Order5High = "3f2-2f1"
)

// Options selects which products to compute and how to filter them.
type Options struct {
	Include3rdOrder  bool
	Include5thOrder  bool
	IncludeCrossZone bool
	// In-band bounds in MHz. The filter is applied only when InBandHighMHz >
	// InBandLowMHz; otherwise all positive frequencies pass.
	InBandLowMHz  float64
	InBandHighMHz float64
}

// Distance returns the Euclidean distance between two zone positions.
func Distance(x1, y1, x2, y2 float64) float64 {
	return math.Hypot(x1-x2, y1-y2)
}

// Severity is a static lookup by order: 3rd-order products are High,
// 5th-order Medium, anything else Low.
func Severity(order string) string {
	switch order {
	case Order3Low, Order3High:
		return "High"
	case Order5Low, Order5High:
		return "Medium"
	default:
		return "Low"
	}
}

func round3(v float64) float64 { return math.Round(v*1000) / 1000 }
func round2(v float64) float64 { return math.Round(v*100) / 100 }

// productsForPair computes the four formulas for one emitter pair and appends
// the products that survive the order and band filters. f1/f2 arrive in MHz.
func productsForPair(dst []models.IMDProduct, zone1, zone2, kind string, dist float64, f1, f2 float64, dev1, dev2 string, opts Options) []models.IMDProduct {
	candidates := []struct {
		order string
		freq  float64
	}{
		{Order3Low, 2*f1 - f2},
		{Order3High, 2*f2 - f1},
		{Order5Low, 3*f1 - 2*f2},
		{Order5High, 3*f2 - 2*f1},
	}

	bandFilter := opts.InBandHighMHz > opts.InBandLowMHz
	for _, c := range candidates {
		if c.freq <= 0 {
			continue
		}
		if bandFilter && (c.freq < opts.InBandLowMHz || c.freq > opts.InBandHighMHz) {
			continue
		}
		is3rd := c.order == Order3Low || c.order == Order3High
		if is3rd && !opts.Include3rdOrder {
			continue
		}
		if !is3rd && !opts.Include5thOrder {
			continue
		}
		dst = append(dst, models.IMDProduct{
			Zone1:       zone1,
			Zone2:       zone2,
			Type:        kind,
			Order:       c.order,
			DistanceM:   round2(dist),
			FreqMHz:     round3(c.freq),
			Severity:    Severity(c.order),
			Device1:     dev1,
			Device2:     dev2,
			ParentFreq1: round3(f1),
			ParentFreq2: round3(f2),
		})
	}
	return dst
}

// Products computes all intra-zone products, plus cross-zone products for
// zone pairs within DistanceLimitMeters when enabled. Results are sorted by
// resulting frequency.
func Products(zones map[string]models.Zone, opts Options) ([]models.IMDProduct, error) {
	if !opts.Include3rdOrder && !opts.Include5thOrder {
		return nil, fmt.Errorf("no product orders selected")
	}

	// Deterministic zone order.
	names := make([]string, 0, len(zones))
	for name := range zones {
		names = append(names, name)
	}
	sort.Strings(names)

	var results []models.IMDProduct

	for _, name := range names {
		emitters := zones[name].Emitters
		for i := 0; i < len(emitters); i++ {
			for j := i + 1; j < len(emitters); j++ {
				f1, dev1 := emitters[i].FreqMHz, emitters[i].Device
				f2, dev2 := emitters[j].FreqMHz, emitters[j].Device
				if f1 > f2 {
					f1, f2 = f2, f1
					dev1, dev2 = dev2, dev1
				}
				results = productsForPair(results, name, name, models.IMDIntraZone, 0, f1, f2, dev1, dev2, opts)
			}
		}
	}

	if opts.IncludeCrossZone {
		for i := 0; i < len(names); i++ {
			for j := i + 1; j < len(names); j++ {
				z1, z2 := zones[names[i]], zones[names[j]]
				dist := Distance(z1.X, z1.Y, z2.X, z2.Y)
				if dist > DistanceLimitMeters {
					continue
				}
				for _, e1 := range z1.Emitters {
					for _, e2 := range z2.Emitters {
						results = productsForPair(results, names[i], names[j], models.IMDCrossZone, dist,
							e1.FreqMHz, e2.FreqMHz, e1.Device, e2.Device, opts)
					}
				}
			}
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].FreqMHz < results[j].FreqMHz
	})
	return results, nil
}

// WriteCSV exports products in the tabular layout used by the rest of the
// tooling.
func WriteCSV(w io.Writer, products []models.IMDProduct) error {
	cw := csv.NewWriter(w)
	header := []string{"Zone_1", "Zone_2", "Type", "Order", "Distance", "Frequency_MHz", "Severity", "Device_1", "Device_2", "Parent_Freq1", "Parent_Freq2"}
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, p := range products {
		row := []string{
			p.Zone1,
			p.Zone2,
			p.Type,
			p.Order,
			strconv.FormatFloat(p.DistanceM, 'f', 2, 64),
			strconv.FormatFloat(p.FreqMHz, 'f', 3, 64),
			p.Severity,
			p.Device1,
			p.Device2,
			strconv.FormatFloat(p.ParentFreq1, 'f', 3, 64),
			strconv.FormatFloat(p.ParentFreq2, 'f', 3, 64),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
