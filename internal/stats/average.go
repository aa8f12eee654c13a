// Package stats aligns unevenly sampled scan traces onto a common frequency
// axis and computes per-point statistics across them.
package stats

import (
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/stat"

	"github.com/APKaudio/OPEN-AIR-sub001/pkg/models"
)

// Statistic names as requested by callers.
const (
	StatAverage  = "Average"
	StatMedian   = "Median"
	StatRange    = "Range"
	StatStdDev   = "Std Dev"
	StatVariance = "Variance"
	StatPSD      = "PSD (dBm/Hz)"
)

// Known lists every supported statistic, in output column order.
var Known = []string{StatAverage, StatMedian, StatRange, StatStdDev, StatVariance, StatPSD}

// Scan filenames embed the RBW and converter offset used during capture,
// e.g. "venue_RBW10K_HOLD2_Offset-100000_20250821_210502.csv".
var fileMetaPattern = regexp.MustCompile(`_RBW(\d+K?)_HOLD\d+_(?:Offset(-?\d+))?_\d{8}_\d{6}\.csv$`)

// Trace is one loaded scan file.
type Trace struct {
	Name     string
	Points   []models.TracePoint
	RBWHz    float64 // 0 when unknown
	OffsetHz float64
}

// ParseFileMeta extracts the RBW and offset embedded in a scan filename.
// ok is false when the name does not follow the capture convention.
func ParseFileMeta(name string) (rbwHz, offsetHz float64, ok bool) {
	m := fileMetaPattern.FindStringSubmatch(name)
	if m == nil {
		return 0, 0, false
	}
	rbwStr := m[1]
	if last := len(rbwStr) - 1; rbwStr[last] == 'K' {
		v, err := strconv.ParseFloat(rbwStr[:last], 64)
		if err != nil {
			return 0, 0, false
		}
		rbwHz = v * 1000
	} else {
		v, err := strconv.ParseFloat(rbwStr, 64)
		if err != nil {
			return 0, 0, false
		}
		rbwHz = v
	}
	if m[2] != "" {
		offsetHz, _ = strconv.ParseFloat(m[2], 64)
	}
	return rbwHz, offsetHz, true
}

// LoadTrace reads a scan CSV (frequency Hz, power dBm; headerless, but a
// header row is tolerated), drops malformed and duplicate-frequency rows,
// and shifts frequencies by the offset embedded in the filename.
func LoadTrace(path string, log zerolog.Logger) (Trace, error) {
	f, err := os.Open(path)
	if err != nil {
		return Trace{}, fmt.Errorf("open trace: %w", err)
	}
	defer f.Close()

	name := filepath.Base(path)
	tr := Trace{Name: name}
	if rbw, offset, ok := ParseFileMeta(name); ok {
		tr.RBWHz = rbw
		tr.OffsetHz = offset
	} else {
		log.Warn().Str("file", name).Msg("filename does not match the RBW/Offset convention, PSD may be inaccurate")
	}

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	if err != nil {
		return Trace{}, fmt.Errorf("read trace %s: %w", name, err)
	}

	seen := make(map[float64]bool)
	for _, row := range rows {
		if len(row) < 2 {
			continue
		}
		freq, err1 := strconv.ParseFloat(row[0], 64)
		power, err2 := strconv.ParseFloat(row[1], 64)
		if err1 != nil || err2 != nil {
			continue // header or junk row
		}
		freq -= tr.OffsetHz
		if seen[freq] {
			continue
		}
		seen[freq] = true
		tr.Points = append(tr.Points, models.TracePoint{FrequencyHz: freq, PowerDBm: power})
	}

	sort.Slice(tr.Points, func(i, j int) bool {
		return tr.Points[i].FrequencyHz < tr.Points[j].FrequencyHz
	})
	return tr, nil
}

// Result holds the master axis and the computed statistic columns.
type Result struct {
	Frequencies []float64
	Order       []string // computed statistics, in request order
	Columns     map[string][]float64
}

// masterAxis returns the sorted union of all observed frequencies.
func masterAxis(traces []Trace) []float64 {
	seen := make(map[float64]bool)
	var axis []float64
	for _, tr := range traces {
		for _, p := range tr.Points {
			if !seen[p.FrequencyHz] {
				seen[p.FrequencyHz] = true
				axis = append(axis, p.FrequencyHz)
			}
		}
	}
	sort.Float64s(axis)
	return axis
}

// interpolate aligns a trace onto the axis with linear interpolation,
// extending flat beyond the trace's own range.
func interpolate(points []models.TracePoint, axis []float64) []float64 {
	out := make([]float64, len(axis))
	if len(points) == 0 {
		for i := range out {
			out[i] = math.NaN()
		}
		return out
	}
	j := 0
	for i, f := range axis {
		for j < len(points)-1 && points[j+1].FrequencyHz < f {
			j++
		}
		switch {
		case f <= points[0].FrequencyHz:
			out[i] = points[0].PowerDBm
		case f >= points[len(points)-1].FrequencyHz:
			out[i] = points[len(points)-1].PowerDBm
		default:
			lo, hi := points[j], points[j+1]
			if hi.FrequencyHz == lo.FrequencyHz {
				out[i] = lo.PowerDBm
				continue
			}
			t := (f - lo.FrequencyHz) / (hi.FrequencyHz - lo.FrequencyHz)
			out[i] = lo.PowerDBm + t*(hi.PowerDBm-lo.PowerDBm)
		}
	}
	return out
}

// valuesAt gathers the finite values of all aligned traces at one axis index.
func valuesAt(aligned [][]float64, i int) []float64 {
	vals := make([]float64, 0, len(aligned))
	for _, col := range aligned {
		if !math.IsNaN(col[i]) {
			vals = append(vals, col[i])
		}
	}
	return vals
}

func columnFor(kind string, aligned [][]float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		vals := valuesAt(aligned, i)
		if len(vals) == 0 {
			out[i] = math.NaN()
			continue
		}
		switch kind {
		case StatAverage:
			out[i] = stat.Mean(vals, nil)
		case StatMedian:
			sorted := append([]float64(nil), vals...)
			sort.Float64s(sorted)
			out[i] = stat.Quantile(0.5, stat.LinInterp, sorted, nil)
		case StatRange:
			min, max := vals[0], vals[0]
			for _, v := range vals[1:] {
				if v < min {
					min = v
				}
				if v > max {
					max = v
				}
			}
			out[i] = max - min
		case StatStdDev:
			if len(vals) < 2 {
				out[i] = math.NaN()
				continue
			}
			out[i] = stat.StdDev(vals, nil)
		case StatVariance:
			if len(vals) < 2 {
				out[i] = math.NaN()
				continue
			}
			out[i] = stat.Variance(vals, nil)
		}
	}
	return out
}

// psdColumn converts each trace to dBm/Hz using its RBW, then averages across
// traces. Traces without a usable RBW borrow the first valid one; with no
// valid RBW at all the column is NaN.
func psdColumn(traces []Trace, aligned [][]float64, n int, log zerolog.Logger) []float64 {
	out := make([]float64, n)

	firstValid := 0.0
	for _, tr := range traces {
		if tr.RBWHz > 0 {
			firstValid = tr.RBWHz
			break
		}
	}
	if firstValid == 0 {
		log.Warn().Msg("no valid RBW in any trace, PSD column will be NaN")
		for i := range out {
			out[i] = math.NaN()
		}
		return out
	}

	rbws := make([]float64, len(traces))
	for t, tr := range traces {
		if tr.RBWHz > 0 {
			rbws[t] = tr.RBWHz
		} else {
			log.Warn().Str("file", tr.Name).Float64("rbw_hz", firstValid).Msg("trace has no RBW, borrowing first valid value for PSD")
			rbws[t] = firstValid
		}
	}

	for i := range out {
		var sum float64
		var count int
		for t := range aligned {
			v := aligned[t][i]
			if math.IsNaN(v) {
				continue
			}
			linearMW := math.Pow(10, v/10)
			sum += 10 * math.Log10(linearMW/rbws[t])
			count++
		}
		if count == 0 {
			out[i] = math.NaN()
		} else {
			out[i] = sum / float64(count)
		}
	}
	return out
}

// Aggregate aligns the traces onto the union frequency axis and computes the
// requested statistics.
func Aggregate(traces []Trace, kinds []string, log zerolog.Logger) (*Result, error) {
	var usable []Trace
	for _, tr := range traces {
		if len(tr.Points) == 0 {
			log.Warn().Str("file", tr.Name).Msg("trace is empty after cleaning, skipping")
			continue
		}
		usable = append(usable, tr)
	}
	if len(usable) == 0 {
		return nil, fmt.Errorf("no usable traces")
	}

	axis := masterAxis(usable)
	aligned := make([][]float64, len(usable))
	for t, tr := range usable {
		aligned[t] = interpolate(tr.Points, axis)
	}

	res := &Result{
		Frequencies: axis,
		Columns:     make(map[string][]float64),
	}
	for _, kind := range kinds {
		switch kind {
		case StatAverage, StatMedian, StatRange, StatStdDev, StatVariance:
			res.Columns[kind] = columnFor(kind, aligned, len(axis))
		case StatPSD:
			res.Columns[kind] = psdColumn(usable, aligned, len(axis), log)
		default:
			log.Warn().Str("statistic", kind).Msg("unknown statistic requested, skipping")
			continue
		}
		res.Order = append(res.Order, kind)
	}
	if len(res.Order) == 0 {
		return nil, fmt.Errorf("no recognized statistics requested")
	}
	return res, nil
}

var colNameCleaner = regexp.MustCompile(`[^a-zA-Z0-9_]+`)

// cleanColumnName turns a statistic label into a filename fragment,
// e.g. "PSD (dBm/Hz)" -> "PSD", "Std Dev" -> "StdDev".
func cleanColumnName(name string) string {
	s := colNameCleaner.ReplaceAllString(name, "")
	s = regexp.MustCompile(`dBm|Hz`).ReplaceAllString(s, "")
	return s
}

func formatCell(v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'f', 3, 64)
}

func allNaN(col []float64) bool {
	for _, v := range col {
		if !math.IsNaN(v) {
			return false
		}
	}
	return true
}

// WriteOutputs writes one combined CSV plus one headerless CSV per computed
// statistic into a timestamped subfolder of outBase. All-NaN columns are
// skipped for the per-statistic files.
func WriteOutputs(res *Result, outBase, prefix string, now time.Time, log zerolog.Logger) (string, error) {
	timestamp := now.Format("20060102_150405")
	outDir := filepath.Join(outBase, fmt.Sprintf("%s_AppliedMath_%s", prefix, timestamp))
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return "", fmt.Errorf("create output folder: %w", err)
	}

	combined := filepath.Join(outDir, fmt.Sprintf("COMPLETE_MATH_%s_MultiFileAverage_%s.csv", prefix, timestamp))
	f, err := os.Create(combined)
	if err != nil {
		return "", fmt.Errorf("create combined csv: %w", err)
	}
	cw := csv.NewWriter(f)
	header := append([]string{"Frequency (Hz)"}, res.Order...)
	if err := cw.Write(header); err != nil {
		f.Close()
		return "", err
	}
	for i, freq := range res.Frequencies {
		row := make([]string, 0, len(header))
		row = append(row, strconv.FormatFloat(freq, 'f', 3, 64))
		for _, kind := range res.Order {
			row = append(row, formatCell(res.Columns[kind][i]))
		}
		if err := cw.Write(row); err != nil {
			f.Close()
			return "", err
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		f.Close()
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", err
	}
	log.Info().Str("path", combined).Msg("combined statistics saved")

	for _, kind := range res.Order {
		col := res.Columns[kind]
		if allNaN(col) {
			log.Warn().Str("statistic", kind).Msg("all values NaN, per-statistic csv skipped")
			continue
		}
		name := fmt.Sprintf("%s_%s_MultiFileAverage_%s.csv", cleanColumnName(kind), prefix, timestamp)
		path := filepath.Join(outDir, name)
		sf, err := os.Create(path)
		if err != nil {
			return "", fmt.Errorf("create %s csv: %w", kind, err)
		}
		sw := csv.NewWriter(sf)
		for i, freq := range res.Frequencies {
			row := []string{strconv.FormatFloat(freq, 'f', 3, 64), formatCell(col[i])}
			if err := sw.Write(row); err != nil {
				sf.Close()
				return "", err
			}
		}
		sw.Flush()
		if err := sw.Error(); err != nil {
			sf.Close()
			return "", err
		}
		if err := sf.Close(); err != nil {
			return "", err
		}
		log.Info().Str("path", path).Msg("per-statistic csv saved")
	}

	return outDir, nil
}

// AverageScans is the top-level entry: load every file, aggregate, and write
// the output folder. Unreadable files are skipped with a warning.
func AverageScans(paths []string, kinds []string, prefix, outBase string, log zerolog.Logger) (*Result, string, error) {
	if len(paths) == 0 {
		return nil, "", fmt.Errorf("no files provided for averaging")
	}

	var traces []Trace
	for _, p := range paths {
		tr, err := LoadTrace(p, log)
		if err != nil {
			log.Warn().Err(err).Str("file", filepath.Base(p)).Msg("skipping unreadable trace")
			continue
		}
		traces = append(traces, tr)
	}

	res, err := Aggregate(traces, kinds, log)
	if err != nil {
		return nil, "", err
	}

	outDir, err := WriteOutputs(res, outBase, prefix, time.Now(), log)
	if err != nil {
		return nil, "", err
	}
	return res, outDir, nil
}
