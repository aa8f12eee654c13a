// Package instrument drives a spectrum analyzer over its SCPI socket.
package instrument

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/APKaudio/OPEN-AIR-sub001/internal/scpi"
	"github.com/APKaudio/OPEN-AIR-sub001/pkg/models"
)

// Conn is the slice of the SCPI client the driver needs. Tests substitute a
// scripted connection.
type Conn interface {
	Write(cmd string) error
	Query(cmd string) (string, error)
	Set(cmd, value string) error
	WaitOPC(timeout time.Duration) scpi.OPCResult
}

// Analyzer issues instrument-level operations on top of a SCPI connection.
type Analyzer struct {
	conn Conn
	log  zerolog.Logger
}

func NewAnalyzer(conn Conn, logger zerolog.Logger) *Analyzer {
	return &Analyzer{conn: conn, log: logger}
}

// Identify returns the *IDN? string (maker, model, serial, firmware).
func (a *Analyzer) Identify() (string, error) {
	return a.conn.Query("*IDN?")
}

// FreqWindow is the instrument's active start/stop window in Hz.
type FreqWindow struct {
	StartHz float64
	StopHz  float64
}

// SetFreqWindow programs start and stop, then reads both back in one chained
// query so the caller sees what the instrument actually accepted.
func (a *Analyzer) SetFreqWindow(startHz, stopHz float64) (FreqWindow, error) {
	if stopHz <= startHz {
		return FreqWindow{}, fmt.Errorf("stop frequency %v must exceed start %v", stopHz, startHz)
	}
	cmd := fmt.Sprintf(":SENS:FREQ:STAR %s;:SENS:FREQ:STOP %s;:SENS:FREQ:STAR?;:SENS:FREQ:STOP?",
		formatHz(startHz), formatHz(stopHz))
	resp, err := a.conn.Query(cmd)
	if err != nil {
		return FreqWindow{}, err
	}
	parts := strings.Split(resp, ";")
	if len(parts) < 2 {
		return FreqWindow{}, fmt.Errorf("unexpected frequency window reply %q", resp)
	}
	start, err1 := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	stop, err2 := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err1 != nil || err2 != nil {
		return FreqWindow{}, fmt.Errorf("unparseable frequency window reply %q", resp)
	}
	return FreqWindow{StartHz: start, StopHz: stop}, nil
}

// SetCenterSpan programs the window as center/span.
func (a *Analyzer) SetCenterSpan(centerHz, spanHz float64) error {
	if spanHz <= 0 {
		return fmt.Errorf("span must be positive, got %v", spanHz)
	}
	if err := a.conn.Set(":SENS:FREQ:CENT", formatHz(centerHz)); err != nil {
		return err
	}
	return a.conn.Set(":SENS:FREQ:SPAN", formatHz(spanHz))
}

// SetRBW programs the resolution bandwidth in Hz.
func (a *Analyzer) SetRBW(rbwHz float64) error {
	return a.conn.Set(":SENS:BAND:RES", formatHz(rbwHz))
}

// SetVBW programs the video bandwidth in Hz.
func (a *Analyzer) SetVBW(vbwHz float64) error {
	return a.conn.Set(":SENS:BAND:VID", formatHz(vbwHz))
}

// SetRefLevel programs the reference level in dBm.
func (a *Analyzer) SetRefLevel(dbm float64) error {
	return a.conn.Set(":DISP:WIND:TRAC:Y:RLEV", strconv.FormatFloat(dbm, 'f', -1, 64))
}

// SetAttenuation programs input attenuation in dB.
func (a *Analyzer) SetAttenuation(db float64) error {
	return a.conn.Set(":SENS:POW:RF:ATT", strconv.FormatFloat(db, 'f', -1, 64))
}

// SetPreamp toggles the internal preamplifier.
func (a *Analyzer) SetPreamp(on bool) error {
	v := "OFF"
	if on {
		v = "ON"
	}
	return a.conn.Set(":SENS:POW:RF:GAIN:STAT", v)
}

// SetTraceMode assigns a mode (WRIT, MAXH, MINH, AVER, BLANK) to one of the
// numbered traces.
func (a *Analyzer) SetTraceMode(trace int, mode string) error {
	if trace < 1 {
		return fmt.Errorf("trace number must be >= 1, got %d", trace)
	}
	mode = strings.ToUpper(strings.TrimSpace(mode))
	switch mode {
	case "WRIT", "MAXH", "MINH", "AVER", "BLANK", "VIEW":
	default:
		return fmt.Errorf("unknown trace mode %q", mode)
	}
	return a.conn.Set(fmt.Sprintf(":TRAC%d:MODE", trace), mode)
}

// PlaceMarkers drops numbered markers on the given frequencies, up to the
// instrument's usual limit of six.
func (a *Analyzer) PlaceMarkers(freqsHz []float64) error {
	if len(freqsHz) > 6 {
		freqsHz = freqsHz[:6]
	}
	for i, f := range freqsHz {
		n := i + 1
		if err := a.conn.Set(fmt.Sprintf(":CALC:MARK%d:STAT", n), "ON"); err != nil {
			return err
		}
		if err := a.conn.Set(fmt.Sprintf(":CALC:MARK%d:X", n), formatHz(f)); err != nil {
			return err
		}
	}
	return nil
}

// MarkerPeak reads the power at a numbered marker.
func (a *Analyzer) MarkerPeak(marker int) (float64, error) {
	resp, err := a.conn.Query(fmt.Sprintf(":CALC:MARK%d:Y?", marker))
	if err != nil {
		return 0, err
	}
	return strconv.ParseFloat(strings.TrimSpace(resp), 64)
}

// FetchTrace reads trace amplitudes and reconstructs the frequency axis by
// spacing the points evenly between startHz and stopHz. The instrument reports
// amplitudes only; the axis is implied by the active window.
func (a *Analyzer) FetchTrace(trace int, startHz, stopHz float64) ([]models.TracePoint, error) {
	resp, err := a.conn.Query(fmt.Sprintf(":TRAC:DATA? TRACE%d", trace))
	if err != nil {
		return nil, err
	}
	fields := strings.Split(resp, ",")
	var powers []float64
	for _, f := range fields {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, fmt.Errorf("unparseable trace value %q: %w", f, err)
		}
		powers = append(powers, v)
	}
	if len(powers) == 0 {
		return nil, fmt.Errorf("empty trace response")
	}

	points := make([]models.TracePoint, len(powers))
	if len(powers) == 1 {
		points[0] = models.TracePoint{FrequencyHz: startHz, PowerDBm: powers[0]}
		return points, nil
	}
	step := (stopHz - startHz) / float64(len(powers)-1)
	for i, p := range powers {
		points[i] = models.TracePoint{FrequencyHz: startHz + float64(i)*step, PowerDBm: p}
	}
	return points, nil
}

// formatHz renders a frequency for SCPI without exponent notation.
func formatHz(hz float64) string {
	return strconv.FormatFloat(hz, 'f', -1, 64)
}
