package instrument

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/APKaudio/OPEN-AIR-sub001/internal/scpi"
)

// Preset is one row of the preset table: a nickname plus a full instrument
// setup.
type Preset struct {
	Nickname    string
	StartMHz    float64
	StopMHz     float64
	RBWHz       float64
	VBWHz       float64
	RefLevelDBm float64
	AttenDB     float64
	Preamp      bool
	Trace1Mode  string
	Trace2Mode  string
	Trace3Mode  string
}

// LoadPresets parses the preset CSV. The expected columns are nickname, start
// MHz, stop MHz, RBW Hz, VBW Hz, reference level dBm, attenuation dB, preamp
// (ON/OFF), and three trace modes. Rows that fail to parse are skipped.
func LoadPresets(path string) ([]Preset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open presets file: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read presets file: %w", err)
	}

	var presets []Preset
	for i, row := range rows {
		if len(row) < 7 {
			continue
		}
		if i == 0 && !isNumeric(row[1]) {
			continue // header
		}
		start, err1 := strconv.ParseFloat(strings.TrimSpace(row[1]), 64)
		stop, err2 := strconv.ParseFloat(strings.TrimSpace(row[2]), 64)
		rbw, err3 := strconv.ParseFloat(strings.TrimSpace(row[3]), 64)
		vbw, err4 := strconv.ParseFloat(strings.TrimSpace(row[4]), 64)
		ref, err5 := strconv.ParseFloat(strings.TrimSpace(row[5]), 64)
		atten, err6 := strconv.ParseFloat(strings.TrimSpace(row[6]), 64)
		if err1 != nil || err2 != nil || err3 != nil || err4 != nil || err5 != nil || err6 != nil {
			continue
		}
		p := Preset{
			Nickname:    strings.TrimSpace(row[0]),
			StartMHz:    start,
			StopMHz:     stop,
			RBWHz:       rbw,
			VBWHz:       vbw,
			RefLevelDBm: ref,
			AttenDB:     atten,
		}
		if len(row) > 7 {
			p.Preamp = strings.EqualFold(strings.TrimSpace(row[7]), "ON")
		}
		if len(row) > 8 {
			p.Trace1Mode = strings.TrimSpace(row[8])
		}
		if len(row) > 9 {
			p.Trace2Mode = strings.TrimSpace(row[9])
		}
		if len(row) > 10 {
			p.Trace3Mode = strings.TrimSpace(row[10])
		}
		presets = append(presets, p)
	}
	return presets, nil
}

func isNumeric(s string) bool {
	_, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	return err == nil
}

// FindPreset looks a preset up by nickname, case-insensitively.
func FindPreset(presets []Preset, nickname string) (Preset, bool) {
	for _, p := range presets {
		if strings.EqualFold(p.Nickname, nickname) {
			return p, true
		}
	}
	return Preset{}, false
}

// ApplyPreset pushes a preset to the instrument step by step, waiting on the
// Operation Complete flag after the frequency window and after the full
// sequence. A failed or timed-out wait aborts the push.
func (a *Analyzer) ApplyPreset(p Preset, opcTimeout time.Duration) error {
	a.log.Info().Str("preset", p.Nickname).Msg("applying instrument preset")

	if _, err := a.SetFreqWindow(p.StartMHz*1e6, p.StopMHz*1e6); err != nil {
		return fmt.Errorf("preset %s: frequency window: %w", p.Nickname, err)
	}
	if res := a.conn.WaitOPC(opcTimeout); res != scpi.OPCPassed {
		return fmt.Errorf("preset %s: frequency window OPC %s", p.Nickname, res)
	}

	if err := a.SetRBW(p.RBWHz); err != nil {
		return fmt.Errorf("preset %s: rbw: %w", p.Nickname, err)
	}
	if p.VBWHz > 0 {
		if err := a.SetVBW(p.VBWHz); err != nil {
			return fmt.Errorf("preset %s: vbw: %w", p.Nickname, err)
		}
	}
	if err := a.SetRefLevel(p.RefLevelDBm); err != nil {
		return fmt.Errorf("preset %s: reference level: %w", p.Nickname, err)
	}
	if err := a.SetAttenuation(p.AttenDB); err != nil {
		return fmt.Errorf("preset %s: attenuation: %w", p.Nickname, err)
	}
	if err := a.SetPreamp(p.Preamp); err != nil {
		return fmt.Errorf("preset %s: preamp: %w", p.Nickname, err)
	}
	for i, mode := range []string{p.Trace1Mode, p.Trace2Mode, p.Trace3Mode} {
		if mode == "" {
			continue
		}
		if err := a.SetTraceMode(i+1, mode); err != nil {
			return fmt.Errorf("preset %s: trace %d mode: %w", p.Nickname, i+1, err)
		}
	}

	if res := a.conn.WaitOPC(opcTimeout); res != scpi.OPCPassed {
		return fmt.Errorf("preset %s: final OPC %s", p.Nickname, res)
	}
	a.log.Info().Str("preset", p.Nickname).Msg("preset applied")
	return nil
}
