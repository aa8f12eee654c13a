package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/APKaudio/OPEN-AIR-sub001/pkg/models"
)

func TestMarkerLoadMissingFile(t *testing.T) {
	m := NewMarkerStore(filepath.Join(t.TempDir(), "MARKERS.CSV"))

	markers, err := m.Load()
	require.NoError(t, err)
	assert.Empty(t, markers)
}

func TestMarkerLoadParsesTable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "MARKERS.CSV")
	raw := "ZONE,GROUP,NAME,DEVICE,FREQ,Peak\n" +
		"Stage,Vocals,Lead,SennEW100,512.375,-61.20\n" +
		"Stage,Vocals,Backup,SennEW100,514.100,\n" +
		"FOH,Comms,IEM1,ShurePSM,bogus,-50\n" + // bad freq, skipped
		"Lobby,Spare,Unit,GenMic,488.000\n" // no peak column
	require.NoError(t, os.WriteFile(path, []byte(raw), 0o644))

	m := NewMarkerStore(path)
	markers, err := m.Load()
	require.NoError(t, err)
	require.Len(t, markers, 3)

	assert.Equal(t, "Stage", markers[0].Zone)
	assert.Equal(t, "Lead", markers[0].Name)
	assert.Equal(t, 512.375, markers[0].FreqMHz)
	require.NotNil(t, markers[0].PeakDBm)
	assert.Equal(t, -61.2, *markers[0].PeakDBm)

	assert.Nil(t, markers[1].PeakDBm)
	assert.Equal(t, "Lobby", markers[2].Zone)
	assert.Nil(t, markers[2].PeakDBm)
}

func TestMarkerSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "MARKERS.CSV")
	m := NewMarkerStore(path)

	peak := -55.5
	in := []models.Marker{
		{Zone: "Stage", Group: "Vocals", Name: "Lead", Device: "EW100", FreqMHz: 512.375, PeakDBm: &peak},
		{Zone: "FOH", Group: "Comms", Name: "IEM1", Device: "PSM", FreqMHz: 488.0},
	}
	require.NoError(t, m.Save(in))

	out, err := m.Load()
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, in[0].Zone, out[0].Zone)
	assert.Equal(t, in[0].FreqMHz, out[0].FreqMHz)
	require.NotNil(t, out[0].PeakDBm)
	assert.Equal(t, peak, *out[0].PeakDBm)
	assert.Nil(t, out[1].PeakDBm)
}

func TestZonesFromMarkers(t *testing.T) {
	markers := []models.Marker{
		{Zone: "Stage", Device: "a", FreqMHz: 500},
		{Zone: "Stage", Device: "b", FreqMHz: 502},
		{Zone: "FOH", Device: "c", FreqMHz: 510},
		{Zone: "", Device: "orphan", FreqMHz: 520},
	}

	zones := ZonesFromMarkers(markers)
	require.Len(t, zones, 2)
	assert.Len(t, zones["Stage"].Emitters, 2)
	assert.Len(t, zones["FOH"].Emitters, 1)
	assert.Equal(t, 510.0, zones["FOH"].Emitters[0].FreqMHz)
}
