package handlers

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/APKaudio/OPEN-AIR-sub001/internal/store"
	"github.com/APKaudio/OPEN-AIR-sub001/pkg/models"
)

func newScansHandler(t *testing.T) (*ScansHandler, *store.ScanStore) {
	t.Helper()
	dir := t.TempDir()
	scans, err := store.NewScanStore(filepath.Join(dir, "scans"))
	require.NoError(t, err)
	markers := store.NewMarkerStore(filepath.Join(dir, "MARKERS.CSV"))
	return NewScansHandler(scans, markers), scans
}

func TestListScansEmpty(t *testing.T) {
	handler, _ := newScansHandler(t)

	resp, err := handler.ListScans(context.Background(), nil)
	require.NoError(t, err)
	assert.NotNil(t, resp.Body.Files)
	assert.Empty(t, resp.Body.Files)
}

func TestGetScanData(t *testing.T) {
	handler, scans := newScansHandler(t)

	points := []models.TracePoint{
		{FrequencyHz: 400e6, PowerDBm: -80},
		{FrequencyHz: 401e6, PowerDBm: -81},
	}
	require.NoError(t, scans.Write("venue.csv", points))

	resp, err := handler.GetScanData(context.Background(), &models.GetScanDataRequest{Filename: "venue.csv"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Frequency (Hz)", "Power (dBm)"}, resp.Body.Headers)
	require.Len(t, resp.Body.Data, 2)
	assert.Equal(t, -80.0, resp.Body.Data[0].PowerDBm)
	assert.NotNil(t, resp.Body.Markers)
}

func TestGetScanDataRejectsTraversal(t *testing.T) {
	handler, _ := newScansHandler(t)

	_, err := handler.GetScanData(context.Background(), &models.GetScanDataRequest{Filename: "../../etc/passwd"})
	assert.Error(t, err)
}

func TestGetScanDataNotFound(t *testing.T) {
	handler, _ := newScansHandler(t)

	_, err := handler.GetScanData(context.Background(), &models.GetScanDataRequest{Filename: "missing.csv"})
	assert.Error(t, err)
}

func TestGetLatestScanData(t *testing.T) {
	handler, scans := newScansHandler(t)

	_, err := handler.GetLatestScanData(context.Background(), nil)
	assert.Error(t, err) // nothing captured yet

	require.NoError(t, scans.Write("older.csv", []models.TracePoint{{FrequencyHz: 1, PowerDBm: -1}}))
	older, err := scans.Path("older.csv")
	require.NoError(t, err)
	past := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(older, past, past))
	require.NoError(t, scans.Write("newer.csv", []models.TracePoint{{FrequencyHz: 2, PowerDBm: -2}}))

	resp, err := handler.GetLatestScanData(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, resp.Body.Data, 1)
	assert.Equal(t, 2.0, resp.Body.Data[0].FrequencyHz)
}

func TestGetScanInProgressData(t *testing.T) {
	handler, scans := newScansHandler(t)

	_, err := handler.GetScanInProgressData(context.Background(), nil)
	assert.Error(t, err) // no scan running

	require.NoError(t, scans.Write("active.partial.csv", []models.TracePoint{{FrequencyHz: 1, PowerDBm: -1}}))
	require.NoError(t, scans.SetInProgress("active.partial.csv"))

	resp, err := handler.GetScanInProgressData(context.Background(), nil)
	require.NoError(t, err)
	assert.Len(t, resp.Body.Data, 1)
}

func TestGetMarkers(t *testing.T) {
	dir := t.TempDir()
	scans, err := store.NewScanStore(filepath.Join(dir, "scans"))
	require.NoError(t, err)
	markersPath := filepath.Join(dir, "MARKERS.CSV")
	markers := store.NewMarkerStore(markersPath)
	handler := NewScansHandler(scans, markers)

	resp, err := handler.GetMarkers(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, resp.Body.Markers)

	raw := "ZONE,GROUP,NAME,DEVICE,FREQ,Peak\nStage,Vocals,Lead,EW100,512.375,-61.2\n"
	require.NoError(t, os.WriteFile(markersPath, []byte(raw), 0o644))

	resp, err = handler.GetMarkers(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, resp.Body.Markers, 1)
	assert.Equal(t, "Stage", resp.Body.Markers[0].Zone)
}
