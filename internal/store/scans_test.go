package store

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/APKaudio/OPEN-AIR-sub001/pkg/models"
)

func newTestStore(t *testing.T) *ScanStore {
	t.Helper()
	s, err := NewScanStore(t.TempDir())
	require.NoError(t, err)
	return s
}

func TestPathRejectsTraversal(t *testing.T) {
	s := newTestStore(t)

	for _, bad := range []string{"", "../escape.csv", "../../etc/passwd", "sub/../../x.csv"} {
		_, err := s.Path(bad)
		assert.Error(t, err, "filename %q", bad)
	}

	p, err := s.Path("scan.csv")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(s.Dir(), "scan.csv"), p)
}

func TestWriteReadRoundTrip(t *testing.T) {
	s := newTestStore(t)

	points := []models.TracePoint{
		{FrequencyHz: 400000000, PowerDBm: -80.5},
		{FrequencyHz: 400100000, PowerDBm: -79.123},
	}
	require.NoError(t, s.Write("scan.csv", points))

	got, err := s.Read("scan.csv")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 400000000.0, got[0].FrequencyHz)
	assert.Equal(t, -80.5, got[0].PowerDBm)
	assert.Equal(t, -79.123, got[1].PowerDBm)
}

func TestReadSkipsJunkRows(t *testing.T) {
	s := newTestStore(t)

	raw := "Frequency,Power\n400000000,-80.5\nnot,a number\n400100000,-79.0\n"
	require.NoError(t, os.WriteFile(filepath.Join(s.Dir(), "scan.csv"), []byte(raw), 0o644))

	points, err := s.Read("scan.csv")
	require.NoError(t, err)
	assert.Len(t, points, 2)
}

func TestReadMissingFile(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Read("nope.csv")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAppendExtendsFile(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.Append("scan.csv", []models.TracePoint{{FrequencyHz: 1, PowerDBm: -1}}))
	require.NoError(t, s.Append("scan.csv", []models.TracePoint{{FrequencyHz: 2, PowerDBm: -2}}))

	points, err := s.Read("scan.csv")
	require.NoError(t, err)
	require.Len(t, points, 2)
	assert.Equal(t, 1.0, points[0].FrequencyHz)
	assert.Equal(t, 2.0, points[1].FrequencyHz)
}

func TestListNewestFirst(t *testing.T) {
	s := newTestStore(t)

	older := filepath.Join(s.Dir(), "older.csv")
	newer := filepath.Join(s.Dir(), "newer.csv")
	require.NoError(t, os.WriteFile(older, []byte("1,-1\n"), 0o644))
	require.NoError(t, os.WriteFile(newer, []byte("2,-2\n"), 0o644))
	// Not all filesystems give distinct mtimes to back-to-back writes.
	past := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(older, past, past))

	// Non-CSV entries never show up in listings.
	require.NoError(t, os.WriteFile(filepath.Join(s.Dir(), "notes.txt"), []byte("x"), 0o644))

	names, err := s.List()
	require.NoError(t, err)
	assert.Equal(t, []string{"newer.csv", "older.csv"}, names)

	latest, err := s.Latest()
	require.NoError(t, err)
	assert.Equal(t, "newer.csv", latest)
}

func TestListSkipsPartialCaptures(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.Write("done.csv", []models.TracePoint{{FrequencyHz: 1, PowerDBm: -1}}))
	require.NoError(t, s.Write("venue_ab12cd34.partial.csv", []models.TracePoint{{FrequencyHz: 2, PowerDBm: -2}}))

	names, err := s.List()
	require.NoError(t, err)
	assert.Equal(t, []string{"done.csv"}, names)

	// The live capture stays readable through its advertised name.
	require.NoError(t, s.SetInProgress("venue_ab12cd34.partial.csv"))
	name, err := s.InProgress()
	require.NoError(t, err)
	points, err := s.Read(name)
	require.NoError(t, err)
	assert.Len(t, points, 1)
}

func TestLatestEmptyFolder(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Latest()
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestInProgressLifecycle(t *testing.T) {
	s := newTestStore(t)

	_, err := s.InProgress()
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.SetInProgress("active.csv"))
	name, err := s.InProgress()
	require.NoError(t, err)
	assert.Equal(t, "active.csv", name)

	require.NoError(t, s.ClearInProgress())
	_, err = s.InProgress()
	assert.ErrorIs(t, err, ErrNotFound)

	// Clearing twice is fine.
	assert.NoError(t, s.ClearInProgress())
}

func TestRename(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.Write("tmp.csv", []models.TracePoint{{FrequencyHz: 1, PowerDBm: -1}}))
	require.NoError(t, s.Rename("tmp.csv", "final.csv"))

	_, err := s.Read("tmp.csv")
	assert.ErrorIs(t, err, ErrNotFound)
	points, err := s.Read("final.csv")
	require.NoError(t, err)
	assert.Len(t, points, 1)
}
