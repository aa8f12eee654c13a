// Package store manages the scan-data folder: scan CSV files, the
// in-progress scan pointer, and the marker table.
package store

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/APKaudio/OPEN-AIR-sub001/pkg/models"
)

// inProgressFile advertises the filename of the scan currently being written.
const inProgressFile = "_current_scan_in_progress.txt"

// ErrNotFound reports a missing scan file.
var ErrNotFound = fmt.Errorf("scan file not found")

// ScanStore is a filesystem store over a single scan-data folder.
type ScanStore struct {
	dir string
}

// NewScanStore creates the scan-data folder when missing.
func NewScanStore(dir string) (*ScanStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create scan data folder: %w", err)
	}
	return &ScanStore{dir: dir}, nil
}

// Dir returns the scan-data folder path.
func (s *ScanStore) Dir() string { return s.dir }

// Path resolves a scan filename inside the folder, rejecting anything that
// escapes it.
func (s *ScanStore) Path(filename string) (string, error) {
	if filename == "" {
		return "", fmt.Errorf("empty filename")
	}
	p := filepath.Join(s.dir, filename)
	absDir, err := filepath.Abs(s.dir)
	if err != nil {
		return "", err
	}
	absPath, err := filepath.Abs(p)
	if err != nil {
		return "", err
	}
	if !strings.HasPrefix(absPath, absDir+string(filepath.Separator)) {
		return "", fmt.Errorf("invalid filename %q", filename)
	}
	return p, nil
}

// List returns the finished scan CSV filenames, most recently modified first.
func (s *ScanStore) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("list scan folder: %w", err)
	}

	type fileInfo struct {
		name  string
		mtime int64
	}
	var files []fileInfo
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".csv") {
			continue
		}
		// Live captures are served through the in-progress pointer, not the
		// finished-scan listing.
		if strings.HasSuffix(e.Name(), ".partial.csv") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		files = append(files, fileInfo{name: e.Name(), mtime: info.ModTime().UnixNano()})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].mtime > files[j].mtime })

	names := make([]string, len(files))
	for i, f := range files {
		names[i] = f.name
	}
	return names, nil
}

// Latest returns the most recently modified scan filename.
func (s *ScanStore) Latest() (string, error) {
	names, err := s.List()
	if err != nil {
		return "", err
	}
	if len(names) == 0 {
		return "", ErrNotFound
	}
	return names[0], nil
}

// Read loads the points of one scan file. Rows that do not parse as two
// numbers (headers, junk) are skipped.
func (s *ScanStore) Read(filename string) ([]models.TracePoint, error) {
	path, err := s.Path(filename)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("open scan %s: %w", filename, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read scan %s: %w", filename, err)
	}

	var points []models.TracePoint
	for _, row := range rows {
		if len(row) != 2 {
			continue
		}
		freq, err1 := strconv.ParseFloat(row[0], 64)
		power, err2 := strconv.ParseFloat(row[1], 64)
		if err1 != nil || err2 != nil {
			continue
		}
		points = append(points, models.TracePoint{FrequencyHz: freq, PowerDBm: power})
	}
	return points, nil
}

func writePoints(f *os.File, points []models.TracePoint) error {
	w := csv.NewWriter(f)
	for _, p := range points {
		row := []string{
			strconv.FormatFloat(p.FrequencyHz, 'f', 0, 64),
			strconv.FormatFloat(p.PowerDBm, 'f', 3, 64),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

// Write replaces a scan file with the given points (headerless 2-column CSV).
func (s *ScanStore) Write(filename string, points []models.TracePoint) error {
	path, err := s.Path(filename)
	if err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create scan %s: %w", filename, err)
	}
	if err := writePoints(f, points); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Append adds points to the end of a scan file, creating it when missing.
func (s *ScanStore) Append(filename string, points []models.TracePoint) error {
	path, err := s.Path(filename)
	if err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("append scan %s: %w", filename, err)
	}
	if err := writePoints(f, points); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Rename moves a scan file within the folder, e.g. when finalizing an
// in-progress capture under its timestamped name.
func (s *ScanStore) Rename(oldName, newName string) error {
	oldPath, err := s.Path(oldName)
	if err != nil {
		return err
	}
	newPath, err := s.Path(newName)
	if err != nil {
		return err
	}
	return os.Rename(oldPath, newPath)
}

// SetInProgress records the filename of the active scan.
func (s *ScanStore) SetInProgress(filename string) error {
	if _, err := s.Path(filename); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(s.dir, inProgressFile), []byte(filename), 0o644)
}

// InProgress returns the active scan filename, or ErrNotFound when no scan is
// running.
func (s *ScanStore) InProgress() (string, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, inProgressFile))
	if err != nil {
		if os.IsNotExist(err) {
			return "", ErrNotFound
		}
		return "", err
	}
	name := strings.TrimSpace(string(data))
	if name == "" {
		return "", ErrNotFound
	}
	return name, nil
}

// ClearInProgress removes the active scan pointer.
func (s *ScanStore) ClearInProgress() error {
	err := os.Remove(filepath.Join(s.dir, inProgressFile))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
