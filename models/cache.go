package models

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const (
	cacheFileName = "cache.json"
	// cacheVersion is bumped whenever the cached record layout changes.
	cacheVersion = 2
)

// CacheData is the on-disk snapshot of a loaded dataset.
type CacheData struct {
	Version    int                `json:"version"`
	Timestamp  int64              `json:"timestamp"`
	Samples    []Sample           `json:"samples"`
	Subjects   []Subject          `json:"subjects"`
	Thresholds []ThresholdSummary `json:"thresholds"`
	Stats      NormStats          `json:"stats"`
}

func (c *CacheData) dataset() *Dataset {
	d := NewDataset(c.Samples, c.Subjects, c.Thresholds, c.Stats)
	d.LoadedAt = time.Unix(c.Timestamp, 0)
	return d
}

// cacheData writes the snapshot through a temp file so a crash never leaves
// a truncated cache behind.
func cacheData(dataDir string, dataset *Dataset) error {
	snapshot := CacheData{
		Version:    cacheVersion,
		Timestamp:  time.Now().Unix(),
		Samples:    dataset.Samples,
		Subjects:   dataset.Subjects,
		Thresholds: dataset.Thresholds,
		Stats:      dataset.Stats,
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return fmt.Errorf("creating data dir: %w", err)
	}

	tmp, err := os.CreateTemp(dataDir, cacheFileName+".*")
	if err != nil {
		return fmt.Errorf("creating cache file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := json.NewEncoder(tmp).Encode(snapshot); err != nil {
		tmp.Close()
		return fmt.Errorf("encoding cache: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing cache file: %w", err)
	}
	return os.Rename(tmp.Name(), filepath.Join(dataDir, cacheFileName))
}

// loadCacheData reads the snapshot in dataDir. A missing file yields an
// error matching os.ErrNotExist.
func loadCacheData(dataDir string) (*CacheData, error) {
	f, err := os.Open(filepath.Join(dataDir, cacheFileName))
	if err != nil {
		return nil, fmt.Errorf("opening cache: %w", err)
	}
	defer f.Close()

	var snapshot CacheData
	if err := json.NewDecoder(f).Decode(&snapshot); err != nil {
		return nil, fmt.Errorf("decoding cache: %w", err)
	}
	return &snapshot, nil
}

// isCacheValid reports whether the snapshot is current, non-empty and younger
// than maxAgeHours.
func isCacheValid(cache *CacheData, maxAgeHours int) bool {
	if cache.Version != cacheVersion || len(cache.Samples) == 0 {
		return false
	}
	return time.Since(time.Unix(cache.Timestamp, 0)) <= time.Duration(maxAgeHours)*time.Hour
}
