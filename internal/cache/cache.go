// Package cache persists the last good backend snapshot on disk so the CLI
// can start offline. Writes are atomic (temp file + rename) and serialized
// across processes with a file lock.
package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jmagar/gigs-cli/internal/model"
)

const (
	snapshotFile = "snapshot.json"
	metaFile     = "snapshot-meta.json"
	lockFile     = ".snapshot.lock"

	// Version is bumped whenever the snapshot layout changes incompatibly.
	Version = "v1"
)

// ErrNoSnapshot is returned when nothing has been cached yet.
var ErrNoSnapshot = errors.New("no cached snapshot - run 'gigs refresh' first")

// Snapshot is the persisted engine state.
type Snapshot struct {
	Concerts  []model.Concert                    `json:"concerts"`
	Follows   []model.ConcertID                  `json:"follows"`
	Reminders map[model.ConcertID]model.Reminder `json:"reminders"`
}

// Meta describes the cached snapshot.
type Meta struct {
	LastUpdated    time.Time `json:"lastUpdated"`
	CacheVersion   string    `json:"cacheVersion"`
	TotalConcerts  int       `json:"totalConcerts"`
	TotalFollows   int       `json:"totalFollows"`
	TotalReminders int       `json:"totalReminders"`
	Source         string    `json:"source"`
	UpdateDuration string    `json:"updateDuration"`
}

// GetCacheDir returns ~/.cache/gigs, creating it if needed.
func GetCacheDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	cacheDir := filepath.Join(homeDir, ".cache", "gigs")
	if err := os.MkdirAll(cacheDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create cache directory: %w", err)
	}
	return cacheDir, nil
}

// SnapshotPath returns the location of the snapshot file.
func SnapshotPath() (string, error) {
	cacheDir, err := GetCacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(cacheDir, snapshotFile), nil
}

// ReadMeta reads the snapshot metadata. A missing file returns nil, nil.
func ReadMeta() (*Meta, error) {
	cacheDir, err := GetCacheDir()
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(cacheDir, metaFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read snapshot metadata: %w", err)
	}
	var meta Meta
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("failed to parse snapshot metadata: %w", err)
	}
	return &meta, nil
}

// ReadSnapshot reads the cached snapshot, or ErrNoSnapshot.
func ReadSnapshot() (*Snapshot, error) {
	cacheDir, err := GetCacheDir()
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(cacheDir, snapshotFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNoSnapshot
		}
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("failed to parse snapshot: %w", err)
	}
	if snap.Reminders == nil {
		snap.Reminders = map[model.ConcertID]model.Reminder{}
	}
	return &snap, nil
}

// WriteSnapshot writes the snapshot and its metadata under the cache lock.
func WriteSnapshot(snap *Snapshot, source string, updateDuration time.Duration) error {
	return WithCacheLock(func() error {
		cacheDir, err := GetCacheDir()
		if err != nil {
			return err
		}
		data, err := json.Marshal(snap)
		if err != nil {
			return fmt.Errorf("failed to marshal snapshot: %w", err)
		}
		if err := atomicWriteFile(filepath.Join(cacheDir, snapshotFile), data); err != nil {
			return err
		}

		meta := Meta{
			LastUpdated:    time.Now(),
			CacheVersion:   Version,
			TotalConcerts:  len(snap.Concerts),
			TotalFollows:   len(snap.Follows),
			TotalReminders: len(snap.Reminders),
			Source:         source,
			UpdateDuration: updateDuration.Round(time.Millisecond).String(),
		}
		metaData, err := json.MarshalIndent(meta, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal metadata: %w", err)
		}
		return atomicWriteFile(filepath.Join(cacheDir, metaFile), metaData)
	})
}

// atomicWriteFile writes data next to path under a unique temp name and
// renames it into place, so readers never see a partial file.
func atomicWriteFile(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file for %s: %w", filepath.Base(path), err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to write temp %s: %w", filepath.Base(path), err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to close temp %s: %w", filepath.Base(path), err)
	}
	if err := os.Chmod(tmpPath, 0644); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to chmod temp %s: %w", filepath.Base(path), err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to rename %s: %w", filepath.Base(path), err)
	}
	return nil
}
