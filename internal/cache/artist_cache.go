package cache

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jmagar/gigs-cli/internal/model"
)

const artistGroupsCacheFile = "artist-groups.json"

type artistGroupsCache struct {
	CachedAt time.Time           `json:"cachedAt"`
	Groups   []model.ArtistGroup `json:"groups"`
}

// ReadArtistGroupsCache reads the cached server-side artist grouping and
// when it was written. A missing file returns an error wrapping os.ErrNotExist.
func ReadArtistGroupsCache() ([]model.ArtistGroup, time.Time, error) {
	cacheDir, err := GetCacheDir()
	if err != nil {
		return nil, time.Time{}, err
	}
	data, err := os.ReadFile(filepath.Join(cacheDir, artistGroupsCacheFile))
	if err != nil {
		return nil, time.Time{}, err
	}
	var cached artistGroupsCache
	if err := json.Unmarshal(data, &cached); err != nil {
		return nil, time.Time{}, fmt.Errorf("failed to parse artist groups cache: %w", err)
	}
	return cached.Groups, cached.CachedAt, nil
}

// WriteArtistGroupsCache atomically stores a server-side artist grouping.
func WriteArtistGroupsCache(groups []model.ArtistGroup) error {
	return WithCacheLock(func() error {
		cacheDir, err := GetCacheDir()
		if err != nil {
			return err
		}
		data, err := json.Marshal(artistGroupsCache{CachedAt: time.Now(), Groups: groups})
		if err != nil {
			return fmt.Errorf("failed to marshal artist groups cache: %w", err)
		}
		return atomicWriteFile(filepath.Join(cacheDir, artistGroupsCacheFile), data)
	})
}
