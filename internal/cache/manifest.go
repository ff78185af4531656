package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/discochess/coach/internal/store"
)

// ManifestVersion is the current manifest format version.
const ManifestVersion = 1

// Manifest records what the cached entries were computed with. It holds no
// timestamps, so rebuilding from the same inputs writes the same bytes.
type Manifest struct {
	Version             int    `json:"version"`
	Username            string `json:"username"`
	Codec               string `json:"codec"`
	EngineFingerprint   string `json:"engine"`
	AnalysisFingerprint string `json:"analysis"`
	OpeningsVersion     string `json:"openings"`
}

// WriteManifest stores the manifest.
func (c *Cache) WriteManifest(ctx context.Context, m *Manifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling manifest: %w", err)
	}

	unlock := c.locks.Lock(manifestKey)
	defer unlock()
	if err := c.store.Put(ctx, manifestKey, data); err != nil {
		return fmt.Errorf("writing manifest: %w", err)
	}
	return nil
}

// ReadManifest returns the stored manifest, or ErrNotFound.
func (c *Cache) ReadManifest(ctx context.Context) (*Manifest, error) {
	unlock := c.locks.RLock(manifestKey)
	data, err := c.store.Get(ctx, manifestKey)
	unlock()
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("reading manifest: %w", err)
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing manifest: %w", err)
	}
	return &m, nil
}
