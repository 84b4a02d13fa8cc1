package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"japanhouse/models"
)

// JSONFileStore dumps each batch to a timestamped file in the data directory.
// It is the fallback sink when no Supabase credentials are configured, and
// useful for inspecting extractor output locally.
type JSONFileStore struct {
	dir string
}

func NewJSONFileStore(dir string) (*JSONFileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return &JSONFileStore{dir: dir}, nil
}

// UpsertListings writes the batch as a JSON array. The filename encodes
// site, location and property type so successive runs never collide.
func (s *JSONFileStore) UpsertListings(ctx context.Context, listings []models.Listing) error {
	if len(listings) == 0 {
		return nil
	}

	name := fmt.Sprintf("%s_%s_%s_%d.json",
		slug(listings[0].Source),
		slug(listings[0].Location),
		slug(listings[0].PropertyType),
		time.Now().Unix())

	data, err := json.MarshalIndent(listings, "", "  ")
	if err != nil {
		return err
	}

	path := filepath.Join(s.dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// IdentityIndex returns an empty index: the file sink keeps no identities,
// so every run is append-only.
func (s *JSONFileStore) IdentityIndex(ctx context.Context) (*models.IdentityIndex, error) {
	return models.NewIdentityIndex(), nil
}

func (s *JSONFileStore) UpdateListing(ctx context.Context, id int64, listing models.Listing) error {
	return fmt.Errorf("json file store does not support updates")
}

func slug(s string) string {
	if s == "" {
		return "all"
	}
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			return r
		case r == ' ' || r == '-' || r == '_':
			return '_'
		default:
			return r
		}
	}, s)
}
