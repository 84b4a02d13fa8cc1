package storage

import (
	"context"
	"encoding/json"
	"log"
	"sort"

	"japanhouse/models"
)

// Store is the listing persistence capability the orchestrator writes
// through. Implementations: SupabaseStore (PostgREST) and PostgresStore
// (direct DB URL via pgx).
type Store interface {
	// UpsertListings writes a batch. The first failed chunk aborts the
	// remaining chunks of the call; chunks already sent stay committed.
	UpsertListings(ctx context.Context, listings []models.Listing) error
	// IdentityIndex scans id, source, source_id and url for every stored
	// row. Full-table scan; acceptable at current volumes.
	IdentityIndex(ctx context.Context) (*models.IdentityIndex, error)
	// UpdateListing rewrites the row with the given id.
	UpdateListing(ctx context.Context, id int64, listing models.Listing) error
}

// batchSize keeps request payloads under the store's limits.
const batchSize = 100

// columnWhitelist is the known store schema. Fields outside it are dropped
// before transmission so extractor changes cannot break writes.
var columnWhitelist = map[string]struct{}{
	"id":            {},
	"title":         {},
	"url":           {},
	"source_id":     {},
	"price":         {},
	"price_raw":     {},
	"location":      {},
	"description":   {},
	"images":        {},
	"features":      {},
	"size":          {},
	"layout":        {},
	"rooms":         {},
	"year_built":    {},
	"building_type": {},
	"access":        {},
	"source":        {},
	"property_type": {},
	"scraped_at":    {},
	"created_at":    {},
	"updated_at":    {},
}

// prepareRow projects a listing onto the store schema and serializes
// list-valued fields to JSON strings.
func prepareRow(listing *models.Listing) map[string]any {
	row := listing.Row()
	prepared := make(map[string]any, len(row))
	for key, value := range row {
		if _, ok := columnWhitelist[key]; !ok {
			log.Printf("DEBUG: dropping unknown field %q for store upload", key)
			continue
		}
		switch v := value.(type) {
		case []string, map[string]string:
			data, err := json.Marshal(v)
			if err != nil {
				continue
			}
			prepared[key] = string(data)
		default:
			prepared[key] = value
		}
	}
	return prepared
}

// padRows gives every row the union of all keys in the batch, filling gaps
// with nil. The store rejects batches whose objects differ in shape.
func padRows(rows []map[string]any) {
	union := unionKeys(rows)
	for _, row := range rows {
		for _, key := range union {
			if _, ok := row[key]; !ok {
				row[key] = nil
			}
		}
	}
}

// unionKeys returns the sorted key set across rows.
func unionKeys(rows []map[string]any) []string {
	set := make(map[string]struct{})
	for _, row := range rows {
		for key := range row {
			set[key] = struct{}{}
		}
	}
	keys := make([]string, 0, len(set))
	for key := range set {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func chunkRows(rows []map[string]any, size int) [][]map[string]any {
	var chunks [][]map[string]any
	for start := 0; start < len(rows); start += size {
		end := start + size
		if end > len(rows) {
			end = len(rows)
		}
		chunks = append(chunks, rows[start:end])
	}
	return chunks
}
