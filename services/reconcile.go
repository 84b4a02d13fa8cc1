// Package services holds the pipeline logic between extraction and storage.
package services

import (
	"japanhouse/models"
)

// ReconcileOptions are the duplicate-handling knobs for one run.
type ReconcileOptions struct {
	// UpdateMode enables identity checks against the store. When false the
	// whole batch is treated as new (append-only mode) and the identity
	// index is never consulted.
	UpdateMode bool
	// UpdateExisting routes duplicates with a resolved row id to the update
	// set instead of skipping them.
	UpdateExisting bool
}

// Outcome is the classified write set for one batch.
type Outcome struct {
	New     []models.Listing
	Updates []models.Listing // each carries the stored row id
	Skipped int
}

// Classify splits a batch of normalized listings into new, update and skip
// sets against the stored identities. Per listing, in order:
//
//  1. a (source, source_id) match is a duplicate and carries the stored id;
//  2. otherwise a source_url match is a duplicate without an id;
//  3. otherwise the listing is new.
//
// A duplicate goes to the update set only when UpdateExisting is set AND an
// id was resolved; URL-only duplicates are always skipped, id or not.
func Classify(batch []models.Listing, idx *models.IdentityIndex, opts ReconcileOptions) Outcome {
	var out Outcome

	if !opts.UpdateMode || idx == nil {
		out.New = batch
		return out
	}

	for _, listing := range batch {
		duplicate := false
		var rowID *int64

		if listing.SourceID != "" {
			if id, ok := idx.LookupSourceID(listing.Source, listing.SourceID); ok {
				duplicate = true
				rowID = &id
			}
		}
		if !duplicate && listing.SourceURL != "" && idx.HasURL(listing.SourceURL) {
			duplicate = true
		}

		switch {
		case !duplicate:
			out.New = append(out.New, listing)
		case opts.UpdateExisting && rowID != nil:
			listing.ID = rowID
			out.Updates = append(out.Updates, listing)
		default:
			out.Skipped++
		}
	}

	return out
}
