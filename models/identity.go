package models

// IdentityIndex is an in-memory snapshot of the identities already stored:
// (source, source_id) pairs resolving to a row id, and the set of known
// listing URLs. Built once per run from a full identity scan of the store.
type IdentityIndex struct {
	bySourceID map[string]int64
	byURL      map[string]struct{}
}

func NewIdentityIndex() *IdentityIndex {
	return &IdentityIndex{
		bySourceID: make(map[string]int64),
		byURL:      make(map[string]struct{}),
	}
}

func sourceKey(source, sourceID string) string {
	return source + ":" + sourceID
}

// AddSourceID records a (source, source_id) identity and its row id.
func (idx *IdentityIndex) AddSourceID(source, sourceID string, id int64) {
	idx.bySourceID[sourceKey(source, sourceID)] = id
}

// AddURL records a known listing URL. URLs carry no row id; a URL-only
// match identifies a duplicate but cannot resolve which row it is.
func (idx *IdentityIndex) AddURL(url string) {
	idx.byURL[url] = struct{}{}
}

// LookupSourceID returns the stored row id for (source, source_id).
func (idx *IdentityIndex) LookupSourceID(source, sourceID string) (int64, bool) {
	id, ok := idx.bySourceID[sourceKey(source, sourceID)]
	return id, ok
}

// HasURL reports whether the URL is already stored.
func (idx *IdentityIndex) HasURL(url string) bool {
	_, ok := idx.byURL[url]
	return ok
}

// Len returns the number of (source, source_id) identities.
func (idx *IdentityIndex) Len() int {
	return len(idx.bySourceID)
}
