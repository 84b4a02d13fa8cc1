package models

import (
	"encoding/json"
	"time"
)

// RawFields is one listing as scraped, before normalization. Keys are
// site-specific and free-form; values are string or []string. A RawFields
// lives for one extraction pass and is discarded after normalization.
type RawFields map[string]any

// GetString returns the string value for key, or "" when absent or not a string.
func (r RawFields) GetString(key string) string {
	if v, ok := r[key].(string); ok {
		return v
	}
	return ""
}

// GetStrings returns the []string value for key, or nil.
func (r RawFields) GetStrings(key string) []string {
	if v, ok := r[key].([]string); ok {
		return v
	}
	return nil
}

// Listing is the canonical record every site normalizes into.
// ID is assigned by the store on first insert and is nil until then.
// Price is nil when the raw price string could not be parsed; PriceRaw then
// keeps the original text.
type Listing struct {
	ID           *int64    `json:"id,omitempty"`
	Source       string    `json:"source"`
	SourceURL    string    `json:"url"`
	SourceID     string    `json:"source_id,omitempty"`
	Title        string    `json:"title,omitempty"`
	Price        *int      `json:"price"`
	PriceRaw     string    `json:"price_raw,omitempty"`
	Location     string    `json:"location,omitempty"`
	Size         string    `json:"size,omitempty"`
	Layout       string    `json:"layout,omitempty"`
	Rooms        string    `json:"rooms,omitempty"`
	YearBuilt    string    `json:"year_built,omitempty"`
	BuildingType string    `json:"building_type,omitempty"`
	Access       string    `json:"access,omitempty"`
	PropertyType string    `json:"property_type,omitempty"`
	Description  string    `json:"description,omitempty"`
	Features     []string  `json:"features,omitempty"`
	Images       []string  `json:"images,omitempty"`
	ScrapedAt    time.Time `json:"scraped_at"`

	// Raw holds extractor fields outside the canonical set, keyed with a
	// raw_ prefix so nothing scraped is ever lost.
	Raw map[string]string `json:"raw,omitempty"`
}

// Row flattens the listing into a column map for the store gateway.
// List-valued fields stay as Go values here; the gateway serializes them.
func (l *Listing) Row() map[string]any {
	row := map[string]any{
		"source":     l.Source,
		"url":        l.SourceURL,
		"scraped_at": l.ScrapedAt.Format(time.RFC3339),
	}
	if l.ID != nil {
		row["id"] = *l.ID
	}
	if l.SourceID != "" {
		row["source_id"] = l.SourceID
	}
	if l.Title != "" {
		row["title"] = l.Title
	}
	if l.Price != nil {
		row["price"] = *l.Price
	}
	if l.PriceRaw != "" {
		row["price_raw"] = l.PriceRaw
	}
	if l.Location != "" {
		row["location"] = l.Location
	}
	if l.Size != "" {
		row["size"] = l.Size
	}
	if l.Layout != "" {
		row["layout"] = l.Layout
	}
	if l.Rooms != "" {
		row["rooms"] = l.Rooms
	}
	if l.YearBuilt != "" {
		row["year_built"] = l.YearBuilt
	}
	if l.BuildingType != "" {
		row["building_type"] = l.BuildingType
	}
	if l.Access != "" {
		row["access"] = l.Access
	}
	if l.PropertyType != "" {
		row["property_type"] = l.PropertyType
	}
	if l.Description != "" {
		row["description"] = l.Description
	}
	if len(l.Features) > 0 {
		row["features"] = l.Features
	}
	if len(l.Images) > 0 {
		row["images"] = l.Images
	}
	for k, v := range l.Raw {
		row[k] = v
	}
	return row
}

// MarshalJSON flattens Raw into the top-level object so the JSON sink
// mirrors the store's row shape.
func (l Listing) MarshalJSON() ([]byte, error) {
	type alias Listing
	base, err := json.Marshal(alias(l))
	if err != nil {
		return nil, err
	}
	if len(l.Raw) == 0 {
		return base, nil
	}
	var m map[string]any
	if err := json.Unmarshal(base, &m); err != nil {
		return nil, err
	}
	delete(m, "raw")
	for k, v := range l.Raw {
		m[k] = v
	}
	return json.Marshal(m)
}
