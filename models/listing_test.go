package models

import (
	"encoding/json"
	"testing"
	"time"
)

func TestListingRow(t *testing.T) {
	price := 12800000
	l := Listing{
		Source:    "suumo",
		SourceURL: "https://suumo.jp/bukken/1",
		SourceID:  "B100",
		Title:     "岡山の家",
		Price:     &price,
		ScrapedAt: time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
		Raw:       map[string]string{"raw_admin_fees": "5000円"},
	}

	row := l.Row()
	if row["source"] != "suumo" || row["source_id"] != "B100" {
		t.Fatalf("unexpected identity columns: %v", row)
	}
	if row["price"] != 12800000 {
		t.Fatalf("unexpected price %v", row["price"])
	}
	if row["scraped_at"] != "2026-08-01T12:00:00Z" {
		t.Fatalf("expected RFC3339 timestamp, got %v", row["scraped_at"])
	}
	if row["raw_admin_fees"] != "5000円" {
		t.Fatalf("expected raw fields merged into row, got %v", row)
	}
	if _, ok := row["id"]; ok {
		t.Fatalf("id must be absent until the store assigns one")
	}
	if _, ok := row["title"]; !ok {
		t.Fatalf("expected title in row")
	}
	if _, ok := row["location"]; ok {
		t.Fatalf("empty fields must not produce columns, got %v", row)
	}
}

func TestListingRow_CarriesAssignedID(t *testing.T) {
	id := int64(41)
	l := Listing{ID: &id, Source: "suumo", ScrapedAt: time.Now()}
	if got := l.Row()["id"]; got != int64(41) {
		t.Fatalf("expected id 41, got %v", got)
	}
}

func TestListingMarshalJSON_FlattensRaw(t *testing.T) {
	l := Listing{
		Source:    "athome",
		SourceURL: "https://athome.co.jp/1",
		ScrapedAt: time.Now(),
		Raw:       map[string]string{"raw_構造": "木造"},
	}

	data, err := json.Marshal(l)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if m["raw_構造"] != "木造" {
		t.Fatalf("expected raw field at top level, got %v", m)
	}
	if _, ok := m["raw"]; ok {
		t.Fatalf("nested raw object must be removed, got %v", m)
	}
	if m["url"] != "https://athome.co.jp/1" {
		t.Fatalf("expected canonical fields preserved, got %v", m)
	}
}
