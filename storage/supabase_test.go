package storage

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"japanhouse/config"
	"japanhouse/models"
)

func newTestStore(t *testing.T, handler http.HandlerFunc) (*SupabaseStore, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	store := NewSupabaseStore(&config.SupabaseConfig{
		URL:        srv.URL,
		ServiceKey: "test-key",
	}, "property_listings")
	return store, srv
}

func TestUpsertListings_ChunksAndHeaders(t *testing.T) {
	var batches [][]map[string]any

	store, _ := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != "POST" || r.URL.Path != "/rest/v1/property_listings" {
			t.Fatalf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if r.Header.Get("apikey") != "test-key" {
			t.Fatalf("missing apikey header")
		}
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Fatalf("missing bearer token")
		}
		if r.Header.Get("Prefer") != "resolution=merge-duplicates" {
			t.Fatalf("missing merge-duplicates preference")
		}

		var batch []map[string]any
		if err := json.NewDecoder(r.Body).Decode(&batch); err != nil {
			t.Fatalf("decode batch: %v", err)
		}
		batches = append(batches, batch)
		w.WriteHeader(http.StatusCreated)
	})

	listings := make([]models.Listing, 150)
	for i := range listings {
		listings[i] = models.Listing{
			Source:    "suumo",
			Title:     "家",
			ScrapedAt: time.Now(),
		}
	}
	listings[0].Location = "岡山県"

	if err := store.UpsertListings(context.Background(), listings); err != nil {
		t.Fatalf("upsert failed: %v", err)
	}

	if len(batches) != 2 {
		t.Fatalf("expected 2 batches, got %d", len(batches))
	}
	if len(batches[0]) != 100 || len(batches[1]) != 50 {
		t.Fatalf("unexpected batch sizes: %d, %d", len(batches[0]), len(batches[1]))
	}

	// Rows are padded to a shared shape: the location column set on the
	// first listing must appear (as null) on rows that never had it.
	if _, ok := batches[1][0]["location"]; !ok {
		t.Fatalf("expected padded location key in later batch, got %v", batches[1][0])
	}
}

func TestUpsertListings_FirstFailureAborts(t *testing.T) {
	calls := 0
	store, _ := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		http.Error(w, `{"message":"duplicate key"}`, http.StatusConflict)
	})

	listings := make([]models.Listing, 150)
	for i := range listings {
		listings[i] = models.Listing{Source: "suumo", Title: "家", ScrapedAt: time.Now()}
	}

	err := store.UpsertListings(context.Background(), listings)
	if err == nil {
		t.Fatalf("expected error")
	}
	if calls != 1 {
		t.Fatalf("expected remaining chunks not sent, got %d calls", calls)
	}
}

func TestUpsertListings_EmptyBatchNoRequest(t *testing.T) {
	store, _ := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("unexpected request for empty batch")
	})
	if err := store.UpsertListings(context.Background(), nil); err != nil {
		t.Fatalf("empty upsert failed: %v", err)
	}
}

func TestIdentityIndex_BuildsBothIndexes(t *testing.T) {
	store, _ := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("select") != "id,source,source_id,url" {
			t.Fatalf("unexpected select: %s", r.URL.RawQuery)
		}
		json.NewEncoder(w).Encode([]map[string]any{
			{"id": 1, "source": "suumo", "source_id": "B100", "url": "https://suumo.jp/1"},
			{"id": 2, "source": "homes", "source_id": "", "url": "https://homes.co.jp/2"},
		})
	})

	idx, err := store.IdentityIndex(context.Background())
	if err != nil {
		t.Fatalf("identity index failed: %v", err)
	}

	if id, ok := idx.LookupSourceID("suumo", "B100"); !ok || id != 1 {
		t.Fatalf("expected suumo:B100 -> 1, got %d %v", id, ok)
	}
	if _, ok := idx.LookupSourceID("homes", ""); ok {
		t.Fatalf("empty source_id must not be indexed")
	}
	if !idx.HasURL("https://homes.co.jp/2") {
		t.Fatalf("expected url indexed")
	}
}

func TestUpdateListing_PatchesByID(t *testing.T) {
	var gotMethod, gotQuery string
	var body map[string]any

	store, _ := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotQuery = r.URL.RawQuery
		json.NewDecoder(r.Body).Decode(&body)
		w.WriteHeader(http.StatusNoContent)
	})

	id := int64(41)
	listing := models.Listing{
		ID:        &id,
		Source:    "suumo",
		Title:     "更新済み",
		ScrapedAt: time.Now(),
	}

	if err := store.UpdateListing(context.Background(), 41, listing); err != nil {
		t.Fatalf("update failed: %v", err)
	}

	if gotMethod != "PATCH" {
		t.Fatalf("expected PATCH, got %s", gotMethod)
	}
	if gotQuery != "id=eq.41" {
		t.Fatalf("unexpected filter: %s", gotQuery)
	}
	if _, ok := body["id"]; ok {
		t.Fatalf("id must not be sent in the update body")
	}
	if body["title"] != "更新済み" {
		t.Fatalf("expected updated title in body, got %v", body["title"])
	}
}
