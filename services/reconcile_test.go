package services

import (
	"testing"

	"japanhouse/models"
)

func testIndex() *models.IdentityIndex {
	idx := models.NewIdentityIndex()
	idx.AddSourceID("suumo", "B100", 41)
	idx.AddURL("https://suumo.jp/bukken/200")
	return idx
}

func TestClassify_UpdateModeOff(t *testing.T) {
	batch := []models.Listing{
		{Source: "suumo", SourceID: "B100"},
		{Source: "suumo", SourceURL: "https://suumo.jp/bukken/200"},
	}

	out := Classify(batch, testIndex(), ReconcileOptions{UpdateMode: false})
	if len(out.New) != 2 || len(out.Updates) != 0 || out.Skipped != 0 {
		t.Fatalf("expected all new with update mode off, got new=%d updates=%d skipped=%d",
			len(out.New), len(out.Updates), out.Skipped)
	}
}

func TestClassify_NilIndexTreatedAsNew(t *testing.T) {
	batch := []models.Listing{{Source: "suumo", SourceID: "B100"}}
	out := Classify(batch, nil, ReconcileOptions{UpdateMode: true})
	if len(out.New) != 1 {
		t.Fatalf("expected listing treated as new, got %+v", out)
	}
}

func TestClassify_SourceIDDuplicateSkipped(t *testing.T) {
	batch := []models.Listing{{Source: "suumo", SourceID: "B100"}}
	out := Classify(batch, testIndex(), ReconcileOptions{UpdateMode: true})
	if len(out.New) != 0 || out.Skipped != 1 {
		t.Fatalf("expected skip, got new=%d skipped=%d", len(out.New), out.Skipped)
	}
}

func TestClassify_SourceIDDuplicateUpdated(t *testing.T) {
	batch := []models.Listing{{Source: "suumo", SourceID: "B100", Title: "updated"}}
	out := Classify(batch, testIndex(), ReconcileOptions{UpdateMode: true, UpdateExisting: true})

	if len(out.Updates) != 1 || out.Skipped != 0 {
		t.Fatalf("expected update, got updates=%d skipped=%d", len(out.Updates), out.Skipped)
	}
	if out.Updates[0].ID == nil || *out.Updates[0].ID != 41 {
		t.Fatalf("expected stored id 41 carried, got %v", out.Updates[0].ID)
	}
}

// A URL-only match has no row id to update against, so it is skipped even
// when updates are enabled.
func TestClassify_URLDuplicateNeverUpdated(t *testing.T) {
	batch := []models.Listing{{Source: "suumo", SourceURL: "https://suumo.jp/bukken/200"}}
	out := Classify(batch, testIndex(), ReconcileOptions{UpdateMode: true, UpdateExisting: true})

	if len(out.Updates) != 0 || out.Skipped != 1 {
		t.Fatalf("expected url duplicate skipped, got updates=%d skipped=%d", len(out.Updates), out.Skipped)
	}
}

func TestClassify_SourceIDScopedBySource(t *testing.T) {
	batch := []models.Listing{{Source: "homes", SourceID: "B100"}}
	out := Classify(batch, testIndex(), ReconcileOptions{UpdateMode: true})
	if len(out.New) != 1 {
		t.Fatalf("expected same id under different source to be new, got %+v", out)
	}
}

func TestClassify_MixedBatch(t *testing.T) {
	batch := []models.Listing{
		{Source: "suumo", SourceID: "B100"},
		{Source: "suumo", SourceURL: "https://suumo.jp/bukken/200"},
		{Source: "suumo", SourceID: "B999", SourceURL: "https://suumo.jp/bukken/999"},
	}
	out := Classify(batch, testIndex(), ReconcileOptions{UpdateMode: true, UpdateExisting: true})

	if len(out.New) != 1 || len(out.Updates) != 1 || out.Skipped != 1 {
		t.Fatalf("expected 1 new, 1 update, 1 skip; got new=%d updates=%d skipped=%d",
			len(out.New), len(out.Updates), out.Skipped)
	}
	if out.New[0].SourceID != "B999" {
		t.Fatalf("wrong listing classified as new: %s", out.New[0].SourceID)
	}
}
