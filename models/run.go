package models

import (
	"encoding/json"
	"time"
)

type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusPartial   RunStatus = "partial"
	RunStatusFailed    RunStatus = "failed"
)

// RunParams are the caller-facing knobs for one scrape invocation.
type RunParams struct {
	Location            string
	PropertyType        string // "rent" or "buy"
	MaxPages            int
	MaxListings         int // 0 = no limit
	Table               string
	UpdateMode          bool // check the store for existing identities
	UpdateExisting      bool // rewrite resolved duplicates instead of skipping
	EnforceImageQuality bool // drop listings whose resolved image list is empty
}

// ScrapeRun is one site's run record, persisted to the local run history.
type ScrapeRun struct {
	ID            int64      `json:"id" db:"id"`
	RunUID        string     `json:"run_uid" db:"run_uid"`
	SiteID        string     `json:"site_id" db:"site_id"`
	StartedAt     time.Time  `json:"started_at" db:"started_at"`
	FinishedAt    *time.Time `json:"finished_at" db:"finished_at"`
	Status        RunStatus  `json:"status" db:"status"`
	ListingsFound int        `json:"listings_found" db:"listings_found"`
	ListingsNew   int        `json:"listings_new" db:"listings_new"`
	Updated       int        `json:"updated" db:"updated"`
	Skipped       int        `json:"skipped" db:"skipped"`
	ErrorsCount   int        `json:"errors_count" db:"errors_count"`
}

type SiteStats struct {
	SiteID        string     `json:"site_id" db:"site_id"`
	LastRunAt     *time.Time `json:"last_run_at" db:"last_run_at"`
	LastRunStatus string     `json:"last_run_status" db:"last_run_status"`
	TotalRuns     int        `json:"total_runs" db:"total_runs"`
	TotalListings int        `json:"total_listings" db:"total_listings"`
}

// RunStats accumulates the cross-site totals for one invocation. The
// orchestrator owns the single instance and folds per-site deltas into it.
type RunStats struct {
	New     int            `json:"new"`
	Updated int            `json:"updated"`
	Skipped int            `json:"skipped"`
	PerSite map[string]int `json:"per_site"`
	Errors  int            `json:"errors"`
}

func NewRunStats() *RunStats {
	return &RunStats{PerSite: make(map[string]int)}
}

// Fold adds one site's outcome to the totals.
func (s *RunStats) Fold(siteID string, found, added, updated, skipped int) {
	s.PerSite[siteID] += found
	s.New += added
	s.Updated += updated
	s.Skipped += skipped
}

func (s *RunStats) ToJSON() json.RawMessage {
	data, _ := json.Marshal(s)
	return data
}
