package scraper

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"japanhouse/config"
	"japanhouse/httputil"
	"japanhouse/images"
	"japanhouse/models"
	"japanhouse/normalize"
	"japanhouse/services"
	"japanhouse/storage"
	"japanhouse/workers"
)

// Orchestrator drives the full pipeline for each configured site: extract,
// normalize, resolve images, reconcile against stored identities, persist.
// Per-site failures are recorded and the run continues with the next site.
type Orchestrator struct {
	cfg      *config.Config
	store    storage.Store
	history  *storage.SQLiteStore
	archiver *workers.Archiver
	handlers map[string]Handler
}

func NewOrchestrator(cfg *config.Config, store storage.Store, history *storage.SQLiteStore) *Orchestrator {
	handlers := make(map[string]Handler)
	for id, siteCfg := range cfg.Sites {
		fetcher := httputil.NewFetcher(siteDelay(siteCfg, cfg.Scraper.DelayMS), cfg.Scraper.MaxRetries)
		handlers[id] = NewHandler(siteCfg, fetcher)
	}

	return &Orchestrator{
		cfg:      cfg,
		store:    store,
		history:  history,
		handlers: handlers,
	}
}

// SetArchiver enables background image archival after each site's upsert.
func (o *Orchestrator) SetArchiver(a *workers.Archiver) {
	o.archiver = a
}

// RunSites scrapes the named sites (all configured sites when empty) and
// returns the aggregated stats. One failing site never aborts the others;
// the error reports how many sites failed.
func (o *Orchestrator) RunSites(ctx context.Context, siteIDs []string, params models.RunParams) (*models.RunStats, error) {
	if len(siteIDs) == 0 {
		for id := range o.cfg.Sites {
			siteIDs = append(siteIDs, id)
		}
	}

	runUID := uuid.NewString()
	stats := models.NewRunStats()
	failed := 0

	for _, siteID := range siteIDs {
		if err := o.RunSite(ctx, siteID, runUID, params, stats); err != nil {
			log.Printf("Error running site %s: %v", siteID, err)
			stats.Errors++
			failed++
		}
	}

	log.Printf("Run %s complete: %d new, %d updated, %d skipped, %d errors",
		runUID, stats.New, stats.Updated, stats.Skipped, stats.Errors)

	if failed == len(siteIDs) && failed > 0 {
		return stats, fmt.Errorf("all %d sites failed", failed)
	}
	return stats, nil
}

func (o *Orchestrator) RunSite(ctx context.Context, siteID, runUID string, params models.RunParams, stats *models.RunStats) error {
	siteCfg, ok := o.cfg.Sites[siteID]
	if !ok {
		return fmt.Errorf("unknown site: %s", siteID)
	}
	handler, ok := o.handlers[siteID]
	if !ok {
		return fmt.Errorf("no handler for site: %s", siteID)
	}

	run := &models.ScrapeRun{
		RunUID:    runUID,
		SiteID:    siteID,
		StartedAt: time.Now(),
		Status:    models.RunStatusRunning,
	}
	if o.history != nil {
		if last, err := o.history.GetLastRunTime(siteID); err == nil && !last.IsZero() {
			log.Printf("Last %s run was %s ago", siteID, time.Since(last).Round(time.Second))
		}
		runID, err := o.history.CreateRun(run)
		if err != nil {
			log.Printf("Warning: failed to create run record: %v", err)
		} else {
			run.ID = runID
		}
	}

	defer func() {
		now := time.Now()
		run.FinishedAt = &now
		if o.history != nil && run.ID != 0 {
			o.history.UpdateRun(run)
			o.history.UpdateSiteStats(siteID)
		}
	}()

	o.log(run, models.LogLevelInfo, fmt.Sprintf("Starting scrape for %s", siteCfg.Name))

	raws, err := handler.Scrape(ctx, params)
	if err != nil {
		if !errors.Is(err, ErrPartialResults) {
			run.Status = models.RunStatusFailed
			run.ErrorsCount++
			o.log(run, models.LogLevelError, fmt.Sprintf("Scrape error: %v", err))
			return err
		}
		run.Status = models.RunStatusPartial
		run.ErrorsCount++
		o.log(run, models.LogLevelWarn, fmt.Sprintf("Partial extraction: %v", err))
	}

	batch := o.buildBatch(raws, siteID, siteCfg.BaseURL, params)
	run.ListingsFound = len(batch)
	o.log(run, models.LogLevelInfo, fmt.Sprintf("Extracted %d listings", len(batch)))

	outcome, err := o.reconcile(ctx, batch, params)
	if err != nil {
		run.Status = models.RunStatusPartial
		run.ErrorsCount++
		o.log(run, models.LogLevelWarn, fmt.Sprintf("Identity lookup failed, treating batch as new: %v", err))
	}

	added, updated := 0, 0
	if o.store != nil {
		if err := o.store.UpsertListings(ctx, outcome.New); err != nil {
			run.Status = models.RunStatusFailed
			run.ErrorsCount++
			o.log(run, models.LogLevelError, fmt.Sprintf("Store upsert failed: %v", err))
			return err
		}
		added = len(outcome.New)

		for _, listing := range outcome.Updates {
			if listing.ID == nil {
				continue
			}
			if err := o.store.UpdateListing(ctx, *listing.ID, listing); err != nil {
				run.ErrorsCount++
				o.log(run, models.LogLevelWarn, fmt.Sprintf("Update failed for id %d: %v", *listing.ID, err))
				continue
			}
			updated++
		}
	} else {
		added = len(outcome.New)
	}

	run.ListingsNew = added
	run.Updated = updated
	run.Skipped = outcome.Skipped
	if run.Status == models.RunStatusRunning {
		run.Status = models.RunStatusCompleted
	}

	stats.Fold(siteID, len(batch), added, updated, outcome.Skipped)
	stats.Errors += run.ErrorsCount

	if o.archiver != nil {
		o.archiver.Enqueue(outcome.New)
	}

	o.log(run, models.LogLevelInfo, fmt.Sprintf("Completed: %d found, %d new, %d updated, %d skipped",
		run.ListingsFound, added, updated, outcome.Skipped))
	return nil
}

// buildBatch runs the per-listing pipeline: normalize, resolve images, then
// drop records with no usable content. MaxListings caps the batch after
// filtering so the cap counts only retained listings.
func (o *Orchestrator) buildBatch(raws []models.RawFields, siteID, baseURL string, params models.RunParams) []models.Listing {
	var batch []models.Listing

	for _, raw := range raws {
		listing := normalize.Normalize(raw, siteID)
		listing.PropertyType = orDefault(listing.PropertyType, params.PropertyType)
		listing.Images = images.Resolve(listing.Images, baseURL)

		// An unparsable price still counts as content: PriceRaw keeps it.
		if listing.Title == "" && listing.Price == nil && listing.PriceRaw == "" && listing.Location == "" {
			continue
		}
		if params.EnforceImageQuality && len(listing.Images) == 0 {
			continue
		}

		batch = append(batch, listing)
		if params.MaxListings > 0 && len(batch) >= params.MaxListings {
			break
		}
	}

	return batch
}

// reconcile classifies the batch against stored identities. Without a store
// or with update mode off, everything is new. An identity fetch failure
// degrades to append-only rather than losing the batch.
func (o *Orchestrator) reconcile(ctx context.Context, batch []models.Listing, params models.RunParams) (services.Outcome, error) {
	opts := services.ReconcileOptions{
		UpdateMode:     params.UpdateMode,
		UpdateExisting: params.UpdateExisting,
	}

	if !params.UpdateMode || o.store == nil {
		return services.Classify(batch, nil, opts), nil
	}

	idx, err := o.store.IdentityIndex(ctx)
	if err != nil {
		return services.Classify(batch, nil, opts), err
	}
	return services.Classify(batch, idx, opts), nil
}

func (o *Orchestrator) SiteIDs() []string {
	var ids []string
	for id := range o.cfg.Sites {
		ids = append(ids, id)
	}
	return ids
}

func (o *Orchestrator) log(run *models.ScrapeRun, level models.LogLevel, message string) {
	log.Printf("[%s] %s: %s", level, run.SiteID, message)
	if o.history != nil && run.ID != 0 {
		o.history.Log(&run.ID, level, message, run.SiteID)
	}
}

func orDefault(value, fallback string) string {
	if value != "" {
		return value
	}
	return fallback
}

// siteDelay picks the politeness delay for one site: its rate_limit_ms when
// configured, the global default otherwise.
func siteDelay(site *config.SiteConfig, defaultMS int) int {
	if site.RateLimitMS > 0 {
		return site.RateLimitMS
	}
	return defaultMS
}
