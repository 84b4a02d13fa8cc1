// Package scraper holds the per-site extraction handlers and the run
// orchestrator that drives them.
package scraper

import (
	"context"

	"japanhouse/config"
	"japanhouse/httputil"
	"japanhouse/models"
)

// Handler extracts raw listings from one site. Implementations return raw
// key/value fields; normalization happens downstream.
type Handler interface {
	ID() string
	Scrape(ctx context.Context, params models.RunParams) ([]models.RawFields, error)
}

// NewHandler picks the implementation from the site's YAML config. Unknown
// handlers get the generic cascade scraper, which works off selectors alone.
func NewHandler(siteCfg *config.SiteConfig, fetcher *httputil.Fetcher) Handler {
	switch siteCfg.Handler {
	case "suumo":
		return NewSuumoHandler(siteCfg, fetcher)
	case "homes":
		return NewHomesHandler(siteCfg, fetcher)
	case "athome":
		return NewAthomeHandler(siteCfg, fetcher)
	case "browser":
		return NewBrowserHandler(siteCfg)
	default:
		return NewCascadeHandler(siteCfg, fetcher)
	}
}
