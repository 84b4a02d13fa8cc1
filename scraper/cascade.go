package scraper

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"japanhouse/config"
	"japanhouse/httputil"
	"japanhouse/models"
)

// firstText tries each selector in order and returns the first non-empty
// trimmed text under sel. Cascades exist because these sites rename classes
// without notice; new variants go at the front of the list.
func firstText(sel *goquery.Selection, selectors []string) string {
	for _, s := range selectors {
		if text := strings.TrimSpace(sel.Find(s).First().Text()); text != "" {
			return text
		}
	}
	return ""
}

// firstAttr returns the first non-empty attribute value across the selector
// cascade. attrs are tried per match, so lazy-load variants (data-src,
// data-original) win over an empty src.
func firstAttr(sel *goquery.Selection, selectors []string, attrs ...string) string {
	for _, s := range selectors {
		found := ""
		sel.Find(s).EachWithBreak(func(_ int, node *goquery.Selection) bool {
			for _, attr := range attrs {
				if v, ok := node.Attr(attr); ok && strings.TrimSpace(v) != "" {
					found = strings.TrimSpace(v)
					return false
				}
			}
			return true
		})
		if found != "" {
			return found
		}
	}
	return ""
}

// collectAttr gathers the attribute from every match of the first selector
// that matches anything.
func collectAttr(sel *goquery.Selection, selectors []string, attrs ...string) []string {
	for _, s := range selectors {
		var out []string
		sel.Find(s).Each(func(_ int, node *goquery.Selection) {
			for _, attr := range attrs {
				if v, ok := node.Attr(attr); ok && strings.TrimSpace(v) != "" {
					out = append(out, strings.TrimSpace(v))
					return
				}
			}
		})
		if len(out) > 0 {
			return out
		}
	}
	return nil
}

func absoluteURL(href, base string) string {
	if href == "" {
		return ""
	}
	baseURL, err := url.Parse(base)
	if err != nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return baseURL.ResolveReference(ref).String()
}

// nextPageURL resolves the next-page link, or "" when the last page is
// reached. Disabled pagination controls have no href and terminate the walk.
func nextPageURL(doc *goquery.Document, selectors []string, base string) string {
	for _, s := range selectors {
		node := doc.Find(s).First()
		if node.Length() == 0 {
			continue
		}
		if href, ok := node.Attr("href"); ok && strings.TrimSpace(href) != "" {
			return absoluteURL(strings.TrimSpace(href), base)
		}
	}
	return ""
}

// parseFunc extracts the raw listings from one result page.
type parseFunc func(doc *goquery.Document, pageURL string) []models.RawFields

// safeParse shields the crawl from a panicking extractor: a page with markup
// weird enough to break selector logic yields zero listings, not a dead run.
func safeParse(parse parseFunc, doc *goquery.Document, pageURL string) (raws []models.RawFields) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Warning: extractor panic on %s: %v", pageURL, r)
			raws = nil
		}
	}()
	return parse(doc, pageURL)
}

// ErrPartialResults marks a crawl that lost pages mid-pagination but kept
// what it had collected. Callers get the listings AND this error; the run
// records the site as partial instead of failed.
var ErrPartialResults = errors.New("partial results")

// crawlPages walks a paginated result list up to maxPages. A failure on the
// first page is fatal; a failure on a later page returns the listings
// collected so far wrapped with ErrPartialResults, so a flaky deep page
// never loses a run.
func crawlPages(ctx context.Context, fetcher *httputil.Fetcher, startURL string, maxPages int, nextSel []string, parse parseFunc) ([]models.RawFields, error) {
	if maxPages < 1 {
		maxPages = 1
	}

	var all []models.RawFields
	pageURL := startURL

	for page := 1; page <= maxPages; page++ {
		body, err := fetcher.Fetch(ctx, pageURL)
		if err != nil {
			if page == 1 {
				return nil, err
			}
			log.Printf("Warning: page %d fetch failed, keeping %d listings: %v", page, len(all), err)
			return all, fmt.Errorf("page %d: %v: %w", page, err, ErrPartialResults)
		}

		doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
		if err != nil {
			if page == 1 {
				return nil, err
			}
			log.Printf("Warning: page %d parse failed, keeping %d listings: %v", page, len(all), err)
			return all, fmt.Errorf("page %d: %v: %w", page, err, ErrPartialResults)
		}

		all = append(all, safeParse(parse, doc, pageURL)...)

		next := nextPageURL(doc, nextSel, pageURL)
		if next == "" || next == pageURL {
			break
		}
		pageURL = next

		if err := fetcher.Sleep(ctx); err != nil {
			return all, nil
		}
	}

	return all, nil
}

// CascadeHandler is the config-only scraper: everything it knows about a
// site comes from the selector cascades in its YAML entry. Sites without a
// dedicated handler run through this.
type CascadeHandler struct {
	cfg     *config.SiteConfig
	fetcher *httputil.Fetcher
}

func NewCascadeHandler(cfg *config.SiteConfig, fetcher *httputil.Fetcher) *CascadeHandler {
	return &CascadeHandler{cfg: cfg, fetcher: fetcher}
}

func (h *CascadeHandler) ID() string {
	return h.cfg.ID
}

func (h *CascadeHandler) Scrape(ctx context.Context, params models.RunParams) ([]models.RawFields, error) {
	startURL, err := buildStartURL(h.cfg, params)
	if err != nil {
		return nil, err
	}

	return crawlPages(ctx, h.fetcher, startURL, params.MaxPages, h.cfg.Selectors.NextPage,
		func(doc *goquery.Document, pageURL string) []models.RawFields {
			raws := h.parsePage(doc, pageURL)
			if len(raws) == 0 {
				raws = extractFallback(doc, pageURL, h.cfg.BaseURL)
			}
			return raws
		})
}

func (h *CascadeHandler) parsePage(doc *goquery.Document, pageURL string) []models.RawFields {
	var raws []models.RawFields

	for _, containerSel := range h.cfg.Selectors.Container {
		doc.Find(containerSel).Each(func(_ int, item *goquery.Selection) {
			raw := models.RawFields{}
			if title := firstText(item, h.cfg.Selectors.Title); title != "" {
				raw["title"] = title
			}
			if price := firstText(item, h.cfg.Selectors.Price); price != "" {
				raw["price"] = price
			}
			if location := firstText(item, h.cfg.Selectors.Location); location != "" {
				raw["location"] = location
			}
			if href := firstAttr(item, h.cfg.Selectors.Link, "href"); href != "" {
				raw["url"] = absoluteURL(href, pageURL)
			}
			if images := collectAttr(item, h.cfg.Selectors.Image, "data-src", "data-original", "src"); len(images) > 0 {
				raw["images"] = images
			}
			if len(raw) > 0 {
				raws = append(raws, raw)
			}
		})
		if len(raws) > 0 {
			break
		}
	}

	return raws
}

// buildStartURL expands the endpoint template for the requested property
// type. {location} is substituted; a missing endpoint is a config error.
func buildStartURL(cfg *config.SiteConfig, params models.RunParams) (string, error) {
	endpoint, ok := cfg.Endpoints[params.PropertyType]
	if !ok {
		if endpoint, ok = cfg.Endpoints["rent"]; !ok {
			return "", fmt.Errorf("site %s has no endpoint for property type %q", cfg.ID, params.PropertyType)
		}
	}
	return strings.ReplaceAll(endpoint, "{location}", url.PathEscape(params.Location)), nil
}
