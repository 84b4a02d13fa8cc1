package scraper

import (
	"bytes"
	"context"
	"errors"
	"log"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"japanhouse/config"
	"japanhouse/httputil"
	"japanhouse/models"
)

// HomesHandler scrapes homes.co.jp result lists. The site reworks its
// markup often, so container detection runs through the YAML cascade and
// falls back to the generic extractor when every candidate misses. When a
// card links to a detail page the handler follows it once to swap lazy-load
// thumbnails for the gallery images.
type HomesHandler struct {
	cfg     *config.SiteConfig
	fetcher *httputil.Fetcher
}

func NewHomesHandler(cfg *config.SiteConfig, fetcher *httputil.Fetcher) *HomesHandler {
	return &HomesHandler{cfg: cfg, fetcher: fetcher}
}

func (h *HomesHandler) ID() string {
	return h.cfg.ID
}

func (h *HomesHandler) Scrape(ctx context.Context, params models.RunParams) ([]models.RawFields, error) {
	startURL, err := buildStartURL(h.cfg, params)
	if err != nil {
		return nil, err
	}

	raws, err := crawlPages(ctx, h.fetcher, startURL, params.MaxPages, h.cfg.Selectors.NextPage,
		func(doc *goquery.Document, pageURL string) []models.RawFields {
			found := h.parsePage(doc, pageURL)
			if len(found) == 0 {
				log.Printf("homes: no listings via known containers, trying fallback extraction")
				found = extractFallback(doc, pageURL, h.cfg.BaseURL)
			}
			return found
		})
	if err != nil && !errors.Is(err, ErrPartialResults) {
		return nil, err
	}

	h.enrichImages(ctx, raws)
	return raws, err
}

func (h *HomesHandler) parsePage(doc *goquery.Document, pageURL string) []models.RawFields {
	var raws []models.RawFields

	for _, containerSel := range h.cfg.Selectors.Container {
		doc.Find(containerSel).Each(func(_ int, item *goquery.Selection) {
			raw := models.RawFields{}

			titleLink := item.Find("h2.devMansionTitle a, h3 a").First()
			if href, ok := titleLink.Attr("href"); ok {
				raw["url"] = absoluteURL(strings.TrimSpace(href), pageURL)
			}
			if title := strings.TrimSpace(titleLink.Text()); title != "" {
				raw["title"] = title
			} else if title := firstText(item, h.cfg.Selectors.Title); title != "" {
				raw["title"] = title
			}

			if price := firstText(item, h.cfg.Selectors.Price); price != "" {
				raw["price"] = price
			}
			if location := firstText(item, []string{".abAddress", ".address"}); location != "" {
				raw["location"] = location
			} else if location := firstText(item, h.cfg.Selectors.Location); location != "" {
				raw["location"] = location
			}
			if access := firstText(item, []string{".abAccess"}); access != "" {
				raw["access"] = access
			}
			if layout := firstText(item, []string{".madoriInfo"}); layout != "" {
				raw["layout"] = layout
			}
			if size := firstText(item, []string{".areaInfo"}); size != "" {
				raw["size"] = size
			}
			if buildingType := firstText(item, []string{".buildingTypeInfo"}); buildingType != "" {
				raw["building_type"] = buildingType
			}
			if year := firstText(item, []string{".builtDateInfo"}); year != "" {
				raw["year_built"] = year
			}

			var features []string
			item.Find("ul.articleTagList li").Each(func(_ int, li *goquery.Selection) {
				if text := strings.TrimSpace(li.Text()); text != "" {
					features = append(features, text)
				}
			})
			if len(features) > 0 {
				raw["features"] = features
			}

			if href, ok := item.Find(`a[href*="detail"]`).First().Attr("href"); ok {
				raw["detail_url"] = absoluteURL(strings.TrimSpace(href), pageURL)
			}

			if images := collectAttr(item, []string{".mainvisual img", ".bukkenImg img", "img"}, "data-src", "data-original", "src"); len(images) > 0 {
				raw["images"] = images
			}

			if _, hasURL := raw["url"]; hasURL || len(raw) > 1 {
				raws = append(raws, raw)
			}
		})
		if len(raws) > 0 {
			break
		}
	}

	return raws
}

// detailImageSelectors are tried in order against the detail page; the
// first selector yielding anything wins.
var detailImageSelectors = []string{
	"div.detailGallery img",
	"div.photoGallery img",
	"div.carousel img",
	"div.detailPhotos img",
	"div.photo img, div.mainPhoto img",
	`img[src*="/img.homes.jp/"]`,
}

// enrichImages replaces list-page thumbnails with the detail-page gallery.
// Failures leave the thumbnails in place; the run never stops for images.
func (h *HomesHandler) enrichImages(ctx context.Context, raws []models.RawFields) {
	for _, raw := range raws {
		detailURL := raw.GetString("detail_url")
		delete(raw, "detail_url")
		if detailURL == "" {
			continue
		}

		images, err := h.fetchDetailImages(ctx, detailURL)
		if err != nil {
			log.Printf("Warning: detail images for %s: %v", detailURL, err)
			continue
		}
		if len(images) > 0 {
			raw["images"] = images
		}

		if err := h.fetcher.Sleep(ctx); err != nil {
			return
		}
	}
}

func (h *HomesHandler) fetchDetailImages(ctx context.Context, detailURL string) ([]string, error) {
	body, err := h.fetcher.Fetch(ctx, detailURL)
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	for _, sel := range detailImageSelectors {
		images := collectAttr(doc.Selection, []string{sel}, "src", "data-src", "data-original", "data-lazy-src")
		if len(images) > 0 {
			return images, nil
		}
	}
	return nil, nil
}
