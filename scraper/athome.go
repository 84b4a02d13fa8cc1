package scraper

import (
	"context"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"japanhouse/config"
	"japanhouse/httputil"
	"japanhouse/models"
)

// detailLabels maps athome's Japanese detail labels to canonical keys.
// Labels outside the map keep their original text behind a raw_ prefix so
// nothing scraped is thrown away.
var detailLabels = map[string]string{
	"間取": "layout",
	"面積": "size",
	"築年": "year_built",
	"階数": "floor",
	"構造": "structure",
	"方角": "direction",
}

// AthomeHandler scrapes athome.co.jp result lists. One container shape
// serves both rent and sale pages; per-listing details come as label/value
// pairs that are mapped through detailLabels.
type AthomeHandler struct {
	cfg     *config.SiteConfig
	fetcher *httputil.Fetcher
}

func NewAthomeHandler(cfg *config.SiteConfig, fetcher *httputil.Fetcher) *AthomeHandler {
	return &AthomeHandler{cfg: cfg, fetcher: fetcher}
}

func (h *AthomeHandler) ID() string {
	return h.cfg.ID
}

func (h *AthomeHandler) Scrape(ctx context.Context, params models.RunParams) ([]models.RawFields, error) {
	startURL, err := buildStartURL(h.cfg, params)
	if err != nil {
		return nil, err
	}

	return crawlPages(ctx, h.fetcher, startURL, params.MaxPages, h.cfg.Selectors.NextPage, h.parsePage)
}

func (h *AthomeHandler) parsePage(doc *goquery.Document, pageURL string) []models.RawFields {
	var raws []models.RawFields

	doc.Find(".property-object").Each(func(_ int, item *goquery.Selection) {
		raw := models.RawFields{}

		titleLink := item.Find(".property-object-title a").First()
		if href, ok := titleLink.Attr("href"); ok {
			raw["url"] = absoluteURL(strings.TrimSpace(href), pageURL)
		}
		if title := strings.TrimSpace(titleLink.Text()); title != "" {
			raw["title"] = title
		}

		if price := strings.TrimSpace(item.Find(".property-object-price").First().Text()); price != "" {
			raw["price"] = price
		}
		if location := strings.TrimSpace(item.Find(".property-object-place").First().Text()); location != "" {
			raw["location"] = location
		}

		var access []string
		item.Find(".property-object-access").Each(func(_ int, node *goquery.Selection) {
			if text := strings.TrimSpace(node.Text()); text != "" {
				access = append(access, text)
			}
		})
		if len(access) > 0 {
			raw["access"] = strings.Join(access, " / ")
		}

		item.Find(".property-object-detail li").Each(func(_ int, li *goquery.Selection) {
			label := strings.TrimSpace(li.Find(".object-label").First().Text())
			value := strings.TrimSpace(li.Find(".object-value").First().Text())
			if label == "" || value == "" {
				return
			}
			label = strings.TrimRight(label, "：:")

			for marker, key := range detailLabels {
				if strings.Contains(label, marker) {
					raw[key] = value
					return
				}
			}
			raw["raw_"+label] = value
		})

		var features []string
		item.Find(".property-object-tag li").Each(func(_ int, li *goquery.Selection) {
			if text := strings.TrimSpace(li.Text()); text != "" {
				features = append(features, text)
			}
		})
		if len(features) > 0 {
			raw["features"] = features
		}

		if images := collectAttr(item, []string{".property-object-thumb img"}, "src", "data-src"); len(images) > 0 {
			raw["images"] = images
		}

		if len(raw) > 0 {
			raws = append(raws, raw)
		}
	})

	return raws
}
