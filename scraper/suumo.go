package scraper

import (
	"context"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"japanhouse/config"
	"japanhouse/httputil"
	"japanhouse/models"
)

// SuumoHandler scrapes suumo.jp result lists. Rental results group rooms
// under a building cassette, so one container can yield several listings;
// sale results are flat property units.
type SuumoHandler struct {
	cfg     *config.SiteConfig
	fetcher *httputil.Fetcher
}

func NewSuumoHandler(cfg *config.SiteConfig, fetcher *httputil.Fetcher) *SuumoHandler {
	return &SuumoHandler{cfg: cfg, fetcher: fetcher}
}

func (h *SuumoHandler) ID() string {
	return h.cfg.ID
}

func (h *SuumoHandler) Scrape(ctx context.Context, params models.RunParams) ([]models.RawFields, error) {
	startURL, err := buildStartURL(h.cfg, params)
	if err != nil {
		return nil, err
	}

	parse := h.parseSalePage
	if params.PropertyType == "rent" {
		parse = h.parseRentPage
	}

	return crawlPages(ctx, h.fetcher, startURL, params.MaxPages, h.cfg.Selectors.NextPage, parse)
}

func (h *SuumoHandler) parseRentPage(doc *goquery.Document, pageURL string) []models.RawFields {
	var raws []models.RawFields

	doc.Find(".cassetteitem").Each(func(_ int, building *goquery.Selection) {
		buildingName := strings.TrimSpace(building.Find(".cassetteitem_content-title").First().Text())
		location := strings.TrimSpace(building.Find(".cassetteitem_detail-col1").First().Text())
		access := strings.TrimSpace(building.Find(".cassetteitem_detail-col2").First().Text())
		buildingMeta := strings.TrimSpace(building.Find(".cassetteitem_detail-col3").First().Text())

		building.Find(".cassetteitem_detail-room, tbody tr.js-cassette_link").Each(func(_ int, room *goquery.Selection) {
			raw := models.RawFields{}
			if buildingName != "" {
				raw["title"] = buildingName
			}
			if location != "" {
				raw["location"] = location
			}
			if access != "" {
				raw["access"] = access
			}
			if buildingMeta != "" {
				raw["building_info"] = buildingMeta
			}

			if href, ok := room.Find("a").First().Attr("href"); ok {
				raw["url"] = absoluteURL(strings.TrimSpace(href), pageURL)
			}
			if price := strings.TrimSpace(room.Find(".cassetteitem_price--rent").First().Text()); price != "" {
				raw["price"] = price
			}
			if fees := strings.TrimSpace(room.Find(".cassetteitem_price--administration").First().Text()); fees != "" {
				raw["admin_fees"] = fees
			}
			if deposit := strings.TrimSpace(room.Find(".cassetteitem_price--deposit").First().Text()); deposit != "" {
				raw["deposit"] = deposit
			}
			if layout := strings.TrimSpace(room.Find(".cassetteitem_madori").First().Text()); layout != "" {
				raw["layout"] = layout
			}
			if size := strings.TrimSpace(room.Find(".cassetteitem_menseki").First().Text()); size != "" {
				raw["size"] = size
			}
			if floor := strings.TrimSpace(room.Find(".cassetteitem_detail-text").First().Text()); floor != "" {
				raw["floor"] = floor
			}
			if images := collectAttr(building, []string{".cassetteitem_object-item img", ".casssetteitem_other-thumbnail img"}, "rel", "data-src", "src"); len(images) > 0 {
				raw["images"] = images
			}

			if len(raw) > 0 {
				raws = append(raws, raw)
			}
		})
	})

	return raws
}

func (h *SuumoHandler) parseSalePage(doc *goquery.Document, pageURL string) []models.RawFields {
	var raws []models.RawFields

	doc.Find(".property_unit").Each(func(_ int, unit *goquery.Selection) {
		raw := models.RawFields{}

		if href, ok := unit.Find(".property_unit-title a, a.property_unit-link").First().Attr("href"); ok {
			raw["url"] = absoluteURL(strings.TrimSpace(href), pageURL)
		}
		if title := strings.TrimSpace(unit.Find(".property_unit-title").First().Text()); title != "" {
			raw["title"] = title
		}
		if price := strings.TrimSpace(unit.Find(".dottable-value--price, .dottable--price .dottable-value").First().Text()); price != "" {
			raw["price"] = price
		}
		if location := strings.TrimSpace(unit.Find(".dottable-value--address").First().Text()); location != "" {
			raw["location"] = location
		}
		if size := strings.TrimSpace(unit.Find(".dottable-value--menseki").First().Text()); size != "" {
			raw["size"] = size
		}
		if layout := strings.TrimSpace(unit.Find(".dottable-value--madori").First().Text()); layout != "" {
			raw["layout"] = layout
		}
		if year := strings.TrimSpace(unit.Find(".dottable-value--chikunengetsu").First().Text()); year != "" {
			raw["year_built"] = year
		}
		if images := collectAttr(unit, []string{".property_unit-thumbnail-image", ".cassette_carrousel img"}, "data-src", "src"); len(images) > 0 {
			raw["images"] = images
		}

		if len(raw) > 0 {
			raws = append(raws, raw)
		}
	})

	return raws
}
