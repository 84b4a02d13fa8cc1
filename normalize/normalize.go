// Package normalize turns raw scraped key/value sets into canonical listings.
package normalize

import (
	"log"
	"strconv"
	"strings"
	"time"

	"japanhouse/models"
)

// canonical maps raw keys to their setter on the Listing. Keys outside this
// set (and url/price, consumed separately) are preserved under a raw_ prefix.
var canonical = map[string]func(*models.Listing, string){
	"title":         func(l *models.Listing, v string) { l.Title = v },
	"location":      func(l *models.Listing, v string) { l.Location = v },
	"address":       func(l *models.Listing, v string) { l.Location = v },
	"size":          func(l *models.Listing, v string) { l.Size = v },
	"layout":        func(l *models.Listing, v string) { l.Layout = v },
	"rooms":         func(l *models.Listing, v string) { l.Rooms = v },
	"year_built":    func(l *models.Listing, v string) { l.YearBuilt = v },
	"building_type": func(l *models.Listing, v string) { l.BuildingType = v },
	"access":        func(l *models.Listing, v string) { l.Access = v },
	"property_type": func(l *models.Listing, v string) { l.PropertyType = v },
	"description":   func(l *models.Listing, v string) { l.Description = v },
	"source_id":     func(l *models.Listing, v string) { l.SourceID = v },
}

// Normalize converts one RawFields into a Listing. Source and ScrapedAt are
// always set here, never by extractors. Normalize performs no I/O and never
// fails: unparsable prices degrade to a nil price with the original text kept.
func Normalize(raw models.RawFields, source string) models.Listing {
	listing := models.Listing{
		Source:    source,
		SourceURL: raw.GetString("url"),
		ScrapedAt: time.Now().UTC(),
		Raw:       make(map[string]string),
	}

	if v, ok := raw["price"]; ok {
		if s, ok := v.(string); ok {
			price, parsed := ExtractPrice(s)
			if parsed {
				listing.Price = &price
			} else {
				log.Printf("Could not parse price %q from %s", s, source)
				listing.PriceRaw = s
			}
		}
	}

	for key, value := range raw {
		if key == "url" || key == "price" {
			continue
		}
		switch v := value.(type) {
		case string:
			if set, ok := canonical[key]; ok {
				set(&listing, v)
			} else if strings.HasPrefix(key, "raw_") {
				listing.Raw[key] = v
			} else {
				listing.Raw["raw_"+key] = v
			}
		case []string:
			switch key {
			case "images":
				listing.Images = v
			case "features":
				listing.Features = v
			default:
				listing.Raw["raw_"+key] = strings.Join(v, " / ")
			}
		}
	}

	if len(listing.Raw) == 0 {
		listing.Raw = nil
	}
	return listing
}

// ExtractPrice pulls a non-negative integer out of a localized currency
// string: every rune that is not a digit or a decimal point is dropped, the
// remainder parsed as a float and truncated. "¥50,000,000" yields 50000000,
// "5000万円" yields 5000. Returns false when no digits survive or parsing
// fails (e.g. "1.2.3").
func ExtractPrice(s string) (int, bool) {
	var b strings.Builder
	for _, r := range s {
		if (r >= '0' && r <= '9') || r == '.' {
			b.WriteRune(r)
		}
	}
	cleaned := b.String()
	if cleaned == "" || strings.Trim(cleaned, ".") == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(cleaned, 64)
	if err != nil || f < 0 {
		return 0, false
	}
	return int(f), true
}
