package scraper

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"japanhouse/models"
)

// priceRe matches Japanese listing prices in either yen notation. The 万円
// form stays as scraped; normalization decides what the digits mean.
var priceRe = regexp.MustCompile(`([0-9][0-9,.]*\s*万円|¥\s*[0-9][0-9,]*|[0-9][0-9,]*\s*円)`)

// prefectures anchors the location heuristic; a text block naming one is
// very likely an address line.
var prefectures = []string{
	"北海道", "青森", "岩手", "宮城", "秋田", "山形", "福島",
	"茨城", "栃木", "群馬", "埼玉", "千葉", "東京", "神奈川",
	"新潟", "富山", "石川", "福井", "山梨", "長野", "岐阜",
	"静岡", "愛知", "三重", "滋賀", "京都", "大阪", "兵庫",
	"奈良", "和歌山", "鳥取", "島根", "岡山", "広島", "山口",
	"徳島", "香川", "愛媛", "高知", "福岡", "佐賀", "長崎",
	"熊本", "大分", "宮崎", "鹿児島", "沖縄",
}

// navNoise marks link text that is navigation, not a listing title.
var navNoise = []string{
	"ログイン", "会員登録", "お問い合わせ", "ヘルプ", "サイトマップ",
	"利用規約", "プライバシー", "next", "prev", "次へ", "前へ",
}

// extractFallback is the last-resort extractor for pages whose known
// containers all missed: it walks detail-looking anchors and pulls a price
// and address out of the surrounding block. Recall over precision; the
// content filter downstream drops the junk.
func extractFallback(doc *goquery.Document, pageURL, baseURL string) []models.RawFields {
	var raws []models.RawFields
	seen := make(map[string]struct{})

	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		href = strings.TrimSpace(href)
		if !looksLikeDetailLink(href) {
			return
		}

		title := strings.TrimSpace(a.Text())
		if title == "" || len(title) < 6 || isNavNoise(title) {
			return
		}

		abs := absoluteURL(href, pageURL)
		if _, dup := seen[abs]; dup {
			return
		}
		seen[abs] = struct{}{}

		raw := models.RawFields{
			"title": title,
			"url":   abs,
		}

		block := a.Closest("li, article, div, tr")
		blockText := block.Text()
		if price := priceRe.FindString(blockText); price != "" {
			raw["price"] = strings.TrimSpace(price)
		}
		if location := findPrefectureLine(blockText); location != "" {
			raw["location"] = location
		}
		if images := collectAttr(block, []string{"img"}, "data-src", "data-original", "src"); len(images) > 0 {
			raw["images"] = images
		}

		raws = append(raws, raw)
	})

	return raws
}

func looksLikeDetailLink(href string) bool {
	if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(href, "javascript:") {
		return false
	}
	lower := strings.ToLower(href)
	for _, marker := range []string{"/bukken", "/chintai/", "/kodate/", "/mansion/", "/listings/", "detail"} {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

func isNavNoise(text string) bool {
	lower := strings.ToLower(text)
	for _, noise := range navNoise {
		if strings.Contains(lower, strings.ToLower(noise)) {
			return true
		}
	}
	return false
}

// findPrefectureLine returns the first line of text mentioning a prefecture.
func findPrefectureLine(text string) string {
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || len(line) > 120 {
			continue
		}
		for _, pref := range prefectures {
			if strings.Contains(line, pref) {
				return line
			}
		}
	}
	return ""
}
