package scraper

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/playwright-community/playwright-go"

	"japanhouse/config"
	"japanhouse/models"
)

// BrowserHandler drives a headless Chromium for sites that render their
// listings client-side. akiya-mart serves an empty shell to plain HTTP
// clients, so it goes through here. Entry URLs are probed in order until
// one shows listing cards; pagination is click-driven.
type BrowserHandler struct {
	cfg         *config.SiteConfig
	pw          *playwright.Playwright
	browser     playwright.Browser
	mu          sync.Mutex
	initialized bool
}

// nextButtonSelectors cover the pagination controls seen on the site so
// far, tried in order alongside the YAML next_page cascade.
var nextButtonSelectors = []string{
	".pagination-next:not(.disabled)",
	"a[rel='next']",
	"li.next a",
	"a.next",
	".next-page",
}

func NewBrowserHandler(cfg *config.SiteConfig) *BrowserHandler {
	return &BrowserHandler{cfg: cfg}
}

func (h *BrowserHandler) ID() string {
	return h.cfg.ID
}

func (h *BrowserHandler) ensureBrowser() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.initialized {
		return nil
	}

	var err error
	h.pw, err = playwright.Run()
	if err != nil {
		return fmt.Errorf("failed to start playwright: %w", err)
	}

	h.browser, err = h.pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(true),
		Args: []string{
			"--disable-blink-features=AutomationControlled",
			"--disable-dev-shm-usage",
			"--no-sandbox",
		},
	})
	if err != nil {
		return fmt.Errorf("failed to launch browser: %w", err)
	}

	h.initialized = true
	return nil
}

func (h *BrowserHandler) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.browser != nil {
		h.browser.Close()
	}
	if h.pw != nil {
		h.pw.Stop()
	}
	h.initialized = false
}

func (h *BrowserHandler) Scrape(ctx context.Context, params models.RunParams) ([]models.RawFields, error) {
	if err := h.ensureBrowser(); err != nil {
		return nil, err
	}
	defer h.Close()

	page, err := h.newPage()
	if err != nil {
		return nil, err
	}
	defer page.Close()

	if err := h.findEntryPage(page); err != nil {
		return nil, err
	}

	maxPages := params.MaxPages
	if maxPages < 1 {
		maxPages = 1
	}

	var all []models.RawFields
	for pageNum := 1; pageNum <= maxPages; pageNum++ {
		if ctx.Err() != nil {
			return all, nil
		}

		listings, err := h.parseRenderedPage(page)
		if err != nil {
			if pageNum == 1 {
				return nil, err
			}
			log.Printf("Warning: page %d parse failed, keeping %d listings: %v", pageNum, len(all), err)
			return all, fmt.Errorf("page %d: %v: %w", pageNum, err, ErrPartialResults)
		}
		all = append(all, listings...)
		log.Printf("%s page %d: %d listings (total %d)", h.cfg.ID, pageNum, len(listings), len(all))

		if pageNum == maxPages || !h.clickNextPage(page) {
			break
		}
		h.humanDelay(h.pageDelay())
	}

	return all, nil
}

func (h *BrowserHandler) newPage() (playwright.Page, error) {
	browserCtx, err := h.browser.NewContext(playwright.BrowserNewContextOptions{
		UserAgent: playwright.String("Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36"),
		Viewport:  &playwright.Size{Width: 1280, Height: 800},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create context: %w", err)
	}

	page, err := browserCtx.NewPage()
	if err != nil {
		return nil, fmt.Errorf("failed to create page: %w", err)
	}
	return page, nil
}

// findEntryPage tries each configured entry URL until one renders listing
// containers. The site has reshuffled its URL scheme more than once, so
// none of the candidates is trusted individually.
func (h *BrowserHandler) findEntryPage(page playwright.Page) error {
	entryURLs := h.cfg.EntryURLs
	if len(entryURLs) == 0 {
		entryURLs = []string{h.cfg.BaseURL}
	}

	for _, entry := range entryURLs {
		log.Printf("Trying entry URL: %s", entry)
		if _, err := page.Goto(entry, playwright.PageGotoOptions{
			Timeout:   playwright.Float(60000),
			WaitUntil: playwright.WaitUntilStateNetworkidle,
		}); err != nil {
			log.Printf("Warning: navigation to %s failed: %v", entry, err)
			continue
		}

		page.WaitForTimeout(3000)

		for _, sel := range h.cfg.Selectors.Container {
			count, err := page.Locator(sel).Count()
			if err == nil && count > 0 {
				log.Printf("Found %d containers with selector %q at %s", count, sel, entry)
				return nil
			}
		}
	}

	return fmt.Errorf("no entry URL rendered listing containers for %s", h.cfg.ID)
}

// parseRenderedPage snapshots the DOM and runs the same goquery extraction
// the HTTP handlers use. Rendering and parsing stay separate so the
// extraction logic is testable without a browser.
func (h *BrowserHandler) parseRenderedPage(page playwright.Page) ([]models.RawFields, error) {
	html, err := page.Content()
	if err != nil {
		return nil, fmt.Errorf("read page content: %w", err)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}

	raws := extractCards(doc, h.cfg, page.URL())
	if len(raws) == 0 {
		raws = extractFallback(doc, page.URL(), h.cfg.BaseURL)
	}
	return raws, nil
}

// extractCards is the shared card extraction over a rendered document.
func extractCards(doc *goquery.Document, cfg *config.SiteConfig, pageURL string) []models.RawFields {
	var raws []models.RawFields

	for _, containerSel := range cfg.Selectors.Container {
		doc.Find(containerSel).Each(func(_ int, card *goquery.Selection) {
			raw := models.RawFields{}
			if title := firstText(card, cfg.Selectors.Title); title != "" {
				raw["title"] = title
			}
			if price := firstText(card, cfg.Selectors.Price); price != "" {
				raw["price"] = price
			}
			if location := firstText(card, cfg.Selectors.Location); location != "" {
				raw["location"] = location
			}
			if href := firstAttr(card, cfg.Selectors.Link, "href"); href != "" {
				raw["url"] = absoluteURL(href, pageURL)
			}
			if images := collectAttr(card, cfg.Selectors.Image, "src", "data-src"); len(images) > 0 {
				raw["images"] = images
			}

			// Cards with none of the headline fields are navigation chrome.
			if raw.GetString("title") != "" || raw.GetString("price") != "" || raw.GetString("location") != "" {
				raws = append(raws, raw)
			}
		})
		if len(raws) > 0 {
			break
		}
	}

	return raws
}

func (h *BrowserHandler) clickNextPage(page playwright.Page) bool {
	selectors := append([]string{}, h.cfg.Selectors.NextPage...)
	selectors = append(selectors, nextButtonSelectors...)

	for _, sel := range selectors {
		btn := page.Locator(sel).First()
		if visible, _ := btn.IsVisible(); !visible {
			continue
		}
		if err := btn.Click(); err != nil {
			log.Printf("Warning: next-page click failed for %q: %v", sel, err)
			continue
		}
		page.WaitForLoadState(playwright.PageWaitForLoadStateOptions{
			State:   playwright.LoadStateNetworkidle,
			Timeout: playwright.Float(30000),
		})
		return true
	}

	log.Printf("No next page control found, ending pagination")
	return false
}

// pageDelay derives the between-pages pause from the site's rate_limit_ms:
// at least the configured limit, at most double it.
func (h *BrowserHandler) pageDelay() (minMs, maxMs int) {
	base := h.cfg.RateLimitMS
	if base <= 0 {
		base = 2000
	}
	return base, base * 2
}

func (h *BrowserHandler) humanDelay(minMs, maxMs int) {
	delay := minMs + rand.Intn(maxMs-minMs)
	time.Sleep(time.Duration(delay) * time.Millisecond)
}
