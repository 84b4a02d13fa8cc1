// Package images cleans scraped image URL lists: placeholder removal,
// relative-URL resolution, thumbnail-proxy rewriting and deduplication.
package images

import (
	"net/url"
	"strings"
)

// placeholderPatterns are substrings (matched case-insensitively) that mark
// non-content images: loading spinners, spacers, visited-marker icons and the
// like. Collected from the source sites over time.
var placeholderPatterns = []string{
	"loading",
	"icon_",
	"blank.png",
	"spacer",
	".gif",
	"utility/loading",
	"icon_visited",
	"icon_sokunyu",
}

// Resolve filters and canonicalizes an image URL list. Placeholders are
// dropped, relative URLs resolved against base, smallimg thumbnail-proxy
// URLs rewritten to the original image they wrap, and duplicates removed
// while keeping first-seen order. Already-canonical input passes through
// unchanged. Malformed URLs are kept as-is rather than dropped or raised.
func Resolve(urls []string, base string) []string {
	seen := make(map[string]struct{}, len(urls))
	var out []string

	for _, raw := range urls {
		if raw == "" || isPlaceholder(raw) {
			continue
		}

		resolved := absolutize(raw, base)
		resolved = unwrapProxy(resolved)

		if _, dup := seen[resolved]; dup {
			continue
		}
		seen[resolved] = struct{}{}
		out = append(out, resolved)
	}

	return out
}

func isPlaceholder(u string) bool {
	lower := strings.ToLower(u)
	for _, pattern := range placeholderPatterns {
		if strings.Contains(lower, pattern) {
			return true
		}
	}
	return false
}

func absolutize(raw, base string) string {
	if base == "" {
		return raw
	}
	baseURL, err := url.Parse(base)
	if err != nil {
		return raw
	}
	ref, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	return baseURL.ResolveReference(ref).String()
}

// unwrapProxy rewrites thumbnail-proxy URLs of the form
// .../smallimg?file=<original>&... to the original full-resolution URL.
// A proxy URL without a usable file parameter is returned unchanged.
func unwrapProxy(u string) string {
	if !strings.Contains(u, "smallimg") || !strings.Contains(u, "file=") {
		return u
	}
	parsed, err := url.Parse(u)
	if err != nil {
		return u
	}
	params, err := url.ParseQuery(parsed.RawQuery)
	if err != nil {
		return u
	}
	if original := params.Get("file"); original != "" {
		return original
	}
	return u
}
