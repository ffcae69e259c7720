// Package report inverts human-facing report slugs back to scanned URLs.
// The slug is a lossy transform of the URL, so matching runs an explicit
// ranked list of candidate strategies rather than a single lookup.
package report

import (
	"context"
	"log/slog"
	"net/url"
	"strings"

	"github.com/AxeWatch/go-api/axewatch"
	"github.com/AxeWatch/go-api/axewatch/cache"
)

// Strategy tags how a slug was resolved to a URL. The declaration order
// below is the match priority order.
type Strategy string

const (
	StrategyDirect             Strategy = "direct"
	StrategyHyphenToSlash      Strategy = "hyphen-to-slash"
	StrategyHyphenToUnderscore Strategy = "hyphen-to-underscore"
	StrategyTestPageFallback   Strategy = "test-page-fallback"
)

// Candidate is one literal-URL guess for a slug.
type Candidate struct {
	URL      string
	Strategy Strategy
}

// testPageMarker identifies the built-in test-violations page in both slugs
// and URLs.
const testPageMarker = "test-violations"

// Candidates generates literal URL guesses for a report slug, in match
// priority order: direct concatenation (with and without trailing slash),
// hyphens as path separators, hyphens as underscores.
func Candidates(slug, baseURL string) []Candidate {
	base := strings.TrimRight(baseURL, "/")
	direct := base + "/" + slug
	return []Candidate{
		{URL: direct, Strategy: StrategyDirect},
		{URL: direct + "/", Strategy: StrategyDirect},
		{URL: base + "/" + strings.ReplaceAll(slug, "-", "/"), Strategy: StrategyHyphenToSlash},
		{URL: base + "/" + strings.ReplaceAll(slug, "-", "_"), Strategy: StrategyHyphenToUnderscore},
	}
}

// Match finds the scanned URL a slug most likely refers to. Candidates are
// evaluated in priority order against every scanned URL; the first candidate
// that matches anything wins. When nothing matches exactly, slugs that look
// like the test-violations page fall back to any scanned test-violations URL.
func Match(slug, baseURL string, scanned []string) (matched string, strategy Strategy, ok bool) {
	for _, cand := range Candidates(slug, baseURL) {
		candPath := comparablePath(cand.URL)
		for _, u := range scanned {
			if comparablePath(u) == candPath {
				return u, cand.Strategy, true
			}
		}
	}

	if looksLikeTestPage(slug) {
		for _, u := range scanned {
			if looksLikeTestPage(u) {
				return u, StrategyTestPageFallback, true
			}
		}
	}

	return "", "", false
}

// comparablePath reduces a URL to its lowercased path component with the
// trailing slash trimmed. Query and fragment are ignored.
func comparablePath(raw string) string {
	lower := strings.ToLower(raw)
	u, err := url.Parse(lower)
	if err != nil {
		return strings.TrimRight(lower, "/")
	}
	return strings.TrimRight(u.Path, "/")
}

func looksLikeTestPage(s string) bool {
	flattened := strings.ReplaceAll(strings.ToLower(s), "_", "-")
	return strings.Contains(flattened, testPageMarker)
}

// EmptySnapshot is the zeroed always-render fallback for an unresolved slug.
func EmptySnapshot() axewatch.ScanSnapshot {
	return axewatch.ScanSnapshot{
		Violations: []axewatch.ViolationRecord{},
	}
}

// Lookup resolves a slug against the cache. Unresolvable slugs and cache
// misses yield the empty snapshot rather than an error, so report pages
// always render.
func Lookup(ctx context.Context, svc *cache.Service, slug, baseURL string) (axewatch.ScanSnapshot, Strategy, bool) {
	scanned, err := svc.ScannedURLs(ctx)
	if err != nil {
		slog.Error("Failed to list scanned URLs for report lookup", "slug", slug, "error", err)
		return EmptySnapshot(), "", false
	}

	matched, strategy, ok := Match(slug, baseURL, scanned)
	if !ok {
		return EmptySnapshot(), "", false
	}

	snap, found, err := svc.Get(ctx, matched)
	if err != nil {
		slog.Error("Failed to fetch snapshot for report lookup", "slug", slug, "url", matched, "error", err)
		return EmptySnapshot(), "", false
	}
	if !found {
		// Registry and store can transiently disagree.
		return EmptySnapshot(), "", false
	}
	return snap, strategy, true
}
