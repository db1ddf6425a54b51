package queryids

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// DefaultPages are the entry points whose HTML references the client bundles.
var DefaultPages = []string{
	"https://x.com/?lang=en",
	"https://x.com/explore",
	"https://x.com/notifications",
	"https://x.com/settings/profile",
}

// ErrNoBundles is returned when no page referenced any client bundle.
var ErrNoBundles = errors.New("no client bundles found (page layout changed?)")

var bundleURLRe = regexp.MustCompile(`https://abs\.twimg\.com/responsive-web/client-web(?:-legacy)?/[A-Za-z0-9.-]+\.js`)

// FetchFunc retrieves the body of a URL as text.
type FetchFunc func(ctx context.Context, url string) (string, error)

const discoveryUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"

// HTTPFetch is the default FetchFunc. It issues a plain browser-like GET.
func HTTPFetch(ctx context.Context, url string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", discoveryUserAgent)
	req.Header.Set("Accept", "text/html,application/json;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("GET %s: HTTP %d", url, resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// discoverBundles fetches every page and returns the referenced bundle URLs
// in first-seen order. Failing pages are skipped.
func discoverBundles(ctx context.Context, fetch FetchFunc, pages []string, log *slog.Logger) ([]string, error) {
	seen := make(map[string]bool)
	var bundles []string
	add := func(u string) {
		if !seen[u] {
			seen[u] = true
			bundles = append(bundles, u)
		}
	}

	for _, page := range pages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		html, err := fetch(ctx, page)
		if err != nil {
			log.Debug("bundle discovery: page fetch failed", slog.String("page", page), slog.Any("error", err))
			continue
		}
		for _, u := range bundleURLsFromHTML(html) {
			add(u)
		}
	}

	if len(bundles) == 0 {
		return nil, ErrNoBundles
	}
	return bundles, nil
}

// bundleURLsFromHTML collects bundle references from script and preload
// tags, then from inline script text. Markup outside scripts is ignored.
// A page goquery cannot parse is scanned as raw text.
func bundleURLsFromHTML(html string) []string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return bundleURLRe.FindAllString(html, -1)
	}

	var out []string
	doc.Find("script[src], link[href]").Each(func(_ int, s *goquery.Selection) {
		ref, ok := s.Attr("src")
		if !ok {
			ref, _ = s.Attr("href")
		}
		if u := bundleURLRe.FindString(ref); u != "" {
			out = append(out, u)
		}
	})
	doc.Find("script:not([src])").Each(func(_ int, s *goquery.Selection) {
		out = append(out, bundleURLRe.FindAllString(s.Text(), -1)...)
	})
	return out
}

// bundleLabel is the filename part of a bundle URL.
func bundleLabel(bundleURL string) string {
	return path.Base(bundleURL)
}
