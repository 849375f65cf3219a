// Package webprobe implements the Web Probe (§1, §6): fetching a URL and
// returning robots meta directives and partitioned link sets.
package webprobe

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

const fetchTimeout = 10 * time.Second

// Result is the outcome of extracting URLs from a webpage (§1: the
// extract_urls(url, domain_filter, path_filter) contract).
type Result struct {
	PageIsNoIndex  bool
	PageIsNoFollow bool
	URLsToCrawl    []string
	SkippedURLs    []string
}

// Probe fetches and parses webpages. It is safe for concurrent use.
type Probe struct {
	client *http.Client
}

// New builds a Probe using a client with the standard fetch timeout.
func New() *Probe {
	return &Probe{client: &http.Client{Timeout: fetchTimeout}}
}

// ExtractURLs fetches pageURL and returns its robots directives and its
// links partitioned into urls_to_crawl and skipped_urls, filtered by
// domainFilter and pathFilter (empty strings mean "no filter") (§1).
func (p *Probe) ExtractURLs(ctx context.Context, pageURL, domainFilter, pathFilter string) (Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return Result{}, fmt.Errorf("build request for %q: %w", pageURL, err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("fetch %q: %w", pageURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return Result{}, fmt.Errorf("fetch %q: status %s", pageURL, resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return Result{}, fmt.Errorf("parse %q: %w", pageURL, err)
	}

	result := Result{}

	doc.Find("meta[name]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		name, _ := s.Attr("name")
		if !strings.EqualFold(name, "robots") {
			return true
		}
		content := strings.ToLower(s.AttrOr("content", ""))
		if strings.Contains(content, "noindex") {
			result.PageIsNoIndex = true
		}
		if strings.Contains(content, "nofollow") {
			result.PageIsNoFollow = true
		}
		return false
	})

	toCrawl := map[string]struct{}{}
	skipped := map[string]struct{}{}

	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, ok := s.Attr("href")
		if !ok {
			return
		}

		isNofollowLink := false
		for _, rel := range strings.Fields(s.AttrOr("rel", "")) {
			if strings.EqualFold(rel, "nofollow") {
				isNofollowLink = true
				break
			}
		}

		absolute, err := url.Parse(pageURL)
		if err != nil {
			return
		}
		ref, err := url.Parse(href)
		if err != nil {
			return
		}
		resolved := absolute.ResolveReference(ref)
		resolved.Fragment = ""
		resolved.RawQuery = ""

		resolvedDomain := resolved.Scheme + "://" + resolved.Host

		if pathFilter != "" && !strings.HasPrefix(resolved.Path, pathFilter) {
			return
		}
		if domainFilter != "" && resolvedDomain != domainFilter {
			return
		}

		cleaned := resolved.String()
		if isNofollowLink {
			skipped[cleaned] = struct{}{}
		} else {
			toCrawl[cleaned] = struct{}{}
		}
	})

	result.URLsToCrawl = sortedKeys(toCrawl)
	result.SkippedURLs = sortedKeys(skipped)

	return result, nil
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
