package webprobe

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

const testPage = `<!DOCTYPE html>
<html><head>
<meta name="robots" content="noindex, nofollow">
</head><body>
<a href="/docs/page1">Page 1</a>
<a href="/docs/page2" rel="nofollow">Page 2 (nofollow)</a>
<a href="https://other.test/elsewhere">Other domain</a>
<a href="/docs/page1#section">Duplicate with fragment</a>
</body></html>`

func TestExtractURLs_RobotsDirectivesAndPartitioning(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(testPage))
	}))
	defer srv.Close()

	p := New()
	result, err := p.ExtractURLs(context.Background(), srv.URL, srv.URL, "/docs")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !result.PageIsNoIndex || !result.PageIsNoFollow {
		t.Errorf("expected both noindex and nofollow to be detected, got %+v", result)
	}

	if len(result.URLsToCrawl) != 1 || result.URLsToCrawl[0] != srv.URL+"/docs/page1" {
		t.Errorf("expected a single deduplicated urls_to_crawl entry, got %v", result.URLsToCrawl)
	}

	if len(result.SkippedURLs) != 1 || result.SkippedURLs[0] != srv.URL+"/docs/page2" {
		t.Errorf("expected page2 to be skipped as nofollow, got %v", result.SkippedURLs)
	}
}

func TestExtractURLs_NoFilters(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html><body><a href="/a">a</a><a href="http://elsewhere.test/b">b</a></body></html>`))
	}))
	defer srv.Close()

	p := New()
	result, err := p.ExtractURLs(context.Background(), srv.URL, "", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.URLsToCrawl) != 2 {
		t.Errorf("expected both links with no filters applied, got %v", result.URLsToCrawl)
	}
}

func TestExtractURLs_HTTPErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	p := New()
	if _, err := p.ExtractURLs(context.Background(), srv.URL, "", ""); err == nil {
		t.Error("expected an error for a 404 response")
	}
}
