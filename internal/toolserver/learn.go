package toolserver

import (
	"context"

	"github.com/kbmcp/kbmcp/internal/container"
	"github.com/kbmcp/kbmcp/internal/crawl"
	"github.com/kbmcp/kbmcp/internal/kb"
)

// WebDocumentationProto is the write shape for a from_web_documentation
// call: the docs KB to create (or reuse) and the seed URL to crawl.
type WebDocumentationProto struct {
	Name        string
	URL         string
	Description string
}

// CrawlStartSuccess is returned when a crawl launch succeeds (§4.4).
type CrawlStartSuccess struct {
	URL             string
	KnowledgeBaseID string
	ContainerID     string
}

// CrawlStartFailure is returned for any business failure in
// from_web_documentation; the tool never raises for these (§4.4, §7).
type CrawlStartFailure struct {
	URL    string
	Reason string
}

// LearnServer exposes urls_from_webpage/from_web_documentation/
// active_documentation_requests under the "learn" prefix (§4.4).
type LearnServer struct {
	manager      *kb.Manager
	orchestrator *crawl.Orchestrator
}

// NewLearnServer builds a LearnServer bound to the given Manager and
// Orchestrator.
func NewLearnServer(manager *kb.Manager, orchestrator *crawl.Orchestrator) *LearnServer {
	return &LearnServer{manager: manager, orchestrator: orchestrator}
}

// UrlsFromWebpage wraps the Web Probe's urls_to_crawl set.
func (s *LearnServer) UrlsFromWebpage(ctx context.Context, url string) ([]string, error) {
	validation, err := s.orchestrator.ValidateCrawl(ctx, url, 0)
	if err != nil {
		return nil, err
	}
	return validation.ProbeResult.URLsToCrawl, nil
}

// FromWebDocumentation validates the crawl target, reuses or creates a
// "docs" KB (subject to overwrite), and launches the crawl against it. It
// never returns an error for business failures — those surface as a typed
// CrawlStartFailure result (§4.4, §7 exception).
func (s *LearnServer) FromWebDocumentation(ctx context.Context, proto WebDocumentationProto, maxChildPageLimit int, overwrite bool) (*CrawlStartSuccess, *CrawlStartFailure) {
	validation, err := s.orchestrator.ValidateCrawl(ctx, proto.URL, maxChildPageLimit)
	if err != nil {
		return nil, &CrawlStartFailure{URL: proto.URL, Reason: err.Error()}
	}

	target, found, err := s.manager.TryGetByName(ctx, proto.Name)
	if err != nil {
		return nil, &CrawlStartFailure{URL: proto.URL, Reason: err.Error()}
	}

	if found && !overwrite {
		return nil, &CrawlStartFailure{URL: proto.URL, Reason: "knowledge base \"" + proto.Name + "\" already exists and overwrite is false"}
	}

	if !found {
		target, err = s.manager.Create(ctx, kb.CreateProto{
			Name:        proto.Name,
			Type:        "docs",
			DataSource:  proto.URL,
			Description: proto.Description,
		})
		if err != nil {
			return nil, &CrawlStartFailure{URL: proto.URL, Reason: err.Error()}
		}
	}

	containerID, err := s.orchestrator.CrawlDomain(ctx, validation.Params, target.BackendID, nil)
	if err != nil {
		return nil, &CrawlStartFailure{URL: proto.URL, Reason: err.Error()}
	}

	return &CrawlStartSuccess{URL: proto.URL, KnowledgeBaseID: target.BackendID, ContainerID: containerID}, nil
}

// ActiveDocumentationRequests wraps ListCrawls.
func (s *LearnServer) ActiveDocumentationRequests(ctx context.Context) ([]container.Info, error) {
	return s.orchestrator.ListCrawls(ctx)
}
