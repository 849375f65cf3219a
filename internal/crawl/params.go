// Package crawl implements the Crawl Orchestrator (§4.2): URL-derived crawl
// parameters, pre-flight validation, worker config generation, container
// launch, and fleet management.
package crawl

import (
	"net/url"
	"strings"
)

// Params is the pure derivation of crawl parameters from a seed URL (§4.2).
type Params struct {
	SeedURL       string
	Domain        string
	FilterPattern string
}

// DeriveParams computes Params for a seed URL U:
//   - SeedURL = U.
//   - Domain = scheme + "://" + authority.
//   - FilterPattern = the URL path, truncated to the last "/" (inclusive) if
//     the final path segment contains a "." and does not end with "/"; "/"
//     if that truncation is empty.
func DeriveParams(seedURL string) (Params, error) {
	u, err := url.Parse(seedURL)
	if err != nil {
		return Params{}, err
	}

	path := u.Path
	filterPattern := path

	lastSegment := path
	if idx := strings.LastIndex(path, "/"); idx >= 0 {
		lastSegment = path[idx+1:]
	}

	if !strings.HasSuffix(path, "/") && strings.Contains(lastSegment, ".") {
		if idx := strings.LastIndex(path, "/"); idx >= 0 {
			filterPattern = path[:idx+1]
		} else {
			filterPattern = ""
		}
		if filterPattern == "" {
			filterPattern = "/"
		}
	}

	return Params{
		SeedURL:       seedURL,
		Domain:        u.Scheme + "://" + u.Host,
		FilterPattern: filterPattern,
	}, nil
}
