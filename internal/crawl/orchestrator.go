package crawl

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"

	"github.com/kbmcp/kbmcp/internal/container"
	"github.com/kbmcp/kbmcp/internal/kberrors"
	"github.com/kbmcp/kbmcp/internal/webprobe"
)

const (
	managedByLabel = "managed-by"
	managedByValue = "mcp-crawler"
	domainLabel    = "crawl-domain"

	// defaultMemoryReservation is the memory floor given to every crawl
	// worker container (§4.2 "a memory reservation floor").
	defaultMemoryReservation = 256 * 1024 * 1024

	defaultMaxChildPageLimit = 500
)

// WorkerConfig describes the crawler worker image and the backend
// connection block it should be given (§6.4, §6.5).
type WorkerConfig struct {
	Image        string
	ESConnection map[string]any
}

// Orchestrator is the Crawl Orchestrator (§4.2).
type Orchestrator struct {
	containers container.Container
	probe      *webprobe.Probe
	worker     WorkerConfig

	pullMu sync.Mutex
	pulled bool
}

// NewOrchestrator builds an Orchestrator bound to a Container runtime and a
// Web Probe.
func NewOrchestrator(containers container.Container, probe *webprobe.Probe, worker WorkerConfig) *Orchestrator {
	return &Orchestrator{containers: containers, probe: probe, worker: worker}
}

// ValidationResult is what ValidateCrawl returns on success: the derived
// parameters plus the probe's link partition, which callers typically need
// next (e.g. to size a crawl or report skipped links).
type ValidationResult struct {
	Params      Params
	ProbeResult webprobe.Result
}

// ValidateCrawl runs the pre-flight validation sequence (§4.2): derive
// parameters, probe the seed URL, and reject pages that are both noindex
// and nofollow or whose crawlable link set exceeds maxChildLimit. A
// maxChildLimit of 0 uses the default of 500.
func (o *Orchestrator) ValidateCrawl(ctx context.Context, seedURL string, maxChildLimit int) (ValidationResult, error) {
	if maxChildLimit == 0 {
		maxChildLimit = defaultMaxChildPageLimit
	}

	params, err := DeriveParams(seedURL)
	if err != nil {
		return ValidationResult{}, kberrors.New(kberrors.CrawlerValidationHTTP, "validating crawl target", err)
	}

	probeResult, err := o.probe.ExtractURLs(ctx, seedURL, params.Domain, params.FilterPattern)
	if err != nil {
		return ValidationResult{}, kberrors.New(kberrors.CrawlerValidationHTTP, "validating crawl target", err)
	}

	if probeResult.PageIsNoIndex && probeResult.PageIsNoFollow {
		return ValidationResult{}, kberrors.New(kberrors.CrawlerValidationNoIndexNofollow, "validating crawl target",
			fmt.Errorf("page %q is both noindex and nofollow", seedURL))
	}

	if len(probeResult.URLsToCrawl) > maxChildLimit {
		return ValidationResult{}, kberrors.New(kberrors.CrawlerValidationTooManyURLs, "validating crawl target",
			fmt.Errorf("page %q links to %d crawlable URLs, exceeding the limit of %d", seedURL, len(probeResult.URLsToCrawl), maxChildLimit))
	}

	return ValidationResult{Params: params, ProbeResult: probeResult}, nil
}

// CrawlDomain launches a crawl worker container for the given parameters
// (§4.2 "Launch"). On failure after container creation, it attempts a
// best-effort cleanup of the half-created container.
func (o *Orchestrator) CrawlDomain(ctx context.Context, params Params, backendID string, excludePaths []string) (containerID string, err error) {
	configBytes, err := BuildConfig(params, backendID, excludePaths, o.worker.ESConnection)
	if err != nil {
		return "", kberrors.New(kberrors.ContainerStartFailed, "building crawl config", err)
	}

	suffix, err := randomHex8()
	if err != nil {
		return "", kberrors.New(kberrors.ContainerStartFailed, "starting crawl", err)
	}

	if err := o.ensureImage(ctx); err != nil {
		return "", kberrors.New(kberrors.ContainerStartFailed,
			fmt.Sprintf("pulling crawl worker image %q", o.worker.Image), err)
	}

	id, err := o.containers.Create(ctx, container.CreateOptions{
		Image:             o.worker.Image,
		Command:           []string{"ruby", "bin/crawler", "crawl", ConfigFilename},
		Labels:            map[string]string{managedByLabel: managedByValue, domainLabel: params.Domain},
		AutoRemove:        false,
		MemoryReservation: defaultMemoryReservation,
		Name:              fmt.Sprintf("mcp-crawler-%s-%s", backendID, suffix),
	})
	if err != nil {
		return "", kberrors.New(kberrors.ContainerStartFailed, fmt.Sprintf("creating crawl container for domain %q", params.Domain), err)
	}

	if err := o.containers.PutArchive(ctx, id, "/", []container.File{{Path: ConfigFilename, Content: configBytes}}); err != nil {
		o.bestEffortRemove(ctx, id)
		return "", kberrors.New(kberrors.ContainerStartFailed, fmt.Sprintf("injecting crawl config into container %q", id), err)
	}

	if err := o.containers.Start(ctx, id); err != nil {
		o.bestEffortRemove(ctx, id)
		return "", kberrors.New(kberrors.ContainerStartFailed, fmt.Sprintf("starting crawl container %q", id), err)
	}

	return id, nil
}

// ensureImage pulls the worker image on the first launch. Only a successful
// pull is remembered, so a transient registry failure is retried on the next
// launch.
func (o *Orchestrator) ensureImage(ctx context.Context) error {
	o.pullMu.Lock()
	defer o.pullMu.Unlock()
	if o.pulled {
		return nil
	}
	if err := o.containers.PullImage(ctx, o.worker.Image); err != nil {
		return err
	}
	o.pulled = true
	return nil
}

func (o *Orchestrator) bestEffortRemove(ctx context.Context, id string) {
	_ = o.containers.Remove(ctx, id, true)
}

func randomHex8() (string, error) {
	buf := make([]byte, 4)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate container name suffix: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// ListCrawls enumerates all containers with the managed-by label (§4.2).
func (o *Orchestrator) ListCrawls(ctx context.Context) ([]container.Info, error) {
	infos, err := o.containers.List(ctx, map[string]string{managedByLabel: managedByValue}, true)
	if err != nil {
		return nil, kberrors.New(kberrors.Retrieval, "listing crawls", err)
	}
	return infos, nil
}

// GetCrawlLogs returns the stdout+stderr log stream of the given crawl
// container, surfacing ContainerNotFound if the id is unknown (§4.2).
func (o *Orchestrator) GetCrawlLogs(ctx context.Context, id string) (string, error) {
	logs, err := o.containers.Logs(ctx, id)
	if err != nil {
		return "", kberrors.New(containerErrKind(err, kberrors.Retrieval), fmt.Sprintf("getting logs for crawl %q", id), err)
	}
	return logs, nil
}

// StopCrawl force-removes the given crawl container (§4.2).
func (o *Orchestrator) StopCrawl(ctx context.Context, id string) error {
	if err := o.containers.Remove(ctx, id, true); err != nil {
		return kberrors.New(containerErrKind(err, kberrors.Deletion), fmt.Sprintf("stopping crawl %q", id), err)
	}
	return nil
}

// containerErrKind classifies a container runtime error: an unknown id is
// ContainerNotFound, anything else keeps the operation's kind.
func containerErrKind(err error, opKind kberrors.Kind) kberrors.Kind {
	if errors.Is(err, container.ErrNotFound) {
		return kberrors.ContainerNotFound
	}
	return opKind
}

// RemovalSummary reports the outcome of RemoveCompletedCrawls.
type RemovalSummary struct {
	Removed int
	Total   int
}

// RemoveCompletedCrawls lists all managed containers (including stopped),
// filters to state == "exited", and removes each; individual failures are
// collected, not raised (§4.2).
func (o *Orchestrator) RemoveCompletedCrawls(ctx context.Context) (RemovalSummary, error) {
	infos, err := o.containers.List(ctx, map[string]string{managedByLabel: managedByValue}, true)
	if err != nil {
		return RemovalSummary{}, kberrors.New(kberrors.Retrieval, "listing crawls for cleanup", err)
	}

	var exited []container.Info
	for _, info := range infos {
		if info.State == "exited" {
			exited = append(exited, info)
		}
	}

	removed := 0
	for _, info := range exited {
		if err := o.containers.Remove(ctx, info.ID, true); err == nil {
			removed++
		}
	}

	return RemovalSummary{Removed: removed, Total: len(exited)}, nil
}
