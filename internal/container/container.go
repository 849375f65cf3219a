// Package container defines the Container Adapter (§6.3): the capability
// set the Crawl Orchestrator needs from a container runtime, and a Docker
// Engine API implementation of it.
package container

import (
	"context"
	"errors"
)

// ErrNotFound is wrapped into errors from operations on a container id the
// runtime does not know; errors.Is is the check.
var ErrNotFound = errors.New("container not found")

// CreateOptions describes a container to be created but not yet started.
type CreateOptions struct {
	Image             string
	Command           []string
	Labels            map[string]string
	AutoRemove        bool
	MemoryReservation int64 // bytes; 0 means no floor
	Name              string
}

// File is a single file to be injected into a container as an in-memory
// tar archive (§4.2 step 2).
type File struct {
	Path    string
	Content []byte
}

// Info is the identification + state of one managed container (§3
// "CrawlJob").
type Info struct {
	ID     string
	Name   string
	State  string // "running", "exited", etc.
	Labels map[string]string
}

// Container is the capability set required of a container runtime (§6.3).
type Container interface {
	PullImage(ctx context.Context, image string) error
	Create(ctx context.Context, opts CreateOptions) (id string, err error)
	PutArchive(ctx context.Context, id, path string, files []File) error
	Start(ctx context.Context, id string) error
	List(ctx context.Context, labelFilter map[string]string, all bool) ([]Info, error)
	Logs(ctx context.Context, id string) (string, error)
	Remove(ctx context.Context, id string, force bool) error
}
