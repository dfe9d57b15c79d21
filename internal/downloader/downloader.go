// Package downloader is the out-of-scope dependency-downloader collaborator
// of spec.md §2 and §6: given a bare specifier the path resolver could not
// place in the manifest, it produces a Module record for the package
// (typically by fetching it from a package registry/CDN). The graph
// manager only depends on the Downloader interface; this package also
// supplies a manifest-backed stand-in for deployments that pre-resolve
// their entire dependency set and never need a live fetch.
package downloader

import (
	"context"
	"fmt"

	"github.com/conneroisu/sandboxgraph/internal/module"
)

// Downloader resolves a bare specifier encountered during transpile into a
// Module, invoked from a TranspiledModule's AsyncDependency.Resolve closure.
type Downloader interface {
	Download(ctx context.Context, specifier, fromPath string) (module.Module, error)
}

// ManifestDownloader answers downloads purely from a precomputed manifest,
// for deployments where the dependency manifest is resolved up front by an
// external service and no further network access happens from the core.
type ManifestDownloader struct {
	Manifest map[string]module.Module
}

// NewManifestDownloader builds a Downloader over a precomputed manifest.
func NewManifestDownloader(manifest map[string]module.Module) *ManifestDownloader {
	return &ManifestDownloader{Manifest: manifest}
}

func (d *ManifestDownloader) Download(_ context.Context, specifier, fromPath string) (module.Module, error) {
	if mod, ok := d.Manifest[specifier]; ok {
		return mod, nil
	}
	return module.Module{}, fmt.Errorf("download: %s not found in manifest (from %s)", specifier, fromPath)
}
