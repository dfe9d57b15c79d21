// Package resolver implements the import-specifier resolution rules of
// spec.md §4.1: alias application, bare-package detection against
// externals/manifest, and relative-path resolution with index/extension
// fallbacks against the in-memory file set.
package resolver

import (
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/conneroisu/sandboxgraph/internal/module"
)

// ErrModuleNotFound is returned when no local file, external, or manifest
// entry matches a specifier.
var ErrModuleNotFound = errors.New("module-not-found")

// NotFoundError carries the specifier and whether the failure should be
// treated as an async dependency (isDependency), per spec.md §4.1 rule 5
// and §7.
type NotFoundError struct {
	Specifier    string
	FromPath     string
	IsDependency bool
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("module-not-found: %s (from %s)", e.Specifier, e.FromPath)
}

func (e *NotFoundError) Unwrap() error { return ErrModuleNotFound }

// Kind distinguishes what a resolved specifier refers to.
type Kind int

const (
	KindLocal Kind = iota
	KindExternal
	KindManifest
)

// External is a dependency whose code is injected by the host rather than
// transpiled in-graph (spec.md glossary: Externals).
type External struct {
	Name    string
	Exports map[string]interface{}
}

// ManifestEntry is one resolved external package entry, keyed by bare
// package name in the Manager's manifest.
type ManifestEntry struct {
	Name        string
	EntryModule module.Module
}

// Result is the outcome of Resolve. Query carries the loader-chain prefix
// split off the specifier (e.g. "style-loader!css-loader"), so a caller can
// key the resulting node's identity as (path, query) per spec.md §3/§4.1 —
// distinct loader chains against the same path get distinct graph nodes.
type Result struct {
	Kind     Kind
	Query    string
	Module   module.Module
	External External
}

// AliasSource resolves preset import aliases; satisfied by preset.Preset.
type AliasSource interface {
	GetAliasedPath(specifier string) string
}

// Resolver resolves specifiers against a base directory and the manager's
// file set, externals, and manifest.
type Resolver struct {
	Aliases   AliasSource
	Externals map[string]External
	Manifest  map[string]ManifestEntry
	Files     map[string]module.Module
}

var scriptExtensions = []string{".js", ".jsx", ".ts", ".tsx", ".mjs", ".json"}

// SplitLoaderChain splits a specifier on "!" into its loader-chain query
// prefix and the final path component, per spec.md §4.1 rule 1.
func SplitLoaderChain(specifier string) (query, rest string) {
	idx := strings.LastIndex(specifier, "!")
	if idx < 0 {
		return "", specifier
	}
	return specifier[:idx], specifier[idx+1:]
}

// isBarePackage reports whether specifier names a package rather than a
// relative/absolute path: it starts with a word character or "@word", and
// it carries no loader-chain "!" (that case is already split off by the
// caller before isBarePackage is consulted).
func isBarePackage(specifier string) bool {
	if specifier == "" {
		return false
	}
	if specifier[0] == '@' {
		return len(specifier) > 1 && isWordChar(specifier[1])
	}
	return isWordChar(specifier[0])
}

// IsBarePackage exposes isBarePackage to callers outside this package (the
// graph manager's require closure needs the same bare/relative distinction
// the resolver uses internally).
func IsBarePackage(specifier string) bool {
	return isBarePackage(specifier)
}

func isWordChar(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9') || b == '_'
}

// Resolve implements spec.md §4.1.
func (r *Resolver) Resolve(specifier, fromPath string) (Result, error) {
	query, rest := SplitLoaderChain(specifier)

	aliased := rest
	if r.Aliases != nil {
		aliased = r.Aliases.GetAliasedPath(rest)
	}

	if isBarePackage(aliased) {
		if ext, ok := r.Externals[aliased]; ok {
			return Result{Kind: KindExternal, Query: query, External: ext}, nil
		}
		if entry, ok := r.Manifest[PackageName(aliased)]; ok {
			return Result{Kind: KindManifest, Query: query, Module: entry.EntryModule}, nil
		}
		return Result{}, &NotFoundError{Specifier: aliased, FromPath: fromPath, IsDependency: true}
	}

	base := path.Dir(fromPath)
	if strings.HasPrefix(aliased, "/") {
		base = "/"
	}
	joined := path.Join(base, aliased)

	for _, candidate := range candidatePaths(joined) {
		if mod, ok := r.Files[candidate]; ok {
			return Result{Kind: KindLocal, Query: query, Module: mod}, nil
		}
	}

	return Result{}, &NotFoundError{Specifier: specifier, FromPath: fromPath, IsDependency: false}
}

// candidatePaths enumerates, in order, the exact path, path+extension, and
// path+"/index"+extension fallbacks of spec.md §4.1 rule 4.
func candidatePaths(joined string) []string {
	candidates := []string{joined}
	for _, ext := range scriptExtensions {
		candidates = append(candidates, joined+ext)
	}
	indexBase := path.Join(joined, "index")
	for _, ext := range scriptExtensions {
		candidates = append(candidates, indexBase+ext)
	}
	return candidates
}

// PackageName extracts the package root from a specifier that may include
// a subpath, e.g. "lodash/debounce" -> "lodash", "@scope/pkg/x" ->
// "@scope/pkg". Exported so callers that cache manifest entries keyed by
// package root (Manager.DownloadDependency) use the exact same rule the
// manifest lookup branch of Resolve does.
func PackageName(specifier string) string {
	if strings.HasPrefix(specifier, "@") {
		parts := strings.SplitN(specifier, "/", 3)
		if len(parts) >= 2 {
			return parts[0] + "/" + parts[1]
		}
		return specifier
	}
	parts := strings.SplitN(specifier, "/", 2)
	return parts[0]
}
