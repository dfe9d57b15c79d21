// Package graph implements the module-graph manager and the
// TranspiledModule lifecycle operations of spec.md §4.3/§4.4 — the core of
// the bundler. Manager is the single-owner mutator of the graph; the
// packages it imports (module, loader, preset, resolver, eval, serialize,
// storage, diagnostics, downloader, logging) never import graph, so
// TranspiledModule itself stays a pure edge-bookkeeping type and all
// orchestration lives here.
package graph

import (
	"context"
	"fmt"
	"path"
	"sync"

	"github.com/conneroisu/sandboxgraph/internal/diagnostics"
	"github.com/conneroisu/sandboxgraph/internal/downloader"
	"github.com/conneroisu/sandboxgraph/internal/eval"
	"github.com/conneroisu/sandboxgraph/internal/logging"
	"github.com/conneroisu/sandboxgraph/internal/module"
	"github.com/conneroisu/sandboxgraph/internal/preset"
	"github.com/conneroisu/sandboxgraph/internal/resolver"
	"github.com/conneroisu/sandboxgraph/internal/serialize"
	"github.com/conneroisu/sandboxgraph/internal/storage"
)

// Config supplies the collaborators a Manager needs. Preset, Storage,
// Evaluator and Downloader are the out-of-scope interfaces spec.md §2/§6
// name; Logger and Diagnostics follow the ambient conventions of the rest
// of this module.
type Config struct {
	SandboxID    string
	Preset       preset.Preset
	Storage      storage.Storage
	Evaluator    eval.Evaluator
	Downloader   downloader.Downloader
	Diagnostics  *diagnostics.Collector
	Logger       logging.Logger
	EnvVariables map[string]string
}

// Manager owns the entire transpiled-module node set for one sandbox, per
// spec.md §3 Manager. All map mutations go through mu, matching the
// single-owner discipline spec.md §5/§9 calls for in a threaded host.
type Manager struct {
	mu sync.Mutex

	id     string
	preset preset.Preset

	modules           map[string]module.Module
	transpiledModules map[module.Identity]*module.TranspiledModule
	manifest          map[string]resolver.ManifestEntry
	externals         map[string]resolver.External
	envVariables      map[string]string
	webpackHMR        bool

	storage    storage.Storage
	evaluator  eval.Evaluator
	downloader downloader.Downloader
	diag       *diagnostics.Collector
	logger     logging.Logger
}

// NewManager constructs an empty graph for one sandbox.
func NewManager(cfg Config) *Manager {
	diag := cfg.Diagnostics
	if diag == nil {
		diag = diagnostics.NewCollector()
	}
	return &Manager{
		id:                cfg.SandboxID,
		preset:            cfg.Preset,
		modules:           make(map[string]module.Module),
		transpiledModules: make(map[module.Identity]*module.TranspiledModule),
		manifest:          make(map[string]resolver.ManifestEntry),
		externals:         make(map[string]resolver.External),
		envVariables:      cfg.EnvVariables,
		storage:           cfg.Storage,
		evaluator:         cfg.Evaluator,
		downloader:        cfg.Downloader,
		diag:              diag,
		logger:            cfg.Logger,
	}
}

// SetManifest adopts the latest resolved external-dependency manifest.
func (m *Manager) SetManifest(manifest map[string]resolver.ManifestEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.manifest = manifest
}

// SetExternals adopts the resolved external-export map.
func (m *Manager) SetExternals(externals map[string]resolver.External) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.externals = externals
}

// Diagnostics exposes the collector backing this graph's sink.
func (m *Manager) Diagnostics() *diagnostics.Collector { return m.diag }

// UpdateData reconciles the node set with a new file set, per spec.md
// §4.4: create a node for each unseen path, call Update on existing ones,
// and drop nodes whose source path disappeared and that are not retained.
func (m *Manager) UpdateData(mods []module.Module) {
	m.mu.Lock()
	newSet := make(map[string]module.Module, len(mods))
	for _, mod := range mods {
		newSet[mod.Path] = mod
	}

	for path, mod := range newSet {
		id := module.Identity{Path: path, Query: ""}
		if existing, ok := m.transpiledModules[id]; ok {
			m.updateLocked(existing, mod)
		} else {
			m.addTranspiledModuleLocked(mod, "")
		}
	}

	m.modules = newSet

	reachable := m.reachableIDsLocked()
	for id, node := range m.transpiledModules {
		if _, stillPresent := newSet[id.Path]; stillPresent {
			continue
		}
		if node.IsEntry || reachable[id.String()] {
			continue
		}
		delete(m.transpiledModules, id)
	}
	m.mu.Unlock()
}

// reachableIDsLocked computes, via ExportDependencyGraph/graphlib, the full
// set of node identities transitively reachable from every current entry
// node. UpdateData's garbage collection keeps exactly this set plus nodes
// whose source path is still present in the new file set. Callers must
// hold m.mu.
func (m *Manager) reachableIDsLocked() map[string]bool {
	reachable := make(map[string]bool)
	for _, node := range m.transpiledModules {
		if !node.IsEntry {
			continue
		}
		g, err := ExportDependencyGraph(node)
		if err != nil {
			continue
		}
		am, err := g.AdjacencyMap()
		if err != nil {
			continue
		}
		for id := range am {
			reachable[id] = true
		}
	}
	return reachable
}

// AddTranspiledModule creates or looks up the node keyed by (mod.Path,
// query), per spec.md §4.4.
func (m *Manager) AddTranspiledModule(mod module.Module, query string) *module.TranspiledModule {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.addTranspiledModuleLocked(mod, query)
}

func (m *Manager) addTranspiledModuleLocked(mod module.Module, query string) *module.TranspiledModule {
	id := module.Identity{Path: mod.Path, Query: query}
	if existing, ok := m.transpiledModules[id]; ok {
		return existing
	}
	node := module.New(mod, query)
	m.transpiledModules[id] = node
	if _, exists := m.modules[mod.Path]; !exists {
		m.modules[mod.Path] = mod
	}
	return node
}

// resolve runs the §4.1 resolver against the manager's current file set,
// externals and manifest.
func (m *Manager) resolve(specifier, fromPath string) (resolver.Result, error) {
	r := resolver.Resolver{
		Aliases:   m.preset,
		Externals: m.externals,
		Manifest:  m.manifest,
		Files:     m.modules,
	}
	return r.Resolve(specifier, fromPath)
}

// nodeForResult materializes the node a resolver.Result refers to. Callers
// must hold m.mu.
func (m *Manager) nodeForResultLocked(result resolver.Result, query string) *module.TranspiledModule {
	return m.addTranspiledModuleLocked(result.Module, query)
}

// ResolveTranspiledModule implements spec.md §4.1's resolveTranspiled: nil,
// nil is returned (not an error) when specifier resolves to an external,
// since externals never get a graph node.
func (m *Manager) ResolveTranspiledModule(specifier, fromPath string) (*module.TranspiledModule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	result, err := m.resolve(specifier, fromPath)
	if err != nil {
		return nil, err
	}
	if result.Kind == resolver.KindExternal {
		return nil, nil
	}
	return m.nodeForResultLocked(result, result.Query), nil
}

// ResolveTranspiledModulesInDirectory returns every node whose source path
// lies under dir (resolved relative to fromPath when dir is not absolute).
func (m *Manager) ResolveTranspiledModulesInDirectory(dir, fromPath string) []*module.TranspiledModule {
	m.mu.Lock()
	defer m.mu.Unlock()

	joined := dir
	if !path.IsAbs(dir) {
		joined = path.Join(path.Dir(fromPath), dir)
	}

	var out []*module.TranspiledModule
	for p, mod := range m.modules {
		if preset.MatchesDirectory(p, joined) {
			out = append(out, m.addTranspiledModuleLocked(mod, ""))
		}
	}
	return out
}

// DownloadDependency delegates to the external downloader collaborator and
// links the resulting module into the graph, per spec.md §4.4. It also
// registers the resolved module into the manifest under its package root:
// without this, a later require() of the same bare specifier (or a
// different subpath of the same package) would fail to resolve again (the
// resolver's bare-package branch only ever consults Externals/Manifest,
// keyed by resolver.PackageName, never the raw file set), contradicting
// spec.md §8 S6's "once resolved, the edge appears and evaluation
// succeeds".
func (m *Manager) DownloadDependency(ctx context.Context, specifier, fromPath string) (*module.TranspiledModule, error) {
	if m.downloader == nil {
		return nil, fmt.Errorf("sandboxgraph: no downloader configured, cannot resolve %q", specifier)
	}
	mod, err := m.downloader.Download(ctx, specifier, fromPath)
	if err != nil {
		return nil, err
	}
	node := m.AddTranspiledModule(mod, "")

	pkg := resolver.PackageName(specifier)
	m.mu.Lock()
	if m.manifest == nil {
		m.manifest = make(map[string]resolver.ManifestEntry)
	}
	if _, ok := m.manifest[pkg]; !ok {
		m.manifest[pkg] = resolver.ManifestEntry{Name: pkg, EntryModule: mod}
	}
	m.mu.Unlock()

	return node, nil
}

// ClearCache drops the serialized blob associated with this sandbox.
func (m *Manager) ClearCache(ctx context.Context) error {
	if m.storage == nil {
		return nil
	}
	return m.storage.Clear(ctx, m.id)
}

// Save serializes the current graph and hands the blob to storage.
func (m *Manager) Save(ctx context.Context) error {
	if m.storage == nil {
		return nil
	}
	m.mu.Lock()
	nodes := make([]*module.TranspiledModule, 0, len(m.transpiledModules))
	for _, n := range m.transpiledModules {
		nodes = append(nodes, n)
	}
	m.mu.Unlock()

	// Async dependencies that resolved during transpile are promoted into
	// the regular dependency set by Transpile's DrainAsyncDependencies step
	// (lifecycle.go),
	// so by the time a graph is saved nothing is left pending; the
	// separate "resolved async ids" slot from spec.md §4.6 is always empty
	// under this reimplementation.
	blob := serialize.Serialize(nodes, map[string][]string{})
	data, err := serialize.Marshal(blob)
	if err != nil {
		return fmt.Errorf("serialize graph: %w", err)
	}
	return m.storage.Save(ctx, m.id, data)
}

// Load restores the graph from the storage collaborator's prior blob.
// Best-effort: any failure leaves the manager's graph empty, per
// spec.md §4.4.
func (m *Manager) Load(ctx context.Context) error {
	if m.storage == nil {
		return nil
	}
	data, ok, err := m.storage.Load(ctx, m.id)
	if err != nil || !ok {
		return nil
	}
	blob, err := serialize.Unmarshal(data)
	if err != nil {
		return nil
	}
	rebuilt := serialize.Rebuild(blob)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.transpiledModules = make(map[module.Identity]*module.TranspiledModule, len(rebuilt))
	for _, n := range rebuilt {
		m.transpiledModules[n.Identity()] = n
		if _, exists := m.modules[n.Module.Path]; !exists {
			m.modules[n.Module.Path] = n.Module
		}
	}
	return nil
}

// HMRActive reports whether any node in the graph has registered an HMR
// accept hook, per spec.md §3's webpackHMR flag.
func (m *Manager) HMRActive() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.webpackHMR
}

// ModulePaths returns the full current file set, backing the loader
// context's getModules() capability.
func (m *Manager) ModulePaths() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.modules))
	for p := range m.modules {
		out = append(out, p)
	}
	return out
}
