package module

import "sync"

// Identity is the (path, query) pair that uniquely names a TranspiledModule
// across the graph.
type Identity struct {
	Path  string
	Query string
}

// String renders the identity the way it is serialized and logged:
// "path" when the query is empty, "path?query" otherwise.
func (id Identity) String() string {
	if id.Query == "" {
		return id.Path
	}
	return id.Path + "?" + id.Query
}

// HMRMode distinguishes the three states hmrEnabled can be in, replacing the
// truthy/function conflation the original implementation used.
type HMRMode int

const (
	// HMROff means no HMR accept hook is registered for this node.
	HMROff HMRMode = iota
	// HMRSelfAccept means the module accepted updates to itself.
	HMRSelfAccept
	// HMRCallback means an external consumer registered an accept callback
	// for this node.
	HMRCallback
)

// HMRState is the tagged variant for TranspiledModule.hmrEnabled.
type HMRState struct {
	Mode     HMRMode
	Callback func(exports map[string]interface{})
}

// Diagnostic is a warning or error surfaced by a transformer during
// transpile. Line/Column are best-effort and may be zero when the
// transformer did not report a location.
type Diagnostic struct {
	Message string
	File    string
	Line    int
	Column  int
}

// Compilation is the cached result of evaluating a TranspiledModule.
type Compilation struct {
	Exports map[string]interface{}
	Hot     *Hot
}

// Hot is the module.hot surface exposed to evaluated code.
type Hot struct {
	// Accept marks path (or, if path is empty, the current module) as
	// HMR-accepting. Bound to a concrete manager by the graph manager
	// before each evaluation; module itself only carries the closure.
	Accept func(path string, callback func(exports map[string]interface{}))
}

// TranspiledModule is the graph vertex: one Module transpiled under one
// loader-chain query. Edge sets are maintained as bidirectional pairs by
// the graph manager; TranspiledModule itself only exposes O(1) add/remove
// primitives over its own sets, never mutating a peer's set.
type TranspiledModule struct {
	mu sync.RWMutex

	Module Module
	Query  string

	Source      *ModuleSource
	Compilation *Compilation

	transpiling bool

	IsEntry bool
	Changed bool

	Errors   []Diagnostic
	Warnings []Diagnostic

	Assets        map[string]*ModuleSource
	EmittedAssets []string

	ChildModules []*TranspiledModule

	HMR HMRState

	dependencies              map[Identity]*TranspiledModule
	initiators                map[Identity]*TranspiledModule
	transpilationDependencies map[Identity]*TranspiledModule
	transpilationInitiators   map[Identity]*TranspiledModule
	asyncDependencies         []AsyncDependency
}

// AsyncDependency is a pending specifier resolution enqueued during
// transpile when the path resolver reports module-not-found/isDependency.
// Resolve is awaited by the owning node's transpile walk, which drains the
// entry from the node whether the edge is then linked or the download
// fails.
type AsyncDependency struct {
	Specifier string
	FromPath  string
	Resolve   func() (*TranspiledModule, error)
}

// New creates a TranspiledModule for the given module and query. Assets is
// initialized eagerly: the original implementation left it nil until the
// first emitFile call, which is a latent nil-map write bug this
// reimplementation avoids by construction.
func New(mod Module, query string) *TranspiledModule {
	return &TranspiledModule{
		Module:                     mod,
		Query:                      query,
		Assets:                     make(map[string]*ModuleSource),
		EmittedAssets:              make([]string, 0),
		dependencies:              make(map[Identity]*TranspiledModule),
		initiators:                make(map[Identity]*TranspiledModule),
		transpilationDependencies: make(map[Identity]*TranspiledModule),
		transpilationInitiators:   make(map[Identity]*TranspiledModule),
	}
}

// Identity returns this node's (path, query) identity.
func (t *TranspiledModule) Identity() Identity {
	return Identity{Path: t.Module.Path, Query: t.Query}
}

// TryBeginTranspile claims this node for transpilation: a diamond
// dependency reached concurrently from two fan-out branches of
// Manager.Transpile must only run the loader chain once. Returns false if
// the node already has a Source or another goroutine holds the claim;
// callers that get true must eventually call SetSource or AbortTranspile.
func (t *TranspiledModule) TryBeginTranspile() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.Source != nil || t.transpiling {
		return false
	}
	t.transpiling = true
	return true
}

// AbortTranspile releases a TryBeginTranspile claim without installing a
// Source, for error paths that bail out before compiling anything.
func (t *TranspiledModule) AbortTranspile() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.transpiling = false
}

// SetSource installs the compiled source and releases the transpile claim.
func (t *TranspiledModule) SetSource(src *ModuleSource) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Source = src
	t.transpiling = false
}

// ClearSource drops the compiled source (resetTranspilation) and releases
// any outstanding transpile claim.
func (t *TranspiledModule) ClearSource() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Source = nil
	t.transpiling = false
}

// HasSource reports whether this node currently holds a compiled Source.
func (t *TranspiledModule) HasSource() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.Source != nil
}

// SetModule swaps the underlying Module, used by update().
func (t *TranspiledModule) SetModule(mod Module) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Module = mod
}

// SetHMR replaces the HMR tagged-variant state.
func (t *TranspiledModule) SetHMR(state HMRState) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.HMR = state
}

// ClearDependencies empties the dependency set. Callers must already have
// unlinked the corresponding initiator back-links on the affected peers.
func (t *TranspiledModule) ClearDependencies() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.dependencies = make(map[Identity]*TranspiledModule)
}

// --- dependency edge set -------------------------------------------------

// AddDependency adds dep to this node's dependency set. It does not touch
// dep's initiator set; callers (the graph manager) are responsible for
// calling AddInitiator on dep to keep the pair symmetric.
func (t *TranspiledModule) AddDependency(dep *TranspiledModule) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.dependencies[dep.Identity()] = dep
}

// RemoveDependency removes dep from this node's dependency set.
func (t *TranspiledModule) RemoveDependency(dep *TranspiledModule) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.dependencies, dep.Identity())
}

// Dependencies returns a snapshot of the current dependency set.
func (t *TranspiledModule) Dependencies() []*TranspiledModule {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]*TranspiledModule, 0, len(t.dependencies))
	for _, d := range t.dependencies {
		out = append(out, d)
	}
	return out
}

// HasDependency reports whether dep is in this node's dependency set.
func (t *TranspiledModule) HasDependency(dep *TranspiledModule) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.dependencies[dep.Identity()]
	return ok
}

func (t *TranspiledModule) AddInitiator(initiator *TranspiledModule) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.initiators[initiator.Identity()] = initiator
}

func (t *TranspiledModule) RemoveInitiator(initiator *TranspiledModule) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.initiators, initiator.Identity())
}

func (t *TranspiledModule) Initiators() []*TranspiledModule {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]*TranspiledModule, 0, len(t.initiators))
	for _, i := range t.initiators {
		out = append(out, i)
	}
	return out
}

// --- transpilation-dependency edge set -----------------------------------

func (t *TranspiledModule) AddTranspilationDependency(dep *TranspiledModule) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.transpilationDependencies[dep.Identity()] = dep
}

func (t *TranspiledModule) RemoveTranspilationDependency(dep *TranspiledModule) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.transpilationDependencies, dep.Identity())
}

func (t *TranspiledModule) TranspilationDependencies() []*TranspiledModule {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]*TranspiledModule, 0, len(t.transpilationDependencies))
	for _, d := range t.transpilationDependencies {
		out = append(out, d)
	}
	return out
}

func (t *TranspiledModule) AddTranspilationInitiator(initiator *TranspiledModule) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.transpilationInitiators[initiator.Identity()] = initiator
}

func (t *TranspiledModule) RemoveTranspilationInitiator(initiator *TranspiledModule) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.transpilationInitiators, initiator.Identity())
}

func (t *TranspiledModule) TranspilationInitiators() []*TranspiledModule {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]*TranspiledModule, 0, len(t.transpilationInitiators))
	for _, i := range t.transpilationInitiators {
		out = append(out, i)
	}
	return out
}

// --- async dependencies ---------------------------------------------------

func (t *TranspiledModule) AddAsyncDependency(dep AsyncDependency) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.asyncDependencies = append(t.asyncDependencies, dep)
}

// DrainAsyncDependencies returns and clears the pending async dependencies.
func (t *TranspiledModule) DrainAsyncDependencies() []AsyncDependency {
	t.mu.Lock()
	defer t.mu.Unlock()
	pending := t.asyncDependencies
	t.asyncDependencies = nil
	return pending
}

// --- diagnostics ------------------------------------------------------------

func (t *TranspiledModule) AddError(d Diagnostic) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Errors = append(t.Errors, d)
}

func (t *TranspiledModule) AddWarning(d Diagnostic) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Warnings = append(t.Warnings, d)
}

func (t *TranspiledModule) ClearDiagnostics() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Errors = nil
	t.Warnings = nil
}

// --- assets -----------------------------------------------------------------

func (t *TranspiledModule) EmitFile(name string, src *ModuleSource) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Assets[name] = src
	t.EmittedAssets = append(t.EmittedAssets, name)
}

// --- children ---------------------------------------------------------------

func (t *TranspiledModule) AddChild(child *TranspiledModule) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.ChildModules = append(t.ChildModules, child)
}

func (t *TranspiledModule) Children() []*TranspiledModule {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]*TranspiledModule, len(t.ChildModules))
	copy(out, t.ChildModules)
	return out
}
