// Package loader runs the ordered transformer list the preset selects for
// a (module, query) pair, threading a mutable loader context through each
// step the way templar's build pipeline threads a compiler invocation
// through its worker queue.
package loader

import (
	"context"
	"fmt"
)

// Result is the output of one transformer invocation.
type Result struct {
	Code      string
	SourceMap []byte
}

// Transformer is the out-of-scope collaborator contract a concrete
// transpiler (script, style, asset, ...) implements.
type Transformer interface {
	// Name identifies the transformer for diagnostics and cache keys.
	Name() string
	// Transpile runs one pipeline step over code, using ctx to register
	// dependencies, emit diagnostics, and emit child modules/assets.
	Transpile(ctx context.Context, code string, lctx Context) (Result, error)
	// Cleanup is invoked once a node with zero initiators is reclaimed, so
	// a transformer can detach side effects it injected (e.g. a <style>
	// tag) during transpile.
	Cleanup(lctx Context)
	// Cacheable reports whether this transformer's output may survive
	// postEvaluate; a non-cacheable transformer forces the owning node's
	// compilation to be dropped after every evaluation pass.
	Cacheable() bool
}

// Options are the static per-node fields the loader context exposes,
// mirroring webpack's loader-context statics (`webpack: true`, `target`,
// `path`, ...).
type Options struct {
	Path           string
	TransformerOpt map[string]interface{}
}

// Warning and Error are the diagnostics a transformer may emit mid-chain.
type Warning struct {
	Message string
	Line    int
	Column  int
}

type Error struct {
	Message string
	Line    int
	Column  int
}

// DependencyOptions configures AddDependency / AddTranspilationDependency.
type DependencyOptions struct {
	IsAbsolute bool
}

// EmittedModule is the handle returned by Context.EmitModule: a synthetic
// child source module, already registered as both a child and a runtime
// dependency of the emitting node.
type EmittedModule interface {
	Path() string
}

// Context is the capability surface a transformer receives for the node
// currently being transpiled. The graph manager constructs one per node
// transpile — never a stateful global — and every step of that node's
// loader chain receives the same instance; steps do not get a fresh
// context each. It is scoped entirely to the owning node.
type Context interface {
	Options() Options

	EmitWarning(w Warning)
	EmitError(e Error)

	// Errors returns every error emitted via EmitError for the owning node
	// so far (across the node's lifetime, cleared by resetTranspilation).
	// RunChain polls this to detect an EmitError call that didn't also
	// return a Go error from Transpile.
	Errors() []Error

	// EmitModule synthesizes a child source module under dirPath (or the
	// current module's directory when dirPath is empty), registers it as
	// a child and a dependency of the current node, and returns its
	// handle.
	EmitModule(path, code, dirPath string) (EmittedModule, error)

	// EmitFile adds an auxiliary asset to the current node.
	EmitFile(name string, content []byte, sourceMap []byte)

	// AddDependency resolves specifier against the current node and links
	// a runtime dependency edge. Returns nil without error when the
	// specifier is a known runtime helper / host API that does not
	// participate in the graph.
	AddDependency(specifier string, opts DependencyOptions) (EmittedModule, error)

	// AddTranspilationDependency links a compile-time-only dependency.
	AddTranspilationDependency(specifier string, opts DependencyOptions) (EmittedModule, error)

	// AddDependenciesInDirectory bulk-links every module under dir.
	AddDependenciesInDirectory(dir string, opts DependencyOptions) error

	// GetModules returns the full current file set.
	GetModules() []string
}

// Step pairs a transformer with the options the preset resolved for it.
type Step struct {
	Transformer Transformer
	Cacheable   bool
}

// RunChain runs transformers left-to-right over code, feeding each step's
// output into the next. It stops and returns the first transformer error —
// either a non-nil Go error from Transpile, or, if Transpile returned nil
// but called ctx.EmitError along the way, the first emitted diagnostic
// wrapped as an error — per spec.md §4.2 step 4. The caller is responsible
// for resetting the owning node's transpile state before propagating.
func RunChain(ctx context.Context, steps []Step, code string, lctx Context) (Result, error) {
	result := Result{Code: code}
	baseline := 0
	if lctx != nil {
		baseline = len(lctx.Errors())
	}
	for _, step := range steps {
		out, err := step.Transformer.Transpile(ctx, result.Code, lctx)
		if err != nil {
			return Result{}, err
		}
		if lctx != nil {
			if emitted := lctx.Errors(); len(emitted) > baseline {
				first := emitted[baseline]
				return Result{}, fmt.Errorf("%s: %s", step.Transformer.Name(), first.Message)
			}
		}
		result = out
	}
	return result, nil
}
