package graph

import (
	"context"
	"sync"

	"github.com/conneroisu/sandboxgraph/internal/diagnostics"
	"github.com/conneroisu/sandboxgraph/internal/loader"
	"github.com/conneroisu/sandboxgraph/internal/module"
)

// Transpile implements spec.md §4.3 transpile(manager): idempotent while
// node.Source is set, otherwise runs the loader chain, links dependencies
// discovered along the way, drains async dependencies, and fans out
// concurrently to transpilation-initiators and dependencies not yet
// transpiled.
func (m *Manager) Transpile(ctx context.Context, node *module.TranspiledModule) error {
	if !node.TryBeginTranspile() {
		return nil
	}

	for _, dep := range node.Dependencies() {
		dep.RemoveInitiator(node)
	}
	node.ClearDependencies()

	steps, err := m.preset.GetLoaders(node.Module.Path, node.Query)
	if err != nil {
		node.AbortTranspile()
		return &diagnostics.GraphError{ModuleID: node.Identity().String(), FileName: node.Module.Path, Err: err}
	}

	lctx := newLoaderContext(ctx, m, node)

	var code string
	if len(node.Module.Requires) > 0 {
		code = node.Module.Code
		for _, req := range node.Module.Requires {
			if _, err := lctx.AddDependency(req, loader.DependencyOptions{}); err != nil {
				node.AddError(module.Diagnostic{Message: err.Error(), File: node.Module.Path})
			}
		}
	} else {
		result, err := loader.RunChain(ctx, steps, node.Module.Code, lctx)
		if err != nil {
			m.ResetTranspilation(node)
			return &diagnostics.GraphError{ModuleID: node.Identity().String(), FileName: node.Module.Path, Err: err}
		}
		code = result.Code
	}

	node.SetSource(&module.ModuleSource{
		FileName:     node.Module.Path,
		CompiledCode: module.WithSourceURL(code, "", node.Module.Path),
	})

	// Warnings/errors were already flushed to the diagnostics sink as
	// EmitWarning/EmitError ran mid-chain; node.Warnings/node.Errors retain
	// them for the most-recent-transpile record spec.md §3 describes.

	pending := node.DrainAsyncDependencies()
	for _, dep := range pending {
		resolved, err := dep.Resolve()
		if err != nil {
			continue
		}
		node.AddDependency(resolved)
		resolved.AddInitiator(node)
	}

	fanout := make(map[module.Identity]*module.TranspiledModule)
	for _, d := range node.TranspilationInitiators() {
		fanout[d.Identity()] = d
	}
	for _, d := range node.Dependencies() {
		fanout[d.Identity()] = d
	}

	var wg sync.WaitGroup
	var errMu sync.Mutex
	var firstErr error
	for _, child := range fanout {
		if child.HasSource() {
			continue
		}
		wg.Add(1)
		go func(c *module.TranspiledModule) {
			defer wg.Done()
			if err := m.Transpile(ctx, c); err != nil {
				errMu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				errMu.Unlock()
			}
		}(child)
	}
	wg.Wait()

	return firstErr
}

// TranspileModules marks node as an entry and transpiles its transitive
// closure, per spec.md §4.4 transpileModules.
func (m *Manager) TranspileModules(ctx context.Context, node *module.TranspiledModule) error {
	node.IsEntry = true
	return m.Transpile(ctx, node)
}

// PostEvaluate implements spec.md §4.3 postEvaluate(manager).
func (m *Manager) PostEvaluate(node *module.TranspiledModule) {
	steps, err := m.preset.GetLoaders(node.Module.Path, node.Query)
	if err != nil {
		return
	}

	cacheable := true
	for _, s := range steps {
		if !s.Cacheable {
			cacheable = false
			break
		}
	}
	if !cacheable {
		node.Compilation = nil
	}

	if len(node.Initiators()) == 0 && !node.IsEntry {
		lctx := newLoaderContext(context.Background(), m, node)
		for _, s := range steps {
			s.Transformer.Cleanup(lctx)
		}
	}
}

// Reset implements spec.md §4.3 reset(): reset children, clear emitted
// assets, reset compilation and transpilation, and demote the node from
// entry status.
func (m *Manager) Reset(node *module.TranspiledModule) {
	for _, child := range node.Children() {
		m.Reset(child)
	}
	node.Assets = make(map[string]*module.ModuleSource)
	node.EmittedAssets = nil

	m.ResetCompilation(node)
	m.ResetTranspilation(node)

	node.IsEntry = false
}

// ResetTranspilation implements spec.md §4.3 resetTranspilation().
func (m *Manager) ResetTranspilation(node *module.TranspiledModule) {
	if node.HMR.Mode == module.HMROff {
		for _, ti := range node.TranspilationInitiators() {
			if ti.HasSource() {
				m.ResetTranspilation(ti)
			}
		}
	}

	for _, dep := range node.Dependencies() {
		dep.RemoveInitiator(node)
	}
	node.ClearDependencies()

	node.ClearSource()
	node.ClearDiagnostics()
	node.DrainAsyncDependencies()
}

// ResetCompilation implements spec.md §4.3 resetCompilation().
func (m *Manager) ResetCompilation(node *module.TranspiledModule) {
	if node.Compilation != nil {
		if node.HMR.Mode != module.HMROff {
			node.Changed = true
		} else {
			node.Compilation = nil
			for _, init := range node.Initiators() {
				if init.Compilation != nil {
					m.ResetCompilation(init)
				}
			}
		}
	}

	if node.HMR.Mode == module.HMROff {
		for _, ti := range node.TranspilationInitiators() {
			if ti.Compilation != nil {
				m.ResetCompilation(ti)
			}
		}
	}
}

// Update implements spec.md §4.3 update(newModule): swap the underlying
// Module and reset the node; edges to unaffected nodes are rebuilt on the
// next transpile.
func (m *Manager) Update(node *module.TranspiledModule, newModule module.Module) {
	m.updateLocked(node, newModule)
}

func (m *Manager) updateLocked(node *module.TranspiledModule, newModule module.Module) {
	node.SetModule(newModule)
	m.Reset(node)
}

// Dispose implements spec.md §4.3 dispose(): equivalent to Reset.
func (m *Manager) Dispose(node *module.TranspiledModule) {
	m.Reset(node)
}
