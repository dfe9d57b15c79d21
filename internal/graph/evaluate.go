package graph

import (
	"fmt"

	"github.com/conneroisu/sandboxgraph/internal/diagnostics"
	"github.com/conneroisu/sandboxgraph/internal/eval"
	"github.com/conneroisu/sandboxgraph/internal/module"
	"github.com/conneroisu/sandboxgraph/internal/resolver"
)

// ReloadRequested is returned by EvaluateTranspiledModule when HMR is
// active and an entry with no compilation must force a full page reload
// rather than a partial re-evaluation, per spec.md §4.3 evaluate step 1.
// The caller (the compile orchestrator) is responsible for acting on it.
var ReloadRequested = fmt.Errorf("sandboxgraph: full reload requested")

// EvaluateModule evaluates node's transitive closure and runs postEvaluate
// over every node reachable from it, per spec.md §4.4 evaluateModule.
func (m *Manager) EvaluateModule(node *module.TranspiledModule) (map[string]interface{}, error) {
	exports, err := m.EvaluateTranspiledModule(node)

	for _, n := range m.collectReachable(node) {
		m.PostEvaluate(n)
	}

	return exports, err
}

func (m *Manager) collectReachable(entry *module.TranspiledModule) []*module.TranspiledModule {
	visited := make(map[module.Identity]bool)
	var out []*module.TranspiledModule
	var walk func(n *module.TranspiledModule)
	walk = func(n *module.TranspiledModule) {
		id := n.Identity()
		if visited[id] {
			return
		}
		visited[id] = true
		out = append(out, n)
		for _, dep := range n.Dependencies() {
			walk(dep)
		}
	}
	walk(entry)
	return out
}

// EvaluateTranspiledModule implements spec.md §4.3 evaluate(manager,
// parentModules). It is the recursive entry point the require closure
// calls for every nested import. Cycles are broken by eagerly assigning
// node.Compilation (below) before the evaluator runs, not by tracking the
// caller chain, so there is no parents argument to thread through.
func (m *Manager) EvaluateTranspiledModule(node *module.TranspiledModule) (map[string]interface{}, error) {
	m.mu.Lock()
	hmrActive := m.webpackHMR
	m.mu.Unlock()

	if hmrActive && node.IsEntry && node.Compilation == nil &&
		node.HMR.Mode != module.HMRSelfAccept && node.HMR.Mode != module.HMRCallback {
		return map[string]interface{}{}, ReloadRequested
	}

	if node.Compilation != nil && !node.Changed {
		return node.Compilation.Exports, nil
	}

	if node.Compilation == nil {
		node.Compilation = &module.Compilation{
			Exports: make(map[string]interface{}),
			Hot:     &module.Hot{},
		}
	}
	node.Compilation.Hot.Accept = m.acceptFor(node)
	node.Changed = false

	if node.Source == nil {
		return node.Compilation.Exports, fmt.Errorf("sandboxgraph: %s has no transpile output", node.Module.Path)
	}

	require := m.buildRequire(node)

	exports, err := m.evaluator.Evaluate(node.Source.CompiledCode, require, node.Compilation.Exports, eval.AcceptFunc(node.Compilation.Hot.Accept), m.envVariables)
	if err != nil {
		return node.Compilation.Exports, &diagnostics.GraphError{ModuleID: node.Identity().String(), FileName: node.Module.Path, Err: err}
	}
	node.Compilation.Exports = exports

	if node.HMR.Mode == module.HMRCallback && node.HMR.Callback != nil {
		node.HMR.Callback(exports)
	}

	return exports, nil
}

// acceptFor builds the module.hot.accept(path?, callback?) closure bound
// to node and this manager, per spec.md §4.3 evaluate step 3.
func (m *Manager) acceptFor(node *module.TranspiledModule) func(string, func(map[string]interface{})) {
	return func(path string, callback func(map[string]interface{})) {
		if path == "" {
			node.SetHMR(module.HMRState{Mode: module.HMRSelfAccept})
		} else if target, err := m.ResolveTranspiledModule(path, node.Module.Path); err == nil && target != nil {
			target.SetHMR(module.HMRState{Mode: module.HMRCallback, Callback: callback})
		}
		m.mu.Lock()
		m.webpackHMR = true
		m.mu.Unlock()
	}
}

// buildRequire constructs the require(specifier) closure of spec.md §4.3
// evaluate step 4: alias resolution, externals/runtime-helper shortcut,
// self-import rejection, and recursion into EvaluateTranspiledModule.
func (m *Manager) buildRequire(node *module.TranspiledModule) eval.RequireFunc {
	return func(specifier string) (map[string]interface{}, error) {
		aliased := specifier
		if m.preset != nil {
			aliased = m.preset.GetAliasedPath(specifier)
		}
		_, rest := resolver.SplitLoaderChain(aliased)

		if resolver.IsBarePackage(rest) {
			m.mu.Lock()
			ext, ok := m.externals[rest]
			m.mu.Unlock()
			if ok {
				return ext.Exports, nil
			}
		}

		result, err := func() (resolver.Result, error) {
			m.mu.Lock()
			defer m.mu.Unlock()
			return m.resolve(aliased, node.Module.Path)
		}()
		if err != nil {
			return nil, err
		}
		if result.Kind == resolver.KindExternal {
			return result.External.Exports, nil
		}

		target := m.AddTranspiledModule(result.Module, result.Query)
		if target.Identity() == node.Identity() {
			return nil, fmt.Errorf("sandboxgraph: %s cannot require itself", node.Module.Path)
		}

		return m.EvaluateTranspiledModule(target)
	}
}
