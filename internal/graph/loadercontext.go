package graph

import (
	"context"
	"errors"
	"path"

	"github.com/conneroisu/sandboxgraph/internal/diagnostics"
	"github.com/conneroisu/sandboxgraph/internal/loader"
	"github.com/conneroisu/sandboxgraph/internal/module"
	"github.com/conneroisu/sandboxgraph/internal/resolver"
)

// runtimeHelpers are bare specifiers the evaluated code may import that
// are never graph nodes (injected by the evaluator/host instead); matches
// spec.md §4.2's "specifier is known to be special" carve-out.
var runtimeHelpers = map[string]bool{
	"regenerator-runtime": true,
	"@babel/runtime":      true,
}

// emittedModule is the concrete loader.EmittedModule handle.
type emittedModule struct {
	path string
}

func (e emittedModule) Path() string { return e.path }

// loaderContext is the capability surface of spec.md §4.2, bound to one
// (node, manager) pair at construction time rather than held as a
// stateful global.
type loaderContext struct {
	ctx     context.Context
	manager *Manager
	node    *module.TranspiledModule
}

func newLoaderContext(ctx context.Context, m *Manager, node *module.TranspiledModule) *loaderContext {
	return &loaderContext{ctx: ctx, manager: m, node: node}
}

func (c *loaderContext) Options() loader.Options {
	return loader.Options{
		Path: c.node.Module.Path,
		TransformerOpt: map[string]interface{}{
			"webpack":   true,
			"sourceMap": true,
			"target":    "web",
			"context":   "/",
		},
	}
}

func (c *loaderContext) EmitWarning(w loader.Warning) {
	c.node.AddWarning(module.Diagnostic{Message: w.Message, File: c.node.Module.Path, Line: w.Line, Column: w.Column})
	c.manager.diag.Add(diagnostics.Diagnostic{
		Module:   c.node.Identity().String(),
		File:     c.node.Module.Path,
		Line:     w.Line,
		Column:   w.Column,
		Message:  w.Message,
		Severity: diagnostics.SeverityWarning,
	})
}

func (c *loaderContext) EmitError(e loader.Error) {
	c.node.AddError(module.Diagnostic{Message: e.Message, File: c.node.Module.Path, Line: e.Line, Column: e.Column})
	c.manager.diag.Add(diagnostics.Diagnostic{
		Module:   c.node.Identity().String(),
		File:     c.node.Module.Path,
		Line:     e.Line,
		Column:   e.Column,
		Message:  e.Message,
		Severity: diagnostics.SeverityError,
	})
}

func (c *loaderContext) Errors() []loader.Error {
	diags := c.node.Errors
	out := make([]loader.Error, len(diags))
	for i, d := range diags {
		out[i] = loader.Error{Message: d.Message, Line: d.Line, Column: d.Column}
	}
	return out
}

func (c *loaderContext) EmitModule(childPath, code, dirPath string) (loader.EmittedModule, error) {
	dir := dirPath
	if dir == "" {
		dir = path.Dir(c.node.Module.Path)
	}
	fullPath := childPath
	if !path.IsAbs(childPath) {
		fullPath = path.Join(dir, childPath)
	}

	child := c.manager.AddTranspiledModule(module.Module{Path: fullPath, Code: code}, "")
	c.node.AddChild(child)
	c.node.AddDependency(child)
	child.AddInitiator(c.node)

	return emittedModule{path: fullPath}, nil
}

func (c *loaderContext) EmitFile(name string, content []byte, sourceMap []byte) {
	c.node.EmitFile(name, &module.ModuleSource{FileName: name, CompiledCode: string(content), SourceMap: sourceMap})
}

func (c *loaderContext) AddDependency(specifier string, opts loader.DependencyOptions) (loader.EmittedModule, error) {
	return c.link(specifier, opts, false)
}

func (c *loaderContext) AddTranspilationDependency(specifier string, opts loader.DependencyOptions) (loader.EmittedModule, error) {
	return c.link(specifier, opts, true)
}

// link resolves specifier against the owning node and records either a
// runtime dependency edge or a transpilation-dependency edge, per
// spec.md §4.2's addDependency/addTranspilationDependency contracts.
func (c *loaderContext) link(specifier string, opts loader.DependencyOptions, transpilationOnly bool) (loader.EmittedModule, error) {
	if runtimeHelpers[specifier] {
		return nil, nil
	}

	fromPath := c.node.Module.Path
	if opts.IsAbsolute {
		fromPath = "/"
	}

	result, err := func() (resolver.Result, error) {
		c.manager.mu.Lock()
		defer c.manager.mu.Unlock()
		return c.manager.resolve(specifier, fromPath)
	}()
	if err != nil {
		var nf *resolver.NotFoundError
		if errors.As(err, &nf) && nf.IsDependency {
			c.node.AddAsyncDependency(module.AsyncDependency{
				Specifier: specifier,
				FromPath:  fromPath,
				Resolve: func() (*module.TranspiledModule, error) {
					return c.manager.DownloadDependency(c.ctx, specifier, fromPath)
				},
			})
		}
		// Real (non-dependency) resolution failures are swallowed here;
		// they surface when evaluation tries to require the same path.
		return nil, nil
	}

	if result.Kind == resolver.KindExternal {
		return nil, nil
	}

	target := c.manager.AddTranspiledModule(result.Module, result.Query)
	if transpilationOnly {
		c.node.AddTranspilationDependency(target)
		target.AddTranspilationInitiator(c.node)
	} else {
		c.node.AddDependency(target)
		target.AddInitiator(c.node)
	}
	return emittedModule{path: target.Module.Path}, nil
}

func (c *loaderContext) AddDependenciesInDirectory(dir string, opts loader.DependencyOptions) error {
	fromPath := c.node.Module.Path
	if opts.IsAbsolute {
		fromPath = "/"
	}
	for _, target := range c.manager.ResolveTranspiledModulesInDirectory(dir, fromPath) {
		c.node.AddDependency(target)
		target.AddInitiator(c.node)
	}
	return nil
}

func (c *loaderContext) GetModules() []string {
	return c.manager.ModulePaths()
}

var _ loader.Context = (*loaderContext)(nil)
