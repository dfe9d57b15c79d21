package loader_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/sandboxgraph/internal/loader"
)

type upperTransformer struct{ cacheable bool }

func (upperTransformer) Name() string { return "upper-loader" }

func (upperTransformer) Transpile(_ context.Context, code string, _ loader.Context) (loader.Result, error) {
	return loader.Result{Code: code + "-upper"}, nil
}

func (upperTransformer) Cleanup(loader.Context) {}
func (u upperTransformer) Cacheable() bool       { return u.cacheable }

type failingTransformer struct{}

func (failingTransformer) Name() string { return "failing-loader" }

func (failingTransformer) Transpile(_ context.Context, _ string, _ loader.Context) (loader.Result, error) {
	return loader.Result{}, assert.AnError
}

func (failingTransformer) Cleanup(loader.Context) {}
func (failingTransformer) Cacheable() bool         { return true }

func TestRunChainThreadsOutputForward(t *testing.T) {
	steps := []loader.Step{
		{Transformer: upperTransformer{cacheable: true}},
		{Transformer: upperTransformer{cacheable: true}},
	}
	result, err := loader.RunChain(context.Background(), steps, "code", nil)
	require.NoError(t, err)
	assert.Equal(t, "code-upper-upper", result.Code)
}

func TestRunChainStopsOnFirstError(t *testing.T) {
	steps := []loader.Step{
		{Transformer: upperTransformer{cacheable: true}},
		{Transformer: failingTransformer{}},
		{Transformer: upperTransformer{cacheable: true}},
	}
	_, err := loader.RunChain(context.Background(), steps, "code", nil)
	require.Error(t, err)
}

func TestRunChainEmptyStepsIsIdentity(t *testing.T) {
	result, err := loader.RunChain(context.Background(), nil, "code", nil)
	require.NoError(t, err)
	assert.Equal(t, "code", result.Code)
}

// emitErrorTransformer returns a nil Go error but calls ctx.EmitError, the
// soft-failure path spec.md §4.2 step 4 requires RunChain to still abort on.
type emitErrorTransformer struct{ message string }

func (emitErrorTransformer) Name() string { return "emit-error-loader" }

func (e emitErrorTransformer) Transpile(_ context.Context, code string, lctx loader.Context) (loader.Result, error) {
	lctx.EmitError(loader.Error{Message: e.message})
	return loader.Result{Code: code}, nil
}

func (emitErrorTransformer) Cleanup(loader.Context) {}
func (emitErrorTransformer) Cacheable() bool        { return true }

// fakeErrorContext is a minimal loader.Context that only tracks EmitError
// calls, enough to exercise RunChain's diagnostic-polling abort path
// without a full graph.Manager.
type fakeErrorContext struct {
	errs []loader.Error
}

func (c *fakeErrorContext) Options() loader.Options { return loader.Options{} }
func (c *fakeErrorContext) EmitWarning(loader.Warning) {}
func (c *fakeErrorContext) EmitError(e loader.Error) { c.errs = append(c.errs, e) }
func (c *fakeErrorContext) Errors() []loader.Error   { return c.errs }
func (c *fakeErrorContext) EmitModule(string, string, string) (loader.EmittedModule, error) {
	return nil, nil
}
func (c *fakeErrorContext) EmitFile(string, []byte, []byte) {}
func (c *fakeErrorContext) AddDependency(string, loader.DependencyOptions) (loader.EmittedModule, error) {
	return nil, nil
}
func (c *fakeErrorContext) AddTranspilationDependency(string, loader.DependencyOptions) (loader.EmittedModule, error) {
	return nil, nil
}
func (c *fakeErrorContext) AddDependenciesInDirectory(string, loader.DependencyOptions) error {
	return nil
}
func (c *fakeErrorContext) GetModules() []string { return nil }

func TestRunChainAbortsOnEmittedErrorWithoutGoError(t *testing.T) {
	lctx := &fakeErrorContext{}
	steps := []loader.Step{
		{Transformer: upperTransformer{cacheable: true}},
		{Transformer: emitErrorTransformer{message: "bad token"}},
		{Transformer: upperTransformer{cacheable: true}},
	}

	result, err := loader.RunChain(context.Background(), steps, "code", lctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad token")
	assert.Equal(t, loader.Result{}, result)
	// Exactly one error was recorded on the context: the one the second
	// step emitted.
	assert.Len(t, lctx.errs, 1)
}
