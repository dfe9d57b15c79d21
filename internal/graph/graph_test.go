package graph

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/sandboxgraph/internal/diagnostics"
	"github.com/conneroisu/sandboxgraph/internal/downloader"
	"github.com/conneroisu/sandboxgraph/internal/eval"
	"github.com/conneroisu/sandboxgraph/internal/module"
	"github.com/conneroisu/sandboxgraph/internal/preset"
)

func newTestManager() *Manager {
	return NewManager(Config{
		SandboxID:  "test",
		Preset:     preset.FromTemplate(preset.NewBuiltinRegistry().Get("vanilla")),
		Evaluator:  eval.NewGojaEvaluator(),
		Downloader: downloader.NewManifestDownloader(nil),
	})
}

func TestTranspileAndEvaluateSimpleGraph(t *testing.T) {
	m := newTestManager()
	entryMod := module.Module{
		Path:     "/index.js",
		Code:     `var dep = require('./dep.js'); module.exports = { total: dep.value + 1 };`,
		Requires: []string{"./dep.js"},
	}
	depMod := module.Module{Path: "/dep.js", Code: `module.exports = { value: 41 };`}
	m.UpdateData([]module.Module{entryMod, depMod})

	entry := m.AddTranspiledModule(entryMod, "")
	ctx := context.Background()

	require.NoError(t, m.TranspileModules(ctx, entry))
	assert.True(t, entry.HasDependency(m.AddTranspiledModule(depMod, "")))

	exports, err := m.EvaluateModule(entry)
	require.NoError(t, err)
	assert.EqualValues(t, 42, exports["total"])
}

// TestTranspileDiamondDependencyLinksSharedNodeOnce exercises Transpile's
// concurrent fan-out (lifecycle.go) on a diamond shape: entry depends on
// both b and c, and b and c both depend on the same shared module d. Two
// goroutines reach d concurrently; TryBeginTranspile/SetSource must let
// only one of them run d's loader chain, leaving d linked correctly from
// both initiators with a single compiled Source.
func TestTranspileDiamondDependencyLinksSharedNodeOnce(t *testing.T) {
	m := newTestManager()
	mods := []module.Module{
		{Path: "/entry.js", Code: `require('./b.js'); require('./c.js'); module.exports = {};`, Requires: []string{"./b.js", "./c.js"}},
		{Path: "/b.js", Code: `require('./d.js'); module.exports = {};`, Requires: []string{"./d.js"}},
		{Path: "/c.js", Code: `require('./d.js'); module.exports = {};`, Requires: []string{"./d.js"}},
		{Path: "/d.js", Code: `module.exports = { value: 1 };`},
	}
	m.UpdateData(mods)

	entry := m.AddTranspiledModule(mods[0], "")
	ctx := context.Background()
	require.NoError(t, m.TranspileModules(ctx, entry))

	d := m.AddTranspiledModule(mods[3], "")
	require.True(t, d.HasSource())

	b := m.AddTranspiledModule(mods[1], "")
	c := m.AddTranspiledModule(mods[2], "")
	assert.True(t, b.HasDependency(d))
	assert.True(t, c.HasDependency(d))

	initiators := d.Initiators()
	assert.Len(t, initiators, 2)
}

func TestEvaluateBreaksCircularDependency(t *testing.T) {
	m := newTestManager()
	m.UpdateData([]module.Module{
		{Path: "/a.js", Code: `var b = require('./b.js'); module.exports = { name: 'a', sawB: typeof b };`, Requires: []string{"./b.js"}},
		{Path: "/b.js", Code: `var a = require('./a.js'); module.exports = { name: 'b', sawA: typeof a };`, Requires: []string{"./a.js"}},
	})

	entry := m.AddTranspiledModule(module.Module{Path: "/a.js"}, "")
	ctx := context.Background()

	require.NoError(t, m.TranspileModules(ctx, entry))

	exports, err := m.EvaluateModule(entry)
	require.NoError(t, err)
	assert.Equal(t, "a", exports["name"])
	// b's require('./a.js') must not deadlock/recurse infinitely; it sees
	// a's in-progress (possibly partial) exports object.
	assert.Equal(t, "object", exports["sawB"])
}

func TestTranspileIsIdempotent(t *testing.T) {
	m := newTestManager()
	m.UpdateData([]module.Module{
		{Path: "/index.js", Code: `module.exports = {};`},
	})
	entry := m.AddTranspiledModule(module.Module{Path: "/index.js"}, "")
	ctx := context.Background()

	require.NoError(t, m.TranspileModules(ctx, entry))
	firstSource := entry.Source

	require.NoError(t, m.TranspileModules(ctx, entry))
	assert.Same(t, firstSource, entry.Source)
}

func TestUpdateDataPrunesUnreferencedNodes(t *testing.T) {
	m := newTestManager()
	m.UpdateData([]module.Module{
		{Path: "/index.js", Code: `module.exports = {};`},
		{Path: "/orphan.js", Code: `module.exports = {};`},
	})

	assert.Contains(t, m.ModulePaths(), "/orphan.js")

	m.UpdateData([]module.Module{
		{Path: "/index.js", Code: `module.exports = {};`},
	})
	assert.NotContains(t, m.ModulePaths(), "/orphan.js")
}

// TestUpdateDataPruningIsTransitiveNotOneHop exercises the
// ExportDependencyGraph-backed reachability check: a node kept alive only
// by an Initiators() edge from a node that is itself unreachable from any
// entry must still be collected, rather than surviving forever because it
// has a nonzero direct-initiator count.
func TestUpdateDataPruningIsTransitiveNotOneHop(t *testing.T) {
	m := newTestManager()
	m.UpdateData([]module.Module{{Path: "/index.js", Code: `module.exports = {};`}})
	entry := m.AddTranspiledModule(module.Module{Path: "/index.js"}, "")
	entry.IsEntry = true

	orphanParent := m.AddTranspiledModule(module.Module{Path: "/orphan-parent.js"}, "")
	orphanChild := m.AddTranspiledModule(module.Module{Path: "/orphan-child.js"}, "")
	orphanParent.AddDependency(orphanChild)
	orphanChild.AddInitiator(orphanParent)

	m.UpdateData([]module.Module{{Path: "/index.js", Code: `module.exports = {};`}})

	assert.NotContains(t, m.transpiledModules, module.Identity{Path: "/orphan-parent.js"})
	assert.NotContains(t, m.transpiledModules, module.Identity{Path: "/orphan-child.js"})
}

// TestInlineLoaderChainQueryYieldsDistinctNode exercises the resolve ->
// preset -> module-identity path end to end: requiring the same file path
// with and without an inline loader-chain query must produce two distinct
// TranspiledModule nodes (per spec.md §3/§4.1's (path, query) identity),
// each transpiled through its own loader chain.
func TestInlineLoaderChainQueryYieldsDistinctNode(t *testing.T) {
	m := newTestManager()
	entryMod := module.Module{
		Path: "/index.js",
		Code: `var raw = require('raw-asset-loader?mimetype=application/octet-stream!./icon.bin');
			var plain = require('./icon.bin');
			module.exports = { raw: raw.default, plain: plain.default };`,
		Requires: []string{
			"raw-asset-loader?mimetype=application/octet-stream!./icon.bin",
			"./icon.bin",
		},
	}
	iconMod := module.Module{Path: "/icon.bin", Code: "binary-payload"}
	m.UpdateData([]module.Module{entryMod, iconMod})

	entry := m.AddTranspiledModule(entryMod, "")
	ctx := context.Background()
	require.NoError(t, m.TranspileModules(ctx, entry))

	queried := m.AddTranspiledModule(iconMod, "raw-asset-loader?mimetype=application/octet-stream")
	plain := m.AddTranspiledModule(iconMod, "")

	assert.NotEqual(t, queried.Identity(), plain.Identity())
	assert.True(t, entry.HasDependency(queried))
	assert.True(t, entry.HasDependency(plain))

	require.NotNil(t, queried.Source)
	require.NotNil(t, plain.Source)
	assert.Contains(t, queried.Source.CompiledCode, "data:application/octet-stream;base64,")
	assert.Equal(t, "binary-payload", plain.Source.CompiledCode[:len("binary-payload")])
}

// TestEditToDependencyCascadesCompilationReset covers spec.md §8 S4: after
// evaluating an entry whose dependency is later reset (as a file edit
// would trigger via Manager.Update), the entry's own compiled exports must
// be dropped too, via the documented resetCompilation cascade up the
// initiator chain.
func TestEditToDependencyCascadesCompilationReset(t *testing.T) {
	m := newTestManager()
	entryMod := module.Module{
		Path:     "/index.js",
		Code:     `var dep = require('./dep.js'); module.exports = { value: dep.value };`,
		Requires: []string{"./dep.js"},
	}
	depMod := module.Module{Path: "/dep.js", Code: `module.exports = { value: 1 };`}
	m.UpdateData([]module.Module{entryMod, depMod})

	entry := m.AddTranspiledModule(entryMod, "")
	dep := m.AddTranspiledModule(depMod, "")
	ctx := context.Background()

	require.NoError(t, m.TranspileModules(ctx, entry))
	exports, err := m.EvaluateModule(entry)
	require.NoError(t, err)
	assert.EqualValues(t, 1, exports["value"])
	require.NotNil(t, entry.Compilation)

	// Simulate an edit to dep.js: Update resets dep, which must cascade a
	// ResetCompilation up to every initiator with a live compilation.
	m.Update(dep, module.Module{Path: "/dep.js", Code: `module.exports = { value: 2 };`})

	assert.Nil(t, entry.Compilation)
}

// TestHMRAcceptedModuleReevaluatesWithoutReload covers spec.md §8 S5: a
// module that calls module.hot.accept() can be reset and re-evaluated in
// isolation without EvaluateTranspiledModule returning ReloadRequested.
func TestHMRAcceptedModuleReevaluatesWithoutReload(t *testing.T) {
	m := newTestManager()
	entryMod := module.Module{
		Path:     "/index.js",
		Code:     `var dep = require('./dep.js'); module.hot.accept(); module.exports = { value: dep.value };`,
		Requires: []string{"./dep.js"},
	}
	depMod := module.Module{Path: "/dep.js", Code: `module.exports = { value: 1 };`}
	m.UpdateData([]module.Module{entryMod, depMod})

	entry := m.AddTranspiledModule(entryMod, "")
	ctx := context.Background()

	require.NoError(t, m.TranspileModules(ctx, entry))
	_, err := m.EvaluateModule(entry)
	require.NoError(t, err)

	assert.True(t, m.HMRActive())
	assert.Equal(t, module.HMRSelfAccept, entry.HMR.Mode)

	// Resetting a self-accepting entry while HMR is active marks it Changed
	// and keeps its compilation; re-evaluating it does not trigger
	// ReloadRequested.
	m.ResetCompilation(entry)
	_, err = m.EvaluateTranspiledModule(entry)
	assert.NoError(t, err)
	assert.NotErrorIs(t, err, ReloadRequested)
}

// TestAsyncDependencyDownloadsAndLinks covers spec.md §8 S6: a specifier
// that the in-memory file set cannot resolve is recorded as an async
// dependency during transpile, then DownloadDependency resolves and links
// it into the graph on drain.
func TestAsyncDependencyDownloadsAndLinks(t *testing.T) {
	leftPad := module.Module{Path: "/node_modules/left-pad/index.js", Code: `module.exports = { pad: true };`}
	dl := downloader.NewManifestDownloader(map[string]module.Module{"left-pad": leftPad})

	m := NewManager(Config{
		SandboxID:  "test",
		Preset:     preset.FromTemplate(preset.NewBuiltinRegistry().Get("vanilla")),
		Evaluator:  eval.NewGojaEvaluator(),
		Downloader: dl,
	})

	entryMod := module.Module{
		Path:     "/index.js",
		Code:     `var pad = require('left-pad'); module.exports = { ok: pad.pad };`,
		Requires: []string{"left-pad"},
	}
	m.UpdateData([]module.Module{entryMod})
	entry := m.AddTranspiledModule(entryMod, "")
	ctx := context.Background()

	require.NoError(t, m.TranspileModules(ctx, entry))
	assert.True(t, entry.HasDependency(m.AddTranspiledModule(leftPad, "")))

	exports, err := m.EvaluateModule(entry)
	require.NoError(t, err)
	assert.Equal(t, true, exports["ok"])
}

// TestDownloadDependencyCachesUnderPackageRoot covers a subpath specifier:
// downloading "left-pad/util" must register the manifest under left-pad's
// package root (resolver.PackageName), so a later bare require('left-pad')
// from a different module resolves straight from the manifest instead of
// re-triggering a download for a specifier the downloader never serves.
func TestDownloadDependencyCachesUnderPackageRoot(t *testing.T) {
	leftPadUtil := module.Module{Path: "/node_modules/left-pad/util.js", Code: `module.exports = { util: true };`}
	dl := downloader.NewManifestDownloader(map[string]module.Module{"left-pad/util": leftPadUtil})

	m := NewManager(Config{
		SandboxID:  "test",
		Preset:     preset.FromTemplate(preset.NewBuiltinRegistry().Get("vanilla")),
		Evaluator:  eval.NewGojaEvaluator(),
		Downloader: dl,
	})
	ctx := context.Background()

	firstMod := module.Module{
		Path:     "/first.js",
		Code:     `require('left-pad/util'); module.exports = {};`,
		Requires: []string{"left-pad/util"},
	}
	m.UpdateData([]module.Module{firstMod})
	first := m.AddTranspiledModule(firstMod, "")
	require.NoError(t, m.TranspileModules(ctx, first))
	_, err := m.EvaluateModule(first)
	require.NoError(t, err)

	// The downloader only serves "left-pad/util"; if the manifest cache
	// were still keyed by the raw specifier, this second require('left-pad')
	// would miss the cache, re-attempt a download the downloader can't
	// satisfy, and fail evaluation.
	secondMod := module.Module{
		Path:     "/second.js",
		Code:     `require('left-pad'); module.exports = {};`,
		Requires: []string{"left-pad"},
	}
	m.UpdateData([]module.Module{firstMod, secondMod})
	second := m.AddTranspiledModule(secondMod, "")
	require.NoError(t, m.TranspileModules(ctx, second))

	_, err = m.EvaluateModule(second)
	require.NoError(t, err)
	assert.True(t, second.HasDependency(m.AddTranspiledModule(leftPadUtil, "")))
}

// TestAsyncDependencyDownloadFailureIsFileNameTagged covers the rejection
// half of S6: a specifier the configured downloader cannot serve produces
// a fileName-tagged error once evaluation tries to require it.
func TestAsyncDependencyDownloadFailureIsFileNameTagged(t *testing.T) {
	// newTestManager's downloader is a ManifestDownloader with an empty
	// manifest: DownloadDependency is reachable (a downloader is
	// configured) but every lookup fails, exercising the reject half of
	// the async-dependency drain in Transpile (lifecycle.go) rather than
	// just a plain unresolvable-specifier path.
	m := newTestManager()
	entryMod := module.Module{
		Path:     "/index.js",
		Code:     `require('left-pad'); module.exports = {};`,
		Requires: []string{"left-pad"},
	}
	m.UpdateData([]module.Module{entryMod})
	entry := m.AddTranspiledModule(entryMod, "")
	ctx := context.Background()

	require.NoError(t, m.TranspileModules(ctx, entry))

	_, err := m.EvaluateModule(entry)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "left-pad")
	var gerr *diagnostics.GraphError
	require.ErrorAs(t, err, &gerr)
	assert.Equal(t, "/index.js", gerr.FileName)
}

func TestResetTranspilationClearsSourceAndDependencies(t *testing.T) {
	m := newTestManager()
	entryMod := module.Module{
		Path:     "/index.js",
		Code:     `var dep = require('./dep.js'); module.exports = {};`,
		Requires: []string{"./dep.js"},
	}
	m.UpdateData([]module.Module{entryMod, {Path: "/dep.js", Code: `module.exports = {};`}})
	entry := m.AddTranspiledModule(entryMod, "")
	ctx := context.Background()
	require.NoError(t, m.TranspileModules(ctx, entry))
	require.NotNil(t, entry.Source)
	require.NotEmpty(t, entry.Dependencies())

	m.Reset(entry)
	assert.Nil(t, entry.Source)
	assert.Empty(t, entry.Dependencies())
}
