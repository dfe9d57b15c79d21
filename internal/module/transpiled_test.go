package module

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewInitializesAssetsEagerly(t *testing.T) {
	n := New(Module{Path: "/a.js"}, "")
	require.NotNil(t, n.Assets)
	assert.Empty(t, n.Assets)
	assert.NotNil(t, n.EmittedAssets)
}

func TestIdentity(t *testing.T) {
	n := New(Module{Path: "/a.js"}, "raw")
	assert.Equal(t, Identity{Path: "/a.js", Query: "raw"}, n.Identity())
	assert.Equal(t, "/a.js?raw", n.Identity().String())

	plain := New(Module{Path: "/a.js"}, "")
	assert.Equal(t, "/a.js", plain.Identity().String())
}

func TestDependencyEdgeSet(t *testing.T) {
	a := New(Module{Path: "/a.js"}, "")
	b := New(Module{Path: "/b.js"}, "")

	a.AddDependency(b)
	b.AddInitiator(a)

	assert.True(t, a.HasDependency(b))
	assert.Len(t, a.Dependencies(), 1)
	assert.Len(t, b.Initiators(), 1)

	a.RemoveDependency(b)
	b.RemoveInitiator(a)

	assert.False(t, a.HasDependency(b))
	assert.Empty(t, a.Dependencies())
	assert.Empty(t, b.Initiators())
}

func TestClearDependenciesEmptiesSetOnly(t *testing.T) {
	a := New(Module{Path: "/a.js"}, "")
	b := New(Module{Path: "/b.js"}, "")
	a.AddDependency(b)
	b.AddInitiator(a)

	a.ClearDependencies()

	assert.Empty(t, a.Dependencies())
	// ClearDependencies does not touch the peer's back-link; callers are
	// responsible for that.
	assert.Len(t, b.Initiators(), 1)
}

func TestAsyncDependencyDrainIsOneShot(t *testing.T) {
	n := New(Module{Path: "/a.js"}, "")
	n.AddAsyncDependency(AsyncDependency{Specifier: "left-pad", FromPath: "/a.js"})
	n.AddAsyncDependency(AsyncDependency{Specifier: "lodash", FromPath: "/a.js"})

	pending := n.DrainAsyncDependencies()
	assert.Len(t, pending, 2)
	assert.Empty(t, n.DrainAsyncDependencies())
}

func TestSetHMRReplacesState(t *testing.T) {
	n := New(Module{Path: "/a.js"}, "")
	assert.Equal(t, HMROff, n.HMR.Mode)

	n.SetHMR(HMRState{Mode: HMRSelfAccept})
	assert.Equal(t, HMRSelfAccept, n.HMR.Mode)
}

func TestEmitFileAppendsToEmittedAssets(t *testing.T) {
	n := New(Module{Path: "/a.js"}, "")
	n.EmitFile("logo.png", &ModuleSource{CompiledCode: "binary"})

	assert.Contains(t, n.Assets, "logo.png")
	assert.Equal(t, []string{"logo.png"}, n.EmittedAssets)
}

func TestWithSourceURL(t *testing.T) {
	out := WithSourceURL("var x = 1;", "sandbox://", "/src/a.js")
	assert.Contains(t, out, "var x = 1;")
	assert.Contains(t, out, "//# sourceURL=sandbox:///src/a.js")
}
