package serialize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/sandboxgraph/internal/module"
)

func buildGraph() (*module.TranspiledModule, *module.TranspiledModule) {
	entry := module.New(module.Module{Path: "/index.js"}, "")
	entry.IsEntry = true
	entry.Source = &module.ModuleSource{CompiledCode: "require('./dep.js')"}

	dep := module.New(module.Module{Path: "/dep.js"}, "")
	dep.Source = &module.ModuleSource{CompiledCode: "module.exports = 1;"}

	entry.AddDependency(dep)
	dep.AddInitiator(entry)
	return entry, dep
}

func TestSerializeRoundTrip(t *testing.T) {
	entry, dep := buildGraph()

	blob := Serialize([]*module.TranspiledModule{entry, dep}, map[string][]string{})
	data, err := Marshal(blob)
	require.NoError(t, err)

	decoded, err := Unmarshal(data)
	require.NoError(t, err)

	nodes := Rebuild(decoded)
	require.Len(t, nodes, 2)

	rebuiltEntry := nodes["/index.js"]
	rebuiltDep := nodes["/dep.js"]
	require.NotNil(t, rebuiltEntry)
	require.NotNil(t, rebuiltDep)

	assert.True(t, rebuiltEntry.IsEntry)
	assert.True(t, rebuiltEntry.HasDependency(rebuiltDep))
	assert.Len(t, rebuiltDep.Initiators(), 1)
	assert.Equal(t, "module.exports = 1;", rebuiltDep.Source.CompiledCode)
}

func TestRebuildSkipsMissingEdgeTargets(t *testing.T) {
	blob := Blob{ByID: map[string]NodeRecord{
		"/a.js": {
			ID:           "/a.js",
			Module:       module.Module{Path: "/a.js"},
			Dependencies: []string{"/missing.js"},
		},
	}}

	nodes := Rebuild(blob)
	require.Len(t, nodes, 1)
	assert.Empty(t, nodes["/a.js"].Dependencies())
}

func TestSerializeUsesQueryQualifiedIdentity(t *testing.T) {
	n := module.New(module.Module{Path: "/a.js"}, "raw")
	blob := Serialize([]*module.TranspiledModule{n}, nil)
	_, ok := blob.ByID["/a.js?raw"]
	assert.True(t, ok)
}
