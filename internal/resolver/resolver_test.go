package resolver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/sandboxgraph/internal/module"
)

func TestResolveRelative(t *testing.T) {
	r := &Resolver{
		Files: map[string]module.Module{
			"/src/utils.js":       {Path: "/src/utils.js"},
			"/src/widgets/index.js": {Path: "/src/widgets/index.js"},
		},
	}

	t.Run("exact relative path", func(t *testing.T) {
		res, err := r.Resolve("./utils.js", "/src/app.js")
		require.NoError(t, err)
		assert.Equal(t, KindLocal, res.Kind)
		assert.Equal(t, "/src/utils.js", res.Module.Path)
	})

	t.Run("extension fallback", func(t *testing.T) {
		res, err := r.Resolve("./utils", "/src/app.js")
		require.NoError(t, err)
		assert.Equal(t, "/src/utils.js", res.Module.Path)
	})

	t.Run("index fallback", func(t *testing.T) {
		res, err := r.Resolve("./widgets", "/src/app.js")
		require.NoError(t, err)
		assert.Equal(t, "/src/widgets/index.js", res.Module.Path)
	})

	t.Run("absolute specifier", func(t *testing.T) {
		res, err := r.Resolve("/src/utils.js", "/src/nested/app.js")
		require.NoError(t, err)
		assert.Equal(t, "/src/utils.js", res.Module.Path)
	})

	t.Run("not found is an async-ineligible error", func(t *testing.T) {
		_, err := r.Resolve("./missing.js", "/src/app.js")
		require.Error(t, err)
		var nf *NotFoundError
		require.ErrorAs(t, err, &nf)
		assert.False(t, nf.IsDependency)
	})
}

func TestResolveBarePackage(t *testing.T) {
	r := &Resolver{
		Externals: map[string]External{
			"react": {Name: "react", Exports: map[string]interface{}{"default": "react"}},
		},
		Manifest: map[string]ManifestEntry{
			"lodash": {Name: "lodash", EntryModule: module.Module{Path: "/node_modules/lodash/index.js"}},
		},
	}

	t.Run("external short-circuits before manifest", func(t *testing.T) {
		res, err := r.Resolve("react", "/src/app.js")
		require.NoError(t, err)
		assert.Equal(t, KindExternal, res.Kind)
		assert.Equal(t, "react", res.External.Name)
	})

	t.Run("manifest entry resolves subpaths by package root", func(t *testing.T) {
		res, err := r.Resolve("lodash/debounce", "/src/app.js")
		require.NoError(t, err)
		assert.Equal(t, KindManifest, res.Kind)
		assert.Equal(t, "/node_modules/lodash/index.js", res.Module.Path)
	})

	t.Run("unresolved bare package is an async-eligible error", func(t *testing.T) {
		_, err := r.Resolve("left-pad", "/src/app.js")
		require.Error(t, err)
		var nf *NotFoundError
		require.ErrorAs(t, err, &nf)
		assert.True(t, nf.IsDependency)
	})
}

type stubAliases struct{ aliased string }

func (s stubAliases) GetAliasedPath(specifier string) string { return s.aliased }

func TestResolveAppliesAlias(t *testing.T) {
	r := &Resolver{
		Aliases: stubAliases{aliased: "/src/aliased.js"},
		Files: map[string]module.Module{
			"/src/aliased.js": {Path: "/src/aliased.js"},
		},
	}
	res, err := r.Resolve("@app/whatever", "/src/app.js")
	require.NoError(t, err)
	assert.Equal(t, "/src/aliased.js", res.Module.Path)
}

func TestResolvePopulatesQueryFromLoaderChain(t *testing.T) {
	r := &Resolver{
		Files: map[string]module.Module{"/src/styles.css": {Path: "/src/styles.css"}},
		Externals: map[string]External{
			"react": {Name: "react"},
		},
		Manifest: map[string]ManifestEntry{
			"lodash": {Name: "lodash", EntryModule: module.Module{Path: "/node_modules/lodash/index.js"}},
		},
	}

	t.Run("local specifier", func(t *testing.T) {
		res, err := r.Resolve("style-loader!css-loader!./styles.css", "/src/app.js")
		require.NoError(t, err)
		assert.Equal(t, "style-loader!css-loader", res.Query)
	})

	t.Run("external specifier", func(t *testing.T) {
		res, err := r.Resolve("my-loader!react", "/src/app.js")
		require.NoError(t, err)
		assert.Equal(t, KindExternal, res.Kind)
		assert.Equal(t, "my-loader", res.Query)
	})

	t.Run("manifest specifier", func(t *testing.T) {
		res, err := r.Resolve("my-loader!lodash", "/src/app.js")
		require.NoError(t, err)
		assert.Equal(t, KindManifest, res.Kind)
		assert.Equal(t, "my-loader", res.Query)
	})

	t.Run("no loader chain yields empty query", func(t *testing.T) {
		res, err := r.Resolve("./styles.css", "/src/app.js")
		require.NoError(t, err)
		assert.Equal(t, "", res.Query)
	})
}

func TestSplitLoaderChain(t *testing.T) {
	query, rest := SplitLoaderChain("style-loader!css-loader!./styles.css")
	assert.Equal(t, "style-loader!css-loader", query)
	assert.Equal(t, "./styles.css", rest)

	query, rest = SplitLoaderChain("./plain.js")
	assert.Equal(t, "", query)
	assert.Equal(t, "./plain.js", rest)
}

func TestIsBarePackage(t *testing.T) {
	assert.True(t, IsBarePackage("lodash"))
	assert.True(t, IsBarePackage("@scope/pkg"))
	assert.False(t, IsBarePackage("./local"))
	assert.False(t, IsBarePackage("/abs/local"))
	assert.False(t, IsBarePackage(""))
	assert.False(t, IsBarePackage("@"))
}
