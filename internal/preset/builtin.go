package preset

import (
	"github.com/conneroisu/sandboxgraph/internal/loader"
	"github.com/conneroisu/sandboxgraph/internal/transform"
)

// NewBuiltinRegistry returns a Registry seeded with the reference
// templates this module ships, the way templar's plugin manager seeds
// itself with the builtin CSS framework plugins before any config file
// is read.
func NewBuiltinRegistry() *Registry {
	r := NewRegistry()
	r.Register(vanillaTemplate())
	r.Register(staticTemplate())
	return r
}

// vanillaTemplate runs plain JS/JSON/CSS/assets through the reference
// transformers with no import aliasing.
func vanillaTemplate() *Template {
	return &Template{
		Name: "vanilla",
		Rules: []Rule{
			{Test: Ext("json"), Steps: step(transform.JSON{}, true)},
			{Test: Ext("css"), Steps: step(transform.CSSInjection{}, false)},
			{Test: Ext("svg"), Steps: step(transform.RawAsset{MimeType: "image/svg+xml"}, true)},
			{Test: Ext("png"), Steps: step(transform.RawAsset{MimeType: "image/png"}, true)},
			{Test: Ext("jpg"), Steps: step(transform.RawAsset{MimeType: "image/jpeg"}, true)},
			{Test: Ext("js"), Steps: step(transform.Identity{}, true)},
			{Test: Ext("mjs"), Steps: step(transform.Identity{}, true)},
		},
	}
}

// staticTemplate has rules only for .json (JSON module) and .css (style
// injection); every other file matches no rule and its code passes through
// the loader chain unchanged.
func staticTemplate() *Template {
	return &Template{
		Name: "static",
		Rules: []Rule{
			{Test: Ext("json"), Steps: step(transform.JSON{}, true)},
			{Test: Ext("css"), Steps: step(transform.CSSInjection{}, false)},
		},
	}
}

func step(t loader.Transformer, cacheable bool) []loader.Step {
	return []loader.Step{{Transformer: t, Cacheable: cacheable}}
}
