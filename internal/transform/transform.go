// Package transform provides a small set of concrete loader.Transformer
// implementations so the end-to-end scenarios in spec.md §8 can run
// against real transformers rather than test doubles. The spec treats
// transformers as out-of-scope external collaborators (spec.md §2); this
// package is the minimal reference set a deployment ships, grounded on
// templar/internal/plugins/builtin and templar/internal/plugins/css.
package transform

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/conneroisu/sandboxgraph/internal/loader"
)

// Identity passes code through unchanged. It is the default transformer
// for .js/.mjs files: the entry script is already valid source text.
type Identity struct{}

func (Identity) Name() string { return "identity-loader" }

func (Identity) Transpile(_ context.Context, code string, _ loader.Context) (loader.Result, error) {
	return loader.Result{Code: code}, nil
}

func (Identity) Cleanup(loader.Context) {}
func (Identity) Cacheable() bool        { return true }

// JSON wraps JSON source text as a CommonJS module, the way bundlers let
// you `require("./data.json")` and get the parsed value back.
type JSON struct{}

func (JSON) Name() string { return "json-loader" }

func (JSON) Transpile(_ context.Context, code string, _ loader.Context) (loader.Result, error) {
	return loader.Result{Code: "module.exports = " + code + ";"}, nil
}

func (JSON) Cleanup(loader.Context) {}
func (JSON) Cacheable() bool        { return true }

// RawAsset turns arbitrary binary/text content into a module that exports
// a data: URL, the way an url-loader does for small images and fonts.
type RawAsset struct {
	MimeType string
}

func (a RawAsset) Name() string { return "raw-asset-loader" }

func (a RawAsset) Transpile(_ context.Context, code string, _ loader.Context) (loader.Result, error) {
	encoded := base64.StdEncoding.EncodeToString([]byte(code))
	dataURL := fmt.Sprintf("data:%s;base64,%s", a.MimeType, encoded)
	return loader.Result{Code: fmt.Sprintf("module.exports = %q;", dataURL)}, nil
}

func (RawAsset) Cleanup(loader.Context) {}
func (RawAsset) Cacheable() bool        { return true }

// CSSInjection turns CSS text into a module that, when evaluated, injects
// a <style> tag into the host document and self-accepts HMR updates — the
// shape of templar's CSS framework plugins (internal/plugins/css) adapted
// to the loader-context contract. It emits no child module, and its
// Cleanup does not remove the tag.
type CSSInjection struct{}

func (CSSInjection) Name() string { return "css-loader" }

func (CSSInjection) Transpile(_ context.Context, code string, lctx loader.Context) (loader.Result, error) {
	escaped := fmt.Sprintf("%q", code)
	js := "(function(){\n" +
		"  var s = document.createElement('style');\n" +
		"  s.textContent = " + escaped + ";\n" +
		"  document.head.appendChild(s);\n" +
		"  module.exports = {};\n" +
		"  if (module.hot) { module.hot.accept(); }\n" +
		"})();"
	return loader.Result{Code: js}, nil
}

// Cleanup is a no-op here: the injected <style> tag's removal happens in
// the evaluated unit's own disposal path in a full browser runtime; the
// hook exists so a deployment with DOM access can wire element removal.
func (CSSInjection) Cleanup(loader.Context) {}
func (CSSInjection) Cacheable() bool        { return false }
