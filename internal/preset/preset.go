// Package preset maps a template name to the ordered transformer chains
// that apply to each kind of file, and resolves import aliases, the way
// templar's config/plugins.go and plugins/manager.go map plugin tags to
// concrete plugin instances.
package preset

import (
	"path/filepath"
	"strings"

	"github.com/conneroisu/sandboxgraph/internal/loader"
	"github.com/conneroisu/sandboxgraph/internal/transform"
)

// Rule selects a transformer chain for files whose path matches Test
// (a suffix match against the module path, e.g. ".js", ".css").
type Rule struct {
	Test  string
	Steps []loader.Step
}

// Preset is the template-driven registry the graph manager consults for
// (module, query) -> transformer chain, and for import alias resolution.
// It is an out-of-scope external collaborator per spec.md §2; this package
// provides the default, builtin-template implementation a real deployment
// ships alongside the core.
type Preset interface {
	// GetLoaders returns the ordered transformer chain for modulePath,
	// optionally overridden by a loader-chain query selector.
	GetLoaders(modulePath, query string) ([]loader.Step, error)
	// GetAliasedPath applies the preset's import aliases to specifier.
	GetAliasedPath(specifier string) string
}

// Template is a named, self-contained set of rules and aliases, analogous
// to templar's named CSS-framework presets (tailwind, bootstrap, bulma).
type Template struct {
	Name    string
	Rules   []Rule
	Aliases map[string]string
}

// Registry holds builtin templates keyed by name, following
// templar/internal/plugins.PluginManager's name-keyed lookup.
type Registry struct {
	templates map[string]*Template
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{templates: make(map[string]*Template)}
}

// Register adds or replaces a template.
func (r *Registry) Register(t *Template) {
	r.templates[t.Name] = t
}

// Get returns the named template, or the "vanilla" template if name is
// unknown — presets fail soft, matching templar's default-config fallback.
func (r *Registry) Get(name string) *Template {
	if t, ok := r.templates[name]; ok {
		return t
	}
	return r.templates["vanilla"]
}

// templatePreset adapts a single Template to the Preset interface.
type templatePreset struct {
	template *Template
}

// FromTemplate adapts a Template to a Preset.
func FromTemplate(t *Template) Preset {
	return &templatePreset{template: t}
}

func (p *templatePreset) GetLoaders(modulePath, query string) ([]loader.Step, error) {
	if query != "" {
		if steps, ok := parseInlineQuery(query); ok {
			return steps, nil
		}
	}
	for _, rule := range p.template.Rules {
		if strings.HasSuffix(modulePath, rule.Test) {
			return rule.Steps, nil
		}
	}
	return nil, nil
}

func (p *templatePreset) GetAliasedPath(specifier string) string {
	if p.template.Aliases == nil {
		return specifier
	}
	if aliased, ok := p.template.Aliases[specifier]; ok {
		return aliased
	}
	return specifier
}

// inlineLoaderFactory builds the transformer an inline loader name selects,
// given its "?"-encoded options string, or reports ok=false for an unknown
// name so the caller can fall back to extension-based rule matching.
type inlineLoaderFactory func(opts map[string]string) (t loader.Transformer, cacheable bool)

// inlineLoaders maps the builtin transformers of package transform to the
// webpack-style loader names an inline chain may name directly, mirroring
// templar/internal/plugins's name-keyed plugin lookup.
var inlineLoaders = map[string]inlineLoaderFactory{
	"identity-loader": func(map[string]string) (loader.Transformer, bool) {
		return transform.Identity{}, true
	},
	"json-loader": func(map[string]string) (loader.Transformer, bool) {
		return transform.JSON{}, true
	},
	"css-loader": func(map[string]string) (loader.Transformer, bool) {
		return transform.CSSInjection{}, false
	},
	"raw-asset-loader": func(opts map[string]string) (loader.Transformer, bool) {
		return transform.RawAsset{MimeType: opts["mimetype"]}, true
	},
}

// parseInlineQuery parses a webpack-style inline loader chain
// ("name?k=v,k2=v2!name2?k=v!...") into an ordered []loader.Step. Loaders
// are written left-to-right but, per webpack's inline-loader convention,
// execute right-to-left — the rightmost-named loader runs first, feeding
// its output to the one to its left — so the parsed chain is reversed
// before being returned. An unknown loader name aborts the whole parse
// (ok=false), letting the caller fall back to the template's
// extension-matched rule instead of running a partial chain.
func parseInlineQuery(query string) ([]loader.Step, bool) {
	if query == "" {
		return nil, false
	}
	names := strings.Split(query, "!")

	steps := make([]loader.Step, len(names))
	for i, name := range names {
		loaderName, optsStr := splitLoaderOptions(name)
		factory, ok := inlineLoaders[loaderName]
		if !ok {
			return nil, false
		}
		t, cacheable := factory(parseLoaderOptions(optsStr))
		// Reverse into execution order: the last-written name runs first.
		steps[len(names)-1-i] = loader.Step{Transformer: t, Cacheable: cacheable}
	}
	return steps, true
}

// splitLoaderOptions splits "name?k=v,k2=v2" into its loader name and raw
// options string (empty when no "?" is present).
func splitLoaderOptions(spec string) (name, opts string) {
	idx := strings.IndexByte(spec, '?')
	if idx < 0 {
		return spec, ""
	}
	return spec[:idx], spec[idx+1:]
}

// parseLoaderOptions parses a comma-separated "k=v,k2=v2" options string
// into a map; a bare "k" (no "=") maps to "true".
func parseLoaderOptions(opts string) map[string]string {
	if opts == "" {
		return nil
	}
	out := make(map[string]string)
	for _, pair := range strings.Split(opts, ",") {
		if pair == "" {
			continue
		}
		if k, v, found := strings.Cut(pair, "="); found {
			out[k] = v
		} else {
			out[pair] = "true"
		}
	}
	return out
}

// Ext is a small helper for building Rule.Test values from a file
// extension, e.g. Ext("js") -> ".js".
func Ext(extension string) string {
	if strings.HasPrefix(extension, ".") {
		return extension
	}
	return "." + extension
}

// MatchesDirectory reports whether modulePath lies under dir, used by the
// graph manager's resolveTranspiledModulesInDirectory and by
// AddDependenciesInDirectory.
func MatchesDirectory(modulePath, dir string) bool {
	dir = strings.TrimSuffix(dir, "/")
	if dir == "" {
		return true
	}
	rel, err := filepath.Rel(dir, modulePath)
	if err != nil {
		return false
	}
	return !strings.HasPrefix(rel, "..")
}
