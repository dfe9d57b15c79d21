// Package module defines the immutable input unit of the bundler (Module),
// the output of one loader-chain run (ModuleSource), and the graph vertex
// that ties the two together across a compile lifecycle (TranspiledModule).
package module

// Module is the immutable input unit handed to the graph manager: an
// absolute, slash-separated path and its source text. Requires, when
// present, is an authoritative precomputed dependency list produced by an
// upstream service; its presence short-circuits transformation entirely.
type Module struct {
	Path     string
	Code     string
	Requires []string
}

// ModuleSource is the post-transform output of one loader-chain run. Its
// CompiledCode carries the devtools sourceURL trailer built by
// WithSourceURL.
type ModuleSource struct {
	FileName     string
	CompiledCode string
	SourceMap    []byte
}

// WithSourceURL returns a copy of the compiled code with a
// "//# sourceURL=<origin><path>" trailer appended so that browser devtools
// attribute the evaluated code to its virtual path.
func WithSourceURL(compiledCode, origin, path string) string {
	return compiledCode + "\n//# sourceURL=" + origin + path + "\n"
}
