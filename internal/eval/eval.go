// Package eval implements spec.md §4.5: it compiles transpiled source text
// into an executable unit and invokes it with the standard module globals
// (module, exports, require, process.env), returning the unit's export
// record. No example repo in the retrieved pack embeds a JavaScript VM;
// this package uses github.com/dop251/goja, the standard Go-ecosystem
// embeddable JS engine, as an out-of-pack dependency (see DESIGN.md).
package eval

import (
	"fmt"

	"github.com/dop251/goja"
)

// RequireFunc is the require(specifier) closure the graph manager builds
// per evaluation, capturing the manager and the requiring module (spec.md
// §4.3 step 4); no parent stack is captured.
type RequireFunc func(specifier string) (map[string]interface{}, error)

// AcceptFunc is the module.hot.accept(path?, callback?) closure of
// spec.md §4.3 evaluate step 3, bound to the node under evaluation. path
// is "" for a bare self-accept call.
type AcceptFunc func(path string, callback func(exports map[string]interface{}))

// Evaluator is the §4.5 collaborator contract.
type Evaluator interface {
	Evaluate(compiledCode string, require RequireFunc, exports map[string]interface{}, accept AcceptFunc, env map[string]string) (map[string]interface{}, error)
}

// GojaEvaluator runs compiled code in an embedded JS VM.
type GojaEvaluator struct{}

// NewGojaEvaluator constructs the default evaluator.
func NewGojaEvaluator() *GojaEvaluator { return &GojaEvaluator{} }

// Evaluate satisfies Evaluator. After a successful run, the returned map
// reflects every assignment the unit made to module.exports or to
// exports, per spec.md §4.5's contract.
func (e *GojaEvaluator) Evaluate(compiledCode string, require RequireFunc, exports map[string]interface{}, accept AcceptFunc, env map[string]string) (map[string]interface{}, error) {
	vm := goja.New()

	if exports == nil {
		exports = make(map[string]interface{})
	}
	moduleObj := vm.NewObject()
	_ = moduleObj.Set("exports", vm.ToValue(exports))
	_ = moduleObj.Set("hot", buildHotObject(vm, accept))
	_ = vm.Set("module", moduleObj)
	_ = vm.Set("exports", moduleObj.Get("exports"))

	processObj := vm.NewObject()
	envObj := vm.NewObject()
	for k, v := range env {
		_ = envObj.Set(k, v)
	}
	_ = processObj.Set("env", envObj)
	_ = vm.Set("process", processObj)

	requireFn := func(call goja.FunctionCall) goja.Value {
		specifier := call.Argument(0).String()
		result, err := require(specifier)
		if err != nil {
			panic(vm.ToValue(err.Error()))
		}
		return vm.ToValue(result)
	}
	_ = vm.Set("require", requireFn)

	_, err := vm.RunString(compiledCode)
	if err != nil {
		return nil, fmt.Errorf("evaluation failed: %w", err)
	}

	finalExports, ok := moduleObj.Get("exports").Export().(map[string]interface{})
	if !ok {
		// module.exports was reassigned to a non-object value (a function,
		// a primitive, ...); wrap it so callers still get a map contract.
		finalExports = map[string]interface{}{"default": moduleObj.Get("exports").Export()}
	}

	return finalExports, nil
}

// buildHotObject builds the module.hot value: an object exposing accept(),
// the webpack-style HMR API spec.md §4.3 step 3 requires. It is present
// even when accept is nil, so `if (module.hot)` checks in transpiled code
// see it as truthy; calling accept() is then simply a no-op.
//
// accept() accepts the forms module.hot.accept() (bare self-accept),
// module.hot.accept(callback) (self-accept with a re-evaluation callback),
// module.hot.accept(path) and module.hot.accept(path, callback) (accept a
// specific dependency).
func buildHotObject(vm *goja.Runtime, accept AcceptFunc) *goja.Object {
	hotObj := vm.NewObject()
	_ = hotObj.Set("accept", func(call goja.FunctionCall) goja.Value {
		if accept == nil {
			return goja.Undefined()
		}

		var path string
		var callback func(map[string]interface{})

		args := call.Arguments
		if len(args) > 0 {
			if fn, ok := goja.AssertFunction(args[0]); ok {
				callback = wrapCallback(vm, fn)
			} else {
				path = args[0].String()
			}
		}
		if len(args) > 1 {
			if fn, ok := goja.AssertFunction(args[1]); ok {
				callback = wrapCallback(vm, fn)
			}
		}

		accept(path, callback)
		return goja.Undefined()
	})
	return hotObj
}

// wrapCallback adapts a goja function value into the Go-side callback shape
// Manager.acceptFor's HMR state expects.
func wrapCallback(vm *goja.Runtime, fn goja.Callable) func(map[string]interface{}) {
	return func(exports map[string]interface{}) {
		_, _ = fn(goja.Undefined(), vm.ToValue(exports))
	}
}
