package eval

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvaluateSetsModuleExports(t *testing.T) {
	e := NewGojaEvaluator()
	exports, err := e.Evaluate(`module.exports = { value: 42 };`, nil, nil, nil, nil)
	require.NoError(t, err)
	assert.EqualValues(t, 42, exports["value"])
}

func TestEvaluateCallsRequire(t *testing.T) {
	e := NewGojaEvaluator()
	var requested string
	require_ := func(specifier string) (map[string]interface{}, error) {
		requested = specifier
		return map[string]interface{}{"default": "dep-exports"}, nil
	}

	exports, err := e.Evaluate(
		`var dep = require('./dep.js'); module.exports = { got: dep.default };`,
		require_, nil, nil, nil,
	)
	require.NoError(t, err)
	assert.Equal(t, "./dep.js", requested)
	assert.Equal(t, "dep-exports", exports["got"])
}

func TestEvaluatePropagatesRequireError(t *testing.T) {
	e := NewGojaEvaluator()
	require_ := func(specifier string) (map[string]interface{}, error) {
		return nil, assert.AnError
	}

	_, err := e.Evaluate(`require('./missing.js');`, require_, nil, nil, nil)
	require.Error(t, err)
}

func TestEvaluateExposesProcessEnv(t *testing.T) {
	e := NewGojaEvaluator()
	exports, err := e.Evaluate(
		`module.exports = { mode: process.env.MODE };`,
		nil, nil, nil, map[string]string{"MODE": "production"},
	)
	require.NoError(t, err)
	assert.Equal(t, "production", exports["mode"])
}

func TestEvaluateHandlesNonObjectExports(t *testing.T) {
	e := NewGojaEvaluator()
	exports, err := e.Evaluate(`module.exports = function() {};`, nil, nil, nil, nil)
	require.NoError(t, err)
	assert.Contains(t, exports, "default")
}

func TestEvaluateModuleHotAcceptInvokesCallback(t *testing.T) {
	e := NewGojaEvaluator()
	var gotPath string
	var called bool
	accept := func(path string, callback func(map[string]interface{})) {
		gotPath = path
		called = true
		if callback != nil {
			callback(map[string]interface{}{"value": 1})
		}
	}

	_, err := e.Evaluate(`module.hot.accept();`, nil, nil, accept, nil)
	require.NoError(t, err)
	assert.True(t, called)
	assert.Equal(t, "", gotPath)
}

func TestEvaluateModuleHotIsPresentWithoutAccept(t *testing.T) {
	e := NewGojaEvaluator()
	exports, err := e.Evaluate(`module.exports = { hadHot: typeof module.hot === 'object' };`, nil, nil, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, true, exports["hadHot"])
}
