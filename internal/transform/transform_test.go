package transform

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdentityPassesCodeThrough(t *testing.T) {
	out, err := Identity{}.Transpile(context.Background(), "var x = 1;", nil)
	require.NoError(t, err)
	assert.Equal(t, "var x = 1;", out.Code)
	assert.True(t, Identity{}.Cacheable())
}

func TestJSONWrapsAsCommonJS(t *testing.T) {
	out, err := JSON{}.Transpile(context.Background(), `{"a":1}`, nil)
	require.NoError(t, err)
	assert.Equal(t, `module.exports = {"a":1};`, out.Code)
}

func TestRawAssetEncodesDataURL(t *testing.T) {
	out, err := RawAsset{MimeType: "image/png"}.Transpile(context.Background(), "binarydata", nil)
	require.NoError(t, err)
	assert.Contains(t, out.Code, "data:image/png;base64,")
	assert.Contains(t, out.Code, "module.exports =")
}

func TestCSSInjectionIsNotCacheable(t *testing.T) {
	out, err := CSSInjection{}.Transpile(context.Background(), "body{color:red}", nil)
	require.NoError(t, err)
	assert.Contains(t, out.Code, "document.createElement('style')")
	assert.Contains(t, out.Code, "module.hot.accept()")
	assert.False(t, CSSInjection{}.Cacheable())
}
