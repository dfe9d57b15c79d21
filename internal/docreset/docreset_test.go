package docreset

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResetDocumentSynthesizesDefaultWhenEmpty(t *testing.T) {
	r := NewResetter("", nil)
	html, err := r.ResetDocument(nil)
	require.NoError(t, err)
	assert.Contains(t, html, `id="root"`)
}

func TestResetDocumentInjectsExternalResources(t *testing.T) {
	r := NewResetter("", nil)
	html, err := r.ResetDocument([]string{"https://cdn.example.com/app.js", "https://cdn.example.com/app.css"})
	require.NoError(t, err)
	assert.Contains(t, html, `src="https://cdn.example.com/app.js"`)
	assert.Contains(t, html, `href="https://cdn.example.com/app.css"`)
	assert.Contains(t, html, `rel="stylesheet"`)
}

func TestResetDocumentCallsUnmountFirst(t *testing.T) {
	var unmountedRoot string
	r := NewResetter("", func(rootID string) { unmountedRoot = rootID })

	_, err := r.ResetDocument(nil)
	require.NoError(t, err)
	assert.Equal(t, defaultRootID, unmountedRoot)
}

func TestResetDocumentPreservesSuppliedHTML(t *testing.T) {
	r := NewResetter(`<!doctype html><html><head><title>t</title></head><body><div id="root"></div></body></html>`, nil)
	html, err := r.ResetDocument([]string{"app.js"})
	require.NoError(t, err)
	assert.Contains(t, html, "<title>t</title>")
	assert.Contains(t, html, `src="app.js"`)
}
