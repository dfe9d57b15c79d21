package downloader

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/sandboxgraph/internal/module"
)

func TestManifestDownloaderResolvesKnownSpecifier(t *testing.T) {
	d := NewManifestDownloader(map[string]module.Module{
		"left-pad": {Path: "/node_modules/left-pad/index.js", Code: "module.exports = leftPad;"},
	})

	mod, err := d.Download(context.Background(), "left-pad", "/src/app.js")
	require.NoError(t, err)
	assert.Equal(t, "/node_modules/left-pad/index.js", mod.Path)
}

func TestManifestDownloaderRejectsUnknownSpecifier(t *testing.T) {
	d := NewManifestDownloader(nil)
	_, err := d.Download(context.Background(), "left-pad", "/src/app.js")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "left-pad")
}
