package config

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestXDGConfigPaths(t *testing.T) {
	xdg := NewXDGDirs()

	paths := xdg.GetConfigPaths("config.json")
	require.NotEmpty(t, paths)

	for _, path := range paths {
		assert.True(t, filepath.IsAbs(path), "config path should be absolute: %s", path)
		assert.True(t, strings.HasSuffix(path, filepath.Join("wmadec", "config.json")), path)
	}

	dirs := xdg.GetConfigPaths("")
	assert.True(t, strings.HasSuffix(dirs[0], "wmadec"))
}

func TestXDGCachePath(t *testing.T) {
	xdg := NewXDGDirs()

	base := xdg.GetCachePath("")
	logs := xdg.GetCachePath("logs")

	assert.True(t, strings.HasSuffix(base, "wmadec"))
	assert.Equal(t, filepath.Join(base, "logs"), logs)
}

func TestXDGCreateCacheDir(t *testing.T) {
	memFS := afero.NewMemMapFs()
	xdg := NewXDGDirsWithFilesystem(memFS)

	require.NoError(t, xdg.CreateCacheDir("logs"))

	isDir, err := afero.IsDir(memFS, xdg.GetCachePath("logs"))
	require.NoError(t, err)
	assert.True(t, isDir)
}
