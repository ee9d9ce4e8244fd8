package client

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withConfigPath(t *testing.T) string {
	t.Helper()
	configPath := filepath.Join(t.TempDir(), "nested", "config.json")
	old := getConfigPathFunc
	getConfigPathFunc = func() (string, error) { return configPath, nil }
	t.Cleanup(func() { getConfigPathFunc = old })
	return configPath
}

func TestGetConfigPath(t *testing.T) {
	path, err := GetConfigPath()
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(path))
	assert.True(t, strings.HasSuffix(path, filepath.Join("bookmind", "config.json")))
}

func TestLoadGlobalConfig_FileNotExists(t *testing.T) {
	withConfigPath(t)

	config, err := LoadGlobalConfig()
	require.NoError(t, err)
	assert.Nil(t, config)
}

func TestSaveAndLoadGlobalConfig(t *testing.T) {
	path := withConfigPath(t)

	require.NoError(t, SaveGlobalConfig(&GlobalConfig{APIURL: "http://bookmind.local:9000"}))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	config, err := LoadGlobalConfig()
	require.NoError(t, err)
	require.NotNil(t, config)
	assert.Equal(t, "http://bookmind.local:9000", config.APIURL)

	assert.Error(t, SaveGlobalConfig(nil))
}

func TestLoadGlobalConfig_InvalidJSON(t *testing.T) {
	path := withConfigPath(t)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte("{invalid json}"), 0600))

	_, err := LoadGlobalConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse config file")
}

func TestResolveAPIURL(t *testing.T) {
	withConfigPath(t)
	t.Setenv(envAPIURL, "")

	url, err := ResolveAPIURL("")
	require.NoError(t, err)
	assert.Equal(t, defaultAPIURL, url)

	require.NoError(t, SaveGlobalConfig(&GlobalConfig{APIURL: "http://saved:1/"}))
	url, _ = ResolveAPIURL("")
	assert.Equal(t, "http://saved:1", url)

	t.Setenv(envAPIURL, "http://env:2")
	url, _ = ResolveAPIURL("")
	assert.Equal(t, "http://env:2", url)

	url, _ = ResolveAPIURL("http://flag:3/")
	assert.Equal(t, "http://flag:3", url)
}
