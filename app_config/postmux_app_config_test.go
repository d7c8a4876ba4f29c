package app_config

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePostmuxAppConfigBytes(t *testing.T) {
	c, err := ParsePostmuxAppConfigBytes([]byte(`
LOCALE: "Europe/Paris"
EXTRA_POST_FIELDS: ["place"]
EXTRA_USER_FIELDS: ["url"]
EXPORT_EXTRA_FIELDS: ["coordinates"]
EXPORT_SELECTED_FIELD: "selected"
NORMALIZER_WORKERS: 8
STORE: "mongo"
`))
	require.Nil(t, err)
	assert.Equal(t, "Europe/Paris", c.LOCALE)
	assert.Equal(t, []string{"place"}, c.EXTRA_POST_FIELDS)
	assert.Equal(t, []string{"url"}, c.EXTRA_USER_FIELDS)
	assert.Equal(t, []string{"coordinates"}, c.EXPORT_EXTRA_FIELDS)
	assert.Equal(t, "selected", c.EXPORT_SELECTED_FIELD)
	assert.Equal(t, 8, c.NORMALIZER_WORKERS)
	assert.Equal(t, StoreMongo, c.STORE)
}

func TestParsePostmuxAppConfigDefaults(t *testing.T) {
	c, err := ParsePostmuxAppConfigBytes(nil)
	require.Nil(t, err)
	assert.Equal(t, DefaultNormalizerWorkers, c.NORMALIZER_WORKERS)
	assert.Equal(t, StoreMemory, c.STORE)

	loc, err := c.LoadLocation()
	require.Nil(t, err)
	assert.Nil(t, loc)
}

func TestLoadLocation(t *testing.T) {
	loc, err := PostmuxAppConfig{LOCALE: "UTC"}.LoadLocation()
	require.Nil(t, err)
	assert.Equal(t, "UTC", loc.String())

	_, err = PostmuxAppConfig{LOCALE: "Not/AZone"}.LoadLocation()
	assert.NotNil(t, err)
}

func TestLoadPostmuxAppConfig(t *testing.T) {
	dir, err := ioutil.TempDir("", "postmux")
	require.Nil(t, err)
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, "config.yaml")
	require.Nil(t, ioutil.WriteFile(path, []byte("STORE: postgres\n"), 0644))
	c, err := LoadPostmuxAppConfig(path)
	require.Nil(t, err)
	assert.Equal(t, StorePostgres, c.STORE)

	_, err = LoadPostmuxAppConfig(filepath.Join(dir, "missing.yaml"))
	assert.NotNil(t, err)

	_, err = ParsePostmuxAppConfigBytes([]byte("NORMALIZER_WORKERS: [1"))
	assert.NotNil(t, err)
}
