package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	viper.Reset()
	require.NoError(t, LoadDefaults())

	assert.Equal(t, 150.0, viper.GetFloat64("spatial.lookback"))
	assert.Equal(t, []int{28, 32}, viper.GetIntSlice("detector.bands.default"))
	assert.Contains(t, viper.GetStringSlice("sections.terminal"), "daily balance")
	assert.NoError(t, Validate())
}

func TestLoad_MergesUserFile(t *testing.T) {
	viper.Reset()
	dir := t.TempDir()
	path := filepath.Join(dir, "custom.yaml")
	err := os.WriteFile(path, []byte("spatial:\n  lookback: 200\n"), 0o600)
	require.NoError(t, err)

	require.NoError(t, Load(path))

	assert.Equal(t, 200.0, viper.GetFloat64("spatial.lookback"))
	// untouched keys keep their defaults
	assert.Equal(t, 80, viper.GetInt("detector.fuzzy_threshold"))
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	viper.Reset()
	err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate_BadPattern(t *testing.T) {
	viper.Reset()
	require.NoError(t, LoadDefaults())
	viper.Set("line_regex.transaction", "([")

	assert.Error(t, Validate())
}

func TestValidate_InvertedBand(t *testing.T) {
	viper.Reset()
	require.NoError(t, LoadDefaults())
	viper.Set("detector.bands.strict", []int{31, 28})

	assert.Error(t, Validate())
}
