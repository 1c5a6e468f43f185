package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_AppliesDefaults(t *testing.T) {
	cfg, err := parse([]byte("master_url: https://example.com/master.m3u8\n"))
	require.NoError(t, err)

	assert.Equal(t, "en", cfg.Language)
	assert.Equal(t, "en", cfg.FallbackLanguage)
	assert.Equal(t, ".", cfg.OutputDir)
	assert.Equal(t, "http", cfg.Downloader)
	assert.Equal(t, 16, cfg.MaxWorkers)
}

func TestParse_MissingMasterURL(t *testing.T) {
	_, err := parse([]byte("language: en\n"))
	require.Error(t, err)
	var missing *MissingRequiredField
	assert.ErrorAs(t, err, &missing)
}

func TestParse_UnrecognizedField(t *testing.T) {
	_, err := parse([]byte("master_url: https://example.com/master.m3u8\nbogus_field: true\n"))
	require.Error(t, err)
	var unrecognized *UnrecognizedField
	assert.ErrorAs(t, err, &unrecognized)
}

func TestParse_MalformedProxy(t *testing.T) {
	_, err := parse([]byte("master_url: https://example.com/master.m3u8\nproxy: \"://not-a-url\"\n"))
	require.Error(t, err)
	var malformed *MalformedField
	assert.ErrorAs(t, err, &malformed)
}

func TestParse_OverridesDefaults(t *testing.T) {
	cfg, err := parse([]byte("master_url: https://example.com/master.m3u8\nlanguage: fr\nmax_workers: 4\ndownloader: aria2c\n"))
	require.NoError(t, err)

	assert.Equal(t, "fr", cfg.Language)
	assert.Equal(t, 4, cfg.MaxWorkers)
	assert.Equal(t, "aria2c", cfg.Downloader)
}
