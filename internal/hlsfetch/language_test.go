package hlsfetch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestS6LanguageFallback is spec.md's S6: a MEDIA entry with LANGUAGE="und"
// and fallback "en" resolves to "en", with is_original_lang = true.
func TestS6LanguageFallback(t *testing.T) {
	lang, err := ResolveLanguage("und", "en")
	require.NoError(t, err)
	assert.Equal(t, "en", lang.String())

	original, err := ResolveLanguage("en")
	require.NoError(t, err)

	assert.True(t, IsOriginalLanguage(lang, original))
}

func TestResolveLanguage_FirstValidWins(t *testing.T) {
	lang, err := ResolveLanguage("fr", "en")
	require.NoError(t, err)
	assert.Equal(t, "fr", lang.String())
}

func TestResolveLanguage_AllUnresolved(t *testing.T) {
	_, err := ResolveLanguage("und", "")
	require.Error(t, err)
	var unresolved *LanguageUnresolvedError
	assert.ErrorAs(t, err, &unresolved)
}

func TestIsOriginalLanguage_RegionIgnored(t *testing.T) {
	enGB, err := ResolveLanguage("en-GB")
	require.NoError(t, err)
	enUS, err := ResolveLanguage("en-US")
	require.NoError(t, err)

	assert.True(t, IsOriginalLanguage(enGB, enUS))
}

func TestIsOriginalLanguage_DifferentBase(t *testing.T) {
	fr, err := ResolveLanguage("fr")
	require.NoError(t, err)
	en, err := ResolveLanguage("en")
	require.NoError(t, err)

	assert.False(t, IsOriginalLanguage(fr, en))
}
