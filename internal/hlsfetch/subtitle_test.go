package hlsfetch

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsFragmentedSubtitleCodec(t *testing.T) {
	assert.True(t, IsFragmentedSubtitleCodec("wvtt"))
	assert.True(t, IsFragmentedSubtitleCodec("STPP"))
	assert.False(t, IsFragmentedSubtitleCodec("vtt"))
}

func TestNormalizeSubtitle_AlreadyUTF8Unchanged(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sub.vtt")
	content := "WEBVTT\n\n00:00:00.000 --> 00:00:01.000\nHello"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	require.NoError(t, NormalizeSubtitle(path))

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, content, string(got))
}

func TestNormalizeSubtitle_CP1252Fallback(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sub.vtt")
	// 0x93/0x94 are CP-1252 curly quotes with no valid UTF-8 interpretation
	// as a standalone byte sequence.
	raw := []byte{0x93, 'h', 'i', 0x94}
	require.NoError(t, os.WriteFile(path, raw, 0o644))

	require.NoError(t, NormalizeSubtitle(path))

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(got), "hi")
}

func TestNormalizeSubtitle_UnescapesDirectionMarks(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sub.vtt")
	content := "WEBVTT\n\n00:00:00.000 --> 00:00:01.000\n&lrm;hello&rlm;"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	require.NoError(t, NormalizeSubtitle(path))

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(got), "&lrm;")
	assert.NotContains(t, string(got), "&rlm;")
	assert.Contains(t, string(got), "hello")
}
