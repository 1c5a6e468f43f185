package hlsfetch

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// noopHandler is an identity DRM handler used to exercise pipelineState's
// file-layout bookkeeping (flush/merge ranges, discontinuity files) without
// depending on real key material.
type noopHandler struct{ system string }

func (h *noopHandler) Decrypt(path string) error { return nil }
func (h *noopHandler) KeySystem() string         { return h.system }

func writeSegments(t *testing.T, dir string, n int, ext string) {
	t.Helper()
	st := &pipelineState{digits: 1}
	for i := 0; i < n; i++ {
		path := filepath.Join(dir, st.padName(i, ext))
		require.NoError(t, os.WriteFile(path, []byte{byte(i)}, 0o644))
	}
}

// TestS1PlainAES128NoDiscontinuity is spec.md's S1: 3 segments, one AES-128
// key from segment 0. One flush-decrypt [0,2] producing 0-2_decrypted.ts,
// one discontinuity file 0.ts.
func TestS1PlainAES128NoDiscontinuity(t *testing.T) {
	segDir := t.TempDir()
	saveDir := t.TempDir()
	writeSegments(t, segDir, 3, "ts")

	st := newPipelineState(segDir, saveDir, 3, nil, nil)
	key := &KeyDescriptor{Method: "AES-128", URI: "https://example.com/key"}
	handler := &noopHandler{system: "aes-128"}
	st.encContext = &encryptionContext{firstIndex: 0, key: key, handler: handler}

	decryptedPath, err := st.flushDecrypt(0, 2, handler)
	require.NoError(t, err)
	assert.FileExists(t, decryptedPath)
	assert.Equal(t, filepath.Join(segDir, "0-2_decrypted.ts"), decryptedPath)

	disconPath, err := st.mergeDiscontinuity(2)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(saveDir, "0.ts"), disconPath)
	assert.FileExists(t, disconPath)
	assert.Equal(t, []string{disconPath}, st.disconFiles)

	entries, err := os.ReadDir(segDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

// TestS2KeyChangeMidPlaylist is spec.md's S2: 4 segments, key K1 at index 0,
// key K2 at index 2. flush [0,1] under K1 at i=2, flush [2,3] under K2 at
// i=3, single discontinuity file.
func TestS2KeyChangeMidPlaylist(t *testing.T) {
	segDir := t.TempDir()
	saveDir := t.TempDir()
	writeSegments(t, segDir, 4, "ts")

	st := newPipelineState(segDir, saveDir, 4, nil, nil)
	k1 := &KeyDescriptor{Method: "AES-128", URI: "https://example.com/k1"}
	k2 := &KeyDescriptor{Method: "AES-128", URI: "https://example.com/k2"}
	h1 := &noopHandler{system: "aes-128-k1"}
	h2 := &noopHandler{system: "aes-128-k2"}
	st.encContext = &encryptionContext{firstIndex: 0, key: k1, handler: h1}

	run1, err := st.flushDecrypt(0, 1, h1)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(segDir, "0-1_decrypted.ts"), run1)

	st.encContext = &encryptionContext{firstIndex: 2, key: k2, handler: h2}
	run2, err := st.flushDecrypt(2, 3, h2)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(segDir, "2-3_decrypted.ts"), run2)

	disconPath, err := st.mergeDiscontinuity(3)
	require.NoError(t, err)
	assert.Len(t, st.disconFiles, 1)
	assert.Equal(t, disconPath, st.disconFiles[0])
}

// TestS4PlaintextGap is spec.md's S4: keys at 0 = AES-128, at 2 = NONE, at
// 4 = AES-128 (N=5: indices 0..4). Decryption runs [0,1] and [4,4]; segments
// 2..3 are copied as-is (never passed to flushDecrypt).
func TestS4PlaintextGap(t *testing.T) {
	segDir := t.TempDir()
	saveDir := t.TempDir()
	writeSegments(t, segDir, 5, "ts")

	st := newPipelineState(segDir, saveDir, 5, nil, nil)
	key := &KeyDescriptor{Method: "AES-128", URI: "https://example.com/key"}
	handler := &noopHandler{system: "aes-128"}
	st.encContext = &encryptionContext{firstIndex: 0, key: key, handler: handler}

	run1, err := st.flushDecrypt(0, 1, handler)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(segDir, "0-1_decrypted.ts"), run1)

	// Segments 2,3 stay as plaintext files, untouched by flushDecrypt, until
	// the final key change at index 4 reopens a run covering just [4,4].
	assert.FileExists(t, filepath.Join(segDir, "2.ts"))
	assert.FileExists(t, filepath.Join(segDir, "3.ts"))

	st.encContext = &encryptionContext{firstIndex: 4, key: key, handler: handler}
	run2, err := st.flushDecrypt(4, 4, handler)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(segDir, "4-4_decrypted.ts"), run2)

	disconPath, err := st.mergeDiscontinuity(4)
	require.NoError(t, err)
	assert.FileExists(t, disconPath)
}

// TestS5DiscontinuityResetsState is spec.md's S5: 6 segments, discontinuity
// at index 3, AES-128 key held throughout. flush [0,2] -> discontinuity file
// 0.ts; new context rebased at 3; flush [3,5] -> discontinuity file 1.ts.
func TestS5DiscontinuityResetsState(t *testing.T) {
	segDir := t.TempDir()
	saveDir := t.TempDir()
	writeSegments(t, segDir, 6, "ts")

	st := newPipelineState(segDir, saveDir, 6, nil, nil)
	key := &KeyDescriptor{Method: "AES-128", URI: "https://example.com/key"}
	handler := &noopHandler{system: "aes-128"}
	st.encContext = &encryptionContext{firstIndex: 0, key: key, handler: handler}

	_, err := st.flushDecrypt(0, 2, handler)
	require.NoError(t, err)

	discon0, err := st.mergeDiscontinuity(2)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(saveDir, "0.ts"), discon0)

	// Discontinuity boundary: rangeOffset resets, init section drops, the
	// encryption context rebases at the new boundary's first index.
	st.disconIndex++
	st.rangeOffset = 0
	st.initSection = nil
	st.encContext = &encryptionContext{firstIndex: 3, key: key, handler: handler}

	_, err = st.flushDecrypt(3, 5, handler)
	require.NoError(t, err)

	discon1, err := st.mergeDiscontinuity(5)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(saveDir, "1.ts"), discon1)

	assert.Equal(t, []string{discon0, discon1}, st.disconFiles)
}
