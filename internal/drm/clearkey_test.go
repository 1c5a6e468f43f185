package drm

import (
	"crypto/aes"
	"crypto/cipher"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseIV_ExplicitHex(t *testing.T) {
	iv, err := parseIV("0x000102030405060708090A0B0C0D0E0F", 42)
	require.NoError(t, err)
	assert.Len(t, iv, 16)
	assert.Equal(t, byte(0x0f), iv[15])
}

func TestParseIV_SequenceNumberFallback(t *testing.T) {
	iv, err := parseIV("", 7)
	require.NoError(t, err)
	require.Len(t, iv, 16)
	assert.Equal(t, byte(7), iv[15])
	for _, b := range iv[:8] {
		assert.Equal(t, byte(0), b)
	}
}

func TestParseIV_WrongLength(t *testing.T) {
	_, err := parseIV("aabb", 0)
	require.Error(t, err)
}

func TestNewClearKeyFromURI_FetchesKey(t *testing.T) {
	key := make([]byte, 16)
	for i := range key {
		key[i] = byte(i)
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(key)
	}))
	defer srv.Close()

	ck, err := NewClearKeyFromURI(srv.Client(), srv.URL, "", 3)
	require.NoError(t, err)
	assert.Equal(t, "AES-128", ck.KeySystem())
}

func TestClearKey_DecryptRoundTrip(t *testing.T) {
	key := make([]byte, 16)
	for i := range key {
		key[i] = byte(i + 1)
	}
	iv, err := parseIV("", 0)
	require.NoError(t, err)

	plaintext := []byte("the quick brown fox jumps over the lazy segment")
	padded := pkcs7Pad(plaintext, aes.BlockSize)

	block, err := aes.NewCipher(key)
	require.NoError(t, err)
	ciphertext := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ciphertext, padded)

	dir := t.TempDir()
	path := filepath.Join(dir, "run.ts")
	require.NoError(t, os.WriteFile(path, ciphertext, 0o644))

	ck := &ClearKey{key: key, iv: iv}
	require.NoError(t, ck.Decrypt(path))

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, plaintext, got)
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	pad := blockSize - len(data)%blockSize
	padded := make([]byte, len(data)+pad)
	copy(padded, data)
	for i := len(data); i < len(padded); i++ {
		padded[i] = byte(pad)
	}
	return padded
}
