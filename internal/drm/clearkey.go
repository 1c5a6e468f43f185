package drm

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
)

// ClearKey implements the AES-128 (whole-segment CBC) key system named by
// EXT-X-KEY METHOD=AES-128. The key itself is fetched once, eagerly, from
// the key URI; the IV is either the explicit EXT-X-KEY IV attribute or, per
// the HLS default, the big-endian 16-byte encoding of the run's first
// segment sequence number.
type ClearKey struct {
	key []byte
	iv  []byte
}

// NewClearKeyFromURI fetches the 16-byte AES-128 key from keyURI using the
// given HTTP client (which should already carry the caller's proxy/cookie
// configuration), and builds a ClearKey handler. ivHex is the EXT-X-KEY IV
// attribute value (with or without a leading "0x"), or empty to fall back
// to sequenceNumber.
func NewClearKeyFromURI(client *http.Client, keyURI string, ivHex string, sequenceNumber int) (*ClearKey, error) {
	req, err := http.NewRequest(http.MethodGet, keyURI, nil)
	if err != nil {
		return nil, fmt.Errorf("building key request: %w", err)
	}

	res, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching AES-128 key: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return nil, fmt.Errorf("fetching AES-128 key: status %d", res.StatusCode)
	}

	key, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("reading AES-128 key: %w", err)
	}
	if len(key) != 16 {
		return nil, fmt.Errorf("AES-128 key must be 16 bytes, got %d", len(key))
	}

	iv, err := parseIV(ivHex, sequenceNumber)
	if err != nil {
		return nil, err
	}

	return &ClearKey{key: key, iv: iv}, nil
}

func parseIV(ivHex string, sequenceNumber int) ([]byte, error) {
	ivHex = strings.TrimPrefix(strings.TrimPrefix(ivHex, "0x"), "0X")
	if ivHex == "" {
		iv := make([]byte, 16)
		binary.BigEndian.PutUint64(iv[8:], uint64(sequenceNumber))
		return iv, nil
	}

	iv, err := hex.DecodeString(ivHex)
	if err != nil {
		return nil, fmt.Errorf("parsing EXT-X-KEY IV: %w", err)
	}
	if len(iv) != 16 {
		return nil, fmt.Errorf("EXT-X-KEY IV must decode to 16 bytes, got %d", len(iv))
	}
	return iv, nil
}

func (c *ClearKey) KeySystem() string {
	return "AES-128"
}

// Decrypt decrypts the file in place using AES-128-CBC. The file length
// must be a multiple of the AES block size; PKCS#7 padding, if present, is
// stripped after decryption.
func (c *ClearKey) Decrypt(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading segment run for decryption: %w", err)
	}
	if len(data)%aes.BlockSize != 0 {
		return fmt.Errorf("segment run length %d is not a multiple of the AES block size", len(data))
	}

	block, err := aes.NewCipher(c.key)
	if err != nil {
		return fmt.Errorf("constructing AES cipher: %w", err)
	}

	mode := cipher.NewCBCDecrypter(block, c.iv)
	plain := make([]byte, len(data))
	mode.CryptBlocks(plain, data)
	plain = stripPKCS7(plain)

	return os.WriteFile(path, plain, 0o644)
}

func stripPKCS7(data []byte) []byte {
	if len(data) == 0 {
		return data
	}
	pad := int(data[len(data)-1])
	if pad <= 0 || pad > aes.BlockSize || pad > len(data) {
		return data
	}
	if !bytes.Equal(data[len(data)-pad:], bytes.Repeat([]byte{byte(pad)}, pad)) {
		return data
	}
	return data[:len(data)-pad]
}
