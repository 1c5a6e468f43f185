package hlsfetch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetSupportedKey_NonePresentWins(t *testing.T) {
	keys := []KeyDescriptor{
		{Method: "AES-128", URI: "https://example.com/key"},
		{Method: "NONE"},
	}
	key, err := GetSupportedKey(keys)
	require.NoError(t, err)
	assert.Nil(t, key)
}

func TestGetSupportedKey_FirstAcceptable(t *testing.T) {
	keys := []KeyDescriptor{
		{Method: "SAMPLE-AES", Keyformat: "com.microsoft.playready"},
		{Method: "AES-128", URI: "https://example.com/key"},
		{Method: "ISO-23001-7", URI: "data:,abcd"},
	}
	key, err := GetSupportedKey(keys)
	require.NoError(t, err)
	require.NotNil(t, key)
	assert.Equal(t, "AES-128", key.Method)
}

func TestGetSupportedKey_WidevineURNCaseInsensitive(t *testing.T) {
	keys := []KeyDescriptor{
		{Method: "SAMPLE-AES", Keyformat: "URN:UUID:EDEF8BA9-79D6-4ACE-A3C8-27DCD51D21ED", URI: "data:,abcd"},
	}
	key, err := GetSupportedKey(keys)
	require.NoError(t, err)
	require.NotNil(t, key)
	assert.Equal(t, "SAMPLE-AES", key.Method)
}

func TestGetSupportedKey_NoneSupported(t *testing.T) {
	keys := []KeyDescriptor{
		{Method: "SAMPLE-AES", Keyformat: "com.microsoft.playready"},
	}
	_, err := GetSupportedKey(keys)
	require.Error(t, err)
	var unsupported *UnsupportedKeySystemsError
	assert.ErrorAs(t, err, &unsupported)
}

func TestKeyDescriptorEqual(t *testing.T) {
	a := &KeyDescriptor{Method: "AES-128", URI: "u", Extra: map[string]string{"x": "1"}}
	b := &KeyDescriptor{Method: "AES-128", URI: "u", Extra: map[string]string{"x": "1"}}
	c := &KeyDescriptor{Method: "AES-128", URI: "u", Extra: map[string]string{"x": "2"}}

	assert.True(t, keyDescriptorEqual(a, b))
	assert.False(t, keyDescriptorEqual(a, c))
	assert.False(t, keyDescriptorEqual(a, nil))
}
