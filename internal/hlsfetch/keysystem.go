package hlsfetch

import "strings"

// KeyDescriptor is one EXT-X-KEY or EXT-X-SESSION-KEY tag's parsed
// attributes, carried on a Segment/Variant until a DRM handler is built
// from it.
type KeyDescriptor struct {
	Method            string
	URI               string
	IV                string
	Keyformat         string
	KeyformatVersions string
	Extra             map[string]string
}

// widevineURN is the keyformat naming the Widevine system directly, as
// opposed to the generic ISO-23001-7 (CENC) keyformat that also resolves
// to a Widevine PSSH.
const widevineURN = "urn:uuid:edef8ba9-79d6-4ace-a3c8-27dcd51d21ed"

// GetSupportedKey implements the selector policy from component B: a
// METHOD=NONE descriptor anywhere in the block means "plaintext sentinel"
// and wins immediately (nil key, nil error); otherwise the first descriptor
// whose method is AES-128/ISO-23001-7, or whose lowercased keyformat is the
// Widevine URN, is returned. UnsupportedKeySystemsError is returned when
// nothing matched, which includes an empty block.
func GetSupportedKey(keys []KeyDescriptor) (*KeyDescriptor, error) {
	for i := range keys {
		if strings.EqualFold(keys[i].Method, "NONE") {
			return nil, nil
		}
	}

	for i := range keys {
		k := keys[i]
		if strings.EqualFold(k.Method, "AES-128") || strings.EqualFold(k.Method, "ISO-23001-7") {
			return &k, nil
		}
		if strings.EqualFold(k.Keyformat, widevineURN) {
			return &k, nil
		}
	}

	return nil, newUnsupportedKeySystemsFrom(keys)
}

// keyDescriptorEqual compares two descriptors by the identity spec.md §3
// defines for a Key Descriptor: (method, keyformat, uri, extra). Extra is a
// map, so KeyDescriptor is not comparable with ==.
func keyDescriptorEqual(a, b *KeyDescriptor) bool {
	if a == b {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	if a.Method != b.Method || a.Keyformat != b.Keyformat || a.URI != b.URI {
		return false
	}
	if len(a.Extra) != len(b.Extra) {
		return false
	}
	for k, v := range a.Extra {
		if b.Extra[k] != v {
			return false
		}
	}
	return true
}

func newUnsupportedKeySystemsFrom(keys []KeyDescriptor) error {
	systems := make([]string, 0, len(keys))
	for _, k := range keys {
		if k.Keyformat == "" {
			systems = append(systems, k.Method)
		} else {
			systems = append(systems, k.Method+"/"+k.Keyformat)
		}
	}
	return newUnsupportedKeySystems(systems)
}
