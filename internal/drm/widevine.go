package drm

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"os"

	"github.com/Eyevinn/mp4ff/mp4"
)

// widevineSystemID is the DRM system ID registered for Google Widevine,
// used both for ISO-23001-7 (CENC) synthesized PSSH boxes and for the
// explicit Widevine URN keyformat.
const widevineSystemID = "edef8ba979d64acea3c827dcd51d21ed"

// Widevine implements CENC decryption (AES-CTR over fMP4 senc/tenc boxes).
// A Widevine handler starts out without a content key; the pipeline must
// invoke the license callback (LicenseFunc) to populate one via
// SetContentKey before Decrypt is called.
type Widevine struct {
	pssh     *mp4.PsshBox
	keyID    []byte
	contentK []byte
}

// NewWidevineFromKID builds a Widevine handler with a synthesized PSSH box
// for the given key ID, used for EXT-X-KEY METHOD=ISO-23001-7.
func NewWidevineFromKID(kidHex string) (*Widevine, error) {
	kid, err := parseKID(kidHex)
	if err != nil {
		return nil, err
	}

	systemID, err := mp4.NewUUIDFromString(widevineSystemID)
	if err != nil {
		return nil, fmt.Errorf("invalid Widevine system ID: %w", err)
	}

	pssh := &mp4.PsshBox{
		Version:  1,
		Flags:    0,
		SystemID: systemID,
		KIDs:     []mp4.UUID{kid},
		Data:     nil,
	}

	return &Widevine{pssh: pssh, keyID: kid[:]}, nil
}

// NewWidevineFromPSSH builds a Widevine handler from a raw, already-encoded
// PSSH box (base64-decoded by the caller), used for EXT-X-KEY whose
// KEYFORMAT is the Widevine URN.
func NewWidevineFromPSSH(psshBytes []byte, extra map[string]string) (*Widevine, error) {
	box, err := mp4.DecodeBox(0, bytes.NewReader(psshBytes))
	if err != nil {
		return nil, fmt.Errorf("decoding PSSH box: %w", err)
	}
	pssh, ok := box.(*mp4.PsshBox)
	if !ok {
		return nil, fmt.Errorf("decoded box is not a pssh box")
	}

	var keyID []byte
	if len(pssh.KIDs) > 0 {
		keyID = pssh.KIDs[0][:]
	} else if kidHex, ok := extra["kid"]; ok {
		keyID, err = parseKID(kidHex)
		if err != nil {
			return nil, err
		}
	}

	return &Widevine{pssh: pssh, keyID: keyID}, nil
}

func parseKID(kidHex string) ([]byte, error) {
	kidHex = removeDashes(kidHex)
	kid, err := hex.DecodeString(kidHex)
	if err != nil {
		return nil, fmt.Errorf("parsing key ID %q: %w", kidHex, err)
	}
	if len(kid) != 16 {
		return nil, fmt.Errorf("key ID must decode to 16 bytes, got %d", len(kid))
	}
	return kid, nil
}

func removeDashes(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		if s[i] != '-' {
			out = append(out, s[i])
		}
	}
	return string(out)
}

func (w *Widevine) KeySystem() string {
	return "Widevine"
}

// PSSH returns the encoded PSSH box, used as init data in a license request.
func (w *Widevine) PSSH() []byte {
	buf := &bytes.Buffer{}
	if err := w.pssh.Encode(buf); err != nil {
		return nil
	}
	return buf.Bytes()
}

// SetContentKey installs the content key returned by a Widevine license
// response for the given key ID.
func (w *Widevine) SetContentKey(kid, key []byte) {
	w.keyID = kid
	w.contentK = key
}

// Decrypt decrypts an fMP4 file (init section bytes followed by one or more
// moof/mdat fragments) in place using CENC AES-CTR, per §6.C of
// SPEC_FULL.md.
func (w *Widevine) Decrypt(path string) error {
	if len(w.contentK) == 0 {
		return fmt.Errorf("widevine: no content key set, license acquisition must run first")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading segment run for decryption: %w", err)
	}

	decrypted, err := decryptCENC(data, w.contentK)
	if err != nil {
		return fmt.Errorf("cenc decrypt: %w", err)
	}

	return os.WriteFile(path, decrypted, 0o644)
}
