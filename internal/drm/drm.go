// Package drm implements the DRM handlers consumed by the HLS segment
// pipeline: AES-128 ClearKey and CENC Widevine. The pipeline only ever
// calls Handler.Decrypt; Widevine's license acquisition is invoked through
// the pipeline's license callback, never directly by component C.
package drm

import "context"

// Handler is the shared capability every DRM system exposes to the core:
// decrypt a file in place.
type Handler interface {
	// Decrypt decrypts the file at path in place.
	Decrypt(path string) error

	// KeySystem names the DRM system for logging and progress messages.
	KeySystem() string
}

// Licensable is implemented by DRM handlers whose content keys must be
// obtained from a license server before Decrypt can succeed. Only Widevine
// implements this today.
type Licensable interface {
	Handler

	// SetContentKey installs the content key for the given key ID, as
	// obtained by a license callback.
	SetContentKey(kid, key []byte)

	// PSSH returns the init-data PSSH box bytes for a license request.
	PSSH() []byte
}

// LicenseFunc requests a content key for a Licensable handler. The hlsfetch
// pipeline passes nil for kid on every call; it does not extract a key ID
// from the track's init-section bytes.
type LicenseFunc func(ctx context.Context, h Licensable, kid []byte) error
