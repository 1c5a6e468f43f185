package hlsfetch

import (
	"encoding/base64"
	"strings"

	"github.com/Koodeyo-Media/hls-downloader-go/internal/drm"
	"github.com/Koodeyo-Media/hls-downloader-go/internal/hlsnet"
)

// BuildDRM implements component C: given a non-nil selected key (as
// returned by GetSupportedKey), materialize the DRM handler for it. proxy
// is applied to the session used for the ClearKey fetch, localized the way
// hlsnet.Session.WithProxy localizes it (never mutating a shared session).
func BuildDRM(key KeyDescriptor, proxy string, sequenceNumber int) (drm.Handler, error) {
	switch {
	case strings.EqualFold(key.Method, "AES-128"):
		return buildClearKey(key, proxy, sequenceNumber)

	case strings.EqualFold(key.Method, "ISO-23001-7"):
		return buildWidevineFromISOKID(key)

	case strings.EqualFold(key.Keyformat, widevineURN):
		return buildWidevineFromURN(key)

	default:
		return nil, newUnsupportedKeySystem(key.Method, key.Keyformat)
	}
}

func buildClearKey(key KeyDescriptor, proxy string, sequenceNumber int) (drm.Handler, error) {
	session := hlsnet.NewSession()
	if proxy != "" {
		session = session.WithProxy(proxy)
	}

	client := session.Client()
	ck, err := drm.NewClearKeyFromURI(client, key.URI, key.IV, sequenceNumber)
	if err != nil {
		return nil, err
	}
	return ck, nil
}

// lastCommaToken extracts the KID/PSSH token after the last comma of a key
// URI, per component C's "extracted after the last comma of key.uri" rule
// (the same convention devine uses for its `data:` and bare-KID URIs).
func lastCommaToken(uri string) string {
	idx := strings.LastIndex(uri, ",")
	if idx < 0 {
		return uri
	}
	return uri[idx+1:]
}

func buildWidevineFromISOKID(key KeyDescriptor) (drm.Handler, error) {
	kidHex := lastCommaToken(key.URI)
	wv, err := drm.NewWidevineFromKID(kidHex)
	if err != nil {
		return nil, err
	}
	return wv, nil
}

func buildWidevineFromURN(key KeyDescriptor) (drm.Handler, error) {
	token := lastCommaToken(key.URI)
	token = strings.TrimPrefix(token, "base64,")

	raw, err := base64.StdEncoding.DecodeString(token)
	if err != nil {
		raw, err = base64.RawStdEncoding.DecodeString(token)
		if err != nil {
			return nil, newUnsupportedKeySystem(key.Method, key.Keyformat)
		}
	}

	wv, err := drm.NewWidevineFromPSSH(raw, key.Extra)
	if err != nil {
		return nil, err
	}
	return wv, nil
}
