package hlsfetch

import (
	"html"
	"os"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// fragmentedSubtitleCodecs names the codecs that must NOT be run through
// NormalizeSubtitle: fragmented VTT/TTML segments are fMP4, not plain
// text, per spec.md §4.E step 1.
var fragmentedSubtitleCodecs = map[string]bool{
	"wvtt":  true,
	"stpp":  true,
	"fvtt":  true,
	"fttml": true,
}

// IsFragmentedSubtitleCodec reports whether codec names a fragmented
// subtitle format that must skip normalization.
func IsFragmentedSubtitleCodec(codec string) bool {
	return fragmentedSubtitleCodecs[strings.ToLower(codec)]
}

// NormalizeSubtitle implements component G: coerce a subtitle segment file
// to UTF-8 via a 3-step fallback chain (valid UTF-8 check, CP-1252 decode,
// best-effort lossy replacement — devine's try_ensure_utf8), then unescape
// &lrm;/&rlm; HTML entities to their RTL/LTR mark characters, writing the
// result back in place.
func NormalizeSubtitle(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	text := tryEnsureUTF8(data)
	text = unescapeDirectionMarks(text)

	return os.WriteFile(path, []byte(text), 0o644)
}

func tryEnsureUTF8(data []byte) string {
	if utf8.Valid(data) {
		return string(data)
	}

	if decoded, err := charmap.Windows1252.NewDecoder().String(string(data)); err == nil && utf8.ValidString(decoded) {
		return decoded
	}

	return strings.ToValidUTF8(string(data), "�")
}

func unescapeDirectionMarks(text string) string {
	text = strings.ReplaceAll(text, "&lrm;", html.UnescapeString("&lrm;"))
	text = strings.ReplaceAll(text, "&rlm;", html.UnescapeString("&rlm;"))
	return text
}
