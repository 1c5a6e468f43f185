package hlsfetch

import (
	"regexp"
	"strings"
)

// attributePattern matches KEY=VALUE, pairs inside an #EXT-X tag's
// attribute list, adapted from the teacher's extractAttributes in
// streamer/m3u8_concater.go (same regex shape, generalized from
// master/media-playlist rewriting to EXT-X-KEY's vendor attributes, which
// grafov/m3u8's Key type does not itself expose).
var attributePattern = regexp.MustCompile(`([-A-Z0-9]+)=("[^"]*"|[^",]*),`)

// extractAttributes parses the attribute list of a single #EXT-X tag line
// into a map, keeping the Keyformat-adjacent vendor parameters (e.g.
// KEYID) that KeyDescriptor.Extra carries but grafov/m3u8.Key does not.
func extractAttributes(line string) map[string]string {
	attributes := make(map[string]string)

	parts := strings.SplitN(line, ":", 2)
	if len(parts) != 2 {
		return attributes
	}
	body := parts[1] + ","

	for _, match := range attributePattern.FindAllStringSubmatch(body, -1) {
		key := match[1]
		value := unquote(match[2])
		attributes[key] = value
	}

	return attributes
}

func quote(s string) string {
	return "\"" + s + "\""
}

func unquote(s string) string {
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return s[1 : len(s)-1]
	}
	return s
}
