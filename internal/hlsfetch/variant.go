package hlsfetch

import (
	"hash/crc32"
	"net/url"
	"strconv"
	"strings"

	"github.com/grafov/m3u8"

	"github.com/Koodeyo-Media/hls-downloader-go/internal/drm"
)

// dolbyVisionCodecPrefixes names the codec-string tokens that mark a
// variant as carrying Dolby Vision, per component D step 1.
var dolbyVisionCodecPrefixes = []string{"dva1", "dvav", "dvhe", "dvh1"}

// videoCodecPrefixes names the codec tokens this implementation recognizes
// as a video codec for the primary-type heuristic in step 2 and for
// assigning a MEDIA entry's audio-group codec table in step 4.
var videoCodecPrefixes = []string{"avc1", "avc3", "hev1", "hvc1", "av01", "vp09", "dva1", "dvav", "dvhe", "dvh1"}

var videoRangeTable = map[string]string{
	"SDR": "SDR",
	"PQ":  "HDR10",
	"HLG": "HLG",
}

// ConvertVariants implements component D: it walks a master playlist's
// variants and alternative renditions and emits the track set. baseURL
// resolves relative playlist/segment URIs.
func ConvertVariants(master *m3u8.MasterPlaylist, baseURL string, fallbackLanguage string, sessionDRM []KeyDescriptor) ([]Track, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, newManifestInvalid("invalid base URL", err)
	}

	audioGroupCodecs := map[string]string{}
	var tracks []Track

	for _, variant := range master.Variants {
		codecs := variant.Codecs
		videoRange := classifyVideoRange(codecs, variant.VideoRange)
		isVideo := hasVideoCodec(codecs)

		resolved, err := base.Parse(variant.URI)
		if err != nil {
			return nil, newManifestInvalid("invalid variant URI", err)
		}

		id := crc32.ChecksumIEEE([]byte(canonicalVariantString(variant)))
		bitrate := variant.AverageBandwidth
		if bitrate == 0 {
			bitrate = variant.Bandwidth
		}

		if isVideo {
			width, height := parseResolution(variant.Resolution)
			tracks = append(tracks, &Video{
				BaseTrack: BaseTrack{ID: id, URL: resolved.String(), Codec: codecs},
				Width:     width,
				Height:    height,
				FPS:       variant.FrameRate,
				Range:     videoRange,
				Bitrate:   bitrate,
			})
		} else {
			tracks = append(tracks, &Audio{
				BaseTrack: BaseTrack{ID: id, URL: resolved.String(), Codec: codecs},
				Bitrate:   bitrate,
			})
		}

		if variant.Audio != "" {
			audioGroupCodecs[variant.Audio] = firstNonVideoCodec(codecs)
		}
	}

	for _, groups := range [][]*m3u8.Alternative{collectAlternatives(master)} {
		for _, alt := range groups {
			if alt.URI == "" {
				continue
			}

			resolved, err := base.Parse(alt.URI)
			if err != nil {
				return nil, newManifestInvalid("invalid alternative URI", err)
			}

			lang, err := ResolveLanguage(alt.Language, fallbackLanguage)
			if err != nil {
				return nil, err
			}
			fallbackTag, _ := ResolveLanguage(fallbackLanguage)
			isOriginal := IsOriginalLanguage(lang, fallbackTag)

			id := crc32.ChecksumIEEE([]byte(canonicalAlternativeString(alt)))

			switch strings.ToUpper(alt.Type) {
			case "AUDIO":
				codec := audioGroupCodecs[alt.GroupId]
				channels, joc := parseChannels(alt.Channels)
				tracks = append(tracks, &Audio{
					BaseTrack: BaseTrack{
						ID: id, URL: resolved.String(), Codec: codec,
						Language: lang, IsOriginalLang: isOriginal,
						DRM: buildSessionDRM(sessionDRM),
					},
					Channels:    channels,
					JOC:         joc,
					Descriptive: strings.Contains(strings.ToUpper(alt.Characteristics), "DESCRIBES-VIDEO"),
				})
			case "SUBTITLES":
				tracks = append(tracks, &Subtitle{
					BaseTrack: BaseTrack{
						ID: id, URL: resolved.String(), Codec: "vtt",
						Language: lang, IsOriginalLang: isOriginal,
					},
					Forced: alt.Forced,
					SDH:    strings.Contains(strings.ToUpper(alt.Characteristics), "CLOSED-CAPTIONS") || strings.Contains(strings.ToUpper(alt.Characteristics), "SDH"),
				})
			}
		}
	}

	return tracks, nil
}

func collectAlternatives(master *m3u8.MasterPlaylist) []*m3u8.Alternative {
	var out []*m3u8.Alternative
	for _, v := range master.Variants {
		out = append(out, v.Alternatives...)
	}
	return out
}

func classifyVideoRange(codecs, videoRange string) string {
	for _, token := range dolbyVisionCodecPrefixes {
		if strings.Contains(codecs, token) {
			return "DV"
		}
	}
	if mapped, ok := videoRangeTable[strings.ToUpper(videoRange)]; ok {
		return mapped
	}
	return "SDR"
}

func hasVideoCodec(codecs string) bool {
	for _, token := range strings.Split(codecs, ",") {
		token = strings.TrimSpace(token)
		for _, prefix := range videoCodecPrefixes {
			if strings.HasPrefix(token, prefix) {
				return true
			}
		}
	}
	return false
}

// firstNonVideoCodec returns the codec token list with any recognized
// video codec removed, used to derive an audio-group's codec entry from a
// variant's combined CODECS string.
func firstNonVideoCodec(codecs string) string {
	var kept []string
	for _, token := range strings.Split(codecs, ",") {
		trimmed := strings.TrimSpace(token)
		isVideo := false
		for _, prefix := range videoCodecPrefixes {
			if strings.HasPrefix(trimmed, prefix) {
				isVideo = true
				break
			}
		}
		if !isVideo && trimmed != "" {
			kept = append(kept, trimmed)
		}
	}
	return strings.Join(kept, ",")
}

func parseResolution(res string) (int, int) {
	w, h, ok := strings.Cut(res, "x")
	if !ok {
		return 0, 0
	}
	width, _ := strconv.Atoi(w)
	height, _ := strconv.Atoi(h)
	return width, height
}

// parseChannels implements component D step 1 of the MEDIA handling:
// a channel string ending "/JOC" becomes channels="5.1", joc=N where N is
// the numeric prefix.
func parseChannels(channels string) (string, int) {
	prefix, suffix, ok := strings.Cut(channels, "/")
	if ok && suffix == "JOC" {
		n, _ := strconv.Atoi(prefix)
		return "5.1", n
	}
	return channels, 0
}

func canonicalVariantString(v *m3u8.Variant) string {
	return strings.Join([]string{
		v.URI, v.Codecs, strconv.FormatUint(uint64(v.Bandwidth), 10),
		strconv.FormatUint(uint64(v.AverageBandwidth), 10), v.Resolution, v.VideoRange,
	}, "|")
}

func canonicalAlternativeString(a *m3u8.Alternative) string {
	return strings.Join([]string{a.Type, a.GroupId, a.URI, a.Language, a.Name, a.Characteristics}, "|")
}

// buildSessionDRM resolves component B/C for a track's EXT-X-SESSION-KEY
// list. Errors selecting or building the handler are swallowed here: the
// track is still emitted, with no session DRM, so Phase 1 has nothing to
// license for it.
func buildSessionDRM(sessionKeys []KeyDescriptor) []drm.Handler {
	if len(sessionKeys) == 0 {
		return nil
	}

	key, err := GetSupportedKey(sessionKeys)
	if err != nil || key == nil {
		return nil
	}

	handler, err := BuildDRM(*key, "", 0)
	if err != nil {
		return nil
	}
	return []drm.Handler{handler}
}
