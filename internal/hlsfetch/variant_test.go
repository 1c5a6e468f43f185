package hlsfetch

import (
	"testing"

	"github.com/grafov/m3u8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleMaster() *m3u8.MasterPlaylist {
	videoAlt := &m3u8.Alternative{Type: "AUDIO", GroupId: "aud", URI: "audio/en.m3u8", Language: "en", Channels: "6/JOC"}
	subAlt := &m3u8.Alternative{Type: "SUBTITLES", GroupId: "subs", URI: "subs/en.vtt.m3u8", Language: "en", Characteristics: "public.accessibility.describes-music-and-sound,SDH"}

	return &m3u8.MasterPlaylist{
		Variants: []*m3u8.Variant{
			{
				URI: "video/1080p.m3u8",
				VariantParams: m3u8.VariantParams{
					Bandwidth: 5000000, Codecs: "hvc1.2.4.L153.B0,mp4a.40.2",
					Resolution: "1920x1080", VideoRange: "PQ", Audio: "aud",
					Alternatives: []*m3u8.Alternative{videoAlt, subAlt},
				},
			},
		},
	}
}

func TestConvertVariants_TrackIDStable(t *testing.T) {
	master := sampleMaster()
	tracks1, err := ConvertVariants(master, "https://example.com/master.m3u8", "en", nil)
	require.NoError(t, err)
	tracks2, err := ConvertVariants(master, "https://example.com/master.m3u8", "en", nil)
	require.NoError(t, err)

	require.Len(t, tracks1, len(tracks2))
	for i := range tracks1 {
		assert.Equal(t, tracks1[i].Base().ID, tracks2[i].Base().ID, "track id must be stable across reconversion")
	}
}

func TestConvertVariants_DolbyVisionRange(t *testing.T) {
	master := sampleMaster()
	master.Variants[0].Codecs = "dvhe.05.01,mp4a.40.2"
	tracks, err := ConvertVariants(master, "https://example.com/master.m3u8", "en", nil)
	require.NoError(t, err)

	video := findVideo(t, tracks)
	assert.Equal(t, "DV", video.Range)
}

func TestConvertVariants_HDR10Range(t *testing.T) {
	master := sampleMaster()
	tracks, err := ConvertVariants(master, "https://example.com/master.m3u8", "en", nil)
	require.NoError(t, err)

	video := findVideo(t, tracks)
	assert.Equal(t, "HDR10", video.Range)
	assert.Equal(t, 1920, video.Width)
	assert.Equal(t, 1080, video.Height)
}

func TestConvertVariants_JOCChannels(t *testing.T) {
	master := sampleMaster()
	tracks, err := ConvertVariants(master, "https://example.com/master.m3u8", "en", nil)
	require.NoError(t, err)

	var audio *Audio
	for _, tr := range tracks {
		if a, ok := tr.(*Audio); ok && a.URL != "" && a.Language.String() != "und" {
			audio = a
		}
	}
	require.NotNil(t, audio)
	assert.Equal(t, "5.1", audio.Channels)
	assert.Equal(t, 6, audio.JOC)
}

func TestConvertVariants_SubtitleSDHDetection(t *testing.T) {
	master := sampleMaster()
	tracks, err := ConvertVariants(master, "https://example.com/master.m3u8", "en", nil)
	require.NoError(t, err)

	var sub *Subtitle
	for _, tr := range tracks {
		if s, ok := tr.(*Subtitle); ok {
			sub = s
		}
	}
	require.NotNil(t, sub)
	assert.True(t, sub.SDH)
}

func findVideo(t *testing.T, tracks []Track) *Video {
	t.Helper()
	for _, tr := range tracks {
		if v, ok := tr.(*Video); ok {
			return v
		}
	}
	t.Fatal("no video track found")
	return nil
}
