package hlsfetch

import (
	"golang.org/x/text/language"

	"github.com/Koodeyo-Media/hls-downloader-go/internal/drm"
)

// TrackType discriminates the three track kinds component D emits.
type TrackType int

const (
	TrackVideo TrackType = iota
	TrackAudio
	TrackSubtitle
)

func (t TrackType) String() string {
	switch t {
	case TrackVideo:
		return "Video"
	case TrackAudio:
		return "Audio"
	case TrackSubtitle:
		return "Subtitle"
	default:
		return "Unknown"
	}
}

// Hooks is the optional-function-per-hook record a caller may attach to a
// track before download, per the Design Note on dynamic callbacks.
type Hooks struct {
	OnSegmentFilter     func(seg *Segment) bool
	OnSegmentDownloaded func(path string)
	OnDecrypted         func(h drm.Handler, path string)
	OnDownloaded        func()
}

// BaseTrack carries the fields common to every track type.
type BaseTrack struct {
	ID       uint32
	URL      string
	Codec    string
	Language language.Tag

	IsOriginalLang bool

	DRM  []drm.Handler
	Path string

	Hooks Hooks
}

// Video is a video rendition track.
type Video struct {
	BaseTrack
	Width, Height int
	FPS           float64
	Range         string // SDR, HDR10 (VIDEO-RANGE=PQ), HLG, or DV (Dolby Vision)
	Bitrate       uint32
}

// Audio is an audio rendition track.
type Audio struct {
	BaseTrack
	Channels    string
	JOC         int
	Descriptive bool
	Bitrate     uint32
}

// Subtitle is a subtitle rendition track.
type Subtitle struct {
	BaseTrack
	Forced bool
	SDH    bool
}

// Track is implemented by *Video, *Audio, *Subtitle.
type Track interface {
	Base() *BaseTrack
	Type() TrackType
}

func (v *Video) Base() *BaseTrack    { return &v.BaseTrack }
func (v *Video) Type() TrackType     { return TrackVideo }
func (a *Audio) Base() *BaseTrack    { return &a.BaseTrack }
func (a *Audio) Type() TrackType     { return TrackAudio }
func (s *Subtitle) Base() *BaseTrack { return &s.BaseTrack }
func (s *Subtitle) Type() TrackType  { return TrackSubtitle }
