// Package hlslog wraps zerolog for the structured, one-line-per-transition
// logging the pipeline emits, grounded on ManuGH-xg2g's logging style
// rather than the teacher's bare fmt.Printf.
package hlslog

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

// Logger is the shared structured logger. New returns one writing
// human-readable console output to w (or stderr if w is nil).
func New(w io.Writer) zerolog.Logger {
	if w == nil {
		w = os.Stderr
	}
	console := zerolog.ConsoleWriter{Out: w, TimeFormat: "15:04:05"}
	return zerolog.New(console).With().Timestamp().Logger()
}

// Segment logs a per-segment state transition at debug level.
func Segment(log zerolog.Logger, index int, event string) {
	log.Debug().Int("segment", index).Str("event", event).Msg("segment")
}

// Discontinuity logs a discontinuity boundary crossing.
func Discontinuity(log zerolog.Logger, disconIndex, segmentIndex int) {
	log.Info().Int("discon_i", disconIndex).Int("segment", segmentIndex).Msg("discontinuity boundary")
}

// DRM logs a key-system selection or license acquisition event.
func DRM(log zerolog.Logger, keySystem, phase string) {
	log.Info().Str("drm", keySystem).Str("phase", phase).Msg("drm")
}
