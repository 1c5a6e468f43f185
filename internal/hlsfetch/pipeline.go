package hlsfetch

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	"github.com/grafov/m3u8"
	"github.com/rs/zerolog"

	"github.com/Koodeyo-Media/hls-downloader-go/internal/drm"
	"github.com/Koodeyo-Media/hls-downloader-go/internal/hlslog"
	"github.com/Koodeyo-Media/hls-downloader-go/internal/hlsnet"
)

// Pipeline drives one track's Phase 1/Phase 2 download, per component E.
type Pipeline struct {
	Track      Track
	SaveDir    string // per-track working directory; segments/ lives under it
	SavePath   string // final output file
	License    drm.LicenseFunc
	Downloader Downloader
	Session    hlsnet.Session
	Log        zerolog.Logger
}

// Run executes Phase 1 (plan & fetch) then Phase 2 (sequential walk),
// finishing with the Final Assembler unless mode is ModeLicenseOnly.
func (p *Pipeline) Run(ctx context.Context, mode Mode) error {
	base := p.Track.Base()
	segmentsDir := filepath.Join(p.SaveDir, "segments")
	if err := os.MkdirAll(segmentsDir, 0o755); err != nil {
		return fmt.Errorf("creating segments dir: %w", err)
	}

	segments, mediaPlaylistURL, err := p.fetchMediaPlaylist(ctx, base.URL)
	if err != nil {
		return err
	}
	if len(segments) == 0 {
		return newManifestInvalid("media playlist has no segments", nil)
	}

	sessionDRM, sessionKey := p.resolveSessionDRM(ctx)

	if len(base.DRM) > 0 {
		if err := p.ensureLicensed(ctx, base.DRM[0], nil); err != nil {
			return err
		}
	}

	downloader := p.Downloader
	jobs, err := p.planPhase1(segments, mediaPlaylistURL)
	if err != nil {
		return err
	}
	if !downloader.SupportsRange() && anyJobHasRange(jobs) {
		downloader = &HTTPDownloader{Session: p.Session}
	}

	if err := downloader.Download(ctx, jobs, nil); err != nil {
		return err
	}
	for _, j := range jobs {
		if base.Hooks.OnSegmentDownloaded != nil {
			base.Hooks.OnSegmentDownloaded(j.Dest)
		}
	}

	state := newPipelineState(segmentsDir, p.SaveDir, len(segments), sessionDRM, sessionKey)

	if err := p.walkPhase2(ctx, segments, state, mode); err != nil {
		return err
	}

	if mode == ModeLicenseOnly {
		return nil
	}

	if err := AssembleOutput(ctx, p.Track.Type(), state.disconFiles, p.SavePath); err != nil {
		return err
	}

	os.RemoveAll(p.SaveDir)
	base.Path = p.SavePath
	if base.Hooks.OnDownloaded != nil {
		base.Hooks.OnDownloaded()
	}
	return nil
}

func (p *Pipeline) fetchMediaPlaylist(ctx context.Context, trackURL string) ([]Segment, *url.URL, error) {
	req, err := p.Session.NewRequest("GET", trackURL)
	if err != nil {
		return nil, nil, newManifestInvalid("invalid media playlist URL", err)
	}
	req = req.WithContext(ctx)

	res, err := p.Session.Client().Do(req)
	if err != nil {
		return nil, nil, newManifestInvalid("fetching media playlist", err)
	}
	defer res.Body.Close()
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return nil, nil, newTransportError(trackURL, res.StatusCode)
	}

	playlist, listType, err := m3u8.DecodeFrom(res.Body, true)
	if err != nil || listType != m3u8.MEDIA {
		return nil, nil, newManifestInvalid("not a media playlist", err)
	}
	media := playlist.(*m3u8.MediaPlaylist)

	base, err := url.Parse(trackURL)
	if err != nil {
		return nil, nil, newManifestInvalid("invalid media playlist URL", err)
	}

	segments := make([]Segment, 0, len(media.Segments))
	for i, seg := range media.Segments {
		if seg == nil {
			continue
		}
		s := Segment{
			Index:         i,
			URI:           seg.URI,
			BaseURI:       base.String(),
			Discontinuity: seg.Discontinuity,
		}
		if seg.Limit > 0 {
			if seg.Offset > 0 {
				s.ByteRange = fmt.Sprintf("%d@%d", seg.Limit, seg.Offset)
			} else {
				s.ByteRange = fmt.Sprintf("%d", seg.Limit)
			}
		}
		if seg.Map != nil {
			s.InitSection = &InitSectionRef{URI: seg.Map.URI}
			if seg.Map.Limit > 0 {
				s.InitSection.ByteRange = fmt.Sprintf("%d@%d", seg.Map.Limit, seg.Map.Offset)
			}
		}
		if seg.Key != nil && seg.Key.Method != "" {
			s.Keys = []KeyDescriptor{keyDescriptorFromM3U8(seg.Key)}
		}
		segments = append(segments, s)
	}

	return segments, base, nil
}

func keyDescriptorFromM3U8(k *m3u8.Key) KeyDescriptor {
	return KeyDescriptor{
		Method:            k.Method,
		URI:               k.URI,
		IV:                k.IV,
		Keyformat:         k.Keyformat,
		KeyformatVersions: k.Keyformatversions,
	}
}

func (p *Pipeline) resolveSessionDRM(ctx context.Context) (drm.Handler, *KeyDescriptor) {
	base := p.Track.Base()
	if len(base.DRM) == 0 {
		return nil, nil
	}
	return base.DRM[0], nil
}

// ensureLicensed invokes the license callback for a Licensable handler,
// per Phase 1's "if Widevine, invoke the license callback" step.
func (p *Pipeline) ensureLicensed(ctx context.Context, h drm.Handler, kid []byte) error {
	licensable, ok := h.(drm.Licensable)
	if !ok {
		return nil
	}
	if p.License == nil {
		return nil
	}
	if err := p.License(ctx, licensable, kid); err != nil {
		return newLicenseFailed(err)
	}
	return nil
}

func (p *Pipeline) planPhase1(segments []Segment, base *url.URL) ([]DownloadJob, error) {
	trackBase := p.Track.Base()
	digits := zeroPadDigits(len(segments))

	var jobs []DownloadJob
	var runningOffset int64

	for i := range segments {
		seg := &segments[i]

		if trackBase.Hooks.OnSegmentFilter != nil && !trackBase.Hooks.OnSegmentFilter(seg) {
			continue
		}

		resolved, err := base.Parse(seg.URI)
		if err != nil {
			return nil, newManifestInvalid("invalid segment URI", err)
		}

		httpRange := ""
		if seg.ByteRange != "" {
			r, err := CalculateByteRange(seg.ByteRange, runningOffset)
			if err != nil {
				return nil, err
			}
			httpRange = r
			end, err := RangeEnd(r)
			if err != nil {
				return nil, err
			}
			runningOffset = end + 1
		}

		ext := filepath.Ext(seg.URI)
		name := fmt.Sprintf("%0*d%s", digits, seg.Index, ext)
		jobs = append(jobs, DownloadJob{
			URL:       resolved.String(),
			Dest:      filepath.Join(p.SaveDir, "segments", name),
			HTTPRange: httpRange,
		})
	}

	return jobs, nil
}

func zeroPadDigits(n int) int {
	digits := 1
	for p := 10; p < n; p *= 10 {
		digits++
	}
	return digits
}

func anyJobHasRange(jobs []DownloadJob) bool {
	for _, j := range jobs {
		if j.HTTPRange != "" {
			return true
		}
	}
	return false
}

// walkPhase2 implements the sequential per-segment walk of spec.md §4.E.
func (p *Pipeline) walkPhase2(ctx context.Context, segments []Segment, state *pipelineState, mode Mode) error {
	base := p.Track.Base()
	n := len(segments)

	for i := 0; i < n; i++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		seg := &segments[i]

		// Step 1: subtitle normalize.
		if p.Track.Type() == TrackSubtitle && !IsFragmentedSubtitleCodec(base.Codec) {
			if path, ok := p.findSegmentFile(state, i); ok {
				if err := NormalizeSubtitle(path); err != nil {
					return fmt.Errorf("normalizing subtitle segment %d: %w", i, err)
				}
			}
		}

		// Step 2: discontinuity boundary.
		if seg.Discontinuity && i > 0 {
			hlslog.Discontinuity(p.Log, state.disconIndex, i)
			if state.encContext != nil {
				decrypted, err := state.flushDecrypt(state.encContext.firstIndex, i-1, state.encContext.handler)
				if err != nil {
					return err
				}
				if base.Hooks.OnDecrypted != nil {
					base.Hooks.OnDecrypted(state.encContext.handler, decrypted)
				}
			}
			if _, err := state.mergeDiscontinuity(i - 1); err != nil {
				return err
			}
			state.disconIndex++
			if state.ResetOffsetOnDiscontinuity {
				state.rangeOffset = 0
			}
			state.initSection = nil
			if state.encContext != nil {
				state.encContext = &encryptionContext{firstIndex: i, key: state.encContext.key, handler: state.encContext.handler}
			}
		}

		// Step 3: init-section update.
		if seg.InitSection != nil && (state.initSection == nil || state.initSection.Identity != *seg.InitSection) {
			data, newOffset, err := p.fetchInitSection(ctx, seg, state.rangeOffset)
			if err != nil {
				return err
			}
			state.initSection = &InitSection{Identity: *seg.InitSection, Bytes: data}
			state.rangeOffset = newOffset
		}

		// Step 4: key update.
		if len(seg.Keys) > 0 {
			selected, err := GetSupportedKey(seg.Keys)
			if err != nil {
				return err
			}

			keyChanged := selected == nil && state.encContext != nil ||
				selected != nil && (state.encContext == nil || !keyDescriptorEqual(state.encContext.key, selected))

			if keyChanged && state.encContext != nil && i > 0 {
				decrypted, err := state.flushDecrypt(state.encContext.firstIndex, i-1, state.encContext.handler)
				if err != nil {
					return err
				}
				if base.Hooks.OnDecrypted != nil {
					base.Hooks.OnDecrypted(state.encContext.handler, decrypted)
				}
			}

			switch {
			case selected == nil:
				state.encContext = nil
			case keyChanged:
				proxy := ""
				if u := p.Session.ProxyURL(); u != nil {
					proxy = u.String()
				}
				handler, err := BuildDRM(*selected, proxy, i)
				if err != nil {
					return err
				}
				hlslog.DRM(p.Log, handler.KeySystem(), "selected")
				var kid []byte
				if err := p.ensureLicensed(ctx, handler, kid); err != nil {
					return err
				}
				state.encContext = &encryptionContext{firstIndex: i, key: selected, handler: handler}
			}
		}

		// Step 5: license-only short-circuit.
		if mode == ModeLicenseOnly {
			continue
		}

		// Step 6: last-segment flush.
		if i == n-1 {
			if state.encContext != nil {
				decrypted, err := state.flushDecrypt(state.encContext.firstIndex, i, state.encContext.handler)
				if err != nil {
					return err
				}
				if base.Hooks.OnDecrypted != nil {
					base.Hooks.OnDecrypted(state.encContext.handler, decrypted)
				}
			}
			if _, err := state.mergeDiscontinuity(i); err != nil {
				return err
			}
		}
	}

	return nil
}

func (p *Pipeline) findSegmentFile(state *pipelineState, index int) (string, bool) {
	digits := state.digits
	entries, err := os.ReadDir(state.segmentsDir)
	if err != nil {
		return "", false
	}
	prefix := fmt.Sprintf("%0*d", digits, index)
	for _, e := range entries {
		stem, _ := splitExt(e.Name())
		if stem == prefix {
			return filepath.Join(state.segmentsDir, e.Name()), true
		}
	}
	return "", false
}

// fetchInitSection fetches one EXT-X-MAP init section, honoring its
// byterange if given. fallbackOffset is the running offset carried from the
// previous byteranged fetch in this run (spec.md §3's "byte-range carry");
// it returns the offset the next carried fetch should fall back to,
// unchanged when this init section carries no byterange of its own.
func (p *Pipeline) fetchInitSection(ctx context.Context, seg *Segment, fallbackOffset int64) ([]byte, int64, error) {
	base, err := url.Parse(seg.BaseURI)
	if err != nil {
		return nil, fallbackOffset, newManifestInvalid("invalid base URI for init section", err)
	}
	resolved, err := base.Parse(seg.InitSection.URI)
	if err != nil {
		return nil, fallbackOffset, newManifestInvalid("invalid init section URI", err)
	}

	req, err := p.Session.NewRequest("GET", resolved.String())
	if err != nil {
		return nil, fallbackOffset, err
	}
	req = req.WithContext(ctx)

	newOffset := fallbackOffset
	if seg.InitSection.ByteRange != "" {
		httpRange, err := CalculateByteRange(seg.InitSection.ByteRange, fallbackOffset)
		if err != nil {
			return nil, fallbackOffset, err
		}
		req.Header.Set("Range", "bytes="+httpRange)

		end, err := RangeEnd(httpRange)
		if err != nil {
			return nil, fallbackOffset, err
		}
		newOffset = end + 1
	}

	res, err := p.Session.Client().Do(req)
	if err != nil {
		return nil, fallbackOffset, fmt.Errorf("fetching init section: %w", err)
	}
	defer res.Body.Close()
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return nil, fallbackOffset, newTransportError(resolved.String(), res.StatusCode)
	}

	buf := make([]byte, 0, 4096)
	tmp := make([]byte, 4096)
	for {
		n, err := res.Body.Read(tmp)
		if n > 0 {
			buf = append(buf, tmp[:n]...)
		}
		if err != nil {
			break
		}
	}
	return buf, newOffset, nil
}
