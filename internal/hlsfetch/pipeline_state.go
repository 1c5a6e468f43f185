package hlsfetch

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/Koodeyo-Media/hls-downloader-go/internal/drm"
)

// encryptionContext is the private triple from spec.md §3: the lowest
// segment index belonging to the current decryption run, the key that run
// is under, and the DRM handler built for that key. A nil context means
// "no run open" (the plaintext state after a NONE key or before any key).
type encryptionContext struct {
	firstIndex int
	key        *KeyDescriptor
	handler    drm.Handler
}

// pipelineState is the explicit state object the Design Note in spec.md §9
// calls for in place of closures over loop variables. It owns every field
// mutated across the Phase 2 sequential walk.
type pipelineState struct {
	segmentsDir string
	saveDir     string

	digits int // zero-pad width, ceil(log10(N))

	disconIndex int
	rangeOffset int64
	initSection *InitSection
	encContext  *encryptionContext

	// ResetOffsetOnDiscontinuity parameterizes the redesign-flagged
	// behavior: whether range_offset resets to 0 at a discontinuity
	// boundary. Defaults true, matching spec.md's "currently yes".
	ResetOffsetOnDiscontinuity bool

	disconFiles []string // accumulated save_dir/<discon_i>.<ext> paths, in order
}

func newPipelineState(segmentsDir, saveDir string, segmentCount int, sessionDRM drm.Handler, sessionKey *KeyDescriptor) *pipelineState {
	digits := 1
	if segmentCount > 1 {
		digits = int(math.Ceil(math.Log10(float64(segmentCount))))
		if digits < 1 {
			digits = 1
		}
	}

	st := &pipelineState{
		segmentsDir:                segmentsDir,
		saveDir:                    saveDir,
		digits:                     digits,
		ResetOffsetOnDiscontinuity: true,
	}

	if sessionDRM != nil {
		st.encContext = &encryptionContext{firstIndex: 0, key: sessionKey, handler: sessionDRM}
	}

	return st
}

func (s *pipelineState) padName(n int, ext string) string {
	format := fmt.Sprintf("%%0%dd.%%s", s.digits)
	return fmt.Sprintf(format, n, ext)
}

func (s *pipelineState) padRangeName(a, b int, ext string) string {
	format := fmt.Sprintf("%%0%dd-%%0%dd.%%s", s.digits, s.digits)
	return fmt.Sprintf(format, a, b, ext)
}

// padDecryptedRangeName is padRangeName's counterpart for a flush-decrypt
// run's final path: same uniform digit width as the run file it replaces,
// so mergeDiscontinuity's lexicographic filename sort (below) still orders
// runs by segment index rather than by string length.
func (s *pipelineState) padDecryptedRangeName(a, b int, ext string) string {
	format := fmt.Sprintf("%%0%dd-%%0%dd_decrypted.%%s", s.digits, s.digits)
	return fmt.Sprintf(format, a, b, ext)
}

// flushDecrypt implements the Flush-Decrypt operation from spec.md §4.E:
// collect files [a,b], concatenate (prefixed by cached init bytes), run the
// handler's Decrypt in place, and return the decrypted path.
func (s *pipelineState) flushDecrypt(a, b int, handler drm.Handler) (string, error) {
	files, ext, err := s.collectSegmentFiles(a, b)
	if err != nil {
		return "", err
	}

	runPath := filepath.Join(s.segmentsDir, s.padRangeName(a, b, ext))
	if err := concatFiles(runPath, s.initBytes(), files); err != nil {
		return "", err
	}

	for _, f := range files {
		os.Remove(f)
	}

	if err := handler.Decrypt(runPath); err != nil {
		return "", err
	}

	decryptedPath := filepath.Join(s.segmentsDir, s.padDecryptedRangeName(a, b, ext))
	if err := os.Rename(runPath, decryptedPath); err != nil {
		return "", fmt.Errorf("renaming decrypted run: %w", err)
	}

	return decryptedPath, nil
}

// collectSegmentFiles gathers the on-disk files whose stem is a pure
// integer in [a,b], failing with MissingSegmentsError if any are absent.
func (s *pipelineState) collectSegmentFiles(a, b int) ([]string, string, error) {
	entries, err := os.ReadDir(s.segmentsDir)
	if err != nil {
		return nil, "", fmt.Errorf("reading segments dir: %w", err)
	}

	byIndex := map[int]string{}
	var ext string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		stem, suffix := splitExt(e.Name())
		idx, err := strconv.Atoi(stem)
		if err != nil {
			continue
		}
		if idx >= a && idx <= b {
			byIndex[idx] = filepath.Join(s.segmentsDir, e.Name())
			ext = suffix
		}
	}

	if len(byIndex) != b-a+1 {
		return nil, ext, newMissingSegments(a, b, len(byIndex))
	}

	files := make([]string, 0, len(byIndex))
	for i := a; i <= b; i++ {
		files = append(files, byIndex[i])
	}
	return files, ext, nil
}

// mergeDiscontinuity implements the Merge-Discontinuity operation: it
// concatenates, in lexicographic filename order, every remaining segments/
// file whose integer tail is ≤ b, prefixed by cached init bytes, into
// save_dir/<discon_i>.<ext>.
func (s *pipelineState) mergeDiscontinuity(b int) (string, error) {
	entries, err := os.ReadDir(s.segmentsDir)
	if err != nil {
		return "", fmt.Errorf("reading segments dir: %w", err)
	}

	type candidate struct {
		name string
		tail int
		ext  string
	}
	var candidates []candidate
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		stem, ext := splitExt(name)
		stem = strings.TrimSuffix(stem, "_decrypted")
		if idx := strings.LastIndex(stem, "-"); idx >= 0 {
			stem = stem[idx+1:]
		}
		tail, err := strconv.Atoi(stem)
		if err != nil {
			continue
		}
		if tail <= b {
			candidates = append(candidates, candidate{name: name, tail: tail, ext: ext})
		}
	}

	sort.Slice(candidates, func(i, j int) bool { return candidates[i].name < candidates[j].name })

	if len(candidates) == 0 {
		return "", nil
	}

	ext := candidates[len(candidates)-1].ext
	outPath := filepath.Join(s.saveDir, s.padName(s.disconIndex, ext))

	files := make([]string, 0, len(candidates))
	for _, c := range candidates {
		files = append(files, filepath.Join(s.segmentsDir, c.name))
	}

	if err := concatFiles(outPath, s.initBytes(), files); err != nil {
		return "", err
	}

	for _, f := range files {
		os.Remove(f)
	}

	s.disconFiles = append(s.disconFiles, outPath)
	return outPath, nil
}

func (s *pipelineState) initBytes() []byte {
	if s.initSection == nil {
		return nil
	}
	return s.initSection.Bytes
}

func concatFiles(outPath string, prefix []byte, files []string) error {
	out, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("creating %s: %w", outPath, err)
	}
	defer out.Close()

	if len(prefix) > 0 {
		if _, err := out.Write(prefix); err != nil {
			return fmt.Errorf("writing init prefix to %s: %w", outPath, err)
		}
	}

	for _, f := range files {
		data, err := os.ReadFile(f)
		if err != nil {
			return fmt.Errorf("reading %s: %w", f, err)
		}
		if _, err := out.Write(data); err != nil {
			return fmt.Errorf("writing %s into %s: %w", f, outPath, err)
		}
	}

	return nil
}

func splitExt(name string) (stem, ext string) {
	idx := strings.LastIndex(name, ".")
	if idx < 0 {
		return name, ""
	}
	return name[:idx], name[idx+1:]
}
