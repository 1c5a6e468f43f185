package hlsfetch

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sort"

	"github.com/google/uuid"

	"github.com/Koodeyo-Media/hls-downloader-go/internal/hlsproc"
)

// findFFmpeg looks ffmpeg up on PATH only (there is no hermetic or bundled
// fallback), adapted from devine's utilities.get_binary_path and from the
// teacher's bundled-binary resolution in controller_node.go into the
// idiomatic exec.LookPath equivalent.
func findFFmpeg() (string, error) {
	if p, err := exec.LookPath("ffmpeg"); err == nil {
		return p, nil
	}
	return "", newMergeToolMissing("ffmpeg")
}

// AssembleOutput implements component F: video/audio discontinuity files
// go through an external ffmpeg concat demuxer; subtitle discontinuity
// files are plain binary-concatenated. disconFiles must already be in
// increasing discon_i order.
func AssembleOutput(ctx context.Context, trackType TrackType, disconFiles []string, savePath string) error {
	sorted := append([]string(nil), disconFiles...)
	sort.Strings(sorted)

	if trackType == TrackSubtitle {
		return concatFiles(savePath, nil, sorted)
	}

	ffmpeg, err := findFFmpeg()
	if err != nil {
		return err
	}

	listPath := filepath.Join(os.TempDir(), "hlsdl-concat-"+uuid.NewString()+".txt")
	if err := writeConcatListFile(listPath, sorted); err != nil {
		return err
	}
	defer os.Remove(listPath)

	args := []string{ffmpeg, "-f", "concat", "-safe", "0", "-i", listPath, "-c", "copy", "-map", "0", savePath}
	return hlsproc.Run(ctx, hlsproc.Params{Args: args, Stdout: io.Discard, Stderr: io.Discard})
}

func writeConcatListFile(path string, files []string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("writing concat list: %w", err)
	}
	defer f.Close()

	for _, file := range files {
		if _, err := fmt.Fprintf(f, "file '%s'\n", file); err != nil {
			return err
		}
	}
	return nil
}
