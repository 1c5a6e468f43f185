package hlsfetch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/Koodeyo-Media/hls-downloader-go/internal/hlsproc"
)

// Aria2cDownloader drives the aria2c binary as a batch input-file download,
// adapted from the teacher's NodeBase subprocess pattern. aria2c's -x/-s
// per-URI flags don't compose with arbitrary byte ranges the way this
// pipeline needs, so SupportsRange reports false and Phase 1 downgrades the
// whole track to HTTPDownloader whenever any job carries a Range.
type Aria2cDownloader struct {
	Binary string // defaults to "aria2c" via PATH lookup
}

func (d *Aria2cDownloader) SupportsRange() bool { return false }

func (d *Aria2cDownloader) binary() string {
	if d.Binary != "" {
		return d.Binary
	}
	return "aria2c"
}

func (d *Aria2cDownloader) Download(ctx context.Context, jobs []DownloadJob, onProgress func(Progress)) error {
	if len(jobs) == 0 {
		return nil
	}

	listFile := filepath.Join(os.TempDir(), "hlsdl-aria2c-"+uuid.NewString()+".txt")
	if err := writeAria2cInputFile(listFile, jobs); err != nil {
		return err
	}
	defer os.Remove(listFile)

	args := []string{d.binary(), "-i", listFile, "-j", fmt.Sprintf("%d", MaxWorkers), "--allow-overwrite=true"}
	if err := hlsproc.Run(ctx, hlsproc.Params{Args: args}); err != nil {
		return err
	}

	if onProgress != nil {
		onProgress(Progress{Total: len(jobs), Completed: len(jobs), Advance: len(jobs)})
	}
	return nil
}

// writeAria2cInputFile writes aria2c's "-i" input-list format: a URL line
// followed by indented "  dir=<directory>" and "  out=<file name>"
// directive lines.
func writeAria2cInputFile(path string, jobs []DownloadJob) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("writing aria2c input file: %w", err)
	}
	defer f.Close()

	for _, job := range jobs {
		dir, name := filepath.Split(job.Dest)
		if _, err := fmt.Fprintf(f, "%s\n  dir=%s\n  out=%s\n", job.URL, dir, name); err != nil {
			return err
		}
	}
	return nil
}
