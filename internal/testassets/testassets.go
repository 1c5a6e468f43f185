// Package testassets fetches a small public HLS test stream for opt-in
// integration tests, adapted from shaka-streamer-go's tests package
// (run_end_to_end_tests.go's cloud-asset fetcher), narrowed from its mp4
// corpus to a single public HLS master playlist.
package testassets

import (
	"io"
	"net/http"
	"os"
	"path/filepath"
)

const (
	// Dir is the directory integration test assets are cached under.
	Dir = "test_assets/"

	// PublicHLSMaster is the small public-domain HLS stream that
	// FetchMasterPlaylist downloads; no test in this repository calls it.
	PublicHLSMaster = "https://devstreaming-cdn.apple.com/videos/streaming/examples/img_bipbop_adv_example_ts/master.m3u8"
)

// FetchMasterPlaylist downloads PublicHLSMaster into Dir, skipping the
// request if it was already cached by a previous run.
func FetchMasterPlaylist() (string, error) {
	if err := os.MkdirAll(Dir, os.ModePerm); err != nil {
		return "", err
	}

	dest := filepath.Join(Dir, "master.m3u8")
	if _, err := os.Stat(dest); err == nil {
		return dest, nil
	}

	if err := downloadFile(PublicHLSMaster, dest); err != nil {
		return "", err
	}
	return dest, nil
}

func downloadFile(url, filePath string) error {
	resp, err := http.Get(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	out, err := os.Create(filePath)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, resp.Body)
	return err
}
