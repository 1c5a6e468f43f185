// Package config loads the run configuration (master URL, languages, proxy,
// output directory, downloader, concurrency, license server) the way the
// teacher loads its own
// InputConfig/PipelineConfig: yaml.v3 for unmarshalling, creasty/defaults
// for field defaults, dealancer/validate.v2 for struct validation.
package config

import (
	"fmt"
	"net/url"
	"os"

	"github.com/creasty/defaults"
	"gopkg.in/dealancer/validate.v2"
	"gopkg.in/yaml.v3"
)

// Config is the run-level configuration for one download.
type Config struct {
	// MasterURL is the master playlist URL to download from.
	MasterURL string `yaml:"master_url" validate:"empty=false"`

	// Language is the preferred track language (BCP-47).
	Language string `yaml:"language" default:"en"`

	// FallbackLanguage is tried when a media entry's own language is
	// missing or "und".
	FallbackLanguage string `yaml:"fallback_language" default:"en"`

	// OutputDir is the directory the final output file is written to.
	OutputDir string `yaml:"output_dir" default:"."`

	// Proxy is an optional HTTP/SOCKS proxy URL applied to the session.
	Proxy string `yaml:"proxy"`

	// Downloader selects "http" (default) or "aria2c".
	Downloader string `yaml:"downloader" default:"http"`

	// MaxWorkers is read and defaulted here, but no downloader reads it:
	// Phase 1's parallel segment fetch is bounded by the hlsfetch.MaxWorkers
	// constant (16).
	MaxWorkers int `yaml:"max_workers" default:"16"`

	// LicenseServer is the Widevine license server URL, required only
	// when the selected track carries Widevine session DRM.
	LicenseServer string `yaml:"license_server"`
}

// Load reads, defaults, and validates a Config from a YAML file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	return parse(data)
}

func parse(data []byte) (*Config, error) {
	var raw map[string]interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, NewMalformedField(Config{}, "<document>", err.Error())
	}
	if err := checkRecognizedFields(raw); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, NewMalformedField(Config{}, "<document>", err.Error())
	}
	if err := defaults.Set(cfg); err != nil {
		return nil, fmt.Errorf("applying defaults: %w", err)
	}
	if err := validate.Validate(cfg); err != nil {
		return nil, NewMissingRequiredField(Config{}, "master_url")
	}
	if cfg.Proxy != "" {
		if _, err := url.Parse(cfg.Proxy); err != nil {
			return nil, NewMalformedField(Config{}, "Proxy", err.Error())
		}
	}

	return cfg, nil
}

var recognizedFields = map[string]bool{
	"master_url": true, "language": true, "fallback_language": true,
	"output_dir": true, "proxy": true, "downloader": true,
	"max_workers": true, "license_server": true,
}

func checkRecognizedFields(raw map[string]interface{}) error {
	for k := range raw {
		if !recognizedFields[k] {
			return NewUnrecognizedField(Config{}, k)
		}
	}
	return nil
}
