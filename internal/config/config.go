// Package config loads the cadugate YAML configuration file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"example.com/cadugate/internal/common"
	"example.com/cadugate/internal/dict"
	"example.com/cadugate/internal/mux"
)

type FrameConfig struct {
	Version            int    `yaml:"version"`
	Spacecraft         string `yaml:"spacecraft"`
	VirtualChannel     string `yaml:"virtualChannel"`
	FrameCounter       int    `yaml:"frameCounter"`
	Replay             bool   `yaml:"replay"`
	VCDUSpare          int    `yaml:"vcduSpare"`
	MPDUSpare          int    `yaml:"mpduSpare"`
	FirstHeaderPointer *int   `yaml:"firstHeaderPointer"`
}

type LogConfig struct {
	Directory  string `yaml:"directory"`
	MaxSizeMB  int    `yaml:"maxSizeMB"`
	MaxAgeDays int    `yaml:"maxAgeDays"`
	MaxBackups int    `yaml:"maxBackups"`
	Compress   bool   `yaml:"compress"`
}

type Config struct {
	Frame                 FrameConfig `yaml:"frame"`
	Randomised            bool        `yaml:"randomised"`
	Dictionary            string      `yaml:"dictionary"`
	SecondaryHeaderLength int         `yaml:"secondaryHeaderLength"`
	Logs                  LogConfig   `yaml:"logs"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	cfg := Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Logs.MaxSizeMB == 0 {
		c.Logs.MaxSizeMB = 50
	}
	if c.Logs.MaxAgeDays == 0 {
		c.Logs.MaxAgeDays = 14
	}
	if c.Logs.MaxBackups == 0 {
		c.Logs.MaxBackups = 5
	}
	if c.SecondaryHeaderLength == 0 {
		c.SecondaryHeaderLength = 8
	}
}

// Load decodes a YAML file and resolves relative paths against its directory.
// An empty path returns Default.
func Load(path string) (Config, error) {
	if strings.TrimSpace(path) == "" {
		return Default(), nil
	}
	var cfg Config
	f, err := os.Open(path)
	if err != nil {
		return cfg, err
	}
	defer f.Close()
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("decode %s: %w", path, err)
	}
	baseDir := filepath.Dir(path)
	resolvePath := func(p string) string {
		p = strings.TrimSpace(p)
		if p == "" {
			return ""
		}
		if filepath.IsAbs(p) {
			return filepath.Clean(p)
		}
		return filepath.Clean(filepath.Join(baseDir, p))
	}
	cfg.Dictionary = resolvePath(cfg.Dictionary)
	cfg.Logs.Directory = resolvePath(cfg.Logs.Directory)
	cfg.applyDefaults()
	if cfg.SecondaryHeaderLength < 0 {
		return cfg, fmt.Errorf("secondaryHeaderLength %d is negative", cfg.SecondaryHeaderLength)
	}
	return cfg, nil
}

// Header resolves the frame section into packer header values. Spacecraft
// and virtual channel accept dictionary names.
func (c Config) Header(store *dict.Store) (mux.HeaderConfig, error) {
	var hdr mux.HeaderConfig
	fr := c.Frame
	checks := []struct {
		name string
		v    int
		bits int
	}{
		{"frame.version", fr.Version, 2},
		{"frame.frameCounter", fr.FrameCounter, 24},
		{"frame.vcduSpare", fr.VCDUSpare, 7},
		{"frame.mpduSpare", fr.MPDUSpare, 5},
	}
	for _, chk := range checks {
		if chk.v < 0 || chk.v >= 1<<chk.bits {
			return hdr, fmt.Errorf("%s %d out of range 0-%d", chk.name, chk.v, 1<<chk.bits-1)
		}
	}
	hdr.Version = uint8(fr.Version)
	hdr.FrameCount = uint32(fr.FrameCounter)
	hdr.Replay = fr.Replay
	hdr.VCDUSpare = uint8(fr.VCDUSpare)
	hdr.MPDUSpare = uint8(fr.MPDUSpare)
	if fr.Spacecraft != "" {
		v, err := store.Resolve(dict.Spacecraft, fr.Spacecraft)
		if err != nil {
			return hdr, fmt.Errorf("frame.spacecraft: %w", err)
		}
		hdr.SpacecraftID = uint8(v)
	}
	if fr.VirtualChannel != "" {
		v, err := store.Resolve(dict.VirtualChannel, fr.VirtualChannel)
		if err != nil {
			return hdr, fmt.Errorf("frame.virtualChannel: %w", err)
		}
		hdr.VirtualChannelID = uint8(v)
	}
	if fr.FirstHeaderPointer != nil {
		p := *fr.FirstHeaderPointer
		if p < 0 || p >= 1<<11 {
			return hdr, fmt.Errorf("frame.firstHeaderPointer %d out of range 0-2047", p)
		}
		hdr.FirstHeaderPointer = uint16(p)
	}
	return hdr, nil
}

// LogOptions maps the logs section onto common.LogOptions.
func (c Config) LogOptions() common.LogOptions {
	return common.LogOptions{
		Directory:  c.Logs.Directory,
		FileName:   "cadugate.log",
		MaxSizeMB:  c.Logs.MaxSizeMB,
		MaxAgeDays: c.Logs.MaxAgeDays,
		MaxBackups: c.Logs.MaxBackups,
		Compress:   c.Logs.Compress,
	}
}
