// config.go loads the optional TOML configuration file.

package main

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

type config struct {
	// Buffers caps the per-eye frame buffer pool.
	Buffers int `toml:"buffers"`

	// VideoCodec names the video encoder, e.g. "libx264" or "libx265".
	// Empty means the built-in default.
	VideoCodec string `toml:"vcodec"`
}

func loadConfig(path string) (*config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("unable to read the config file '%s': %w", path, err)
	}
	cfg := &config{}
	if err := toml.Unmarshal(b, cfg); err != nil {
		return nil, fmt.Errorf("unable to parse the config file '%s': %w", path, err)
	}
	return cfg, nil
}
