package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

const (
	defaultEndpoint = "http://127.0.0.1:7080"
	defaultTimeout  = 15 * time.Second
	profileFileName = ".swapctl.toml"
)

// profile is the on-disk CLI configuration.
type profile struct {
	Endpoint string `toml:"endpoint"`
	Token    string `toml:"token"`
	Timeout  string `toml:"timeout"`
}

func defaultProfilePath() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return profileFileName
	}
	return filepath.Join(home, profileFileName)
}

// loadProfile reads path when it exists. A missing file yields an empty
// profile; environment variables fill anything left unset.
func loadProfile(path string) (profile, error) {
	var p profile
	if strings.TrimSpace(path) != "" {
		if _, err := toml.DecodeFile(path, &p); err != nil && !errors.Is(err, os.ErrNotExist) {
			return profile{}, fmt.Errorf("read profile %s: %w", path, err)
		}
	}
	if p.Endpoint == "" {
		p.Endpoint = os.Getenv("SWAPCTL_ENDPOINT")
	}
	if p.Token == "" {
		p.Token = os.Getenv("SWAPCTL_TOKEN")
	}
	return p, nil
}

func (p profile) timeout() (time.Duration, error) {
	if strings.TrimSpace(p.Timeout) == "" {
		return defaultTimeout, nil
	}
	d, err := time.ParseDuration(strings.TrimSpace(p.Timeout))
	if err != nil {
		return 0, fmt.Errorf("invalid timeout %q: %w", p.Timeout, err)
	}
	return d, nil
}

func (p profile) endpoint() string {
	if trimmed := strings.TrimRight(strings.TrimSpace(p.Endpoint), "/"); trimmed != "" {
		return trimmed
	}
	return defaultEndpoint
}
