package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config represents the optional rat configuration file.
type Config struct {
	Defaults DefaultsConfig `toml:"defaults"`
}

// DefaultsConfig holds persistent flag defaults. A nil field leaves the
// built-in default in place; explicit command-line flags always win.
type DefaultsConfig struct {
	DirPolicy  *string `toml:"dir_policy"`
	Bulk       *bool   `toml:"bulk"`
	BufferSize *string `toml:"buffer_size"`
	BWLimit    *string `toml:"bwlimit"`
	Stats      *bool   `toml:"stats"`
}

// Path returns the resolved path to the config file.
func Path() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, "rat", "config.toml")
}

// Load reads the config file from the XDG path. Returns a zero Config
// (no error) if the file does not exist. Config is always optional.
func Load() (Config, error) {
	path := Path()
	if path == "" {
		return Config{}, nil
	}
	return LoadFile(path)
}

// LoadFile reads and validates a config file at an explicit path.
func LoadFile(path string) (Config, error) {
	var cfg Config
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Config{}, nil
		}
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return Config{}, fmt.Errorf("config %s: unknown key %q", path, undecoded[0].String())
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the values that have a restricted form.
func (c Config) Validate() error {
	d := c.Defaults
	if d.DirPolicy != nil {
		switch *d.DirPolicy {
		case "error", "skip":
		default:
			return fmt.Errorf("dir_policy: %q is not one of error, skip", *d.DirPolicy)
		}
	}
	if d.BufferSize != nil {
		n, err := ParseSize(*d.BufferSize)
		if err != nil {
			return fmt.Errorf("buffer_size: %w", err)
		}
		if n <= 0 {
			return fmt.Errorf("buffer_size: must be positive")
		}
	}
	if d.BWLimit != nil {
		if _, err := ParseSize(*d.BWLimit); err != nil {
			return fmt.Errorf("bwlimit: %w", err)
		}
	}
	return nil
}
