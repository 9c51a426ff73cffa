package repo

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"go.uber.org/multierr"
)

// FormatVersion is the only repositoryformatversion this package reads.
const FormatVersion = 0

// ErrUnsupportedFormat is returned by CheckFormat for any other version.
var ErrUnsupportedFormat = errors.New("unsupported repositoryformatversion")

// Config is the repository-local config file. Its [core] section is both
// valid TOML and a valid git config section.
type Config struct {
	Core CoreConfig `toml:"core"`
}

// CoreConfig mirrors the [core] keys written at init time.
type CoreConfig struct {
	RepositoryFormatVersion int  `toml:"repositoryformatversion"`
	FileMode                bool `toml:"filemode"`
	Bare                    bool `toml:"bare"`
}

// DefaultConfig returns the config written by Init.
func DefaultConfig() *Config {
	return &Config{Core: CoreConfig{RepositoryFormatVersion: FormatVersion}}
}

func (r *Repo) configPath() string {
	return filepath.Join(r.MetaDir, "config")
}

// ReadConfig reads .git/config. Missing config returns the default config.
func (r *Repo) ReadConfig() (*Config, error) {
	data, err := os.ReadFile(r.configPath())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return DefaultConfig(), nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg := DefaultConfig()
	if _, err := toml.Decode(string(data), cfg); err != nil {
		return nil, fmt.Errorf("read config: decode: %w", err)
	}
	return cfg, nil
}

// WriteConfig atomically writes .git/config. A failed write removes its temp
// file; errors from that cleanup are combined with the original error.
func (r *Repo) WriteConfig(cfg *Config) (err error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("write config: encode: %w", err)
	}

	tmp, err := os.CreateTemp(r.MetaDir, ".config-tmp-*")
	if err != nil {
		return fmt.Errorf("write config: tmpfile: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			err = multierr.Append(err, removeIfExists(tmpName))
		}
	}()

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("write config: write: %w", multierr.Append(err, tmp.Close()))
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write config: close: %w", err)
	}
	if err := os.Rename(tmpName, r.configPath()); err != nil {
		return fmt.Errorf("write config: rename: %w", err)
	}
	return nil
}

func removeIfExists(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// CheckFormat fails when the repository declares a format this package does
// not understand.
func (r *Repo) CheckFormat() error {
	cfg, err := r.ReadConfig()
	if err != nil {
		return err
	}
	if v := cfg.Core.RepositoryFormatVersion; v != FormatVersion {
		return fmt.Errorf("%w %d (want %d)", ErrUnsupportedFormat, v, FormatVersion)
	}
	return nil
}
