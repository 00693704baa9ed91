package config

import (
	"fmt"
	"io"
	"os"

	"github.com/goccy/go-yaml"
	"github.com/xaionaro-go/coencoder/pkg/xpath"
)

var _ io.Reader = (*Config)(nil)
var _ io.ReaderFrom = (*Config)(nil)
var _ yaml.BytesUnmarshaler = (*Config)(nil)

func (cfg *Config) Read(
	b []byte,
) (int, error) {
	return len(b), cfg.UnmarshalYAML(b)
}

func (cfg *Config) UnmarshalYAML(b []byte) error {
	err := yaml.Unmarshal(b, (*config)(cfg))
	if err != nil {
		return fmt.Errorf("unable to unserialize data: %w", err)
	}
	return nil
}

func (cfg *Config) ReadFrom(
	r io.Reader,
) (int64, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return int64(len(b)), fmt.Errorf("unable to read: %w", err)
	}

	n, err := cfg.Read(b)
	return int64(n), err
}

// ReadFromPath overlays the file contents over cfg.
func ReadFromPath(
	cfgPath string,
	cfg *Config,
) error {
	cfgPath, err := xpath.Expand(cfgPath)
	if err != nil {
		return err
	}
	b, err := os.ReadFile(cfgPath)
	if err != nil {
		return fmt.Errorf("unable to read file '%s': %w", cfgPath, err)
	}
	if _, err := cfg.Read(b); err != nil {
		return fmt.Errorf("unable to parse '%s': %w: <%s>", cfgPath, err, b)
	}
	return nil
}
