package config

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/facebookincubator/go-belt/tool/logger"
	goyaml "github.com/go-yaml/yaml"
	"github.com/goccy/go-yaml"
	"github.com/xaionaro-go/coencoder/pkg/xpath"
	"github.com/xaionaro-go/datacounter"
)

var _ io.WriterTo = (*Config)(nil)
var _ yaml.BytesMarshaler = (*Config)(nil)

func (cfg Config) WriteTo(
	w io.Writer,
) (int64, error) {
	b, err := cfg.MarshalYAML()
	if err != nil {
		return 0, err
	}

	counter := datacounter.NewWriterCounter(w)
	_, err = io.Copy(counter, bytes.NewReader(b))
	return int64(counter.Count()), err
}

func (cfg Config) MarshalYAML() ([]byte, error) {
	b, err := yaml.Marshal((config)(cfg))
	if err != nil {
		return nil, fmt.Errorf("unable to serialize data %#+v: %w", cfg, err)
	}

	// re-encoding with the other encoder gives a stable indentation
	m := map[string]any{}
	err = goyaml.Unmarshal(b, &m)
	if err != nil {
		return nil, fmt.Errorf("unable to unserialize data %#+v: %w", cfg, err)
	}

	b, err = goyaml.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("unable to re-serialize data %#+v: %w", cfg, err)
	}

	return b, nil
}

func WriteToPath(
	ctx context.Context,
	cfgPath string,
	cfg Config,
) error {
	cfgPath, err := xpath.Expand(cfgPath)
	if err != nil {
		return err
	}
	b, err := cfg.MarshalYAML()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(cfgPath), 0750); err != nil {
		return fmt.Errorf("unable to create the directory for '%s': %w", cfgPath, err)
	}
	if err := os.WriteFile(cfgPath, b, 0640); err != nil {
		return fmt.Errorf("unable to write config to file '%s': %w", cfgPath, err)
	}
	logger.Infof(ctx, "wrote to '%s' config <%s>", cfgPath, b)
	return nil
}
