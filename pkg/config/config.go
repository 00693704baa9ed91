package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/xaionaro-go/coencoder/pkg/coprocess"
	"github.com/xaionaro-go/coencoder/pkg/safeencoder"
	"github.com/xaionaro-go/coencoder/pkg/xpath"
)

type config Config

type Config struct {
	Process ProcessConfig `yaml:"process"`
	Encoder EncoderConfig `yaml:"encoder"`
}

type ProcessConfig struct {
	ExecutablePath string            `yaml:"executable_path"`
	Runtime        string            `yaml:"runtime,omitempty"`
	WinePath       string            `yaml:"wine_path,omitempty"`
	Env            map[string]string `yaml:"env,omitempty"`
}

type EncoderConfig struct {
	Name string `yaml:"name,omitempty"`

	// BitrateKbps zero means the default computed from the capabilities.
	BitrateKbps   uint32 `yaml:"bitrate_kbps,omitempty"`
	Channels      uint32 `yaml:"channels"`
	SampleRate    uint32 `yaml:"sample_rate"`
	SampleRateOut uint32 `yaml:"sample_rate_out,omitempty"`

	// AllowHEAAC nil means the default.
	AllowHEAAC *bool `yaml:"allow_he_aac,omitempty"`

	ExchangeTimeout Duration `yaml:"exchange_timeout,omitempty"`
}

func Default() Config {
	return Config{
		Process: ProcessConfig{
			ExecutablePath: "~/.local/share/coencoder/encoder-proc.exe",
			Runtime:        "wine",
		},
		Encoder: EncoderConfig{
			Name:       "aac",
			Channels:   2,
			SampleRate: 48000,
		},
	}
}

// Coprocess converts the config into the supervisor's one, expanding the
// paths.
func (cfg ProcessConfig) Coprocess() (coprocess.Config, error) {
	execPath, err := xpath.Expand(cfg.ExecutablePath)
	if err != nil {
		return coprocess.Config{}, fmt.Errorf("unable to expand '%s': %w", cfg.ExecutablePath, err)
	}

	env := make(map[string]string, len(cfg.Env)+1)
	for k, v := range cfg.Env {
		env[k] = v
	}
	if cfg.WinePath != "" {
		winePath, err := xpath.Expand(cfg.WinePath)
		if err != nil {
			return coprocess.Config{}, fmt.Errorf("unable to expand '%s': %w", cfg.WinePath, err)
		}
		env[coprocess.EnvWinePath] = winePath
	}

	return coprocess.Config{
		ExecutablePath: execPath,
		Runtime:        cfg.Runtime,
		Env:            env,
	}, nil
}

// Session builds the session config; the unset values are taken from
// defaults.
func (cfg Config) Session(defaults safeencoder.Defaults) (safeencoder.Config, error) {
	processCfg, err := cfg.Process.Coprocess()
	if err != nil {
		return safeencoder.Config{}, err
	}

	bitrateKbps := cfg.Encoder.BitrateKbps
	if bitrateKbps == 0 {
		bitrateKbps = defaults.BitrateKbps
	}
	sampleRateOut := cfg.Encoder.SampleRateOut
	if sampleRateOut == 0 {
		sampleRateOut = defaults.SampleRate
	}
	allowHEAAC := defaults.AllowHEAAC
	if cfg.Encoder.AllowHEAAC != nil {
		allowHEAAC = *cfg.Encoder.AllowHEAAC
	}

	return safeencoder.Config{
		Name:            cfg.Encoder.Name,
		Process:         processCfg,
		Bitrate:         bitrateKbps * 1000,
		Channels:        cfg.Encoder.Channels,
		SampleRate:      cfg.Encoder.SampleRate,
		SampleRateOut:   sampleRateOut,
		AllowHEAAC:      allowHEAAC,
		ExchangeTimeout: time.Duration(cfg.Encoder.ExchangeTimeout),
	}, nil
}

// Duration is a time.Duration represented in YAML as "1m30s".
type Duration time.Duration

func (d Duration) MarshalYAML() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

func (d *Duration) UnmarshalYAML(b []byte) error {
	s := strings.Trim(string(b), " \"'\n")
	if s == "" {
		*d = 0
		return nil
	}
	r, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("unable to parse duration '%s': %w", s, err)
	}
	*d = Duration(r)
	return nil
}
