package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/kikiluvv/fiora/internal/media"
)

type contextKey string

const configKey contextKey = "config"

// Config holds all application configuration
type Config struct {
	// Core settings
	WorkDir string `yaml:"work_dir"`
	TempDir string `yaml:"temp_dir"`

	// FFmpeg settings
	FFmpeg FFmpegConfig `yaml:"ffmpeg"`

	// Export encoder settings
	Export ExportConfig `yaml:"export"`

	// Audio decoding and mixing
	Audio AudioConfig `yaml:"audio"`

	// Preview settings
	Preview PreviewConfig `yaml:"preview"`
}

type FFmpegConfig struct {
	BinaryPath string `yaml:"binary_path"`
	ProbePath  string `yaml:"probe_path"`
	Threads    int    `yaml:"threads"`
}

type ExportConfig struct {
	VideoCodec string `yaml:"video_codec"`
	AudioCodec string `yaml:"audio_codec"`
	Preset     string `yaml:"preset"`
	CRF        int    `yaml:"crf"`
	Threads    int    `yaml:"threads"`
}

type AudioConfig struct {
	SampleRate int  `yaml:"sample_rate"`
	Channels   int  `yaml:"channels"`
	Resample   bool `yaml:"resample"`
}

type PreviewConfig struct {
	ThumbnailWidth  uint `yaml:"thumbnail_width"`
	ThumbnailHeight uint `yaml:"thumbnail_height"`
}

// Load reads configuration from file or returns defaults
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	explicit := path != ""
	if !explicit {
		path = findConfigFile()
	}

	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && !explicit {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}

	return cfg, nil
}

// Save writes configuration to file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}

	return os.WriteFile(path, data, 0644)
}

// Validate rejects settings no component can run with.
func (c *Config) Validate() error {
	var errs []error
	if c.FFmpeg.Threads < 0 {
		errs = append(errs, fmt.Errorf("ffmpeg.threads must not be negative, got %d", c.FFmpeg.Threads))
	}
	if c.Export.CRF < 0 || c.Export.CRF > 51 {
		errs = append(errs, fmt.Errorf("export.crf must be between 0 and 51, got %d", c.Export.CRF))
	}
	if c.Export.Threads < 0 {
		errs = append(errs, fmt.Errorf("export.threads must not be negative, got %d", c.Export.Threads))
	}
	if c.Audio.SampleRate <= 0 {
		errs = append(errs, fmt.Errorf("audio.sample_rate must be positive, got %d", c.Audio.SampleRate))
	}
	if c.Audio.Channels <= 0 || c.Audio.Channels > 8 {
		errs = append(errs, fmt.Errorf("audio.channels must be between 1 and 8, got %d", c.Audio.Channels))
	}
	if c.Preview.ThumbnailWidth == 0 || c.Preview.ThumbnailHeight == 0 {
		errs = append(errs, errors.New("preview thumbnail size must be non-zero"))
	}
	return errors.Join(errs...)
}

// EncodeOptions returns the export settings in the form encoders take.
func (c *Config) EncodeOptions() media.EncodeOptions {
	return media.EncodeOptions{
		VideoCodec: c.Export.VideoCodec,
		AudioCodec: c.Export.AudioCodec,
		Preset:     c.Export.Preset,
		CRF:        c.Export.CRF,
		Threads:    c.Export.Threads,
	}
}

// Default returns the built-in configuration.
func Default() *Config {
	return defaultConfig()
}

func defaultConfig() *Config {
	return &Config{
		WorkDir: "./work",
		TempDir: "",
		FFmpeg: FFmpegConfig{
			BinaryPath: "",
			ProbePath:  "",
			Threads:    0,
		},
		Export: ExportConfig{
			VideoCodec: "libx264",
			AudioCodec: "aac",
			Preset:     "medium",
			CRF:        23,
			Threads:    4,
		},
		Audio: AudioConfig{
			SampleRate: 48000,
			Channels:   2,
			Resample:   true,
		},
		Preview: PreviewConfig{
			ThumbnailWidth:  640,
			ThumbnailHeight: 360,
		},
	}
}

func findConfigFile() string {
	candidates := []string{
		"./fiora.yaml",
		"./fiora.yml",
		filepath.Join(os.Getenv("HOME"), ".fiora", "config.yaml"),
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// WithConfig stores config in context
func WithConfig(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, configKey, cfg)
}

// FromContext retrieves config from context
func FromContext(ctx context.Context) *Config {
	if cfg, ok := ctx.Value(configKey).(*Config); ok {
		return cfg
	}
	return defaultConfig()
}
