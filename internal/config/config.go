package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config describes a frame sequence and how it is played back.
type Config struct {
	Frames   FramesConfig   `yaml:"frames"`
	Loader   LoaderConfig   `yaml:"loader"`
	Render   RenderConfig   `yaml:"render"`
	Viewport ViewportConfig `yaml:"viewport"`
}

// FramesConfig holds the asset naming convention: Prefix + zero padded index + Ext.
type FramesConfig struct {
	Count  int    `yaml:"count"`
	Base   string `yaml:"base"` // URL or directory the frames live under
	Prefix string `yaml:"prefix"`
	Ext    string `yaml:"ext"`
	Digits int    `yaml:"digits"`
}

type LoaderConfig struct {
	Concurrency int           `yaml:"concurrency"` // 0 - unbounded
	Timeout     time.Duration `yaml:"timeout"`
}

type RenderConfig struct {
	RefreshHz int    `yaml:"refresh_hz"`
	Quality   string `yaml:"quality"` // nearest, approxbilinear, bilinear, catmullrom
}

type ViewportConfig struct {
	Width   int     `yaml:"width"`
	Height  int     `yaml:"height"`
	Density float64 `yaml:"density"`
}

// Default matches the sequence shipped with the site: 125 webp frames under /media.
func Default() Config {
	return Config{
		Frames: FramesConfig{
			Count:  125,
			Base:   "/media",
			Prefix: "ezgif-frame-",
			Ext:    ".webp",
			Digits: 3,
		},
		Loader: LoaderConfig{
			Concurrency: 16,
			Timeout:     30 * time.Second,
		},
		Render: RenderConfig{
			RefreshHz: 60,
			Quality:   "catmullrom",
		},
		Viewport: ViewportConfig{
			Width:   1280,
			Height:  720,
			Density: 1,
		},
	}
}

// Load reads a YAML config on top of Default. Missing keys keep their defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

// Write stores the config as YAML.
func Write(cfg Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

var ErrInvalid = errors.New("invalid config")

func (c Config) Validate() error {
	switch {
	case c.Frames.Count < 1:
		return fmt.Errorf("%w: frames.count must be positive, got %d", ErrInvalid, c.Frames.Count)
	case c.Frames.Digits < 1:
		return fmt.Errorf("%w: frames.digits must be positive, got %d", ErrInvalid, c.Frames.Digits)
	case c.Loader.Concurrency < 0:
		return fmt.Errorf("%w: loader.concurrency must not be negative", ErrInvalid)
	case c.Render.RefreshHz < 0:
		return fmt.Errorf("%w: render.refresh_hz must not be negative", ErrInvalid)
	case c.Viewport.Width < 0 || c.Viewport.Height < 0:
		return fmt.Errorf("%w: viewport %dx%d", ErrInvalid, c.Viewport.Width, c.Viewport.Height)
	}
	return nil
}
