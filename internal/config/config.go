// Package config provides configuration management for cortexblob
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/normanking/cortexblob/internal/emotion"
)

const envPrefix = "CORTEXBLOB"

// Config holds all application configuration
type Config struct {
	Engine   EngineConfig   `mapstructure:"engine"`
	Geometry GeometryConfig `mapstructure:"geometry"`
	Presets  PresetsConfig  `mapstructure:"presets"`
	Server   ServerConfig   `mapstructure:"server"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// EngineConfig configures the frame loop and transitions
type EngineConfig struct {
	TransitionDuration time.Duration `mapstructure:"transition_duration"`
	FPS                int           `mapstructure:"fps"`
	Easing             string        `mapstructure:"easing"`
	ColorSpace         string        `mapstructure:"color_space"` // linear, rgb, lab, luv, hcl
	NoiseSeed          int64         `mapstructure:"noise_seed"`
	Workers            int           `mapstructure:"workers"` // 0 = GOMAXPROCS
	NeutralPreset      string        `mapstructure:"neutral_preset"`
	QueueSize          int           `mapstructure:"queue_size"`
}

// GeometryConfig configures the two base samplings
type GeometryConfig struct {
	Radius         float64 `mapstructure:"radius"`
	WidthSegments  int     `mapstructure:"width_segments"`
	HeightSegments int     `mapstructure:"height_segments"`
	CloudPoints    int     `mapstructure:"cloud_points"`
	CloudSeed      int64   `mapstructure:"cloud_seed"`
}

// PresetsConfig configures preset and routing data
type PresetsConfig struct {
	File    string `mapstructure:"file"`    // empty = built-in table, not persisted
	Watch   bool   `mapstructure:"watch"`   // reload File when it changes on disk
	Persist bool   `mapstructure:"persist"` // write changes back to File
	Routes  string `mapstructure:"routes"`  // empty = built-in routing table
}

// ServerConfig configures the HTTP/WebSocket API
type ServerConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Addr         string        `mapstructure:"addr"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	FrameStride  int           `mapstructure:"frame_stride"` // push every Nth frame to websocket clients
}

// LoggingConfig configures the logger
type LoggingConfig struct {
	Dir        string `mapstructure:"dir"`
	Level      string `mapstructure:"level"`
	Console    bool   `mapstructure:"console"`
	MaxHistory int    `mapstructure:"max_history"`
}

// DefaultConfig returns sensible default configuration
func DefaultConfig() *Config {
	dir, _ := GetConfigDir()
	return &Config{
		Engine: EngineConfig{
			TransitionDuration: emotion.DefaultTransitionDuration,
			FPS:                60,
			Easing:             string(emotion.DefaultEasing),
			ColorSpace:         string(emotion.BlendLinearRGB),
			NoiseSeed:          0,
			Workers:            0,
			NeutralPreset:      "Neutrality",
			QueueSize:          256,
		},
		Geometry: GeometryConfig{
			Radius:         1,
			WidthSegments:  64,
			HeightSegments: 64,
			CloudPoints:    50000,
			CloudSeed:      1,
		},
		Presets: PresetsConfig{
			File:    filepath.Join(dir, "emotions_dataset.json"),
			Watch:   true,
			Persist: true,
		},
		Server: ServerConfig{
			Enabled:      true,
			Addr:         "127.0.0.1:3000",
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			FrameStride:  6,
		},
		Logging: LoggingConfig{
			Dir:        filepath.Join(dir, "logs"),
			Level:      "info",
			Console:    true,
			MaxHistory: 1000,
		},
	}
}

// Settings flattens cfg into dotted viper keys
func Settings(cfg *Config) map[string]any {
	return map[string]any{
		"engine.transition_duration": cfg.Engine.TransitionDuration.String(),
		"engine.fps":                 cfg.Engine.FPS,
		"engine.easing":              cfg.Engine.Easing,
		"engine.color_space":         cfg.Engine.ColorSpace,
		"engine.noise_seed":          cfg.Engine.NoiseSeed,
		"engine.workers":             cfg.Engine.Workers,
		"engine.neutral_preset":      cfg.Engine.NeutralPreset,
		"engine.queue_size":          cfg.Engine.QueueSize,

		"geometry.radius":          cfg.Geometry.Radius,
		"geometry.width_segments":  cfg.Geometry.WidthSegments,
		"geometry.height_segments": cfg.Geometry.HeightSegments,
		"geometry.cloud_points":    cfg.Geometry.CloudPoints,
		"geometry.cloud_seed":      cfg.Geometry.CloudSeed,

		"presets.file":    cfg.Presets.File,
		"presets.watch":   cfg.Presets.Watch,
		"presets.persist": cfg.Presets.Persist,
		"presets.routes":  cfg.Presets.Routes,

		"server.enabled":       cfg.Server.Enabled,
		"server.addr":          cfg.Server.Addr,
		"server.read_timeout":  cfg.Server.ReadTimeout.String(),
		"server.write_timeout": cfg.Server.WriteTimeout.String(),
		"server.frame_stride":  cfg.Server.FrameStride,

		"logging.dir":         cfg.Logging.Dir,
		"logging.level":       cfg.Logging.Level,
		"logging.console":     cfg.Logging.Console,
		"logging.max_history": cfg.Logging.MaxHistory,
	}
}

func newViper() *viper.Viper {
	v := viper.New()
	for key, val := range Settings(DefaultConfig()) {
		v.SetDefault(key, val)
	}

	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads configuration from path, or from config.yaml in the config
// directory or the working directory when path is empty. A missing file in
// the search locations is not an error. Environment variables such as
// CORTEXBLOB_ENGINE_FPS override both.
func Load(path string) (*Config, error) {
	v := newViper()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		if dir, err := GetConfigDir(); err == nil {
			v.AddConfigPath(dir)
		}
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the configuration to path as YAML
func Save(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	v := viper.New()
	for key, val := range Settings(cfg) {
		v.Set(key, val)
	}
	return v.WriteConfigAs(path)
}

// Validate rejects settings the engine cannot run with
func (c *Config) Validate() error {
	var errs []error

	if c.Engine.TransitionDuration <= 0 {
		errs = append(errs, fmt.Errorf("engine.transition_duration: %w", emotion.ErrInvalidDuration))
	}
	if c.Engine.FPS <= 0 {
		errs = append(errs, fmt.Errorf("engine.fps must be positive, got %d", c.Engine.FPS))
	}
	if _, err := emotion.ParseEasing(c.Engine.Easing); err != nil {
		errs = append(errs, fmt.Errorf("engine.easing: %w", err))
	}
	if _, err := emotion.ParseBlendSpace(c.Engine.ColorSpace); err != nil {
		errs = append(errs, fmt.Errorf("engine.color_space: %w", err))
	}
	if c.Engine.NeutralPreset == "" {
		errs = append(errs, errors.New("engine.neutral_preset must be set"))
	}
	if c.Engine.QueueSize <= 0 {
		errs = append(errs, fmt.Errorf("engine.queue_size must be positive, got %d", c.Engine.QueueSize))
	}
	if c.Geometry.Radius <= 0 {
		errs = append(errs, fmt.Errorf("geometry.radius must be positive, got %g", c.Geometry.Radius))
	}
	if c.Geometry.WidthSegments < 3 || c.Geometry.HeightSegments < 2 {
		errs = append(errs, fmt.Errorf("geometry segments must be at least 3x2, got %dx%d",
			c.Geometry.WidthSegments, c.Geometry.HeightSegments))
	}
	if c.Geometry.CloudPoints <= 0 {
		errs = append(errs, fmt.Errorf("geometry.cloud_points must be positive, got %d", c.Geometry.CloudPoints))
	}
	if c.Server.FrameStride <= 0 {
		errs = append(errs, fmt.Errorf("server.frame_stride must be positive, got %d", c.Server.FrameStride))
	}
	if c.Presets.Watch && c.Presets.File == "" {
		errs = append(errs, errors.New("presets.watch needs presets.file"))
	}

	return errors.Join(errs...)
}

// FrameInterval is the wall time between frames
func (c *Config) FrameInterval() time.Duration {
	return time.Second / time.Duration(c.Engine.FPS)
}

// GetConfigDir returns the configuration directory path
func GetConfigDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, ".cortexblob"), nil
}
