package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	RecognizerModeHTTP = "http"
	RecognizerModeExec = "exec"
)

type Config struct {
	HTTP       HTTPConfig       `mapstructure:"http"`
	Log        LogConfig        `mapstructure:"log"`
	Recognizer RecognizerConfig `mapstructure:"recognizer"`
	Video      VideoConfig      `mapstructure:"video"`
	Registry   RegistryConfig   `mapstructure:"registry"`
}

type HTTPConfig struct {
	Port            int           `mapstructure:"port"`
	CORSOrigins     []string      `mapstructure:"cors_origins"`
	MaxUploadMB     int64         `mapstructure:"max_upload_mb"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

type RecognizerConfig struct {
	Mode       string        `mapstructure:"mode"`
	URL        string        `mapstructure:"url"`
	Timeout    time.Duration `mapstructure:"timeout"`
	AlprBinary string        `mapstructure:"alpr_binary"`
	Country    string        `mapstructure:"country"`
}

type VideoConfig struct {
	Stride       int    `mapstructure:"stride"`
	FFmpegBinary string `mapstructure:"ffmpeg_binary"`
	JPEGQuality  int    `mapstructure:"jpeg_quality"`
}

// RegistryConfig points at a remote spot registry. An empty URL keeps the
// registry in process memory.
type RegistryConfig struct {
	URL     string        `mapstructure:"url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

func (c RegistryConfig) Remote() bool {
	return c.URL != ""
}

// Load reads defaults, then the optional YAML file at path, then ANPR_* environment
// variables (ANPR_HTTP_PORT, ANPR_RECOGNIZER_URL, ...).
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("ANPR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("http.port", 8080)
	v.SetDefault("http.cors_origins", []string{"*"})
	v.SetDefault("http.max_upload_mb", 512)
	v.SetDefault("http.shutdown_timeout", 10*time.Second)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)

	v.SetDefault("recognizer.mode", RecognizerModeHTTP)
	v.SetDefault("recognizer.url", "http://localhost:5000/recognize")
	v.SetDefault("recognizer.timeout", 30*time.Second)
	v.SetDefault("recognizer.alpr_binary", "alpr")
	v.SetDefault("recognizer.country", "eu")

	v.SetDefault("video.stride", 10)
	v.SetDefault("video.ffmpeg_binary", "ffmpeg")
	v.SetDefault("video.jpeg_quality", 90)

	v.SetDefault("registry.url", "")
	v.SetDefault("registry.timeout", 5*time.Second)
}

func (c *Config) Validate() error {
	var errs []error
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		errs = append(errs, fmt.Errorf("http.port out of range: %d", c.HTTP.Port))
	}
	if c.HTTP.MaxUploadMB <= 0 {
		errs = append(errs, fmt.Errorf("http.max_upload_mb must be positive"))
	}
	switch c.Recognizer.Mode {
	case RecognizerModeHTTP:
		if c.Recognizer.URL == "" {
			errs = append(errs, fmt.Errorf("recognizer.url is required in http mode"))
		}
	case RecognizerModeExec:
		if c.Recognizer.AlprBinary == "" {
			errs = append(errs, fmt.Errorf("recognizer.alpr_binary is required in exec mode"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown recognizer.mode %q", c.Recognizer.Mode))
	}
	if c.Video.Stride <= 0 {
		errs = append(errs, fmt.Errorf("video.stride must be positive"))
	}
	if c.Video.JPEGQuality < 1 || c.Video.JPEGQuality > 100 {
		errs = append(errs, fmt.Errorf("video.jpeg_quality must be within 1..100"))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}
