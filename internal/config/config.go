// Package config loads toolbox-api configuration.
//
// Values are layered with viper, lowest precedence first:
//
//  1. Built-in defaults (see setDefaults)
//  2. Config file: --config, or toolbox.{yaml,toml,json} in the working
//     directory or $HOME/.config/toolbox-api
//  3. Environment: TOOLBOX_<SECTION>_<KEY>, e.g. TOOLBOX_SMTP_PASSWORD
//  4. Command-line flags bound by the caller
//
// Mail credentials have no default. They must come from the file or the
// environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable viper consults.
const EnvPrefix = "TOOLBOX"

// Capture modes.
const (
	CaptureFixed      = "fixed"
	CapturePerRequest = "per-request"
)

// Config is the complete, validated process configuration.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Log        LogConfig        `mapstructure:"log"`
	Blur       BlurConfig       `mapstructure:"blur"`
	Capture    CaptureConfig    `mapstructure:"capture"`
	Geocoding  GeocodingConfig  `mapstructure:"geocoding"`
	Classifier ClassifierConfig `mapstructure:"classifier"`
	SMTP       SMTPConfig       `mapstructure:"smtp"`
	Speech     SpeechConfig     `mapstructure:"speech"`
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	MaxUploadBytes  int64         `mapstructure:"max_upload_bytes"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// LogConfig selects the log level and handler format.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// BlurConfig controls the blur endpoint.
type BlurConfig struct {
	Dir         string  `mapstructure:"dir"`
	Sigma       float64 `mapstructure:"sigma"`
	Engine      string  `mapstructure:"engine"`
	JPEGQuality int     `mapstructure:"jpeg_quality"`
}

// CaptureConfig controls where base64 captures are written.
type CaptureConfig struct {
	Mode string `mapstructure:"mode"`
	Path string `mapstructure:"path"`
	Dir  string `mapstructure:"dir"`
}

// GeocodingConfig points at a Nominatim-compatible service.
type GeocodingConfig struct {
	URL             string        `mapstructure:"url"`
	UserAgent       string        `mapstructure:"user_agent"`
	Timeout         time.Duration `mapstructure:"timeout"`
	BreakerFailures uint32        `mapstructure:"breaker_failures"`
	BreakerTimeout  time.Duration `mapstructure:"breaker_timeout"`
}

// ClassifierConfig controls startup training of the species model.
// An empty Dataset selects the bundled iris data.
type ClassifierConfig struct {
	Dataset      string  `mapstructure:"dataset"`
	Iterations   int     `mapstructure:"iterations"`
	LearningRate float64 `mapstructure:"learning_rate"`
	L2           float64 `mapstructure:"l2"`
}

// SMTPConfig holds the mail submission server and credentials.
type SMTPConfig struct {
	Host     string        `mapstructure:"host"`
	Port     int           `mapstructure:"port"`
	Username string        `mapstructure:"username"`
	Password string        `mapstructure:"password"`
	From     string        `mapstructure:"from"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// SpeechConfig selects and tunes the speech provider.
type SpeechConfig struct {
	Provider    string `mapstructure:"provider"`
	Voice       string `mapstructure:"voice"`
	Rate        int    `mapstructure:"rate"`
	Pitch       int    `mapstructure:"pitch"`
	Amplitude   int    `mapstructure:"amplitude"`
	Player      string `mapstructure:"player"`
	OpenAIKey   string `mapstructure:"openai_key"`
	OpenAIModel string `mapstructure:"openai_model"`
	OpenAIVoice string `mapstructure:"openai_voice"`
}

// Options tells Load where to look beyond defaults and environment.
type Options struct {
	// ConfigFile is an explicit config file path. When empty, Load searches
	// the default locations and tolerates a missing file.
	ConfigFile string

	// Flags, when non-nil, are bound over every other source. Only flags
	// listed in FlagKeys are consulted.
	Flags *pflag.FlagSet
}

// FlagKeys maps command-line flag names to config keys.
var FlagKeys = map[string]string{
	"addr":       "server.addr",
	"log-level":  "log.level",
	"log-format": "log.format",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", "0.0.0.0:5000")
	v.SetDefault("server.max_upload_bytes", 10<<20)
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("blur.dir", "./blurred_images")
	v.SetDefault("blur.sigma", 5.0)
	v.SetDefault("blur.engine", "imaging")
	v.SetDefault("blur.jpeg_quality", 75)

	v.SetDefault("capture.mode", CaptureFixed)
	v.SetDefault("capture.path", "./image.jpg")
	v.SetDefault("capture.dir", "./captures")

	v.SetDefault("geocoding.url", "https://nominatim.openstreetmap.org")
	v.SetDefault("geocoding.user_agent", "toolbox-api")
	v.SetDefault("geocoding.timeout", 10*time.Second)
	v.SetDefault("geocoding.breaker_failures", 5)
	v.SetDefault("geocoding.breaker_timeout", 30*time.Second)

	v.SetDefault("classifier.dataset", "")
	v.SetDefault("classifier.iterations", 1000)
	v.SetDefault("classifier.learning_rate", 0.5)
	v.SetDefault("classifier.l2", 0.01)

	v.SetDefault("smtp.host", "smtp.gmail.com")
	v.SetDefault("smtp.port", 587)
	v.SetDefault("smtp.username", "")
	v.SetDefault("smtp.password", "")
	v.SetDefault("smtp.from", "")
	v.SetDefault("smtp.timeout", 30*time.Second)

	v.SetDefault("speech.provider", "espeak")
	v.SetDefault("speech.voice", "en")
	v.SetDefault("speech.rate", 175)
	v.SetDefault("speech.pitch", 50)
	v.SetDefault("speech.amplitude", 100)
	v.SetDefault("speech.player", "")
	v.SetDefault("speech.openai_key", "")
	v.SetDefault("speech.openai_model", "tts-1")
	v.SetDefault("speech.openai_voice", "alloy")
}

// Load assembles the configuration from all sources and validates it.
func Load(opts Options) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", opts.ConfigFile, err)
		}
	} else {
		v.SetConfigName("toolbox")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "toolbox-api"))
		}
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	if opts.Flags != nil {
		for name, key := range FlagKeys {
			f := opts.Flags.Lookup(name)
			if f == nil {
				continue
			}
			if err := v.BindPFlag(key, f); err != nil {
				return nil, fmt.Errorf("failed to bind flag %s: %w", name, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if cfg.SMTP.From == "" {
		cfg.SMTP.From = cfg.SMTP.Username
	}
	if cfg.Speech.OpenAIKey == "" {
		cfg.Speech.OpenAIKey = os.Getenv("OPENAI_API_KEY")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return errors.New("server.addr must not be empty")
	}
	if c.Server.MaxUploadBytes <= 0 {
		return fmt.Errorf("server.max_upload_bytes must be positive, got %d", c.Server.MaxUploadBytes)
	}

	switch c.Blur.Engine {
	case "imaging", "bild":
	default:
		return fmt.Errorf("blur.engine must be imaging or bild, got %q", c.Blur.Engine)
	}
	if c.Blur.Sigma <= 0 {
		return fmt.Errorf("blur.sigma must be positive, got %g", c.Blur.Sigma)
	}
	if c.Blur.JPEGQuality < 1 || c.Blur.JPEGQuality > 100 {
		return fmt.Errorf("blur.jpeg_quality must be 1-100, got %d", c.Blur.JPEGQuality)
	}
	if c.Blur.Dir == "" {
		return errors.New("blur.dir must not be empty")
	}

	switch c.Capture.Mode {
	case CaptureFixed:
		if c.Capture.Path == "" {
			return errors.New("capture.path must not be empty in fixed mode")
		}
	case CapturePerRequest:
		if c.Capture.Dir == "" {
			return errors.New("capture.dir must not be empty in per-request mode")
		}
	default:
		return fmt.Errorf("capture.mode must be %s or %s, got %q", CaptureFixed, CapturePerRequest, c.Capture.Mode)
	}

	if c.Geocoding.URL == "" {
		return errors.New("geocoding.url must not be empty")
	}
	if c.Geocoding.Timeout <= 0 {
		return fmt.Errorf("geocoding.timeout must be positive, got %s", c.Geocoding.Timeout)
	}

	if c.Classifier.Iterations <= 0 {
		return fmt.Errorf("classifier.iterations must be positive, got %d", c.Classifier.Iterations)
	}
	if c.Classifier.LearningRate <= 0 {
		return fmt.Errorf("classifier.learning_rate must be positive, got %g", c.Classifier.LearningRate)
	}
	if c.Classifier.L2 < 0 {
		return fmt.Errorf("classifier.l2 must not be negative, got %g", c.Classifier.L2)
	}

	if c.SMTP.Host == "" {
		return errors.New("smtp.host must not be empty")
	}
	if c.SMTP.Port <= 0 || c.SMTP.Port > 65535 {
		return fmt.Errorf("smtp.port out of range: %d", c.SMTP.Port)
	}

	switch c.Speech.Provider {
	case "espeak":
	case "openai":
		if c.Speech.OpenAIKey == "" {
			return errors.New("speech.openai_key is required for the openai speech provider")
		}
	default:
		return fmt.Errorf("speech.provider must be espeak or openai, got %q", c.Speech.Provider)
	}

	return nil
}
