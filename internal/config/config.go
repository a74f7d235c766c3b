package config

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

// Config is the full server configuration, loaded from a yaml file with
// defaults for every key.
type Config struct {
	Mode     string `mapstructure:"mode"`
	Port     int    `mapstructure:"port"`
	LogLevel string `mapstructure:"log_level"`

	GracePeriod  time.Duration `mapstructure:"grace_period"`
	MaxFrameSize int           `mapstructure:"max_frame_size"`
	SendBuffer   int           `mapstructure:"send_buffer"`
	ReadLimit    int64         `mapstructure:"read_limit"`
	AudioQueue   int           `mapstructure:"audio_queue"`

	DBPath string `mapstructure:"db_path"`

	TranscribeURL  string        `mapstructure:"transcribe_url"`
	GenerateURL    string        `mapstructure:"generate_url"`
	ReviewURL      string        `mapstructure:"review_url"`
	AssistTimeout  time.Duration `mapstructure:"assist_timeout"`
	AssistRetries  int           `mapstructure:"assist_retries"`
	MetricsEnabled bool          `mapstructure:"metrics_enabled"`
}

// Load reads configs/config.<CONFIG_ENV>.yaml, falling back to dev and to
// defaults when the file is absent.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	fileName := fmt.Sprintf("configs/config.%s.yaml", env)

	v.SetConfigFile(fileName)
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")

	v.SetDefault("mode", "release")
	v.SetDefault("port", 8000)
	v.SetDefault("log_level", "info")
	v.SetDefault("grace_period", "30s")
	v.SetDefault("max_frame_size", 1<<20)
	v.SetDefault("send_buffer", 256)
	v.SetDefault("read_limit", 1<<20)
	v.SetDefault("audio_queue", 16)
	v.SetDefault("db_path", "./data/codevoice.db")
	v.SetDefault("transcribe_url", "http://localhost:8001/transcribe")
	v.SetDefault("generate_url", "http://localhost:8002/generate")
	v.SetDefault("review_url", "http://localhost:8003/review")
	v.SetDefault("assist_timeout", "30s")
	v.SetDefault("assist_retries", 2)
	v.SetDefault("metrics_enabled", true)

	if err := v.ReadInConfig(); err != nil {
		log.Warn().Str("module", "config").Str("file", fileName).
			Msg("config file not found, using defaults")
	} else {
		log.Info().Str("module", "config").Str("file", fileName).
			Msg("config loaded")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}
