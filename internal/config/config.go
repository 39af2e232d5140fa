package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds runtime configuration values for the API service.
type Config struct {
	AppName                string
	AppEnv                 string
	AppPort                string
	DatabaseURL            string
	RedisURL               string
	NATSURL                string
	JWTSecret              string
	CloudinaryCloudName    string
	CloudinaryAPIKey       string
	CloudinaryAPISecret    string
	CloudinaryUploadFolder string
	OpenAIAPIKey           string
	OpenAIModel            string
	AITimeout              time.Duration
	AICacheTTL             time.Duration
	SubmissionCacheTTL     time.Duration
	SweepInterval          time.Duration
	SweepStaleAfter        time.Duration
	SweepBatchSize         int
	MediaWorkDir           string
	VideoTimeout           time.Duration
	AudioTimeout           time.Duration
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("ESSAY")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "Essay Eval API")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("cloudinary.folder", "essays/media")
	v.SetDefault("openai.model", "gpt-4o-mini")
	v.SetDefault("ai.timeout", "60s")
	v.SetDefault("ai.cache_ttl", "24h")
	v.SetDefault("submission.cache_ttl", "5m")
	v.SetDefault("sweep.interval", "1h")
	v.SetDefault("sweep.stale_after", "1h")
	v.SetDefault("sweep.batch_size", 10)
	v.SetDefault("media.work_dir", "")
	v.SetDefault("media.video_timeout", "5m")
	v.SetDefault("media.audio_timeout", "3m")

	durations := map[string]*time.Duration{
		"ai.timeout":           nil,
		"ai.cache_ttl":         nil,
		"submission.cache_ttl": nil,
		"sweep.interval":       nil,
		"sweep.stale_after":    nil,
		"media.video_timeout":  nil,
		"media.audio_timeout":  nil,
	}
	for key := range durations {
		parsed, err := time.ParseDuration(v.GetString(key))
		if err != nil {
			return Config{}, fmt.Errorf("invalid duration for %s: %w", key, err)
		}
		value := parsed
		durations[key] = &value
	}

	cfg := Config{
		AppName:                v.GetString("app.name"),
		AppEnv:                 v.GetString("app.env"),
		AppPort:                v.GetString("app.port"),
		DatabaseURL:            v.GetString("database.url"),
		RedisURL:               v.GetString("redis.url"),
		NATSURL:                v.GetString("nats.url"),
		JWTSecret:              v.GetString("jwt.secret"),
		CloudinaryCloudName:    v.GetString("cloudinary.cloud_name"),
		CloudinaryAPIKey:       v.GetString("cloudinary.api_key"),
		CloudinaryAPISecret:    v.GetString("cloudinary.api_secret"),
		CloudinaryUploadFolder: v.GetString("cloudinary.folder"),
		OpenAIAPIKey:           v.GetString("openai_api_key"),
		OpenAIModel:            v.GetString("openai.model"),
		AITimeout:              *durations["ai.timeout"],
		AICacheTTL:             *durations["ai.cache_ttl"],
		SubmissionCacheTTL:     *durations["submission.cache_ttl"],
		SweepInterval:          *durations["sweep.interval"],
		SweepStaleAfter:        *durations["sweep.stale_after"],
		SweepBatchSize:         v.GetInt("sweep.batch_size"),
		MediaWorkDir:           v.GetString("media.work_dir"),
		VideoTimeout:           *durations["media.video_timeout"],
		AudioTimeout:           *durations["media.audio_timeout"],
	}

	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("jwt secret must be provided")
	}

	if cfg.SweepBatchSize <= 0 {
		cfg.SweepBatchSize = 10
	}

	return cfg, nil
}
