// Package config loads the deck2video configuration from the environment and
// an optional TOML settings file.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/book-expert/logger"
	"github.com/joho/godotenv"
	toml "github.com/pelletier/go-toml/v2"
)

// Required environment variables. Each missing one is a fatal startup error
// naming the key.
const (
	EnvNATSURL            = "NATS_URL"
	EnvDeckStoreBucket    = "DECK_STORE_BUCKET"
	EnvAvatarAPIKey       = "AVATAR_API_KEY"
	EnvLLMAPIKey          = "LLM_API_KEY"
	EnvRenderClientID     = "RENDER_CLIENT_ID"
	EnvRenderClientSecret = "RENDER_CLIENT_SECRET"
	EnvAvatarID           = "AVATAR_ID"
	EnvVoiceID            = "VOICE_ID"
)

// Optional environment variables.
const (
	EnvAvatarAPIURL    = "AVATAR_API_URL"
	EnvAvatarUploadURL = "AVATAR_UPLOAD_URL"
	EnvLLMAPIURL       = "LLM_API_URL"
	EnvRenderAPIURL    = "RENDER_API_URL"
	EnvLogsDir         = "LOGS_DIR"
	EnvSettingsPath    = "DECK2VIDEO_SETTINGS"
)

// Default service endpoints and paths.
const (
	defaultAvatarAPIURL    = "https://api.heygen.com"
	defaultAvatarUploadURL = "https://upload.heygen.com"
	defaultLLMAPIURL       = "https://api.openai.com"
	defaultRenderAPIURL    = "https://api.sliderender.cloud"
	defaultLogsDir         = "/var/log/deck2video"
)

// Default tuning values, used when no settings file overrides them.
const (
	DefaultVideoWidth       = 1280
	DefaultVideoHeight      = 720
	DefaultRetryAttempts    = 3
	DefaultRetryBaseDelay   = time.Second
	DefaultPollInterval     = 10 * time.Second
	DefaultPollTimeout      = 30 * time.Minute
	DefaultRasterizeWorkers = 4
	DefaultLLMModel         = "gpt-4o"
	DefaultLLMTemperature   = 0.7
	DefaultLLMMaxTokens     = 300
	DefaultAvatarScale      = 0.33
	DefaultAvatarOffsetX    = 0.42
	DefaultAvatarOffsetY    = 0.42
)

// ErrMissingEnv indicates that a required environment variable is not set.
var ErrMissingEnv = errors.New("missing required environment variable")

// Settings holds the tunable pipeline parameters. All fields have compiled
// defaults; a TOML file named by DECK2VIDEO_SETTINGS overrides them.
type Settings struct {
	VideoWidth          int     `toml:"video_width"`
	VideoHeight         int     `toml:"video_height"`
	RetryAttempts       int     `toml:"retry_attempts"`
	RetryBaseDelayMS    int     `toml:"retry_base_delay_ms"`
	PollIntervalSeconds int     `toml:"poll_interval_seconds"`
	PollTimeoutMinutes  int     `toml:"poll_timeout_minutes"`
	RasterizeWorkers    int     `toml:"rasterize_workers"`
	LLMModel            string  `toml:"llm_model"`
	LLMTemperature      float64 `toml:"llm_temperature"`
	LLMMaxTokens        int     `toml:"llm_max_tokens"`
	AvatarScale         float64 `toml:"avatar_scale"`
	AvatarOffsetX       float64 `toml:"avatar_offset_x"`
	AvatarOffsetY       float64 `toml:"avatar_offset_y"`
}

// Config is the root configuration for one deck2video invocation.
type Config struct {
	NATSURL            string
	DeckStoreBucket    string
	AvatarAPIKey       string
	LLMAPIKey          string
	RenderClientID     string
	RenderClientSecret string
	AvatarID           string
	VoiceID            string

	AvatarAPIURL    string
	AvatarUploadURL string
	LLMAPIURL       string
	RenderAPIURL    string
	LogsDir         string

	Settings Settings
}

// RetryBaseDelay returns the configured retry base delay as a duration.
func (s Settings) RetryBaseDelay() time.Duration {
	if s.RetryBaseDelayMS <= 0 {
		return DefaultRetryBaseDelay
	}

	return time.Duration(s.RetryBaseDelayMS) * time.Millisecond
}

// PollInterval returns the configured poll interval as a duration.
func (s Settings) PollInterval() time.Duration {
	if s.PollIntervalSeconds <= 0 {
		return DefaultPollInterval
	}

	return time.Duration(s.PollIntervalSeconds) * time.Second
}

// PollTimeout returns the configured total poll deadline as a duration.
func (s Settings) PollTimeout() time.Duration {
	if s.PollTimeoutMinutes <= 0 {
		return DefaultPollTimeout
	}

	return time.Duration(s.PollTimeoutMinutes) * time.Minute
}

// DefaultSettings returns the compiled default tuning values.
func DefaultSettings() Settings {
	return Settings{
		VideoWidth:          DefaultVideoWidth,
		VideoHeight:         DefaultVideoHeight,
		RetryAttempts:       DefaultRetryAttempts,
		RetryBaseDelayMS:    int(DefaultRetryBaseDelay / time.Millisecond),
		PollIntervalSeconds: int(DefaultPollInterval / time.Second),
		PollTimeoutMinutes:  int(DefaultPollTimeout / time.Minute),
		RasterizeWorkers:    DefaultRasterizeWorkers,
		LLMModel:            DefaultLLMModel,
		LLMTemperature:      DefaultLLMTemperature,
		LLMMaxTokens:        DefaultLLMMaxTokens,
		AvatarScale:         DefaultAvatarScale,
		AvatarOffsetX:       DefaultAvatarOffsetX,
		AvatarOffsetY:       DefaultAvatarOffsetY,
	}
}

// Load loads the configuration for deck2video. A .env file in the working
// directory is read first when present; the process environment wins over it.
func Load(log *logger.Logger) (*Config, error) {
	loadErr := godotenv.Load()
	if loadErr != nil {
		// A missing .env file is normal outside development.
		log.Info("No .env file loaded: %v", loadErr)
	}

	cfg := &Config{
		AvatarAPIURL:    envOrDefault(EnvAvatarAPIURL, defaultAvatarAPIURL),
		AvatarUploadURL: envOrDefault(EnvAvatarUploadURL, defaultAvatarUploadURL),
		LLMAPIURL:       envOrDefault(EnvLLMAPIURL, defaultLLMAPIURL),
		RenderAPIURL:    envOrDefault(EnvRenderAPIURL, defaultRenderAPIURL),
		LogsDir:         envOrDefault(EnvLogsDir, defaultLogsDir),
		Settings:        DefaultSettings(),
	}

	required := []struct {
		name   string
		target *string
	}{
		{EnvNATSURL, &cfg.NATSURL},
		{EnvDeckStoreBucket, &cfg.DeckStoreBucket},
		{EnvAvatarAPIKey, &cfg.AvatarAPIKey},
		{EnvLLMAPIKey, &cfg.LLMAPIKey},
		{EnvRenderClientID, &cfg.RenderClientID},
		{EnvRenderClientSecret, &cfg.RenderClientSecret},
		{EnvAvatarID, &cfg.AvatarID},
		{EnvVoiceID, &cfg.VoiceID},
	}

	for _, entry := range required {
		value := os.Getenv(entry.name)
		if value == "" {
			return nil, fmt.Errorf("%w: %s", ErrMissingEnv, entry.name)
		}

		*entry.target = value
	}

	settingsErr := loadSettingsFile(cfg, log)
	if settingsErr != nil {
		return nil, settingsErr
	}

	return cfg, nil
}

// loadSettingsFile overlays the optional TOML settings file onto the
// compiled defaults already present in cfg.Settings.
func loadSettingsFile(cfg *Config, log *logger.Logger) error {
	path := os.Getenv(EnvSettingsPath)
	if path == "" {
		return nil
	}

	data, readErr := os.ReadFile(path)
	if readErr != nil {
		return fmt.Errorf("failed to read settings file %q: %w", path, readErr)
	}

	unmarshalErr := toml.Unmarshal(data, &cfg.Settings)
	if unmarshalErr != nil {
		return fmt.Errorf("failed to parse settings file %q: %w", path, unmarshalErr)
	}

	log.Info("Loaded pipeline settings from %s", path)

	return nil
}

func envOrDefault(name, fallback string) string {
	if value := os.Getenv(name); value != "" {
		return value
	}

	return fallback
}
