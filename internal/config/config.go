package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config represents the complete service configuration
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Audio     AudioConfig     `yaml:"audio"`
	Transcode TranscodeConfig `yaml:"transcode"`
	Webhook   WebhookConfig   `yaml:"webhook"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServerConfig contains HTTP/WebSocket server configuration
type ServerConfig struct {
	Port         int    `yaml:"port"`
	BindAddress  string `yaml:"bind_address"`
	HostName     string `yaml:"host_name"`     // public base URL used in NCCO eventUrl
	ReadTimeout  int    `yaml:"read_timeout"`  // seconds, plain HTTP requests only
	WriteTimeout int    `yaml:"write_timeout"` // seconds, per websocket write
}

// AudioConfig contains the audio root and playback parameters
type AudioConfig struct {
	RootDir           string  `yaml:"root_dir"`
	DefaultSampleRate int     `yaml:"default_sample_rate"`
	ChunkDuration     float64 `yaml:"chunk_duration"`  // seconds per chunk
	MinChunkDelay     float64 `yaml:"min_chunk_delay"` // seconds, delay floor
}

// TranscodeConfig contains external encoder configuration
type TranscodeConfig struct {
	FFmpegPath string `yaml:"ffmpeg_path"`
	Timeout    int    `yaml:"timeout"` // seconds
	TempDir    string `yaml:"temp_dir"`
}

// WebhookConfig contains callback payload storage configuration
type WebhookConfig struct {
	MaxStored int `yaml:"max_stored"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads and parses the configuration file. A .env file in the working
// directory is loaded first so that environment overrides are visible; a
// missing .env is not an error.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	config.applyEnvOverrides()
	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// applyEnvOverrides applies environment variables on top of file values.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("HOST_NAME"); v != "" {
		c.Server.HostName = v
	}
	if v := os.Getenv("AUDIO_ROOT"); v != "" {
		c.Audio.RootDir = v
	}
	if v := os.Getenv("FFMPEG_PATH"); v != "" {
		c.Transcode.FFmpegPath = v
	}
}

// applyDefaults fills zero values that have sensible defaults.
func (c *Config) applyDefaults() {
	if c.Server.HostName == "" {
		c.Server.HostName = fmt.Sprintf("http://localhost:%d", c.Server.Port)
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 10
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 10
	}
	if c.Audio.DefaultSampleRate == 0 {
		c.Audio.DefaultSampleRate = 8000
	}
	if c.Audio.ChunkDuration == 0 {
		c.Audio.ChunkDuration = 0.020
	}
	if c.Audio.MinChunkDelay == 0 {
		c.Audio.MinChunkDelay = 0.005
	}
	if c.Transcode.FFmpegPath == "" {
		c.Transcode.FFmpegPath = "ffmpeg"
	}
	if c.Transcode.Timeout == 0 {
		c.Transcode.Timeout = 60
	}
	if c.Webhook.MaxStored == 0 {
		c.Webhook.MaxStored = 1000
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
}

// Validate performs comprehensive validation of the configuration
func (c *Config) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server config: %w", err)
	}

	if err := c.Audio.Validate(); err != nil {
		return fmt.Errorf("audio config: %w", err)
	}

	if err := c.Transcode.Validate(); err != nil {
		return fmt.Errorf("transcode config: %w", err)
	}

	if err := c.Webhook.Validate(); err != nil {
		return fmt.Errorf("webhook config: %w", err)
	}

	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	return nil
}

// Validate validates server configuration
func (s *ServerConfig) Validate() error {
	if s.Port < 1 || s.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", s.Port)
	}

	if s.BindAddress == "" {
		return fmt.Errorf("bind_address cannot be empty")
	}

	if s.ReadTimeout < 1 {
		return fmt.Errorf("read_timeout must be at least 1 second, got %d", s.ReadTimeout)
	}

	if s.WriteTimeout < 1 {
		return fmt.Errorf("write_timeout must be at least 1 second, got %d", s.WriteTimeout)
	}

	return nil
}

// Validate validates audio configuration
func (a *AudioConfig) Validate() error {
	if a.RootDir == "" {
		return fmt.Errorf("root_dir cannot be empty")
	}

	if a.DefaultSampleRate != 8000 && a.DefaultSampleRate != 16000 {
		return fmt.Errorf("default_sample_rate must be 8000 or 16000 Hz, got %d", a.DefaultSampleRate)
	}

	if a.ChunkDuration <= 0 {
		return fmt.Errorf("chunk_duration must be positive, got %f", a.ChunkDuration)
	}

	if a.MinChunkDelay <= 0 {
		return fmt.Errorf("min_chunk_delay must be positive, got %f", a.MinChunkDelay)
	}

	if a.MinChunkDelay > a.ChunkDuration {
		return fmt.Errorf("min_chunk_delay (%f) must not exceed chunk_duration (%f)",
			a.MinChunkDelay, a.ChunkDuration)
	}

	return nil
}

// Validate validates transcode configuration
func (t *TranscodeConfig) Validate() error {
	if t.FFmpegPath == "" {
		return fmt.Errorf("ffmpeg_path cannot be empty")
	}

	if t.Timeout < 1 {
		return fmt.Errorf("timeout must be at least 1 second, got %d", t.Timeout)
	}

	return nil
}

// Validate validates webhook configuration
func (w *WebhookConfig) Validate() error {
	if w.MaxStored < 1 {
		return fmt.Errorf("max_stored must be at least 1, got %d", w.MaxStored)
	}

	return nil
}

// Validate validates logging configuration
func (l *LoggingConfig) Validate() error {
	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLevels[l.Level] {
		return fmt.Errorf("level must be one of [debug, info, warn, error], got '%s'", l.Level)
	}

	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("format must be 'json' or 'text', got '%s'", l.Format)
	}

	return nil
}

// GetReadTimeout returns the HTTP read timeout as a time.Duration
func (s *ServerConfig) GetReadTimeout() time.Duration {
	return time.Duration(s.ReadTimeout) * time.Second
}

// GetWriteTimeout returns the write timeout as a time.Duration
func (s *ServerConfig) GetWriteTimeout() time.Duration {
	return time.Duration(s.WriteTimeout) * time.Second
}

// GetChunkDuration returns the chunk duration as a time.Duration
func (a *AudioConfig) GetChunkDuration() time.Duration {
	return time.Duration(a.ChunkDuration * float64(time.Second))
}

// GetMinChunkDelay returns the minimum inter-chunk delay as a time.Duration
func (a *AudioConfig) GetMinChunkDelay() time.Duration {
	return time.Duration(a.MinChunkDelay * float64(time.Second))
}

// GetTimeoutDuration returns the transcode timeout as a time.Duration
func (t *TranscodeConfig) GetTimeoutDuration() time.Duration {
	return time.Duration(t.Timeout) * time.Second
}
