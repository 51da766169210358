package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"image-compressor-go/internal/session"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"golang.org/x/text/language"
)

// EnvPrefix prefixes every environment override, e.g.
// IMAGE_COMPRESSOR_DEFAULTS_QUALITY.
const EnvPrefix = "IMAGE_COMPRESSOR"

// Config represents the main configuration structure
type Config struct {
	Defaults DefaultsConfig `mapstructure:"defaults"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Backend  BackendConfig  `mapstructure:"backend"`
	Analysis AnalysisConfig `mapstructure:"analysis"`
	Locale   LocaleConfig   `mapstructure:"locale"`
	Server   ServerConfig   `mapstructure:"server"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// DefaultsConfig holds the settings a session starts with before stored
// values are applied.
type DefaultsConfig struct {
	Quality           float64 `mapstructure:"quality"`
	SizeRatio         float64 `mapstructure:"size_ratio"`
	ThreadCount       int     `mapstructure:"thread_count"`
	PreserveStructure bool    `mapstructure:"preserve_structure"`
	OutputFolder      string  `mapstructure:"output_folder"`
}

// StorageConfig selects where settings are persisted.
type StorageConfig struct {
	Backend string      `mapstructure:"backend"` // file, redis, memory, none
	Path    string      `mapstructure:"path"`
	Redis   RedisConfig `mapstructure:"redis"`
}

// RedisConfig contains Redis connection settings
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

// BackendConfig selects the command backend.
type BackendConfig struct {
	Mode    string        `mapstructure:"mode"` // local, remote
	URL     string        `mapstructure:"url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// AnalysisConfig tunes the local engine.
type AnalysisConfig struct {
	SupportedExtensions []string `mapstructure:"supported_extensions"`
	ThumbnailSize       int      `mapstructure:"thumbnail_size"`
	SkipMarked          bool     `mapstructure:"skip_marked"`
	CopyMetadata        bool     `mapstructure:"copy_metadata"`
	Marker              string   `mapstructure:"marker"`
	Workers             int      `mapstructure:"workers"`
}

// LocaleConfig contains the collation language used for name sorting.
type LocaleConfig struct {
	Language string `mapstructure:"language"`
}

// ServerConfig contains web server settings
type ServerConfig struct {
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	FilePath   string `mapstructure:"file_path"`
	MaxSize    int    `mapstructure:"max_size"` // MB
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"` // days
	Compress   bool   `mapstructure:"compress"`
	Console    bool   `mapstructure:"console"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	return &Config{
		Defaults: DefaultsConfig{
			Quality:     85,
			SizeRatio:   0.8,
			ThreadCount: 4,
		},
		Storage: StorageConfig{
			Backend: "file",
			Redis: RedisConfig{
				Addr:   "localhost:6379",
				Prefix: "image-compressor:",
			},
		},
		Backend: BackendConfig{
			Mode:    "local",
			URL:     "http://localhost:8080",
			Timeout: 30 * time.Second,
		},
		Analysis: AnalysisConfig{
			SupportedExtensions: []string{
				".jpg", ".jpeg", ".png", ".bmp", ".gif",
				".webp", ".tiff", ".tif", ".ico",
			},
			ThumbnailSize: 64,
			SkipMarked:    true,
			CopyMetadata:  true,
			Marker:        "ImageCompressor",
		},
		Locale: LocaleConfig{
			Language: "und",
		},
		Server: ServerConfig{
			Port:         8080,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  120 * time.Second,
		},
		Logging: LoggingConfig{
			Level:      "info",
			FilePath:   "image-compressor.log",
			MaxSize:    10,
			MaxBackups: 3,
			MaxAge:     30,
			Compress:   true,
		},
	}
}

// LoadConfig loads configuration from a .env file, the config file and
// environment variables, in increasing priority.
func LoadConfig(configPath string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("error loading .env file: %w", err)
	}

	config := &Config{}
	v := viper.New()
	v.SetConfigType("yaml")

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		// Look for config file in current directory and home directory
		v.SetConfigName("config")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.image-compressor")
		v.AddConfigPath("/etc/image-compressor")
	}

	// Defaults make every key visible to AutomaticEnv.
	setDefaults(v, DefaultConfig())
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

func setDefaults(v *viper.Viper, c *Config) {
	v.SetDefault("defaults.quality", c.Defaults.Quality)
	v.SetDefault("defaults.size_ratio", c.Defaults.SizeRatio)
	v.SetDefault("defaults.thread_count", c.Defaults.ThreadCount)
	v.SetDefault("defaults.preserve_structure", c.Defaults.PreserveStructure)
	v.SetDefault("defaults.output_folder", c.Defaults.OutputFolder)

	v.SetDefault("storage.backend", c.Storage.Backend)
	v.SetDefault("storage.path", c.Storage.Path)
	v.SetDefault("storage.redis.addr", c.Storage.Redis.Addr)
	v.SetDefault("storage.redis.password", c.Storage.Redis.Password)
	v.SetDefault("storage.redis.db", c.Storage.Redis.DB)
	v.SetDefault("storage.redis.prefix", c.Storage.Redis.Prefix)

	v.SetDefault("backend.mode", c.Backend.Mode)
	v.SetDefault("backend.url", c.Backend.URL)
	v.SetDefault("backend.timeout", c.Backend.Timeout)

	v.SetDefault("analysis.supported_extensions", c.Analysis.SupportedExtensions)
	v.SetDefault("analysis.thumbnail_size", c.Analysis.ThumbnailSize)
	v.SetDefault("analysis.skip_marked", c.Analysis.SkipMarked)
	v.SetDefault("analysis.copy_metadata", c.Analysis.CopyMetadata)
	v.SetDefault("analysis.marker", c.Analysis.Marker)
	v.SetDefault("analysis.workers", c.Analysis.Workers)

	v.SetDefault("locale.language", c.Locale.Language)

	v.SetDefault("server.port", c.Server.Port)
	v.SetDefault("server.read_timeout", c.Server.ReadTimeout)
	v.SetDefault("server.write_timeout", c.Server.WriteTimeout)
	v.SetDefault("server.idle_timeout", c.Server.IdleTimeout)

	v.SetDefault("logging.level", c.Logging.Level)
	v.SetDefault("logging.file_path", c.Logging.FilePath)
	v.SetDefault("logging.max_size", c.Logging.MaxSize)
	v.SetDefault("logging.max_backups", c.Logging.MaxBackups)
	v.SetDefault("logging.max_age", c.Logging.MaxAge)
	v.SetDefault("logging.compress", c.Logging.Compress)
	v.SetDefault("logging.console", c.Logging.Console)
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Defaults.Quality < 0 || c.Defaults.Quality > 100 {
		return fmt.Errorf("defaults.quality must be between 0 and 100, got %g", c.Defaults.Quality)
	}
	if c.Defaults.SizeRatio < 0 || c.Defaults.SizeRatio > 1 {
		return fmt.Errorf("defaults.size_ratio must be between 0 and 1, got %g", c.Defaults.SizeRatio)
	}
	if c.Defaults.ThreadCount <= 0 {
		c.Defaults.ThreadCount = 4
	}

	c.Storage.Backend = strings.ToLower(c.Storage.Backend)
	validBackends := map[string]bool{
		"file":   true,
		"redis":  true,
		"memory": true,
		"none":   true,
	}
	if !validBackends[c.Storage.Backend] {
		return fmt.Errorf("invalid storage.backend: %s (valid: file, redis, memory, none)", c.Storage.Backend)
	}
	if c.Storage.Backend == "redis" && c.Storage.Redis.Addr == "" {
		return fmt.Errorf("storage.redis.addr is required for the redis backend")
	}

	c.Backend.Mode = strings.ToLower(c.Backend.Mode)
	switch c.Backend.Mode {
	case "local":
	case "remote":
		if c.Backend.URL == "" {
			return fmt.Errorf("backend.url is required in remote mode")
		}
	default:
		return fmt.Errorf("invalid backend.mode: %s (valid: local, remote)", c.Backend.Mode)
	}
	if c.Backend.Timeout <= 0 {
		c.Backend.Timeout = 30 * time.Second
	}

	c.Analysis.SupportedExtensions = normalizeExtensions(c.Analysis.SupportedExtensions)
	if c.Analysis.ThumbnailSize <= 0 {
		c.Analysis.ThumbnailSize = 64
	}
	if c.Analysis.Marker == "" {
		c.Analysis.Marker = "ImageCompressor"
	}

	if c.Locale.Language == "" {
		c.Locale.Language = "und"
	}
	if _, err := language.Parse(c.Locale.Language); err != nil {
		return fmt.Errorf("invalid locale.language %q: %w", c.Locale.Language, err)
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server.port: %d", c.Server.Port)
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s (valid: debug, info, warn, error)", c.Logging.Level)
	}

	return nil
}

// Settings returns the session settings seeded from the defaults section.
func (c *Config) Settings() session.Settings {
	return session.Settings{
		Quality:           c.Defaults.Quality,
		SizeRatio:         c.Defaults.SizeRatio,
		OutputFolder:      c.Defaults.OutputFolder,
		ThreadCount:       c.Defaults.ThreadCount,
		PreserveStructure: c.Defaults.PreserveStructure,
	}
}

// CollationTag returns the configured collation language. Validate has
// already rejected malformed values.
func (c *Config) CollationTag() language.Tag {
	tag, err := language.Parse(c.Locale.Language)
	if err != nil {
		return language.Und
	}
	return tag
}

func normalizeExtensions(extensions []string) []string {
	normalized := make([]string, len(extensions))
	for i, ext := range extensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		normalized[i] = ext
	}
	return normalized
}
