// Package config provides application configuration.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Default configuration values.
const (
	DefaultHTTPTimeout  = 30 * time.Second
	DefaultAuthTimeout  = 10 * time.Second
	DefaultPollInterval = 30 * time.Second
	DefaultCategory     = 2000 // Torznab "Movies"
	DefaultMinSizeGB    = 2.0
	DefaultMaxSizeGB    = 15.0
	DefaultMaxResults   = 10
)

// Config is the application configuration.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Search     SearchConfig     `mapstructure:"search"`
	Downloader DownloaderConfig `mapstructure:"downloader"`
	Media      MediaConfig      `mapstructure:"media"`
	Organize   OrganizeConfig   `mapstructure:"organize"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Listen string `mapstructure:"listen"`
	APIKey string `mapstructure:"apiKey"` // shared secret gating /api routes
}

// SearchConfig holds indexer aggregator (Jackett) configuration.
type SearchConfig struct {
	URL         string        `mapstructure:"url"`
	APIKey      string        `mapstructure:"apiKey"`
	Category    int           `mapstructure:"category"`
	HTTPTimeout time.Duration `mapstructure:"httpTimeout"`
	MinSizeGB   float64       `mapstructure:"minSizeGB"`
	MaxSizeGB   float64       `mapstructure:"maxSizeGB"`
	MaxResults  int           `mapstructure:"maxResults"`
}

// DownloaderConfig holds download daemon (qBittorrent) configuration.
type DownloaderConfig struct {
	URL         string        `mapstructure:"url"`
	Username    string        `mapstructure:"username"`
	Password    string        `mapstructure:"password"`
	Category    string        `mapstructure:"category"` // category assigned to grabbed torrents
	SavePath    string        `mapstructure:"savePath"` // save path passed on add, empty for daemon default
	HTTPTimeout time.Duration `mapstructure:"httpTimeout"`
	AuthTimeout time.Duration `mapstructure:"authTimeout"` // login gets a shorter deadline than general requests
}

// MediaConfig holds media server (Jellyfin) configuration.
type MediaConfig struct {
	URL         string        `mapstructure:"url"`
	Token       string        `mapstructure:"token"`
	HTTPTimeout time.Duration `mapstructure:"httpTimeout"`
}

// OrganizeConfig holds completed-download reorganization configuration.
type OrganizeConfig struct {
	DownloadsPath string        `mapstructure:"downloadsPath"`
	LibraryPath   string        `mapstructure:"libraryPath"`
	PollInterval  time.Duration `mapstructure:"pollInterval"`
	Backend       string        `mapstructure:"backend"` // copy backend: "rclone" (default)
}

// LoadOptions configures how configuration is loaded.
type LoadOptions struct {
	// ConfigFile is an explicit config file path. If empty, default locations are searched.
	ConfigFile string
}

// Load reads configuration from file and environment variables.
// If opts.ConfigFile is set, that file is used directly.
// Otherwise, it searches default locations: $HOME, current directory, /config
// for files named .grabarr.yaml, grabarr.yaml, or config.yaml.
//
// Environment variables with prefix GRABARR_ override config file values.
func Load(opts LoadOptions) (Config, error) {
	v := viper.NewWithOptions(viper.ExperimentalBindStruct())

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			v.AddConfigPath(home)
		}
		v.AddConfigPath(".")
		v.AddConfigPath("/config")
		v.SetConfigType("yaml")
		v.SetConfigName(".grabarr")
		v.SetConfigName("grabarr")
		v.SetConfigName("config")
	}

	// Environment variables
	v.SetEnvPrefix("GRABARR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Set defaults
	v.SetDefault("server.listen", "[::]:8424")
	v.SetDefault("search.category", DefaultCategory)
	v.SetDefault("search.minSizeGB", DefaultMinSizeGB)
	v.SetDefault("search.maxSizeGB", DefaultMaxSizeGB)
	v.SetDefault("search.maxResults", DefaultMaxResults)
	v.SetDefault("organize.downloadsPath", "/downloads")
	v.SetDefault("organize.libraryPath", "/library")
	v.SetDefault("organize.pollInterval", "30s")

	// Read config file (ignore error if not found)
	_ = v.ReadInConfig()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}

	setTimeoutDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// setTimeoutDefaults applies default values that can't be expressed with
// viper.SetDefault without masking explicitly configured zeros.
func setTimeoutDefaults(cfg *Config) {
	if cfg.Search.HTTPTimeout == 0 {
		cfg.Search.HTTPTimeout = DefaultHTTPTimeout
	}
	if cfg.Downloader.HTTPTimeout == 0 {
		cfg.Downloader.HTTPTimeout = DefaultHTTPTimeout
	}
	if cfg.Downloader.AuthTimeout == 0 {
		cfg.Downloader.AuthTimeout = DefaultAuthTimeout
	}
	if cfg.Media.HTTPTimeout == 0 {
		cfg.Media.HTTPTimeout = DefaultHTTPTimeout
	}
	if cfg.Organize.PollInterval == 0 {
		cfg.Organize.PollInterval = DefaultPollInterval
	}
}

// Valid copy backends.
//
//nolint:gochecknoglobals // validation lookup table
var validBackends = map[string]bool{
	"":       true, // empty means default (rclone)
	"rclone": true,
}

// validate checks that the configuration is valid.
func validate(cfg *Config) error {
	var errs []error

	if cfg.Server.APIKey == "" {
		errs = append(errs, errors.New("server.apiKey is required"))
	}

	if cfg.Search.URL == "" {
		errs = append(errs, errors.New("search.url is required"))
	} else if _, err := url.Parse(cfg.Search.URL); err != nil {
		errs = append(errs, fmt.Errorf("search.url: invalid url: %w", err))
	}
	if cfg.Search.APIKey == "" {
		errs = append(errs, errors.New("search.apiKey is required"))
	}
	if cfg.Search.MinSizeGB < 0 {
		errs = append(errs, errors.New("search.minSizeGB must not be negative"))
	}
	if cfg.Search.MaxSizeGB > 0 && cfg.Search.MaxSizeGB < cfg.Search.MinSizeGB {
		errs = append(errs, errors.New("search.maxSizeGB must not be below search.minSizeGB"))
	}

	if cfg.Downloader.URL == "" {
		errs = append(errs, errors.New("downloader.url is required"))
	} else if _, err := url.Parse(cfg.Downloader.URL); err != nil {
		errs = append(errs, fmt.Errorf("downloader.url: invalid url: %w", err))
	}

	if cfg.Media.URL == "" {
		errs = append(errs, errors.New("media.url is required"))
	} else if _, err := url.Parse(cfg.Media.URL); err != nil {
		errs = append(errs, fmt.Errorf("media.url: invalid url: %w", err))
	}
	if cfg.Media.Token == "" {
		errs = append(errs, errors.New("media.token is required"))
	}

	if cfg.Organize.DownloadsPath == "" {
		errs = append(errs, errors.New("organize.downloadsPath is required"))
	}
	if cfg.Organize.LibraryPath == "" {
		errs = append(errs, errors.New("organize.libraryPath is required"))
	}
	if !validBackends[cfg.Organize.Backend] {
		errs = append(errs, fmt.Errorf("organize.backend: unknown backend %q", cfg.Organize.Backend))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}
