// Copyright (c) 2025, fl4pj4ck and the jellytrailers contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package config loads the TOML configuration file, applies environment
// variable overrides and watches the file for changes at runtime.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"

	"github.com/fl4pj4ck/jellytrailers/internal/domain"
)

// EnvPrefix is the prefix for environment variable overrides, e.g.
// JELLYTRAILERS__LOG_LEVEL maps to the logLevel config key.
const EnvPrefix = "JELLYTRAILERS__"

var configTemplate = `# config.toml

# Hostname / IP
#
# Default: "localhost"
#
host = "{{ .host }}"

# Port
#
# Default: 7979
#
port = 7979

# Jellyfin server URL the pipeline reads libraries from.
#
jellyfinUrl = "http://localhost:8096"

# Jellyfin API key.
#
jellyfinApiKey = ""

# Path to the yt-dlp binary. Leave empty to use the managed copy
# downloaded into the data directory.
#
#ytDlpPath = ""

# Trailer file name written inside each media folder. Relative paths
# only; anything escaping the folder is replaced with the default.
#
# Default: "trailer.mp4"
#
#trailerPath = "trailer.mp4"

# Download quality: best, 1080p, 720p or 480p.
#
# Default: "720p"
#
#quality = "720p"

# Seconds to wait between downloads.
#
# Default: 0
#
#delaySeconds = 0

# Seconds to wait before retrying a failed download.
#
# Default: 0
#
#retryDelaySeconds = 0

# Maximum trailers fetched per run. 0 means unlimited.
#
# Default: 0
#
#maxTrailersPerRun = 0

# Extra yt-dlp options as a flat JSON object, e.g.
# {"proxy": "socks5://127.0.0.1:9050", "limit-rate": "2M"}
# Only network and format related options are honored.
#
#ytDlpOptionsJson = ""

# Query the media server for remote trailer URLs when the search
# download fails.
#
# Default: false
#
#useMetadataFallback = false

# Comma separated library names to include. Empty means all.
#
#includeLibraryNames = ""

# Comma separated library names to exclude.
#
#excludeLibraryNames = ""

# Minutes between scheduled runs. 0 disables the scheduler.
#
# Default: 0
#
#scanIntervalMinutes = 0

# Log file path. Leave empty to log to stdout only.
#
# Optional
#
#logPath = ""

# Log level
#
# Default: "INFO"
#
# Options: "ERROR", "DEBUG", "INFO", "WARN", "TRACE"
#
logLevel = "{{ .logLevel }}"

# Log max size in megabytes before rotation.
#
# Default: 50
#
#logMaxSize = 50

# Log max backups to keep.
#
# Default: 3
#
#logMaxBackups = 3
`

// AppConfig owns the live configuration and the viper instance backing it.
type AppConfig struct {
	Config *domain.Config

	viper *viper.Viper
	mu    sync.Mutex
}

// New loads the configuration from configPath (a directory or a config.toml
// file), creating a default config file on first run.
func New(configPath string, version string) (*AppConfig, error) {
	c := &AppConfig{
		viper: viper.New(),
	}
	c.defaults(version)

	if err := c.load(configPath); err != nil {
		return nil, err
	}
	if err := c.unmarshal(); err != nil {
		return nil, err
	}

	return c, nil
}

func (c *AppConfig) defaults(version string) {
	c.Config = &domain.Config{
		Version:       version,
		Host:          "localhost",
		Port:          7979,
		LogLevel:      "INFO",
		LogMaxSize:    50,
		LogMaxBackups: 3,
		TrailerPath:   domain.DefaultTrailerPath,
		Quality:       domain.Quality720p,
	}

	c.viper.SetDefault("host", c.Config.Host)
	c.viper.SetDefault("port", c.Config.Port)
	c.viper.SetDefault("logLevel", c.Config.LogLevel)
	c.viper.SetDefault("logPath", c.Config.LogPath)
	c.viper.SetDefault("logMaxSize", c.Config.LogMaxSize)
	c.viper.SetDefault("logMaxBackups", c.Config.LogMaxBackups)
	c.viper.SetDefault("dataDir", c.Config.DataDir)
	c.viper.SetDefault("jellyfinUrl", c.Config.JellyfinURL)
	c.viper.SetDefault("jellyfinApiKey", c.Config.JellyfinAPIKey)
	c.viper.SetDefault("ytDlpPath", c.Config.YtDlpPath)
	c.viper.SetDefault("trailerPath", c.Config.TrailerPath)
	c.viper.SetDefault("quality", c.Config.Quality)
	c.viper.SetDefault("delaySeconds", c.Config.DelaySeconds)
	c.viper.SetDefault("retryDelaySeconds", c.Config.RetryDelaySeconds)
	c.viper.SetDefault("maxTrailersPerRun", c.Config.MaxTrailersPerRun)
	c.viper.SetDefault("ytDlpOptionsJson", c.Config.YtDlpOptionsJSON)
	c.viper.SetDefault("useMetadataFallback", c.Config.UseMetadataFallback)
	c.viper.SetDefault("includeLibraryNames", c.Config.IncludeLibraryNames)
	c.viper.SetDefault("excludeLibraryNames", c.Config.ExcludeLibraryNames)
	c.viper.SetDefault("scanIntervalMinutes", c.Config.ScanIntervalMinutes)
}

func (c *AppConfig) load(configPath string) error {
	c.viper.SetConfigType("toml")

	if configPath != "" {
		if filepath.Ext(configPath) != ".toml" {
			configPath = filepath.Join(configPath, "config.toml")
		}
		configPath = os.ExpandEnv(configPath)

		if err := c.writeConfig(configPath); err != nil {
			return fmt.Errorf("write default config: %w", err)
		}

		c.viper.SetConfigFile(configPath)
	} else {
		c.viper.SetConfigName("config")
		c.viper.AddConfigPath(".")
		c.viper.AddConfigPath("$HOME/.config/jellytrailers")
		c.viper.AddConfigPath("$HOME/.jellytrailers")
	}

	c.loadFromEnv()

	if err := c.viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("config read error: %w", err)
	}

	return nil
}

// loadFromEnv maps JELLYTRAILERS__ environment variables onto config keys.
// The env name is the upper snake case form of the key, so
// JELLYTRAILERS__MAX_TRAILERS_PER_RUN overrides maxTrailersPerRun.
func (c *AppConfig) loadFromEnv() {
	keys := []string{
		"host", "port", "logLevel", "logPath", "logMaxSize", "logMaxBackups",
		"dataDir", "jellyfinUrl", "jellyfinApiKey", "ytDlpPath", "trailerPath",
		"quality", "delaySeconds", "retryDelaySeconds", "maxTrailersPerRun",
		"ytDlpOptionsJson", "useMetadataFallback", "includeLibraryNames",
		"excludeLibraryNames", "scanIntervalMinutes",
	}
	for _, key := range keys {
		if v, ok := os.LookupEnv(EnvPrefix + envName(key)); ok {
			c.viper.Set(key, v)
		}
	}
}

// envName converts a camelCase config key to UPPER_SNAKE_CASE.
func envName(key string) string {
	var b strings.Builder
	for i, r := range key {
		if r >= 'A' && r <= 'Z' && i > 0 {
			b.WriteByte('_')
		}
		b.WriteRune(r)
	}
	return strings.ToUpper(b.String())
}

func (c *AppConfig) writeConfig(configPath string) error {
	if _, err := os.Stat(configPath); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return err
	}

	host := "localhost"
	if _, err := os.Stat("/.dockerenv"); err == nil {
		host = "0.0.0.0"
	} else if p, err := os.ReadFile("/proc/1/cgroup"); err == nil && strings.Contains(string(p), "docker") {
		host = "0.0.0.0"
	}

	body := strings.ReplaceAll(configTemplate, "{{ .host }}", host)
	body = strings.ReplaceAll(body, "{{ .logLevel }}", "INFO")

	return os.WriteFile(configPath, []byte(body), 0644)
}

func (c *AppConfig) unmarshal() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.viper.Unmarshal(c.Config); err != nil {
		return fmt.Errorf("config unmarshal: %w", err)
	}
	return nil
}

// DynamicReload re-reads the config file whenever it changes on disk and
// applies the settings that are safe to change at runtime.
func (c *AppConfig) DynamicReload() {
	c.viper.OnConfigChange(func(e fsnotify.Event) {
		if err := c.unmarshal(); err != nil {
			log.Error().Err(err).Msg("Failed to reload config")
			return
		}

		setLogLevel(c.Config.LogLevel)

		log.Debug().Str("file", e.Name).Msg("Config file reloaded")
	})
	c.viper.WatchConfig()
}

// RunConfig returns the validated pipeline settings derived from the
// current configuration.
func (c *AppConfig) RunConfig() domain.RunConfig {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.Config.Normalize()
}

func setLogLevel(level string) {
	switch strings.ToUpper(level) {
	case "TRACE":
		zerolog.SetGlobalLevel(zerolog.TraceLevel)
	case "DEBUG":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "INFO":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "WARN":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "ERROR":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}
