package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

// Profile names a KerbalX deployment.
type Profile string

const (
	ProfileProduction  Profile = "production"
	ProfileStage       Profile = "stage"
	ProfileDevelopment Profile = "development"
)

// Config captures everything the KerbalX client needs at startup.
type Config struct {
	Profile        Profile
	RootDir        string
	TokenFile      string
	GameVersion    string
	LogLevel       string
	LogFile        string
	Theme          string
	RequestTimeout time.Duration
	RateLimit      float64
	RateBurst      int
	URLs           map[Profile]string
}

const (
	defaultConfigPath     = "~/.config/kxapi/config.toml"
	defaultTokenFile      = "KerbalX.key"
	defaultGameVersion    = "1.4.3"
	defaultLogLevel       = "info"
	defaultTheme          = "Dracula"
	defaultTimeoutSeconds = 30
	defaultRateBurst      = 1

	developmentMarker = ".kerbalx-development"
	stageMarker       = ".kerbalx-stage"
)

var defaultURLs = map[Profile]string{
	ProfileProduction:  "https://kerbalx.com",
	ProfileStage:       "https://kerbalx-stage.herokuapp.com",
	ProfileDevelopment: "http://localhost:3000",
}

type rawConfig struct {
	Profile        string            `toml:"profile"`
	RootDir        string            `toml:"root_dir"`
	TokenFile      string            `toml:"token_file"`
	GameVersion    string            `toml:"game_version"`
	LogLevel       string            `toml:"log_level"`
	LogFile        string            `toml:"log_file"`
	Theme          string            `toml:"theme"`
	TimeoutSeconds int               `toml:"request_timeout_seconds"`
	RateLimit      float64           `toml:"rate_limit"`
	RateBurst      int               `toml:"rate_burst"`
	URLs           map[string]string `toml:"urls"`
}

// Load locates and parses the config, falling back to defaults when missing.
// The profile is resolved once here.
func Load(path string) (Config, error) {
	resolved, err := resolvePath(path)
	if err != nil {
		return Config{}, err
	}

	var raw rawConfig
	file, err := os.Open(resolved)
	switch {
	case err == nil:
		defer file.Close()
		bytes, err := io.ReadAll(file)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := toml.Unmarshal(bytes, &raw); err != nil {
			return Config{}, fmt.Errorf("parse config: %w", err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return Config{}, fmt.Errorf("open config: %w", err)
	}

	return fromRaw(raw)
}

func fromRaw(raw rawConfig) (Config, error) {
	cfg := Config{
		TokenFile:      orDefault(raw.TokenFile, defaultTokenFile),
		GameVersion:    orDefault(raw.GameVersion, defaultGameVersion),
		LogLevel:       orDefault(raw.LogLevel, defaultLogLevel),
		LogFile:        strings.TrimSpace(raw.LogFile),
		Theme:          orDefault(raw.Theme, defaultTheme),
		RequestTimeout: defaultTimeoutSeconds * time.Second,
		RateBurst:      defaultRateBurst,
		URLs:           make(map[Profile]string, len(defaultURLs)),
	}

	rootDir, err := expandPath(orDefault(raw.RootDir, "."))
	if err != nil {
		return Config{}, fmt.Errorf("resolve root_dir: %w", err)
	}
	cfg.RootDir = rootDir

	if raw.TimeoutSeconds > 0 {
		cfg.RequestTimeout = time.Duration(raw.TimeoutSeconds) * time.Second
	}
	if raw.RateLimit < 0 {
		return Config{}, fmt.Errorf("rate_limit must not be negative")
	}
	cfg.RateLimit = raw.RateLimit
	if raw.RateBurst > 0 {
		cfg.RateBurst = raw.RateBurst
	}

	for profile, url := range defaultURLs {
		cfg.URLs[profile] = url
	}
	for name, url := range raw.URLs {
		profile, err := ParseProfile(name)
		if err != nil {
			return Config{}, fmt.Errorf("urls: %w", err)
		}
		if trimmed := strings.TrimSpace(url); trimmed != "" {
			cfg.URLs[profile] = strings.TrimRight(trimmed, "/")
		}
	}

	if name := strings.TrimSpace(raw.Profile); name != "" {
		profile, err := ParseProfile(name)
		if err != nil {
			return Config{}, err
		}
		cfg.Profile = profile
	} else {
		cfg.Profile = detectProfile(cfg.RootDir)
	}
	return cfg, nil
}

// ParseProfile validates a profile name.
func ParseProfile(name string) (Profile, error) {
	switch p := Profile(strings.ToLower(strings.TrimSpace(name))); p {
	case ProfileProduction, ProfileStage, ProfileDevelopment:
		return p, nil
	default:
		return "", fmt.Errorf("unknown profile %q", name)
	}
}

// BaseURL returns the URL of the resolved profile.
func (c Config) BaseURL() string {
	if url, ok := c.URLs[c.Profile]; ok && url != "" {
		return url
	}
	return defaultURLs[ProfileProduction]
}

// TokenPath returns the token file location; relative names resolve
// against RootDir.
func (c Config) TokenPath() string {
	name := orDefault(c.TokenFile, defaultTokenFile)
	if filepath.IsAbs(name) || strings.HasPrefix(name, "~") {
		return name
	}
	return filepath.Join(c.RootDir, name)
}

// LogPath returns the log file location, or "" when logging goes to stderr.
// Relative names resolve against RootDir.
func (c Config) LogPath() string {
	if c.LogFile == "" {
		return ""
	}
	if filepath.IsAbs(c.LogFile) || strings.HasPrefix(c.LogFile, "~") {
		return c.LogFile
	}
	return filepath.Join(c.RootDir, c.LogFile)
}

// detectProfile picks a profile from marker files in dir. Development wins
// over stage; no marker means production.
func detectProfile(dir string) Profile {
	if fileExists(filepath.Join(dir, developmentMarker)) {
		return ProfileDevelopment
	}
	if fileExists(filepath.Join(dir, stageMarker)) {
		return ProfileStage
	}
	return ProfileProduction
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func orDefault(value, fallback string) string {
	if trimmed := strings.TrimSpace(value); trimmed != "" {
		return trimmed
	}
	return fallback
}

func resolvePath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return expandPath(defaultConfigPath)
	}
	return expandPath(path)
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", fmt.Errorf("path is empty")
	}
	if strings.HasPrefix(trimmed, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		trimmed = filepath.Join(home, strings.TrimPrefix(trimmed, "~"))
	}
	return filepath.Abs(trimmed)
}
