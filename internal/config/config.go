// Package config resolves the CLI configuration. Sources are layered, later
// ones winning: built-in defaults, the JSON config file, a .env file, GIGS_*
// environment variables and finally command-line flags.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"github.com/jmagar/gigs-cli/internal/model"
	"github.com/jmagar/gigs-cli/internal/ui"
)

// Locales with placeholder strings.
const (
	LocaleEnglish     = "en"
	LocaleTraditional = "zh-TW"
)

// Artist grouping sources.
const (
	GroupingLocal  = "local"
	GroupingServer = "server"
)

// Duration is a time.Duration read from strings like "10s" in both JSON
// and the environment.
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	s := strings.TrimSpace(string(text))
	if secs, err := strconv.Atoi(s); err == nil {
		d.Duration = time.Duration(secs) * time.Second
		return nil
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	d.Duration = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Config is the explicit configuration object handed to every component at
// startup.
type Config struct {
	APIBaseURL     string   `json:"apiBaseUrl" env:"GIGS_API_BASE_URL" validate:"required,url"`
	Locale         string   `json:"locale" env:"GIGS_LOCALE" validate:"oneof=en zh-TW"`
	UserID         string   `json:"userId" env:"GIGS_USER_ID"`
	Token          string   `json:"token,omitempty" env:"GIGS_TOKEN"`
	RequestTimeout Duration `json:"requestTimeout" env:"GIGS_REQUEST_TIMEOUT"`
	ArtistGrouping string   `json:"artistGrouping" env:"GIGS_ARTIST_GROUPING" validate:"oneof=local server"`
	AISearchLimit  int      `json:"aiSearchLimit" env:"GIGS_AI_SEARCH_LIMIT" validate:"min=1,max=100"`

	GotifyURL      string `json:"gotifyUrl,omitempty" env:"GIGS_GOTIFY_URL" validate:"omitempty,url"`
	GotifyToken    string `json:"gotifyToken,omitempty" env:"GIGS_GOTIFY_TOKEN"`
	GotifyPriority int    `json:"gotifyPriority,omitempty" env:"GIGS_GOTIFY_PRIORITY" validate:"min=0,max=10"`

	LogLevel      string `json:"logLevel" env:"GIGS_LOG_LEVEL" validate:"oneof=debug info warn error"`
	LogFormat     string `json:"logFormat" env:"GIGS_LOG_FORMAT" validate:"oneof=text json"`
	APILogPath    string `json:"apiLogPath,omitempty" env:"GIGS_API_LOG_PATH"`
	DisableAPILog bool   `json:"disableApiLog,omitempty" env:"GIGS_DISABLE_API_LOG"`
	OfflineStart  bool   `json:"offlineStart" env:"GIGS_OFFLINE_START"`
}

// Defaults returns the built-in configuration.
func Defaults() *Config {
	return &Config{
		APIBaseURL:     "http://localhost:5001",
		Locale:         LocaleEnglish,
		RequestTimeout: Duration{10 * time.Second},
		ArtistGrouping: GroupingLocal,
		AISearchLimit:  20,
		GotifyPriority: 5,
		LogLevel:       "info",
		LogFormat:      "text",
		OfflineStart:   true,
	}
}

// Placeholders returns the display strings for absent values in the
// configured locale.
func (c *Config) Placeholders() model.Placeholders {
	if c.Locale == LocaleTraditional {
		return model.Placeholders{Unknown: model.PendingValue}
	}
	return model.Placeholders{Unknown: "unknown"}
}

// ServerGrouping reports whether artist groups come from the backend.
func (c *Config) ServerGrouping() bool {
	return c.ArtistGrouping == GroupingServer
}

// Validate checks every field and returns a *model.ValidationError for the
// first bad one.
func (c *Config) Validate() error {
	if c.RequestTimeout.Duration <= 0 {
		return &model.ValidationError{Field: "requestTimeout", Reason: "must be positive"}
	}
	err := validator.New().Struct(c)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		return &model.ValidationError{
			Field:  jsonName(fe.StructField()),
			Reason: fmt.Sprintf("failed %q check (got %v)", fe.Tag(), fe.Value()),
		}
	}
	return &model.ValidationError{Field: "config", Reason: err.Error()}
}

func jsonName(field string) string {
	if f, ok := configFields()[field]; ok {
		return f
	}
	return field
}

// LoadedConfigPath tracks which config file was read so WriteConfig saves
// to the same place.
var LoadedConfigPath string

// SearchPaths lists the config file locations in lookup order.
func SearchPaths() ([]string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get home directory: %w", err)
	}
	return []string{
		"config.json",
		filepath.Join(homeDir, ".gigs", "config.json"),
		filepath.Join(homeDir, ".config", "gigs", "config.json"),
	}, nil
}

// ReadConfig overlays the first config file found onto the defaults. No
// file is not an error.
func ReadConfig() (*Config, error) {
	cfg := Defaults()
	paths, err := SearchPaths()
	if err != nil {
		return nil, err
	}

	var data []byte
	var configPath string
	for _, path := range paths {
		data, err = os.ReadFile(path)
		if err == nil {
			configPath = path
			break
		}
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config at %s: %w", path, err)
		}
	}
	LoadedConfigPath = configPath
	if data == nil {
		return cfg, nil
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config at %s: %w", configPath, err)
	}
	warnInsecurePermissions(configPath)
	return cfg, nil
}

// warnInsecurePermissions tightens a config file readable by others; it may
// hold a backend token.
func warnInsecurePermissions(configPath string) {
	fileInfo, err := os.Stat(configPath)
	if err != nil {
		return
	}
	mode := fileInfo.Mode()
	if mode.Perm()&0077 == 0 {
		return
	}
	fmt.Fprintln(os.Stderr, ui.WarningLine(fmt.Sprintf("WARNING: Config file has insecure permissions (%04o)", mode.Perm())))
	fmt.Fprintf(os.Stderr, "   File: %s\n", configPath)
	fmt.Fprintf(os.Stderr, "   Risk: Config may contain your backend token and should only be readable by you\n")
	if runtime.GOOS == "windows" {
		fmt.Fprintf(os.Stderr, "   Windows ACLs in use; skipping chmod auto-fix\n\n")
		return
	}
	if chmodErr := os.Chmod(configPath, 0600); chmodErr != nil {
		fmt.Fprintf(os.Stderr, "   Auto-fix failed: %v\n", chmodErr)
		fmt.Fprintf(os.Stderr, "   Fix manually: chmod 600 %s\n\n", configPath)
		return
	}
	fmt.Fprintf(os.Stderr, "   Auto-fix applied: chmod 600 %s\n\n", configPath)
}

// ApplyEnv loads envFile (if it exists) into the process environment
// without overriding variables already set, then overlays GIGS_* variables.
func ApplyEnv(cfg *Config, envFile string) error {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to load %s: %w", envFile, err)
		}
	}
	if err := env.Parse(cfg); err != nil {
		return fmt.Errorf("failed to parse environment: %w", err)
	}
	return nil
}

// ApplyArgs overlays explicitly passed global flags.
func ApplyArgs(cfg *Config, args *Args) {
	if args == nil {
		return
	}
	if args.BaseURL != "" {
		cfg.APIBaseURL = args.BaseURL
	}
	if args.Locale != "" {
		cfg.Locale = args.Locale
	}
	if args.User != "" {
		cfg.UserID = args.User
	}
	if args.LogLevel != "" {
		cfg.LogLevel = args.LogLevel
	}
	if args.Verbose {
		cfg.LogLevel = "debug"
	}
}

// ParseCfg resolves the full layered configuration and validates it.
func ParseCfg(args *Args) (*Config, error) {
	cfg, err := ReadConfig()
	if err != nil {
		return nil, err
	}
	envFile := ".env"
	if args != nil && args.EnvFile != "" {
		envFile = args.EnvFile
	}
	if err := ApplyEnv(cfg, envFile); err != nil {
		return nil, err
	}
	ApplyArgs(cfg, args)
	normalize(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func normalize(cfg *Config) {
	cfg.APIBaseURL = strings.TrimRight(strings.TrimSpace(cfg.APIBaseURL), "/")
	cfg.UserID = strings.TrimSpace(cfg.UserID)
	cfg.Token = strings.TrimPrefix(strings.TrimSpace(cfg.Token), "Bearer ")
	cfg.LogLevel = strings.ToLower(strings.TrimSpace(cfg.LogLevel))
	cfg.LogFormat = strings.ToLower(strings.TrimSpace(cfg.LogFormat))
	cfg.ArtistGrouping = strings.ToLower(strings.TrimSpace(cfg.ArtistGrouping))
	if strings.EqualFold(cfg.Locale, LocaleTraditional) {
		cfg.Locale = LocaleTraditional
	}
}

// ResolveAPILogPath returns the request log path, or "" when disabled.
func (c *Config) ResolveAPILogPath() (string, error) {
	if c.DisableAPILog {
		return "", nil
	}
	if c.APILogPath != "" {
		return c.APILogPath, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, ".cache", "gigs", "api.log"), nil
}

// WriteConfig writes cfg to the file ReadConfig loaded, or
// ~/.config/gigs/config.json when none was found.
func WriteConfig(cfg *Config) error {
	configData, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	targetPath := LoadedConfigPath
	if targetPath == "" {
		paths, err := SearchPaths()
		if err != nil {
			return err
		}
		targetPath = paths[len(paths)-1]
	}

	if dir := filepath.Dir(targetPath); dir != "." {
		if mkErr := os.MkdirAll(dir, 0755); mkErr != nil {
			return fmt.Errorf("failed to create config directory %s: %w", dir, mkErr)
		}
	}
	if err := os.WriteFile(targetPath, configData, 0600); err != nil {
		return fmt.Errorf("failed to write config to %s: %w", targetPath, err)
	}
	LoadedConfigPath = targetPath
	return nil
}
