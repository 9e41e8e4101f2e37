package config

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/jmagar/gigs-cli/internal/model"
	"github.com/jmagar/gigs-cli/internal/testutil"
)

func isolate(t *testing.T) string {
	t.Helper()
	sb := testutil.NewSandbox(t)
	LoadedConfigPath = ""
	t.Cleanup(func() { LoadedConfigPath = "" })
	return sb.Home
}

func writeFile(t *testing.T, path, content string, perm os.FileMode) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), perm); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestDefaults_AreValid(t *testing.T) {
	cfg := Defaults()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Defaults().Validate() = %v", err)
	}
	if cfg.RequestTimeout.Duration != 10*time.Second {
		t.Errorf("RequestTimeout = %v, want 10s", cfg.RequestTimeout)
	}
	if cfg.ServerGrouping() {
		t.Error("default grouping should be local")
	}
}

func TestPlaceholders_FollowLocale(t *testing.T) {
	cfg := Defaults()
	if got := cfg.Placeholders().Unknown; got != "unknown" {
		t.Errorf("en placeholder = %q", got)
	}
	cfg.Locale = LocaleTraditional
	if got := cfg.Placeholders().Unknown; got != "待確認" {
		t.Errorf("zh-TW placeholder = %q", got)
	}
}

func TestReadConfig_NoFileUsesDefaults(t *testing.T) {
	isolate(t)
	cfg, err := ReadConfig()
	if err != nil {
		t.Fatalf("ReadConfig() error = %v", err)
	}
	if cfg.APIBaseURL != Defaults().APIBaseURL {
		t.Errorf("APIBaseURL = %q", cfg.APIBaseURL)
	}
	if LoadedConfigPath != "" {
		t.Errorf("LoadedConfigPath = %q, want empty", LoadedConfigPath)
	}
}

func TestReadConfig_HomeFileOverlaysAndTightensPermissions(t *testing.T) {
	home := isolate(t)
	path := filepath.Join(home, ".gigs", "config.json")
	writeFile(t, path, `{"apiBaseUrl":"https://gigs.example.com/","locale":"zh-TW","requestTimeout":"3s","userId":"u-1"}`, 0644)

	cfg, err := ReadConfig()
	if err != nil {
		t.Fatalf("ReadConfig() error = %v", err)
	}
	if LoadedConfigPath != path {
		t.Errorf("LoadedConfigPath = %q, want %q", LoadedConfigPath, path)
	}
	if cfg.Locale != LocaleTraditional || cfg.UserID != "u-1" || cfg.RequestTimeout.Duration != 3*time.Second {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.AISearchLimit != 20 {
		t.Errorf("unset key lost its default: AISearchLimit = %d", cfg.AISearchLimit)
	}
	if runtime.GOOS != "windows" {
		info, err := os.Stat(path)
		if err != nil {
			t.Fatalf("stat: %v", err)
		}
		if info.Mode().Perm() != 0600 {
			t.Errorf("permissions = %04o, want 0600", info.Mode().Perm())
		}
	}
}

func TestReadConfig_MalformedFile(t *testing.T) {
	isolate(t)
	writeFile(t, "config.json", `{"locale":`, 0600)
	if _, err := ReadConfig(); err == nil {
		t.Fatal("ReadConfig() error = nil, want parse error")
	}
}

func TestParseCfg_LayerPrecedence(t *testing.T) {
	isolate(t)
	writeFile(t, "config.json", `{"apiBaseUrl":"http://file:5001","userId":"file-user","aiSearchLimit":7}`, 0600)
	writeFile(t, ".env", "GIGS_USER_ID=dotenv-user\nGIGS_LOG_FORMAT=json\n", 0600)
	t.Setenv("GIGS_AI_SEARCH_LIMIT", "9")
	t.Setenv("GIGS_REQUEST_TIMEOUT", "2500ms")

	cfg, err := ParseCfg(&Args{BaseURL: "http://flag:5001/", Verbose: true})
	if err != nil {
		t.Fatalf("ParseCfg() error = %v", err)
	}
	if cfg.APIBaseURL != "http://flag:5001" {
		t.Errorf("APIBaseURL = %q, flag should win and trailing slash trimmed", cfg.APIBaseURL)
	}
	if cfg.UserID != "dotenv-user" {
		t.Errorf("UserID = %q, .env should override file", cfg.UserID)
	}
	if cfg.AISearchLimit != 9 {
		t.Errorf("AISearchLimit = %d, env should override file", cfg.AISearchLimit)
	}
	if cfg.RequestTimeout.Duration != 2500*time.Millisecond {
		t.Errorf("RequestTimeout = %v", cfg.RequestTimeout)
	}
	if cfg.LogLevel != "debug" || cfg.LogFormat != "json" {
		t.Errorf("LogLevel/LogFormat = %q/%q", cfg.LogLevel, cfg.LogFormat)
	}
}

func TestValidate_RejectsBadValues(t *testing.T) {
	tests := []struct {
		name  string
		edit  func(*Config)
		field string
	}{
		{"locale", func(c *Config) { c.Locale = "fr" }, "locale"},
		{"base url", func(c *Config) { c.APIBaseURL = "not a url" }, "apiBaseUrl"},
		{"grouping", func(c *Config) { c.ArtistGrouping = "both" }, "artistGrouping"},
		{"limit", func(c *Config) { c.AISearchLimit = 0 }, "aiSearchLimit"},
		{"timeout", func(c *Config) { c.RequestTimeout = Duration{} }, "requestTimeout"},
		{"log level", func(c *Config) { c.LogLevel = "trace" }, "logLevel"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.edit(cfg)
			err := cfg.Validate()
			var verr *model.ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("Validate() = %v, want ValidationError", err)
			}
			if verr.Field != tt.field {
				t.Errorf("Field = %q, want %q", verr.Field, tt.field)
			}
		})
	}
}

func TestSet_ValidatesAndLeavesConfigOnError(t *testing.T) {
	cfg := Defaults()
	if err := cfg.Set("locale", "zh-tw"); err != nil {
		t.Fatalf("Set(locale) error = %v", err)
	}
	if cfg.Locale != LocaleTraditional {
		t.Errorf("Locale = %q", cfg.Locale)
	}
	if err := cfg.Set("requestTimeout", "15"); err != nil {
		t.Fatalf("Set(requestTimeout) error = %v", err)
	}
	if cfg.RequestTimeout.Duration != 15*time.Second {
		t.Errorf("RequestTimeout = %v", cfg.RequestTimeout)
	}
	if err := cfg.Set("aiSearchLimit", "many"); !errors.Is(err, model.ErrValidation) {
		t.Errorf("Set(aiSearchLimit, many) = %v, want validation error", err)
	}
	if err := cfg.Set("artistGrouping", "remote"); err == nil {
		t.Error("Set(artistGrouping, remote) accepted an invalid value")
	}
	if cfg.ArtistGrouping != GroupingLocal {
		t.Errorf("failed Set modified config: %q", cfg.ArtistGrouping)
	}
	if err := cfg.Set("noSuchKey", "x"); err == nil {
		t.Error("Set(noSuchKey) = nil, want error")
	}
}

func TestEntries_MasksSecrets(t *testing.T) {
	cfg := Defaults()
	cfg.Token = "secret"
	for _, e := range cfg.Entries() {
		switch e.Key {
		case "token":
			if e.Value != "********" {
				t.Errorf("token shown as %q", e.Value)
			}
		case "requestTimeout":
			if e.Value != "10s" {
				t.Errorf("requestTimeout shown as %q", e.Value)
			}
		}
	}
}

func TestWriteConfig_RoundTrip(t *testing.T) {
	home := isolate(t)
	cfg := Defaults()
	cfg.UserID = "writer"
	if err := WriteConfig(cfg); err != nil {
		t.Fatalf("WriteConfig() error = %v", err)
	}
	want := filepath.Join(home, ".config", "gigs", "config.json")
	if LoadedConfigPath != want {
		t.Errorf("LoadedConfigPath = %q, want %q", LoadedConfigPath, want)
	}

	LoadedConfigPath = ""
	got, err := ReadConfig()
	if err != nil {
		t.Fatalf("ReadConfig() error = %v", err)
	}
	if got.UserID != "writer" || got.RequestTimeout.Duration != 10*time.Second {
		t.Errorf("round trip = %+v", got)
	}
}
