// Package config manages authdeck configuration.
//
// Settings are stored in YAML at $AUTHDECK_HOME/config.yaml (default
// ~/.authdeck/config.yaml). Environment variables named AUTHDECK_* override
// values read from the file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/Dicklesworthstone/authdeck/internal/form"
)

// Provider IDs accepted in the provider setting.
const (
	ProviderFirebase = "firebase"
	ProviderLocal    = "local"
)

// Config holds authdeck configuration.
type Config struct {
	Version  int            `yaml:"version"`
	Provider string         `yaml:"provider" env:"AUTHDECK_PROVIDER"`
	Locale   string         `yaml:"locale" env:"AUTHDECK_LOCALE"` // "" follows LANG
	Firebase FirebaseConfig `yaml:"firebase"`
	Local    LocalConfig    `yaml:"local"`
	Forms    FormsConfig    `yaml:"forms"`
	Avatar   AvatarConfig   `yaml:"avatar"`
	Runtime  RuntimeConfig  `yaml:"runtime"`
	Log      LogConfig      `yaml:"log"`
}

// FirebaseConfig configures the Identity Toolkit REST provider.
type FirebaseConfig struct {
	APIKey             string `yaml:"api_key" env:"AUTHDECK_FIREBASE_API_KEY"`
	IdentityToolkitURL string `yaml:"identity_toolkit_url,omitempty" env:"AUTHDECK_FIREBASE_IDENTITY_TOOLKIT_URL"`
	SecureTokenURL     string `yaml:"secure_token_url,omitempty" env:"AUTHDECK_FIREBASE_SECURE_TOKEN_URL"`
}

// LocalConfig configures the offline sqlite provider.
type LocalConfig struct {
	DBPath            string   `yaml:"db_path,omitempty" env:"AUTHDECK_LOCAL_DB_PATH"`
	SigningKey        string   `yaml:"signing_key,omitempty" env:"AUTHDECK_LOCAL_SIGNING_KEY"` // empty uses a generated key file
	AllowSignup       bool     `yaml:"allow_signup" env:"AUTHDECK_LOCAL_ALLOW_SIGNUP"`
	MaxFailedAttempts int      `yaml:"max_failed_attempts" env:"AUTHDECK_LOCAL_MAX_FAILED_ATTEMPTS"` // 0 disables lockout
	LockoutWindow     Duration `yaml:"lockout_window" env:"AUTHDECK_LOCAL_LOCKOUT_WINDOW"`
	TokenTTL          Duration `yaml:"token_ttl" env:"AUTHDECK_LOCAL_TOKEN_TTL"`
	ResetTTL          Duration `yaml:"reset_ttl" env:"AUTHDECK_LOCAL_RESET_TTL"`
}

// FormsConfig controls form submission.
type FormsConfig struct {
	SubmitPolicy string `yaml:"submit_policy" env:"AUTHDECK_SUBMIT_POLICY"` // "block" | "submit-anyway"
}

// AvatarConfig controls where profile images come from. CameraCommand is
// split with shell quoting; {output} is replaced by the capture path.
type AvatarConfig struct {
	LibraryDir    string `yaml:"library_dir" env:"AUTHDECK_AVATAR_LIBRARY_DIR"`
	CameraCommand string `yaml:"camera_command,omitempty" env:"AUTHDECK_AVATAR_CAMERA_COMMAND"`
	CacheDir      string `yaml:"cache_dir,omitempty" env:"AUTHDECK_AVATAR_CACHE_DIR"`
}

// RuntimeConfig contains runtime behavior settings.
type RuntimeConfig struct {
	FileWatching     bool     `yaml:"file_watching" env:"AUTHDECK_FILE_WATCHING"` // Follow sign-ins from other processes
	DebounceInterval Duration `yaml:"debounce_interval" env:"AUTHDECK_DEBOUNCE_INTERVAL"`
	RequestTimeout   Duration `yaml:"request_timeout" env:"AUTHDECK_REQUEST_TIMEOUT"`
}

// LogConfig controls the log file.
type LogConfig struct {
	Level string `yaml:"level" env:"AUTHDECK_LOG_LEVEL"`
	Path  string `yaml:"path,omitempty" env:"AUTHDECK_LOG_PATH"`
}

// Duration is a time.Duration that supports YAML marshaling/unmarshaling
// with human-readable formats like "10m", "1h", "30s".
type Duration time.Duration

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	return d.UnmarshalText([]byte(s))
}

// UnmarshalText parses environment values.
func (d *Duration) UnmarshalText(b []byte) error {
	s := strings.TrimSpace(string(b))
	dur, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	if dur < 0 {
		return fmt.Errorf("duration cannot be negative: %s", s)
	}
	*d = Duration(dur)
	return nil
}

// Duration returns the underlying time.Duration.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// String returns the string representation of the duration.
func (d Duration) String() string {
	return time.Duration(d).String()
}

// HomeDir returns $AUTHDECK_HOME, or ~/.authdeck.
func HomeDir() string {
	if h := os.Getenv("AUTHDECK_HOME"); h != "" {
		return h
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ".authdeck"
	}
	return filepath.Join(homeDir, ".authdeck")
}

// Path returns the config file path.
func Path() string {
	return filepath.Join(HomeDir(), "config.yaml")
}

// Defaults returns the default configuration.
func Defaults() *Config {
	library := ""
	if homeDir, err := os.UserHomeDir(); err == nil {
		library = filepath.Join(homeDir, "Pictures")
	}
	return &Config{
		Version:  1,
		Provider: ProviderLocal,
		Firebase: FirebaseConfig{},
		Local: LocalConfig{
			AllowSignup:       true,
			MaxFailedAttempts: 5,
			LockoutWindow:     Duration(15 * time.Minute),
			TokenTTL:          Duration(time.Hour),
			ResetTTL:          Duration(time.Hour),
		},
		Forms: FormsConfig{
			SubmitPolicy: string(form.PolicyBlock),
		},
		Avatar: AvatarConfig{
			LibraryDir: library,
		},
		Runtime: RuntimeConfig{
			FileWatching:     true,
			DebounceInterval: Duration(200 * time.Millisecond),
			RequestTimeout:   Duration(15 * time.Second),
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads the config file, applies environment overrides and validates
// the result. A missing file yields the defaults.
func Load() (*Config, error) {
	return LoadFrom(Path())
}

// LoadFrom is Load for an explicit path.
func LoadFrom(path string) (*Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("read config: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the configuration to Path().
func (c *Config) Save() error {
	return c.SaveTo(Path())
}

// SaveTo writes the configuration atomically.
func (c *Config) SaveTo(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	// Atomic write: write to temp file, fsync, then rename
	tmpPath := path + ".tmp"
	tmpFile, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	if _, err := tmpFile.Write(data); err != nil {
		tmpFile.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		tmpFile.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	var errs []error

	switch c.Provider {
	case ProviderLocal:
	case ProviderFirebase:
		if strings.TrimSpace(c.Firebase.APIKey) == "" {
			errs = append(errs, errors.New("firebase.api_key is required when provider is firebase"))
		}
	default:
		errs = append(errs, fmt.Errorf("provider: unknown provider %q (want %s or %s)", c.Provider, ProviderFirebase, ProviderLocal))
	}

	switch strings.ToLower(c.Locale) {
	case "", "vi", "en":
	default:
		errs = append(errs, fmt.Errorf("locale: unsupported locale %q", c.Locale))
	}

	if _, err := form.ParsePolicy(c.Forms.SubmitPolicy); err != nil {
		errs = append(errs, fmt.Errorf("forms.submit_policy: %w", err))
	}

	if c.Local.MaxFailedAttempts < 0 {
		errs = append(errs, errors.New("local.max_failed_attempts cannot be negative"))
	}
	if c.Local.MaxFailedAttempts > 0 && c.Local.LockoutWindow <= 0 {
		errs = append(errs, errors.New("local.lockout_window must be positive when lockout is enabled"))
	}
	if c.Local.TokenTTL <= 0 {
		errs = append(errs, errors.New("local.token_ttl must be positive"))
	}
	if c.Local.ResetTTL <= 0 {
		errs = append(errs, errors.New("local.reset_ttl must be positive"))
	}

	if c.Runtime.RequestTimeout <= 0 {
		errs = append(errs, errors.New("runtime.request_timeout must be positive"))
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log.level: unknown level %q", c.Log.Level))
	}

	return errors.Join(errs...)
}

// SubmitPolicy returns the parsed form submit policy.
func (c *Config) SubmitPolicy() form.SubmitPolicy {
	p, err := form.ParsePolicy(c.Forms.SubmitPolicy)
	if err != nil {
		return form.PolicyBlock
	}
	return p
}

// DBPath returns the sqlite path, defaulting under HomeDir.
func (c *Config) DBPath() string {
	if c.Local.DBPath != "" {
		return c.Local.DBPath
	}
	return filepath.Join(HomeDir(), "data", "authdeck.db")
}

// LogPath returns the log file path, defaulting under HomeDir.
func (c *Config) LogPath() string {
	if c.Log.Path != "" {
		return c.Log.Path
	}
	return filepath.Join(HomeDir(), "authdeck.log")
}

// AvatarCacheDir returns the capture directory, defaulting under HomeDir.
func (c *Config) AvatarCacheDir() string {
	if c.Avatar.CacheDir != "" {
		return c.Avatar.CacheDir
	}
	return filepath.Join(HomeDir(), "cache", "avatar")
}

// SessionPath returns the persisted session file path.
func (c *Config) SessionPath() string {
	return filepath.Join(HomeDir(), "session.json")
}

// SigningKeyPath returns the generated local signing key path.
func (c *Config) SigningKeyPath() string {
	return filepath.Join(HomeDir(), "local.key")
}
