package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Operating modes; one per deployment.
const (
	ModeSummarize = "summarize"
	ModeProxy     = "proxy"
)

// Store drivers.
const (
	StoreDriverGorm     = "gorm"
	StoreDriverSupabase = "supabase"
)

// DefaultConfigPath is used when no path is given and the file exists.
const DefaultConfigPath = "config.yaml"

// DotEnvPath is the optional dotenv file read from the working directory.
const DotEnvPath = ".env"

// AppConfig is the full process configuration.
type AppConfig struct {
	ConfigPath string `yaml:"-"`

	Server   ServerConfig   `yaml:"server"`
	Auth     AuthConfig     `yaml:"auth"`
	Store    StoreConfig    `yaml:"store"`
	Provider ProviderConfig `yaml:"provider"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Host               string        `yaml:"host"`
	Port               int           `yaml:"port"`
	Name               string        `yaml:"name"`
	Mode               string        `yaml:"mode"`
	CORSAllowedOrigins []string      `yaml:"cors_allowed_origins"`
	ShutdownTimeout    time.Duration `yaml:"shutdown_timeout"`
}

// AuthConfig holds the shared bearer signing secret.
type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
}

// StoreConfig selects and configures the record store.
type StoreConfig struct {
	Driver             string        `yaml:"driver"`
	DSN                string        `yaml:"dsn"`
	SupabaseURL        string        `yaml:"supabase_url"`
	SupabaseServiceKey string        `yaml:"supabase_service_key"`
	Timeout            time.Duration `yaml:"timeout"`
}

// ProviderConfig configures the upstream LLM API and request defaults.
type ProviderConfig struct {
	APIKey             string        `yaml:"api_key"`
	BaseURL            string        `yaml:"base_url"`
	Timeout            time.Duration `yaml:"timeout"`
	DefaultModel       string        `yaml:"default_model"`
	DefaultTemperature float64       `yaml:"default_temperature"`
	BaseMaxTokens      int           `yaml:"base_max_tokens"`
}

// LoggingConfig configures logrus output.
type LoggingConfig struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

// Default returns the configuration used before file and environment overrides.
func Default() AppConfig {
	return AppConfig{
		Server: ServerConfig{
			Host:               "0.0.0.0",
			Port:               8080,
			Name:               "AI Summarization API",
			Mode:               ModeSummarize,
			CORSAllowedOrigins: []string{"*"},
			ShutdownTimeout:    10 * time.Second,
		},
		Store: StoreConfig{
			Timeout: 5 * time.Second,
		},
		Provider: ProviderConfig{
			Timeout:            60 * time.Second,
			DefaultModel:       "gpt-3.5-turbo",
			DefaultTemperature: 0.5,
			BaseMaxTokens:      500,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "text",
			MaxSizeMB:  100,
			MaxBackups: 5,
			MaxAgeDays: 30,
			Compress:   true,
		},
	}
}

// ResolveConfigPath returns path, or DefaultConfigPath when path is empty and that file exists.
func ResolveConfigPath(path string) string {
	if trimmed := strings.TrimSpace(path); trimmed != "" {
		return trimmed
	}
	if ConfigExists(DefaultConfigPath) {
		return DefaultConfigPath
	}
	return ""
}

// ConfigExists reports whether a config file exists at path.
func ConfigExists(path string) bool {
	if strings.TrimSpace(path) == "" {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// Load reads defaults, then the YAML file at path (when set), then environment overrides.
// Variables in a .env file in the working directory apply unless the real environment sets them.
func Load(path string) (AppConfig, error) {
	cfg := Default()
	path = ResolveConfigPath(path)
	if path != "" {
		data, errRead := os.ReadFile(path)
		if errRead != nil {
			return AppConfig{}, fmt.Errorf("config: read %s: %w", path, errRead)
		}
		if errYAML := yaml.Unmarshal(data, &cfg); errYAML != nil {
			return AppConfig{}, fmt.Errorf("config: parse %s: %w", path, errYAML)
		}
		cfg.ConfigPath = path
	}

	v, errEnv := newEnv(DotEnvPath)
	if errEnv != nil {
		return AppConfig{}, errEnv
	}
	applyEnv(&cfg, v)
	cfg.normalize()
	return cfg, nil
}

func newEnv(dotEnvPath string) (*viper.Viper, error) {
	v := viper.New()
	if ConfigExists(dotEnvPath) {
		v.SetConfigFile(dotEnvPath)
		v.SetConfigType("env")
		if errRead := v.ReadInConfig(); errRead != nil {
			return nil, fmt.Errorf("config: read %s: %w", dotEnvPath, errRead)
		}
	}
	v.AutomaticEnv()
	return v, nil
}

// applyEnv overlays recognized environment variables on cfg.
func applyEnv(cfg *AppConfig, v *viper.Viper) {
	setString := func(key string, dst *string) {
		if v.IsSet(key) {
			*dst = strings.TrimSpace(v.GetString(key))
		}
	}

	setString("APP_HOST", &cfg.Server.Host)
	if v.IsSet("APP_PORT") {
		cfg.Server.Port = v.GetInt("APP_PORT")
	}
	setString("SERVICE_NAME", &cfg.Server.Name)
	setString("APP_MODE", &cfg.Server.Mode)
	if v.IsSet("CORS_ALLOWED_ORIGINS") {
		cfg.Server.CORSAllowedOrigins = splitList(v.GetString("CORS_ALLOWED_ORIGINS"))
	}

	setString("JWT_SECRET", &cfg.Auth.JWTSecret)

	setString("STORE_DRIVER", &cfg.Store.Driver)
	setString("DATABASE_DSN", &cfg.Store.DSN)
	setString("SUPABASE_URL", &cfg.Store.SupabaseURL)
	setString("SUPABASE_SERVICE_KEY", &cfg.Store.SupabaseServiceKey)
	if v.IsSet("STORE_TIMEOUT") {
		cfg.Store.Timeout = v.GetDuration("STORE_TIMEOUT")
	}

	setString("OPENAI_API_KEY", &cfg.Provider.APIKey)
	setString("OPENAI_BASE_URL", &cfg.Provider.BaseURL)
	setString("OPENAI_MODEL", &cfg.Provider.DefaultModel)
	if v.IsSet("PROVIDER_TIMEOUT") {
		cfg.Provider.Timeout = v.GetDuration("PROVIDER_TIMEOUT")
	}

	setString("LOG_LEVEL", &cfg.Logging.Level)
	setString("LOG_FORMAT", &cfg.Logging.Format)
	setString("LOG_FILE", &cfg.Logging.File)
}

func (cfg *AppConfig) normalize() {
	cfg.Server.Mode = strings.ToLower(strings.TrimSpace(cfg.Server.Mode))
	cfg.Store.Driver = strings.ToLower(strings.TrimSpace(cfg.Store.Driver))
	if cfg.Store.Driver == "" {
		switch {
		case cfg.Store.DSN != "":
			cfg.Store.Driver = StoreDriverGorm
		case cfg.Store.SupabaseURL != "":
			cfg.Store.Driver = StoreDriverSupabase
		}
	}
}

// Validate reports missing or inconsistent settings.
func (cfg AppConfig) Validate() error {
	var errs []error
	if strings.TrimSpace(cfg.Auth.JWTSecret) == "" {
		errs = append(errs, errors.New("auth.jwt_secret (JWT_SECRET) is required"))
	}
	if strings.TrimSpace(cfg.Provider.APIKey) == "" {
		errs = append(errs, errors.New("provider.api_key (OPENAI_API_KEY) is required"))
	}
	switch cfg.Server.Mode {
	case ModeSummarize, ModeProxy:
	default:
		errs = append(errs, fmt.Errorf("server.mode %q must be %q or %q", cfg.Server.Mode, ModeSummarize, ModeProxy))
	}
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", cfg.Server.Port))
	}
	switch cfg.Store.Driver {
	case StoreDriverGorm:
		if strings.TrimSpace(cfg.Store.DSN) == "" {
			errs = append(errs, errors.New("store.dsn (DATABASE_DSN) is required for the gorm driver"))
		}
	case StoreDriverSupabase:
		if strings.TrimSpace(cfg.Store.SupabaseURL) == "" || strings.TrimSpace(cfg.Store.SupabaseServiceKey) == "" {
			errs = append(errs, errors.New("store.supabase_url and store.supabase_service_key are required for the supabase driver"))
		}
	case "":
		errs = append(errs, errors.New("store is not configured: set DATABASE_DSN or SUPABASE_URL"))
	default:
		errs = append(errs, fmt.Errorf("store.driver %q is not supported", cfg.Store.Driver))
	}
	if cfg.Provider.BaseMaxTokens <= 0 {
		errs = append(errs, errors.New("provider.base_max_tokens must be positive"))
	}
	return errors.Join(errs...)
}

// Addr returns the listen address.
func (cfg AppConfig) Addr() string {
	return fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
}

// WriteDefault writes the default configuration as YAML to path without overwriting.
func WriteDefault(path string) error {
	if ConfigExists(path) {
		return fmt.Errorf("config: %s already exists", path)
	}
	data, errMarshal := yaml.Marshal(Default())
	if errMarshal != nil {
		return fmt.Errorf("config: encode defaults: %w", errMarshal)
	}
	if errWrite := os.WriteFile(path, data, 0o600); errWrite != nil {
		return fmt.Errorf("config: write %s: %w", path, errWrite)
	}
	return nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
