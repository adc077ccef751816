package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/subosito/gotenv"
)

type LookupFunc func(string) (string, bool)

type Profile string

const (
	ProfileDev  Profile = "dev"
	ProfileTest Profile = "test"
	ProfileProd Profile = "prod"
)

const (
	ProviderOpenAI   = "openai"
	ProviderDeepSeek = "deepseek"
	ProviderGemini   = "gemini"
	ProviderLMStudio = "lmstudio"
)

type Config struct {
	Profile       Profile
	Service       ServiceConfig
	HTTP          HTTPConfig
	Database      DatabaseConfig
	ObjectStore   ObjectStoreConfig
	Schema        SchemaConfig
	AI            AIConfig
	Observability ObservabilityConfig
	Auth          AuthConfig
}

type ServiceConfig struct {
	Name string
}

type HTTPConfig struct {
	Address        string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	ExecuteEnabled bool
}

type DatabaseConfig struct {
	Driver          string
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxIdleTime time.Duration
	ConnMaxLifetime time.Duration
	RowLimit        int
	ParquetMounts   string
	WorkDir         string
}

type ObjectStoreConfig struct {
	Endpoint         string
	Region           string
	Bucket           string
	AccessKeyID      string
	SecretAccessKey  string
	UseSSL           bool
	Prefix           string
	AutoCreateBucket bool
}

type SchemaConfig struct {
	RefreshInterval time.Duration
}

type AIConfig struct {
	Provider    string
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float64
	Timeout     time.Duration
}

type ObservabilityConfig struct {
	LogLevel slog.Level
	LogJSON  bool
}

type AuthConfig struct {
	Required   bool
	StaticKeys string
}

// LoadFromEnv reads the process environment, falling back to the values of a
// .env file (ASKDB_ENV_FILE, default ".env") for keys the environment lacks.
func LoadFromEnv(serviceName string) (Config, error) {
	envFile := ".env"
	if raw, ok := os.LookupEnv("ASKDB_ENV_FILE"); ok && strings.TrimSpace(raw) != "" {
		envFile = strings.TrimSpace(raw)
	}
	lookup, err := WithEnvFile(os.LookupEnv, envFile)
	if err != nil {
		return Config{}, err
	}
	return Load(serviceName, lookup)
}

// WithEnvFile layers the key/value pairs of a dotenv file under lookup.
// A missing file leaves lookup unchanged.
func WithEnvFile(lookup LookupFunc, path string) (LookupFunc, error) {
	values, err := gotenv.Read(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return lookup, nil
		}
		return nil, fmt.Errorf("read env file %q: %w", path, err)
	}
	return func(key string) (string, bool) {
		if value, ok := lookup(key); ok {
			return value, true
		}
		value, ok := values[key]
		return value, ok
	}, nil
}

func Load(serviceName string, lookup LookupFunc) (Config, error) {
	if lookup == nil {
		return Config{}, fmt.Errorf("lookup function is required")
	}

	profile := ProfileDev
	if raw, ok := lookup("ASKDB_PROFILE"); ok {
		profile = Profile(strings.ToLower(strings.TrimSpace(raw)))
	}
	if !isValidProfile(profile) {
		return Config{}, fmt.Errorf("invalid ASKDB_PROFILE: %q", profile)
	}

	cfg := defaultsForProfile(profile)
	if serviceName != "" {
		cfg.Service.Name = serviceName
	}

	if err := applyString(lookup, "ASKDB_SERVICE_NAME", &cfg.Service.Name); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "ASKDB_HTTP_ADDR", &cfg.HTTP.Address); err != nil {
		return Config{}, err
	}
	if err := applyDuration(lookup, "ASKDB_HTTP_READ_TIMEOUT", &cfg.HTTP.ReadTimeout); err != nil {
		return Config{}, err
	}
	if err := applyDuration(lookup, "ASKDB_HTTP_WRITE_TIMEOUT", &cfg.HTTP.WriteTimeout); err != nil {
		return Config{}, err
	}
	if err := applyDuration(lookup, "ASKDB_HTTP_IDLE_TIMEOUT", &cfg.HTTP.IdleTimeout); err != nil {
		return Config{}, err
	}
	if err := applyBool(lookup, "ASKDB_API_EXECUTE_ENABLED", &cfg.HTTP.ExecuteEnabled); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "ASKDB_DB_DRIVER", &cfg.Database.Driver); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "ASKDB_DB_DSN", &cfg.Database.DSN); err != nil {
		return Config{}, err
	}
	if err := applyInt(lookup, "ASKDB_DB_MAX_OPEN_CONNS", &cfg.Database.MaxOpenConns); err != nil {
		return Config{}, err
	}
	if err := applyInt(lookup, "ASKDB_DB_MAX_IDLE_CONNS", &cfg.Database.MaxIdleConns); err != nil {
		return Config{}, err
	}
	if err := applyDuration(lookup, "ASKDB_DB_CONN_MAX_IDLE_TIME", &cfg.Database.ConnMaxIdleTime); err != nil {
		return Config{}, err
	}
	if err := applyDuration(lookup, "ASKDB_DB_CONN_MAX_LIFETIME", &cfg.Database.ConnMaxLifetime); err != nil {
		return Config{}, err
	}
	if err := applyInt(lookup, "ASKDB_DB_ROW_LIMIT", &cfg.Database.RowLimit); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "ASKDB_DB_PARQUET_MOUNTS", &cfg.Database.ParquetMounts); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "ASKDB_DB_WORK_DIR", &cfg.Database.WorkDir); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "ASKDB_OBJECTSTORE_ENDPOINT", &cfg.ObjectStore.Endpoint); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "ASKDB_OBJECTSTORE_REGION", &cfg.ObjectStore.Region); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "ASKDB_OBJECTSTORE_BUCKET", &cfg.ObjectStore.Bucket); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "ASKDB_OBJECTSTORE_ACCESS_KEY", &cfg.ObjectStore.AccessKeyID); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "ASKDB_OBJECTSTORE_SECRET_KEY", &cfg.ObjectStore.SecretAccessKey); err != nil {
		return Config{}, err
	}
	if err := applyBool(lookup, "ASKDB_OBJECTSTORE_USE_SSL", &cfg.ObjectStore.UseSSL); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "ASKDB_OBJECTSTORE_PREFIX", &cfg.ObjectStore.Prefix); err != nil {
		return Config{}, err
	}
	if err := applyBool(lookup, "ASKDB_OBJECTSTORE_AUTO_CREATE_BUCKET", &cfg.ObjectStore.AutoCreateBucket); err != nil {
		return Config{}, err
	}
	if err := applyDuration(lookup, "ASKDB_SCHEMA_REFRESH_INTERVAL", &cfg.Schema.RefreshInterval); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "ASKDB_AI_PROVIDER", &cfg.AI.Provider); err != nil {
		return Config{}, err
	}
	cfg.AI.Provider = strings.ToLower(cfg.AI.Provider)
	if !isValidProvider(cfg.AI.Provider) {
		return Config{}, fmt.Errorf("invalid ASKDB_AI_PROVIDER: %q", cfg.AI.Provider)
	}
	applyProviderDefaults(lookup, &cfg.AI)
	if err := applyString(lookup, "ASKDB_AI_BASE_URL", &cfg.AI.BaseURL); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "ASKDB_AI_API_KEY", &cfg.AI.APIKey); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "ASKDB_AI_MODEL", &cfg.AI.Model); err != nil {
		return Config{}, err
	}
	if err := applyFloat(lookup, "ASKDB_AI_TEMPERATURE", &cfg.AI.Temperature); err != nil {
		return Config{}, err
	}
	if err := applyDuration(lookup, "ASKDB_AI_TIMEOUT", &cfg.AI.Timeout); err != nil {
		return Config{}, err
	}
	if err := applyBool(lookup, "ASKDB_LOG_JSON", &cfg.Observability.LogJSON); err != nil {
		return Config{}, err
	}
	if err := applyLogLevel(lookup, "ASKDB_LOG_LEVEL", &cfg.Observability.LogLevel); err != nil {
		return Config{}, err
	}
	if err := applyBool(lookup, "ASKDB_AUTH_REQUIRED", &cfg.Auth.Required); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "ASKDB_AUTH_STATIC_KEYS", &cfg.Auth.StaticKeys); err != nil {
		return Config{}, err
	}

	cfg.Database.Driver = strings.ToLower(cfg.Database.Driver)
	if !isValidDriver(cfg.Database.Driver) {
		return Config{}, fmt.Errorf("invalid ASKDB_DB_DRIVER: %q", cfg.Database.Driver)
	}
	if cfg.Database.RowLimit < 0 {
		return Config{}, fmt.Errorf("invalid ASKDB_DB_ROW_LIMIT: %d", cfg.Database.RowLimit)
	}
	if cfg.Service.Name == "" {
		return Config{}, fmt.Errorf("service name is required")
	}
	if cfg.HTTP.Address == "" {
		return Config{}, fmt.Errorf("http address is required")
	}
	return cfg, nil
}

func defaultsForProfile(profile Profile) Config {
	cfg := Config{
		Profile: profile,
		Service: ServiceConfig{Name: "askdb"},
		HTTP: HTTPConfig{
			Address:        ":8080",
			ReadTimeout:    5 * time.Second,
			WriteTimeout:   90 * time.Second,
			IdleTimeout:    60 * time.Second,
			ExecuteEnabled: false,
		},
		Database: DatabaseConfig{
			Driver:          "mysql",
			DSN:             "root:root@tcp(localhost:3306)/mydb",
			MaxOpenConns:    10,
			MaxIdleConns:    10,
			ConnMaxIdleTime: 5 * time.Minute,
			ConnMaxLifetime: 30 * time.Minute,
			RowLimit:        1000,
		},
		ObjectStore: ObjectStoreConfig{
			Endpoint:         "localhost:9000",
			Region:           "us-east-1",
			Bucket:           "askdb",
			AccessKeyID:      "minio",
			SecretAccessKey:  "miniostorage",
			UseSSL:           false,
			AutoCreateBucket: false,
		},
		Schema: SchemaConfig{
			RefreshInterval: 0,
		},
		AI: AIConfig{
			Provider:    ProviderGemini,
			Temperature: 0.1,
			Timeout:     60 * time.Second,
		},
		Observability: ObservabilityConfig{
			LogLevel: slog.LevelDebug,
			LogJSON:  false,
		},
		Auth: AuthConfig{
			Required:   false,
			StaticKeys: "",
		},
	}

	switch profile {
	case ProfileTest:
		cfg.HTTP.Address = ":18080"
		cfg.Observability.LogLevel = slog.LevelWarn
	case ProfileProd:
		cfg.Observability.LogLevel = slog.LevelInfo
		cfg.Observability.LogJSON = true
		cfg.Auth.Required = true
		cfg.ObjectStore.UseSSL = true
	}

	return cfg
}

// applyProviderDefaults fills base URL, model and credential from the
// provider's conventional variables. ASKDB_AI_* values applied afterwards win.
func applyProviderDefaults(lookup LookupFunc, ai *AIConfig) {
	envKey := ""
	switch ai.Provider {
	case ProviderOpenAI:
		ai.BaseURL = "https://api.openai.com/v1"
		ai.Model = "gpt-4o-mini"
		envKey = "OPENAI_API_KEY"
	case ProviderDeepSeek:
		ai.BaseURL = "https://api.deepseek.com/v1"
		ai.Model = "deepseek-chat"
		envKey = "DEEPSEEK_API_KEY"
	case ProviderGemini:
		ai.BaseURL = ""
		ai.Model = "gemini-2.0-flash-exp"
		envKey = "GEMINI_API_KEY"
	case ProviderLMStudio:
		ai.BaseURL = "http://localhost:1234/v1"
		ai.Model = "lm-chat"
		if raw, ok := lookup("LM_STUDIO_MODEL"); ok && strings.TrimSpace(raw) != "" {
			ai.Model = strings.TrimSpace(raw)
		}
	}
	if envKey != "" {
		if raw, ok := lookup(envKey); ok {
			ai.APIKey = strings.TrimSpace(raw)
		}
	}
}

func isValidProfile(profile Profile) bool {
	switch profile {
	case ProfileDev, ProfileTest, ProfileProd:
		return true
	default:
		return false
	}
}

func isValidProvider(provider string) bool {
	switch provider {
	case ProviderOpenAI, ProviderDeepSeek, ProviderGemini, ProviderLMStudio:
		return true
	default:
		return false
	}
}

func isValidDriver(driver string) bool {
	switch driver {
	case "mysql", "postgres", "duckdb":
		return true
	default:
		return false
	}
}

func applyString(lookup LookupFunc, key string, dst *string) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	*dst = strings.TrimSpace(raw)
	return nil
}

func applyDuration(lookup LookupFunc, key string, dst *time.Duration) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyBool(lookup LookupFunc, key string, dst *bool) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := strconv.ParseBool(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyInt(lookup LookupFunc, key string, dst *int) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyFloat(lookup LookupFunc, key string, dst *float64) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyLogLevel(lookup LookupFunc, key string, dst *slog.Level) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	level := strings.ToLower(strings.TrimSpace(raw))
	switch level {
	case "debug":
		*dst = slog.LevelDebug
	case "info":
		*dst = slog.LevelInfo
	case "warn", "warning":
		*dst = slog.LevelWarn
	case "error":
		*dst = slog.LevelError
	default:
		return fmt.Errorf("invalid %s: %q", key, raw)
	}
	return nil
}
