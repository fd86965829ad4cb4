package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App       AppConfig
	Postgres  PostgresConfig
	Redis     RedisConfig
	Logger    LoggerConfig
	Auth      AuthConfig
	Federated FederatedConfig
	Otp       OtpConfig
	Captcha   CaptchaConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// AuthConfig defines session and signup parameters.
type AuthConfig struct {
	JWTSecret         string
	SessionTTLMinutes int
	CookieName        string
	BcryptCost        int
	// AllowedSignupDomains restricts first-sight profile creation to the
	// listed email domains. Empty means any domain.
	AllowedSignupDomains []string
	// LoginRatePerMinute bounds credential attempts per identifier.
	LoginRatePerMinute int
}

// FederatedConfig configures the OIDC provider used for federated sign-in.
type FederatedConfig struct {
	Enabled                bool
	ClientID               string
	ClientSecret           string
	RedirectURL            string
	IssuerURL              string
	Scopes                 string
	ProviderTimeoutSeconds int
}

// OtpConfig controls the phone one-time-code flow.
type OtpConfig struct {
	CodeTTLSeconds    int
	RequestsPerMinute int
}

// CaptchaConfig gates credential submission behind human verification.
type CaptchaConfig struct {
	Enabled   bool
	Secret    string
	VerifyURL string
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "codex-auth"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
			RunMigrations:  getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			JWTSecret:            getEnv("AUTH_JWT_SECRET", "dev-secret"),
			SessionTTLMinutes:    getEnvAsInt("AUTH_SESSION_TTL_MINUTES", 7*24*60),
			CookieName:           getEnv("AUTH_COOKIE_NAME", "auth-token"),
			BcryptCost:           getEnvAsInt("AUTH_BCRYPT_COST", 12),
			AllowedSignupDomains: getEnvAsList("AUTH_ALLOWED_SIGNUP_DOMAINS"),
			LoginRatePerMinute:   getEnvAsInt("AUTH_LOGIN_RATE_PER_MINUTE", 10),
		},
		Federated: FederatedConfig{
			Enabled:                getEnvAsBool("FEDERATED_ENABLED", false),
			ClientID:               os.Getenv("FEDERATED_CLIENT_ID"),
			ClientSecret:           os.Getenv("FEDERATED_CLIENT_SECRET"),
			RedirectURL:            getEnv("FEDERATED_REDIRECT_URL", "http://localhost:8080/auth/federated/callback"),
			IssuerURL:              os.Getenv("FEDERATED_ISSUER_URL"),
			Scopes:                 getEnv("FEDERATED_SCOPES", "openid profile email"),
			ProviderTimeoutSeconds: getEnvAsInt("FEDERATED_PROVIDER_TIMEOUT_SECONDS", 10),
		},
		Otp: OtpConfig{
			CodeTTLSeconds:    getEnvAsInt("OTP_CODE_TTL_SECONDS", 300),
			RequestsPerMinute: getEnvAsInt("OTP_REQUESTS_PER_MINUTE", 3),
		},
		Captcha: CaptchaConfig{
			Enabled:   getEnvAsBool("CAPTCHA_ENABLED", false),
			Secret:    os.Getenv("CAPTCHA_SECRET"),
			VerifyURL: getEnv("CAPTCHA_VERIFY_URL", "https://hcaptcha.com/siteverify"),
		},
	}

	return cfg, nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// SessionTTL returns the session lifetime.
func (a AuthConfig) SessionTTL() time.Duration {
	if a.SessionTTLMinutes <= 0 {
		return 7 * 24 * time.Hour
	}
	return time.Duration(a.SessionTTLMinutes) * time.Minute
}

// SecureCookies reports whether cookies must carry the Secure flag.
func (a AppConfig) SecureCookies() bool {
	return a.Env != "development"
}

// ProviderTimeout bounds calls to the federated identity provider.
func (f FederatedConfig) ProviderTimeout() time.Duration {
	if f.ProviderTimeoutSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(f.ProviderTimeoutSeconds) * time.Second
}

// CodeTTL returns the OTP validity window.
func (o OtpConfig) CodeTTL() time.Duration {
	if o.CodeTTLSeconds <= 0 {
		return 5 * time.Minute
	}
	return time.Duration(o.CodeTTLSeconds) * time.Second
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsList(key string) []string {
	val := os.Getenv(key)
	if val == "" {
		return nil
	}
	parts := strings.Split(val, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, strings.ToLower(trimmed))
		}
	}
	return out
}
