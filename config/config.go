package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Placeholder hosted-backend credentials used when the environment leaves them unset.
// The service still boots so that health and docs stay reachable.
const (
	PlaceholderSupabaseURL = "https://placeholder.supabase.co"
	PlaceholderSupabaseKey = "placeholder-anon-key"
)

type Config struct {
	Port     string
	AppEnv   string
	LogLevel string
	DBUrl    string

	SupabaseUrl        string
	SupabaseKey        string
	SupabaseServiceKey string
	SupabaseJWTSecret  string
	AvatarBucket       string
	// UsingPlaceholder is set when SUPABASE_URL or SUPABASE_KEY was missing.
	UsingPlaceholder bool

	// Redis/Upstash Configuration
	UpstashRedisURL      string
	UpstashRedisPassword string

	// OTP flow
	OTPProvider      string // "supabase" or "local"
	OTPResendSeconds int

	// Shared upstream request wrapper
	UpstreamTimeout    time.Duration
	UpstreamMaxTimeout time.Duration
	UpstreamMaxRetries int

	CORSAllowedOrigins []string

	// Rate Limiting Configuration
	RateLimitWindowSeconds   int
	RateLimitOTPThreshold    int
	RateLimitGlobalThreshold int
}

func LoadConfig() (*Config, error) {
	// Missing .env is fine outside local development
	_ = godotenv.Load()

	cfg := &Config{
		Port:     getEnv("PORT", "8080"),
		AppEnv:   getEnv("APP_ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		DBUrl:    getEnv("DATABASE_URL", ""),
		// Trailing slash would produce ".co//auth"
		SupabaseUrl:        strings.TrimRight(getEnv("SUPABASE_URL", ""), "/"),
		SupabaseKey:        getEnv("SUPABASE_KEY", getEnv("SUPABASE_ANON_KEY", "")),
		SupabaseServiceKey: getEnv("SUPABASE_SERVICE_KEY", getEnv("SUPABASE_SERVICE_ROLE_KEY", "")),
		SupabaseJWTSecret:  getEnv("SUPABASE_JWT_SECRET", getEnv("SUPABASE_JWT_KEY", "")),
		AvatarBucket:       getEnv("AVATAR_BUCKET", "avatars"),

		UpstashRedisURL:      getEnv("UPSTASH_REDIS_URL", ""),
		UpstashRedisPassword: getEnv("UPSTASH_REDIS_PASSWORD", ""),

		OTPProvider:      strings.ToLower(getEnv("OTP_PROVIDER", "supabase")),
		OTPResendSeconds: getEnvInt("OTP_RESEND_SECONDS", 60),

		UpstreamTimeout:    getEnvDuration("UPSTREAM_TIMEOUT", 5*time.Second),
		UpstreamMaxTimeout: getEnvDuration("UPSTREAM_MAX_TIMEOUT", 15*time.Second),
		UpstreamMaxRetries: getEnvInt("UPSTREAM_MAX_RETRIES", 2),

		CORSAllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS"),

		RateLimitWindowSeconds:   getEnvInt("RATE_LIMIT_WINDOW_SECONDS", 60),
		RateLimitOTPThreshold:    getEnvInt("RATE_LIMIT_OTP_THRESHOLD", 10),
		RateLimitGlobalThreshold: getEnvInt("RATE_LIMIT_GLOBAL_THRESHOLD", 100),
	}

	if cfg.SupabaseUrl == "" || cfg.SupabaseKey == "" {
		log.Println("WARNING: SUPABASE_URL or SUPABASE_KEY is missing. Falling back to placeholder credentials; hosted backend calls will fail.")
		cfg.SupabaseUrl = PlaceholderSupabaseURL
		cfg.SupabaseKey = PlaceholderSupabaseKey
		cfg.UsingPlaceholder = true
	}

	if cfg.SupabaseServiceKey == "" {
		cfg.SupabaseServiceKey = cfg.SupabaseKey
	}

	if cfg.DBUrl == "" {
		log.Println("WARNING: DATABASE_URL is missing. Application may fail to connect.")
	}

	if cfg.UpstashRedisURL == "" {
		log.Println("WARNING: UPSTASH_REDIS_URL not configured. OTP state and rate limiting will use in-memory fallback.")
	}

	if cfg.OTPProvider == "local" && cfg.SupabaseJWTSecret == "" {
		log.Println("WARNING: OTP_PROVIDER=local without SUPABASE_JWT_SECRET. Issued tokens will not verify.")
	}

	return cfg, nil
}

// IsProduction reports whether the service runs with production safeguards.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

// getEnvList splits a comma-separated variable, dropping blanks.
func getEnvList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// getEnvInt returns an integer environment variable or fallback if not set/invalid
func getEnvInt(key string, fallback int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return fallback
}

// getEnvDuration accepts Go duration strings ("5s", "1m") or bare seconds.
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, exists := os.LookupEnv(key)
	if !exists {
		return fallback
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return fallback
}
