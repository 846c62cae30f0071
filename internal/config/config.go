package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// DefaultJWTSecret is used when JWT_SECRET is unset. It is only suitable
// for local development.
const DefaultJWTSecret = "dev-secret"

type Config struct {
	HTTPAddr         string
	GRPCAddr         string
	LogLevel         string
	ServiceAuthToken string

	JWTSecret        string
	TokenTTL         string
	TokenMaxEmbedded int

	RevalidateInterval time.Duration
	RenewWarning       time.Duration

	ReadLatency        time.Duration
	WriteLatency       time.Duration
	RecordWriteLatency time.Duration
	LoginLatency       time.Duration
	LogoutLatency      time.Duration

	SeedFile    string
	DatabaseURL string

	RedisAddr     string
	RedisPassword string
	SessionTabTTL time.Duration

	CORSAllowedOrigins []string
	LoginRatePerMinute int
	LoginRateBurst     int

	// TrustProxyHeaders takes the client address from X-Forwarded-For and
	// friends. Only enable it behind a proxy that overwrites them.
	TrustProxyHeaders bool
}

func Load() Config {
	return Config{
		HTTPAddr:         getenv("HTTP_ADDR", ":8080"),
		GRPCAddr:         getenv("GRPC_ADDR", ":9090"),
		LogLevel:         getenv("LOG_LEVEL", "info"),
		ServiceAuthToken: getenv("SERVICE_AUTH_TOKEN", ""),

		JWTSecret:        getenv("JWT_SECRET", DefaultJWTSecret),
		TokenTTL:         getenv("TOKEN_TTL", "1h"),
		TokenMaxEmbedded: getenvInt("TOKEN_MAX_EMBEDDED", 50),

		RevalidateInterval: getenvDuration("SESSION_REVALIDATE_INTERVAL", time.Minute),
		RenewWarning:       getenvDuration("SESSION_RENEW_WARNING", 5*time.Minute),

		ReadLatency:        getenvDuration("MOCK_READ_LATENCY", 100*time.Millisecond),
		WriteLatency:       getenvDuration("MOCK_WRITE_LATENCY", 300*time.Millisecond),
		RecordWriteLatency: getenvDuration("MOCK_RECORD_WRITE_LATENCY", 500*time.Millisecond),
		LoginLatency:       getenvDuration("MOCK_LOGIN_LATENCY", 400*time.Millisecond),
		LogoutLatency:      getenvDuration("MOCK_LOGOUT_LATENCY", 300*time.Millisecond),

		SeedFile:    getenv("SEED_FILE", ""),
		DatabaseURL: getenv("DATABASE_URL", ""),

		RedisAddr:     getenv("REDIS_ADDR", ""),
		RedisPassword: getenv("REDIS_PASSWORD", ""),
		SessionTabTTL: getenvDuration("SESSION_TAB_TTL", 12*time.Hour),

		CORSAllowedOrigins: getenvList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:5173"}),
		LoginRatePerMinute: getenvInt("LOGIN_RATE_PER_MINUTE", 30),
		LoginRateBurst:     getenvInt("LOGIN_RATE_BURST", 5),
		TrustProxyHeaders:  getenvBool("TRUST_PROXY_HEADERS", false),
	}
}

// InsecureSecret reports whether the signing secret is the built-in fallback.
func (c Config) InsecureSecret() bool {
	return c.JWTSecret == DefaultJWTSecret
}

func getenv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return fallback
}

func getenvBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.ParseBool(val); err == nil {
			return parsed
		}
	}
	return fallback
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if parsed, err := time.ParseDuration(val); err == nil {
			return parsed
		}
	}
	if val := os.Getenv(key + "_SECONDS"); val != "" {
		if seconds, err := strconv.Atoi(val); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}
	return fallback
}

func getenvList(key string, fallback []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
