package config

import (
	"os"
	"strings"
	"time"
)

type Config struct {
	HTTPAddr string

	DBDriver string
	DBDSN    string

	// StageStore backend: "memory" or "redis".
	StageStore string
	RedisAddr  string
	StageTTL   time.Duration

	AuthHMACSecret string
	// Bcrypt hash of the shared login passcode; empty accepts any passcode.
	LoginPasscodeHash string

	// Grade passback; an empty token URL means "ungraded".
	GradeTokenURL     string
	GradeClientID     string
	GradeClientSecret string
	GradeLineItemBase string

	CORSOrigins []string
}

func FromEnv() Config {
	return Config{
		HTTPAddr:          envOr("HTTP_ADDR", ":8080"),
		DBDriver:          envOr("DB_DRIVER", "sqlite"),
		DBDSN:             envOr("DB_DSN", ""),
		StageStore:        envOr("STAGE_STORE", "memory"),
		RedisAddr:         envOr("REDIS_ADDR", "localhost:6379"),
		StageTTL:          envDuration("STAGE_TTL", 24*time.Hour),
		AuthHMACSecret:    envOr("AUTH_HMAC_SECRET", "supersecret-dev-key"),
		LoginPasscodeHash: os.Getenv("LOGIN_PASSCODE_HASH"),
		GradeTokenURL:     os.Getenv("GRADE_TOKEN_URL"),
		GradeClientID:     os.Getenv("GRADE_CLIENT_ID"),
		GradeClientSecret: os.Getenv("GRADE_CLIENT_SECRET"),
		GradeLineItemBase: os.Getenv("GRADE_LINEITEM_BASE"),
		CORSOrigins:       csvOr("CORS_ORIGINS", "http://localhost:3000"),
	}
}

func envOr(k, def string) string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	return v
}

func envDuration(k string, def time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

func csvOr(k, def string) []string {
	v := envOr(k, def)
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
