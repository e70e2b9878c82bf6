package config

import (
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// Config holds the project config values
type Config struct {
	URL                 string
	DatabaseName        string
	BaseURL             string
	Port                string
	Env                 string
	VerifyTimeout       time.Duration
	RequestTimeout      time.Duration
	RedisAddr           string
	RedisPassword       string
	VerifyRatePerSecond int
	CORSAllowedOrigins  []string
	HealthCheckSchedule string
}

// New sets up all config related services
func New() *Config {
	// a missing .env is fine, the environment wins either way
	_ = godotenv.Load()

	conf := &Config{
		URL:                 os.Getenv("DB_URI"),
		DatabaseName:        os.Getenv("DB_NAME"),
		BaseURL:             os.Getenv("BASE_URL"),
		Port:                getEnv("PORT", "8080"),
		Env:                 getEnv("ENV", "local"),
		VerifyTimeout:       getEnvDuration("VERIFY_TIMEOUT", 5*time.Second),
		RequestTimeout:      getEnvDuration("REQUEST_TIMEOUT", 15*time.Second),
		RedisAddr:           os.Getenv("REDIS_ADDR"),
		RedisPassword:       os.Getenv("REDIS_PASSWORD"),
		VerifyRatePerSecond: getEnvInt("VERIFY_RATE_PER_SECOND", 10),
		CORSAllowedOrigins:  splitTrim(getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000"), ","),
		HealthCheckSchedule: getEnv("HEALTH_CHECK_SCHEDULE", "@every 1m"),
	}

	//setup zap logger and replace default logger
	logger, err := setLogger(conf.Env)
	if err != nil {
		logger = zap.NewExample()
	}
	_ = zap.ReplaceGlobals(logger)

	return conf
}

// ErrorStatus is a useful function that will log, write http headers and body for a
// give message, status code and err
func ErrorStatus(message string, httpStatusCode int, w http.ResponseWriter, err error) {
	zap.S().Errorw(message, "error", err)
	w.WriteHeader(httpStatusCode)
	w.Write([]byte(fmt.Sprintf(`{"response": "%s, %v"}`, message, err)))
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return fallback
}

func splitTrim(s, sep string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, v := range strings.Split(s, sep) {
		if t := strings.TrimSpace(v); t != "" {
			out = append(out, t)
		}
	}
	return out
}
