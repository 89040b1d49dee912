package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// App holds the runtime configuration loaded from environment variables.
type App struct {
	Env      string
	HTTPPort string
	LogLevel string

	DB Database

	RedisAddr        string
	QueueBackend     string
	QueueKey         string
	RateLimitPerMin  int
	RateLimitBackend string
	CORSOrigins      []string

	// ExposeStoreErrors includes raw store error text in 500 responses.
	ExposeStoreErrors bool
}

// Database describes how to reach Postgres.
type Database struct {
	Host            string
	Port            string
	User            string
	Password        string
	Name            string
	MaintenanceName string
	Charset         string
	SSLMode         string
	ConnectAttempts int
	ConnectDelay    time.Duration
	MaxOpenConns    int
}

// Load returns application config populated from environment variables with sensible defaults.
// A .env file in the working directory is read first when present.
func Load() App {
	if err := godotenv.Load(); err == nil {
		logrus.Debug("loaded .env file")
	}
	return App{
		Env:      getEnv("APP_ENV", "dev"),
		HTTPPort: getEnv("HTTP_PORT", "5003"),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		DB: Database{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnv("DB_PORT", "5432"),
			User:            getEnv("DB_USER", "postgres"),
			Password:        getEnv("DB_PASSWORD", "postgres"),
			Name:            getEnv("DB_NAME", "attendance_db"),
			MaintenanceName: getEnv("DB_MAINTENANCE_NAME", "postgres"),
			Charset:         getEnv("DB_CHARSET", "UTF8"),
			SSLMode:         getEnv("DB_SSLMODE", "disable"),
			ConnectAttempts: intEnv("DB_CONNECT_ATTEMPTS", 5),
			ConnectDelay:    durationEnv("DB_CONNECT_DELAY", 2*time.Second),
			MaxOpenConns:    intEnv("DB_MAX_OPEN_CONNS", 10),
		},
		RedisAddr:         getEnv("REDIS_ADDR", ""),
		QueueBackend:      getEnv("QUEUE_BACKEND", "none"),
		QueueKey:          getEnv("QUEUE_KEY", "attendance:events"),
		RateLimitPerMin:   intEnv("RATE_LIMIT_PER_MIN", 120),
		RateLimitBackend:  getEnv("RATE_LIMIT_BACKEND", "memory"),
		CORSOrigins:       listEnv("CORS_ORIGINS", []string{"*"}),
		ExposeStoreErrors: boolEnv("EXPOSE_STORE_ERRORS", false),
	}
}

// Production reports whether the app runs with production defaults.
func (a App) Production() bool {
	return a.Env == "production" || a.Env == "prod"
}

// Validate rejects settings that cannot work together.
func (a App) Validate() error {
	var errs []error
	switch a.QueueBackend {
	case "none", "memory":
	case "redis":
		if a.RedisAddr == "" {
			errs = append(errs, errors.New("QUEUE_BACKEND=redis requires REDIS_ADDR"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown QUEUE_BACKEND %q", a.QueueBackend))
	}
	switch a.RateLimitBackend {
	case "memory":
	case "redis":
		if a.RedisAddr == "" {
			errs = append(errs, errors.New("RATE_LIMIT_BACKEND=redis requires REDIS_ADDR"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown RATE_LIMIT_BACKEND %q", a.RateLimitBackend))
	}
	if a.DB.Name == "" {
		errs = append(errs, errors.New("DB_NAME must not be empty"))
	}
	if a.DB.ConnectAttempts < 1 {
		errs = append(errs, errors.New("DB_CONNECT_ATTEMPTS must be at least 1"))
	}
	return errors.Join(errs...)
}

// URL returns the connection string for the application database.
func (d Database) URL() string {
	return d.url(d.Name)
}

// MaintenanceURL returns the connection string for the database used to create the application database.
func (d Database) MaintenanceURL() string {
	return d.url(d.MaintenanceName)
}

func (d Database) url(name string) string {
	q := url.Values{}
	q.Set("sslmode", d.SSLMode)
	if d.Charset != "" {
		q.Set("client_encoding", d.Charset)
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(d.User, d.Password),
		Host:     net.JoinHostPort(d.Host, d.Port),
		Path:     "/" + name,
		RawQuery: q.Encode(),
	}
	return u.String()
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func durationEnv(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		d, err := time.ParseDuration(val)
		if err != nil {
			logrus.Warnf("invalid duration for %s: %v, using fallback %s", key, err, fallback)
			return fallback
		}
		return d
	}
	return fallback
}

func boolEnv(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		if val == "1" || val == "true" || val == "TRUE" {
			return true
		}
		if val == "0" || val == "false" || val == "FALSE" {
			return false
		}
		logrus.Warnf("invalid bool for %s, using fallback %v", key, fallback)
	}
	return fallback
}

func intEnv(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		var parsed int
		if _, err := fmt.Sscanf(val, "%d", &parsed); err == nil {
			return parsed
		}
		logrus.Warnf("invalid int for %s, using fallback %d", key, fallback)
	}
	return fallback
}

func listEnv(key string, fallback []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
