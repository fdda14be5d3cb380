package config

import (
	"errors"
	"net/url"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"github.com/sudo-init-do/lexhub/internal/currency"
	"github.com/sudo-init-do/lexhub/internal/discovery"
)

const (
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

// Config contains runtime settings for the server and admin utilities.
type Config struct {
	Port     string
	LogLevel string
	Store    string // postgres or memory
	DB       struct {
		URL      string
		Host     string
		Port     string
		User     string
		Password string
		Name     string
	}
	RedisAddr       string // empty disables the alert queue
	JWTSecret       string
	BaseCurrency    string
	PlatformFeeBps  int64
	RadiusPolicy    discovery.RadiusPolicy
	SweepSchedule   string
	SearchRateLimit float64
}

// DSN is DATABASE_URL when set, otherwise it is assembled from DB_* parts.
func (c Config) DSN() string {
	if c.DB.URL != "" {
		return c.DB.URL
	}
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(c.DB.User, c.DB.Password),
		Host:   c.DB.Host + ":" + c.DB.Port,
		Path:   "/" + c.DB.Name,
	}
	return u.String()
}

// Load reads an optional .env file and then the environment.
func Load() (Config, error) {
	_ = godotenv.Load()
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from getenv, collecting every missing or malformed
// variable into one error.
func FromEnv(getenv func(string) string) (Config, error) {
	cfg := Config{
		Port:            "8080",
		LogLevel:        "info",
		Store:           StorePostgres,
		BaseCurrency:    currency.DefaultBase,
		PlatformFeeBps:  1000,
		RadiusPolicy:    discovery.RadiusFilterOnly,
		SweepSchedule:   "@every 5m",
		SearchRateLimit: 20,
	}
	cfg.DB.Port = "5432"

	set := func(key string, dst *string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}
	set("PORT", &cfg.Port)
	set("LOG_LEVEL", &cfg.LogLevel)
	set("STORE", &cfg.Store)
	set("DATABASE_URL", &cfg.DB.URL)
	set("DB_HOST", &cfg.DB.Host)
	set("DB_PORT", &cfg.DB.Port)
	set("DB_USER", &cfg.DB.User)
	set("DB_PASSWORD", &cfg.DB.Password)
	set("DB_NAME", &cfg.DB.Name)
	set("REDIS_ADDR", &cfg.RedisAddr)
	set("JWT_SECRET", &cfg.JWTSecret)
	set("BASE_CURRENCY", &cfg.BaseCurrency)
	set("SWEEP_SCHEDULE", &cfg.SweepSchedule)
	cfg.BaseCurrency = strings.ToUpper(cfg.BaseCurrency)

	var missing, invalid []string

	if v := getenv("PLATFORM_FEE_BPS"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n < 0 || n > 10_000 {
			invalid = append(invalid, "PLATFORM_FEE_BPS")
		} else {
			cfg.PlatformFeeBps = n
		}
	}
	if v := getenv("SEARCH_RATE_LIMIT"); v != "" {
		n, err := strconv.ParseFloat(v, 64)
		if err != nil || n <= 0 {
			invalid = append(invalid, "SEARCH_RATE_LIMIT")
		} else {
			cfg.SearchRateLimit = n
		}
	}
	if p, ok := discovery.ParseRadiusPolicy(getenv("RADIUS_POLICY")); ok {
		cfg.RadiusPolicy = p
	} else {
		invalid = append(invalid, "RADIUS_POLICY")
	}
	if _, err := cron.ParseStandard(cfg.SweepSchedule); err != nil {
		invalid = append(invalid, "SWEEP_SCHEDULE")
	}

	switch cfg.Store {
	case StorePostgres:
		if cfg.DB.URL == "" {
			for key, v := range map[string]string{"DB_HOST": cfg.DB.Host, "DB_USER": cfg.DB.User, "DB_NAME": cfg.DB.Name} {
				if v == "" {
					missing = append(missing, key)
				}
			}
		}
	case StoreMemory:
	default:
		invalid = append(invalid, "STORE")
	}
	if cfg.JWTSecret == "" {
		missing = append(missing, "JWT_SECRET")
	}

	var problems []string
	if len(missing) > 0 {
		slices.Sort(missing)
		problems = append(problems, "missing required environment variables: "+strings.Join(missing, ", "))
	}
	if len(invalid) > 0 {
		problems = append(problems, "invalid environment variables: "+strings.Join(invalid, ", "))
	}
	if len(problems) > 0 {
		return cfg, errors.New(strings.Join(problems, "; "))
	}
	return cfg, nil
}
