// Package config reads the service settings from an optional env file and the process environment.
package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	ConfigPath string
	Profile    string
	Verbose    bool
	ApiGinMode string
	LogLevel   string
	LogFormat  string

	Ip   string
	Port string

	AllowedOrigins []string
	AllowedMethods []string
	AllowedHeaders []string
	TrustRequestID bool

	// storage
	StoreDriver string
	DBAddress   string
	DBUser      string
	DBPassword  string `secret:"true"`
	DBName      string
	DBSSLMode   string

	// local sessions
	JWTSecret    string `secret:"true"`
	TokenTTL     time.Duration
	CookieSecure bool

	//kc
	KCEnabled    bool
	AuthAddress  string
	Issuer       string
	Audience     string
	Realm        string
	ClientID     string
	ClientSecret string `secret:"true"`

	DashboardPageSize int
}

// Load applies the env file at path, if any, on top of the process environment
// and fills in defaults for whatever is still unset.
func Load(path string) Config {
	if path != "" {
		if err := godotenv.Load(path); err != nil {
			slog.Warn("failed to load the config file, using defaults", "path", path, "error", err)
		}
	}

	return Config{
		ConfigPath: filepath.Base(path),
		Profile:    getEnv("PROFILE", "baremetal"),
		Verbose:    getBoolEnv("VERBOSE", "false"),
		ApiGinMode: getEnv("GIN_MODE", "debug"),
		LogLevel:   getEnv("LOG_LEVEL", "info"),
		LogFormat:  getEnv("LOG_FORMAT", "text"),

		Ip:   getEnv("IP", "localhost"),
		Port: getEnv("PORT", "8800"),

		AllowedOrigins: getEnvFields("ALLOW_ORIGINS", []string{"*"}),
		AllowedMethods: getEnvFields("ALLOW_METHODS", []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
		AllowedHeaders: getEnvFields("ALLOW_HEADERS", []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}),
		TrustRequestID: getBoolEnv("TRUST_REQUEST_ID", "false"),

		StoreDriver: strings.ToLower(getEnv("STORE_DRIVER", "postgres")),
		DBAddress:   getEnv("DB_ADDRESS", "localhost:5432"),
		DBUser:      getEnv("DB_USER", "postgres"),
		DBPassword:  getEnv("DB_PASSWORD", "postgres"),
		DBName:      getEnv("DB_NAME", "taskhub"),
		DBSSLMode:   getEnv("DB_SSLMODE", "disable"),

		JWTSecret:    getEnv("JWT_SECRET", ""),
		TokenTTL:     getDurationEnv("TOKEN_TTL", 24*time.Hour),
		CookieSecure: getBoolEnv("COOKIE_SECURE", "false"),

		KCEnabled:    getBoolEnv("KC_ENABLED", "false"),
		AuthAddress:  getEnv("AUTH_ADDRESS", "localhost:5555"),
		Issuer:       getEnv("KC_ISSUER", "http://localhost:5555/realms/taskhub"),
		Audience:     getEnv("KC_AUDIENCE", ""),
		Realm:        getEnv("KC_REALM", "taskhub"),
		ClientID:     getEnv("KC_CLIENT", "taskhub-api"),
		ClientSecret: getEnv("KC_CLIENT_SECRET", ""),

		DashboardPageSize: getIntEnv("DASHBOARD_PAGE_SIZE", 20),
	}
}

func (cfg Config) Addr() string {
	return fmt.Sprintf("%s:%s", cfg.Ip, cfg.Port)
}

// DSN is the pgx connection string for the configured database.
func (cfg Config) DSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(cfg.DBUser, cfg.DBPassword),
		Host:     cfg.DBAddress,
		Path:     "/" + cfg.DBName,
		RawQuery: url.Values{"sslmode": {cfg.DBSSLMode}}.Encode(),
	}

	return u.String()
}

func getEnv(env, fallback string) string {
	if value, exists := os.LookupEnv(env); exists {
		return value
	}

	return fallback
}

func getEnvFields(env string, fallback []string) []string {
	if value, exists := os.LookupEnv(env); exists {
		var fields []string
		for f := range strings.SplitSeq(value, ",") {
			if f = strings.TrimSpace(f); f != "" {
				fields = append(fields, f)
			}
		}
		if len(fields) > 0 {
			return fields
		}
	}

	return fallback
}

func getBoolEnv(env, fallback string) bool {
	if value, exists := os.LookupEnv(env); exists {
		return strings.ToLower(value) == "true"
	}

	return strings.ToLower(fallback) == "true"
}

func getIntEnv(env string, fallback int) int {
	if value, exists := os.LookupEnv(env); exists {
		intValue, err := strconv.Atoi(value)
		if err == nil {
			return intValue
		}
	}

	return fallback
}

// getDurationEnv accepts Go durations ("90m") or a bare number of seconds.
func getDurationEnv(env string, fallback time.Duration) time.Duration {
	value, exists := os.LookupEnv(env)
	if !exists {
		return fallback
	}
	if d, err := time.ParseDuration(value); err == nil && d > 0 {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}

	return fallback
}

// String is a numbered dump of every field, with secrets masked.
func (cfg Config) String() string {
	var strBuilder strings.Builder

	reflectedValues := reflect.ValueOf(cfg)
	reflectedTypes := reflect.TypeOf(cfg)

	strBuilder.WriteString(fmt.Sprintf("[CFG]CONFIGURATION: %s\n", cfg.ConfigPath))

	for i := range reflectedValues.NumField() {
		field := reflectedTypes.Field(i)
		fieldValue := reflectedValues.Field(i).Interface()

		if field.Tag.Get("secret") == "true" {
			fieldValue = mask(fmt.Sprint(fieldValue))
		}

		strBuilder.WriteString(fmt.Sprintf("[CFG]%2d. %-18s -> %v\n", i+1, field.Name, fieldValue))
	}

	return strBuilder.String()
}

func mask(s string) string {
	if s == "" {
		return "<unset>"
	}

	return "****"
}
