package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration required by the API process.
// All values must come from env (or env-file loaded by the process runner).
// No business logic should depend on raw environment variables.
type Config struct {
	App     AppConfig
	DB      DBConfig
	Redis   RedisConfig
	Auth    AuthConfig
	Switch  SwitchConfig
	Routing RoutingConfig
}

type AppConfig struct {
	Env  string
	Port int
}

type DBConfig struct {
	// Driver is "pgx" (Postgres) or "sqlite".
	Driver string

	Host     string
	Port     int
	User     string
	Password string
	Name     string

	// SSLMode is kept explicit for AWS-ready posture.
	// Accepts: disable, require, verify-ca, verify-full
	SSLMode string

	// Path is the SQLite database file.
	Path string
}

// RedisConfig is optional; an empty Host disables the tenant cache.
type RedisConfig struct {
	Host     string
	Port     int
	CacheTTL time.Duration
}

type AuthConfig struct {
	JWTSecret   string
	JWTIssuer   string
	JWTAudience string
	// AccessTokenTTL bounds operator tokens; there is no refresh flow.
	AccessTokenTTL time.Duration
}

// SwitchConfig holds the basic-auth credentials the switch presents on XML lookups.
type SwitchConfig struct {
	Username string
	Password string
}

type RoutingConfig struct {
	DefaultCountryCode string
	LimitBackend       string
}

const (
	DriverPostgres = "pgx"
	DriverSQLite   = "sqlite"
)

// MaxAccessTokenTTL caps operator tokens, which cannot be refreshed.
const MaxAccessTokenTTL = 12 * time.Hour

func Load() (Config, error) {
	c := Config{}
	var parseErrs []error

	c.App.Env = strings.TrimSpace(os.Getenv("APP_ENV"))
	{
		n, err := mustInt("APP_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.App.Port = n
	}

	c.DB.Driver = strings.TrimSpace(os.Getenv("DB_DRIVER"))
	c.DB.Path = strings.TrimSpace(os.Getenv("DB_PATH"))
	c.DB.Host = strings.TrimSpace(os.Getenv("DB_HOST"))
	if c.DB.Driver == "" || c.DB.Driver == DriverPostgres {
		n, err := mustInt("DB_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.DB.Port = n
	}
	c.DB.User = strings.TrimSpace(os.Getenv("DB_USER"))
	c.DB.Password = os.Getenv("DB_PASSWORD")
	c.DB.Name = strings.TrimSpace(os.Getenv("DB_NAME"))
	c.DB.SSLMode = strings.TrimSpace(os.Getenv("DB_SSLMODE"))

	c.Redis.Host = strings.TrimSpace(os.Getenv("REDIS_HOST"))
	if c.Redis.Host != "" {
		n, err := mustInt("REDIS_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.Redis.Port = n
	}
	{
		d, err := optionalDuration("TENANT_CACHE_TTL")
		if err != nil {
			parseErrs = append(parseErrs, err)
		}
		c.Redis.CacheTTL = d
	}

	c.Auth.JWTSecret = os.Getenv("JWT_SECRET")
	c.Auth.JWTIssuer = strings.TrimSpace(os.Getenv("JWT_ISSUER"))
	c.Auth.JWTAudience = strings.TrimSpace(os.Getenv("JWT_AUDIENCE"))
	// Optional; default applied in Validate().
	{
		d, err := optionalDuration("JWT_ACCESS_TTL")
		if err != nil {
			parseErrs = append(parseErrs, err)
		}
		c.Auth.AccessTokenTTL = d
	}

	c.Switch.Username = strings.TrimSpace(os.Getenv("XMLCURL_USERNAME"))
	c.Switch.Password = os.Getenv("XMLCURL_PASSWORD")

	c.Routing.DefaultCountryCode = strings.TrimSpace(os.Getenv("DEFAULT_COUNTRY_CODE"))
	c.Routing.LimitBackend = strings.TrimSpace(os.Getenv("LIMIT_BACKEND"))

	if err := joinErrors(parseErrs); err != nil {
		return Config{}, err
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate checks the configuration and fills env-dependent defaults.
func (c *Config) Validate() error {
	var errs []error

	if c.App.Env == "" {
		errs = append(errs, errors.New("APP_ENV is required"))
	} else if !isValidEnv(c.App.Env) {
		errs = append(errs, fmt.Errorf("APP_ENV must be one of local, dev, staging, production, got %q", c.App.Env))
	}
	if c.App.Port <= 0 || c.App.Port > 65535 {
		errs = append(errs, fmt.Errorf("APP_PORT must be a valid port, got %d", c.App.Port))
	}

	if c.DB.Driver == "" {
		c.DB.Driver = DriverPostgres
	}
	switch c.DB.Driver {
	case DriverPostgres:
		errs = append(errs, c.validatePostgres()...)
	case DriverSQLite:
		if c.DB.Path == "" {
			errs = append(errs, errors.New("DB_PATH is required when DB_DRIVER=sqlite"))
		}
	default:
		errs = append(errs, fmt.Errorf("DB_DRIVER must be one of pgx, sqlite, got %q", c.DB.Driver))
	}

	if c.Redis.Host != "" && (c.Redis.Port <= 0 || c.Redis.Port > 65535) {
		errs = append(errs, fmt.Errorf("REDIS_PORT must be a valid port, got %d", c.Redis.Port))
	}
	if c.Redis.CacheTTL <= 0 {
		c.Redis.CacheTTL = 30 * time.Second
	}

	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if c.IsProduction() {
		if c.Auth.JWTIssuer == "" {
			errs = append(errs, errors.New("JWT_ISSUER is required in production"))
		}
		if c.Auth.JWTAudience == "" {
			errs = append(errs, errors.New("JWT_AUDIENCE is required in production"))
		}
	}

	if c.Auth.AccessTokenTTL <= 0 {
		// Default: short-lived access tokens.
		c.Auth.AccessTokenTTL = 15 * time.Minute
	}
	if c.Auth.AccessTokenTTL > MaxAccessTokenTTL {
		errs = append(errs, fmt.Errorf("JWT_ACCESS_TTL must not exceed %s", MaxAccessTokenTTL))
	}

	if (c.Switch.Username == "") != (c.Switch.Password == "") {
		errs = append(errs, errors.New("XMLCURL_USERNAME and XMLCURL_PASSWORD must be set together"))
	}
	if c.IsProduction() && c.Switch.Username == "" {
		errs = append(errs, errors.New("XMLCURL_USERNAME and XMLCURL_PASSWORD are required in production"))
	}

	c.Routing.DefaultCountryCode = strings.TrimPrefix(c.Routing.DefaultCountryCode, "+")
	if c.Routing.DefaultCountryCode == "" {
		c.Routing.DefaultCountryCode = "1"
	}
	if !isDigits(c.Routing.DefaultCountryCode) || len(c.Routing.DefaultCountryCode) > 3 {
		errs = append(errs, fmt.Errorf("DEFAULT_COUNTRY_CODE must be 1-3 digits, got %q", c.Routing.DefaultCountryCode))
	}
	if c.Routing.LimitBackend == "" {
		c.Routing.LimitBackend = "hash"
	}
	if !isValidLimitBackend(c.Routing.LimitBackend) {
		errs = append(errs, fmt.Errorf("LIMIT_BACKEND must be one of hash, db, redis, got %q", c.Routing.LimitBackend))
	}

	return joinErrors(errs)
}

func (c *Config) validatePostgres() []error {
	var errs []error
	if c.DB.Host == "" {
		errs = append(errs, errors.New("DB_HOST is required"))
	}
	if c.DB.Port <= 0 || c.DB.Port > 65535 {
		errs = append(errs, fmt.Errorf("DB_PORT must be a valid port, got %d", c.DB.Port))
	}
	if c.DB.User == "" {
		errs = append(errs, errors.New("DB_USER is required"))
	}
	if c.DB.Name == "" {
		errs = append(errs, errors.New("DB_NAME is required"))
	}
	if strings.TrimSpace(c.DB.SSLMode) == "" {
		if c.IsProduction() {
			errs = append(errs, errors.New("DB_SSLMODE is required in production"))
		} else {
			// Local-friendly default; production must be explicit.
			c.DB.SSLMode = "disable"
		}
	}
	if c.DB.SSLMode != "" && !isValidSSLMode(c.DB.SSLMode) {
		errs = append(errs, fmt.Errorf("DB_SSLMODE must be one of disable, require, verify-ca, verify-full, got %q", c.DB.SSLMode))
	}
	return errs
}

func (c Config) IsProduction() bool {
	return c.App.Env == "production"
}

func (c Config) HTTPAddr() string {
	return fmt.Sprintf(":%d", c.App.Port)
}

func (c Config) PostgresDSN() string {
	// Avoid logging this string; it contains secrets.
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DB.Host,
		c.DB.Port,
		c.DB.User,
		c.DB.Password,
		c.DB.Name,
		c.DB.SSLMode,
	)
}

func (c Config) CacheEnabled() bool {
	return c.Redis.Host != ""
}

func (c Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}

func mustInt(key string) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, fmt.Errorf("%s is required", key)
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer, got %q", key, v)
	}
	return n, nil
}

func optionalDuration(key string) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be a duration, got %q", key, v)
	}
	return d, nil
}

func appendParseErr(errs []error, n int, err error) (int, []error) {
	if err != nil {
		errs = append(errs, err)
	}
	return n, errs
}

func isValidEnv(v string) bool {
	switch v {
	case "local", "dev", "staging", "production":
		return true
	default:
		return false
	}
}

func isValidSSLMode(v string) bool {
	switch v {
	case "disable", "require", "verify-ca", "verify-full":
		return true
	default:
		return false
	}
}

func isValidLimitBackend(v string) bool {
	switch v {
	case "hash", "db", "redis":
		return true
	default:
		return false
	}
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func joinErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	if len(errs) == 1 {
		return errs[0]
	}
	var b strings.Builder
	b.WriteString("config errors:\n")
	for _, e := range errs {
		b.WriteString("- ")
		b.WriteString(e.Error())
		b.WriteString("\n")
	}
	return errors.New(strings.TrimSpace(b.String()))
}
