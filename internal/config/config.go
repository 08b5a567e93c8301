package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/shopspring/decimal"
)

const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"

	RatesStatic = "static"
	RatesBCB    = "bcb"

	CacheMemory = "memory"
	CacheRedis  = "redis"
)

type Config struct {
	// HTTP Server
	Port               string
	AllowedOrigins     []string
	RateLimitPerMinute int
	LogLevel           string
	LogJSON            bool

	// Backend selection
	DataBackend  string
	SQLiteDBPath string

	// AMQP
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Reference rates
	RatesSource     string
	RatesFile       string
	BCBBaseURL      string
	RatesTTL        time.Duration
	RatesTimeout    time.Duration
	CDIAnnual       decimal.Decimal
	SelicAnnual     decimal.Decimal
	TRMonthly       decimal.Decimal
	CDBPercentOfCDI decimal.Decimal

	// Cache
	CacheBackend         string
	RedisAddr            string
	RedisPassword        string
	RedisDB              int
	CacheCleanupInterval time.Duration

	// Worker
	RatesRefreshCron     string
	ReprojectConcurrency int
	TaskTimeout          time.Duration

	// Google Sheets export (optional)
	GoogleSpreadsheetID      string
	GoogleSheetName          string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string

	// values that could not be parsed at load time, reported by Validate
	loadErrors []string
}

func Load() *Config {
	cfg := &Config{
		Port:               getEnv("PORT", "8081"),
		AllowedOrigins:     getEnvList("ALLOWED_ORIGINS", nil),
		RateLimitPerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 60),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		LogJSON:            getEnv("LOG_FORMAT", "text") == "json",

		DataBackend:  getEnv("DATA_BACKEND", BackendMemory),
		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/caixinhas.db"),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "caixinhas"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "saving_events"),

		RatesSource:  getEnv("RATES_SOURCE", RatesStatic),
		RatesFile:    getEnv("RATES_FILE", ""),
		BCBBaseURL:   getEnv("BCB_BASE_URL", "https://api.bcb.gov.br"),
		RatesTTL:     getEnvDuration("RATES_TTL", 6*time.Hour),
		RatesTimeout: getEnvDuration("RATES_TIMEOUT", 10*time.Second),

		CacheBackend:         getEnv("CACHE_BACKEND", CacheMemory),
		RedisAddr:            getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:        getEnv("REDIS_PASSWORD", ""),
		RedisDB:              getEnvInt("REDIS_DB", 0),
		CacheCleanupInterval: getEnvDuration("CACHE_CLEANUP_INTERVAL", 5*time.Minute),

		RatesRefreshCron:     getEnv("RATES_REFRESH_CRON", "0 0 9 * * 1-5"),
		ReprojectConcurrency: getEnvInt("REPROJECT_CONCURRENCY", 4),
		TaskTimeout:          getEnvDuration("TASK_TIMEOUT", 5*time.Minute),

		GoogleSpreadsheetID:      getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleSheetName:          getEnv("GOOGLE_SHEET_NAME", "Caixinhas"),
		GoogleServiceAccountJSON: getEnv("GOOGLE_SERVICE_ACCOUNT_JSON", ""),
		GoogleServiceAccountFile: getEnv("GOOGLE_SERVICE_ACCOUNT_FILE", ""),
	}

	cfg.CDIAnnual = cfg.getEnvDecimal("RATES_CDI_ANNUAL", "0.1490")
	cfg.SelicAnnual = cfg.getEnvDecimal("RATES_SELIC_ANNUAL", "0.1500")
	cfg.TRMonthly = cfg.getEnvDecimal("RATES_TR_MONTHLY", "0.0017")
	cfg.CDBPercentOfCDI = cfg.getEnvDecimal("CDB_PERCENT_OF_CDI", "100")

	return cfg
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	errors := append([]string(nil), c.loadErrors...)

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if !slices.Contains([]string{"debug", "info", "warn", "error"}, strings.ToLower(c.LogLevel)) {
		errors = append(errors, fmt.Sprintf("invalid log level '%s': must be one of debug, info, warn, error", c.LogLevel))
	}

	if c.RateLimitPerMinute < 1 {
		errors = append(errors, fmt.Sprintf("invalid rate limit %d: must be at least 1 request per minute", c.RateLimitPerMinute))
	}

	validBackends := []string{BackendMemory, BackendSQLite}
	if !slices.Contains(validBackends, c.DataBackend) {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}

	if c.DataBackend == BackendSQLite {
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
		} else {
			dir := filepath.Dir(c.SQLiteDBPath)
			if dir != "." && dir != "" {
				if _, err := os.Stat(dir); os.IsNotExist(err) {
					if err := os.MkdirAll(dir, 0755); err != nil {
						errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
					}
				}
			}
		}
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	switch c.RatesSource {
	case RatesStatic:
		if c.RatesFile != "" {
			if _, err := os.Stat(c.RatesFile); err != nil {
				errors = append(errors, fmt.Sprintf("rates file '%s' is not readable: %v", c.RatesFile, err))
			}
		}
	case RatesBCB:
		if u, err := url.Parse(c.BCBBaseURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			errors = append(errors, fmt.Sprintf("invalid BCB base URL '%s': must be an http(s) URL", c.BCBBaseURL))
		}
	default:
		errors = append(errors, fmt.Sprintf("invalid rates source '%s': must be one of [%s %s]", c.RatesSource, RatesStatic, RatesBCB))
	}

	for name, v := range map[string]decimal.Decimal{
		"RATES_CDI_ANNUAL":   c.CDIAnnual,
		"RATES_SELIC_ANNUAL": c.SelicAnnual,
		"RATES_TR_MONTHLY":   c.TRMonthly,
	} {
		if v.IsNegative() {
			errors = append(errors, fmt.Sprintf("invalid %s %s: cannot be negative", name, v))
		}
	}
	if !c.CDBPercentOfCDI.IsPositive() {
		errors = append(errors, fmt.Sprintf("invalid CDB_PERCENT_OF_CDI %s: must be positive", c.CDBPercentOfCDI))
	}

	if c.RatesTTL < time.Second {
		errors = append(errors, fmt.Sprintf("invalid rates TTL %v: must be at least 1 second", c.RatesTTL))
	}
	if c.RatesTimeout < 100*time.Millisecond || c.RatesTimeout > 2*time.Minute {
		errors = append(errors, fmt.Sprintf("invalid rates timeout %v: must be between 100ms and 2m", c.RatesTimeout))
	}

	switch c.CacheBackend {
	case CacheMemory:
	case CacheRedis:
		if c.RedisAddr == "" {
			errors = append(errors, "Redis address cannot be empty when using redis cache")
		}
		if c.RedisDB < 0 {
			errors = append(errors, fmt.Sprintf("invalid Redis DB %d: cannot be negative", c.RedisDB))
		}
	default:
		errors = append(errors, fmt.Sprintf("invalid cache backend '%s': must be one of [%s %s]", c.CacheBackend, CacheMemory, CacheRedis))
	}
	if c.CacheCleanupInterval < time.Second {
		errors = append(errors, fmt.Sprintf("invalid cache cleanup interval %v: must be at least 1 second", c.CacheCleanupInterval))
	}

	if _, err := cronParser.Parse(c.RatesRefreshCron); err != nil {
		errors = append(errors, fmt.Sprintf("invalid rates refresh cron '%s': %v", c.RatesRefreshCron, err))
	}
	if c.ReprojectConcurrency < 1 || c.ReprojectConcurrency > 64 {
		errors = append(errors, fmt.Sprintf("invalid reproject concurrency %d: must be between 1 and 64", c.ReprojectConcurrency))
	}
	if c.TaskTimeout < time.Second {
		errors = append(errors, fmt.Sprintf("invalid task timeout %v: must be at least 1 second", c.TaskTimeout))
	}

	if c.GoogleServiceAccountFile != "" {
		if _, err := os.Stat(c.GoogleServiceAccountFile); os.IsNotExist(err) {
			errors = append(errors, fmt.Sprintf("Google service account file does not exist: %s", c.GoogleServiceAccountFile))
		}
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

// SheetsEnabled reports whether the Google Sheets export is configured.
func (c *Config) SheetsEnabled() bool {
	return c.GoogleSpreadsheetID != ""
}

var cronParser = cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// getEnvList splits a comma separated value, dropping empty items.
func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// getEnvDecimal parses a decimal, accepting a comma as separator. Unlike the
// other helpers it does not fall back silently: a bad value is reported by Validate.
func (c *Config) getEnvDecimal(key, defaultValue string) decimal.Decimal {
	raw := getEnv(key, defaultValue)
	d, err := decimal.NewFromString(strings.ReplaceAll(strings.TrimSpace(raw), ",", "."))
	if err != nil {
		c.loadErrors = append(c.loadErrors, fmt.Sprintf("invalid %s '%s': not a decimal number", key, raw))
		return decimal.RequireFromString(defaultValue)
	}
	return d
}
