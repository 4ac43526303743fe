package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Lookup reads a value from the settings table. *data.Settings implements it.
type Lookup interface {
	Get(name string) string
}

type Config struct {
	Port     string
	RedisURL string
	MySQLDSN string

	SnapshotURL    string
	SnapshotAPIKey string
	TallyURL       string
	TallyAPIKey    string
	TallyMaxPages  int

	CacheFreshness  time.Duration
	CacheStale      time.Duration
	CacheMaxEntries int
	PageSize        int

	UpstreamTimeout time.Duration
	RetryAttempts   int
	RetryDelay      time.Duration

	RateLimit   int
	RateWindow  time.Duration
	CORSOrigins []string

	EnableSSL bool
	SSLCert   string
	SSLKey    string

	LogLevel  string
	LogFormat string
}

type loader struct {
	settings Lookup
	errs     []error
}

// get resolves the settings table, then the environment, then def.
func (l *loader) get(env, def string) string {
	if l.settings != nil {
		if v := strings.TrimSpace(l.settings.Get(strings.ToLower(env))); v != "" {
			return v
		}
	}
	if v := strings.TrimSpace(os.Getenv(env)); v != "" {
		return v
	}
	return def
}

func (l *loader) getInt(env string, def int) int {
	raw := l.get(env, "")
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		l.errs = append(l.errs, fmt.Errorf("%s: %q is not an integer", env, raw))
		return def
	}
	return n
}

func (l *loader) getDuration(env string, def time.Duration) time.Duration {
	raw := l.get(env, "")
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		l.errs = append(l.errs, fmt.Errorf("%s: %q is not a duration", env, raw))
		return def
	}
	return d
}

func (l *loader) getBool(env string, def bool) bool {
	raw := l.get(env, "")
	if raw == "" {
		return def
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		l.errs = append(l.errs, fmt.Errorf("%s: %q is not a boolean", env, raw))
		return def
	}
	return b
}

// Load builds the configuration. settings may be nil when no database is configured.
func Load(settings Lookup) (Config, error) {
	l := &loader{settings: settings}

	cfg := Config{
		Port:     l.get("PORT", "8080"),
		RedisURL: l.get("REDIS_URL", ""),
		MySQLDSN: l.get("MYSQL_DSN", ""),

		SnapshotURL:    l.get("SNAPSHOT_URL", "https://hub.snapshot.org/graphql"),
		SnapshotAPIKey: l.get("SNAPSHOT_API_KEY", ""),
		TallyURL:       l.get("TALLY_URL", "https://api.tally.xyz/query"),
		TallyAPIKey:    l.get("TALLY_API_KEY", ""),
		TallyMaxPages:  l.getInt("TALLY_MAX_PAGES", 10),

		CacheFreshness:  l.getDuration("CACHE_FRESHNESS", 10*time.Hour),
		CacheStale:      l.getDuration("CACHE_STALE", 24*time.Hour),
		CacheMaxEntries: l.getInt("CACHE_MAX_ENTRIES", 1024),
		PageSize:        l.getInt("PAGE_SIZE", 20),

		UpstreamTimeout: l.getDuration("UPSTREAM_TIMEOUT", 60*time.Second),
		RetryAttempts:   l.getInt("RETRY_ATTEMPTS", 5),
		RetryDelay:      l.getDuration("RETRY_DELAY", 3*time.Second),

		RateLimit:   l.getInt("RATE_LIMIT", 120),
		RateWindow:  l.getDuration("RATE_WINDOW", time.Minute),
		CORSOrigins: splitList(l.get("CORS_ORIGINS", "*")),

		EnableSSL: l.getBool("ENABLE_SSL", false),
		SSLCert:   l.get("SSL_CERT", ""),
		SSLKey:    l.get("SSL_KEY", ""),

		LogLevel:  l.get("LOG_LEVEL", "info"),
		LogFormat: l.get("LOG_FORMAT", "json"),
	}

	if err := errors.Join(l.errs...); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

// MySQLDSN returns MYSQL_DSN from the environment. The DSN is needed before the
// settings table can be read, so it never comes from the table.
func MySQLDSN() string {
	return strings.TrimSpace(os.Getenv("MYSQL_DSN"))
}

// Validate rejects inconsistent values.
func (c Config) Validate() error {
	var errs []error
	if _, err := strconv.ParseUint(c.Port, 10, 16); err != nil {
		errs = append(errs, fmt.Errorf("PORT: %q is not a valid port", c.Port))
	}
	if c.CacheFreshness <= 0 {
		errs = append(errs, errors.New("CACHE_FRESHNESS must be positive"))
	}
	if c.CacheStale < 0 {
		errs = append(errs, errors.New("CACHE_STALE must not be negative"))
	}
	if c.CacheMaxEntries < 1 {
		errs = append(errs, errors.New("CACHE_MAX_ENTRIES must be at least 1"))
	}
	if c.PageSize < 1 || c.PageSize > 1000 {
		errs = append(errs, errors.New("PAGE_SIZE must be between 1 and 1000"))
	}
	if c.UpstreamTimeout <= 0 {
		errs = append(errs, errors.New("UPSTREAM_TIMEOUT must be positive"))
	}
	if c.RetryAttempts < 1 {
		errs = append(errs, errors.New("RETRY_ATTEMPTS must be at least 1"))
	}
	if c.RetryDelay < 0 {
		errs = append(errs, errors.New("RETRY_DELAY must not be negative"))
	}
	if c.TallyMaxPages < 1 {
		errs = append(errs, errors.New("TALLY_MAX_PAGES must be at least 1"))
	}
	if c.RateLimit < 0 {
		errs = append(errs, errors.New("RATE_LIMIT must not be negative"))
	}
	if c.RateLimit > 0 && c.RateWindow <= 0 {
		errs = append(errs, errors.New("RATE_WINDOW must be positive when RATE_LIMIT is set"))
	}
	if c.EnableSSL && (c.SSLCert == "" || c.SSLKey == "") {
		errs = append(errs, errors.New("SSL_CERT and SSL_KEY are required when ENABLE_SSL is set"))
	}
	switch c.LogFormat {
	case "json", "console":
	default:
		errs = append(errs, fmt.Errorf("LOG_FORMAT: %q is not json or console", c.LogFormat))
	}
	return errors.Join(errs...)
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
