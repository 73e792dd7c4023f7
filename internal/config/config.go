// Package config loads process settings from the environment.
package config

import (
	"fmt"
	"log/slog"
	"net/netip"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	EngineElasticsearch = "elasticsearch"
	EngineBleve         = "bleve"
)

type Config struct {
	Addr string

	Engine           string
	ElasticURLs      []string
	ElasticUsername  string
	ElasticPassword  string
	ElasticRefresh   string
	BleveDir         string
	IndexName        string
	BootstrapIndex   bool
	LogLevel         slog.Level
	RateLimitRPS     float64
	RateLimitBurst   int
	// TrustedProxies are the peers whose X-Forwarded-For is believed.
	TrustedProxies   []netip.Prefix
	AllowedOrigins   []string
	MaxBodyBytes     int64
	RequestTimeout   time.Duration
	OpenLibraryAgent string
	OpenLibraryRPS   float64
}

// LoadEnvFiles reads .env and .env.local from the working directory.
func LoadEnvFiles() {
	// Do not override environment provided by the runtime (e.g. Docker).
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")
}

// Load reads the configuration from the environment, applying defaults.
func Load() (Config, error) {
	cfg := Config{
		Addr:             getEnv("APP_ADDR", ":8080"),
		Engine:           strings.ToLower(getEnv("SEARCH_ENGINE", EngineElasticsearch)),
		ElasticURLs:      splitList(getEnv("ELASTICSEARCH_URLS", "http://localhost:9200")),
		ElasticUsername:  os.Getenv("ELASTICSEARCH_USERNAME"),
		ElasticPassword:  os.Getenv("ELASTICSEARCH_PASSWORD"),
		ElasticRefresh:   os.Getenv("ELASTICSEARCH_REFRESH"),
		BleveDir:         os.Getenv("BLEVE_DIR"),
		IndexName:        getEnv("INDEX_NAME", "books"),
		AllowedOrigins:   splitList(getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000")),
		OpenLibraryAgent: getEnv("OPENLIBRARY_USER_AGENT", "bookcatalogue/1.0"),
	}

	var errs []string
	collect := func(key string, err error) {
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", key, err))
		}
	}

	var err error
	cfg.BootstrapIndex, err = getBool("BOOTSTRAP_INDEX", false)
	collect("BOOTSTRAP_INDEX", err)
	cfg.RateLimitRPS, err = getFloat("RATE_LIMIT_RPS", 20)
	collect("RATE_LIMIT_RPS", err)
	cfg.RateLimitBurst, err = getInt("RATE_LIMIT_BURST", 40)
	collect("RATE_LIMIT_BURST", err)
	cfg.TrustedProxies, err = parsePrefixes(splitList(os.Getenv("TRUSTED_PROXIES")))
	collect("TRUSTED_PROXIES", err)
	maxBody, err := getInt("MAX_BODY_BYTES", 1<<20)
	collect("MAX_BODY_BYTES", err)
	cfg.MaxBodyBytes = int64(maxBody)
	cfg.RequestTimeout, err = getDuration("REQUEST_TIMEOUT", 10*time.Second)
	collect("REQUEST_TIMEOUT", err)
	cfg.OpenLibraryRPS, err = getFloat("OPENLIBRARY_RPS", 5)
	collect("OPENLIBRARY_RPS", err)
	collect("LOG_LEVEL", cfg.LogLevel.UnmarshalText([]byte(getEnv("LOG_LEVEL", "info"))))

	if cfg.Engine != EngineElasticsearch && cfg.Engine != EngineBleve {
		errs = append(errs, fmt.Sprintf("SEARCH_ENGINE: unknown engine %q", cfg.Engine))
	}
	if cfg.Engine == EngineElasticsearch && len(cfg.ElasticURLs) == 0 {
		errs = append(errs, "ELASTICSEARCH_URLS: at least one address is required")
	}
	if strings.TrimSpace(cfg.IndexName) == "" {
		errs = append(errs, "INDEX_NAME: must not be empty")
	}

	if len(errs) > 0 {
		return Config{}, fmt.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return cfg, nil
}

// RedactURL hides the userinfo of a URL for logging.
func RedactURL(u string) string {
	const marker = "://"
	start := strings.Index(u, marker)
	if start < 0 {
		return u
	}
	start += len(marker)
	end := strings.Index(u[start:], "@")
	if end < 0 {
		return u
	}
	return u[:start] + "***" + u[start+end:]
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getBool(key string, def bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	return strconv.ParseBool(v)
}

func getInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	return strconv.Atoi(v)
}

func getFloat(key string, def float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	return strconv.ParseFloat(v, 64)
}

func getDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	return time.ParseDuration(v)
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// parsePrefixes accepts CIDR ranges and bare addresses.
func parsePrefixes(items []string) ([]netip.Prefix, error) {
	out := make([]netip.Prefix, 0, len(items))
	for _, item := range items {
		if p, err := netip.ParsePrefix(item); err == nil {
			out = append(out, p.Masked())
			continue
		}
		addr, err := netip.ParseAddr(item)
		if err != nil {
			return nil, fmt.Errorf("invalid address or CIDR %q", item)
		}
		out = append(out, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return out, nil
}
