package app

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	HTTPAddr            string
	GlobalTimeout       time.Duration
	LogLevel            string
	LogFormat           string
	UserAgent           string
	BnFEndpoint         string
	BnFTimeout          time.Duration
	GoogleBooksEndpoint string
	GoogleBooksAPIKey   string
	GoogleBooksTimeout  time.Duration
	OpenLibraryEndpoint string
	OpenLibraryCovers   string
	OpenLibraryTimeout  time.Duration
	DefaultStrategy     string
	RedisURL            string
	CacheTTL            time.Duration
	CacheDisabled       bool
}

func LoadConfig() Config {
	return Config{
		HTTPAddr:            getEnv("HTTP_ADDR", ":8091"),
		GlobalTimeout:       time.Duration(getEnvInt("METASEARCH_TIMEOUT_SECONDS", 5)) * time.Second,
		LogLevel:            strings.ToLower(getEnv("LOG_LEVEL", "info")),
		LogFormat:           strings.ToLower(getEnv("LOG_FORMAT", "text")),
		UserAgent:           getEnv("METASEARCH_USER_AGENT", "librarium-metasearch/1.0"),
		BnFEndpoint:         getEnv("METASEARCH_SOURCE_BNF_ENDPOINT", "https://catalogue.bnf.fr/api/SRU"),
		BnFTimeout:          time.Duration(getEnvInt("METASEARCH_SOURCE_BNF_TIMEOUT_SECONDS", 3)) * time.Second,
		GoogleBooksEndpoint: getEnv("METASEARCH_SOURCE_GOOGLEBOOKS_ENDPOINT", "https://www.googleapis.com/books/v1/volumes"),
		GoogleBooksAPIKey:   strings.TrimSpace(os.Getenv("GOOGLE_BOOKS_API_KEY")),
		GoogleBooksTimeout:  time.Duration(getEnvInt("METASEARCH_SOURCE_GOOGLEBOOKS_TIMEOUT_SECONDS", 3)) * time.Second,
		OpenLibraryEndpoint: getEnv("METASEARCH_SOURCE_OPENLIBRARY_ENDPOINT", "https://openlibrary.org"),
		OpenLibraryCovers:   getEnv("METASEARCH_SOURCE_OPENLIBRARY_COVERS", "https://covers.openlibrary.org"),
		OpenLibraryTimeout:  time.Duration(getEnvInt("METASEARCH_SOURCE_OPENLIBRARY_TIMEOUT_SECONDS", 4)) * time.Second,
		DefaultStrategy:     strings.ToLower(getEnv("METASEARCH_STRATEGY", "best")),
		RedisURL:            getEnv("REDIS_URL", ""),
		CacheTTL:            time.Duration(getEnvInt("METASEARCH_CACHE_TTL_HOURS", 24)) * time.Hour,
		CacheDisabled:       getEnvBool("METASEARCH_CACHE_DISABLED", false),
	}
}

func getEnv(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func getEnvInt(key string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	raw := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if raw == "" {
		return fallback
	}
	switch raw {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}
