package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port                string
	CatalogPath         string
	LocalDBPath         string
	FirebaseCredentials string
	AutosaveDelay       time.Duration
	ETATickInterval     time.Duration
	DefaultSpeedKmh     float64
	ClientURL           string
	Debug               bool

	// EnvFileLoaded is false when no .env file was found. Values then come
	// from the process environment only.
	EnvFileLoaded bool
}

// Load reads envFile (if present) into the environment and builds the config.
// Invalid values fall back to their defaults.
func Load(envFile string) Config {
	if envFile == "" {
		envFile = ".env"
	}
	loaded := godotenv.Load(envFile) == nil

	return Config{
		Port:                getEnv("PORT", "8080"),
		CatalogPath:         getEnv("CATALOG_PATH", "./resources.csv"),
		LocalDBPath:         getEnv("LOCAL_DB_PATH", "emtrack.db"),
		FirebaseCredentials: os.Getenv("FIREBASE_CREDENTIALS"),
		AutosaveDelay:       time.Duration(getEnvInt("AUTOSAVE_DELAY_MS", 800)) * time.Millisecond,
		ETATickInterval:     getEnvDuration("ETA_TICK_INTERVAL", 10*time.Second),
		DefaultSpeedKmh:     getEnvFloat("DEFAULT_SPEED_KMH", 30),
		ClientURL:           strings.TrimRight(os.Getenv("CLIENT_URL"), "/"),
		Debug:               getEnvBool("DEBUG", false),
		EnvFileLoaded:       loaded,
	}
}

func (c Config) Addr() string {
	return ":" + c.Port
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	n, err := strconv.Atoi(getEnv(key, ""))
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

func getEnvFloat(key string, fallback float64) float64 {
	f, err := strconv.ParseFloat(getEnv(key, ""), 64)
	if err != nil || f <= 0 {
		return fallback
	}
	return f
}

func getEnvBool(key string, fallback bool) bool {
	b, err := strconv.ParseBool(getEnv(key, ""))
	if err != nil {
		return fallback
	}
	return b
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(getEnv(key, ""))
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
