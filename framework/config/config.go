package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config is the central typed configuration struct.
type Config struct {
	App       AppConfig
	HTTP      HTTPConfig
	Log       LogConfig
	Container ContainerConfig
}

type AppConfig struct {
	Name  string
	Env   string // local | production | testing
	Debug bool
}

type HTTPConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// Addr returns host:port for http.Server.
func (h HTTPConfig) Addr() string { return h.Host + ":" + h.Port }

type LogConfig struct {
	Level  string // zerolog level name
	Pretty bool   // console writer instead of JSON
}

type ContainerConfig struct {
	// MaxDepth bounds nested resolutions before a cycle is reported.
	MaxDepth int
}

// Load reads .env (if present) and populates a Config from environment variables.
// Call once at bootstrap: cfg := config.Load()
func Load(envFiles ...string) *Config {
	files := envFiles
	if len(files) == 0 {
		files = []string{".env"}
	}
	// Non-fatal: .env may not exist in production
	_ = godotenv.Load(files...)

	return &Config{
		App: AppConfig{
			Name:  Get("APP_NAME", "go-container"),
			Env:   Get("APP_ENV", "local"),
			Debug: GetBool("APP_DEBUG", false),
		},
		HTTP: HTTPConfig{
			Host:            Get("APP_HOST", ""),
			Port:            Get("APP_PORT", "8000"),
			ReadTimeout:     GetDuration("HTTP_READ_TIMEOUT", 10*time.Second),
			ShutdownTimeout: GetDuration("HTTP_SHUTDOWN_TIMEOUT", 5*time.Second),
		},
		Log: LogConfig{
			Level:  Get("LOG_LEVEL", "info"),
			Pretty: GetBool("LOG_PRETTY", false),
		},
		Container: ContainerConfig{
			MaxDepth: GetInt("CONTAINER_MAX_DEPTH", 64),
		},
	}
}

// Get returns a raw env value, falling back to defaultVal.
func Get(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

// GetInt returns an int env value.
func GetInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

// GetBool returns a strconv.ParseBool env value.
func GetBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
}

// GetDuration returns a time.ParseDuration env value, e.g. "15s".
func GetDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
