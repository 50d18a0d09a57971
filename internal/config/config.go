package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/DoyleJ11/blackjack-client/internal/transport"
)

type Config struct {
	BackendURL string
	Transport  transport.Config
	LogLevel   string
	LogFile    string
	NameFile   string
}

// Load reads an optional .env file from the working directory, then the
// environment. Variables already set in the environment win over .env.
func Load() (*Config, error) {
	return LoadFiles(".env")
}

// LoadFiles is Load with explicit dotenv files. Missing files are skipped.
func LoadFiles(files ...string) (*Config, error) {
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", f, err)
		}
	}

	backend := strings.TrimRight(getEnv("BACKEND_URL", "http://localhost:3001"), "/")
	if backend == "" {
		return nil, fmt.Errorf("BACKEND_URL is required")
	}

	tc := transport.DefaultConfig(backend)

	names, err := parseTransports(getEnv("BLACKJACK_TRANSPORTS", strings.Join(tc.Transports, ",")))
	if err != nil {
		return nil, fmt.Errorf("invalid BLACKJACK_TRANSPORTS: %w", err)
	}
	tc.Transports = names

	if tc.Timeout, err = getDuration("BLACKJACK_CONNECT_TIMEOUT", tc.Timeout); err != nil {
		return nil, err
	}
	if tc.RetryDelay, err = getDuration("BLACKJACK_RETRY_DELAY", tc.RetryDelay); err != nil {
		return nil, err
	}

	maxRetries, err := strconv.Atoi(getEnv("BLACKJACK_MAX_RETRIES", strconv.Itoa(tc.MaxRetries)))
	if err != nil || maxRetries < 1 {
		return nil, fmt.Errorf("invalid BLACKJACK_MAX_RETRIES: must be a positive integer")
	}
	tc.MaxRetries = maxRetries

	cfg := &Config{
		BackendURL: backend,
		Transport:  tc,
		LogLevel:   getEnv("BLACKJACK_LOG_LEVEL", "info"),
		LogFile:    getEnv("BLACKJACK_LOG_FILE", ""),
		NameFile:   getEnv("BLACKJACK_NAME_FILE", defaultNameFile()),
	}
	return cfg, nil
}

func parseTransports(v string) ([]string, error) {
	var out []string
	for _, name := range strings.Split(v, ",") {
		name = strings.ToLower(strings.TrimSpace(name))
		switch name {
		case "":
			continue
		case transport.NameWebsocket, transport.NamePolling:
			out = append(out, name)
		default:
			return nil, fmt.Errorf("%w: %q", transport.ErrUnknownTransport, name)
		}
	}
	if len(out) == 0 {
		return nil, transport.ErrNoTransports
	}
	return out, nil
}

func getDuration(key string, def time.Duration) (time.Duration, error) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s: %q is not a positive duration", key, v)
	}
	return d, nil
}

func defaultNameFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".blackjack_username"
	}
	return filepath.Join(home, ".blackjack_username")
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}
