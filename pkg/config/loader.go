package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// DefaultConfigFile is the configuration file read when no path is given.
const DefaultConfigFile = "config.json"

// Loader reads, resolves, and validates configuration documents.
type Loader struct {
	// EnvFile is the dotenv file loaded before resolution (default ".env").
	EnvFile string

	// Lookup resolves environment variables (default os.LookupEnv).
	Lookup LookupFunc
}

// NewLoader returns a Loader with default settings.
func NewLoader() *Loader {
	return &Loader{EnvFile: ".env"}
}

// Load runs the full pipeline with default settings: dotenv loading, JSON
// parsing, ENV: resolution, tree validation, and typed decoding.
func Load(path string) (*Config, error) {
	return NewLoader().Load(path)
}

// Load reads and processes the configuration file at path.
func (l *Loader) Load(path string) (*Config, error) {
	l.loadEnvFile()

	if path == "" {
		path = DefaultConfigFile
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("configuration file not found at %q; create one or pass --config", path)
		}
		return nil, fmt.Errorf("reading configuration file %q: %w", path, err)
	}
	log.Debug().Str("path", path).Msg("loaded configuration file")

	return l.Parse(data)
}

// Parse runs resolution, validation, and decoding over an in-memory JSON
// document.
func (l *Loader) Parse(data []byte) (*Config, error) {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, NewSchemaViolationError("", "configuration must be a JSON object").WithCause(err)
	}

	resolved, dropped := ResolveEnv(raw, l.Lookup)
	cfg, err := BuildConfig(resolved, dropped)
	if err != nil {
		return nil, err
	}

	log.Debug().Interface("config", cfg.Redacted()).Msg("configuration validated")
	return cfg, nil
}

// loadEnvFile loads the dotenv file with override semantics so ENV: markers
// resolve against freshly loaded values. A missing file is not an error.
func (l *Loader) loadEnvFile() {
	envFile := l.EnvFile
	if envFile == "" {
		envFile = ".env"
	}
	if _, err := os.Stat(envFile); err != nil {
		log.Debug().Str("file", envFile).Msg("no .env file found, proceeding without overrides")
		return
	}
	if err := godotenv.Overload(envFile); err != nil {
		log.Warn().Err(err).Str("file", envFile).Msg("failed to load .env file")
		return
	}
	log.Debug().Str("file", envFile).Msg("loaded environment variables from .env file")
}
