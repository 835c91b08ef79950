// Package config loads process configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// LookupFunc resolves one environment key.
type LookupFunc func(string) (string, bool)

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// ParseEnvWithLookup loads configuration through lookup instead of the
// process environment. A nil lookup falls back to ParseEnv.
func ParseEnvWithLookup(target any, lookup LookupFunc) error {
	if lookup == nil {
		return ParseEnv(target)
	}
	values := map[string]string{}
	for _, key := range envKeys(target) {
		if value, ok := lookup(key); ok {
			values[key] = value
		}
	}
	if err := env.ParseWithOptions(target, env.Options{Environment: values}); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

func envKeys(target any) []string {
	keys, err := env.GetFieldParams(target)
	if err != nil {
		return nil
	}
	out := make([]string, 0, len(keys))
	for _, param := range keys {
		out = append(out, param.Key)
	}
	return out
}

// LoadEnvFile merges a dotenv file into the process environment without
// overriding variables that are already set. An empty path is a no-op and a
// missing file is ignored.
func LoadEnvFile(path string) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}

// Exitf writes a formatted error message to stderr and exits with code 1.
func Exitf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
