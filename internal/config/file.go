package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// fileValues holds the flattened keys of a YAML config file, upper-cased to
// match the environment variable names ("api_url" -> "API_URL").
type fileValues map[string]string

// NewFromFile returns a Config that falls back to the YAML file at path for
// any key not set in the environment.
func NewFromFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	raw := map[string]any{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse config file %s: %w", path, err)
	}

	values := fileValues{}
	for k, v := range raw {
		if v == nil {
			continue
		}
		if _, nested := v.(map[string]any); nested {
			return nil, fmt.Errorf("config file %s: key %q must be a scalar", path, k)
		}
		values[strings.ToUpper(k)] = fmt.Sprint(v)
	}
	return newMainConfig(values), nil
}

// LoadDotEnv loads a .env file into the process environment if it exists.
// Variables already set are left untouched.
func LoadDotEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	return godotenv.Load(path)
}
