package config

import (
	"os"
	"strings"
	"time"
)

const (
	apiURLEnvVar   = "API_URL"
	appNameVar     = "APP_NAME"
	appIDVar       = "APP_ID"
	folderEnvVar   = "DATA_FOLDER"
	logLevelEnvVar = "LOG_LEVEL"
)

// source resolves a key from the environment first, then the optional
// config file, then the supplied default.
type source struct {
	file fileValues
}

func (s source) get(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	if value, ok := s.file[key]; ok && value != "" {
		return value
	}
	return defaultValue
}

func (s source) duration(key string, defaultValue time.Duration) time.Duration {
	raw := s.get(key, "")
	if raw == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return defaultValue
	}
	return d
}

type EnvVars struct {
	src source
}

var _ EnvConfig = EnvVars{}

// GetAPIURL returns the API origin, always with a trailing slash so relative
// endpoint paths can be appended directly (e.g., "https://api.moment.app/").
func (e EnvVars) GetAPIURL() string {
	url := e.src.get(apiURLEnvVar, "http://localhost:8000/")
	if !strings.HasSuffix(url, "/") {
		url += "/"
	}
	return url
}

func (e EnvVars) GetAppName() string {
	return e.src.get(appNameVar, "Moment")
}

// GetAppID is mixed into the device hash, the equivalent of a package name.
func (e EnvVars) GetAppID() string {
	return e.src.get(appIDVar, "com.example.moment")
}

func (e EnvVars) GetDataFolder() string {
	return e.src.get(folderEnvVar, "./data")
}

func (e EnvVars) GetLogLevel() string {
	return e.src.get(logLevelEnvVar, "info")
}

func (e EnvVars) GetEnv() string {
	return e.src.get("ENV", "DEV")
}

func GetEnv(envVar, defaultValue string) string {
	value := os.Getenv(envVar)
	if value == "" {
		return defaultValue
	}
	return value
}
