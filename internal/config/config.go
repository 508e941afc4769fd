package config

import "time"

type Config interface {
	EnvConfig
	TransportConfig
	StorageConfig
}

type EnvConfig interface {
	GetAPIURL() string
	GetAppName() string
	GetAppID() string
	GetDataFolder() string
	GetLogLevel() string
	GetEnv() string
}

type TransportConfig interface {
	GetHTTPTimeout() time.Duration
	GetConnectTimeout() time.Duration
	GetWriteTimeout() time.Duration
	GetHeartbeatInterval() time.Duration
}

type StorageConfig interface {
	GetCredentialsStore() StoreKind
	GetRedisURL() string
	GetEventBus() string
}

type mainConfig struct {
	EnvVars
	Transport
	Storage
}

// New returns a Config backed by environment variables only.
func New() Config {
	return newMainConfig(nil)
}

func newMainConfig(file fileValues) mainConfig {
	src := source{file: file}
	return mainConfig{
		EnvVars:   EnvVars{src: src},
		Transport: Transport{src: src},
		Storage:   Storage{src: src},
	}
}
