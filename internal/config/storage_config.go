package config

import "strings"

// StoreKind selects the credential store implementation.
type StoreKind string

const (
	StoreFile   StoreKind = "file"
	StoreRedis  StoreKind = "redis"
	StoreMemory StoreKind = "memory"
)

type Storage struct {
	src source
}

var _ StorageConfig = Storage{}

func (s Storage) GetCredentialsStore() StoreKind {
	switch kind := StoreKind(strings.ToLower(s.src.get("CREDENTIALS_STORE", string(StoreFile)))); kind {
	case StoreFile, StoreRedis, StoreMemory:
		return kind
	default:
		return StoreFile
	}
}

func (s Storage) GetRedisURL() string {
	return s.src.get("REDIS_URL", "redis://localhost:6379/0")
}

// GetEventBus is "none" or "redis".
func (s Storage) GetEventBus() string {
	return strings.ToLower(s.src.get("EVENT_BUS", "none"))
}
