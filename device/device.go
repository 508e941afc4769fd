// Package device derives the per-install hash sent as x-device-hash on every
// request and as device_hash on the realtime connection.
package device

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/google/uuid"
)

const (
	installIDFile = "install-id"
	machineIDPath = "/etc/machine-id"
)

// Identity is derived once per process and never changes afterwards.
type Identity struct {
	Hash string
}

func (i Identity) String() string {
	return i.Hash
}

// Properties are the device attributes the hash is derived from.
type Properties struct {
	Model  string
	Serial string
	AppID  string
}

// Derive hashes "model-serial-appID" with SHA-256, hex encoded.
func Derive(p Properties) Identity {
	sum := sha256.Sum256([]byte(p.Model + "-" + p.Serial + "-" + p.AppID))
	return Identity{Hash: hex.EncodeToString(sum[:])}
}

// HostProperties collects Properties for the current host. The serial is the
// machine id when readable, otherwise an install id persisted under dataFolder.
func HostProperties(appID, dataFolder string) (Properties, error) {
	host, err := os.Hostname()
	if err != nil {
		host = "unknown"
	}

	serial, err := readMachineID(machineIDPath)
	if err != nil {
		serial, err = installID(dataFolder)
		if err != nil {
			return Properties{}, err
		}
	}

	return Properties{
		Model:  fmt.Sprintf("%s/%s %s", runtime.GOOS, runtime.GOARCH, host),
		Serial: serial,
		AppID:  appID,
	}, nil
}

func readMachineID(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	id := strings.TrimSpace(string(data))
	if id == "" {
		return "", errors.New("empty machine id")
	}
	return id, nil
}

// installID returns the install id stored in dataFolder, creating it on first use.
func installID(dataFolder string) (string, error) {
	path := filepath.Join(dataFolder, installIDFile)
	if data, err := os.ReadFile(path); err == nil {
		if id, err := uuid.ParseBytes([]byte(strings.TrimSpace(string(data)))); err == nil {
			return id.String(), nil
		}
	}

	if err := os.MkdirAll(dataFolder, 0o700); err != nil {
		return "", fmt.Errorf("create data folder: %w", err)
	}
	id := uuid.NewString()
	if err := os.WriteFile(path, []byte(id+"\n"), 0o600); err != nil {
		return "", fmt.Errorf("write install id: %w", err)
	}
	return id, nil
}
