// Package filestore keeps the token pair in a single encrypted file, the
// desktop counterpart of the app's private shared preferences.
package filestore

import (
	"context"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	moerrors "github.com/jrsteele09/go-moment-client/internal/errors"
	"github.com/jrsteele09/go-moment-client/token"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

const (
	formatVersion = 1
	saltSize      = 16
	keyInfo       = "moment-credentials"
)

var additionalData = []byte("moment-credentials-v1")

var _ token.Store = (*Store)(nil)

// envelope is the on-disk format. Salt and nonce are fresh on every save.
type envelope struct {
	Version int    `json:"v"`
	Salt    []byte `json:"salt"`
	Nonce   []byte `json:"nonce"`
	Data    []byte `json:"data"`
}

type Store struct {
	path   string
	secret []byte
	mu     sync.Mutex
}

// New returns a store writing to path. secret keys the encryption; the device
// hash is used so a copied file is useless on another install.
func New(path, secret string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("filestore: %w: empty path", moerrors.ErrInvalidConfig)
	}
	if secret == "" {
		return nil, fmt.Errorf("filestore: %w: empty secret", moerrors.ErrInvalidConfig)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("filestore: create folder: %w", err)
	}
	return &Store{path: path, secret: []byte(secret)}, nil
}

func (s *Store) Load(_ context.Context) (token.TokenPair, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return token.TokenPair{}, moerrors.ErrNoCredentials
	}
	if err != nil {
		return token.TokenPair{}, fmt.Errorf("filestore: read: %w", err)
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return token.TokenPair{}, fmt.Errorf("filestore: corrupt file: %w", err)
	}
	if env.Version != formatVersion {
		return token.TokenPair{}, fmt.Errorf("filestore: unsupported version %d", env.Version)
	}

	aead, err := s.aead(env.Salt)
	if err != nil {
		return token.TokenPair{}, err
	}
	plain, err := aead.Open(nil, env.Nonce, env.Data, additionalData)
	if err != nil {
		return token.TokenPair{}, fmt.Errorf("filestore: decrypt: %w", err)
	}

	var pair token.TokenPair
	if err := json.Unmarshal(plain, &pair); err != nil {
		return token.TokenPair{}, fmt.Errorf("filestore: decode pair: %w", err)
	}
	return pair, nil
}

// Save seals the pair and replaces the file with a rename, so readers in
// other processes see either the previous pair or the new one.
func (s *Store) Save(_ context.Context, pair token.TokenPair) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	plain, err := json.Marshal(pair)
	if err != nil {
		return fmt.Errorf("filestore: encode pair: %w", err)
	}

	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return fmt.Errorf("filestore: salt: %w", err)
	}
	aead, err := s.aead(salt)
	if err != nil {
		return err
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return fmt.Errorf("filestore: nonce: %w", err)
	}

	data, err := json.Marshal(envelope{
		Version: formatVersion,
		Salt:    salt,
		Nonce:   nonce,
		Data:    aead.Seal(nil, nonce, plain, additionalData),
	})
	if err != nil {
		return fmt.Errorf("filestore: encode envelope: %w", err)
	}
	return s.writeAtomic(data)
}

func (s *Store) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("filestore: remove: %w", err)
	}
	return nil
}

func (s *Store) aead(salt []byte) (cipher.AEAD, error) {
	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, s.secret, salt, []byte(keyInfo)), key); err != nil {
		return nil, fmt.Errorf("filestore: derive key: %w", err)
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("filestore: cipher: %w", err)
	}
	return aead, nil
}

func (s *Store) writeAtomic(data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".credentials-*")
	if err != nil {
		return fmt.Errorf("filestore: temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op once renamed

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("filestore: write: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("filestore: sync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("filestore: close: %w", err)
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return fmt.Errorf("filestore: chmod: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("filestore: rename: %w", err)
	}
	return nil
}
