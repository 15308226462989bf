package config

import (
	"encoding/hex"
	"fmt"

	"github.com/jrsteele09/go-auth-client/internal/errors"
)

// StoreKind selects the persistence backend for the session
type StoreKind string

const (
	StoreFile   StoreKind = "file"
	StoreSQLite StoreKind = "sqlite"
	StoreMemory StoreKind = "memory"
)

const storeKeyLength = 32

type StorageConfig interface {
	GetStoreKind() StoreKind
	GetStorePath() string
	GetStoreKey() ([]byte, error)
}

type Storage struct {
	Kind StoreKind `env:"PROPMAN_STORE,default=file" validate:"oneof=file sqlite memory"`
	Path string    `env:"PROPMAN_STORE_PATH"`
	Key  string    `env:"PROPMAN_STORE_KEY" validate:"omitempty,hexadecimal"`
}

var _ StorageConfig = Storage{}

func (s Storage) GetStoreKind() StoreKind {
	return s.Kind
}

func (s Storage) GetStorePath() string {
	if s.Path != "" {
		return s.Path
	}
	switch s.Kind {
	case StoreSQLite:
		return ".propman-session.db"
	default:
		return ".propman-session.json"
	}
}

// GetStoreKey returns the decoded at-rest encryption key, or nil when encryption is off.
func (s Storage) GetStoreKey() ([]byte, error) {
	if s.Key == "" {
		return nil, nil
	}
	key, err := hex.DecodeString(s.Key)
	if err != nil {
		return nil, errors.Join(errors.ErrInvalidConfig, err)
	}
	if len(key) != storeKeyLength {
		return nil, errors.Join(errors.ErrInvalidConfig, fmt.Errorf("PROPMAN_STORE_KEY must be %d bytes, got %d", storeKeyLength, len(key)))
	}
	return key, nil
}
