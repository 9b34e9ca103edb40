package config

import (
	"os"
	"path/filepath"
	"strings"
)

// SessionBackend selects where the persisted session record lives
type SessionBackend string

const (
	SessionBackendMemory SessionBackend = "memory"
	SessionBackendFile   SessionBackend = "file"
	SessionBackendSQLite SessionBackend = "sqlite"
)

const defaultSessionDir = ".distribution-console"

type Storage struct{}

var _ StorageConfig = Storage{}

func (Storage) GetSessionBackend() SessionBackend {
	switch SessionBackend(strings.ToLower(GetEnv("SESSION_BACKEND", string(SessionBackendFile)))) {
	case SessionBackendMemory:
		return SessionBackendMemory
	case SessionBackendSQLite:
		return SessionBackendSQLite
	default:
		return SessionBackendFile
	}
}

func (s Storage) GetSessionPath() string {
	if p := os.Getenv("SESSION_PATH"); p != "" {
		return p
	}
	name := "session.json"
	if s.GetSessionBackend() == SessionBackendSQLite {
		name = "session.db"
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(defaultSessionDir, name)
	}
	return filepath.Join(home, defaultSessionDir, name)
}

// GetSessionPassphrase enables at-rest encryption of the file backend when set
func (Storage) GetSessionPassphrase() string {
	return os.Getenv("SESSION_PASSPHRASE")
}
