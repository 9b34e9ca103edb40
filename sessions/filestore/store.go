// Package filestore persists the session record as a single JSON document on
// disk, optionally sealed with a passphrase.
package filestore

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/HARD953/distribut-sub001/internal/errors"
	"github.com/HARD953/distribut-sub001/sessions"
	pkgerrors "github.com/pkg/errors"
)

var _ sessions.Repo = (*Store)(nil)

const (
	fileMode = 0o600
	dirMode  = 0o700
)

// document is the on-disk shape, one field per slot.
type document struct {
	Access  string          `json:"access,omitempty"`
	Refresh string          `json:"refresh,omitempty"`
	User    json.RawMessage `json:"user,omitempty"`
}

type Store struct {
	path   string
	sealer *sealer
	lock   sync.Mutex
}

type Option func(*Store)

// WithPassphrase seals the file with a key derived from passphrase.
func WithPassphrase(passphrase string) Option {
	return func(s *Store) {
		if passphrase != "" {
			s.sealer = newSealer(passphrase)
		}
	}
}

// New returns a store writing to path. The parent directory is created on
// first write.
func New(path string, options ...Option) (*Store, error) {
	if path == "" {
		return nil, pkgerrors.New("[filestore.New] path is required")
	}
	s := &Store{path: filepath.Clean(path)}
	for _, opt := range options {
		opt(s)
	}
	return s, nil
}

func (s *Store) Path() string {
	return s.path
}

func (s *Store) Load() (*sessions.Record, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	doc, err := s.read()
	if err != nil {
		return nil, err
	}
	return &sessions.Record{
		Access:  doc.Access,
		Refresh: doc.Refresh,
		User:    sessions.DecodeUser(string(doc.User)),
	}, nil
}

func (s *Store) Save(rec *sessions.Record) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	doc := document{}
	if rec != nil {
		user, err := sessions.EncodeUser(rec.User)
		if err != nil {
			return pkgerrors.Wrap(err, "[filestore.Save] encode user")
		}
		doc = document{Access: rec.Access, Refresh: rec.Refresh}
		if user != "" {
			doc.User = json.RawMessage(user)
		}
	}
	return s.write(doc)
}

func (s *Store) SaveAccess(access string) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	doc, err := s.read()
	if err != nil {
		// An unreadable file cannot be partially updated; start over with the access slot only.
		doc = &document{}
	}
	doc.Access = access
	return s.write(*doc)
}

func (s *Store) Clear() error {
	s.lock.Lock()
	defer s.lock.Unlock()

	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return pkgerrors.Wrap(err, "[filestore.Clear] remove")
	}
	return nil
}

func (s *Store) read() (*document, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return &document{}, nil
	}
	if err != nil {
		return nil, pkgerrors.Wrap(err, "[filestore.read] read")
	}
	if len(data) == 0 {
		return &document{}, nil
	}

	switch {
	case s.sealer != nil:
		if data, err = s.sealer.open(data); err != nil {
			return nil, err
		}
	case isSealed(data):
		return nil, errors.ErrDecrypt
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, pkgerrors.Wrap(err, "[filestore.read] decode")
	}
	return &doc, nil
}

// write replaces the file atomically: temp file in the same directory, fsync, rename.
func (s *Store) write(doc document) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return pkgerrors.Wrap(err, "[filestore.write] encode")
	}
	if s.sealer != nil {
		if data, err = s.sealer.seal(data); err != nil {
			return err
		}
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, dirMode); err != nil {
		return pkgerrors.Wrap(err, "[filestore.write] mkdir")
	}
	tmp, err := os.CreateTemp(dir, ".session-*")
	if err != nil {
		return pkgerrors.Wrap(err, "[filestore.write] create temp")
	}
	tmpName := tmp.Name()
	defer func() {
		_ = os.Remove(tmpName) // no-op after a successful rename
	}()

	if err := tmp.Chmod(fileMode); err != nil {
		tmp.Close()
		return pkgerrors.Wrap(err, "[filestore.write] chmod")
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return pkgerrors.Wrap(err, "[filestore.write] write")
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return pkgerrors.Wrap(err, "[filestore.write] sync")
	}
	if err := tmp.Close(); err != nil {
		return pkgerrors.Wrap(err, "[filestore.write] close")
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return pkgerrors.Wrap(err, "[filestore.write] rename")
	}
	return nil
}
