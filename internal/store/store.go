// Package store persists the station configuration document with atomic
// replace-by-rename writes, a backup copy kept alongside it, and recovery from
// that backup when the primary file is unreadable.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/tidwall/jsonc"

	"github.com/kensar/kiosk/internal/metrics"
)

const (
	configFile = "station.json"
	backupFile = "station.json.bak"
	tmpFile    = "station.json.tmp"
)

// ErrMissingDevice is returned by Reset when the preserved device identity is
// incomplete. Reset never invents device identity.
var ErrMissingDevice = errors.New("reset requires device id and label")

// errNotObject marks a file that parsed as JSON but is not a document.
var errNotObject = errors.New("config is not a JSON object")

// Store owns the configuration files in a single directory. All operations
// are serialized; a single process is assumed to own the directory.
type Store struct {
	dir     string
	logger  *slog.Logger
	metrics *metrics.Recorder

	mu sync.Mutex
}

// New returns a Store rooted at dir. logger and rec may be nil.
func New(dir string, logger *slog.Logger, rec *metrics.Recorder) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{dir: dir, logger: logger.With("component", "store"), metrics: rec}
}

// Dir returns the directory holding the configuration files.
func (s *Store) Dir() string { return s.dir }

// Path returns the primary document path.
func (s *Store) Path() string { return filepath.Join(s.dir, configFile) }

// BackupPath returns the path of the recovery copy of the document.
func (s *Store) BackupPath() string { return filepath.Join(s.dir, backupFile) }

// TempPath returns the staging path used during a save.
func (s *Store) TempPath() string { return filepath.Join(s.dir, tmpFile) }

// Load returns the stored document, or nil when there is no configuration yet.
// An unreadable primary falls back to the backup, which is then restored as
// the primary. A nil result is not an error: callers treat it as first run.
func (s *Store) Load() Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

// Save atomically replaces the stored document.
func (s *Store) Save(doc Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.write(doc, true)
}

// Merge shallow-merges partial over the current document (or an empty one),
// saves and returns the result. A nil value removes the key.
func (s *Store) Merge(partial Document) (Document, error) {
	if partial == nil {
		partial = Document{}
	}
	return s.Modify(func(Document) (Document, error) { return partial, nil })
}

// Modify runs fn with the current document under the store lock and merges
// the partial it returns. When fn returns a nil partial nothing is written
// and the current document is returned unchanged.
func (s *Store) Modify(fn func(current Document) (Document, error)) (Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current := s.load()
	partial, err := fn(current.Clone())
	if err != nil {
		return current, err
	}
	if partial == nil {
		return current, nil
	}

	next := current.Clone()
	for k, v := range partial {
		if v == nil {
			delete(next, k)
			continue
		}
		next[k] = v
	}
	if err := s.write(next, true); err != nil {
		return current, err
	}
	return next, nil
}

// Reset replaces the stored document with exactly the preserved fields,
// dropping station identity and any other keys.
func (s *Store) Reset(p Preserve) (Document, error) {
	if p.DeviceID == "" || p.DeviceLabel == "" {
		return nil, ErrMissingDevice
	}
	doc := p.document()

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.write(doc, true); err != nil {
		return nil, err
	}
	return doc, nil
}

func (s *Store) load() Document {
	doc, err := readDocument(s.Path())
	if err == nil {
		return doc
	}
	if !errors.Is(err, fs.ErrNotExist) {
		s.logger.Warn("primary config unreadable, trying backup", "path", s.Path(), "err", err)
	}

	backup, berr := readDocument(s.BackupPath())
	if berr != nil {
		if !errors.Is(berr, fs.ErrNotExist) {
			s.logger.Warn("backup config unreadable", "path", s.BackupPath(), "err", berr)
		}
		return nil
	}

	// The unreadable primary must not be copied over the only good backup,
	// so the restore skips the backup step.
	if err := s.write(backup, false); err != nil {
		s.logger.Warn("restore config from backup failed", "err", err)
	} else {
		s.metrics.BackupRestored()
		s.logger.Info("restored config from backup")
	}
	return backup
}

// write performs the save sequence. Only the temp write and the rename are
// allowed to fail the save; every other step is best-effort. With backup set,
// the previous primary is copied aside before the write and the committed
// document is copied over it afterwards, so the backup always holds the last
// complete document, including while a write is in flight.
func (s *Store) write(doc Document, backup bool) (err error) {
	defer func() { s.metrics.ConfigSaved(err) }()

	if doc == nil {
		doc = Document{}
	}
	payload, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.MkdirAll(s.dir, 0700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	target, tmp := s.Path(), s.TempPath()
	defer func() {
		if exists(tmp) {
			s.bestEffort("remove temp config", os.Remove(tmp))
		}
	}()

	if backup && exists(target) {
		s.bestEffort("copy config to backup", copyFile(target, s.BackupPath()))
	}
	if err := writeFileSync(tmp, payload); err != nil {
		return fmt.Errorf("write temp config: %w", err)
	}
	if exists(target) {
		s.bestEffort("remove stale config", os.Remove(target))
	}
	if err := os.Rename(tmp, target); err != nil {
		return fmt.Errorf("rename temp config: %w", err)
	}
	if backup {
		s.bestEffort("refresh config backup", copyFile(target, s.BackupPath()))
	}
	return nil
}

// bestEffort logs the failure of a non-essential step and discards it.
func (s *Store) bestEffort(step string, err error) {
	if err != nil {
		s.logger.Debug(step+" failed", "err", err)
	}
}

func readDocument(path string) (Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var raw any
	if err := json.Unmarshal(jsonc.ToJSON(data), &raw); err != nil {
		return nil, fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}
	obj, ok := raw.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("parse %s: %w", filepath.Base(path), errNotObject)
	}
	return Document(obj), nil
}

func writeFileSync(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
