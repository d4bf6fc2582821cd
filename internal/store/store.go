// Package store keeps generated assets in a scratch directory on local disk.
// Writes are atomic (temp file plus rename), IDs are collision-free, and a
// periodic reclaim deletes assets past their TTL without ever touching an
// asset that is mid-write or currently being served.
package store

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Store manages asset files under a single scratch root.
type Store struct {
	root string

	mu     sync.Mutex
	pinned map[string]int // asset id -> active readers
}

// New creates the scratch root if needed and probes it for writability.
// A root that cannot be created or written to is a startup failure.
func New(root string) (*Store, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, &Error{Kind: KindIOFailure, Op: "init", Path: root, Err: err}
	}
	probe, err := os.CreateTemp(root, ".probe-*")
	if err != nil {
		return nil, &Error{Kind: KindIOFailure, Op: "init", Path: root, Err: err}
	}
	name := probe.Name()
	probe.Close()
	os.Remove(name)
	return &Store{root: root, pinned: make(map[string]int)}, nil
}

// Root returns the scratch directory the store writes under.
func (s *Store) Root() string { return s.root }

// Create writes payload to a new asset and returns its id. The payload lands
// in a temp file first and is renamed into place, so a crash mid-write never
// leaves a partial asset under a servable name.
func (s *Store) Create(prefix, ext string, payload []byte) (string, error) {
	id := prefix + "-" + uuid.NewString()
	if ext != "" {
		id += "." + strings.TrimPrefix(ext, ".")
	}
	path := filepath.Join(s.root, id)

	tmp, err := os.CreateTemp(s.root, id+".tmp.*")
	if err != nil {
		return "", &Error{Kind: KindIOFailure, Op: "create", Path: path, Err: err}
	}
	tmpName := tmp.Name()
	defer func() {
		tmp.Close()
		os.Remove(tmpName)
	}()

	if _, err := tmp.Write(payload); err != nil {
		return "", &Error{Kind: KindIOFailure, Op: "create", Path: path, Err: err}
	}
	if err := tmp.Chmod(0o644); err != nil {
		return "", &Error{Kind: KindIOFailure, Op: "create", Path: path, Err: err}
	}
	_ = tmp.Sync()
	if err := tmp.Close(); err != nil {
		return "", &Error{Kind: KindIOFailure, Op: "create", Path: path, Err: err}
	}
	if err := os.Rename(tmpName, path); err != nil {
		return "", &Error{Kind: KindIOFailure, Op: "create", Path: path, Err: err}
	}
	return id, nil
}

// Path resolves an asset id to its absolute path without pinning it.
func (s *Store) Path(id string) (string, error) {
	if !validID(id) {
		return "", &Error{Kind: KindNotFound, Op: "path", Path: id}
	}
	path := filepath.Join(s.root, id)
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return "", &Error{Kind: KindNotFound, Op: "path", Path: id}
		}
		return "", &Error{Kind: KindIOFailure, Op: "path", Path: id, Err: err}
	}
	return path, nil
}

// Acquire resolves an asset id and pins it so reclaim cannot delete it while
// it is being read. The returned release func is idempotent and must be
// called when the reader is done.
func (s *Store) Acquire(id string) (string, func(), error) {
	if !validID(id) {
		return "", nil, &Error{Kind: KindNotFound, Op: "acquire", Path: id}
	}

	s.mu.Lock()
	s.pinned[id]++
	s.mu.Unlock()

	var once sync.Once
	release := func() {
		once.Do(func() {
			s.mu.Lock()
			if s.pinned[id] <= 1 {
				delete(s.pinned, id)
			} else {
				s.pinned[id]--
			}
			s.mu.Unlock()
		})
	}

	path := filepath.Join(s.root, id)
	if _, err := os.Stat(path); err != nil {
		release()
		if os.IsNotExist(err) {
			return "", nil, &Error{Kind: KindNotFound, Op: "acquire", Path: id}
		}
		return "", nil, &Error{Kind: KindIOFailure, Op: "acquire", Path: id, Err: err}
	}
	return path, release, nil
}

// Remove deletes an asset immediately, pinned or not. Explicit deletes win
// over active readers; open file handles keep working on Unix.
func (s *Store) Remove(id string) error {
	if !validID(id) {
		return &Error{Kind: KindNotFound, Op: "remove", Path: id}
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(filepath.Join(s.root, id))
	if os.IsNotExist(err) {
		return &Error{Kind: KindNotFound, Op: "remove", Path: id}
	}
	if err != nil {
		return &Error{Kind: KindIOFailure, Op: "remove", Path: id, Err: err}
	}
	delete(s.pinned, id)
	return nil
}

// Reclaim deletes assets whose mtime is older than olderThan and returns how
// many were removed. Pinned assets are skipped; stale temp files from crashed
// writes age out through the same filter. Per-file failures are logged and do
// not abort the sweep.
func (s *Store) Reclaim(olderThan time.Duration) (int, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return 0, &Error{Kind: KindIOFailure, Op: "reclaim", Path: s.root, Err: err}
	}
	cutoff := time.Now().Add(-olderThan)
	removed := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		name := entry.Name()

		// Hold the lock across the unlink so a concurrent Acquire either
		// pins first (we skip) or stats after the delete (it sees NOT_FOUND).
		s.mu.Lock()
		if _, busy := s.pinned[name]; busy {
			s.mu.Unlock()
			continue
		}
		err = os.Remove(filepath.Join(s.root, name))
		s.mu.Unlock()

		if err != nil && !os.IsNotExist(err) {
			log.Warn().Err(err).Str("asset", name).Msg("reclaim: remove failed")
			continue
		}
		removed++
	}
	return removed, nil
}

// validID rejects anything that is not a bare file name minted by Create:
// path traversal, dotfiles, and in-progress temp names.
func validID(id string) bool {
	if id == "" || id != filepath.Base(id) || strings.HasPrefix(id, ".") {
		return false
	}
	return !strings.Contains(id, ".tmp.")
}
