package cursor

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/fleetlink/driverd/core/logger"
)

// stateFileName is versioned so a future cursor format change cannot be
// confused with a corrupt file.
const stateFileName = "long_poll_cursor.v1.json"

// Store persists the long-poll cursor across process restarts.
type Store interface {
	// Load returns the persisted cursor, or the safe default when the
	// stored value is missing, corrupt or in the future.
	Load() Cursor
	// Save persists the cursor. Persistence is best-effort: failures are
	// swallowed because a lost cursor only widens the catch-up window.
	Save(Cursor)
}

// FileStore keeps the cursor in a JSON state file under a directory.
type FileStore struct {
	path string
	log  logger.Logger
	now  func() time.Time
}

// NewFileStore creates a FileStore rooted at dir. The directory is created
// on first save if needed.
func NewFileStore(dir string, log logger.Logger) *FileStore {
	return &FileStore{path: filepath.Join(dir, stateFileName), log: log, now: time.Now}
}

func (s *FileStore) Load() Cursor {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		return Default(s.now())
	}
	var candidate map[string]any
	if err := json.Unmarshal(raw, &candidate); err != nil {
		s.log.Warnf("corrupt cursor state file, using default: %v", err)
		return Default(s.now())
	}
	return Normalize(candidate, s.now())
}

func (s *FileStore) Save(c Cursor) {
	data, err := json.Marshal(c)
	if err != nil {
		s.log.Debugf("cursor marshal failed: %v", err)
		return
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		s.log.Debugf("cursor state dir: %v", err)
		return
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		s.log.Debugf("cursor persist failed: %v", err)
	}
}

// MemoryStore holds the cursor in memory only. Used by tests and sessions
// without a state directory.
type MemoryStore struct {
	cur Cursor
	set bool
}

func (s *MemoryStore) Load() Cursor {
	if !s.set {
		return Default(time.Now())
	}
	return s.cur
}

func (s *MemoryStore) Save(c Cursor) {
	s.cur = c
	s.set = true
}
