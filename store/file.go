package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/Ashenafi-pixel/prize-draw-ledger/lottery"
)

// ErrHistoryGap means a save would leave a hole in the stored history.
var ErrHistoryGap = errors.New("draw history gap")

// FileStore keeps the ledger in two JSON files under dataDir: the state
// snapshot and the draw history array.
type FileStore struct {
	mu      sync.Mutex
	dataDir string
	history []lottery.DrawRecord
	loaded  bool
}

func NewFileStore(dataDir string) *FileStore {
	if dataDir == "" {
		dataDir = "data"
	}
	return &FileStore{dataDir: dataDir}
}

func (s *FileStore) statePath() string {
	return filepath.Join(s.dataDir, "ledger_state.json")
}

func (s *FileStore) historyPath() string {
	return filepath.Join(s.dataDir, "draw_history.json")
}

// Load reads both files. It returns nil when no state was saved yet.
func (s *FileStore) Load(_ context.Context) (*lottery.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.loadHistoryLocked(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.statePath())
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var snap lottery.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("decode %s: %w", s.statePath(), err)
	}
	// draws written after the last snapshot belong to a save that never finished
	n := min(len(s.history), snap.HistoryCount)
	snap.History = append([]lottery.DrawRecord(nil), s.history[:n]...)
	return &snap, nil
}

func (s *FileStore) loadHistoryLocked() error {
	if s.loaded {
		return nil
	}
	data, err := os.ReadFile(s.historyPath())
	switch {
	case errors.Is(err, fs.ErrNotExist):
		s.history = nil
	case err != nil:
		return err
	default:
		var list []lottery.DrawRecord
		if err := json.Unmarshal(data, &list); err != nil {
			return fmt.Errorf("decode %s: %w", s.historyPath(), err)
		}
		s.history = list
	}
	s.loaded = true
	return nil
}

// Save writes pending at the tail of the history file, then the snapshot.
// The history file is written first, so a snapshot never counts draws that
// are not on disk.
func (s *FileStore) Save(_ context.Context, snap *lottery.Snapshot, pending []lottery.DrawRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.loadHistoryLocked(); err != nil {
		return err
	}
	start := snap.HistoryCount - len(pending)
	if start < 0 || start > len(s.history) {
		return fmt.Errorf("draws from %d, %d stored: %w", start, len(s.history), ErrHistoryGap)
	}
	if err := os.MkdirAll(s.dataDir, 0755); err != nil {
		return err
	}
	if len(pending) > 0 || len(s.history) > snap.HistoryCount {
		next := make([]lottery.DrawRecord, 0, snap.HistoryCount)
		next = append(append(next, s.history[:start]...), pending...)
		if err := s.saveLocked(s.historyPath(), next); err != nil {
			return err
		}
		s.history = next
	}
	state := *snap
	state.History = nil
	return s.saveLocked(s.statePath(), state)
}

// saveLocked writes v through a temp file so readers never see a torn file.
// Caller must hold s.mu.
func (s *FileStore) saveLocked(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
