// Package progress records how far the reader has got in each novel.
//
// All records live in one JSON object under a fixed storage key, mapping
// novel id to Record. Persistence failures are logged and treated as "no
// progress known"; they never reach the caller.
package progress

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/arcane-translator/arcane-reader/storage"
)

// StorageKey is the key of the progress blob.
const StorageKey = "novel_reading_progress"

// Record is the reading position within one novel.
type Record struct {
	LastChapter  int     `json:"lastChapter"`
	LastReadAt   int64   `json:"lastReadAt"` // unix millis
	Progress     float64 `json:"progress"`
	ChapterTitle string  `json:"chapterTitle,omitempty"`
}

// LastRead returns LastReadAt as a time.
func (r Record) LastRead() time.Time {
	return time.UnixMilli(r.LastReadAt)
}

// Store reads and writes Records. It is safe for concurrent use.
type Store struct {
	kv  storage.Store
	now func() time.Time

	mu sync.Mutex
}

// NewStore wraps kv.
func NewStore(kv storage.Store) *Store {
	return &Store{kv: kv, now: time.Now}
}

// Get returns the record for novelID, if any.
func (s *Store) Get(novelID string) (Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.load()
	if err != nil {
		slog.Error("read reading progress", slog.String("novel_id", novelID), slog.Any("error", err))
		return Record{}, false
	}
	rec, ok := all[novelID]
	return rec, ok
}

// Save replaces the record for novelID. percent is clamped to [0,100].
func (s *Store) Save(novelID string, chapter int, percent float64, chapterTitle string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.load()
	if err != nil {
		slog.Warn("discarding unreadable reading progress", slog.Any("error", err))
		all = make(map[string]Record)
	}
	all[novelID] = Record{
		LastChapter:  chapter,
		LastReadAt:   s.now().UnixMilli(),
		Progress:     Clamp(percent),
		ChapterTitle: chapterTitle,
	}
	if err := s.store(all); err != nil {
		slog.Error("save reading progress",
			slog.String("novel_id", novelID),
			slog.Int("chapter", chapter),
			slog.Any("error", err),
		)
	}
}

// Remove deletes the record for novelID. Removing a missing record is a no-op.
func (s *Store) Remove(novelID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.load()
	if err != nil {
		slog.Error("remove reading progress", slog.String("novel_id", novelID), slog.Any("error", err))
		return
	}
	if _, ok := all[novelID]; !ok {
		return
	}
	delete(all, novelID)
	if err := s.store(all); err != nil {
		slog.Error("remove reading progress", slog.String("novel_id", novelID), slog.Any("error", err))
	}
}

// All returns a copy of every record.
func (s *Store) All() map[string]Record {
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.load()
	if err != nil {
		slog.Error("read all reading progress", slog.Any("error", err))
		return map[string]Record{}
	}
	return all
}

// HasProgress reports whether novelID has a record past chapter zero.
func (s *Store) HasProgress(novelID string) bool {
	rec, ok := s.Get(novelID)
	return ok && rec.LastChapter > 0
}

// Summary renders "Chapter N • P% • <relative time>".
func (s *Store) Summary(novelID string) (string, bool) {
	rec, ok := s.Get(novelID)
	if !ok {
		return "", false
	}
	return fmt.Sprintf("Chapter %d • %d%% • %s",
		rec.LastChapter,
		int(math.Round(rec.Progress)),
		RelativeTime(s.now().Sub(rec.LastRead())),
	), true
}

// RelativeTime buckets an elapsed duration into a short English phrase.
func RelativeTime(elapsed time.Duration) string {
	minutes := int(elapsed / time.Minute)
	hours := int(elapsed / time.Hour)
	switch {
	case minutes < 1:
		return "just now"
	case minutes < 60:
		return plural(minutes, "minute") + " ago"
	case hours < 24:
		return plural(hours, "hour") + " ago"
	default:
		return plural(hours/24, "day") + " ago"
	}
}

// Clamp limits percent to [0,100].
func Clamp(percent float64) float64 {
	if math.IsNaN(percent) {
		return 0
	}
	return math.Min(math.Max(percent, 0), 100)
}

func plural(n int, unit string) string {
	if n > 1 {
		return fmt.Sprintf("%d %ss", n, unit)
	}
	return fmt.Sprintf("%d %s", n, unit)
}

func (s *Store) load() (map[string]Record, error) {
	raw, err := s.kv.Get(StorageKey)
	if errors.Is(err, storage.ErrNotFound) {
		return make(map[string]Record), nil
	}
	if err != nil {
		return nil, err
	}
	all := make(map[string]Record)
	if err := json.Unmarshal([]byte(raw), &all); err != nil {
		return nil, fmt.Errorf("decode %s: %w", StorageKey, err)
	}
	if all == nil {
		all = make(map[string]Record)
	}
	return all, nil
}

func (s *Store) store(all map[string]Record) error {
	data, err := json.Marshal(all)
	if err != nil {
		return fmt.Errorf("encode %s: %w", StorageKey, err)
	}
	return s.kv.Set(StorageKey, string(data))
}
