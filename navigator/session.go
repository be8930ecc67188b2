package navigator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/arcane-translator/arcane-reader/debounce"
	"github.com/arcane-translator/arcane-reader/models"
	"github.com/arcane-translator/arcane-reader/progress"
)

// DefaultAutosaveInterval is the quiet window before a scroll position is
// written.
const DefaultAutosaveInterval = time.Second

var (
	// ErrChapterNotFound is returned by Open for a chapter the backend does
	// not have yet.
	ErrChapterNotFound = errors.New("navigator: chapter not found")
	// ErrSessionClosed is returned once Leave has been called.
	ErrSessionClosed = errors.New("navigator: session closed")
)

// Session is one reader view of a novel. It persists the reading position
// as the reader scrolls and moves between chapters.
type Session struct {
	nav      *Navigator
	novel    *models.Novel
	autosave *debounce.Debouncer

	mu      sync.Mutex
	chapter *models.Chapter
	percent float64
	closed  bool
}

// NewSession opens a reading session on novel. A non-positive autosave
// uses DefaultAutosaveInterval.
func (n *Navigator) NewSession(novel *models.Novel, autosave time.Duration) *Session {
	if autosave <= 0 {
		autosave = DefaultAutosaveInterval
	}
	return &Session{
		nav:      n,
		novel:    novel,
		autosave: debounce.New(autosave),
	}
}

// Chapter returns the open chapter, or nil before the first Open.
func (s *Session) Chapter() *models.Chapter {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.chapter
}

// Percent returns the last reported scroll position of the open chapter.
func (s *Session) Percent() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.percent
}

// Open loads chapter number and records it as the reading position. The
// pending position of the chapter being left is written first. When the
// stored position already points at this chapter its percentage is
// restored. The next chapter is prefetched in the background.
func (s *Session) Open(ctx context.Context, number int) (*models.Chapter, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrSessionClosed
	}
	s.mu.Unlock()

	s.autosave.Flush()

	chapter, found, err := s.nav.backend.GetChapter(ctx, s.novel.ID, number)
	if err != nil {
		return nil, fmt.Errorf("open chapter %d: %w", number, err)
	}
	if !found {
		return nil, fmt.Errorf("%w: %d", ErrChapterNotFound, number)
	}

	percent := 0.0
	if rec, ok := s.nav.progress.Get(s.novel.ID); ok && rec.LastChapter == number {
		percent = rec.Progress
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrSessionClosed
	}
	s.chapter = chapter
	s.percent = percent
	s.mu.Unlock()

	s.save(number, percent, chapter.Title, "open")
	s.nav.EnsureNextAvailable(ctx, s.novel.ID, number, s.novel.ChaptersCount)
	return chapter, nil
}

// Scroll records the scroll position of the open chapter. Bursts of calls
// collapse into one write once the reader stops for the autosave interval.
func (s *Session) Scroll(percent float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || s.chapter == nil {
		return
	}
	percent = progress.Clamp(percent)
	s.percent = percent
	number, title := s.chapter.Number, s.chapter.Title
	s.autosave.Trigger(func() {
		s.save(number, percent, title, "scroll")
	})
}

// Go opens the chapter one step away in dir.
func (s *Session) Go(ctx context.Context, dir Direction) (*models.Chapter, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrSessionClosed
	}
	if s.chapter == nil {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: no chapter open", ErrNavigationRejected)
	}
	current := s.chapter.Number
	s.mu.Unlock()

	target, err := Navigate(dir, current, s.novel.ChaptersCount)
	if err != nil {
		return nil, err
	}
	return s.Open(ctx, target)
}

// Leave writes any pending position and ends the session.
func (s *Session) Leave() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.autosave.Stop()
}

func (s *Session) save(chapter int, percent float64, title, trigger string) {
	s.nav.progress.Save(s.novel.ID, chapter, percent, title)
	s.nav.metrics.IncSave(trigger)
	slog.Debug("saved reading progress",
		slog.String("novel_id", s.novel.ID),
		slog.Int("chapter", chapter),
		slog.Float64("progress", percent),
		slog.String("trigger", trigger),
	)
}
