// Package navigator decides which chapter to read next and keeps the next
// chapter translated ahead of the reader.
package navigator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/arcane-translator/arcane-reader/models"
	"github.com/arcane-translator/arcane-reader/notify"
	"github.com/arcane-translator/arcane-reader/progress"
)

// ErrNavigationRejected is returned when the target chapter is out of range.
var ErrNavigationRejected = errors.New("navigator: navigation rejected")

// Direction is a step through the chapter list.
type Direction string

const (
	Next Direction = "next"
	Prev Direction = "prev"
)

// Backend is the part of the backend client the navigator needs.
type Backend interface {
	GetChapter(ctx context.Context, novelID string, number int) (*models.Chapter, bool, error)
	ChapterExists(ctx context.Context, novelID string, number int) (bool, error)
	TranslateChapter(ctx context.Context, req models.ChapterTranslationRequest) (*models.TranslatedChapter, error)
}

// ProgressStore reads and writes reading positions.
type ProgressStore interface {
	Get(novelID string) (progress.Record, bool)
	Save(novelID string, chapter int, percent float64, chapterTitle string)
}

// PrefetchResult reports how a background translation settled.
type PrefetchResult struct {
	NovelID string
	Chapter int
	Err     error
}

// Option configures a Navigator.
type Option func(*Navigator)

// WithNotifier routes prefetch notifications to n.
func WithNotifier(n notify.Notifier) Option {
	return func(nav *Navigator) {
		if n != nil {
			nav.notifier = n
		}
	}
}

// WithPrefetchCallback calls fn once for every prefetch that issued a
// translation request, after it settled.
func WithPrefetchCallback(fn func(PrefetchResult)) Option {
	return func(nav *Navigator) {
		nav.onPrefetch = fn
	}
}

// WithMetrics records prefetches and progress saves on m.
func WithMetrics(m *Metrics) Option {
	return func(nav *Navigator) {
		nav.metrics = m
	}
}

// Navigator owns the per-novel in-flight prefetch registry.
type Navigator struct {
	backend    Backend
	progress   ProgressStore
	notifier   notify.Notifier
	onPrefetch func(PrefetchResult)
	metrics    *Metrics

	mu       sync.Mutex
	inFlight map[string]int // novel id -> chapter being prefetched
	wg       sync.WaitGroup
}

// New builds a navigator over backend and store.
func New(backend Backend, store ProgressStore, opts ...Option) *Navigator {
	n := &Navigator{
		backend:  backend,
		progress: store,
		notifier: notify.Discard,
		inFlight: make(map[string]int),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// ResumeTarget picks the chapter to open for novel: the locally recorded
// chapter, then the backend's last-read chapter, then the first available
// one. It returns false when no chapter is available.
func (n *Navigator) ResumeTarget(novel *models.Novel, available []int) (int, bool) {
	if len(available) == 0 {
		return 0, false
	}
	if rec, ok := n.progress.Get(novel.ID); ok && slices.Contains(available, rec.LastChapter) {
		return rec.LastChapter, true
	}
	if last := novel.LastReadChapterNumber; last > 0 && slices.Contains(available, last) {
		return last, true
	}
	return slices.Min(available), true
}

// Navigate returns the chapter one step from current in dir, within
// [1, total].
func Navigate(dir Direction, current, total int) (int, error) {
	var target int
	switch dir {
	case Next:
		target = current + 1
	case Prev:
		target = current - 1
	default:
		return 0, fmt.Errorf("%w: unknown direction %q", ErrNavigationRejected, dir)
	}
	if target < 1 || target > total {
		return 0, fmt.Errorf("%w: chapter %d outside 1..%d", ErrNavigationRejected, target, total)
	}
	return target, nil
}

// EnsureNextAvailable starts a background prefetch of chapter current+1
// unless it is past total or a prefetch for the novel is already in flight.
// It reports whether a prefetch was started. The prefetch is not bound to
// ctx's cancellation.
func (n *Navigator) EnsureNextAvailable(ctx context.Context, novelID string, current, total int) bool {
	next := current + 1
	if next > total {
		return false
	}

	n.mu.Lock()
	if chapter, busy := n.inFlight[novelID]; busy {
		n.mu.Unlock()
		slog.Debug("prefetch already in flight",
			slog.String("novel_id", novelID),
			slog.Int("chapter", chapter),
		)
		n.metrics.IncPrefetch("skipped")
		return false
	}
	n.inFlight[novelID] = next
	n.wg.Add(1)
	n.mu.Unlock()

	go n.prefetch(context.WithoutCancel(ctx), novelID, next)
	return true
}

func (n *Navigator) prefetch(ctx context.Context, novelID string, chapter int) {
	defer n.wg.Done()
	defer n.release(novelID)

	exists, err := n.backend.ChapterExists(ctx, novelID, chapter)
	if err != nil {
		slog.Warn("check next chapter",
			slog.String("novel_id", novelID),
			slog.Int("chapter", chapter),
			slog.Any("error", err),
		)
		n.metrics.IncPrefetch("check_failed")
		return
	}
	if exists {
		n.metrics.IncPrefetch("present")
		return
	}

	n.notifier.Notify(notify.Notification{
		Level:   notify.LevelInfo,
		Title:   "Auto-translation",
		Message: "Next chapter is being prepared in the background",
	})

	_, err = n.backend.TranslateChapter(ctx, models.ChapterTranslationRequest{
		NovelID:       novelID,
		ChapterNumber: chapter,
	})
	result := PrefetchResult{NovelID: novelID, Chapter: chapter, Err: err}

	if err != nil {
		slog.Error("prefetch next chapter",
			slog.String("novel_id", novelID),
			slog.Int("chapter", chapter),
			slog.Any("error", err),
		)
		n.metrics.IncPrefetch("failed")
		n.notifier.Notify(notify.Notification{
			Level:   notify.LevelError,
			Title:   "Translation failed",
			Message: fmt.Sprintf("Chapter %d could not be translated.", chapter),
		})
	} else {
		slog.Info("prefetched next chapter", slog.String("novel_id", novelID), slog.Int("chapter", chapter))
		n.metrics.IncPrefetch("translated")
		n.notifier.Notify(notify.Notification{
			Level:   notify.LevelSuccess,
			Title:   "Chapter ready",
			Message: fmt.Sprintf("Chapter %d has been translated.", chapter),
		})
	}

	if n.onPrefetch != nil {
		n.onPrefetch(result)
	}
}

func (n *Navigator) release(novelID string) {
	n.mu.Lock()
	delete(n.inFlight, novelID)
	n.mu.Unlock()
}

// InFlight reports whether a prefetch for novelID has not settled yet.
func (n *Navigator) InFlight(novelID string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	_, ok := n.inFlight[novelID]
	return ok
}

// Wait blocks until every started prefetch has settled.
func (n *Navigator) Wait() {
	n.wg.Wait()
}
