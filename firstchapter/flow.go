// Package firstchapter runs the backend operations that scrape a source page
// (setting a novel's first chapter and adding a novel). When the backend
// cannot fetch the page itself, the caller supplies the page content and the
// operation is retried with it.
package firstchapter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/arcane-translator/arcane-reader/models"
	"github.com/arcane-translator/arcane-reader/notify"
	"github.com/arcane-translator/arcane-reader/parser"
)

// ErrManualContentRequired is returned when the automated attempt failed and
// no manual content was supplied.
var ErrManualContentRequired = errors.New("firstchapter: page content required")

// ErrSourceRequired is returned by AddNovel without a source site.
var ErrSourceRequired = errors.New("firstchapter: source site is required")

// Backend is the part of the backend client the flow needs.
type Backend interface {
	TranslateFirstChapter(ctx context.Context, req models.FirstChapterRequest) (*models.FirstChapterResponse, error)
	AddNovel(ctx context.Context, req models.NovelRequest) (*models.Novel, error)
}

// Fallback is asked for manual content after the automated attempt failed
// with cause. Returning a nil provider declines.
type Fallback func(ctx context.Context, cause error) (ContentProvider, error)

// Flow drives the automated-then-manual sequence.
type Flow struct {
	backend  Backend
	notifier notify.Notifier
}

// New builds a flow; a nil notifier discards notifications.
func New(backend Backend, notifier notify.Notifier) *Flow {
	if notifier == nil {
		notifier = notify.Discard
	}
	return &Flow{backend: backend, notifier: notifier}
}

// SetFirstChapter records chapterURL as the first chapter of novel. The URL
// must be on the novel's site; it is checked before any request is made.
func (f *Flow) SetFirstChapter(ctx context.Context, novel *models.Novel, chapterURL string, fallback Fallback) (*models.FirstChapterResponse, error) {
	u, err := parser.ValidateChapterURL(chapterURL, novel.URL)
	if err != nil {
		f.notifier.Notify(notify.Notification{Level: notify.LevelError, Title: "Error", Message: err.Error()})
		return nil, err
	}
	chapterURL = u.String()

	f.notifier.Notify(notify.Notification{Level: notify.LevelInfo, Title: "Setting first chapter URL"})

	attempt := func(html *string) (*models.FirstChapterResponse, error) {
		resp, err := f.backend.TranslateFirstChapter(ctx, models.FirstChapterRequest{
			NovelID:     novel.ID,
			ChapterURL:  chapterURL,
			HTMLContent: html,
		})
		if err != nil {
			return nil, err
		}
		if !resp.Success {
			return resp, fmt.Errorf("backend: %s", strings.TrimSpace(resp.Message))
		}
		return resp, nil
	}

	resp, err := twoPhase(ctx, chapterURL, attempt, fallback)
	if err != nil {
		slog.Error("set first chapter",
			slog.String("novel_id", novel.ID),
			slog.String("url", chapterURL),
			slog.Any("error", err),
		)
		f.notifier.Notify(notify.Notification{
			Level:   notify.LevelError,
			Title:   "Error",
			Message: fmt.Sprintf("Failed to set first chapter URL: %v", err),
		})
		return resp, err
	}

	message := "First chapter URL set successfully. You can now start reading."
	if resp.ChapterTranslated {
		message = "First chapter URL set and chapter translated successfully. You can now start reading."
	}
	f.notifier.Notify(notify.Notification{Level: notify.LevelSuccess, Title: "Success", Message: message})
	return resp, nil
}

// AddNovel asks the backend to import the novel at novelURL from source.
func (f *Flow) AddNovel(ctx context.Context, novelURL, source string, fallback Fallback) (*models.Novel, error) {
	u, err := parser.ValidateNovelURL(novelURL)
	if err != nil {
		f.notifier.Notify(notify.Notification{Level: notify.LevelError, Title: "Error", Message: err.Error()})
		return nil, err
	}
	if strings.TrimSpace(source) == "" {
		f.notifier.Notify(notify.Notification{Level: notify.LevelError, Title: "Error", Message: "Please select a source site"})
		return nil, ErrSourceRequired
	}
	novelURL = u.String()

	f.notifier.Notify(notify.Notification{Level: notify.LevelInfo, Title: "Adding novel", Message: novelURL})

	novel, err := twoPhase(ctx, novelURL, func(html *string) (*models.Novel, error) {
		return f.backend.AddNovel(ctx, models.NovelRequest{URL: novelURL, Source: source, HTMLContent: html})
	}, fallback)
	if err != nil {
		slog.Error("add novel", slog.String("url", novelURL), slog.Any("error", err))
		f.notifier.Notify(notify.Notification{
			Level:   notify.LevelError,
			Title:   "Error",
			Message: fmt.Sprintf("Failed to add novel: %v", err),
		})
		return nil, err
	}

	f.notifier.Notify(notify.Notification{
		Level:   notify.LevelSuccess,
		Title:   "Novel added",
		Message: fmt.Sprintf("%s has been added to your library.", novel.Title),
	})
	return novel, nil
}

// twoPhase runs attempt without content, then once more with the content
// obtained through fallback.
func twoPhase[T any](ctx context.Context, pageURL string, attempt func(html *string) (T, error), fallback Fallback) (T, error) {
	result, err := attempt(nil)
	if err == nil {
		return result, nil
	}
	slog.Warn("automated page fetch failed", slog.String("url", pageURL), slog.Any("error", err))

	if fallback == nil {
		return result, fmt.Errorf("%w: %v", ErrManualContentRequired, err)
	}
	provider, ferr := fallback(ctx, err)
	if ferr != nil {
		return result, ferr
	}
	if provider == nil {
		return result, fmt.Errorf("%w: %v", ErrManualContentRequired, err)
	}

	content, cerr := provider.Content(ctx, pageURL)
	if cerr != nil {
		return result, fmt.Errorf("manual content: %w", cerr)
	}
	return attempt(&content)
}
