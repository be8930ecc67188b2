package firstchapter

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"
)

// ErrEmptyContent is returned when a provider produced no page content.
var ErrEmptyContent = errors.New("firstchapter: empty page content")

// ContentProvider supplies the raw HTML of a page the backend could not
// fetch itself.
type ContentProvider interface {
	Content(ctx context.Context, pageURL string) (string, error)
}

// ContentFunc adapts a function to ContentProvider.
type ContentFunc func(ctx context.Context, pageURL string) (string, error)

func (f ContentFunc) Content(ctx context.Context, pageURL string) (string, error) {
	return f(ctx, pageURL)
}

// File reads saved page HTML from path.
func File(path string) ContentProvider {
	return ContentFunc(func(context.Context, string) (string, error) {
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("read page content: %w", err)
		}
		return nonEmpty(string(data))
	})
}

// Paste reads page HTML from r until EOF, typically a paste on stdin.
func Paste(r io.Reader) ContentProvider {
	return ContentFunc(func(context.Context, string) (string, error) {
		data, err := io.ReadAll(r)
		if err != nil {
			return "", fmt.Errorf("read pasted content: %w", err)
		}
		return nonEmpty(string(data))
	})
}

func nonEmpty(s string) (string, error) {
	if strings.TrimSpace(s) == "" {
		return "", ErrEmptyContent
	}
	return s, nil
}

// LocalFetcher downloads the page from this machine, which often succeeds
// where the backend's own fetch is blocked.
type LocalFetcher struct {
	UserAgent string
	Timeout   time.Duration
}

// NewLocalFetcher returns a fetcher sending userAgent.
func NewLocalFetcher(userAgent string, timeout time.Duration) *LocalFetcher {
	return &LocalFetcher{UserAgent: userAgent, Timeout: timeout}
}

// Content fetches pageURL and returns its body decoded to UTF-8.
func (l *LocalFetcher) Content(ctx context.Context, pageURL string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	opts := []colly.CollectorOption{colly.AllowURLRevisit()}
	if l.UserAgent != "" {
		opts = append(opts, colly.UserAgent(l.UserAgent))
	}
	c := colly.NewCollector(opts...)
	c.Context = ctx
	c.DetectCharset = true
	if l.Timeout > 0 {
		c.SetRequestTimeout(l.Timeout)
	}

	var body string
	var fetchErr error
	c.OnResponse(func(r *colly.Response) {
		body = string(r.Body)
	})
	c.OnError(func(r *colly.Response, err error) {
		if r != nil && r.StatusCode != 0 {
			fetchErr = fmt.Errorf("fetch %s: http status %d: %w", pageURL, r.StatusCode, err)
			return
		}
		fetchErr = fmt.Errorf("fetch %s: %w", pageURL, err)
	})

	if err := c.Visit(pageURL); err != nil && fetchErr == nil {
		return "", fmt.Errorf("fetch %s: %w", pageURL, err)
	}
	c.Wait()

	if err := ctx.Err(); err != nil {
		return "", err
	}
	if fetchErr != nil {
		return "", fetchErr
	}
	return nonEmpty(body)
}
