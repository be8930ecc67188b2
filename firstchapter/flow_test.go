package firstchapter

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/arcane-translator/arcane-reader/models"
	"github.com/arcane-translator/arcane-reader/notify"
	"github.com/arcane-translator/arcane-reader/parser"
)

// fakeBackend fails every request that carries no html content while
// blocked is set, like a source site that refuses the backend's crawler.
type fakeBackend struct {
	mu       sync.Mutex
	blocked  bool
	requests []models.FirstChapterRequest
	adds     []models.NovelRequest
}

func (f *fakeBackend) TranslateFirstChapter(_ context.Context, req models.FirstChapterRequest) (*models.FirstChapterResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if f.blocked && req.HTMLContent == nil {
		return &models.FirstChapterResponse{Success: false, Message: "failed to fetch chapter page: 403"}, nil
	}
	return &models.FirstChapterResponse{Success: true, FirstChapterURL: req.ChapterURL, ChapterTranslated: true}, nil
}

func (f *fakeBackend) AddNovel(_ context.Context, req models.NovelRequest) (*models.Novel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.adds = append(f.adds, req)
	if f.blocked && req.HTMLContent == nil {
		return nil, errors.New("server: http status 500: Failed to extract novel details")
	}
	return &models.Novel{ID: "new", Title: "Shadow Slave", URL: req.URL, Source: req.Source}, nil
}

var testNovel = &models.Novel{ID: "n1", URL: "https://www.69shu.com/book/12345/"}

func TestSetFirstChapterAutomated(t *testing.T) {
	backend := &fakeBackend{}
	rec := &notify.Recorder{}
	flow := New(backend, rec)

	fallbackCalled := false
	resp, err := flow.SetFirstChapter(context.Background(), testNovel, "https://www.69shu.com/txt/12345/1", func(context.Context, error) (ContentProvider, error) {
		fallbackCalled = true
		return nil, nil
	})
	if err != nil {
		t.Fatalf("set first chapter: %v", err)
	}
	if !resp.ChapterTranslated || fallbackCalled {
		t.Fatalf("resp = %+v, fallback called = %v", resp, fallbackCalled)
	}
	if len(backend.requests) != 1 || backend.requests[0].HTMLContent != nil {
		t.Fatalf("requests = %+v", backend.requests)
	}
	all := rec.All()
	if last := all[len(all)-1]; last.Title != "Success" || !strings.Contains(last.Message, "translated successfully") {
		t.Fatalf("last notification = %+v", last)
	}
}

func TestSetFirstChapterFallsBackToManualContent(t *testing.T) {
	backend := &fakeBackend{blocked: true}
	flow := New(backend, nil)

	var cause error
	resp, err := flow.SetFirstChapter(context.Background(), testNovel, "https://m.69shu.com/txt/12345/1", func(_ context.Context, err error) (ContentProvider, error) {
		cause = err
		return Paste(strings.NewReader("<p>第一章</p>")), nil
	})
	if err != nil {
		t.Fatalf("set first chapter: %v", err)
	}
	if cause == nil || !strings.Contains(cause.Error(), "403") {
		t.Fatalf("fallback cause = %v", cause)
	}
	if !resp.Success {
		t.Fatalf("resp = %+v", resp)
	}
	if len(backend.requests) != 2 {
		t.Fatalf("requests = %d, want 2", len(backend.requests))
	}
	if html := backend.requests[1].HTMLContent; html == nil || *html != "<p>第一章</p>" {
		t.Fatalf("retry carried content %v", html)
	}
}

func TestSetFirstChapterWithoutFallback(t *testing.T) {
	backend := &fakeBackend{blocked: true}
	rec := &notify.Recorder{}
	flow := New(backend, rec)

	_, err := flow.SetFirstChapter(context.Background(), testNovel, "https://www.69shu.com/txt/12345/1", nil)
	if !errors.Is(err, ErrManualContentRequired) {
		t.Fatalf("err = %v, want ErrManualContentRequired", err)
	}
	if rec.Count(notify.LevelError) != 1 {
		t.Fatalf("expected one error notification, got %v", rec.All())
	}
}

func TestSetFirstChapterRejectsForeignURLWithoutRequest(t *testing.T) {
	backend := &fakeBackend{}
	flow := New(backend, nil)

	_, err := flow.SetFirstChapter(context.Background(), testNovel, "https://www.twkan.com/txt/1", nil)
	if !errors.Is(err, parser.ErrInvalidURL) {
		t.Fatalf("err = %v, want ErrInvalidURL", err)
	}
	if len(backend.requests) != 0 {
		t.Fatalf("invalid URL reached the backend")
	}
}

func TestAddNovel(t *testing.T) {
	tests := []struct {
		name     string
		url      string
		source   string
		blocked  bool
		fallback Fallback
		wantErr  error
		requests int
	}{
		{name: "automated", url: "https://www.69shu.com/book/1/", source: "69shu", requests: 1},
		{
			name: "manual file", url: "https://www.69shu.com/book/1/", source: "69shu", blocked: true, requests: 2,
			fallback: func(context.Context, error) (ContentProvider, error) {
				return ContentFunc(func(context.Context, string) (string, error) { return "<html></html>", nil }), nil
			},
		},
		{name: "declined", url: "https://www.69shu.com/book/1/", source: "69shu", blocked: true, requests: 1, wantErr: ErrManualContentRequired},
		{name: "bad url", url: "69shu.com/book/1", source: "69shu", wantErr: parser.ErrInvalidURL},
		{name: "missing source", url: "https://www.69shu.com/book/1/", source: " ", wantErr: ErrSourceRequired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := &fakeBackend{blocked: tt.blocked}
			flow := New(backend, nil)

			novel, err := flow.AddNovel(context.Background(), tt.url, tt.source, tt.fallback)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
			} else if err != nil || novel.ID != "new" {
				t.Fatalf("add novel = %+v, %v", novel, err)
			}
			if len(backend.adds) != tt.requests {
				t.Fatalf("backend requests = %d, want %d", len(backend.adds), tt.requests)
			}
		})
	}
}

func TestFileContent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "chapter.html")
	if err := os.WriteFile(path, []byte("<p>hello</p>"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	got, err := File(path).Content(context.Background(), "")
	if err != nil || got != "<p>hello</p>" {
		t.Fatalf("content = %q, %v", got, err)
	}

	empty := filepath.Join(dir, "empty.html")
	os.WriteFile(empty, []byte("  \n"), 0o644)
	if _, err := File(empty).Content(context.Background(), ""); !errors.Is(err, ErrEmptyContent) {
		t.Fatalf("err = %v, want ErrEmptyContent", err)
	}
}

func TestLocalFetcher(t *testing.T) {
	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.UserAgent()
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte("<html><body><p>第一章 开端</p></body></html>"))
	}))
	defer srv.Close()

	fetcher := NewLocalFetcher("arcane-reader/test", 5*time.Second)

	body, err := fetcher.Content(context.Background(), srv.URL+"/txt/1")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if !strings.Contains(body, "第一章 开端") {
		t.Fatalf("body = %q", body)
	}
	if gotUA != "arcane-reader/test" {
		t.Fatalf("user agent = %q", gotUA)
	}

	if _, err := fetcher.Content(context.Background(), srv.URL+"/missing"); err == nil {
		t.Fatalf("expected an error for a 404 page")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := fetcher.Content(ctx, srv.URL+"/txt/1"); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestLocalFetcherStopsOnCancel(t *testing.T) {
	arrived := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(arrived)
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-arrived
		cancel()
	}()

	done := make(chan error, 1)
	go func() {
		_, err := NewLocalFetcher("", time.Minute).Content(ctx, srv.URL+"/slow")
		done <- err
	}()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("err = %v, want context.Canceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("fetch ignored cancellation")
	}
}
