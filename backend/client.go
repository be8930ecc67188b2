package backend

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/arcane-translator/arcane-reader/config"
	"github.com/arcane-translator/arcane-reader/models"
)

const requestIDHeader = "X-Request-ID"

// Filter dimensions accepted by the novel listing.
const (
	FilterLanguage = "language"
	FilterGenre    = "genre"
	FilterSource   = "source"
)

// ListQuery selects one page of the novel listing.
type ListQuery struct {
	Page        int
	Limit       int
	FilterBy    string
	FilterValue string
}

type chapterKey struct {
	novelID string
	number  int
}

// Client talks to the translation backend over HTTP.
type Client struct {
	http             *resty.Client
	timeout          time.Duration
	translateTimeout time.Duration
	chapters         *lru.Cache[chapterKey, *models.Chapter]
	Metrics          *Metrics
}

// NewClient builds a client configured from cfg.
func NewClient(cfg *config.Config) (*Client, error) {
	parsed, err := url.Parse(cfg.APIBaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse api base url: %w", err)
	}
	if parsed.Host == "" {
		return nil, fmt.Errorf("api base url must include a host")
	}

	cache, err := lru.New[chapterKey, *models.Chapter](max(cfg.ChapterCacheSize, 1))
	if err != nil {
		return nil, fmt.Errorf("create chapter cache: %w", err)
	}

	c := &Client{
		timeout:          cfg.Timeout,
		translateTimeout: cfg.TranslateTimeout,
		chapters:         cache,
		Metrics:          NewMetrics(),
	}

	c.http = resty.New().
		SetBaseURL(strings.TrimSuffix(cfg.APIBaseURL, "/")).
		SetHeader("User-Agent", cfg.UserAgent).
		SetHeader("Accept", "application/json").
		SetLogger(slogLogger{}).
		SetRetryCount(cfg.MaxRetries).
		SetRetryWaitTime(cfg.RetryBackoff).
		SetRetryMaxWaitTime(cfg.RetryBackoffMax).
		SetRetryAfter(retryAfter).
		AddRetryCondition(shouldRetry).
		AddRetryHook(func(*resty.Response, error) {
			c.Metrics.IncRetries()
		}).
		OnBeforeRequest(func(_ *resty.Client, r *resty.Request) error {
			if r.Header.Get(requestIDHeader) == "" {
				r.SetHeader(requestIDHeader, uuid.NewString())
			}
			return nil
		})

	return c, nil
}

// retryAfter honours a Retry-After header on 429 answers.
func retryAfter(_ *resty.Client, resp *resty.Response) (time.Duration, error) {
	if resp == nil || resp.StatusCode() != http.StatusTooManyRequests {
		return 0, nil
	}
	value := resp.Header().Get("Retry-After")
	if value == "" {
		return 0, nil
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		return time.Duration(seconds) * time.Second, nil
	}
	if t, err := http.ParseTime(value); err == nil {
		return time.Until(t), nil
	}
	return 0, nil
}

// shouldRetry retries reads only; translation requests are never repeated.
func shouldRetry(resp *resty.Response, err error) bool {
	if resp == nil || resp.Request == nil || resp.Request.Method != http.MethodGet {
		return false
	}
	if err != nil {
		return resp.Request.Context().Err() == nil
	}
	status := resp.StatusCode()
	return status == http.StatusTooManyRequests || status >= http.StatusInternalServerError
}

type slogLogger struct{}

func (slogLogger) Errorf(format string, v ...any) {
	slog.Error(strings.TrimSpace(fmt.Sprintf(format, v...)), slog.String("component", "resty"))
}

func (slogLogger) Warnf(format string, v ...any) {
	slog.Warn(strings.TrimSpace(fmt.Sprintf(format, v...)), slog.String("component", "resty"))
}

func (slogLogger) Debugf(format string, v ...any) {
	slog.Debug(strings.TrimSpace(fmt.Sprintf(format, v...)), slog.String("component", "resty"))
}

// do executes one request and classifies its failure. endpoint is the
// metrics label.
func (c *Client) do(ctx context.Context, timeout time.Duration, endpoint, method, path string, prepare func(*resty.Request), result any) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	req := c.http.R().SetContext(ctx)
	if result != nil {
		req.SetResult(result)
	}
	if prepare != nil {
		prepare(req)
	}

	c.Metrics.IncRequest(endpoint)
	start := time.Now()
	resp, err := req.Execute(method, path)
	c.Metrics.ObserveDuration(endpoint, time.Since(start))

	status := 0
	body := ""
	if err == nil && resp.IsError() {
		status = resp.StatusCode()
		body = strings.TrimSpace(resp.String())
	}
	classified := classifyError(err, status, body)
	if classified == nil {
		return nil
	}

	label := ErrorTypeLabel(classified)
	c.Metrics.IncError(label)
	slog.Debug("backend request failed",
		slog.String("endpoint", endpoint),
		slog.String("method", method),
		slog.String("path", path),
		slog.String("category", label),
		slog.Any("error", classified),
	)
	return fmt.Errorf("%s: %w", endpoint, classified)
}

// ListNovels fetches one page of the library, optionally filtered.
func (c *Client) ListNovels(ctx context.Context, q ListQuery) (*models.NovelPage, error) {
	var page models.NovelPage
	err := c.do(ctx, c.timeout, "list_novels", http.MethodGet, "/novels", func(r *resty.Request) {
		r.SetQueryParam("page", strconv.Itoa(q.Page))
		r.SetQueryParam("limit", strconv.Itoa(q.Limit))
		if q.FilterBy != "" {
			r.SetQueryParam("filter_by", q.FilterBy)
			r.SetQueryParam("filter_value", q.FilterValue)
		}
	}, &page)
	if err != nil {
		return nil, err
	}
	return &page, nil
}

// SearchNovels fetches one page of search results for query.
func (c *Client) SearchNovels(ctx context.Context, query string, page, limit int) (*models.NovelPage, error) {
	var result models.NovelPage
	err := c.do(ctx, c.timeout, "search_novels", http.MethodGet, "/search/novels/{query}", func(r *resty.Request) {
		r.SetPathParam("query", query)
		r.SetQueryParam("page", strconv.Itoa(page))
		r.SetQueryParam("limit", strconv.Itoa(limit))
	}, &result)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// Listing returns a page fetcher over the (optionally filtered) library.
func (c *Client) Listing(filterBy, filterValue string) func(ctx context.Context, page, limit int) (*models.NovelPage, error) {
	return func(ctx context.Context, page, limit int) (*models.NovelPage, error) {
		return c.ListNovels(ctx, ListQuery{Page: page, Limit: limit, FilterBy: filterBy, FilterValue: filterValue})
	}
}

// Search returns a page fetcher over the results for query.
func (c *Client) Search(query string) func(ctx context.Context, page, limit int) (*models.NovelPage, error) {
	return func(ctx context.Context, page, limit int) (*models.NovelPage, error) {
		return c.SearchNovels(ctx, query, page, limit)
	}
}

// GetNovel returns the novel, or found=false when the backend has no such id.
func (c *Client) GetNovel(ctx context.Context, id string) (*models.Novel, bool, error) {
	var novel models.Novel
	err := c.do(ctx, c.timeout, "get_novel", http.MethodGet, "/novels/{id}", func(r *resty.Request) {
		r.SetPathParam("id", id)
	}, &novel)
	if IsNotFound(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return &novel, true, nil
}

// ListChapters returns the translated chapters of a novel ordered by number.
func (c *Client) ListChapters(ctx context.Context, novelID string) ([]*models.Chapter, error) {
	var chapters []*models.Chapter
	err := c.do(ctx, c.timeout, "list_chapters", http.MethodGet, "/novels/{id}/chapters", func(r *resty.Request) {
		r.SetPathParam("id", novelID)
	}, &chapters)
	if err != nil {
		return nil, err
	}
	for _, ch := range chapters {
		if ch.Content != "" {
			c.chapters.Add(chapterKey{novelID, ch.Number}, ch)
		}
	}
	return chapters, nil
}

// GetChapter returns chapter number of a novel, or found=false when it has
// not been translated yet. Found chapters are cached.
func (c *Client) GetChapter(ctx context.Context, novelID string, number int) (*models.Chapter, bool, error) {
	key := chapterKey{novelID, number}
	if ch, ok := c.chapters.Get(key); ok {
		c.Metrics.IncCache(true)
		return ch, true, nil
	}
	c.Metrics.IncCache(false)

	var chapter models.Chapter
	err := c.do(ctx, c.timeout, "get_chapter", http.MethodGet, "/novels/{id}/chapters/num/{number}", func(r *resty.Request) {
		r.SetPathParam("id", novelID)
		r.SetPathParam("number", strconv.Itoa(number))
	}, &chapter)
	if IsNotFound(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	c.chapters.Add(key, &chapter)
	return &chapter, true, nil
}

// ChapterExists reports whether chapter number is available on the backend.
func (c *Client) ChapterExists(ctx context.Context, novelID string, number int) (bool, error) {
	_, found, err := c.GetChapter(ctx, novelID, number)
	return found, err
}

// TranslateChapter asks the backend to scrape and translate one chapter.
func (c *Client) TranslateChapter(ctx context.Context, req models.ChapterTranslationRequest) (*models.TranslatedChapter, error) {
	var result models.TranslatedChapter
	err := c.do(ctx, c.translateTimeout, "translate_chapter", http.MethodPost, "/novels/translate/chapter", func(r *resty.Request) {
		r.SetBody(req)
	}, &result)
	if err != nil {
		return nil, err
	}
	c.chapters.Remove(chapterKey{req.NovelID, req.ChapterNumber})
	return &result, nil
}

// TranslateFirstChapter records the first chapter URL of a novel and
// translates that chapter.
func (c *Client) TranslateFirstChapter(ctx context.Context, req models.FirstChapterRequest) (*models.FirstChapterResponse, error) {
	var result models.FirstChapterResponse
	err := c.do(ctx, c.translateTimeout, "translate_first_chapter", http.MethodPost, "/novels/translate/first_chapter", func(r *resty.Request) {
		r.SetBody(req)
	}, &result)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// AddNovel asks the backend to scrape and translate a novel's main page.
func (c *Client) AddNovel(ctx context.Context, req models.NovelRequest) (*models.Novel, error) {
	var novel models.Novel
	err := c.do(ctx, c.translateTimeout, "add_novel", http.MethodPost, "/novels/translate", func(r *resty.Request) {
		r.SetBody(req)
	}, &novel)
	if err != nil {
		return nil, err
	}
	return &novel, nil
}

// RefreshNovel asks the backend to re-scrape a novel's details.
func (c *Client) RefreshNovel(ctx context.Context, req models.RefreshRequest) (*models.RefreshResponse, error) {
	var result models.RefreshResponse
	err := c.do(ctx, c.translateTimeout, "refresh_novel", http.MethodPost, "/novels/refresh", func(r *resty.Request) {
		r.SetBody(req)
	}, &result)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// Sources lists the source sites known to the backend.
func (c *Client) Sources(ctx context.Context) ([]models.SourceSite, error) {
	var sites []models.SourceSite
	if err := c.do(ctx, c.timeout, "sources", http.MethodGet, "/sources", nil, &sites); err != nil {
		return nil, err
	}
	return sites, nil
}

// Stats returns the library-wide counters.
func (c *Client) Stats(ctx context.Context) (*models.Stats, error) {
	var stats models.Stats
	if err := c.do(ctx, c.timeout, "stats", http.MethodGet, "/stats/novels", nil, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

// Health checks that the backend and its store are up.
func (c *Client) Health(ctx context.Context) error {
	var status struct {
		Status string `json:"status"`
	}
	if err := c.do(ctx, c.timeout, "health", http.MethodGet, "/health", nil, &status); err != nil {
		return err
	}
	if status.Status != "ok" {
		return fmt.Errorf("health: unexpected status %q", status.Status)
	}
	return nil
}

// RefreshMessage describes the outcome of a refresh for the user.
func RefreshMessage(newChapters int) string {
	switch {
	case newChapters <= 0:
		return "No new chapters found"
	case newChapters == 1:
		return "Found 1 new chapter!"
	default:
		return fmt.Sprintf("Found %d new chapters!", newChapters)
	}
}
