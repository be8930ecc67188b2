// Package pagination drives every "fetch page N of size L" listing.
//
// A Controller owns the page state of one listing view. Loads may overlap;
// only the completion of the most recently issued load is applied, earlier
// ones are reported as ErrStale and dropped.
package pagination

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"slices"
	"strconv"
	"sync"

	"github.com/arcane-translator/arcane-reader/models"
	"github.com/arcane-translator/arcane-reader/notify"
)

var (
	// ErrStale is returned by a load superseded by a later one.
	ErrStale = errors.New("pagination: stale response")
	// ErrClosed is returned once the controller has been closed.
	ErrClosed = errors.New("pagination: closed")
	// ErrInvalidPageSize is returned for a page size outside ItemsPerPageOptions.
	ErrInvalidPageSize = errors.New("pagination: invalid items per page")
)

// ItemsPerPageOptions are the selectable page sizes.
var ItemsPerPageOptions = []int{10, 20, 50, 100}

// ValidItemsPerPage reports whether n is one of ItemsPerPageOptions.
func ValidItemsPerPage(n int) bool {
	return slices.Contains(ItemsPerPageOptions, n)
}

var pageInputPattern = regexp.MustCompile(`^\d*$`)

// FetchFunc loads one page of a listing.
type FetchFunc func(ctx context.Context, page, limit int) (*models.NovelPage, error)

// State is the page most recently applied.
type State struct {
	Items       []*models.Novel
	TotalCount  int
	CurrentPage int
	TotalPages  int
}

// Snapshot is a copy of everything a view renders.
type Snapshot struct {
	State
	Loading      bool
	Refreshing   bool
	ItemsPerPage int
	PageInput    string
}

// Controller coordinates page fetches for one listing view.
type Controller struct {
	fetch    FetchFunc
	notifier notify.Notifier

	mu           sync.Mutex
	state        State
	loading      bool
	refreshing   int // refreshes in flight
	itemsPerPage int
	pageInput    string
	seq          uint64
	closed       bool
}

// NewController builds a controller; itemsPerPage falls back to 20 when it is
// not one of ItemsPerPageOptions.
func NewController(fetch FetchFunc, itemsPerPage int, notifier notify.Notifier) *Controller {
	if !ValidItemsPerPage(itemsPerPage) {
		itemsPerPage = 20
	}
	if notifier == nil {
		notifier = notify.Discard
	}
	return &Controller{
		fetch:        fetch,
		notifier:     notifier,
		state:        State{Items: []*models.Novel{}, CurrentPage: 1, TotalPages: 1},
		itemsPerPage: itemsPerPage,
		pageInput:    "1",
	}
}

// Snapshot returns a copy of the current state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	items := make([]*models.Novel, len(c.state.Items))
	copy(items, c.state.Items)
	st := c.state
	st.Items = items
	return Snapshot{
		State:        st,
		Loading:      c.loading,
		Refreshing:   c.refreshing > 0,
		ItemsPerPage: c.itemsPerPage,
		PageInput:    c.pageInput,
	}
}

// Load fetches page with limit items and applies the result. On failure the
// items are cleared, counts kept and an error notification is sent.
func (c *Controller) Load(ctx context.Context, page, limit int) error {
	return c.load(ctx, page, limit, true)
}

// LoadFirst loads page 1 at the current page size.
func (c *Controller) LoadFirst(ctx context.Context) error {
	return c.Load(ctx, 1, c.ItemsPerPage())
}

func (c *Controller) load(ctx context.Context, page, limit int, notifyFailure bool) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	c.seq++
	seq := c.seq
	c.loading = true
	c.mu.Unlock()

	result, err := c.fetch(ctx, page, limit)
	if err == nil && result == nil {
		err = fmt.Errorf("empty response for page %d", page)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}
	if seq != c.seq {
		slog.Debug("dropping stale page response",
			slog.Int("page", page),
			slog.Int("limit", limit),
		)
		return ErrStale
	}
	c.loading = false

	if err != nil {
		slog.Error("fetch page", slog.Int("page", page), slog.Int("limit", limit), slog.Any("error", err))
		c.state.Items = []*models.Novel{}
		if notifyFailure {
			c.notifier.Notify(notify.Notification{
				Level:   notify.LevelError,
				Title:   "Error",
				Message: "Failed to load data.",
			})
		}
		return err
	}

	c.apply(result, limit)
	return nil
}

func (c *Controller) apply(result *models.NovelPage, limit int) {
	st := State{
		Items:       result.Novels,
		TotalCount:  max(result.TotalCount, 0),
		CurrentPage: max(result.CurrentPage, 1),
		TotalPages:  max(result.TotalPages, 1),
	}
	if st.Items == nil {
		st.Items = []*models.Novel{}
	}
	if st.CurrentPage > st.TotalPages {
		st.CurrentPage = st.TotalPages
	}
	if limit > 0 && len(st.Items) > limit {
		st.Items = st.Items[:limit]
	}
	c.state = st
	c.pageInput = strconv.Itoa(st.CurrentPage)
}

// ChangePage loads page n at the current page size. Pages outside
// [1, TotalPages] are ignored.
func (c *Controller) ChangePage(ctx context.Context, n int) error {
	c.mu.Lock()
	total := c.state.TotalPages
	limit := c.itemsPerPage
	c.mu.Unlock()

	if n < 1 || n > total {
		return nil
	}
	return c.Load(ctx, n, limit)
}

// First loads page 1.
func (c *Controller) First(ctx context.Context) error {
	return c.ChangePage(ctx, 1)
}

// Prev loads the page before the current one; on page 1 it does nothing.
func (c *Controller) Prev(ctx context.Context) error {
	return c.ChangePage(ctx, c.Snapshot().CurrentPage-1)
}

// Next loads the page after the current one; on the last page it does
// nothing.
func (c *Controller) Next(ctx context.Context) error {
	return c.ChangePage(ctx, c.Snapshot().CurrentPage+1)
}

// Last loads the final page.
func (c *Controller) Last(ctx context.Context) error {
	return c.ChangePage(ctx, c.Snapshot().TotalPages)
}

// EditPageInput accepts text only when it is empty or all digits.
func (c *Controller) EditPageInput(text string) bool {
	if !pageInputPattern.MatchString(text) {
		return false
	}
	c.mu.Lock()
	c.pageInput = text
	c.mu.Unlock()
	return true
}

// CommitPageInput jumps to the typed page, or restores the input to the
// current page when the text is not a page in range.
func (c *Controller) CommitPageInput(ctx context.Context) error {
	c.mu.Lock()
	page, err := strconv.Atoi(c.pageInput)
	if err != nil || page < 1 || page > c.state.TotalPages {
		c.pageInput = strconv.Itoa(c.state.CurrentPage)
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()
	return c.ChangePage(ctx, page)
}

// Refresh reloads the current page and reports the outcome.
func (c *Controller) Refresh(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	c.refreshing++
	page := c.state.CurrentPage
	limit := c.itemsPerPage
	c.mu.Unlock()

	err := c.load(ctx, page, limit, false)

	c.mu.Lock()
	c.refreshing--
	c.mu.Unlock()

	switch {
	case err == nil:
		c.notifier.Notify(notify.Notification{
			Level:   notify.LevelSuccess,
			Title:   "Refreshed",
			Message: "Data has been updated.",
		})
	case errors.Is(err, ErrStale), errors.Is(err, ErrClosed):
	default:
		c.notifier.Notify(notify.Notification{
			Level:   notify.LevelError,
			Title:   "Refresh Failed",
			Message: "Failed to refresh data.",
		})
	}
	return err
}

// SetItemsPerPage switches the page size and reloads from page 1.
func (c *Controller) SetItemsPerPage(ctx context.Context, n int) error {
	if !ValidItemsPerPage(n) {
		return fmt.Errorf("%w: %d", ErrInvalidPageSize, n)
	}
	c.mu.Lock()
	c.itemsPerPage = n
	c.mu.Unlock()
	return c.Load(ctx, 1, n)
}

// ItemsPerPage returns the current page size.
func (c *Controller) ItemsPerPage() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.itemsPerPage
}

// Close stops the controller from applying any further results.
func (c *Controller) Close() {
	c.mu.Lock()
	c.closed = true
	c.loading = false
	c.mu.Unlock()
}
