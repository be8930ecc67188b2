package pagination

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/arcane-translator/arcane-reader/models"
	"github.com/arcane-translator/arcane-reader/notify"
)

// fakeListing behaves like the backend's paged listing: it clamps the page.
type fakeListing struct {
	mu    sync.Mutex
	total int
	calls []call
	fail  error
}

type call struct{ page, limit int }

func (f *fakeListing) fetch(_ context.Context, page, limit int) (*models.NovelPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call{page, limit})
	if f.fail != nil {
		return nil, f.fail
	}
	return pageOf(f.total, page, limit), nil
}

func (f *fakeListing) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeListing) lastCall() call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[len(f.calls)-1]
}

func pageOf(total, page, limit int) *models.NovelPage {
	totalPages := max((total+limit-1)/limit, 1)
	page = min(max(page, 1), totalPages)
	var novels []*models.Novel
	for i := (page - 1) * limit; i < min(page*limit, total); i++ {
		novels = append(novels, &models.Novel{ID: fmt.Sprintf("n%d", i+1)})
	}
	return &models.NovelPage{Novels: novels, TotalCount: total, CurrentPage: page, TotalPages: totalPages}
}

func TestLoadAndJumpToLastPage(t *testing.T) {
	ctx := context.Background()
	listing := &fakeListing{total: 42}
	c := NewController(listing.fetch, 20, nil)

	if err := c.LoadFirst(ctx); err != nil {
		t.Fatalf("load: %v", err)
	}
	snap := c.Snapshot()
	if len(snap.Items) != 20 || snap.TotalPages != 3 || snap.CurrentPage != 1 {
		t.Fatalf("page 1: items=%d totalPages=%d current=%d", len(snap.Items), snap.TotalPages, snap.CurrentPage)
	}

	if err := c.Last(ctx); err != nil {
		t.Fatalf("last: %v", err)
	}
	snap = c.Snapshot()
	if snap.CurrentPage != 3 || len(snap.Items) != 2 {
		t.Fatalf("last page: current=%d items=%d", snap.CurrentPage, len(snap.Items))
	}
	if snap.PageInput != "3" {
		t.Fatalf("page input = %q, want 3", snap.PageInput)
	}
	if snap.Loading {
		t.Fatalf("loading should be cleared")
	}
}

func TestChangePageOutOfRangeIsNoop(t *testing.T) {
	ctx := context.Background()
	listing := &fakeListing{total: 42}
	c := NewController(listing.fetch, 20, nil)
	c.LoadFirst(ctx)

	for _, n := range []int{0, -1, 4} {
		if err := c.ChangePage(ctx, n); err != nil {
			t.Fatalf("change page %d: %v", n, err)
		}
	}
	if got := listing.callCount(); got != 1 {
		t.Fatalf("fetch calls = %d, want 1", got)
	}
	if err := c.Prev(ctx); err != nil || listing.callCount() != 1 {
		t.Fatalf("prev on first page should be a no-op")
	}
}

func TestServerClampedPageIsReflected(t *testing.T) {
	ctx := context.Background()
	listing := &fakeListing{total: 42}
	c := NewController(listing.fetch, 20, nil)

	if err := c.Load(ctx, 9, 20); err != nil {
		t.Fatalf("load: %v", err)
	}
	snap := c.Snapshot()
	if snap.CurrentPage != 3 || snap.PageInput != "3" {
		t.Fatalf("current=%d input=%q, want server page 3", snap.CurrentPage, snap.PageInput)
	}
}

func TestEditPageInput(t *testing.T) {
	c := NewController((&fakeListing{total: 1}).fetch, 20, nil)

	tests := []struct {
		text     string
		accepted bool
	}{
		{text: "12", accepted: true},
		{text: "", accepted: true},
		{text: "1a", accepted: false},
		{text: "-1", accepted: false},
		{text: " 2", accepted: false},
		{text: "3.5", accepted: false},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%q", tt.text), func(t *testing.T) {
			c.EditPageInput("7")
			got := c.EditPageInput(tt.text)
			if got != tt.accepted {
				t.Fatalf("accepted = %v, want %v", got, tt.accepted)
			}
			want := "7"
			if tt.accepted {
				want = tt.text
			}
			if input := c.Snapshot().PageInput; input != want {
				t.Fatalf("page input = %q, want %q", input, want)
			}
		})
	}
}

func TestCommitPageInput(t *testing.T) {
	ctx := context.Background()

	for _, text := range []string{"0", "6", ""} {
		t.Run("reject "+text, func(t *testing.T) {
			listing := &fakeListing{total: 100}
			c := NewController(listing.fetch, 20, nil)
			c.Load(ctx, 2, 20)

			c.EditPageInput(text)
			if err := c.CommitPageInput(ctx); err != nil {
				t.Fatalf("commit: %v", err)
			}
			snap := c.Snapshot()
			if snap.CurrentPage != 2 || snap.PageInput != "2" {
				t.Fatalf("current=%d input=%q, want 2/2", snap.CurrentPage, snap.PageInput)
			}
			if listing.callCount() != 1 {
				t.Fatalf("invalid commit should not fetch")
			}
		})
	}

	listing := &fakeListing{total: 100}
	c := NewController(listing.fetch, 20, nil)
	c.LoadFirst(ctx)
	c.EditPageInput("4")
	if err := c.CommitPageInput(ctx); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if got := c.Snapshot().CurrentPage; got != 4 {
		t.Fatalf("current page = %d, want 4", got)
	}
}

func TestSetItemsPerPageResetsToFirstPage(t *testing.T) {
	ctx := context.Background()
	listing := &fakeListing{total: 100}
	c := NewController(listing.fetch, 20, nil)
	c.Load(ctx, 3, 20)

	if err := c.SetItemsPerPage(ctx, 50); err != nil {
		t.Fatalf("set items per page: %v", err)
	}
	if got := listing.lastCall(); got != (call{page: 1, limit: 50}) {
		t.Fatalf("last fetch = %+v, want page 1 limit 50", got)
	}
	snap := c.Snapshot()
	if snap.ItemsPerPage != 50 || snap.CurrentPage != 1 || len(snap.Items) != 50 {
		t.Fatalf("snapshot = perPage %d page %d items %d", snap.ItemsPerPage, snap.CurrentPage, len(snap.Items))
	}

	if err := c.SetItemsPerPage(ctx, 33); !errors.Is(err, ErrInvalidPageSize) {
		t.Fatalf("err = %v, want ErrInvalidPageSize", err)
	}
}

func TestLoadFailureKeepsCounts(t *testing.T) {
	ctx := context.Background()
	listing := &fakeListing{total: 42}
	rec := &notify.Recorder{}
	c := NewController(listing.fetch, 20, rec)
	c.LoadFirst(ctx)

	listing.fail = errors.New("connection refused")
	if err := c.Next(ctx); err == nil {
		t.Fatalf("expected error")
	}
	snap := c.Snapshot()
	if len(snap.Items) != 0 {
		t.Fatalf("items should be cleared on failure")
	}
	if snap.TotalCount != 42 || snap.TotalPages != 3 || snap.CurrentPage != 1 {
		t.Fatalf("counts not preserved: %+v", snap.State)
	}
	if snap.Loading {
		t.Fatalf("loading should be cleared after failure")
	}
	if rec.Count(notify.LevelError) != 1 {
		t.Fatalf("expected one error notification, got %v", rec.All())
	}
}

func TestRefreshNotifies(t *testing.T) {
	ctx := context.Background()
	listing := &fakeListing{total: 42}
	rec := &notify.Recorder{}
	c := NewController(listing.fetch, 20, rec)
	c.Load(ctx, 2, 20)

	if err := c.Refresh(ctx); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if got := listing.lastCall(); got != (call{page: 2, limit: 20}) {
		t.Fatalf("refresh fetched %+v, want current page", got)
	}
	if rec.Count(notify.LevelSuccess) != 1 {
		t.Fatalf("expected success notification, got %v", rec.All())
	}

	listing.fail = errors.New("boom")
	if err := c.Refresh(ctx); err == nil {
		t.Fatalf("expected refresh error")
	}
	all := rec.All()
	if last := all[len(all)-1]; last.Level != notify.LevelError || last.Title != "Refresh Failed" {
		t.Fatalf("last notification = %+v", last)
	}
	if rec.Count(notify.LevelError) != 1 {
		t.Fatalf("refresh failure should notify once, got %v", all)
	}
	if c.Snapshot().Refreshing {
		t.Fatalf("refreshing should be cleared")
	}
}

func TestOverlappingRefreshesKeepFlagUntilLastFinishes(t *testing.T) {
	ctx := context.Background()
	started := make(chan chan struct{})
	fetch := func(_ context.Context, page, limit int) (*models.NovelPage, error) {
		gate := make(chan struct{})
		started <- gate
		<-gate
		return pageOf(30, page, limit), nil
	}
	c := NewController(fetch, 20, nil)

	first := make(chan error, 1)
	go func() { first <- c.Refresh(ctx) }()
	firstGate := <-started
	second := make(chan error, 1)
	go func() { second <- c.Refresh(ctx) }()
	secondGate := <-started

	close(firstGate)
	if err := <-first; !errors.Is(err, ErrStale) {
		t.Fatalf("first refresh err = %v, want ErrStale", err)
	}
	if !c.Snapshot().Refreshing {
		t.Fatalf("refreshing cleared while the second refresh is in flight")
	}

	close(secondGate)
	if err := <-second; err != nil {
		t.Fatalf("second refresh: %v", err)
	}
	if c.Snapshot().Refreshing {
		t.Fatalf("refreshing should be cleared")
	}
}

func TestStaleResponseIsDropped(t *testing.T) {
	ctx := context.Background()
	slow := make(chan struct{})
	started := make(chan struct{})

	fetch := func(_ context.Context, page, limit int) (*models.NovelPage, error) {
		if page == 2 {
			close(started)
			<-slow
		}
		return pageOf(100, page, limit), nil
	}
	c := NewController(fetch, 20, nil)

	errCh := make(chan error, 1)
	go func() { errCh <- c.Load(ctx, 2, 20) }()
	<-started

	if err := c.Load(ctx, 3, 20); err != nil {
		t.Fatalf("load page 3: %v", err)
	}
	close(slow)
	if err := <-errCh; !errors.Is(err, ErrStale) {
		t.Fatalf("slow load err = %v, want ErrStale", err)
	}

	snap := c.Snapshot()
	if snap.CurrentPage != 3 || snap.Items[0].ID != "n41" {
		t.Fatalf("state shows page %d starting at %s, want page 3", snap.CurrentPage, snap.Items[0].ID)
	}
}

func TestLoadingFlagWhileInFlight(t *testing.T) {
	ctx := context.Background()
	release := make(chan struct{})
	started := make(chan struct{})
	fetch := func(_ context.Context, page, limit int) (*models.NovelPage, error) {
		close(started)
		<-release
		return pageOf(5, page, limit), nil
	}
	c := NewController(fetch, 20, nil)

	done := make(chan error, 1)
	go func() { done <- c.LoadFirst(ctx) }()
	<-started
	if !c.Snapshot().Loading {
		t.Fatalf("loading should be set while the fetch is in flight")
	}
	close(release)
	if err := <-done; err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.Snapshot().Loading {
		t.Fatalf("loading should be cleared")
	}
}

func TestClosedControllerIgnoresCompletion(t *testing.T) {
	ctx := context.Background()
	release := make(chan struct{})
	started := make(chan struct{})
	fetch := func(_ context.Context, page, limit int) (*models.NovelPage, error) {
		close(started)
		<-release
		return pageOf(50, page, limit), nil
	}
	c := NewController(fetch, 20, nil)

	done := make(chan error, 1)
	go func() { done <- c.LoadFirst(ctx) }()
	<-started
	c.Close()
	close(release)

	if err := <-done; !errors.Is(err, ErrClosed) {
		t.Fatalf("err = %v, want ErrClosed", err)
	}
	if got := c.Snapshot().TotalCount; got != 0 {
		t.Fatalf("closed controller applied a result: total=%d", got)
	}
	if err := c.LoadFirst(ctx); !errors.Is(err, ErrClosed) {
		t.Fatalf("load after close err = %v", err)
	}
}
