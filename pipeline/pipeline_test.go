package pipeline

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/arcane-translator/arcane-reader/config"
	"github.com/arcane-translator/arcane-reader/models"
)

type mockWriter struct {
	mu          sync.Mutex
	batches     [][]*models.Novel
	closed      bool
	validateErr error
}

func (mw *mockWriter) Write(novels []*models.Novel) error {
	mw.mu.Lock()
	defer mw.mu.Unlock()
	copyBatch := make([]*models.Novel, len(novels))
	copy(copyBatch, novels)
	mw.batches = append(mw.batches, copyBatch)
	return nil
}

func (mw *mockWriter) Close() error {
	mw.mu.Lock()
	mw.closed = true
	mw.mu.Unlock()
	return nil
}

func (mw *mockWriter) Validate() error {
	return mw.validateErr
}

func (mw *mockWriter) written() []*models.Novel {
	mw.mu.Lock()
	defer mw.mu.Unlock()
	var all []*models.Novel
	for _, batch := range mw.batches {
		all = append(all, batch...)
	}
	return all
}

func (mw *mockWriter) batchSizes() []int {
	mw.mu.Lock()
	defer mw.mu.Unlock()
	sizes := make([]int, 0, len(mw.batches))
	for _, batch := range mw.batches {
		sizes = append(sizes, len(batch))
	}
	return sizes
}

type blockingWriter struct {
	blockCh chan struct{}
}

func (bw *blockingWriter) Write([]*models.Novel) error {
	<-bw.blockCh
	return nil
}

func (bw *blockingWriter) Close() error    { return nil }
func (bw *blockingWriter) Validate() error { return nil }

func novel(i int) *models.Novel {
	return &models.Novel{ID: "novel-" + strconv.Itoa(i), Title: "Novel " + strconv.Itoa(i), Source: "69shu"}
}

func TestPipelineProcessValidationAndDedup(t *testing.T) {
	cfg := config.DefaultConfig()
	writer := &mockWriter{}
	p := NewPipeline(context.Background(), writer, cfg)
	p.Start(1)

	valid := &models.Novel{
		ID:     "lotm",
		Title:  "Lord of the Mysteries",
		Status: " completed ",
		Genres: []string{"Fantasy", " fantasy", "", "Mystery"},
	}
	invalid := &models.Novel{ID: "untitled"}
	duplicate := &models.Novel{ID: "lotm", Title: "Lord of the Mysteries"}

	if err := p.Process(valid, invalid, duplicate); err != nil {
		t.Fatalf("process: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	written := writer.written()
	if len(written) != 1 {
		t.Fatalf("written novels = %d, want 1", len(written))
	}
	if got := written[0]; got.Status != "Completed" || len(got.Genres) != 2 {
		t.Fatalf("novel not normalized: %+v", got)
	}

	metrics := p.GetMetrics()
	validation, ok := metrics["validation_errors"].(map[string]int)
	if !ok {
		t.Fatalf("expected validation errors map")
	}
	if validation["invalid_record"] != 1 {
		t.Fatalf("expected one invalid_record validation error, got %v", validation)
	}
	if validation["duplicate_id"] != 1 {
		t.Fatalf("expected one duplicate_id validation error, got %v", validation)
	}
	if metrics["processed_novels"].(int64) != 1 {
		t.Fatalf("processed = %v, want 1", metrics["processed_novels"])
	}
}

func TestPipelineBatchFlushThreshold(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.ExportBatchSize = 64
	writer := &mockWriter{}
	p := NewPipeline(context.Background(), writer, cfg)
	p.Start(1)

	for i := 0; i < 65; i++ {
		if err := p.Process(novel(i)); err != nil {
			t.Fatalf("process: %v", err)
		}
	}
	if err := p.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	sizes := writer.batchSizes()
	if len(sizes) != 2 || sizes[0] != 64 || sizes[1] != 1 {
		t.Fatalf("batch sizes = %v, want [64 1]", sizes)
	}
}

func TestPipelineCloseDrainsPendingItems(t *testing.T) {
	cfg := config.DefaultConfig()
	writer := &mockWriter{}
	p := NewPipeline(context.Background(), writer, cfg)
	p.Start(2)

	for i := 0; i < 100; i++ {
		if err := p.Process(novel(i + 200)); err != nil {
			t.Fatalf("process: %v", err)
		}
	}
	if err := p.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	if got := len(writer.written()); got != 100 {
		t.Fatalf("written novels = %d, want 100", got)
	}
	if err := p.Process(novel(1)); !errors.Is(err, ErrPipelineClosed) {
		t.Fatalf("process after close = %v, want ErrPipelineClosed", err)
	}
}

func TestPipelineDedupeIsBounded(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.DedupeMaxSize = 2
	writer := &mockWriter{}
	p := NewPipeline(context.Background(), writer, cfg)
	p.Start(1)

	// novel-0 is evicted by the time it repeats, so it is written again.
	for _, i := range []int{0, 1, 2, 0, 2} {
		if err := p.Process(novel(i)); err != nil {
			t.Fatalf("process: %v", err)
		}
	}
	if err := p.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	if got := len(writer.written()); got != 4 {
		t.Fatalf("written novels = %d, want 4", got)
	}
}

func TestPipelineCloseTimeout(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.ExportBatchSize = 1

	writer := &blockingWriter{blockCh: make(chan struct{})}
	p := NewPipeline(context.Background(), writer, cfg)
	p.Start(1)

	if err := p.Process(novel(1)); err != nil {
		t.Fatalf("process: %v", err)
	}

	previousTimeout := drainTimeout
	drainTimeout = 25 * time.Millisecond
	t.Cleanup(func() {
		drainTimeout = previousTimeout
		close(writer.blockCh)
	})

	if err := p.Close(); err == nil || !errors.Is(err, ErrPipelineCloseTimeout) {
		t.Fatalf("expected close timeout error, got %v", err)
	}
}

func TestPipelineStopsOnCancel(t *testing.T) {
	cfg := config.DefaultConfig()
	writer := &mockWriter{}
	ctx, cancel := context.WithCancel(context.Background())
	p := NewPipeline(ctx, writer, cfg)
	p.Start(1)

	if err := p.Process(novel(1)); err != nil {
		t.Fatalf("process: %v", err)
	}
	cancel()

	if err := p.Close(); err != nil && !errors.Is(err, context.Canceled) {
		t.Fatalf("close = %v", err)
	}
}

func TestExportWalksAllPages(t *testing.T) {
	const total = 3
	var pagesAsked []int
	fetch := func(_ context.Context, page, limit int) (*models.NovelPage, error) {
		pagesAsked = append(pagesAsked, page)
		if limit != ExportPageSize {
			t.Errorf("limit = %d, want %d", limit, ExportPageSize)
		}
		// page 3 repeats the last novel of page 2, as a listing does when
		// a novel is added during the walk.
		return &models.NovelPage{
			Novels:      []*models.Novel{novel(page * 10), novel(page*10 + 1), novel(min(page, 2)*10 + 1)},
			CurrentPage: page,
			TotalPages:  total,
		}, nil
	}

	writer := &mockWriter{}
	p := NewPipeline(context.Background(), writer, config.DefaultConfig())
	p.Start(2)

	pages, err := Export(context.Background(), fetch, p, NewLimiter(1000))
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	if pages != total || len(pagesAsked) != total {
		t.Fatalf("pages = %d, asked %v", pages, pagesAsked)
	}
	// 3 pages x 2 distinct novels; the repeats are dropped.
	if got := len(writer.written()); got != 6 {
		t.Fatalf("written = %d, want 6", got)
	}
}

func TestExportStopsOnFetchError(t *testing.T) {
	boom := errors.New("boom")
	fetch := func(_ context.Context, page, _ int) (*models.NovelPage, error) {
		if page == 2 {
			return nil, boom
		}
		return &models.NovelPage{Novels: []*models.Novel{novel(page)}, TotalPages: 5}, nil
	}

	p := NewPipeline(context.Background(), &mockWriter{}, config.DefaultConfig())
	p.Start(1)
	defer p.Close()

	pages, err := Export(context.Background(), fetch, p, nil)
	if !errors.Is(err, boom) || pages != 1 {
		t.Fatalf("export = %d, %v", pages, err)
	}
}

func TestExportHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	fetch := func(context.Context, int, int) (*models.NovelPage, error) {
		called = true
		return &models.NovelPage{}, nil
	}

	p := NewPipeline(context.Background(), &mockWriter{}, config.DefaultConfig())
	p.Start(1)
	defer p.Close()

	if _, err := Export(ctx, fetch, p, NewLimiter(1)); err == nil || called {
		t.Fatalf("export with cancelled context: err=%v called=%v", err, called)
	}
}
