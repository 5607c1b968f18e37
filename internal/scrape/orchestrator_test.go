package scrape

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"snatcher/internal/browser"
	"snatcher/internal/config"
	"snatcher/internal/currency"
	"snatcher/internal/extract"
	"snatcher/internal/model"
	"snatcher/internal/snatch"
)

type fakeRepo struct {
	mu     sync.Mutex
	items  map[int64]*model.TrackedItem
	owners map[int64]model.Owner
	events []model.SnatchEvent
}

func (r *fakeRepo) ListActive(ctx context.Context) ([]model.TrackedItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var items []model.TrackedItem
	for _, it := range r.items {
		if it.Status == model.StatusActive {
			items = append(items, *it)
		}
	}
	return items, nil
}

func (r *fakeRepo) Get(ctx context.Context, id int64) (model.TrackedItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	it, ok := r.items[id]
	if !ok {
		return model.TrackedItem{}, fmt.Errorf("item %d not found", id)
	}
	return *it, nil
}

func (r *fakeRepo) GetOwner(ctx context.Context, id int64) (model.Owner, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.owners[id], nil
}

func (r *fakeRepo) CompareAndSetPrice(ctx context.Context, id int64, price model.CanonicalPrice) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	it, ok := r.items[id]
	if !ok || it.Status != model.StatusActive {
		return false, nil
	}
	p := price.BaseAmount
	it.CurrentPrice = &p
	return true, nil
}

func (r *fakeRepo) CompareAndSetSnatched(ctx context.Context, id int64, snatchedPrice float64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	it, ok := r.items[id]
	if !ok || it.Status != model.StatusActive {
		return false, nil
	}
	it.Status = model.StatusSnatched
	it.CurrentPrice = &snatchedPrice
	return true, nil
}

func (r *fakeRepo) CreateSnatchEvent(ctx context.Context, ev model.SnatchEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent int
}

func (n *fakeNotifier) SendPriceAlert(ctx context.Context, ownerEmail, itemURL string, achievedPrice float64) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent++
	return nil
}

type stubFactory struct {
	html string
	fail map[string]bool
}

func (f *stubFactory) Open(ctx context.Context) (browser.Session, error) {
	return &stubSession{html: f.html, fail: f.fail}, nil
}

type stubSession struct {
	html string
	fail map[string]bool
}

func (s *stubSession) Fetch(ctx context.Context, url string) (*browser.RenderedPage, error) {
	if s.fail[url] {
		return nil, &browser.NetworkError{URL: url, Err: errors.New("connection timed out")}
	}
	return &browser.RenderedPage{URL: url, HTML: s.html}, nil
}

func (s *stubSession) Close() {}

func itemURL(id int64) string {
	return fmt.Sprintf("https://shop.example.com/offers/%d", id)
}

func TestOrchestrator_RunSweep(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	norm := currency.NewNormalizer("GBP", map[string]float64{"PKR": 0.0028})

	repo := &fakeRepo{
		items:  make(map[int64]*model.TrackedItem),
		owners: map[int64]model.Owner{1: {ID: 1, Email: "a@example.com"}, 2: {ID: 2, Email: "b@example.com"}, 3: {ID: 3, Email: "c@example.com"}},
	}
	// 10 items over 3 owners; the page price is 1400, so items targeting
	// 1500 snatch and items targeting 1000 only record the price.
	owners := []int64{1, 1, 1, 1, 2, 2, 2, 3, 3, 3}
	targets := map[int64]float64{1: 1500, 5: 1500, 8: 1500}
	for i, ownerID := range owners {
		id := int64(i + 1)
		target := 1000.0
		if v, ok := targets[id]; ok {
			target = v
		}
		repo.items[id] = &model.TrackedItem{
			ID: id, OwnerID: ownerID, URL: itemURL(id),
			TargetPrice: target, Status: model.StatusActive,
		}
	}

	factory := &stubFactory{
		html: `<html><body><span class="total-price">£1,400.00</span></body></html>`,
		fail: map[string]bool{itemURL(3): true, itemURL(6): true, itemURL(9): true},
	}

	notifier := &fakeNotifier{}
	engine := snatch.NewEngine(logger, repo, notifier)
	o := NewOrchestrator(logger, repo, engine, factory, extract.NewRegistry(),
		extract.New(norm, logger), norm,
		config.ScrapeConfig{OwnerWorkers: 4, ItemWorkers: 4, DomainRatePerMin: 600000})

	outcomes, err := o.RunSweep(context.Background())
	require.NoError(t, err)
	require.Len(t, outcomes, 10)

	tally := make(map[OutcomeKind]int)
	for _, out := range outcomes {
		tally[out.Kind]++
	}
	assert.Equal(t, 3, tally[OutcomeNetworkError])
	assert.Equal(t, 3, tally[OutcomeSnatched])
	assert.Equal(t, 4, tally[OutcomePriceUpdated])

	assert.Len(t, repo.events, 3)
	assert.Equal(t, 3, notifier.sent)
	assert.Equal(t, model.StatusSnatched, repo.items[1].Status)
	assert.Equal(t, model.StatusSnatched, repo.items[5].Status)
	assert.Equal(t, model.StatusActive, repo.items[2].Status)

	for _, out := range outcomes {
		if out.Kind == OutcomeNetworkError {
			var netErr *browser.NetworkError
			assert.True(t, errors.As(out.Err, &netErr))
		}
	}
}

func TestOrchestrator_RunSweep_NoItems(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	norm := currency.NewNormalizer("GBP", nil)
	repo := &fakeRepo{items: make(map[int64]*model.TrackedItem), owners: map[int64]model.Owner{}}
	engine := snatch.NewEngine(logger, repo, &fakeNotifier{})

	o := NewOrchestrator(logger, repo, engine, &stubFactory{}, extract.NewRegistry(),
		extract.New(norm, logger), norm, config.ScrapeConfig{})

	outcomes, err := o.RunSweep(context.Background())
	require.NoError(t, err)
	assert.Empty(t, outcomes)
}

func TestClassify(t *testing.T) {
	assert.Equal(t, OutcomeNotFound, classify(extract.ErrNotFound))
	assert.Equal(t, OutcomeNotFound, classify(fmt.Errorf("extract: %w", extract.ErrNotFound)))
	assert.Equal(t, OutcomeParseError, classify(&currency.ParseError{Raw: "n/a"}))
	assert.Equal(t, OutcomeNetworkError, classify(&browser.NetworkError{URL: "x", Err: errors.New("reset")}))
	assert.Equal(t, OutcomeSessionError, classify(&browser.SessionError{Err: errors.New("chrome exited")}))
	assert.Equal(t, OutcomeError, classify(errors.New("boom")))
}
