// Package snatch holds the decision engine performing the exactly-once
// Active->Snatched transition when an observed price meets the target.
package snatch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"snatcher/internal/database"
	"snatcher/internal/model"
	"snatcher/internal/notify"
)

// ResultKind classifies one evaluation of a tracked item.
type ResultKind int

const (
	// ResultSkipped: no price has ever been observed for the item.
	ResultSkipped ResultKind = iota
	// ResultPriceUpdated: price recorded, target not met.
	ResultPriceUpdated
	// ResultSnatched: this call performed the transition.
	ResultSnatched
	// ResultConflict: another caller transitioned the item first; a no-op,
	// not an error.
	ResultConflict
	// ResultAlreadySnatched: the item was already terminal when evaluated.
	ResultAlreadySnatched
)

func (k ResultKind) String() string {
	switch k {
	case ResultSkipped:
		return "skipped"
	case ResultPriceUpdated:
		return "price_updated"
	case ResultSnatched:
		return "snatched"
	case ResultConflict:
		return "conflict"
	case ResultAlreadySnatched:
		return "already_snatched"
	default:
		return "unknown"
	}
}

// Result is the outcome of one evaluation.
type Result struct {
	Kind  ResultKind
	Event *model.SnatchEvent
}

// Engine evaluates observed prices against item targets. All state
// mutation goes through the repository's compare-and-set operations, so
// concurrent evaluations of the same item produce exactly one SnatchEvent.
type Engine struct {
	logger   *slog.Logger
	repo     database.Repository
	notifier notify.Notifier
	now      func() time.Time
}

// NewEngine creates an Engine.
func NewEngine(logger *slog.Logger, repo database.Repository, notifier notify.Notifier) *Engine {
	return &Engine{logger: logger, repo: repo, notifier: notifier, now: time.Now}
}

// Evaluate records the observed price (when given) and performs the
// Active->Snatched transition if the price meets the target. A price
// exactly equal to the target counts as met. When observed is nil the item
// is evaluated against its last stored price; if none exists either,
// evaluation is skipped.
func (e *Engine) Evaluate(ctx context.Context, item model.TrackedItem, observed *model.CanonicalPrice) (Result, error) {
	if item.Status != model.StatusActive {
		return Result{Kind: ResultAlreadySnatched}, nil
	}

	var price float64
	switch {
	case observed != nil:
		ok, err := e.repo.CompareAndSetPrice(ctx, item.ID, *observed)
		if err != nil {
			return Result{}, err
		}
		if !ok {
			// Item went terminal between the read and this write.
			return Result{Kind: ResultConflict}, nil
		}
		price = observed.BaseAmount
	case item.CurrentPrice != nil:
		price = *item.CurrentPrice
	default:
		return Result{Kind: ResultSkipped}, nil
	}

	if price > item.TargetPrice {
		return Result{Kind: ResultPriceUpdated}, nil
	}

	ok, err := e.repo.CompareAndSetSnatched(ctx, item.ID, price)
	if err != nil {
		return Result{}, err
	}
	if !ok {
		return Result{Kind: ResultConflict}, nil
	}

	initial := price
	if item.CurrentPrice != nil {
		initial = *item.CurrentPrice
	}
	ev := model.SnatchEvent{
		ItemID:        item.ID,
		OwnerID:       item.OwnerID,
		URL:           item.URL,
		InitialPrice:  initial,
		TargetPrice:   item.TargetPrice,
		SnatchedPrice: price,
		DateTracked:   item.CreatedAt,
		DateSnatched:  e.now().UTC(),
	}
	if err := e.repo.CreateSnatchEvent(ctx, ev); err != nil {
		// The transition is already committed; surface the event loss.
		return Result{Kind: ResultSnatched, Event: &ev}, err
	}

	e.logger.Info("offer snatched",
		"item", item.ID,
		"url", item.URL,
		"target", item.TargetPrice,
		"price", price,
	)
	e.notifyOwner(ctx, item, price)

	return Result{Kind: ResultSnatched, Event: &ev}, nil
}

// EvaluateItem is the on-demand price-report path: the price is already a
// numeric base-currency amount, so normalization is skipped.
func (e *Engine) EvaluateItem(ctx context.Context, itemID int64, observedPrice float64) (Result, error) {
	item, err := e.repo.Get(ctx, itemID)
	if err != nil {
		return Result{}, fmt.Errorf("evaluate item %d: %w", itemID, err)
	}
	price := model.CanonicalPrice{Amount: observedPrice, BaseAmount: observedPrice}
	return e.Evaluate(ctx, item, &price)
}

// notifyOwner dispatches the price alert. Failure is logged, never rolled
// back: the snatch is final regardless of delivery.
func (e *Engine) notifyOwner(ctx context.Context, item model.TrackedItem, price float64) {
	owner, err := e.repo.GetOwner(ctx, item.OwnerID)
	if err != nil {
		e.logger.Error("owner lookup failed after snatch", "item", item.ID, "owner", item.OwnerID, "error", err)
		return
	}
	if err := e.notifier.SendPriceAlert(ctx, owner.Email, item.URL, price); err != nil {
		e.logger.Error("price alert failed", "item", item.ID, "to", owner.Email, "error", err)
	}
}
