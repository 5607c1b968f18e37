package model

import "time"

// ItemStatus is the lifecycle state of a tracked item. Snatched is terminal.
type ItemStatus string

const (
	StatusActive   ItemStatus = "active"
	StatusSnatched ItemStatus = "snatched"
)

// TrackedItem represents one user's monitored travel offer.
type TrackedItem struct {
	ID           int64      `db:"id"`
	OwnerID      int64      `db:"owner_id"`
	URL          string     `db:"url"`
	TargetPrice  float64    `db:"target_price"`
	CurrentPrice *float64   `db:"current_price"`
	Status       ItemStatus `db:"status"`
	CreatedAt    time.Time  `db:"created_at"`
}

// Owner is the user a tracked item belongs to.
type Owner struct {
	ID    int64  `db:"id"`
	Email string `db:"email"`
}

// SnatchEvent is the immutable record of a completed Active->Snatched
// transition. Created exactly once per item, never updated.
type SnatchEvent struct {
	ID            int64     `db:"id"`
	ItemID        int64     `db:"item_id"`
	OwnerID       int64     `db:"owner_id"`
	URL           string    `db:"url"`
	InitialPrice  float64   `db:"initial_price"`
	TargetPrice   float64   `db:"target_price"`
	SnatchedPrice float64   `db:"snatched_price"`
	DateTracked   time.Time `db:"date_tracked"`
	DateSnatched  time.Time `db:"date_snatched"`
}

// CanonicalPrice is a normalized price observation: the amount as quoted,
// its currency, and the amount converted into the base currency.
type CanonicalPrice struct {
	Amount     float64
	Currency   string
	BaseAmount float64
}

// PriceCandidate is a provisional price reading pulled from a page.
// Lower tier means more trustworthy. Ephemeral, never persisted.
type PriceCandidate struct {
	Amount   float64
	Currency string
	Raw      string
	Tier     int
	Distance float64
	Position int
}
