package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// OutcomeType classifies how a topic resolves.
type OutcomeType string

const (
	OutcomeBinary      OutcomeType = "binary"
	OutcomeScalar      OutcomeType = "scalar"
	OutcomeCategorical OutcomeType = "categorical"
)

// Topic is the latest known state of one tracked opinion.trade market.
//
// The descriptive fields (ID through CreatedAt) are populated once from the
// initial snapshot and never touched by streaming updates. The price, volume,
// and liquidity fields are overwritten in place by the message dispatcher.
type Topic struct {
	ID          string      `json:"id"`
	MarketID    int64       `json:"market_id"`
	Question    string      `json:"question"`
	Description string      `json:"description,omitempty"`
	Slug        string      `json:"slug,omitempty"`
	OutcomeType OutcomeType `json:"outcome_type"`
	Categories  []string    `json:"categories,omitempty"`
	EndDate     *time.Time  `json:"end_date,omitempty"`
	CreatedAt   *time.Time  `json:"created_at,omitempty"`

	// Mutable fields. Prices arrive as decimal strings on the wire and are
	// stored verbatim; Volume is accumulated from trade amounts.
	LastPrice string          `json:"last_price,omitempty"`
	YesPrice  string          `json:"yes_price,omitempty"`
	NoPrice   string          `json:"no_price,omitempty"`
	Liquidity string          `json:"liquidity,omitempty"`
	Volume    decimal.Decimal `json:"volume"`
	UpdatedAt time.Time       `json:"updated_at"`
}
