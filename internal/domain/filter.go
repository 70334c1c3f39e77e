package domain

import "time"

// DateRange bounds a time field on either side. Nil bounds are open.
type DateRange struct {
	Start *time.Time `json:"start,omitempty"`
	End   *time.Time `json:"end,omitempty"`
}

// PriceRange bounds last_price with decimal strings. Empty bounds are open.
type PriceRange struct {
	Min string `json:"min,omitempty"`
	Max string `json:"max,omitempty"`
}

// Filters is a conjunction of topic predicates. Zero-value fields match
// everything.
type Filters struct {
	EndDateRange    *DateRange    `json:"end_date_range,omitempty"`
	OutcomeTypes    []OutcomeType `json:"outcome_types,omitempty"`
	Categories      []string      `json:"categories,omitempty"`
	Keywords        []string      `json:"keywords,omitempty"`
	ExcludeKeywords []string      `json:"exclude_keywords,omitempty"`
	PriceRange      *PriceRange   `json:"price_range,omitempty"`
	MinVolume       *float64      `json:"min_volume,omitempty"`
	MaxVolume       *float64      `json:"max_volume,omitempty"`
	CreatedAfter    *time.Time    `json:"created_after,omitempty"`
}

// Sort field names accepted by the query engine.
const (
	SortEndDate   = "end_date"
	SortCreatedAt = "created_at"
	SortVolume    = "volume"
	SortLastPrice = "last_price"
)

// Sort declares one ordering field and direction. Ties are always broken by
// market id so pagination stays deterministic.
type Sort struct {
	Field string `json:"field"`
	Order string `json:"order"` // "asc" or "desc"
}

// DefaultSort orders topics by soonest end date.
func DefaultSort() Sort {
	return Sort{Field: SortEndDate, Order: "asc"}
}

// Page is an offset/limit window. Limit is clamped to the engine's configured
// maximum; an offset past the end of the result set yields an empty page.
type Page struct {
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}
