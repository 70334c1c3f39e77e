package snapshot

import (
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cbl315/opinion-builder-tools/internal/domain"
)

// marketsResponse is the envelope of GET /markets.
type marketsResponse struct {
	Markets []apiMarket `json:"markets"`
	Total   int         `json:"total"`
}

// apiMarket is the wire shape of one market record. Prices, volume, and
// liquidity arrive as decimal strings; timestamps are RFC 3339.
type apiMarket struct {
	ID          string `json:"id"`
	MarketID    int64  `json:"marketId"`
	Question    string `json:"question"`
	Description string `json:"description"`
	Slug        string `json:"slug"`
	OutcomeType string `json:"outcomeType"`
	Categories  string `json:"categories"` // comma separated
	YesPrice    string `json:"yesPrice"`
	NoPrice     string `json:"noPrice"`
	LastPrice   string `json:"lastPrice"`
	Volume      string `json:"volume"`
	Liquidity   string `json:"liquidity"`
	EndDate     string `json:"endDate"`
	CreatedAt   string `json:"createdAt"`
}

func (m *apiMarket) toTopic() domain.Topic {
	t := domain.Topic{
		ID:          m.ID,
		MarketID:    m.MarketID,
		Question:    m.Question,
		Description: m.Description,
		Slug:        m.Slug,
		OutcomeType: parseOutcomeType(m.OutcomeType),
		Categories:  splitCategories(m.Categories),
		YesPrice:    m.YesPrice,
		NoPrice:     m.NoPrice,
		LastPrice:   m.LastPrice,
		Liquidity:   m.Liquidity,
	}
	if t.ID == "" {
		t.ID = strconv.FormatInt(m.MarketID, 10)
	}

	if v, err := decimal.NewFromString(m.Volume); err == nil {
		t.Volume = v
	}
	if ts, err := time.Parse(time.RFC3339, m.EndDate); err == nil {
		t.EndDate = &ts
	}
	if ts, err := time.Parse(time.RFC3339, m.CreatedAt); err == nil {
		t.CreatedAt = &ts
	}

	return t
}

func parseOutcomeType(s string) domain.OutcomeType {
	switch strings.ToLower(s) {
	case "scalar":
		return domain.OutcomeScalar
	case "categorical":
		return domain.OutcomeCategorical
	default:
		return domain.OutcomeBinary
	}
}

func splitCategories(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
