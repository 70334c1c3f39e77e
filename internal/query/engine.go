// Package query answers read requests against the in-memory entity store:
// filtering, sorting, pagination, and search. Every call works on point-in-time
// topic copies, so responses never block on the stream and never tear.
package query

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cbl315/opinion-builder-tools/internal/domain"
	"github.com/cbl315/opinion-builder-tools/internal/store"
)

// Searcher resolves a text query to market ids, best match first. The
// production implementation is the search index.
type Searcher interface {
	Search(query string, fuzzy bool) []int64
}

// Engine evaluates list, search, and lookup requests.
type Engine struct {
	store        *store.Store
	searcher     Searcher
	defaultLimit int
	maxLimit     int
}

// New creates an Engine. defaultLimit and maxLimit fall back to 50 and 200.
func New(st *store.Store, searcher Searcher, defaultLimit, maxLimit int) *Engine {
	if defaultLimit <= 0 {
		defaultLimit = 50
	}
	if maxLimit <= 0 {
		maxLimit = 200
	}
	return &Engine{
		store:        st,
		searcher:     searcher,
		defaultLimit: defaultLimit,
		maxLimit:     maxLimit,
	}
}

// Result is one page of topics plus the total match count before paging.
type Result struct {
	Topics []domain.Topic `json:"topics"`
	Total  int            `json:"total"`
	Limit  int            `json:"limit"`
	Offset int            `json:"offset"`
}

// List applies filters, sorts, and returns one page. Invalid input is
// rejected before the store is touched.
func (e *Engine) List(filters domain.Filters, st domain.Sort, page domain.Page) (Result, error) {
	compiled, err := compileFilters(filters)
	if err != nil {
		return Result{}, err
	}
	less, err := comparator(st)
	if err != nil {
		return Result{}, err
	}
	page, err = e.normalizePage(page)
	if err != nil {
		return Result{}, err
	}

	matched := make([]domain.Topic, 0, 64)
	for _, t := range e.store.GetAll() {
		if compiled.match(t) {
			matched = append(matched, t)
		}
	}

	sort.SliceStable(matched, func(i, j int) bool {
		return less(matched[i], matched[j])
	})

	return paginate(matched, page), nil
}

// Search resolves a text query through the index and returns matching topics
// in relevance order, paged.
func (e *Engine) Search(query string, fuzzy bool, page domain.Page) (Result, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return Result{}, fmt.Errorf("query: empty search query: %w", domain.ErrInvalidFilter)
	}
	page, err := e.normalizePage(page)
	if err != nil {
		return Result{}, err
	}

	ids := e.searcher.Search(query, fuzzy)
	topics := make([]domain.Topic, 0, len(ids))
	for _, id := range ids {
		if t, ok := e.store.Get(id); ok {
			topics = append(topics, t)
		}
	}

	return paginate(topics, page), nil
}

// GetByID looks a topic up by its string id. Numeric ids resolve directly
// through the market-id key; otherwise the store is scanned.
func (e *Engine) GetByID(id string) (domain.Topic, error) {
	if marketID, err := parseMarketID(id); err == nil {
		if t, ok := e.store.Get(marketID); ok {
			return t, nil
		}
		return domain.Topic{}, fmt.Errorf("query: topic %s: %w", id, domain.ErrNotFound)
	}

	for _, t := range e.store.GetAll() {
		if t.ID == id || t.Slug == id {
			return t, nil
		}
	}
	return domain.Topic{}, fmt.Errorf("query: topic %s: %w", id, domain.ErrNotFound)
}

func parseMarketID(id string) (int64, error) {
	var n int64
	_, err := fmt.Sscanf(id, "%d", &n)
	if err != nil {
		return 0, err
	}
	// Reject strings with trailing garbage like "12abc".
	if fmt.Sprintf("%d", n) != id {
		return 0, fmt.Errorf("not a market id")
	}
	return n, nil
}

func (e *Engine) normalizePage(page domain.Page) (domain.Page, error) {
	if page.Limit < 0 || page.Offset < 0 {
		return domain.Page{}, fmt.Errorf("query: negative limit or offset: %w", domain.ErrInvalidFilter)
	}
	if page.Limit == 0 {
		page.Limit = e.defaultLimit
	}
	if page.Limit > e.maxLimit {
		page.Limit = e.maxLimit
	}
	return page, nil
}

func paginate(topics []domain.Topic, page domain.Page) Result {
	total := len(topics)
	if page.Offset >= total {
		return Result{Topics: []domain.Topic{}, Total: total, Limit: page.Limit, Offset: page.Offset}
	}
	end := page.Offset + page.Limit
	if end > total {
		end = total
	}
	out := make([]domain.Topic, end-page.Offset)
	copy(out, topics[page.Offset:end])
	return Result{Topics: out, Total: total, Limit: page.Limit, Offset: page.Offset}
}

// --------------------------------------------------------------------------
// Filtering
// --------------------------------------------------------------------------

// compiledFilters holds pre-parsed filter values so parse errors surface
// before any topic is examined.
type compiledFilters struct {
	src      domain.Filters
	priceMin *decimal.Decimal
	priceMax *decimal.Decimal
}

func compileFilters(f domain.Filters) (compiledFilters, error) {
	c := compiledFilters{src: f}

	if f.PriceRange != nil {
		if f.PriceRange.Min != "" {
			d, err := decimal.NewFromString(f.PriceRange.Min)
			if err != nil {
				return c, fmt.Errorf("query: price_range.min %q: %w", f.PriceRange.Min, domain.ErrInvalidFilter)
			}
			c.priceMin = &d
		}
		if f.PriceRange.Max != "" {
			d, err := decimal.NewFromString(f.PriceRange.Max)
			if err != nil {
				return c, fmt.Errorf("query: price_range.max %q: %w", f.PriceRange.Max, domain.ErrInvalidFilter)
			}
			c.priceMax = &d
		}
	}
	if f.EndDateRange != nil && f.EndDateRange.Start != nil && f.EndDateRange.End != nil &&
		f.EndDateRange.End.Before(*f.EndDateRange.Start) {
		return c, fmt.Errorf("query: end_date_range end before start: %w", domain.ErrInvalidFilter)
	}
	if f.MinVolume != nil && *f.MinVolume < 0 {
		return c, fmt.Errorf("query: negative min_volume: %w", domain.ErrInvalidFilter)
	}

	return c, nil
}

func (c compiledFilters) match(t domain.Topic) bool {
	f := c.src

	if f.EndDateRange != nil {
		if t.EndDate == nil {
			return false
		}
		if f.EndDateRange.Start != nil && t.EndDate.Before(*f.EndDateRange.Start) {
			return false
		}
		if f.EndDateRange.End != nil && t.EndDate.After(*f.EndDateRange.End) {
			return false
		}
	}

	if len(f.OutcomeTypes) > 0 && !containsOutcome(f.OutcomeTypes, t.OutcomeType) {
		return false
	}

	if len(f.Categories) > 0 && !anyCategory(f.Categories, t.Categories) {
		return false
	}

	if len(f.Keywords) > 0 && !anyKeyword(f.Keywords, t) {
		return false
	}
	if len(f.ExcludeKeywords) > 0 && anyKeyword(f.ExcludeKeywords, t) {
		return false
	}

	if c.priceMin != nil || c.priceMax != nil {
		price, err := decimal.NewFromString(t.LastPrice)
		if err != nil {
			return false // no price yet, cannot satisfy a price bound
		}
		if c.priceMin != nil && price.LessThan(*c.priceMin) {
			return false
		}
		if c.priceMax != nil && price.GreaterThan(*c.priceMax) {
			return false
		}
	}

	if f.MinVolume != nil && t.Volume.LessThan(decimal.NewFromFloat(*f.MinVolume)) {
		return false
	}
	if f.MaxVolume != nil && t.Volume.GreaterThan(decimal.NewFromFloat(*f.MaxVolume)) {
		return false
	}

	if f.CreatedAfter != nil {
		if t.CreatedAt == nil || t.CreatedAt.Before(*f.CreatedAfter) {
			return false
		}
	}

	return true
}

func containsOutcome(set []domain.OutcomeType, v domain.OutcomeType) bool {
	for _, o := range set {
		if o == v {
			return true
		}
	}
	return false
}

func anyCategory(want, have []string) bool {
	for _, w := range want {
		for _, h := range have {
			if strings.EqualFold(w, h) {
				return true
			}
		}
	}
	return false
}

// anyKeyword reports whether any keyword appears, case-insensitively, in the
// topic's question, description, or categories.
func anyKeyword(keywords []string, t domain.Topic) bool {
	haystack := strings.ToLower(t.Question + " " + t.Description + " " + strings.Join(t.Categories, " "))
	for _, k := range keywords {
		if k == "" {
			continue
		}
		if strings.Contains(haystack, strings.ToLower(k)) {
			return true
		}
	}
	return false
}

// --------------------------------------------------------------------------
// Sorting
// --------------------------------------------------------------------------

// comparator builds a less function for the requested sort. Topics missing
// the sort key order after those that have it; market id breaks every tie.
func comparator(s domain.Sort) (func(a, b domain.Topic) bool, error) {
	if s.Field == "" {
		s = domain.DefaultSort()
	}
	if s.Order == "" {
		s.Order = "asc"
	}

	desc := false
	switch s.Order {
	case "asc":
	case "desc":
		desc = true
	default:
		return nil, fmt.Errorf("query: sort order %q: %w", s.Order, domain.ErrInvalidFilter)
	}

	var cmp func(a, b domain.Topic) int
	switch s.Field {
	case domain.SortEndDate:
		cmp = func(a, b domain.Topic) int { return compareTimePtr(a.EndDate, b.EndDate, desc) }
	case domain.SortCreatedAt:
		cmp = func(a, b domain.Topic) int { return compareTimePtr(a.CreatedAt, b.CreatedAt, desc) }
	case domain.SortVolume:
		cmp = func(a, b domain.Topic) int { return a.Volume.Cmp(b.Volume) }
	case domain.SortLastPrice:
		cmp = func(a, b domain.Topic) int { return comparePriceString(a.LastPrice, b.LastPrice, desc) }
	default:
		return nil, fmt.Errorf("query: sort field %q: %w", s.Field, domain.ErrInvalidFilter)
	}

	return func(a, b domain.Topic) bool {
		c := cmp(a, b)
		if desc {
			c = -c
		}
		if c != 0 {
			return c < 0
		}
		return a.MarketID < b.MarketID
	}, nil
}

// compareTimePtr orders nil after non-nil in both directions; desc flips the
// sign applied by the caller, so the nil penalty is pre-flipped here.
func compareTimePtr(a, b *time.Time, desc bool) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return missingLast(desc)
	case b == nil:
		return -missingLast(desc)
	case a.Before(*b):
		return -1
	case a.After(*b):
		return 1
	default:
		return 0
	}
}

func comparePriceString(a, b string, desc bool) int {
	da, errA := decimal.NewFromString(a)
	db, errB := decimal.NewFromString(b)
	switch {
	case errA != nil && errB != nil:
		return 0
	case errA != nil:
		return missingLast(desc)
	case errB != nil:
		return -missingLast(desc)
	default:
		return da.Cmp(db)
	}
}

func missingLast(desc bool) int {
	if desc {
		return -1
	}
	return 1
}
