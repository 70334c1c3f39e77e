package stream

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/cbl315/opinion-builder-tools/internal/domain"
	"github.com/cbl315/opinion-builder-tools/internal/store"
)

// recorder captures observability events for assertions.
type recorder struct {
	mu              sync.Mutex
	transitions     []string
	reconnects      int
	parseFailures   int
	unknownEntities int
	depthDiffs      int
}

func (r *recorder) StateChange(_, from, to string) {
	r.mu.Lock()
	r.transitions = append(r.transitions, from+">"+to)
	r.mu.Unlock()
}

func (r *recorder) ReconnectAttempt(string, int, time.Duration) {
	r.mu.Lock()
	r.reconnects++
	r.mu.Unlock()
}

func (r *recorder) TransportFailure(string, error) {}

func (r *recorder) ParseFailure(error) {
	r.mu.Lock()
	r.parseFailures++
	r.mu.Unlock()
}

func (r *recorder) UnknownEntity(int64) {
	r.mu.Lock()
	r.unknownEntities++
	r.mu.Unlock()
}

func (r *recorder) DepthDiff(int64) {
	r.mu.Lock()
	r.depthDiffs++
	r.mu.Unlock()
}

func (r *recorder) counts() (parse, unknown, depth, reconnect int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.parseFailures, r.unknownEntities, r.depthDiffs, r.reconnects
}

func seedStore(ids ...int64) *store.Store {
	st := store.New(nil)
	for _, id := range ids {
		st.UpsertStatic(domain.Topic{
			ID:          fmt.Sprintf("%d", id),
			MarketID:    id,
			Question:    "q",
			OutcomeType: domain.OutcomeBinary,
		})
	}
	return st
}

func TestDispatcher_PriceUpdate(t *testing.T) {
	st := seedStore(2764)
	st.Apply(2764, func(tp *domain.Topic) {
		tp.LastPrice = "0.80"
		tp.UpdatedAt = time.Now().Add(-time.Hour)
	})
	before, _ := st.Get(2764)

	d := NewDispatcher(st, nil)
	d.Dispatch([]byte(`{"msgType":"market.last.price","marketId":2764,"tokenId":"t","outcomeSide":1,"price":"0.85"}`))

	got, _ := st.Get(2764)
	require.Equal(t, "0.85", got.LastPrice)
	require.Equal(t, "0.85", got.YesPrice)
	require.True(t, got.UpdatedAt.After(before.UpdatedAt), "updated_at must advance")
}

func TestDispatcher_PriceUpdateNoSide(t *testing.T) {
	st := seedStore(1)
	d := NewDispatcher(st, nil)
	d.Dispatch([]byte(`{"msgType":"market.last.price","marketId":1,"tokenId":"t","outcomeSide":2,"price":"0.30"}`))

	got, _ := st.Get(1)
	require.Equal(t, "0.30", got.LastPrice)
	require.Equal(t, "0.30", got.NoPrice)
	require.Empty(t, got.YesPrice)
}

func TestDispatcher_TradeUpdateAccumulatesVolume(t *testing.T) {
	st := seedStore(9)
	st.Apply(9, func(tp *domain.Topic) {
		tp.Volume = decimal.RequireFromString("100")
	})

	d := NewDispatcher(st, nil)
	d.Dispatch([]byte(`{"msgType":"market.last.trade","marketId":9,"tokenId":"t","outcomeSide":1,"side":"Buy","price":"0.85","shares":"10","amount":"8.5"}`))

	got, _ := st.Get(9)
	require.True(t, got.Volume.Equal(decimal.RequireFromString("108.5")),
		"volume = %s, want 108.5", got.Volume)
	require.Equal(t, "0.85", got.LastPrice)
}

func TestDispatcher_PerMarketOrdering(t *testing.T) {
	st := seedStore(5, 6)
	d := NewDispatcher(st, nil)

	prices := []string{"0.10", "0.20", "0.30", "0.40", "0.55"}
	for i, p := range prices {
		d.Dispatch([]byte(fmt.Sprintf(`{"msgType":"market.last.price","marketId":5,"tokenId":"t","outcomeSide":1,"price":"%s"}`, p)))
		// Interleave frames for another market.
		d.Dispatch([]byte(fmt.Sprintf(`{"msgType":"market.last.price","marketId":6,"tokenId":"t","outcomeSide":1,"price":"0.%d"}`, i)))
	}

	got, _ := st.Get(5)
	require.Equal(t, "0.55", got.LastPrice, "final price must be the last frame in arrival order")
}

func TestDispatcher_UnknownMarketDropped(t *testing.T) {
	st := seedStore(1)
	rec := &recorder{}
	d := NewDispatcher(st, rec)

	d.Dispatch([]byte(`{"msgType":"market.last.price","marketId":999,"tokenId":"t","outcomeSide":1,"price":"0.5"}`))

	_, unknown, _, _ := rec.counts()
	require.Equal(t, 1, unknown)
	require.Equal(t, 1, st.Len(), "no entity may be created from a stream frame")
	_, ok := st.Get(999)
	require.False(t, ok)
}

func TestDispatcher_MalformedFrameDropped(t *testing.T) {
	st := seedStore(1)
	rec := &recorder{}
	d := NewDispatcher(st, rec)

	d.Dispatch([]byte(`{"msgType":"market.unknown","marketId":1}`))
	d.Dispatch([]byte(`not json`))

	parse, _, _, _ := rec.counts()
	require.Equal(t, 2, parse)

	got, _ := st.Get(1)
	require.Empty(t, got.LastPrice, "malformed frames must not mutate state")
}

func TestDispatcher_DepthDiffObservedNotApplied(t *testing.T) {
	st := seedStore(3)
	rec := &recorder{}
	d := NewDispatcher(st, rec)

	d.Dispatch([]byte(`{"msgType":"market.depth.diff","marketId":3,"tokenId":"t","outcomeSide":1,"side":"bids","price":"0.60","size":"50"}`))

	_, _, depth, _ := rec.counts()
	require.Equal(t, 1, depth)

	got, _ := st.Get(3)
	require.Empty(t, got.LastPrice)
	require.True(t, got.Volume.IsZero())
	require.True(t, got.UpdatedAt.IsZero(), "depth diffs must not touch entity fields")
}

func TestDispatcher_PongIgnored(t *testing.T) {
	st := seedStore(1)
	rec := &recorder{}
	d := NewDispatcher(st, rec)

	d.Dispatch([]byte(`{"msgType":"PONG"}`))
	d.Dispatch([]byte(`{"msgType":"PONG"}`))

	parse, unknown, _, _ := rec.counts()
	require.Zero(t, parse)
	require.Zero(t, unknown)
}
