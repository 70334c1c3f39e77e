package stream

import (
	"time"

	"github.com/cbl315/opinion-builder-tools/internal/domain"
	"github.com/cbl315/opinion-builder-tools/internal/obs"
	"github.com/cbl315/opinion-builder-tools/internal/store"
)

// Dispatcher classifies inbound frames and applies them to the entity store.
// Parse failures and frames for unknown markets are dropped and reported;
// nothing a frame contains can terminate the stream.
type Dispatcher struct {
	store     *store.Store
	collector obs.Collector
	now       func() time.Time
}

// NewDispatcher creates a Dispatcher writing to st. collector may be nil.
func NewDispatcher(st *store.Store, collector obs.Collector) *Dispatcher {
	if collector == nil {
		collector = obs.Nop{}
	}
	return &Dispatcher{
		store:     st,
		collector: collector,
		now:       time.Now,
	}
}

// Dispatch parses one raw frame and routes it to the matching apply
// function. It is called from the single read-loop goroutine, so frames for
// the same market apply in arrival order.
func (d *Dispatcher) Dispatch(raw []byte) {
	msg, err := domain.ParseMessage(raw)
	if err != nil {
		d.collector.ParseFailure(err)
		return
	}

	switch m := msg.(type) {
	case domain.Pong:
		// Liveness is tracked by the read loop; nothing to apply. Late
		// or duplicated pongs land here harmlessly.

	case domain.PriceUpdate:
		ok := d.store.Apply(m.Market, func(t *domain.Topic) {
			applyPrice(t, m.Side, m.Price, d.now())
		})
		if !ok {
			d.collector.UnknownEntity(m.Market)
		}

	case domain.TradeUpdate:
		ok := d.store.Apply(m.Market, func(t *domain.Topic) {
			applyPrice(t, m.Side, m.Price, d.now())
			t.Volume = t.Volume.Add(m.Amount)
		})
		if !ok {
			d.collector.UnknownEntity(m.Market)
		}

	case domain.DepthDiff:
		// No order book is retained at this level; depth diffs feed
		// observability only.
		d.collector.DepthDiff(m.Market)
	}
}

func applyPrice(t *domain.Topic, side domain.OutcomeSide, price string, now time.Time) {
	t.LastPrice = price
	switch side {
	case domain.SideYes:
		t.YesPrice = price
	case domain.SideNo:
		t.NoPrice = price
	}
	t.UpdatedAt = now
}
