// Package subs tracks the desired subscription set independently of any
// physical connection. The stream connection reads a snapshot of this set on
// every (re)connect, so entries added while disconnected are honored.
package subs

import (
	"sort"
	"sync"
)

// Feed channels understood by the upstream endpoint.
const (
	ChannelLastPrice = "market.last.price"
	ChannelLastTrade = "market.last.trade"
	ChannelDepthDiff = "market.depth.diff"
)

// Target is one desired subscription: a channel plus either a market id or,
// for grouped categorical markets, a root market id.
type Target struct {
	Channel  string
	MarketID int64
	Root     bool // subscribe by rootMarketId instead of marketId
}

// Registry is a deduplicated set of Targets. It outlives any single physical
// connection and uses its own lock, decoupled from entity-store locking.
type Registry struct {
	mu  sync.RWMutex
	set map[Target]struct{}
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{set: make(map[Target]struct{})}
}

// Add inserts t into the desired set. Adding an already-present target is a
// no-op.
func (r *Registry) Add(t Target) {
	r.mu.Lock()
	r.set[t] = struct{}{}
	r.mu.Unlock()
}

// Remove deletes t from the desired set. Removing an absent target is a
// no-op.
func (r *Registry) Remove(t Target) {
	r.mu.Lock()
	delete(r.set, t)
	r.mu.Unlock()
}

// Len returns the current size of the desired set.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.set)
}

// Snapshot returns the full desired set as it existed at some point during
// the call, sorted for deterministic subscribe order.
func (r *Registry) Snapshot() []Target {
	r.mu.RLock()
	out := make([]Target, 0, len(r.set))
	for t := range r.set {
		out = append(out, t)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Channel != out[j].Channel {
			return out[i].Channel < out[j].Channel
		}
		if out[i].MarketID != out[j].MarketID {
			return out[i].MarketID < out[j].MarketID
		}
		return !out[i].Root && out[j].Root
	})
	return out
}
