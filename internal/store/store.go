// Package store holds the authoritative in-memory state of every tracked
// topic. One record exists per market id; the message dispatcher writes
// through Apply while query callers read concurrently through Get and GetAll.
package store

import (
	"sync"

	"github.com/cbl315/opinion-builder-tools/internal/domain"
)

// Indexer receives every topic written through UpsertStatic so a derived
// lookup structure can stay in step with the store. Streaming mutations touch
// only non-textual fields, so Apply does not reindex.
type Indexer interface {
	IndexTopic(domain.Topic)
}

// record wraps one topic with its own lock so mutations on different markets
// never contend with each other.
type record struct {
	mu    sync.RWMutex
	topic domain.Topic
}

// Store is a concurrent map of topic records keyed by market id. The outer
// lock guards only the map structure; each record carries its own lock, so a
// read-modify-write on one id proceeds in parallel with reads and writes on
// every other id.
type Store struct {
	mu      sync.RWMutex
	records map[int64]*record
	indexer Indexer
}

// New creates an empty Store. indexer may be nil.
func New(indexer Indexer) *Store {
	return &Store{
		records: make(map[int64]*record),
		indexer: indexer,
	}
}

// Get returns a copy of the topic for the given market id.
func (s *Store) Get(id int64) (domain.Topic, bool) {
	s.mu.RLock()
	rec, ok := s.records[id]
	s.mu.RUnlock()
	if !ok {
		return domain.Topic{}, false
	}

	rec.mu.RLock()
	t := rec.topic
	rec.mu.RUnlock()
	return t, true
}

// GetAll returns a point-in-time snapshot of every record. Each topic is
// copied under its record lock, so a record mid-mutation is never observed.
func (s *Store) GetAll() []domain.Topic {
	s.mu.RLock()
	recs := make([]*record, 0, len(s.records))
	for _, rec := range s.records {
		recs = append(recs, rec)
	}
	s.mu.RUnlock()

	out := make([]domain.Topic, 0, len(recs))
	for _, rec := range recs {
		rec.mu.RLock()
		out = append(out, rec.topic)
		rec.mu.RUnlock()
	}
	return out
}

// Len returns the number of records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// UpsertStatic creates or replaces the record for t.MarketID. It is used only
// during the initial snapshot load; streaming updates go through Apply.
func (s *Store) UpsertStatic(t domain.Topic) {
	s.mu.Lock()
	rec, ok := s.records[t.MarketID]
	if !ok {
		rec = &record{topic: t}
		s.records[t.MarketID] = rec
		s.mu.Unlock()
	} else {
		s.mu.Unlock()
		rec.mu.Lock()
		rec.topic = t
		rec.mu.Unlock()
	}

	if s.indexer != nil {
		s.indexer.IndexTopic(t)
	}
}

// Apply performs a single atomic read-modify-write on the record for id. The
// mutation runs under the record's write lock, so readers see either the state
// before or after fn, never a partial update. Apply reports false and does
// nothing when id is absent; records are created only from the initial
// snapshot.
func (s *Store) Apply(id int64, fn func(*domain.Topic)) bool {
	s.mu.RLock()
	rec, ok := s.records[id]
	s.mu.RUnlock()
	if !ok {
		return false
	}

	rec.mu.Lock()
	fn(&rec.topic)
	rec.mu.Unlock()
	return true
}
