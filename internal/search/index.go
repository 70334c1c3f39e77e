// Package search maintains a derived keyword index over topic text fields.
// The index stores only market ids; the entity store remains the single
// source of truth and ids are resolved against it at query time.
package search

import (
	"sort"
	"strings"
	"sync"
	"unicode"

	"github.com/agnivade/levenshtein"

	"github.com/cbl315/opinion-builder-tools/internal/domain"
)

// Match scoring. Exact token hits outrank prefix hits, which outrank
// edit-distance hits; closer edit distances rank higher.
const (
	scoreExact  = 100
	scorePrefix = 50
)

// Index is an inverted token index over question, description, and category
// text. It is patched incrementally on every static upsert.
type Index struct {
	mu sync.RWMutex

	// token -> set of market ids containing it
	tokens map[string]map[int64]struct{}
	// market id -> tokens it was last indexed with, for re-index cleanup
	docs map[int64][]string

	maxDistance int
}

// NewIndex creates an empty index. maxDistance bounds the edit distance
// accepted in fuzzy mode; values below 1 disable fuzzy token matching beyond
// prefixes.
func NewIndex(maxDistance int) *Index {
	return &Index{
		tokens:      make(map[string]map[int64]struct{}),
		docs:        make(map[int64][]string),
		maxDistance: maxDistance,
	}
}

// IndexTopic (re)indexes the text fields of t. Prior postings for the same
// market id are removed first so a replaced snapshot record never leaves
// stale tokens behind.
func (ix *Index) IndexTopic(t domain.Topic) {
	toks := topicTokens(t)

	ix.mu.Lock()
	defer ix.mu.Unlock()

	for _, tok := range ix.docs[t.MarketID] {
		if ids, ok := ix.tokens[tok]; ok {
			delete(ids, t.MarketID)
			if len(ids) == 0 {
				delete(ix.tokens, tok)
			}
		}
	}

	ix.docs[t.MarketID] = toks
	for _, tok := range toks {
		ids, ok := ix.tokens[tok]
		if !ok {
			ids = make(map[int64]struct{})
			ix.tokens[tok] = ids
		}
		ids[t.MarketID] = struct{}{}
	}
}

// Search returns market ids ranked by relevance. In exact mode a topic
// matches only when it contains every query token verbatim. Fuzzy mode also
// accepts prefix matches and tokens within the configured edit distance.
func (ix *Index) Search(query string, fuzzy bool) []int64 {
	qtoks := tokenize(query)
	if len(qtoks) == 0 {
		return nil
	}

	ix.mu.RLock()
	defer ix.mu.RUnlock()

	// Per-query-token best score per id; a topic must match every query
	// token (by some mode) to be returned.
	total := make(map[int64]int)
	for _, q := range qtoks {
		perToken := ix.matchToken(q, fuzzy)
		if len(perToken) == 0 {
			return nil
		}
		if len(total) == 0 {
			for id, sc := range perToken {
				total[id] = sc
			}
			continue
		}
		for id := range total {
			sc, ok := perToken[id]
			if !ok {
				delete(total, id)
				continue
			}
			total[id] += sc
		}
		if len(total) == 0 {
			return nil
		}
	}

	ids := make([]int64, 0, len(total))
	for id := range total {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		if total[ids[i]] != total[ids[j]] {
			return total[ids[i]] > total[ids[j]]
		}
		return ids[i] < ids[j]
	})
	return ids
}

// matchToken scores every id matching the single query token q. Caller holds
// the read lock.
func (ix *Index) matchToken(q string, fuzzy bool) map[int64]int {
	out := make(map[int64]int)

	if ids, ok := ix.tokens[q]; ok {
		for id := range ids {
			out[id] = scoreExact
		}
	}
	if !fuzzy {
		return out
	}

	for tok, ids := range ix.tokens {
		if tok == q {
			continue
		}
		var sc int
		switch {
		case strings.HasPrefix(tok, q) || strings.HasPrefix(q, tok):
			sc = scorePrefix
		default:
			if ix.maxDistance < 1 {
				continue
			}
			d := levenshtein.ComputeDistance(q, tok)
			if d > ix.maxDistance {
				continue
			}
			sc = scorePrefix - d
		}
		for id := range ids {
			if sc > out[id] {
				out[id] = sc
			}
		}
	}
	return out
}

func topicTokens(t domain.Topic) []string {
	var b strings.Builder
	b.WriteString(t.Question)
	b.WriteByte(' ')
	b.WriteString(t.Description)
	for _, c := range t.Categories {
		b.WriteByte(' ')
		b.WriteString(c)
	}
	return tokenize(b.String())
}

// tokenize lowercases and splits on any non-alphanumeric rune, dropping
// duplicates and single-rune fragments.
func tokenize(s string) []string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	seen := make(map[string]struct{}, len(fields))
	out := fields[:0]
	for _, f := range fields {
		if len(f) < 2 {
			continue
		}
		if _, dup := seen[f]; dup {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}
	return out
}
