package search

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cbl315/opinion-builder-tools/internal/domain"
)

func seed(ix *Index) {
	ix.IndexTopic(domain.Topic{MarketID: 1, Question: "Will Bitcoin reach $100k by March?", Categories: []string{"Crypto"}})
	ix.IndexTopic(domain.Topic{MarketID: 2, Question: "Will Ethereum flip Bitcoin this year?"})
	ix.IndexTopic(domain.Topic{MarketID: 3, Question: "Will it rain in London tomorrow?", Description: "Weather market"})
	ix.IndexTopic(domain.Topic{MarketID: 4, Question: "US election winner", Categories: []string{"Politics", "Elections"}})
}

func TestIndex_ExactTokenMatch(t *testing.T) {
	ix := NewIndex(2)
	seed(ix)

	ids := ix.Search("bitcoin", false)
	require.Equal(t, []int64{1, 2}, ids)

	require.Empty(t, ix.Search("bitcon", false), "exact mode must not fuzzy-match")
	require.Empty(t, ix.Search("solana", false))
}

func TestIndex_FuzzyEditDistance(t *testing.T) {
	ix := NewIndex(2)
	seed(ix)

	ids := ix.Search("Bitcon", true)
	require.Equal(t, []int64{1, 2}, ids)
}

func TestIndex_FuzzyPrefix(t *testing.T) {
	ix := NewIndex(2)
	seed(ix)

	ids := ix.Search("elect", true)
	require.Equal(t, []int64{4}, ids)
}

func TestIndex_MultiTokenConjunction(t *testing.T) {
	ix := NewIndex(2)
	seed(ix)

	require.Equal(t, []int64{1}, ix.Search("bitcoin march", false))
	require.Empty(t, ix.Search("bitcoin london", false))
}

func TestIndex_ExactOutranksFuzzy(t *testing.T) {
	ix := NewIndex(2)
	ix.IndexTopic(domain.Topic{MarketID: 10, Question: "price of gold"})
	ix.IndexTopic(domain.Topic{MarketID: 11, Question: "price of golf memberships"})

	ids := ix.Search("gold", true)
	require.Len(t, ids, 2)
	require.Equal(t, int64(10), ids[0], "exact token match must rank first")
}

func TestIndex_CategoriesAndDescriptionIndexed(t *testing.T) {
	ix := NewIndex(2)
	seed(ix)

	require.Equal(t, []int64{1}, ix.Search("crypto", false))
	require.Equal(t, []int64{3}, ix.Search("weather", false))
}

func TestIndex_ReindexRemovesStaleTokens(t *testing.T) {
	ix := NewIndex(2)
	ix.IndexTopic(domain.Topic{MarketID: 1, Question: "old question about dogs"})
	ix.IndexTopic(domain.Topic{MarketID: 1, Question: "new question about cats"})

	require.Empty(t, ix.Search("dogs", false))
	require.Equal(t, []int64{1}, ix.Search("cats", false))
}
