package domain

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestParseMessage_LastPrice(t *testing.T) {
	raw := []byte(`{"msgType":"market.last.price","marketId":2764,"tokenId":"tok-1","outcomeSide":1,"price":"0.85"}`)

	msg, err := ParseMessage(raw)
	require.NoError(t, err)

	pu, ok := msg.(PriceUpdate)
	require.True(t, ok, "expected PriceUpdate, got %T", msg)
	require.Equal(t, int64(2764), pu.MarketID())
	require.Equal(t, SideYes, pu.Side)
	require.Equal(t, "0.85", pu.Price)
}

func TestParseMessage_LastTrade(t *testing.T) {
	raw := []byte(`{"msgType":"market.last.trade","marketId":10,"tokenId":"tok-2","outcomeSide":2,"side":"Buy","price":"0.40","shares":"10","amount":"8.5"}`)

	msg, err := ParseMessage(raw)
	require.NoError(t, err)

	tu, ok := msg.(TradeUpdate)
	require.True(t, ok, "expected TradeUpdate, got %T", msg)
	require.Equal(t, SideNo, tu.Side)
	require.Equal(t, "Buy", tu.TradeSide)
	require.True(t, tu.Shares.Equal(decimal.RequireFromString("10")))
	require.True(t, tu.Amount.Equal(decimal.RequireFromString("8.5")))
}

func TestParseMessage_DepthDiff(t *testing.T) {
	raw := []byte(`{"msgType":"market.depth.diff","marketId":7,"tokenId":"tok-3","outcomeSide":1,"side":"bids","price":"0.55","size":"120"}`)

	msg, err := ParseMessage(raw)
	require.NoError(t, err)

	dd, ok := msg.(DepthDiff)
	require.True(t, ok, "expected DepthDiff, got %T", msg)
	require.Equal(t, "bids", dd.BookSide)
	require.Equal(t, "120", dd.Size)
}

func TestParseMessage_Pong(t *testing.T) {
	msg, err := ParseMessage([]byte(`{"msgType":"PONG"}`))
	require.NoError(t, err)
	require.IsType(t, Pong{}, msg)
}

func TestParseMessage_Malformed(t *testing.T) {
	cases := []struct {
		name string
		raw  string
	}{
		{"not json", `{{{`},
		{"unknown type", `{"msgType":"market.settled","marketId":1,"outcomeSide":1}`},
		{"missing market id", `{"msgType":"market.last.price","outcomeSide":1,"price":"0.5"}`},
		{"missing price", `{"msgType":"market.last.price","marketId":1,"outcomeSide":1}`},
		{"bad outcome side", `{"msgType":"market.last.price","marketId":1,"outcomeSide":3,"price":"0.5"}`},
		{"missing trade fields", `{"msgType":"market.last.trade","marketId":1,"outcomeSide":1,"price":"0.5"}`},
		{"bad amount", `{"msgType":"market.last.trade","marketId":1,"outcomeSide":1,"price":"0.5","shares":"1","amount":"x"}`},
		{"missing depth size", `{"msgType":"market.depth.diff","marketId":1,"outcomeSide":1,"price":"0.5"}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			msg, err := ParseMessage([]byte(tc.raw))
			require.Nil(t, msg)
			require.True(t, errors.Is(err, ErrMalformedMessage), "got %v", err)
		})
	}
}
