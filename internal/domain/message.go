package domain

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// MessageType discriminates inbound feed frames.
type MessageType string

const (
	MsgDepthDiff MessageType = "market.depth.diff"
	MsgLastPrice MessageType = "market.last.price"
	MsgLastTrade MessageType = "market.last.trade"
	MsgPong      MessageType = "PONG"
)

// OutcomeSide identifies which binary result a price or trade pertains to.
type OutcomeSide int

const (
	SideYes OutcomeSide = 1
	SideNo  OutcomeSide = 2
)

// Message is the closed set of inbound feed frames. The concrete types are
// PriceUpdate, TradeUpdate, DepthDiff, and Pong; downstream code switches
// exhaustively over them.
type Message interface {
	MarketID() int64
	Type() MessageType
}

// PriceUpdate carries a market.last.price frame.
type PriceUpdate struct {
	Market  int64
	TokenID string
	Side    OutcomeSide
	Price   string
}

func (m PriceUpdate) MarketID() int64   { return m.Market }
func (m PriceUpdate) Type() MessageType { return MsgLastPrice }

// TradeUpdate carries a market.last.trade frame.
type TradeUpdate struct {
	Market    int64
	TokenID   string
	Side      OutcomeSide
	TradeSide string // "Buy" or "Sell"
	Price     string
	Shares    decimal.Decimal
	Amount    decimal.Decimal
}

func (m TradeUpdate) MarketID() int64   { return m.Market }
func (m TradeUpdate) Type() MessageType { return MsgLastTrade }

// DepthDiff carries a market.depth.diff frame. Depth diffs never mutate topic
// state; they are consumed for observability only.
type DepthDiff struct {
	Market   int64
	TokenID  string
	Side     OutcomeSide
	BookSide string // "bids" or "asks"
	Price    string
	Size     string
}

func (m DepthDiff) MarketID() int64   { return m.Market }
func (m DepthDiff) Type() MessageType { return MsgDepthDiff }

// Pong is the heartbeat response. It refreshes liveness and is otherwise
// ignored.
type Pong struct{}

func (Pong) MarketID() int64   { return 0 }
func (Pong) Type() MessageType { return MsgPong }

// envelope is the superset of fields across all inbound frame types. Pointers
// distinguish absent fields from zero values during validation.
type envelope struct {
	MsgType     string  `json:"msgType"`
	MarketIDRaw *int64  `json:"marketId"`
	TokenID     string  `json:"tokenId"`
	OutcomeSide *int    `json:"outcomeSide"`
	Side        string  `json:"side"`
	Price       *string `json:"price"`
	Size        *string `json:"size"`
	Shares      *string `json:"shares"`
	Amount      *string `json:"amount"`
}

// ParseMessage resolves a raw feed frame into exactly one Message variant.
// Unknown msgType values, missing required fields, and malformed numerics all
// return an error wrapping ErrMalformedMessage; the caller drops the frame.
func ParseMessage(raw []byte) (Message, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}

	if env.MsgType == string(MsgPong) {
		return Pong{}, nil
	}

	if env.MarketIDRaw == nil {
		return nil, fmt.Errorf("%w: missing marketId", ErrMalformedMessage)
	}
	marketID := *env.MarketIDRaw

	side, err := parseSide(env.OutcomeSide)
	if err != nil {
		return nil, err
	}

	switch MessageType(env.MsgType) {
	case MsgLastPrice:
		if env.Price == nil {
			return nil, fmt.Errorf("%w: missing price", ErrMalformedMessage)
		}
		return PriceUpdate{
			Market:  marketID,
			TokenID: env.TokenID,
			Side:    side,
			Price:   *env.Price,
		}, nil

	case MsgLastTrade:
		if env.Price == nil || env.Shares == nil || env.Amount == nil {
			return nil, fmt.Errorf("%w: missing trade fields", ErrMalformedMessage)
		}
		shares, err := decimal.NewFromString(*env.Shares)
		if err != nil {
			return nil, fmt.Errorf("%w: shares %q: %v", ErrMalformedMessage, *env.Shares, err)
		}
		amount, err := decimal.NewFromString(*env.Amount)
		if err != nil {
			return nil, fmt.Errorf("%w: amount %q: %v", ErrMalformedMessage, *env.Amount, err)
		}
		return TradeUpdate{
			Market:    marketID,
			TokenID:   env.TokenID,
			Side:      side,
			TradeSide: env.Side,
			Price:     *env.Price,
			Shares:    shares,
			Amount:    amount,
		}, nil

	case MsgDepthDiff:
		if env.Price == nil || env.Size == nil {
			return nil, fmt.Errorf("%w: missing depth fields", ErrMalformedMessage)
		}
		return DepthDiff{
			Market:   marketID,
			TokenID:  env.TokenID,
			Side:     side,
			BookSide: env.Side,
			Price:    *env.Price,
			Size:     *env.Size,
		}, nil
	}

	return nil, fmt.Errorf("%w: unknown msgType %q", ErrMalformedMessage, env.MsgType)
}

func parseSide(v *int) (OutcomeSide, error) {
	if v == nil {
		return 0, fmt.Errorf("%w: missing outcomeSide", ErrMalformedMessage)
	}
	switch OutcomeSide(*v) {
	case SideYes, SideNo:
		return OutcomeSide(*v), nil
	}
	return 0, fmt.Errorf("%w: outcomeSide %d", ErrMalformedMessage, *v)
}
