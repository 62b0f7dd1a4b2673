package chain

import (
	"github.com/shopspring/decimal"

	"koumei/internal/market"
)

type EventType string

const (
	EventCreateMarket EventType = "create_market"
	EventTrade        EventType = "trade"
	EventReveal       EventType = "reveal"
	EventVerdict      EventType = "verdict"
	EventAdvanceState EventType = "advance_state"
	EventSettle       EventType = "settle"
	EventAppeal       EventType = "appeal"
	EventComment      EventType = "comment"
)

// Event is one submitted ledger transaction. Exactly one params field
// matching Type must be set.
type Event struct {
	Type            EventType
	Sender          string
	SenderPublicKey string

	CreateMarket *market.CreateMarketParams
	Trade        *TradeParams
	Reveal       *RevealParams
	Verdict      *VerdictParams
	Advance      *AdvanceParams
	Settle       *SettleParams
	Appeal       *AppealParams
	Comment      *CommentParams
}

type TradeParams struct {
	MarketID   string
	Choice     int32
	ShareDelta decimal.Decimal
}

type RevealParams struct {
	MarketID string
	Choice   int32
}

type VerdictParams struct {
	MarketID     string
	Choice       int32
	SignatureSet string
}

type AdvanceParams struct {
	MarketID string
	Target   int16
}

type SettleParams struct {
	MarketID string
}

type AppealParams struct {
	MarketID string
	Content  string
	Amount   decimal.Decimal
}

type CommentParams struct {
	MarketID string
	Content  string
}

// Result reports a successfully applied event.
type Result struct {
	TxID   string `json:"tx_id"`
	Height int64  `json:"height"`

	// MarketID is set for create events; RecordID for other created records
	// that have a surrogate id.
	MarketID string `json:"market_id,omitempty"`
}
