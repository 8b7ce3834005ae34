package order

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

type Side string

const (
	BID Side = "BID"
	ASK Side = "ASK"
)

type State string

const (
	StateAdded        State = "ADDED"
	StateFillable     State = "FILLABLE"
	StateFilled       State = "FILLED"
	StateFullyFilled  State = "FULLY_FILLED"
	StateCancelled    State = "CANCELLED"
	StateExpired      State = "EXPIRED"
	StateInvalid      State = "INVALID"
	StateUnexpired    State = "UNEXPIRED"
	StateUnfunded     State = "UNFUNDED"
	StateFillIncrease State = "FILLABILITY_INCREASED"
)

// Terminal reports whether an order in this state can never be filled again.
func (s State) Terminal() bool {
	switch s {
	case StateCancelled, StateExpired, StateFullyFilled, StateInvalid:
		return true
	}
	return false
}

type Signature struct {
	SignatureType int
	R             common.Hash
	S             common.Hash
	V             uint8
}

// Order is a signed limit order as produced by a maker. Amounts are integers
// in the smallest unit of their token.
type Order struct {
	Maker               common.Address
	Taker               common.Address // zero address for open orders
	Sender              common.Address
	FeeRecipient        common.Address
	MakerToken          common.Address
	TakerToken          common.Address
	MakerAmount         decimal.Decimal
	TakerAmount         decimal.Decimal
	TakerTokenFeeAmount decimal.Decimal
	Pool                common.Hash
	Salt                decimal.Decimal
	ChainID             int64
	VerifyingContract   common.Address
	Expiry              int64 // unix seconds
	Signature           Signature
}

// OrderWithMetadata is the unit stored in a book. Hash is assigned by the
// feed and is the identity used for replacement and de-duplication.
type OrderWithMetadata struct {
	Order                        Order
	Hash                         string
	RemainingFillableTakerAmount decimal.Decimal
	State                        State
	CreatedAt                    time.Time
}

// Price returns the order price as payment units per instrument unit, seen
// from the given side of the book.
func (o *OrderWithMetadata) Price(side Side) decimal.Decimal {
	if side == BID {
		return o.BidPrice()
	}
	return o.AskPrice()
}

func (o *OrderWithMetadata) BidPrice() decimal.Decimal {
	if o.Order.TakerAmount.IsZero() {
		return decimal.Zero
	}
	return o.Order.MakerAmount.Div(o.Order.TakerAmount)
}

func (o *OrderWithMetadata) AskPrice() decimal.Decimal {
	if o.Order.MakerAmount.IsZero() {
		return decimal.Zero
	}
	return o.Order.TakerAmount.Div(o.Order.MakerAmount)
}

// Available returns how many instrument units the order can still absorb.
func (o *OrderWithMetadata) Available(side Side) decimal.Decimal {
	if side == BID {
		return o.AvailableAsBid()
	}
	return o.AvailableAsAsk()
}

// AvailableAsBid: a bid's taker token is the instrument, so the remaining
// taker amount is already in instrument units.
func (o *OrderWithMetadata) AvailableAsBid() decimal.Decimal {
	return o.RemainingFillableTakerAmount
}

// AvailableAsAsk is the residual maker amount implied by the remaining
// taker amount, truncated to whole units.
func (o *OrderWithMetadata) AvailableAsAsk() decimal.Decimal {
	if o.Order.TakerAmount.IsZero() {
		return decimal.Zero
	}
	return o.RemainingFillableTakerAmount.
		Mul(o.Order.MakerAmount).
		Div(o.Order.TakerAmount).
		Truncate(0)
}

// IsValid is the validity predicate applied on every Update and Expire.
func (o *OrderWithMetadata) IsValid(side Side, now time.Time) bool {
	if o.State.Terminal() {
		return false
	}
	if !o.Available(side).IsPositive() {
		return false
	}
	return o.Order.Expiry > now.Unix()
}

// BetterThan compares two orders on one side by cross multiplication so
// that no division rounding leaks into the ordering.
// Bids: higher maker/taker first. Asks: lower taker/maker first.
func BetterThan(side Side, a, b *OrderWithMetadata) bool {
	if side == BID {
		lhs := a.Order.MakerAmount.Mul(b.Order.TakerAmount)
		rhs := b.Order.MakerAmount.Mul(a.Order.TakerAmount)
		return lhs.GreaterThan(rhs)
	}
	lhs := a.Order.TakerAmount.Mul(b.Order.MakerAmount)
	rhs := b.Order.TakerAmount.Mul(a.Order.MakerAmount)
	return lhs.LessThan(rhs)
}

// Clone returns a copy that shares no mutable state with o.
func (o *OrderWithMetadata) Clone() *OrderWithMetadata {
	cp := *o
	return &cp
}
