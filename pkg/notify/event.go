package notify

import (
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joripage/optionbook/pkg/order"
	"github.com/shopspring/decimal"
)

// OwnOrderEvent reports a change to an order made by the session's own
// address, as seen on the public feed.
type OwnOrderEvent struct {
	EventID      string          `json:"eventId"`
	SessionID    string          `json:"sessionId"`
	OrderHash    string          `json:"orderHash"`
	InstrumentID common.Address  `json:"instrumentId"`
	Side         order.Side      `json:"side"`
	State        order.State     `json:"state"`
	Remaining    decimal.Decimal `json:"remainingFillableTakerAmount"`
	Maker        common.Address  `json:"maker"`
	Timestamp    time.Time       `json:"timestamp"`
}

func NewOwnOrderEvent(sessionID string, instrumentID common.Address, side order.Side, o *order.OrderWithMetadata, ts time.Time) OwnOrderEvent {
	return OwnOrderEvent{
		EventID:      NewEventID(o.Hash, o.State, o.RemainingFillableTakerAmount),
		SessionID:    sessionID,
		OrderHash:    o.Hash,
		InstrumentID: instrumentID,
		Side:         side,
		State:        o.State,
		Remaining:    o.RemainingFillableTakerAmount,
		Maker:        o.Order.Maker,
		Timestamp:    ts,
	}
}

// NewEventID is stable for a given (hash, state, remaining) so consumers can
// drop the duplicates an at-least-once feed produces.
func NewEventID(orderHash string, state order.State, remaining decimal.Decimal) string {
	return fmt.Sprintf("%s-%s-%s", orderHash, state, remaining.String())
}

// Tagger decides which orders belong to the session owner.
type Tagger struct {
	owner common.Address
}

func NewTagger(owner common.Address) *Tagger {
	return &Tagger{owner: owner}
}

// IsOwn is false for every order when no owner address is configured.
func (t *Tagger) IsOwn(o *order.OrderWithMetadata) bool {
	if t == nil || t.owner == (common.Address{}) {
		return false
	}
	return o.Order.Maker == t.owner
}
