package classifier

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joripage/optionbook/pkg/order"
)

type Kind string

const (
	BID        Kind = "BID"
	ASK        Kind = "ASK"
	IRRELEVANT Kind = "IRRELEVANT"
)

type Result struct {
	Kind         Kind
	InstrumentID common.Address
}

// Side maps a relevant classification to the book side it belongs to.
// Calling it on IRRELEVANT is a programming error.
func (r Result) Side() order.Side {
	switch r.Kind {
	case BID:
		return order.BID
	case ASK:
		return order.ASK
	}
	panic(fmt.Sprintf("classifier: no book side for kind %q", r.Kind))
}

// Classifier tags orders against the currently tracked instrument set.
type Classifier struct {
	paymentToken common.Address
	tracked      map[common.Address]struct{}
}

func New(paymentToken common.Address, instrumentIDs []common.Address) *Classifier {
	tracked := make(map[common.Address]struct{}, len(instrumentIDs))
	for _, id := range instrumentIDs {
		tracked[id] = struct{}{}
	}
	return &Classifier{
		paymentToken: paymentToken,
		tracked:      tracked,
	}
}

func (c *Classifier) Tracks(id common.Address) bool {
	_, ok := c.tracked[id]
	return ok
}

// Classify returns BID when the maker pays with the payment token for a
// tracked instrument, ASK when the maker sells a tracked instrument for the
// payment token, and IRRELEVANT otherwise.
func (c *Classifier) Classify(o *order.Order) Result {
	if o.MakerToken == c.paymentToken && c.Tracks(o.TakerToken) {
		return Result{Kind: BID, InstrumentID: o.TakerToken}
	}
	if o.TakerToken == c.paymentToken && c.Tracks(o.MakerToken) {
		return Result{Kind: ASK, InstrumentID: o.MakerToken}
	}
	return Result{Kind: IRRELEVANT}
}

// Classify is the stateless form used by callers that do not keep a
// Classifier around.
func Classify(paymentToken common.Address, instrumentIDs []common.Address, o *order.Order) Result {
	return New(paymentToken, instrumentIDs).Classify(o)
}
