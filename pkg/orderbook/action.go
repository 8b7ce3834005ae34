package orderbook

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/joripage/optionbook/pkg/classifier"
	"github.com/joripage/optionbook/pkg/order"
)

// Action is a Book Store transition. The set is closed: Init, Update, Expire.
type Action interface {
	actionName() string
}

// Init replaces the whole book collection with a snapshot.
type Init struct {
	Books []OrderBook
}

// Update applies a batch of classified order deltas.
type Update struct {
	Updates []OrderUpdate
}

// Expire re-filters every book against the validity predicate.
type Expire struct{}

type OrderUpdate struct {
	Kind         classifier.Kind
	InstrumentID common.Address
	Order        *order.OrderWithMetadata
}

func (Init) actionName() string   { return "init" }
func (Update) actionName() string { return "update" }
func (Expire) actionName() string { return "expire" }
