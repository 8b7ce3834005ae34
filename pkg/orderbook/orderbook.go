// file: pkg/orderbook/orderbook.go

package orderbook

import (
	"sort"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joripage/optionbook/pkg/order"
)

// orderBook holds one instrument's resting liquidity. Both sides are kept
// best-first; entries are replaced by pointer and never mutated in place so
// slice copies handed to readers stay consistent.
type orderBook struct {
	instrumentID common.Address

	bids []*order.OrderWithMetadata
	asks []*order.OrderWithMetadata
}

func newOrderBook(instrumentID common.Address) *orderBook {
	return &orderBook{
		instrumentID: instrumentID,
	}
}

func (ob *orderBook) side(side order.Side) []*order.OrderWithMetadata {
	if side == order.BID {
		return ob.bids
	}
	return ob.asks
}

func (ob *orderBook) setSide(side order.Side, orders []*order.OrderWithMetadata) {
	if side == order.BID {
		ob.bids = orders
		return
	}
	ob.asks = orders
}

// upsert replaces an entry with the same hash in place while its neighbours
// stay in order. Otherwise the old entry is removed and the order is
// inserted after every entry priced at least as well (price, then arrival).
func (ob *orderBook) upsert(side order.Side, o *order.OrderWithMetadata) {
	orders := ob.side(side)
	for i, existing := range orders {
		if existing.Hash != o.Hash {
			continue
		}
		if fitsAt(side, orders, i, o) {
			orders[i] = o
			return
		}
		orders = append(orders[:i:i], orders[i+1:]...)
		break
	}

	idx := sort.Search(len(orders), func(i int) bool {
		return order.BetterThan(side, o, orders[i])
	})
	orders = append(orders, nil)
	copy(orders[idx+1:], orders[idx:])
	orders[idx] = o
	ob.setSide(side, orders)
}

func fitsAt(side order.Side, orders []*order.OrderWithMetadata, i int, o *order.OrderWithMetadata) bool {
	if i > 0 && order.BetterThan(side, o, orders[i-1]) {
		return false
	}
	if i+1 < len(orders) && order.BetterThan(side, orders[i+1], o) {
		return false
	}
	return true
}

// prune drops every entry that fails the validity predicate, keeping the
// relative order of the rest. Returns the number of removed entries.
func (ob *orderBook) prune(side order.Side, now time.Time) int {
	orders := ob.side(side)
	kept := orders[:0:0]
	for _, o := range orders {
		if o.IsValid(side, now) {
			kept = append(kept, o)
		}
	}
	ob.setSide(side, kept)
	return len(orders) - len(kept)
}

func (ob *orderBook) snapshot() OrderBook {
	return OrderBook{
		InstrumentID: ob.instrumentID,
		Bids:         append([]*order.OrderWithMetadata(nil), ob.bids...),
		Asks:         append([]*order.OrderWithMetadata(nil), ob.asks...),
	}
}

// OrderBook is a read-only copy of one instrument's book. Bids are sorted by
// descending price, asks by ascending price.
type OrderBook struct {
	InstrumentID common.Address
	Bids         []*order.OrderWithMetadata
	Asks         []*order.OrderWithMetadata
}

func (b OrderBook) Side(side order.Side) []*order.OrderWithMetadata {
	if side == order.BID {
		return b.Bids
	}
	return b.Asks
}

// buildSide sorts and de-duplicates a snapshot side. A later record with a
// hash already seen replaces the earlier one.
func buildSide(side order.Side, orders []*order.OrderWithMetadata, now time.Time) []*order.OrderWithMetadata {
	index := make(map[string]int, len(orders))
	out := make([]*order.OrderWithMetadata, 0, len(orders))
	for _, o := range orders {
		if o == nil || o.Hash == "" {
			continue
		}
		if i, ok := index[o.Hash]; ok {
			out[i] = o
			continue
		}
		index[o.Hash] = len(out)
		out = append(out, o)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return order.BetterThan(side, out[i], out[j])
	})

	kept := out[:0]
	for _, o := range out {
		if o.IsValid(side, now) {
			kept = append(kept, o)
		}
	}
	return kept
}
