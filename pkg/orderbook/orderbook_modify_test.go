package orderbook

import (
	"testing"

	"github.com/joripage/optionbook/pkg/classifier"
	"github.com/joripage/optionbook/pkg/order"
	"github.com/shopspring/decimal"
)

func initBids(s *Store) {
	s.Apply(Init{Books: []OrderBook{{
		InstrumentID: instA,
		Bids: []*order.OrderWithMetadata{
			bid("B1", 10, 5),
			bid("B2", 10, 4),
			bid("B3", 10, 3),
		},
	}}})
}

func TestReplaceKeepsPosition(t *testing.T) {
	s, _ := newTestStore()
	initBids(s)

	partial := bid("B2", 10, 4)
	partial.RemainingFillableTakerAmount = decimal.NewFromInt(3)
	s.Apply(Update{Updates: []OrderUpdate{{Kind: classifier.BID, InstrumentID: instA, Order: partial}}})

	bids := s.Bids(instA)
	assertHashes(t, bids, "B1", "B2", "B3")
	if !bids[1].RemainingFillableTakerAmount.Equal(decimal.NewFromInt(3)) {
		t.Fatalf("expected remaining 3, got %s", bids[1].RemainingFillableTakerAmount)
	}
}

func TestInsertResorts(t *testing.T) {
	s, _ := newTestStore()
	initBids(s)

	s.Apply(Update{Updates: []OrderUpdate{
		{Kind: classifier.BID, InstrumentID: instA, Order: bid("B4", 10, 6)},
		{Kind: classifier.BID, InstrumentID: instA, Order: bid("B5", 10, 2)},
		{Kind: classifier.BID, InstrumentID: instA, Order: bid("B6", 10, 4)},
	}})

	assertHashes(t, s.Bids(instA), "B4", "B1", "B2", "B6", "B3", "B5")
}

func TestEqualPriceKeepsArrivalOrder(t *testing.T) {
	s, _ := newTestStore()
	s.Apply(Init{Books: []OrderBook{{
		InstrumentID: instA,
		Asks:         []*order.OrderWithMetadata{ask("A1", 10, 2), ask("A2", 5, 2)},
	}}})

	s.Apply(Update{Updates: []OrderUpdate{{Kind: classifier.ASK, InstrumentID: instA, Order: ask("A3", 1, 2)}}})
	assertHashes(t, s.Asks(instA), "A1", "A2", "A3")
}

func TestReplaceToCancelled(t *testing.T) {
	s, _ := newTestStore()
	initBids(s)

	cancelled := bid("B1", 10, 5)
	cancelled.State = order.StateCancelled
	s.Apply(Update{Updates: []OrderUpdate{{Kind: classifier.BID, InstrumentID: instA, Order: cancelled}}})

	assertHashes(t, s.Bids(instA), "B2", "B3")
}

func TestReplaceWithNewPriceResorts(t *testing.T) {
	s, _ := newTestStore()
	s.Apply(Init{Books: []OrderBook{{
		InstrumentID: instA,
		Asks:         []*order.OrderWithMetadata{ask("A1", 10, 2), ask("A2", 10, 3), ask("A3", 10, 4)},
	}}})

	s.Apply(Update{Updates: []OrderUpdate{{Kind: classifier.ASK, InstrumentID: instA, Order: ask("A1", 10, 5)}}})
	asks := s.Asks(instA)
	assertHashes(t, asks, "A2", "A3", "A1")
	checkSide(t, order.ASK, asks)

	s.Apply(Update{Updates: []OrderUpdate{{Kind: classifier.ASK, InstrumentID: instA, Order: ask("A3", 10, 1)}}})
	asks = s.Asks(instA)
	assertHashes(t, asks, "A3", "A2", "A1")
	checkSide(t, order.ASK, asks)

	// moving to a price equal to the next entry stays in place
	initBids(s)
	s.Apply(Update{Updates: []OrderUpdate{{Kind: classifier.BID, InstrumentID: instA, Order: bid("B1", 10, 4)}}})
	assertHashes(t, s.Bids(instA), "B1", "B2", "B3")
}
