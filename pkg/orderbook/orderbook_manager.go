package orderbook

import (
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joripage/optionbook/pkg/classifier"
	"github.com/joripage/optionbook/pkg/order"
	"go.uber.org/zap"
)

type StoreOption func(*Store)

// WithClock overrides the wall clock used by the validity predicate.
func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) { s.now = now }
}

func WithLogger(logger *zap.Logger) StoreOption {
	return func(s *Store) { s.logger = logger }
}

// Store holds one order book per instrument and is mutated only through
// Apply. Readers get copies, so a single writer and any number of readers
// may run on different goroutines.
type Store struct {
	mu sync.RWMutex

	books       map[common.Address]*orderBook
	instruments map[common.Address]Instrument
	liquidity   LiquidityMap

	now    func() time.Time
	logger *zap.Logger
}

func NewStore(instruments []Instrument, opts ...StoreOption) *Store {
	s := &Store{
		books:     make(map[common.Address]*orderBook),
		liquidity: LiquidityMap{},
		now:       time.Now,
		logger:    zap.L(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.SetInstruments(instruments)
	return s
}

// SetInstruments swaps the instrument registry used for liquidity
// aggregation. Books are left as they are until the next Init.
func (s *Store) SetInstruments(instruments []Instrument) {
	registry := make(map[common.Address]Instrument, len(instruments))
	for _, i := range instruments {
		registry[i.ID] = i
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.instruments = registry
}

// Apply runs one transition atomically. An unknown action is a contract
// violation between components and panics.
func (s *Store) Apply(action Action) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch a := action.(type) {
	case Init:
		s.applyInit(a)
	case *Init:
		s.applyInit(*a)
	case Update:
		s.applyUpdate(a)
	case *Update:
		s.applyUpdate(*a)
	case Expire, *Expire:
		s.applyExpire()
	default:
		panic(fmt.Errorf("%w %T", errUnknownAction, action))
	}
}

func (s *Store) applyInit(a Init) {
	now := s.now()
	books := make(map[common.Address]*orderBook, len(a.Books))
	for _, b := range a.Books {
		ob, ok := books[b.InstrumentID]
		if !ok {
			ob = newOrderBook(b.InstrumentID)
			books[b.InstrumentID] = ob
		}
		ob.bids = buildSide(order.BID, append(ob.bids, b.Bids...), now)
		ob.asks = buildSide(order.ASK, append(ob.asks, b.Asks...), now)
	}
	s.books = books
	s.liquidity = s.computeLiquidity()
}

type touchedSide struct {
	instrumentID common.Address
	side         order.Side
}

func (s *Store) applyUpdate(a Update) {
	now := s.now()
	touched := make(map[touchedSide]struct{})

	for _, u := range a.Updates {
		if u.Order == nil || u.Order.Hash == "" {
			s.logger.Warn("drop update without order hash",
				zap.String("instrument", u.InstrumentID.Hex()))
			continue
		}

		var side order.Side
		switch u.Kind {
		case classifier.BID:
			side = order.BID
		case classifier.ASK:
			side = order.ASK
		default:
			panic(fmt.Errorf("%w %q", errUnexpectedKind, u.Kind))
		}

		ob, ok := s.books[u.InstrumentID]
		if !ok {
			// lazily create, but never for an order that is already dead
			if !u.Order.IsValid(side, now) {
				continue
			}
			ob = newOrderBook(u.InstrumentID)
			s.books[u.InstrumentID] = ob
		}
		ob.upsert(side, u.Order)
		touched[touchedSide{instrumentID: u.InstrumentID, side: side}] = struct{}{}
	}

	for t := range touched {
		s.books[t.instrumentID].prune(t.side, now)
	}
}

func (s *Store) applyExpire() {
	now := s.now()
	removed := 0
	for _, ob := range s.books {
		removed += ob.prune(order.BID, now)
		removed += ob.prune(order.ASK, now)
	}
	if removed > 0 {
		s.logger.Debug("expired orders removed", zap.Int("count", removed))
	}
}

// Book returns a copy of the instrument's book.
func (s *Store) Book(instrumentID common.Address) (OrderBook, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ob, ok := s.books[instrumentID]
	if !ok {
		return OrderBook{InstrumentID: instrumentID}, false
	}
	return ob.snapshot(), true
}

func (s *Store) Books() []OrderBook {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]OrderBook, 0, len(s.books))
	for _, ob := range s.books {
		out = append(out, ob.snapshot())
	}
	return out
}

func (s *Store) Bids(instrumentID common.Address) []*order.OrderWithMetadata {
	b, _ := s.Book(instrumentID)
	return b.Bids
}

func (s *Store) Asks(instrumentID common.Address) []*order.OrderWithMetadata {
	b, _ := s.Book(instrumentID)
	return b.Asks
}

func (s *Store) BestBid(instrumentID common.Address) (*order.OrderWithMetadata, bool) {
	return s.best(instrumentID, order.BID)
}

func (s *Store) BestAsk(instrumentID common.Address) (*order.OrderWithMetadata, bool) {
	return s.best(instrumentID, order.ASK)
}

func (s *Store) best(instrumentID common.Address, side order.Side) (*order.OrderWithMetadata, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ob, ok := s.books[instrumentID]
	if !ok {
		return nil, false
	}
	orders := ob.side(side)
	if len(orders) == 0 {
		return nil, false
	}
	return orders[0], true
}

// Liquidity returns the aggregate computed at the last Init.
func (s *Store) Liquidity() LiquidityMap {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.liquidity.clone()
}
