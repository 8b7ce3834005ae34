package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joripage/optionbook/pkg/order"
	"github.com/joripage/optionbook/pkg/orderbook"
)

var (
	usdc       = common.HexToAddress("0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48")
	otokenA    = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	otokenB    = common.HexToAddress("0x00000000000000000000000000000000000000b1")
	otokenX    = common.HexToAddress("0x00000000000000000000000000000000000000c1")
	makerAddr  = common.HexToAddress("0x0000000000000000000000000000000000000f01")
	ownerAddr  = common.HexToAddress("0x0000000000000000000000000000000000000f02")
	errDropped = errors.New("connection dropped")
)

type fetchResult struct {
	books []orderbook.OrderBook
	err   error
}

// fakeFetcher answers each Fetch call from its own channel so a test can
// hold a snapshot in flight. Calls past the scripted ones return empty books.
type fakeFetcher struct {
	mu      sync.Mutex
	calls   [][]common.Address
	results []chan fetchResult
}

func newFakeFetcher(n int) *fakeFetcher {
	f := &fakeFetcher{}
	for i := 0; i < n; i++ {
		f.results = append(f.results, make(chan fetchResult, 1))
	}
	return f
}

func (f *fakeFetcher) Fetch(_ context.Context, ids []common.Address) ([]orderbook.OrderBook, error) {
	f.mu.Lock()
	idx := len(f.calls)
	f.calls = append(f.calls, ids)
	var ch chan fetchResult
	if idx < len(f.results) {
		ch = f.results[idx]
	}
	f.mu.Unlock()

	if ch == nil {
		return nil, nil
	}
	// ignores ctx on purpose: a slow server may still answer after cancel
	r := <-ch
	return r.books, r.err
}

func (f *fakeFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type frame struct {
	data []byte
	err  error
}

type fakeStream struct {
	mu          sync.Mutex
	connectErrs []error
	connects    int
	sent        []SubscribeMessage
	frames      chan frame
	closed      chan struct{}
}

func newFakeStream() *fakeStream {
	return &fakeStream{frames: make(chan frame, 16)}
}

func (s *fakeStream) Connect(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connects++
	if len(s.connectErrs) > 0 {
		err := s.connectErrs[0]
		s.connectErrs = s.connectErrs[1:]
		if err != nil {
			return err
		}
	}
	s.closed = make(chan struct{})
	return nil
}

func (s *fakeStream) Send(v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed == nil {
		return ErrNotConnected
	}
	msg, ok := v.(SubscribeMessage)
	if !ok {
		return fmt.Errorf("unexpected message %T", v)
	}
	s.sent = append(s.sent, msg)
	return nil
}

func (s *fakeStream) ReadMessage() ([]byte, error) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed == nil {
		return nil, ErrNotConnected
	}

	select {
	case f := <-s.frames:
		return f.data, f.err
	case <-closed:
		return nil, errors.New("use of closed connection")
	}
}

func (s *fakeStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed != nil {
		close(s.closed)
		s.closed = nil
	}
	return nil
}

func (s *fakeStream) subscriptions() []SubscribeMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]SubscribeMessage(nil), s.sent...)
}

func (s *fakeStream) connectCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connects
}

// rawAsk builds a wire record selling `size` of instrument at `price` USDC.
func rawAsk(hash string, instrument common.Address, size, price int64) order.RawRecord {
	return order.RawRecord{
		Order: order.RawOrder{
			Maker:       makerAddr.Hex(),
			MakerToken:  instrument.Hex(),
			TakerToken:  usdc.Hex(),
			MakerAmount: fmt.Sprint(size),
			TakerAmount: fmt.Sprint(size * price),
			Expiry:      json.Number(fmt.Sprint(time.Now().Add(time.Hour).Unix())),
		},
		MetaData: order.RawMetaData{
			OrderHash:                    hash,
			RemainingFillableTakerAmount: fmt.Sprint(size * price),
			State:                        string(order.StateAdded),
		},
	}
}

func rawBid(hash string, instrument common.Address, size, price int64) order.RawRecord {
	return order.RawRecord{
		Order: order.RawOrder{
			Maker:       makerAddr.Hex(),
			MakerToken:  usdc.Hex(),
			TakerToken:  instrument.Hex(),
			MakerAmount: fmt.Sprint(size * price),
			TakerAmount: fmt.Sprint(size),
			Expiry:      json.Number(fmt.Sprint(time.Now().Add(time.Hour).Unix())),
		},
		MetaData: order.RawMetaData{
			OrderHash:                    hash,
			RemainingFillableTakerAmount: fmt.Sprint(size),
			State:                        string(order.StateAdded),
		},
	}
}

func mustParse(r order.RawRecord) *order.OrderWithMetadata {
	o, err := r.Parse()
	if err != nil {
		panic(err)
	}
	return o
}

func updateFrame(payload ...any) []byte {
	b, err := json.Marshal(map[string]any{
		"type":      "update",
		"channel":   "orders",
		"requestId": "1",
		"payload":   payload,
	})
	if err != nil {
		panic(err)
	}
	return b
}

type statusRecorder struct {
	mu     sync.Mutex
	events []StatusEvent
}

func (r *statusRecorder) record(ev StatusEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *statusRecorder) count(status Status) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, ev := range r.events {
		if ev.Status == status {
			n++
		}
	}
	return n
}
