package feed

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/ethereum/go-ethereum/common"
	"github.com/gammazero/deque"
	"github.com/joripage/optionbook/pkg/classifier"
	"github.com/joripage/optionbook/pkg/logging"
	"github.com/joripage/optionbook/pkg/notify"
	"github.com/joripage/optionbook/pkg/order"
	"github.com/joripage/optionbook/pkg/orderbook"
	"go.uber.org/zap"
)

type Status string

const (
	StatusLoading      Status = "LOADING"
	StatusReady        Status = "READY"
	StatusLoadFailed   Status = "LOAD_FAILED"
	StatusConnected    Status = "CONNECTED"
	StatusReconnecting Status = "RECONNECTING"
	StatusDisconnected Status = "DISCONNECTED"
)

type StatusEvent struct {
	Status     Status
	Generation uint64
	Err        error
}

type Config struct {
	Network           string
	PaymentToken      common.Address
	OwnAddress        common.Address
	ReconnectAttempts int
	ReconnectInterval time.Duration
	ExpireInterval    time.Duration
	SnapshotTimeout   time.Duration
	MaxPendingUpdates int
	// ResyncOnReconnect re-runs the snapshot after the stream comes back,
	// covering deltas missed while disconnected.
	ResyncOnReconnect bool
}

const (
	DefaultReconnectAttempts = 10
	DefaultReconnectInterval = 3 * time.Second
	DefaultExpireInterval    = 5 * time.Second
	DefaultSnapshotTimeout   = 30 * time.Second
	DefaultMaxPendingUpdates = 10_000
)

func (c Config) withDefaults() Config {
	if c.ReconnectAttempts <= 0 {
		c.ReconnectAttempts = DefaultReconnectAttempts
	}
	if c.ReconnectInterval <= 0 {
		c.ReconnectInterval = DefaultReconnectInterval
	}
	if c.ExpireInterval <= 0 {
		c.ExpireInterval = DefaultExpireInterval
	}
	if c.SnapshotTimeout <= 0 {
		c.SnapshotTimeout = DefaultSnapshotTimeout
	}
	if c.MaxPendingUpdates <= 0 {
		c.MaxPendingUpdates = DefaultMaxPendingUpdates
	}
	return c
}

type Option func(*Supervisor)

func WithPublisher(p notify.Publisher) Option {
	return func(s *Supervisor) { s.publisher = p }
}

func WithStatusHandler(fn func(StatusEvent)) Option {
	return func(s *Supervisor) { s.onStatus = fn }
}

func WithLogger(l *logging.Logger) Option {
	return func(s *Supervisor) { s.logger = l }
}

// Supervisor owns the snapshot and stream lifecycle for one network and is
// the only writer of its Store. Every store transition happens on the Run
// goroutine; fetches and stream reads feed it through the events channel.
type Supervisor struct {
	cfg       Config
	store     *orderbook.Store
	fetcher   SnapshotFetcher
	stream    Stream
	publisher notify.Publisher
	tagger    *notify.Tagger
	onStatus  func(StatusEvent)
	logger    *logging.Logger

	events     chan event
	requestSeq atomic.Uint64
	running    atomic.Bool

	// owned by the Run goroutine
	instruments []orderbook.Instrument
	classifier  *classifier.Classifier
	generation  uint64
	loading     bool
	cancelFetch context.CancelFunc
	pending     deque.Deque[*order.OrderWithMetadata]
	sessionID   string
	reconnected bool

	// false until an Init lands for the current instrument set
	booksCurrent bool
}

type event interface{}

type refreshEvent struct {
	instruments []orderbook.Instrument
	replace     bool
}

type snapshotEvent struct {
	generation uint64
	books      []orderbook.OrderBook
	err        error
}

type frameEvent struct {
	data []byte
}

type streamStatusEvent struct {
	status Status
	err    error
}

func NewSupervisor(
	cfg Config,
	store *orderbook.Store,
	fetcher SnapshotFetcher,
	stream Stream,
	instruments []orderbook.Instrument,
	opts ...Option,
) *Supervisor {
	cfg = cfg.withDefaults()
	s := &Supervisor{
		cfg:         cfg,
		store:       store,
		fetcher:     fetcher,
		stream:      stream,
		tagger:      notify.NewTagger(cfg.OwnAddress),
		logger:      logging.Wrap(zap.L()),
		events:      make(chan event, 64),
		instruments: instruments,
		classifier:  classifier.New(cfg.PaymentToken, orderbook.InstrumentIDs(instruments)),
	}
	for _, opt := range opts {
		opt(s)
	}
	store.SetInstruments(instruments)
	return s
}

func (s *Supervisor) Store() *orderbook.Store {
	return s.store
}

// Refresh re-runs the snapshot for the current instrument set.
func (s *Supervisor) Refresh(ctx context.Context) error {
	return s.send(ctx, refreshEvent{})
}

// SetInstruments switches the tracked set and reloads the snapshot for it.
// Deltas keep flowing into a buffer until that snapshot lands.
func (s *Supervisor) SetInstruments(ctx context.Context, instruments []orderbook.Instrument) error {
	return s.send(ctx, refreshEvent{instruments: instruments, replace: true})
}

func (s *Supervisor) send(ctx context.Context, ev event) error {
	if !s.running.Load() {
		return errStopped
	}
	select {
	case s.events <- ev:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run blocks until ctx is cancelled.
func (s *Supervisor) Run(ctx context.Context) error {
	logger, ctx := s.logger.WithSession(ctx, s.cfg.Network)
	s.logger = logger
	s.sessionID = logging.SessionID(ctx)

	ctx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	defer func() {
		cancel()
		wg.Wait()
		s.running.Store(false)
	}()
	s.running.Store(true)

	wg.Add(1)
	go func() {
		defer wg.Done()
		s.runStream(ctx)
	}()

	ticker := time.NewTicker(s.cfg.ExpireInterval)
	defer ticker.Stop()

	s.startRefresh(ctx)

	for {
		select {
		case <-ctx.Done():
			if s.cancelFetch != nil {
				s.cancelFetch()
			}
			return ctx.Err()
		case <-ticker.C:
			s.store.Apply(orderbook.Expire{})
		case ev := <-s.events:
			s.handle(ctx, ev)
		}
	}
}

func (s *Supervisor) handle(ctx context.Context, ev event) {
	switch e := ev.(type) {
	case refreshEvent:
		if e.replace {
			s.instruments = e.instruments
			s.classifier = classifier.New(s.cfg.PaymentToken, orderbook.InstrumentIDs(e.instruments))
			s.store.SetInstruments(e.instruments)
			s.booksCurrent = false
		}
		s.startRefresh(ctx)
	case snapshotEvent:
		s.handleSnapshot(ctx, e)
	case frameEvent:
		s.handleFrame(ctx, e.data)
	case streamStatusEvent:
		s.handleStreamStatus(ctx, e)
	default:
		panic(fmt.Sprintf("feed: unknown event %T", ev))
	}
}

func (s *Supervisor) startRefresh(ctx context.Context) {
	if s.cancelFetch != nil {
		s.cancelFetch()
	}
	s.generation++
	gen := s.generation
	s.loading = true

	fetchCtx, cancel := context.WithTimeout(ctx, s.cfg.SnapshotTimeout)
	s.cancelFetch = cancel
	ids := orderbook.InstrumentIDs(s.instruments)

	s.logger.Info("loading snapshot",
		zap.Uint64("generation", gen),
		zap.Int("instruments", len(ids)))
	s.emit(StatusEvent{Status: StatusLoading, Generation: gen})

	go func() {
		defer cancel()
		books, err := s.fetcher.Fetch(fetchCtx, ids)
		select {
		case s.events <- snapshotEvent{generation: gen, books: books, err: err}:
		case <-ctx.Done():
		}
	}()
}

func (s *Supervisor) handleSnapshot(ctx context.Context, e snapshotEvent) {
	if e.generation != s.generation {
		s.logger.Debug("discard stale snapshot",
			zap.Uint64("generation", e.generation),
			zap.Uint64("current", s.generation))
		return
	}
	s.cancelFetch = nil

	if e.err != nil {
		s.logger.Warn("snapshot load failed",
			zap.Uint64("generation", e.generation),
			zap.Bool("books_current", s.booksCurrent),
			zap.Error(e.err))
		s.emit(StatusEvent{Status: StatusLoadFailed, Generation: e.generation, Err: e.err})
		if !s.booksCurrent {
			// no Init for this instrument set yet; deltas wait for the next Refresh
			return
		}
		// previous books stay in place as stale and keep taking deltas
		s.loading = false
		s.flushPending(ctx)
		return
	}

	s.loading = false
	s.booksCurrent = true
	s.store.Apply(orderbook.Init{Books: e.books})
	s.logger.Info("snapshot loaded",
		zap.Uint64("generation", e.generation),
		zap.Int("books", len(e.books)),
		zap.Int("buffered", s.pending.Len()))
	s.emit(StatusEvent{Status: StatusReady, Generation: e.generation})
	s.flushPending(ctx)
}

func (s *Supervisor) handleFrame(ctx context.Context, data []byte) {
	msgs, err := decodeFrame(data)
	if err != nil {
		s.logger.Warn("drop undecodable frame", zap.Error(err), zap.Int("bytes", len(data)))
		return
	}

	var orders []*order.OrderWithMetadata
	for _, msg := range msgs {
		if msg.Type != msgTypeUpdate || (msg.Channel != "" && msg.Channel != channelOrders) {
			s.logger.Debug("skip frame", zap.String("type", msg.Type), zap.String("channel", msg.Channel))
			continue
		}
		for _, raw := range msg.Payload {
			o, err := parseRecord(raw)
			if err != nil {
				s.logger.Warn("drop malformed order",
					zap.String("request_id", msg.RequestID),
					zap.String("reason", err.Error()))
				continue
			}
			orders = append(orders, o)
		}
	}
	if len(orders) == 0 {
		return
	}

	if s.loading {
		s.buffer(orders)
		return
	}
	s.dispatch(ctx, orders)
}

func (s *Supervisor) buffer(orders []*order.OrderWithMetadata) {
	dropped := 0
	for _, o := range orders {
		if s.pending.Len() >= s.cfg.MaxPendingUpdates {
			s.pending.PopFront()
			dropped++
		}
		s.pending.PushBack(o)
	}
	if dropped > 0 {
		s.logger.Warn("pending update buffer full, oldest dropped", zap.Int("dropped", dropped))
	}
}

func (s *Supervisor) flushPending(ctx context.Context) {
	if s.pending.Len() == 0 {
		return
	}
	orders := make([]*order.OrderWithMetadata, 0, s.pending.Len())
	for s.pending.Len() > 0 {
		orders = append(orders, s.pending.PopFront())
	}
	s.dispatch(ctx, orders)
}

// dispatch classifies orders against the tracked set and applies the
// relevant ones as one Update batch.
func (s *Supervisor) dispatch(ctx context.Context, orders []*order.OrderWithMetadata) {
	updates := make([]orderbook.OrderUpdate, 0, len(orders))
	var own []notify.OwnOrderEvent
	now := time.Now()

	for _, o := range orders {
		r := s.classifier.Classify(&o.Order)
		switch r.Kind {
		case classifier.IRRELEVANT:
			continue
		case classifier.BID, classifier.ASK:
		default:
			panic(fmt.Sprintf("feed: unknown classification %q", r.Kind))
		}
		updates = append(updates, orderbook.OrderUpdate{
			Kind:         r.Kind,
			InstrumentID: r.InstrumentID,
			Order:        o,
		})
		if s.tagger.IsOwn(o) {
			own = append(own, notify.NewOwnOrderEvent(s.sessionID, r.InstrumentID, r.Side(), o, now))
		}
	}
	if len(updates) == 0 {
		return
	}

	s.store.Apply(orderbook.Update{Updates: updates})

	if s.publisher == nil {
		return
	}
	for _, ev := range own {
		if err := s.publisher.Publish(ctx, ev); err != nil {
			s.logger.Warn("publish own order event failed", zap.String("order_hash", ev.OrderHash), zap.Error(err))
		}
	}
}

func (s *Supervisor) handleStreamStatus(ctx context.Context, e streamStatusEvent) {
	switch e.status {
	case StatusConnected:
		if s.reconnected && s.cfg.ResyncOnReconnect {
			s.startRefresh(ctx)
		}
	case StatusReconnecting:
		s.reconnected = true
	}
	s.emit(StatusEvent{Status: e.status, Generation: s.generation, Err: e.err})
}

func (s *Supervisor) emit(ev StatusEvent) {
	if s.onStatus != nil {
		s.onStatus(ev)
	}
}

// runStream keeps the subscription alive. Every failed dial and every
// connection that drops before delivering a frame spends one of
// ReconnectAttempts retries, each taken ReconnectInterval after the failure.
// A connection that delivered frames restores the full budget. Running out
// is reported once as StatusDisconnected and ends the stream.
func (s *Supervisor) runStream(ctx context.Context) {
	policy := backoff.WithContext(
		backoff.WithMaxRetries(
			backoff.NewConstantBackOff(s.cfg.ReconnectInterval),
			uint64(s.cfg.ReconnectAttempts),
		),
		ctx,
	)
	policy.Reset()

	for {
		err := s.connect(ctx)
		if err == nil {
			s.post(ctx, streamStatusEvent{status: StatusConnected})
			var delivered bool
			delivered, err = s.readLoop(ctx)
			if ctx.Err() != nil {
				return
			}
			s.logger.Warn("stream closed, reconnecting", zap.Error(err), zap.Bool("delivered", delivered))
			s.post(ctx, streamStatusEvent{status: StatusReconnecting, err: err})
			if delivered {
				policy.Reset()
			}
		}

		if !s.waitRetry(ctx, policy, err) {
			if ctx.Err() != nil {
				return
			}
			s.logger.Error("stream disconnected",
				zap.Int("attempts", s.cfg.ReconnectAttempts),
				zap.Error(err))
			s.post(ctx, streamStatusEvent{status: StatusDisconnected, err: err})
			return
		}
	}
}

// waitRetry sleeps until the next attempt is due. It reports false once the
// budget is spent or ctx is done.
func (s *Supervisor) waitRetry(ctx context.Context, policy backoff.BackOff, cause error) bool {
	wait := policy.NextBackOff()
	if wait == backoff.Stop {
		return false
	}
	s.logger.Warn("stream retry scheduled", zap.Error(cause), zap.Duration("wait", wait))

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// connect dials and subscribes. Subscription state is not assumed to
// survive a reconnect, so every connection sends its own subscribe.
func (s *Supervisor) connect(ctx context.Context) error {
	if err := s.stream.Connect(ctx); err != nil {
		return err
	}
	requestID := strconv.FormatUint(s.requestSeq.Add(1), 10)
	if err := s.stream.Send(newSubscribeMessage(requestID)); err != nil {
		_ = s.stream.Close()
		return fmt.Errorf("subscribe: %w", err)
	}
	s.logger.Info("subscribed", zap.String("channel", channelOrders), zap.String("request_id", requestID))
	return nil
}

// readLoop forwards frames until the connection fails. delivered reports
// whether at least one frame arrived.
func (s *Supervisor) readLoop(ctx context.Context) (delivered bool, err error) {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = s.stream.Close()
		case <-done:
		}
	}()

	for {
		data, rerr := s.stream.ReadMessage()
		if rerr != nil {
			_ = s.stream.Close()
			return delivered, rerr
		}
		delivered = true
		if !s.post(ctx, frameEvent{data: data}) {
			return delivered, ctx.Err()
		}
	}
}

func (s *Supervisor) post(ctx context.Context, ev event) bool {
	select {
	case s.events <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}
