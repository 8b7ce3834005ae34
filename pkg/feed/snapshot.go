package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-resty/resty/v2"
	"github.com/joripage/optionbook/pkg/classifier"
	"github.com/joripage/optionbook/pkg/order"
	"github.com/joripage/optionbook/pkg/orderbook"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// SnapshotFetcher loads the current bids and asks for exactly the given
// instruments.
type SnapshotFetcher interface {
	Fetch(ctx context.Context, instrumentIDs []common.Address) ([]orderbook.OrderBook, error)
}

type RestConfig struct {
	BaseURL      string
	PaymentToken common.Address
	ChainID      int64
	PerPage      int
	Concurrency  int
	Timeout      time.Duration
}

type RestSnapshotClient struct {
	client       *resty.Client
	paymentToken common.Address
	chainID      int64
	perPage      int
	concurrency  int
	logger       *zap.Logger
}

func NewRestSnapshotClient(cfg RestConfig, logger *zap.Logger) *RestSnapshotClient {
	if cfg.PerPage <= 0 {
		cfg.PerPage = 1000
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.L()
	}

	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetHeader("Accept", "application/json")

	return &RestSnapshotClient{
		client:       client,
		paymentToken: cfg.PaymentToken,
		chainID:      cfg.ChainID,
		perPage:      cfg.PerPage,
		concurrency:  cfg.Concurrency,
		logger:       logger,
	}
}

func (c *RestSnapshotClient) Fetch(ctx context.Context, instrumentIDs []common.Address) ([]orderbook.OrderBook, error) {
	books := make([]orderbook.OrderBook, len(instrumentIDs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)
	for i, id := range instrumentIDs {
		g.Go(func() error {
			book, err := c.fetchOne(gctx, id)
			if err != nil {
				return err
			}
			books[i] = book
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return books, nil
}

// maxSnapshotPages bounds a walk against a server that ignores the page
// parameter and never reports a total.
const maxSnapshotPages = 100

// fetchOne walks the pages of one book until both sides are complete.
func (c *RestSnapshotClient) fetchOne(ctx context.Context, instrumentID common.Address) (orderbook.OrderBook, error) {
	var bids, asks []json.RawMessage
	for page := 1; ; page++ {
		body, err := c.fetchPage(ctx, instrumentID, page)
		if err != nil {
			return orderbook.OrderBook{}, err
		}
		bids = append(bids, body.Bids.Records...)
		asks = append(asks, body.Asks.Records...)

		if body.Bids.complete(page, c.perPage) && body.Asks.complete(page, c.perPage) {
			break
		}
		if page == maxSnapshotPages {
			c.logger.Warn("snapshot truncated at page limit",
				zap.String("instrument", instrumentID.Hex()),
				zap.Int("pages", page),
				zap.Int("bids", len(bids)),
				zap.Int("asks", len(asks)))
			break
		}
	}

	cls := classifier.New(c.paymentToken, []common.Address{instrumentID})
	return orderbook.OrderBook{
		InstrumentID: instrumentID,
		Bids:         c.parseSide(cls, classifier.BID, bids),
		Asks:         c.parseSide(cls, classifier.ASK, asks),
	}, nil
}

func (c *RestSnapshotClient) fetchPage(ctx context.Context, instrumentID common.Address, page int) (snapshotResponse, error) {
	params := map[string]string{
		"baseToken":  instrumentID.Hex(),
		"quoteToken": c.paymentToken.Hex(),
		"page":       strconv.Itoa(page),
		"perPage":    strconv.Itoa(c.perPage),
	}
	if c.chainID != 0 {
		params["chainId"] = strconv.FormatInt(c.chainID, 10)
	}

	var body snapshotResponse
	resp, err := c.client.R().
		SetContext(ctx).
		SetQueryParams(params).
		SetResult(&body).
		Get("/orderbook/v1")
	if err != nil {
		return snapshotResponse{}, fmt.Errorf("fetch snapshot %s page %d: %w", instrumentID.Hex(), page, err)
	}
	if resp.IsError() {
		return snapshotResponse{}, fmt.Errorf("%w: %s page %d status %d", ErrSnapshotStatus, instrumentID.Hex(), page, resp.StatusCode())
	}
	return body, nil
}

// parseSide keeps the records that parse and classify onto the expected
// side; everything else is dropped with a warning.
func (c *RestSnapshotClient) parseSide(cls *classifier.Classifier, want classifier.Kind, records []json.RawMessage) []*order.OrderWithMetadata {
	out := make([]*order.OrderWithMetadata, 0, len(records))
	for _, raw := range records {
		o, err := parseRecord(raw)
		if err != nil {
			c.logger.Warn("drop malformed snapshot record", zap.Error(err))
			continue
		}
		if got := cls.Classify(&o.Order); got.Kind != want {
			c.logger.Warn("drop snapshot record on wrong side",
				zap.String("order_hash", o.Hash),
				zap.String("want", string(want)),
				zap.String("got", string(got.Kind)))
			continue
		}
		out = append(out, o)
	}
	return out
}

func parseRecord(raw json.RawMessage) (*order.OrderWithMetadata, error) {
	var rec order.RawRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("%w: %v", order.ErrMalformedField, err)
	}
	return rec.Parse()
}
