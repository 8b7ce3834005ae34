package gasprice

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
)

// Prices are per-gas-unit prices in wei. NativePrice, when the oracle
// reports it, is the native coin's price in the payment asset.
type Prices struct {
	Fastest     decimal.Decimal `json:"fastest"`
	Fast        decimal.Decimal `json:"fast"`
	Standard    decimal.Decimal `json:"standard"`
	NativePrice decimal.Decimal `json:"nativePrice"`
	FetchedAt   time.Time       `json:"fetchedAt"`
}

type Oracle interface {
	Prices(ctx context.Context) (Prices, error)
}

// Fastest returns the fastest tier, which every oracle must provide.
func Fastest(ctx context.Context, o Oracle) (decimal.Decimal, error) {
	p, err := o.Prices(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	return p.Fastest, nil
}

type Config struct {
	URL      string        `yaml:"url"`
	Unit     string        `yaml:"unit"`
	Timeout  time.Duration `yaml:"timeout"`
	CacheTTL time.Duration `yaml:"cache_ttl"`
}

const (
	UnitWei  = "wei"
	UnitGwei = "gwei"

	DefaultTimeout  = 10 * time.Second
	DefaultCacheTTL = 15 * time.Second
)

func (c Config) withDefaults() Config {
	if c.Unit == "" {
		c.Unit = UnitGwei
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.CacheTTL <= 0 {
		c.CacheTTL = DefaultCacheTTL
	}
	return c
}

// response mirrors the common gas station shape. Tiers may come as JSON
// numbers or strings.
type response struct {
	Fastest     decimal.Decimal `json:"fastest"`
	Fast        decimal.Decimal `json:"fast"`
	Standard    decimal.Decimal `json:"standard"`
	NativePrice decimal.Decimal `json:"nativePrice"`
}

type HTTPOracle struct {
	client *resty.Client
	url    string
	shift  int32
	now    func() time.Time
}

func NewHTTPOracle(cfg Config) (*HTTPOracle, error) {
	cfg = cfg.withDefaults()
	if cfg.URL == "" {
		return nil, ErrNoURL
	}

	var shift int32
	switch strings.ToLower(cfg.Unit) {
	case UnitWei:
	case UnitGwei:
		shift = 9
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownUnit, cfg.Unit)
	}

	return &HTTPOracle{
		client: resty.New().SetTimeout(cfg.Timeout).SetHeader("Accept", "application/json"),
		url:    cfg.URL,
		shift:  shift,
		now:    time.Now,
	}, nil
}

func (o *HTTPOracle) Prices(ctx context.Context) (Prices, error) {
	var body response
	resp, err := o.client.R().
		SetContext(ctx).
		SetResult(&body).
		Get(o.url)
	if err != nil {
		return Prices{}, fmt.Errorf("gas oracle: %w", err)
	}
	if resp.IsError() {
		return Prices{}, fmt.Errorf("%w: status %d", ErrOracleStatus, resp.StatusCode())
	}
	if !body.Fastest.IsPositive() {
		return Prices{}, ErrNoFastestTier
	}

	return Prices{
		Fastest:     body.Fastest.Shift(o.shift),
		Fast:        body.Fast.Shift(o.shift),
		Standard:    body.Standard.Shift(o.shift),
		NativePrice: body.NativePrice,
		FetchedAt:   o.now(),
	}, nil
}

// Static always answers with the same prices.
type Static Prices

func (s Static) Prices(context.Context) (Prices, error) {
	if !s.Fastest.IsPositive() {
		return Prices{}, ErrNoFastestTier
	}
	return Prices(s), nil
}

// NativePriceOr prefers the oracle's native coin price over fallback.
func (p Prices) NativePriceOr(fallback decimal.Decimal) decimal.Decimal {
	if p.NativePrice.IsPositive() {
		return p.NativePrice
	}
	return fallback
}
