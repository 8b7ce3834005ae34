package gasprice

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func oracleServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestHTTPOracleGwei(t *testing.T) {
	srv := oracleServer(t, http.StatusOK, `{"fastest":50,"fast":"40","standard":30.5,"nativePrice":"0.7"}`)

	o, err := NewHTTPOracle(Config{URL: srv.URL})
	require.NoError(t, err)

	p, err := o.Prices(context.Background())
	require.NoError(t, err)
	require.True(t, p.Fastest.Equal(decimal.NewFromInt(50_000_000_000)), p.Fastest.String())
	require.True(t, p.Fast.Equal(decimal.NewFromInt(40_000_000_000)))
	require.True(t, p.Standard.Equal(decimal.NewFromInt(30_500_000_000)))
	require.True(t, p.NativePrice.Equal(decimal.RequireFromString("0.7")))

	fastest, err := Fastest(context.Background(), o)
	require.NoError(t, err)
	require.True(t, fastest.Equal(p.Fastest))
}

func TestHTTPOracleWei(t *testing.T) {
	srv := oracleServer(t, http.StatusOK, `{"fastest":"123"}`)
	o, err := NewHTTPOracle(Config{URL: srv.URL, Unit: "WEI"})
	require.NoError(t, err)

	p, err := o.Prices(context.Background())
	require.NoError(t, err)
	require.Equal(t, "123", p.Fastest.String())
	require.True(t, p.Fast.IsZero())
}

func TestHTTPOracleErrors(t *testing.T) {
	_, err := NewHTTPOracle(Config{})
	require.ErrorIs(t, err, ErrNoURL)
	_, err = NewHTTPOracle(Config{URL: "http://x", Unit: "finney"})
	require.ErrorIs(t, err, ErrUnknownUnit)

	bad := oracleServer(t, http.StatusServiceUnavailable, `{}`)
	o, err := NewHTTPOracle(Config{URL: bad.URL})
	require.NoError(t, err)
	_, err = o.Prices(context.Background())
	require.ErrorIs(t, err, ErrOracleStatus)

	empty := oracleServer(t, http.StatusOK, `{"fast":1}`)
	o, err = NewHTTPOracle(Config{URL: empty.URL})
	require.NoError(t, err)
	_, err = o.Prices(context.Background())
	require.ErrorIs(t, err, ErrNoFastestTier)
}

type countingOracle struct {
	calls atomic.Int32
	price int64
	err   error
}

func (c *countingOracle) Prices(context.Context) (Prices, error) {
	c.calls.Add(1)
	if c.err != nil {
		return Prices{}, c.err
	}
	return Prices{Fastest: decimal.NewFromInt(c.price), NativePrice: decimal.NewFromInt(2)}, nil
}

func TestCachedOracle(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	up := &countingOracle{price: 7}
	c := NewCachedOracle(up, client, "polygon", time.Minute, zap.NewNop())

	for i := 0; i < 3; i++ {
		p, err := c.Prices(context.Background())
		require.NoError(t, err)
		require.True(t, p.Fastest.Equal(decimal.NewFromInt(7)))
		require.True(t, p.NativePrice.Equal(decimal.NewFromInt(2)))
	}
	require.EqualValues(t, 1, up.calls.Load())
	require.True(t, mr.Exists("gasprice:polygon"))
	require.Equal(t, time.Minute, mr.TTL("gasprice:polygon"))

	up.price = 9
	mr.FastForward(2 * time.Minute)
	p, err := c.Prices(context.Background())
	require.NoError(t, err)
	require.True(t, p.Fastest.Equal(decimal.NewFromInt(9)))
	require.EqualValues(t, 2, up.calls.Load())
}

func TestCachedOracleCorruptEntry(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	require.NoError(t, mr.Set("gasprice:mainnet", "{oops"))

	up := &countingOracle{price: 3}
	p, err := NewCachedOracle(up, client, "mainnet", 0, nil).Prices(context.Background())
	require.NoError(t, err)
	require.True(t, p.Fastest.Equal(decimal.NewFromInt(3)))
	require.EqualValues(t, 1, up.calls.Load())
}

func TestCachedOracleRedisDown(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer client.Close()
	mr.Close()

	up := &countingOracle{price: 5}
	c := NewCachedOracle(up, client, "mainnet", time.Minute, zap.NewNop())
	p, err := c.Prices(context.Background())
	require.NoError(t, err)
	require.True(t, p.Fastest.Equal(decimal.NewFromInt(5)))

	up.err = errors.New("upstream down")
	_, err = c.Prices(context.Background())
	require.ErrorIs(t, err, up.err)
}

func TestStatic(t *testing.T) {
	p, err := Static{Fastest: decimal.NewFromInt(1)}.Prices(context.Background())
	require.NoError(t, err)
	require.True(t, p.Fastest.Equal(decimal.NewFromInt(1)))

	_, err = Static{}.Prices(context.Background())
	require.ErrorIs(t, err, ErrNoFastestTier)
}

func TestNew(t *testing.T) {
	srv := oracleServer(t, http.StatusOK, `{"fastest":"2"}`)

	plain, err := New(Config{URL: srv.URL}, nil, "mainnet", nil)
	require.NoError(t, err)
	require.IsType(t, &HTTPOracle{}, plain)

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	cached, err := New(Config{URL: srv.URL}, client, "mainnet", zap.NewNop())
	require.NoError(t, err)
	require.IsType(t, &CachedOracle{}, cached)

	p, err := cached.Prices(context.Background())
	require.NoError(t, err)
	require.Equal(t, DefaultCacheTTL, mr.TTL("gasprice:mainnet"))
	require.True(t, p.NativePriceOr(decimal.NewFromInt(9)).Equal(decimal.NewFromInt(9)))

	_, err = New(Config{}, client, "mainnet", nil)
	require.ErrorIs(t, err, ErrNoURL)
}
