package orderbook

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// LiquidityMap is total resting notional per underlying asset and expiry,
// in whole instrument units.
type LiquidityMap map[common.Address]map[int64]decimal.Decimal

func (m LiquidityMap) Get(underlying common.Address, expiry int64) decimal.Decimal {
	return m[underlying][expiry]
}

func (m LiquidityMap) add(underlying common.Address, expiry int64, amount decimal.Decimal) {
	byExpiry, ok := m[underlying]
	if !ok {
		byExpiry = make(map[int64]decimal.Decimal)
		m[underlying] = byExpiry
	}
	byExpiry[expiry] = byExpiry[expiry].Add(amount)
}

func (m LiquidityMap) clone() LiquidityMap {
	out := make(LiquidityMap, len(m))
	for u, byExpiry := range m {
		cp := make(map[int64]decimal.Decimal, len(byExpiry))
		for e, v := range byExpiry {
			cp[e] = v
		}
		out[u] = cp
	}
	return out
}

// computeLiquidity sums ask maker amounts and bid remaining taker amounts.
// Books for instruments missing from the registry cannot be bucketed and
// are skipped. Caller holds the lock.
func (s *Store) computeLiquidity() LiquidityMap {
	m := LiquidityMap{}
	for id, ob := range s.books {
		inst, ok := s.instruments[id]
		if !ok {
			continue
		}
		total := decimal.Zero
		for _, o := range ob.asks {
			total = total.Add(o.Order.MakerAmount)
		}
		for _, o := range ob.bids {
			total = total.Add(o.RemainingFillableTakerAmount)
		}
		m.add(inst.Underlying, inst.Expiry, total.Shift(-inst.decimals()))
	}
	return m
}
