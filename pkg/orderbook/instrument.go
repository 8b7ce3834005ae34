package orderbook

import (
	"github.com/ethereum/go-ethereum/common"
)

const DefaultInstrumentDecimals = 8

// Instrument describes one tracked option contract.
type Instrument struct {
	ID         common.Address
	Underlying common.Address
	Expiry     int64 // unix seconds
	Decimals   int32
}

func (i Instrument) decimals() int32 {
	if i.Decimals <= 0 {
		return DefaultInstrumentDecimals
	}
	return i.Decimals
}

func InstrumentIDs(instruments []Instrument) []common.Address {
	ids := make([]common.Address, 0, len(instruments))
	for _, i := range instruments {
		ids = append(ids, i.ID)
	}
	return ids
}
