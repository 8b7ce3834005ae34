package planner

import "github.com/shopspring/decimal"

const (
	// 0x v4 charges a protocol fee of 70k gas per filled order.
	DefaultProtocolFeeGasUnits  = 70_000
	DefaultLargeImpactThreshold = 0.05
	DefaultNativeDecimals       = 18
)

type Config struct {
	ProtocolFeeGasUnits  int64   `yaml:"protocol_fee_gas_units"`
	LargeImpactThreshold float64 `yaml:"large_impact_threshold"`
	NativeDecimals       int32   `yaml:"native_decimals"`
}

func DefaultConfig() Config {
	return Config{}.withDefaults()
}

func (c Config) withDefaults() Config {
	if c.ProtocolFeeGasUnits <= 0 {
		c.ProtocolFeeGasUnits = DefaultProtocolFeeGasUnits
	}
	if c.LargeImpactThreshold <= 0 {
		c.LargeImpactThreshold = DefaultLargeImpactThreshold
	}
	if c.NativeDecimals <= 0 {
		c.NativeDecimals = DefaultNativeDecimals
	}
	return c
}

func (c Config) threshold() decimal.Decimal {
	return decimal.NewFromFloat(c.LargeImpactThreshold)
}
