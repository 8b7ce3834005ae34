package planner

import (
	"github.com/shopspring/decimal"
)

type Impact struct {
	BlendedPrice decimal.Decimal
	BestPrice    decimal.Decimal
	Ratio        decimal.Decimal
	IsLarge      bool
}

// EstimateImpact measures how far the plan's blended price sits from the
// best resting price. A zero referencePrice means "use the top of the
// plan", which is the best order since the plan walks best first.
// Large impact is a warning only; it never changes plan.Error.
func (p *Planner) EstimateImpact(plan FillPlan, referencePrice decimal.Decimal) Impact {
	impact := Impact{
		BlendedPrice: plan.BlendedPrice(),
		BestPrice:    referencePrice,
		Ratio:        decimal.Zero,
	}
	if !impact.BestPrice.IsPositive() && len(plan.OrdersToFill) > 0 {
		impact.BestPrice = plan.OrdersToFill[0].Price(plan.Side)
	}
	if !impact.BestPrice.IsPositive() || !plan.TotalFilled.IsPositive() {
		return impact
	}

	impact.Ratio = impact.BlendedPrice.Sub(impact.BestPrice).Abs().Div(impact.BestPrice)
	impact.IsLarge = impact.Ratio.GreaterThan(p.cfg.threshold())
	return impact
}

// EstimateProtocolFee converts the per-order protocol fee, denominated in
// gas, into the payment asset: orders * gasUnits * gasPrice, scaled from
// wei to whole native coins, times the native coin's reference price.
func (p *Planner) EstimateProtocolFee(plan FillPlan, gasPrice, referencePrice decimal.Decimal) decimal.Decimal {
	n := int64(len(plan.OrdersToFill))
	if n == 0 || !gasPrice.IsPositive() || !referencePrice.IsPositive() {
		return decimal.Zero
	}
	return decimal.NewFromInt(n * p.cfg.ProtocolFeeGasUnits).
		Mul(gasPrice).
		Shift(-p.cfg.NativeDecimals).
		Mul(referencePrice)
}
