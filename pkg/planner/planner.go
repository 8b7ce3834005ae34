package planner

import (
	"github.com/joripage/optionbook/pkg/order"
	"github.com/shopspring/decimal"
)

type ErrorKind string

const (
	NONE                   ErrorKind = "NONE"
	INSUFFICIENT_LIQUIDITY ErrorKind = "INSUFFICIENT_LIQUIDITY"
)

// Context carries market inputs that are not part of the book.
type Context struct {
	GasPrice       decimal.Decimal // wei per gas unit
	ReferencePrice decimal.Decimal // payment units per native coin
}

// FillPlan is the outcome of walking one side of a book. Amounts are in
// instrument units; TakerFillAmounts are what the taker hands over per order,
// which is the payment cost for asks and the instrument amount for bids.
type FillPlan struct {
	Side             order.Side
	Target           decimal.Decimal
	OrdersToFill     []*order.OrderWithMetadata
	AmountsToFill    []decimal.Decimal
	TakerFillAmounts []decimal.Decimal
	SumInput         decimal.Decimal
	SumOutput        decimal.Decimal
	TotalFilled      decimal.Decimal
	Unmet            decimal.Decimal
	TakerFee         decimal.Decimal
	ProtocolFee      decimal.Decimal
	Error            ErrorKind
}

// BlendedPrice is cost (buy) or proceeds (sell) per instrument unit filled.
func (p FillPlan) BlendedPrice() decimal.Decimal {
	if !p.TotalFilled.IsPositive() {
		return decimal.Zero
	}
	if p.Side == order.ASK {
		return p.SumInput.Div(p.TotalFilled)
	}
	return p.SumOutput.Div(p.TotalFilled)
}

type Planner struct {
	cfg Config
}

func New(cfg Config) *Planner {
	return &Planner{cfg: cfg.withDefaults()}
}

// PlanBuy consumes asks, best first, to acquire target instrument units.
func (p *Planner) PlanBuy(asks []*order.OrderWithMetadata, target decimal.Decimal, ctx Context) FillPlan {
	return p.plan(order.ASK, asks, target, ctx)
}

// PlanSell consumes bids, best first, to dispose of target instrument units.
func (p *Planner) PlanSell(bids []*order.OrderWithMetadata, target decimal.Decimal, ctx Context) FillPlan {
	return p.plan(order.BID, bids, target, ctx)
}

// plan never mutates the orders it is given.
func (p *Planner) plan(side order.Side, orders []*order.OrderWithMetadata, target decimal.Decimal, ctx Context) FillPlan {
	plan := FillPlan{
		Side:        side,
		Target:      target,
		SumInput:    decimal.Zero,
		SumOutput:   decimal.Zero,
		TotalFilled: decimal.Zero,
		Unmet:       decimal.Zero,
		TakerFee:    decimal.Zero,
		ProtocolFee: decimal.Zero,
		Error:       NONE,
	}
	if !target.IsPositive() {
		return plan
	}

	left := target
	value := decimal.Zero
	for _, o := range orders {
		if !left.IsPositive() {
			break
		}
		available := o.Available(side)
		if !available.IsPositive() {
			continue
		}

		take := decimal.Min(available, left)
		worth := fillValue(side, o, take)

		takerFill := take
		if side == order.ASK {
			takerFill = worth.RoundUp(0)
			if takerFill.GreaterThan(o.RemainingFillableTakerAmount) {
				takerFill = o.RemainingFillableTakerAmount
			}
		}

		plan.OrdersToFill = append(plan.OrdersToFill, o)
		plan.AmountsToFill = append(plan.AmountsToFill, take)
		plan.TakerFillAmounts = append(plan.TakerFillAmounts, takerFill)
		plan.TakerFee = plan.TakerFee.Add(proratedTakerFee(o, takerFill))

		value = value.Add(worth)
		plan.TotalFilled = plan.TotalFilled.Add(take)
		left = left.Sub(take)
	}

	if side == order.ASK {
		plan.SumInput = value
		plan.SumOutput = plan.TotalFilled
	} else {
		plan.SumInput = plan.TotalFilled
		plan.SumOutput = value
	}

	if left.IsPositive() {
		plan.Error = INSUFFICIENT_LIQUIDITY
		plan.Unmet = left
	}

	plan.ProtocolFee = p.EstimateProtocolFee(plan, ctx.GasPrice, ctx.ReferencePrice)
	return plan
}

// fillValue is price * amount for the given side, computed as one
// multiplication followed by one division.
func fillValue(side order.Side, o *order.OrderWithMetadata, amount decimal.Decimal) decimal.Decimal {
	if side == order.ASK {
		return amount.Mul(o.Order.TakerAmount).Div(o.Order.MakerAmount)
	}
	return amount.Mul(o.Order.MakerAmount).Div(o.Order.TakerAmount)
}

func proratedTakerFee(o *order.OrderWithMetadata, takerFill decimal.Decimal) decimal.Decimal {
	if o.Order.TakerTokenFeeAmount.IsZero() || o.Order.TakerAmount.IsZero() {
		return decimal.Zero
	}
	return o.Order.TakerTokenFeeAmount.Mul(takerFill).Div(o.Order.TakerAmount)
}
