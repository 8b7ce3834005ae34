package planner

import (
	"github.com/joripage/optionbook/pkg/order"
	"github.com/shopspring/decimal"
)

var defaultPlanner = New(DefaultConfig())

func PlanBuy(asks []*order.OrderWithMetadata, target decimal.Decimal, ctx Context) FillPlan {
	return defaultPlanner.PlanBuy(asks, target, ctx)
}

func PlanSell(bids []*order.OrderWithMetadata, target decimal.Decimal, ctx Context) FillPlan {
	return defaultPlanner.PlanSell(bids, target, ctx)
}

func EstimateImpact(plan FillPlan, referencePrice decimal.Decimal) Impact {
	return defaultPlanner.EstimateImpact(plan, referencePrice)
}

func EstimateProtocolFee(plan FillPlan, gasPrice, referencePrice decimal.Decimal) decimal.Decimal {
	return defaultPlanner.EstimateProtocolFee(plan, gasPrice, referencePrice)
}
