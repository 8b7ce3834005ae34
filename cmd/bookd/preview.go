package main

import (
	"context"
	"time"

	"github.com/joripage/optionbook/pkg/gasprice"
	"github.com/joripage/optionbook/pkg/logging"
	"github.com/joripage/optionbook/pkg/orderbook"
	"github.com/joripage/optionbook/pkg/planner"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// previewer periodically logs what buying and selling a fixed size would
// cost on every tracked book. It only reads the store.
type previewer struct {
	planner  *planner.Planner
	store    *orderbook.Store
	oracle   gasprice.Oracle
	fallback decimal.Decimal
	amount   decimal.Decimal
	logger   *logging.Logger
}

func (p *previewer) run(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.once(ctx)
		}
	}
}

func (p *previewer) pricing(ctx context.Context) planner.Context {
	pc := planner.Context{ReferencePrice: p.fallback}
	if p.oracle == nil {
		return pc
	}
	prices, err := p.oracle.Prices(ctx)
	if err != nil {
		p.logger.Warn("gas price unavailable, protocol fee omitted", zap.Error(err))
		return pc
	}
	pc.GasPrice = prices.Fastest
	pc.ReferencePrice = prices.NativePriceOr(p.fallback)
	return pc
}

func (p *previewer) once(ctx context.Context) {
	pc := p.pricing(ctx)
	for _, book := range p.store.Books() {
		buy := p.planner.PlanBuy(book.Asks, p.amount, pc)
		sell := p.planner.PlanSell(book.Bids, p.amount, pc)
		p.log(book, "buy", buy)
		p.log(book, "sell", sell)
	}

	for underlying, byExpiry := range p.store.Liquidity() {
		for expiry, amount := range byExpiry {
			p.logger.Debug("liquidity",
				zap.String("underlying", underlying.Hex()),
				zap.Int64("expiry", expiry),
				zap.String("amount", amount.String()))
		}
	}
}

func (p *previewer) log(book orderbook.OrderBook, action string, plan planner.FillPlan) {
	impact := p.planner.EstimateImpact(plan, decimal.Zero)
	fields := []zap.Field{
		zap.String("instrument", book.InstrumentID.Hex()),
		zap.String("action", action),
		zap.Int("orders", len(plan.OrdersToFill)),
		zap.String("filled", plan.TotalFilled.String()),
		zap.String("unmet", plan.Unmet.String()),
		zap.String("blended_price", impact.BlendedPrice.String()),
		zap.String("impact", impact.Ratio.StringFixed(4)),
		zap.String("protocol_fee", plan.ProtocolFee.String()),
		zap.String("error", string(plan.Error)),
	}
	if impact.IsLarge {
		p.logger.Warn("large market impact", fields...)
		return
	}
	p.logger.Info("preview", fields...)
}
