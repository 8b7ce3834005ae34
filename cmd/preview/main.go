package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joripage/optionbook/config"
	"github.com/joripage/optionbook/pkg/feed"
	"github.com/joripage/optionbook/pkg/gasprice"
	"github.com/joripage/optionbook/pkg/logging"
	"github.com/joripage/optionbook/pkg/orderbook"
	"github.com/joripage/optionbook/pkg/planner"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type planView struct {
	Instrument   string   `json:"instrument"`
	Action       string   `json:"action"`
	Target       string   `json:"target"`
	Orders       []string `json:"orders"`
	Amounts      []string `json:"amounts"`
	TakerAmounts []string `json:"takerAmounts"`
	SumInput     string   `json:"sumInput"`
	SumOutput    string   `json:"sumOutput"`
	TotalFilled  string   `json:"totalFilled"`
	Unmet        string   `json:"unmet"`
	TakerFee     string   `json:"takerFee"`
	ProtocolFee  string   `json:"protocolFee"`
	BlendedPrice string   `json:"blendedPrice"`
	Impact       string   `json:"impact"`
	LargeImpact  bool     `json:"largeImpact"`
	Error        string   `json:"error"`
}

func newPlanView(instrument common.Address, action string, plan planner.FillPlan, impact planner.Impact) planView {
	v := planView{
		Instrument:   instrument.Hex(),
		Action:       action,
		Target:       plan.Target.String(),
		Orders:       make([]string, 0, len(plan.OrdersToFill)),
		Amounts:      strs(plan.AmountsToFill),
		TakerAmounts: strs(plan.TakerFillAmounts),
		SumInput:     plan.SumInput.String(),
		SumOutput:    plan.SumOutput.String(),
		TotalFilled:  plan.TotalFilled.String(),
		Unmet:        plan.Unmet.String(),
		TakerFee:     plan.TakerFee.String(),
		ProtocolFee:  plan.ProtocolFee.String(),
		BlendedPrice: impact.BlendedPrice.String(),
		Impact:       impact.Ratio.StringFixed(6),
		LargeImpact:  impact.IsLarge,
		Error:        string(plan.Error),
	}
	for _, o := range plan.OrdersToFill {
		v.Orders = append(v.Orders, o.Hash)
	}
	return v
}

func strs(ds []decimal.Decimal) []string {
	out := make([]string, 0, len(ds))
	for _, d := range ds {
		out = append(out, d.String())
	}
	return out
}

func main() {
	var (
		configFile string
		instrument string
		action     string
		amount     string
		gasPrice   string
	)
	flag.StringVar(&configFile, "config-file", "", "Specify config file path")
	flag.StringVar(&instrument, "instrument", "", "Instrument address; defaults to every configured instrument")
	flag.StringVar(&action, "action", "both", "buy, sell or both")
	flag.StringVar(&amount, "amount", "100000000", "Target size in instrument raw units")
	flag.StringVar(&gasPrice, "gas-price", "", "Gas price in wei; overrides the oracle")
	flag.Parse()

	logging.NewLogger(logging.WARN)

	cfg, err := config.Load(configFile)
	if err != nil {
		fail(err)
	}
	target, err := decimal.NewFromString(amount)
	if err != nil {
		fail(fmt.Errorf("bad -amount: %w", err))
	}
	if action != "buy" && action != "sell" && action != "both" {
		fail(fmt.Errorf("bad -action %q", action))
	}

	instruments := cfg.InstrumentList()
	if instrument != "" {
		if !common.IsHexAddress(instrument) {
			fail(fmt.Errorf("bad -instrument %q", instrument))
		}
		instruments = []orderbook.Instrument{{ID: common.HexToAddress(instrument)}}
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	pc, err := pricing(ctx, cfg, gasPrice)
	if err != nil {
		fail(err)
	}

	books, err := feed.NewRestSnapshotClient(cfg.RestConfig(), zap.L()).Fetch(ctx, orderbook.InstrumentIDs(instruments))
	if err != nil {
		fail(err)
	}
	// Init applies the same validity filter and ordering as the daemon.
	store := orderbook.NewStore(instruments)
	store.Apply(orderbook.Init{Books: books})

	p := planner.New(cfg.Planner)
	var views []planView
	for _, inst := range instruments {
		if action == "buy" || action == "both" {
			plan := p.PlanBuy(store.Asks(inst.ID), target, pc)
			views = append(views, newPlanView(inst.ID, "buy", plan, p.EstimateImpact(plan, decimal.Zero)))
		}
		if action == "sell" || action == "both" {
			plan := p.PlanSell(store.Bids(inst.ID), target, pc)
			views = append(views, newPlanView(inst.ID, "sell", plan, p.EstimateImpact(plan, decimal.Zero)))
		}
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "   ")
	if err := enc.Encode(views); err != nil {
		fail(err)
	}
}

func pricing(ctx context.Context, cfg *config.AppConfig, override string) (planner.Context, error) {
	var pc planner.Context
	if cfg.Network.NativePrice != "" {
		native, err := decimal.NewFromString(cfg.Network.NativePrice)
		if err != nil {
			return pc, fmt.Errorf("bad network.native_price: %w", err)
		}
		pc.ReferencePrice = native
	}

	if override != "" {
		gp, err := decimal.NewFromString(override)
		if err != nil {
			return pc, fmt.Errorf("bad -gas-price: %w", err)
		}
		pc.GasPrice = gp
		return pc, nil
	}
	if cfg.GasOracle.URL == "" {
		return pc, nil
	}

	oracle, err := gasprice.NewHTTPOracle(cfg.GasOracle)
	if err != nil {
		return pc, err
	}
	prices, err := oracle.Prices(ctx)
	if err != nil {
		return pc, err
	}
	pc.GasPrice = prices.Fastest
	pc.ReferencePrice = prices.NativePriceOr(pc.ReferencePrice)
	return pc, nil
}

func fail(err error) {
	fmt.Fprintln(os.Stderr, "preview:", err)
	os.Exit(1)
}
