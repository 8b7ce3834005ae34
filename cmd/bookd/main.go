package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joripage/optionbook/config"
	"github.com/joripage/optionbook/pkg/feed"
	"github.com/joripage/optionbook/pkg/gasprice"
	redis_wrapper "github.com/joripage/optionbook/pkg/infra/redis"
	"github.com/joripage/optionbook/pkg/logging"
	"github.com/joripage/optionbook/pkg/notify"
	"github.com/joripage/optionbook/pkg/orderbook"
	"github.com/joripage/optionbook/pkg/planner"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

func main() {
	var (
		configFile      string
		previewInterval time.Duration
		previewAmount   string
	)
	flag.StringVar(&configFile, "config-file", "", "Specify config file path")
	flag.DurationVar(&previewInterval, "preview-interval", 30*time.Second, "How often to log buy/sell previews, 0 disables")
	flag.StringVar(&previewAmount, "preview-amount", "100000000", "Preview size in instrument raw units")
	flag.Parse()

	cfg, err := config.Load(configFile)
	if err != nil {
		panic(err)
	}

	logger := logging.NewLogger(logging.ParseLevel(cfg.LogLevel))
	defer logger.Sync()

	configBytes, err := json.MarshalIndent(cfg, "", "   ")
	if err != nil {
		zap.S().Warnf("could not convert config to JSON: %v", err)
	} else {
		zap.S().Debugf("load config %s", string(configBytes))
	}

	amount, err := decimal.NewFromString(previewAmount)
	if err != nil {
		zap.S().Fatalf("bad -preview-amount %q: %v", previewAmount, err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// redis is optional; without it every oracle call goes upstream
	var redisClient redis.UniversalClient
	if cfg.Redis.Enabled() {
		client, err := redis_wrapper.InitRedis(ctx, cfg.Redis)
		if err != nil {
			zap.S().Errorf("init redis fail with err: %v", err)
			panic(err)
		}
		defer client.Close()
		redisClient = client
	}

	var oracle gasprice.Oracle
	if cfg.GasOracle.URL != "" {
		oracle, err = gasprice.New(cfg.GasOracle, redisClient, cfg.Network.Name, logger.Zap())
		if err != nil {
			panic(err)
		}
	}

	var publisher notify.Publisher = notify.LogPublisher{Log: func(ev notify.OwnOrderEvent) {
		logger.Info("own order", zap.String("order_hash", ev.OrderHash), zap.String("state", string(ev.State)))
	}}
	if len(cfg.Kafka.Brokers) > 0 {
		kp, err := notify.NewKafkaPublisher(cfg.Kafka)
		if err != nil {
			panic(err)
		}
		publisher = kp
	}
	defer publisher.Close()

	instruments := cfg.InstrumentList()
	store := orderbook.NewStore(instruments, orderbook.WithLogger(logger.Zap()))
	sup := feed.NewSupervisor(
		cfg.SupervisorConfig(),
		store,
		feed.NewRestSnapshotClient(cfg.RestConfig(), logger.Zap()),
		feed.NewWSStream(cfg.Network.StreamURL, nil),
		instruments,
		feed.WithLogger(logger),
		feed.WithPublisher(publisher),
		feed.WithStatusHandler(func(ev feed.StatusEvent) {
			fields := []zap.Field{zap.String("status", string(ev.Status)), zap.Uint64("generation", ev.Generation)}
			if ev.Err != nil {
				fields = append(fields, zap.Error(ev.Err))
			}
			logger.Info("feed status", fields...)
		}),
	)

	fallbackNative := decimal.Zero
	if cfg.Network.NativePrice != "" {
		fallbackNative, err = decimal.NewFromString(cfg.Network.NativePrice)
		if err != nil {
			zap.S().Fatalf("bad network.native_price %q: %v", cfg.Network.NativePrice, err)
		}
	}

	p := &previewer{
		planner:  planner.New(cfg.Planner),
		store:    store,
		oracle:   oracle,
		fallback: fallbackNative,
		amount:   amount,
		logger:   logger,
	}
	if previewInterval > 0 {
		go p.run(ctx, previewInterval)
	}

	zap.S().Infof("%s started for %d instruments", cfg.ServiceName, len(instruments))
	if err := sup.Run(ctx); err != nil && ctx.Err() == nil {
		zap.S().Errorf("supervisor stopped: %v", err)
	}
	zap.S().Info("Exited cleanly.")
}
