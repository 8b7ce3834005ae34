package config

import (
	"fmt"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joripage/optionbook/pkg/feed"
	"github.com/joripage/optionbook/pkg/gasprice"
	redis_wrapper "github.com/joripage/optionbook/pkg/infra/redis"
	"github.com/joripage/optionbook/pkg/notify"
	"github.com/joripage/optionbook/pkg/orderbook"
	"github.com/joripage/optionbook/pkg/planner"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

type AppConfig struct {
	ServiceName string                     `yaml:"service_name"`
	LogLevel    string                     `yaml:"log_level"`
	Network     NetworkConfig              `yaml:"network"`
	Feed        FeedConfig                 `yaml:"feed"`
	Planner     planner.Config             `yaml:"planner"`
	GasOracle   gasprice.Config            `yaml:"gas_oracle"`
	Redis       *redis_wrapper.RedisConfig `yaml:"redis"`
	Kafka       notify.KafkaConfig         `yaml:"kafka"`
	Instruments []InstrumentConfig         `yaml:"instruments"`
}

type NetworkConfig struct {
	Name         string `yaml:"name"`
	ChainID      int64  `yaml:"chain_id"`
	PaymentToken string `yaml:"payment_token"`
	APIURL       string `yaml:"api_url"`
	StreamURL    string `yaml:"stream_url"`
	OwnAddress   string `yaml:"own_address"`
	// NativePrice is used when the gas oracle does not report one.
	NativePrice  string `yaml:"native_price"`
}

type FeedConfig struct {
	ReconnectAttempts int           `yaml:"reconnect_attempts"`
	ReconnectInterval time.Duration `yaml:"reconnect_interval"`
	ExpireInterval    time.Duration `yaml:"expire_interval"`
	SnapshotTimeout   time.Duration `yaml:"snapshot_timeout"`
	MaxPendingUpdates int           `yaml:"max_pending_updates"`
	ResyncOnReconnect bool          `yaml:"resync_on_reconnect"`
	PerPage           int           `yaml:"per_page"`
	Concurrency       int           `yaml:"concurrency"`
}

type InstrumentConfig struct {
	ID         string `yaml:"id"`
	Underlying string `yaml:"underlying"`
	Expiry     int64  `yaml:"expiry"`
	Decimals   int32  `yaml:"decimals"`
}

// Load load config from file and environment variables.
func Load(filePath string) (*AppConfig, error) {
	if len(filePath) == 0 {
		filePath = os.Getenv("CONFIG_FILE")
	}

	sugar := zap.S().With("func", "config.Load", "filePath", filePath)
	sugar.Debug("Load config...")

	configBytes, err := os.ReadFile(filePath)
	if err != nil {
		sugar.Error("Failed to load config file")
		return nil, err
	}
	configBytes = []byte(os.ExpandEnv(string(configBytes)))

	cfg := &AppConfig{}
	if err := yaml.Unmarshal(configBytes, cfg); err != nil {
		sugar.Error("Failed to parse config file")
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	zap.S().Debugf("config: %+v", cfg)
	return cfg, nil
}

func (c *AppConfig) Validate() error {
	n := c.Network
	if n.PaymentToken == "" || n.APIURL == "" || n.StreamURL == "" {
		return ErrMissingNetwork
	}
	if err := checkAddress("network.payment_token", n.PaymentToken); err != nil {
		return err
	}
	if n.OwnAddress != "" {
		if err := checkAddress("network.own_address", n.OwnAddress); err != nil {
			return err
		}
	}
	for i, inst := range c.Instruments {
		if err := checkAddress(fmt.Sprintf("instruments[%d].id", i), inst.ID); err != nil {
			return err
		}
		if inst.Underlying != "" {
			if err := checkAddress(fmt.Sprintf("instruments[%d].underlying", i), inst.Underlying); err != nil {
				return err
			}
		}
	}
	return nil
}

func checkAddress(field, value string) error {
	if !common.IsHexAddress(value) {
		return fmt.Errorf("%w: %s=%q", ErrBadAddress, field, value)
	}
	return nil
}

func (c *AppConfig) PaymentToken() common.Address {
	return common.HexToAddress(c.Network.PaymentToken)
}

func (c *AppConfig) OwnAddress() common.Address {
	if c.Network.OwnAddress == "" {
		return common.Address{}
	}
	return common.HexToAddress(c.Network.OwnAddress)
}

func (c *AppConfig) InstrumentList() []orderbook.Instrument {
	out := make([]orderbook.Instrument, 0, len(c.Instruments))
	for _, i := range c.Instruments {
		inst := orderbook.Instrument{
			ID:       common.HexToAddress(i.ID),
			Expiry:   i.Expiry,
			Decimals: i.Decimals,
		}
		if i.Underlying != "" {
			inst.Underlying = common.HexToAddress(i.Underlying)
		}
		out = append(out, inst)
	}
	return out
}

// SupervisorConfig leaves zero tunables for feed.NewSupervisor to default.
func (c *AppConfig) SupervisorConfig() feed.Config {
	return feed.Config{
		Network:           c.Network.Name,
		PaymentToken:      c.PaymentToken(),
		OwnAddress:        c.OwnAddress(),
		ReconnectAttempts: c.Feed.ReconnectAttempts,
		ReconnectInterval: c.Feed.ReconnectInterval,
		ExpireInterval:    c.Feed.ExpireInterval,
		SnapshotTimeout:   c.Feed.SnapshotTimeout,
		MaxPendingUpdates: c.Feed.MaxPendingUpdates,
		ResyncOnReconnect: c.Feed.ResyncOnReconnect,
	}
}

func (c *AppConfig) RestConfig() feed.RestConfig {
	return feed.RestConfig{
		BaseURL:      c.Network.APIURL,
		PaymentToken: c.PaymentToken(),
		ChainID:      c.Network.ChainID,
		PerPage:      c.Feed.PerPage,
		Concurrency:  c.Feed.Concurrency,
		Timeout:      c.Feed.SnapshotTimeout,
	}
}
