package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joripage/optionbook/pkg/order"
	"github.com/shopspring/decimal"
)

var (
	me       = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	stranger = common.HexToAddress("0x00000000000000000000000000000000000000bb")
)

func TestTagger(t *testing.T) {
	mine := &order.OrderWithMetadata{Order: order.Order{Maker: me}}
	theirs := &order.OrderWithMetadata{Order: order.Order{Maker: stranger}}

	tagger := NewTagger(me)
	if !tagger.IsOwn(mine) || tagger.IsOwn(theirs) {
		t.Fatalf("tagger should match only the owner")
	}

	if NewTagger(common.Address{}).IsOwn(&order.OrderWithMetadata{}) {
		t.Fatalf("empty owner must not match zero maker")
	}

	var nilTagger *Tagger
	if nilTagger.IsOwn(mine) {
		t.Fatalf("nil tagger must not match")
	}
}

func TestEventIDIsStable(t *testing.T) {
	o := &order.OrderWithMetadata{
		Order:                        order.Order{Maker: me},
		Hash:                         "0xabc",
		State:                        order.StateFillable,
		RemainingFillableTakerAmount: decimal.NewFromInt(5),
	}
	inst := common.HexToAddress("0x01")

	a := NewOwnOrderEvent("s1", inst, order.ASK, o, time.Unix(1, 0))
	b := NewOwnOrderEvent("s1", inst, order.ASK, o, time.Unix(2, 0))
	if a.EventID != b.EventID {
		t.Fatalf("same order state should give same event id: %s vs %s", a.EventID, b.EventID)
	}

	o.RemainingFillableTakerAmount = decimal.NewFromInt(3)
	c := NewOwnOrderEvent("s1", inst, order.ASK, o, time.Unix(3, 0))
	if c.EventID == a.EventID {
		t.Fatalf("a fill should change the event id")
	}
	if c.Maker != me || c.Side != order.ASK {
		t.Fatalf("unexpected event %+v", c)
	}
}

func TestKafkaPublisherRequiresConfig(t *testing.T) {
	if _, err := NewKafkaPublisher(KafkaConfig{}); !errors.Is(err, errKafkaNotConfigured) {
		t.Fatalf("expected errKafkaNotConfigured, got %v", err)
	}

	p, err := NewKafkaPublisher(KafkaConfig{Brokers: []string{"localhost:9092"}, Topic: "own-orders"})
	if err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	if p.w.Topic != "own-orders" || p.w.BatchSize != 100 {
		t.Fatalf("defaults not applied: %+v", p.w)
	}
	_ = p.Close()
}

func TestLogPublisher(t *testing.T) {
	var got []OwnOrderEvent
	p := LogPublisher{Log: func(ev OwnOrderEvent) { got = append(got, ev) }}

	if err := p.Publish(context.Background(), OwnOrderEvent{OrderHash: "0x1"}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if len(got) != 1 || got[0].OrderHash != "0x1" {
		t.Fatalf("unexpected events %+v", got)
	}
}
