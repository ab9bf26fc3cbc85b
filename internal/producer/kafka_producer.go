package producer

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"

	sharedkafka "github.com/rportela/live-bet-bot/internal/shared/kafka"
	"github.com/rportela/live-bet-bot/pkg/contracts/events"
)

// KafkaPublisher publica os eventos de ciclo de vida das apostas.
// A publicação é best-effort: falha de broker não pode travar o ciclo,
// então o chamador apenas loga o erro e segue
type KafkaPublisher struct {
	Placed  *kafka.Writer
	Settled *kafka.Writer
}

func NewKafkaPublisher(placed, settled *kafka.Writer) *KafkaPublisher {
	return &KafkaPublisher{Placed: placed, Settled: settled}
}

func (p *KafkaPublisher) PublishBetPlaced(ctx context.Context, e events.BetPlaced) error {
	e.TsUnixMs = time.Now().UnixMilli()
	b, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return sharedkafka.WriteJSON(ctx, p.Placed, strconv.Itoa(e.FixtureID), b)
}

func (p *KafkaPublisher) PublishBetSettled(ctx context.Context, e events.BetSettled) error {
	e.TsUnixMs = time.Now().UnixMilli()
	b, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return sharedkafka.WriteJSON(ctx, p.Settled, strconv.Itoa(e.FixtureID), b)
}
