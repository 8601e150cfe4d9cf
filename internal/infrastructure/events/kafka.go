package events

import (
	"context"

	wbfkafka "github.com/wb-go/wbf/kafka"
	wbfretry "github.com/wb-go/wbf/retry"
	"github.com/wb-go/wbf/zlog"
	"github.com/yokitheyo/wmremover/internal/config"
	"github.com/yokitheyo/wmremover/internal/domain"
	"github.com/yokitheyo/wmremover/internal/retry"
)

type kafkaSender interface {
	SendWithRetry(ctx context.Context, strategy wbfretry.Strategy, key, value []byte) error
	Close() error
}

// KafkaPublisher writes events keyed by session id so a session stays on one partition.
type KafkaPublisher struct {
	client   kafkaSender
	topic    string
	strategy wbfretry.Strategy
}

// NewKafkaPublisher создаёт Kafka producer через wbf.
func NewKafkaPublisher(cfg config.EventsConfig) *KafkaPublisher {
	client := wbfkafka.NewProducer(cfg.Brokers, cfg.Topic)
	zlog.Logger.Info().
		Strs("brokers", cfg.Brokers).
		Str("topic", cfg.Topic).
		Msg("Kafka producer initialized (wbf)")
	return &KafkaPublisher{
		client:   client,
		topic:    cfg.Topic,
		strategy: retry.DefaultStrategy,
	}
}

func (p *KafkaPublisher) Publish(ctx context.Context, event domain.ProgressEvent) error {
	data, err := encode(event)
	if err != nil {
		return err
	}
	if err := p.client.SendWithRetry(ctx, p.strategy, []byte(event.SessionID), data); err != nil {
		zlog.Logger.Error().
			Err(err).
			Str("session_id", event.SessionID).
			Str("event", event.Type).
			Msg("Failed to send Kafka message with retry")
		return err
	}
	zlog.Logger.Debug().
		Str("session_id", event.SessionID).
		Str("event", event.Type).
		Msg("Message sent to Kafka")
	return nil
}

// Close закрывает продюсер.
func (p *KafkaPublisher) Close() error {
	if err := p.client.Close(); err != nil {
		zlog.Logger.Error().Err(err).Msg("Failed to close Kafka producer")
		return err
	}
	zlog.Logger.Info().Msg("Kafka producer closed successfully")
	return nil
}
