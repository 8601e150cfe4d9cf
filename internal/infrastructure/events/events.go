// Package events publishes batch progress notifications.
package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/wb-go/wbf/zlog"
	"github.com/yokitheyo/wmremover/internal/config"
	"github.com/yokitheyo/wmremover/internal/domain"
)

func New(cfg config.EventsConfig) (domain.EventPublisher, error) {
	switch cfg.Type {
	case "", "none":
		return Noop{}, nil
	case "kafka":
		return NewKafkaPublisher(cfg), nil
	case "nats":
		return NewNATSPublisher(cfg)
	default:
		zlog.Logger.Error().Str("type", cfg.Type).Msg("Unsupported events type")
		return nil, fmt.Errorf("unsupported events type: %s", cfg.Type)
	}
}

type Noop struct{}

func (Noop) Publish(context.Context, domain.ProgressEvent) error { return nil }
func (Noop) Close() error                                        { return nil }

func encode(event domain.ProgressEvent) ([]byte, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("marshal event: %w", err)
	}
	return data, nil
}
