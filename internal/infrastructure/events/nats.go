package events

import (
	"context"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/wb-go/wbf/zlog"
	"github.com/yokitheyo/wmremover/internal/config"
	"github.com/yokitheyo/wmremover/internal/domain"
)

type natsConn interface {
	Publish(subject string, data []byte) error
	Drain() error
}

// NATSPublisher sends events to <subject>.<session id>.
type NATSPublisher struct {
	conn    natsConn
	subject string
}

func NewNATSPublisher(cfg config.EventsConfig) (*NATSPublisher, error) {
	nc, err := nats.Connect(cfg.NatsURL,
		nats.Name("wmremover"),
		nats.MaxReconnects(10),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats %s: %w", cfg.NatsURL, err)
	}
	zlog.Logger.Info().Str("url", cfg.NatsURL).Str("subject", cfg.Subject).Msg("NATS publisher initialized")
	return &NATSPublisher{conn: nc, subject: cfg.Subject}, nil
}

func (p *NATSPublisher) Publish(ctx context.Context, event domain.ProgressEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := encode(event)
	if err != nil {
		return err
	}
	subject := p.subject + "." + event.SessionID
	if err := p.conn.Publish(subject, data); err != nil {
		zlog.Logger.Error().Err(err).Str("subject", subject).Msg("failed to publish nats event")
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	return nil
}

func (p *NATSPublisher) Close() error {
	return p.conn.Drain()
}
