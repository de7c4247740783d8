package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// natsConn is the subset of *nats.Conn the publisher uses
type natsConn interface {
	PublishMsg(msg *nats.Msg) error
	Drain() error
}

// NATSPublisher publishes each event on subject <prefix>.<event type>
type NATSPublisher struct {
	nc     natsConn
	prefix string
	logger *zap.Logger
}

// ConnectNATS connects to a NATS server with unlimited reconnects
func ConnectNATS(url, prefix string, logger *zap.Logger) (*NATSPublisher, error) {
	nc, err := nats.Connect(url,
		nats.Name("manual-share"),
		nats.ReconnectWait(2*time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", zap.Error(err))
			}
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			logger.Info("nats reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	logger.Info("connected to nats", zap.String("prefix", prefix))
	return newNATSPublisher(nc, prefix, logger), nil
}

func newNATSPublisher(nc natsConn, prefix string, logger *zap.Logger) *NATSPublisher {
	return &NATSPublisher{
		nc:     nc,
		prefix: prefix,
		logger: logger,
	}
}

// Publish sends the event with a Nats-Msg-Id header for server side de-duplication
func (p *NATSPublisher) Publish(ctx context.Context, event *Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := nats.NewMsg(routingKey(p.prefix, event.Type))
	msg.Data = data
	msg.Header.Set(nats.MsgIdHdr, event.ID.String())

	if err := p.nc.PublishMsg(msg); err != nil {
		return fmt.Errorf("nats publish failed: %w", err)
	}

	p.logger.Debug("event published",
		zap.String("subject", msg.Subject),
		zap.String("event_id", event.ID.String()))
	return nil
}

// Close drains pending messages and closes the connection
func (p *NATSPublisher) Close() error {
	return p.nc.Drain()
}
