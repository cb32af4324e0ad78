// Package mqtt publishes samples to a broker topic with retained delivery.
package mqtt

import (
	"context"
	"errors"
	"fmt"
	"time"

	"pulsemeter/internal/config"
	"pulsemeter/internal/domain"
	"pulsemeter/internal/logger"

	paho "github.com/eclipse/paho.mqtt.golang"
)

const qosAtMostOnce byte = 0

// Client is the part of the paho client the sink uses.
type Client interface {
	Connect() paho.Token
	IsConnected() bool
	Publish(topic string, qos byte, retained bool, payload any) paho.Token
	Disconnect(quiesce uint)
}

var _ Client = paho.Client(nil)

// Sink keeps one broker session across cycles. It never reconnects on its
// own: the report cycle calls Reconnect at most once per cycle while the
// session is down.
type Sink struct {
	client Client
	topic  string
	log    logger.Logger
}

func NewSink(cfg config.MQTTConfig, timeout time.Duration, log logger.Logger) *Sink {
	opts := paho.NewClientOptions().
		AddBroker(cfg.BrokerURL).
		SetClientID(cfg.ClientID).
		SetUsername(cfg.Username).
		SetPassword(cfg.Password).
		SetAutoReconnect(false).
		SetConnectRetry(false).
		SetConnectTimeout(timeout).
		SetWriteTimeout(timeout).
		SetCleanSession(true).
		SetOrderMatters(false)

	opts.SetOnConnectHandler(func(paho.Client) {
		log.Info("mqtt connected", "broker", cfg.BrokerURL, "client_id", cfg.ClientID)
	})
	opts.SetConnectionLostHandler(func(_ paho.Client, err error) {
		log.Warn("mqtt connection lost", "error", err)
	})

	return NewSinkWithClient(paho.NewClient(opts), cfg.Topic, log)
}

func NewSinkWithClient(client Client, topic string, log logger.Logger) *Sink {
	return &Sink{
		client: client,
		topic:  topic,
		log:    log,
	}
}

func (s *Sink) Name() string {
	return "mqtt"
}

func (s *Sink) Connected() bool {
	return s.client.IsConnected()
}

func (s *Sink) Reconnect(ctx context.Context) error {
	s.log.Debug("mqtt reconnect attempt", "topic", s.topic)

	if err := wait(ctx, s.client.Connect()); err != nil {
		return fmt.Errorf("mqtt connect: %w", err)
	}
	return nil
}

func (s *Sink) Send(ctx context.Context, sample domain.Sample) error {
	if !s.client.IsConnected() {
		return domain.ErrNotConnected
	}

	payload, err := EncodePayload(sample)
	if err != nil {
		return fmt.Errorf("mqtt encode: %w", err)
	}

	if err := wait(ctx, s.client.Publish(s.topic, qosAtMostOnce, true, payload)); err != nil {
		return fmt.Errorf("mqtt publish %s: %w", s.topic, err)
	}

	s.log.Debug("mqtt published", "topic", s.topic, "payload", string(payload))
	return nil
}

func (s *Sink) Close() error {
	if s.client.IsConnected() {
		s.client.Disconnect(250)
	}
	return nil
}

var errTokenNil = errors.New("nil token")

func wait(ctx context.Context, t paho.Token) error {
	if t == nil {
		return errTokenNil
	}

	select {
	case <-t.Done():
		return t.Error()
	case <-ctx.Done():
		return ctx.Err()
	}
}
