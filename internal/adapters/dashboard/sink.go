// Package dashboard pushes samples to a cloud dashboard as three virtual pin
// writes over one persistent websocket.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"pulsemeter/internal/config"
	"pulsemeter/internal/domain"
	"pulsemeter/internal/logger"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 2 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 8192

	EventVirtualWrite = "virtual_write"
)

// Message is one virtual pin update.
type Message struct {
	Type    string `json:"type"`
	Channel string `json:"channel"`
	Event   string `json:"event"`
	Payload any    `json:"payload"`
}

type Sink struct {
	cfg config.DashboardConfig
	log logger.Logger

	dialer websocket.Dialer

	// pongWait bounds silence from the server; pings go out at 9/10 of it.
	pongWait   time.Duration
	pingPeriod time.Duration

	mu   sync.Mutex
	conn *websocket.Conn
	dead *atomic.Bool
}

func NewSink(cfg config.DashboardConfig, handshakeTimeout time.Duration, log logger.Logger) *Sink {
	return &Sink{
		cfg: cfg,
		log: log,

		dialer: websocket.Dialer{HandshakeTimeout: handshakeTimeout},

		pongWait:   pongWait,
		pingPeriod: pingPeriod,
	}
}

func (s *Sink) Name() string {
	return "dashboard"
}

// Send writes energy, power and pulses as three separate channel updates.
// Write errors are sticky on a websocket connection, so once one update
// fails the rest fail with it. The socket is then dropped and redialled on
// the next cycle.
func (s *Sink) Send(ctx context.Context, sample domain.Sample) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn == nil || s.dead.Load() {
		s.closeLocked()
		if err := s.dialLocked(ctx); err != nil {
			return err
		}
	}

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(writeWait)
	}
	_ = s.conn.SetWriteDeadline(deadline)

	updates := []struct {
		pin   string
		value any
	}{
		{s.cfg.EnergyPin, sample.Energy},
		{s.cfg.PowerPin, sample.Power},
		{s.cfg.PulsesPin, sample.Pulses},
	}

	var errs []error
	for _, u := range updates {
		msg := Message{
			Type:    "event",
			Channel: u.pin,
			Event:   EventVirtualWrite,
			Payload: u.value,
		}
		if err := s.conn.WriteJSON(msg); err != nil {
			errs = append(errs, fmt.Errorf("write %s: %w", u.pin, err))
		}
	}

	if len(errs) > 0 {
		s.closeLocked()
		return errors.Join(errs...)
	}

	return nil
}

func (s *Sink) dialLocked(ctx context.Context) error {
	header := make(http.Header)
	header.Set("Authorization", "Bearer "+s.cfg.Token)

	conn, res, err := s.dialer.DialContext(ctx, s.cfg.URL, header)
	if err != nil {
		if res != nil && res.StatusCode == http.StatusUnauthorized {
			return fmt.Errorf("dashboard dial: unauthorized (check token)")
		}
		return fmt.Errorf("dashboard dial: %w", err)
	}

	dead := &atomic.Bool{}
	s.conn = conn
	s.dead = dead
	s.log.Info("dashboard connected", "url", s.cfg.URL)

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.readPump(conn, dead)
	}()
	go s.pingPump(conn, dead, done)

	return nil
}

// readPump drains inbound frames so control messages are processed, and flags
// the connection dead once reading fails.
func (s *Sink) readPump(conn *websocket.Conn, dead *atomic.Bool) {
	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(s.pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(s.pongWait))
	})
	conn.SetPingHandler(func(data string) error {
		_ = conn.SetReadDeadline(time.Now().Add(s.pongWait))
		return conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(writeWait))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			dead.Store(true)
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.log.Warn("dashboard connection lost", "error", err)
			}
			return
		}
	}
}

// pingPump keeps an otherwise quiet connection alive between cycles. It stops
// when the read side exits. WriteControl may run concurrently with Send.
func (s *Sink) pingPump(conn *websocket.Conn, dead *atomic.Bool, done <-chan struct{}) {
	ticker := time.NewTicker(s.pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				dead.Store(true)
				s.log.Debug("dashboard ping failed", "error", err)
				return
			}
		}
	}
}

func (s *Sink) closeLocked() {
	if s.conn == nil {
		return
	}
	_ = s.conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "closing"),
		time.Now().Add(writeWait),
	)
	_ = s.conn.Close()
	s.conn = nil
}

func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closeLocked()
	return nil
}
