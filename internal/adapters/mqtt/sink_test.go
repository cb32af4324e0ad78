package mqtt

import (
	"context"
	"errors"
	"testing"
	"time"

	"pulsemeter/internal/domain"
	"pulsemeter/internal/logger"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeToken struct {
	done chan struct{}
	err  error
}

func completed(err error) *fakeToken {
	t := &fakeToken{done: make(chan struct{}), err: err}
	close(t.done)
	return t
}

func pending() *fakeToken {
	return &fakeToken{done: make(chan struct{})}
}

func (t *fakeToken) Wait() bool { <-t.done; return true }

func (t *fakeToken) WaitTimeout(d time.Duration) bool {
	select {
	case <-t.done:
		return true
	case <-time.After(d):
		return false
	}
}

func (t *fakeToken) Done() <-chan struct{} { return t.done }
func (t *fakeToken) Error() error          { return t.err }

var _ paho.Token = (*fakeToken)(nil)

type published struct {
	topic    string
	qos      byte
	retained bool
	payload  []byte
}

type fakeClient struct {
	connected  bool
	connectErr error
	connects   int

	publishToken paho.Token
	published    []published
}

func (c *fakeClient) Connect() paho.Token {
	c.connects++
	if c.connectErr != nil {
		return completed(c.connectErr)
	}
	c.connected = true
	return completed(nil)
}

func (c *fakeClient) IsConnected() bool { return c.connected }

func (c *fakeClient) Publish(topic string, qos byte, retained bool, payload any) paho.Token {
	c.published = append(c.published, published{topic, qos, retained, payload.([]byte)})
	if c.publishToken != nil {
		return c.publishToken
	}
	return completed(nil)
}

func (c *fakeClient) Disconnect(uint) { c.connected = false }

func TestEncodePayload(t *testing.T) {
	raw, err := EncodePayload(domain.Sample{Pulses: 50, Power: 36})
	require.NoError(t, err)
	assert.JSONEq(t, `{"pulses":"50","power":"36.00"}`, string(raw))
}

func TestPayloadRoundTrip(t *testing.T) {
	for _, s := range []domain.Sample{
		{Pulses: 0, Power: 0},
		{Pulses: 50, Power: 36},
		{Pulses: 1234, Power: 888.123456},
	} {
		raw, err := EncodePayload(s)
		require.NoError(t, err)

		pulses, power, err := DecodePayload(raw)
		require.NoError(t, err)
		assert.Equal(t, s.Pulses, pulses)
		assert.InDelta(t, s.Power, power, 0.005)
	}
}

func TestDecodePayload_Errors(t *testing.T) {
	_, _, err := DecodePayload([]byte(`not json`))
	assert.Error(t, err)

	_, _, err = DecodePayload([]byte(`{"pulses":"x","power":"1"}`))
	assert.ErrorContains(t, err, "pulses")

	_, _, err = DecodePayload([]byte(`{"pulses":"1","power":"y"}`))
	assert.ErrorContains(t, err, "power")
}

func TestSink_PublishesRetained(t *testing.T) {
	c := &fakeClient{connected: true}
	s := NewSinkWithClient(c, "meter/power", logger.Discard())

	require.NoError(t, s.Send(context.Background(), domain.Sample{Pulses: 50, Power: 36}))

	require.Len(t, c.published, 1)
	p := c.published[0]
	assert.Equal(t, "meter/power", p.topic)
	assert.True(t, p.retained)
	assert.Equal(t, qosAtMostOnce, p.qos)
	assert.JSONEq(t, `{"pulses":"50","power":"36.00"}`, string(p.payload))
}

func TestSink_SendWhileDisconnected(t *testing.T) {
	c := &fakeClient{}
	s := NewSinkWithClient(c, "meter/power", logger.Discard())

	assert.False(t, s.Connected())
	assert.ErrorIs(t, s.Send(context.Background(), domain.Sample{}), domain.ErrNotConnected)
	assert.Empty(t, c.published)
}

func TestSink_Reconnect(t *testing.T) {
	c := &fakeClient{connectErr: errors.New("refused")}
	s := NewSinkWithClient(c, "meter/power", logger.Discard())

	err := s.Reconnect(context.Background())
	assert.ErrorContains(t, err, "refused")
	assert.False(t, s.Connected())

	c.connectErr = nil
	require.NoError(t, s.Reconnect(context.Background()))
	assert.True(t, s.Connected())
	assert.Equal(t, 2, c.connects)

	require.NoError(t, s.Close())
	assert.False(t, s.Connected())
}

func TestSink_PublishBoundedByContext(t *testing.T) {
	c := &fakeClient{connected: true, publishToken: pending()}
	s := NewSinkWithClient(c, "meter/power", logger.Discard())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := s.Send(ctx, domain.Sample{})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, "mqtt", s.Name())
}
