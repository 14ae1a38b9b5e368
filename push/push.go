// Package push implements the optional real-time payment status channel.
// The coordinator treats it as best-effort: any failure here falls back
// silently to polling.
package push

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/xeipuuv/gojsonschema"

	intentpay "github.com/RozoAI/intent-pay-sub000"
)

// ErrUnavailable is returned by channels that have no live endpoint.
var ErrUnavailable = errors.New("push: channel unavailable")

// statusUpdateSchema validates incoming messages before they reach the
// coordinator. Anything that doesn't match is dropped, not dispatched.
const statusUpdateSchema = `{
	"type": "object",
	"required": ["payment_id", "status"],
	"properties": {
		"payment_id": {"type": "string", "minLength": 1},
		"status": {"type": "string", "minLength": 1},
		"source_txhash": {"type": "string"},
		"destination_txhash": {"type": "string"}
	}
}`

var schemaLoader = gojsonschema.NewStringLoader(statusUpdateSchema)

// NormalizeStatus folds the service's divergent status spellings into the
// canonical set. The "rozo" variants are equivalent to their plain forms.
func NormalizeStatus(status string) string {
	switch status {
	case "payment_rozo_completed":
		return string(intentpay.OrderStatusCompleted)
	case "payout_rozo_completed":
		return string(intentpay.OrderStatusPayoutCompleted)
	default:
		return status
	}
}

// ParseStatusUpdate validates and decodes a raw push message. It returns an
// error for malformed messages; the caller logs and skips them.
func ParseStatusUpdate(msg []byte) (intentpay.StatusUpdate, error) {
	result, err := gojsonschema.Validate(schemaLoader, gojsonschema.NewBytesLoader(msg))
	if err != nil {
		return intentpay.StatusUpdate{}, fmt.Errorf("push: validating status update: %w", err)
	}
	if !result.Valid() {
		return intentpay.StatusUpdate{}, fmt.Errorf("push: invalid status update: %v", result.Errors())
	}

	var update intentpay.StatusUpdate
	if err := json.Unmarshal(msg, &update); err != nil {
		return intentpay.StatusUpdate{}, fmt.Errorf("push: decoding status update: %w", err)
	}
	update.Status = NormalizeStatus(update.Status)
	return update, nil
}

// Channel subscribes to payment status over a websocket endpoint. Each
// subscription holds its own connection, keyed by payment id.
type Channel struct {
	endpoint string
	dialer   *websocket.Dialer
	logger   intentpay.Logger
}

// Option configures a Channel.
type Option func(*Channel)

// WithDialer overrides the websocket dialer.
func WithDialer(d *websocket.Dialer) Option {
	return func(c *Channel) {
		c.dialer = d
	}
}

// WithLogger sets the logger for dropped and malformed messages.
func WithLogger(logger intentpay.Logger) Option {
	return func(c *Channel) {
		c.logger = logger
	}
}

// NewChannel creates a push channel for a websocket endpoint
// (e.g. "wss://intent.rozo.ai/ws/payments").
func NewChannel(endpoint string, opts ...Option) *Channel {
	c := &Channel{
		endpoint: endpoint,
		dialer:   websocket.DefaultDialer,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Subscribe opens a connection scoped to one payment id and starts a read
// loop delivering validated status updates.
func (c *Channel) Subscribe(paymentID string) (intentpay.PushSubscription, error) {
	if c.endpoint == "" {
		return nil, ErrUnavailable
	}

	ctx := context.Background()
	conn, _, err := c.dialer.DialContext(ctx, c.endpoint+"?payment_id="+url.QueryEscape(paymentID), nil)
	if err != nil {
		return nil, fmt.Errorf("push: dial failed: %w", err)
	}

	frame := map[string]string{"type": "subscribe", "payment_id": paymentID}
	if err := conn.WriteJSON(frame); err != nil {
		conn.Close()
		return nil, fmt.Errorf("push: subscribe frame failed: %w", err)
	}

	sub := &subscription{
		conn:    conn,
		updates: make(chan intentpay.StatusUpdate, 8),
		logger:  c.logger,
	}
	go sub.readLoop()
	return sub, nil
}

type subscription struct {
	conn    *websocket.Conn
	updates chan intentpay.StatusUpdate
	logger  intentpay.Logger
	once    sync.Once
}

// Updates delivers validated status updates until the subscription ends.
// The channel is closed when the connection drops or on Unsubscribe.
func (s *subscription) Updates() <-chan intentpay.StatusUpdate {
	return s.updates
}

// Unsubscribe closes the connection; the read loop then closes Updates.
func (s *subscription) Unsubscribe() {
	s.once.Do(func() {
		s.conn.Close()
	})
}

func (s *subscription) readLoop() {
	defer close(s.updates)
	for {
		_, msg, err := s.conn.ReadMessage()
		if err != nil {
			return
		}
		update, err := ParseStatusUpdate(msg)
		if err != nil {
			s.logf("%v", err)
			continue
		}
		select {
		case s.updates <- update:
		default:
			// Consumer is behind; drop rather than block the read loop.
			s.logf("push: dropping status update for payment %q", update.PaymentID)
		}
	}
}

func (s *subscription) logf(format string, v ...interface{}) {
	if s.logger != nil {
		s.logger.Printf(format, v...)
	}
}

// NoopChannel is the absent-capability implementation: Subscribe always
// reports the channel unavailable and the coordinator polls instead.
type NoopChannel struct{}

// NewNoopChannel creates a channel that is never available.
func NewNoopChannel() NoopChannel {
	return NoopChannel{}
}

// Subscribe always returns ErrUnavailable.
func (NoopChannel) Subscribe(string) (intentpay.PushSubscription, error) {
	return nil, ErrUnavailable
}

var (
	_ intentpay.PushChannel = (*Channel)(nil)
	_ intentpay.PushChannel = NoopChannel{}
)
