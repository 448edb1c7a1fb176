package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"droppers-api/logx"
)

const relayRetryDelay = 5 * time.Second

type relayMessage struct {
	Room  string          `json:"room"`
	Frame json.RawMessage `json:"frame"`
}

// AMQPRelay mirrors hub frames through a RabbitMQ fanout exchange so clients
// connected to other instances receive them. Each instance consumes through
// its own exclusive queue and skips messages it published itself. Losing the
// broker degrades the relay to local-only delivery until it reconnects.
type AMQPRelay struct {
	url      string
	exchange string
	origin   string
	hub      *Hub
	log      logx.Logger
	retry    time.Duration

	mu   sync.Mutex
	conn *amqp.Connection
	pub  *amqp.Channel
}

var _ Relay = (*AMQPRelay)(nil)

// DialRelay connects to url and declares the fanout exchange.
func DialRelay(url, exchange string, hub *Hub, log logx.Logger) (*AMQPRelay, error) {
	r := &AMQPRelay{
		url:      url,
		exchange: exchange,
		origin:   uuid.NewString(),
		hub:      hub,
		log:      log.With(logx.String("component", "relay")),
		retry:    relayRetryDelay,
	}
	if err := r.connect(); err != nil {
		return nil, err
	}
	return r, nil
}

// connect dials the broker, declares the exchange and opens the publish
// channel. Callers hold r.mu or own r exclusively.
func (r *AMQPRelay) connect() error {
	conn, err := amqp.Dial(r.url)
	if err != nil {
		return fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("failed to open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(r.exchange, amqp.ExchangeFanout, true, false, false, false, nil); err != nil {
		_ = conn.Close()
		return fmt.Errorf("failed to declare exchange: %w", err)
	}
	r.conn, r.pub = conn, ch
	return nil
}

// reconnect replaces a closed connection. A live one is left alone.
func (r *AMQPRelay) reconnect() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.conn != nil && !r.conn.IsClosed() {
		return nil
	}
	if r.pub != nil {
		_ = r.pub.Close()
		r.pub = nil
	}
	return r.connect()
}

// publisher returns an open publish channel, reopening it on the current
// connection if needed. r.mu must be held.
func (r *AMQPRelay) publisher() (*amqp.Channel, error) {
	if r.pub != nil && !r.pub.IsClosed() {
		return r.pub, nil
	}
	if r.conn == nil || r.conn.IsClosed() {
		return nil, errors.New("relay connection is down")
	}
	ch, err := r.conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}
	r.pub = ch
	return ch, nil
}

// Forward publishes an encoded frame for room to every other instance.
func (r *AMQPRelay) Forward(ctx context.Context, room string, frame []byte) error {
	body, err := json.Marshal(relayMessage{Room: room, Frame: frame})
	if err != nil {
		return fmt.Errorf("failed to marshal relay message: %w", err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	ch, err := r.publisher()
	if err != nil {
		return fmt.Errorf("failed to publish relay message: %w", err)
	}
	err = ch.PublishWithContext(ctx, r.exchange, "", false, false, amqp.Publishing{
		ContentType: "application/json",
		AppId:       r.origin,
		Timestamp:   time.Now(),
		Body:        body,
	})
	if err != nil {
		_ = ch.Close()
		r.pub = nil
		return fmt.Errorf("failed to publish relay message: %w", err)
	}
	return nil
}

// Run consumes the exchange until ctx is done. Broker failures are logged and
// retried; Run only returns once ctx is cancelled.
func (r *AMQPRelay) Run(ctx context.Context) error {
	for {
		err := r.consume(ctx)
		if ctx.Err() != nil {
			return nil
		}
		r.log.Warn("relay consumer disconnected, retrying", logx.Err(err), logx.Duration("delay", r.retry))
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(r.retry):
		}
		if err := r.reconnect(); err != nil {
			r.log.Warn("relay reconnect failed", logx.Err(err))
		}
	}
}

func (r *AMQPRelay) consume(ctx context.Context) error {
	r.mu.Lock()
	conn := r.conn
	r.mu.Unlock()
	if conn == nil || conn.IsClosed() {
		return errors.New("relay connection is down")
	}
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("failed to open channel: %w", err)
	}
	defer ch.Close()
	closed := ch.NotifyClose(make(chan *amqp.Error, 1))

	q, err := ch.QueueDeclare("", false, true, true, false, nil)
	if err != nil {
		return fmt.Errorf("failed to declare queue: %w", err)
	}
	if err := ch.QueueBind(q.Name, "", r.exchange, false, nil); err != nil {
		return fmt.Errorf("failed to bind queue: %w", err)
	}
	msgs, err := ch.Consume(q.Name, "", true, true, false, false, nil)
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-closed:
			if err != nil {
				return fmt.Errorf("channel closed: %w", err)
			}
			return errors.New("channel closed")
		case msg, ok := <-msgs:
			if !ok {
				return errors.New("delivery channel closed")
			}
			if err := r.handle(msg.AppId, msg.Body); err != nil {
				r.log.Warn("dropping relay message", logx.Err(err))
			}
		}
	}
}

// handle delivers a relayed frame locally unless this instance sent it.
func (r *AMQPRelay) handle(origin string, body []byte) error {
	if origin == r.origin {
		return nil
	}
	var m relayMessage
	if err := json.Unmarshal(body, &m); err != nil {
		return fmt.Errorf("failed to parse relay message: %w", err)
	}
	if m.Room == "" || len(m.Frame) == 0 {
		return errors.New("relay message missing room or frame")
	}
	r.hub.Deliver(m.Room, m.Frame)
	return nil
}

func (r *AMQPRelay) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.pub != nil {
		_ = r.pub.Close()
	}
	if r.conn == nil || r.conn.IsClosed() {
		return nil
	}
	return r.conn.Close()
}
