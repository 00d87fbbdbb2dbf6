package queue

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	dialTimeout        = 3 * time.Second
	firstReopenBackoff = time.Second
)

// ErrBrokerUnavailable is returned by Publish while the publisher waits
// out the backoff that follows a failed dial.
var ErrBrokerUnavailable = errors.New("rabbitmq: broker unavailable")

// Logger is the subset of the application logger used by this package.
type Logger interface {
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
}

// channel is the part of *amqp.Channel the publisher uses.
type channel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// Publisher sends booking events as persistent JSON messages to a
// durable queue on the default exchange.  The connection is opened on
// first use by a single background dial; callers wait for it only as
// long as their context allows.  A failed dial blocks further attempts
// for a capped, doubling backoff, during which Publish fails fast.
type Publisher struct {
	url   string
	queue string
	log   Logger
	// dial opens a channel; tests replace it.
	dial func(url string) (*amqp.Connection, channel, error)
	now  func() time.Time

	mu      sync.Mutex
	conn    *amqp.Connection
	ch      channel
	dialing chan struct{}
	lastErr error
	retryAt time.Time
	backoff time.Duration
	closed  bool
}

// NewPublisher returns a Publisher for queue on the broker at url.
func NewPublisher(url, queue string, log Logger) *Publisher {
	return &Publisher{
		url:     url,
		queue:   queue,
		log:     log,
		dial:    dialChannel,
		now:     time.Now,
		backoff: firstReopenBackoff,
	}
}

var _ Sink = (*Publisher)(nil)

// dialBroker is amqp.Dial with a bounded TCP connect and handshake.
func dialBroker(url string) (*amqp.Connection, error) {
	return amqp.DialConfig(url, amqp.Config{
		Heartbeat: 10 * time.Second,
		Locale:    "en_US",
		Dial:      amqp.DefaultDial(dialTimeout),
	})
}

func dialChannel(url string) (*amqp.Connection, channel, error) {
	conn, err := dialBroker(url)
	if err != nil {
		return nil, nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, nil, err
	}
	return conn, ch, nil
}

// Publish marshals ev and publishes it.  Errors are logged and returned
// so the caller can choose to ignore them.
func (p *Publisher) Publish(ctx context.Context, ev BookingEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	ch, err := p.channel(ctx)
	if err != nil {
		p.log.Warnf("rabbitmq: %s not published: %v", ev.Type, err)
		return err
	}
	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    ev.ID,
		Type:         ev.Type,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx, "", p.queue, false, false, msg); err != nil {
		p.log.Warnf("rabbitmq: publish %s failed: %v", ev.Type, err)
		p.drop(ch)
		return err
	}
	return nil
}

// channel returns the open channel, starting a dial if none is open.
// p.mu is never held while dialing.
func (p *Publisher) channel(ctx context.Context) (channel, error) {
	p.mu.Lock()
	switch {
	case p.closed:
		p.mu.Unlock()
		return nil, amqp.ErrClosed
	case p.ch != nil:
		ch := p.ch
		p.mu.Unlock()
		return ch, nil
	case p.dialing == nil && p.now().Before(p.retryAt):
		p.mu.Unlock()
		return nil, ErrBrokerUnavailable
	}
	if p.dialing == nil {
		p.dialing = make(chan struct{})
		go p.connect(p.dialing)
	}
	done := p.dialing
	p.mu.Unlock()

	select {
	case <-done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ch == nil {
		if p.lastErr != nil {
			return nil, p.lastErr
		}
		return nil, ErrBrokerUnavailable
	}
	return p.ch, nil
}

// connect dials, declares the queue and publishes the outcome.
func (p *Publisher) connect(done chan struct{}) {
	defer close(done)
	conn, ch, err := p.dial(p.url)
	if err == nil {
		if _, err = ch.QueueDeclare(p.queue, true, false, false, false, nil); err != nil {
			_ = ch.Close()
			if conn != nil {
				_ = conn.Close()
			}
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.dialing = nil
	if err != nil {
		p.lastErr = err
		p.retryAt = p.now().Add(p.backoff)
		p.log.Warnf("rabbitmq: open failed: %v; next attempt in %s", err, p.backoff)
		p.backoff = nextBackoff(p.backoff)
		return
	}
	if p.closed {
		_ = ch.Close()
		if conn != nil {
			_ = conn.Close()
		}
		return
	}
	p.conn, p.ch, p.lastErr = conn, ch, nil
	p.backoff = firstReopenBackoff
}

// drop discards ch if it is still current so the next publish reconnects.
func (p *Publisher) drop(ch channel) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ch == ch {
		p.reset()
	}
}

// reset closes the current connection.  Callers hold p.mu.
func (p *Publisher) reset() {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		_ = p.conn.Close()
	}
	p.conn, p.ch = nil, nil
}

// Close releases the broker connection.  Publish fails afterwards.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	p.reset()
	return nil
}
