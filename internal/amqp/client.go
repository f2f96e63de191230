package amqp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"expenses/internal/log"
)

// Circuit breaker states.
const (
	StateClosed int32 = iota
	StateOpen
	StateHalfOpen
)

const (
	maxFailures    = 5
	openTimeout    = 30 * time.Second
	maxBackoff     = 30 * time.Second
	publishTimeout = 5 * time.Second
)

var errNotConnected = fmt.Errorf("%w: not connected to broker", amqp091.ErrClosed)

// channel is the part of *amqp091.Channel the client uses.
type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp091.Table) (<-chan amqp091.Delivery, error)
	Close() error
}

// Client publishes and consumes expense events. Publishing never dials: a
// lost connection is re-established by a single background goroutine while
// publishes fail fast.
type Client struct {
	exchangeName string
	queueName    string
	logger       *log.Logger
	dial         func() (io.Closer, channel, error)

	mu      sync.Mutex
	conn    io.Closer
	channel channel

	reconnecting atomic.Bool
	done         chan struct{}
	closeOnce    sync.Once

	state        int32
	failureCount int64
	lastFailure  time.Time
}

// NewClient connects and declares the exchange, queue and binding.
func NewClient(url, exchangeName, queueName string, logger *log.Logger) (*Client, error) {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	c := &Client{
		exchangeName: exchangeName,
		queueName:    queueName,
		logger:       logger.WithComponent(log.ComponentAMQP),
		done:         make(chan struct{}),
	}
	c.dial = func() (io.Closer, channel, error) { return c.dialBroker(url) }
	if err := c.connect(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Client) dialBroker(url string) (io.Closer, channel, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, nil, fmt.Errorf("dial AMQP: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("open channel: %w", err)
	}

	if err := setup(ch, c.exchangeName, c.queueName); err != nil {
		ch.Close()
		conn.Close()
		return nil, nil, fmt.Errorf("setup exchange and queue: %w", err)
	}

	closed := conn.NotifyClose(make(chan *amqp091.Error, 1))
	go func() {
		if err, ok := <-closed; ok && err != nil {
			c.logger.Warn("AMQP connection closed by broker", log.FieldError, err)
		}
		c.drop(ch)
		c.triggerReconnect()
	}()
	return conn, ch, nil
}

func setup(ch *amqp091.Channel, exchangeName, queueName string) error {
	err := ch.ExchangeDeclare(
		exchangeName, // name
		"direct",     // type
		true,         // durable
		false,        // auto-deleted
		false,        // internal
		false,        // no-wait
		nil,          // arguments
	)
	if err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}

	_, err = ch.QueueDeclare(
		queueName, // name
		true,      // durable
		false,     // delete when unused
		false,     // exclusive
		false,     // no-wait
		nil,       // arguments
	)
	if err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}

	// Routing key is the queue name.
	if err := ch.QueueBind(queueName, queueName, exchangeName, false, nil); err != nil {
		return fmt.Errorf("bind queue: %w", err)
	}
	return nil
}

// connect dials outside the lock and installs the new session unless one is
// already live or the client was closed meanwhile.
func (c *Client) connect() error {
	conn, ch, err := c.dial()
	if err != nil {
		return err
	}

	c.mu.Lock()
	if c.channel != nil || c.isClosed() {
		c.mu.Unlock()
		ch.Close()
		conn.Close()
		return nil
	}
	c.conn, c.channel = conn, ch
	c.mu.Unlock()
	return nil
}

func (c *Client) current() channel {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.channel
}

// drop tears down the session owning ch. A stale ch from an earlier session
// leaves the live one alone.
func (c *Client) drop(ch channel) {
	c.mu.Lock()
	if ch == nil || c.channel != ch {
		c.mu.Unlock()
		return
	}
	conn := c.conn
	c.conn, c.channel = nil, nil
	c.mu.Unlock()

	ch.Close()
	if conn != nil {
		conn.Close()
	}
}

// triggerReconnect starts the reconnect loop unless one is already running.
func (c *Client) triggerReconnect() {
	if c.isClosed() || !c.reconnecting.CompareAndSwap(false, true) {
		return
	}
	go c.reconnectLoop()
}

func (c *Client) reconnectLoop() {
	defer c.reconnecting.Store(false)
	for attempt := 0; ; attempt++ {
		if c.isClosed() || c.current() != nil {
			return
		}
		err := c.connect()
		if err == nil {
			c.logger.Info("Reconnected to AMQP broker", "attempt", attempt+1)
			return
		}
		wait := exponentialBackoff(attempt)
		c.logger.Warn("AMQP reconnect failed",
			"attempt", attempt+1,
			"retry_in", wait,
			log.FieldErrorType, log.ErrorTypeNetwork,
			log.FieldError, err)
		select {
		case <-c.done:
			return
		case <-time.After(wait):
		}
	}
}

func (c *Client) isClosed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// PublishExpenseEvent publishes a persistent JSON event. It fails fast when
// the circuit is open or no connection is live.
func (c *Client) PublishExpenseEvent(ctx context.Context, ev ExpenseEvent) error {
	if c.isCircuitOpen() {
		return errors.New("publish expense event: circuit breaker is open")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	body, err := ev.ToJSON()
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	ch := c.current()
	if ch == nil {
		err = errNotConnected
	} else {
		err = c.publish(ctx, ch, body)
	}
	if err != nil {
		if isConnectionError(err) {
			c.drop(ch)
			c.triggerReconnect()
		}
		c.recordFailure()
		return fmt.Errorf("publish expense event: %w", err)
	}
	c.recordSuccess()

	c.logger.DebugContext(ctx, "Published expense event",
		log.FieldOperation, log.OpPublish,
		log.FieldEventType, ev.Type,
		log.FieldExpenseID, ev.ID,
		"exchange", c.exchangeName)
	return nil
}

func (c *Client) publish(ctx context.Context, ch channel, body []byte) error {
	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	return ch.PublishWithContext(
		ctx,
		c.exchangeName, // exchange
		c.queueName,    // routing key
		false,          // mandatory
		false,          // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			Timestamp:    time.Now(),
			Body:         body,
		},
	)
}

// ConsumeExpenseEvents delivers events to handler until ctx is cancelled.
// Malformed messages are rejected and handler failures are requeued. While
// the connection is down it waits for the reconnect loop.
func (c *Client) ConsumeExpenseEvents(ctx context.Context, handler func(context.Context, ExpenseEvent) error) error {
	for attempt := 0; ; {
		ch := c.current()
		err := errNotConnected
		if ch != nil {
			err = c.consume(ctx, ch, handler)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !isConnectionError(err) {
			return err
		}

		if ch != nil {
			attempt = 0
			c.drop(ch)
		} else {
			attempt++
		}
		c.triggerReconnect()

		wait := exponentialBackoff(attempt)
		c.logger.WarnContext(ctx, "Consumer waiting for connection",
			log.FieldOperation, log.OpConsume,
			"retry_in", wait,
			log.FieldError, err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.done:
			return errors.New("consume expense events: client closed")
		case <-time.After(wait):
		}
	}
}

func (c *Client) consume(ctx context.Context, ch channel, handler func(context.Context, ExpenseEvent) error) error {
	msgs, err := ch.Consume(
		c.queueName, // queue
		"",          // consumer
		false,       // auto-ack
		false,       // exclusive
		false,       // no-local
		false,       // no-wait
		nil,         // args
	)
	if err != nil {
		return fmt.Errorf("start consuming: %w", err)
	}

	c.logger.InfoContext(ctx, "Started consuming expense events",
		log.FieldOperation, log.OpConsume,
		"queue", c.queueName)

	for {
		select {
		case <-ctx.Done():
			c.logger.InfoContext(ctx, "Stopping message consumption", "reason", ctx.Err())
			return ctx.Err()
		case delivery, ok := <-msgs:
			if !ok {
				return amqp091.ErrClosed
			}

			ev, err := ExpenseEventFromJSON(delivery.Body)
			if err != nil {
				c.logger.ErrorContext(ctx, "Failed to decode event",
					log.FieldOperation, log.OpConsume,
					log.FieldErrorType, log.ErrorTypeValidation,
					log.FieldError, err)
				delivery.Nack(false, false)
				continue
			}

			if err := handler(ctx, ev); err != nil {
				c.logger.ErrorContext(ctx, "Failed to handle event",
					log.FieldOperation, log.OpConsume,
					log.FieldError, err,
					log.FieldEventType, ev.Type,
					log.FieldExpenseID, ev.ID)
				delivery.Nack(false, true)
				continue
			}
			delivery.Ack(false)
		}
	}
}

func (c *Client) isCircuitOpen() bool {
	if atomic.LoadInt32(&c.state) != StateOpen {
		return false
	}
	c.mu.Lock()
	last := c.lastFailure
	c.mu.Unlock()
	if time.Since(last) > openTimeout {
		atomic.CompareAndSwapInt32(&c.state, StateOpen, StateHalfOpen)
		return false
	}
	return true
}

func (c *Client) recordSuccess() {
	atomic.StoreInt64(&c.failureCount, 0)
	atomic.StoreInt32(&c.state, StateClosed)
}

func (c *Client) recordFailure() {
	n := atomic.AddInt64(&c.failureCount, 1)
	c.mu.Lock()
	c.lastFailure = time.Now()
	c.mu.Unlock()
	if n >= maxFailures || atomic.LoadInt32(&c.state) == StateHalfOpen {
		atomic.StoreInt32(&c.state, StateOpen)
	}
}

// exponentialBackoff returns 1s doubled per attempt, capped at maxBackoff.
func exponentialBackoff(attempt int) time.Duration {
	if attempt >= 5 {
		return maxBackoff
	}
	d := time.Second << attempt
	if d > maxBackoff {
		return maxBackoff
	}
	return d
}

func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, amqp091.ErrClosed) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, s := range []string{"connection", "eof", "broken pipe", "channel/connection is not open"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

// Close stops reconnecting and closes the live session, if any.
func (c *Client) Close() error {
	c.closeOnce.Do(func() { close(c.done) })

	c.mu.Lock()
	conn, ch := c.conn, c.channel
	c.conn, c.channel = nil, nil
	c.mu.Unlock()

	if ch != nil {
		ch.Close()
	}
	if conn != nil {
		return conn.Close()
	}
	return nil
}
