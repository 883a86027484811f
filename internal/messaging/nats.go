// Package messaging provides a NATS client wrapper for pub/sub between the
// portal services. It handles connection lifecycle, subject-based
// subscriptions, and convenience methods for the matching subjects.
package messaging

import (
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// NATS subjects used across portal services.
const (
	SubjectMatchingRun       = "matching.run"       // request/reply trigger
	SubjectMatchingCompleted = "matching.completed" // run summaries
	SubjectMatchSuggested    = "match.suggested"    // + .<student_id>
)

// NATSClient wraps the NATS connection with helper methods for pub/sub.
type NATSClient struct {
	conn   *nats.Conn
	logger *zap.Logger
	mu     sync.Mutex
	subs   map[string]*nats.Subscription
}

// NATSConfig holds NATS connection settings.
type NATSConfig struct {
	URL           string        // nats://localhost:4222
	Name          string        // client name for identification
	ReconnectWait time.Duration // time between reconnect attempts
	MaxReconnects int           // max reconnect attempts (-1 for infinite)
}

// DefaultNATSConfig returns sensible defaults.
func DefaultNATSConfig() NATSConfig {
	return NATSConfig{
		URL:           nats.DefaultURL,
		Name:          "portal",
		ReconnectWait: 2 * time.Second,
		MaxReconnects: -1,
	}
}

// NewNATSClient connects to NATS with the given config and returns a ready client.
// It returns an error if the initial connection fails.
func NewNATSClient(config NATSConfig, logger *zap.Logger) (*NATSClient, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("component", "nats"))

	opts := []nats.Option{
		nats.Name(config.Name),
		nats.ReconnectWait(config.ReconnectWait),
		nats.MaxReconnects(config.MaxReconnects),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			logger.Info("connection closed")
		}),
	}

	nc, err := nats.Connect(config.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	logger.Info("connected", zap.String("url", nc.ConnectedUrl()))

	return &NATSClient{
		conn:   nc,
		logger: logger,
		subs:   make(map[string]*nats.Subscription),
	}, nil
}

// Publish sends data to the given NATS subject.
func (c *NATSClient) Publish(subject string, data []byte) error {
	return c.conn.Publish(subject, data)
}

// Request sends data to subject and waits for a single reply.
func (c *NATSClient) Request(subject string, data []byte, timeout time.Duration) ([]byte, error) {
	msg, err := c.conn.Request(subject, data, timeout)
	if err != nil {
		return nil, fmt.Errorf("nats request %s: %w", subject, err)
	}
	return msg.Data, nil
}

// Subscribe registers a handler for the given subject and stores the
// subscription under key for later cleanup.
func (c *NATSClient) Subscribe(key, subject string, handler func(msg *nats.Msg)) error {
	sub, err := c.conn.Subscribe(subject, handler)
	if err != nil {
		return fmt.Errorf("nats subscribe %s: %w", subject, err)
	}

	c.mu.Lock()
	c.subs[key] = sub
	c.mu.Unlock()

	return nil
}

// QueueSubscribe is Subscribe with a queue group, so that only one member
// of the group handles each message.
func (c *NATSClient) QueueSubscribe(key, subject, queue string, handler func(msg *nats.Msg)) error {
	sub, err := c.conn.QueueSubscribe(subject, queue, handler)
	if err != nil {
		return fmt.Errorf("nats queue subscribe %s: %w", subject, err)
	}

	c.mu.Lock()
	c.subs[key] = sub
	c.mu.Unlock()

	return nil
}

// SubscribeMatchingRun subscribes the matcher worker group to run requests.
// The handler's return value is sent back as the reply.
func (c *NATSClient) SubscribeMatchingRun(handler func(data []byte) []byte) error {
	return c.QueueSubscribe(SubjectMatchingRun, SubjectMatchingRun, "matchers", func(msg *nats.Msg) {
		reply := handler(msg.Data)
		if msg.Reply == "" {
			return
		}
		if err := msg.Respond(reply); err != nil {
			c.logger.Warn("respond to run request", zap.Error(err))
		}
	})
}

// PublishRunCompleted publishes a run summary.
func (c *NATSClient) PublishRunCompleted(data []byte) error {
	return c.Publish(SubjectMatchingCompleted, data)
}

// PublishSuggested publishes a new suggestion on match.suggested.<studentID>.
func (c *NATSClient) PublishSuggested(studentID int64, data []byte) error {
	return c.Publish(SuggestedSubject(studentID), data)
}

// SubscribeAllSuggested subscribes to suggestions for every student.
func (c *NATSClient) SubscribeAllSuggested(handler func(data []byte)) error {
	return c.Subscribe(SubjectMatchSuggested+".*", SubjectMatchSuggested+".*", func(msg *nats.Msg) {
		handler(msg.Data)
	})
}

// SuggestedSubject returns the per-student suggestion subject.
func SuggestedSubject(studentID int64) string {
	return SubjectMatchSuggested + "." + strconv.FormatInt(studentID, 10)
}

// Close drains all active subscriptions and closes the NATS connection.
func (c *NATSClient) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for key, sub := range c.subs {
		if err := sub.Drain(); err != nil {
			c.logger.Warn("drain subscription", zap.String("key", key), zap.Error(err))
		}
	}
	c.subs = make(map[string]*nats.Subscription)

	if err := c.conn.Drain(); err != nil {
		c.logger.Warn("connection drain", zap.Error(err))
	}

	c.logger.Info("client closed")
}

// Unsubscribe removes and unsubscribes the subscription stored under key.
func (c *NATSClient) Unsubscribe(key string) error {
	c.mu.Lock()
	sub, ok := c.subs[key]
	if !ok {
		c.mu.Unlock()
		return fmt.Errorf("nats: no subscription for key %s", key)
	}
	delete(c.subs, key)
	c.mu.Unlock()

	if err := sub.Unsubscribe(); err != nil {
		return fmt.Errorf("nats unsubscribe %s: %w", key, err)
	}
	return nil
}
