package eventing

import (
	"context"
	"sync"

	"github.com/agentuity/go-plancache/logger"
	"github.com/cockroachdb/errors"
	"github.com/redis/go-redis/v9"
	"github.com/vmihailenco/msgpack/v5"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type redisMsgPayload struct {
	InternalData    []byte  `msgpack:"data"`
	InternalHeaders Headers `msgpack:"headers"`
}

func (m *redisMsgPayload) Data() []byte {
	return m.InternalData
}

func (m *redisMsgPayload) Headers() Headers {
	return m.InternalHeaders
}

type redisSubscriber struct {
	pubsub *redis.PubSub
	done   chan struct{}
	once   sync.Once
	err    error
}

// Close unsubscribes and waits for the delivery goroutine to exit.
func (s *redisSubscriber) Close() error {
	s.once.Do(func() {
		s.err = s.pubsub.Close()
		<-s.done
	})
	return s.err
}

type redisEventingClient struct {
	rdb    *redis.Client
	ctx    context.Context
	cancel context.CancelFunc
	logger logger.Logger
}

var _ Client = (*redisEventingClient)(nil)

// NewRedisClient returns a Client publishing and subscribing over Redis
// pub/sub. The caller owns rdb.
func NewRedisClient(ctx context.Context, log logger.Logger, rdb *redis.Client) (Client, error) {
	if rdb == nil {
		return nil, errors.New("eventing: nil redis client")
	}
	ctx, cancel := context.WithCancel(ctx)
	client := &redisEventingClient{
		rdb:    rdb,
		ctx:    ctx,
		cancel: cancel,
		logger: log.With(map[string]interface{}{"component": "eventing"}),
	}
	return client, nil
}

func newPubRedisMessage(data []byte, opts ...PublishOption) redisMsgPayload {
	msg := redisMsgPayload{
		InternalData:    data,
		InternalHeaders: make(map[string]string),
	}
	options := &publishOptions{}
	for _, opt := range opts {
		opt(options)
	}
	for _, header := range options.Headers {
		if len(header) == 2 {
			msg.InternalHeaders[header[0]] = header[1]
		}
	}
	return msg
}

func (c *redisEventingClient) Publish(ctx context.Context, subject string, data []byte, opts ...PublishOption) error {
	msg := newPubRedisMessage(data, opts...)
	// inject the trace context into the headers before starting a span
	propagator.Inject(ctx, msg.InternalHeaders)

	spanCtx, span := tracer.Start(ctx, "Publish", trace.WithSpanKind(trace.SpanKindProducer))
	defer span.End()

	payload, err := msgpack.Marshal(msg)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.RecordError(err)
		return errors.Wrap(err, "eventing: marshal message")
	}

	if err := c.rdb.Publish(spanCtx, subject, payload).Err(); err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.RecordError(err)
		return errors.Wrap(err, "eventing: publish message")
	}

	span.SetStatus(codes.Ok, "message published")
	return nil
}

func (c *redisEventingClient) internalCallback(ctx context.Context, payload []byte, cb MessageCallback) {
	var msg redisMsgPayload
	if err := msgpack.Unmarshal(payload, &msg); err != nil {
		c.logger.Error("failed to decode message: %s", err)
		return
	}
	if msg.InternalHeaders == nil {
		msg.InternalHeaders = make(Headers)
	}
	// extract the trace context from the headers
	spanCtx, span := tracer.Start(
		propagator.Extract(ctx, msg.InternalHeaders),
		"Receive",
		trace.WithSpanKind(trace.SpanKindConsumer),
	)
	defer span.End()
	cb(spanCtx, &msg)
}

func (c *redisEventingClient) Subscribe(ctx context.Context, subject string, cb MessageCallback) (Subscriber, error) {
	pubsub := c.rdb.Subscribe(ctx, subject)
	// wait for the subscription to be confirmed so that nothing published
	// after Subscribe returns is missed
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, errors.Wrapf(err, "eventing: subscribe %s", subject)
	}

	sub := &redisSubscriber{pubsub: pubsub, done: make(chan struct{})}
	go func() {
		defer close(sub.done)
		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case <-c.ctx.Done():
				return
			case redisMsg, ok := <-ch:
				if !ok {
					return
				}
				c.internalCallback(ctx, []byte(redisMsg.Payload), cb)
			}
		}
	}()
	return sub, nil
}

// Close stops every subscription goroutine started by this client. Open
// subscribers should still be closed to release their connections.
func (c *redisEventingClient) Close() error {
	c.cancel()
	return nil
}
