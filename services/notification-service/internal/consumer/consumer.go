package consumer

import (
	"context"
	"log/slog"
	"time"

	"github.com/md-rashed-zaman/homebook/libs/kafkax"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type Handler func(ctx context.Context, meta kafkax.EventMeta, msg kafka.Message) error

// Reader is the part of *kafka.Reader the consumer drives.
type Reader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Inbox interface {
	Record(ctx context.Context, eventID, eventType string) (bool, error)
	Forget(ctx context.Context, eventID string) error
}

// Consumer processes each event at most once per event_id and commits its
// offset after handling. A failing handler is retried MaxAttempts times
// before the message is skipped.
type Consumer struct {
	reader      Reader
	inbox       Inbox
	handler     Handler
	logger      *slog.Logger
	maxAttempts int
	backoff     time.Duration
}

type Config struct {
	MaxAttempts int
	Backoff     time.Duration
}

func New(reader Reader, inbox Inbox, handler Handler, logger *slog.Logger, cfg Config) *Consumer {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = time.Second
	}
	return &Consumer{
		reader:      reader,
		inbox:       inbox,
		handler:     handler,
		logger:      logger,
		maxAttempts: cfg.MaxAttempts,
		backoff:     cfg.Backoff,
	}
}

func (c *Consumer) Run(ctx context.Context) {
	defer func() { _ = c.reader.Close() }()

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.Error("kafka fetch failed", "err", err)
			if !sleep(ctx, c.backoff) {
				return
			}
			continue
		}

		c.process(ctx, msg)
		if err := c.reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			c.logger.Error("kafka commit failed", "err", err, "topic", msg.Topic, "offset", msg.Offset)
		}
	}
}

func (c *Consumer) process(ctx context.Context, msg kafka.Message) {
	meta := kafkax.ExtractEventMeta(msg)
	msgCtx := kafkax.ExtractTraceContext(ctx, msg)
	spanCtx, span := otel.Tracer("kafka").Start(msgCtx, "kafka.consume",
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			attribute.String("messaging.system", "kafka"),
			attribute.String("messaging.destination", msg.Topic),
			attribute.String("messaging.message.id", meta.EventID),
		),
	)
	defer span.End()

	fresh, err := c.inbox.Record(spanCtx, meta.EventID, meta.EventType)
	if err != nil {
		c.logger.Error("inbox record failed", "err", err, "event_id", meta.EventID)
		span.RecordError(err)
		return
	}
	if !fresh {
		c.logger.Info("duplicate event ignored", "event_id", meta.EventID, "event_type", meta.EventType)
		return
	}

	for attempt := 1; ; attempt++ {
		err = c.handler(spanCtx, meta, msg)
		if err == nil {
			return
		}
		c.logger.Warn("event handler failed", "err", err, "event_id", meta.EventID, "attempt", attempt)
		if attempt >= c.maxAttempts || !sleep(ctx, c.backoff*time.Duration(attempt)) {
			break
		}
	}

	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	c.logger.Error("event dropped after retries", "event_id", meta.EventID, "event_type", meta.EventType, "err", err)
	if ferr := c.inbox.Forget(context.WithoutCancel(ctx), meta.EventID); ferr != nil {
		c.logger.Error("inbox forget failed", "err", ferr, "event_id", meta.EventID)
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
