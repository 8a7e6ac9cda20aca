package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

// Consumer pulls inbound bundles from Kafka and runs them through the
// forwarding engine. A bundle that fails to decode is logged and committed
// so the partition keeps moving.
type Consumer struct {
	ReaderFactory func() *kafka.Reader
	Engine        Processor
	Logger        zerolog.Logger
}

func (c *Consumer) Run(ctx context.Context) error {
	if c.ReaderFactory == nil || c.Engine == nil {
		return errors.New("consumer requires a reader factory and an engine")
	}
	reader := c.ReaderFactory()
	defer reader.Close()

	tracer := otel.Tracer("ingest")

	for {
		m, err := reader.FetchMessage(ctx)
		if err != nil {
			return fmt.Errorf("fetch message: %w", err)
		}

		var bundle Bundle
		if err := json.Unmarshal(m.Value, &bundle); err != nil {
			c.Logger.Error().Err(err).Msg("failed to decode bundle")
			_ = reader.CommitMessages(ctx, m)
			continue
		}
		if err := validateBundle(bundle); err != nil {
			c.Logger.Error().Err(err).Msg("invalid bundle")
			_ = reader.CommitMessages(ctx, m)
			continue
		}

		spanCtx, span := tracer.Start(ctx, "consume_bundle")
		submitted := c.Engine.Process(spanCtx, bundle.message())
		span.SetAttributes(attribute.Bool("bundle.forwarded", submitted))
		span.End()

		if err := reader.CommitMessages(ctx, m); err != nil {
			return fmt.Errorf("commit message: %w", err)
		}
	}
}
