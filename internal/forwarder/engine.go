package forwarder

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/example/sms-forwarder/internal/delivery"
)

var messagesProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "forwarder_messages_total",
	Help: "Inbound messages processed, by outcome",
}, []string{"outcome"})

// JobSink accepts delivery jobs for asynchronous execution.
type JobSink interface {
	Submit(job delivery.Job)
}

// Engine runs the forwarding pipeline for one inbound message at a time:
// rule selection, field resolution, template rendering, job submission.
// Processing is synchronous and never blocks on network I/O; delivery is
// entirely the sink's concern.
type Engine struct {
	Rules      RuleStore
	Contacts   ContactDirectory
	Dispatcher JobSink
	Logger     zerolog.Logger

	// Now overrides the receipt clock in tests.
	Now func() time.Time
}

// Process decides what to do with msg and reports whether a delivery job was
// submitted. It never surfaces an error to the event source: a message that
// matches no rule is silently discarded, and a rule-store read failure is
// logged and treated the same way.
func (e *Engine) Process(ctx context.Context, msg InboundMessage) bool {
	ctx, span := otel.Tracer("forwarder").Start(ctx, "forward_message")
	defer span.End()
	span.SetAttributes(attribute.String("message.sender", msg.From))

	rules, err := e.Rules.ListRules(ctx)
	if err != nil {
		e.Logger.Error().Err(err).Msg("failed to load forwarding rules")
		messagesProcessed.WithLabelValues("discarded").Inc()
		return false
	}

	rule, ok := Match(rules, msg.From)
	if !ok {
		messagesProcessed.WithLabelValues("discarded").Inc()
		return false
	}

	now := time.Now
	if e.Now != nil {
		now = e.Now
	}
	fields := ResolveFields(ctx, e.Contacts, msg, now())

	job := delivery.Job{
		ID:                    uuid.NewString(),
		URL:                   rule.URL,
		Body:                  Render(rule.Template, fields),
		Headers:               rule.Headers,
		IgnoreTLSVerification: rule.IgnoreTLSVerification,
	}
	span.SetAttributes(attribute.String("job.id", job.ID))
	e.Dispatcher.Submit(job)

	messagesProcessed.WithLabelValues("submitted").Inc()
	e.Logger.Info().
		Str("job_id", job.ID).
		Str("url", rule.URL).
		Str("sim", fields.Sim).
		Msg("message forwarded")
	return true
}
