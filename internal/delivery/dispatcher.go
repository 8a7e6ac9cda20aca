package delivery

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

// Job is one webhook delivery unit. It is self-contained: workers share no
// state across jobs.
type Job struct {
	ID   string
	URL  string
	Body string
	// Headers is the rule's serialized header set, a JSON object of
	// name to value pairs, passed through opaquely until send time.
	Headers string
	// IgnoreTLSVerification disables certificate and hostname checks for
	// this job's connections only.
	IgnoreTLSVerification bool
}

// Policy bounds the retry schedule: exponential backoff starting at
// InitialInterval, at most MaxAttempts attempts.
type Policy struct {
	InitialInterval time.Duration
	MaxAttempts     int
}

const (
	defaultQueueDepth = 256
	attemptTimeout    = 30 * time.Second
)

var (
	attemptCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "delivery_attempts_total",
		Help: "Webhook delivery attempts, by result",
	}, []string{"result"})
	jobCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "delivery_jobs_total",
		Help: "Delivery jobs reaching a terminal state, by outcome",
	}, []string{"outcome"})
)

// Dispatcher executes submitted jobs on a pool of workers, retrying failed
// attempts on an exponential schedule and holding attempts while the gate
// reports the network as unavailable. Exhausted jobs are dropped: delivery
// is best effort, there is no dead letter.
type Dispatcher struct {
	policy         Policy
	gate           Gate
	logger         zerolog.Logger
	workers        int
	jobs           chan Job
	client         *http.Client
	insecureClient *http.Client
}

func NewDispatcher(policy Policy, gate Gate, logger zerolog.Logger, workers int) *Dispatcher {
	if workers <= 0 {
		workers = 4
	}
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = 5
	}
	if policy.InitialInterval <= 0 {
		policy.InitialInterval = 10 * time.Second
	}
	if gate == nil {
		gate = NewMonitor()
	}

	insecureTransport := http.DefaultTransport.(*http.Transport).Clone()
	insecureTransport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}

	return &Dispatcher{
		policy:         policy,
		gate:           gate,
		logger:         logger,
		workers:        workers,
		jobs:           make(chan Job, defaultQueueDepth),
		client:         &http.Client{Timeout: attemptTimeout},
		insecureClient: &http.Client{Timeout: attemptTimeout, Transport: insecureTransport},
	}
}

// Submit queues job for asynchronous delivery and returns immediately unless
// the queue is full. The caller gets no completion signal and cannot cancel
// the job afterwards.
func (d *Dispatcher) Submit(job Job) {
	d.jobs <- job
}

// Run executes queued jobs until ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	for i := 0; i < d.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case job := <-d.jobs:
					d.deliver(ctx, job)
				}
			}
		}()
	}
	wg.Wait()
	return ctx.Err()
}

func (d *Dispatcher) deliver(ctx context.Context, job Job) {
	ctx, span := otel.Tracer("delivery").Start(ctx, "deliver_webhook")
	defer span.End()
	span.SetAttributes(attribute.String("job.id", job.ID))

	headers := d.parseHeaders(job)

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = d.policy.InitialInterval
	bo.RandomizationFactor = 0
	bo.MaxElapsedTime = 0

	attempts := 0
	op := func() error {
		if err := d.gate.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}
		attempts++
		if err := d.post(ctx, job, headers); err != nil {
			attemptCounter.WithLabelValues("failure").Inc()
			d.logger.Warn().Err(err).
				Str("job_id", job.ID).
				Int("attempt", attempts).
				Msg("delivery attempt failed")
			return err
		}
		attemptCounter.WithLabelValues("success").Inc()
		return nil
	}

	retries := uint64(d.policy.MaxAttempts - 1)
	if err := backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(bo, retries), ctx)); err != nil {
		span.RecordError(err)
		jobCounter.WithLabelValues("exhausted").Inc()
		d.logger.Error().Err(err).
			Str("job_id", job.ID).
			Int("attempts", attempts).
			Msg("delivery exhausted")
		return
	}

	jobCounter.WithLabelValues("delivered").Inc()
	d.logger.Info().
		Str("job_id", job.ID).
		Int("attempts", attempts).
		Msg("delivered")
}

func (d *Dispatcher) post(ctx context.Context, job Job, headers map[string]string) error {
	attemptCtx, cancel := context.WithTimeout(ctx, attemptTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodPost, job.URL, strings.NewReader(job.Body))
	if err != nil {
		return backoff.Permanent(fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	for name, value := range headers {
		req.Header.Set(name, value)
	}

	client := d.client
	if job.IgnoreTLSVerification {
		client = d.insecureClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("http post: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned %d", resp.StatusCode)
	}
	return nil
}

// parseHeaders decodes the rule's header blob. The blob is user-authored
// configuration, so an unparsable one is logged and the request goes out
// with default headers rather than failing the job.
func (d *Dispatcher) parseHeaders(job Job) map[string]string {
	if job.Headers == "" {
		return nil
	}
	var headers map[string]string
	if err := json.Unmarshal([]byte(job.Headers), &headers); err != nil {
		d.logger.Warn().Err(err).
			Str("job_id", job.ID).
			Msg("unparsable header blob, sending without custom headers")
		return nil
	}
	return headers
}
