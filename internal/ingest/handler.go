package ingest

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/example/sms-forwarder/internal/common"
)

var bundleCounter = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "ingest_bundles_total",
	Help: "Inbound SMS bundles received over HTTP, by status",
}, []string{"status"})

// Handler accepts inbound SMS bundles over HTTP for gateways that push
// instead of producing to Kafka.
type Handler struct {
	engine Processor
	tracer trace.Tracer
	logger zerolog.Logger
}

func NewHandler(engine Processor, logger zerolog.Logger) *Handler {
	return &Handler{
		engine: engine,
		tracer: otel.Tracer("ingest"),
		logger: logger,
	}
}

func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Post("/v1/messages", h.receive)
	r.Get("/healthz", h.health)
	return r
}

func (h *Handler) receive(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "receive_bundle")
	defer span.End()

	var bundle Bundle
	if err := json.NewDecoder(r.Body).Decode(&bundle); err != nil {
		h.respondErr(ctx, w, http.StatusBadRequest, err)
		return
	}
	if err := validateBundle(bundle); err != nil {
		h.respondErr(ctx, w, http.StatusBadRequest, err)
		return
	}

	id := uuid.NewString()
	span.SetAttributes(attribute.String("bundle.id", id))

	submitted := h.engine.Process(ctx, bundle.message())
	bundleCounter.WithLabelValues(statusLabel(submitted)).Inc()

	w.WriteHeader(http.StatusAccepted)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"bundle_id": id,
		"forwarded": submitted,
	})
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (h *Handler) respondErr(ctx context.Context, w http.ResponseWriter, status int, err error) {
	logger := common.WithContext(ctx, h.logger)
	logger.Error().Err(err).Int("status", status).Msg("receive handler failed")
	bundleCounter.WithLabelValues("rejected").Inc()
	http.Error(w, err.Error(), status)
}

func statusLabel(submitted bool) string {
	if submitted {
		return "forwarded"
	}
	return "discarded"
}
