package ingest

import (
	"context"
	"errors"
	"strings"

	"github.com/example/sms-forwarder/internal/forwarder"
)

// Fragment is one physical unit of a possibly multi-part inbound message.
type Fragment struct {
	From         string `json:"from"`
	Body         string `json:"body"`
	SentAtMillis int64  `json:"sent_at_millis"`
}

// Bundle is a raw inbound event as pushed by a platform gateway: an ordered
// list of fragments plus whatever provider-specific auxiliary keys came
// with the broadcast. Metadata is consumed only by SIM-slot detection.
type Bundle struct {
	Fragments []Fragment     `json:"fragments"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// Processor runs the forwarding pipeline for one reassembled message.
type Processor interface {
	Process(ctx context.Context, msg forwarder.InboundMessage) bool
}

func validateBundle(b Bundle) error {
	if len(b.Fragments) == 0 {
		return errors.New("at least one fragment is required")
	}
	return nil
}

// message flattens the bundle: bodies concatenate in arrival order, the
// first fragment carries the originating address and send timestamp.
func (b Bundle) message() forwarder.InboundMessage {
	var content strings.Builder
	for _, f := range b.Fragments {
		content.WriteString(f.Body)
	}
	return forwarder.InboundMessage{
		From:         b.Fragments[0].From,
		Body:         content.String(),
		SentAtMillis: b.Fragments[0].SentAtMillis,
		Metadata:     b.Metadata,
	}
}
