package forwarder

import (
	"bytes"
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// InboundMessage is a single inbound SMS after fragment reassembly, owned by
// the current invocation only.
type InboundMessage struct {
	// From is the originating address; empty when the platform did not
	// supply one.
	From string
	// Body is the concatenation of all fragment bodies in arrival order.
	Body string
	// SentAtMillis is the provider-reported send time of the first fragment.
	SentAtMillis int64
	// Metadata carries provider-specific auxiliary keys; only SIM-slot
	// detection reads it.
	Metadata map[string]any
}

// ContactDirectory resolves a phone number to a display name. Any failure,
// including an authorization failure, is treated by the resolver as no match.
type ContactDirectory interface {
	DisplayName(ctx context.Context, phone string) (string, error)
}

// Fields holds the resolved substitution values for the six template
// placeholders.
type Fields struct {
	From          string
	SentStamp     string
	ReceivedStamp string
	Sim           string
	FromName      string
	Text          string
}

// ResolveFields derives the substitution values for msg. FromName and Text
// are escaped for embedding inside a JSON string literal; the remaining
// fields are numeric or enum-constrained and inserted verbatim. Contact
// lookup errors never propagate: the raw address is used instead.
func ResolveFields(ctx context.Context, contacts ContactDirectory, msg InboundMessage, receivedAt time.Time) Fields {
	name := msg.From
	if msg.From != "" && contacts != nil {
		if resolved, err := contacts.DisplayName(ctx, msg.From); err == nil && resolved != "" {
			name = resolved
		}
	}
	return Fields{
		From:          msg.From,
		SentStamp:     strconv.FormatInt(msg.SentAtMillis, 10),
		ReceivedStamp: strconv.FormatInt(receivedAt.UnixMilli(), 10),
		Sim:           DetectSim(msg.Metadata),
		FromName:      escapeJSON(name),
		Text:          escapeJSON(msg.Body),
	}
}

// simSlotKeys are metadata keys known to carry the slot index directly.
// There is no stable cross-carrier key name, hence the pile.
var simSlotKeys = map[string]struct{}{
	"phone":   {},
	"slot":    {},
	"simId":   {},
	"simSlot": {},
	"slot_id": {},
	"simnum":  {},
	"slotId":  {},
	"slotIdx": {},
	"android.telephony.extra.SLOT_INDEX": {},
}

// DetectSim maps provider metadata to "sim1", "sim2" or "undetected". Known
// exact keys are read as integers; any other key mentioning "sim" or "slot"
// whose value reads as "0", "1" or "2" is accepted as a loose fallback. The
// scan stops at the first hit in map iteration order; only one key is
// expected to carry slot data in a given bundle. The fallback can misfire on
// odd key names, which is an accepted limitation.
func DetectSim(metadata map[string]any) string {
	slot := -1
	for key, value := range metadata {
		if _, exact := simSlotKeys[key]; exact {
			if n, ok := intValue(value); ok {
				slot = n
			}
		} else {
			lower := strings.ToLower(key)
			if strings.Contains(lower, "slot") || strings.Contains(lower, "sim") {
				switch stringValue(value) {
				case "0", "1", "2":
					if n, ok := intValue(value); ok {
						slot = n
					}
				}
			}
		}
		if slot != -1 {
			break
		}
	}

	switch slot {
	case 0:
		return "sim1"
	case 1:
		return "sim2"
	default:
		return "undetected"
	}
}

func intValue(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, false
		}
		return int(i), true
	case string:
		i, err := strconv.Atoi(n)
		if err != nil {
			return 0, false
		}
		return i, true
	}
	return 0, false
}

func stringValue(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case int:
		return strconv.Itoa(s)
	case int64:
		return strconv.FormatInt(s, 10)
	case float64:
		if s == float64(int64(s)) {
			return strconv.FormatInt(int64(s), 10)
		}
		return strconv.FormatFloat(s, 'f', -1, 64)
	case json.Number:
		return s.String()
	}
	return ""
}

// escapeJSON escapes s per JSON string-escaping rules, without the
// surrounding quotes.
func escapeJSON(s string) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return s
	}
	out := buf.String()
	// Encode writes the quoted string plus a trailing newline.
	return out[1 : len(out)-2]
}
