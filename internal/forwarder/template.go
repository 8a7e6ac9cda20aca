package forwarder

import "strings"

// Render substitutes the resolved fields into template. Each placeholder is
// replaced in a fixed sequence, one global literal pass over the whole
// accumulated string per token. A value substituted by an earlier pass that
// itself contains a later token (a contact named "%text%", say) is rewritten
// by the later pass. Downstream consumers depend on that exact behavior, so
// the pass order must not change and the passes must not be collapsed into a
// single substitution.
func Render(template string, fields Fields) string {
	out := template
	for _, sub := range []struct {
		token string
		value string
	}{
		{"%from%", fields.From},
		{"%sentStamp%", fields.SentStamp},
		{"%receivedStamp%", fields.ReceivedStamp},
		{"%sim%", fields.Sim},
		{"%fromName%", fields.FromName},
		{"%text%", fields.Text},
	} {
		out = strings.ReplaceAll(out, sub.token, sub.value)
	}
	return out
}
