package forwarder

import "context"

// Wildcard is the reserved sender value that matches any originating address.
const Wildcard = "*"

// ForwardingRule maps a sender to a webhook target and payload template.
// Rules are persisted externally and consumed read-only; the store's order
// is authoritative.
type ForwardingRule struct {
	Sender                string `json:"sender"`
	Template              string `json:"template"`
	URL                   string `json:"url"`
	Headers               string `json:"headers"`
	IgnoreTLSVerification bool   `json:"ignore_tls_verification"`
}

// RuleStore lists forwarding rules in evaluation order. It is called once
// per inbound message.
type RuleStore interface {
	ListRules(ctx context.Context) ([]ForwardingRule, error)
}

// Match returns the first rule whose sender equals the inbound sender or is
// the wildcard. An earlier wildcard rule shadows a later exact match; exact
// rules get no priority. An absent sender (empty string) can match only a
// wildcard rule. The false return means no rule applies, which is a normal
// outcome, not an error.
func Match(rules []ForwardingRule, sender string) (ForwardingRule, bool) {
	for _, rule := range rules {
		if rule.Sender == Wildcard || (sender != "" && rule.Sender == sender) {
			return rule, true
		}
	}
	return ForwardingRule{}, false
}
