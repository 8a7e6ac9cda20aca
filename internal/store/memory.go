package store

import (
	"context"

	"github.com/example/sms-forwarder/internal/forwarder"
)

// StaticRules serves a fixed rule list in slice order. Used for tests and
// for running the binary without a database.
type StaticRules struct {
	Rules []forwarder.ForwardingRule
}

func (s StaticRules) ListRules(ctx context.Context) ([]forwarder.ForwardingRule, error) {
	return s.Rules, nil
}

// MemoryContacts is a map-backed contact directory keyed by phone number.
type MemoryContacts struct {
	Names map[string]string
}

func (m MemoryContacts) DisplayName(ctx context.Context, phone string) (string, error) {
	if name, ok := m.Names[phone]; ok {
		return name, nil
	}
	return "", ErrNoContact
}
