package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/example/sms-forwarder/internal/forwarder"
)

const listRules = `
SELECT sender, template, url, headers, ignore_tls_verification
FROM forwarding_rules
ORDER BY position ASC
`

const lookupContact = `
SELECT display_name
FROM contacts
WHERE phone_number = $1
LIMIT 1
`

// ErrNoContact reports a phone number with no directory entry.
var ErrNoContact = errors.New("no contact with that phone number")

// PostgresRuleStore serves forwarding rules from the forwarding_rules table
// in position order, which is the rules' authoritative evaluation order.
type PostgresRuleStore struct {
	pool *pgxpool.Pool
}

func NewPostgresRuleStore(pool *pgxpool.Pool) *PostgresRuleStore {
	return &PostgresRuleStore{pool: pool}
}

func (s *PostgresRuleStore) ListRules(ctx context.Context) ([]forwarder.ForwardingRule, error) {
	rows, err := s.pool.Query(ctx, listRules)
	if err != nil {
		return nil, fmt.Errorf("query rules: %w", err)
	}
	defer rows.Close()

	var rules []forwarder.ForwardingRule
	for rows.Next() {
		var rule forwarder.ForwardingRule
		if err := rows.Scan(&rule.Sender, &rule.Template, &rule.URL, &rule.Headers, &rule.IgnoreTLSVerification); err != nil {
			return nil, fmt.Errorf("scan rule: %w", err)
		}
		rules = append(rules, rule)
	}
	return rules, rows.Err()
}

// PostgresContactDirectory looks up display names in the contacts table.
type PostgresContactDirectory struct {
	pool *pgxpool.Pool
}

func NewPostgresContactDirectory(pool *pgxpool.Pool) *PostgresContactDirectory {
	return &PostgresContactDirectory{pool: pool}
}

func (d *PostgresContactDirectory) DisplayName(ctx context.Context, phone string) (string, error) {
	var name string
	if err := d.pool.QueryRow(ctx, lookupContact, phone).Scan(&name); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrNoContact
		}
		return "", fmt.Errorf("lookup contact: %w", err)
	}
	return name, nil
}
