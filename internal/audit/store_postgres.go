package audit

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	id "mailstead/pkg/domain"
	txcontext "mailstead/pkg/platform/tx"
)

// PostgresStore persists audit events in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore constructs a PostgreSQL-backed audit store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *PostgresStore) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

// Append inserts one audit event. Events land in the same transaction as
// the domain mutation when the caller carries one in ctx.
func (s *PostgresStore) Append(ctx context.Context, event Event) error {
	query := `
		INSERT INTO audit_events (id, timestamp, category, action, domain_id, domain_name, detail, request_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	var domainID *uuid.UUID
	if !event.DomainID.IsNil() {
		u := uuid.UUID(event.DomainID)
		domainID = &u
	}

	_, err := s.execer(ctx).ExecContext(ctx, query,
		uuid.New(),
		event.Timestamp,
		string(event.Category),
		event.Action,
		domainID,
		event.DomainName,
		event.Detail,
		event.RequestID,
	)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

// ListByDomain returns events for one domain, oldest first.
func (s *PostgresStore) ListByDomain(ctx context.Context, domainID id.DomainID) ([]Event, error) {
	query := `
		SELECT timestamp, category, action, domain_id, domain_name, detail, request_id
		FROM audit_events
		WHERE domain_id = $1
		ORDER BY timestamp
	`
	rows, err := s.db.QueryContext(ctx, query, uuid.UUID(domainID))
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

// ListRecent returns the N most recent events, newest first.
func (s *PostgresStore) ListRecent(ctx context.Context, limit int) ([]Event, error) {
	query := `
		SELECT timestamp, category, action, domain_id, domain_name, detail, request_id
		FROM audit_events
		ORDER BY timestamp DESC
		LIMIT $1
	`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

func scanEvents(rows *sql.Rows) ([]Event, error) {
	var events []Event
	for rows.Next() {
		var (
			event    Event
			category string
			domainID *uuid.UUID
		)
		err := rows.Scan(
			&event.Timestamp,
			&category,
			&event.Action,
			&domainID,
			&event.DomainName,
			&event.Detail,
			&event.RequestID,
		)
		if err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		event.Category = EventCategory(category)
		if domainID != nil {
			event.DomainID = id.DomainID(*domainID)
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit events: %w", err)
	}
	return events, nil
}
