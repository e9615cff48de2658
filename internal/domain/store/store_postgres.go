package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"mailstead/internal/domain/models"
	id "mailstead/pkg/domain"
	"mailstead/pkg/platform/sentinel"
	txcontext "mailstead/pkg/platform/tx"
)

// uniqueViolation is the PostgreSQL error code for unique constraint
// violations; a create racing on the name index surfaces as this.
const uniqueViolation = "23505"

const domainColumns = `id, name, status, created_at, updated_at,
	verification_started_at, verified_at, failure_reason,
	provider_identity_ref, expected_dns_records`

// PostgresStore persists domains in PostgreSQL. The store is pure I/O;
// lifecycle rules live on the model and in the jobs.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed domain store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// q returns the transaction bound to ctx when one is present, so stores
// participate in caller-managed transactions transparently.
func (s *PostgresStore) q(ctx context.Context) querier {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

func (s *PostgresStore) Create(ctx context.Context, domain *models.Domain) error {
	records, err := encodeRecords(domain.ExpectedDNSRecords)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO domains (` + domainColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err = s.q(ctx).ExecContext(ctx, query,
		uuid.UUID(domain.ID),
		string(domain.Name),
		string(domain.Status),
		domain.CreatedAt,
		domain.UpdatedAt,
		domain.VerificationStartedAt,
		domain.VerifiedAt,
		domain.FailureReason,
		domain.ProviderIdentityRef,
		records,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return fmt.Errorf("domain name %q: %w", domain.Name, sentinel.ErrAlreadyUsed)
		}
		return fmt.Errorf("insert domain: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, domainID id.DomainID) (*models.Domain, error) {
	query := `SELECT ` + domainColumns + ` FROM domains WHERE id = $1`
	domain, err := scanDomain(s.q(ctx).QueryRowContext(ctx, query, uuid.UUID(domainID)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("domain %s not found: %w", domainID, sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("find domain by id: %w", err)
	}
	return domain, nil
}

func (s *PostgresStore) FindByName(ctx context.Context, name id.DomainName) (*models.Domain, error) {
	query := `SELECT ` + domainColumns + ` FROM domains WHERE name = $1`
	domain, err := scanDomain(s.q(ctx).QueryRowContext(ctx, query, string(name)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("domain %q not found: %w", name, sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("find domain by name: %w", err)
	}
	return domain, nil
}

// List returns all domains ordered by creation time, oldest first.
func (s *PostgresStore) List(ctx context.Context) ([]*models.Domain, error) {
	query := `SELECT ` + domainColumns + ` FROM domains ORDER BY created_at, name`
	rows, err := s.q(ctx).QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list domains: %w", err)
	}
	defer rows.Close()

	return scanDomains(rows)
}

// ListPendingVerification returns domains in verifying status, oldest
// verification window first.
func (s *PostgresStore) ListPendingVerification(ctx context.Context) ([]*models.Domain, error) {
	query := `
		SELECT ` + domainColumns + `
		FROM domains
		WHERE status = $1
		ORDER BY verification_started_at NULLS LAST, name
	`
	rows, err := s.q(ctx).QueryContext(ctx, query, string(models.StatusVerifying))
	if err != nil {
		return nil, fmt.Errorf("list domains pending verification: %w", err)
	}
	defer rows.Close()

	return scanDomains(rows)
}

func (s *PostgresStore) Update(ctx context.Context, domain *models.Domain) error {
	records, err := encodeRecords(domain.ExpectedDNSRecords)
	if err != nil {
		return err
	}

	query := `
		UPDATE domains SET
			status = $2,
			updated_at = $3,
			verification_started_at = $4,
			verified_at = $5,
			failure_reason = $6,
			provider_identity_ref = $7,
			expected_dns_records = $8
		WHERE id = $1
	`
	result, err := s.q(ctx).ExecContext(ctx, query,
		uuid.UUID(domain.ID),
		string(domain.Status),
		domain.UpdatedAt,
		domain.VerificationStartedAt,
		domain.VerifiedAt,
		domain.FailureReason,
		domain.ProviderIdentityRef,
		records,
	)
	if err != nil {
		return fmt.Errorf("update domain: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update domain rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("domain %s not found: %w", domain.ID, sentinel.ErrNotFound)
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, domainID id.DomainID) error {
	result, err := s.q(ctx).ExecContext(ctx, `DELETE FROM domains WHERE id = $1`, uuid.UUID(domainID))
	if err != nil {
		return fmt.Errorf("delete domain: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete domain rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("domain %s not found: %w", domainID, sentinel.ErrNotFound)
	}
	return nil
}

func (s *PostgresStore) Count(ctx context.Context) (int, error) {
	var count int
	if err := s.q(ctx).QueryRowContext(ctx, `SELECT COUNT(*) FROM domains`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count domains: %w", err)
	}
	return count, nil
}

func encodeRecords(records []models.DNSRecord) ([]byte, error) {
	if records == nil {
		records = []models.DNSRecord{}
	}
	encoded, err := json.Marshal(records)
	if err != nil {
		return nil, fmt.Errorf("encode dns records: %w", err)
	}
	return encoded, nil
}

type domainRow interface {
	Scan(dest ...any) error
}

func scanDomain(row domainRow) (*models.Domain, error) {
	var (
		domain                models.Domain
		domainID              uuid.UUID
		name                  string
		status                string
		verificationStartedAt sql.NullTime
		verifiedAt            sql.NullTime
		records               []byte
	)
	err := row.Scan(
		&domainID,
		&name,
		&status,
		&domain.CreatedAt,
		&domain.UpdatedAt,
		&verificationStartedAt,
		&verifiedAt,
		&domain.FailureReason,
		&domain.ProviderIdentityRef,
		&records,
	)
	if err != nil {
		return nil, err
	}

	domain.ID = id.DomainID(domainID)
	domain.Name = id.DomainName(name)
	domain.Status = models.Status(status)
	if verificationStartedAt.Valid {
		t := verificationStartedAt.Time
		domain.VerificationStartedAt = &t
	}
	if verifiedAt.Valid {
		t := verifiedAt.Time
		domain.VerifiedAt = &t
	}
	if len(records) > 0 {
		if err := json.Unmarshal(records, &domain.ExpectedDNSRecords); err != nil {
			return nil, fmt.Errorf("decode dns records: %w", err)
		}
	}
	if len(domain.ExpectedDNSRecords) == 0 {
		domain.ExpectedDNSRecords = nil
	}
	return &domain, nil
}

func scanDomains(rows *sql.Rows) ([]*models.Domain, error) {
	var domains []*models.Domain
	for rows.Next() {
		domain, err := scanDomain(rows)
		if err != nil {
			return nil, fmt.Errorf("scan domain: %w", err)
		}
		domains = append(domains, domain)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate domains: %w", err)
	}
	return domains, nil
}
