package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/arkham-district/secure-tokens/pkg/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore implements the Store interface using pgx/v5.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Ping checks database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// --- Tenants ---

func (s *PostgresStore) CreateTenant(ctx context.Context, t *models.Tenant) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO tenants (id, name, created_at, updated_at) VALUES ($1, $2, $3, $4)`,
		t.ID, t.Name, t.CreatedAt, t.UpdatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("create tenant: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetTenant(ctx context.Context, id uuid.UUID) (*models.Tenant, error) {
	return s.getTenant(ctx, `SELECT id, name, created_at, updated_at FROM tenants WHERE id = $1`, id)
}

func (s *PostgresStore) GetTenantByName(ctx context.Context, name string) (*models.Tenant, error) {
	return s.getTenant(ctx, `SELECT id, name, created_at, updated_at FROM tenants WHERE name = $1`, name)
}

func (s *PostgresStore) getTenant(ctx context.Context, query string, arg any) (*models.Tenant, error) {
	var t models.Tenant
	err := s.pool.QueryRow(ctx, query, arg).Scan(&t.ID, &t.Name, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get tenant: %w", err)
	}
	return &t, nil
}

// --- Credentials ---

const credentialColumns = `id, owner_kind, owner_id, name, prefix, secret_key, public_key, abilities,
	last_used_at, expires_at, created_at, updated_at`

func (s *PostgresStore) InsertCredential(ctx context.Context, c *models.Credential) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO credentials (id, owner_kind, owner_id, name, prefix, secret_key, public_key, abilities,
		   expires_at, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		c.ID, c.OwnerKind, c.OwnerID, c.Name, c.Prefix, c.SecretKey, c.PublicKey, []string(c.Abilities),
		c.ExpiresAt, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("insert credential: %w", err)
	}
	return nil
}

// ListCredentialsByPrefix returns candidates in insertion order so the
// resolver's first-match rule is deterministic.
func (s *PostgresStore) ListCredentialsByPrefix(ctx context.Context, prefix string) ([]*models.Credential, error) {
	return s.listCredentials(ctx, "list credentials by prefix",
		`SELECT `+credentialColumns+` FROM credentials WHERE prefix = $1 ORDER BY created_at, id`, prefix)
}

func (s *PostgresStore) ListCredentialsByOwner(ctx context.Context, ownerKind, ownerID string) ([]*models.Credential, error) {
	return s.listCredentials(ctx, "list credentials by owner",
		`SELECT `+credentialColumns+` FROM credentials WHERE owner_kind = $1 AND owner_id = $2 ORDER BY created_at DESC`,
		ownerKind, ownerID)
}

func (s *PostgresStore) GetCredential(ctx context.Context, id uuid.UUID) (*models.Credential, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+credentialColumns+` FROM credentials WHERE id = $1`, id)
	c, err := scanCredential(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get credential: %w", err)
	}
	return c, nil
}

func (s *PostgresStore) DeleteCredential(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM credentials WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete credential: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// TouchCredentialLastUsed writes last_used_at only. updated_at is left
// alone so usage does not look like a modification.
func (s *PostgresStore) TouchCredentialLastUsed(ctx context.Context, id uuid.UUID, at time.Time) error {
	_, err := s.pool.Exec(ctx, `UPDATE credentials SET last_used_at = $2 WHERE id = $1`, id, at)
	if err != nil {
		return fmt.Errorf("touch credential last used: %w", err)
	}
	return nil
}

func (s *PostgresStore) listCredentials(ctx context.Context, op, query string, args ...any) ([]*models.Credential, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var creds []*models.Credential
	for rows.Next() {
		c, err := scanCredential(rows)
		if err != nil {
			return nil, fmt.Errorf("scan credential: %w", err)
		}
		creds = append(creds, c)
	}
	return creds, rows.Err()
}

func scanCredential(row pgx.Row) (*models.Credential, error) {
	var c models.Credential
	var abilities []string
	if err := row.Scan(&c.ID, &c.OwnerKind, &c.OwnerID, &c.Name, &c.Prefix, &c.SecretKey, &c.PublicKey,
		&abilities, &c.LastUsedAt, &c.ExpiresAt, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	c.Abilities = models.Abilities(abilities)
	return &c, nil
}

// isDuplicateKeyError checks if a pgx error is a unique constraint violation.
func isDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" // unique_violation
	}
	return false
}
