package auth

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const pgUniqueViolation = "23505"

const userColumns = `id, name, email, email_verified_at, password_hash, role,
	two_factor_secret, two_factor_enabled, created_at, updated_at`

// PGUserStore implements UserStore on top of a pgx pool. The unique index on
// lower(email) is the only mutual-exclusion mechanism guarding against
// duplicate accounts; every insert funnels its violation into ErrEmailTaken.
type PGUserStore struct {
	DB *pgxpool.Pool
}

func NewPGUserStore(db *pgxpool.Pool) *PGUserStore {
	return &PGUserStore{DB: db}
}

func (s *PGUserStore) Create(ctx context.Context, params CreateUserParams) (*User, error) {
	row := s.DB.QueryRow(ctx, `
		INSERT INTO users (id, name, email, email_verified_at, password_hash, role)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+userColumns,
		uuid.NewString(), params.Name, NormalizeEmail(params.Email),
		params.EmailVerifiedAt, params.PasswordHash, string(params.Role))

	user, err := scanUser(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return nil, ErrEmailTaken
		}
		return nil, err
	}
	return user, nil
}

func (s *PGUserStore) FindByEmail(ctx context.Context, email string) (*User, error) {
	row := s.DB.QueryRow(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE email = $1
	`, NormalizeEmail(email))

	user, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return user, err
}

func (s *PGUserStore) FindByID(ctx context.Context, id string) (*User, error) {
	row := s.DB.QueryRow(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE id = $1
	`, id)

	user, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return user, err
}

func (s *PGUserStore) SetEmailVerified(ctx context.Context, id string, at time.Time) error {
	_, err := s.DB.Exec(ctx, `
		UPDATE users
		SET email_verified_at = COALESCE(email_verified_at, $2), updated_at = NOW()
		WHERE id = $1
	`, id, at)
	return err
}

func (s *PGUserStore) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	_, err := s.DB.Exec(ctx, `
		UPDATE users
		SET password_hash = $2, updated_at = NOW()
		WHERE id = $1
	`, id, passwordHash)
	return err
}

func (s *PGUserStore) UpdateTwoFactorSecret(ctx context.Context, id string, secret *string) error {
	_, err := s.DB.Exec(ctx, `
		UPDATE users
		SET two_factor_secret = $2, updated_at = NOW()
		WHERE id = $1
	`, id, secret)
	return err
}

func (s *PGUserStore) SetTwoFactorEnabled(ctx context.Context, id string, enabled bool) error {
	var err error
	if enabled {
		_, err = s.DB.Exec(ctx, `
			UPDATE users
			SET two_factor_enabled = TRUE, updated_at = NOW()
			WHERE id = $1
		`, id)
	} else {
		_, err = s.DB.Exec(ctx, `
			UPDATE users
			SET two_factor_enabled = FALSE, two_factor_secret = NULL, updated_at = NOW()
			WHERE id = $1
		`, id)
	}
	return err
}

func (s *PGUserStore) FindByOAuthAccount(ctx context.Context, provider, accountID string) (*User, error) {
	row := s.DB.QueryRow(ctx, `
		SELECT u.id, u.name, u.email, u.email_verified_at, u.password_hash, u.role,
			u.two_factor_secret, u.two_factor_enabled, u.created_at, u.updated_at
		FROM users u
		JOIN oauth_accounts oa ON oa.user_id = u.id
		WHERE oa.provider = $1 AND oa.provider_account_id = $2
	`, provider, accountID)

	user, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return user, err
}

func (s *PGUserStore) LinkOAuthAccount(ctx context.Context, userID, provider, accountID string) error {
	_, err := s.DB.Exec(ctx, `
		INSERT INTO oauth_accounts (id, user_id, provider, provider_account_id)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (provider, provider_account_id)
		DO UPDATE SET user_id = EXCLUDED.user_id, updated_at = NOW()
	`, uuid.NewString(), userID, provider, accountID)
	return err
}

func scanUser(row pgx.Row) (*User, error) {
	var (
		id               string
		name             sql.NullString
		email            string
		verifiedAt       sql.NullTime
		passwordHash     sql.NullString
		role             string
		twoFactorSecret  sql.NullString
		twoFactorEnabled bool
		createdAt        time.Time
		updatedAt        time.Time
	)

	if err := row.Scan(
		&id,
		&name,
		&email,
		&verifiedAt,
		&passwordHash,
		&role,
		&twoFactorSecret,
		&twoFactorEnabled,
		&createdAt,
		&updatedAt,
	); err != nil {
		return nil, err
	}

	return &User{
		ID:               id,
		Name:             nullStringPtr(name),
		Email:            email,
		EmailVerifiedAt:  nullTimePtr(verifiedAt),
		PasswordHash:     nullStringPtr(passwordHash),
		Role:             Role(role),
		TwoFactorSecret:  nullStringPtr(twoFactorSecret),
		TwoFactorEnabled: twoFactorEnabled,
		CreatedAt:        createdAt,
		UpdatedAt:        updatedAt,
	}, nil
}

func nullStringPtr(ns sql.NullString) *string {
	if ns.Valid {
		return &ns.String
	}
	return nil
}

func nullTimePtr(nt sql.NullTime) *time.Time {
	if nt.Valid {
		return &nt.Time
	}
	return nil
}
