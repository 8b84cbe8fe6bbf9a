package auth

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGChallengeStore keeps one challenge row per (user, purpose); the upsert in
// Replace is what makes "issue supersedes the prior challenge" linearizable —
// a consume that arrives after a new issue can only ever see the new row.
type PGChallengeStore struct {
	DB *pgxpool.Pool
}

func NewPGChallengeStore(db *pgxpool.Pool) *PGChallengeStore {
	return &PGChallengeStore{DB: db}
}

func (s *PGChallengeStore) Replace(ctx context.Context, ch Challenge) error {
	_, err := s.DB.Exec(ctx, `
		INSERT INTO email_challenges
			(user_id, purpose, code_hash, token_hash, sent_to, issued_at, expires_at, consumed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NULL)
		ON CONFLICT (user_id, purpose) DO UPDATE SET
			code_hash = EXCLUDED.code_hash,
			token_hash = EXCLUDED.token_hash,
			sent_to = EXCLUDED.sent_to,
			issued_at = EXCLUDED.issued_at,
			expires_at = EXCLUDED.expires_at,
			consumed_at = NULL
	`, ch.UserID, string(ch.Purpose), ch.CodeHash, ch.TokenHash, ch.SentTo, ch.IssuedAt, ch.ExpiresAt)
	return err
}

func (s *PGChallengeStore) Find(ctx context.Context, userID string, purpose ChallengePurpose) (*Challenge, error) {
	row := s.DB.QueryRow(ctx, `
		SELECT user_id, purpose, code_hash, token_hash, sent_to, issued_at, expires_at, consumed_at
		FROM email_challenges
		WHERE user_id = $1 AND purpose = $2
	`, userID, string(purpose))

	ch, err := scanChallenge(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return ch, err
}

func (s *PGChallengeStore) FindByTokenHash(ctx context.Context, purpose ChallengePurpose, tokenHash string) (*Challenge, error) {
	row := s.DB.QueryRow(ctx, `
		SELECT user_id, purpose, code_hash, token_hash, sent_to, issued_at, expires_at, consumed_at
		FROM email_challenges
		WHERE purpose = $1 AND token_hash = $2
	`, string(purpose), tokenHash)

	ch, err := scanChallenge(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return ch, err
}

// Consume sets consumed_at only when it is still NULL and the row still
// carries the code_hash the caller validated against. The affected-row count
// is the compare-and-set result: zero means another request consumed the
// challenge first, or a superseding issue replaced the row after the read.
func (s *PGChallengeStore) Consume(ctx context.Context, userID string, purpose ChallengePurpose, codeHash string, at time.Time) (bool, error) {
	tag, err := s.DB.Exec(ctx, `
		UPDATE email_challenges
		SET consumed_at = $4
		WHERE user_id = $1 AND purpose = $2 AND code_hash = $3 AND consumed_at IS NULL
	`, userID, string(purpose), codeHash, at)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PGChallengeStore) DeleteExpiredBefore(ctx context.Context, cutoff time.Time) error {
	_, err := s.DB.Exec(ctx, `
		DELETE FROM email_challenges
		WHERE expires_at < $1
	`, cutoff)
	return err
}

func scanChallenge(row pgx.Row) (*Challenge, error) {
	var (
		ch         Challenge
		purpose    string
		consumedAt sql.NullTime
	)

	if err := row.Scan(
		&ch.UserID,
		&purpose,
		&ch.CodeHash,
		&ch.TokenHash,
		&ch.SentTo,
		&ch.IssuedAt,
		&ch.ExpiresAt,
		&consumedAt,
	); err != nil {
		return nil, err
	}

	ch.Purpose = ChallengePurpose(purpose)
	ch.ConsumedAt = nullTimePtr(consumedAt)
	return &ch, nil
}
