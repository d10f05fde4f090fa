package upload

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists sessions in the upload_sessions table. Monotonic
// progress and status-rank guards are enforced in SQL so concurrent chunk
// writers across processes cannot lose an update.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const sessionColumns = `id, owner_id, file_name, file_size, mime_type, object_key,
	coalesce(transfer_id, ''), status, progress_percent,
	coalesce(final_url, ''), coalesce(error_message, ''), created_at, updated_at`

func scanSession(row pgx.Row) (*Session, error) {
	var s Session
	err := row.Scan(&s.ID, &s.OwnerID, &s.FileName, &s.FileSize, &s.MimeType,
		&s.ObjectKey, &s.TransferID, &s.Status, &s.Progress,
		&s.FinalURL, &s.ErrorMessage, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (p *PostgresStore) Create(ctx context.Context, session *Session) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO upload_sessions
			(id, owner_id, file_name, file_size, mime_type, object_key, status, progress_percent, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		session.ID, session.OwnerID, session.FileName, session.FileSize,
		session.MimeType, session.ObjectKey, session.Status, session.Progress,
		session.CreatedAt, session.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

func (p *PostgresStore) Get(ctx context.Context, id string) (*Session, error) {
	row := p.pool.QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM upload_sessions WHERE id = $1`, id)
	session, err := scanSession(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errSessionNotFound(id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	return session, nil
}

func (p *PostgresStore) SetTransferID(ctx context.Context, id, transferID string) error {
	tag, err := p.pool.Exec(ctx, `
		UPDATE upload_sessions SET transfer_id = $2, updated_at = now()
		WHERE id = $1 AND transfer_id IS NULL`, id, transferID)
	if err != nil {
		return fmt.Errorf("failed to set transfer id: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return errInvalidState("transfer id already set")
	}
	return nil
}

func (p *PostgresStore) AdvanceProgress(ctx context.Context, id string, progress int, status Status) (*Session, error) {
	row := p.pool.QueryRow(ctx, `
		UPDATE upload_sessions SET
			progress_percent = GREATEST(progress_percent, $2),
			status = CASE WHEN status = 'chunking' THEN status ELSE $3 END,
			updated_at = now()
		WHERE id = $1 AND status NOT IN ('completed', 'failed')
		RETURNING `+sessionColumns, id, progress, status)
	session, err := scanSession(row)
	if errors.Is(err, pgx.ErrNoRows) {
		// Terminal or missing; hand back whatever is stored.
		return p.Get(ctx, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to advance progress: %w", err)
	}
	return session, nil
}

func (p *PostgresStore) MarkCompleted(ctx context.Context, id, finalURL string) (*Session, error) {
	row := p.pool.QueryRow(ctx, `
		UPDATE upload_sessions SET
			status = 'completed', progress_percent = 100, final_url = $2, updated_at = now()
		WHERE id = $1 AND status NOT IN ('completed', 'failed')
		RETURNING `+sessionColumns, id, finalURL)
	session, err := scanSession(row)
	if errors.Is(err, pgx.ErrNoRows) {
		current, getErr := p.Get(ctx, id)
		if getErr != nil {
			return nil, getErr
		}
		return nil, errInvalidState(fmt.Sprintf("session already %s", current.Status))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to mark session completed: %w", err)
	}
	return session, nil
}

func (p *PostgresStore) MarkFailed(ctx context.Context, id, message string) (*Session, error) {
	row := p.pool.QueryRow(ctx, `
		UPDATE upload_sessions SET
			status = 'failed', error_message = $2, updated_at = now()
		WHERE id = $1 AND status NOT IN ('completed', 'failed')
		RETURNING `+sessionColumns, id, message)
	session, err := scanSession(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return p.Get(ctx, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to mark session failed: %w", err)
	}
	return session, nil
}
