package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bloxkit/experience-notify/internal/domain"
)

// PgStore is the PostgreSQL JobStore backend for installations that
// already run Postgres instead of a key-value store. Claim atomicity
// comes from FOR UPDATE SKIP LOCKED: concurrent claimers never see the
// same queued row.
type PgStore struct {
	pool *pgxpool.Pool
}

func NewPgStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{pool: pool}
}

const jobColumns = `id, message_type, user_id, api_key, universe_id, asset_id,
	       status, last_error, ready_at, expires_at, created_at, updated_at`

func (s *PgStore) Put(ctx context.Context, job *domain.Job) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO jobs
			(id, message_type, user_id, api_key, universe_id, asset_id,
			 status, last_error, ready_at, expires_at, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
		job.ID, job.Message.Type, job.Message.Body.UserID, job.Message.Body.APIKey,
		job.Message.Body.UniverseID, job.Message.Body.AssetID,
		job.Status, job.LastError, job.ReadyAt, job.ExpiresAt, job.CreatedAt, job.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

func (s *PgStore) Get(ctx context.Context, id string) (*domain.Job, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE id = $1`, id)

	job, err := scanJob(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

func (s *PgStore) Delete(ctx context.Context, id string) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM jobs WHERE id = $1 AND status = 'queued'`, id)
	if err != nil {
		return false, fmt.Errorf("delete job: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *PgStore) ClaimDue(ctx context.Context, now time.Time, limit int) ([]*domain.Job, error) {
	rows, err := s.pool.Query(ctx, `
		UPDATE jobs
		SET status = 'processing', updated_at = $1
		WHERE id IN (
			SELECT id FROM jobs
			WHERE status = 'queued' AND ready_at <= $1
			ORDER BY ready_at, created_at
			LIMIT $2
			FOR UPDATE SKIP LOCKED
		)
		RETURNING `+jobColumns,
		now, limit)
	if err != nil {
		return nil, fmt.Errorf("claim due jobs: %w", err)
	}
	defer rows.Close()
	return scanJobs(rows)
}

func (s *PgStore) MarkCompleted(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE jobs SET status = 'completed', updated_at = NOW()
		WHERE id = $1`, id)
	return err
}

func (s *PgStore) MarkFailed(ctx context.Context, id string, errMsg string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE jobs SET status = 'failed', last_error = $1, updated_at = NOW()
		WHERE id = $2`, errMsg, id)
	return err
}

func (s *PgStore) CountByStatus(ctx context.Context) (domain.StatusCounts, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT status, COUNT(*) FROM jobs GROUP BY status`)
	if err != nil {
		return domain.StatusCounts{}, fmt.Errorf("count jobs: %w", err)
	}
	defer rows.Close()

	var counts domain.StatusCounts
	for rows.Next() {
		var status domain.Status
		var count int64
		if err := rows.Scan(&status, &count); err != nil {
			return domain.StatusCounts{}, err
		}
		switch status {
		case domain.StatusQueued:
			counts.Queued = count
		case domain.StatusProcessing:
			counts.Processing = count
		case domain.StatusCompleted:
			counts.Completed = count
		case domain.StatusFailed:
			counts.Failed = count
		}
	}
	return counts, rows.Err()
}

func (s *PgStore) PurgeExpired(ctx context.Context, now time.Time) (int, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM jobs WHERE expires_at < $1`, now)
	if err != nil {
		return 0, fmt.Errorf("purge expired jobs: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// ---- helpers ----

// scanJob reads a single job row from any pgx row type.
func scanJob(row pgx.Row) (*domain.Job, error) {
	var job domain.Job
	err := row.Scan(
		&job.ID, &job.Message.Type, &job.Message.Body.UserID, &job.Message.Body.APIKey,
		&job.Message.Body.UniverseID, &job.Message.Body.AssetID,
		&job.Status, &job.LastError, &job.ReadyAt, &job.ExpiresAt,
		&job.CreatedAt, &job.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &job, nil
}

func scanJobs(rows pgx.Rows) ([]*domain.Job, error) {
	var result []*domain.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, job)
	}
	return result, rows.Err()
}

// compile-time check that PgStore implements JobStore
var _ JobStore = (*PgStore)(nil)
