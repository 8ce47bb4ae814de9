package repo

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"mediaserver/internal/domain"
)

// HistoryRepositoryPG implements domain.HistoryRepository on PostgreSQL.
type HistoryRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewHistoryRepository creates a new history repository backed by PostgreSQL.
func NewHistoryRepository(pool *pgxpool.Pool) *HistoryRepositoryPG {
	return &HistoryRepositoryPG{pool: pool}
}

const historyColumns = `id, username, kind, status, params, generated_urls, error_message, created_at, updated_at`

// Insert persists a new history record.
func (r *HistoryRepositoryPG) Insert(ctx context.Context, rec *domain.HistoryRecord) error {
	query := `
INSERT INTO history_items (id, username, kind, status, params, generated_urls, error_message)
VALUES ($1, $2, $3, $4, $5, $6, $7);
`
	_, err := r.pool.Exec(ctx, query,
		rec.ID,
		rec.Username,
		string(rec.Kind),
		string(rec.Status),
		[]byte(rec.Params),
		urlsOrEmpty(rec.GeneratedURLs),
		rec.ErrorMessage,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return domain.ErrConflict
		}
		return err
	}
	return nil
}

// GetByID fetches a record by its identifier.
func (r *HistoryRepositoryPG) GetByID(ctx context.Context, id string) (*domain.HistoryRecord, error) {
	query := `
SELECT ` + historyColumns + `
FROM history_items
WHERE id = $1;
`
	return r.scanOne(r.pool.QueryRow(ctx, query, id))
}

// GetForOwner fetches a record scoped to its owner. Ownership is enforced in
// SQL so an absent row and a foreign row are indistinguishable to the caller.
func (r *HistoryRepositoryPG) GetForOwner(ctx context.Context, id, username string) (*domain.HistoryRecord, error) {
	query := `
SELECT ` + historyColumns + `
FROM history_items
WHERE id = $1 AND username = $2;
`
	return r.scanOne(r.pool.QueryRow(ctx, query, id, username))
}

// ListByUsername pages records newest-first with a stable id tie-break.
// Relies on the (username, created_at DESC) index to stay cheap as the table
// grows.
func (r *HistoryRepositoryPG) ListByUsername(ctx context.Context, username string, page, pageSize int, kind domain.Kind) (*domain.HistoryPage, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	countQuery := `
SELECT COUNT(*)
FROM history_items
WHERE ($1 = '' OR username = $1)
  AND ($2 = '' OR kind = $2);
`
	var total int
	if err := r.pool.QueryRow(ctx, countQuery, username, string(kind)).Scan(&total); err != nil {
		return nil, err
	}

	query := `
SELECT ` + historyColumns + `
FROM history_items
WHERE ($1 = '' OR username = $1)
  AND ($2 = '' OR kind = $2)
ORDER BY created_at DESC, id DESC
LIMIT $3 OFFSET $4;
`
	rows, err := r.pool.Query(ctx, query, username, string(kind), pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	pageOut := &domain.HistoryPage{TotalCount: total}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		pageOut.Items = append(pageOut.Items, *rec)
	}
	return pageOut, rows.Err()
}

// MarkCompleted applies the processing -> completed transition atomically.
// The status guard in the WHERE clause is what makes duplicate webhook
// deliveries no-ops.
func (r *HistoryRepositoryPG) MarkCompleted(ctx context.Context, id string, urls []string) (bool, error) {
	query := `
UPDATE history_items
SET status = 'completed',
    generated_urls = $2,
    error_message = '',
    updated_at = NOW()
WHERE id = $1 AND status = 'processing';
`
	tag, err := r.pool.Exec(ctx, query, id, urlsOrEmpty(urls))
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// MarkFailed applies the processing -> failed transition atomically.
func (r *HistoryRepositoryPG) MarkFailed(ctx context.Context, id, message string) (bool, error) {
	query := `
UPDATE history_items
SET status = 'failed',
    error_message = $2,
    generated_urls = '{}',
    updated_at = NOW()
WHERE id = $1 AND status = 'processing';
`
	tag, err := r.pool.Exec(ctx, query, id, message)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// FailStale force-fails processing records older than the cutoff.
func (r *HistoryRepositoryPG) FailStale(ctx context.Context, olderThan time.Time, message string) (int64, error) {
	query := `
UPDATE history_items
SET status = 'failed',
    error_message = $2,
    updated_at = NOW()
WHERE status = 'processing' AND created_at < $1;
`
	tag, err := r.pool.Exec(ctx, query, olderThan, message)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *HistoryRepositoryPG) scanOne(row pgx.Row) (*domain.HistoryRecord, error) {
	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return rec, nil
}

func scanRecord(row pgx.Row) (*domain.HistoryRecord, error) {
	var rec domain.HistoryRecord
	var kind, status string
	var params []byte
	if err := row.Scan(
		&rec.ID,
		&rec.Username,
		&kind,
		&status,
		&params,
		&rec.GeneratedURLs,
		&rec.ErrorMessage,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	); err != nil {
		return nil, err
	}
	rec.Kind = domain.Kind(kind)
	rec.Status = domain.NormalizeStatus(status)
	rec.Params = params
	return &rec, nil
}

func urlsOrEmpty(urls []string) []string {
	if urls == nil {
		return []string{}
	}
	return urls
}

var _ domain.HistoryRepository = (*HistoryRepositoryPG)(nil)
