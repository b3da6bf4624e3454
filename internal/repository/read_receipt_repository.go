package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	apperrors "github.com/harborline/be-procurement-requests/internal/errors"
)

// ReadReceiptRepository stores per-viewer last-read timestamps. It implements
// notifications.ReceiptStore.
type ReadReceiptRepository struct {
	db *DB
}

// NewReadReceiptRepository creates a new ReadReceiptRepository.
func NewReadReceiptRepository(db *DB) *ReadReceiptRepository {
	return &ReadReceiptRepository{db: db}
}

// Upsert records that a viewer read a request at the given time. Repeated
// reads keep the latest timestamp.
func (r *ReadReceiptRepository) Upsert(ctx context.Context, requestID, viewerID string, at time.Time) error {
	query := `
		INSERT INTO read_receipts (request_id, viewer_id, last_read_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (request_id, viewer_id)
		DO UPDATE SET last_read_at = GREATEST(read_receipts.last_read_at, EXCLUDED.last_read_at)
	`
	if _, err := r.db.Exec(ctx, query, requestID, viewerID, at); err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to upsert read receipt")
	}
	return nil
}

// Get returns the viewer's last-read time, or nil when the viewer has never
// read the request.
func (r *ReadReceiptRepository) Get(ctx context.Context, requestID, viewerID string) (*time.Time, error) {
	query := `SELECT last_read_at FROM read_receipts WHERE request_id = $1 AND viewer_id = $2`

	var at time.Time
	err := r.db.QueryRow(ctx, query, requestID, viewerID).Scan(&at)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to get read receipt")
	}
	return &at, nil
}
