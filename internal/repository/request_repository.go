package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/harborline/be-procurement-requests/internal/domain"
	apperrors "github.com/harborline/be-procurement-requests/internal/errors"
)

// Bucket selects one request list view.
type Bucket string

const (
	BucketPending            Bucket = "pending"
	BucketApproved           Bucket = "approved"
	BucketCompleted          Bucket = "completed"
	BucketRejected           Bucket = "rejected"
	BucketQueried            Bucket = "queried"
	BucketMine               Bucket = "mine"
	BucketIncompleteDelivery Bucket = "incomplete_delivery"
)

var validBuckets = map[Bucket]bool{
	BucketPending:            true,
	BucketApproved:           true,
	BucketCompleted:          true,
	BucketRejected:           true,
	BucketQueried:            true,
	BucketMine:               true,
	BucketIncompleteDelivery: true,
}

// IsValid reports whether b names a known bucket.
func (b Bucket) IsValid() bool { return validBuckets[b] }

// ListFilter narrows a bucket listing.
type ListFilter struct {
	Bucket      Bucket
	Department  *domain.Department
	RequestType *domain.RequestType
	// Search matches request ID, requester name, or department.
	Search string
	// ViewerID scopes the "mine" bucket.
	ViewerID string
	Page     int
	PageSize int
}

// RequestRepository persists requests with their items, flow and history.
type RequestRepository struct {
	db *DB
}

// NewRequestRepository creates a new RequestRepository.
func NewRequestRepository(db *DB) *RequestRepository {
	return &RequestRepository{db: db}
}

const requestColumns = `
	id, request_type, department, destination,
	vessel_id, offshore_req_number, project_manager, approval_pick,
	requester_id, requester_name, priority, tag, state,
	procurement_approved, is_incomplete_delivery, version,
	created_at, updated_at`

// Create inserts a request with its items, flow and history in one
// transaction. Version starts at 0.
func (r *RequestRepository) Create(ctx context.Context, req *domain.Request) error {
	return r.db.InTransaction(ctx, func(tx pgx.Tx) error {
		return r.createTx(ctx, tx, req)
	})
}

func (r *RequestRepository) createTx(ctx context.Context, tx pgx.Tx, req *domain.Request) error {
	query := `
		INSERT INTO requests
		    (id, request_type, department, destination,
		     vessel_id, offshore_req_number, project_manager, approval_pick,
		     requester_id, requester_name, priority, tag, state,
		     procurement_approved, is_incomplete_delivery, version,
		     created_at, updated_at)
		VALUES ($1, $2::request_type, $3, $4,
		        $5, $6, $7, $8,
		        $9, $10, $11::request_priority, $12::request_tag, $13::request_state,
		        $14, $15, $16,
		        $17, $18)
	`
	_, err := tx.Exec(ctx, query,
		req.ID,
		req.Type,
		req.Department,
		req.Destination,
		req.VesselID,
		req.OffshoreReqNumber,
		req.ProjectManager,
		rolePtr(req.ApprovalPick),
		req.Requester.UserID,
		req.Requester.DisplayName,
		req.Priority,
		req.Tag,
		req.State,
		req.ProcurementApproved,
		req.IsIncompleteDelivery,
		req.Version,
		req.CreatedAt,
		req.UpdatedAt,
	)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to create request")
	}

	if err := r.insertItems(ctx, tx, req); err != nil {
		return err
	}
	if err := r.insertFlow(ctx, tx, req); err != nil {
		return err
	}
	return r.insertHistory(ctx, tx, req)
}

// GetByID retrieves a request with its items, flow and history.
func (r *RequestRepository) GetByID(ctx context.Context, id string) (*domain.Request, error) {
	query := `SELECT` + requestColumns + ` FROM requests WHERE id = $1`

	req, err := r.scanRequest(r.db.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.NotFound("request", id)
	}
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to get request")
	}

	if req.Items, err = r.getItems(ctx, id); err != nil {
		return nil, err
	}
	if req.Flow, err = r.getFlow(ctx, id); err != nil {
		return nil, err
	}
	if req.History, err = r.getHistory(ctx, id); err != nil {
		return nil, err
	}
	return req, nil
}

// Save persists an engine mutation. The row is guarded by the version the
// request carried when it was loaded; a losing writer gets a conflict error
// and must re-fetch. On success the in-memory version is bumped to match the
// stored row.
func (r *RequestRepository) Save(ctx context.Context, req *domain.Request) error {
	err := r.db.InTransaction(ctx, func(tx pgx.Tx) error {
		return r.saveTx(ctx, tx, req)
	})
	if err != nil {
		return err
	}
	req.Version++
	return nil
}

// SaveAndCreate persists a split: the mutated origin and the derived request
// commit or fail together, so a failure can never leave the origin advanced
// with its extracted items gone. The origin's version is consumed only on
// commit; a failed split is retryable with the same version.
func (r *RequestRepository) SaveAndCreate(ctx context.Context, origin, derived *domain.Request) error {
	err := r.db.InTransaction(ctx, func(tx pgx.Tx) error {
		if err := r.saveTx(ctx, tx, origin); err != nil {
			return err
		}
		return r.createTx(ctx, tx, derived)
	})
	if err != nil {
		return err
	}
	origin.Version++
	return nil
}

func (r *RequestRepository) saveTx(ctx context.Context, tx pgx.Tx, req *domain.Request) error {
	query := `
		UPDATE requests
		SET state                  = $3::request_state,
		    offshore_req_number    = $4,
		    procurement_approved   = $5,
		    is_incomplete_delivery = $6,
		    version                = version + 1,
		    updated_at             = $7
		WHERE id = $1 AND version = $2
	`
	tag, err := tx.Exec(ctx, query,
		req.ID,
		req.Version,
		req.State,
		req.OffshoreReqNumber,
		req.ProcurementApproved,
		req.IsIncompleteDelivery,
		req.UpdatedAt,
	)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to update request")
	}
	if tag.RowsAffected() == 0 {
		return apperrors.Newf(apperrors.ErrCodeConflict,
			"request %s changed since it was fetched; re-fetch and retry", req.ID)
	}

	// Items and flow are replaced wholesale; history is append-only
	// and deduplicated by position.
	if _, err := tx.Exec(ctx, `DELETE FROM request_items WHERE request_id = $1`, req.ID); err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to clear request items")
	}
	if err := r.insertItems(ctx, tx, req); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `DELETE FROM request_flow_steps WHERE request_id = $1`, req.ID); err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to clear request flow")
	}
	if err := r.insertFlow(ctx, tx, req); err != nil {
		return err
	}
	return r.insertHistory(ctx, tx, req)
}

// List returns one page of a bucket with the total count. Returned requests
// carry header fields only; fetch details with GetByID.
func (r *RequestRepository) List(ctx context.Context, filter ListFilter) ([]*domain.Request, int64, error) {
	if !filter.Bucket.IsValid() {
		return nil, 0, apperrors.InvalidInput("bucket", "unknown bucket "+string(filter.Bucket))
	}
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize < 1 || filter.PageSize > 100 {
		filter.PageSize = 20
	}

	where, args := r.buildWhere(filter)
	countQuery := `SELECT COUNT(*) FROM requests ` + where

	var total int64
	if err := r.db.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to count requests")
	}

	query := fmt.Sprintf(`SELECT %s FROM requests %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		requestColumns, where, len(args)+1, len(args)+2)
	args = append(args, filter.PageSize, (filter.Page-1)*filter.PageSize)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to list requests")
	}
	defer rows.Close()

	requests := make([]*domain.Request, 0)
	for rows.Next() {
		req, err := r.scanRequest(rows)
		if err != nil {
			return nil, 0, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to scan request")
		}
		requests = append(requests, req)
	}
	return requests, total, nil
}

func (r *RequestRepository) buildWhere(filter ListFilter) (string, []any) {
	conds := make([]string, 0, 4)
	args := make([]any, 0, 4)

	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	switch filter.Bucket {
	case BucketPending:
		conds = append(conds, "state = 'PENDING'::request_state")
	case BucketApproved:
		conds = append(conds, "state = 'APPROVED'::request_state")
	case BucketCompleted:
		conds = append(conds, "state = 'COMPLETED'::request_state")
	case BucketRejected:
		conds = append(conds, "state = 'REJECTED'::request_state")
	case BucketQueried:
		conds = append(conds, "state = 'QUERIED'::request_state")
	case BucketMine:
		conds = append(conds, "requester_id = "+arg(filter.ViewerID))
	case BucketIncompleteDelivery:
		conds = append(conds, "is_incomplete_delivery = TRUE")
	}

	if filter.Department != nil {
		conds = append(conds, "department = "+arg(string(*filter.Department)))
	}
	if filter.RequestType != nil {
		conds = append(conds, "request_type = "+arg(string(*filter.RequestType))+"::request_type")
	}
	if filter.Search != "" {
		p := arg("%" + filter.Search + "%")
		conds = append(conds, fmt.Sprintf("(id ILIKE %s OR requester_name ILIKE %s OR department ILIKE %s)", p, p, p))
	}

	if len(conds) == 0 {
		return "", args
	}
	return "WHERE " + strings.Join(conds, " AND "), args
}

// GetFlow returns just the waypoint list for a request.
func (r *RequestRepository) GetFlow(ctx context.Context, requestID string) ([]domain.FlowStep, error) {
	// Distinguish a request with no flow from a missing request: transition
	// operations must refuse the former rather than guess.
	var exists bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM requests WHERE id = $1)`, requestID).Scan(&exists)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to check request")
	}
	if !exists {
		return nil, apperrors.NotFound("request", requestID)
	}
	return r.getFlow(ctx, requestID)
}

// NextOffshoreReqNumber allocates the next sequential offshore request
// number for a (marine, deck-or-engine) pair. Numbers are assigned once and
// never reused.
func (r *RequestRepository) NextOffshoreReqNumber(ctx context.Context, destination domain.Destination, department domain.Department) (string, error) {
	query := `
		INSERT INTO offshore_sequences (destination, department, next_value)
		VALUES ($1, $2, 1)
		ON CONFLICT (destination, department)
		DO UPDATE SET next_value = offshore_sequences.next_value + 1
		RETURNING next_value
	`
	var n int64
	if err := r.db.QueryRow(ctx, query, destination, department).Scan(&n); err != nil {
		return "", apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to allocate offshore request number")
	}
	return fmt.Sprintf("OSR-%s-%04d", strings.ToUpper(string(department)), n), nil
}

// ── insert helpers ────────────────────────────────────────────────────────────

func (r *RequestRepository) insertItems(ctx context.Context, tx pgx.Tx, req *domain.Request) error {
	query := `
		INSERT INTO request_items
		    (id, request_id, position, name, item_type, maker, makers_part_no,
		     quantity, unit_price, currency, vatted, discount_pct,
		     logistics_type, fee_amount, vendor_id, vendor_name, total_price)
		VALUES ($1, $2, $3, $4, $5::item_type, $6, $7,
		        $8, $9, $10, $11, $12,
		        $13::logistics_type, $14, $15, $16, $17)
	`
	for i, item := range req.Items {
		_, err := tx.Exec(ctx, query,
			item.ID,
			req.ID,
			i,
			item.Name,
			item.ItemType,
			item.Maker,
			item.MakersPartNo,
			item.Quantity,
			item.UnitPrice,
			item.Currency,
			item.Vatted,
			item.DiscountPct,
			item.LogisticsType,
			item.FeeAmount,
			item.VendorID,
			item.VendorName,
			item.TotalPrice,
		)
		if err != nil {
			return apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to insert line item")
		}
	}
	return nil
}

func (r *RequestRepository) insertFlow(ctx context.Context, tx pgx.Tx, req *domain.Request) error {
	query := `
		INSERT INTO request_flow_steps
		    (request_id, position, waypoint, role, status, actor_id, acted_at)
		VALUES ($1, $2, $3, $4, $5::step_status, $6, $7)
	`
	for i, step := range req.Flow {
		_, err := tx.Exec(ctx, query,
			req.ID, i, step.Waypoint, step.Role, step.Status, step.ActorID, step.Timestamp,
		)
		if err != nil {
			return apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to insert flow step")
		}
	}
	return nil
}

// insertHistory appends history entries by position; re-inserting already
// stored entries is a no-op, so the log stays append-only.
func (r *RequestRepository) insertHistory(ctx context.Context, tx pgx.Tx, req *domain.Request) error {
	query := `
		INSERT INTO request_history
		    (request_id, position, action, role, actor_id, info, occurred_at)
		VALUES ($1, $2, $3::history_action, $4, $5, $6, $7)
		ON CONFLICT (request_id, position) DO NOTHING
	`
	for i, h := range req.History {
		_, err := tx.Exec(ctx, query,
			req.ID, i, h.Action, h.Role, h.ActorID, h.Info, h.Timestamp,
		)
		if err != nil {
			return apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to insert history entry")
		}
	}
	return nil
}

// ── read helpers ──────────────────────────────────────────────────────────────

func (r *RequestRepository) getItems(ctx context.Context, requestID string) ([]domain.LineItem, error) {
	query := `
		SELECT id, name, item_type, maker, makers_part_no,
		       quantity, unit_price, currency, vatted, discount_pct,
		       logistics_type, fee_amount, vendor_id, vendor_name, total_price
		FROM request_items
		WHERE request_id = $1
		ORDER BY position
	`
	rows, err := r.db.Query(ctx, query, requestID)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to get line items")
	}
	defer rows.Close()

	items := make([]domain.LineItem, 0)
	for rows.Next() {
		var item domain.LineItem
		err := rows.Scan(
			&item.ID,
			&item.Name,
			&item.ItemType,
			&item.Maker,
			&item.MakersPartNo,
			&item.Quantity,
			&item.UnitPrice,
			&item.Currency,
			&item.Vatted,
			&item.DiscountPct,
			&item.LogisticsType,
			&item.FeeAmount,
			&item.VendorID,
			&item.VendorName,
			&item.TotalPrice,
		)
		if err != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to scan line item")
		}
		items = append(items, item)
	}
	return items, nil
}

func (r *RequestRepository) getFlow(ctx context.Context, requestID string) ([]domain.FlowStep, error) {
	query := `
		SELECT waypoint, role, status, actor_id, acted_at
		FROM request_flow_steps
		WHERE request_id = $1
		ORDER BY position
	`
	rows, err := r.db.Query(ctx, query, requestID)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to get flow steps")
	}
	defer rows.Close()

	steps := make([]domain.FlowStep, 0)
	for rows.Next() {
		var step domain.FlowStep
		if err := rows.Scan(&step.Waypoint, &step.Role, &step.Status, &step.ActorID, &step.Timestamp); err != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to scan flow step")
		}
		steps = append(steps, step)
	}
	return steps, nil
}

func (r *RequestRepository) getHistory(ctx context.Context, requestID string) ([]domain.HistoryEntry, error) {
	query := `
		SELECT action, role, actor_id, info, occurred_at
		FROM request_history
		WHERE request_id = $1
		ORDER BY position
	`
	rows, err := r.db.Query(ctx, query, requestID)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to get history")
	}
	defer rows.Close()

	entries := make([]domain.HistoryEntry, 0)
	for rows.Next() {
		var h domain.HistoryEntry
		if err := rows.Scan(&h.Action, &h.Role, &h.ActorID, &h.Info, &h.Timestamp); err != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to scan history entry")
		}
		entries = append(entries, h)
	}
	return entries, nil
}

type requestScanner interface {
	Scan(dest ...any) error
}

func (r *RequestRepository) scanRequest(row requestScanner) (*domain.Request, error) {
	req := &domain.Request{}
	var approvalPick *string
	err := row.Scan(
		&req.ID,
		&req.Type,
		&req.Department,
		&req.Destination,
		&req.VesselID,
		&req.OffshoreReqNumber,
		&req.ProjectManager,
		&approvalPick,
		&req.Requester.UserID,
		&req.Requester.DisplayName,
		&req.Priority,
		&req.Tag,
		&req.State,
		&req.ProcurementApproved,
		&req.IsIncompleteDelivery,
		&req.Version,
		&req.CreatedAt,
		&req.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if approvalPick != nil {
		pick := domain.Role(*approvalPick)
		req.ApprovalPick = &pick
	}
	return req, nil
}

func rolePtr(r *domain.Role) *string {
	if r == nil {
		return nil
	}
	s := string(*r)
	return &s
}
