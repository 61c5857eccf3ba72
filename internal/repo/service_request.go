package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"bmai-api/internal/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ServiceRequestRepository stores service requests and their comment threads.
type ServiceRequestRepository struct {
	pool *pgxpool.Pool
}

func NewServiceRequestRepository(pool *pgxpool.Pool) *ServiceRequestRepository {
	return &ServiceRequestRepository{pool: pool}
}

const serviceRequestColumns = `
	request_id, building_id, created_by_user_id, assigned_tech_id, title, description,
	category, priority, status, source, resolution_notes, resolved_at, resolved_by_user_id,
	created_at, updated_at
`

func scanServiceRequest(row pgx.Row) (domain.ServiceRequest, error) {
	var (
		sr                                 domain.ServiceRequest
		assigned, notes, resolvedBy        pgtype.Text
		category, priority, status, source string
		resolvedAt                         pgtype.Timestamptz
	)
	err := row.Scan(
		&sr.ID, &sr.BuildingID, &sr.CreatedByUserID, &assigned, &sr.Title, &sr.Description,
		&category, &priority, &status, &source, &notes, &resolvedAt, &resolvedBy,
		&sr.CreatedAt, &sr.UpdatedAt,
	)
	if err != nil {
		return domain.ServiceRequest{}, err
	}
	sr.AssignedTechID = toStrPtr(assigned)
	sr.ResolutionNotes = toStrPtr(notes)
	sr.ResolvedByUserID = toStrPtr(resolvedBy)
	if resolvedAt.Valid {
		t := resolvedAt.Time
		sr.ResolvedAt = &t
	}
	sr.Category = domain.EquipmentType(category)
	sr.Priority = domain.ServiceRequestPriority(priority)
	sr.Status = domain.ServiceRequestStatus(status)
	sr.Source = domain.ServiceRequestSource(source)
	return sr, nil
}

// ListByBuilding returns the active requests of a building, newest first.
func (r *ServiceRequestRepository) ListByBuilding(ctx context.Context, buildingID string, params domain.ListServiceRequestsParams) ([]domain.ServiceRequest, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+serviceRequestColumns+`
		FROM service_requests
		WHERE building_id = $1 AND is_active = TRUE
		  AND ($2::text IS NULL OR status = $2)
		  AND ($3::text IS NULL OR category = $3)
		  AND ($4::text IS NULL OR priority = $4)
		  AND ($2::text IS NOT NULL OR $5::boolean OR status <> 'resolved')
		ORDER BY created_at DESC, request_id
	`, buildingID, textArg(params.Status), textArg(params.Category), textArg(params.Priority), params.IncludeResolved)
	if err != nil {
		return nil, fmt.Errorf("query service requests: %w", err)
	}
	defer rows.Close()

	requests := make([]domain.ServiceRequest, 0)
	for rows.Next() {
		sr, err := scanServiceRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("scan service request: %w", err)
		}
		requests = append(requests, sr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate service requests: %w", err)
	}
	return requests, nil
}

// Get returns one active request.
func (r *ServiceRequestRepository) Get(ctx context.Context, requestID string) (*domain.ServiceRequest, error) {
	sr, err := scanServiceRequest(r.pool.QueryRow(ctx,
		`SELECT `+serviceRequestColumns+` FROM service_requests WHERE request_id = $1 AND is_active = TRUE`,
		requestID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrServiceRequestNotFound
		}
		return nil, fmt.Errorf("query service request: %w", err)
	}
	return &sr, nil
}

// Create inserts a pending request. Callers validate req first.
func (r *ServiceRequestRepository) Create(ctx context.Context, buildingID, createdBy string, req *domain.CreateServiceRequestRequest) (*domain.ServiceRequest, error) {
	id := uuid.NewString()
	now := time.Now().UTC()

	_, err := r.pool.Exec(ctx, `
		INSERT INTO service_requests (
			request_id, building_id, created_by_user_id, title, description,
			category, priority, status, source, is_active, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 'pending', $8, TRUE, $9, $9)
	`, id, buildingID, createdBy, req.Title, req.Description,
		string(req.Category), string(req.Priority), string(req.Source), now)
	if err != nil {
		return nil, fmt.Errorf("insert service request: %w", err)
	}

	return r.Get(ctx, id)
}

// UpdateStatus moves a request from status `from` to req.Status and appends a
// status_change comment in the same transaction. Resolving stamps resolved_at
// and the resolver; any other move clears them. It returns
// domain.ErrInvalidTransition when the stored status is no longer `from`.
func (r *ServiceRequestRepository) UpdateStatus(ctx context.Context, requestID, actorID string, from domain.ServiceRequestStatus, req *domain.UpdateServiceRequestStatusRequest) (*domain.ServiceRequest, error) {
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		now := time.Now().UTC()

		var resolvedAt *time.Time
		var resolvedBy *string
		if req.Status == domain.StatusResolved {
			resolvedAt, resolvedBy = &now, &actorID
		}

		tag, err := tx.Exec(ctx, `
			UPDATE service_requests
			SET status = $3, resolution_notes = $4, resolved_at = $5, resolved_by_user_id = $6, updated_at = $7
			WHERE request_id = $1 AND status = $2 AND is_active = TRUE
		`, requestID, string(from), string(req.Status), req.ResolutionNotes, resolvedAt, resolvedBy, now)
		if err != nil {
			return fmt.Errorf("update service request status: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return domain.ErrInvalidTransition
		}

		text := fmt.Sprintf("Status changed from %s to %s", from, req.Status)
		metadata := map[string]interface{}{"from": string(from), "to": string(req.Status)}
		_, err = insertComment(ctx, tx, requestID, actorID, domain.CommentStatusChange, text, metadata, now)
		return err
	})
	if err != nil {
		return nil, err
	}

	return r.Get(ctx, requestID)
}

// Deactivate soft-deletes a request.
func (r *ServiceRequestRepository) Deactivate(ctx context.Context, requestID string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE service_requests SET is_active = FALSE, updated_at = $2
		WHERE request_id = $1 AND is_active = TRUE
	`, requestID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("deactivate service request: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrServiceRequestNotFound
	}
	return nil
}

// ListComments returns the thread of a request, oldest first.
func (r *ServiceRequestRepository) ListComments(ctx context.Context, requestID string) ([]domain.ServiceRequestComment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT comment_id, request_id, user_id, comment_type, comment_text, metadata, created_at
		FROM service_request_comments
		WHERE request_id = $1
		ORDER BY created_at, comment_id
	`, requestID)
	if err != nil {
		return nil, fmt.Errorf("query comments: %w", err)
	}
	defer rows.Close()

	comments := make([]domain.ServiceRequestComment, 0)
	for rows.Next() {
		var (
			c        domain.ServiceRequestComment
			kind     string
			metadata []byte
		)
		if err := rows.Scan(&c.ID, &c.RequestID, &c.UserID, &kind, &c.CommentText, &metadata, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan comment: %w", err)
		}
		c.CommentType = domain.CommentType(kind)
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &c.Metadata); err != nil {
				return nil, fmt.Errorf("decode comment metadata: %w", err)
			}
		}
		comments = append(comments, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate comments: %w", err)
	}
	return comments, nil
}

// AddComment appends a note to a request's thread.
func (r *ServiceRequestRepository) AddComment(ctx context.Context, requestID, userID, text string) (*domain.ServiceRequestComment, error) {
	return insertComment(ctx, r.pool, requestID, userID, domain.CommentNote, text, nil, time.Now().UTC())
}

// execer is satisfied by *pgxpool.Pool and pgx.Tx.
type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func insertComment(ctx context.Context, db execer, requestID, userID string, kind domain.CommentType, text string, metadata map[string]interface{}, at time.Time) (*domain.ServiceRequestComment, error) {
	var metadataJSON []byte
	if metadata != nil {
		raw, err := json.Marshal(metadata)
		if err != nil {
			return nil, fmt.Errorf("marshal comment metadata: %w", err)
		}
		metadataJSON = raw
	}

	c := &domain.ServiceRequestComment{
		ID:          uuid.NewString(),
		RequestID:   requestID,
		UserID:      userID,
		CommentType: kind,
		CommentText: text,
		Metadata:    metadata,
		CreatedAt:   at,
	}
	_, err := db.Exec(ctx, `
		INSERT INTO service_request_comments (comment_id, request_id, user_id, comment_type, comment_text, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, c.ID, c.RequestID, c.UserID, string(c.CommentType), c.CommentText, metadataJSON, c.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert comment: %w", err)
	}
	return c, nil
}
