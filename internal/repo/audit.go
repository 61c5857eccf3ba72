package repo

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Audit actions recorded for admin and service request writes.
const (
	AuditBuildingCreated  = "building.created"
	AuditBuildingUpdated  = "building.updated"
	AuditBuildingArchived = "building.archived"
	AuditBuildingRestored = "building.restored"
	AuditUserScopeUpdated = "user.scope_updated"
	AuditUserInvited      = "user.invited"

	AuditServiceRequestCreated = "service_request.created"
	AuditServiceRequestStatus  = "service_request.status_changed"
	AuditServiceRequestDeleted = "service_request.deleted"
)

// AuditEntry is one row of the audit log.
type AuditEntry struct {
	ActorID    string
	Action     string
	EntityType string
	EntityID   string
	Metadata   map[string]interface{}
	RequestID  string
}

// AuditRepo handles audit log storage
type AuditRepo struct {
	pool *pgxpool.Pool
}

// NewAuditRepo creates a new AuditRepo
func NewAuditRepo(pool *pgxpool.Pool) *AuditRepo {
	return &AuditRepo{pool: pool}
}

// LogAction logs an action to the audit log
func (r *AuditRepo) LogAction(ctx context.Context, entry AuditEntry) error {
	metadata := entry.Metadata
	if metadata == nil {
		metadata = map[string]interface{}{}
	}
	metadataJSON, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	var requestID *string
	if entry.RequestID != "" {
		requestID = &entry.RequestID
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO audit_log (actor_id, action, entity_type, entity_id, metadata, request_id)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, entry.ActorID, entry.Action, entry.EntityType, entry.EntityID, metadataJSON, requestID)
	if err != nil {
		return fmt.Errorf("failed to log action: %w", err)
	}

	return nil
}
