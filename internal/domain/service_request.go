package domain

import (
	"errors"
	"time"
)

// ErrServiceRequestNotFound indicates the request does not exist, is inactive,
// or belongs to a building outside the caller's accessible set.
var ErrServiceRequestNotFound = errors.New("service request not found")

// ErrInvalidTransition indicates a status change the request's current status
// does not allow.
var ErrInvalidTransition = errors.New("invalid status transition")

type ServiceRequestPriority string

const (
	PriorityLow    ServiceRequestPriority = "low"
	PriorityMedium ServiceRequestPriority = "medium"
	PriorityHigh   ServiceRequestPriority = "high"
)

type ServiceRequestStatus string

const (
	StatusPending    ServiceRequestStatus = "pending"
	StatusDispatched ServiceRequestStatus = "dispatched"
	StatusInProgress ServiceRequestStatus = "in_progress"
	StatusResolved   ServiceRequestStatus = "resolved"
)

// IsValid checks if the status is one of the defined constants
func (s ServiceRequestStatus) IsValid() bool {
	switch s {
	case StatusPending, StatusDispatched, StatusInProgress, StatusResolved:
		return true
	default:
		return false
	}
}

// CanTransitionTo reports whether a request in s may move to next. Resolved
// requests may only be reopened to pending; other moves are free.
func (s ServiceRequestStatus) CanTransitionTo(next ServiceRequestStatus) bool {
	if !next.IsValid() || s == next {
		return false
	}
	if s == StatusResolved {
		return next == StatusPending
	}
	return true
}

type ServiceRequestSource string

const (
	SourceManual ServiceRequestSource = "manual"
	SourceChat   ServiceRequestSource = "chat"
	SourceEmail  ServiceRequestSource = "email"
)

type CommentType string

const (
	CommentNote         CommentType = "note"
	CommentStatusChange CommentType = "status_change"
	CommentAssignment   CommentType = "assignment"
	CommentSystem       CommentType = "system"
)

// ServiceRequest is a maintenance request raised against a building.
type ServiceRequest struct {
	ID               string                 `json:"id"`
	BuildingID       string                 `json:"buildingId"`
	CreatedByUserID  string                 `json:"createdByUserId"`
	AssignedTechID   *string                `json:"assignedTechId,omitempty"`
	Title            string                 `json:"title"`
	Description      string                 `json:"description"`
	Category         EquipmentType          `json:"category"`
	Priority         ServiceRequestPriority `json:"priority"`
	Status           ServiceRequestStatus   `json:"status"`
	Source           ServiceRequestSource   `json:"source"`
	ResolutionNotes  *string                `json:"resolutionNotes,omitempty"`
	ResolvedAt       *time.Time             `json:"resolvedAt,omitempty"`
	ResolvedByUserID *string                `json:"resolvedByUserId,omitempty"`
	CreatedAt        time.Time              `json:"createdAt"`
	UpdatedAt        time.Time              `json:"updatedAt"`
}

// ServiceRequestComment is one entry of a request's activity thread.
type ServiceRequestComment struct {
	ID          string                 `json:"id"`
	RequestID   string                 `json:"requestId"`
	UserID      string                 `json:"userId"`
	CommentType CommentType            `json:"commentType"`
	CommentText string                 `json:"commentText"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt   time.Time              `json:"createdAt"`
}

// ListServiceRequestsParams filters the requests of one building. Resolved
// requests are excluded unless Status asks for them or IncludeResolved is set.
type ListServiceRequestsParams struct {
	Status          *ServiceRequestStatus
	Category        *EquipmentType
	Priority        *ServiceRequestPriority
	IncludeResolved bool
}

// CreateServiceRequestRequest is the DTO for raising a request.
type CreateServiceRequestRequest struct {
	Title       string                 `json:"title" validate:"required,max=200"`
	Description string                 `json:"description" validate:"required,max=5000"`
	Category    EquipmentType          `json:"category" validate:"required,oneof=HVAC Electrical Fire Plumbing Hydraulic Security Lift Other"`
	Priority    ServiceRequestPriority `json:"priority" validate:"omitempty,oneof=low medium high"`
	Source      ServiceRequestSource   `json:"source" validate:"omitempty,oneof=manual chat email"`
}

// UpdateServiceRequestStatusRequest moves a request to a new status.
// ResolutionNotes is only kept when Status is resolved.
type UpdateServiceRequestStatusRequest struct {
	Status          ServiceRequestStatus `json:"status" validate:"required,oneof=pending dispatched in_progress resolved"`
	ResolutionNotes *string              `json:"resolutionNotes" validate:"omitempty,max=5000"`
}

// AddCommentRequest is the DTO for a user note on a request.
type AddCommentRequest struct {
	CommentText string `json:"commentText" validate:"required,max=5000"`
}
