package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// AuditAction represents the type of action being audited
type AuditAction string

const (
	AuditActionAccountRegistered      AuditAction = "account_registered"
	AuditActionLoginSucceeded         AuditAction = "login_succeeded"
	AuditActionLoginFailed            AuditAction = "login_failed"
	AuditActionProfileUpdated         AuditAction = "profile_updated"
	AuditActionPasswordChanged        AuditAction = "password_changed"
	AuditActionPasswordResetRequested AuditAction = "password_reset_requested"
	AuditActionPasswordResetCompleted AuditAction = "password_reset_completed"
	AuditActionPasswordAssigned       AuditAction = "password_assigned"
	AuditActionRoleChanged            AuditAction = "role_changed"
	AuditActionAccountDeactivated     AuditAction = "account_deactivated"
	AuditActionAccountActivated       AuditAction = "account_activated"
	AuditActionAccountDeleted         AuditAction = "account_deleted"
	AuditActionExternalAccountCreated AuditAction = "external_account_created"
	AuditActionExternalRoleAssigned   AuditAction = "external_role_assigned"
)

// AuditLog represents an audit trail entry for an account event
type AuditLog struct {
	ID        uuid.UUID       `json:"id" db:"id"`
	ActorID   *string         `json:"actorId,omitempty" db:"actor_id"`
	SubjectID *string         `json:"subjectId,omitempty" db:"subject_id"`
	Action    AuditAction     `json:"action" db:"action"`
	Details   json.RawMessage `json:"details" db:"details"` // JSONB for flexible metadata
	IPAddress string          `json:"ipAddress" db:"ip_address"`
	UserAgent string          `json:"userAgent" db:"user_agent"`
	RequestID string          `json:"requestId" db:"request_id"`
	Timestamp time.Time       `json:"timestamp" db:"timestamp"`
}

// TableName returns the table name for the AuditLog model
func (AuditLog) TableName() string {
	return "audit_logs"
}

// NewAuditLog creates a new AuditLog instance
func NewAuditLog(action AuditAction) *AuditLog {
	return &AuditLog{
		ID:        uuid.New(),
		Action:    action,
		Details:   json.RawMessage(`{}`),
		Timestamp: time.Now().UTC(),
	}
}

// WithActor sets the principal that performed the action
func (a *AuditLog) WithActor(actorID string) *AuditLog {
	if actorID != "" {
		a.ActorID = &actorID
	}
	return a
}

// WithSubject sets the account the action applied to
func (a *AuditLog) WithSubject(subjectID string) *AuditLog {
	if subjectID != "" {
		a.SubjectID = &subjectID
	}
	return a
}

// WithDetails sets the details
func (a *AuditLog) WithDetails(details interface{}) *AuditLog {
	if data, err := json.Marshal(details); err == nil {
		a.Details = data
	}
	return a
}

// WithRequest sets request metadata
func (a *AuditLog) WithRequest(requestID, ipAddress, userAgent string) *AuditLog {
	a.RequestID = requestID
	a.IPAddress = ipAddress
	a.UserAgent = userAgent
	return a
}
