package models

import (
	"encoding/json"
	"time"

	"github.com/lib/pq"
)

// AuditLog records one operator action forwarded to the backoffice backend
type AuditLog struct {
	ID               uint            `gorm:"primaryKey" json:"id"`
	Operator         string          `gorm:"size:255;not null;index:idx_audit_operator" json:"operator"`
	TokenFingerprint string          `gorm:"size:64;index:idx_audit_token_fingerprint" json:"token_fingerprint"`
	Action           string          `gorm:"size:64;not null;index:idx_audit_action" json:"action"`
	TargetIDs        pq.Int64Array   `gorm:"type:bigint[];index:idx_audit_target_ids,type:gin" json:"target_ids"`
	Description      *string         `gorm:"type:text" json:"description,omitempty"`
	IPAddress        *string         `gorm:"size:64" json:"ip_address,omitempty"`
	UserAgent        *string         `gorm:"type:text" json:"user_agent,omitempty"`
	RequestID        *string         `gorm:"size:255;index:idx_audit_request_id" json:"request_id,omitempty"`
	Metadata         json.RawMessage `gorm:"type:jsonb" json:"metadata,omitempty"`
	Success          *bool           `gorm:"default:true;index:idx_audit_success" json:"success"`
	ErrorMessage     *string         `gorm:"type:text" json:"error_message,omitempty"`
	CreatedAt        time.Time       `gorm:"default:CURRENT_TIMESTAMP;index:idx_audit_created_at" json:"created_at"`
}

func (AuditLog) TableName() string {
	return "backoffice_audit_log"
}

// Audit action constants
const (
	AuditActionTagCreated       = "tag_created"
	AuditActionTagUpdated       = "tag_updated"
	AuditActionTagDeleted       = "tag_deleted"
	AuditActionSegmentsSetup    = "segments_setup"
	AuditActionTimelineExported = "timeline_exported"
)

var AuditActions = []string{
	AuditActionTagCreated,
	AuditActionTagUpdated,
	AuditActionTagDeleted,
	AuditActionSegmentsSetup,
	AuditActionTimelineExported,
}

// AuditLogFilter represents filter criteria for audit log queries
type AuditLogFilter struct {
	Action        *string
	Operator      *string
	TargetID      *int64
	Success       *bool
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
}

func (a *AuditLog) IsFailed() bool {
	return a.Success != nil && !*a.Success
}

// IsDestructive reports whether the action removed or replaced backend state
func (a *AuditLog) IsDestructive() bool {
	return a.Action == AuditActionTagDeleted || a.Action == AuditActionSegmentsSetup
}
