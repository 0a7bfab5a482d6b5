package businessflow

import (
	"context"
	"encoding/json"
	"log"

	"github.com/amirphl/segment-backoffice/models"
	"github.com/amirphl/segment-backoffice/repository"
	"github.com/amirphl/segment-backoffice/utils"
	"github.com/lib/pq"
)

// auditRecorder writes operator actions to the audit log when a database is
// configured. Failures are logged and never fail the action itself.
type auditRecorder struct {
	repo repository.AuditLogRepository
}

func (a auditRecorder) record(ctx context.Context, action string, targets []int64, description string, actionErr error, metadata any) {
	if a.repo == nil {
		return
	}

	session := SessionFromContext(ctx)
	meta := MetadataFromContext(ctx)

	entry := &models.AuditLog{
		Operator:         session.Operator(),
		TokenFingerprint: session.Fingerprint(),
		Action:           action,
		TargetIDs:        pq.Int64Array(targets),
		Description:      &description,
		Success:          utils.ToPtr(actionErr == nil),
	}
	if meta.IPAddress != "" {
		entry.IPAddress = &meta.IPAddress
	}
	if meta.UserAgent != "" {
		entry.UserAgent = &meta.UserAgent
	}
	if meta.RequestID != "" {
		entry.RequestID = &meta.RequestID
	}
	if actionErr != nil {
		entry.ErrorMessage = utils.ToPtr(actionErr.Error())
	}
	if metadata != nil {
		if bs, err := json.Marshal(metadata); err == nil {
			entry.Metadata = bs
		}
	}

	// Detached so a cancelled request still leaves its trace
	if err := a.repo.Save(context.WithoutCancel(ctx), entry); err != nil {
		log.Printf("failed to write audit log for %s: %v", action, err)
	}
}
