package businessflow

import (
	"context"
	"time"

	"github.com/amirphl/segment-backoffice/app/dto"
	"github.com/amirphl/segment-backoffice/models"
	"github.com/amirphl/segment-backoffice/repository"
)

const defaultAuditPageSize = 50

// AuditFlow lists the operator action log
type AuditFlow interface {
	List(ctx context.Context, q *dto.ListAuditQuery) (*dto.ListAuditResponse, error)
	Get(ctx context.Context, id uint) (*dto.AuditLogItem, error)
}

type AuditFlowImpl struct {
	repo repository.AuditLogRepository
}

// NewAuditFlow accepts a nil repository when no database is configured
func NewAuditFlow(repo repository.AuditLogRepository) AuditFlow {
	return &AuditFlowImpl{repo: repo}
}

func (f *AuditFlowImpl) List(ctx context.Context, q *dto.ListAuditQuery) (*dto.ListAuditResponse, error) {
	if f.repo == nil {
		return nil, NewBusinessError("AUDIT_NOT_AVAILABLE", "Audit log requires a database", ErrAuditNotAvailable)
	}

	limit := q.Limit
	if limit <= 0 {
		limit = defaultAuditPageSize
	}
	offset := max(q.Offset, 0)

	var filter models.AuditLogFilter
	if q.Action != "" {
		filter.Action = &q.Action
	}
	if q.TargetID > 0 {
		filter.TargetID = &q.TargetID
	}
	if q.Failed {
		success := false
		filter.Success = &success
	}

	logs, err := f.listLogs(ctx, filter, limit, offset)
	if err != nil {
		return nil, NewBusinessError("AUDIT_LIST_FAILED", "Failed to list audit log", err)
	}
	count, err := f.repo.Count(ctx, filter)
	if err != nil {
		return nil, NewBusinessError("AUDIT_LIST_FAILED", "Failed to count audit log", err)
	}

	items := make([]dto.AuditLogItem, 0, len(logs))
	for _, l := range logs {
		items = append(items, toAuditLogItem(l))
	}

	return &dto.ListAuditResponse{Items: items, Count: count, Limit: limit, Offset: offset}, nil
}

// listLogs uses the indexed single-column queries when only one filter is set
func (f *AuditFlowImpl) listLogs(ctx context.Context, filter models.AuditLogFilter, limit, offset int) ([]*models.AuditLog, error) {
	switch {
	case filter.Action != nil && filter.TargetID == nil && filter.Success == nil:
		return f.repo.ListByAction(ctx, *filter.Action, limit, offset)
	case filter.TargetID != nil && filter.Action == nil && filter.Success == nil:
		return f.repo.ListByTarget(ctx, *filter.TargetID, limit, offset)
	case filter.Success != nil && filter.Action == nil && filter.TargetID == nil:
		return f.repo.ListFailedActions(ctx, limit, offset)
	default:
		return f.repo.ByFilter(ctx, filter, "created_at DESC", limit, offset)
	}
}

func (f *AuditFlowImpl) Get(ctx context.Context, id uint) (*dto.AuditLogItem, error) {
	if f.repo == nil {
		return nil, NewBusinessError("AUDIT_NOT_AVAILABLE", "Audit log requires a database", ErrAuditNotAvailable)
	}

	entry, err := f.repo.ByID(ctx, id)
	if err != nil {
		return nil, NewBusinessError("AUDIT_GET_FAILED", "Failed to load audit entry", err)
	}
	if entry == nil {
		return nil, NewBusinessErrorf("AUDIT_ENTRY_NOT_FOUND", "Audit entry %d not found", ErrAuditEntryNotFound, id)
	}

	item := toAuditLogItem(entry)
	return &item, nil
}

func toAuditLogItem(l *models.AuditLog) dto.AuditLogItem {
	return dto.AuditLogItem{
		ID:           l.ID,
		Operator:     l.Operator,
		Action:       l.Action,
		TargetIDs:    []int64(l.TargetIDs),
		Description:  l.Description,
		IPAddress:    l.IPAddress,
		RequestID:    l.RequestID,
		Success:      !l.IsFailed(),
		ErrorMessage: l.ErrorMessage,
		CreatedAt:    l.CreatedAt.UTC().Format(time.RFC3339),
	}
}
