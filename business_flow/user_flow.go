package businessflow

import (
	"context"
	"fmt"
	"time"

	"github.com/amirphl/segment-backoffice/app/dto"
	"github.com/amirphl/segment-backoffice/app/services"
	"github.com/amirphl/segment-backoffice/config"
	"github.com/amirphl/segment-backoffice/models"
	"github.com/amirphl/segment-backoffice/repository"
	"github.com/amirphl/segment-backoffice/timeline"
	"github.com/amirphl/segment-backoffice/utils"
	"github.com/xuri/excelize/v2"
)

// UserFlow covers the users listing and the per-user activity timeline
type UserFlow interface {
	ListUsers(ctx context.Context, q *dto.ListUsersQuery) (*dto.ListUsersResponse, error)
	Timeline(ctx context.Context, q *dto.TimelineQuery) (*dto.TimelineResponse, error)
	ExportTimeline(ctx context.Context, q *dto.TimelineQuery) (*dto.TimelineExport, error)
}

type UserFlowImpl struct {
	client       services.BackofficeClient
	audit        auditRecorder
	historyLimit int
	now          func() time.Time
}

func NewUserFlow(client services.BackofficeClient, auditRepo repository.AuditLogRepository, cfg *config.ProductionConfig) UserFlow {
	return &UserFlowImpl{
		client:       client,
		audit:        auditRecorder{repo: auditRepo},
		historyLimit: cfg.Upstream.HistoryLimit,
		now:          utils.UTCNow,
	}
}

func (f *UserFlowImpl) ListUsers(ctx context.Context, q *dto.ListUsersQuery) (*dto.ListUsersResponse, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = utils.DefaultUsersPageSize
	}
	if limit > utils.MaxUsersPageSize {
		limit = utils.MaxUsersPageSize
	}
	offset := max(q.Offset, 0)

	segmentIDs, err := utils.ParseIDList(q.SegmentIDs)
	if err != nil {
		return nil, NewBusinessError("INVALID_SEGMENT_IDS", "segmentIds must be a comma separated list of ids", fmt.Errorf("%w: %w", ErrInvalidIDList, err))
	}
	tagIDs, err := utils.ParseIDList(q.TagIDs)
	if err != nil {
		return nil, NewBusinessError("INVALID_TAG_IDS", "tagIds must be a comma separated list of ids", fmt.Errorf("%w: %w", ErrInvalidIDList, err))
	}

	session := SessionFromContext(ctx)
	page, err := f.client.ListUsers(ctx, session.AccessToken, services.UserQuery{
		Limit:      limit,
		Offset:     offset,
		Search:     q.Search,
		SegmentIDs: segmentIDs,
		TagIDs:     tagIDs,
	})
	if err != nil {
		return nil, upstreamError("USER_LIST_FAILED", "Failed to list users", err)
	}

	users := page.Users
	if users == nil {
		users = []models.BackofficeUser{}
	}
	return &dto.ListUsersResponse{Users: users, Count: page.Count, Limit: limit, Offset: offset}, nil
}

// window resolves the query bounds, defaulting to the last two days
func (f *UserFlowImpl) window(q *dto.TimelineQuery) (int64, int64, error) {
	toMs := f.now().UnixMilli()
	if q.ToMs != nil {
		toMs = *q.ToMs
	}
	fromMs := toMs - utils.DefaultTimelineWindow.Milliseconds()
	if q.FromMs != nil {
		fromMs = *q.FromMs
	}
	if fromMs >= toMs {
		return 0, 0, NewBusinessError("INVALID_TIME_WINDOW", "from must be before to", ErrInvalidTimeWindow)
	}
	return fromMs, toMs, nil
}

// Timeline fetches the user's history for the window and rebuilds the
// tag and segment intervals
func (f *UserFlowImpl) Timeline(ctx context.Context, q *dto.TimelineQuery) (*dto.TimelineResponse, error) {
	fromMs, toMs, err := f.window(q)
	if err != nil {
		return nil, err
	}

	to := utils.MsToUnixSeconds(toMs)
	session := SessionFromContext(ctx)
	events, err := f.client.UserHistory(ctx, session.AccessToken, services.HistoryQuery{
		UserID: q.UserID,
		From:   utils.MsToUnixSeconds(fromMs),
		To:     &to,
		Limit:  f.historyLimit,
	})
	if err != nil {
		return nil, upstreamError("USER_HISTORY_FAILED", "Failed to load user history", err)
	}

	r := timeline.NewReconstructor(f.now)
	tags := r.TagIntervals(events, fromMs, toMs)
	segs := r.SegmentIntervals(events, fromMs, toMs)

	return &dto.TimelineResponse{
		UserID:       q.UserID,
		FromMs:       fromMs,
		ToMs:         toMs,
		EventCount:   len(events),
		Tags:         tags,
		Segments:     segs,
		TagChart:     timeline.TagChart(tags),
		SegmentChart: timeline.SegmentChart(segs),
	}, nil
}

var timelineHeader = []any{"ID", "Name", "Color", "Start", "End", "Real start", "Real end"}

// ExportTimeline renders the timeline as a workbook with one sheet for tags
// and one for segments
func (f *UserFlowImpl) ExportTimeline(ctx context.Context, q *dto.TimelineQuery) (*dto.TimelineExport, error) {
	tl, err := f.Timeline(ctx, q)
	if err != nil {
		return nil, err
	}

	xl := excelize.NewFile()
	defer func() { _ = xl.Close() }()

	xl.SetSheetName(xl.GetSheetName(0), "Tags")
	if _, err := xl.NewSheet("Segments"); err != nil {
		return nil, NewBusinessError("TIMELINE_EXPORT_FAILED", "Failed to build workbook", err)
	}
	for sheet, rows := range map[string][]timeline.Interval{"Tags": tl.Tags, "Segments": tl.Segments} {
		if err := writeIntervals(xl, sheet, rows); err != nil {
			return nil, NewBusinessError("TIMELINE_EXPORT_FAILED", "Failed to build workbook", err)
		}
	}

	buf, err := xl.WriteToBuffer()
	if err != nil {
		return nil, NewBusinessError("TIMELINE_EXPORT_FAILED", "Failed to write workbook", err)
	}

	f.audit.record(ctx, models.AuditActionTimelineExported, []int64{q.UserID},
		fmt.Sprintf("export timeline of user %d", q.UserID), nil,
		map[string]int64{"fromMs": tl.FromMs, "toMs": tl.ToMs})

	return &dto.TimelineExport{
		FileName: fmt.Sprintf("user_%d_timeline_%d_%d.xlsx", q.UserID, tl.FromMs, tl.ToMs),
		Content:  buf.Bytes(),
	}, nil
}

func writeIntervals(xl *excelize.File, sheet string, rows []timeline.Interval) error {
	if err := xl.SetSheetRow(sheet, "A1", &timelineHeader); err != nil {
		return err
	}
	for ri, it := range rows {
		color := ""
		if it.Color != nil {
			color = *it.Color
		}
		record := []any{
			it.SubjectID,
			it.Name,
			color,
			formatMs(it.StartMs),
			formatMs(it.EndMs),
			formatMs(it.RealStartMs),
			formatMs(it.RealEndMs),
		}
		cell, err := excelize.CoordinatesToCellName(1, ri+2)
		if err != nil {
			return err
		}
		if err := xl.SetSheetRow(sheet, cell, &record); err != nil {
			return err
		}
	}
	return nil
}

func formatMs(ms int64) string {
	return utils.MsToTime(ms).Format(time.RFC3339)
}
