package businessflow

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/amirphl/segment-backoffice/app/dto"
	"github.com/amirphl/segment-backoffice/app/services"
	"github.com/amirphl/segment-backoffice/config"
	"github.com/amirphl/segment-backoffice/models"
	"github.com/amirphl/segment-backoffice/repository"
	"github.com/amirphl/segment-backoffice/segments"
	"github.com/amirphl/segment-backoffice/utils"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// SegmentFlow covers the segment taxonomy configuration screens
type SegmentFlow interface {
	ListSegments(ctx context.Context) (*dto.ListSegmentsResponse, error)
	SetupSegments(ctx context.Context, in segments.SetupInput) (*dto.SetupSegmentsResponse, error)
	Statistics(ctx context.Context, q *dto.SegmentStatisticsQuery) (*dto.SegmentStatisticsResponse, error)
}

type SegmentFlowImpl struct {
	client   services.BackofficeClient
	rc       *redis.Client
	cache    jsonCache
	audit    auditRecorder
	cacheCfg config.CacheConfig
	prefix   string
	now      func() time.Time

	// localSetup serializes setups when no Redis is configured
	localSetup sync.Mutex
}

// releaseLock deletes the lock only when it still belongs to the caller
var releaseLock = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

func NewSegmentFlow(
	client services.BackofficeClient,
	rc *redis.Client,
	auditRepo repository.AuditLogRepository,
	cfg *config.ProductionConfig,
) SegmentFlow {
	return &SegmentFlowImpl{
		client:   client,
		rc:       rc,
		cache:    jsonCache{rc: rc},
		audit:    auditRecorder{repo: auditRepo},
		cacheCfg: cfg.Cache,
		prefix:   cfg.Upstream.Prefix,
		now:      utils.UTCNow,
	}
}

// ListSegments returns the catalog mapped to display convention
func (f *SegmentFlowImpl) ListSegments(ctx context.Context) (*dto.ListSegmentsResponse, error) {
	session := SessionFromContext(ctx)
	key := redisKey(f.cacheCfg, utils.SegmentListCacheKey, f.prefix, session.Fingerprint())

	var catalog models.SegmentCatalog
	cached := false
	if f.cache.enabled() {
		cached = f.cache.get(ctx, key, &catalog)
		observeCache("segments", cached)
	}
	if !cached {
		fresh, err := f.client.ListSegments(ctx, session.AccessToken)
		if err != nil {
			return nil, upstreamError("SEGMENT_LIST_FAILED", "Failed to list segments", err)
		}
		catalog = *fresh
		f.cache.set(ctx, key, catalog, f.cacheCfg.SegmentListTTL)
	}

	return &dto.ListSegmentsResponse{
		Segments:      segments.ToDisplaySegments(catalog.Segments),
		TimeRangeDays: catalog.Configs.TimeRangeDays,
		Form:          segments.InputFromCatalog(catalog),
		Cached:        cached,
	}, nil
}

// SetupSegments validates display values against a fresh catalog, maps them
// to storage convention and forwards them. Only one setup runs at a time.
func (f *SegmentFlowImpl) SetupSegments(ctx context.Context, in segments.SetupInput) (*dto.SetupSegmentsResponse, error) {
	unlock, err := f.lockSetup(ctx)
	if err != nil {
		observeSetup("busy")
		return nil, err
	}
	defer unlock()

	session := SessionFromContext(ctx)
	catalog, err := f.client.ListSegments(ctx, session.AccessToken)
	if err != nil {
		observeSetup("error")
		return nil, upstreamError("SEGMENT_LIST_FAILED", "Failed to load segments", err)
	}

	if errs := segments.ValidateSetup(catalog.Segments, in); len(errs) > 0 {
		observeSetup("invalid")
		return nil, NewBusinessError("SEGMENT_VALIDATION_FAILED", segments.JoinErrors(errs), ErrSegmentValidationFailed).WithDetails(errs)
	}

	setup := segments.BuildSetup(catalog.Segments, in)
	err = f.client.SetupSegments(ctx, session.AccessToken, setup)

	targets := make([]int64, 0, len(setup.Configs))
	for _, c := range setup.Configs {
		targets = append(targets, c.SegmentID)
	}
	f.audit.record(ctx, models.AuditActionSegmentsSetup, targets, fmt.Sprintf("setup %d segments", len(setup.Configs)), err, setup)
	if err != nil {
		observeSetup("error")
		return nil, upstreamError("SEGMENT_SETUP_FAILED", "Failed to save segment setup", err)
	}

	observeSetup("ok")
	f.cache.invalidate(ctx, redisKey(f.cacheCfg, utils.SegmentListPattern, f.prefix))
	return &dto.SetupSegmentsResponse{Setup: setup}, nil
}

func (f *SegmentFlowImpl) lockSetup(ctx context.Context) (func(), error) {
	busy := NewBusinessError("SEGMENT_SETUP_BUSY", "Another segment setup is in progress", ErrSegmentSetupBusy)

	if f.rc == nil {
		if !f.localSetup.TryLock() {
			return nil, busy
		}
		return f.localSetup.Unlock, nil
	}

	lockKey := redisKey(f.cacheCfg, utils.SegmentSetupLockKey, f.prefix)
	owner := uuid.NewString()
	ok, err := f.rc.SetNX(ctx, lockKey, owner, f.cacheCfg.SetupLockTTL).Result()
	if err != nil {
		return nil, NewBusinessError("SEGMENT_SETUP_LOCK_FAILED", "Failed to acquire segment setup lock", fmt.Errorf("%w: %w", ErrCacheNotAvailable, err))
	}
	if !ok {
		return nil, busy
	}

	return func() {
		if err := releaseLock.Run(context.WithoutCancel(ctx), f.rc, []string{lockKey}, owner).Err(); err != nil {
			log.Printf("failed to release segment setup lock: %v", err)
		}
	}, nil
}

// Statistics fetches aggregate buckets and pivots them into stacked series.
// Without bounds the last week is used.
func (f *SegmentFlowImpl) Statistics(ctx context.Context, q *dto.SegmentStatisticsQuery) (*dto.SegmentStatisticsResponse, error) {
	toMs := f.now().UnixMilli()
	if q.ToMs != nil {
		toMs = *q.ToMs
	}
	fromMs := toMs - utils.DefaultStatisticsWindow.Milliseconds()
	if q.FromMs != nil {
		fromMs = *q.FromMs
	}
	if fromMs >= toMs {
		return nil, NewBusinessError("INVALID_TIME_WINDOW", "from must be before to", ErrInvalidTimeWindow)
	}

	buckets := q.Buckets
	if buckets <= 0 {
		buckets = models.DefaultStatisticsBuckets
	}
	metric := q.Metric
	if !segments.IsStatisticsMetric(metric) {
		metric = models.StatisticsUsersCount
	}

	from := utils.MsToUnixSeconds(fromMs)
	to := utils.MsToUnixSeconds(toMs)
	session := SessionFromContext(ctx)
	data, err := f.client.SegmentStatistics(ctx, session.AccessToken, services.StatisticsQuery{
		From:    &from,
		To:      &to,
		Buckets: buckets,
	})
	if err != nil {
		return nil, upstreamError("SEGMENT_STATISTICS_FAILED", "Failed to load segment statistics", err)
	}

	return &dto.SegmentStatisticsResponse{
		Buckets:       data,
		View:          segments.BuildStatistics(data, metric),
		BucketOptions: models.StatisticsBucketOptions,
		Metrics:       models.StatisticsMetrics,
	}, nil
}
