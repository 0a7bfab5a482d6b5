package businessflow

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/amirphl/segment-backoffice/app/services"
	"github.com/amirphl/segment-backoffice/config"
	"github.com/amirphl/segment-backoffice/models"
	"github.com/amirphl/segment-backoffice/rules"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

// fakeBackoffice is an in-memory BackofficeClient recording every call
type fakeBackoffice struct {
	mu sync.Mutex

	tags      []models.Tag
	catalog   models.SegmentCatalog
	users     models.UserPage
	history   []models.HistoryEvent
	buckets   []models.StatisticsBucket
	err       error
	setupHook func()

	calls         map[string]int
	created       []rules.Payload
	updatedID     int64
	deletedID     int64
	setups        []models.SegmentSetup
	lastUsers     services.UserQuery
	lastHistory   services.HistoryQuery
	lastStatistic services.StatisticsQuery
	tokens        []string
}

func newFakeBackoffice() *fakeBackoffice {
	return &fakeBackoffice{calls: make(map[string]int)}
}

func (f *fakeBackoffice) hit(op, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[op]++
	f.tokens = append(f.tokens, token)
	return f.err
}

func (f *fakeBackoffice) count(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *fakeBackoffice) ListTags(_ context.Context, token string, _ bool) ([]models.Tag, error) {
	if err := f.hit("ListTags", token); err != nil {
		return nil, err
	}
	return f.tags, nil
}

func (f *fakeBackoffice) CreateTag(_ context.Context, token string, p rules.Payload) (*models.Tag, error) {
	if err := f.hit("CreateTag", token); err != nil {
		return nil, err
	}
	f.created = append(f.created, p)
	return &models.Tag{ID: 99, Name: p.Name}, nil
}

func (f *fakeBackoffice) UpdateTag(_ context.Context, token string, id int64, p rules.Payload) (*models.Tag, error) {
	if err := f.hit("UpdateTag", token); err != nil {
		return nil, err
	}
	f.updatedID = id
	return &models.Tag{ID: id, Name: p.Name}, nil
}

func (f *fakeBackoffice) DeleteTag(_ context.Context, token string, id int64) error {
	if err := f.hit("DeleteTag", token); err != nil {
		return err
	}
	f.deletedID = id
	return nil
}

func (f *fakeBackoffice) ListUsers(_ context.Context, token string, q services.UserQuery) (*models.UserPage, error) {
	if err := f.hit("ListUsers", token); err != nil {
		return nil, err
	}
	f.lastUsers = q
	page := f.users
	return &page, nil
}

func (f *fakeBackoffice) UserHistory(_ context.Context, token string, q services.HistoryQuery) ([]models.HistoryEvent, error) {
	if err := f.hit("UserHistory", token); err != nil {
		return nil, err
	}
	f.lastHistory = q
	return f.history, nil
}

func (f *fakeBackoffice) ListSegments(_ context.Context, token string) (*models.SegmentCatalog, error) {
	if err := f.hit("ListSegments", token); err != nil {
		return nil, err
	}
	c := f.catalog
	return &c, nil
}

func (f *fakeBackoffice) SetupSegments(_ context.Context, token string, s models.SegmentSetup) error {
	if f.setupHook != nil {
		f.setupHook()
	}
	if err := f.hit("SetupSegments", token); err != nil {
		return err
	}
	f.setups = append(f.setups, s)
	return nil
}

func (f *fakeBackoffice) SegmentStatistics(_ context.Context, token string, q services.StatisticsQuery) ([]models.StatisticsBucket, error) {
	if err := f.hit("SegmentStatistics", token); err != nil {
		return nil, err
	}
	f.lastStatistic = q
	return f.buckets, nil
}

func testConfig() *config.ProductionConfig {
	return &config.ProductionConfig{
		Upstream: config.UpstreamConfig{Prefix: "gtestbet", HistoryLimit: 5000},
		Cache: config.CacheConfig{
			Enabled:        true,
			RedisPrefix:    "test:",
			TagListTTL:     time.Minute,
			SegmentListTTL: time.Minute,
			SetupLockTTL:   time.Minute,
		},
		Drafts: config.DraftConfig{TTL: time.Hour, MaxGroups: 3, MaxRules: 4},
	}
}

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rc := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rc.Close() })
	return mr, rc
}

func sessionContext(token string) context.Context {
	return WithSession(context.Background(), Session{
		AccessToken: token,
		Claims:      &services.OperatorClaims{Name: "operator-1", Fingerprint: "fp-" + token},
	})
}

func requireCode(t *testing.T, err error, code string) *BusinessError {
	t.Helper()
	require.Error(t, err)
	be, ok := AsBusinessError(err)
	require.True(t, ok, "expected BusinessError, got %T: %v", err, err)
	require.Equal(t, code, be.Code)
	return be
}

func ptr[T any](v T) *T { return &v }

// fakeAuditRepo keeps audit rows in memory and records which query ran
type fakeAuditRepo struct {
	mu      sync.Mutex
	entries []*models.AuditLog
	err     error
	queries []string
}

func (r *fakeAuditRepo) track(name string) {
	r.mu.Lock()
	r.queries = append(r.queries, name)
	r.mu.Unlock()
}

func (r *fakeAuditRepo) ByID(_ context.Context, id uint) (*models.AuditLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	for _, e := range r.entries {
		if e.ID == id {
			return e, nil
		}
	}
	return nil, nil
}

func (r *fakeAuditRepo) ByFilter(_ context.Context, filter models.AuditLogFilter, _ string, limit, offset int) ([]*models.AuditLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	var out []*models.AuditLog
	for i := len(r.entries) - 1; i >= 0; i-- {
		if r.matches(r.entries[i], filter) {
			out = append(out, r.entries[i])
		}
	}
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *fakeAuditRepo) matches(e *models.AuditLog, filter models.AuditLogFilter) bool {
	if filter.Action != nil && e.Action != *filter.Action {
		return false
	}
	if filter.Success != nil && e.IsFailed() == *filter.Success {
		return false
	}
	if filter.TargetID != nil {
		found := false
		for _, id := range e.TargetIDs {
			found = found || id == *filter.TargetID
		}
		if !found {
			return false
		}
	}
	return true
}

func (r *fakeAuditRepo) Save(_ context.Context, e *models.AuditLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	e.ID = uint(len(r.entries) + 1)
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	}
	r.entries = append(r.entries, e)
	return nil
}

func (r *fakeAuditRepo) Count(ctx context.Context, filter models.AuditLogFilter) (int64, error) {
	rows, err := r.ByFilter(ctx, filter, "", 0, 0)
	return int64(len(rows)), err
}

func (r *fakeAuditRepo) ListByAction(ctx context.Context, action string, limit, offset int) ([]*models.AuditLog, error) {
	r.track("action")
	return r.ByFilter(ctx, models.AuditLogFilter{Action: &action}, "", limit, offset)
}

func (r *fakeAuditRepo) ListByTarget(ctx context.Context, id int64, limit, offset int) ([]*models.AuditLog, error) {
	r.track("target")
	return r.ByFilter(ctx, models.AuditLogFilter{TargetID: &id}, "", limit, offset)
}

func (r *fakeAuditRepo) ListFailedActions(ctx context.Context, limit, offset int) ([]*models.AuditLog, error) {
	r.track("failed")
	failed := false
	return r.ByFilter(ctx, models.AuditLogFilter{Success: &failed}, "", limit, offset)
}

func (r *fakeAuditRepo) all() []*models.AuditLog {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*models.AuditLog(nil), r.entries...)
}
