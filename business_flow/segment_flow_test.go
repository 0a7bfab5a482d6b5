package businessflow

import (
	"testing"
	"time"

	"github.com/amirphl/segment-backoffice/app/dto"
	"github.com/amirphl/segment-backoffice/app/services"
	"github.com/amirphl/segment-backoffice/models"
	"github.com/amirphl/segment-backoffice/segments"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func f64(v float64) *float64 { return &v }

func testCatalog() models.SegmentCatalog {
	return models.SegmentCatalog{
		Segments: []models.Segment{
			{ID: 1, Slug: "new_user", Name: "New user"},
			{ID: 2, Slug: "no_deposit", Name: "No deposit", Options: models.SegmentOptions{AfterMinutes: f64(60)}},
			{ID: 3, Slug: "net_winner_big", Name: "Big winner", Options: models.SegmentOptions{FromNR: f64(-1000)}},
		},
		Configs: models.SegmentsConfig{TimeRangeDays: 90},
	}
}

func validSetupInput() segments.SetupInput {
	return segments.SetupInput{
		TimeRangeDays: models.IntValue(30),
		Segments: []segments.SegmentInput{
			{SegmentID: 2, AfterMinutes: models.IntValue(120)},
			{SegmentID: 3, FromNR: models.StringValue("2000")},
		},
	}
}

func TestSegmentFlowListSegments(t *testing.T) {
	_, rc := newTestRedis(t)
	client := newFakeBackoffice()
	client.catalog = testCatalog()
	flow := NewSegmentFlow(client, rc, nil, testConfig())

	res, err := flow.ListSegments(sessionContext("a"))
	require.NoError(t, err)
	assert.False(t, res.Cached)
	assert.Equal(t, float64(90), res.TimeRangeDays)
	require.Len(t, res.Segments, 3)
	assert.Equal(t, models.SegmentKindNone, res.Segments[0].Kind)
	assert.Equal(t, models.SegmentKindAfterMinutes, res.Segments[1].Kind)
	assert.Equal(t, models.SegmentKindNRRange, res.Segments[2].Kind)
	require.NotNil(t, res.Segments[2].Options.FromNR)
	assert.Equal(t, float64(1000), *res.Segments[2].Options.FromNR, "winner bounds are shown as magnitudes")
	assert.Equal(t, "1000", res.Form.Segments[2].FromNR.String())

	cached, err := flow.ListSegments(sessionContext("a"))
	require.NoError(t, err)
	assert.True(t, cached.Cached)
	assert.Equal(t, res.Segments, cached.Segments)
	assert.Equal(t, 1, client.count("ListSegments"))
}

func TestSegmentFlowSetupSegments(t *testing.T) {
	mr, rc := newTestRedis(t)
	client := newFakeBackoffice()
	client.catalog = testCatalog()
	audit := &fakeAuditRepo{}
	flow := NewSegmentFlow(client, rc, audit, testConfig())
	ctx := sessionContext("a")

	_, err := flow.ListSegments(ctx)
	require.NoError(t, err)

	res, err := flow.SetupSegments(ctx, validSetupInput())
	require.NoError(t, err)
	assert.Equal(t, float64(30), res.Setup.TimeRangeDays)
	require.Len(t, client.setups, 1)

	byID := map[int64]models.SegmentOptions{}
	for _, c := range client.setups[0].Configs {
		byID[c.SegmentID] = c.Options
	}
	assert.True(t, byID[1].IsEmpty())
	assert.Equal(t, float64(120), *byID[2].AfterMinutes)
	assert.Equal(t, float64(-2000), *byID[3].FromNR, "winner bounds are stored negative")

	assert.False(t, mr.Exists("test:segments:setup:lock:gtestbet"), "lock is released")

	again, err := flow.ListSegments(ctx)
	require.NoError(t, err)
	assert.False(t, again.Cached, "setup invalidates the segment cache")

	entries := audit.all()
	require.Len(t, entries, 1)
	assert.Equal(t, models.AuditActionSegmentsSetup, entries[0].Action)
	assert.ElementsMatch(t, []int64{1, 2, 3}, []int64(entries[0].TargetIDs))
	assert.JSONEq(t, `{"timeRangeDays":30,"configs":[{"segmentId":1,"options":{}},{"segmentId":2,"options":{"afterMinutes":120}},{"segmentId":3,"options":{"fromNR":-2000}}]}`, string(entries[0].Metadata))
}

func TestSegmentFlowSetupValidation(t *testing.T) {
	client := newFakeBackoffice()
	client.catalog = testCatalog()
	flow := NewSegmentFlow(client, nil, nil, testConfig())

	in := segments.SetupInput{
		TimeRangeDays: models.IntValue(0),
		Segments:      []segments.SegmentInput{{SegmentID: 3, FromNR: models.StringValue("")}},
	}
	_, err := flow.SetupSegments(sessionContext("a"), in)
	be := requireCode(t, err, "SEGMENT_VALIDATION_FAILED")
	assert.True(t, IsSegmentValidationFailed(err))
	assert.Equal(t, []string{
		"timeRangeDays must be a number > 0",
		`Segment "Big winner" (net_winner_big): set fromNR or toNR`,
	}, be.Details)
	assert.Equal(t, 0, client.count("SetupSegments"))
}

func TestSegmentFlowSetupBusy(t *testing.T) {
	t.Run("redis lock held", func(t *testing.T) {
		mr, rc := newTestRedis(t)
		client := newFakeBackoffice()
		client.catalog = testCatalog()
		flow := NewSegmentFlow(client, rc, nil, testConfig())

		require.NoError(t, mr.Set("test:segments:setup:lock:gtestbet", "someone-else"))

		_, err := flow.SetupSegments(sessionContext("a"), validSetupInput())
		requireCode(t, err, "SEGMENT_SETUP_BUSY")
		assert.True(t, IsSegmentSetupBusy(err))
		assert.Equal(t, 0, client.count("ListSegments"))

		got, err := mr.Get("test:segments:setup:lock:gtestbet")
		require.NoError(t, err)
		assert.Equal(t, "someone-else", got, "a foreign lock is never released")
	})

	t.Run("redis lock expires", func(t *testing.T) {
		mr, rc := newTestRedis(t)
		client := newFakeBackoffice()
		client.catalog = testCatalog()
		flow := NewSegmentFlow(client, rc, nil, testConfig())

		require.NoError(t, mr.Set("test:segments:setup:lock:gtestbet", "stale"))
		mr.SetTTL("test:segments:setup:lock:gtestbet", time.Second)
		mr.FastForward(2 * time.Second)

		_, err := flow.SetupSegments(sessionContext("a"), validSetupInput())
		require.NoError(t, err)
	})

	t.Run("in-process lock", func(t *testing.T) {
		client := newFakeBackoffice()
		client.catalog = testCatalog()
		flow := NewSegmentFlow(client, nil, nil, testConfig())

		var nested error
		client.setupHook = func() {
			client.setupHook = nil
			_, nested = flow.SetupSegments(sessionContext("b"), validSetupInput())
		}

		_, err := flow.SetupSegments(sessionContext("a"), validSetupInput())
		require.NoError(t, err)
		requireCode(t, nested, "SEGMENT_SETUP_BUSY")

		_, err = flow.SetupSegments(sessionContext("a"), validSetupInput())
		require.NoError(t, err, "lock is released after the first setup")
	})
}

func TestSegmentFlowSetupUpstreamFailure(t *testing.T) {
	_, rc := newTestRedis(t)
	client := newFakeBackoffice()
	client.err = &services.UpstreamError{Status: 502, Message: "502 Bad Gateway"}
	flow := NewSegmentFlow(client, rc, nil, testConfig())

	_, err := flow.SetupSegments(sessionContext("a"), validSetupInput())
	be := requireCode(t, err, "SEGMENT_LIST_FAILED")
	assert.Equal(t, "502 Bad Gateway", be.Details)
}

func TestSegmentFlowStatistics(t *testing.T) {
	client := newFakeBackoffice()
	client.buckets = []models.StatisticsBucket{
		{
			From: models.IntValue(1_700_000_000),
			To:   models.IntValue(1_700_003_600),
			Statistics: []models.SegmentStatistics{
				{Segment: models.StatisticsSegment{ID: ptr(int64(1)), Name: "New user"}, UsersCount: models.IntValue(5), AvgUsers: models.NumberValue(2.5)},
			},
		},
	}
	flow := NewSegmentFlow(client, nil, nil, testConfig())
	impl := flow.(*SegmentFlowImpl)
	impl.now = func() time.Time { return time.UnixMilli(1_700_100_000_500).UTC() }

	t.Run("defaults", func(t *testing.T) {
		res, err := flow.Statistics(sessionContext("a"), &dto.SegmentStatisticsQuery{})
		require.NoError(t, err)
		assert.Equal(t, models.DefaultStatisticsBuckets, client.lastStatistic.Buckets)
		require.NotNil(t, client.lastStatistic.To)
		assert.Equal(t, int64(1_700_100_000), *client.lastStatistic.To)
		assert.Equal(t, int64(1_700_100_000-7*24*3600), *client.lastStatistic.From)
		assert.Equal(t, models.StatisticsUsersCount, res.View.Metric)
		require.Len(t, res.View.Series, 1)
		assert.Equal(t, []float64{5}, res.View.Series[0].Data)
		assert.Equal(t, models.StatisticsBucketOptions, res.BucketOptions)
	})

	t.Run("explicit window and metric", func(t *testing.T) {
		res, err := flow.Statistics(sessionContext("a"), &dto.SegmentStatisticsQuery{
			FromMs:  ptr(int64(1_700_000_000_999)),
			ToMs:    ptr(int64(1_700_003_600_000)),
			Buckets: 6,
			Metric:  models.StatisticsAvgUsers,
		})
		require.NoError(t, err)
		assert.Equal(t, 6, client.lastStatistic.Buckets)
		assert.Equal(t, int64(1_700_000_000), *client.lastStatistic.From)
		assert.Equal(t, []float64{2.5}, res.View.Series[0].Data)
		assert.Equal(t, int64(1_700_000_000_000), res.View.Buckets[0].FromMs)
	})

	t.Run("inverted window", func(t *testing.T) {
		_, err := flow.Statistics(sessionContext("a"), &dto.SegmentStatisticsQuery{
			FromMs: ptr(int64(10)),
			ToMs:   ptr(int64(5)),
		})
		requireCode(t, err, "INVALID_TIME_WINDOW")
	})
}
