package segments

import (
	"testing"

	"github.com/amirphl/segment-backoffice/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func i64(v int64) *int64 { return &v }

func TestBuildStatistics(t *testing.T) {
	blue := "#0000ff"
	buckets := []models.StatisticsBucket{
		{From: models.IntValue(100), To: models.IntValue(200), Statistics: []models.SegmentStatistics{
			{Segment: models.StatisticsSegment{ID: i64(1), Name: "Whale", Color: &blue}, UsersCount: models.IntValue(10), AvgUsers: models.NumberValue(2.5)},
			{Segment: models.StatisticsSegment{Slug: "orphan"}, UsersCount: models.IntValue(3)},
		}},
		{From: models.IntValue(200), To: models.IntValue(300), Statistics: []models.SegmentStatistics{
			{Segment: models.StatisticsSegment{ID: i64(2)}, UsersCount: models.StringValue("7")},
			{Segment: models.StatisticsSegment{}, UsersCount: models.IntValue(99)},
		}},
	}

	view := BuildStatistics(buckets, models.StatisticsUsersCount)

	require.Len(t, view.Buckets, 2)
	assert.Equal(t, BucketLabel{Label: "#1", FromMs: 100_000, ToMs: 200_000}, view.Buckets[0])
	require.Len(t, view.Series, 3)
	assert.Equal(t, Series{Key: "1", Name: "Whale", Color: &blue, Data: []float64{10, 0}}, view.Series[0])
	assert.Equal(t, "orphan", view.Series[1].Name)
	assert.Equal(t, []float64{3, 0}, view.Series[1].Data)
	assert.Equal(t, "Segment 2", view.Series[2].Name)
	assert.Equal(t, []float64{0, 7}, view.Series[2].Data)

	avg := BuildStatistics(buckets, models.StatisticsAvgUsers)
	assert.Equal(t, []float64{2.5, 0}, avg.Series[0].Data)

	fallback := BuildStatistics(buckets, "revenue")
	assert.Equal(t, models.StatisticsUsersCount, fallback.Metric)
}

func TestBuildStatisticsEmpty(t *testing.T) {
	view := BuildStatistics(nil, models.StatisticsUserTimeSeconds)
	assert.Empty(t, view.Buckets)
	assert.NotNil(t, view.Series)
}
