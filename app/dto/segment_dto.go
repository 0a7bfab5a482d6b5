package dto

import (
	"github.com/amirphl/segment-backoffice/models"
	"github.com/amirphl/segment-backoffice/segments"
)

// ListSegmentsResponse holds segments in display convention and the form prefill
type ListSegmentsResponse struct {
	Segments      []segments.DisplaySegment `json:"segments"`
	TimeRangeDays float64                   `json:"timeRangeDays"`
	Form          segments.SetupInput       `json:"form"`
	Cached        bool                      `json:"cached"`
}

// SetupSegmentsResponse echoes the storage-convention setup that was forwarded
type SetupSegmentsResponse struct {
	Setup models.SegmentSetup `json:"setup"`
}

// SegmentStatisticsQuery bounds are epoch milliseconds
type SegmentStatisticsQuery struct {
	FromMs  *int64 `query:"from"`
	ToMs    *int64 `query:"to"`
	Buckets int    `query:"buckets" validate:"omitempty,min=1,max=16"`
	Metric  string `query:"metric" validate:"omitempty,oneof=usersCount userTimeSeconds avgUsers"`
}

// SegmentStatisticsResponse returns raw buckets and the per-segment stacked view
type SegmentStatisticsResponse struct {
	Buckets       []models.StatisticsBucket `json:"buckets"`
	View          segments.StatisticsView   `json:"view"`
	BucketOptions []int                     `json:"bucketOptions"`
	Metrics       []string                  `json:"metrics"`
}
