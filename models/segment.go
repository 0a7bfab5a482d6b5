package models

import "strings"

// SegmentKind describes which options a segment accepts
type SegmentKind string

const (
	SegmentKindNone         SegmentKind = "none"
	SegmentKindAfterMinutes SegmentKind = "afterMinutes"
	SegmentKindNRRange      SegmentKind = "nrRange"
)

// Fixed segment slugs that carry no options or a single delay option
const (
	SegmentSlugNewUser      = "new_user"
	SegmentSlugDepositOnly  = "deposit_only"
	SegmentSlugInactiveUser = "inactive_user"
	SegmentSlugNoDeposit    = "no_deposit"

	// WinnerSlugPrefix marks segments whose bounds are stored as negative net results
	WinnerSlugPrefix = "net_winner"
)

// NoSegmentID is the sentinel used on timelines when a user has no segment
const NoSegmentID int64 = 0

// DefaultTimeRangeDays is the look-back applied when the backend has no stored value
const DefaultTimeRangeDays = 180

// Segment is a backend-defined classification bucket
type Segment struct {
	ID          int64          `json:"id"`
	Slug        string         `json:"slug"`
	Name        string         `json:"name"`
	Color       *string        `json:"color"`
	Description *string        `json:"description,omitempty"`
	Options     SegmentOptions `json:"options"`
}

// SegmentOptions holds the numeric thresholds of a segment. Only the fields
// relevant to the segment kind are set.
type SegmentOptions struct {
	AfterMinutes *float64 `json:"afterMinutes,omitempty"`
	FromNR       *float64 `json:"fromNR,omitempty"`
	ToNR         *float64 `json:"toNR,omitempty"`
}

// IsEmpty reports whether no option is set
func (o SegmentOptions) IsEmpty() bool {
	return o.AfterMinutes == nil && o.FromNR == nil && o.ToNR == nil
}

// SegmentRef is the denormalized segment metadata attached to users and history events
type SegmentRef struct {
	ID          int64   `json:"id"`
	Slug        string  `json:"slug,omitempty"`
	Name        string  `json:"name"`
	Color       *string `json:"color"`
	Description *string `json:"description,omitempty"`
}

// SegmentConfig is the per segment part of a setup request
type SegmentConfig struct {
	SegmentID int64          `json:"segmentId"`
	Options   SegmentOptions `json:"options"`
}

// SegmentSetup is the body of a segment setup request in storage convention
type SegmentSetup struct {
	TimeRangeDays float64         `json:"timeRangeDays"`
	Configs       []SegmentConfig `json:"configs"`
}

// SegmentsConfig is the global companion setting of the segment taxonomy
type SegmentsConfig struct {
	TimeRangeDays float64 `json:"timeRangeDays"`
}

// SegmentCatalog is what the backend returns for the segment listing
type SegmentCatalog struct {
	Segments []Segment      `json:"segments"`
	Configs  SegmentsConfig `json:"configs"`
}

// IsWinnerSlug reports whether the segment stores negative magnitudes
func IsWinnerSlug(slug string) bool {
	return strings.HasPrefix(slug, WinnerSlugPrefix)
}

// StatisticsBucket is one time slice of aggregate segment statistics
type StatisticsBucket struct {
	From       Value               `json:"from"`
	To         Value               `json:"to"`
	Statistics []SegmentStatistics `json:"statistics"`
}

// SegmentStatistics holds the per segment aggregates inside a bucket
type SegmentStatistics struct {
	Segment         StatisticsSegment `json:"segment"`
	UsersCount      Value             `json:"usersCount"`
	UserTimeSeconds Value             `json:"userTimeSeconds"`
	AvgUsers        Value             `json:"avgUsers"`
}

// StatisticsSegment identifies the segment of a statistics row; the id may be missing
type StatisticsSegment struct {
	ID    *int64  `json:"id"`
	Slug  string  `json:"slug,omitempty"`
	Name  string  `json:"name,omitempty"`
	Color *string `json:"color,omitempty"`
}

// Statistics metrics
const (
	StatisticsUsersCount      = "usersCount"
	StatisticsUserTimeSeconds = "userTimeSeconds"
	StatisticsAvgUsers        = "avgUsers"
)

// StatisticsMetrics lists the selectable aggregate metrics
var StatisticsMetrics = []string{StatisticsUsersCount, StatisticsUserTimeSeconds, StatisticsAvgUsers}

// StatisticsBucketOptions lists the bucket counts offered to operators
var StatisticsBucketOptions = []int{1, 2, 3, 4, 5, 6, 8, 10, 12, 14, 16}

// DefaultStatisticsBuckets is the bucket count used when none is given
const DefaultStatisticsBuckets = 3
