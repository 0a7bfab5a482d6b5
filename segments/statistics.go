package segments

import (
	"math"
	"slices"
	"strconv"

	"github.com/amirphl/segment-backoffice/models"
)

// Series is one segment's values across buckets
type Series struct {
	Key   string    `json:"key"`
	Name  string    `json:"name"`
	Color *string   `json:"color,omitempty"`
	Data  []float64 `json:"data"`
}

// BucketLabel describes one bucket of the x axis
type BucketLabel struct {
	Label  string `json:"label"`
	FromMs int64  `json:"fromMs"`
	ToMs   int64  `json:"toMs"`
}

// StatisticsView is the stacked-by-segment view of bucketed statistics
type StatisticsView struct {
	Metric  string        `json:"metric"`
	Buckets []BucketLabel `json:"buckets"`
	Series  []Series      `json:"series"`
}

// IsStatisticsMetric reports whether the metric can be charted
func IsStatisticsMetric(metric string) bool {
	return slices.Contains(models.StatisticsMetrics, metric)
}

// statisticsKey identifies a segment by id, then slug, then name
func statisticsKey(s models.StatisticsSegment) string {
	if s.ID != nil {
		return strconv.FormatInt(*s.ID, 10)
	}
	if s.Slug != "" {
		return s.Slug
	}
	return s.Name
}

func metricValue(s models.SegmentStatistics, metric string) float64 {
	var v models.Value
	switch metric {
	case models.StatisticsUserTimeSeconds:
		v = s.UserTimeSeconds
	case models.StatisticsAvgUsers:
		v = s.AvgUsers
	default:
		v = s.UsersCount
	}
	n := v.Number()
	if math.IsNaN(n) || math.IsInf(n, 0) {
		return 0
	}
	return n
}

// BuildStatistics pivots buckets into one series per segment. Segments are
// ordered by first appearance; a segment missing from a bucket counts as 0.
func BuildStatistics(buckets []models.StatisticsBucket, metric string) StatisticsView {
	if !IsStatisticsMetric(metric) {
		metric = models.StatisticsUsersCount
	}
	view := StatisticsView{Metric: metric, Buckets: make([]BucketLabel, 0, len(buckets)), Series: []Series{}}

	index := make(map[string]int)
	filled := make(map[[2]int]bool)
	for bi, b := range buckets {
		view.Buckets = append(view.Buckets, BucketLabel{
			Label:  "#" + strconv.Itoa(bi+1),
			FromMs: secondsToMs(b.From),
			ToMs:   secondsToMs(b.To),
		})

		for _, s := range b.Statistics {
			key := statisticsKey(s.Segment)
			if key == "" {
				continue
			}
			si, ok := index[key]
			if !ok {
				name := s.Segment.Name
				if name == "" {
					name = s.Segment.Slug
				}
				if name == "" {
					name = "Segment " + key
				}
				si = len(view.Series)
				index[key] = si
				view.Series = append(view.Series, Series{
					Key:   key,
					Name:  name,
					Color: s.Segment.Color,
					Data:  make([]float64, len(buckets)),
				})
			}
			if !filled[[2]int{si, bi}] {
				filled[[2]int{si, bi}] = true
				view.Series[si].Data[bi] = metricValue(s, metric)
			}
		}
	}

	return view
}

func secondsToMs(v models.Value) int64 {
	n := v.Number()
	if v.IsAbsent() || math.IsNaN(n) || math.IsInf(n, 0) {
		return 0
	}
	return int64(n * 1000)
}
