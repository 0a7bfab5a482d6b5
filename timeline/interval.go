// Package timeline rebuilds tag and segment activity windows from a user's
// set/unset history.
package timeline

import (
	"cmp"
	"slices"
	"strconv"
	"time"

	"github.com/amirphl/segment-backoffice/models"
	"github.com/amirphl/segment-backoffice/utils"
)

// Sentinel display of the "no segment" state
const (
	NoSegmentName  = "No segment"
	NoSegmentColor = "#9ca3af"
)

// Interval is a window during which a tag or segment was active. Start and
// end are clipped to the query window, the real bounds are not.
type Interval struct {
	SubjectID   int64   `json:"subjectId"`
	Name        string  `json:"name"`
	Color       *string `json:"color"`
	StartMs     int64   `json:"startMs"`
	EndMs       int64   `json:"endMs"`
	RealStartMs int64   `json:"realStartMs"`
	RealEndMs   int64   `json:"realEndMs"`
}

// Reconstructor turns history events into intervals. The clock is only used
// for timestamps that cannot be parsed.
type Reconstructor struct {
	now func() time.Time
}

// NewReconstructor creates a reconstructor; a nil clock means time.Now
func NewReconstructor(now func() time.Time) *Reconstructor {
	if now == nil {
		now = time.Now
	}
	return &Reconstructor{now: now}
}

// TagIntervals reconstructs tag windows inside [fromMs, toMs] with the wall clock
func TagIntervals(events []models.HistoryEvent, fromMs, toMs int64) []Interval {
	return NewReconstructor(nil).TagIntervals(events, fromMs, toMs)
}

// SegmentIntervals reconstructs the segment partition of [fromMs, toMs] with the wall clock
func SegmentIntervals(events []models.HistoryEvent, fromMs, toMs int64) []Interval {
	return NewReconstructor(nil).SegmentIntervals(events, fromMs, toMs)
}

type stamped struct {
	event models.HistoryEvent
	ms    int64
}

// stamp normalizes timestamps and sorts ascending; ties keep input order
func (r *Reconstructor) stamp(events []models.HistoryEvent, keep func(models.HistoryEvent) bool) []stamped {
	out := make([]stamped, 0, len(events))
	for _, e := range events {
		if !keep(e) {
			continue
		}
		out = append(out, stamped{event: e, ms: r.timestampMs(e.CreatedAt)})
	}
	slices.SortStableFunc(out, func(a, b stamped) int {
		return cmp.Compare(a.ms, b.ms)
	})
	return out
}

func (r *Reconstructor) timestampMs(v models.Value) int64 {
	var raw any
	switch v.Kind() {
	case models.ValueNumber:
		raw = v.Number()
	case models.ValueString:
		raw = v.String()
	default:
		raw = nil
	}
	return utils.TimestampToMs(raw, r.now)
}

func dropEmpty(intervals []Interval) []Interval {
	return slices.DeleteFunc(intervals, func(it Interval) bool {
		return it.EndMs <= it.StartMs
	})
}

func nonEmpty(p *string) *string {
	if p == nil || *p == "" {
		return nil
	}
	s := *p
	return &s
}

func idName(id int64) string {
	return strconv.FormatInt(id, 10)
}
