package timeline

import (
	"github.com/amirphl/segment-backoffice/models"
)

type segmentState struct {
	id      int64
	name    string
	color   *string
	sinceMs int64
}

func noSegment(sinceMs int64) segmentState {
	color := NoSegmentColor
	return segmentState{id: models.NoSegmentID, name: NoSegmentName, color: &color, sinceMs: sinceMs}
}

func segmentFromEvent(e models.HistoryEvent, ms int64) segmentState {
	id, _ := e.ResolvedSegmentID()
	st := segmentState{id: id, name: idName(id), sinceMs: ms}
	if e.Segment != nil {
		if e.Segment.Name != "" {
			st.name = e.Segment.Name
		}
		st.color = nonEmpty(e.Segment.Color)
	}
	return st
}

// apply returns the state after the event; unknown actions change nothing
func (s segmentState) apply(e models.HistoryEvent, ms int64) segmentState {
	switch e.ActionKind() {
	case models.HistoryActionAdd:
		next := segmentFromEvent(e, ms)
		if next.id == s.id {
			next.sinceMs = s.sinceMs
		}
		return next
	case models.HistoryActionRemove:
		if s.id == models.NoSegmentID {
			return s
		}
		return noSegment(ms)
	}
	return s
}

func (s segmentState) interval(startMs, endMs, realEndMs int64) Interval {
	return Interval{
		SubjectID:   s.id,
		Name:        s.name,
		Color:       s.color,
		StartMs:     startMs,
		EndMs:       endMs,
		RealStartMs: s.sinceMs,
		RealEndMs:   realEndMs,
	}
}

// SegmentIntervals partitions [fromMs, toMs] by the single segment a user
// held at each moment. The state at fromMs comes from replaying earlier
// events; gaps are covered by the "no segment" sentinel.
func (r *Reconstructor) SegmentIntervals(events []models.HistoryEvent, fromMs, toMs int64) []Interval {
	sorted := r.stamp(events, models.HistoryEvent.IsSegmentEvent)

	current := noSegment(fromMs)
	i := 0
	for ; i < len(sorted) && sorted[i].ms < fromMs; i++ {
		current = current.apply(sorted[i].event, sorted[i].ms)
	}

	intervals := make([]Interval, 0, 4)
	boundary := fromMs
	for ; i < len(sorted) && sorted[i].ms <= toMs; i++ {
		s := sorted[i]
		next := current.apply(s.event, s.ms)
		if s.ms > boundary {
			intervals = append(intervals, current.interval(boundary, s.ms, s.ms))
		}
		current = next
		boundary = s.ms
	}

	if toMs > boundary {
		realEnd := toMs
		for ; i < len(sorted); i++ {
			if next := current.apply(sorted[i].event, sorted[i].ms); next.id != current.id {
				realEnd = sorted[i].ms
				break
			}
		}
		intervals = append(intervals, current.interval(boundary, toMs, realEnd))
	}

	intervals = dropEmpty(intervals)

	// a repeated set of the same segment splits the partition; the split
	// pieces share the tenure end
	for k := len(intervals) - 2; k >= 0; k-- {
		if intervals[k].SubjectID == intervals[k+1].SubjectID && intervals[k].EndMs == intervals[k+1].StartMs {
			intervals[k].RealEndMs = intervals[k+1].RealEndMs
		}
	}

	return intervals
}
