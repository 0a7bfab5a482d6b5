package timeline

import (
	"slices"

	"github.com/amirphl/segment-backoffice/models"
)

type openTag struct {
	startMs int64
	ref     models.TagRef
	seq     int
}

func tagRef(e models.HistoryEvent, id int64) models.TagRef {
	if e.Tag != nil {
		return *e.Tag
	}
	return models.TagRef{ID: id, Name: idName(id)}
}

func tagInterval(id int64, ref models.TagRef, startMs, endMs, realStartMs, realEndMs int64) Interval {
	name := ref.Name
	if name == "" {
		name = idName(id)
	}
	return Interval{
		SubjectID:   id,
		Name:        name,
		Color:       nonEmpty(ref.Color),
		StartMs:     startMs,
		EndMs:       endMs,
		RealStartMs: realStartMs,
		RealEndMs:   realEndMs,
	}
}

// TagIntervals treats every tag id as an independent on/off signal. A set
// opens a window unless one is open, an unset closes it. An unset without a
// matching set assumes the tag was active from the window start, unless an
// earlier interval of the same tag already reaches past the window start.
// Windows still open at the end are closed at toMs.
func (r *Reconstructor) TagIntervals(events []models.HistoryEvent, fromMs, toMs int64) []Interval {
	sorted := r.stamp(events, func(e models.HistoryEvent) bool {
		if !e.IsTagEvent() {
			return false
		}
		id, ok := e.ResolvedTagID()
		return ok && id != 0
	})

	open := make(map[int64]openTag)
	// clipped end of the latest interval emitted per tag
	shownUntil := make(map[int64]int64)
	intervals := make([]Interval, 0, len(sorted))
	seq := 0

	for _, s := range sorted {
		id, _ := s.event.ResolvedTagID()
		state, isOpen := open[id]

		switch s.event.ActionKind() {
		case models.HistoryActionAdd:
			if !isOpen {
				open[id] = openTag{startMs: s.ms, ref: tagRef(s.event, id), seq: seq}
				seq++
			}
		case models.HistoryActionRemove:
			end := min(s.ms, toMs)
			if isOpen {
				intervals = append(intervals, tagInterval(id, state.ref,
					max(state.startMs, fromMs), end, state.startMs, s.ms))
				delete(open, id)
				shownUntil[id] = end
				continue
			}
			if until, seen := shownUntil[id]; seen && until > fromMs {
				continue
			}
			intervals = append(intervals, tagInterval(id, tagRef(s.event, id),
				fromMs, end, fromMs, s.ms))
			shownUntil[id] = end
		}
	}

	// close still-open tags in the order they were opened
	remaining := make([]int64, 0, len(open))
	for id := range open {
		remaining = append(remaining, id)
	}
	slices.SortFunc(remaining, func(a, b int64) int {
		return open[a].seq - open[b].seq
	})
	for _, id := range remaining {
		state := open[id]
		intervals = append(intervals, tagInterval(id, state.ref,
			max(state.startMs, fromMs), toMs, state.startMs, toMs))
	}

	return dropEmpty(intervals)
}
