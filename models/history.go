package models

import "strings"

// History event types
const (
	HistoryTypeTag     = "tag"
	HistoryTypeSegment = "segment"
)

// History actions as sent by the backend, plus the normalized aliases
const (
	HistoryActionSet    = "set"
	HistoryActionUnset  = "unset"
	HistoryActionAdd    = "add"
	HistoryActionRemove = "remove"
)

// HistoryEvent is an immutable set/unset record for a user's tag or segment
type HistoryEvent struct {
	ID        *int64      `json:"id,omitempty"`
	Type      string      `json:"type"`
	Action    string      `json:"action"`
	CreatedAt Value       `json:"createdAt"`
	TagID     *int64      `json:"tagId,omitempty"`
	Tag       *TagRef     `json:"tag,omitempty"`
	SegmentID *int64      `json:"segmentId,omitempty"`
	Segment   *SegmentRef `json:"segment,omitempty"`
}

// ActionKind maps the backend action to add/remove, ignoring case; anything
// else is "unknown"
func (e HistoryEvent) ActionKind() string {
	switch strings.ToLower(e.Action) {
	case HistoryActionSet, HistoryActionAdd:
		return HistoryActionAdd
	case HistoryActionUnset, HistoryActionRemove:
		return HistoryActionRemove
	}
	return "unknown"
}

// ResolvedTagID returns the tag id from the explicit field or the embedded reference
func (e HistoryEvent) ResolvedTagID() (int64, bool) {
	if e.TagID != nil {
		return *e.TagID, true
	}
	if e.Tag != nil {
		return e.Tag.ID, true
	}
	return 0, false
}

// ResolvedSegmentID returns the segment id from the explicit field or the embedded reference
func (e HistoryEvent) ResolvedSegmentID() (int64, bool) {
	if e.SegmentID != nil {
		return *e.SegmentID, true
	}
	if e.Segment != nil {
		return e.Segment.ID, true
	}
	return 0, false
}

// IsTagEvent reports whether the event concerns tag membership
func (e HistoryEvent) IsTagEvent() bool {
	if e.Type != "" {
		return e.Type == HistoryTypeTag
	}
	_, ok := e.ResolvedTagID()
	return ok
}

// IsSegmentEvent reports whether the event carries a segment reference
func (e HistoryEvent) IsSegmentEvent() bool {
	if e.Type != "" && e.Type != HistoryTypeSegment {
		return false
	}
	_, ok := e.ResolvedSegmentID()
	return ok
}

// BackofficeUser is a user row returned by the segments-and-tags listing
type BackofficeUser struct {
	ID       int64          `json:"id"`
	Username string         `json:"username,omitempty"`
	Email    string         `json:"email,omitempty"`
	Segment  *SegmentRef    `json:"segment,omitempty"`
	Tags     []TagRef       `json:"tags"`
	Extra    map[string]any `json:"extra,omitempty"`
}

// UserPage is one page of the users listing
type UserPage struct {
	Users []BackofficeUser `json:"users"`
	Count int64            `json:"count"`
}
