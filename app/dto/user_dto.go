package dto

import (
	"github.com/amirphl/segment-backoffice/models"
	"github.com/amirphl/segment-backoffice/timeline"
)

// ListUsersQuery filters the users listing. Id lists are comma separated and
// may contain 0 for "no segment" or "no tag".
type ListUsersQuery struct {
	Limit      int    `query:"limit" validate:"omitempty,min=1,max=500"`
	Offset     int    `query:"offset" validate:"omitempty,min=0"`
	Search     string `query:"search" validate:"omitempty,max=255"`
	SegmentIDs string `query:"segmentIds"`
	TagIDs     string `query:"tagIds"`
}

type ListUsersResponse struct {
	Users  []models.BackofficeUser `json:"users"`
	Count  int64                   `json:"count"`
	Limit  int                     `json:"limit"`
	Offset int                     `json:"offset"`
}

// TimelineQuery bounds are epoch milliseconds
type TimelineQuery struct {
	UserID int64
	FromMs *int64
	ToMs   *int64
}

// TimelineResponse is a user's reconstructed tag and segment activity
type TimelineResponse struct {
	UserID       int64               `json:"userId"`
	FromMs       int64               `json:"fromMs"`
	ToMs         int64               `json:"toMs"`
	EventCount   int                 `json:"eventCount"`
	Tags         []timeline.Interval `json:"tags"`
	Segments     []timeline.Interval `json:"segments"`
	TagChart     timeline.Chart      `json:"tagChart"`
	SegmentChart timeline.Chart      `json:"segmentChart"`
}

// TimelineExport is a rendered workbook
type TimelineExport struct {
	FileName string
	Content  []byte
}
