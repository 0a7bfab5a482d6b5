package services

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/amirphl/segment-backoffice/models"
	"github.com/tidwall/gjson"
)

var errInvalidJSON = errors.New("backoffice returned a malformed JSON body")

// The backend is not consistent about envelopes or field casing, so every
// decoder looks a field up under each of its known spellings.

func parseBody(body []byte) (gjson.Result, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return gjson.Result{}, nil
	}
	if !gjson.ValidBytes(body) {
		return gjson.Result{}, errInvalidJSON
	}
	return gjson.ParseBytes(body), nil
}

// firstOf returns the first path holding a non-null value
func firstOf(r gjson.Result, paths ...string) gjson.Result {
	for _, p := range paths {
		if v := r.Get(p); v.Exists() && v.Type != gjson.Null {
			return v
		}
	}
	return gjson.Result{}
}

// listOf accepts a bare array or an array under one of the envelope paths
func listOf(root gjson.Result, paths ...string) []gjson.Result {
	if root.IsArray() {
		return root.Array()
	}
	if v := firstOf(root, paths...); v.IsArray() {
		return v.Array()
	}
	return nil
}

func valueOf(r gjson.Result) models.Value {
	switch r.Type {
	case gjson.String:
		return models.StringValue(r.Str)
	case gjson.Number:
		return models.NumberValue(r.Num)
	case gjson.True:
		return models.BoolValue(true)
	case gjson.False:
		return models.BoolValue(false)
	}
	return models.NullValue()
}

func stringPtr(r gjson.Result) *string {
	if !r.Exists() || r.Type == gjson.Null {
		return nil
	}
	s := r.String()
	return &s
}

func int64Ptr(r gjson.Result) *int64 {
	switch r.Type {
	case gjson.Number:
		n := r.Int()
		return &n
	case gjson.String:
		n, err := strconv.ParseInt(strings.TrimSpace(r.Str), 10, 64)
		if err != nil {
			return nil
		}
		return &n
	}
	return nil
}

func float64Ptr(r gjson.Result) *float64 {
	switch r.Type {
	case gjson.Number:
		n := r.Num
		return &n
	case gjson.String:
		n, err := strconv.ParseFloat(strings.TrimSpace(r.Str), 64)
		if err != nil {
			return nil
		}
		return &n
	}
	return nil
}

func boolPtr(r gjson.Result) *bool {
	switch r.Type {
	case gjson.True, gjson.False, gjson.Number:
		b := r.Bool()
		return &b
	}
	return nil
}

// errorMessage picks the backend's own message, falling back to the status line
func errorMessage(status int, body []byte) string {
	if gjson.ValidBytes(body) {
		r := gjson.ParseBytes(body)
		for _, path := range []string{"message", "error", "error.message"} {
			if v := r.Get(path); v.Type == gjson.String && v.Str != "" {
				return v.Str
			}
		}
	}
	return fmt.Sprintf("%d %s", status, http.StatusText(status))
}

func decodeTags(body []byte) ([]models.Tag, error) {
	root, err := parseBody(body)
	if err != nil {
		return nil, err
	}
	items := listOf(root, "tags", "data.tags", "data")
	tags := make([]models.Tag, 0, len(items))
	for _, item := range items {
		tags = append(tags, decodeTag(item))
	}
	return tags, nil
}

// decodeTagResponse returns the tag echoed back by a write, or nil when the
// backend answered without one
func decodeTagResponse(body []byte) *models.Tag {
	root, err := parseBody(body)
	if err != nil || !root.IsObject() {
		return nil
	}
	r := root
	if v := firstOf(root, "tag", "data.tag", "data"); v.IsObject() {
		r = v
	}
	if !r.Get("id").Exists() {
		return nil
	}
	tag := decodeTag(r)
	return &tag
}

func decodeTag(r gjson.Result) models.Tag {
	tag := models.Tag{
		ID:         r.Get("id").Int(),
		Name:       r.Get("name").String(),
		Color:      stringPtr(r.Get("color")),
		Active:     valueOf(r.Get("active")),
		Persistent: valueOf(firstOf(r, "persistent", "is_persistent")),
		CreatedAt:  firstOf(r, "createdAt", "created_at").String(),
		UpdatedAt:  firstOf(r, "updatedAt", "updated_at").String(),
	}
	for _, g := range r.Get("groups").Array() {
		group := models.TagGroup{
			ID:        int64Ptr(g.Get("id")),
			Connector: stringPtr(g.Get("connector")),
			Sort:      int(g.Get("sort").Int()),
		}
		for _, rr := range g.Get("rules").Array() {
			group.Rules = append(group.Rules, decodeTagRule(rr))
		}
		tag.Groups = append(tag.Groups, group)
	}
	return tag
}

func decodeTagRule(r gjson.Result) models.TagRule {
	return models.TagRule{
		ID:          int64Ptr(r.Get("id")),
		Connector:   stringPtr(r.Get("connector")),
		Event:       stringPtr(r.Get("event")),
		Aggregation: stringPtr(r.Get("aggregation")),
		Metric:      stringPtr(r.Get("metric")),
		Operator:    stringPtr(r.Get("operator")),
		ValueFrom:   valueOf(firstOf(r, "valueFrom", "value_from")),
		ValueTo:     valueOf(firstOf(r, "valueTo", "value_to")),
		PeriodValue: valueOf(firstOf(r, "periodValue", "period_value")),
		PeriodUnit:  stringPtr(firstOf(r, "periodUnit", "period_unit")),
		Sort:        int(r.Get("sort").Int()),
	}
}

func decodeTagRef(r gjson.Result) models.TagRef {
	return models.TagRef{
		ID:          r.Get("id").Int(),
		Name:        r.Get("name").String(),
		Color:       stringPtr(r.Get("color")),
		Description: stringPtr(r.Get("description")),
		Persistent:  boolPtr(firstOf(r, "persistent", "is_persistent")),
	}
}

func decodeSegmentRef(r gjson.Result) *models.SegmentRef {
	if !r.IsObject() {
		return nil
	}
	return &models.SegmentRef{
		ID:          r.Get("id").Int(),
		Slug:        r.Get("slug").String(),
		Name:        r.Get("name").String(),
		Color:       stringPtr(r.Get("color")),
		Description: stringPtr(r.Get("description")),
	}
}

var knownUserFields = map[string]struct{}{
	"id": {}, "username": {}, "email": {}, "segment": {}, "tags": {},
}

func decodeUserPage(body []byte) (*models.UserPage, error) {
	root, err := parseBody(body)
	if err != nil {
		return nil, err
	}
	items := listOf(root, "users", "data.users")
	page := &models.UserPage{
		Users: make([]models.BackofficeUser, 0, len(items)),
		Count: firstOf(root, "meta.count", "count", "total", "data.meta.count").Int(),
	}
	for _, item := range items {
		user := models.BackofficeUser{
			ID:       item.Get("id").Int(),
			Username: item.Get("username").String(),
			Email:    item.Get("email").String(),
			Segment:  decodeSegmentRef(item.Get("segment")),
			Tags:     []models.TagRef{},
		}
		for _, t := range item.Get("tags").Array() {
			user.Tags = append(user.Tags, decodeTagRef(t))
		}
		item.ForEach(func(key, value gjson.Result) bool {
			if _, known := knownUserFields[key.Str]; known {
				return true
			}
			if user.Extra == nil {
				user.Extra = make(map[string]any)
			}
			user.Extra[key.Str] = value.Value()
			return true
		})
		page.Users = append(page.Users, user)
	}
	return page, nil
}

func decodeHistory(body []byte) ([]models.HistoryEvent, error) {
	root, err := parseBody(body)
	if err != nil {
		return nil, err
	}
	items := listOf(root, "history", "data.history", "data")
	events := make([]models.HistoryEvent, 0, len(items))
	for _, item := range items {
		ev := models.HistoryEvent{
			ID:        int64Ptr(item.Get("id")),
			Type:      item.Get("type").String(),
			Action:    item.Get("action").String(),
			CreatedAt: valueOf(firstOf(item, "createdAt", "created_at")),
			TagID:     int64Ptr(firstOf(item, "tagId", "tag_id")),
			SegmentID: int64Ptr(firstOf(item, "segmentId", "segment_id")),
			Segment:   decodeSegmentRef(item.Get("segment")),
		}
		if t := item.Get("tag"); t.IsObject() {
			ref := decodeTagRef(t)
			ev.Tag = &ref
		}
		events = append(events, ev)
	}
	return events, nil
}

func decodeSegmentCatalog(body []byte) (*models.SegmentCatalog, error) {
	root, err := parseBody(body)
	if err != nil {
		return nil, err
	}
	items := listOf(root, "segments", "data.segments")
	catalog := &models.SegmentCatalog{
		Segments: make([]models.Segment, 0, len(items)),
		Configs:  models.SegmentsConfig{TimeRangeDays: models.DefaultTimeRangeDays},
	}
	if v := float64Ptr(firstOf(root, "configs.timeRangeDays", "configs.time_range_days", "data.configs.timeRangeDays")); v != nil {
		catalog.Configs.TimeRangeDays = *v
	}
	for _, item := range items {
		opts := item.Get("options")
		catalog.Segments = append(catalog.Segments, models.Segment{
			ID:          item.Get("id").Int(),
			Slug:        item.Get("slug").String(),
			Name:        item.Get("name").String(),
			Color:       stringPtr(item.Get("color")),
			Description: stringPtr(item.Get("description")),
			Options: models.SegmentOptions{
				AfterMinutes: float64Ptr(firstOf(opts, "afterMinutes", "after_minutes")),
				FromNR:       float64Ptr(firstOf(opts, "fromNR", "from_nr")),
				ToNR:         float64Ptr(firstOf(opts, "toNR", "to_nr")),
			},
		})
	}
	return catalog, nil
}

func decodeStatistics(body []byte) ([]models.StatisticsBucket, error) {
	root, err := parseBody(body)
	if err != nil {
		return nil, err
	}
	items := listOf(root, "buckets", "data.buckets")
	buckets := make([]models.StatisticsBucket, 0, len(items))
	for _, item := range items {
		bucket := models.StatisticsBucket{
			From:       valueOf(item.Get("from")),
			To:         valueOf(item.Get("to")),
			Statistics: []models.SegmentStatistics{},
		}
		for _, st := range item.Get("statistics").Array() {
			seg := st.Get("segment")
			bucket.Statistics = append(bucket.Statistics, models.SegmentStatistics{
				Segment: models.StatisticsSegment{
					ID:    int64Ptr(seg.Get("id")),
					Slug:  seg.Get("slug").String(),
					Name:  seg.Get("name").String(),
					Color: stringPtr(seg.Get("color")),
				},
				UsersCount:      valueOf(firstOf(st, "usersCount", "users_count")),
				UserTimeSeconds: valueOf(firstOf(st, "userTimeSeconds", "user_time_seconds")),
				AvgUsers:        valueOf(firstOf(st, "avgUsers", "avg_users")),
			})
		}
		buckets = append(buckets, bucket)
	}
	return buckets, nil
}
