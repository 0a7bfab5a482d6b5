package segments

import (
	"encoding/json"
	"testing"

	"github.com/amirphl/segment-backoffice/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func catalog() []models.Segment {
	return []models.Segment{
		{ID: 1, Slug: "new_user", Name: "New user"},
		{ID: 2, Slug: "no_deposit", Name: "No deposit", Options: models.SegmentOptions{AfterMinutes: f(60)}},
		{ID: 3, Slug: "net_winner_big", Name: "Big winner", Options: models.SegmentOptions{FromNR: f(-1000)}},
		{ID: 4, Slug: "net_loser", Name: "Loser", Options: models.SegmentOptions{ToNR: f(-5)}},
	}
}

func TestValidateSetup(t *testing.T) {
	tests := []struct {
		name     string
		input    SetupInput
		expected []string
	}{
		{
			name: "valid",
			input: SetupInput{TimeRangeDays: models.StringValue("30"), Segments: []SegmentInput{
				{SegmentID: 3, FromNR: models.StringValue("1000")},
				{SegmentID: 4, ToNR: models.IntValue(-5)},
			}},
			expected: []string{},
		},
		{
			name:  "time range must be positive",
			input: SetupInput{TimeRangeDays: models.IntValue(0)},
			expected: []string{
				"timeRangeDays must be a number > 0",
			},
		},
		{
			name:  "time range blank",
			input: SetupInput{TimeRangeDays: models.StringValue("")},
			expected: []string{
				"timeRangeDays must be a number > 0",
			},
		},
		{
			name: "range segment needs a bound",
			input: SetupInput{TimeRangeDays: models.IntValue(180), Segments: []SegmentInput{
				{SegmentID: 3, FromNR: models.StringValue(""), ToNR: models.NullValue()},
			}},
			expected: []string{
				`Segment "Big winner" (net_winner_big): set fromNR or toNR`,
			},
		},
		{
			name: "zero and garbage bounds",
			input: SetupInput{TimeRangeDays: models.IntValue(180), Segments: []SegmentInput{
				{SegmentID: 4, FromNR: models.IntValue(0), ToNR: models.StringValue("abc")},
				{SegmentID: 2, AfterMinutes: models.StringValue("soon")},
				{SegmentID: 99},
			}},
			expected: []string{
				"segment 99 is unknown",
				`Segment "No deposit" (no_deposit): afterMinutes must be a number`,
				`Segment "Loser" (net_loser): toNR must be a number`,
				`Segment "Loser" (net_loser): fromNR must not be 0`,
			},
		},
		{
			name: "after minutes zero",
			input: SetupInput{TimeRangeDays: models.IntValue(30), Segments: []SegmentInput{
				{SegmentID: 2, AfterMinutes: models.IntValue(0)},
			}},
			expected: []string{
				`Segment "No deposit" (no_deposit): afterMinutes must be a number > 0`,
			},
		},
		{
			name: "after minutes negative",
			input: SetupInput{TimeRangeDays: models.IntValue(30), Segments: []SegmentInput{
				{SegmentID: 2, AfterMinutes: models.StringValue("-30")},
			}},
			expected: []string{
				`Segment "No deposit" (no_deposit): afterMinutes must be a number > 0`,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ValidateSetup(catalog(), tt.input))
		})
	}
}

func TestBuildSetup(t *testing.T) {
	in := SetupInput{TimeRangeDays: models.StringValue("90"), Segments: []SegmentInput{
		{SegmentID: 1, FromNR: models.IntValue(3)},
		{SegmentID: 2, AfterMinutes: models.StringValue("")},
		{SegmentID: 3, FromNR: models.StringValue("2500"), ToNR: models.StringValue("")},
	}}

	setup := BuildSetup(catalog(), in)

	assert.Equal(t, 90.0, setup.TimeRangeDays)
	require.Len(t, setup.Configs, 4)

	data, err := json.Marshal(setup)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"timeRangeDays": 90,
		"configs": [
			{"segmentId": 1, "options": {}},
			{"segmentId": 2, "options": {}},
			{"segmentId": 3, "options": {"fromNR": -2500}},
			{"segmentId": 4, "options": {"toNR": -5}}
		]
	}`, string(data))
}

func TestInputFromCatalogRoundTrip(t *testing.T) {
	c := models.SegmentCatalog{Segments: catalog()}

	in := InputFromCatalog(c)

	assert.Equal(t, "180", in.TimeRangeDays.String())
	require.Len(t, in.Segments, 4)
	assert.Equal(t, "1000", in.Segments[2].FromNR.String())
	assert.Equal(t, "", in.Segments[2].ToNR.String())
	assert.Equal(t, "60", in.Segments[1].AfterMinutes.String())

	setup := BuildSetup(c.Segments, in)
	assert.Equal(t, -1000.0, *setup.Configs[2].Options.FromNR)
	assert.Equal(t, 60.0, *setup.Configs[1].Options.AfterMinutes)
}
