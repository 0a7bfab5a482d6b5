package rules

import (
	"testing"

	"github.com/amirphl/segment-backoffice/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromTagDefaults(t *testing.T) {
	b := Builder{NewKey: sequentialKeys()}
	tag := models.Tag{
		ID:     7,
		Name:   "churn risk",
		Active: models.StringValue("0"),
		Groups: []models.TagGroup{{
			Rules: []models.TagRule{{
				ValueFrom:   models.IntValue(50),
				PeriodValue: models.NullValue(),
			}},
		}},
	}

	s := b.FromTag(tag)

	require.NotNil(t, s.ID)
	assert.Equal(t, int64(7), *s.ID)
	assert.Equal(t, DefaultColor, s.Color)
	assert.Equal(t, "0", s.Active.String())
	assert.Equal(t, "0", s.Persistent.String())
	require.Len(t, s.Groups, 1)
	assert.Equal(t, "and", *s.Groups[0].Connector)

	r := s.Groups[0].Rules[0]
	assert.Equal(t, "and", *r.Connector)
	assert.Equal(t, "deposit", *r.Event)
	assert.Equal(t, "some", *r.Aggregation)
	assert.Nil(t, r.Metric)
	assert.Equal(t, "gte", *r.Operator)
	assert.Equal(t, "50", r.ValueFrom.String())
	assert.True(t, r.ValueTo.IsNull())
	assert.Equal(t, models.StringValue("1"), r.PeriodValue)
	assert.Equal(t, "day", *r.PeriodUnit)
}

func TestFromTagKeepsStoredValues(t *testing.T) {
	b := Builder{NewKey: sequentialKeys()}
	tag := models.Tag{
		ID:         3,
		Name:       "winners",
		Color:      str("#123456"),
		Active:     models.IntValue(1),
		Persistent: models.BoolValue(true),
		Groups: []models.TagGroup{
			{Connector: str("and"), Rules: []models.TagRule{{
				Connector:   str("and"),
				Event:       str("net_result"),
				Operator:    str("between"),
				ValueFrom:   models.StringValue("10"),
				ValueTo:     models.StringValue("20"),
				PeriodValue: models.IntValue(30),
				PeriodUnit:  str("day"),
			}}},
			{Connector: str("or")},
		},
	}

	s := b.FromTag(tag)

	assert.Equal(t, "#123456", s.Color)
	assert.Equal(t, "1", s.Persistent.String())
	require.Len(t, s.Groups, 2)
	assert.Equal(t, "or", *s.Groups[1].Connector)
	require.Len(t, s.Groups[1].Rules, 1, "groups without rules get a default rule")
	assert.Equal(t, "20", s.Groups[0].Rules[0].ValueTo.String())
	assert.Equal(t, "30", s.Groups[0].Rules[0].PeriodValue.String())

	p := BuildPayload(s)
	assert.Nil(t, p.Groups[0].Rules[0].Aggregation)
	assert.Equal(t, "30", p.Groups[0].Rules[0].PeriodValue.String())
}

func TestFromTagWithoutGroups(t *testing.T) {
	b := Builder{NewKey: sequentialKeys()}
	s := b.FromTag(models.Tag{ID: 1, Name: "empty"})

	require.Len(t, s.Groups, 1)
	require.Len(t, s.Groups[0].Rules, 1)
	assert.Equal(t, "amount", *s.Groups[0].Rules[0].Metric)
}
