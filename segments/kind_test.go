package segments

import (
	"testing"

	"github.com/amirphl/segment-backoffice/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func f(v float64) *float64 { return &v }

func TestKindBySlug(t *testing.T) {
	tests := []struct {
		slug     string
		expected models.SegmentKind
	}{
		{"new_user", models.SegmentKindNone},
		{"deposit_only", models.SegmentKindNone},
		{"inactive_user", models.SegmentKindNone},
		{"no_deposit", models.SegmentKindAfterMinutes},
		{"net_winner_small", models.SegmentKindNRRange},
		{"net_loser", models.SegmentKindNRRange},
		{"", models.SegmentKindNRRange},
	}

	for _, tt := range tests {
		t.Run(tt.slug, func(t *testing.T) {
			assert.Equal(t, tt.expected, KindBySlug(tt.slug))
		})
	}
}

func TestWinnerSignMapping(t *testing.T) {
	assert.Equal(t, 500.0, ToDisplay("net_winner_big", -500))
	assert.Equal(t, -500.0, ToStorage("net_winner_big", 500))
	assert.Equal(t, -500.0, ToStorage("net_winner_big", -500))
	assert.Equal(t, -20.0, ToDisplay("net_loser", -20))
	assert.Equal(t, 20.0, ToStorage("net_loser", 20))

	for _, v := range []float64{-1000, -1, 1, 250} {
		assert.Equal(t, -ToDisplay("net_winner", v), ToStorage("net_winner", ToDisplay("net_winner", v)))
	}
}

func TestDisplayOptions(t *testing.T) {
	winner := models.Segment{ID: 1, Slug: "net_winner_mid", Options: models.SegmentOptions{FromNR: f(-100), ToNR: f(-1000), AfterMinutes: f(5)}}
	noDeposit := models.Segment{ID: 2, Slug: "no_deposit", Options: models.SegmentOptions{AfterMinutes: f(1501), FromNR: f(3)}}
	newUser := models.Segment{ID: 3, Slug: "new_user", Options: models.SegmentOptions{FromNR: f(3)}}

	w := DisplayOptions(winner)
	require.NotNil(t, w.FromNR)
	assert.Equal(t, 100.0, *w.FromNR)
	assert.Equal(t, 1000.0, *w.ToNR)
	assert.Nil(t, w.AfterMinutes)
	assert.Equal(t, -100.0, *winner.Options.FromNR, "input is not modified")

	nd := DisplayOptions(noDeposit)
	assert.Equal(t, 1501.0, *nd.AfterMinutes)
	assert.Nil(t, nd.FromNR)

	assert.True(t, DisplayOptions(newUser).IsEmpty())

	list := ToDisplaySegments([]models.Segment{winner, newUser})
	require.Len(t, list, 2)
	assert.Equal(t, models.SegmentKindNRRange, list[0].Kind)
	assert.Equal(t, 100.0, *list[0].Options.FromNR)
	assert.Equal(t, models.SegmentKindNone, list[1].Kind)
}
