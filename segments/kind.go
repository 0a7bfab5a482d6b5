// Package segments holds the segment taxonomy rules: which options a segment
// takes, how bounds are displayed versus stored, and setup validation.
package segments

import (
	"math"

	"github.com/amirphl/segment-backoffice/models"
)

// KindBySlug classifies a segment by its slug
func KindBySlug(slug string) models.SegmentKind {
	switch slug {
	case models.SegmentSlugNewUser, models.SegmentSlugDepositOnly, models.SegmentSlugInactiveUser:
		return models.SegmentKindNone
	case models.SegmentSlugNoDeposit:
		return models.SegmentKindAfterMinutes
	}
	return models.SegmentKindNRRange
}

// ToDisplay maps a stored net-result bound to what operators see. Winner
// segments store negative magnitudes and are displayed as absolute values.
func ToDisplay(slug string, stored float64) float64 {
	if models.IsWinnerSlug(slug) {
		return math.Abs(stored)
	}
	return stored
}

// ToStorage is the inverse of ToDisplay
func ToStorage(slug string, display float64) float64 {
	if models.IsWinnerSlug(slug) {
		return -math.Abs(display)
	}
	return display
}

// DisplayOptions returns the options of a segment in display convention,
// keeping only the fields its kind accepts.
func DisplayOptions(seg models.Segment) models.SegmentOptions {
	return mapOptions(seg.Slug, seg.Options, ToDisplay)
}

// StorageOptions converts display options back to storage convention
func StorageOptions(slug string, opts models.SegmentOptions) models.SegmentOptions {
	return mapOptions(slug, opts, ToStorage)
}

func mapOptions(slug string, in models.SegmentOptions, conv func(string, float64) float64) models.SegmentOptions {
	var out models.SegmentOptions
	switch KindBySlug(slug) {
	case models.SegmentKindAfterMinutes:
		out.AfterMinutes = copyFloat(in.AfterMinutes)
	case models.SegmentKindNRRange:
		if in.FromNR != nil {
			v := conv(slug, *in.FromNR)
			out.FromNR = &v
		}
		if in.ToNR != nil {
			v := conv(slug, *in.ToNR)
			out.ToNR = &v
		}
	}
	return out
}

func copyFloat(p *float64) *float64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// DisplaySegment is a segment as shown to operators
type DisplaySegment struct {
	models.Segment
	Kind models.SegmentKind `json:"kind"`
}

// ToDisplaySegments annotates segments with their kind and display options
func ToDisplaySegments(list []models.Segment) []DisplaySegment {
	out := make([]DisplaySegment, 0, len(list))
	for _, seg := range list {
		d := DisplaySegment{Segment: seg, Kind: KindBySlug(seg.Slug)}
		d.Options = DisplayOptions(seg)
		out = append(out, d)
	}
	return out
}
