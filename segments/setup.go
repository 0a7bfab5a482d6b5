package segments

import (
	"fmt"
	"math"
	"strings"

	"github.com/amirphl/segment-backoffice/models"
)

// SegmentInput holds the operator-entered options of one segment, in
// display convention. Blank values mean "not set".
type SegmentInput struct {
	SegmentID    int64        `json:"segmentId"`
	AfterMinutes models.Value `json:"afterMinutes"`
	FromNR       models.Value `json:"fromNR"`
	ToNR         models.Value `json:"toNR"`
}

// SetupInput is the full segment configuration form
type SetupInput struct {
	TimeRangeDays models.Value   `json:"timeRangeDays"`
	Segments      []SegmentInput `json:"segments"`
}

// numOrNull returns nil for blank values and for non-finite numbers
func numOrNull(v models.Value) *float64 {
	if v.IsAbsent() {
		return nil
	}
	n := v.Number()
	if math.IsNaN(n) || math.IsInf(n, 0) {
		return nil
	}
	return &n
}

// ValidateSetup checks the form against the catalog and reports every problem
func ValidateSetup(catalog []models.Segment, in SetupInput) []string {
	errs := []string{}

	if tr := numOrNull(in.TimeRangeDays); tr == nil || *tr <= 0 {
		errs = append(errs, "timeRangeDays must be a number > 0")
	}

	known := make(map[int64]models.Segment, len(catalog))
	for _, seg := range catalog {
		known[seg.ID] = seg
	}

	inputs := make(map[int64]SegmentInput, len(in.Segments))
	for _, si := range in.Segments {
		if _, ok := known[si.SegmentID]; !ok {
			errs = append(errs, fmt.Sprintf("segment %d is unknown", si.SegmentID))
			continue
		}
		inputs[si.SegmentID] = si
	}

	for _, seg := range catalog {
		si, ok := inputs[seg.ID]
		if !ok {
			continue
		}
		label := fmt.Sprintf("Segment %q (%s)", seg.Name, seg.Slug)

		switch KindBySlug(seg.Slug) {
		case models.SegmentKindAfterMinutes:
			if !si.AfterMinutes.IsAbsent() {
				if m := numOrNull(si.AfterMinutes); m == nil {
					errs = append(errs, label+": afterMinutes must be a number")
				} else if *m <= 0 {
					errs = append(errs, label+": afterMinutes must be a number > 0")
				}
			}
		case models.SegmentKindNRRange:
			from, to := numOrNull(si.FromNR), numOrNull(si.ToNR)
			if !si.FromNR.IsAbsent() && from == nil {
				errs = append(errs, label+": fromNR must be a number")
			}
			if !si.ToNR.IsAbsent() && to == nil {
				errs = append(errs, label+": toNR must be a number")
			}
			if from == nil && to == nil {
				errs = append(errs, label+": set fromNR or toNR")
			}
			if from != nil && *from == 0 {
				errs = append(errs, label+": fromNR must not be 0")
			}
			if to != nil && *to == 0 {
				errs = append(errs, label+": toNR must not be 0")
			}
		}
	}

	return errs
}

// BuildSetup converts a validated form into the storage-convention request.
// Catalog segments missing from the form keep their stored options.
func BuildSetup(catalog []models.Segment, in SetupInput) models.SegmentSetup {
	setup := models.SegmentSetup{Configs: make([]models.SegmentConfig, 0, len(catalog))}
	if tr := numOrNull(in.TimeRangeDays); tr != nil {
		setup.TimeRangeDays = *tr
	}

	inputs := make(map[int64]SegmentInput, len(in.Segments))
	for _, si := range in.Segments {
		inputs[si.SegmentID] = si
	}

	for _, seg := range catalog {
		si, ok := inputs[seg.ID]
		if !ok {
			setup.Configs = append(setup.Configs, models.SegmentConfig{SegmentID: seg.ID, Options: mapOptions(seg.Slug, seg.Options, keep)})
			continue
		}

		display := models.SegmentOptions{
			AfterMinutes: numOrNull(si.AfterMinutes),
			FromNR:       numOrNull(si.FromNR),
			ToNR:         numOrNull(si.ToNR),
		}
		setup.Configs = append(setup.Configs, models.SegmentConfig{SegmentID: seg.ID, Options: StorageOptions(seg.Slug, display)})
	}

	return setup
}

func keep(_ string, v float64) float64 { return v }

// InputFromCatalog returns the form prefilled with the stored configuration
func InputFromCatalog(c models.SegmentCatalog) SetupInput {
	in := SetupInput{TimeRangeDays: models.NumberValue(c.Configs.TimeRangeDays)}
	if c.Configs.TimeRangeDays == 0 {
		in.TimeRangeDays = models.IntValue(models.DefaultTimeRangeDays)
	}
	for _, seg := range c.Segments {
		opts := DisplayOptions(seg)
		si := SegmentInput{SegmentID: seg.ID}
		si.AfterMinutes = floatValue(opts.AfterMinutes)
		si.FromNR = floatValue(opts.FromNR)
		si.ToNR = floatValue(opts.ToNR)
		in.Segments = append(in.Segments, si)
	}
	return in
}

func floatValue(p *float64) models.Value {
	if p == nil {
		return models.StringValue("")
	}
	return models.NumberValue(*p)
}

// JoinErrors renders validation errors as one message
func JoinErrors(errs []string) string {
	return strings.Join(errs, "\n")
}
