package rules

import (
	"github.com/amirphl/segment-backoffice/models"
)

// override is one business-rule coupling step. Each is total and only reads
// fields that earlier steps may already have rewritten.
type override func(Rule) Rule

// overrides run in this order: login, net_result, count, non-between
var overrides = []override{
	loginOverride,
	netResultOverride,
	countOverride,
	rangeOverride,
}

func loginOverride(r Rule) Rule {
	if deref(r.Event) == models.EventLogin {
		r.Aggregation = str(models.AggregationCount)
		r.Metric = nil
	}
	return r
}

func netResultOverride(r Rule) Rule {
	if deref(r.Event) == models.EventNetResult {
		r.Aggregation = nil
		r.Metric = nil
	}
	return r
}

func countOverride(r Rule) Rule {
	if deref(r.Aggregation) == models.AggregationCount {
		r.Metric = nil
	}
	return r
}

func rangeOverride(r Rule) Rule {
	if !models.IsBetweenOperator(deref(r.Operator)) {
		r.ValueTo = models.NullValue()
	}
	return r
}

// NormalizeRule applies the coupling overrides and coerces rule values to
// their wire types. It always succeeds and is idempotent.
func NormalizeRule(r Rule) Rule {
	for _, apply := range overrides {
		r = apply(r)
	}

	r.ValueFrom = models.StringValue(r.ValueFrom.String())
	if !r.ValueTo.IsNull() {
		r.ValueTo = models.StringValue(r.ValueTo.String())
	}
	if r.PeriodValue.IsAbsent() {
		r.PeriodValue = models.IntValue(models.DefaultPeriodValue)
	} else {
		r.PeriodValue = models.NumberValue(r.PeriodValue.Number())
	}

	return r
}
