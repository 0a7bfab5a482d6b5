package rules

import (
	"fmt"
	"slices"
	"strings"

	"github.com/amirphl/segment-backoffice/models"
)

// Result is the outcome of payload validation. Errors are user facing.
type Result struct {
	OK     bool     `json:"ok"`
	Errors []string `json:"errors"`
}

// ValidatePayload checks a payload against the rule taxonomy and reports
// every violation in one pass. A nil payload is reported and then checked
// as an empty one.
func ValidatePayload(p *Payload) Result {
	var errs []string
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Sprintf(format, args...))
	}

	if p == nil {
		add("payload must be an object")
		p = &Payload{}
	}

	if strings.TrimSpace(p.Name) == "" {
		add("name is required")
	}
	if !isFlag(p.Active) {
		add("active must be 0 or 1")
	}
	if !isFlag(p.Persistent) {
		add("persistent must be 0 or 1")
	}
	if len(p.Groups) == 0 {
		add("at least 1 group is required")
	}

	for gi, g := range p.Groups {
		if !models.InEnum(g.Connector, models.Connectors) {
			add(`group[%d].connector must be "and" | "or"`, gi)
		}
		if len(g.Rules) == 0 {
			add("group[%d] must have at least 1 rule", gi)
		}

		for ri, r := range g.Rules {
			for _, msg := range validateRule(r.Rule) {
				add("rule[%d][%d].%s", gi, ri, msg)
			}
		}
	}

	if errs == nil {
		errs = []string{}
	}
	return Result{OK: len(errs) == 0, Errors: errs}
}

func validateRule(r Rule) []string {
	var errs []string
	event := deref(r.Event)
	aggregation := deref(r.Aggregation)
	metric := deref(r.Metric)

	if !models.InEnum(r.Connector, models.Connectors) {
		errs = append(errs, "connector invalid")
	}
	if !models.InEnum(r.Event, models.Events) {
		errs = append(errs, "event invalid")
	}
	if !models.InEnum(r.Operator, models.Operators) {
		errs = append(errs, "operator invalid")
	}
	if !models.InEnum(r.PeriodUnit, models.PeriodUnits) {
		errs = append(errs, "periodUnit invalid")
	}

	if event != models.EventNetResult {
		if !models.InEnum(r.Aggregation, models.Aggregations) {
			errs = append(errs, "aggregation invalid")
		}
	} else if r.Aggregation != nil {
		errs = append(errs, "aggregation must be null when event=net_result")
	}

	if r.ValueFrom.String() == "" {
		errs = append(errs, "valueFrom is required")
	}
	if models.IsBetweenOperator(deref(r.Operator)) && r.ValueTo.String() == "" {
		errs = append(errs, "valueTo is required for between/not_between")
	}
	if !r.PeriodValue.IsNonNegativeInt() {
		errs = append(errs, "periodValue must be int >= 0")
	}

	if event != models.EventNetResult {
		if aggregation != models.AggregationCount && metric == "" {
			errs = append(errs, "metric is required when aggregation != count")
		}
	} else if r.Metric != nil {
		errs = append(errs, "metric must be null when event=net_result")
	}
	if metric != "" && !slices.Contains(models.Metrics, metric) {
		errs = append(errs, "metric invalid")
	}

	if event == models.EventLogin {
		if metric != "" {
			errs = append(errs, "metric must be empty when event=login")
		}
		if aggregation != models.AggregationCount {
			errs = append(errs, "aggregation must be count when event=login")
		}
	}

	return errs
}

// isFlag accepts 0 and 1 after numeric coercion, null counts as 0
func isFlag(v models.Value) bool {
	n := v.Number()
	return n == 0 || n == 1
}
