package rules

import (
	"github.com/amirphl/segment-backoffice/models"
)

// FromTag rehydrates a stored tag into builder state, filling absent fields
// with editor defaults.
func (b Builder) FromTag(t models.Tag) TagState {
	id := t.ID
	s := TagState{
		ID:         &id,
		Name:       t.Name,
		Color:      DefaultColor,
		Active:     models.IntValue(boolToInt(t.Active.Truthy())),
		Persistent: models.IntValue(boolToInt(t.Persistent.Truthy())),
	}
	if t.Color != nil {
		s.Color = *t.Color
	}

	for _, g := range t.Groups {
		group := GroupState{
			Key:       b.key(),
			Connector: coalesce(g.Connector, models.ConnectorAnd),
		}
		for _, r := range g.Rules {
			group.Rules = append(group.Rules, EditableRule{Key: b.key(), Rule: ruleFromStored(r)})
		}
		if len(group.Rules) == 0 {
			group.Rules = []EditableRule{{Key: b.key(), Rule: DefaultRule(models.ConnectorAnd)}}
		}
		s.Groups = append(s.Groups, group)
	}

	if len(s.Groups) == 0 {
		s.Groups = []GroupState{b.newGroup()}
	}
	return s
}

func ruleFromStored(r models.TagRule) Rule {
	out := Rule{
		Connector:   coalesce(r.Connector, models.ConnectorAnd),
		Event:       coalesce(r.Event, models.EventDeposit),
		Aggregation: coalesce(r.Aggregation, models.AggregationSome),
		Operator:    coalesce(r.Operator, models.OperatorGte),
		ValueFrom:   models.StringValue(r.ValueFrom.String()),
		ValueTo:     models.NullValue(),
		PeriodUnit:  coalesce(r.PeriodUnit, models.PeriodDay),
	}
	if r.Metric != nil {
		out.Metric = str(*r.Metric)
	}
	if !r.ValueTo.IsNull() {
		out.ValueTo = r.ValueTo
	}

	period := r.PeriodValue
	if period.IsNull() {
		period = models.IntValue(1)
	}
	out.PeriodValue = models.StringValue(models.NumberValue(period.Number()).String())

	return out
}
