package rules

import (
	"bytes"
	"encoding/json"
	"errors"

	"github.com/amirphl/segment-backoffice/models"
	"github.com/google/uuid"
)

var (
	ErrGroupNotFound = errors.New("group not found")
	ErrRuleNotFound  = errors.New("rule not found")
)

// DefaultColor is the color of a freshly created tag
const DefaultColor = "#e5e7eb"

// Builder applies edit operations to a TagState. Every operation returns a
// new state and leaves its input untouched.
type Builder struct {
	NewKey func() string
}

// NewBuilder returns a builder that keys groups and rules with random UUIDs
func NewBuilder() Builder {
	return Builder{NewKey: uuid.NewString}
}

func (b Builder) key() string {
	if b.NewKey == nil {
		return uuid.NewString()
	}
	return b.NewKey()
}

// DefaultRule is the rule a new group or an added rule starts with
func DefaultRule(connector string) Rule {
	return Rule{
		Connector:   str(connector),
		Event:       str(models.EventDeposit),
		Aggregation: str(models.AggregationSome),
		Metric:      str(models.MetricAmount),
		Operator:    str(models.OperatorGte),
		ValueFrom:   models.StringValue(""),
		ValueTo:     models.NullValue(),
		PeriodValue: models.IntValue(models.DefaultPeriodValue),
		PeriodUnit:  str(models.PeriodDay),
	}
}

func (b Builder) newGroup() GroupState {
	return GroupState{
		Key:       b.key(),
		Connector: str(models.ConnectorAnd),
		Rules:     []EditableRule{{Key: b.key(), Rule: DefaultRule(models.ConnectorAnd)}},
	}
}

// NewTagState returns the state of the create form
func (b Builder) NewTagState() TagState {
	return TagState{
		Name:       "",
		Color:      DefaultColor,
		Active:     models.IntValue(1),
		Persistent: models.IntValue(0),
		Groups:     []GroupState{b.newGroup()},
	}
}

// AddGroup appends a group holding one default rule
func (b Builder) AddGroup(s TagState) TagState {
	out := s.Clone()
	out.Groups = append(out.Groups, b.newGroup())
	return out
}

// RemoveGroup drops the group with the given key. Removing the last group is a no-op.
func (b Builder) RemoveGroup(s TagState, groupKey string) (TagState, error) {
	gi := s.groupIndex(groupKey)
	if gi < 0 {
		return s, ErrGroupNotFound
	}
	out := s.Clone()
	if len(out.Groups) == 1 {
		return out, nil
	}
	out.Groups = append(out.Groups[:gi], out.Groups[gi+1:]...)
	return out, nil
}

// GroupPatch is a partial group update
type GroupPatch struct {
	Connector Optional[*string] `json:"connector"`
}

// UpdateGroup applies a patch to the group with the given key
func (b Builder) UpdateGroup(s TagState, groupKey string, patch GroupPatch) (TagState, error) {
	gi := s.groupIndex(groupKey)
	if gi < 0 {
		return s, ErrGroupNotFound
	}
	out := s.Clone()
	if patch.Connector.Set {
		out.Groups[gi].Connector = patch.Connector.Value
	}
	return out, nil
}

// AddRule appends a default rule joined with "or" to the group
func (b Builder) AddRule(s TagState, groupKey string) (TagState, error) {
	gi := s.groupIndex(groupKey)
	if gi < 0 {
		return s, ErrGroupNotFound
	}
	out := s.Clone()
	out.Groups[gi].Rules = append(out.Groups[gi].Rules, EditableRule{Key: b.key(), Rule: DefaultRule(models.ConnectorOr)})
	return out, nil
}

// RemoveRule drops a rule from a group. Removing the last rule of a group is a no-op.
func (b Builder) RemoveRule(s TagState, groupKey, ruleKey string) (TagState, error) {
	gi, ri := s.ruleIndex(groupKey, ruleKey)
	if gi < 0 {
		return s, ErrGroupNotFound
	}
	if ri < 0 {
		return s, ErrRuleNotFound
	}
	out := s.Clone()
	rules := out.Groups[gi].Rules
	if len(rules) == 1 {
		return out, nil
	}
	out.Groups[gi].Rules = append(rules[:ri], rules[ri+1:]...)
	return out, nil
}

// RulePatch is a partial rule update. Fields that are not set keep their
// value, fields set to null clear it.
type RulePatch struct {
	Connector   Optional[*string]      `json:"connector"`
	Event       Optional[*string]      `json:"event"`
	Aggregation Optional[*string]      `json:"aggregation"`
	Metric      Optional[*string]      `json:"metric"`
	Operator    Optional[*string]      `json:"operator"`
	ValueFrom   Optional[models.Value] `json:"valueFrom"`
	ValueTo     Optional[models.Value] `json:"valueTo"`
	PeriodValue Optional[models.Value] `json:"periodValue"`
	PeriodUnit  Optional[*string]      `json:"periodUnit"`
}

// Apply returns the rule with the patch applied
func (p RulePatch) Apply(r Rule) Rule {
	p.Connector.applyTo(&r.Connector)
	p.Event.applyTo(&r.Event)
	p.Aggregation.applyTo(&r.Aggregation)
	p.Metric.applyTo(&r.Metric)
	p.Operator.applyTo(&r.Operator)
	p.ValueFrom.applyTo(&r.ValueFrom)
	p.ValueTo.applyTo(&r.ValueTo)
	p.PeriodValue.applyTo(&r.PeriodValue)
	p.PeriodUnit.applyTo(&r.PeriodUnit)
	return r
}

// UpdateRule applies a patch to a rule. The stored rule is not normalized;
// coupling is enforced when the payload is built.
func (b Builder) UpdateRule(s TagState, groupKey, ruleKey string, patch RulePatch) (TagState, error) {
	gi, ri := s.ruleIndex(groupKey, ruleKey)
	if gi < 0 {
		return s, ErrGroupNotFound
	}
	if ri < 0 {
		return s, ErrRuleNotFound
	}
	out := s.Clone()
	out.Groups[gi].Rules[ri].Rule = patch.Apply(out.Groups[gi].Rules[ri].Rule)
	return out, nil
}

func (s TagState) groupIndex(key string) int {
	for i, g := range s.Groups {
		if g.Key == key {
			return i
		}
	}
	return -1
}

func (s TagState) ruleIndex(groupKey, ruleKey string) (int, int) {
	gi := s.groupIndex(groupKey)
	if gi < 0 {
		return -1, -1
	}
	for ri, r := range s.Groups[gi].Rules {
		if r.Key == ruleKey {
			return gi, ri
		}
	}
	return gi, -1
}

// Optional marks whether a JSON field was present, so that an explicit null
// can be told apart from an omitted field.
type Optional[T any] struct {
	Set   bool
	Value T
}

// Some returns a set Optional
func Some[T any](v T) Optional[T] {
	return Optional[T]{Set: true, Value: v}
}

func (o *Optional[T]) UnmarshalJSON(data []byte) error {
	o.Set = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		var zero T
		o.Value = zero
		return nil
	}
	return json.Unmarshal(data, &o.Value)
}

func (o Optional[T]) MarshalJSON() ([]byte, error) {
	if !o.Set {
		return []byte("null"), nil
	}
	return json.Marshal(o.Value)
}

func (o Optional[T]) applyTo(dst *T) {
	if o.Set {
		*dst = o.Value
	}
}
