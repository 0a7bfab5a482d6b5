// Package rules turns the editable tag rule tree into the canonical backend
// payload and validates payloads against the rule taxonomy.
package rules

import (
	"github.com/amirphl/segment-backoffice/models"
)

// Rule is a single predicate of a group. Enum fields are nullable because
// editors and stored records may leave them unset.
type Rule struct {
	Connector   *string      `json:"connector"`
	Event       *string      `json:"event"`
	Aggregation *string      `json:"aggregation"`
	Metric      *string      `json:"metric"`
	Operator    *string      `json:"operator"`
	ValueFrom   models.Value `json:"valueFrom"`
	ValueTo     models.Value `json:"valueTo"`
	PeriodValue models.Value `json:"periodValue"`
	PeriodUnit  *string      `json:"periodUnit"`
}

// PayloadRule is a normalized rule with its 1-based position
type PayloadRule struct {
	Rule
	Sort int `json:"sort"`
}

// PayloadGroup is the wire shape of a group
type PayloadGroup struct {
	Connector *string       `json:"connector"`
	Sort      int           `json:"sort"`
	Rules     []PayloadRule `json:"rules"`
}

// Payload is the canonical tag body accepted by the backend on create and update
type Payload struct {
	Name       string         `json:"name"`
	Color      *string        `json:"color"`
	Active     models.Value   `json:"active"`
	Persistent models.Value   `json:"persistent"`
	Groups     []PayloadGroup `json:"groups"`
}

// EditableRule is a rule inside the builder, addressed by a local key
type EditableRule struct {
	Key string `json:"_id"`
	Rule
}

// GroupState is a group inside the builder
type GroupState struct {
	Key       string         `json:"_id"`
	Connector *string        `json:"connector"`
	Rules     []EditableRule `json:"rules"`
}

// TagState is the editable tag tree. Local keys never reach the backend.
type TagState struct {
	ID         *int64       `json:"id,omitempty"`
	Name       string       `json:"name"`
	Color      string       `json:"color"`
	Active     models.Value `json:"active"`
	Persistent models.Value `json:"persistent"`
	Groups     []GroupState `json:"groups"`
}

// Clone returns a deep copy of the state. Builder operations never share
// group or rule slices between the input and the output.
func (s TagState) Clone() TagState {
	out := s
	if s.ID != nil {
		id := *s.ID
		out.ID = &id
	}
	out.Groups = make([]GroupState, len(s.Groups))
	for gi, g := range s.Groups {
		out.Groups[gi] = g
		out.Groups[gi].Rules = append([]EditableRule(nil), g.Rules...)
	}
	return out
}

// RuleCount returns the number of rules across all groups
func (s TagState) RuleCount() int {
	n := 0
	for _, g := range s.Groups {
		n += len(g.Rules)
	}
	return n
}

func str(s string) *string {
	return &s
}

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

// orDefault returns def when p is nil or empty
func orDefault(p *string, def string) *string {
	if p == nil || *p == "" {
		return str(def)
	}
	return str(*p)
}

// coalesce returns def only when p is nil
func coalesce(p *string, def string) *string {
	if p == nil {
		return str(def)
	}
	return str(*p)
}
