package rules

import (
	"strings"

	"github.com/amirphl/segment-backoffice/models"
)

// BuildPayload converts the builder tree into the backend payload. Sort
// positions come from the current slice order, the leading group and the
// leading rule of the first group always use "and".
func BuildPayload(s TagState) Payload {
	p := Payload{
		Name:       s.Name,
		Color:      normalizeColor(s.Color),
		Active:     models.IntValue(boolToInt(s.Active.Truthy())),
		Persistent: models.IntValue(boolToInt(s.Persistent.Truthy())),
		Groups:     make([]PayloadGroup, 0, len(s.Groups)),
	}

	for gi, g := range s.Groups {
		group := PayloadGroup{
			Connector: orDefault(g.Connector, models.ConnectorAnd),
			Sort:      gi + 1,
			Rules:     make([]PayloadRule, 0, len(g.Rules)),
		}
		if gi == 0 {
			group.Connector = str(models.ConnectorAnd)
		}

		for ri, er := range g.Rules {
			r := er.Rule
			r.Connector = orDefault(r.Connector, models.ConnectorAnd)
			if gi == 0 && ri == 0 {
				r.Connector = str(models.ConnectorAnd)
			}
			group.Rules = append(group.Rules, PayloadRule{Rule: NormalizeRule(r), Sort: ri + 1})
		}

		p.Groups = append(p.Groups, group)
	}

	return p
}

func normalizeColor(c string) *string {
	c = strings.TrimSpace(c)
	if c == "" {
		return nil
	}
	return str(strings.ToLower(c))
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
