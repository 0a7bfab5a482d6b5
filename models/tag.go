package models

// Tag is a rule-based classifier as stored by the segmentation backend.
// Rule fields are nullable because older records omit them.
type Tag struct {
	ID         int64      `json:"id"`
	Name       string     `json:"name"`
	Color      *string    `json:"color"`
	Active     Value      `json:"active"`
	Persistent Value      `json:"persistent"`
	Groups     []TagGroup `json:"groups"`
	CreatedAt  string     `json:"createdAt,omitempty"`
	UpdatedAt  string     `json:"updatedAt,omitempty"`
}

// TagGroup is a stored group of rules
type TagGroup struct {
	ID        *int64    `json:"id,omitempty"`
	Connector *string   `json:"connector"`
	Sort      int       `json:"sort"`
	Rules     []TagRule `json:"rules"`
}

// TagRule is a stored rule. Absent fields stay nil so editors can apply their own defaults.
type TagRule struct {
	ID          *int64  `json:"id,omitempty"`
	Connector   *string `json:"connector"`
	Event       *string `json:"event"`
	Aggregation *string `json:"aggregation"`
	Metric      *string `json:"metric"`
	Operator    *string `json:"operator"`
	ValueFrom   Value   `json:"valueFrom"`
	ValueTo     Value   `json:"valueTo"`
	PeriodValue Value   `json:"periodValue"`
	PeriodUnit  *string `json:"periodUnit"`
	Sort        int     `json:"sort"`
}

// TagRef is the denormalized tag metadata attached to users and history events
type TagRef struct {
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	Color       *string `json:"color"`
	Description *string `json:"description,omitempty"`
	Persistent  *bool   `json:"persistent,omitempty"`
}
