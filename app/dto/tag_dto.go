package dto

import (
	"github.com/amirphl/segment-backoffice/models"
	"github.com/amirphl/segment-backoffice/rules"
)

// ListTagsResponse carries the stored tags plus the enum catalogue editors need
type ListTagsResponse struct {
	Tags   []models.Tag     `json:"tags"`
	Enums  models.RuleEnums `json:"enums"`
	Cached bool             `json:"cached"`
}

// TagStateResponse wraps a builder state ready for editing
type TagStateResponse struct {
	State rules.TagState `json:"state"`
}

// PreviewTagResponse shows what would be sent for a builder state
type PreviewTagResponse struct {
	Payload    rules.Payload `json:"payload"`
	Validation rules.Result  `json:"validation"`
}

// UpdateTagRequest replaces the tag with the given id by the built state
type UpdateTagRequest struct {
	ID    int64          `json:"id" validate:"required,gt=0"`
	State rules.TagState `json:"state"`
}

type DeleteTagRequest struct {
	ID int64 `json:"id" validate:"required,gt=0"`
}

// TagWriteResponse echoes the payload that was forwarded and the tag the backend returned, if any
type TagWriteResponse struct {
	Tag     *models.Tag   `json:"tag,omitempty"`
	Payload rules.Payload `json:"payload"`
}

type DeleteTagResponse struct {
	ID int64 `json:"id"`
}

// CreateDraftRequest starts a builder session from the template or from an existing tag
type CreateDraftRequest struct {
	TagID *int64 `json:"tagId,omitempty" validate:"omitempty,gt=0"`
}

// DraftResponse is a stored builder session
type DraftResponse struct {
	Key       string         `json:"key"`
	State     rules.TagState `json:"state"`
	ExpiresAt string         `json:"expiresAt"`
}

// Draft operations
const (
	DraftOpAddGroup    = "add_group"
	DraftOpRemoveGroup = "remove_group"
	DraftOpUpdateGroup = "update_group"
	DraftOpAddRule     = "add_rule"
	DraftOpRemoveRule  = "remove_rule"
	DraftOpUpdateRule  = "update_rule"
	DraftOpUpdateTag   = "update_tag"
)

// DraftOpRequest applies one builder operation to a draft
type DraftOpRequest struct {
	Op       string            `json:"op" validate:"required,oneof=add_group remove_group update_group add_rule remove_rule update_rule update_tag"`
	GroupKey string            `json:"groupKey,omitempty"`
	RuleKey  string            `json:"ruleKey,omitempty"`
	Group    *rules.GroupPatch `json:"group,omitempty"`
	Rule     *rules.RulePatch  `json:"rule,omitempty"`
	Tag      *TagFieldsPatch   `json:"tag,omitempty"`
}

// TagFieldsPatch edits the tag-level fields of a draft
type TagFieldsPatch struct {
	Name       *string       `json:"name,omitempty" validate:"omitempty,max=255"`
	Color      *string       `json:"color,omitempty" validate:"omitempty,max=32"`
	Active     *models.Value `json:"active,omitempty"`
	Persistent *models.Value `json:"persistent,omitempty"`
}

// DraftOpResponse returns the draft after the operation with its current validation
type DraftOpResponse struct {
	Draft      DraftResponse `json:"draft"`
	Validation rules.Result  `json:"validation"`
}
