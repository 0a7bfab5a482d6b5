package businessflow

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/amirphl/segment-backoffice/app/dto"
	"github.com/amirphl/segment-backoffice/app/services"
	"github.com/amirphl/segment-backoffice/config"
	"github.com/amirphl/segment-backoffice/models"
	"github.com/amirphl/segment-backoffice/repository"
	"github.com/amirphl/segment-backoffice/rules"
	"github.com/amirphl/segment-backoffice/utils"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// TagFlow covers tag listing, authoring and builder drafts
type TagFlow interface {
	ListTags(ctx context.Context, activeOnly bool) (*dto.ListTagsResponse, error)
	Template(ctx context.Context) *dto.TagStateResponse
	EditState(ctx context.Context, tagID int64) (*dto.TagStateResponse, error)
	Preview(ctx context.Context, state rules.TagState) *dto.PreviewTagResponse
	Validate(ctx context.Context, payload *rules.Payload) rules.Result
	CreateTag(ctx context.Context, state rules.TagState) (*dto.TagWriteResponse, error)
	UpdateTag(ctx context.Context, req *dto.UpdateTagRequest) (*dto.TagWriteResponse, error)
	DeleteTag(ctx context.Context, req *dto.DeleteTagRequest) (*dto.DeleteTagResponse, error)

	CreateDraft(ctx context.Context, req *dto.CreateDraftRequest) (*dto.DraftResponse, error)
	GetDraft(ctx context.Context, key string) (*dto.DraftResponse, error)
	ApplyDraftOp(ctx context.Context, key string, req *dto.DraftOpRequest) (*dto.DraftOpResponse, error)
	DeleteDraft(ctx context.Context, key string) error
}

type TagFlowImpl struct {
	client   services.BackofficeClient
	builder  rules.Builder
	cache    jsonCache
	drafts   draftStore
	audit    auditRecorder
	cacheCfg config.CacheConfig
	draftCfg config.DraftConfig
	prefix   string
	now      func() time.Time
}

func NewTagFlow(
	client services.BackofficeClient,
	rc *redis.Client,
	auditRepo repository.AuditLogRepository,
	cfg *config.ProductionConfig,
) TagFlow {
	return &TagFlowImpl{
		client:   client,
		builder:  rules.NewBuilder(),
		cache:    jsonCache{rc: rc},
		drafts:   newDraftStore(rc, cfg.Cache, utils.UTCNow),
		audit:    auditRecorder{repo: auditRepo},
		cacheCfg: cfg.Cache,
		draftCfg: cfg.Drafts,
		prefix:   cfg.Upstream.Prefix,
		now:      utils.UTCNow,
	}
}

func (f *TagFlowImpl) tagListKey(session Session, activeOnly bool) string {
	scope := "all"
	if activeOnly {
		scope = "active"
	}
	return redisKey(f.cacheCfg, utils.TagListCacheKey, f.prefix, session.Fingerprint(), scope)
}

// ListTags returns the stored tags, from the per-token cache when possible
func (f *TagFlowImpl) ListTags(ctx context.Context, activeOnly bool) (*dto.ListTagsResponse, error) {
	session := SessionFromContext(ctx)
	key := f.tagListKey(session, activeOnly)

	var tags []models.Tag
	if f.cache.enabled() {
		hit := f.cache.get(ctx, key, &tags)
		observeCache("tags", hit)
		if hit {
			return &dto.ListTagsResponse{Tags: tags, Enums: models.AllRuleEnums(), Cached: true}, nil
		}
	}

	tags, err := f.client.ListTags(ctx, session.AccessToken, activeOnly)
	if err != nil {
		return nil, upstreamError("TAG_LIST_FAILED", "Failed to list tags", err)
	}
	f.cache.set(ctx, key, tags, f.cacheCfg.TagListTTL)

	return &dto.ListTagsResponse{Tags: tags, Enums: models.AllRuleEnums()}, nil
}

func (f *TagFlowImpl) Template(ctx context.Context) *dto.TagStateResponse {
	return &dto.TagStateResponse{State: f.builder.NewTagState()}
}

// EditState rehydrates a stored tag into builder shape. The list is always
// read from the backend so an edit never starts from a stale cache entry.
func (f *TagFlowImpl) EditState(ctx context.Context, tagID int64) (*dto.TagStateResponse, error) {
	state, err := f.loadTagState(ctx, tagID)
	if err != nil {
		return nil, err
	}
	return &dto.TagStateResponse{State: state}, nil
}

func (f *TagFlowImpl) loadTagState(ctx context.Context, tagID int64) (rules.TagState, error) {
	session := SessionFromContext(ctx)
	tags, err := f.client.ListTags(ctx, session.AccessToken, false)
	if err != nil {
		return rules.TagState{}, upstreamError("TAG_LIST_FAILED", "Failed to list tags", err)
	}
	for _, t := range tags {
		if t.ID == tagID {
			return f.builder.FromTag(t), nil
		}
	}
	return rules.TagState{}, NewBusinessErrorf("TAG_NOT_FOUND", "Tag %d not found", ErrTagNotFound, tagID)
}

func (f *TagFlowImpl) Preview(ctx context.Context, state rules.TagState) *dto.PreviewTagResponse {
	payload := rules.BuildPayload(state)
	result := rules.ValidatePayload(&payload)
	observeValidation("preview", result.OK)
	return &dto.PreviewTagResponse{Payload: payload, Validation: result}
}

func (f *TagFlowImpl) Validate(ctx context.Context, payload *rules.Payload) rules.Result {
	result := rules.ValidatePayload(payload)
	observeValidation("validate", result.OK)
	return result
}

// buildValid turns a builder state into a payload, refusing invalid ones
func (f *TagFlowImpl) buildValid(source string, state rules.TagState) (rules.Payload, error) {
	payload := rules.BuildPayload(state)
	result := rules.ValidatePayload(&payload)
	observeValidation(source, result.OK)
	if !result.OK {
		return payload, NewBusinessError("TAG_VALIDATION_FAILED", "Tag validation failed", ErrTagValidationFailed).WithDetails(result.Errors)
	}
	return payload, nil
}

func (f *TagFlowImpl) CreateTag(ctx context.Context, state rules.TagState) (*dto.TagWriteResponse, error) {
	payload, err := f.buildValid("create", state)
	if err != nil {
		return nil, err
	}

	session := SessionFromContext(ctx)
	tag, err := f.client.CreateTag(ctx, session.AccessToken, payload)
	var targets []int64
	if tag != nil {
		targets = []int64{tag.ID}
	}
	f.audit.record(ctx, models.AuditActionTagCreated, targets, fmt.Sprintf("create tag %q", payload.Name), err, payload)
	if err != nil {
		return nil, upstreamError("TAG_CREATE_FAILED", "Failed to create tag", err)
	}

	f.invalidateTags(ctx)
	return &dto.TagWriteResponse{Tag: tag, Payload: payload}, nil
}

func (f *TagFlowImpl) UpdateTag(ctx context.Context, req *dto.UpdateTagRequest) (*dto.TagWriteResponse, error) {
	payload, err := f.buildValid("update", req.State)
	if err != nil {
		return nil, err
	}

	session := SessionFromContext(ctx)
	tag, err := f.client.UpdateTag(ctx, session.AccessToken, req.ID, payload)
	f.audit.record(ctx, models.AuditActionTagUpdated, []int64{req.ID}, fmt.Sprintf("update tag %d", req.ID), err, payload)
	if err != nil {
		return nil, f.tagWriteError(req.ID, "TAG_UPDATE_FAILED", "Failed to update tag", err)
	}

	f.invalidateTags(ctx)
	return &dto.TagWriteResponse{Tag: tag, Payload: payload}, nil
}

func (f *TagFlowImpl) DeleteTag(ctx context.Context, req *dto.DeleteTagRequest) (*dto.DeleteTagResponse, error) {
	session := SessionFromContext(ctx)
	err := f.client.DeleteTag(ctx, session.AccessToken, req.ID)
	f.audit.record(ctx, models.AuditActionTagDeleted, []int64{req.ID}, fmt.Sprintf("delete tag %d", req.ID), err, nil)
	if err != nil {
		return nil, f.tagWriteError(req.ID, "TAG_DELETE_FAILED", "Failed to delete tag", err)
	}

	f.invalidateTags(ctx)
	return &dto.DeleteTagResponse{ID: req.ID}, nil
}

func (f *TagFlowImpl) tagWriteError(id int64, code, message string, err error) error {
	if UpstreamStatus(err) == http.StatusNotFound {
		return NewBusinessErrorf("TAG_NOT_FOUND", "Tag %d not found", fmt.Errorf("%w: %w", ErrTagNotFound, err), id)
	}
	return upstreamError(code, message, err)
}

func (f *TagFlowImpl) invalidateTags(ctx context.Context) {
	f.cache.invalidate(ctx, redisKey(f.cacheCfg, utils.TagListCachePattern, f.prefix))
}

// CreateDraft starts a builder session, from the template or from a stored tag
func (f *TagFlowImpl) CreateDraft(ctx context.Context, req *dto.CreateDraftRequest) (*dto.DraftResponse, error) {
	state := f.builder.NewTagState()
	if req != nil && req.TagID != nil {
		loaded, err := f.loadTagState(ctx, *req.TagID)
		if err != nil {
			return nil, err
		}
		state = loaded
	}

	key := uuid.NewString()
	return f.saveDraft(ctx, key, state)
}

func (f *TagFlowImpl) GetDraft(ctx context.Context, key string) (*dto.DraftResponse, error) {
	rec, err := f.drafts.load(ctx, key)
	if err != nil {
		return nil, draftError(err)
	}
	return toDraftResponse(key, rec), nil
}

func (f *TagFlowImpl) DeleteDraft(ctx context.Context, key string) error {
	if err := f.drafts.delete(ctx, key); err != nil {
		return draftError(err)
	}
	return nil
}

// ApplyDraftOp runs one builder operation against a stored draft and saves
// the result, refreshing its expiry
func (f *TagFlowImpl) ApplyDraftOp(ctx context.Context, key string, req *dto.DraftOpRequest) (*dto.DraftOpResponse, error) {
	rec, err := f.drafts.load(ctx, key)
	if err != nil {
		return nil, draftError(err)
	}

	state, err := f.applyOp(rec.State, req)
	if err != nil {
		return nil, err
	}

	draft, err := f.saveDraft(ctx, key, state)
	if err != nil {
		return nil, err
	}

	payload := rules.BuildPayload(state)
	result := rules.ValidatePayload(&payload)
	observeValidation("draft", result.OK)
	return &dto.DraftOpResponse{Draft: *draft, Validation: result}, nil
}

func (f *TagFlowImpl) applyOp(s rules.TagState, req *dto.DraftOpRequest) (rules.TagState, error) {
	var (
		out rules.TagState
		err error
	)
	switch req.Op {
	case dto.DraftOpAddGroup:
		if f.draftCfg.MaxGroups > 0 && len(s.Groups) >= f.draftCfg.MaxGroups {
			return s, NewBusinessErrorf("DRAFT_LIMIT_EXCEEDED", "A tag can have at most %d groups", ErrDraftLimitExceeded, f.draftCfg.MaxGroups)
		}
		if err := f.checkRuleLimit(s); err != nil {
			return s, err
		}
		out = f.builder.AddGroup(s)
	case dto.DraftOpRemoveGroup:
		out, err = f.builder.RemoveGroup(s, req.GroupKey)
	case dto.DraftOpUpdateGroup:
		var patch rules.GroupPatch
		if req.Group != nil {
			patch = *req.Group
		}
		out, err = f.builder.UpdateGroup(s, req.GroupKey, patch)
	case dto.DraftOpAddRule:
		if err := f.checkRuleLimit(s); err != nil {
			return s, err
		}
		out, err = f.builder.AddRule(s, req.GroupKey)
	case dto.DraftOpRemoveRule:
		out, err = f.builder.RemoveRule(s, req.GroupKey, req.RuleKey)
	case dto.DraftOpUpdateRule:
		var patch rules.RulePatch
		if req.Rule != nil {
			patch = *req.Rule
		}
		out, err = f.builder.UpdateRule(s, req.GroupKey, req.RuleKey, patch)
	case dto.DraftOpUpdateTag:
		out = applyTagFields(s, req.Tag)
	default:
		return s, NewBusinessErrorf("DRAFT_UNKNOWN_OP", "Unknown draft operation %q", ErrUnknownDraftOp, req.Op)
	}

	switch {
	case IsGroupNotFound(err):
		return s, NewBusinessErrorf("DRAFT_GROUP_NOT_FOUND", "Group %q not found in draft", err, req.GroupKey)
	case IsRuleNotFound(err):
		return s, NewBusinessErrorf("DRAFT_RULE_NOT_FOUND", "Rule %q not found in group %q", err, req.RuleKey, req.GroupKey)
	case err != nil:
		return s, NewBusinessError("DRAFT_OP_FAILED", "Draft operation failed", err)
	}
	return out, nil
}

func (f *TagFlowImpl) checkRuleLimit(s rules.TagState) error {
	if f.draftCfg.MaxRules > 0 && s.RuleCount() >= f.draftCfg.MaxRules {
		return NewBusinessErrorf("DRAFT_LIMIT_EXCEEDED", "A tag can have at most %d rules", ErrDraftLimitExceeded, f.draftCfg.MaxRules)
	}
	return nil
}

func applyTagFields(s rules.TagState, patch *dto.TagFieldsPatch) rules.TagState {
	out := s.Clone()
	if patch == nil {
		return out
	}
	if patch.Name != nil {
		out.Name = *patch.Name
	}
	if patch.Color != nil {
		out.Color = strings.TrimSpace(*patch.Color)
	}
	if patch.Active != nil {
		out.Active = *patch.Active
	}
	if patch.Persistent != nil {
		out.Persistent = *patch.Persistent
	}
	return out
}

func (f *TagFlowImpl) saveDraft(ctx context.Context, key string, state rules.TagState) (*dto.DraftResponse, error) {
	rec := draftRecord{State: state, ExpiresAt: f.now().Add(f.draftCfg.TTL)}
	if err := f.drafts.save(ctx, key, rec, f.draftCfg.TTL); err != nil {
		return nil, NewBusinessError("DRAFT_SAVE_FAILED", "Failed to save draft", err)
	}
	return toDraftResponse(key, rec), nil
}

func draftError(err error) error {
	if IsDraftNotFound(err) {
		return NewBusinessError("DRAFT_NOT_FOUND", "Draft not found or expired", err)
	}
	return NewBusinessError("DRAFT_STORE_FAILED", "Draft storage failed", err)
}

func toDraftResponse(key string, rec draftRecord) *dto.DraftResponse {
	return &dto.DraftResponse{
		Key:       key,
		State:     rec.State,
		ExpiresAt: rec.ExpiresAt.UTC().Format(time.RFC3339),
	}
}
