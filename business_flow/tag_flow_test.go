package businessflow

import (
	"context"
	"testing"
	"time"

	"github.com/amirphl/segment-backoffice/app/dto"
	"github.com/amirphl/segment-backoffice/app/services"
	"github.com/amirphl/segment-backoffice/models"
	"github.com/amirphl/segment-backoffice/rules"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validState() rules.TagState {
	s := rules.NewBuilder().NewTagState()
	s.Name = "VIP"
	s.Groups[0].Rules[0].ValueFrom = models.StringValue("100")
	return s
}

func TestTagFlowListTagsCachesPerToken(t *testing.T) {
	_, rc := newTestRedis(t)
	client := newFakeBackoffice()
	client.tags = []models.Tag{{ID: 1, Name: "VIP"}}
	flow := NewTagFlow(client, rc, nil, testConfig())

	first, err := flow.ListTags(sessionContext("a"), false)
	require.NoError(t, err)
	assert.False(t, first.Cached)
	require.Len(t, first.Tags, 1)
	assert.NotEmpty(t, first.Enums.Events)

	second, err := flow.ListTags(sessionContext("a"), false)
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, first.Tags, second.Tags)
	assert.Equal(t, 1, client.count("ListTags"))

	_, err = flow.ListTags(sessionContext("a"), true)
	require.NoError(t, err)
	_, err = flow.ListTags(sessionContext("b"), false)
	require.NoError(t, err)
	assert.Equal(t, 3, client.count("ListTags"), "scope and token are part of the key")
}

func TestTagFlowListTagsWithoutRedis(t *testing.T) {
	client := newFakeBackoffice()
	flow := NewTagFlow(client, nil, nil, testConfig())

	for range 2 {
		res, err := flow.ListTags(sessionContext("a"), false)
		require.NoError(t, err)
		assert.False(t, res.Cached)
	}
	assert.Equal(t, 2, client.count("ListTags"))
}

func TestTagFlowUpstreamErrors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		code   string
		detail any
	}{
		{"unauthorized", &services.UpstreamError{Status: 401, Message: "Unauthorized"}, "UPSTREAM_UNAUTHORIZED", nil},
		{"backend failure", &services.UpstreamError{Status: 500, Message: "boom"}, "TAG_LIST_FAILED", "boom"},
		{"transport", context.DeadlineExceeded, "TAG_LIST_FAILED", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newFakeBackoffice()
			client.err = tt.err
			flow := NewTagFlow(client, nil, nil, testConfig())

			_, err := flow.ListTags(sessionContext("a"), false)
			be := requireCode(t, err, tt.code)
			assert.Equal(t, tt.detail, be.Details)
			if tt.code == "TAG_LIST_FAILED" {
				assert.True(t, IsUpstreamFailed(err))
			} else {
				assert.True(t, IsUpstreamUnauthorized(err))
			}
		})
	}
}

func TestTagFlowEditState(t *testing.T) {
	client := newFakeBackoffice()
	client.tags = []models.Tag{{ID: 7, Name: "Whales", Active: models.IntValue(1)}}
	flow := NewTagFlow(client, nil, nil, testConfig())

	res, err := flow.EditState(sessionContext("a"), 7)
	require.NoError(t, err)
	require.NotNil(t, res.State.ID)
	assert.Equal(t, int64(7), *res.State.ID)
	assert.Equal(t, "Whales", res.State.Name)
	assert.Len(t, res.State.Groups, 1, "empty group list falls back to the template group")

	_, err = flow.EditState(sessionContext("a"), 8)
	requireCode(t, err, "TAG_NOT_FOUND")
	assert.True(t, IsTagNotFound(err))
}

func TestTagFlowPreviewAndValidate(t *testing.T) {
	flow := NewTagFlow(newFakeBackoffice(), nil, nil, testConfig())

	tmpl := flow.Template(context.Background())
	preview := flow.Preview(context.Background(), tmpl.State)
	assert.False(t, preview.Validation.OK)
	assert.Contains(t, preview.Validation.Errors, "name is required")
	assert.Contains(t, preview.Validation.Errors, "rule[0][0].valueFrom is required")

	preview = flow.Preview(context.Background(), validState())
	assert.True(t, preview.Validation.OK)
	assert.Equal(t, "VIP", preview.Payload.Name)

	res := flow.Validate(context.Background(), &preview.Payload)
	assert.True(t, res.OK)
	assert.Empty(t, res.Errors)
}

func TestTagFlowCreateTag(t *testing.T) {
	t.Run("invalid state is not forwarded", func(t *testing.T) {
		client := newFakeBackoffice()
		flow := NewTagFlow(client, nil, nil, testConfig())

		_, err := flow.CreateTag(sessionContext("a"), rules.NewBuilder().NewTagState())
		be := requireCode(t, err, "TAG_VALIDATION_FAILED")
		assert.True(t, IsTagValidationFailed(err))
		errs, ok := be.Details.([]string)
		require.True(t, ok)
		assert.Contains(t, errs, "name is required")
		assert.Zero(t, client.count("CreateTag"))
	})

	t.Run("valid state invalidates the tag cache and is audited", func(t *testing.T) {
		_, rc := newTestRedis(t)
		client := newFakeBackoffice()
		audit := &fakeAuditRepo{}
		flow := NewTagFlow(client, rc, audit, testConfig())
		ctx := sessionContext("a")

		_, err := flow.ListTags(ctx, false)
		require.NoError(t, err)

		res, err := flow.CreateTag(ctx, validState())
		require.NoError(t, err)
		require.NotNil(t, res.Tag)
		assert.Equal(t, int64(99), res.Tag.ID)
		require.Len(t, client.created, 1)
		assert.Equal(t, "VIP", client.created[0].Name)

		again, err := flow.ListTags(ctx, false)
		require.NoError(t, err)
		assert.False(t, again.Cached)
		assert.Equal(t, 2, client.count("ListTags"))

		entries := audit.all()
		require.Len(t, entries, 1)
		assert.Equal(t, models.AuditActionTagCreated, entries[0].Action)
		assert.Equal(t, "operator-1", entries[0].Operator)
		assert.Equal(t, "fp-a", entries[0].TokenFingerprint)
		assert.Equal(t, []int64{99}, []int64(entries[0].TargetIDs))
		assert.False(t, entries[0].IsFailed())
	})
}

func TestTagFlowUpdateAndDelete(t *testing.T) {
	t.Run("update forwards id", func(t *testing.T) {
		client := newFakeBackoffice()
		flow := NewTagFlow(client, nil, nil, testConfig())

		res, err := flow.UpdateTag(sessionContext("a"), &dto.UpdateTagRequest{ID: 5, State: validState()})
		require.NoError(t, err)
		assert.Equal(t, int64(5), client.updatedID)
		assert.Equal(t, int64(5), res.Tag.ID)
	})

	t.Run("backend 404 becomes tag not found", func(t *testing.T) {
		client := newFakeBackoffice()
		client.err = &services.UpstreamError{Status: 404, Message: "Tag not found"}
		audit := &fakeAuditRepo{}
		flow := NewTagFlow(client, nil, audit, testConfig())

		_, err := flow.UpdateTag(sessionContext("a"), &dto.UpdateTagRequest{ID: 5, State: validState()})
		requireCode(t, err, "TAG_NOT_FOUND")
		_, err = flow.DeleteTag(sessionContext("a"), &dto.DeleteTagRequest{ID: 5})
		requireCode(t, err, "TAG_NOT_FOUND")
		assert.Equal(t, 404, UpstreamStatus(err))

		entries := audit.all()
		require.Len(t, entries, 2)
		assert.True(t, entries[1].IsFailed())
		require.NotNil(t, entries[1].ErrorMessage)
		assert.Equal(t, "Tag not found", *entries[1].ErrorMessage)
		assert.True(t, entries[1].IsDestructive())
	})

	t.Run("delete", func(t *testing.T) {
		client := newFakeBackoffice()
		flow := NewTagFlow(client, nil, nil, testConfig())

		res, err := flow.DeleteTag(sessionContext("a"), &dto.DeleteTagRequest{ID: 3})
		require.NoError(t, err)
		assert.Equal(t, int64(3), res.ID)
		assert.Equal(t, int64(3), client.deletedID)
	})
}

func TestTagFlowDrafts(t *testing.T) {
	_, rc := newTestRedis(t)
	for name, flow := range map[string]TagFlow{
		"redis":  NewTagFlow(newFakeBackoffice(), rc, nil, testConfig()),
		"memory": NewTagFlow(newFakeBackoffice(), nil, nil, testConfig()),
	} {
		t.Run(name, func(t *testing.T) {
			ctx := sessionContext("a")

			draft, err := flow.CreateDraft(ctx, &dto.CreateDraftRequest{})
			require.NoError(t, err)
			require.NotEmpty(t, draft.Key)
			require.Len(t, draft.State.Groups, 1)
			groupKey := draft.State.Groups[0].Key

			res, err := flow.ApplyDraftOp(ctx, draft.Key, &dto.DraftOpRequest{
				Op:  dto.DraftOpUpdateTag,
				Tag: &dto.TagFieldsPatch{Name: ptr("High rollers"), Color: ptr(" #ff0000 ")},
			})
			require.NoError(t, err)
			assert.Equal(t, "High rollers", res.Draft.State.Name)
			assert.Equal(t, "#ff0000", res.Draft.State.Color)
			assert.False(t, res.Validation.OK, "valueFrom is still blank")

			res, err = flow.ApplyDraftOp(ctx, draft.Key, &dto.DraftOpRequest{
				Op:       dto.DraftOpUpdateRule,
				GroupKey: groupKey,
				RuleKey:  draft.State.Groups[0].Rules[0].Key,
				Rule:     &rules.RulePatch{ValueFrom: rules.Some(models.StringValue("250"))},
			})
			require.NoError(t, err)
			assert.True(t, res.Validation.OK, res.Validation.Errors)

			res, err = flow.ApplyDraftOp(ctx, draft.Key, &dto.DraftOpRequest{Op: dto.DraftOpAddRule, GroupKey: groupKey})
			require.NoError(t, err)
			assert.Len(t, res.Draft.State.Groups[0].Rules, 2)

			stored, err := flow.GetDraft(ctx, draft.Key)
			require.NoError(t, err)
			assert.Equal(t, res.Draft.State, stored.State)

			_, err = flow.ApplyDraftOp(ctx, draft.Key, &dto.DraftOpRequest{Op: dto.DraftOpRemoveGroup, GroupKey: "missing"})
			requireCode(t, err, "DRAFT_GROUP_NOT_FOUND")
			_, err = flow.ApplyDraftOp(ctx, draft.Key, &dto.DraftOpRequest{Op: dto.DraftOpRemoveRule, GroupKey: groupKey, RuleKey: "missing"})
			requireCode(t, err, "DRAFT_RULE_NOT_FOUND")
			_, err = flow.ApplyDraftOp(ctx, draft.Key, &dto.DraftOpRequest{Op: "explode"})
			requireCode(t, err, "DRAFT_UNKNOWN_OP")

			require.NoError(t, flow.DeleteDraft(ctx, draft.Key))
			_, err = flow.GetDraft(ctx, draft.Key)
			requireCode(t, err, "DRAFT_NOT_FOUND")
			err = flow.DeleteDraft(ctx, draft.Key)
			requireCode(t, err, "DRAFT_NOT_FOUND")
		})
	}
}

func TestTagFlowDraftLimits(t *testing.T) {
	flow := NewTagFlow(newFakeBackoffice(), nil, nil, testConfig())
	ctx := sessionContext("a")

	draft, err := flow.CreateDraft(ctx, nil)
	require.NoError(t, err)

	for range 2 {
		_, err = flow.ApplyDraftOp(ctx, draft.Key, &dto.DraftOpRequest{Op: dto.DraftOpAddGroup})
		require.NoError(t, err)
	}
	_, err = flow.ApplyDraftOp(ctx, draft.Key, &dto.DraftOpRequest{Op: dto.DraftOpAddGroup})
	requireCode(t, err, "DRAFT_LIMIT_EXCEEDED")
	assert.True(t, IsDraftLimitExceeded(err))

	current, err := flow.GetDraft(ctx, draft.Key)
	require.NoError(t, err)
	groupKey := current.State.Groups[0].Key

	_, err = flow.ApplyDraftOp(ctx, draft.Key, &dto.DraftOpRequest{Op: dto.DraftOpAddRule, GroupKey: groupKey})
	require.NoError(t, err)
	_, err = flow.ApplyDraftOp(ctx, draft.Key, &dto.DraftOpRequest{Op: dto.DraftOpAddRule, GroupKey: groupKey})
	requireCode(t, err, "DRAFT_LIMIT_EXCEEDED")
}

func TestTagFlowDraftFromStoredTag(t *testing.T) {
	client := newFakeBackoffice()
	client.tags = []models.Tag{{ID: 4, Name: "Churned"}}
	flow := NewTagFlow(client, nil, nil, testConfig())

	draft, err := flow.CreateDraft(sessionContext("a"), &dto.CreateDraftRequest{TagID: ptr(int64(4))})
	require.NoError(t, err)
	assert.Equal(t, "Churned", draft.State.Name)

	_, err = flow.CreateDraft(sessionContext("a"), &dto.CreateDraftRequest{TagID: ptr(int64(5))})
	requireCode(t, err, "TAG_NOT_FOUND")
}

func TestRedisDraftExpiry(t *testing.T) {
	mr, rc := newTestRedis(t)
	flow := NewTagFlow(newFakeBackoffice(), rc, nil, testConfig())
	ctx := sessionContext("a")

	draft, err := flow.CreateDraft(ctx, nil)
	require.NoError(t, err)
	assert.True(t, mr.Exists("test:tags:draft:"+draft.Key))

	mr.FastForward(2 * time.Hour)
	_, err = flow.GetDraft(ctx, draft.Key)
	requireCode(t, err, "DRAFT_NOT_FOUND")
}

func TestMemoryDraftExpiry(t *testing.T) {
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	store := &memoryDraftStore{items: make(map[string]draftRecord), now: func() time.Time { return now }}
	ctx := context.Background()

	require.NoError(t, store.save(ctx, "k", draftRecord{ExpiresAt: now.Add(time.Minute)}, time.Minute))
	_, err := store.load(ctx, "k")
	require.NoError(t, err)

	now = now.Add(2 * time.Minute)
	_, err = store.load(ctx, "k")
	assert.ErrorIs(t, err, ErrDraftNotFound)
}
