package businessflow

import (
	"context"
	"errors"
	"testing"

	"github.com/amirphl/segment-backoffice/app/dto"
	"github.com/amirphl/segment-backoffice/models"
	"github.com/amirphl/segment-backoffice/utils"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuditFlowList(t *testing.T) {
	repo := &fakeAuditRepo{}
	ctx := context.Background()
	failed := false
	require.NoError(t, repo.Save(ctx, &models.AuditLog{Operator: "op", Action: models.AuditActionTagCreated, TargetIDs: pq.Int64Array{1}}))
	require.NoError(t, repo.Save(ctx, &models.AuditLog{Operator: "op", Action: models.AuditActionTagDeleted, TargetIDs: pq.Int64Array{1}, Success: &failed}))
	require.NoError(t, repo.Save(ctx, &models.AuditLog{Operator: "op", Action: models.AuditActionTagDeleted, TargetIDs: pq.Int64Array{2}}))

	flow := NewAuditFlow(repo)

	t.Run("all", func(t *testing.T) {
		res, err := flow.List(ctx, &dto.ListAuditQuery{})
		require.NoError(t, err)
		assert.Equal(t, int64(3), res.Count)
		assert.Equal(t, defaultAuditPageSize, res.Limit)
		require.Len(t, res.Items, 3)
		assert.Equal(t, uint(3), res.Items[0].ID, "newest first")
		assert.Equal(t, "2024-05-01T10:00:00Z", res.Items[0].CreatedAt)
	})

	t.Run("by action and target", func(t *testing.T) {
		res, err := flow.List(ctx, &dto.ListAuditQuery{Action: models.AuditActionTagDeleted, TargetID: 1})
		require.NoError(t, err)
		require.Len(t, res.Items, 1)
		assert.False(t, res.Items[0].Success)
		assert.Equal(t, []int64{1}, res.Items[0].TargetIDs)
	})

	t.Run("repository failure", func(t *testing.T) {
		broken := NewAuditFlow(&fakeAuditRepo{err: errors.New("db down")})
		_, err := broken.List(ctx, &dto.ListAuditQuery{})
		requireCode(t, err, "AUDIT_LIST_FAILED")
	})
}

func TestAuditFlowListQuerySelection(t *testing.T) {
	ctx := context.Background()
	failed := false

	tests := []struct {
		name      string
		query     dto.ListAuditQuery
		wantQuery []string
		wantIDs   []uint
	}{
		{name: "action only", query: dto.ListAuditQuery{Action: models.AuditActionTagDeleted}, wantQuery: []string{"action"}, wantIDs: []uint{3, 2}},
		{name: "target only", query: dto.ListAuditQuery{TargetID: 2}, wantQuery: []string{"target"}, wantIDs: []uint{3}},
		{name: "failed only", query: dto.ListAuditQuery{Failed: true}, wantQuery: []string{"failed"}, wantIDs: []uint{2}},
		{name: "combined filters", query: dto.ListAuditQuery{Action: models.AuditActionTagDeleted, Failed: true}, wantIDs: []uint{2}},
		{name: "no filter", query: dto.ListAuditQuery{}, wantIDs: []uint{3, 2, 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &fakeAuditRepo{}
			require.NoError(t, repo.Save(ctx, &models.AuditLog{Operator: "op", Action: models.AuditActionTagCreated, TargetIDs: pq.Int64Array{1}}))
			require.NoError(t, repo.Save(ctx, &models.AuditLog{Operator: "op", Action: models.AuditActionTagDeleted, TargetIDs: pq.Int64Array{1}, Success: &failed}))
			require.NoError(t, repo.Save(ctx, &models.AuditLog{Operator: "op", Action: models.AuditActionTagDeleted, TargetIDs: pq.Int64Array{2}}))

			res, err := NewAuditFlow(repo).List(ctx, &tt.query)
			require.NoError(t, err)
			assert.Equal(t, tt.wantQuery, repo.queries)
			assert.Equal(t, int64(len(tt.wantIDs)), res.Count)

			ids := make([]uint, 0, len(res.Items))
			for _, it := range res.Items {
				ids = append(ids, it.ID)
			}
			assert.Equal(t, tt.wantIDs, ids)
		})
	}
}

func TestAuditFlowGet(t *testing.T) {
	ctx := context.Background()
	repo := &fakeAuditRepo{}
	require.NoError(t, repo.Save(ctx, &models.AuditLog{Operator: "op", Action: models.AuditActionSegmentsSetup, TargetIDs: pq.Int64Array{4, 5}}))
	flow := NewAuditFlow(repo)

	item, err := flow.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, models.AuditActionSegmentsSetup, item.Action)
	assert.Equal(t, []int64{4, 5}, item.TargetIDs)

	_, err = flow.Get(ctx, 99)
	requireCode(t, err, "AUDIT_ENTRY_NOT_FOUND")
	assert.True(t, IsAuditEntryNotFound(err))

	_, err = NewAuditFlow(&fakeAuditRepo{err: errors.New("db down")}).Get(ctx, 1)
	requireCode(t, err, "AUDIT_GET_FAILED")

	_, err = NewAuditFlow(nil).Get(ctx, 1)
	assert.True(t, IsAuditNotAvailable(err))
}

func TestAuditFlowWithoutDatabase(t *testing.T) {
	_, err := NewAuditFlow(nil).List(context.Background(), &dto.ListAuditQuery{})
	requireCode(t, err, "AUDIT_NOT_AVAILABLE")
	assert.True(t, IsAuditNotAvailable(err))
}

func TestAuditRecorderKeepsRequestMetadata(t *testing.T) {
	repo := &fakeAuditRepo{}
	ctx := sessionContext("tok")
	ctx = context.WithValue(ctx, utils.IPAddressKey, "10.0.0.1")

	auditRecorder{repo: repo}.record(ctx, models.AuditActionTagDeleted, []int64{3}, "delete tag 3", errors.New("boom"), nil)

	entries := repo.all()
	require.Len(t, entries, 1)
	assert.Equal(t, "operator-1", entries[0].Operator)
	require.NotNil(t, entries[0].IPAddress)
	assert.Equal(t, "10.0.0.1", *entries[0].IPAddress)
	assert.True(t, entries[0].IsFailed())
	assert.Nil(t, entries[0].Metadata)
}
