//go:build integration

package cache_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rondohq/rondo/internal/cache"
	"github.com/rondohq/rondo/internal/store"
	"github.com/rondohq/rondo/internal/testsupport"
)

func TestRedisFormCache_Integration(t *testing.T) {
	ctx := context.Background()

	redisCtr, err := testsupport.StartRedisContainer(ctx)
	require.NoError(t, err, "failed to start redis container")
	defer func() {
		if err := redisCtr.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	}()

	svc := redisCtr.Cache

	rec := &store.FormRecord{
		ID:     "form-int-1",
		TeamID: 42,
		Name:   "Integration form",
		Fields: json.RawMessage(`[{"id":"f1","label":"Location","options":[{"id":"o1","label":"East"}]}]`),
		Routes: json.RawMessage(`[{"id":"r1","action":{"type":"eventTypeRedirectUrl","eventTypeId":7}}]`),
	}
	fingerprint := cache.Fingerprint(rec)

	t.Run("SetForm_GetForm_RoundTrip", func(t *testing.T) {
		err := svc.SetForm(ctx, rec, fingerprint)
		require.NoError(t, err)

		got, err := svc.GetForm(ctx, rec.ID)
		require.NoError(t, err)
		assert.Equal(t, rec.ID, got.ID)
		assert.Equal(t, rec.TeamID, got.TeamID)
		assert.Equal(t, rec.Name, got.Name)
		assert.JSONEq(t, string(rec.Fields), string(got.Fields))
		assert.JSONEq(t, string(rec.Routes), string(got.Routes))

		// The cached payload must still decode into a valid domain form.
		form, err := store.DecodeForm(got)
		require.NoError(t, err)
		require.Len(t, form.Routes, 1)
		assert.Equal(t, int64(7), form.Routes[0].Action.EventTypeID)
	})

	t.Run("GetFingerprint_MatchesStoredValue", func(t *testing.T) {
		got, found, err := svc.GetFingerprint(ctx, rec.ID)
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, fingerprint, got)
	})

	t.Run("GetForm_Miss", func(t *testing.T) {
		_, err := svc.GetForm(ctx, "no-such-form")
		assert.ErrorIs(t, err, cache.ErrMiss)
	})

	t.Run("GetFingerprint_AbsentEntry", func(t *testing.T) {
		_, found, err := svc.GetFingerprint(ctx, "no-such-form")
		require.NoError(t, err)
		assert.False(t, found)
	})

	t.Run("SetForm_OverwritesPreviousVersion", func(t *testing.T) {
		updated := *rec
		updated.Name = "Renamed form"
		require.NoError(t, svc.SetForm(ctx, &updated, cache.Fingerprint(&updated)))

		got, err := svc.GetForm(ctx, rec.ID)
		require.NoError(t, err)
		assert.Equal(t, "Renamed form", got.Name)

		fp, found, err := svc.GetFingerprint(ctx, rec.ID)
		require.NoError(t, err)
		require.True(t, found)
		assert.NotEqual(t, fingerprint, fp)
	})
}
