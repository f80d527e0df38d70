// Copyright (c) 2026 Mosava. All rights reserved.
// Author: vann.pham.vn@gmail.com

package mosaic_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vannpham/mosava/internal/mosaic"
	"github.com/vannpham/mosava/internal/platform/apperr"
	"github.com/vannpham/mosava/internal/platform/imaging"
	"github.com/vannpham/mosava/pkg/pointer"
)

// activeIDs returns the IDs of all currently active mosaics.
func activeIDs(t *testing.T, env *testEnv) []string {
	t.Helper()

	summaries, err := env.repo.ListMosaics(context.Background())
	require.NoError(t, err)

	var ids []string
	for _, summary := range summaries {
		if summary.Active {
			ids = append(ids, summary.ID)
		}
	}
	return ids
}

/*
TestFinishMosaic verifies archiving: lifecycle flags flip and the reachable
unfilled regions are back-filled from the original at full brightness.
*/
func TestFinishMosaic(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	id := createGrayMosaic(t, env, "finish")
	seed := firstFillable(t, env, id)[0]

	require.NoError(t, env.lifecycle.FinishMosaic(ctx, id))

	m, err := env.repo.GetMosaic(ctx, id)
	require.NoError(t, err)
	assert.True(t, m.Filled)
	assert.False(t, m.Active)

	// The seed was fillable and unfilled, so its region is restored from the
	// original instead of staying dimmed.
	current, err := env.repo.GetPixelBuffer(ctx, id, mosaic.PixelCurrent)
	require.NoError(t, err)
	region := current.Region(seed.XMin, seed.YMin, seed.XMax, seed.YMax)
	assert.InDelta(t, 128, imaging.MeanLuma(region), 3)
}

/*
TestDeleteMosaic_PromotesNext verifies that deleting the active mosaic
activates the next unfinished candidate without cloning.
*/
func TestDeleteMosaic_PromotesNext(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	first := createGrayMosaic(t, env, "first")
	second := createGrayMosaic(t, env, "second")

	require.NoError(t, env.lifecycle.DeleteMosaic(ctx, first))

	summaries, err := env.repo.ListMosaics(ctx)
	require.NoError(t, err)
	require.Len(t, summaries, 1, "a candidate existed, so nothing was cloned")
	assert.Equal(t, second, summaries[0].ID)
	assert.True(t, summaries[0].Active)
}

/*
TestDeleteMosaic_ClonesWhenExhausted verifies that deleting the last
unfinished mosaic respawns the rotation from the remaining originals.
*/
func TestDeleteMosaic_ClonesWhenExhausted(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	first := createGrayMosaic(t, env, "first")
	second := createGrayMosaic(t, env, "second")
	require.NoError(t, env.lifecycle.UpdateMosaicState(ctx, second, nil, pointer.To(true), nil))

	require.NoError(t, env.lifecycle.DeleteMosaic(ctx, first))

	summaries, err := env.repo.ListMosaics(ctx)
	require.NoError(t, err)
	require.Len(t, summaries, 2, "the filled original was cloned")

	actives := activeIDs(t, env)
	require.Len(t, actives, 1)
	assert.NotEqual(t, second, actives[0])

	for _, summary := range summaries {
		if summary.ID == actives[0] {
			assert.False(t, summary.Original)
			assert.False(t, summary.Filled)
			assert.Equal(t, "second", summary.Title)
		}
	}
}

/*
TestDeleteMosaic_Inactive verifies that deleting an inactive mosaic leaves
the active one untouched.
*/
func TestDeleteMosaic_Inactive(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	first := createGrayMosaic(t, env, "first")
	second := createGrayMosaic(t, env, "second")

	require.NoError(t, env.lifecycle.DeleteMosaic(ctx, second))

	actives := activeIDs(t, env)
	require.Len(t, actives, 1)
	assert.Equal(t, first, actives[0])
}

/*
TestDeleteMosaic_Unknown verifies the not-found path.
*/
func TestDeleteMosaic_Unknown(t *testing.T) {
	env := newTestEnv(t)

	err := env.lifecycle.DeleteMosaic(context.Background(), "0190276e-4f2d-7cc0-9ea4-8b7e1f3f3a11")
	require.Error(t, err)
	assert.Equal(t, "NOT_FOUND", apperr.As(err).Code)
}

/*
TestResetMosaic_Idempotent verifies the reset restores the post-creation
state and that applying it twice equals applying it once.
*/
func TestResetMosaic_Idempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	id := createGrayMosaic(t, env, "reset")
	require.NoError(t, env.fill.FillRandomSegments(ctx, id, grayJPEG(t, 90, 120, 128), true))

	require.NoError(t, env.lifecycle.ResetMosaic(ctx, id))

	type segmentState struct{ fillable, filled, seed bool }
	snapshot := func() (map[string]segmentState, []byte) {
		segments, err := env.repo.GetSegments(ctx, mosaic.SegmentFilter{MosaicID: pointer.To(id)})
		require.NoError(t, err)
		states := make(map[string]segmentState, len(segments))
		for _, segment := range segments {
			states[segment.ID] = segmentState{segment.Fillable, segment.Filled, segment.IsStartSegment}
		}
		currentJPEG, err := env.repo.GetArtifact(ctx, id, mosaic.ArtifactCurrentJPEG)
		require.NoError(t, err)
		return states, currentJPEG
	}

	firstStates, firstJPEG := snapshot()
	for _, state := range firstStates {
		assert.False(t, state.filled)
		assert.Equal(t, state.seed, state.fillable, "fillability returns to the seed set")
	}

	m, err := env.repo.GetMosaic(ctx, id)
	require.NoError(t, err)
	assert.False(t, m.Filled)

	// The CURRENT buffer is the dimmed original again.
	current, err := env.repo.GetPixelBuffer(ctx, id, mosaic.PixelCurrent)
	require.NoError(t, err)
	assert.InDelta(t, 128*0.25, imaging.MeanLuma(current), 3)

	require.NoError(t, env.lifecycle.ResetMosaic(ctx, id))
	secondStates, secondJPEG := snapshot()
	assert.Equal(t, firstStates, secondStates)
	assert.Equal(t, firstJPEG, secondJPEG)
}

/*
TestUpdateMosaicState_DemotesActive verifies that activating one mosaic
demotes the previously active one, keeping a single active mosaic.
*/
func TestUpdateMosaicState_DemotesActive(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	first := createGrayMosaic(t, env, "first")
	second := createGrayMosaic(t, env, "second")

	require.NoError(t, env.lifecycle.UpdateMosaicState(ctx, second, pointer.To(true), nil, nil))

	actives := activeIDs(t, env)
	require.Len(t, actives, 1)
	assert.Equal(t, second, actives[0])

	m, err := env.repo.GetMosaic(ctx, first)
	require.NoError(t, err)
	assert.False(t, m.Active)
}

/*
TestActivateNext_NoOpWhenActive verifies the self-healing guard: the scan
does nothing while some mosaic is already active.
*/
func TestActivateNext_NoOpWhenActive(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	first := createGrayMosaic(t, env, "first")
	createGrayMosaic(t, env, "second")

	require.NoError(t, env.lifecycle.ActivateNext(ctx))

	actives := activeIDs(t, env)
	require.Len(t, actives, 1)
	assert.Equal(t, first, actives[0])
}

/*
TestResetSegment verifies restoring a single segment: state flags return to
their creation values and the region is re-dimmed.
*/
func TestResetSegment(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	id := createGrayMosaic(t, env, "segment-reset")
	target := firstFillable(t, env, id)[0]

	require.NoError(t, env.fill.FillSegment(ctx, id, target.ID, grayJPEG(t, 90, 120, 250)))
	require.NoError(t, env.lifecycle.ResetSegment(ctx, id, target.ID))

	segments, err := env.repo.GetSegments(ctx, mosaic.SegmentFilter{ID: pointer.To(target.ID)})
	require.NoError(t, err)
	require.Len(t, segments, 1)
	assert.False(t, segments[0].Filled)
	assert.Equal(t, segments[0].IsStartSegment, segments[0].Fillable)

	current, err := env.repo.GetPixelBuffer(ctx, id, mosaic.PixelCurrent)
	require.NoError(t, err)
	region := current.Region(target.XMin, target.YMin, target.XMax, target.YMax)
	assert.InDelta(t, 128*0.25, imaging.MeanLuma(region), 3)
}

/*
TestResetSegment_Foreign verifies that a segment cannot be reset through a
mosaic it does not belong to.
*/
func TestResetSegment_Foreign(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	first := createGrayMosaic(t, env, "first")
	second := createGrayMosaic(t, env, "second")
	foreign := firstFillable(t, env, second)[0]

	err := env.lifecycle.ResetSegment(ctx, first, foreign.ID)
	require.Error(t, err)
	assert.Equal(t, "NOT_FOUND", apperr.As(err).Code)
}
