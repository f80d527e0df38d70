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
	"github.com/vannpham/mosava/pkg/pointer"
)

// explicitDetector flags every upload, standing in for the NSFW classifier.
type explicitDetector struct{}

func (explicitDetector) IsExplicit(context.Context, []byte) (bool, error) {
	return true, nil
}

// firstFillable returns the mosaic's fillable segments in stable random order.
func firstFillable(t *testing.T, env *testEnv, mosaicID string) []*mosaic.Segment {
	t.Helper()

	segments, err := env.repo.GetSegments(context.Background(), mosaic.SegmentFilter{
		MosaicID:    pointer.To(mosaicID),
		Fillable:    pointer.To(true),
		Filled:      pointer.To(false),
		RandomOrder: true,
	})
	require.NoError(t, err)
	require.NotEmpty(t, segments)
	return segments
}

/*
TestFillSegment_MarksAndPropagates verifies the segment state machine: the
target becomes filled, its unfilled neighbors become fillable, and the
CURRENT buffer changes in the target's region.
*/
func TestFillSegment_MarksAndPropagates(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	id := createGrayMosaic(t, env, "fill")
	target := firstFillable(t, env, id)[0]

	before, err := env.repo.GetPixelBuffer(ctx, id, mosaic.PixelCurrent)
	require.NoError(t, err)

	// A bright portrait against the dimmed background moves the region mean.
	err = env.fill.FillSegment(ctx, id, target.ID, grayJPEG(t, 90, 120, 250))
	require.NoError(t, err)

	segments, err := env.repo.GetSegments(ctx, mosaic.SegmentFilter{MosaicID: pointer.To(id)})
	require.NoError(t, err)

	byCell := make(map[[2]int]*mosaic.Segment, len(segments))
	for _, segment := range segments {
		byCell[[2]int{segment.RowIdx, segment.ColIdx}] = segment
	}

	filledTarget := byCell[[2]int{target.RowIdx, target.ColIdx}]
	assert.True(t, filledTarget.Filled)
	assert.False(t, filledTarget.Fillable, "filled implies not fillable")

	for dr := -1; dr <= 1; dr++ {
		for dc := -1; dc <= 1; dc++ {
			neighbor, ok := byCell[[2]int{target.RowIdx + dr, target.ColIdx + dc}]
			if !ok || (dr == 0 && dc == 0) {
				continue
			}
			assert.True(t, neighbor.Fillable || neighbor.Filled,
				"neighbor (%d,%d) not reachable after fill", neighbor.RowIdx, neighbor.ColIdx)
		}
	}

	after, err := env.repo.GetPixelBuffer(ctx, id, mosaic.PixelCurrent)
	require.NoError(t, err)
	regionBefore := before.Region(target.XMin, target.YMin, target.XMax, target.YMax)
	regionAfter := after.Region(target.XMin, target.YMin, target.XMax, target.YMax)
	assert.NotEqual(t, regionBefore.Pix, regionAfter.Pix)
}

/*
TestFillSegment_ForeignSegment verifies that addressing a segment through
the wrong mosaic fails and leaves both mosaics untouched.
*/
func TestFillSegment_ForeignSegment(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	first := createGrayMosaic(t, env, "first")
	second := createGrayMosaic(t, env, "second")
	foreign := firstFillable(t, env, second)[0]

	beforeJPEG, err := env.repo.GetArtifact(ctx, first, mosaic.ArtifactCurrentJPEG)
	require.NoError(t, err)

	err = env.fill.FillSegment(ctx, first, foreign.ID, grayJPEG(t, 90, 120, 250))
	require.Error(t, err)
	assert.Equal(t, "NOT_FOUND", apperr.As(err).Code)

	// Nothing was mutated on either side.
	afterJPEG, err := env.repo.GetArtifact(ctx, first, mosaic.ArtifactCurrentJPEG)
	require.NoError(t, err)
	assert.Equal(t, beforeJPEG, afterJPEG)

	segments, err := env.repo.GetSegments(ctx, mosaic.SegmentFilter{ID: pointer.To(foreign.ID)})
	require.NoError(t, err)
	require.Len(t, segments, 1)
	assert.False(t, segments[0].Filled)
}

/*
TestFillRandomSegments_QuickFill verifies that quick fill claims five
segments in one upload.
*/
func TestFillRandomSegments_QuickFill(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	id := createGrayMosaic(t, env, "quick")

	err := env.fill.FillRandomSegments(ctx, id, grayJPEG(t, 90, 120, 128), true)
	require.NoError(t, err)

	filled, err := env.repo.GetSegments(ctx, mosaic.SegmentFilter{
		MosaicID: pointer.To(id),
		Filled:   pointer.To(true),
	})
	require.NoError(t, err)
	assert.Len(t, filled, 5)
}

/*
TestFillRandomSegments_ContentRejected verifies that a flagged upload is
refused before any decoding or state change.
*/
func TestFillRandomSegments_ContentRejected(t *testing.T) {
	env := newTestEnvWithDetector(t, explicitDetector{})
	ctx := context.Background()

	id := createGrayMosaic(t, env, "policy")

	err := env.fill.FillRandomSegments(ctx, id, grayJPEG(t, 90, 120, 128), false)
	require.Error(t, err)
	assert.Equal(t, "CONTENT_REJECTED", apperr.As(err).Code)

	filled, err := env.repo.GetSegments(ctx, mosaic.SegmentFilter{
		MosaicID: pointer.To(id),
		Filled:   pointer.To(true),
	})
	require.NoError(t, err)
	assert.Empty(t, filled)
}

/*
TestFillRandomSegments_TierPreference verifies that the search serves the
portrait's own brightness tier while it still has fillable segments.
*/
func TestFillRandomSegments_TierPreference(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	id, err := env.creation.CreateMosaic(ctx, splitJPEG(t), "split", mosaic.DefaultStyle(48))
	require.NoError(t, err)

	// A dark portrait lands in a low-tier segment first.
	err = env.fill.FillRandomSegments(ctx, id, grayJPEG(t, 90, 120, 30), false)
	require.NoError(t, err)

	filled, err := env.repo.GetSegments(ctx, mosaic.SegmentFilter{
		MosaicID: pointer.To(id),
		Filled:   pointer.To(true),
	})
	require.NoError(t, err)
	require.Len(t, filled, 1)
	assert.Equal(t, mosaic.BrightnessLow, filled[0].Brightness)
}

/*
TestFillRandomSegments_HighFallsBackToMedium verifies the fallback order for
a bright portrait: with no high-tier segments the search serves medium even
while low-tier segments remain fillable.
*/
func TestFillRandomSegments_HighFallsBackToMedium(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	id, err := env.creation.CreateMosaic(ctx, duoJPEG(t), "duo", mosaic.DefaultStyle(48))
	require.NoError(t, err)

	// Both surviving tiers still have fillable seeds.
	lowFillable, err := env.repo.GetSegments(ctx, mosaic.SegmentFilter{
		MosaicID:   pointer.To(id),
		Brightness: pointer.To(mosaic.BrightnessLow),
		Fillable:   pointer.To(true),
	})
	require.NoError(t, err)
	require.NotEmpty(t, lowFillable)

	err = env.fill.FillRandomSegments(ctx, id, grayJPEG(t, 90, 120, 250), false)
	require.NoError(t, err)

	filled, err := env.repo.GetSegments(ctx, mosaic.SegmentFilter{
		MosaicID: pointer.To(id),
		Filled:   pointer.To(true),
	})
	require.NoError(t, err)
	require.Len(t, filled, 1)
	assert.Equal(t, mosaic.BrightnessMedium, filled[0].Brightness,
		"medium is the second choice for a high-tier portrait")
}

/*
TestFill_CompletionRotates drives a mosaic to exhaustion and verifies the
finish-and-rotate transition: the mosaic archives, leftovers stay below the
minimum, and a fresh clone of the original becomes active.
*/
func TestFill_CompletionRotates(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	id := createGrayMosaic(t, env, "marathon")
	portrait := grayJPEG(t, 90, 120, 128)

	for i := 0; i < 12; i++ {
		m, err := env.repo.GetMosaic(ctx, id)
		require.NoError(t, err)
		if m.Filled {
			break
		}
		require.NoError(t, env.fill.FillRandomSegments(ctx, id, portrait, true))
	}

	finished, err := env.repo.GetMosaic(ctx, id)
	require.NoError(t, err)
	assert.True(t, finished.Filled)
	assert.False(t, finished.Active)

	// 49 segments, 5 per quick fill: 8 uploads leave 9 unfilled, under the
	// minimum of 10, which triggers the transition.
	stats, err := env.repo.SegmentStats(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 9, stats.Total())

	summaries, err := env.repo.ListMosaics(ctx)
	require.NoError(t, err)
	require.Len(t, summaries, 2, "rotation cloned the exhausted original")

	var clone *mosaic.MosaicSummary
	for _, summary := range summaries {
		if summary.ID != id {
			clone = summary
		}
	}
	require.NotNil(t, clone)
	assert.True(t, clone.Active)
	assert.False(t, clone.Filled)
	assert.False(t, clone.Original, "clones are not originals")
	assert.Equal(t, finished.Title, clone.Title)
}

/*
TestFillSegment_FinishedMosaicFreezesState verifies that late uploads to an
archived mosaic update pixels without reopening the segment state machine.
*/
func TestFillSegment_FinishedMosaicFreezesState(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	id := createGrayMosaic(t, env, "late")
	target := firstFillable(t, env, id)[0]

	require.NoError(t, env.lifecycle.UpdateMosaicState(ctx, id, nil, pointer.To(true), nil))

	err := env.fill.FillSegment(ctx, id, target.ID, grayJPEG(t, 90, 120, 250))
	require.NoError(t, err)

	segments, err := env.repo.GetSegments(ctx, mosaic.SegmentFilter{ID: pointer.To(target.ID)})
	require.NoError(t, err)
	require.Len(t, segments, 1)
	assert.False(t, segments[0].Filled, "archived mosaics accept pixels only")
}

/*
TestSampleSegment_Deterministic verifies that a pinned sample index yields
the same segment and identical preview bytes on repeated calls, with no
state mutation.
*/
func TestSampleSegment_Deterministic(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	id := createGrayMosaic(t, env, "preview")
	portrait := grayJPEG(t, 90, 120, 128)

	beforeJPEG, err := env.repo.GetArtifact(ctx, id, mosaic.ArtifactCurrentJPEG)
	require.NoError(t, err)

	preview1, segment1, err := env.fill.SampleSegment(ctx, id, portrait, 3)
	require.NoError(t, err)
	preview2, segment2, err := env.fill.SampleSegment(ctx, id, portrait, 3)
	require.NoError(t, err)

	assert.Equal(t, segment1, segment2)
	assert.Equal(t, preview1, preview2)

	// A different index can land on a different candidate.
	_, other, err := env.fill.SampleSegment(ctx, id, portrait, 4)
	require.NoError(t, err)
	assert.NotEqual(t, segment1, other)

	// Negative indices wrap around the pool instead of failing.
	_, _, err = env.fill.SampleSegment(ctx, id, portrait, -1)
	require.NoError(t, err)

	// Sampling is read-only.
	afterJPEG, err := env.repo.GetArtifact(ctx, id, mosaic.ArtifactCurrentJPEG)
	require.NoError(t, err)
	assert.Equal(t, beforeJPEG, afterJPEG)

	filled, err := env.repo.GetSegments(ctx, mosaic.SegmentFilter{
		MosaicID: pointer.To(id),
		Filled:   pointer.To(true),
	})
	require.NoError(t, err)
	assert.Empty(t, filled)
}

/*
TestSampleSegment_TierFallback verifies that a portrait whose tier has no
fillable segments still gets a candidate from a fallback tier.
*/
func TestSampleSegment_TierFallback(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	// Uniform gray: every segment is medium.
	id := createGrayMosaic(t, env, "fallback")

	_, segmentID, err := env.fill.SampleSegment(ctx, id, grayJPEG(t, 90, 120, 250), 0)
	require.NoError(t, err)

	segments, err := env.repo.GetSegments(ctx, mosaic.SegmentFilter{ID: pointer.To(segmentID)})
	require.NoError(t, err)
	require.Len(t, segments, 1)
	assert.Equal(t, mosaic.BrightnessMedium, segments[0].Brightness)
}

/*
TestSampleSegment_UnknownMosaic verifies the not-found path.
*/
func TestSampleSegment_UnknownMosaic(t *testing.T) {
	env := newTestEnv(t)

	_, _, err := env.fill.SampleSegment(context.Background(),
		"0190276e-4f2d-7cc0-9ea4-8b7e1f3f3a11", grayJPEG(t, 90, 120, 128), 0)
	require.Error(t, err)
	assert.Equal(t, "NOT_FOUND", apperr.As(err).Code)
}
