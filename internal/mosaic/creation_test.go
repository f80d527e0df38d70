// Copyright (c) 2026 Mosava. All rights reserved.
// Author: vann.pham.vn@gmail.com

package mosaic_test

import (
	"bytes"
	"context"
	"image/gif"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vannpham/mosava/internal/mosaic"
	"github.com/vannpham/mosava/internal/platform/apperr"
	"github.com/vannpham/mosava/pkg/pointer"
)

/*
TestCreateMosaic_Geometry verifies the persisted grid geometry and segment
set for a uniform 300x400 upload.
*/
func TestCreateMosaic_Geometry(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	id := createGrayMosaic(t, env, "first")

	m, err := env.repo.GetMosaic(ctx, id)
	require.NoError(t, err)

	assert.Equal(t, "first", m.Title)
	assert.True(t, m.Active, "the first mosaic ever created becomes active")
	assert.True(t, m.Original)
	assert.False(t, m.Filled)

	// 300x400 with a 3:4 ratio and target 48 plans a 7x7 grid of 42x56 cells.
	assert.Equal(t, 7, m.Rows)
	assert.Equal(t, 7, m.Cols)
	assert.Equal(t, 42, m.SegmentWidth)
	assert.Equal(t, 56, m.SegmentHeight)
	assert.Equal(t, 4, m.SpaceTop)
	assert.Equal(t, 3, m.SpaceLeft)

	segments, err := env.repo.GetSegments(ctx, mosaic.SegmentFilter{MosaicID: pointer.To(id)})
	require.NoError(t, err)
	require.Len(t, segments, 49)

	seenKeys := make(map[int]bool)
	seeds := 0
	for _, segment := range segments {
		// Uniform gray classifies every cell as medium.
		assert.Equal(t, mosaic.BrightnessMedium, segment.Brightness)
		assert.False(t, segment.Filled)
		assert.Equal(t, segment.Fillable, segment.IsStartSegment)

		assert.Equal(t, segment.XMin+m.SegmentWidth, segment.XMax)
		assert.Equal(t, segment.YMin+m.SegmentHeight, segment.YMax)

		// Sort keys are a permutation of [0, rows*cols).
		assert.False(t, seenKeys[segment.RandomSortKey], "duplicate sort key")
		assert.GreaterOrEqual(t, segment.RandomSortKey, 0)
		assert.Less(t, segment.RandomSortKey, 49)
		seenKeys[segment.RandomSortKey] = true

		if segment.Fillable {
			seeds++
		}
	}
	assert.Equal(t, 10, seeds, "one tier present, seeded to NumSegmentsStart")
}

/*
TestCreateMosaic_FirstActiveOnly verifies that only the very first upload
auto-activates.
*/
func TestCreateMosaic_FirstActiveOnly(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	first := createGrayMosaic(t, env, "first")
	second := createGrayMosaic(t, env, "second")

	m1, err := env.repo.GetMosaic(ctx, first)
	require.NoError(t, err)
	m2, err := env.repo.GetMosaic(ctx, second)
	require.NoError(t, err)

	assert.True(t, m1.Active)
	assert.False(t, m2.Active)
}

/*
TestCreateMosaic_Artifacts verifies that creation stores both pixel buffers
and all four derived artifacts, including a decodable progress animation.
*/
func TestCreateMosaic_Artifacts(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	id := createGrayMosaic(t, env, "artifacts")

	original, err := env.repo.GetPixelBuffer(ctx, id, mosaic.PixelOriginal)
	require.NoError(t, err)
	assert.Equal(t, 300, original.Width)
	assert.Equal(t, 400, original.Height)

	current, err := env.repo.GetPixelBuffer(ctx, id, mosaic.PixelCurrent)
	require.NoError(t, err)
	assert.Equal(t, original.Width, current.Width)

	for _, category := range []mosaic.ArtifactCategory{
		mosaic.ArtifactOriginalJPEG,
		mosaic.ArtifactCurrentJPEG,
		mosaic.ArtifactCurrentThumbnail,
		mosaic.ArtifactFillingGIF,
	} {
		payload, err := env.repo.GetArtifact(ctx, id, category)
		require.NoError(t, err, "artifact %s", category)
		assert.NotEmpty(t, payload, "artifact %s", category)
	}

	animation, err := env.repo.GetArtifact(ctx, id, mosaic.ArtifactFillingGIF)
	require.NoError(t, err)
	decoded, err := gif.DecodeAll(bytes.NewReader(animation))
	require.NoError(t, err)
	assert.Equal(t, 0, decoded.LoopCount)
	assert.Greater(t, len(decoded.Image), 5)
}

/*
TestCreateMosaic_TierSeeding verifies per-tier classification and seeding on
an image containing all three brightness tiers.
*/
func TestCreateMosaic_TierSeeding(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	id, err := env.creation.CreateMosaic(ctx, splitJPEG(t), "split", mosaic.DefaultStyle(48))
	require.NoError(t, err)

	// Columns 0-2 are dark, column 3 straddles the boundary, columns 4-6 are
	// bright: 21 low, 7 medium, and 21 high segments.
	tierCounts := map[mosaic.BrightnessTier]int{}
	seedCounts := map[mosaic.BrightnessTier]int{}

	segments, err := env.repo.GetSegments(ctx, mosaic.SegmentFilter{MosaicID: pointer.To(id)})
	require.NoError(t, err)
	for _, segment := range segments {
		tierCounts[segment.Brightness]++
		if segment.Fillable {
			seedCounts[segment.Brightness]++
		}
	}

	assert.Equal(t, 21, tierCounts[mosaic.BrightnessLow])
	assert.Equal(t, 7, tierCounts[mosaic.BrightnessMedium])
	assert.Equal(t, 21, tierCounts[mosaic.BrightnessHigh])

	// Each tier seeds up to NumSegmentsStart, capped by what exists.
	assert.Equal(t, 10, seedCounts[mosaic.BrightnessLow])
	assert.Equal(t, 7, seedCounts[mosaic.BrightnessMedium])
	assert.Equal(t, 10, seedCounts[mosaic.BrightnessHigh])
}

/*
TestCreateMosaic_InvalidStyle verifies rejection of out-of-range style
parameters.
*/
func TestCreateMosaic_InvalidStyle(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	payload := grayJPEG(t, 300, 400, 128)

	tests := []struct {
		name  string
		style mosaic.StyleConfig
	}{
		{"zero_segments", func() mosaic.StyleConfig {
			s := mosaic.DefaultStyle(48)
			s.NumSegments = 0
			return s
		}()},
		{"zero_bg_brightness", func() mosaic.StyleConfig {
			s := mosaic.DefaultStyle(48)
			s.BGBrightness = 0
			return s
		}()},
		{"blend_above_one", func() mosaic.StyleConfig {
			s := mosaic.DefaultStyle(48)
			s.MosaicBlend = 1.5
			return s
		}()},
		{"negative_blur", func() mosaic.StyleConfig {
			s := mosaic.DefaultStyle(48)
			s.BlurMedium = -1
			return s
		}()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.creation.CreateMosaic(ctx, payload, "bad", tt.style)
			require.Error(t, err)
			assert.Equal(t, "VALIDATION_ERROR", apperr.As(err).Code)
		})
	}
}

/*
TestCreateMosaic_CorruptImage verifies that undecodable uploads fail with a
validation error before any state is written.
*/
func TestCreateMosaic_CorruptImage(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.creation.CreateMosaic(ctx, []byte("not an image"), "bad", mosaic.DefaultStyle(48))
	require.Error(t, err)
	assert.Equal(t, "VALIDATION_ERROR", apperr.As(err).Code)

	count, err := env.repo.MosaicCount(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
}

/*
TestCreateMosaic_TooSmall verifies that an image unable to hold a single
segment is rejected.
*/
func TestCreateMosaic_TooSmall(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.creation.CreateMosaic(context.Background(),
		grayJPEG(t, 2, 2, 128), "tiny", mosaic.DefaultStyle(48))
	require.Error(t, err)
	assert.Equal(t, "VALIDATION_ERROR", apperr.As(err).Code)
}

/*
TestCreateMosaic_BrightnessGap verifies that a source whose cells fall into
a gap between configured ranges is rejected, and the transaction rolls back.
*/
func TestCreateMosaic_BrightnessGap(t *testing.T) {
	repo := newTestRepo(t)
	settings := testSettings()
	settings.Brightness = mosaic.BrightnessRanges{
		LowMin: 0, LowMax: 50,
		MediumMin: 100, MediumMax: 170,
		HighMin: 200, HighMax: 255,
	}
	creation := mosaic.NewCreationService(repo, settings, testLogger())
	ctx := context.Background()

	// Mean luma 80 lands between the low and medium ranges.
	_, err := creation.CreateMosaic(ctx, grayJPEG(t, 300, 400, 80), "gap", mosaic.DefaultStyle(48))
	require.Error(t, err)
	assert.Equal(t, "VALIDATION_ERROR", apperr.As(err).Code)

	count, err := repo.MosaicCount(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
}
