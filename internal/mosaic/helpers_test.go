// Copyright (c) 2026 Mosava. All rights reserved.
// Author: vann.pham.vn@gmail.com

package mosaic_test

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vannpham/mosava/internal/mosaic"
	"github.com/vannpham/mosava/internal/platform/imaging"
	"github.com/vannpham/mosava/internal/platform/nsfw"
	"github.com/vannpham/mosava/internal/platform/sqlite"
)

// testSettings returns small tuning values so tests stay fast while keeping
// the production brightness boundaries.
func testSettings() mosaic.Settings {
	return mosaic.Settings{
		OriginalImageMaxSize: 1600,
		ThumbnailSize:        64,
		GIFImageMaxSize:      64,
		SampleImageMaxSize:   128,
		UnusedAreaWeight:     10,
		RatioWidth:           3,
		RatioHeight:          4,
		NumSegmentsStart:     10,
		NumSegmentsMin:       10,
		SampleCandidatePool:  16,
		Brightness: mosaic.BrightnessRanges{
			LowMin: 0, LowMax: 85,
			MediumMin: 85, MediumMax: 170,
			HighMin: 170, HighMax: 255,
		},
	}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestRepo opens an in-memory database with the schema bootstrapped.
func newTestRepo(t *testing.T) *mosaic.Store {
	t.Helper()

	db, err := sqlite.OpenMemory(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	repo, err := mosaic.NewStore(context.Background(), db)
	require.NoError(t, err)
	return repo
}

// testEnv wires the full service graph against an in-memory repository.
type testEnv struct {
	repo      *mosaic.Store
	creation  *mosaic.CreationService
	lifecycle *mosaic.LifecycleManager
	fill      *mosaic.FillEngine
	query     *mosaic.QueryService
}

func newTestEnv(t *testing.T) *testEnv {
	return newTestEnvWithDetector(t, nsfw.Disabled{})
}

func newTestEnvWithDetector(t *testing.T, detector nsfw.Detector) *testEnv {
	t.Helper()

	repo := newTestRepo(t)
	settings := testSettings()
	logger := testLogger()

	creation := mosaic.NewCreationService(repo, settings, logger)
	lifecycle := mosaic.NewLifecycleManager(repo, creation, settings, logger)
	fill := mosaic.NewFillEngine(repo, detector, lifecycle, settings, logger)
	query := mosaic.NewQueryService(repo, logger)

	return &testEnv{
		repo:      repo,
		creation:  creation,
		lifecycle: lifecycle,
		fill:      fill,
		query:     query,
	}
}

// grayJPEG encodes a uniform gray image of the given dimensions.
func grayJPEG(t *testing.T, width, height int, value uint8) []byte {
	t.Helper()

	pixels := imaging.NewPixels(width, height)
	for i := range pixels.Pix {
		pixels.Pix[i] = value
	}
	payload, err := imaging.EncodeJPEG(pixels)
	require.NoError(t, err)
	return payload
}

// splitJPEG encodes a 300x400 image: dark left half, bright right half.
// Against the default brightness ranges this yields low, medium, and high
// segments in one mosaic.
func splitJPEG(t *testing.T) []byte {
	t.Helper()

	pixels := imaging.NewPixels(300, 400)
	for y := 0; y < pixels.Height; y++ {
		for x := 0; x < pixels.Width; x++ {
			value := uint8(40)
			if x >= 150 {
				value = 220
			}
			offset := (y*pixels.Width + x) * 3
			pixels.Pix[offset] = value
			pixels.Pix[offset+1] = value
			pixels.Pix[offset+2] = value
		}
	}
	payload, err := imaging.EncodeJPEG(pixels)
	require.NoError(t, err)
	return payload
}

// duoJPEG encodes a 300x400 image: dark left half, mid-gray right half.
// Against the default brightness ranges this yields only low and medium
// segments, leaving the high tier empty.
func duoJPEG(t *testing.T) []byte {
	t.Helper()

	pixels := imaging.NewPixels(300, 400)
	for y := 0; y < pixels.Height; y++ {
		for x := 0; x < pixels.Width; x++ {
			value := uint8(40)
			if x >= 150 {
				value = 160
			}
			offset := (y*pixels.Width + x) * 3
			pixels.Pix[offset] = value
			pixels.Pix[offset+1] = value
			pixels.Pix[offset+2] = value
		}
	}
	payload, err := imaging.EncodeJPEG(pixels)
	require.NoError(t, err)
	return payload
}

// createGrayMosaic uploads a uniform gray 300x400 mosaic with the default
// style and returns its ID. The resulting grid is 7x7 medium-tier segments.
func createGrayMosaic(t *testing.T, env *testEnv, title string) string {
	t.Helper()

	id, err := env.creation.CreateMosaic(context.Background(),
		grayJPEG(t, 300, 400, 128), title, mosaic.DefaultStyle(48))
	require.NoError(t, err)
	return id
}
