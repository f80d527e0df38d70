// Copyright (c) 2026 Mosava. All rights reserved.
// Author: vann.pham.vn@gmail.com

package mosaic_test

import (
	"bytes"
	"image/gif"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vannpham/mosava/internal/mosaic"
	"github.com/vannpham/mosava/internal/platform/imaging"
)

// animationSegments lays out n adjacent 10x10 cells across a 100x100 buffer.
func animationSegments(n int) []*mosaic.Segment {
	segments := make([]*mosaic.Segment, 0, n)
	for i := 0; i < n; i++ {
		row, col := i/10, i%10
		segments = append(segments, &mosaic.Segment{
			XMin: col * 10, XMax: col*10 + 10,
			YMin: row * 10, YMax: row*10 + 10,
			RandomSortKey: i,
		})
	}
	return segments
}

/*
TestRenderFillingGIF_FrameCounts verifies the animation structure: five
opening holds, batched reveal frames, and one trailing fully-revealed frame.
*/
func TestRenderFillingGIF_FrameCounts(t *testing.T) {
	tests := []struct {
		name       string
		unfilled   int
		wantFrames int
	}{
		// 20 unfilled / 5 reveal frames = batches of 4.
		{"even_batches", 20, 5 + 5 + 1},
		// Fewer unfilled than reveal frames: batch floors at one.
		{"one_per_frame", 3, 5 + 3 + 1},
		{"single_segment", 1, 5 + 1 + 1},
		// Nothing left: holds plus the final frame only.
		{"none_unfilled", 0, 5 + 0 + 1},
		// 23 / 5 = batches of 4, so six reveal frames cover the remainder.
		{"uneven_batches", 23, 5 + 6 + 1},
	}

	original := imaging.NewPixels(100, 100)
	for i := range original.Pix {
		original.Pix[i] = 200
	}
	current := imaging.ScaleBrightness(original, 0.25)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload, err := mosaic.RenderFillingGIF(original, current, animationSegments(tt.unfilled), 64)
			require.NoError(t, err)

			decoded, err := gif.DecodeAll(bytes.NewReader(payload))
			require.NoError(t, err)

			assert.Len(t, decoded.Image, tt.wantFrames)
			assert.Equal(t, 0, decoded.LoopCount)
			for _, delay := range decoded.Delay {
				assert.Equal(t, 50, delay)
			}
		})
	}
}

/*
TestRenderFillingGIF_RevealsProgressively verifies that revealed regions
brighten across frames while untouched regions stay dimmed until their turn.
*/
func TestRenderFillingGIF_RevealsProgressively(t *testing.T) {
	original := imaging.NewPixels(100, 100)
	for i := range original.Pix {
		original.Pix[i] = 200
	}
	current := imaging.ScaleBrightness(original, 0.25)

	// Segment frames stay at the full 100x100 so regions map 1:1.
	payload, err := mosaic.RenderFillingGIF(original, current, animationSegments(20), 100)
	require.NoError(t, err)

	decoded, err := gif.DecodeAll(bytes.NewReader(payload))
	require.NoError(t, err)
	require.Greater(t, len(decoded.Image), 6)

	opening := imaging.FromImage(decoded.Image[0])
	final := imaging.FromImage(decoded.Image[len(decoded.Image)-1])

	// The opening rests on the dimmed current image. The final frame has all
	// 20 segments (a fifth of the canvas) restored to full brightness, so its
	// mean rises accordingly: 0.8*50 + 0.2*200 = 80.
	assert.InDelta(t, 50, imaging.MeanLuma(opening), 5)
	assert.InDelta(t, 80, imaging.MeanLuma(final), 8)

	middle := imaging.FromImage(decoded.Image[7])
	assert.Greater(t, imaging.MeanLuma(middle), imaging.MeanLuma(opening))
	assert.Less(t, imaging.MeanLuma(middle), imaging.MeanLuma(final))
}
