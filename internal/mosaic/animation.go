// Copyright (c) 2026 Mosava. All rights reserved.
// Author: vann.pham.vn@gmail.com

package mosaic

import (
	"github.com/vannpham/mosava/internal/platform/imaging"
)

const (
	// gifHoldFrames is how many times the opening frame repeats, so the
	// animation rests on the current state before revealing.
	gifHoldFrames = 5
	// gifFillingFrames is the target number of progressive reveal frames.
	gifFillingFrames = 5
	// gifFrameDelay is the per-frame duration in hundredths of a second.
	gifFrameDelay = 50
)

// RenderFillingGIF produces the looping fill-progress animation.
//
// The animation opens with repeated frames of the current image, then
// reveals the still-unfilled segments in batches: each frame overlays the
// next batch of ORIGINAL regions onto a working copy of CURRENT, ending on
// the fully revealed image. Callers pass the unfilled segments already in
// the order the reveal should follow (by RandomSortKey).
//
// Pure function over in-memory buffers; persisting the result is the
// caller's concern.
func RenderFillingGIF(original, current *imaging.Pixels, unfilled []*Segment, maxSize int) ([]byte, error) {

	frames := make([]*imaging.Pixels, 0, gifHoldFrames+gifFillingFrames+1)

	opening := imaging.Thumbnail(current, maxSize)
	for i := 0; i < gifHoldFrames; i++ {
		frames = append(frames, opening)
	}

	// Batch size floors at 1 so the loop always terminates even when fewer
	// unfilled segments remain than reveal frames.
	batch := len(unfilled) / gifFillingFrames
	if batch < 1 {
		batch = 1
	}

	working := current.Clone()
	for start := 0; start < len(unfilled); start += batch {
		end := start + batch
		if end > len(unfilled) {
			end = len(unfilled)
		}
		for _, segment := range unfilled[start:end] {
			crop := original.Region(segment.XMin, segment.YMin, segment.XMax, segment.YMax)
			working.SetRegion(segment.XMin, segment.YMin, crop)
		}
		frames = append(frames, imaging.Thumbnail(working, maxSize))
	}

	// Rest on the fully revealed image before looping.
	frames = append(frames, imaging.Thumbnail(working, maxSize))

	return imaging.EncodeGIF(frames, gifFrameDelay)
}
