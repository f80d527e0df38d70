// Copyright (c) 2026 Mosava. All rights reserved.
// Author: vann.pham.vn@gmail.com

package mosaic

import (
	"context"
	"log/slog"
	"sort"

	"github.com/vannpham/mosava/internal/platform/apperr"
	"github.com/vannpham/mosava/internal/platform/imaging"
	"github.com/vannpham/mosava/internal/platform/nsfw"
	"github.com/vannpham/mosava/pkg/pointer"
)

// quickFillCount is how many segments a quick-fill upload claims at once.
const quickFillCount = 5

// # Fill Engine

// FillEngine turns uploaded portraits into filled segments: candidate
// selection under the brightness-fallback policy, compositing into the
// CURRENT buffer, fillability propagation to neighbors, and the
// finish-and-rotate transition when a mosaic runs out of segments.
type FillEngine struct {
	repo      Repository
	detector  nsfw.Detector
	lifecycle *LifecycleManager
	settings  Settings
	logger    *slog.Logger
}

// NewFillEngine constructs a [FillEngine].
func NewFillEngine(repo Repository, detector nsfw.Detector, lifecycle *LifecycleManager, settings Settings, logger *slog.Logger) *FillEngine {
	return &FillEngine{
		repo:      repo,
		detector:  detector,
		lifecycle: lifecycle,
		settings:  settings,
		logger:    logger,
	}
}

// # Sample Preview

/*
SampleSegment renders a read-only preview of a portrait inside a candidate
segment.

Description: Classifies the portrait's brightness, picks a matching fillable
segment, and blends the portrait over the segment's ORIGINAL crop using the
preview blend constant and the tier-specific blur radius. No persistent
state changes.

Parameters:
  - context: context.Context
  - mosaicID: string (UUID)
  - portraitBytes: []byte (JPEG/PNG upload)
  - sampleIndex: int (picks the Nth candidate from a fixed-size pool, modulo
    pool size, for reproducible previews)

Returns:
  - []byte: JPEG preview bytes
  - string: The chosen segment's ID
  - error: NotFound when the mosaic has no fillable segments left
*/
func (service *FillEngine) SampleSegment(context context.Context, mosaicID string, portraitBytes []byte, sampleIndex int) ([]byte, string, error) {

	portrait, err := imaging.Decode(portraitBytes)
	if err != nil {
		return nil, "", apperr.ValidationError("Uploaded portrait is corrupt or not a supported format")
	}
	portrait = imaging.Thumbnail(portrait, service.settings.SampleImageMaxSize)

	mosaic, err := service.repo.GetMosaic(context, mosaicID)
	if err != nil {
		return nil, "", err
	}

	tier := service.portraitTier(portrait)
	pool, err := service.fallbackSearch(context, service.repo, mosaicID, tier, service.settings.SampleCandidatePool)
	if err != nil {
		return nil, "", err
	}
	if len(pool) == 0 {
		return nil, "", apperr.NotFound("Fillable segment")
	}

	segment := pool[((sampleIndex%len(pool))+len(pool))%len(pool)]

	original, err := service.repo.GetPixelBuffer(context, mosaicID, PixelOriginal)
	if err != nil {
		return nil, "", err
	}

	crop := original.Region(segment.XMin, segment.YMin, segment.XMax, segment.YMax)
	crop = imaging.Resize(crop, portrait.Width, portrait.Height)
	crop = imaging.BoxBlur(crop, mosaic.Style.BlurFor(segment.Brightness))

	preview, err := imaging.Blend(portrait, crop, mosaic.Style.SegmentBlend)
	if err != nil {
		return nil, "", apperr.Internal(err)
	}

	previewJPEG, err := imaging.EncodeJPEG(preview)
	if err != nil {
		return nil, "", apperr.Internal(err)
	}
	return previewJPEG, segment.ID, nil
}

// # Filling

/*
FillSegment composites a portrait into one explicitly chosen segment.

Description: The segment must belong to the given mosaic; otherwise a
not-found error is returned and nothing is mutated. The whole operation,
including artifact re-encoding and any lifecycle transition, commits as one
transaction.

Parameters:
  - context: context.Context
  - mosaicID: string (UUID)
  - segmentID: string (UUID)
  - portraitBytes: []byte

Returns:
  - error: CONTENT_REJECTED when the NSFW classifier flags the portrait
*/
func (service *FillEngine) FillSegment(context context.Context, mosaicID, segmentID string, portraitBytes []byte) error {

	portrait, err := service.screenAndDecode(context, portraitBytes)
	if err != nil {
		return err
	}

	return service.repo.RunInTx(context, func(repo Repository) error {
		mosaic, err := repo.GetMosaic(context, mosaicID)
		if err != nil {
			return err
		}

		targets, err := repo.GetSegments(context, SegmentFilter{
			ID:       pointer.To(segmentID),
			MosaicID: pointer.To(mosaicID),
		})
		if err != nil {
			return err
		}
		if len(targets) == 0 {
			return apperr.NotFound("Segment")
		}

		return service.fill(context, repo, mosaic, targets, portrait)
	})
}

/*
FillRandomSegments composites a portrait into automatically chosen segments.

Description: Chooses one segment (or five under quickFill) whose brightness
matches the portrait via the fallback search, then runs the shared fill
pipeline.

Parameters:
  - context: context.Context
  - mosaicID: string (UUID)
  - portraitBytes: []byte
  - quickFill: bool (claim five segments instead of one)

Returns:
  - error: NotFound when no fillable segment remains
*/
func (service *FillEngine) FillRandomSegments(context context.Context, mosaicID string, portraitBytes []byte, quickFill bool) error {

	portrait, err := service.screenAndDecode(context, portraitBytes)
	if err != nil {
		return err
	}

	want := 1
	if quickFill {
		want = quickFillCount
	}

	return service.repo.RunInTx(context, func(repo Repository) error {
		mosaic, err := repo.GetMosaic(context, mosaicID)
		if err != nil {
			return err
		}

		tier := service.portraitTier(portrait)
		targets, err := service.fallbackSearch(context, repo, mosaicID, tier, want)
		if err != nil {
			return err
		}
		if len(targets) == 0 {
			return apperr.NotFound("Fillable segment")
		}

		return service.fill(context, repo, mosaic, targets, portrait)
	})
}

// screenAndDecode applies the content policy, then decodes the portrait.
func (service *FillEngine) screenAndDecode(context context.Context, portraitBytes []byte) (*imaging.Pixels, error) {
	explicit, err := service.detector.IsExplicit(context, portraitBytes)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if explicit {
		return nil, apperr.ContentRejected("Upload rejected by content policy")
	}

	portrait, err := imaging.Decode(portraitBytes)
	if err != nil {
		return nil, apperr.ValidationError("Uploaded portrait is corrupt or not a supported format")
	}
	return portrait, nil
}

// portraitTier classifies the uploaded portrait. A portrait whose mean luma
// lands in a configuration gap is treated as MEDIUM so the fallback search
// always starts from a real tier.
func (service *FillEngine) portraitTier(portrait *imaging.Pixels) BrightnessTier {
	tier := service.settings.Brightness.ClassifyPixels(portrait)
	if tier == BrightnessInvalid {
		tier = BrightnessMedium
	}
	return tier
}

// fill is the shared pipeline behind both fill operations. It composites
// the portrait into every target segment, propagates fillability, refreshes
// all derived artifacts, and finishes the mosaic when it drops below the
// minimum unfilled threshold. Runs inside the caller's transaction.
func (service *FillEngine) fill(context context.Context, repo Repository, mosaic *Mosaic, targets []*Segment, portrait *imaging.Pixels) error {

	current, err := repo.GetPixelBuffer(context, mosaic.ID, PixelCurrent)
	if err != nil {
		return err
	}
	original, err := repo.GetPixelBuffer(context, mosaic.ID, PixelOriginal)
	if err != nil {
		return err
	}

	// One resize serves every target: all segments share the grid geometry.
	prepared := imaging.CenterCrop(portrait, service.settings.RatioWidth, service.settings.RatioHeight)
	prepared = imaging.Resize(prepared, mosaic.SegmentWidth, mosaic.SegmentHeight)

	// Neighbor propagation needs the whole grid in memory.
	segments, err := repo.GetSegments(context, SegmentFilter{MosaicID: pointer.To(mosaic.ID)})
	if err != nil {
		return err
	}
	byCell := make(map[[2]int]*Segment, len(segments))
	for _, segment := range segments {
		byCell[[2]int{segment.RowIdx, segment.ColIdx}] = segment
	}

	changed := make(map[string]*Segment)
	wasFilled := mosaic.Filled

	for _, target := range targets {
		crop := original.Region(target.XMin, target.YMin, target.XMax, target.YMax)
		blended, err := imaging.Blend(prepared, crop, mosaic.Style.MosaicBlend)
		if err != nil {
			return apperr.Internal(err)
		}
		current.SetRegion(target.XMin, target.YMin, blended)

		// A late upload to an already-finished mosaic only updates pixels;
		// the segment state machine is frozen.
		if wasFilled {
			continue
		}

		segment := byCell[[2]int{target.RowIdx, target.ColIdx}]
		segment.Filled = true
		segment.Fillable = false
		changed[segment.ID] = segment

		for dr := -1; dr <= 1; dr++ {
			for dc := -1; dc <= 1; dc++ {
				if dr == 0 && dc == 0 {
					continue
				}
				neighbor, ok := byCell[[2]int{target.RowIdx + dr, target.ColIdx + dc}]
				if !ok || neighbor.Filled || neighbor.Fillable {
					continue
				}
				neighbor.Fillable = true
				changed[neighbor.ID] = neighbor
			}
		}
	}

	if len(changed) > 0 {
		updates := make([]*Segment, 0, len(changed))
		for _, segment := range changed {
			updates = append(updates, segment)
		}
		if err := repo.UpsertSegments(context, updates); err != nil {
			return err
		}
	}

	if err := repo.UpsertPixelBuffer(context, mosaic.ID, PixelCurrent, current); err != nil {
		return err
	}
	if err := encodeCurrentArtifacts(context, repo, mosaic.ID, current, service.settings.ThumbnailSize); err != nil {
		return err
	}

	// Regenerate the progress animation over what is still unfilled.
	var unfilled []*Segment
	for _, segment := range segments {
		if !segment.Filled {
			unfilled = append(unfilled, segment)
		}
	}
	sort.Slice(unfilled, func(i, j int) bool {
		return unfilled[i].RandomSortKey < unfilled[j].RandomSortKey
	})
	gif, err := RenderFillingGIF(original, current, unfilled, service.settings.GIFImageMaxSize)
	if err != nil {
		return apperr.Internal(err)
	}
	if err := repo.UpsertArtifact(context, mosaic.ID, ArtifactFillingGIF, gif); err != nil {
		return err
	}

	service.logger.InfoContext(context, "segments_filled",
		slog.String("mosaic_id", mosaic.ID),
		slog.Int("count", len(targets)),
		slog.Int("unfilled_remaining", len(unfilled)),
	)

	// Finish and rotate once the mosaic is effectively exhausted.
	if !wasFilled && len(unfilled) < service.settings.NumSegmentsMin {
		if err := service.lifecycle.finish(context, repo, mosaic); err != nil {
			return err
		}
		if err := service.lifecycle.activateNext(context, repo); err != nil {
			return err
		}
	}

	return nil
}

// fallbackSearch draws up to limit fillable segments for the desired tier,
// ordered by RandomSortKey. When the tier runs short it tops up from MEDIUM
// (or from LOW when the request itself is MEDIUM), then from the remaining
// tier, so progress never stalls because a single brightness category
// exhausted first.
func (service *FillEngine) fallbackSearch(context context.Context, repo Repository, mosaicID string, tier BrightnessTier, limit int) ([]*Segment, error) {

	var order []BrightnessTier
	switch tier {
	case BrightnessLow:
		order = []BrightnessTier{BrightnessLow, BrightnessMedium, BrightnessHigh}
	case BrightnessHigh:
		order = []BrightnessTier{BrightnessHigh, BrightnessMedium, BrightnessLow}
	default:
		order = []BrightnessTier{BrightnessMedium, BrightnessLow, BrightnessHigh}
	}

	var pool []*Segment
	for _, candidate := range order {
		remaining := limit - len(pool)
		if remaining <= 0 {
			break
		}
		segments, err := repo.GetSegments(context, SegmentFilter{
			MosaicID:    pointer.To(mosaicID),
			Brightness:  pointer.To(candidate),
			Fillable:    pointer.To(true),
			Filled:      pointer.To(false),
			RandomOrder: true,
			Limit:       remaining,
		})
		if err != nil {
			return nil, err
		}
		pool = append(pool, segments...)
	}
	return pool, nil
}

// encodeCurrentArtifacts refreshes CURRENT_JPEG and its thumbnail. Shared by
// the fill engine and lifecycle manager.
func encodeCurrentArtifacts(context context.Context, repo Repository, mosaicID string, current *imaging.Pixels, thumbnailSize int) error {
	currentJPEG, err := imaging.EncodeJPEG(current)
	if err != nil {
		return apperr.Internal(err)
	}
	if err := repo.UpsertArtifact(context, mosaicID, ArtifactCurrentJPEG, currentJPEG); err != nil {
		return err
	}

	thumbnail, err := imaging.EncodeJPEG(imaging.Thumbnail(current, thumbnailSize))
	if err != nil {
		return apperr.Internal(err)
	}
	return repo.UpsertArtifact(context, mosaicID, ArtifactCurrentThumbnail, thumbnail)
}
