// Copyright (c) 2026 Mosava. All rights reserved.
// Author: vann.pham.vn@gmail.com

package mosaic

import (
	"context"
	"log/slog"

	"github.com/vannpham/mosava/internal/platform/apperr"
	"github.com/vannpham/mosava/internal/platform/imaging"
	"github.com/vannpham/mosava/pkg/pointer"
)

// # Lifecycle Manager

// LifecycleManager owns the rotation of the mosaic collection: finishing
// exhausted mosaics, activating the next candidate, cloning originals when
// the pool runs dry, and the admin delete/reset operations.
type LifecycleManager struct {
	repo     Repository
	creation *CreationService
	settings Settings
	logger   *slog.Logger
}

// NewLifecycleManager constructs a [LifecycleManager].
func NewLifecycleManager(repo Repository, creation *CreationService, settings Settings, logger *slog.Logger) *LifecycleManager {
	return &LifecycleManager{
		repo:     repo,
		creation: creation,
		settings: settings,
		logger:   logger,
	}
}

// # Finishing & Rotation

// FinishMosaic archives a mosaic: filled=true, active=false, and every
// still-fillable-but-unfilled segment back-filled from ORIGINAL so the final
// image has no dimmed holes.
func (service *LifecycleManager) FinishMosaic(context context.Context, id string) error {
	return service.repo.RunInTx(context, func(repo Repository) error {
		mosaic, err := repo.GetMosaic(context, id)
		if err != nil {
			return err
		}
		return service.finish(context, repo, mosaic)
	})
}

// finish runs inside the caller's transaction; the fill engine invokes it
// directly when a fill drops the mosaic below the minimum threshold.
func (service *LifecycleManager) finish(context context.Context, repo Repository, mosaic *Mosaic) error {

	original, err := repo.GetPixelBuffer(context, mosaic.ID, PixelOriginal)
	if err != nil {
		return err
	}
	current, err := repo.GetPixelBuffer(context, mosaic.ID, PixelCurrent)
	if err != nil {
		return err
	}

	leftovers, err := repo.GetSegments(context, SegmentFilter{
		MosaicID: pointer.To(mosaic.ID),
		Fillable: pointer.To(true),
		Filled:   pointer.To(false),
	})
	if err != nil {
		return err
	}
	for _, segment := range leftovers {
		crop := original.Region(segment.XMin, segment.YMin, segment.XMax, segment.YMax)
		current.SetRegion(segment.XMin, segment.YMin, crop)
	}

	if err := repo.UpsertPixelBuffer(context, mosaic.ID, PixelCurrent, current); err != nil {
		return err
	}
	if err := encodeCurrentArtifacts(context, repo, mosaic.ID, current, service.settings.ThumbnailSize); err != nil {
		return err
	}

	mosaic.Filled = true
	mosaic.Active = false
	if err := repo.UpdateMosaic(context, mosaic); err != nil {
		return err
	}

	service.logger.InfoContext(context, "mosaic_finished",
		slog.String("mosaic_id", mosaic.ID),
		slog.Int("backfilled_segments", len(leftovers)),
	)
	return nil
}

// ActivateNext promotes the next mosaic in the rotation to active.
func (service *LifecycleManager) ActivateNext(context context.Context) error {
	return service.repo.RunInTx(context, func(repo Repository) error {
		return service.activateNext(context, repo)
	})
}

// activateNext scans the collection in insertion order for the first mosaic
// with filled=false and active=false. If every candidate is exhausted it
// clones all original mosaics from their stored source images, activating
// the first clone, so the rotation never stalls while an original exists.
//
// If some mosaic is already active the scan is a no-op, which keeps the
// single-active invariant self-healing.
func (service *LifecycleManager) activateNext(context context.Context, repo Repository) error {

	summaries, err := repo.ListMosaics(context)
	if err != nil {
		return err
	}

	for _, summary := range summaries {
		if summary.Active {
			return nil
		}
	}

	for _, summary := range summaries {
		if summary.Filled {
			continue
		}
		mosaic, err := repo.GetMosaic(context, summary.ID)
		if err != nil {
			return err
		}
		mosaic.Active = true
		if err := repo.UpdateMosaic(context, mosaic); err != nil {
			return err
		}
		service.logger.InfoContext(context, "mosaic_activated",
			slog.String("mosaic_id", mosaic.ID),
		)
		return nil
	}

	// Pool exhausted: respawn the rotation from the stored originals.
	cloned := 0
	for _, summary := range summaries {
		if !summary.Original {
			continue
		}
		source, err := repo.GetMosaic(context, summary.ID)
		if err != nil {
			return err
		}
		pixels, err := repo.GetPixelBuffer(context, summary.ID, PixelOriginal)
		if err != nil {
			return err
		}

		cloneID, err := service.creation.create(context, repo, pixels,
			source.Title, source.Style, false, cloned == 0)
		if err != nil {
			return err
		}
		cloned++

		service.logger.InfoContext(context, "mosaic_cloned",
			slog.String("source_id", summary.ID),
			slog.String("clone_id", cloneID),
		)
	}

	if cloned == 0 {
		service.logger.WarnContext(context, "rotation_stalled_no_originals")
	}
	return nil
}

// # Admin Operations

// DeleteMosaic removes a mosaic with all its segments, buffers, and
// artifacts. Deleting the active mosaic promotes the next candidate, cloning
// originals if that was the last unfinished mosaic.
func (service *LifecycleManager) DeleteMosaic(context context.Context, id string) error {
	return service.repo.RunInTx(context, func(repo Repository) error {
		mosaic, err := repo.GetMosaic(context, id)
		if err != nil {
			return err
		}
		if err := repo.DeleteMosaic(context, id); err != nil {
			return err
		}

		service.logger.InfoContext(context, "mosaic_deleted",
			slog.String("mosaic_id", id),
		)

		if mosaic.Active {
			return service.activateNext(context, repo)
		}
		return nil
	})
}

// ResetMosaic restores a mosaic to its post-creation state: CURRENT becomes
// the dimmed ORIGINAL again, segments return to their seed fillability, and
// all artifacts regenerate. Applying it twice yields the same state as once.
func (service *LifecycleManager) ResetMosaic(context context.Context, id string) error {
	return service.repo.RunInTx(context, func(repo Repository) error {
		mosaic, err := repo.GetMosaic(context, id)
		if err != nil {
			return err
		}

		original, err := repo.GetPixelBuffer(context, id, PixelOriginal)
		if err != nil {
			return err
		}

		current := imaging.ScaleBrightness(original, mosaic.Style.BGBrightness)
		if err := repo.UpsertPixelBuffer(context, id, PixelCurrent, current); err != nil {
			return err
		}
		if err := encodeCurrentArtifacts(context, repo, id, current, service.settings.ThumbnailSize); err != nil {
			return err
		}

		segments, err := repo.GetSegments(context, SegmentFilter{
			MosaicID:    pointer.To(id),
			RandomOrder: true,
		})
		if err != nil {
			return err
		}
		for _, segment := range segments {
			segment.Filled = false
			segment.Fillable = segment.IsStartSegment
		}
		if err := repo.UpsertSegments(context, segments); err != nil {
			return err
		}

		mosaic.Filled = false
		if err := repo.UpdateMosaic(context, mosaic); err != nil {
			return err
		}

		gif, err := RenderFillingGIF(original, current, segments, service.settings.GIFImageMaxSize)
		if err != nil {
			return apperr.Internal(err)
		}
		if err := repo.UpsertArtifact(context, id, ArtifactFillingGIF, gif); err != nil {
			return err
		}

		service.logger.InfoContext(context, "mosaic_reset",
			slog.String("mosaic_id", id),
			slog.Int("segments", len(segments)),
		)
		return nil
	})
}

// UpdateMosaicState patches the lifecycle flags of a mosaic directly.
// Setting active=true demotes any other active mosaic first, preserving the
// single-active invariant.
func (service *LifecycleManager) UpdateMosaicState(context context.Context, id string, active, filled, original *bool) error {
	return service.repo.RunInTx(context, func(repo Repository) error {
		mosaic, err := repo.GetMosaic(context, id)
		if err != nil {
			return err
		}

		if active != nil && *active && !mosaic.Active {
			summaries, err := repo.ListMosaics(context)
			if err != nil {
				return err
			}
			for _, summary := range summaries {
				if !summary.Active || summary.ID == id {
					continue
				}
				other, err := repo.GetMosaic(context, summary.ID)
				if err != nil {
					return err
				}
				other.Active = false
				if err := repo.UpdateMosaic(context, other); err != nil {
					return err
				}
			}
		}

		mosaic.Active = pointer.Fallback(active, mosaic.Active)
		mosaic.Filled = pointer.Fallback(filled, mosaic.Filled)
		mosaic.Original = pointer.Fallback(original, mosaic.Original)

		return repo.UpdateMosaic(context, mosaic)
	})
}

// ResetSegment restores a single segment to its creation-time state and
// re-dims its region of the CURRENT buffer.
func (service *LifecycleManager) ResetSegment(context context.Context, mosaicID, segmentID string) error {
	return service.repo.RunInTx(context, func(repo Repository) error {
		mosaic, err := repo.GetMosaic(context, mosaicID)
		if err != nil {
			return err
		}

		matches, err := repo.GetSegments(context, SegmentFilter{
			ID:       pointer.To(segmentID),
			MosaicID: pointer.To(mosaicID),
		})
		if err != nil {
			return err
		}
		if len(matches) == 0 {
			return apperr.NotFound("Segment")
		}
		segment := matches[0]

		original, err := repo.GetPixelBuffer(context, mosaicID, PixelOriginal)
		if err != nil {
			return err
		}
		current, err := repo.GetPixelBuffer(context, mosaicID, PixelCurrent)
		if err != nil {
			return err
		}

		crop := original.Region(segment.XMin, segment.YMin, segment.XMax, segment.YMax)
		current.SetRegion(segment.XMin, segment.YMin, imaging.ScaleBrightness(crop, mosaic.Style.BGBrightness))

		segment.Filled = false
		segment.Fillable = segment.IsStartSegment
		if err := repo.UpsertSegments(context, []*Segment{segment}); err != nil {
			return err
		}

		if err := repo.UpsertPixelBuffer(context, mosaicID, PixelCurrent, current); err != nil {
			return err
		}
		if err := encodeCurrentArtifacts(context, repo, mosaicID, current, service.settings.ThumbnailSize); err != nil {
			return err
		}

		unfilled, err := repo.GetSegments(context, SegmentFilter{
			MosaicID:    pointer.To(mosaicID),
			Filled:      pointer.To(false),
			RandomOrder: true,
		})
		if err != nil {
			return err
		}
		gif, err := RenderFillingGIF(original, current, unfilled, service.settings.GIFImageMaxSize)
		if err != nil {
			return apperr.Internal(err)
		}
		return repo.UpsertArtifact(context, mosaicID, ArtifactFillingGIF, gif)
	})
}
