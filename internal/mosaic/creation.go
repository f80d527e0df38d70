// Copyright (c) 2026 Mosava. All rights reserved.
// Author: vann.pham.vn@gmail.com

package mosaic

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/vannpham/mosava/internal/platform/apperr"
	"github.com/vannpham/mosava/internal/platform/imaging"
	"github.com/vannpham/mosava/internal/platform/validate"
	"github.com/vannpham/mosava/pkg/uuidv7"
)

const (
	FieldNumSegments  = "num_segments"
	FieldBGBrightness = "bg_brightness"
	FieldMosaicBlend  = "mosaic_blend"
	FieldSegmentBlend = "segment_blend"
	FieldBlur         = "blur"
	FieldBlurLow      = "blur_low"
	FieldBlurMedium   = "blur_medium"
	FieldBlurHigh     = "blur_high"
	FieldFile         = "file"
)

// # Creation Service

// CreationService builds new mosaics: grid planning, brightness
// classification, seed selection, and all initial buffers and artifacts.
type CreationService struct {
	repo     Repository
	settings Settings
	logger   *slog.Logger
}

// NewCreationService constructs a [CreationService].
func NewCreationService(repo Repository, settings Settings, logger *slog.Logger) *CreationService {
	return &CreationService{
		repo:     repo,
		settings: settings,
		logger:   logger,
	}
}

/*
CreateMosaic builds a complete mosaic from an uploaded source image.

Description: Decodes and downsizes the image, plans the segment grid,
classifies every cell's brightness, seeds the initial fillable set, and
persists the metadata, both pixel buffers, and all derived artifacts in one
transaction. The first mosaic ever created becomes active.

Parameters:
  - context: context.Context
  - imageBytes: []byte (JPEG or PNG upload)
  - title: string
  - style: StyleConfig (rendering parameters)

Returns:
  - string: The new mosaic ID
  - error: Validation errors for corrupt images, out-of-range style values,
    or brightness classification gaps
*/
func (service *CreationService) CreateMosaic(context context.Context, imageBytes []byte, title string, style StyleConfig) (string, error) {

	if err := validateStyle(style); err != nil {
		return "", err
	}

	pixels, err := imaging.Decode(imageBytes)
	if err != nil {
		return "", apperr.ValidationError("Uploaded image is corrupt or not a supported format")
	}

	// Cap the working resolution; everything downstream derives from this.
	pixels = imaging.Thumbnail(pixels, service.settings.OriginalImageMaxSize)

	var id string
	err = service.repo.RunInTx(context, func(repo Repository) error {
		count, err := repo.MosaicCount(context)
		if err != nil {
			return err
		}

		id, err = service.create(context, repo, pixels, title, style, true, count == 0)
		return err
	})
	if err != nil {
		return "", err
	}

	service.logger.InfoContext(context, "mosaic_created",
		slog.String("mosaic_id", id),
		slog.String("title", title),
	)
	return id, nil
}

// create builds and persists one mosaic inside the caller's transaction.
// The lifecycle manager reuses it to spawn clones from stored originals.
func (service *CreationService) create(context context.Context, repo Repository, pixels *imaging.Pixels, title string, style StyleConfig, original, active bool) (string, error) {

	plan := PlanGrid(pixels.Width, pixels.Height, style.NumSegments,
		service.settings.RatioWidth, service.settings.RatioHeight,
		service.settings.UnusedAreaWeight)
	if plan.Count() == 0 {
		return "", apperr.ValidationError("Image is too small for the requested segment count")
	}

	mosaic := &Mosaic{
		ID:            uuidv7.New(),
		Title:         title,
		Active:        active,
		Original:      original,
		SegmentWidth:  plan.SegmentWidth,
		SegmentHeight: plan.SegmentHeight,
		Rows:          plan.Rows,
		Cols:          plan.Cols,
		SpaceTop:      (pixels.Height - plan.Rows*plan.SegmentHeight) / 2,
		SpaceLeft:     (pixels.Width - plan.Cols*plan.SegmentWidth) / 2,
		Style:         style,
	}
	if err := repo.InsertMosaic(context, mosaic); err != nil {
		return "", err
	}

	// ORIGINAL buffer and its JPEG artifact.
	if err := repo.UpsertPixelBuffer(context, mosaic.ID, PixelOriginal, pixels); err != nil {
		return "", err
	}
	originalJPEG, err := imaging.EncodeJPEG(pixels)
	if err != nil {
		return "", apperr.Internal(err)
	}
	if err := repo.UpsertArtifact(context, mosaic.ID, ArtifactOriginalJPEG, originalJPEG); err != nil {
		return "", err
	}

	// CURRENT starts as the dimmed original.
	current := imaging.ScaleBrightness(pixels, style.BGBrightness)
	if err := repo.UpsertPixelBuffer(context, mosaic.ID, PixelCurrent, current); err != nil {
		return "", err
	}
	if err := encodeCurrentArtifacts(context, repo, mosaic.ID, current, service.settings.ThumbnailSize); err != nil {
		return "", err
	}

	segments, err := service.buildSegments(context, mosaic, pixels)
	if err != nil {
		return "", err
	}
	if err := repo.UpsertSegments(context, segments); err != nil {
		return "", err
	}

	// Initial progress animation: every segment is still unfilled.
	sort.Slice(segments, func(i, j int) bool {
		return segments[i].RandomSortKey < segments[j].RandomSortKey
	})
	gif, err := RenderFillingGIF(pixels, current, segments, service.settings.GIFImageMaxSize)
	if err != nil {
		return "", apperr.Internal(err)
	}
	if err := repo.UpsertArtifact(context, mosaic.ID, ArtifactFillingGIF, gif); err != nil {
		return "", err
	}

	return mosaic.ID, nil
}

// buildSegments classifies every grid cell and seeds the fillable set.
func (service *CreationService) buildSegments(context context.Context, mosaic *Mosaic, pixels *imaging.Pixels) ([]*Segment, error) {

	total := mosaic.Rows * mosaic.Cols
	sortKeys := rand.Perm(total)
	tiers := make([]BrightnessTier, total)

	// Brightness classification is embarrassingly parallel over crops.
	var group errgroup.Group
	group.SetLimit(runtime.NumCPU())

	for row := 0; row < mosaic.Rows; row++ {
		for col := 0; col < mosaic.Cols; col++ {
			row, col := row, col
			group.Go(func() error {
				xMin := mosaic.SpaceLeft + col*mosaic.SegmentWidth
				yMin := mosaic.SpaceTop + row*mosaic.SegmentHeight
				crop := pixels.Region(xMin, yMin, xMin+mosaic.SegmentWidth, yMin+mosaic.SegmentHeight)

				tier := service.settings.Brightness.ClassifyPixels(crop)
				if tier == BrightnessInvalid {
					return apperr.ValidationError("Segment brightness falls outside every configured range")
				}
				tiers[row*mosaic.Cols+col] = tier
				return nil
			})
		}
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}

	segments := make([]*Segment, 0, total)
	// Seed candidates per tier, split into the center block of the grid
	// (middle two quarters of rows and columns) and the surrounding edge.
	centerByTier := map[BrightnessTier][]*Segment{}
	edgeByTier := map[BrightnessTier][]*Segment{}

	rowQuarter, colQuarter := mosaic.Rows/4, mosaic.Cols/4

	for row := 0; row < mosaic.Rows; row++ {
		for col := 0; col < mosaic.Cols; col++ {
			idx := row*mosaic.Cols + col
			xMin := mosaic.SpaceLeft + col*mosaic.SegmentWidth
			yMin := mosaic.SpaceTop + row*mosaic.SegmentHeight

			segment := &Segment{
				ID:            uuidv7.New(),
				MosaicID:      mosaic.ID,
				RowIdx:        row,
				ColIdx:        col,
				XMin:          xMin,
				XMax:          xMin + mosaic.SegmentWidth,
				YMin:          yMin,
				YMax:          yMin + mosaic.SegmentHeight,
				Brightness:    tiers[idx],
				RandomSortKey: sortKeys[idx],
			}
			segments = append(segments, segment)

			isCenter := row >= rowQuarter && row <= rowQuarter*3 &&
				col >= colQuarter && col <= colQuarter*3
			if isCenter {
				centerByTier[segment.Brightness] = append(centerByTier[segment.Brightness], segment)
			} else {
				edgeByTier[segment.Brightness] = append(edgeByTier[segment.Brightness], segment)
			}
		}
	}

	// Seed up to NumSegmentsStart fillable segments per tier, preferring the
	// center so early fills land where viewers look first.
	for _, tier := range []BrightnessTier{BrightnessLow, BrightnessMedium, BrightnessHigh} {
		remaining := service.settings.NumSegmentsStart
		for _, pool := range [][]*Segment{centerByTier[tier], edgeByTier[tier]} {
			if remaining <= 0 {
				break
			}
			rand.Shuffle(len(pool), func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })
			for _, segment := range pool {
				if remaining <= 0 {
					break
				}
				segment.Fillable = true
				segment.IsStartSegment = true
				remaining--
			}
		}
	}

	return segments, nil
}

// validateStyle checks the uploaded style parameters.
func validateStyle(style StyleConfig) error {
	validator := &validate.Validator{}
	validator.Positive(FieldNumSegments, style.NumSegments)
	validator.FloatRange(FieldBGBrightness, style.BGBrightness, 0.01, 1)
	validator.FloatRange(FieldMosaicBlend, style.MosaicBlend, 0, 1)
	validator.FloatRange(FieldSegmentBlend, style.SegmentBlend, 0, 1)
	validator.Custom(FieldBlur, style.BlurLow < 0 || style.BlurMedium < 0 || style.BlurHigh < 0,
		"Blur radii cannot be negative")
	return validator.Err()
}
