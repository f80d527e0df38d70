// Copyright (c) 2026 Mosava. All rights reserved.
// Author: vann.pham.vn@gmail.com

/*
Package mosaic implements the collaborative photo-mosaic domain.

An admin uploads a source photograph which is partitioned into a grid of
rectangular segments. Visitors upload portraits that are blended into
individual segments, progressively revealing the mosaic. When nearly all
segments are filled the mosaic is archived and the next one in the rotation
becomes active; when the rotation is exhausted, fresh clones are spawned from
the original uploads.

The package is organised by responsibility:

  - mosaic.go: domain entities and brightness classification
  - store.go / store_sqlite.go: repository contract and SQLite implementation
  - grid.go: segment grid planner
  - creation.go: mosaic creation service
  - fill.go: segment sample/fill engine
  - lifecycle.go: finish/rotate/delete/reset management
  - query.go: read-only views for the HTTP layer
  - animation.go: filling-progress GIF renderer
  - http.go / http_admin.go: public and admin HTTP handlers
*/
package mosaic

import (
	"time"

	"github.com/vannpham/mosava/internal/platform/config"
	"github.com/vannpham/mosava/internal/platform/imaging"
)

// # Brightness Tiers

// BrightnessTier buckets a mean luma measurement. Portraits are matched to
// segments of the same tier so fills stay visually coherent.
type BrightnessTier int

const (
	BrightnessInvalid BrightnessTier = -1
	BrightnessLow     BrightnessTier = 0
	BrightnessMedium  BrightnessTier = 1
	BrightnessHigh    BrightnessTier = 2
)

// String returns the lowercase tier name.
func (t BrightnessTier) String() string {
	switch t {
	case BrightnessLow:
		return "low"
	case BrightnessMedium:
		return "medium"
	case BrightnessHigh:
		return "high"
	default:
		return "invalid"
	}
}

// BrightnessRanges holds the configured luma boundaries for each tier.
//
// The ranges may be gapped: a mean luma falling between two ranges
// classifies as [BrightnessInvalid]. Low is inclusive on both ends;
// medium and high are half-open (min exclusive, max inclusive).
type BrightnessRanges struct {
	LowMin, LowMax       int
	MediumMin, MediumMax int
	HighMin, HighMax     int
}

// Classify maps a mean luma in [0, 255] to its brightness tier.
func (r BrightnessRanges) Classify(meanLuma float64) BrightnessTier {
	switch {
	case meanLuma >= float64(r.LowMin) && meanLuma <= float64(r.LowMax):
		return BrightnessLow
	case meanLuma > float64(r.MediumMin) && meanLuma <= float64(r.MediumMax):
		return BrightnessMedium
	case meanLuma > float64(r.HighMin) && meanLuma <= float64(r.HighMax):
		return BrightnessHigh
	default:
		return BrightnessInvalid
	}
}

// ClassifyPixels measures the buffer's mean luma and classifies it.
func (r BrightnessRanges) ClassifyPixels(pixels *imaging.Pixels) BrightnessTier {
	return r.Classify(imaging.MeanLuma(pixels))
}

// # Domain Entities

// StyleConfig captures the per-mosaic rendering parameters chosen at upload.
type StyleConfig struct {
	// NumSegments is the target segment count for the grid planner.
	NumSegments int `json:"num_segments"`
	// BGBrightness dims the source image into the unfilled background (0, 1].
	BGBrightness float64 `json:"bg_brightness"`
	// MosaicBlend weights the portrait against the original crop when filling.
	MosaicBlend float64 `json:"mosaic_blend"`
	// SegmentBlend weights the portrait in the read-only sample preview.
	SegmentBlend float64 `json:"segment_blend"`
	// BlurLow/Medium/High are the preview blur radii per segment tier.
	BlurLow    int `json:"blur_low"`
	BlurMedium int `json:"blur_medium"`
	BlurHigh   int `json:"blur_high"`
}

// DefaultStyle returns the style applied when an upload omits parameters.
func DefaultStyle(targetSegments int) StyleConfig {
	return StyleConfig{
		NumSegments:  targetSegments,
		BGBrightness: 0.25,
		MosaicBlend:  0.25,
		SegmentBlend: 0.4,
		BlurLow:      4,
		BlurMedium:   3,
		BlurHigh:     2,
	}
}

// BlurFor returns the preview blur radius configured for the given tier.
func (s StyleConfig) BlurFor(tier BrightnessTier) int {
	switch tier {
	case BrightnessLow:
		return s.BlurLow
	case BrightnessHigh:
		return s.BlurHigh
	default:
		return s.BlurMedium
	}
}

// Mosaic is the aggregate root: one source photograph, its grid geometry,
// and its lifecycle flags.
//
// At most one mosaic in the collection has Active=true at rest.
type Mosaic struct {
	ID    string `json:"id"`
	Idx   int    `json:"idx"`
	Title string `json:"title"`

	Active   bool `json:"active"`
	Filled   bool `json:"filled"`
	Original bool `json:"original"`

	SegmentWidth  int `json:"segment_width"`
	SegmentHeight int `json:"segment_height"`
	Rows          int `json:"rows"`
	Cols          int `json:"cols"`
	// SpaceTop/SpaceLeft center the grid inside the source image.
	SpaceTop  int `json:"space_top"`
	SpaceLeft int `json:"space_left"`

	Style StyleConfig `json:"style"`

	CreatedAt time.Time `json:"-"`
}

// Segment is one grid cell of a mosaic, the unit of fill.
//
// State machine: UNAVAILABLE (fillable=false, filled=false) -> FILLABLE ->
// FILLED. A segment becomes FILLABLE only as a seed at creation or when a
// neighbor fills. Invariant: Filled implies !Fillable.
type Segment struct {
	ID       string `json:"id"`
	MosaicID string `json:"mosaic_id"`

	RowIdx int `json:"row_idx"`
	ColIdx int `json:"col_idx"`

	// Pixel bounding box inside the mosaic buffers; max edges exclusive.
	XMin int `json:"x_min"`
	XMax int `json:"x_max"`
	YMin int `json:"y_min"`
	YMax int `json:"y_max"`

	Brightness BrightnessTier `json:"brightness"`

	Fillable bool `json:"fillable"`
	Filled   bool `json:"filled"`
	// IsStartSegment marks the creation-time seed set, restored on reset.
	IsStartSegment bool `json:"is_start_segment"`

	// RandomSortKey is a unique value from a shuffled permutation of
	// [0, rows*cols), assigned once at creation. Ordering by it yields a
	// stable pseudo-random iteration order for the mosaic's lifetime.
	RandomSortKey int `json:"-"`
}

// # Stored Binaries

// PixelCategory names the two full-resolution buffers kept per mosaic.
type PixelCategory string

const (
	// PixelOriginal is the immutable decoded source image.
	PixelOriginal PixelCategory = "original"
	// PixelCurrent is the working image, mutated region-by-region as
	// segments fill.
	PixelCurrent PixelCategory = "current"
)

// ArtifactCategory names the derived encodings cached per mosaic.
// Artifacts are regenerated whenever the underlying buffer changes and are
// never a source of truth.
type ArtifactCategory string

const (
	ArtifactOriginalJPEG     ArtifactCategory = "original_jpeg"
	ArtifactCurrentJPEG      ArtifactCategory = "current_jpeg"
	ArtifactCurrentThumbnail ArtifactCategory = "current_thumbnail_jpeg"
	ArtifactFillingGIF       ArtifactCategory = "filling_gif"
)

// # Views

// MosaicSummary is the list-view projection of a mosaic.
type MosaicSummary struct {
	ID       string `json:"id"`
	Idx      int    `json:"idx"`
	Title    string `json:"title"`
	Active   bool   `json:"active"`
	Filled   bool   `json:"filled"`
	Original bool   `json:"original"`
}

// TierStats counts unfilled segments per brightness tier.
type TierStats struct {
	Low    int `json:"low"`
	Medium int `json:"medium"`
	High   int `json:"high"`
}

// Total returns the unfilled segment count across all tiers.
func (s TierStats) Total() int {
	return s.Low + s.Medium + s.High
}

// # Settings

// Settings carries the runtime tuning shared by the mosaic services.
type Settings struct {
	// OriginalImageMaxSize caps the longer side of an uploaded source image.
	OriginalImageMaxSize int
	// ThumbnailSize caps the longer side of the current-thumbnail artifact.
	ThumbnailSize int
	// GIFImageMaxSize caps the frame size of the filling animation.
	GIFImageMaxSize int
	// SampleImageMaxSize caps the portrait size in sample previews.
	SampleImageMaxSize int

	// UnusedAreaWeight is the grid planner's border-waste penalty.
	UnusedAreaWeight int
	// RatioWidth:RatioHeight is the segment aspect ratio.
	RatioWidth  int
	RatioHeight int

	// NumSegmentsStart is the per-tier seed size of the initial fillable set.
	NumSegmentsStart int
	// NumSegmentsMin finishes a mosaic when its unfilled count drops below it.
	NumSegmentsMin int
	// SampleCandidatePool fixes the candidate count for reproducible previews.
	SampleCandidatePool int

	Brightness BrightnessRanges
}

// SettingsFromConfig projects the application configuration into [Settings].
func SettingsFromConfig(cfg *config.Config) Settings {
	return Settings{
		OriginalImageMaxSize: cfg.OriginalImageMaxSize,
		ThumbnailSize:        cfg.ThumbnailSize,
		GIFImageMaxSize:      cfg.GIFImageMaxSize,
		SampleImageMaxSize:   cfg.SampleImageMaxSize,
		UnusedAreaWeight:     cfg.UnusedAreaWeight,
		RatioWidth:           cfg.SegmentRatioWidth,
		RatioHeight:          cfg.SegmentRatioHeight,
		NumSegmentsStart:     cfg.NumSegmentsStart,
		NumSegmentsMin:       cfg.NumSegmentsMin,
		SampleCandidatePool:  cfg.SampleCandidatePool,
		Brightness: BrightnessRanges{
			LowMin:    cfg.LowBrightnessMin,
			LowMax:    cfg.LowBrightnessMax,
			MediumMin: cfg.MediumBrightnessMin,
			MediumMax: cfg.MediumBrightnessMax,
			HighMin:   cfg.HighBrightnessMin,
			HighMax:   cfg.HighBrightnessMax,
		},
	}
}
