// Copyright (c) 2026 Mosava. All rights reserved.
// Author: vann.pham.vn@gmail.com

package mosaic

import (
	"context"

	"github.com/vannpham/mosava/internal/platform/imaging"
)

// SegmentFilter is the typed query criteria for segment lookups. Nil fields
// are not constrained.
type SegmentFilter struct {
	ID         *string
	MosaicID   *string
	Brightness *BrightnessTier
	Fillable   *bool
	Filled     *bool
	RowIdx     *int
	ColIdx     *int

	// RandomOrder sorts by the precomputed RandomSortKey ascending, giving a
	// stable pseudo-shuffle. When false, results follow grid order
	// (row, then column).
	RandomOrder bool
	// Limit caps the result size; zero means unlimited.
	Limit int
}

// Repository is the persistence contract consumed by every mosaic service.
//
// Implementations must support nesting through [Repository.RunInTx]: the
// repository passed to the callback operates inside one transaction, and all
// other methods called on it see and produce uncommitted state until the
// callback returns.
type Repository interface {
	// InsertMosaic persists a new mosaic and assigns its monotonic Idx.
	InsertMosaic(context context.Context, m *Mosaic) error
	UpdateMosaic(context context.Context, m *Mosaic) error
	GetMosaic(context context.Context, id string) (*Mosaic, error)
	// DeleteMosaic removes a mosaic; segments, pixel buffers, and artifacts
	// cascade.
	DeleteMosaic(context context.Context, id string) error
	// ListMosaics returns summaries for the whole collection in Idx order.
	ListMosaics(context context.Context) ([]*MosaicSummary, error)
	MosaicCount(context context.Context) (int, error)
	MosaicExists(context context.Context, id string) (bool, error)

	// UpsertSegments inserts or updates segments in bulk.
	UpsertSegments(context context.Context, segments []*Segment) error
	GetSegments(context context.Context, filter SegmentFilter) ([]*Segment, error)
	SegmentExists(context context.Context, mosaicID, segmentID string) (bool, error)
	// SegmentStats counts the unfilled segments of a mosaic per tier.
	SegmentStats(context context.Context, mosaicID string) (TierStats, error)

	UpsertPixelBuffer(context context.Context, mosaicID string, category PixelCategory, pixels *imaging.Pixels) error
	GetPixelBuffer(context context.Context, mosaicID string, category PixelCategory) (*imaging.Pixels, error)

	UpsertArtifact(context context.Context, mosaicID string, category ArtifactCategory, payload []byte) error
	GetArtifact(context context.Context, mosaicID string, category ArtifactCategory) ([]byte, error)

	// RunInTx executes fn inside a single transaction. A nil return commits;
	// any error rolls back. Calling RunInTx on an already-transactional
	// repository reuses the outer transaction.
	RunInTx(context context.Context, fn func(Repository) error) error
}
