// Copyright (c) 2026 Mosava. All rights reserved.
// Author: vann.pham.vn@gmail.com

package mosaic

import (
	"context"
	"log/slog"

	"github.com/vannpham/mosava/internal/platform/apperr"
	"github.com/vannpham/mosava/internal/platform/validate"
	"github.com/vannpham/mosava/pkg/pointer"
)

// List filters accepted by [QueryService.ListMosaics].
const (
	ListAll      = "all"
	ListActive   = "active"
	ListFilled   = "filled"
	ListOriginal = "original"
)

// CurrentMosaicAlias lets public routes address the active mosaic without
// knowing its ID.
const CurrentMosaicAlias = "current"

// MosaicMetadata is the detail view: the mosaic plus its unfilled counts.
type MosaicMetadata struct {
	*Mosaic
	Unfilled      TierStats `json:"unfilled"`
	TotalSegments int       `json:"total_segments"`
}

// QueryService serves the read-only views consumed by the HTTP layer.
type QueryService struct {
	repo   Repository
	logger *slog.Logger
}

// NewQueryService constructs a [QueryService].
func NewQueryService(repo Repository, logger *slog.Logger) *QueryService {
	return &QueryService{repo: repo, logger: logger}
}

// ListMosaics returns collection summaries, optionally narrowed to the
// active, filled, or original subset. An empty filter means all.
func (service *QueryService) ListMosaics(context context.Context, filter string) ([]*MosaicSummary, error) {
	if filter == "" {
		filter = ListAll
	}

	validator := &validate.Validator{}
	validator.OneOf("filter", filter, ListAll, ListActive, ListFilled, ListOriginal)
	if err := validator.Err(); err != nil {
		return nil, err
	}

	summaries, err := service.repo.ListMosaics(context)
	if err != nil {
		return nil, err
	}
	if filter == ListAll {
		return summaries, nil
	}

	filtered := make([]*MosaicSummary, 0, len(summaries))
	for _, summary := range summaries {
		switch filter {
		case ListActive:
			if summary.Active {
				filtered = append(filtered, summary)
			}
		case ListFilled:
			if summary.Filled {
				filtered = append(filtered, summary)
			}
		case ListOriginal:
			if summary.Original {
				filtered = append(filtered, summary)
			}
		}
	}
	return filtered, nil
}

// ResolveID maps the "current" alias to the active mosaic's ID; any other
// value passes through unchanged.
func (service *QueryService) ResolveID(context context.Context, idOrAlias string) (string, error) {
	if idOrAlias != CurrentMosaicAlias {
		return idOrAlias, nil
	}

	summaries, err := service.repo.ListMosaics(context)
	if err != nil {
		return "", err
	}
	for _, summary := range summaries {
		if summary.Active {
			return summary.ID, nil
		}
	}
	return "", apperr.NotFound("Active mosaic")
}

// GetMosaicMetadata returns the mosaic with its per-tier unfilled counts.
func (service *QueryService) GetMosaicMetadata(context context.Context, id string) (*MosaicMetadata, error) {
	mosaic, err := service.repo.GetMosaic(context, id)
	if err != nil {
		return nil, err
	}

	stats, err := service.repo.SegmentStats(context, id)
	if err != nil {
		return nil, err
	}

	return &MosaicMetadata{
		Mosaic:        mosaic,
		Unfilled:      stats,
		TotalSegments: mosaic.Rows * mosaic.Cols,
	}, nil
}

// GetArtifact returns a stored derived encoding for a mosaic.
func (service *QueryService) GetArtifact(context context.Context, id string, category ArtifactCategory) ([]byte, error) {
	return service.repo.GetArtifact(context, id, category)
}

// ListSegments returns every segment of a mosaic in grid order.
func (service *QueryService) ListSegments(context context.Context, mosaicID string) ([]*Segment, error) {
	exists, err := service.repo.MosaicExists(context, mosaicID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, apperr.NotFound("Mosaic")
	}

	return service.repo.GetSegments(context, SegmentFilter{
		MosaicID: pointer.To(mosaicID),
	})
}
