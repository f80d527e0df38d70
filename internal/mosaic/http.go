// Copyright (c) 2026 Mosava. All rights reserved.
// Author: vann.pham.vn@gmail.com

/*
Package mosaic provides the public HTTP interface of the mosaic service.

# Routing Strategy

  - Public (v1): viewing endpoints for the mosaic collection and upload
    endpoints for visitor portraits (sample previews and explicit fills).
  - Admin (v1): mosaic management, mounted separately behind the admin
    guard (see http_admin.go).

The handler translates between the web layer and the internal domain
services; image endpoints return raw JPEG/GIF bytes with identifying
headers instead of the JSON envelope.
*/
package mosaic

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/vannpham/mosava/internal/platform/constants"
	requestutil "github.com/vannpham/mosava/internal/platform/request"
	"github.com/vannpham/mosava/internal/platform/respond"
)

// # Handler Implementation

// Handler implements the public HTTP layer.
type Handler struct {
	fill  *FillEngine
	query *QueryService
}

// NewHandler constructs the public mosaic [Handler].
func NewHandler(fill *FillEngine, query *QueryService) *Handler {
	return &Handler{fill: fill, query: query}
}

// RegisterRoutes attaches the public mosaic endpoints to the API router.
// The literal mosaic ID "current" resolves to the active mosaic.
func (handler *Handler) RegisterRoutes(api chi.Router) {
	api.Route("/mosaics", func(router chi.Router) {
		router.Get("/", handler.ListMosaics)

		router.Route("/{mosaicID}", func(router chi.Router) {
			router.Get("/metadata", handler.GetMetadata)
			router.Get("/image", handler.GetCurrentImage)
			router.Get("/thumbnail", handler.GetThumbnail)
			router.Get("/original", handler.GetOriginalImage)
			router.Get("/gif", handler.GetFillingGIF)

			router.Post("/segments/sample", handler.SampleSegment)
			router.Post("/segments/{segmentID}/fill", handler.FillSegment)
		})
	})
}

// # Collection Views

/*
GET /api/v1/mosaics.

Description: Returns summaries for the whole collection in creation order.

Request:
  - filter: string (all, active, filled, original)

Response:
  - 200: []MosaicSummary
*/
func (handler *Handler) ListMosaics(writer http.ResponseWriter, request *http.Request) {
	summaries, err := handler.query.ListMosaics(request.Context(), request.URL.Query().Get("filter"))
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	respond.OK(writer, summaries)
}

/*
GET /api/v1/mosaics/{mosaicID}/metadata.

Description: Returns the mosaic's geometry, lifecycle flags, style, and
per-tier unfilled segment counts.
*/
func (handler *Handler) GetMetadata(writer http.ResponseWriter, request *http.Request) {
	id, err := handler.resolveID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	metadata, err := handler.query.GetMosaicMetadata(request.Context(), id)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	respond.OK(writer, metadata)
}

// # Image Views

// GET /api/v1/mosaics/{mosaicID}/image returns the current mosaic JPEG.
func (handler *Handler) GetCurrentImage(writer http.ResponseWriter, request *http.Request) {
	handler.serveArtifact(writer, request, ArtifactCurrentJPEG)
}

// GET /api/v1/mosaics/{mosaicID}/thumbnail returns the current thumbnail JPEG.
func (handler *Handler) GetThumbnail(writer http.ResponseWriter, request *http.Request) {
	handler.serveArtifact(writer, request, ArtifactCurrentThumbnail)
}

// GET /api/v1/mosaics/{mosaicID}/original returns the source image JPEG.
func (handler *Handler) GetOriginalImage(writer http.ResponseWriter, request *http.Request) {
	handler.serveArtifact(writer, request, ArtifactOriginalJPEG)
}

// GET /api/v1/mosaics/{mosaicID}/gif returns the filling-progress animation.
func (handler *Handler) GetFillingGIF(writer http.ResponseWriter, request *http.Request) {
	id, err := handler.resolveID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	payload, err := handler.query.GetArtifact(request.Context(), id, ArtifactFillingGIF)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	respond.GIF(writer, id, payload)
}

// # Portrait Uploads

/*
POST /api/v1/mosaics/{mosaicID}/segments/sample.

Description: Returns a read-only JPEG preview of the uploaded portrait
blended into a matching segment. The chosen segment's ID is exposed in the
segment_id response header.

Request:
  - file: multipart image upload
  - sample_index: int (pins the candidate choice for reproducible previews)

Response:
  - 200: image/jpeg preview
  - 404: No fillable segment remains
*/
func (handler *Handler) SampleSegment(writer http.ResponseWriter, request *http.Request) {
	id, err := handler.resolveID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	portrait, err := requestutil.UploadedImage(writer, request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	sampleIndex := requestutil.QueryInt(request, "sample_index", 0)

	preview, segmentID, err := handler.fill.SampleSegment(request.Context(), id, portrait, sampleIndex)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	writer.Header().Set(constants.HeaderSegmentID, segmentID)
	respond.JPEG(writer, id, preview)
}

/*
POST /api/v1/mosaics/{mosaicID}/segments/{segmentID}/fill.

Description: Composites the uploaded portrait into the chosen segment and
propagates fillability to its neighbors.

Request:
  - file: multipart image upload

Response:
  - 204: Segment filled
  - 404: Segment does not belong to this mosaic
  - 422: Upload rejected by content policy
*/
func (handler *Handler) FillSegment(writer http.ResponseWriter, request *http.Request) {
	id, err := handler.resolveID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	segmentID := requestutil.Param(request, "segmentID")

	portrait, err := requestutil.UploadedImage(writer, request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	if err := handler.fill.FillSegment(request.Context(), id, segmentID, portrait); err != nil {
		respond.Error(writer, request, err)
		return
	}
	respond.NoContent(writer)
}

// # Handler Helpers

// serveArtifact streams a stored JPEG artifact for the addressed mosaic.
func (handler *Handler) serveArtifact(writer http.ResponseWriter, request *http.Request, category ArtifactCategory) {
	id, err := handler.resolveID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	payload, err := handler.query.GetArtifact(request.Context(), id, category)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	respond.JPEG(writer, id, payload)
}

// resolveID extracts the mosaic ID path parameter and resolves the
// "current" alias.
func (handler *Handler) resolveID(request *http.Request) (string, error) {
	return handler.query.ResolveID(request.Context(), requestutil.Param(request, "mosaicID"))
}
