// Copyright (c) 2026 Mosava. All rights reserved.
// Author: vann.pham.vn@gmail.com

package mosaic

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	requestutil "github.com/vannpham/mosava/internal/platform/request"
	"github.com/vannpham/mosava/internal/platform/respond"
)

// defaultTargetSegments is the grid target applied when an upload omits
// num_segments.
const defaultTargetSegments = 300

// # Admin Handler

// AdminHandler implements the management HTTP layer. The server mounts it
// behind the admin token guard.
type AdminHandler struct {
	creation  *CreationService
	lifecycle *LifecycleManager
	fill      *FillEngine
	query     *QueryService
}

// NewAdminHandler constructs the [AdminHandler].
func NewAdminHandler(creation *CreationService, lifecycle *LifecycleManager, fill *FillEngine, query *QueryService) *AdminHandler {
	return &AdminHandler{
		creation:  creation,
		lifecycle: lifecycle,
		fill:      fill,
		query:     query,
	}
}

// RegisterRoutes attaches the admin mosaic endpoints.
func (handler *AdminHandler) RegisterRoutes(api chi.Router) {
	api.Route("/mosaics", func(router chi.Router) {
		router.Post("/", handler.CreateMosaic)

		router.Route("/{mosaicID}", func(router chi.Router) {
			router.Delete("/", handler.DeleteMosaic)
			router.Post("/reset", handler.ResetMosaic)
			router.Patch("/state", handler.UpdateState)
			router.Post("/fill", handler.FillRandom)

			router.Get("/segments", handler.ListSegments)
			router.Post("/segments/{segmentID}/reset", handler.ResetSegment)
		})
	})
}

// # Mosaic Creation

/*
POST /api/v1/admin/mosaics.

Description: Creates a new mosaic from an uploaded source image. Style
parameters arrive as multipart form fields alongside the file; omitted
fields fall back to the defaults.

Request:
  - file: multipart image upload
  - title: string
  - num_segments: int
  - bg_brightness, mosaic_blend, segment_blend: float
  - blur_low, blur_medium, blur_high: int

Response:
  - 201: {"id": string}
  - 400: Corrupt image or out-of-range style values
*/
func (handler *AdminHandler) CreateMosaic(writer http.ResponseWriter, request *http.Request) {
	imageBytes, err := requestutil.UploadedImage(writer, request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	style := DefaultStyle(defaultTargetSegments)
	style.NumSegments = formInt(request, FieldNumSegments, style.NumSegments)
	style.BGBrightness = formFloat(request, FieldBGBrightness, style.BGBrightness)
	style.MosaicBlend = formFloat(request, FieldMosaicBlend, style.MosaicBlend)
	style.SegmentBlend = formFloat(request, FieldSegmentBlend, style.SegmentBlend)
	style.BlurLow = formInt(request, FieldBlurLow, style.BlurLow)
	style.BlurMedium = formInt(request, FieldBlurMedium, style.BlurMedium)
	style.BlurHigh = formInt(request, FieldBlurHigh, style.BlurHigh)

	id, err := handler.creation.CreateMosaic(request.Context(), imageBytes, request.FormValue("title"), style)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	respond.Created(writer, map[string]string{"id": id})
}

// # Lifecycle Management

// DELETE /api/v1/admin/mosaics/{mosaicID} removes a mosaic; deleting the
// active one promotes the next candidate.
func (handler *AdminHandler) DeleteMosaic(writer http.ResponseWriter, request *http.Request) {
	if err := handler.lifecycle.DeleteMosaic(request.Context(), requestutil.Param(request, "mosaicID")); err != nil {
		respond.Error(writer, request, err)
		return
	}
	respond.NoContent(writer)
}

// POST /api/v1/admin/mosaics/{mosaicID}/reset restores the post-creation state.
func (handler *AdminHandler) ResetMosaic(writer http.ResponseWriter, request *http.Request) {
	if err := handler.lifecycle.ResetMosaic(request.Context(), requestutil.Param(request, "mosaicID")); err != nil {
		respond.Error(writer, request, err)
		return
	}
	respond.NoContent(writer)
}

// updateStateRequest defines the inbound JSON schema for flag patches.
// Absent fields leave the flag unchanged.
type updateStateRequest struct {
	Active   *bool `json:"active"`
	Filled   *bool `json:"filled"`
	Original *bool `json:"original"`
}

/*
PATCH /api/v1/admin/mosaics/{mosaicID}/state.

Description: Patches the lifecycle flags directly. Activating a mosaic
demotes whichever mosaic was active before.
*/
func (handler *AdminHandler) UpdateState(writer http.ResponseWriter, request *http.Request) {
	var body updateStateRequest
	if err := requestutil.DecodeJSON(request, &body); err != nil {
		respond.Error(writer, request, err)
		return
	}

	id := requestutil.Param(request, "mosaicID")
	if err := handler.lifecycle.UpdateMosaicState(request.Context(), id, body.Active, body.Filled, body.Original); err != nil {
		respond.Error(writer, request, err)
		return
	}
	respond.NoContent(writer)
}

// # Segment Management

// GET /api/v1/admin/mosaics/{mosaicID}/segments lists every segment in grid order.
func (handler *AdminHandler) ListSegments(writer http.ResponseWriter, request *http.Request) {
	segments, err := handler.query.ListSegments(request.Context(), requestutil.Param(request, "mosaicID"))
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	respond.OK(writer, segments)
}

// POST /api/v1/admin/mosaics/{mosaicID}/segments/{segmentID}/reset restores a
// single segment and re-dims its region.
func (handler *AdminHandler) ResetSegment(writer http.ResponseWriter, request *http.Request) {
	err := handler.lifecycle.ResetSegment(request.Context(),
		requestutil.Param(request, "mosaicID"),
		requestutil.Param(request, "segmentID"))
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	respond.NoContent(writer)
}

/*
POST /api/v1/admin/mosaics/{mosaicID}/fill.

Description: Fills automatically chosen segments with the uploaded portrait,
one by default or five with quick_fill=true. Used to speed a mosaic toward
completion.
*/
func (handler *AdminHandler) FillRandom(writer http.ResponseWriter, request *http.Request) {
	id := requestutil.Param(request, "mosaicID")

	portrait, err := requestutil.UploadedImage(writer, request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	quickFill := false
	if flag := requestutil.QueryBool(request, "quick_fill"); flag != nil {
		quickFill = *flag
	}

	if err := handler.fill.FillRandomSegments(request.Context(), id, portrait, quickFill); err != nil {
		respond.Error(writer, request, err)
		return
	}
	respond.NoContent(writer)
}

// # Form Helpers

func formInt(request *http.Request, field string, fallback int) int {
	raw := request.FormValue(field)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}

func formFloat(request *http.Request, field string, fallback float64) float64 {
	raw := request.FormValue(field)
	if raw == "" {
		return fallback
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fallback
	}
	return value
}
