// Copyright (c) 2026 Mosava. All rights reserved.
// Author: vann.pham.vn@gmail.com

/*
Package requestutil provides utilities for extracting data from HTTP requests.

It abstracts away the underlying router's parameter extraction, common body
decoding patterns, and multipart image uploads, ensuring consistent error
handling and type safety.
*/
package requestutil

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/vannpham/mosava/internal/platform/apperr"
	"github.com/vannpham/mosava/internal/platform/constants"
	"github.com/vannpham/mosava/internal/platform/validate"
)

/*
DecodeJSON reads the request body and decodes it into the target structure.

Parameters:
  - request: *http.Request
  - target: interface{} (Pointer to the destination struct)

Returns:
  - error: validate.ErrInvalidJSON if decoding fails, otherwise nil
*/
func DecodeJSON(request *http.Request, target interface{}) error {
	if err := json.NewDecoder(request.Body).Decode(target); err != nil {
		return validate.ErrInvalidJSON
	}
	return nil
}

/*
Param retrieves a named URL parameter from the request.
*/
func Param(request *http.Request, name string) string {
	return chi.URLParam(request, name)
}

/*
QueryInt retrieves a named query parameter as an integer.

Returns the fallback when the parameter is absent or not a number.
*/
func QueryInt(request *http.Request, name string, fallback int) int {
	raw := request.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}

/*
QueryBool retrieves a named query parameter as an optional boolean.

Returns nil when the parameter is absent, allowing three-state filters
(unset / true / false). Unparseable values count as unset.
*/
func QueryBool(request *http.Request, name string) *bool {
	raw := request.URL.Query().Get(name)
	if raw == "" {
		return nil
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return nil
	}
	return &value
}

/*
UploadedImage reads the uploaded image bytes from a multipart form request.

The upload must be sent in the 'file' form field and is capped at
[constants.MaxUploadBytes] to protect the server from oversized payloads.

Returns:
  - []byte: The raw image bytes (JPEG/PNG, decoded later by the service)
  - error: apperr.ValidationError when the field is missing or the body is too large
*/
func UploadedImage(writer http.ResponseWriter, request *http.Request) ([]byte, error) {

	// Hard cap on the request body before any parsing happens
	request.Body = http.MaxBytesReader(writer, request.Body, constants.MaxUploadBytes)

	file, _, err := request.FormFile(constants.UploadFormField)
	if err != nil {
		return nil, apperr.ValidationError("Missing or unreadable 'file' upload field")
	}
	defer file.Close()

	payload, err := io.ReadAll(file)
	if err != nil {
		return nil, apperr.ValidationError("Upload exceeds the maximum allowed size")
	}
	return payload, nil
}
