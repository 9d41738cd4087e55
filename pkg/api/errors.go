package api

import (
	"errors"
	"log/slog"

	"github.com/usize/monument/pkg/monumenterr"
)

// errorBody is the JSON envelope for every non-2xx response.
type errorBody struct {
	Error   string `json:"error"`
	Kind    string `json:"kind,omitempty"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message,omitempty"`
}

// mapError classifies err into an HTTP status and JSON body, mirroring the
// teacher's mapServiceError dispatch-by-errors.Is pattern.
func mapError(err error) (int, errorBody) {
	kind := monumenterr.KindOf(err)
	status := kind.HTTPStatus()

	body := errorBody{Error: err.Error(), Kind: string(kind)}

	var valErr *monumenterr.ValidationError
	if errors.As(err, &valErr) {
		body.Field = valErr.Field
		body.Message = valErr.Message
	}

	var snapErr *monumenterr.SnapshotError
	if errors.As(err, &snapErr) {
		body.Field = snapErr.Field
	}

	if status >= 500 {
		slog.Error("request failed", "error", err, "kind", kind)
	}
	return status, body
}
