package handler

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/kirana/internal/catalog"
	"github.com/xenking/kirana/internal/domain/checkout"
)

// Sentinel errors for malformed requests.
var (
	errMissingProductID = errors.New("product id required")
	errInvalidBody      = errors.New("invalid request body")
)

// mapError converts domain errors to an HTTP status and a client-facing
// message. Unknown errors become 500 with a generic message.
func mapError(err error) (int, string) {
	switch {
	case errors.Is(err, errMissingProductID), errors.Is(err, errInvalidBody):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, catalog.ErrUnknownProduct):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, catalog.ErrNotReady):
		return http.StatusServiceUnavailable, err.Error()
	case errors.Is(err, checkout.ErrEmptyCart):
		return http.StatusConflict, err.Error()
	case errors.Is(err, checkout.ErrInvalidBlockType), errors.Is(err, checkout.ErrInvalidBlock):
		return http.StatusUnprocessableEntity, err.Error()
	}

	var fieldErr *checkout.FieldError
	if errors.As(err, &fieldErr) {
		return http.StatusUnprocessableEntity, fieldErr.Error()
	}
	return http.StatusInternalServerError, "internal server error"
}

// writeError maps err and writes a {code, message} JSON body.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	code, msg := mapError(err)
	if code >= http.StatusInternalServerError && code != http.StatusServiceUnavailable {
		zctx.From(r.Context()).Error("Request failed", zap.Error(err))
	}

	e := jx.GetEncoder()
	defer jx.PutEncoder(e)
	e.ObjStart()
	e.FieldStart("code")
	e.Int(code)
	e.FieldStart("message")
	e.Str(msg)
	e.ObjEnd()
	writeJSON(w, code, e)
}

func writeJSON(w http.ResponseWriter, code int, e *jx.Encoder) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(e.Bytes())
}
