package httpserver

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/and161185/account-keeper/internal/convert"
	"github.com/and161185/account-keeper/internal/errs"
	"github.com/and161185/account-keeper/internal/logger"
)

const maxBodyBytes = 1 << 20

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// writeError externalizes err: only code, message and details reach the client.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	ae := errs.Classify(err)
	h.metrics.ObserveError(ae)
	logger.Error(h.log, "http request failed", err,
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.String("request_id", middleware.GetReqID(r.Context())),
	)
	writeJSON(w, ae.HTTPStatus(), convert.ErrorResponse{Error: ae.External()})
}

// decodeBody reads a JSON request body into dst. Unknown fields are rejected.
func decodeBody(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errs.New(errs.KindInvalidRequest, "empty body")
		}
		return errs.Wrap(err, errs.KindInvalidRequest, "malformed JSON body")
	}
	return nil
}

func errRouteNotFound() error    { return errs.New(errs.KindRouteNotFound) }
func errMethodNotAllowed() error { return errs.New(errs.KindMethodNotAllowed) }
func errAuthRequired() error     { return errs.New(errs.KindAuthenticationRequired) }
