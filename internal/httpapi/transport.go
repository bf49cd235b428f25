package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/molt-labs/molt-negotiation/internal/apierr"
	"github.com/molt-labs/molt-negotiation/internal/store"
)

// envelope is the uniform response shape.
type envelope struct {
	OK    bool        `json:"ok"`
	Data  any         `json:"data,omitempty"`
	Error *errorBody  `json:"error,omitempty"`
}

type errorBody struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeData(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, envelope{OK: true, Data: data})
}

func apierrUnauthorized() *apierr.Error {
	return apierr.New(apierr.KindScope, apierr.CodeUnauthorized, "missing or invalid credentials")
}

func apierrNotFound(what string) *apierr.Error {
	return apierr.New(apierr.KindValidation, apierr.CodeNotFound, what+" not found")
}

// statusFor maps an apierr.Error to its HTTP status: the
// unauthorized code is always 401 regardless of kind, since it is raised
// before any scope check has a resource to reason about.
func statusFor(e *apierr.Error) int {
	if e.Code == apierr.CodeUnauthorized {
		return http.StatusUnauthorized
	}
	switch e.Kind {
	case apierr.KindValidation:
		return http.StatusBadRequest
	case apierr.KindScope:
		return http.StatusForbidden
	case apierr.KindPolicy:
		return http.StatusUnprocessableEntity
	case apierr.KindExternal:
		return http.StatusBadGateway
	case apierr.KindCrypto:
		return http.StatusUnprocessableEntity
	case apierr.KindSystem:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// writeError translates err into the {ok:false,error} envelope. An
// apierr.Error carries its own kind/code/details; store.ErrNotFound
// becomes 404 not_found (callers can also translate it themselves via
// apierrNotFound); anything else is wrapped as a 500 internal_error.
func writeError(w http.ResponseWriter, err error) {
	var appErr *apierr.Error
	if errors.As(err, &appErr) {
		writeJSON(w, statusFor(appErr), envelope{
			OK: false,
			Error: &errorBody{Code: appErr.Code, Message: appErr.Message, Details: appErr.Details},
		})
		return
	}

	if errors.Is(err, store.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, envelope{
			OK:    false,
			Error: &errorBody{Code: apierr.CodeNotFound, Message: "resource not found"},
		})
		return
	}

	slog.Error("httpapi: unhandled error", "error", err)
	writeJSON(w, http.StatusInternalServerError, envelope{
		OK:    false,
		Error: &errorBody{Code: apierr.CodeInternalError, Message: "internal error"},
	})
}

// decodeBody JSON-decodes r.Body into out, translating a malformed body
// into a validation apierr.Error.
func decodeBody(r *http.Request, out any) error {
	if r.Body == nil {
		return apierr.Validation(apierr.CodeInvalidRequest, "request body is required")
	}
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(out); err != nil {
		return apierr.Validation(apierr.CodeInvalidRequest, "malformed request body: "+err.Error())
	}
	return nil
}
