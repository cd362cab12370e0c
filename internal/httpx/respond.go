package httpx

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/pkg/errors"

	"github.com/swaymx/sway-api/internal/apperr"
)

const maxBody = 1 << 20

type envelope struct {
	Success bool       `json:"success"`
	Code    int        `json:"code"`
	Message string     `json:"message"`
	Data    any        `json:"data,omitempty"`
	Error   *errorBody `json:"error,omitempty"`
}

type errorBody struct {
	Code    string `json:"code"`
	Field   string `json:"field,omitempty"`
	Details any    `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func ok(w http.ResponseWriter, code int, message string, data any) {
	writeJSON(w, code, envelope{Success: true, Code: code, Message: message, Data: data})
}

// fail translates err into the error envelope. Causes of server-side
// failures are logged with their stack and never sent to the client.
func fail(w http.ResponseWriter, r *http.Request, log *slog.Logger, err error) {
	ae := apperr.From(err)
	switch ae.Kind {
	case apperr.KindInternal, apperr.KindStoreUnavailable, apperr.KindIntegrity:
		log.Error("request failed",
			"request_id", middleware.GetReqID(r.Context()),
			"code", ae.Code,
			"err", fmt.Sprintf("%+v", err),
		)
	}
	writeJSON(w, ae.Status, envelope{
		Code:    ae.Status,
		Message: ae.Message,
		Error:   &errorBody{Code: ae.Code, Field: ae.Field, Details: ae.Details},
	})
}

func decode(r *http.Request, v any) error {
	err := json.NewDecoder(io.LimitReader(r.Body, maxBody)).Decode(v)
	if err == nil {
		return nil
	}
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) && typeErr.Field != "" {
		return apperr.InvalidFormat(typeErr.Field, err)
	}
	return apperr.InvalidFormat("body", err)
}

func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.Validation(name, name+" must be a positive integer")
	}
	return id, nil
}

// queryInt returns 0 when the parameter is absent.
func queryInt(r *http.Request, name string) (int64, error) {
	s := r.URL.Query().Get(name)
	if s == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, apperr.Validation(name, name+" must be an integer")
	}
	return n, nil
}
