package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/Tomlord1122/todo-app/internal/domain"
)

// wantsJSON reports whether the client asked for a JSON response rather
// than a page or redirect.
func wantsJSON(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "application/json")
}

func isJSONBody(r *http.Request) bool {
	return strings.HasPrefix(r.Header.Get("Content-Type"), "application/json")
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		slog.Error("marshal JSON response", "error", err)
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":"Internal server error preparing response"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_, _ = w.Write(response)
}

type malformedRequest struct {
	msg string
}

func (m *malformedRequest) Error() string {
	return m.msg
}

// decodeJSONBody strictly decodes a single JSON object into dst.
func decodeJSONBody(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()

	err := decoder.Decode(dst)
	if err != nil {
		var syntaxError *json.SyntaxError
		var unmarshalTypeError *json.UnmarshalTypeError
		var maxBytesError *http.MaxBytesError
		switch {
		case errors.As(err, &syntaxError):
			return &malformedRequest{msg: fmt.Sprintf("Request body contains badly-formed JSON (at position %d)", syntaxError.Offset)}
		case errors.Is(err, io.ErrUnexpectedEOF):
			return &malformedRequest{msg: "Request body contains badly-formed JSON"}
		case errors.As(err, &unmarshalTypeError):
			return &malformedRequest{msg: fmt.Sprintf("Request body contains an invalid value for the %q field (at position %d)", unmarshalTypeError.Field, unmarshalTypeError.Offset)}
		case strings.HasPrefix(err.Error(), "json: unknown field "):
			fieldName := strings.TrimPrefix(err.Error(), "json: unknown field ")
			return &malformedRequest{msg: fmt.Sprintf("Request body contains unknown field %s", fieldName)}
		case errors.Is(err, io.EOF):
			return &malformedRequest{msg: "Request body must not be empty"}
		case errors.As(err, &maxBytesError):
			return &malformedRequest{msg: "Request body must not be larger than 1MB"}
		default:
			return err
		}
	}

	if err := decoder.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return &malformedRequest{msg: "Request body must only contain a single JSON object"}
	}
	return nil
}

// writeDecodeError answers a body that could not be read.
func (s *Server) writeDecodeError(w http.ResponseWriter, r *http.Request, err error) {
	var mr *malformedRequest
	if errors.As(err, &mr) {
		respondWithError(w, http.StatusBadRequest, mr.msg)
		return
	}
	s.log.Error("decode request body", "path", r.URL.Path, "error", err)
	respondWithError(w, http.StatusInternalServerError, "Error processing request")
}

// writeServiceError maps the domain error taxonomy onto HTTP.
// Browser form submissions get a flash message and a redirect back for
// validation failures.
func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, err error, action string) {
	var ve *domain.ValidationError
	switch {
	case errors.Is(err, domain.ErrNotFound):
		s.errorResponse(w, r, http.StatusNotFound, "Todo not found.")
	case errors.Is(err, domain.ErrForbidden):
		s.errorResponse(w, r, http.StatusForbidden, "This action is unauthorized.")
	case errors.As(err, &ve):
		if wantsJSON(r) {
			respondWithJSON(w, http.StatusUnprocessableEntity, map[string]any{
				"message": "The given data was invalid.",
				"errors":  ve.Fields,
			})
			return
		}
		s.setFlash(w, flash{Kind: flashError, Message: firstMessage(ve.Fields), Errors: ve.Fields, Form: formName(r)})
		redirectBack(w, r)
	default:
		s.log.Error("request failed", "action", action, "path", r.URL.Path, "error", err)
		s.errorResponse(w, r, http.StatusInternalServerError, "Failed to "+action+".")
	}
}

func (s *Server) errorResponse(w http.ResponseWriter, r *http.Request, code int, message string) {
	if wantsJSON(r) {
		respondWithError(w, code, message)
		return
	}
	http.Error(w, message, code)
}

// formName identifies the form a failed submission came from: "create"
// for new todos, "todo-<id>" for edits and cover uploads of one todo.
func formName(r *http.Request) string {
	if id := chi.URLParam(r, "id"); id != "" {
		return "todo-" + id
	}
	if strings.TrimSuffix(r.URL.Path, "/") == "/todos" {
		return "create"
	}
	return ""
}

func firstMessage(fields map[string]string) string {
	for _, key := range []string{"title", "description", "is_finished", "cover", "name", "email", "password"} {
		if msg, ok := fields[key]; ok {
			return msg
		}
	}
	for _, msg := range fields {
		return msg
	}
	return "The given data was invalid."
}

// redirectBack returns the browser to the page it came from, falling
// back to the list. Only same-site paths are honoured.
func redirectBack(w http.ResponseWriter, r *http.Request) {
	target := "/"
	if ref := r.Header.Get("Referer"); ref != "" {
		if u, err := url.Parse(ref); err == nil && (u.Host == "" || u.Host == r.Host) && strings.HasPrefix(u.Path, "/") {
			target = u.RequestURI()
		}
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}
