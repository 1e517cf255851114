package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/Tomlord1122/todo-app/internal/auth"
	"github.com/Tomlord1122/todo-app/internal/service"
)

// coverBodyLimit caps cover upload bodies well above the 2 MB rule so
// the size check itself happens in the service.
const coverBodyLimit = 4 * service.MaxCoverSize

type homeView struct {
	*service.HomeResponse
	Flash *flash
}

func identity(r *http.Request) auth.Identity {
	id, _ := auth.FromContext(r.Context())
	return id
}

func readTodoID(r *http.Request) (uint, bool) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}

func (s *Server) homeHandler(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	page, err := strconv.Atoi(query.Get("page"))
	if err != nil {
		page = 1
	}

	home, err := s.todoService.ListTodos(r.Context(), identity(r), service.ListTodosRequest{
		Search: query.Get("search"),
		Filter: query.Get("filter"),
		Page:   page,
		Path:   r.URL.Path,
		Query:  query,
	})
	if err != nil {
		s.writeServiceError(w, r, err, "retrieve todos")
		return
	}

	if wantsJSON(r) {
		respondWithJSON(w, http.StatusOK, home)
		return
	}
	s.render(w, http.StatusOK, "home", homeView{HomeResponse: home, Flash: s.popFlash(w, r)})
}

func (s *Server) createTodoHandler(w http.ResponseWriter, r *http.Request) {
	var req service.CreateTodoRequest
	if isJSONBody(r) {
		if err := decodeJSONBody(w, r, &req); err != nil {
			s.writeDecodeError(w, r, err)
			return
		}
	} else {
		if err := r.ParseForm(); err != nil {
			respondWithError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
		req.Title = r.PostForm.Get("title")
		req.Description = formField(r, "description")
	}

	todo, err := s.todoService.CreateTodo(r.Context(), identity(r), req)
	if err != nil {
		s.writeServiceError(w, r, err, "create todo")
		return
	}
	s.metrics.mutations.WithLabelValues("create").Inc()

	if wantsJSON(r) {
		respondWithJSON(w, http.StatusCreated, todo)
		return
	}
	s.setFlash(w, flash{Kind: flashSuccess, Message: "Todo added."})
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) updateTodoHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := readTodoID(r)
	if !ok {
		s.errorResponse(w, r, http.StatusNotFound, "Todo not found.")
		return
	}

	req, err := s.readTodoPatch(w, r)
	if err != nil {
		s.writeDecodeError(w, r, err)
		return
	}

	todo, err := s.todoService.UpdateTodo(r.Context(), identity(r), id, req)
	if err != nil {
		s.writeServiceError(w, r, err, "update todo")
		return
	}
	s.metrics.mutations.WithLabelValues("update").Inc()

	if wantsJSON(r) {
		respondWithJSON(w, http.StatusOK, todo)
		return
	}
	s.setFlash(w, flash{Kind: flashSuccess, Message: "Todo updated."})
	redirectBack(w, r)
}

// todoPatchBody keeps each JSON field raw so absent, null and
// mistyped values can be told apart.
type todoPatchBody struct {
	Title       json.RawMessage `json:"title"`
	Description json.RawMessage `json:"description"`
	IsFinished  json.RawMessage `json:"is_finished"`
}

const (
	titleStringMessage       = "The title field must be a string."
	descriptionStringMessage = "The description field must be a string."
	isFinishedBoolMessage    = "The is finished field must be true or false."
)

// readTodoPatch accepts either a JSON object or form fields. Only the
// fields present in the request end up set in the patch. Values of the
// wrong type are collected in Invalid for the service to report.
func (s *Server) readTodoPatch(w http.ResponseWriter, r *http.Request) (service.UpdateTodoRequest, error) {
	req := service.UpdateTodoRequest{Invalid: map[string]string{}}
	if isJSONBody(r) {
		var body todoPatchBody
		if err := decodeJSONBody(w, r, &body); err != nil {
			return req, err
		}
		applyJSONPatch(&req, body)
		return req, nil
	}

	if err := r.ParseForm(); err != nil {
		return req, &malformedRequest{msg: "Invalid request body"}
	}
	req.Title = formField(r, "title")
	req.Description = formField(r, "description")
	if raw := formField(r, "is_finished"); raw != nil {
		if b, ok := parseFormBool(*raw); ok {
			req.IsFinished = &b
		} else {
			req.Invalid["is_finished"] = isFinishedBoolMessage
		}
	}
	return req, nil
}

// applyJSONPatch maps the raw fields onto req. A null title is treated as
// empty so it fails the required rule; a null description clears it.
func applyJSONPatch(req *service.UpdateTodoRequest, body todoPatchBody) {
	if body.Title != nil {
		if v, ok := jsonString(body.Title); ok {
			req.Title = &v
		} else {
			req.Invalid["title"] = titleStringMessage
		}
	}
	if body.Description != nil {
		if v, ok := jsonString(body.Description); ok {
			req.Description = &v
		} else {
			req.Invalid["description"] = descriptionStringMessage
		}
	}
	if body.IsFinished != nil {
		if v, ok := jsonBool(body.IsFinished); ok {
			req.IsFinished = &v
		} else {
			req.Invalid["is_finished"] = isFinishedBoolMessage
		}
	}
}

func jsonString(raw json.RawMessage) (string, bool) {
	if string(raw) == "null" {
		return "", true
	}
	var v string
	if err := json.Unmarshal(raw, &v); err != nil {
		return "", false
	}
	return v, true
}

// jsonBool accepts true/false, 0/1 and their string forms.
func jsonBool(raw json.RawMessage) (bool, bool) {
	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		return b, true
	}
	var str string
	if err := json.Unmarshal(raw, &str); err == nil {
		return parseFormBool(str)
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return parseFormBool(n.String())
	}
	return false, false
}

func (s *Server) deleteTodoHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := readTodoID(r)
	if !ok {
		s.errorResponse(w, r, http.StatusNotFound, "Todo not found.")
		return
	}

	if err := s.todoService.DeleteTodo(r.Context(), identity(r), id); err != nil {
		s.writeServiceError(w, r, err, "delete todo")
		return
	}
	s.metrics.mutations.WithLabelValues("delete").Inc()

	if wantsJSON(r) {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	s.setFlash(w, flash{Kind: flashSuccess, Message: "Todo deleted."})
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) updateCoverHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := readTodoID(r)
	if !ok {
		s.errorResponse(w, r, http.StatusNotFound, "Todo not found.")
		return
	}

	var upload service.CoverUpload
	r.Body = http.MaxBytesReader(w, r.Body, coverBodyLimit)
	file, header, err := r.FormFile("cover")
	switch {
	case err == nil:
		defer file.Close()
		upload = service.CoverUpload{Filename: header.Filename, Size: header.Size, Content: file}
	case errors.Is(err, http.ErrMissingFile), errors.Is(err, http.ErrNotMultipart):
		// An empty upload is reported by the service after the
		// existence and ownership checks.
	default:
		var maxBytesError *http.MaxBytesError
		if errors.As(err, &maxBytesError) {
			upload = service.CoverUpload{Size: maxBytesError.Limit + 1}
			break
		}
		respondWithError(w, http.StatusBadRequest, "Invalid upload")
		return
	}

	todo, err := s.todoService.ReplaceCover(r.Context(), identity(r), id, upload)
	if err != nil {
		s.writeServiceError(w, r, err, "update cover")
		return
	}
	s.metrics.mutations.WithLabelValues("cover").Inc()
	s.metrics.coverBytes.Add(float64(upload.Size))

	if wantsJSON(r) {
		respondWithJSON(w, http.StatusOK, todo)
		return
	}
	s.setFlash(w, flash{Kind: flashSuccess, Message: "Cover updated."})
	redirectBack(w, r)
}

// formField returns a pointer to the submitted value, or nil when the
// field was not part of the form at all.
func formField(r *http.Request, key string) *string {
	values, ok := r.PostForm[key]
	if !ok || len(values) == 0 {
		return nil
	}
	v := values[0]
	return &v
}

func parseFormBool(v string) (bool, bool) {
	switch v {
	case "1", "true", "on":
		return true, true
	case "0", "false", "off":
		return false, true
	default:
		return false, false
	}
}
