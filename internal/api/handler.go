package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/todogate/todogate/internal/diag"
	"github.com/todogate/todogate/internal/todo"
)

// Messages returned in response bodies and recorded to the diagnostics sink.
const (
	msgInvalidRequest      = "Invalid request."
	msgInvalidRequestLine  = "Invalid request line."
	msgVersionNotSupported = "HTTP version is not supported."
	msgInvalidHeader       = "Invalid header format."
	msgShortBody           = "Request body is shorter than Content-Length."
	msgEndpointNotFound    = "Endpoint not found."
	msgMethodNotAllowed    = "Method is not allowed."
	msgInvalidID           = "Invalid ID."
	msgInvalidJSON         = "Invalid JSON format."
	msgTitleRequired       = "Title is required."
	msgTitleEmpty          = "Title cannot be empty."
	msgTitleNotString      = "Title must be a string."
	msgCompletedNotBool    = "The 'completed' field must be of type bool."
	msgTodoNotFound        = "Todo not found."
	msgTodoDeleted         = "Todo has been deleted."
)

const (
	collectionPath = "/todos"
	itemPrefix     = "/todos/"
)

// Handler turns raw request text into a Response, mutating the store as needed.
// It holds no per-request state and is safe for concurrent use.
type Handler struct {
	store todo.Store
	sink  diag.Sink
}

// NewHandler constructs a Handler. A nil sink discards diagnostics.
func NewHandler(store todo.Store, sink diag.Sink) *Handler {
	if sink == nil {
		sink = diag.Discard{}
	}
	return &Handler{store: store, sink: sink}
}

// Process parses raw and routes it. Every malformed or rejected request
// still yields a Response.
func (h *Handler) Process(raw string) Response {
	req, err := ParseRequest(raw)
	if err != nil {
		var reqErr *RequestError
		if errors.As(err, &reqErr) {
			return h.reject(reqErr.Status, reqErr.Message)
		}
		return h.reject(http.StatusBadRequest, msgInvalidRequest)
	}
	return h.Route(req)
}

// Route dispatches a parsed request to its handler.
func (h *Handler) Route(req *Request) Response {
	switch req.Method {
	case http.MethodGet:
		if req.Path == collectionPath {
			return h.ListTodos()
		}
		return h.withID(req.Path, h.GetTodo)
	case http.MethodPost:
		if req.Path == collectionPath {
			return h.CreateTodo(req.Body)
		}
		return h.reject(http.StatusNotFound, msgEndpointNotFound)
	case http.MethodPut:
		return h.withID(req.Path, func(id uint64) Response {
			return h.UpdateTodo(id, req.Body)
		})
	case http.MethodDelete:
		return h.withID(req.Path, h.DeleteTodo)
	default:
		return h.reject(http.StatusMethodNotAllowed, msgMethodNotAllowed)
	}
}

// withID resolves "/todos/{id}" and calls fn. Paths outside /todos/ are 404,
// a non-numeric id is 400.
func (h *Handler) withID(path string, fn func(id uint64) Response) Response {
	raw, ok := strings.CutPrefix(path, itemPrefix)
	if !ok {
		return h.reject(http.StatusNotFound, msgEndpointNotFound)
	}
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return h.reject(http.StatusBadRequest, msgInvalidID)
	}
	return fn(id)
}

// ListTodos handles GET /todos.
func (h *Handler) ListTodos() Response {
	return respondJSON(http.StatusOK, h.store.List())
}

// GetTodo handles GET /todos/{id}.
func (h *Handler) GetTodo(id uint64) Response {
	t, err := h.store.Get(id)
	if err != nil {
		return h.storeError(err)
	}
	return respondJSON(http.StatusOK, t)
}

// CreateTodo handles POST /todos. The body must be a JSON object with a
// non-blank string title.
func (h *Handler) CreateTodo(body string) Response {
	var doc any
	if err := json.Unmarshal([]byte(body), &doc); err != nil {
		return h.rejectDetail(http.StatusBadRequest, msgInvalidJSON, err)
	}
	obj, _ := doc.(map[string]any)
	title, ok := obj["title"].(string)
	if !ok {
		return h.reject(http.StatusBadRequest, msgTitleRequired)
	}
	if err := todo.ValidateTitle(title); err != nil {
		return h.reject(http.StatusBadRequest, msgTitleEmpty)
	}
	return respondJSON(http.StatusCreated, h.store.Create(title))
}

// UpdateTodo handles PUT /todos/{id}. title is optional; completed must be
// present and boolean for the update to be accepted at all.
func (h *Handler) UpdateTodo(id uint64, body string) Response {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(body), &fields); err != nil {
		return h.rejectDetail(http.StatusBadRequest, msgInvalidJSON, err)
	}

	var p todo.Patch
	if raw, ok := fields["title"]; ok && !isNull(raw) {
		var title string
		if err := json.Unmarshal(raw, &title); err != nil {
			return h.reject(http.StatusBadRequest, msgTitleNotString)
		}
		if err := todo.ValidateTitle(title); err != nil {
			return h.reject(http.StatusBadRequest, msgTitleEmpty)
		}
		p.Title = &title
	}

	raw, ok := fields["completed"]
	var completed bool
	if !ok || isNull(raw) || json.Unmarshal(raw, &completed) != nil {
		return h.reject(http.StatusBadRequest, msgCompletedNotBool)
	}
	p.Completed = &completed

	t, err := h.store.Update(id, p)
	if err != nil {
		return h.storeError(err)
	}
	return respondJSON(http.StatusOK, t)
}

// DeleteTodo handles DELETE /todos/{id}.
func (h *Handler) DeleteTodo(id uint64) Response {
	if err := h.store.Delete(id); err != nil {
		return h.storeError(err)
	}
	return Response{Status: http.StatusOK, Body: msgTodoDeleted}
}

func (h *Handler) storeError(err error) Response {
	if errors.Is(err, todo.ErrNotFound) {
		return h.reject(http.StatusNotFound, msgTodoNotFound)
	}
	return h.rejectDetail(http.StatusBadRequest, msgInvalidRequest, err)
}

// reject records msg to the diagnostics sink and returns it as the body.
func (h *Handler) reject(status int, msg string) Response {
	h.sink.Record(msg)
	return Response{Status: status, Body: msg}
}

// rejectDetail is reject, with err appended to the recorded line only.
func (h *Handler) rejectDetail(status int, msg string, err error) Response {
	h.sink.Record(fmt.Sprintf("%s Error details: %v", msg, err))
	return Response{Status: status, Body: msg}
}

func respondJSON(status int, v any) Response {
	// Todos and slices of todos always marshal.
	body, _ := json.Marshal(v)
	return Response{Status: status, Body: string(body)}
}

func isNull(raw json.RawMessage) bool {
	return string(raw) == "null"
}
