package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"github.com/jpmelo-tech/acompanhamento-safra/internal/logger"
	"github.com/jpmelo-tech/acompanhamento-safra/internal/season"
	"github.com/jpmelo-tech/acompanhamento-safra/internal/table"
)

// Problem types (RFC 7807).
const (
	TypeInvalidMonth   = "/errors/invalid-month"
	TypeSchemaCoercion = "/errors/schema-coercion"
	TypeNotFound       = "/errors/not-found"
	TypeTimeout        = "/errors/timeout"
	TypeInternal       = "/errors/internal"
)

// ProblemDetails is an RFC 7807 error body.
type ProblemDetails struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`

	// Field names the offending query parameter.
	Field string `json:"field,omitempty"`

	// Column, Partition and Value locate a coercion failure.
	Column    string `json:"column,omitempty"`
	Partition string `json:"partition,omitempty"`
	Value     string `json:"value,omitempty"`

	RequestID string `json:"request_id,omitempty"`
}

// Render implements render.Renderer.
func (p *ProblemDetails) Render(w http.ResponseWriter, r *http.Request) error {
	render.Status(r, p.Status)
	return nil
}

// errorToProblem maps pipeline errors onto HTTP problems.
func errorToProblem(err error, r *http.Request) *ProblemDetails {
	p := &ProblemDetails{Instance: r.URL.Path, Detail: err.Error()}

	var monthErr *season.InvalidMonthError
	var coercionErr *table.SchemaCoercionError

	switch {
	case errors.As(err, &monthErr):
		p.Status, p.Type, p.Title = http.StatusBadRequest, TypeInvalidMonth, "Invalid Month"
		p.Field = monthErr.Field
	case errors.As(err, &coercionErr):
		p.Status, p.Type, p.Title = http.StatusUnprocessableEntity, TypeSchemaCoercion, "Schema Coercion Failed"
		p.Column = coercionErr.Column
		p.Partition = coercionErr.Partition
		p.Value = coercionErr.Value
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		p.Status, p.Type, p.Title = http.StatusGatewayTimeout, TypeTimeout, "Request Timeout"
	default:
		p.Status, p.Type, p.Title = http.StatusInternalServerError, TypeInternal, "Internal Server Error"
		p.Detail = "the request could not be completed"
	}
	return p
}

// writeError logs err and responds with its problem body.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	p := errorToProblem(err, r)
	p.RequestID = middleware.GetReqID(r.Context())

	log := logger.FromContext(r.Context())
	event := log.Warn()
	if p.Status >= http.StatusInternalServerError {
		event = log.Error()
	}
	event.Err(err).Int("status", p.Status).Str("path", r.URL.Path).Msg("request failed")

	render.Render(w, r, p)
}
