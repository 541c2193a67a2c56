// Package handlers implements the HTTP endpoints of the drug query API on top
// of the injected compiler, executor and mapper.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/giygas/openfda-api/interfaces"
	"github.com/giygas/openfda-api/logging"
	"github.com/giygas/openfda-api/query"
	"github.com/giygas/openfda-api/registry"
)

var _ interfaces.HTTPHandler = (*HTTPHandlerImpl)(nil)

// HTTPHandlerImpl implements interfaces.HTTPHandler
type HTTPHandlerImpl struct {
	compiler  interfaces.QueryCompiler
	executor  interfaces.QueryExecutor
	mapper    interfaces.RowMapper
	validator interfaces.ParamValidator
	health    interfaces.HealthChecker
	schema    SchemaResponse
}

// NewHTTPHandler creates a new HTTP handler with injected dependencies
func NewHTTPHandler(
	compiler interfaces.QueryCompiler,
	executor interfaces.QueryExecutor,
	mapper interfaces.RowMapper,
	validator interfaces.ParamValidator,
	health interfaces.HealthChecker,
) *HTTPHandlerImpl {
	return &HTTPHandlerImpl{
		compiler:  compiler,
		executor:  executor,
		mapper:    mapper,
		validator: validator,
		health:    health,
		schema:    describe(compiler.Registry()),
	}
}

// ErrorResponse is the body of every 4xx and 5xx answer
type ErrorResponse struct {
	Error   string   `json:"error"`
	Invalid []string `json:"invalid,omitempty"`
	Allowed []string `json:"allowed,omitempty"`
}

// RespondWithJSON writes payload as JSON with the given status
func (h *HTTPHandlerImpl) RespondWithJSON(w http.ResponseWriter, code int, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		logging.Error("Failed to marshal JSON response", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Last-Modified", time.Now().UTC().Format(http.TimeFormat))
	w.WriteHeader(code)
	w.Write(data)
}

// RespondWithError writes {"error": message}
func (h *HTTPHandlerImpl) RespondWithError(w http.ResponseWriter, code int, message string) {
	h.RespondWithJSON(w, code, ErrorResponse{Error: message})
}

// respondWithBadRequest writes a 400 carrying the enumerations of err, if any
func (h *HTTPHandlerImpl) respondWithBadRequest(w http.ResponseWriter, err error) {
	resp := ErrorResponse{Error: err.Error()}
	var bad *query.BadRequestError
	if errors.As(err, &bad) {
		resp.Invalid, resp.Allowed = bad.Invalid, bad.Allowed
	}
	h.RespondWithJSON(w, http.StatusBadRequest, resp)
}

// HealthResponse is the body of /health
type HealthResponse struct {
	Status string         `json:"status"`
	Data   map[string]any `json:"data"`
}

// HealthCheck reports database reachability and stats freshness
func (h *HTTPHandlerImpl) HealthCheck(w http.ResponseWriter, r *http.Request) {
	status, details, code := h.health.HealthCheck(r.Context())
	w.Header().Set("Cache-Control", "no-store")
	h.RespondWithJSON(w, code, HealthResponse{Status: status, Data: details})
}

// SchemaResponse lists what the search endpoint accepts
type SchemaResponse struct {
	Entities  []EntitySchema `json:"entities"`
	Operators []string       `json:"operators"`
}

type EntitySchema struct {
	Name   string        `json:"name"`
	Fields []FieldSchema `json:"fields"`
	Joins  []JoinSchema  `json:"joins"`
}

type FieldSchema struct {
	Name string `json:"name"`
	Kind string `json:"kind"`
}

type JoinSchema struct {
	Name   string `json:"name"`
	Target string `json:"target"`
	Kind   string `json:"kind"`
}

func describe(reg *registry.Registry) SchemaResponse {
	resp := SchemaResponse{Entities: []EntitySchema{}, Operators: []string{}}
	for _, op := range query.Operators() {
		resp.Operators = append(resp.Operators, string(op))
	}
	for _, name := range reg.Names() {
		e, _ := reg.Entity(name)
		es := EntitySchema{Name: e.Name, Fields: []FieldSchema{}, Joins: []JoinSchema{}}
		for _, f := range e.Fields {
			es.Fields = append(es.Fields, FieldSchema{Name: f.Name, Kind: f.Kind.String()})
		}
		for _, j := range e.Joins {
			es.Joins = append(es.Joins, JoinSchema{Name: j.Name, Target: j.Target, Kind: j.Kind.String()})
		}
		resp.Entities = append(resp.Entities, es)
	}
	return resp
}

// DescribeSchema serves the registry for the UI forms
func (h *HTTPHandlerImpl) DescribeSchema(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "public, max-age=3600")
	h.RespondWithJSON(w, http.StatusOK, h.schema)
}
