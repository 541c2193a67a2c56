package handlers

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/giygas/openfda-api/logging"
	"github.com/giygas/openfda-api/metrics"
	"github.com/giygas/openfda-api/query"
)

const (
	formatJSON = "json"
	formatCSV  = "csv"
)

// SearchDrugs compiles the query string, runs it and answers with flat rows
// as a JSON array or, with format=csv, as CSV
func (h *HTTPHandlerImpl) SearchDrugs(w http.ResponseWriter, r *http.Request) {
	values := r.URL.Query()
	if err := h.validator.ValidateParams(values); err != nil {
		logging.Warn("Unusual user input", "query", r.URL.RawQuery, "error", err)
		metrics.QueryCompileRejections.WithLabelValues(h.itemLabel(values.Get(query.ParamItem)), query.ReasonParameter).Inc()
		h.respondWithBadRequest(w, err)
		return
	}

	req := query.ParseValues(values)
	if req.Format != "" && req.Format != formatJSON && req.Format != formatCSV {
		metrics.QueryCompileRejections.WithLabelValues(h.itemLabel(req.Item), query.ReasonParameter).Inc()
		h.RespondWithError(w, http.StatusBadRequest, fmt.Sprintf("Invalid format %q. Allowed formats are: json, csv", req.Format))
		return
	}

	compiled, err := h.compiler.Compile(req)
	if err != nil {
		reason := "unknown"
		var bad *query.BadRequestError
		if errors.As(err, &bad) {
			reason = bad.Reason
		}
		metrics.QueryCompileRejections.WithLabelValues(h.itemLabel(req.Item), reason).Inc()
		h.respondWithBadRequest(w, err)
		return
	}

	if len(compiled.Warnings) > 0 {
		logging.Warn("Ignored query parameters", "item", compiled.Entity, "warnings", compiled.Warnings)
		metrics.QueryWarnings.WithLabelValues(compiled.Entity).Add(float64(len(compiled.Warnings)))
		w.Header().Set("X-Query-Warnings", strconv.Itoa(len(compiled.Warnings)))
	}

	start := time.Now()
	rows, err := h.executor.Query(r.Context(), compiled)
	elapsed := time.Since(start)
	if err != nil {
		logging.Error("Search query failed", "item", compiled.Entity, "error", err)
		h.RespondWithError(w, http.StatusInternalServerError, err.Error())
		return
	}

	flat := h.mapper.Map(compiled.Entity, rows)
	metrics.ObserveQuery(compiled.Entity, elapsed, len(flat))
	logging.Debug("Search served",
		"item", compiled.Entity,
		"where", compiled.Where.Map(),
		"select", compiled.Select.Map(),
		"rows", len(rows),
		"flat_rows", len(flat),
		"duration_ms", elapsed.Milliseconds())

	if req.Format == formatCSV {
		h.respondWithCSV(w, compiled.Entity, flat)
		return
	}
	h.RespondWithJSON(w, http.StatusOK, flat)
}

// itemLabel bounds the item metric label to registered entities
func (h *HTTPHandlerImpl) itemLabel(item string) string {
	if _, ok := h.compiler.Registry().Entity(item); ok {
		return item
	}
	return "unknown"
}

// respondWithCSV writes rows under a header of mapper.Columns
func (h *HTTPHandlerImpl) respondWithCSV(w http.ResponseWriter, entity string, rows []map[string]any) {
	columns := h.mapper.Columns(entity, rows)

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", entity+".csv"))
	w.WriteHeader(http.StatusOK)

	cw := csv.NewWriter(w)
	if err := cw.Write(columns); err != nil {
		logging.Error("Failed to write CSV header", "error", err)
		return
	}
	record := make([]string, len(columns))
	for _, row := range rows {
		for i, col := range columns {
			record[i] = cell(row[col])
		}
		if err := cw.Write(record); err != nil {
			logging.Error("Failed to write CSV row", "error", err)
			return
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		logging.Error("Failed to flush CSV", "error", err)
	}
}

func cell(v any) string {
	switch v := v.(type) {
	case nil:
		return ""
	case string:
		return v
	case json.Number:
		return v.String()
	case bool:
		return strconv.FormatBool(v)
	case map[string]any, []any:
		b, _ := json.Marshal(v)
		return string(b)
	default:
		return fmt.Sprint(v)
	}
}
