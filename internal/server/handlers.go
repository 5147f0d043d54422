package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/koustreak/dbkit/internal/errs"
	"github.com/koustreak/dbkit/internal/model"
	"github.com/koustreak/dbkit/internal/report"
	"github.com/koustreak/dbkit/internal/validator"
)

type tableInfo struct {
	Name        string   `json:"name"`
	Schema      string   `json:"schema,omitempty"`
	Columns     []string `json:"columns"`
	PrimaryKey  []string `json:"primary_key"`
	Constraints int      `json:"unique_constraints"`
	Indexes     int      `json:"indexes"`
}

// ValidationRequest is the body of POST /v1/validations. An empty Tables
// list validates every declared table.
type ValidationRequest struct {
	Tables []string `json:"tables"`
	Strict bool     `json:"strict"`
}

// ValidationResponse wraps a result with the strict-mode error, if any.
type ValidationResponse struct {
	Error  string            `json:"error,omitempty"`
	Result *validator.Result `json:"result,omitempty"`
}

type BatchResponse struct {
	Error  string         `json:"error,omitempty"`
	Report *report.Report `json:"report"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.db != nil {
		if err := s.db.Ping(r.Context()); err != nil {
			jsonResponse(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
			return
		}
	}
	jsonResponse(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListTables(w http.ResponseWriter, _ *http.Request) {
	out := make([]tableInfo, 0, len(s.tables))
	for _, t := range s.tables {
		pk := t.PrimaryKey()
		if pk == nil {
			pk = []string{}
		}
		out = append(out, tableInfo{
			Name:        t.Name,
			Schema:      t.Schema,
			Columns:     t.ColumnNames(),
			PrimaryKey:  pk,
			Constraints: len(t.UniqueConstraints),
			Indexes:     len(t.Indexes),
		})
	}
	jsonResponse(w, http.StatusOK, out)
}

func (s *Server) handleValidateTable(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "table")
	t, ok := s.byName[name]
	if !ok {
		errorResponse(w, http.StatusNotFound, "no model declared for table "+strconv.Quote(name))
		return
	}

	strict, err := boolQuery(r, "strict")
	if err != nil {
		errorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := s.validator.Validate(r.Context(), t, strict)
	if err != nil {
		if res == nil {
			errorResponse(w, statusFor(err), err.Error())
			return
		}
		jsonResponse(w, statusFor(err), ValidationResponse{Error: err.Error(), Result: res})
		return
	}
	jsonResponse(w, http.StatusOK, ValidationResponse{Result: res})
}

func (s *Server) handleValidateMany(w http.ResponseWriter, r *http.Request) {
	var req ValidationRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			errorResponse(w, http.StatusBadRequest, "invalid request body: "+err.Error())
			return
		}
	}

	tables, err := s.selectTables(req.Tables)
	if err != nil {
		errorResponse(w, statusFor(err), err.Error())
		return
	}

	started := time.Now()
	batch, err := s.validator.ValidateAll(r.Context(), tables, req.Strict)
	if batch == nil || errs.IsTimeout(err) {
		errorResponse(w, statusFor(err), err.Error())
		return
	}

	resp := BatchResponse{Report: report.New(batch, started, s.meta)}
	status := http.StatusOK
	if err != nil {
		resp.Error = err.Error()
		status = statusFor(err)
	}
	jsonResponse(w, status, resp)
}

func (s *Server) selectTables(names []string) ([]*model.Table, error) {
	if len(names) == 0 {
		return s.tables, nil
	}
	out := make([]*model.Table, 0, len(names))
	for _, n := range names {
		t, ok := s.byName[n]
		if !ok {
			return nil, errs.Newf(errs.ErrKindNotFound, "no model declared for table %q", n)
		}
		out = append(out, t)
	}
	return out, nil
}

func (s *Server) handleWatchStatus(w http.ResponseWriter, _ *http.Request) {
	if s.watch == nil {
		errorResponse(w, http.StatusNotFound, "scheduled watch is not enabled")
		return
	}
	jsonResponse(w, http.StatusOK, s.watch.Status())
}

func (s *Server) handleListReports(w http.ResponseWriter, r *http.Request) {
	if s.reports == nil {
		errorResponse(w, http.StatusNotFound, "report archive is not configured")
		return
	}
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			errorResponse(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}
	objects, err := s.reports.List(r.Context(), limit)
	if err != nil {
		errorResponse(w, statusFor(err), err.Error())
		return
	}
	jsonResponse(w, http.StatusOK, objects)
}

func (s *Server) handleGetReport(w http.ResponseWriter, r *http.Request) {
	if s.reports == nil {
		errorResponse(w, http.StatusNotFound, "report archive is not configured")
		return
	}
	key := chi.URLParam(r, "*")
	rep, err := s.reports.Load(r.Context(), key)
	if err != nil {
		errorResponse(w, statusFor(err), err.Error())
		return
	}
	jsonResponse(w, http.StatusOK, rep)
}

func boolQuery(r *http.Request, name string) (bool, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, errs.Newf(errs.ErrKindInvalidInput, "query parameter %s: %q is not a boolean", name, v)
	}
	return b, nil
}
