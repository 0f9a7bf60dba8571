package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jonathan/plan-auditor/internal/cache"
	"github.com/jonathan/plan-auditor/internal/db"
	"github.com/jonathan/plan-auditor/internal/parsing"
	"github.com/jonathan/plan-auditor/internal/pipeline"
	"github.com/jonathan/plan-auditor/internal/pipeline/steps"
	"github.com/jonathan/plan-auditor/internal/rendering"
	"github.com/jonathan/plan-auditor/internal/types"
)

const maxListLimit = 200

// AnalyzeRequest is the JSON form of an analysis request.
type AnalyzeRequest struct {
	HTML string `json:"html"`
}

// AnalyzeResponse is returned by the analyze endpoints.
type AnalyzeResponse struct {
	RunID           string                 `json:"run_id,omitempty"`
	Cached          bool                   `json:"cached"`
	Empty           bool                   `json:"empty"`
	Overview        types.Overview         `json:"overview"`
	Report          *types.Report          `json:"report"`
	Recommendations []types.Recommendation `json:"recommendations"`
	Diagnostics     parsing.Diagnostics    `json:"diagnostics"`
}

// RunDetail is a stored run with its step history.
type RunDetail struct {
	Run          *db.Run      `json:"run"`
	Steps        []db.RunStep `json:"steps"`
	PendingSteps []string     `json:"pending_steps"`
}

// readPlanHTML accepts a multipart upload in "file", a JSON body with an
// "html" field, or the raw page as the body.
func (s *Server) readPlanHTML(w http.ResponseWriter, r *http.Request) (string, error) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	var html string
	switch mediaType {
	case "multipart/form-data":
		file, _, err := r.FormFile("file")
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				return "", err
			}
			return "", &ErrValidation{Field: "file", Message: "multipart field 'file' is required"}
		}
		defer file.Close()
		data, err := io.ReadAll(file)
		if err != nil {
			return "", fmt.Errorf("failed to read upload: %w", err)
		}
		html = string(data)
	case "application/json":
		var req AnalyzeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				return "", err
			}
			return "", &ErrValidation{Field: "body", Message: "invalid JSON"}
		}
		html = req.HTML
	default:
		data, err := io.ReadAll(r.Body)
		if err != nil {
			return "", err
		}
		html = string(data)
	}

	if strings.TrimSpace(html) == "" {
		return "", &ErrValidation{Field: "html", Message: "plan page is empty"}
	}
	return html, nil
}

// analyze serves a cached analysis of html or runs the pipeline.
func (s *Server) analyze(ctx context.Context, html string, onProgress pipeline.ProgressCallback) (*AnalyzeResponse, error) {
	key := cache.AnalysisKey(html)
	if s.cache.Enabled() {
		var cached AnalyzeResponse
		err := s.cache.Get(ctx, key, &cached)
		switch {
		case err == nil:
			s.metrics.RecordCacheLookup(true)
			cached.Cached = true
			cached.RunID = ""
			return &cached, nil
		case errors.Is(err, cache.ErrCacheMiss):
			s.metrics.RecordCacheLookup(false)
		default:
			s.logger.Warn("analysis cache read failed", zap.Error(err))
		}
	}

	var store pipeline.Store
	if s.store != nil {
		store = s.store
	}
	res, err := pipeline.Run(ctx, pipeline.RunOptions{
		HTML:       html,
		Source:     db.SourceUpload,
		Ratings:    s.Ratings(),
		Store:      store,
		Logger:     s.logger,
		Metrics:    s.metrics,
		OnProgress: onProgress,
		Now:        s.now,
	})
	if err != nil {
		return nil, err
	}

	result := res.Result
	resp := &AnalyzeResponse{
		Empty:           result.Empty(),
		Overview:        result.Overview(),
		Report:          result.Report,
		Recommendations: result.Recommendations,
		Diagnostics:     result.Diagnostics,
	}
	if res.RunID != uuid.Nil {
		resp.RunID = res.RunID.String()
	}

	if !resp.Empty {
		if err := s.cache.Set(ctx, key, resp, 0); err != nil {
			s.logger.Warn("analysis cache write failed", zap.Error(err))
		}
	}
	return resp, nil
}

// handleAnalyze analyzes an uploaded plan page. With ?format= the rendered
// export is returned as a download instead of JSON.
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var format rendering.Format
	if f := r.URL.Query().Get("format"); f != "" {
		parsed, err := rendering.ParseFormat(f)
		if err != nil {
			s.writeError(w, &ErrValidation{Field: "format", Message: err.Error()})
			return
		}
		format = parsed
	}

	html, err := s.readPlanHTML(w, r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	resp, err := s.analyze(r.Context(), html, nil)
	if err != nil {
		s.writeError(w, err)
		return
	}

	if format == "" {
		s.jsonResponse(w, http.StatusOK, resp)
		return
	}
	s.writeExport(w, format, resp.Report, resp.Recommendations)
}

// handleAnalyzeStream analyzes an uploaded plan page, streaming step
// progress as server-sent events.
func (s *Server) handleAnalyzeStream(w http.ResponseWriter, r *http.Request) {
	html, err := s.readPlanHTML(w, r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	sse, err := NewSSEWriter(w)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}

	resp, err := s.analyze(r.Context(), html, sse.WriteProgress)
	if err != nil {
		s.logger.Warn("streamed analysis failed", zap.Error(err))
		sse.WriteError(err)
		return
	}
	sse.WriteComplete(resp)
}

func (s *Server) writeExport(w http.ResponseWriter, format rendering.Format, report *types.Report, recs []types.Recommendation) {
	data, err := rendering.Render(format, report, recs, s.cfg.Render)
	if err != nil {
		s.writeError(w, err)
		return
	}

	name := rendering.DefaultFilename(report.Student.StudentID, report.GeneratedAt) + format.Extension()
	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name}))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		s.logger.Warn("failed to write export", zap.Error(err))
	}
}

func (s *Server) runID(r *http.Request) (uuid.UUID, error) {
	if s.store == nil {
		return uuid.Nil, ErrPersistenceDisabled
	}
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		return uuid.Nil, &ErrValidation{Field: "id", Message: "invalid run ID"}
	}
	return id, nil
}

func (s *Server) loadRun(ctx context.Context, id uuid.UUID) (*db.Run, error) {
	run, err := s.store.GetRun(ctx, id)
	if err != nil {
		return nil, err
	}
	if run == nil {
		return nil, &ErrNotFound{Resource: "run", ID: id.String()}
	}
	return run, nil
}

// handleListRuns lists recent runs, filtered by student_id and status.
func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		s.writeError(w, ErrPersistenceDisabled)
		return
	}

	q := r.URL.Query()
	filters := db.RunFilters{
		StudentID: q.Get("student_id"),
		Status:    q.Get("status"),
	}
	switch filters.Status {
	case "", db.RunStatusRunning, db.RunStatusCompleted, db.RunStatusEmpty, db.RunStatusFailed:
	default:
		s.writeError(w, &ErrValidation{Field: "status", Message: "unknown run status"})
		return
	}
	if v := q.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 1 || limit > maxListLimit {
			s.writeError(w, &ErrValidation{Field: "limit", Message: fmt.Sprintf("must be between 1 and %d", maxListLimit)})
			return
		}
		filters.Limit = limit
	}

	runs, err := s.store.ListRuns(r.Context(), filters)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{
		"runs":  runs,
		"count": len(runs),
	})
}

// handleGetRun returns a run with its step history.
func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	id, err := s.runID(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	run, err := s.loadRun(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}

	stepList, err := s.store.ListRunSteps(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	pending, err := steps.Pending(r.Context(), s.store, id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, RunDetail{Run: run, Steps: stepList, PendingSteps: pending})
}

// handleRunReport renders a stored run's report. The file name is
// "report.<format>".
func (s *Server) handleRunReport(w http.ResponseWriter, r *http.Request) {
	id, err := s.runID(r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	file := r.PathValue("file")
	ext, ok := strings.CutPrefix(file, "report.")
	if !ok {
		s.writeError(w, &ErrNotFound{Resource: "file", ID: file})
		return
	}
	format, err := rendering.ParseFormat(ext)
	if err != nil {
		s.writeError(w, &ErrValidation{Field: "format", Message: err.Error()})
		return
	}

	report, err := s.store.GetReportByRunID(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if report == nil {
		s.writeError(w, &ErrNotFound{Resource: "report", ID: id.String()})
		return
	}
	recs, err := s.store.GetRecommendationsByRunID(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeExport(w, format, report, recs)
}

// GroupsResponse lists the requirement groups of a stored run's report.
type GroupsResponse struct {
	Groups []types.GroupAnalysis `json:"groups"`
	Count  int                   `json:"count"`
	// RemainingCredits is set when filtering by kind
	RemainingCredits *float64 `json:"remaining_credits,omitempty"`
}

// handleRunGroups returns the groups of a stored report. "name" selects one
// group, "kind" the groups of a category kind given in English or as the
// Chinese marker; with neither every group is returned.
func (s *Server) handleRunGroups(w http.ResponseWriter, r *http.Request) {
	id, err := s.runID(r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	q := r.URL.Query()
	name, rawKind := q.Get("name"), q.Get("kind")
	if name != "" && rawKind != "" {
		s.writeError(w, &ErrValidation{Field: "kind", Message: "name and kind cannot be combined"})
		return
	}
	var kind types.CategoryKind
	if rawKind != "" {
		k, ok := types.ParseCategoryKind(rawKind)
		if !ok {
			s.writeError(w, &ErrValidation{Field: "kind", Message: fmt.Sprintf("unknown category kind %q", rawKind)})
			return
		}
		kind = k
	}

	report, err := s.store.GetReportByRunID(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if report == nil {
		s.writeError(w, &ErrNotFound{Resource: "report", ID: id.String()})
		return
	}

	var resp GroupsResponse
	switch {
	case name != "":
		g, ok := report.GroupByName(name)
		if !ok {
			s.writeError(w, &ErrNotFound{Resource: "group", ID: name})
			return
		}
		resp.Groups = []types.GroupAnalysis{g}
	case kind != "":
		resp.Groups = report.GroupsByKind(kind)
		rollup, _ := report.Rollup(kind)
		remaining := rollup.Remaining()
		resp.RemainingCredits = &remaining
	default:
		resp.Groups = report.AllGroups()
	}
	if resp.Groups == nil {
		resp.Groups = []types.GroupAnalysis{}
	}
	resp.Count = len(resp.Groups)
	s.jsonResponse(w, http.StatusOK, resp)
}

// handleDeleteRun removes a run and its artifacts.
func (s *Server) handleDeleteRun(w http.ResponseWriter, r *http.Request) {
	id, err := s.runID(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if _, err := s.loadRun(r.Context(), id); err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.store.DeleteRun(r.Context(), id); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
