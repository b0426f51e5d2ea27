package http

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"allowance/internal/core"
	applog "allowance/internal/log"
)

type indexData struct {
	Month string
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if s.templates == nil {
		ErrorResponse(http.StatusInternalServerError, "templates not loaded").Write(w)
		return
	}
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, "index.html", indexData{Month: s.svc.CurrentMonth()}); err != nil {
		writeError(w, r, "render index", err)
		return
	}
	NewResponse().Body("text/html; charset=utf-8", buf.Bytes()).Write(w)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	NewResponse().JSON(map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.started).Round(time.Second).String(),
		"requests":  s.tracer.Stats(),
	}).Write(w)
}

// handleReady reports 503 until the templates are parsed and every table
// can be read.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status, code := "ready", http.StatusOK
	checks := map[string]string{"templates": "ok", "storage": "ok"}
	if s.templates == nil {
		checks["templates"] = "failed: templates not loaded"
		status, code = "not_ready", http.StatusServiceUnavailable
	}
	if s.ready != nil {
		if err := s.ready(ctx); err != nil {
			s.logger.WarnContext(ctx, "Readiness check failed", applog.FieldError, err)
			checks["storage"] = "failed: " + err.Error()
			status, code = "not_ready", http.StatusServiceUnavailable
		}
	}
	NewResponse().Status(code).JSON(map[string]any{"status": status, "checks": checks}).Write(w)
}

func (s *Server) handleListRecords(w http.ResponseWriter, r *http.Request) {
	recs, err := s.svc.Records(r.Context())
	if err != nil {
		writeError(w, r, applog.OpList, err)
		return
	}
	if recs.Records == nil {
		recs.Records = []core.Entry{}
	}
	NewResponse().JSON(recs).Write(w)
}

func (s *Server) handleAddRecord(w http.ResponseWriter, r *http.Request) {
	body, err := ParseRequestBody(w, r, maxJSONBodyBytes)
	if err != nil {
		writeError(w, r, applog.OpAppend, err)
		return
	}
	req, err := parseEntryRequest(body)
	if err != nil {
		writeError(w, r, applog.OpAppend, err)
		return
	}
	e, err := s.svc.AddEntry(r.Context(), req.Item, req.Amount, req.Date)
	if err != nil {
		writeError(w, r, applog.OpAppend, err)
		return
	}
	NewResponse().JSON(e).Write(w)
}

type summaryResponse struct {
	Month string `json:"month"`
	core.MonthSummary
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	month := strings.TrimSpace(r.URL.Query().Get("month"))
	sum, resolved, err := s.svc.Summary(r.Context(), month)
	if err != nil {
		writeError(w, r, applog.OpRead, err)
		return
	}
	NewResponse().JSON(summaryResponse{Month: resolved, MonthSummary: sum}).Write(w)
}

func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	home, err := s.svc.Home(r.Context())
	if err != nil {
		writeError(w, r, applog.OpRead, err)
		return
	}
	if home.Goals == nil {
		home.Goals = []core.GoalStatus{}
	}
	NewResponse().JSON(home).Write(w)
}

func (s *Server) handleListGoals(w http.ResponseWriter, r *http.Request) {
	goals, err := s.svc.Goals(r.Context())
	if err != nil {
		writeError(w, r, applog.OpList, err)
		return
	}
	if goals == nil {
		goals = []core.Goal{}
	}
	NewResponse().JSON(goals).Write(w)
}

func (s *Server) handleAddGoal(w http.ResponseWriter, r *http.Request) {
	body, err := ParseRequestBody(w, r, maxJSONBodyBytes)
	if err != nil {
		writeError(w, r, applog.OpCreate, err)
		return
	}
	goal, amount, err := parseKeyedAmount(body, "goal")
	if err != nil {
		writeError(w, r, applog.OpCreate, badParams(err))
		return
	}
	if err := s.svc.AddGoal(r.Context(), core.Goal{Goal: goal, Amount: amount}); err != nil {
		writeError(w, r, applog.OpCreate, badParams(err))
		return
	}
	okJSON().Write(w)
}

func (s *Server) handleDeleteGoal(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.RemoveGoal(r.Context(), r.URL.Query().Get("goal")); err != nil {
		writeError(w, r, applog.OpDelete, badParams(err))
		return
	}
	okJSON().Write(w)
}

func (s *Server) handleListPresets(w http.ResponseWriter, r *http.Request) {
	presets, err := s.svc.Presets(r.Context())
	if err != nil {
		writeError(w, r, applog.OpList, err)
		return
	}
	if presets == nil {
		presets = []core.Preset{}
	}
	NewResponse().JSON(presets).Write(w)
}

func (s *Server) handleAddPreset(w http.ResponseWriter, r *http.Request) {
	body, err := ParseRequestBody(w, r, maxJSONBodyBytes)
	if err != nil {
		writeError(w, r, applog.OpCreate, err)
		return
	}
	label, amount, err := parseKeyedAmount(body, "label")
	if err != nil {
		writeError(w, r, applog.OpCreate, badParams(err))
		return
	}
	if err := s.svc.AddPreset(r.Context(), core.Preset{Label: label, Amount: amount}); err != nil {
		writeError(w, r, applog.OpCreate, badParams(err))
		return
	}
	okJSON().Write(w)
}

func (s *Server) handleDeletePreset(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.RemovePreset(r.Context(), r.URL.Query().Get("label")); err != nil {
		writeError(w, r, applog.OpDelete, badParams(err))
		return
	}
	okJSON().Write(w)
}

// errBadParams is the single message goal and preset writes answer with.
var errBadParams = errors.New("bad params")

// badParams folds any validation failure of a goal or preset write into
// errBadParams; other errors pass through.
func badParams(err error) error {
	if core.IsValidation(err) {
		return &core.ValidationError{Err: errBadParams}
	}
	return err
}
