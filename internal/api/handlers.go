package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/LeventeLantos/sms-campaign/internal/model"
	"github.com/LeventeLantos/sms-campaign/internal/repo"
	"github.com/LeventeLantos/sms-campaign/internal/scheduler"
	"github.com/LeventeLantos/sms-campaign/internal/segment"
	"github.com/LeventeLantos/sms-campaign/internal/service"
)

const maxAnalyzeBody = 64 << 10

type SchedulerControl interface {
	Start() bool
	Stop() bool
	Status() scheduler.Status
}

// RunReporter exposes the state of the campaign runner.
type RunReporter interface {
	IsRunning() bool
	LastSummary() *service.RunSummary
}

type Handler struct {
	sched   SchedulerControl
	runs    RunReporter
	sendLog repo.SendLog
}

// NewHandler wires the API. sendLog may be nil when no database is configured.
func NewHandler(s SchedulerControl, runs RunReporter, sendLog repo.SendLog) *Handler {
	return &Handler{sched: s, runs: runs, sendLog: sendLog}
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (h *Handler) SchedulerStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.sched.Status())
}

func (h *Handler) SchedulerStart(w http.ResponseWriter, r *http.Request) {
	h.sched.Start()
	writeJSON(w, http.StatusOK, h.sched.Status())
}

func (h *Handler) SchedulerStop(w http.ResponseWriter, r *http.Request) {
	h.sched.Stop()
	writeJSON(w, http.StatusOK, h.sched.Status())
}

type sendItem struct {
	ID          int64        `json:"id"`
	RunID       string       `json:"run_id"`
	CampaignRow int          `json:"campaign_row"`
	Kind        model.Kind   `json:"kind"`
	Phone       string       `json:"phone"`
	Body        string       `json:"body"`
	Status      model.Status `json:"status"`
	MessageID   *string      `json:"message_id,omitempty"`
	LastError   *string      `json:"last_error,omitempty"`
	Segments    int          `json:"segments"`
	Cost        float64      `json:"cost"`
	SentAt      time.Time    `json:"sent_at"`
}

func (h *Handler) ListSends(w http.ResponseWriter, r *http.Request) {
	if h.sendLog == nil {
		writeError(w, http.StatusServiceUnavailable, errors.New("send log is not configured"))
		return
	}

	limit := parseInt(r.URL.Query().Get("limit"), 50)
	offset := parseInt(r.URL.Query().Get("offset"), 0)

	recs, err := h.sendLog.ListSent(r.Context(), limit, offset)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	items := make([]sendItem, 0, len(recs))
	for _, rec := range recs {
		items = append(items, sendItem{
			ID:          rec.ID,
			RunID:       rec.RunID,
			CampaignRow: rec.CampaignRow,
			Kind:        rec.CampaignKind,
			Phone:       rec.Phone,
			Body:        rec.Body,
			Status:      rec.Status,
			MessageID:   rec.MessageID,
			LastError:   rec.LastError,
			Segments:    rec.Segments,
			Cost:        rec.Cost,
			SentAt:      rec.SentAt,
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{"items": items, "limit": limit, "offset": offset})
}

func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	out := map[string]any{
		"run_in_progress": h.runs.IsRunning(),
		"last_run":        h.runs.LastSummary(),
	}

	if h.sendLog != nil {
		counts, err := h.sendLog.CountByStatus(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		out["sends_by_status"] = counts
	}

	writeJSON(w, http.StatusOK, out)
}

type analyzeRequest struct {
	Message  string   `json:"message"`
	Messages []string `json:"messages,omitempty"`
}

func (h *Handler) AnalyzeMessage(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxAnalyzeBody))
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if strings.TrimSpace(req.Message) == "" && len(req.Messages) == 0 {
		writeError(w, http.StatusBadRequest, errors.New("message is required"))
		return
	}

	out := map[string]any{}
	if req.Message != "" {
		a := segment.Analyze(req.Message)
		out["analysis"] = a
		out["cost_formatted"] = a.CostFormatted()
	}
	if len(req.Messages) > 0 {
		rep := segment.AnalyzeCampaign(req.Messages)
		out["campaign"] = rep
		out["total_cost_formatted"] = rep.TotalCostFormatted()
	}

	writeJSON(w, http.StatusOK, out)
}

func parseInt(raw string, def int) int {
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return def
	}
	return v
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]any{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
