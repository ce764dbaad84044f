// Package api exposes the termfix daemon over HTTP: notification
// ingress for the host editor, buffer queries for AI-context assembly,
// the quick-fix pipeline, and a websocket realtime feed.
package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/termfix/termfix/internal/buffer"
	"github.com/termfix/termfix/internal/domain"
	"github.com/termfix/termfix/internal/present"
	"github.com/termfix/termfix/internal/quickfix"
	"github.com/termfix/termfix/internal/realtime"
	"github.com/termfix/termfix/internal/storage"
	apiTypes "github.com/termfix/termfix/pkg/api"
	realtimeTypes "github.com/termfix/termfix/pkg/realtime"
)

// Handler routes REST requests to the buffer store and the quick-fix
// pipeline.
type Handler struct {
	buffers   *buffer.Store
	matcher   *quickfix.Matcher
	tracker   *quickfix.Tracker
	engine    *quickfix.Engine
	presenter *present.Presenter
	history   storage.FixHistory
	rulesPath string

	realtimeHub *realtime.Hub
	snapshotter *realtime.SnapshotProvider
}

func NewHandler(buffers *buffer.Store, matcher *quickfix.Matcher, tracker *quickfix.Tracker, engine *quickfix.Engine, presenter *present.Presenter, history storage.FixHistory, rulesPath string, hub *realtime.Hub) *Handler {
	h := &Handler{
		buffers:     buffers,
		matcher:     matcher,
		tracker:     tracker,
		engine:      engine,
		presenter:   presenter,
		history:     history,
		rulesPath:   rulesPath,
		realtimeHub: hub,
		snapshotter: realtime.NewSnapshotProvider(buffers),
	}
	h.startRealtimeBridge()
	return h
}

// Mount registers all API routes on the provided router.
func (h *Handler) Mount(r chi.Router) {
	r.Get("/api/v1/terminals", h.listTerminals)
	r.Post("/api/v1/terminals/{handle}/output", h.terminalOutputWritten)
	r.Post("/api/v1/terminals/{handle}/commands", h.terminalCommandCompleted)
	r.Delete("/api/v1/terminals/{handle}", h.terminalClosed)
	r.Get("/api/v1/terminals/{handle}/output", h.getJoinedOutput)
	r.Get("/api/v1/terminals/{handle}/last-command", h.getLastCommand)
	r.Post("/api/v1/terminals/{handle}/quickfix", h.suggestFix)
	r.Post("/api/v1/terminals/{handle}/quickfix/apply", h.applyFix)
	r.Post("/api/v1/quickfix/cancel", h.cancelFix)
	r.Get("/api/v1/quickfix/rules", h.getRules)
	r.Put("/api/v1/quickfix/rules", h.putRules)
	r.Get("/api/v1/quickfix/history", h.listFixHistory)
	r.Get("/api/realtime", h.realtimeWebSocket)
}

// startRealtimeBridge forwards buffer store events onto the websocket
// topics. Dispatch events are published by the input dispatcher itself,
// so EventTypeFixDispatched is not forwarded here.
func (h *Handler) startRealtimeBridge() {
	if h.buffers == nil || h.realtimeHub == nil {
		return
	}

	events, _ := h.buffers.Events().Subscribe(128)
	go func() {
		for event := range events {
			switch event.Type {
			case domain.EventTypeChunkAppended, domain.EventTypeCommandRecorded, domain.EventTypeTerminalClosed:
				h.realtimeHub.Publish(realtime.TopicTerminalActivity, realtimeTypes.ServerEnvelope{
					Type:  realtimeTypes.ServerMessageTypeEvent,
					Topic: realtime.TopicTerminalActivity,
					Payload: realtimeTypes.TerminalActivityEvent{
						Handle:    string(event.Handle),
						Kind:      event.Type.String(),
						Timestamp: event.Timestamp,
					},
				})
			case domain.EventTypeSuggestionsReady:
				data, ok := event.Data.(domain.SuggestionsData)
				if !ok {
					continue
				}
				h.realtimeHub.Publish(realtime.TopicSuggestions, realtimeTypes.ServerEnvelope{
					Type:  realtimeTypes.ServerMessageTypeEvent,
					Topic: realtime.TopicSuggestions,
					Payload: realtimeTypes.SuggestionsEvent{
						Handle:      string(event.Handle),
						RequestID:   data.RequestID,
						Timestamp:   event.Timestamp,
						Suggestions: suggestionsToRealtime(data.Suggestions),
					},
				})
			}
		}
	}()
}

func (h *Handler) terminalOutputWritten(w http.ResponseWriter, r *http.Request) {
	handle := chi.URLParam(r, "handle")
	if handle == "" {
		writeError(w, http.StatusBadRequest, "terminal handle is required", "")
		return
	}

	var req apiTypes.OutputWrittenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	h.buffers.OutputWritten(domain.Handle(handle), req.Data)
	w.WriteHeader(http.StatusAccepted)
}

func (h *Handler) terminalCommandCompleted(w http.ResponseWriter, r *http.Request) {
	handle := chi.URLParam(r, "handle")
	if handle == "" {
		writeError(w, http.StatusBadRequest, "terminal handle is required", "")
		return
	}

	var req apiTypes.CommandCompletedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	record := domain.CommandRecord{
		CommandLine:      req.CommandLine,
		WorkingDirectory: req.WorkingDirectory,
		ExitCode:         req.ExitCode,
		Output:           req.Output,
	}
	h.buffers.CommandCompleted(domain.Handle(handle), record)

	if h.matcher != nil && h.tracker != nil {
		if mc, ok := h.matcher.Match(domain.Handle(handle), record); ok {
			h.tracker.Record(mc)
		}
	}

	w.WriteHeader(http.StatusAccepted)
}

func (h *Handler) terminalClosed(w http.ResponseWriter, r *http.Request) {
	handle := chi.URLParam(r, "handle")
	if handle == "" {
		writeError(w, http.StatusBadRequest, "terminal handle is required", "")
		return
	}

	h.buffers.TerminalClosed(domain.Handle(handle))
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listTerminals(w http.ResponseWriter, r *http.Request) {
	handles := h.buffers.Handles()
	terminals := make([]apiTypes.TerminalSummary, 0, len(handles))
	for _, handle := range handles {
		summary := apiTypes.TerminalSummary{
			Handle:     string(handle),
			ChunkCount: h.buffers.ChunkCount(handle),
		}
		if rec, ok := h.buffers.LastCommand(handle); ok {
			summary.LastCommand = rec.CommandLine
		}
		terminals = append(terminals, summary)
	}
	writeJSON(w, http.StatusOK, apiTypes.TerminalListResponse{Terminals: terminals})
}

func (h *Handler) getJoinedOutput(w http.ResponseWriter, r *http.Request) {
	handle := chi.URLParam(r, "handle")

	maxChars := 0
	if raw := r.URL.Query().Get("max_chars"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			writeError(w, http.StatusBadRequest, "invalid max_chars", raw)
			return
		}
		maxChars = parsed
	}

	output := h.buffers.JoinedOutput(domain.Handle(handle), maxChars)
	writeJSON(w, http.StatusOK, apiTypes.JoinedOutputResponse{Output: output})
}

func (h *Handler) getLastCommand(w http.ResponseWriter, r *http.Request) {
	handle := chi.URLParam(r, "handle")

	rec, ok := h.buffers.LastCommand(domain.Handle(handle))
	if !ok {
		writeError(w, http.StatusNotFound, "no commands recorded for terminal", handle)
		return
	}
	writeJSON(w, http.StatusOK, apiTypes.LastCommandResponse{
		CommandLine:      rec.CommandLine,
		WorkingDirectory: rec.WorkingDirectory,
		ExitCode:         rec.ExitCode,
		Output:           rec.Output,
	})
}

func (h *Handler) suggestFix(w http.ResponseWriter, r *http.Request) {
	handle := chi.URLParam(r, "handle")

	mc, ok := h.tracker.Latest()
	if !ok || mc.Handle != domain.Handle(handle) {
		writeError(w, http.StatusNotFound, "no pending quick-fix match for terminal", handle)
		return
	}

	result, err := h.engine.Suggest(r.Context(), mc)
	if err != nil {
		writeSuggestFailure(w, err)
		return
	}

	ranked := present.Rank(result.Suggestions)
	h.buffers.Events().Broadcast(domain.NewSuggestionsEvent(mc.Handle, result.RequestID, ranked))

	writeJSON(w, http.StatusOK, apiTypes.SuggestResponse{
		RequestID:   result.RequestID,
		Suggestions: suggestionsToAPI(ranked),
		Existing:    result.Existing,
		Missing:     result.Missing,
	})
}

func (h *Handler) cancelFix(w http.ResponseWriter, r *http.Request) {
	h.engine.Cancel()
	w.WriteHeader(http.StatusAccepted)
}

func (h *Handler) applyFix(w http.ResponseWriter, r *http.Request) {
	handle := chi.URLParam(r, "handle")

	var req apiTypes.ApplyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if req.Suggestion.Command == "" {
		writeError(w, http.StatusBadRequest, "suggestion command is required", "")
		return
	}

	suggestion := domain.CommandSuggestion{
		Command:     req.Suggestion.Command,
		Description: req.Suggestion.Description,
		Relevance:   domain.ParseRelevance(req.Suggestion.Relevance),
	}
	decision, err := h.presenter.Apply(r.Context(), domain.Handle(handle), req.RequestID, suggestion)
	if err != nil {
		writeError(w, http.StatusBadGateway, "failed to apply suggestion", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, apiTypes.ApplyResponse{
		Action:  decision.Action.String(),
		Command: decision.Command,
	})
}

func (h *Handler) getRules(w http.ResponseWriter, r *http.Request) {
	cfg, err := quickfix.LoadRuleConfig(h.rulesPath)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "invalid rules config", err.Error())
		return
	}
	if cfg == nil {
		cfg = quickfix.DefaultRuleConfig()
	}
	writeJSON(w, http.StatusOK, rulesToAPI(cfg))
}

func (h *Handler) putRules(w http.ResponseWriter, r *http.Request) {
	var req apiTypes.RulesConfig
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	cfg := rulesFromAPI(req)
	if h.matcher != nil {
		if err := h.matcher.SetConfig(cfg); err != nil {
			writeError(w, http.StatusBadRequest, "invalid rules config", err.Error())
			return
		}
	}
	if err := quickfix.SaveRuleConfig(h.rulesPath, cfg); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to save rules config", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, rulesToAPI(cfg))
}

func (h *Handler) listFixHistory(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		writeJSON(w, http.StatusOK, apiTypes.FixHistoryResponse{Fixes: []apiTypes.FixRecord{}})
		return
	}

	records, err := h.history.List()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list fix history", err.Error())
		return
	}

	fixes := make([]apiTypes.FixRecord, 0, len(records))
	for _, rec := range records {
		fixes = append(fixes, apiTypes.FixRecord{
			ID:        rec.ID,
			RequestID: rec.RequestID,
			Handle:    rec.Handle,
			Command:   rec.Command,
			Executed:  rec.Executed,
			Relevance: rec.Relevance.String(),
			AppliedAt: rec.AppliedAt,
		})
	}
	writeJSON(w, http.StatusOK, apiTypes.FixHistoryResponse{Fixes: fixes})
}

func writeSuggestFailure(w http.ResponseWriter, err error) {
	kind := quickfix.KindOf(err)
	status := http.StatusInternalServerError
	switch kind {
	case quickfix.FailureBackendUnavailable:
		status = http.StatusServiceUnavailable
	case quickfix.FailureCancelled:
		status = http.StatusConflict
	case quickfix.FailureMalformedResponse:
		status = http.StatusBadGateway
	}
	writeJSON(w, status, apiTypes.SuggestFailureResponse{
		Kind:    string(kind),
		Message: err.Error(),
	})
}

func suggestionsToAPI(suggestions []domain.CommandSuggestion) []apiTypes.Suggestion {
	out := make([]apiTypes.Suggestion, 0, len(suggestions))
	for _, s := range suggestions {
		out = append(out, apiTypes.Suggestion{
			Command:     s.Command,
			Description: s.Description,
			Relevance:   s.Relevance.String(),
		})
	}
	return out
}

func suggestionsToRealtime(suggestions []domain.CommandSuggestion) []realtimeTypes.Suggestion {
	out := make([]realtimeTypes.Suggestion, 0, len(suggestions))
	for _, s := range suggestions {
		out = append(out, realtimeTypes.Suggestion{
			Command:     s.Command,
			Description: s.Description,
			Relevance:   s.Relevance.String(),
		})
	}
	return out
}

func rulesToAPI(cfg *quickfix.RuleConfig) apiTypes.RulesConfig {
	rules := make([]apiTypes.Rule, 0, len(cfg.Rules))
	for _, rule := range cfg.Rules {
		rules = append(rules, apiTypes.Rule{
			ID:             rule.ID,
			Enabled:        rule.Enabled,
			CommandPattern: rule.CommandPattern,
			OutputPattern:  rule.OutputPattern,
		})
	}
	return apiTypes.RulesConfig{Version: cfg.Version, Rules: rules}
}

func rulesFromAPI(cfg apiTypes.RulesConfig) *quickfix.RuleConfig {
	rules := make([]quickfix.RuleDefinition, 0, len(cfg.Rules))
	for _, rule := range cfg.Rules {
		rules = append(rules, quickfix.RuleDefinition{
			ID:             rule.ID,
			Enabled:        rule.Enabled,
			CommandPattern: rule.CommandPattern,
			OutputPattern:  rule.OutputPattern,
		})
	}
	return &quickfix.RuleConfig{Version: cfg.Version, Rules: rules}
}

func writeJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, code int, message, details string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	resp := apiTypes.ErrorResponse{Error: message}
	if details != "" {
		resp.Details = details
	}
	_ = json.NewEncoder(w).Encode(resp)
}
