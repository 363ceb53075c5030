package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"paystream-cloud/internal/audit"
	"paystream-cloud/internal/auth"
	"paystream-cloud/internal/observability/metrics"
	streamsapp "paystream-cloud/internal/streams/application"
	streamsifaces "paystream-cloud/internal/streams/interfaces"

	streams "paystream-cloud/internal/streams/domain"
)

// Handler provides stream HTTP endpoints under /api/v1/streams.
type Handler struct {
	service     *streamsapp.Service
	auditLogger audit.Logger
}

// NewHandler constructs a handler.
func NewHandler(service *streamsapp.Service, auditLogger audit.Logger) (*Handler, error) {
	if service == nil {
		return nil, errors.New("streams handler: nil service")
	}
	return &Handler{service: service, auditLogger: auditLogger}, nil
}

// ServeHTTP routes /api/v1/streams and its subresources.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/v1/streams")
	rest = strings.TrimPrefix(rest, "/")

	if rest == "" {
		switch r.Method {
		case http.MethodPost:
			h.handleCreate(w, r)
		case http.MethodGet:
			h.handleList(w, r)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
		return
	}

	parts := strings.SplitN(rest, "/", 2)
	streamID := parts[0]
	if len(parts) == 1 {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.handleGet(w, r, streamID)
		return
	}

	action := parts[1]
	switch {
	case action == "events" && r.Method == http.MethodGet:
		h.handleEvents(w, r, streamID)
	case strings.HasPrefix(action, "statement.") && r.Method == http.MethodGet:
		h.handleStatement(w, r, streamID, strings.TrimPrefix(action, "statement."))
	case action == "pause" && r.Method == http.MethodPost:
		h.handleTransition(w, r, streamID, "pause")
	case action == "resume" && r.Method == http.MethodPost:
		h.handleTransition(w, r, streamID, "resume")
	case action == "cancel" && r.Method == http.MethodPost:
		h.handleTransition(w, r, streamID, "cancel")
	case action == "topup" && r.Method == http.MethodPost:
		h.handleTopUp(w, r, streamID)
	case action == "withdraw" && r.Method == http.MethodPost:
		h.handleWithdraw(w, r, streamID)
	default:
		http.Error(w, "not found", http.StatusNotFound)
	}
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "read body error", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	var req streamsapp.CreateRequest
	if err := json.Unmarshal(body, &req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if key := r.Header.Get("Idempotency-Key"); key != "" {
		req.IdempotencyKey = key
	}

	view, err := h.service.Create(r.Context(), req, actorFromContext(r))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, view)
	h.logAudit(r, view.TenantID, "stream.create", view.ID, map[string]any{
		"flow_rate_per_month": view.FlowRatePerMonth,
		"funded_amount":       view.FundedAmount,
	})
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	views, err := h.service.List(r.Context())
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, views)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request, streamID string) {
	view, err := h.service.Get(r.Context(), streamID)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, view)
}

func (h *Handler) handleEvents(w http.ResponseWriter, r *http.Request, streamID string) {
	events, err := h.service.ListEvents(r.Context(), streamID)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, events)
}

func (h *Handler) handleTransition(w http.ResponseWriter, r *http.Request, streamID, transition string) {
	actor := actorFromContext(r)
	var view *streamsapp.StreamView
	var err error
	switch transition {
	case "pause":
		view, err = h.service.Pause(r.Context(), streamID, actor)
	case "resume":
		view, err = h.service.Resume(r.Context(), streamID, actor)
	case "cancel":
		view, err = h.service.Cancel(r.Context(), streamID, actor)
	}
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, view)
	h.logAudit(r, view.TenantID, "stream."+transition, view.ID, map[string]any{
		"status": view.Status,
	})
}

func (h *Handler) handleTopUp(w http.ResponseWriter, r *http.Request, streamID string) {
	var req streamsapp.TopUpRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	view, err := h.service.TopUp(r.Context(), streamID, req, actorFromContext(r))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, view)
	h.logAudit(r, view.TenantID, "stream.topup", view.ID, map[string]any{
		"amount":        req.Amount,
		"funded_amount": view.FundedAmount,
	})
}

func (h *Handler) handleWithdraw(w http.ResponseWriter, r *http.Request, streamID string) {
	var req streamsapp.WithdrawRequest
	if r.Body != nil {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "read body error", http.StatusBadRequest)
			return
		}
		defer r.Body.Close()
		if len(body) > 0 {
			if err := json.Unmarshal(body, &req); err != nil {
				http.Error(w, "invalid json", http.StatusBadRequest)
				return
			}
		}
	}

	view, err := h.service.Withdraw(r.Context(), streamID, req, actorFromContext(r))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, view)
	h.logAudit(r, view.TenantID, "stream.withdraw", view.ID, map[string]any{
		"total_withdrawn": view.TotalWithdrawn,
	})
}

func (h *Handler) handleStatement(w http.ResponseWriter, r *http.Request, streamID, format string) {
	start := time.Now()
	view, err := h.service.Get(r.Context(), streamID)
	if err != nil {
		metrics.ObserveStatementExport(format, "error", time.Since(start))
		respondError(w, err)
		return
	}
	events, err := h.service.ListEvents(r.Context(), streamID)
	if err != nil {
		metrics.ObserveStatementExport(format, "error", time.Since(start))
		respondError(w, err)
		return
	}

	var data []byte
	var contentType string
	switch format {
	case "csv":
		contentType = "text/csv"
		data, err = streamsifaces.BuildStatementCSV(view, events)
	case "pdf":
		contentType = "application/pdf"
		data, err = streamsifaces.BuildStatementPDF(view, events)
	case "xlsx":
		contentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
		data, err = streamsifaces.BuildStatementXLSX(view, events)
	default:
		http.Error(w, "unsupported format", http.StatusBadRequest)
		return
	}
	if err != nil {
		metrics.ObserveStatementExport(format, "error", time.Since(start))
		http.Error(w, "export failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", `attachment; filename="statement-`+streamID+`.`+format+`"`)
	_, _ = w.Write(data)
	metrics.ObserveStatementExport(format, "success", time.Since(start))
}

func actorFromContext(r *http.Request) streamsapp.Actor {
	return streamsapp.Actor{
		Subject: auth.SubjectFromContext(r.Context()),
		AgentID: auth.AgentIDFromContext(r.Context()),
	}
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, streams.ErrStreamNotFound):
		http.Error(w, "not found", http.StatusNotFound)
	case errors.Is(err, streams.ErrVersionConflict):
		http.Error(w, "conflict, retry", http.StatusConflict)
	case errors.Is(err, auth.ErrTenantMismatch):
		http.Error(w, "forbidden", http.StatusForbidden)
	case errors.Is(err, auth.ErrNotFound):
		http.Error(w, "account not found", http.StatusNotFound)
	case streams.IsInsufficientBalance(err):
		http.Error(w, err.Error(), http.StatusPaymentRequired)
	case streams.IsValidation(err):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func (h *Handler) logAudit(r *http.Request, tenantID, action, streamID string, meta map[string]any) {
	if h.auditLogger == nil || tenantID == "" {
		return
	}
	payload, _ := json.Marshal(meta)
	_ = h.auditLogger.Log(r.Context(), audit.Entry{
		TenantID:     tenantID,
		Actor:        auth.SubjectFromContext(r.Context()),
		Role:         string(auth.RoleFromContext(r.Context())),
		Action:       action,
		ResourceType: "stream",
		ResourceID:   streamID,
		StreamID:     streamID,
		Metadata:     payload,
		IP:           audit.ClientIP(r),
		UserAgent:    r.UserAgent(),
	})
}
