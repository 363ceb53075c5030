package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"paystream-cloud/internal/auth"
	governanceapp "paystream-cloud/internal/governance/application"

	governance "paystream-cloud/internal/governance/domain"
)

// Handler provides agent limits endpoints under /api/v1/agents.
type Handler struct {
	service *governanceapp.Service
}

// NewHandler constructs a handler.
func NewHandler(service *governanceapp.Service) (*Handler, error) {
	if service == nil {
		return nil, errors.New("governance handler: nil service")
	}
	return &Handler{service: service}, nil
}

type limitsRequest struct {
	MaxFlowPerMonth  float64 `json:"max_flow_per_month"`
	MaxActiveStreams int     `json:"max_active_streams"`
}

type limitsResponse struct {
	AgentID               string    `json:"agent_id"`
	TenantID              string    `json:"tenant_id"`
	MaxFlowPerMonth       float64   `json:"max_flow_per_month"`
	MaxActiveStreams      int       `json:"max_active_streams"`
	CommittedFlowPerMonth float64   `json:"committed_flow_per_month"`
	ActiveStreams         int       `json:"active_streams"`
	UpdatedAt             time.Time `json:"updated_at"`
}

// ServeHTTP routes /api/v1/agents/{id}/limits.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/v1/agents/")
	parts := strings.SplitN(rest, "/", 2)
	if len(parts) != 2 || parts[1] != "limits" || parts[0] == "" {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	agentID := parts[0]

	switch r.Method {
	case http.MethodGet:
		h.handleGet(w, r, agentID)
	case http.MethodPut:
		h.handlePut(w, r, agentID)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request, agentID string) {
	limits, err := h.service.GetLimits(r.Context(), agentID)
	if err != nil {
		if errors.Is(err, governance.ErrAgentNotFound) {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	tenantID := auth.TenantIDFromContext(r.Context())
	if tenantID != "" && limits.TenantID != tenantID {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	respondJSON(w, http.StatusOK, toResponse(limits))
}

func (h *Handler) handlePut(w http.ResponseWriter, r *http.Request, agentID string) {
	var req limitsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	tenantID := auth.TenantIDFromContext(r.Context())
	if tenantID == "" {
		http.Error(w, "tenant required", http.StatusBadRequest)
		return
	}
	if existing, err := h.service.GetLimits(r.Context(), agentID); err == nil && existing.TenantID != tenantID {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}

	limits := &governance.AgentLimits{
		AgentID:          agentID,
		TenantID:         tenantID,
		MaxFlowPerMonth:  req.MaxFlowPerMonth,
		MaxActiveStreams: req.MaxActiveStreams,
	}
	if err := h.service.SetLimits(r.Context(), limits); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	stored, err := h.service.GetLimits(r.Context(), agentID)
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	respondJSON(w, http.StatusOK, toResponse(stored))
}

func toResponse(limits *governance.AgentLimits) limitsResponse {
	return limitsResponse{
		AgentID:               limits.AgentID,
		TenantID:              limits.TenantID,
		MaxFlowPerMonth:       limits.MaxFlowPerMonth,
		MaxActiveStreams:      limits.MaxActiveStreams,
		CommittedFlowPerMonth: limits.CommittedFlowPerMonth,
		ActiveStreams:         limits.ActiveStreams,
		UpdatedAt:             limits.UpdatedAt,
	}
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
