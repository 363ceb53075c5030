package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"paystream-cloud/internal/audit"
	"paystream-cloud/internal/auth"
	ledgerapp "paystream-cloud/internal/ledger/application"

	ledger "paystream-cloud/internal/ledger/domain"
)

// Handler provides account HTTP endpoints under /api/v1/accounts.
type Handler struct {
	service     *ledgerapp.Service
	auditLogger audit.Logger
}

// NewHandler constructs a handler.
func NewHandler(service *ledgerapp.Service, auditLogger audit.Logger) (*Handler, error) {
	if service == nil {
		return nil, errors.New("accounts handler: nil service")
	}
	return &Handler{service: service, auditLogger: auditLogger}, nil
}

type createAccountRequest struct {
	AccountID      string  `json:"account_id"`
	OpeningBalance float64 `json:"opening_balance"`
}

type depositRequest struct {
	Amount float64 `json:"amount"`
}

// ServeHTTP routes /api/v1/accounts and its subresources.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/v1/accounts")
	rest = strings.TrimPrefix(rest, "/")

	if rest == "" {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.handleCreate(w, r)
		return
	}

	parts := strings.SplitN(rest, "/", 2)
	accountID := parts[0]
	if len(parts) == 1 {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.handleGet(w, r, accountID)
		return
	}
	if parts[1] == "deposit" && r.Method == http.MethodPost {
		h.handleDeposit(w, r, accountID)
		return
	}
	http.Error(w, "not found", http.StatusNotFound)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createAccountRequest
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
	account, err := h.service.CreateAccount(r.Context(), tenantID, req.AccountID, req.OpeningBalance)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, account)
	h.logAudit(r, tenantID, "account.create", account.ID, map[string]any{
		"opening_balance": req.OpeningBalance,
	})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request, accountID string) {
	account, err := h.service.GetAccount(r.Context(), accountID)
	if err != nil {
		respondError(w, err)
		return
	}
	tenantID := auth.TenantIDFromContext(r.Context())
	if tenantID != "" && account.TenantID != tenantID {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	respondJSON(w, http.StatusOK, account)
}

func (h *Handler) handleDeposit(w http.ResponseWriter, r *http.Request, accountID string) {
	var req depositRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	tenantID := auth.TenantIDFromContext(r.Context())
	account, err := h.service.GetAccount(r.Context(), accountID)
	if err != nil {
		respondError(w, err)
		return
	}
	if tenantID != "" && account.TenantID != tenantID {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}

	if err := h.service.Credit(r.Context(), accountID, req.Amount, "deposit", ""); err != nil {
		respondError(w, err)
		return
	}
	account, err = h.service.GetAccount(r.Context(), accountID)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, account)
	h.logAudit(r, tenantID, "account.deposit", accountID, map[string]any{
		"amount": req.Amount,
	})
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ledger.ErrAccountNotFound):
		http.Error(w, "not found", http.StatusNotFound)
	case errors.Is(err, ledger.ErrNonPositiveAmount):
		http.Error(w, "amount must be positive", http.StatusBadRequest)
	default:
		http.Error(w, err.Error(), http.StatusBadRequest)
	}
}

func (h *Handler) logAudit(r *http.Request, tenantID, action, accountID string, meta map[string]any) {
	if h.auditLogger == nil || tenantID == "" {
		return
	}
	payload, _ := json.Marshal(meta)
	_ = h.auditLogger.Log(r.Context(), audit.Entry{
		TenantID:     tenantID,
		Actor:        auth.SubjectFromContext(r.Context()),
		Role:         string(auth.RoleFromContext(r.Context())),
		Action:       action,
		ResourceType: "account",
		ResourceID:   accountID,
		Metadata:     payload,
		IP:           audit.ClientIP(r),
		UserAgent:    r.UserAgent(),
	})
}
