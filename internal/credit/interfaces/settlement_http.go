package interfaces

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	apihttp "fuelsync/internal/api/http"
	"fuelsync/internal/audit"
	"fuelsync/internal/auth"
	creditapp "fuelsync/internal/credit/application"
	credit "fuelsync/internal/credit/domain"
)

// SettlementHandler handles creditor settlement APIs.
type SettlementHandler struct {
	service     *creditapp.SettlementService
	auditLogger audit.Logger
}

// NewSettlementHandler constructs a handler.
func NewSettlementHandler(service *creditapp.SettlementService, auditLogger audit.Logger) (*SettlementHandler, error) {
	if service == nil {
		return nil, errors.New("settlement handler: nil service")
	}
	return &SettlementHandler{service: service, auditLogger: auditLogger}, nil
}

// ServeHTTP handles routes under /api/v1/creditors.
func (h *SettlementHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/v1/creditors/")
	if rest == r.URL.Path || rest == "" {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	parts := strings.Split(rest, "/")
	if len(parts) != 2 {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	creditorID := parts[0]
	switch parts[1] {
	case "settle":
		if r.Method == http.MethodPost {
			h.handleSettle(w, r, creditorID)
			return
		}
	case "transactions":
		if r.Method == http.MethodGet {
			h.handleTransactions(w, r, creditorID)
			return
		}
	}
	w.WriteHeader(http.StatusNotFound)
}

type settleRequest struct {
	StationID       string   `json:"station_id"`
	Amount          *float64 `json:"amount"`
	ReferenceNumber string   `json:"reference_number"`
	Allocations     []struct {
		CreditTransactionID string  `json:"credit_transaction_id"`
		Amount              float64 `json:"amount"`
	} `json:"allocations"`
}

func (h *SettlementHandler) handleSettle(w http.ResponseWriter, r *http.Request, creditorID string) {
	actor, ok := auth.ActorFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	var req settleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	allocations := make([]credit.AllocationRequest, 0, len(req.Allocations))
	for _, allocation := range req.Allocations {
		allocations = append(allocations, credit.AllocationRequest{
			CreditTransactionID: allocation.CreditTransactionID,
			Amount:              allocation.Amount,
		})
	}
	settlement, applied, err := h.service.Settle(r.Context(), actor, creditapp.SettleInput{
		CreditorID:      creditorID,
		StationID:       req.StationID,
		Amount:          req.Amount,
		ReferenceNumber: req.ReferenceNumber,
		Allocations:     allocations,
	})
	if err != nil {
		apihttp.RespondError(w, err)
		return
	}
	allocationPayloads := make([]map[string]any, 0, len(applied))
	for _, allocation := range applied {
		allocationPayloads = append(allocationPayloads, map[string]any{
			"credit_transaction_id": allocation.CreditTransactionID,
			"amount":                allocation.Amount,
		})
	}
	apihttp.RespondJSON(w, http.StatusOK, map[string]any{
		"settlement_id":    settlement.ID,
		"creditor_id":      settlement.CreditorID,
		"station_id":       settlement.StationID,
		"amount":           settlement.Amount,
		"reference_number": settlement.ReferenceNumber,
		"settled_by":       settlement.SettledBy,
		"settled_at":       settlement.SettledAt.Format(time.RFC3339),
		"allocations":      allocationPayloads,
	})
	h.logAudit(r, actor, settlement.StationID, settlement.ID, "settlement.apply", map[string]any{
		"creditor_id": settlement.CreditorID,
		"amount":      settlement.Amount,
		"allocations": len(applied),
	})
}

func (h *SettlementHandler) handleTransactions(w http.ResponseWriter, r *http.Request, creditorID string) {
	actor, ok := auth.ActorFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	stationID := r.URL.Query().Get("station_id")
	transactions, err := h.service.Transactions(r.Context(), actor, creditorID, stationID)
	if err != nil {
		apihttp.RespondError(w, err)
		return
	}
	payloads := make([]map[string]any, 0, len(transactions))
	for _, tx := range transactions {
		payloads = append(payloads, map[string]any{
			"id":               tx.ID,
			"creditor_id":      tx.CreditorID,
			"station_id":       tx.StationID,
			"type":             tx.Type,
			"amount":           tx.Amount,
			"allocated":        tx.Allocated,
			"outstanding":      tx.Outstanding(),
			"reference_number": tx.ReferenceNumber,
			"transaction_date": tx.TransactionDate.Format(time.RFC3339),
		})
	}
	apihttp.RespondJSON(w, http.StatusOK, map[string]any{"transactions": payloads})
}

func (h *SettlementHandler) logAudit(r *http.Request, actor auth.Actor, stationID, settlementID, action string, meta map[string]any) {
	if h.auditLogger == nil {
		return
	}
	payload, _ := json.Marshal(meta)
	_ = h.auditLogger.Log(r.Context(), audit.Entry{
		Actor:         actor.ID,
		Role:          string(actor.Role),
		Action:        action,
		ResourceType:  "settlement",
		ResourceID:    settlementID,
		StationID:     stationID,
		Metadata:      payload,
		PayloadDigest: audit.DigestJSON(payload),
		IP:            audit.ClientIP(r),
		UserAgent:     r.UserAgent(),
	})
}
