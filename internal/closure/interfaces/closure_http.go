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
	closureapp "fuelsync/internal/closure/application"
	closure "fuelsync/internal/closure/domain"
	"fuelsync/internal/observability/metrics"
	sales "fuelsync/internal/sales/domain"
)

// ClosureHandler handles daily-closure APIs.
type ClosureHandler struct {
	service     *closureapp.ClosureService
	auditLogger audit.Logger
}

// NewClosureHandler constructs a handler.
func NewClosureHandler(service *closureapp.ClosureService, auditLogger audit.Logger) (*ClosureHandler, error) {
	if service == nil {
		return nil, errors.New("closure handler: nil service")
	}
	return &ClosureHandler{service: service, auditLogger: auditLogger}, nil
}

// ServeHTTP handles routes under /api/v1/closures.
func (h *ClosureHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path
	if path == "/api/v1/closures/prepare" && r.Method == http.MethodGet {
		h.handlePrepare(w, r)
		return
	}
	if path == "/api/v1/closures" {
		switch r.Method {
		case http.MethodPost:
			h.handleSave(w, r)
		case http.MethodGet:
			h.handleList(w, r)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
		return
	}
	if strings.HasPrefix(path, "/api/v1/closures/") {
		rest := strings.TrimPrefix(path, "/api/v1/closures/")
		h.handleByID(w, r, rest)
		return
	}
	w.WriteHeader(http.StatusNotFound)
}

func (h *ClosureHandler) handlePrepare(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.ActorFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	stationID := r.URL.Query().Get("station_id")
	date, err := time.Parse("2006-01-02", r.URL.Query().Get("date"))
	if err != nil {
		http.Error(w, "invalid date", http.StatusBadRequest)
		return
	}
	shift, err := parseShift(r.URL.Query().Get("shift"))
	if err != nil {
		http.Error(w, "unknown shift", http.StatusBadRequest)
		return
	}
	summary, err := h.service.Prepare(r.Context(), actor, stationID, date, shift)
	if err != nil {
		apihttp.RespondError(w, err)
		return
	}
	apihttp.RespondJSON(w, http.StatusOK, summary)
}

type saveRequest struct {
	StationID    string   `json:"station_id"`
	ClosureDate  string   `json:"closure_date"`
	Shift        string   `json:"shift"`
	ActualCash   *float64 `json:"actual_cash"`
	CardPayments float64  `json:"card_payments"`
	UPIPayments  float64  `json:"upi_payments"`
	CreditSales  float64  `json:"credit_sales"`
}

func (h *ClosureHandler) handleSave(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.ActorFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	var req saveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	closureDate, err := time.Parse("2006-01-02", req.ClosureDate)
	if err != nil {
		http.Error(w, "invalid closure_date", http.StatusBadRequest)
		return
	}
	shift, err := parseShift(req.Shift)
	if err != nil {
		http.Error(w, "unknown shift", http.StatusBadRequest)
		return
	}
	record, created, err := h.service.Save(r.Context(), actor, closureapp.SaveInput{
		StationID:    req.StationID,
		ClosureDate:  closureDate,
		Shift:        shift,
		ActualCash:   req.ActualCash,
		CardPayments: req.CardPayments,
		UPIPayments:  req.UPIPayments,
		CreditSales:  req.CreditSales,
	})
	if err != nil {
		apihttp.RespondError(w, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	apihttp.RespondJSON(w, status, closurePayload(record))
	h.logAudit(r, actor, record.StationID, record.ID, "closure.save", map[string]any{
		"closure_date": record.ClosureDate.Format("2006-01-02"),
		"shift":        record.Shift,
		"version":      record.Version,
	})
}

func (h *ClosureHandler) handleList(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.ActorFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	date, err := time.Parse("2006-01-02", r.URL.Query().Get("date"))
	if err != nil {
		http.Error(w, "invalid date", http.StatusBadRequest)
		return
	}
	var stationIDs []string
	if raw := r.URL.Query().Get("station_ids"); raw != "" {
		stationIDs = strings.Split(raw, ",")
	}
	list, err := h.service.List(r.Context(), actor, stationIDs, date)
	if err != nil {
		apihttp.RespondError(w, err)
		return
	}
	payloads := make([]map[string]any, 0, len(list))
	for i := range list {
		payloads = append(payloads, closurePayload(&list[i]))
	}
	apihttp.RespondJSON(w, http.StatusOK, map[string]any{"closures": payloads})
}

func (h *ClosureHandler) handleByID(w http.ResponseWriter, r *http.Request, rest string) {
	if rest == "" {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	parts := strings.Split(rest, "/")
	id := parts[0]
	if len(parts) == 1 && r.Method == http.MethodGet {
		h.handleGet(w, r, id)
		return
	}
	if len(parts) == 2 {
		switch parts[1] {
		case "submit":
			if r.Method == http.MethodPut {
				h.handleSubmit(w, r, id)
				return
			}
		case "review":
			if r.Method == http.MethodPut {
				h.handleReview(w, r, id)
				return
			}
		case "export.pdf":
			if r.Method == http.MethodGet {
				h.handleExportPDF(w, r, id)
				return
			}
		case "export.xlsx":
			if r.Method == http.MethodGet {
				h.handleExportXLSX(w, r, id)
				return
			}
		}
	}
	w.WriteHeader(http.StatusNotFound)
}

func (h *ClosureHandler) handleGet(w http.ResponseWriter, r *http.Request, id string) {
	actor, ok := auth.ActorFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	record, err := h.service.Get(r.Context(), actor, id)
	if err != nil {
		apihttp.RespondError(w, err)
		return
	}
	apihttp.RespondJSON(w, http.StatusOK, closurePayload(record))
}

func (h *ClosureHandler) handleSubmit(w http.ResponseWriter, r *http.Request, id string) {
	actor, ok := auth.ActorFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	record, err := h.service.Submit(r.Context(), actor, id)
	if err != nil {
		apihttp.RespondError(w, err)
		return
	}
	apihttp.RespondJSON(w, http.StatusOK, closurePayload(record))
	h.logAudit(r, actor, record.StationID, record.ID, "closure.submit", map[string]any{
		"status": record.Status,
	})
}

func (h *ClosureHandler) handleReview(w http.ResponseWriter, r *http.Request, id string) {
	actor, ok := auth.ActorFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	var req struct {
		Action          string `json:"action"`
		RejectionReason string `json:"rejection_reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	action := closureapp.ReviewAction(req.Action)
	if action != closureapp.ReviewApprove && action != closureapp.ReviewReject {
		http.Error(w, "unknown review action", http.StatusBadRequest)
		return
	}
	record, err := h.service.Review(r.Context(), actor, id, action, req.RejectionReason)
	if err != nil {
		apihttp.RespondError(w, err)
		return
	}
	apihttp.RespondJSON(w, http.StatusOK, closurePayload(record))
	h.logAudit(r, actor, record.StationID, record.ID, "closure.review", map[string]any{
		"action": req.Action,
		"status": record.Status,
	})
}

func (h *ClosureHandler) handleExportPDF(w http.ResponseWriter, r *http.Request, id string) {
	start := time.Now()
	result := metrics.ResultSuccess
	defer func() {
		metrics.ObserveClosureExport("pdf", result, time.Since(start))
	}()

	actor, ok := auth.ActorFromContext(r.Context())
	if !ok {
		result = metrics.ResultError
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	record, err := h.service.Get(r.Context(), actor, id)
	if err != nil {
		result = metrics.ResultError
		apihttp.RespondError(w, err)
		return
	}
	data, err := BuildClosurePDF(record)
	if err != nil {
		result = metrics.ResultError
		http.Error(w, "export pdf error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
	h.logAudit(r, actor, record.StationID, record.ID, "closure.export", map[string]any{"format": "pdf"})
}

func (h *ClosureHandler) handleExportXLSX(w http.ResponseWriter, r *http.Request, id string) {
	start := time.Now()
	result := metrics.ResultSuccess
	defer func() {
		metrics.ObserveClosureExport("xlsx", result, time.Since(start))
	}()

	actor, ok := auth.ActorFromContext(r.Context())
	if !ok {
		result = metrics.ResultError
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	record, err := h.service.Get(r.Context(), actor, id)
	if err != nil {
		result = metrics.ResultError
		apihttp.RespondError(w, err)
		return
	}
	data, err := BuildClosureXLSX(record)
	if err != nil {
		result = metrics.ResultError
		http.Error(w, "export xlsx error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
	h.logAudit(r, actor, record.StationID, record.ID, "closure.export", map[string]any{"format": "xlsx"})
}

func (h *ClosureHandler) logAudit(r *http.Request, actor auth.Actor, stationID, closureID, action string, meta map[string]any) {
	if h.auditLogger == nil {
		return
	}
	payload, _ := json.Marshal(meta)
	_ = h.auditLogger.Log(r.Context(), audit.Entry{
		Actor:         actor.ID,
		Role:          string(actor.Role),
		Action:        action,
		ResourceType:  "closure",
		ResourceID:    closureID,
		StationID:     stationID,
		Metadata:      payload,
		PayloadDigest: audit.DigestJSON(payload),
		IP:            audit.ClientIP(r),
		UserAgent:     r.UserAgent(),
	})
}

func parseShift(raw string) (sales.Shift, error) {
	if raw == "" {
		return sales.ShiftFullDay, nil
	}
	shift, ok := sales.NormalizeShift(raw)
	if !ok {
		return "", errors.New("unknown shift")
	}
	return shift, nil
}

func closurePayload(record *closure.DailyClosure) map[string]any {
	payload := map[string]any{
		"id":                 record.ID,
		"station_id":         record.StationID,
		"closure_date":       record.ClosureDate.Format("2006-01-02"),
		"shift":              record.Shift,
		"total_sales_amount": record.TotalSalesAmount,
		"total_litres_sold":  record.TotalLitresSold,
		"fuel_breakdown":     record.FuelBreakdown,
		"expected_cash":      record.ExpectedCash,
		"card_payments":      record.CardPayments,
		"upi_payments":       record.UPIPayments,
		"credit_sales":       record.CreditSales,
		"status":             record.Status,
		"prepared_by":        record.PreparedBy,
		"version":            record.Version,
	}
	if record.ActualCash != nil {
		payload["actual_cash"] = *record.ActualCash
	}
	if record.CashVariance != nil {
		payload["cash_variance"] = *record.CashVariance
	}
	if record.ApprovedBy != "" {
		payload["approved_by"] = record.ApprovedBy
		payload["approved_at"] = record.ApprovedAt.Format(time.RFC3339)
	}
	if record.RejectionReason != "" {
		payload["rejection_reason"] = record.RejectionReason
	}
	return payload
}
