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
	readings "fuelsync/internal/readings/domain"
	salesapp "fuelsync/internal/sales/application"
	sales "fuelsync/internal/sales/domain"
)

// ReadingHandler handles manual reading and sale APIs.
type ReadingHandler struct {
	service     *salesapp.ReadingService
	auditLogger audit.Logger
}

// NewReadingHandler constructs a handler.
func NewReadingHandler(service *salesapp.ReadingService, auditLogger audit.Logger) (*ReadingHandler, error) {
	if service == nil {
		return nil, errors.New("reading handler: nil service")
	}
	return &ReadingHandler{service: service, auditLogger: auditLogger}, nil
}

// ServeHTTP handles routes under /api/v1/readings and /api/v1/sales.
func (h *ReadingHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path
	if path == "/api/v1/sales" && r.Method == http.MethodGet {
		h.handleListSales(w, r)
		return
	}
	if path == "/api/v1/readings" && r.Method == http.MethodPost {
		h.handleRecord(w, r)
		return
	}
	if strings.HasPrefix(path, "/api/v1/readings/") {
		rest := strings.TrimPrefix(path, "/api/v1/readings/")
		h.handleByID(w, r, rest)
		return
	}
	w.WriteHeader(http.StatusNotFound)
}

type readingRequest struct {
	StationID        string  `json:"station_id"`
	PumpID           string  `json:"pump_id"`
	NozzleID         string  `json:"nozzle_id"`
	FuelType         string  `json:"fuel_type"`
	CumulativeVolume float64 `json:"cumulative_volume"`
	RecordedAt       string  `json:"recorded_at"`
}

func (h *ReadingHandler) handleRecord(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.ActorFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	var req readingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	recordedAt, err := parseRecordedAt(req.RecordedAt)
	if err != nil {
		apihttp.RespondError(w, err)
		return
	}
	reading := readings.NozzleReading{
		StationID:        req.StationID,
		PumpID:           req.PumpID,
		NozzleID:         req.NozzleID,
		FuelType:         req.FuelType,
		CumulativeVolume: req.CumulativeVolume,
		RecordedAt:       recordedAt,
	}
	stored, derived, err := h.service.RecordReading(r.Context(), actor, reading)
	if err != nil {
		apihttp.RespondError(w, err)
		return
	}
	apihttp.RespondJSON(w, http.StatusCreated, map[string]any{
		"reading": readingPayload(*stored),
		"sales":   salePayloads(derived.Sales),
		"faults":  faultPayloads(derived.Faults),
	})
	h.logAudit(r, actor, stored.StationID, stored.ID, "reading.create", map[string]any{
		"pump_id":           stored.PumpID,
		"nozzle_id":         stored.NozzleID,
		"cumulative_volume": stored.CumulativeVolume,
	})
}

func (h *ReadingHandler) handleByID(w http.ResponseWriter, r *http.Request, rest string) {
	if rest == "" {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	parts := strings.Split(rest, "/")
	id := parts[0]
	if len(parts) == 1 && r.Method == http.MethodDelete {
		h.handleDelete(w, r, id)
		return
	}
	if len(parts) == 2 && parts[1] == "correct" && r.Method == http.MethodPost {
		h.handleCorrect(w, r, id)
		return
	}
	w.WriteHeader(http.StatusNotFound)
}

func (h *ReadingHandler) handleCorrect(w http.ResponseWriter, r *http.Request, id string) {
	actor, ok := auth.ActorFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	var req struct {
		CumulativeVolume float64 `json:"cumulative_volume"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	corrected, derived, err := h.service.CorrectReading(r.Context(), actor, id, req.CumulativeVolume)
	if err != nil {
		apihttp.RespondError(w, err)
		return
	}
	apihttp.RespondJSON(w, http.StatusOK, map[string]any{
		"reading": readingPayload(*corrected),
		"sales":   salePayloads(derived.Sales),
		"faults":  faultPayloads(derived.Faults),
	})
	h.logAudit(r, actor, corrected.StationID, corrected.ID, "reading.correct", map[string]any{
		"supersedes_id":     corrected.SupersedesID,
		"cumulative_volume": corrected.CumulativeVolume,
	})
}

func (h *ReadingHandler) handleDelete(w http.ResponseWriter, r *http.Request, id string) {
	actor, ok := auth.ActorFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	if err := h.service.DeleteReading(r.Context(), actor, id); err != nil {
		apihttp.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
	h.logAudit(r, actor, "", id, "reading.delete", nil)
}

func (h *ReadingHandler) handleListSales(w http.ResponseWriter, r *http.Request) {
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
	shift := sales.ShiftFullDay
	if raw := r.URL.Query().Get("shift"); raw != "" {
		normalized, ok := sales.NormalizeShift(raw)
		if !ok {
			http.Error(w, "unknown shift", http.StatusBadRequest)
			return
		}
		shift = normalized
	}
	list, err := h.service.ListSales(r.Context(), actor, stationID, date, shift)
	if err != nil {
		apihttp.RespondError(w, err)
		return
	}
	var totalAmount, totalLitres float64
	for _, sale := range list {
		totalAmount += sale.TotalAmount
		totalLitres += sale.DeltaVolume
	}
	apihttp.RespondJSON(w, http.StatusOK, map[string]any{
		"summary": map[string]any{
			"total_amount":      sales.Round2(totalAmount),
			"total_litres":      sales.Round2(totalLitres),
			"transaction_count": len(list),
		},
		"sales": salePayloads(list),
	})
}

func (h *ReadingHandler) logAudit(r *http.Request, actor auth.Actor, stationID, readingID, action string, meta map[string]any) {
	if h.auditLogger == nil {
		return
	}
	payload, _ := json.Marshal(meta)
	_ = h.auditLogger.Log(r.Context(), audit.Entry{
		Actor:         actor.ID,
		Role:          string(actor.Role),
		Action:        action,
		ResourceType:  "reading",
		ResourceID:    readingID,
		StationID:     stationID,
		Metadata:      payload,
		PayloadDigest: audit.DigestJSON(payload),
		IP:            audit.ClientIP(r),
		UserAgent:     r.UserAgent(),
	})
}

func parseRecordedAt(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, &readings.ValidationError{Field: "recorded_at", Reason: "required"}
	}
	recordedAt, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, &readings.ValidationError{Field: "recorded_at", Reason: "must be RFC3339"}
	}
	return recordedAt.UTC(), nil
}

func readingPayload(reading readings.NozzleReading) map[string]any {
	payload := map[string]any{
		"id":                reading.ID,
		"station_id":        reading.StationID,
		"pump_id":           reading.PumpID,
		"nozzle_id":         reading.NozzleID,
		"fuel_type":         reading.FuelType,
		"cumulative_volume": reading.CumulativeVolume,
		"recorded_at":       reading.RecordedAt.Format(time.RFC3339),
		"manual_entry":      reading.ManualEntry,
		"entered_by":        reading.EnteredBy,
	}
	if reading.SupersedesID != "" {
		payload["supersedes_id"] = reading.SupersedesID
	}
	return payload
}

func salePayloads(list []sales.Sale) []map[string]any {
	payloads := make([]map[string]any, 0, len(list))
	for _, sale := range list {
		payloads = append(payloads, map[string]any{
			"id":                sale.ID,
			"station_id":        sale.StationID,
			"pump_id":           sale.PumpID,
			"nozzle_id":         sale.NozzleID,
			"fuel_type":         sale.FuelType,
			"delta_volume":      sale.DeltaVolume,
			"price_per_litre":   sale.PricePerLitre,
			"total_amount":      sale.TotalAmount,
			"shift":             sale.Shift,
			"sale_date":         sale.SaleDate.Format("2006-01-02"),
			"source_reading_id": sale.SourceReadingID,
			"reset_detected":    sale.ResetDetected,
		})
	}
	return payloads
}

func faultPayloads(faults []sales.NozzleFault) []map[string]any {
	payloads := make([]map[string]any, 0, len(faults))
	for _, fault := range faults {
		payloads = append(payloads, map[string]any{
			"station_id": fault.StationID,
			"pump_id":    fault.Key.PumpID,
			"nozzle_id":  fault.Key.NozzleID,
			"error":      fault.Err.Error(),
		})
	}
	return payloads
}
