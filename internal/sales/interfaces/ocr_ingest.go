package interfaces

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"time"

	"fuelsync/internal/observability/metrics"
	readings "fuelsync/internal/readings/domain"
	salesapp "fuelsync/internal/sales/application"
)

// OCRIngestHandler ingests meter readings recognized by the camera OCR
// pipeline. Authentication is the HMAC middleware, not a user token, so no
// actor scoping applies here.
type OCRIngestHandler struct {
	service *salesapp.ReadingService
	logger  *log.Logger
}

// NewOCRIngestHandler constructs an ingest handler.
func NewOCRIngestHandler(service *salesapp.ReadingService, logger *log.Logger) (*OCRIngestHandler, error) {
	if service == nil {
		return nil, errors.New("ocr ingest: nil service")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &OCRIngestHandler{service: service, logger: logger}, nil
}

// ServeHTTP ingests a batch of OCR readings.
func (h *OCRIngestHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	start := time.Now()
	result := metrics.ResultSuccess
	defer func() {
		metrics.ObserveIngest(result, time.Since(start))
	}()

	body, err := io.ReadAll(r.Body)
	if err != nil {
		result = metrics.ResultError
		metrics.IncIngestError("read_body")
		h.logger.Printf("ocr ingest: read body error: %v", err)
		http.Error(w, "read body error", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	var req ocrIngestRequest
	if err := json.Unmarshal(body, &req); err != nil {
		result = metrics.ResultError
		metrics.IncIngestError("decode")
		h.logger.Printf("ocr ingest: decode error: %v", err)
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}

	batch, err := req.toReadings()
	if err != nil {
		result = metrics.ResultError
		metrics.IncIngestError("payload")
		h.logger.Printf("ocr ingest: invalid payload: %v", err)
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}

	derived, err := h.service.RecordBatch(r.Context(), batch)
	if err != nil {
		result = metrics.ResultError
		metrics.IncIngestError("store")
		h.logger.Printf("ocr ingest: store error: %v", err)
		http.Error(w, "store error", http.StatusInternalServerError)
		return
	}

	resp := map[string]any{
		"accepted": len(batch),
		"sales":    len(derived.Sales),
		"faults":   faultPayloads(derived.Faults),
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

type ocrIngestRequest struct {
	StationID string       `json:"station_id"`
	Readings  []ocrReading `json:"readings"`
}

type ocrReading struct {
	PumpID           string  `json:"pump_id"`
	NozzleID         string  `json:"nozzle_id"`
	FuelType         string  `json:"fuel_type"`
	CumulativeVolume float64 `json:"cumulative_volume"`
	TS               int64   `json:"ts"`
	Confidence       float64 `json:"confidence"`
}

func (r ocrIngestRequest) toReadings() ([]readings.NozzleReading, error) {
	if r.StationID == "" {
		return nil, errors.New("missing station_id")
	}
	if len(r.Readings) == 0 {
		return nil, errors.New("no readings")
	}
	batch := make([]readings.NozzleReading, 0, len(r.Readings))
	for _, item := range r.Readings {
		recordedAt, err := parseTimestamp(item.TS)
		if err != nil {
			return nil, err
		}
		batch = append(batch, readings.NozzleReading{
			StationID:        r.StationID,
			PumpID:           item.PumpID,
			NozzleID:         item.NozzleID,
			FuelType:         item.FuelType,
			CumulativeVolume: item.CumulativeVolume,
			RecordedAt:       recordedAt,
			SourceConfidence: item.Confidence,
		})
	}
	return batch, nil
}

// parseTimestamp accepts unix milliseconds or seconds.
func parseTimestamp(ts int64) (time.Time, error) {
	if ts <= 0 {
		return time.Time{}, errors.New("missing ts")
	}
	if ts > 1e12 {
		return time.UnixMilli(ts).UTC(), nil
	}
	return time.Unix(ts, 0).UTC(), nil
}
