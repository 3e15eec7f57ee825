package integration_test

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	_ "github.com/jackc/pgx/v5/stdlib"

	"fuelsync/internal/auth"
	closureapp "fuelsync/internal/closure/application"
	closurerepo "fuelsync/internal/closure/infrastructure/postgres"
	closureinterfaces "fuelsync/internal/closure/interfaces"
	"fuelsync/internal/pricing"
	readingrepo "fuelsync/internal/readings/infrastructure/postgres"
	salesapp "fuelsync/internal/sales/application"
	sales "fuelsync/internal/sales/domain"
	salerepo "fuelsync/internal/sales/infrastructure/postgres"
	salesinterfaces "fuelsync/internal/sales/interfaces"
)

// TestClosureFlow drives the reading -> sale -> closure lifecycle over HTTP
// against a real Postgres.
func TestClosureFlow(t *testing.T) {
	dsn := os.Getenv("PG_DSN")
	if dsn == "" {
		t.Skip("PG_DSN not set")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer db.Close()

	if err := applyMigrations(db); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}

	ctx := context.Background()
	stationID := "station-it-001"
	cleanup(t, db, stationID)

	_, err = db.ExecContext(ctx, `
INSERT INTO fuel_prices (station_id, fuel_type, price_per_litre, valid_from)
VALUES ($1,$2,$3,$4)`, stationID, "petrol", 100.0, time.Now().UTC().AddDate(0, 0, -30))
	if err != nil {
		t.Fatalf("insert price: %v", err)
	}

	priceProvider := pricing.NewPostgresProvider(db)
	engine, err := sales.NewEngine(priceProvider, sales.ResetZeroBase)
	if err != nil {
		t.Fatalf("engine: %v", err)
	}
	readingService, err := salesapp.NewReadingService(
		readingrepo.NewReadingRepository(db), salerepo.NewSaleRepository(db), engine, 24*time.Hour, realClock{})
	if err != nil {
		t.Fatalf("reading service: %v", err)
	}
	closureService, err := closureapp.NewClosureService(
		closurerepo.NewClosureRepository(db), salerepo.NewSaleRepository(db), realClock{})
	if err != nil {
		t.Fatalf("closure service: %v", err)
	}
	readingHandler, err := salesinterfaces.NewReadingHandler(readingService, nil)
	if err != nil {
		t.Fatalf("reading handler: %v", err)
	}
	closureHandler, err := closureinterfaces.NewClosureHandler(closureService, nil)
	if err != nil {
		t.Fatalf("closure handler: %v", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/api/v1/readings", readingHandler)
	mux.Handle("/api/v1/closures", closureHandler)
	mux.Handle("/api/v1/closures/", closureHandler)

	secret := []byte("test-secret")
	mw := auth.NewMiddleware(secret, auth.NewDefaultPolicy(nil, nil))
	server := httptest.NewServer(mw.Wrap(mux))
	defer server.Close()

	employeeToken := signToken(t, secret, "emp-1", "employee", []string{stationID})
	managerToken := signToken(t, secret, "mgr-1", "manager", []string{stationID})

	date := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	postBody(t, server.URL+"/api/v1/readings", employeeToken, http.StatusCreated, map[string]any{
		"station_id": stationID, "pump_id": "p1", "nozzle_id": "n1", "fuel_type": "petrol",
		"cumulative_volume": 1000.0, "recorded_at": date.Add(9 * time.Hour).Format(time.RFC3339),
	})
	postBody(t, server.URL+"/api/v1/readings", employeeToken, http.StatusCreated, map[string]any{
		"station_id": stationID, "pump_id": "p1", "nozzle_id": "n1", "fuel_type": "petrol",
		"cumulative_volume": 1060.0, "recorded_at": date.Add(10 * time.Hour).Format(time.RFC3339),
	})

	actual := 6000.0
	saved := postBody(t, server.URL+"/api/v1/closures", employeeToken, http.StatusCreated, map[string]any{
		"station_id": stationID, "closure_date": date.Format("2006-01-02"), "shift": "full_day",
		"actual_cash": actual,
	})
	var closureResp struct {
		ID           string  `json:"id"`
		TotalSales   float64 `json:"total_sales_amount"`
		ExpectedCash float64 `json:"expected_cash"`
		CashVariance float64 `json:"cash_variance"`
		Status       string  `json:"status"`
	}
	if err := json.Unmarshal(saved, &closureResp); err != nil {
		t.Fatalf("decode closure: %v", err)
	}
	if closureResp.TotalSales != 6000.0 {
		t.Fatalf("total sales = %v, want 6000", closureResp.TotalSales)
	}
	if closureResp.CashVariance != 0 {
		t.Fatalf("variance = %v, want 0", closureResp.CashVariance)
	}

	putEmpty(t, server.URL+"/api/v1/closures/"+closureResp.ID+"/submit", employeeToken, http.StatusOK)

	// Employee may not review.
	putJSON(t, server.URL+"/api/v1/closures/"+closureResp.ID+"/review", employeeToken, http.StatusForbidden,
		map[string]any{"action": "approve"})
	putJSON(t, server.URL+"/api/v1/closures/"+closureResp.ID+"/review", managerToken, http.StatusOK,
		map[string]any{"action": "approve"})

	// Approved closures refuse further saves.
	postBody(t, server.URL+"/api/v1/closures", employeeToken, http.StatusConflict, map[string]any{
		"station_id": stationID, "closure_date": date.Format("2006-01-02"), "shift": "full_day",
	})
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now().UTC() }

func applyMigrations(db *sql.DB) error {
	root := projectRoot()
	files := []string{
		filepath.Join(root, "migrations", "001_init.sql"),
		filepath.Join(root, "migrations", "002_closures_credit.sql"),
	}
	for _, path := range files {
		content, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		if _, err := db.Exec(string(content)); err != nil {
			return err
		}
	}
	return nil
}

func projectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return "."
	}
	return filepath.Clean(filepath.Join(dir, "..", "..", ".."))
}

func cleanup(t *testing.T, db *sql.DB, stationID string) {
	t.Helper()
	for _, stmt := range []string{
		"DELETE FROM daily_closures WHERE station_id = $1",
		"DELETE FROM sales WHERE station_id = $1",
		"DELETE FROM nozzle_readings WHERE station_id = $1",
		"DELETE FROM fuel_prices WHERE station_id = $1",
	} {
		if _, err := db.Exec(stmt, stationID); err != nil {
			t.Fatalf("cleanup: %v", err)
		}
	}
}

func signToken(t *testing.T, secret []byte, subject, role string, stations []string) string {
	t.Helper()
	claims := auth.Claims{
		Role:       role,
		StationIDs: stations,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(time.Now().Add(-time.Minute)),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func postBody(t *testing.T, url, token string, wantStatus int, body map[string]any) []byte {
	t.Helper()
	return doJSON(t, http.MethodPost, url, token, wantStatus, body)
}

func putJSON(t *testing.T, url, token string, wantStatus int, body map[string]any) []byte {
	t.Helper()
	return doJSON(t, http.MethodPut, url, token, wantStatus, body)
}

func putEmpty(t *testing.T, url, token string, wantStatus int) {
	t.Helper()
	doJSON(t, http.MethodPut, url, token, wantStatus, nil)
}

func doJSON(t *testing.T, method, url, token string, wantStatus int, body map[string]any) []byte {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()
	var buf bytes.Buffer
	_, _ = buf.ReadFrom(resp.Body)
	if resp.StatusCode != wantStatus {
		t.Fatalf("%s %s = %d, want %d (body %s)", method, url, resp.StatusCode, wantStatus, buf.String())
	}
	return buf.Bytes()
}
