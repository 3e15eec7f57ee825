package main

import (
	"database/sql"
	"log"
	"net/http"
	"os"
	"strconv"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"fuelsync/internal/audit"
	"fuelsync/internal/auth"
	closureapp "fuelsync/internal/closure/application"
	closurerepo "fuelsync/internal/closure/infrastructure/postgres"
	closureinterfaces "fuelsync/internal/closure/interfaces"
	"fuelsync/internal/config"
	creditapp "fuelsync/internal/credit/application"
	creditrepo "fuelsync/internal/credit/infrastructure/postgres"
	creditinterfaces "fuelsync/internal/credit/interfaces"
	"fuelsync/internal/observability/metrics"
	"fuelsync/internal/pricing"
	readingrepo "fuelsync/internal/readings/infrastructure/postgres"
	salesapp "fuelsync/internal/sales/application"
	sales "fuelsync/internal/sales/domain"
	salerepo "fuelsync/internal/sales/infrastructure/postgres"
	salesinterfaces "fuelsync/internal/sales/interfaces"
)

func main() {
	cfg := loadConfig()
	logger := log.New(os.Stdout, "", log.LstdFlags)

	policy, err := config.LoadPolicy()
	if err != nil {
		logger.Fatalf("policy load error: %v", err)
	}

	db, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		logger.Fatalf("db open error: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		logger.Fatalf("db ping error: %v", err)
	}

	metrics.Init(db, logger)
	auditRepo := audit.NewRepository(db)

	readingRepository := readingrepo.NewReadingRepository(db)
	saleRepository := salerepo.NewSaleRepository(db)
	closureRepository := closurerepo.NewClosureRepository(db)
	creditRepository := creditrepo.NewCreditRepository(db)

	var priceCache pricing.PriceCache
	if cfg.RedisAddr != "" {
		priceCache = pricing.NewRedisPriceCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	}
	priceProvider := pricing.NewCachedProvider(
		pricing.NewPostgresProvider(db),
		priceCache,
		time.Duration(policy.PriceCacheTTLSeconds)*time.Second,
	)

	resetPolicy, ok := sales.NormalizeResetPolicy(policy.ResetPolicy)
	if !ok {
		logger.Fatalf("unknown reset policy %q", policy.ResetPolicy)
	}
	engine, err := sales.NewEngine(priceProvider, resetPolicy)
	if err != nil {
		logger.Fatalf("engine error: %v", err)
	}

	clock := systemClock{}
	auditWindow := time.Duration(policy.AuditWindowHours) * time.Hour

	readingService, err := salesapp.NewReadingService(readingRepository, saleRepository, engine, auditWindow, clock)
	if err != nil {
		logger.Fatalf("reading service error: %v", err)
	}
	closureService, err := closureapp.NewClosureService(closureRepository, saleRepository, clock)
	if err != nil {
		logger.Fatalf("closure service error: %v", err)
	}
	settlementService, err := creditapp.NewSettlementService(creditRepository, clock)
	if err != nil {
		logger.Fatalf("settlement service error: %v", err)
	}

	readingHandler, err := salesinterfaces.NewReadingHandler(readingService, auditRepo)
	if err != nil {
		logger.Fatalf("reading handler error: %v", err)
	}
	ocrHandler, err := salesinterfaces.NewOCRIngestHandler(readingService, logger)
	if err != nil {
		logger.Fatalf("ocr handler error: %v", err)
	}
	closureHandler, err := closureinterfaces.NewClosureHandler(closureService, auditRepo)
	if err != nil {
		logger.Fatalf("closure handler error: %v", err)
	}
	settlementHandler, err := creditinterfaces.NewSettlementHandler(settlementService, auditRepo)
	if err != nil {
		logger.Fatalf("settlement handler error: %v", err)
	}

	authPolicy := auth.NewDefaultPolicy([]string{"/healthz", "/metrics"}, []string{"/ingest/"})
	authMiddleware := auth.NewMiddleware([]byte(cfg.JWTSecret), authPolicy)
	ingestAuth := auth.NewIngestAuthMiddleware([]byte(cfg.IngestSecret), time.Duration(cfg.IngestSkewSeconds)*time.Second)

	mux := http.NewServeMux()
	mux.Handle("/ingest/ocr/readings", ingestAuth.Wrap(ocrHandler))
	mux.Handle("/api/v1/readings", readingHandler)
	mux.Handle("/api/v1/readings/", readingHandler)
	mux.Handle("/api/v1/sales", readingHandler)
	mux.Handle("/api/v1/closures", closureHandler)
	mux.Handle("/api/v1/closures/", closureHandler)
	mux.Handle("/api/v1/creditors/", settlementHandler)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	server := &http.Server{Addr: cfg.HTTPAddr, Handler: loggingMiddleware(authMiddleware.Wrap(mux), logger)}
	logger.Printf("http listening on %s", cfg.HTTPAddr)
	logger.Fatal(server.ListenAndServe())
}

type appConfig struct {
	DatabaseURL       string
	HTTPAddr          string
	JWTSecret         string
	IngestSecret      string
	IngestSkewSeconds int
	RedisAddr         string
	RedisPassword     string
	RedisDB           int
}

func loadConfig() appConfig {
	cfg := appConfig{
		DatabaseURL:       getenvDefault("DATABASE_URL", getenvDefault("PG_DSN", "")),
		HTTPAddr:          getenvDefault("HTTP_ADDR", ":8080"),
		JWTSecret:         getenvDefault("AUTH_JWT_SECRET", getenvDefault("JWT_SECRET", "")),
		IngestSecret:      getenvDefault("INGEST_HMAC_SECRET", ""),
		IngestSkewSeconds: getenvIntDefault("INGEST_MAX_SKEW_SECONDS", 300),
		RedisAddr:         getenvDefault("REDIS_ADDR", ""),
		RedisPassword:     getenvDefault("REDIS_PASSWORD", ""),
		RedisDB:           getenvIntDefault("REDIS_DB", 0),
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL or PG_DSN is required")
	}
	if cfg.JWTSecret == "" {
		log.Fatal("AUTH_JWT_SECRET is required")
	}
	if cfg.IngestSecret == "" {
		log.Fatal("INGEST_HMAC_SECRET is required")
	}
	return cfg
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvIntDefault(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func loggingMiddleware(next http.Handler, logger *log.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		resp := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(resp, r)
		logger.Printf("http %s %s %d %s", r.Method, r.URL.Path, resp.status, time.Since(start))
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }
