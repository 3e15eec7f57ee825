package auth

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// maxIngestBody caps OCR upload posts; a reading batch is small.
const maxIngestBody = 1 << 20

// IngestAuthMiddleware authenticates posts from OCR upload boxes with a
// shared HMAC secret. The signature covers the method, the request path and
// a timestamp, so a captured request cannot be replayed later or against a
// different endpoint.
type IngestAuthMiddleware struct {
	secret  []byte
	maxSkew time.Duration
	now     func() time.Time
}

// NewIngestAuthMiddleware constructs ingest auth middleware.
func NewIngestAuthMiddleware(secret []byte, maxSkew time.Duration) *IngestAuthMiddleware {
	return &IngestAuthMiddleware{secret: secret, maxSkew: maxSkew, now: time.Now}
}

// Wrap enforces ingest signature validation before the handler runs.
func (m *IngestAuthMiddleware) Wrap(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, status, msg := m.authenticate(r)
		if status != 0 {
			http.Error(w, msg, status)
			return
		}
		r.Body = io.NopCloser(bytes.NewReader(body))
		next.ServeHTTP(w, r)
	})
}

// authenticate returns the verified body, or a non-zero status and message.
func (m *IngestAuthMiddleware) authenticate(r *http.Request) ([]byte, int, string) {
	if len(m.secret) == 0 {
		return nil, http.StatusUnauthorized, "ingest auth not configured"
	}
	timestamp := strings.TrimSpace(r.Header.Get("X-OCR-Timestamp"))
	signature := strings.TrimSpace(r.Header.Get("X-OCR-Signature"))
	if timestamp == "" || signature == "" {
		return nil, http.StatusUnauthorized, "missing ingest signature"
	}
	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return nil, http.StatusUnauthorized, "invalid ingest timestamp"
	}
	skew := m.now().Sub(time.Unix(ts, 0))
	if skew < 0 {
		skew = -skew
	}
	if m.maxSkew > 0 && skew > m.maxSkew {
		return nil, http.StatusUnauthorized, "ingest signature expired"
	}
	given, err := hex.DecodeString(strings.ToLower(signature))
	if err != nil {
		return nil, http.StatusUnauthorized, "invalid ingest signature"
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxIngestBody+1))
	if err != nil {
		return nil, http.StatusBadRequest, "read body error"
	}
	_ = r.Body.Close()
	if len(body) > maxIngestBody {
		return nil, http.StatusRequestEntityTooLarge, "body too large"
	}

	expected := ingestMAC(m.secret, r.Method, r.URL.Path, timestamp, body)
	if !hmac.Equal(given, expected) {
		return nil, http.StatusUnauthorized, "invalid ingest signature"
	}
	return body, 0, ""
}

// SignIngestRequest returns the hex signature an upload box attaches as
// X-OCR-Signature for the given request line, timestamp and body.
func SignIngestRequest(secret []byte, method, path, timestamp string, body []byte) string {
	return hex.EncodeToString(ingestMAC(secret, method, path, timestamp, body))
}

func ingestMAC(secret []byte, method, path, timestamp string, body []byte) []byte {
	mac := hmac.New(sha256.New, secret)
	_, _ = io.WriteString(mac, method)
	_, _ = io.WriteString(mac, "\n")
	_, _ = io.WriteString(mac, path)
	_, _ = io.WriteString(mac, "\n")
	_, _ = io.WriteString(mac, timestamp)
	_, _ = io.WriteString(mac, "\n")
	_, _ = mac.Write(body)
	return mac.Sum(nil)
}
