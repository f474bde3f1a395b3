package gateway

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gomind-labs/debate-consensus/core"
)

// Config configures one Gateway instance.
type Config struct {
	HMACSecret        string
	RequestSigning    bool
	RequestsPerMinute int
	NonceStoreSize    int
}

// Gateway is the Signed Gateway: an HTTP listener in front of the Model
// Invoker that authenticates in-process callers, rejects replayed or
// malformed requests, rate-limits per IP, and redacts sensitive material
// from anything it logs.
type Gateway struct {
	config   Config
	nonces   *NonceStore
	limiter  RateLimiter
	detector *Detector
	logger   core.ComponentAwareLogger

	forward func(ctx context.Context, body []byte) ([]byte, error)
}

// New builds a Gateway. forward is invoked with the verified request body
// and should delegate to the Model Invoker.
func New(config Config, limiter RateLimiter, logger core.ComponentAwareLogger, forward func(ctx context.Context, body []byte) ([]byte, error)) *Gateway {
	if limiter == nil {
		limiter = NewInMemoryRateLimiter(RateLimitConfig{RequestsPerMinute: config.RequestsPerMinute})
	}
	return &Gateway{
		config:   config,
		nonces:   NewNonceStore(config.NonceStoreSize),
		limiter:  limiter,
		detector: NewDetector(),
		logger:   logger,
		forward:  forward,
	}
}

// Handler builds the gateway's HTTP mux: POST /v1/messages, GET /health.
func (g *Gateway) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/messages", g.handleMessages)
	mux.HandleFunc("/health", g.handleHealth)
	return WithSecurityHeaders(core.AuditMiddleware(g.logger)(mux))
}

func (g *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(healthResponse{
		Status:   "ok",
		Security: healthSecurity{RequestSigning: g.config.RequestSigning},
	})
}

type healthResponse struct {
	Status   string         `json:"status"`
	Security healthSecurity `json:"security"`
}

type healthSecurity struct {
	RequestSigning bool `json:"requestSigning"`
}

func (g *Gateway) handleMessages(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		jsonError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	clientIP := clientIP(r)
	allowed, retryAfter := g.limiter.Allow(r.Context(), clientIP)
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(g.config.RequestsPerMinute))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(g.limiter.Remaining(r.Context(), clientIP)))
	if !allowed {
		w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
		jsonError(w, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, 10<<20))
	if err != nil {
		jsonError(w, http.StatusBadRequest, "failed to read body")
		return
	}

	if g.config.RequestSigning {
		if reason, message := g.verifySignature(r, body); reason != "" {
			g.logger.Warn("rejected gateway request", map[string]interface{}{
				"reason": reason,
				"ip":     clientIP,
			})
			jsonErrorWithReason(w, http.StatusUnauthorized, reason, message)
			return
		}
	}

	// Suspicious-pattern hits are flagged in the audit log, not blocked: the
	// heuristics match on shape (script tags, SQL/shell metacharacters, path
	// traversal), and a debate question that discusses those very patterns
	// (e.g. asking how to prevent SQL injection) is legitimate input.
	hits := g.detector.Scan(string(body))
	if len(hits) > 0 {
		g.logger.Warn("suspicious payload detected", map[string]interface{}{
			"categories": hits,
			"ip":         clientIP,
		})
	}

	resp, err := g.forward(r.Context(), body)
	if err != nil {
		g.logger.Error("downstream call failed", map[string]interface{}{
			"error": Redact(err.Error()),
		})
		jsonError(w, http.StatusBadGateway, "downstream call failed")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(resp)
}

// verifySignature validates the X-Signature/X-Timestamp/X-Nonce headers
// against body. Returns ("", "") when the request is accepted; otherwise
// reason is one of the spec's three named codes (bad_signature,
// replay_detected, expired_timestamp) and every failure is a 401.
func (g *Gateway) verifySignature(r *http.Request, body []byte) (reason, message string) {
	signature := r.Header.Get("X-Signature")
	timestampHeader := r.Header.Get("X-Timestamp")
	nonce := r.Header.Get("X-Nonce")

	if signature == "" || timestampHeader == "" || nonce == "" {
		return "bad_signature", "missing signature headers"
	}
	if !ValidFormat(nonce) {
		return "bad_signature", "malformed nonce"
	}

	timestampMs, err := strconv.ParseInt(timestampHeader, 10, 64)
	if err != nil {
		return "bad_signature", "malformed timestamp"
	}
	if !ValidateTimestamp(timestampMs, time.Now()) {
		return "expired_timestamp", "timestamp outside allowed skew"
	}

	if !g.nonces.CheckAndRecord(nonce, time.Now()) {
		return "replay_detected", "nonce already used"
	}

	req := SignedRequest{
		Method:    r.Method,
		URL:       r.URL.Path,
		Timestamp: timestampMs,
		Nonce:     nonce,
		Body:      body,
	}
	if !Verify(req, g.config.HMACSecret, signature) {
		return "bad_signature", "invalid signature"
	}
	return "", ""
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return fwd
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// messageEnvelope is the wire shape of a forwarded completion error so
// handleMessages can produce a structured JSON error body when needed.
type messageEnvelope struct {
	Error  string `json:"error,omitempty"`
	Reason string `json:"reason,omitempty"`
}

func jsonError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(messageEnvelope{Error: msg})
}

// jsonErrorWithReason writes an error body carrying one of the spec's named
// authentication-failure reason codes alongside the human-readable message.
func jsonErrorWithReason(w http.ResponseWriter, status int, reason, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(messageEnvelope{Error: msg, Reason: reason})
}
