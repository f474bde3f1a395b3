package gateway

import "net/http"

// SecurityHeaders returns the fixed header set applied to every gateway
// response. Unlike the teacher's configurable per-deployment header map,
// this engine's gateway speaks only to its own orchestrator process, so the
// set is pinned rather than made configurable.
func SecurityHeaders() map[string]string {
	return map[string]string{
		"X-Content-Type-Options":    "nosniff",
		"X-Frame-Options":           "DENY",
		"X-XSS-Protection":          "1; mode=block",
		"Strict-Transport-Security": "max-age=31536000; includeSubDomains",
		"Referrer-Policy":           "strict-origin-when-cross-origin",
	}
}

// WithSecurityHeaders wraps next so every response carries SecurityHeaders
// before the handler writes its own status and body.
func WithSecurityHeaders(next http.Handler) http.Handler {
	headers := SecurityHeaders()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for k, v := range headers {
			w.Header().Set(k, v)
		}
		next.ServeHTTP(w, r)
	})
}
