// Package gateway implements the Signed Gateway: a per-model-alias HTTP
// listener that authenticates in-process callers with an HMAC-signed
// request scheme and forwards their completion requests to the underlying
// backend with the backend's own credentials.
package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// SignedRequest is the material a signature is computed over and verified
// against: method:url:timestamp:nonce:rawBody.
type SignedRequest struct {
	Method    string
	URL       string
	Timestamp int64 // epoch milliseconds
	Nonce     string
	Body      []byte
}

// canonical builds the exact byte string the HMAC is computed over.
func (r SignedRequest) canonical() []byte {
	return []byte(fmt.Sprintf("%s:%s:%d:%s:%s", r.Method, r.URL, r.Timestamp, r.Nonce, r.Body))
}

// Sign computes the hex-encoded HMAC-SHA256 signature of r under secret.
func Sign(r SignedRequest, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(r.canonical())
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify reports whether signature matches r under secret, using a
// constant-time comparison so timing does not leak partial matches.
func Verify(r SignedRequest, secret, signature string) bool {
	expected := Sign(r, secret)
	return hmac.Equal([]byte(expected), []byte(signature))
}

// TimestampSkew is the maximum age spec.md §4.2 permits for X-Timestamp.
const TimestampSkew = 5 * time.Minute

// ValidateTimestamp reports whether timestampMs is within TimestampSkew of now.
func ValidateTimestamp(timestampMs int64, now time.Time) bool {
	ts := time.UnixMilli(timestampMs)
	delta := now.Sub(ts)
	if delta < 0 {
		delta = -delta
	}
	return delta <= TimestampSkew
}
