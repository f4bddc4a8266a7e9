package prober

import "github.com/yass-dev/gateprobe/internal/catalog"

// FailedCode is the status sentinel recorded when no HTTP status was
// received (connection error, TLS failure, timeout).
const FailedCode = "000"

// Result is the immutable outcome of one probe. Exactly one Result is
// produced per (payload, header-set) pair, whether or not the request
// made it to the wire.
type Result struct {
	ID           int
	Payload      catalog.Payload
	FullURL      string // composed candidate URL carried in the request body
	Code         string // three-digit status, or FailedCode
	StatusCode   int    // numeric status, 0 when the request failed
	EffectiveURL string // final URL after redirects, empty on failure
	BodyBytes    int
	Notes        string
	HeaderLabel  string // label of the applied header set (console feedback only, not logged)
	Saved        bool   // body artifact written (console feedback only, not logged)
}

// ShouldSave reports whether a response body is worth persisting: an
// unexpected success/redirect/server-error status, or an anomalously
// large body suggesting gated content was actually returned. Small
// bodies with ordinary block statuses are the uninteresting baseline.
func ShouldSave(statusCode, bodyBytes int) bool {
	switch statusCode {
	case 200, 302, 500:
		return true
	}
	return bodyBytes > 500
}
