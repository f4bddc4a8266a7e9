package prober

import (
	"errors"
	"net"
	"net/http"
	"strings"
	"syscall"
)

const maxNoteLen = 200

// fingerprintHeaders are sampled, in this order, into the notes field.
// A one-line excerpt of these is usually enough to tell response stacks
// apart when scanning the results log.
var fingerprintHeaders = []string{
	"Server",
	"X-Powered-By",
	"Content-Type",
	"Location",
	"WWW-Authenticate",
}

// validatorSignatures are error strings emitted by common URL validation
// libraries. Their presence in a body means the probe was rejected at
// the parser layer before ever reaching the gate logic, which is a
// different diagnostic outcome than an application-level block.
var validatorSignatures = []string{
	"ERR_INVALID_URL",
	"URIError",
	"Invalid URL",
	"unescaped characters",
}

const validatorMarker = "[validator-reject]"

// responseNotes builds the notes field for a completed probe: a
// collapsed single-line header fingerprint, plus the validator marker
// when the body matches a known parser-rejection signature.
func responseNotes(header http.Header, body []byte) string {
	var parts []string
	for _, name := range fingerprintHeaders {
		if v := header.Get(name); v != "" {
			parts = append(parts, name+": "+v)
		}
	}
	note := collapse(strings.Join(parts, "; "))

	if matchesValidatorSignature(body) {
		if note != "" {
			note += " "
		}
		note += validatorMarker
	}
	return truncate(note, maxNoteLen)
}

func matchesValidatorSignature(body []byte) bool {
	s := string(body)
	for _, sig := range validatorSignatures {
		if strings.Contains(s, sig) {
			return true
		}
	}
	return false
}

// failureNote classifies a request-layer error into a short prefix plus
// the collapsed error text. The prefix is stable so log consumers can
// distinguish failure classes without parsing library error strings.
func failureNote(err error) string {
	msg := collapse(err.Error())
	var class string
	var netErr net.Error
	switch {
	case errors.As(err, &netErr) && netErr.Timeout():
		class = "timeout"
	case strings.Contains(msg, "tls:") || strings.Contains(msg, "x509:"):
		class = "tls"
	case errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) || strings.Contains(msg, "EOF"):
		class = "connection"
	default:
		class = "request"
	}
	return truncate(class+": "+msg, maxNoteLen)
}

// collapse normalizes whitespace runs (including newlines) to single
// spaces so a note always fits one log field.
func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
