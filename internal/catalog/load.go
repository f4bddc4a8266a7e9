package catalog

import (
	"bytes"
	"fmt"
	"os"
)

// LoadPayloads reads a payload catalog from a file, one payload per line.
// Lines are taken verbatim: no trimming, no de-duplication, no comment
// syntax, since any of those would corrupt deliberately crafted entries.
// Only the LF terminator is consumed — a CRLF-terminated file therefore
// yields trailing-CR payloads, which is itself a valid hypothesis. Blank
// lines are skipped. Payloads containing a literal newline cannot be
// expressed in a file; those belong in the built-in catalog.
func LoadPayloads(path string) ([]Payload, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading payload file %s: %w", path, err)
	}

	var out []Payload
	for _, line := range bytes.Split(data, []byte("\n")) {
		if len(line) == 0 {
			continue
		}
		p := make(Payload, len(line))
		copy(p, line)
		out = append(out, p)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("payload file %s contains no payloads", path)
	}
	return out, nil
}
