// Package record persists probe outcomes: an append-only CSV results
// log plus one body artifact per interesting probe, all under a
// timestamped per-run directory.
package record

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/yass-dev/gateprobe/internal/prober"
)

const (
	runDirPrefix = "gateprobe_"
	bodiesDir    = "bodies"
	resultsFile  = "results.csv"
)

// header is the fixed results log schema. CSV quoting makes payload and
// notes fields lossless even when they embed delimiters, quotes or
// newlines.
var header = []string{"id", "payload", "full_url", "http_code", "effective_url", "body_bytes", "notes"}

// Recorder owns the run's output directory. Records are appended in
// call order and flushed per row, so a terminated run leaves a valid
// log of everything probed so far.
type Recorder struct {
	Dir string // run directory, e.g. ./gateprobe_20260831_143005

	f *os.File
	w *csv.Writer
}

// New creates the timestamped run directory and its bodies subdirectory
// under parent, and writes the results log header. A failure here is
// fatal to the run: there is nowhere to record results.
func New(parent string) (*Recorder, error) {
	dir := filepath.Join(parent, runDirPrefix+time.Now().Format("20060102_150405"))
	if err := os.MkdirAll(filepath.Join(dir, bodiesDir), 0755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}

	f, err := os.Create(filepath.Join(dir, resultsFile))
	if err != nil {
		return nil, fmt.Errorf("creating results log: %w", err)
	}

	r := &Recorder{Dir: dir, f: f, w: csv.NewWriter(f)}
	if err := r.w.Write(header); err != nil {
		f.Close()
		return nil, fmt.Errorf("writing results header: %w", err)
	}
	r.w.Flush()
	if err := r.w.Error(); err != nil {
		f.Close()
		return nil, fmt.Errorf("writing results header: %w", err)
	}
	return r, nil
}

// Record appends one row to the results log. Rows are never reordered
// or rewritten; callers must record in probe-id order.
func (r *Recorder) Record(res *prober.Result) error {
	err := r.w.Write([]string{
		strconv.Itoa(res.ID),
		string(res.Payload),
		res.FullURL,
		res.Code,
		res.EffectiveURL,
		strconv.Itoa(res.BodyBytes),
		res.Notes,
	})
	if err != nil {
		return err
	}
	// Flush per record: partial runs must leave a complete prefix.
	r.w.Flush()
	return r.w.Error()
}

// SaveBody writes the response body artifact for a probe. The name is
// derived from the probe id so artifacts cross-reference log rows. Each
// id is write-once; a second call for the same id fails.
func (r *Recorder) SaveBody(id int, body []byte) (string, error) {
	name := BodyFileName(id)
	f, err := os.OpenFile(filepath.Join(r.Dir, bodiesDir, name), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return "", fmt.Errorf("creating body artifact for probe %d: %w", id, err)
	}
	defer f.Close()
	if _, err := f.Write(body); err != nil {
		return "", fmt.Errorf("writing body artifact for probe %d: %w", id, err)
	}
	return name, nil
}

// BodyFileName returns the deterministic artifact name for a probe id.
func BodyFileName(id int) string {
	return fmt.Sprintf("body_%04d.txt", id)
}

// ResultsPath returns the path of the results log.
func (r *Recorder) ResultsPath() string {
	return filepath.Join(r.Dir, resultsFile)
}

// Close flushes and closes the results log.
func (r *Recorder) Close() error {
	r.w.Flush()
	if err := r.w.Error(); err != nil {
		r.f.Close()
		return err
	}
	return r.f.Close()
}
