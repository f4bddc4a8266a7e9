package runner

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/yass-dev/gateprobe/internal/catalog"
	"github.com/yass-dev/gateprobe/internal/config"
)

func writePayloadFile(t *testing.T, payloads []string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "payloads.txt")
	if err := os.WriteFile(path, []byte(strings.Join(payloads, "\n")+"\n"), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func testOpts(t *testing.T, serverURL, payloadFile string) *config.Options {
	t.Helper()
	return &config.Options{
		URL:         serverURL,
		GatePath:    "/gateway/validate",
		PayloadFile: payloadFile,
		Threads:     1,
		Timeout:     5 * time.Second,
		OutputDir:   t.TempDir(),
		Quiet:       true,
		NoColor:     true,
	}
}

// findRunDir locates the single run directory created under parent.
func findRunDir(t *testing.T, parent string) string {
	t.Helper()
	entries, err := os.ReadDir(parent)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected exactly one run directory, found %d entries", len(entries))
	}
	return filepath.Join(parent, entries[0].Name())
}

func readLog(t *testing.T, runDir string) [][]string {
	t.Helper()
	f, err := os.Open(filepath.Join(runDir, "results.csv"))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("parsing results log: %v", err)
	}
	return rows
}

func headerSetCount() int {
	return len(catalog.HeaderSets(catalog.ProtectedPath))
}

func TestRunRecordsEveryPair(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(403)
		fmt.Fprint(w, "blocked")
	}))
	defer srv.Close()

	payloads := []string{"/x/admin", "/x/admi%20n"}
	opts := testOpts(t, srv.URL, writePayloadFile(t, payloads))

	if err := Run(context.Background(), opts); err != nil {
		t.Fatal(err)
	}

	rows := readLog(t, findRunDir(t, opts.OutputDir))
	hs := headerSetCount()
	want := len(payloads) * hs
	if len(rows)-1 != want {
		t.Fatalf("expected %d result rows, got %d", want, len(rows)-1)
	}

	// Ids consecutive from 1, outer payload / inner header order.
	for i, row := range rows[1:] {
		if row[0] != strconv.Itoa(i+1) {
			t.Errorf("row %d id = %q, want %d", i, row[0], i+1)
		}
		wantPayload := payloads[i/hs]
		if row[1] != wantPayload {
			t.Errorf("row %d payload = %q, want %q", i, row[1], wantPayload)
		}
	}
}

func TestRunPayloadBytesSurviveLog(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(403)
	}))
	defer srv.Close()

	// Embedded quote, comma and percent-encoding must round-trip.
	payload := `/a,b"c%2e d`
	opts := testOpts(t, srv.URL, writePayloadFile(t, []string{payload}))

	if err := Run(context.Background(), opts); err != nil {
		t.Fatal(err)
	}

	rows := readLog(t, findRunDir(t, opts.OutputDir))
	if rows[1][1] != payload {
		t.Errorf("logged payload = %q, want %q", rows[1][1], payload)
	}
	if rows[1][2] != srv.URL+payload {
		t.Errorf("logged full URL = %q, want %q", rows[1][2], srv.URL+payload)
	}
}

func TestRunSavesBodiesPerRetentionPolicy(t *testing.T) {
	// The gateway lets one candidate URL through (200 + big body) and
	// blocks the rest with a small 403.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		if strings.Contains(string(raw), "%2e%2e") {
			w.WriteHeader(200)
			fmt.Fprint(w, strings.Repeat("admin dashboard\n", 10))
			return
		}
		w.WriteHeader(403)
		fmt.Fprint(w, "no")
	}))
	defer srv.Close()

	opts := testOpts(t, srv.URL, writePayloadFile(t, []string{"/admin", "/%2e%2e/admin"}))

	if err := Run(context.Background(), opts); err != nil {
		t.Fatal(err)
	}

	runDir := findRunDir(t, opts.OutputDir)
	rows := readLog(t, runDir)

	bodies, err := os.ReadDir(filepath.Join(runDir, "bodies"))
	if err != nil {
		t.Fatal(err)
	}

	var want200 []string
	for _, row := range rows[1:] {
		switch row[3] {
		case "200":
			want200 = append(want200, row[0])
		case "403":
		default:
			t.Errorf("unexpected status %q in log", row[3])
		}
	}
	if len(want200) != headerSetCount() {
		t.Fatalf("expected %d rows with status 200, got %d", headerSetCount(), len(want200))
	}
	if len(bodies) != len(want200) {
		t.Fatalf("expected %d saved bodies, got %d", len(want200), len(bodies))
	}

	// Artifact names cross-reference log ids.
	saved := make(map[string]bool)
	for _, b := range bodies {
		saved[b.Name()] = true
	}
	for _, id := range want200 {
		n, _ := strconv.Atoi(id)
		name := fmt.Sprintf("body_%04d.txt", n)
		if !saved[name] {
			t.Errorf("missing artifact %s for 200 row id %s", name, id)
		}
	}
}

func TestRunContinuesAfterTransportFailure(t *testing.T) {
	// The handler kills the connection for one payload mid-run; the run
	// must record a "000" row for it and keep going.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		if strings.Contains(string(raw), "/kill") {
			hj, ok := w.(http.Hijacker)
			if !ok {
				t.Fatal("server does not support hijacking")
			}
			conn, _, _ := hj.Hijack()
			conn.Close()
			return
		}
		w.WriteHeader(403)
	}))
	defer srv.Close()

	payloads := []string{"/admin", "/kill", "/after"}
	opts := testOpts(t, srv.URL, writePayloadFile(t, payloads))

	if err := Run(context.Background(), opts); err != nil {
		t.Fatal(err)
	}

	rows := readLog(t, findRunDir(t, opts.OutputDir))
	hs := headerSetCount()
	if len(rows)-1 != len(payloads)*hs {
		t.Fatalf("failure aborted the run: got %d rows, want %d", len(rows)-1, len(payloads)*hs)
	}

	var failedRows int
	for _, row := range rows[1:] {
		if row[1] == "/kill" {
			if row[3] != "000" {
				t.Errorf("killed probe status = %q, want 000", row[3])
			}
			if row[6] == "" {
				t.Error("killed probe has an empty note")
			}
			if row[5] != "0" {
				t.Errorf("killed probe body_bytes = %q, want 0", row[5])
			}
			failedRows++
		}
	}
	if failedRows != hs {
		t.Errorf("expected %d failed rows, got %d", hs, failedRows)
	}
}

func TestRunConcurrentKeepsIdOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Jitter responses so completion order differs from send order.
		time.Sleep(time.Duration(len(r.Header)%3) * 10 * time.Millisecond)
		w.WriteHeader(403)
	}))
	defer srv.Close()

	opts := testOpts(t, srv.URL, writePayloadFile(t, []string{"/a", "/b", "/c", "/d", "/e"}))
	opts.Threads = 4

	if err := Run(context.Background(), opts); err != nil {
		t.Fatal(err)
	}

	rows := readLog(t, findRunDir(t, opts.OutputDir))
	if len(rows)-1 != 5*headerSetCount() {
		t.Fatalf("expected %d rows, got %d", 5*headerSetCount(), len(rows)-1)
	}
	for i, row := range rows[1:] {
		if row[0] != strconv.Itoa(i+1) {
			t.Fatalf("row %d id = %q: log not in id order under concurrency", i, row[0])
		}
	}
}

func TestRunBuiltinCatalog(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(403)
	}))
	defer srv.Close()

	opts := testOpts(t, srv.URL, "")

	if err := Run(context.Background(), opts); err != nil {
		t.Fatal(err)
	}

	rows := readLog(t, findRunDir(t, opts.OutputDir))
	want := len(catalog.Payloads(catalog.ProtectedPath)) * headerSetCount()
	if len(rows)-1 != want {
		t.Fatalf("expected %d rows from built-in catalogs, got %d", want, len(rows)-1)
	}
}

func TestRunOverrideHeadersCarryConfiguredPath(t *testing.T) {
	var mu sync.Mutex
	var overrides []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if v := r.Header.Get("X-Original-URL"); v != "" {
			mu.Lock()
			overrides = append(overrides, v)
			mu.Unlock()
		}
		w.WriteHeader(403)
	}))
	defer srv.Close()

	opts := testOpts(t, srv.URL, writePayloadFile(t, []string{"/secret"}))
	opts.ProtectedPath = "/secret"

	if err := Run(context.Background(), opts); err != nil {
		t.Fatal(err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(overrides) == 0 {
		t.Fatal("expected at least one request carrying X-Original-URL")
	}
	for _, v := range overrides {
		if v != "/secret" {
			t.Errorf("X-Original-URL = %q, want the configured path /secret", v)
		}
	}
}

func TestRunBuiltinCatalogFollowsConfiguredPath(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(403)
	}))
	defer srv.Close()

	opts := testOpts(t, srv.URL, "")
	opts.ProtectedPath = "/secret"

	if err := Run(context.Background(), opts); err != nil {
		t.Fatal(err)
	}

	rows := readLog(t, findRunDir(t, opts.OutputDir))
	if len(rows) < 2 {
		t.Fatal("expected result rows from the built-in catalog")
	}
	if rows[1][1] != "/secret" {
		t.Errorf("first payload = %q, want the baseline /secret", rows[1][1])
	}
	for i, row := range rows[1:] {
		if strings.Contains(strings.ToLower(row[1]), "admin") {
			t.Errorf("row %d payload still targets the default path: %q", i, row[1])
		}
	}
}

func TestRunFailsWithoutOutputDir(t *testing.T) {
	blocked := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(blocked, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	opts := testOpts(t, "http://127.0.0.1:1", "")
	opts.OutputDir = filepath.Join(blocked, "sub") // parent is a file

	if err := Run(context.Background(), opts); err == nil {
		t.Error("expected setup error when output directory cannot be created")
	}
}

func TestRunFailsOnBadPayloadFile(t *testing.T) {
	opts := testOpts(t, "http://127.0.0.1:1", filepath.Join(t.TempDir(), "missing.txt"))
	if err := Run(context.Background(), opts); err == nil {
		t.Error("expected setup error for missing payload file")
	}
}
