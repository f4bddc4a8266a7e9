// Package prober executes individual probes against the gateway
// endpoint: one HTTP request per (payload, header-set) pair, with the
// payload bytes passed through to the wire unchanged.
package prober

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"

	"github.com/slicingmelon/go-rawurlparser"
	"github.com/yass-dev/gateprobe/internal/catalog"
	"github.com/yass-dev/gateprobe/internal/config"
)

// Prober issues probe requests. It keeps no per-probe state: every
// invocation is independent, so results depend only on the inputs.
type Prober struct {
	client    *http.Client
	origin    string // scheme://host, no trailing slash
	gateURL   string
	userAgent string
}

// New builds a Prober from the run options. The base origin is parsed
// with a raw, non-normalizing parser so whatever the operator typed is
// preserved; net/url path cleaning never touches probe URLs. The client
// follows redirects, skips certificate validation (the target is a known
// test endpoint) and bounds every request with the configured timeout.
func New(opts *config.Options) (*Prober, error) {
	parsed, err := rawurlparser.RawURLParse(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid base origin %q: %w", opts.URL, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("unsupported scheme %q in base origin", parsed.Scheme)
	}
	if parsed.Host == "" {
		return nil, fmt.Errorf("base origin %q has no host", opts.URL)
	}
	origin := parsed.Scheme + "://" + parsed.Host

	gatePath := opts.GatePath
	if !strings.HasPrefix(gatePath, "/") {
		gatePath = "/" + gatePath
	}

	transport := &http.Transport{
		TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		DialContext: (&net.Dialer{
			Timeout: opts.Timeout,
		}).DialContext,
		MaxIdleConnsPerHost: opts.Threads,
		MaxIdleConns:        opts.Threads,
	}

	if opts.Proxy != "" {
		proxyURL, err := url.Parse(opts.Proxy)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy URL %q: %w", opts.Proxy, err)
		}
		transport.Proxy = http.ProxyURL(proxyURL)
	}

	ua := opts.UserAgent
	if ua == "" {
		ua = "gateprobe/1.0"
	}

	return &Prober{
		client: &http.Client{
			Transport: transport,
			Timeout:   opts.Timeout,
			// Redirects are followed; the landing URL is recorded as
			// the effective URL.
		},
		origin:    origin,
		gateURL:   origin + gatePath,
		userAgent: ua,
	}, nil
}

// Origin returns the normalized base origin the prober targets.
func (p *Prober) Origin() string {
	return p.origin
}

// GateURL returns the full gateway endpoint URL.
func (p *Prober) GateURL() string {
	return p.gateURL
}

// Probe runs one probe: it composes the candidate URL by appending the
// payload bytes to the base origin, POSTs it as the url parameter of the
// gateway endpoint with the header set applied in order, and classifies
// the response. Request-layer failures are absorbed into the Result with
// the FailedCode sentinel; Probe never fails the run.
//
// The returned body is the raw response body, for the caller to persist
// when ShouldSave says so.
func (p *Prober) Probe(ctx context.Context, id int, payload catalog.Payload, headers catalog.HeaderSet) (Result, []byte) {
	fullURL := p.origin + string(payload)

	res := Result{
		ID:          id,
		Payload:     payload,
		FullURL:     fullURL,
		Code:        FailedCode,
		HeaderLabel: headers.Label(),
	}

	// The candidate URL rides in the body verbatim. Form-encoding it
	// would rewrite the payload's own percent sequences, which is
	// exactly the corruption this tool exists to avoid.
	body := append([]byte("url="), fullURL...)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.gateURL, bytes.NewReader(body))
	if err != nil {
		res.Notes = failureNote(err)
		return res, nil
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", p.userAgent)
	applyHeaders(req, headers)

	resp, err := p.client.Do(req)
	if err != nil {
		res.Notes = failureNote(err)
		return res, nil
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		res.Notes = failureNote(err)
		return res, nil
	}

	res.Code = fmt.Sprintf("%03d", resp.StatusCode)
	res.StatusCode = resp.StatusCode
	res.EffectiveURL = resp.Request.URL.String()
	res.BodyBytes = len(respBody)
	res.Notes = responseNotes(resp.Header, respBody)
	return res, respBody
}

// applyHeaders sets the header overrides exactly as cataloged: in order,
// duplicates kept, names uncanonicalized. Header.Add would fold names
// into canonical form, so the map is written directly. Host is special:
// net/http takes it from the request struct, not the header map.
func applyHeaders(req *http.Request, headers catalog.HeaderSet) {
	for _, h := range headers {
		if strings.EqualFold(h.Name, "Host") {
			req.Host = h.Value
			continue
		}
		req.Header[h.Name] = append(req.Header[h.Name], h.Value)
	}
}
