// Package runner drives a probe run: the Cartesian product of the
// payload catalog and the header-mutation catalog, one probe per pair,
// recorded in probe-id order.
package runner

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/yass-dev/gateprobe/internal/catalog"
	"github.com/yass-dev/gateprobe/internal/config"
	"github.com/yass-dev/gateprobe/internal/prober"
	"github.com/yass-dev/gateprobe/internal/record"
	"github.com/yass-dev/gateprobe/pkg/version"
)

// probeItem is one unit of work: a (payload, header-set) pair with its
// probe id assigned up front, before dispatch, so ids are independent of
// execution timing.
type probeItem struct {
	id      int
	payload catalog.Payload
	headers catalog.HeaderSet
}

// outcome pairs a probe result with its raw response body, which the
// single recording goroutine may persist as an artifact.
type outcome struct {
	res  prober.Result
	body []byte
}

// Run executes the full probe run. Iteration order is an observable
// contract: outer loop over payloads, inner loop over header sets, so
// all header variants of a payload appear consecutively in the log.
func Run(ctx context.Context, opts *config.Options) error {
	if opts.ProtectedPath == "" {
		opts.ProtectedPath = catalog.ProtectedPath
	}
	payloads, err := loadPayloads(opts)
	if err != nil {
		return err
	}
	headerSets := catalog.HeaderSets(opts.ProtectedPath)

	p, err := prober.New(opts)
	if err != nil {
		return err
	}

	rec, err := record.New(opts.OutputDir)
	if err != nil {
		return err
	}
	defer rec.Close()

	// Ids are a single global counter starting at 1, incremented once
	// per pair regardless of probe outcome.
	items := make([]probeItem, 0, len(payloads)*len(headerSets))
	id := 0
	for _, pl := range payloads {
		for _, hs := range headerSets {
			id++
			items = append(items, probeItem{id: id, payload: pl, headers: hs})
		}
	}

	if !opts.Quiet {
		printBanner(opts, p, len(payloads), len(headerSets))
	}

	pauser, cleanup := startStdinToggle(opts.Quiet)
	defer cleanup()

	start := time.Now()
	results := runPool(ctx, p, items, opts.Threads, opts.Delay, pauser)

	var recorded, saved, failed int

	// Results may arrive out of order under concurrency; the reorder
	// buffer releases them to the single recorder strictly by id.
	pending := make(map[int]outcome)
	next := 1
	for oc := range results {
		pending[oc.res.ID] = oc
		for {
			cur, ok := pending[next]
			if !ok {
				break
			}
			delete(pending, next)
			next++

			res := cur.res
			if res.Code == prober.FailedCode {
				failed++
			} else if prober.ShouldSave(res.StatusCode, res.BodyBytes) {
				if _, err := rec.SaveBody(res.ID, cur.body); err != nil {
					// Artifact loss is worth a note, not an abort: the
					// log row still carries the classification.
					res.Notes += " (body save failed: " + err.Error() + ")"
				} else {
					res.Saved = true
					saved++
				}
			}

			if err := rec.Record(&res); err != nil {
				return fmt.Errorf("writing results log: %w", err)
			}
			recorded++

			if !opts.Quiet {
				printProbe(&res, opts.NoColor)
			}
		}
	}

	elapsed := time.Since(start)
	if pauser != nil {
		elapsed -= pauser.PausedDuration()
	}

	if ctx.Err() != nil && recorded < len(items) {
		fmt.Fprintf(os.Stderr, "\n[!] Interrupted after %d/%d probes — partial results in %s\n",
			recorded, len(items), rec.Dir)
		return nil
	}

	fmt.Fprintf(os.Stderr, "\n[+] %d probes complete: %d bodies saved, %d failed, %s — results in %s\n",
		recorded, saved, failed, elapsed.Round(time.Millisecond), rec.Dir)
	return nil
}

func loadPayloads(opts *config.Options) ([]catalog.Payload, error) {
	if opts.PayloadFile != "" {
		return catalog.LoadPayloads(opts.PayloadFile)
	}
	return catalog.Payloads(opts.ProtectedPath), nil
}

// runPool fans probe items out across workers and returns a channel of
// outcomes, closed when all items are done. threads=1 gives the default
// strictly sequential run; ids were assigned before dispatch either way.
func runPool(
	ctx context.Context,
	p *prober.Prober,
	items []probeItem,
	threads int,
	delay time.Duration,
	pauser *Pauser,
) <-chan outcome {
	if threads < 1 {
		threads = 1
	}
	itemsCh := make(chan probeItem, threads*2)
	resultsCh := make(chan outcome, threads*2)

	var wg sync.WaitGroup

	// Producer: feed items in catalog order.
	go func() {
		defer close(itemsCh)
		for _, item := range items {
			select {
			case itemsCh <- item:
			case <-ctx.Done():
				return
			}
		}
	}()

	// Workers: consume items, produce outcomes. Probe absorbs request
	// failures itself, so the only early exit is cancellation.
	for i := 0; i < threads; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for item := range itemsCh {
				if pauser != nil {
					pauser.Wait()
				}
				if delay > 0 {
					select {
					case <-time.After(delay):
					case <-ctx.Done():
						return
					}
				}

				res, body := p.Probe(ctx, item.id, item.payload, item.headers)
				if ctx.Err() != nil {
					return
				}
				resultsCh <- outcome{res: res, body: body}
			}
		}()
	}

	go func() {
		wg.Wait()
		close(resultsCh)
	}()

	return resultsCh
}

// ANSI color codes.
const (
	colorReset  = "\033[0m"
	colorGreen  = "\033[32m"
	colorCyan   = "\033[36m"
	colorYellow = "\033[33m"
	colorRed    = "\033[31m"
)

func printProbe(res *prober.Result, noColor bool) {
	color := colorForCode(res.StatusCode, noColor)
	reset := colorReset
	if noColor {
		reset = ""
	}

	savedMark := "     "
	if res.Saved {
		savedMark = "saved"
	}

	fmt.Fprintf(os.Stderr, "[%04d] %s%s%s %8db  %s  %-26s %q\n",
		res.ID,
		color, res.Code, reset,
		res.BodyBytes,
		savedMark,
		res.HeaderLabel,
		res.Payload,
	)
}

func colorForCode(code int, noColor bool) string {
	if noColor {
		return ""
	}
	switch {
	case code >= 200 && code < 300:
		return colorGreen
	case code >= 300 && code < 400:
		return colorCyan
	case code >= 400 && code < 500:
		return colorYellow
	case code >= 500:
		return colorRed
	default:
		return colorRed // transport failure
	}
}

func printBanner(opts *config.Options, p *prober.Prober, payloadCount, headerSetCount int) {
	const (
		cyan  = "\033[36m"
		white = "\033[97m"
		dim   = "\033[2m"
		reset = "\033[0m"
	)
	c, w, d, rs := cyan, white, dim, reset
	if opts.NoColor {
		c, w, d, rs = "", "", "", ""
	}

	fmt.Fprintf(os.Stderr, `
%s               __                          __       %s
%s   ___ ____ _ / /_ ___   ___   ____ ___   / /  ___   %s
%s  / _ '/ _ '// __// -_) / _ \ / __// _ \ / _ \/ -_)  %s
%s  \_, /\_,_/ \__/ \__/ / .__//_/   \___//_.__/\__/   %s %sv%s%s
%s /___/                /_/                            %s
`,
		c, rs,
		c, rs,
		c, rs,
		c, rs, d, version.Version, rs,
		c, rs,
	)

	total := payloadCount * headerSetCount
	fmt.Fprintf(os.Stderr, "%s  ──────────────────────────────────────%s\n", d, rs)
	fmt.Fprintf(os.Stderr, "  %sOrigin:%s       %s%s%s\n", d, rs, w, p.Origin(), rs)
	fmt.Fprintf(os.Stderr, "  %sGateway:%s      %s%s%s\n", d, rs, w, p.GateURL(), rs)
	fmt.Fprintf(os.Stderr, "  %sPath:%s         %s%s%s\n", d, rs, w, opts.ProtectedPath, rs)
	fmt.Fprintf(os.Stderr, "  %sPayloads:%s     %s%d%s\n", d, rs, w, payloadCount, rs)
	fmt.Fprintf(os.Stderr, "  %sHeader sets:%s  %s%d%s\n", d, rs, w, headerSetCount, rs)
	fmt.Fprintf(os.Stderr, "  %sProbes:%s       %s%d%s\n", d, rs, w, total, rs)
	if opts.Threads > 1 {
		fmt.Fprintf(os.Stderr, "  %sThreads:%s      %s%d%s\n", d, rs, w, opts.Threads, rs)
	}
	fmt.Fprintf(os.Stderr, "%s  ──────────────────────────────────────%s\n\n", d, rs)
}
