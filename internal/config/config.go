package config

import "time"

// Options holds all configuration for a gateprobe run.
type Options struct {
	// Target
	URL      string // base origin, e.g. https://gate.example.com
	GatePath string // gateway endpoint path that validates forwarded URLs

	// Catalog
	ProtectedPath string // gated path the catalogs target, e.g. /admin
	PayloadFile   string // empty = use built-in payload catalog

	// Performance
	Threads int
	Timeout time.Duration
	Delay   time.Duration

	// HTTP
	UserAgent string
	Proxy     string

	// Output
	OutputDir string // parent directory for the timestamped run directory
	Quiet     bool
	NoColor   bool
}
