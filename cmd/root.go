package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/yass-dev/gateprobe/internal/catalog"
	"github.com/yass-dev/gateprobe/internal/config"
	"github.com/yass-dev/gateprobe/internal/runner"
	"github.com/yass-dev/gateprobe/pkg/version"
)

var opts config.Options

type flagGroup struct {
	title string
	flags []string
}

var helpGroups = []flagGroup{
	{"TARGET", []string{"url", "gate", "path", "payloads"}},
	{"PROBE", []string{"threads", "timeout", "delay", "user-agent", "proxy"}},
	{"OUTPUT", []string{"output", "quiet", "no-color"}},
}

var rootCmd = &cobra.Command{
	Use:     "gateprobe -u <origin> [flags]",
	Short:   "Combinatorial path-validation bypass prober",
	Version: version.Version,
	Long: `gateprobe tests whether a server-side path-validation gate can be evaded
by encoding tricks, Unicode confusables, traversal sequences, matrix
parameters, or proxy-trust header overrides. Every payload is combined
with every header set, probed once, and recorded to a per-run results
log with saved bodies for interesting responses.`,
	Example: `  gateprobe -u https://gate.example.com
  gateprobe -u https://gate.example.com --gate /api/validate
  gateprobe -u https://gate.example.com --path /secret/panel
  gateprobe -u https://gate.example.com -w custom-payloads.txt
  gateprobe -u https://gate.example.com --delay 500ms -o runs/
  gateprobe -u https://gate.example.com -t 4 --timeout 5s`,
	PreRunE: func(cmd *cobra.Command, args []string) error {
		if opts.URL == "" {
			_ = cmd.Help()
			fmt.Fprintln(os.Stderr)
			return fmt.Errorf("target required: use -u")
		}
		if !strings.HasPrefix(opts.URL, "http://") && !strings.HasPrefix(opts.URL, "https://") {
			opts.URL = "http://" + opts.URL
		}
		if opts.ProtectedPath == "" {
			return fmt.Errorf("--path must not be empty")
		}
		if !strings.HasPrefix(opts.ProtectedPath, "/") {
			opts.ProtectedPath = "/" + opts.ProtectedPath
		}
		if opts.Threads < 1 {
			return fmt.Errorf("--threads must be at least 1")
		}
		if opts.Timeout <= 0 {
			return fmt.Errorf("--timeout must be positive")
		}
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()
		return runner.Run(ctx, &opts)
	},
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	f := rootCmd.Flags()

	// Target
	f.StringVarP(&opts.URL, "url", "u", "", "Base origin of the target gateway")
	f.StringVar(&opts.GatePath, "gate", "/gateway/validate", "Gateway endpoint path that validates forwarded URLs")
	f.StringVar(&opts.ProtectedPath, "path", catalog.ProtectedPath, "Protected path the catalogs target")
	f.StringVarP(&opts.PayloadFile, "payloads", "w", "", "Custom payload file, one verbatim path per line (default: built-in)")

	// Probe
	f.IntVarP(&opts.Threads, "threads", "t", 1, "Concurrent probes (1 = strictly sequential, the default policy)")
	f.DurationVar(&opts.Timeout, "timeout", 10*time.Second, "Per-probe request timeout")
	f.DurationVar(&opts.Delay, "delay", 0, "Delay before each probe")
	f.StringVar(&opts.UserAgent, "user-agent", "", "Custom User-Agent string")
	f.StringVar(&opts.Proxy, "proxy", "", "HTTP/SOCKS proxy URL")

	// Output
	f.StringVarP(&opts.OutputDir, "output", "o", ".", "Parent directory for the timestamped run directory")
	f.BoolVarP(&opts.Quiet, "quiet", "q", false, "Only print the final summary")
	f.BoolVar(&opts.NoColor, "no-color", false, "Disable colored output")

	// Custom help: categorized flags like httpx.
	rootCmd.SetHelpFunc(func(cmd *cobra.Command, args []string) {
		w := os.Stderr
		fmt.Fprintf(w, "%s\n\nUsage:\n  %s\n", cmd.Long, cmd.UseLine())
		fmt.Fprintf(w, "\nExamples:\n%s\n", cmd.Example)
		fmt.Fprintf(w, "\nFlags:\n")
		for _, g := range helpGroups {
			fmt.Fprintf(w, "\n%s:\n", g.title)
			for _, name := range g.flags {
				if f := cmd.Flags().Lookup(name); f != nil {
					fmt.Fprintln(w, formatFlag(f))
				}
			}
		}
		fmt.Fprintln(w)
	})
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func formatFlag(f *pflag.Flag) string {
	var left string
	if f.Shorthand != "" {
		left = fmt.Sprintf("-%s, --%s", f.Shorthand, f.Name)
	} else {
		left = fmt.Sprintf("    --%s", f.Name)
	}

	typ := f.Value.Type()
	if typ != "bool" {
		left += " " + typ
	}

	// Pad to fixed column width for aligned descriptions.
	const col = 36
	for len(left) < col {
		left += " "
	}

	right := f.Usage
	// Show default for non-zero values.
	def := f.DefValue
	if def != "" && def != "false" && def != "0" && def != "0s" && def != "[]" && def != "." {
		right += fmt.Sprintf(" (default %s)", def)
	}

	return "   " + left + right
}
