package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/jonathan/coverme/internal/config"
	"github.com/jonathan/coverme/internal/detect"
	"github.com/jonathan/coverme/internal/dom"
	"github.com/jonathan/coverme/internal/fetch"
	"github.com/jonathan/coverme/internal/observability"
	"github.com/jonathan/coverme/internal/scan"
)

var detectCmd = &cobra.Command{
	Use:   "detect",
	Short: "Detect job postings in pages",
	Long: `Load one or more pages from URLs or saved HTML files and report the job
posting found on each. URLs are loaded concurrently.

With --accept, each page goes through the same skip list and acceptance
threshold the extension applies before announcing a job.`,
	RunE: runDetect,
}

var (
	detectURLs        []string
	detectFiles       []string
	detectHost        string
	detectBrowser     bool
	detectJSON        bool
	detectLegacy      bool
	detectAccept      bool
	detectRegistry    string
	detectConcurrency int
)

func init() {
	detectCmd.Flags().StringSliceVarP(&detectURLs, "url", "u", nil, "URL to load (repeatable)")
	detectCmd.Flags().StringSliceVarP(&detectFiles, "file", "f", nil, "Saved HTML file (repeatable)")
	detectCmd.Flags().StringVar(&detectHost, "host", "", "Hostname to assume for site matching")
	detectCmd.Flags().BoolVar(&detectBrowser, "browser", false, "Render client-side pages in a headless browser")
	detectCmd.Flags().BoolVar(&detectJSON, "json", false, "Print results as JSON")
	detectCmd.Flags().BoolVar(&detectLegacy, "legacy-scores", false, "Use the fixed-confidence score table")
	detectCmd.Flags().BoolVar(&detectAccept, "accept", false, "Apply the skip list and acceptance threshold")
	detectCmd.Flags().StringVar(&detectRegistry, "registry", "", "Custom site registry JSON file")
	detectCmd.Flags().IntVar(&detectConcurrency, "concurrency", 0, "Parallel page loads")

	rootCmd.AddCommand(detectCmd)
}

// detectOptions is what the detect command was asked to do.
type detectOptions struct {
	URLs   []string
	Files  []string
	Host   string
	JSON   bool
	Accept bool
}

// detectOutput is one line of detect output.
type detectOutput struct {
	Source    string               `json:"source"`
	Found     bool                 `json:"found"`
	Candidate *detect.JobCandidate `json:"candidate,omitempty"`
	Status    scan.Status          `json:"status,omitempty"`
	Reason    string               `json:"reason,omitempty"`
	Error     string               `json:"error,omitempty"`
}

func runDetect(cmd *cobra.Command, _ []string) error {
	if len(detectURLs) == 0 && len(detectFiles) == 0 {
		return fmt.Errorf("either --url or --file must be provided")
	}

	cfg := appCfg
	flags := cmd.Flags()
	if flags.Changed("browser") {
		cfg.UseBrowser = detectBrowser
	}
	if flags.Changed("legacy-scores") {
		cfg.LegacyScores = detectLegacy
	}
	if flags.Changed("registry") {
		cfg.Registry = detectRegistry
	}
	if flags.Changed("concurrency") {
		cfg.Concurrency = detectConcurrency
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	return detectSources(cmd.Context(), cfg, detectOptions{
		URLs:   detectURLs,
		Files:  detectFiles,
		Host:   detectHost,
		JSON:   detectJSON,
		Accept: detectAccept,
	}, logger, os.Stdout)
}

// detectSources loads every source, runs detection and writes the results
// in input order. It fails when any source could not be loaded.
func detectSources(ctx context.Context, cfg config.Config, opts detectOptions, log *zap.Logger, out io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	detector, err := buildDetector(cfg, log)
	if err != nil {
		return err
	}
	scanner, err := scan.New(detector, scan.WithOptions(cfg.ScanOptions()), scan.WithLogger(log))
	if err != nil {
		return err
	}
	loader := fetch.NewLoader(
		fetch.WithBrowserFallback(cfg.UseBrowser),
		fetch.WithBrowserTimeout(cfg.BrowserTimeoutDuration()),
		fetch.WithLogger(log),
	)

	type source struct {
		value  string
		isFile bool
	}
	sources := make([]source, 0, len(opts.URLs)+len(opts.Files))
	for _, u := range opts.URLs {
		sources = append(sources, source{value: u})
	}
	for _, f := range opts.Files {
		sources = append(sources, source{value: f, isFile: true})
	}

	results := make([]detectOutput, len(sources))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(cfg.Concurrency, 1))

	for i, src := range sources {
		g.Go(func() error {
			res := detectOutput{Source: src.value}
			defer func() { results[i] = res }()

			var page *dom.Page
			var err error
			if src.isFile {
				page, err = loader.LoadFile(src.value, "")
			} else {
				page, err = loader.Load(gctx, src.value)
			}
			if err != nil {
				res.Error = err.Error()
				return nil
			}
			if opts.Host != "" {
				page = page.WithHostname(opts.Host)
			}

			if !opts.Accept {
				res.Candidate = scanner.Detect(gctx, page)
				res.Found = res.Candidate != nil
				return nil
			}
			scanned, err := scanner.Scan(gctx, page, src.value)
			if err != nil {
				res.Error = err.Error()
				return nil
			}
			res.Status, res.Reason = scanned.Status, scanned.Reason
			res.Candidate = scanned.Candidate
			res.Found = scanned.Status == scan.StatusAccepted
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	if err := writeResults(out, results, opts.JSON, cfg.Verbose); err != nil {
		return err
	}

	failed := 0
	for _, r := range results {
		if r.Error != "" {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d sources could not be processed", failed, len(results))
	}
	return nil
}

//nolint:errcheck // writing to stdout; errors are not recoverable
func writeResults(out io.Writer, results []detectOutput, asJSON, verbose bool) error {
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}

	printer := observability.NewPrinter(out)
	for _, r := range results {
		switch {
		case r.Error != "":
			fmt.Fprintf(out, "%s: error: %s\n", r.Source, r.Error)
		case verbose && r.Candidate != nil:
			printer.PrintCandidate(r.Source, r.Candidate)
			if !r.Found {
				fmt.Fprintf(out, "%s: rejected: %s\n", r.Source, r.Reason)
			}
		case r.Found:
			in := scan.ManualInputFrom(r.Candidate)
			fmt.Fprintf(out, "%s: %s at %s (%s, confidence %d)\n",
				r.Source, in.Title, in.Company, r.Candidate.Method, r.Candidate.Confidence)
		case r.Status != "" && r.Status != scan.StatusNotFound:
			fmt.Fprintf(out, "%s: no job detected (%s: %s)\n", r.Source, r.Status, r.Reason)
		default:
			fmt.Fprintf(out, "%s: no job detected\n", r.Source)
		}
	}
	return nil
}
