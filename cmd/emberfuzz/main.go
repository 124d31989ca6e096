// emberfuzz - coverage-guided, state-aware fuzzer for web targets
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/emberfuzz/emberfuzz/internal/config"
	"github.com/emberfuzz/emberfuzz/internal/fuzz/corpus"
	"github.com/emberfuzz/emberfuzz/internal/fuzz/event"
	"github.com/emberfuzz/emberfuzz/internal/fuzz/executor"
	"github.com/emberfuzz/emberfuzz/internal/fuzz/feedback"
	"github.com/emberfuzz/emberfuzz/internal/fuzz/fuzzer"
	"github.com/emberfuzz/emberfuzz/internal/fuzz/fuzzstate"
	"github.com/emberfuzz/emberfuzz/internal/fuzz/input"
	"github.com/emberfuzz/emberfuzz/internal/fuzz/mutator"
	"github.com/emberfuzz/emberfuzz/internal/fuzz/observer"
	"github.com/emberfuzz/emberfuzz/internal/fuzz/stage"
	"github.com/emberfuzz/emberfuzz/internal/fuzz/supervisor"
	"github.com/emberfuzz/emberfuzz/internal/owasp"
	"github.com/emberfuzz/emberfuzz/internal/report"
)

var (
	version = "0.1.0-dev"

	targetURL  string
	configFile string
	clients    int
	rps        int
	timeout    int
	webMode    bool
	webPort    string
	verbose    bool
	stateFile  string
	diffURL    string
	reportDir  string
	reportFmts []string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "emberfuzz",
		Short: "emberfuzz - coverage-guided, state-aware fuzzer for web targets",
		Long: `emberfuzz drives mutated HTTP requests at a target, tracking
branch coverage and comparison operands to steer mutation toward new program
behavior, and triages any 5xx responses against an OWASP-style pattern table
before reporting them as solutions.`,
		RunE: runFuzzer,
	}

	rootCmd.Flags().StringVarP(&targetURL, "url", "u", "", "Target URL to fuzz")
	rootCmd.Flags().StringVarP(&configFile, "config", "c", "", "Path to config file (YAML)")
	rootCmd.Flags().IntVar(&clients, "clients", 1, "Number of concurrent fuzzing clients")
	rootCmd.Flags().IntVarP(&rps, "rate", "r", 100, "Requests per second limit, per client")
	rootCmd.Flags().IntVar(&timeout, "timeout", 10, "Request timeout in seconds")
	rootCmd.Flags().BoolVar(&webMode, "web", false, "Serve the dashboard over HTTP instead of the terminal UI")
	rootCmd.Flags().StringVar(&webPort, "port", ":9090", "Web dashboard bind address")
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.Flags().StringVar(&stateFile, "state-file", "", "Path to save/resume a client's fuzzstate.State snapshot (YAML)")
	rootCmd.Flags().StringVar(&diffURL, "diff-url", "", "Second backend URL; when set, fuzz differentially against --url and --diff-url")
	rootCmd.Flags().StringVar(&reportDir, "report-dir", "", "Directory to write a report.Report into once the run ends; empty skips reporting")
	rootCmd.Flags().StringSliceVar(&reportFmts, "report-format", []string{"json"}, "Report formats to generate under --report-dir (json, html, markdown)")

	rootCmd.AddCommand(versionCmd(), scanCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("emberfuzz version %s\n", version)
		},
	}
}

// scanCmd runs a one-shot OWASP-style pattern scan against a target,
// independent of the fuzzing loop — useful for quickly triaging a target
// before committing to a long fuzzing run.
func scanCmd() *cobra.Command {
	var scanURL string
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Run a one-shot OWASP-pattern scan against a target",
		RunE: func(cmd *cobra.Command, args []string) error {
			if scanURL == "" {
				return fmt.Errorf("scan requires --url")
			}
			u, err := url.Parse(scanURL)
			if err != nil {
				return fmt.Errorf("invalid URL: %w", err)
			}
			params := make(map[string]string)
			for k, v := range u.Query() {
				if len(v) > 0 {
					params[k] = v[0]
				}
			}

			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			req, err := http.NewRequestWithContext(ctx, http.MethodGet, scanURL, nil)
			if err != nil {
				return fmt.Errorf("building request: %w", err)
			}
			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				return fmt.Errorf("fetching %s: %w", scanURL, err)
			}
			defer resp.Body.Close()
			body, err := io.ReadAll(resp.Body)
			if err != nil {
				return fmt.Errorf("reading response body: %w", err)
			}

			headers := make(map[string]string, len(resp.Header))
			for k := range resp.Header {
				headers[k] = resp.Header.Get(k)
			}

			detector := owasp.NewDetector(nil)
			findings, err := detector.Scan(ctx, &owasp.Target{
				URL:        scanURL,
				Method:     "GET",
				Parameters: params,
				Body:       body,
			})
			if err != nil {
				return err
			}

			fmt.Printf("scan complete: %d findings\n", len(findings))
			for _, f := range findings {
				fmt.Printf("  [%s] %s: %s\n", f.Severity, f.Type, f.Description)
			}

			for _, hf := range owasp.NewHeaderAnalyzer().AnalyzeHeaders(headers) {
				fmt.Printf("  [%s] header %s: %s\n", hf.Severity, hf.Header, hf.Issue)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&scanURL, "url", "u", "", "Target URL to scan")
	return cmd
}

func runFuzzer(cmd *cobra.Command, args []string) error {
	cfg := config.Default()
	if configFile != "" {
		loaded, err := config.Load(configFile)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		cfg = loaded
	}
	if targetURL != "" {
		cfg.Target.URL = targetURL
	}
	if rps > 0 {
		cfg.Engine.RPS = rps
	}
	if timeout > 0 {
		cfg.Engine.Timeout = time.Duration(timeout) * time.Second
	}
	if webMode {
		cfg.Output.Web = true
	}
	if webPort != "" {
		cfg.Output.WebPort = webPort
	}
	if clients > 0 {
		cfg.Supervisor.Clients = clients
	}
	if stateFile != "" {
		cfg.State.StateFile = stateFile
	}
	if diffURL != "" {
		cfg.Target.DiffURL = diffURL
	}
	if reportDir != "" {
		cfg.Output.ReportDir = reportDir
		cfg.Output.ReportFormats = reportFmts
	}

	if cfg.Target.URL == "" {
		fmt.Println("no target specified; use --url or --config")
		fmt.Println()
		fmt.Println("  emberfuzz -u http://target.example/submit")
		return nil
	}

	if verbose {
		fmt.Printf("target: %s\n", cfg.Target.URL)
		fmt.Printf("clients: %d, rate: %d rps, timeout: %s\n", cfg.Supervisor.Clients, cfg.Engine.RPS, cfg.Engine.Timeout)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Println("shutting down...")
		cancel()
	}()

	sup, err := supervisor.New(cfg.Supervisor.Clients)
	if err != nil {
		return fmt.Errorf("building supervisor: %w", err)
	}

	var webMgr *event.WebEventManager
	if cfg.Output.Web {
		webMgr = event.NewWebEventManager()
		go func() {
			if err := webMgr.Start(cfg.Output.WebPort); err != nil {
				fmt.Fprintf(os.Stderr, "dashboard server: %v\n", err)
			}
		}()
		fmt.Printf("dashboard listening on %s\n", cfg.Output.WebPort)
	}

	var tui *event.SimpleEventManager
	var builtClients []*supervisor.Client
	var statePaths []string
	for i := 0; i < cfg.Supervisor.Clients; i++ {
		client, err := buildClient(cfg, i, webMgr)
		if err != nil {
			return fmt.Errorf("building client %d: %w", i, err)
		}
		if webMgr == nil {
			if m, ok := client.Events.(*event.SimpleEventManager); ok && tui == nil {
				tui = m
			}
		}
		builtClients = append(builtClients, client)
		statePaths = append(statePaths, corpusSubdir(cfg.State.StateFile, i))
		if err := sup.Spawn(ctx, client); err != nil {
			return fmt.Errorf("spawning client %d: %w", i, err)
		}
	}

	// Without --web, only the first client's SimpleEventManager is rendered
	// as a terminal dashboard; it shows that client's events alone, and the
	// other clients' managers are not displayed.
	if tui != nil {
		go func() { _ = event.Run(tui) }()
	}

	sup.Wait()
	if webMgr != nil {
		_ = webMgr.Stop()
	}

	for i, client := range builtClients {
		path := statePaths[i]
		if path == "" {
			continue
		}
		if err := saveState(client.Fuzzer.State(), path); err != nil {
			fmt.Fprintf(os.Stderr, "saving state for %s: %v\n", client.Name, err)
		}
	}

	agg := sup.Aggregate()
	fmt.Printf("done: %d executions, %d corpus entries, %d solutions, %d crashes\n",
		agg.Executions, agg.CorpusSize, agg.SolutionCount, agg.CrashCount)

	if cfg.Output.ReportDir != "" {
		paths, err := writeReports(cfg, builtClients, agg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "writing report: %v\n", err)
		} else {
			for _, p := range paths {
				fmt.Printf("report written: %s\n", p)
			}
		}
	}
	return nil
}

// writeReports merges every client's solutions corpus into one report.Report
// — identified by its own report.Report.RunID, independent of any per-client
// fuzzstate.State — and renders it in every configured format.
func writeReports(cfg *config.Config, clients []*supervisor.Client, agg event.Stats) ([]string, error) {
	r := report.NewReport("emberfuzz run", cfg.Target.URL)
	r.SetStatistics(report.Statistics{
		Executions:    agg.Executions,
		CorpusSize:    agg.CorpusSize,
		SolutionCount: agg.SolutionCount,
		CrashCount:    agg.CrashCount,
		Duration:      time.Since(agg.StartTime),
		ExecsPerSec:   agg.ExecsPerSec(),
	})

	for _, c := range clients {
		per := report.FromSolutions(r.Title, r.TargetURL, c.Fuzzer.State().Solutions, agg)
		for _, f := range per.Findings {
			r.AddFinding(f)
		}
	}

	mgr := report.NewManager(cfg.Output.ReportDir)
	var paths []string
	for _, format := range cfg.Output.ReportFormats {
		path, err := mgr.Generate(r, format)
		if err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

// buildClient assembles one independent fuzzing client: its own State,
// NetworkExecutor against the configured target, two novelty-driven
// mutational stages (havoc, then payload splicing), and an event manager. webMgr is shared across clients
// when dashboard mode is on; otherwise each client gets its own terminal
// dashboard (only sensible for --clients 1).
func buildClient(cfg *config.Config, index int, webMgr *event.WebEventManager) (*supervisor.Client, error) {
	state := fuzzstate.New(cfg.State.Seed+int64(index), corpusSubdir(cfg.State.CorpusDir, index), corpusSubdir(cfg.State.SolutionsDir, index))
	seedCorpus(state, cfg)

	mapObs := observer.NewMapObserver("map", cfg.Feedback.BitmapSize)
	respObs := observer.NewResponseObserver("response")
	obsSet := observer.NewSet(mapObs, respObs)

	netCfg := executor.NetworkExecutorConfig{
		URL:             cfg.Target.URL,
		Method:          cfg.Target.Method,
		Timeout:         cfg.Engine.Timeout,
		RateLimit:       rate.Limit(cfg.Engine.RPS),
		RateBurst:       cfg.Engine.RateBurst,
		MaxConnsPerHost: cfg.Engine.MaxConnsPerHost,
	}
	var exec executor.Executor = executor.NewNetworkExecutor(fmt.Sprintf("client-%d", index), netCfg, obsSet)
	if cfg.Target.DiffURL != "" {
		secondaryCfg := netCfg
		secondaryCfg.URL = cfg.Target.DiffURL
		secondary := executor.NewNetworkExecutor(fmt.Sprintf("client-%d-diff", index), secondaryCfg, observer.NewSet())
		primary := exec.(*executor.NetworkExecutor)
		exec = executor.NewDiffExecutor(fmt.Sprintf("client-%d", index), primary, secondary)
	}

	// NetworkExecutor never writes to the MapObserver's bitmap — there is no
	// instrumented binary to report edges from a remote HTTP target — so
	// MapFeedback alone would never mark anything past the seed interesting.
	// SimilarityFeedback gives this executor its own novelty signal from the
	// one thing it does produce: the response body.
	mapFeedback := feedback.NewMapFeedback("map_feedback", "map", feedback.ReduceMax)
	simFeedback := feedback.NewSimilarityFeedback("similarity_feedback", "response", 16)
	mainFeedback := feedback.EagerOr(mapFeedback, simFeedback)

	// DiffFeedback only ever fires when exec is a DiffExecutor (a plain
	// NetworkExecutor never produces ExitKind::Diff), so folding it into
	// every client's objective is harmless when --diff-url is unset.
	objective := feedback.FastOr(feedback.CrashFeedback{}, feedback.FastOr(feedback.TimeoutFeedback{}, feedback.DiffFeedback{}))

	// Registering both feedbacks' states into the Store is what makes
	// State.Serialize/Deserialize round-trip the novelty mask and retained
	// SimHash set, not just the corpora. This must happen before loadState,
	// since Deserialize only restores data for names already registered.
	state.Store().Put(mapFeedback.State())
	state.Store().Put(simFeedback.State())

	if statePath := corpusSubdir(cfg.State.StateFile, index); statePath != "" {
		if err := loadState(state, statePath); err != nil {
			return nil, fmt.Errorf("loading state file %s: %w", statePath, err)
		}
	}

	// Two independent mutational stages run each round: havoc for general
	// bit/byte-level exploration, then a payload-splice pass that gives the
	// client a direct route toward the response patterns triage.Classify
	// looks for, rather than waiting for havoc to stumble onto them by chance.
	havocStage := stage.NewMutationalStage(mutator.NewHavocMutator())
	payloadStage := stage.NewMutationalStage(mutator.NewPayloadMutator())

	f := fuzzer.New(state, corpus.NewWeightedScheduler(), []stage.Stage{havocStage, payloadStage}, mainFeedback, objective).
		WithResponseObserver("response")

	var mgr fuzzer.EventManager
	switch {
	case webMgr != nil:
		mgr = webMgr
	default:
		mgr = event.NewSimpleEventManager()
	}

	return &supervisor.Client{
		Name:   fmt.Sprintf("client-%d", index),
		Fuzzer: f,
		Exec:   exec,
		Events: mgr,
	}, nil
}

// seedCorpus restores a persisted queue if one exists on disk, falling back
// to a single minimal seed when the corpus (persisted or in-memory) comes up
// empty — the scheduler requires at least one entry to ever pick.
func seedCorpus(state *fuzzstate.State, cfg *config.Config) {
	_ = state.Corpus.Load()
	if state.Corpus.Count() > 0 {
		return
	}

	seed := []byte("id=1&name=seed")
	if len(cfg.Target.Wordlists) > 0 {
		if data, err := os.ReadFile(cfg.Target.Wordlists[0]); err == nil && len(data) > 0 {
			seed = data
		}
	}
	idx := state.Corpus.Add(corpus.NewTestcase(input.NewBytes(seed)))
	_ = state.Corpus.Save(idx)
}

// loadState restores state from path's YAML stream if it already exists; a
// missing file is not an error, since the first run of a given state_file
// has nothing to resume from yet.
func loadState(state *fuzzstate.State, path string) error {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	defer f.Close()
	return state.Deserialize(f)
}

// saveState writes state's whole snapshot (rng seed, execution counter,
// feedback states, both corpora) to path as one YAML stream, so a later run
// against the same state_file can pick the fuzzing session back up.
func saveState(state *fuzzstate.State, path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return state.Serialize(f)
}

func corpusSubdir(base string, index int) string {
	if base == "" {
		return ""
	}
	if index == 0 {
		return base
	}
	return fmt.Sprintf("%s-%d", base, index)
}
