// Package config handles configuration loading and management for emberfuzz.
package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the global configuration for a fuzzing run.
type Config struct {
	Target     TargetConfig     `yaml:"target"`
	Engine     EngineConfig     `yaml:"engine"`
	Feedback   FeedbackConfig   `yaml:"feedback"`
	State      StateConfig      `yaml:"state"`
	Supervisor SupervisorConfig `yaml:"supervisor"`
	Output     OutputConfig     `yaml:"output"`
}

// TargetConfig describes the HTTP target a NetworkExecutor fuzzes.
type TargetConfig struct {
	URL       string            `yaml:"url"`
	Method    string            `yaml:"method"`
	Headers   map[string]string `yaml:"headers"`
	SeedsDir  string            `yaml:"seeds_dir"`
	Wordlists []string          `yaml:"wordlists"`

	// DiffURL, if set, names a second backend expected to behave
	// identically to URL. When present, each client runs a DiffExecutor
	// against both instead of a single NetworkExecutor, reporting
	// ExitKind::Diff on any status/body mismatch.
	DiffURL string `yaml:"diff_url"`
}

// EngineConfig configures the executor's request pacing.
type EngineConfig struct {
	RPS             int           `yaml:"rps"`
	RateBurst       int           `yaml:"rate_burst"`
	Timeout         time.Duration `yaml:"timeout"`
	MaxConnsPerHost int           `yaml:"max_conns_per_host"`
}

// FeedbackConfig tunes the novelty feedback's coverage map size and the
// optional time feedback. It has no setting for the structural-similarity
// feedback leaf.
type FeedbackConfig struct {
	BitmapSize         int     `yaml:"bitmap_size"`
	EnableTimeFeedback bool    `yaml:"enable_time_feedback"`
	TimeThreshold      float64 `yaml:"time_threshold"`
}

// StateConfig configures corpus/solutions persistence and the rng seed.
type StateConfig struct {
	Seed         int64  `yaml:"seed"`
	CorpusDir    string `yaml:"corpus_dir"`
	SolutionsDir string `yaml:"solutions_dir"`

	// StateFile, if set, is the path a client's whole fuzzstate.State
	// (corpora, feedback states, rng seed, execution counter) is written to
	// as one YAML stream on shutdown, and read back from on startup if it
	// already exists. Empty disables snapshotting entirely.
	StateFile string `yaml:"state_file"`
}

// SupervisorConfig configures the multi-client worker pool.
type SupervisorConfig struct {
	Clients int `yaml:"clients"`
}

// OutputConfig configures how progress and findings are reported.
type OutputConfig struct {
	Web       bool   `yaml:"web"`
	WebPort   string `yaml:"web_port"`
	Verbose   bool   `yaml:"verbose"`
	ReportDir string `yaml:"report_dir"`
	// ReportFormats selects which report.Generator names to run over the
	// solutions corpus once the run ends; empty disables report writing.
	ReportFormats []string `yaml:"report_formats"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Target: TargetConfig{
			Method: "POST",
			Headers: map[string]string{
				"User-Agent": "emberfuzz/1.0",
			},
		},
		Engine: EngineConfig{
			RPS:             100,
			RateBurst:       1,
			Timeout:         10 * time.Second,
			MaxConnsPerHost: 64,
		},
		Feedback: FeedbackConfig{
			BitmapSize:         65536,
			EnableTimeFeedback: false,
			TimeThreshold:      2.5,
		},
		State: StateConfig{
			Seed:         1,
			CorpusDir:    "corpus",
			SolutionsDir: "solutions",
		},
		Supervisor: SupervisorConfig{
			Clients: 1,
		},
		Output: OutputConfig{
			Web:     false,
			WebPort: ":9090",
		},
		// ReportDir/ReportFormats are left empty: a user must opt into
		// report writing rather than having files appear under a default
		// directory.
	}
}

// Load reads and parses a YAML config file, filling in defaults for
// anything the file leaves zero-valued.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
