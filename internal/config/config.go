package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"permutex/internal/permute"
	"permutex/internal/tokens"
	"permutex/internal/types"
)

// Config holds a complete Permutex run configuration.
type Config struct {
	// Seed tokens: category label -> values
	Tokens map[string][]string `yaml:"tokens"`

	// Candidate spaces
	Atoms    AtomsConfig    `yaml:"atoms"`
	Mutation MutationConfig `yaml:"mutation"`
	Combine  CombineConfig  `yaml:"combine"`
	Atomic   AtomicConfig   `yaml:"atomic"`

	// Execution
	Profile ProfileConfig `yaml:"profile"`
	Dedup   DedupConfig   `yaml:"dedup"`
	Output  OutputConfig  `yaml:"output"`
	Run     RunConfig     `yaml:"run"`

	// Observability
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// OutputConfig configures where a run writes.
type OutputConfig struct {
	Path         string `yaml:"path"`     // final merged wordlist
	WorkDir      string `yaml:"work_dir"` // manifest, shard files, dedup.db
	KeepManifest bool   `yaml:"keep_manifest"`
	KeepShards   bool   `yaml:"keep_shards"`
}

// RunConfig configures one invocation.
type RunConfig struct {
	Budget  string `yaml:"budget"` // wall-clock limit, e.g. "30m"; empty means none
	NoMerge bool   `yaml:"no_merge"`
}

// MetricsConfig configures the Prometheus textfile export.
type MetricsConfig struct {
	Textfile string `yaml:"textfile"` // empty disables the export
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Tokens: map[string][]string{},
		Atoms: AtomsConfig{
			Substrings:   false,
			MinSubstring: tokens.DefaultMinSubstring,
			Dates:        true,
		},
		Mutation: DefaultMutationConfig(),
		Combine: CombineConfig{
			Enabled: true,
		},
		Atomic: AtomicConfig{
			Enabled:   false,
			Derive:    true,
			MinLength: 1,
			MaxLength: 4,
		},
		Profile: ProfileConfig{
			Kind: "balanced",
		},
		Dedup: DedupConfig{
			Mode: "off",
		},
		Output: OutputConfig{
			Path:    "wordlist.txt",
			WorkDir: ".permutex",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load loads configuration from a YAML file. A missing file yields the
// defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()

	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("PERMUTEX_PROFILE"); v != "" {
		c.Profile.Kind = v
	}
	if v := os.Getenv("PERMUTEX_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Profile.Workers = n
		}
	}
	if v := os.Getenv("PERMUTEX_WORK_DIR"); v != "" {
		c.Output.WorkDir = v
	}
	if v := os.Getenv("PERMUTEX_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("PERMUTEX_OUTPUT"); v != "" {
		c.Output.Path = v
	}
}

// TokenSet returns the normalized seed tokens.
func (c *Config) TokenSet() types.TokenSet {
	return tokens.Normalize(types.TokenSet(c.Tokens))
}

// GetBudget returns the run budget as a duration; zero means unlimited.
func (c *Config) GetBudget() time.Duration {
	if c.Run.Budget == "" {
		return 0
	}
	d, err := time.ParseDuration(c.Run.Budget)
	if err != nil || d < 0 {
		return 0
	}
	return d
}

// Validate checks the configuration before planning. Every failure is a
// *types.ConfigurationError.
func (c *Config) Validate() error {
	if err := c.Logging.Validate(); err != nil {
		return err
	}
	if c.Output.Path == "" {
		return types.NewConfigurationError("output.path", "must not be empty")
	}
	if c.Output.WorkDir == "" {
		return types.NewConfigurationError("output.work_dir", "must not be empty")
	}
	if c.Run.Budget != "" {
		d, err := time.ParseDuration(c.Run.Budget)
		if err != nil {
			return &types.ConfigurationError{Field: "run.budget", Reason: fmt.Sprintf("invalid duration %q", c.Run.Budget), Err: err}
		}
		if d < 0 {
			return types.NewConfigurationError("run.budget", "must not be negative")
		}
	}
	if _, err := c.DedupMode(); err != nil {
		return err
	}
	if _, err := c.ResolveProfile(runtime.NumCPU()); err != nil {
		return err
	}
	if _, err := c.MutationSpec(); err != nil {
		return err
	}
	if _, err := c.CombineSpec(); err != nil {
		return err
	}

	ts := c.TokenSet()
	if len(ts) == 0 && !c.Atomic.Enabled {
		return types.NewConfigurationError("tokens", "no tokens given and atomic mode disabled; nothing to generate")
	}
	if c.Atomic.Enabled {
		spec, err := c.AlphabetSpec(ts)
		if err != nil {
			return err
		}
		if _, err := permute.New(spec); err != nil {
			return err
		}
	}
	return nil
}
