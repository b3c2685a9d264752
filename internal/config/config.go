package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"apiscribe/internal/types"
)

// DefaultPath is the config file looked up in the working directory.
const DefaultPath = ".apiscribe.yaml"

// Config holds all apiscribe configuration.
type Config struct {
	// Generation backend
	LLM LLMConfig `yaml:"llm"`

	// Source analysis
	Analyzer AnalyzerConfig `yaml:"analyzer"`

	// Request composition and the delimiter contract
	Prompt PromptConfig `yaml:"prompt"`

	// Artifact destinations
	Output OutputConfig `yaml:"output"`

	// Test execution
	Verify VerifyConfig `yaml:"verify"`

	Logging LoggingConfig `yaml:"logging"`
	History HistoryConfig `yaml:"history"`
	Watch   WatchConfig   `yaml:"watch"`
	Batch   BatchConfig   `yaml:"batch"`
}

// AnalyzerConfig configures route and schema discovery.
type AnalyzerConfig struct {
	AppIdentifiers []string `yaml:"app_identifiers" validate:"min=1,dive,required"`
	SchemaBase     string   `yaml:"schema_base" validate:"required"`

	// Strict fails the run when no endpoints are found.
	Strict bool `yaml:"strict"`
}

// PromptConfig configures the request composer.
type PromptConfig struct {
	// Optional template overrides; empty uses the embedded templates.
	SystemTemplate  string `yaml:"system_template"`
	RequestTemplate string `yaml:"request_template"`

	Delimiters types.Delimiters `yaml:"delimiters"`
}

// OutputConfig configures where artifacts are written.
type OutputConfig struct {
	TestPath string `yaml:"test_path" validate:"required"`
	DocsPath string `yaml:"docs_path" validate:"required"`

	// Batch runs derive per-file names inside these directories.
	TestsDir string `yaml:"tests_dir" validate:"required"`
	DocsDir  string `yaml:"docs_dir" validate:"required"`

	StripCodeFences bool `yaml:"strip_code_fences"`
}

// VerifyConfig configures the test engine invocation.
type VerifyConfig struct {
	Skip           bool     `yaml:"skip"`
	Command        []string `yaml:"command" validate:"min=1,dive,required"`
	WorkingDir     string   `yaml:"working_dir"`
	Timeout        string   `yaml:"timeout" validate:"duration"`
	MaxOutputBytes int      `yaml:"max_output_bytes" validate:"gt=0"`
	AllowedEnvVars []string `yaml:"allowed_env_vars"`
}

// HistoryConfig configures the run ledger.
type HistoryConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path" validate:"required_if=Enabled true"`
}

// WatchConfig configures watch mode.
type WatchConfig struct {
	Debounce string `yaml:"debounce" validate:"duration"`
}

// BatchConfig configures multi-file runs.
type BatchConfig struct {
	Concurrency int `yaml:"concurrency" validate:"gt=0"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		LLM: LLMConfig{
			Provider:        ProviderOpenAI,
			Timeout:         "120s",
			Temperature:     0.1,
			MaxOutputTokens: 4096,
		},

		Analyzer: AnalyzerConfig{
			AppIdentifiers: []string{"app"},
			SchemaBase:     "BaseModel",
		},

		Prompt: PromptConfig{
			Delimiters: types.DefaultDelimiters(),
		},

		Output: OutputConfig{
			TestPath: filepath.Join("tests", "test_generated.py"),
			DocsPath: filepath.Join("docs", "api.md"),
			TestsDir: "tests",
			DocsDir:  "docs",
		},

		Verify: VerifyConfig{
			Command:        []string{"python", "-m", "pytest", "-q", "{test}"},
			Timeout:        "300s",
			MaxOutputBytes: 1 << 20,
			AllowedEnvVars: []string{
				"PATH", "HOME", "VIRTUAL_ENV", "PYTHONPATH",
				"LANG", "LC_ALL", "TMPDIR", "USER",
			},
		},

		Logging: LoggingConfig{
			Level:  "warn",
			Format: "console",
		},

		History: HistoryConfig{
			Enabled: true,
			Path:    filepath.Join(".apiscribe", "history.db"),
		},

		Watch: WatchConfig{
			Debounce: "500ms",
		},

		Batch: BatchConfig{
			Concurrency: 4,
		},
	}
}

// LoadDotEnv loads variables from a .env file without overwriting ones
// already set. A missing file is not an error.
func LoadDotEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	case os.IsNotExist(err):
		// Defaults if config file doesn't exist
	default:
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	// Override with environment variables
	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
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

// envOverrides lists the variables that may override the file.
// Empty values leave the file setting untouched.
type envOverrides struct {
	Provider    string `env:"APISCRIBE_PROVIDER"`
	Model       string `env:"APISCRIBE_MODEL"`
	BaseURL     string `env:"APISCRIBE_BASE_URL"`
	Timeout     string `env:"APISCRIBE_TIMEOUT"`
	LogLevel    string `env:"APISCRIBE_LOG_LEVEL"`
	HistoryPath string `env:"APISCRIBE_HISTORY_PATH"`
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() error {
	var o envOverrides
	if err := env.Parse(&o); err != nil {
		return fmt.Errorf("failed to parse environment: %w", err)
	}

	if o.Provider != "" {
		c.LLM.Provider = strings.ToLower(o.Provider)
	}
	if o.Model != "" {
		c.LLM.Model = o.Model
	}
	if o.BaseURL != "" {
		c.LLM.BaseURL = o.BaseURL
	}
	if o.Timeout != "" {
		c.LLM.Timeout = o.Timeout
	}
	if o.LogLevel != "" {
		c.Logging.Level = o.LogLevel
	}
	if o.HistoryPath != "" {
		c.History.Path = o.HistoryPath
	}
	return nil
}

// GetLLMTimeout returns the generation timeout as a duration.
func (c *Config) GetLLMTimeout() time.Duration {
	return parseDuration(c.LLM.Timeout, 120*time.Second)
}

// GetVerifyTimeout returns the test engine timeout as a duration.
func (c *Config) GetVerifyTimeout() time.Duration {
	return parseDuration(c.Verify.Timeout, 300*time.Second)
}

// GetWatchDebounce returns the watch debounce interval.
func (c *Config) GetWatchDebounce() time.Duration {
	return parseDuration(c.Watch.Debounce, 500*time.Millisecond)
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("duration", func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		if s == "" {
			return true
		}
		d, err := time.ParseDuration(s)
		return err == nil && d > 0
	})
	return v
}

// Validate validates the configuration.
// Credentials are not checked here; they are resolved separately.
func (c *Config) Validate() error {
	if !slices.Contains(ValidProviders, c.LLM.Provider) {
		return fmt.Errorf("invalid config: llm.provider %q is not one of %s",
			c.LLM.Provider, strings.Join(ValidProviders, ", "))
	}
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s: failed %q", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}

	if err := c.Prompt.Delimiters.Validate(); err != nil {
		return fmt.Errorf("invalid config: prompt.delimiters: %w", err)
	}

	if c.LLM.Provider == ProviderReplay && c.LLM.ReplayFile == "" {
		return fmt.Errorf("invalid config: llm.replay_file is required for the replay provider")
	}

	return nil
}
