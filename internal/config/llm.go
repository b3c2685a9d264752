package config

// Supported generation providers.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderGemini    = "gemini"
	ProviderReplay    = "replay"
)

// ValidProviders lists all supported generation providers.
var ValidProviders = []string{ProviderOpenAI, ProviderAnthropic, ProviderGemini, ProviderReplay}

// DefaultModels maps each networked provider to the model used when none is set.
var DefaultModels = map[string]string{
	ProviderOpenAI:    "gpt-4o",
	ProviderAnthropic: "claude-sonnet-4-20250514",
	ProviderGemini:    "gemini-2.5-flash",
}

// LLMConfig configures the generation backend.
type LLMConfig struct {
	Provider string `yaml:"provider" validate:"oneof=openai anthropic gemini replay"`
	Model    string `yaml:"model"`
	BaseURL  string `yaml:"base_url" validate:"omitempty,url"`
	Timeout  string `yaml:"timeout" validate:"duration"`

	// APIKey is an explicit credential. Prefer the environment or the keyring.
	APIKey string `yaml:"api_key,omitempty"`

	Temperature     float64 `yaml:"temperature" validate:"gte=0,lte=2"`
	MaxOutputTokens int     `yaml:"max_output_tokens" validate:"gt=0"`

	// ReplayFile is the recorded response used by the replay provider.
	ReplayFile string `yaml:"replay_file"`
}

// ResolvedModel returns the configured model or the provider default.
func (c LLMConfig) ResolvedModel() string {
	if c.Model != "" {
		return c.Model
	}
	return DefaultModels[c.Provider]
}
