package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// DefaultInstruction is the developer instruction prepended to every transcript.
const DefaultInstruction = "You are a helpful assistant that can answer questions and help with tasks. You must respond in markdown format."

type Config struct {
	Port string `koanf:"port"`

	// Upstream language model
	Provider        string  `koanf:"llm_provider"`
	Model           string  `koanf:"llm_model"`
	BaseURL         string  `koanf:"llm_base_url"`
	Temperature     float64 `koanf:"llm_temperature"`
	MaxTokens       int     `koanf:"llm_max_tokens"`
	Instruction     string  `koanf:"llm_instruction"`
	OpenAIAPIKey    string  `koanf:"openai_api_key"`
	AnthropicAPIKey string  `koanf:"anthropic_api_key"`

	UpstreamTimeout time.Duration `koanf:"upstream_timeout"`

	// Auth and CORS
	AccessToken    string   `koanf:"access_token"`
	AllowedOrigins []string `koanf:"allowed_origins"`

	// Upload limits
	MaxUploadBytes int64 `koanf:"max_upload_bytes"`

	// Workspace sessions
	SessionTTL time.Duration `koanf:"session_ttl"`
	PageWidth  int           `koanf:"page_width"`
}

// envKeys maps environment variable names to config keys. Anything not
// listed here is ignored.
var envKeys = map[string]string{
	"PORT":                 "port",
	"LLM_PROVIDER":         "llm_provider",
	"LLM_MODEL":            "llm_model",
	"LLM_BASE_URL":         "llm_base_url",
	"LLM_TEMPERATURE":      "llm_temperature",
	"LLM_MAX_TOKENS":       "llm_max_tokens",
	"LLM_INSTRUCTION":      "llm_instruction",
	"OPENAI_API_KEY":       "openai_api_key",
	"ANTHROPIC_API_KEY":    "anthropic_api_key",
	"UPSTREAM_TIMEOUT":     "upstream_timeout",
	"PDFCHAT_ACCESS_TOKEN": "access_token",
	"ALLOWED_ORIGINS":      "allowed_origins",
	"MAX_UPLOAD_BYTES":     "max_upload_bytes",
	"SESSION_TTL":          "session_ttl",
	"PAGE_WIDTH":           "page_width",
}

// Default returns the configuration used when nothing overrides it.
func Default() Config {
	return Config{
		Port:            "8090",
		Provider:        "openai",
		Model:           "gpt-4.1-nano",
		Temperature:     0.7,
		MaxTokens:       4096,
		Instruction:     DefaultInstruction,
		UpstreamTimeout: 5 * time.Minute,
		AllowedOrigins:  []string{"http://localhost:*", "http://127.0.0.1:*"},
		MaxUploadBytes:  52428800, // 50MB
		SessionTTL:      2 * time.Hour,
		PageWidth:       600,
	}
}

// Load reads the optional YAML file at path, then overlays environment
// variables. A missing file is not an error.
func Load(path string) (Config, error) {
	k := koanf.New(".")
	cfg := Default()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
				return cfg, fmt.Errorf("reading config %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return cfg, fmt.Errorf("accessing config %s: %w", path, err)
		}
	}

	if err := k.Load(env.ProviderWithValue("", ".", func(name, value string) (string, any) {
		key := envKeys[name]
		if key == "allowed_origins" {
			return key, splitList(value)
		}
		return key, value
	}), nil); err != nil {
		return cfg, fmt.Errorf("loading env overrides: %w", err)
	}

	if err := k.Unmarshal("", &cfg); err != nil {
		return cfg, fmt.Errorf("unmarshalling config: %w", err)
	}

	cfg.applyDefaults()
	return cfg, nil
}

func splitList(s string) []string {
	var out []string
	for _, v := range strings.Split(s, ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func (c *Config) applyDefaults() {
	d := Default()
	c.Provider = strings.ToLower(strings.TrimSpace(c.Provider))
	if c.Provider == "" {
		c.Provider = d.Provider
	}
	if c.Port == "" {
		c.Port = d.Port
	}
	if c.Model == "" {
		c.Model = d.Model
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = d.MaxTokens
	}
	if strings.TrimSpace(c.Instruction) == "" {
		c.Instruction = d.Instruction
	}
	if c.UpstreamTimeout <= 0 {
		c.UpstreamTimeout = d.UpstreamTimeout
	}
	if c.MaxUploadBytes <= 0 {
		c.MaxUploadBytes = d.MaxUploadBytes
	}
	if c.SessionTTL <= 0 {
		c.SessionTTL = d.SessionTTL
	}
	if c.PageWidth <= 0 {
		c.PageWidth = d.PageWidth
	}
}

// Validate checks values that cannot be defaulted. The upstream credential
// is optional at startup; the gateway rejects requests made without one.
func (c Config) Validate() error {
	switch c.Provider {
	case "openai", "anthropic":
	default:
		return fmt.Errorf("invalid llm_provider %q: must be openai or anthropic", c.Provider)
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("llm_temperature must be between 0 and 2, got %v", c.Temperature)
	}
	return nil
}

// APIKey returns the configured credential for the selected provider.
func (c Config) APIKey() string {
	if c.Provider == "anthropic" {
		return c.AnthropicAPIKey
	}
	return c.OpenAIAPIKey
}
