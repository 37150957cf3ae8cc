package llm

import (
	"fmt"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"github.com/tinfoilsh/tinfoil-go"
)

// Backend providers
const (
	ProviderOpenAI  = "openai"
	ProviderTinfoil = "tinfoil"
)

// BackendConfig selects and configures the generation backend
type BackendConfig struct {
	Provider string
	BaseURL  string
	APIKey   string
}

// NewChatClient builds the chat completion service for the configured
// provider. SDK-level retries are disabled; RetryPolicy is the only retry
// loop. The returned description is meant for startup logging.
func NewChatClient(cfg BackendConfig) (ChatClient, string, error) {
	opts := []option.RequestOption{option.WithMaxRetries(0)}
	if cfg.APIKey != "" {
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	}

	switch cfg.Provider {
	case ProviderTinfoil:
		client, err := tinfoil.NewClient(opts...)
		if err != nil {
			return nil, "", fmt.Errorf("create tinfoil client: %w", err)
		}
		return &client.Chat.Completions, fmt.Sprintf("tinfoil enclave %s", client.Enclave()), nil

	case ProviderOpenAI, "":
		if cfg.BaseURL != "" {
			opts = append(opts, option.WithBaseURL(cfg.BaseURL))
		}
		client := openai.NewClient(opts...)
		return &client.Chat.Completions, fmt.Sprintf("openai-compatible %s", cfg.BaseURL), nil

	default:
		return nil, "", fmt.Errorf("unknown backend provider %q", cfg.Provider)
	}
}
