// Package gemini provides a Google Gemini-backed llm.Client.
package gemini

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/sweetpotato0/docqa/errors"
	"github.com/sweetpotato0/docqa/message"
)

// Config holds Gemini provider configuration
type Config struct {
	APIKey      string
	Model       string
	MaxTokens   int32
	Temperature float32
}

// DefaultConfig returns default Gemini configuration
func DefaultConfig(apiKey string) *Config {
	return &Config{
		APIKey:    apiKey,
		Model:     "gemini-1.5-flash",
		MaxTokens: 2048,
	}
}

// Provider implements the llm.Client interface for Google Gemini
type Provider struct {
	config *Config
	client *genai.Client
}

// New creates a new Gemini provider using the official SDK.
func New(ctx context.Context, config *Config) (*Provider, error) {
	if config == nil {
		config = DefaultConfig("")
	}
	if config.APIKey == "" {
		return nil, fmt.Errorf("gemini api key cannot be empty: %w", errors.ErrInvalidInput)
	}
	if config.Model == "" {
		config.Model = "gemini-1.5-flash"
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(config.APIKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	return &Provider{
		config: config,
		client: client,
	}, nil
}

// Generate implements llm.Client interface
func (p *Provider) Generate(ctx context.Context, messages []*message.Message) (*message.Message, error) {
	if len(messages) == 0 {
		return nil, fmt.Errorf("messages cannot be empty: %w", errors.ErrInvalidInput)
	}

	model := p.client.GenerativeModel(p.config.Model)
	if p.config.MaxTokens > 0 {
		model.SetMaxOutputTokens(p.config.MaxTokens)
	}
	if p.config.Temperature > 0 {
		model.SetTemperature(p.config.Temperature)
	}

	// Gemini takes system instructions separately; the remaining turns are
	// folded into a single prompt.
	var systemParts []genai.Part
	var userParts []genai.Part
	for _, msg := range messages {
		switch msg.Role {
		case message.RoleSystem:
			systemParts = append(systemParts, genai.Text(msg.Content))
		default:
			userParts = append(userParts, genai.Text(msg.Content))
		}
	}
	if len(systemParts) > 0 {
		model.SystemInstruction = &genai.Content{Parts: systemParts}
	}
	if len(userParts) == 0 {
		return nil, fmt.Errorf("conversation has no user content: %w", errors.ErrInvalidInput)
	}

	resp, err := model.GenerateContent(ctx, userParts...)
	if err != nil {
		return nil, errors.Transient("gemini", "generate-content", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, errors.Transient("gemini", "generate-content",
			fmt.Errorf("no candidates returned"))
	}

	var text strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			text.WriteString(string(t))
		}
	}
	return message.NewMessage(message.RoleAssistant, text.String()), nil
}

// Close releases the underlying client.
func (p *Provider) Close() error {
	return p.client.Close()
}
