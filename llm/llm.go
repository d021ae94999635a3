package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sweetpotato0/docqa/errors"
	"github.com/sweetpotato0/docqa/message"
)

// Client is the capability interface every language-model provider implements.
// Providers live under contrib/provider; the workflow engine depends only on
// this contract.
type Client interface {
	// Generate produces a completion for the given conversation.
	Generate(ctx context.Context, messages []*message.Message) (*message.Message, error)
}

// GenerateText runs a system+user prompt pair and returns the trimmed text.
func GenerateText(ctx context.Context, client Client, system, user string) (string, error) {
	if client == nil {
		return "", fmt.Errorf("llm client is not configured")
	}
	msgs := []*message.Message{
		message.NewMessage(message.RoleSystem, system),
		message.NewMessage(message.RoleUser, user),
	}
	resp, err := client.Generate(ctx, msgs)
	if err != nil {
		return "", err
	}
	if resp == nil {
		return "", fmt.Errorf("model returned empty response")
	}
	return strings.TrimSpace(resp.Text()), nil
}

// GenerateStructured runs a system+user prompt pair and decodes the model
// output strictly into T. A response that cannot be decoded is a
// SchemaParseError attributed to node; it is never coerced into a default
// value. Validators run after decoding and their failures are also schema
// parse failures, carrying the raw output for diagnostics.
func GenerateStructured[T any](ctx context.Context, client Client, node, system, user string, validators ...func(*T) error) (*T, error) {
	raw, err := GenerateText(ctx, client, system, user)
	if err != nil {
		return nil, err
	}
	out, err := DecodeJSON[T](raw)
	if err != nil {
		return nil, errors.SchemaParse(node, raw, err)
	}
	for _, validate := range validators {
		if validate == nil {
			continue
		}
		if err := validate(out); err != nil {
			return nil, errors.SchemaParse(node, raw, err)
		}
	}
	return out, nil
}

// DecodeJSON tries to unmarshal the raw model output into T after stripping fences.
func DecodeJSON[T any](raw string) (*T, error) {
	clean := sanitizeJSON(raw)
	var out T
	if err := json.Unmarshal([]byte(clean), &out); err != nil {
		return nil, fmt.Errorf("decode JSON: %w", err)
	}
	return &out, nil
}

func sanitizeJSON(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if strings.HasPrefix(trimmed, "```") {
		trimmed = trimmed[3:]
		trimmed = strings.TrimPrefix(trimmed, "json")
		trimmed = strings.TrimPrefix(trimmed, "JSON")
		if idx := strings.Index(trimmed, "```"); idx >= 0 {
			trimmed = trimmed[:idx]
		}
	}
	return strings.TrimSpace(trimmed)
}
