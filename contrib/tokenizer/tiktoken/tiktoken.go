// Package tiktoken implements ingest.TokenCounter with BPE token counts.
package tiktoken

import (
	"github.com/pkoukk/tiktoken-go"
)

// Tokenizer counts and truncates text by tiktoken token boundaries.
type Tokenizer struct {
	enc *tiktoken.Tiktoken
}

// New creates a tokenizer for the given model or encoding name,
// e.g. "gpt-4o-mini" or "cl100k_base".
func New(name string) (*Tokenizer, error) {
	enc, err := tiktoken.EncodingForModel(name)
	if err != nil {
		// try by encoding name
		enc, err = tiktoken.GetEncoding(name)
		if err != nil {
			return nil, err
		}
	}
	return &Tokenizer{enc: enc}, nil
}

// Count implements ingest.TokenCounter.
func (t *Tokenizer) Count(text string) (int, error) {
	return len(t.enc.Encode(text, nil, nil)), nil
}

// Truncate implements ingest.TokenCounter. Text is cut at a token boundary,
// never mid-token.
func (t *Tokenizer) Truncate(text string, maxTokens int) (string, error) {
	if maxTokens <= 0 {
		return "", nil
	}
	ids := t.enc.Encode(text, nil, nil)
	if len(ids) <= maxTokens {
		return text, nil
	}
	return t.enc.Decode(ids[:maxTokens]), nil
}
