package llm

import (
	"context"
	"fmt"
	"testing"

	"github.com/sweetpotato0/docqa/errors"
	"github.com/sweetpotato0/docqa/message"
)

type stubClient struct {
	response string
	err      error
	calls    int
}

func (s *stubClient) Generate(ctx context.Context, msgs []*message.Message) (*message.Message, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return message.NewMessage(message.RoleAssistant, s.response), nil
}

type verdict struct {
	Relevant  string `json:"relevant"`
	Rationale string `json:"rationale"`
}

func TestGenerateStructuredDecodesPlainJSON(t *testing.T) {
	client := &stubClient{response: `{"relevant":"yes","rationale":"mentions refunds"}`}

	out, err := GenerateStructured[verdict](context.Background(), client, "grade", "sys", "user")
	if err != nil {
		t.Fatalf("GenerateStructured error: %v", err)
	}
	if out.Relevant != "yes" || out.Rationale != "mentions refunds" {
		t.Fatalf("unexpected decode: %+v", out)
	}
}

func TestGenerateStructuredStripsCodeFences(t *testing.T) {
	client := &stubClient{response: "```json\n{\"relevant\":\"no\",\"rationale\":\"off topic\"}\n```"}

	out, err := GenerateStructured[verdict](context.Background(), client, "grade", "sys", "user")
	if err != nil {
		t.Fatalf("GenerateStructured error: %v", err)
	}
	if out.Relevant != "no" {
		t.Fatalf("expected relevant=no, got %q", out.Relevant)
	}
}

func TestGenerateStructuredSurfacesParseFailure(t *testing.T) {
	client := &stubClient{response: "I think the documents look relevant."}

	_, err := GenerateStructured[verdict](context.Background(), client, "grade", "sys", "user")
	if err == nil {
		t.Fatal("expected schema parse error")
	}
	se, ok := errors.AsSchemaParse(err)
	if !ok {
		t.Fatalf("expected SchemaParseError, got %T: %v", err, err)
	}
	if se.Node != "grade" {
		t.Fatalf("expected node grade, got %q", se.Node)
	}
	if se.Raw == "" {
		t.Fatal("expected raw output to be retained")
	}
}

func TestGenerateStructuredRunsValidators(t *testing.T) {
	client := &stubClient{response: `{"relevant":"maybe","rationale":""}`}

	_, err := GenerateStructured(context.Background(), client, "grade", "sys", "user",
		func(v *verdict) error {
			if v.Relevant != "yes" && v.Relevant != "no" {
				return fmt.Errorf("relevant must be yes or no, got %q", v.Relevant)
			}
			return nil
		})
	if err == nil {
		t.Fatal("expected validator failure")
	}
	if _, ok := errors.AsSchemaParse(err); !ok {
		t.Fatalf("expected SchemaParseError, got %v", err)
	}
}

func TestGenerateStructuredPropagatesClientError(t *testing.T) {
	client := &stubClient{err: errors.Transient("openai", "generate", errors.New("timeout"))}

	_, err := GenerateStructured[verdict](context.Background(), client, "grade", "sys", "user")
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.IsTransient(err) {
		t.Fatalf("expected transient error, got %v", err)
	}
	if _, ok := errors.AsSchemaParse(err); ok {
		t.Fatal("provider failure must not be reported as schema parse failure")
	}
}
