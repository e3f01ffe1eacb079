// Package repair calls an LLM to reformat account lines the strict parser
// rejects. It is best-effort: the pipeline behaves the same whether a fixer
// is absent, always fails, or always succeeds.
package repair

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// Fixer attempts to rewrite a malformed line into the canonical grammar.
type Fixer interface {
	Fix(ctx context.Context, line string) (string, error)
}

// ErrUnusableOutput means the model answered with something that cannot be an
// account line (no credential separator or no field delimiter).
var ErrUnusableOutput = errors.New("repair output unusable")

const promptTemplate = `Please convert the following MLBB account line into this exact format:

email:password | uid = 123456789 (server_id) | name = NAME | max_rank = RANK | level = 99 | country = XX | is_banned = False | credits = Config by RZX

Only respond with the corrected line. Do not add any comments or explanations.

Line:
%s`

const defaultModel = "gemini-2.0-flash"

// GeminiFixer repairs lines through the Gemini API.
type GeminiFixer struct {
	client *genai.Client
	model  string
}

// NewGeminiFixer builds a fixer for the given API key. An empty model selects
// the default.
func NewGeminiFixer(ctx context.Context, apiKey, model string) (*GeminiFixer, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	if model == "" {
		model = defaultModel
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	return &GeminiFixer{client: client, model: model}, nil
}

// Fix asks the model for a corrected line. The answer is sanity-checked only
// for the two delimiters; the caller re-parses it strictly.
func (f *GeminiFixer) Fix(ctx context.Context, line string) (string, error) {
	prompt := fmt.Sprintf(promptTemplate, strings.TrimSpace(line))
	resp, err := f.client.Models.GenerateContent(ctx, f.model, genai.Text(prompt), &genai.GenerateContentConfig{
		Temperature:       genai.Ptr[float32](0.3),
		SystemInstruction: genai.NewContentFromText("You are a data formatting assistant.", genai.RoleUser),
	})
	if err != nil {
		return "", fmt.Errorf("gemini request failed: %w", err)
	}

	fixed := strings.TrimSpace(resp.Text())
	if !strings.Contains(fixed, ":") || !strings.Contains(fixed, "|") {
		return "", ErrUnusableOutput
	}
	return fixed, nil
}
