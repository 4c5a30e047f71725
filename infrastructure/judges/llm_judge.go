// Package judges provides ports.Judge implementations: an LLM-backed
// pairwise judge, a position-swap decorator that cancels presentation-order
// bias, an interactive console judge and a deterministic oracle.
package judges

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"text/template"

	"github.com/go-playground/validator/v10"

	"github.com/ahrav/go-thurstone/internal/domain"
	"github.com/ahrav/go-thurstone/internal/ports"
)

var _ ports.Judge = (*LLMJudge)(nil)

// Default LLM judge settings.
const (
	DefaultJudgeMaxTokens   = 256
	DefaultJudgeTemperature = 0.0
	DefaultCriterion        = "Which idea is better overall?"
)

// DefaultPrompt is the comparison template. It receives Criterion, A and B.
const DefaultPrompt = `You are judging two ideas against one criterion.

Criterion: {{.Criterion}}

Idea A:
{{.A}}

Idea B:
{{.B}}

Pick the idea that better satisfies the criterion. You must choose one.`

const responseFormat = "\n\nIMPORTANT: You must respond with valid JSON in exactly this format:\n" +
	`{"winner": "A" or "B", "confidence": <0.0-1.0>, "reasoning": "<one or two sentences>"}`

const systemPrompt = "You are a careful, impartial judge. Respond only with JSON."

// LLMJudgeConfig configures an LLMJudge.
type LLMJudgeConfig struct {
	// Criterion is the question asked about every pair.
	Criterion string `yaml:"criterion" json:"criterion" validate:"max=2000"`
	// Prompt is a text/template using {{.Criterion}}, {{.A}} and {{.B}}.
	// Empty selects DefaultPrompt.
	Prompt string `yaml:"prompt" json:"prompt"`
	// Temperature controls randomness; 0 gives the most repeatable
	// verdicts.
	Temperature float64 `yaml:"temperature" json:"temperature" validate:"min=0,max=2"`
	// MaxTokens limits the response length.
	MaxTokens int `yaml:"max_tokens" json:"max_tokens" validate:"min=1,max=100000"`
	// MaxPromptTokens rejects prompts whose estimated size exceeds it.
	// Zero disables the check.
	MaxPromptTokens int `yaml:"max_prompt_tokens" json:"max_prompt_tokens" validate:"min=0"`
	// MinConfidence rejects verdicts the model is less sure of.
	MinConfidence float64 `yaml:"min_confidence" json:"min_confidence" validate:"min=0,max=1"`
	// JSONMode asks providers that support it for a JSON response.
	JSONMode bool `yaml:"json_mode" json:"json_mode"`
}

// DefaultLLMJudgeConfig returns the default configuration.
func DefaultLLMJudgeConfig() LLMJudgeConfig {
	return LLMJudgeConfig{
		Criterion:   DefaultCriterion,
		Temperature: DefaultJudgeTemperature,
		MaxTokens:   DefaultJudgeMaxTokens,
		JSONMode:    true,
	}
}

// pairwiseResponse is the JSON verdict expected from the model.
type pairwiseResponse struct {
	Winner     string   `json:"winner" validate:"required"`
	Confidence *float64 `json:"confidence" validate:"omitempty,min=0,max=1"`
	Reasoning  string   `json:"reasoning"`
}

// LLMJudge asks an LLM which of two items better satisfies a criterion.
// It is stateless and safe for concurrent use.
type LLMJudge struct {
	client    ports.LLMClient
	config    LLMJudgeConfig
	prompt    *template.Template
	validator *validator.Validate
}

// NewLLMJudge creates a judge backed by client.
func NewLLMJudge(client ports.LLMClient, config LLMJudgeConfig) (*LLMJudge, error) {
	if client == nil {
		return nil, fmt.Errorf("llm judge: LLM client is required")
	}
	if config.MaxTokens == 0 {
		config.MaxTokens = DefaultJudgeMaxTokens
	}
	if config.Criterion == "" {
		config.Criterion = DefaultCriterion
	}
	if config.Prompt == "" {
		config.Prompt = DefaultPrompt
	}

	v := validator.New()
	if err := v.Struct(config); err != nil {
		return nil, fmt.Errorf("llm judge: invalid configuration: %w", err)
	}
	tmpl, err := template.New("pairwisePrompt").Option("missingkey=error").Parse(config.Prompt)
	if err != nil {
		return nil, fmt.Errorf("llm judge: failed to parse prompt template: %w", err)
	}
	return &LLMJudge{client: client, config: config, prompt: tmpl, validator: v}, nil
}

// Name implements ports.Judge.
func (j *LLMJudge) Name() string { return "llm:" + j.client.GetModel() }

// Compare implements ports.Judge.
func (j *LLMJudge) Compare(ctx context.Context, a, b domain.Item) (domain.Judgment, error) {
	prompt, err := j.render(a, b)
	if err != nil {
		return domain.Judgment{}, err
	}
	if j.config.MaxPromptTokens > 0 {
		n, err := j.client.EstimateTokens(prompt)
		if err != nil {
			return domain.Judgment{}, fmt.Errorf("llm judge: estimate tokens: %w", err)
		}
		if n > j.config.MaxPromptTokens {
			return domain.Judgment{}, fmt.Errorf("llm judge: prompt needs ~%d tokens, limit is %d",
				n, j.config.MaxPromptTokens)
		}
	}

	options := map[string]any{
		"temperature": j.config.Temperature,
		"max_tokens":  j.config.MaxTokens,
		"system":      systemPrompt,
	}
	if j.config.JSONMode {
		options["json"] = true
	}

	response, err := j.client.Complete(ctx, prompt, options)
	if err != nil {
		return domain.Judgment{}, ports.NewLLMError(j.client.GetModel(), "compare", err)
	}
	return j.parse(response, a, b)
}

func (j *LLMJudge) render(a, b domain.Item) (string, error) {
	var buf bytes.Buffer
	data := struct {
		Criterion string
		A, B      string
	}{
		Criterion: j.config.Criterion,
		A:         describe(a),
		B:         describe(b),
	}
	if err := j.prompt.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("llm judge: failed to execute prompt template: %w", err)
	}
	return buf.String() + responseFormat, nil
}

// describe renders an item's text and notes for the prompt.
func describe(it domain.Item) string {
	if it.Notes == "" {
		return it.Label()
	}
	return it.Label() + "\nNotes: " + it.Notes
}

func (j *LLMJudge) parse(response string, a, b domain.Item) (domain.Judgment, error) {
	raw := extractJSON(response)
	if raw == "" {
		return domain.Judgment{}, fmt.Errorf("%w: no JSON object in response (%d chars)",
			ports.ErrInvalidResponse, len(response))
	}

	var resp pairwiseResponse
	if err := json.Unmarshal([]byte(raw), &resp); err != nil {
		return domain.Judgment{}, fmt.Errorf("%w: %w", ports.ErrInvalidResponse, err)
	}
	if err := j.validator.Struct(resp); err != nil {
		return domain.Judgment{}, fmt.Errorf("%w: %w", ports.ErrInvalidResponse, err)
	}

	var winner int
	switch normalizeWinner(resp.Winner) {
	case "A":
		winner = a.Index
	case "B":
		winner = b.Index
	default:
		return domain.Judgment{}, fmt.Errorf("%w: winner %q is neither A nor B",
			ports.ErrInvalidResponse, resp.Winner)
	}

	confidence := 1.0
	if resp.Confidence != nil {
		confidence = *resp.Confidence
	}
	if confidence < j.config.MinConfidence {
		return domain.Judgment{}, fmt.Errorf("%w: confidence %.3f below minimum %.3f",
			ports.ErrInvalidResponse, confidence, j.config.MinConfidence)
	}
	return domain.Judgment{Winner: winner, Confidence: confidence, Reasoning: resp.Reasoning}, nil
}

// normalizeWinner maps "a", "Idea A", " B " and similar to "A" or "B".
func normalizeWinner(s string) string {
	s = strings.ToUpper(strings.TrimSpace(s))
	s = strings.TrimPrefix(s, "IDEA")
	return strings.TrimSpace(s)
}

// extractJSON returns the first JSON object in response, looking inside
// markdown code fences first.
func extractJSON(response string) string {
	response = strings.TrimSpace(response)

	if start := strings.Index(response, "```"); start != -1 {
		body := response[start+3:]
		if nl := strings.Index(body, "\n"); nl != -1 {
			body = body[nl+1:]
		}
		if end := strings.Index(body, "```"); end != -1 {
			if candidate := strings.TrimSpace(body[:end]); strings.HasPrefix(candidate, "{") {
				return candidate
			}
		}
	}

	start := strings.Index(response, "{")
	if start == -1 {
		return ""
	}
	depth := 0
	inString, escaped := false, false
	for i := start; i < len(response); i++ {
		c := response[i]
		switch {
		case escaped:
			escaped = false
		case c == '\\' && inString:
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
		case c == '{':
			depth++
		case c == '}':
			depth--
			if depth == 0 {
				return response[start : i+1]
			}
		}
	}
	return ""
}
