package classifier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

const classifyPrompt = `You are a security finding triage analyst.
Given one finding and the historical accuracy patterns that matched it,
classify the finding. Respond with ONLY a JSON object:
{
  "classification": "valid" | "false_positive" | "uncertain",
  "confidence": <0.0-1.0>,
  "reasoning": "<one short paragraph>",
  "recommended_action": "auto_close_valid" | "auto_close_fp" | "escalate" | "flag_for_review"
}

Input:
%s`

// GeminiClassifier calls the Gemini API with a structured prompt and parses
// the JSON verdict. All calls are expected to run under the router's hard
// timeout; a deadline hit maps to ErrReasoningTimeout.
type GeminiClassifier struct {
	client *genai.Client
	model  *genai.GenerativeModel
}

func NewGeminiClassifier(ctx context.Context, apiKey string, modelName string) (*GeminiClassifier, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	if modelName == "" {
		modelName = "gemini-1.5-flash"
	}

	model := client.GenerativeModel(modelName)
	model.SetTemperature(0)
	model.ResponseMIMEType = "application/json"

	return &GeminiClassifier{client: client, model: model}, nil
}

func (c *GeminiClassifier) Name() string {
	return "gemini"
}

func (c *GeminiClassifier) Classify(ctx context.Context, req *Request) (*Result, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal classification request: %w", err)
	}

	resp, err := c.model.GenerateContent(ctx, genai.Text(fmt.Sprintf(classifyPrompt, payload)))
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, ErrReasoningTimeout
		}
		return nil, err
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, ErrMalformedOutput
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}

	result, err := parseVerdict(sb.String())
	if err != nil {
		return nil, err
	}

	return result, nil
}

func (c *GeminiClassifier) Close() error {
	return c.client.Close()
}

// parseVerdict extracts the JSON verdict from the model output. Models
// sometimes wrap JSON in markdown fences despite instructions.
func parseVerdict(raw string) (*Result, error) {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")
	raw = strings.TrimSpace(raw)

	var result Result
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		return nil, ErrMalformedOutput
	}

	if !result.Valid() {
		return nil, ErrMalformedOutput
	}

	return &result, nil
}
