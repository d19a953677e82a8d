package advisor

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"

	"github.com/patchpilot-io/patchpilot/internal/logging"
)

// BedrockAPI is the slice of the Bedrock runtime client the advisor calls.
type BedrockAPI interface {
	InvokeModel(ctx context.Context, params *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
}

// Bedrock invokes an Anthropic model on Bedrock. A single attempt bounded by
// Timeout; on any failure it degrades to Static advice.
type Bedrock struct {
	client  BedrockAPI
	modelID string
	timeout time.Duration
}

// NewBedrock returns a Bedrock-backed advisor.
func NewBedrock(client BedrockAPI, modelID string, timeout time.Duration) *Bedrock {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Bedrock{client: client, modelID: modelID, timeout: timeout}
}

type anthropicRequest struct {
	AnthropicVersion string             `json:"anthropic_version"`
	MaxTokens        int                `json:"max_tokens"`
	Messages         []anthropicMessage `json:"messages"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicResponse struct {
	Content []struct {
		Text string `json:"text"`
	} `json:"content"`
}

func (b *Bedrock) Advise(ctx context.Context, planning *Context) (*Advice, error) {
	advice, err := b.invoke(ctx, planning)
	if err != nil {
		logging.Warn("plan advisor falling back to defaults", "error", err)
		return Static{}.Advise(ctx, planning)
	}
	return advice, nil
}

func (b *Bedrock) invoke(ctx context.Context, planning *Context) (*Advice, error) {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	body, err := json.Marshal(anthropicRequest{
		AnthropicVersion: "bedrock-2023-06-01",
		MaxTokens:        2048,
		Messages: []anthropicMessage{
			{Role: "user", Content: BuildPrompt(planning)},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal model request: %w", err)
	}

	out, err := b.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(b.modelID),
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
		Body:        body,
	})
	if err != nil {
		return nil, fmt.Errorf("model invocation failed: %w", err)
	}

	var resp anthropicResponse
	if err := json.Unmarshal(out.Body, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode model response: %w", err)
	}
	if len(resp.Content) == 0 {
		return nil, fmt.Errorf("model returned no content")
	}

	advice, err := ParseAdvice(resp.Content[0].Text)
	if err != nil {
		return nil, err
	}
	logging.Event("plan_advice_generated",
		"model_id", b.modelID,
		"canary_size", advice.CanarySize,
		"batch_count", len(advice.Batches))
	return advice, nil
}

// ParseAdvice extracts the JSON object embedded in the model's free-text
// response. Models wrap the JSON in prose often enough that we scan for the
// outermost braces rather than decoding the whole text.
func ParseAdvice(text string) (*Advice, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no JSON object in model response")
	}
	var advice Advice
	if err := json.Unmarshal([]byte(text[start:end+1]), &advice); err != nil {
		return nil, fmt.Errorf("failed to parse plan advice: %w", err)
	}
	return &advice, nil
}
