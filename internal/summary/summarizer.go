// Package summary produces natural-language summaries of claim validation
// outcomes for the transport layer to attach to responses.
package summary

import (
	"context"
	"fmt"
	"strings"

	"github.com/hyperengineering/claimgate/internal/types"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// noViolations is returned without an API call when a claim has no failing
// records.
const noViolations = "No billing violations detected."

// Summarizer turns a validated claim into a short human-readable summary.
type Summarizer interface {
	Summarize(ctx context.Context, result types.ClaimResult) (string, error)
}

// ChatService defines the interface for chat completion API calls.
// This abstraction enables testing without calling the real OpenAI API.
type ChatService interface {
	New(ctx context.Context, params openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error)
}

// Compile-time interface check
var _ Summarizer = (*OpenAI)(nil)

// OpenAI implements the summarizer using OpenAI's chat completion API.
type OpenAI struct {
	chat  ChatService
	model openai.ChatModel
}

// NewOpenAI creates a new OpenAI summarizer.
func NewOpenAI(apiKey, model string) *OpenAI {
	client := openai.NewClient(option.WithAPIKey(apiKey))
	return &OpenAI{
		chat:  client.Chat.Completions,
		model: openai.ChatModel(model),
	}
}

// Summarize builds a violation digest and asks the model for a concise,
// factual summary. Claims without violations short-circuit to a fixed
// message.
func (o *OpenAI) Summarize(ctx context.Context, result types.ClaimResult) (string, error) {
	prompt, ok := BuildPrompt(result)
	if !ok {
		return noViolations, nil
	}

	resp, err := o.chat.New(ctx, openai.ChatCompletionNewParams{
		Messages: openai.F([]openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		}),
		Model:       openai.F(o.model),
		Temperature: openai.F(0.0),
	})
	if err != nil {
		return "", fmt.Errorf("claim summarization failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("claim summarization failed: no choices returned")
	}

	return resp.Choices[0].Message.Content, nil
}

// BuildPrompt renders the violation bullet list and instruction block. The
// second return is false when the claim has no violations to summarize.
func BuildPrompt(result types.ClaimResult) (string, bool) {
	var bullets []string
	for _, rec := range result.Records {
		if !rec.Failed() {
			continue
		}
		if rec.Code1 != "" {
			bullets = append(bullets, fmt.Sprintf("- %s + %s and modifier %q: %s",
				rec.Code1, rec.Code2, rec.Modifier, rec.Result))
		} else {
			bullets = append(bullets, "- "+rec.Result)
		}
	}
	if len(bullets) == 0 {
		return "", false
	}

	var b strings.Builder
	b.WriteString("You are an expert in medical billing compliance.\n")
	fmt.Fprintf(&b, "Below are the billing rule violations for claim %s. ", result.ClaimID)
	b.WriteString("Each violation line indicates the modifier used and whether it is allowed or not.\n\n")
	b.WriteString(strings.Join(bullets, "\n"))
	b.WriteString("\n\nProvide a concise, factual summary of these violations, explicitly stating ")
	b.WriteString("which modifiers are allowed and which are not for each violation. ")
	b.WriteString("Skip modifier details when no modifiers are specified. ")
	b.WriteString("Do not introduce any information not present here.")

	return b.String(), true
}
