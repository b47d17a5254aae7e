package snippets

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"github.com/spf13/cast"

	"github.com/codelens/codelens/internal/models"
)

// Degraded marks a best-effort synthesis that produced nothing usable.
// The orchestrator treats it as a logged warning rather than a job
// failure; an empty snippet list is a valid success outcome.
type Degraded struct {
	Reason string
	Err    error
}

func (d *Degraded) Error() string { return "snippets degraded: " + d.Reason }
func (d *Degraded) Unwrap() error { return d.Err }

// chatClient is the slice of the OpenAI client the synthesizer needs.
type chatClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Synthesizer turns classified transcript segments into structured code
// snippets via a single generative-model call.
type Synthesizer struct {
	client chatClient
	model  string
}

func NewSynthesizer(apiKey, model string) *Synthesizer {
	return &Synthesizer{client: openai.NewClient(apiKey), model: model}
}

func newSynthesizerForTests(client chatClient, model string) *Synthesizer {
	return &Synthesizer{client: client, model: model}
}

const systemPrompt = "You are an expert at identifying and extracting code snippets from video transcripts."

// Synthesize requests snippets for the given segments. The returned error
// is always *Degraded; callers must never fail the job on it.
func (s *Synthesizer) Synthesize(ctx context.Context, segments []models.TranscriptSegment) ([]models.CodeSnippet, error) {
	if len(segments) == 0 {
		return nil, nil
	}

	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: s.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: buildPrompt(segments)},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return nil, &Degraded{Reason: "model call failed", Err: err}
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return nil, &Degraded{Reason: "model returned no content"}
	}

	snips, perr := parseResponse(resp.Choices[0].Message.Content)
	if perr != nil {
		return nil, &Degraded{Reason: "model response did not parse", Err: perr}
	}
	return snips, nil
}

func buildPrompt(segments []models.TranscriptSegment) string {
	var b strings.Builder
	b.WriteString(`Given the following transcript segments, identify and extract any code snippets being discussed.
For each snippet determine the programming language, reconstruct the actual code, provide a brief explanation, and note the start and end timestamps.

Respond with a JSON object of the form:
{"snippets": [{"language": "...", "code": "...", "explanation": "...", "startTime": seconds, "endTime": seconds}]}

Transcript segments:
`)
	for _, seg := range segments {
		fmt.Fprintf(&b, "[%.2f - %.2f] (%s) %s\n", seg.Start, seg.End, seg.ContentType, seg.Text)
	}
	return b.String()
}

// parseResponse accepts either {"snippets": [...]} or a bare array, with
// fences stripped; timestamps arrive as numbers or strings depending on
// the model's mood, so they go through cast.
func parseResponse(content string) ([]models.CodeSnippet, error) {
	raw := stripFences(content)

	var wrapper struct {
		Snippets []json.RawMessage `json:"snippets"`
	}
	items := []json.RawMessage{}
	if err := json.Unmarshal([]byte(raw), &wrapper); err == nil && wrapper.Snippets != nil {
		items = wrapper.Snippets
	} else if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return nil, fmt.Errorf("unmarshal snippets: %w", err)
	}

	snips := make([]models.CodeSnippet, 0, len(items))
	for _, item := range items {
		var fields map[string]interface{}
		if err := json.Unmarshal(item, &fields); err != nil {
			return nil, fmt.Errorf("unmarshal snippet item: %w", err)
		}
		code := cast.ToString(fields["code"])
		if strings.TrimSpace(code) == "" {
			continue
		}
		snips = append(snips, models.CodeSnippet{
			Language:    cast.ToString(fields["language"]),
			Code:        code,
			Explanation: cast.ToString(fields["explanation"]),
			StartTime:   cast.ToFloat64(fields["startTime"]),
			EndTime:     cast.ToFloat64(fields["endTime"]),
		})
	}
	return snips, nil
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
