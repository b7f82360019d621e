package interp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	openai "github.com/openai/openai-go/v3"

	"github.com/AdibBinKadir/ai-robot-pet/pkg/models"
)

const systemPrompt = `
You are the command interpreter for a small robot pet. The robot can move
and it can chat. Your ONLY job is to convert the user's utterance into a
minimal structured JSON verdict.

GENERAL RULES:
1. Output ONLY JSON. No markdown, no explanations.
2. Never invent actions outside the registry below.
3. For conversation, write a short friendly reply in "response".

OUTPUT FORMAT:
{"action": <int>, "response": "<string>", "is_command": <bool>}

ACTION REGISTRY:
- 0: do nothing (conversation)
- 1: go forward / move ahead / advance / go straight
- 2: go backward / reverse / back up
- 3: turn left / rotate left / go left
- 4: turn right / rotate right / go right

If the utterance is a MOVEMENT COMMAND, set is_command true and pick the
action number. Otherwise set action 0, is_command false, and answer the
user conversationally in "response".

Examples:
- "go forward" -> {"action": 1, "response": "Moving forward now.", "is_command": true}
- "turn left please" -> {"action": 3, "response": "Turning left.", "is_command": true}
- "what's your name?" -> {"action": 0, "response": "I'm your friendly robot assistant!", "is_command": false}
`

// verdict is the wire shape the model is instructed to produce.
type verdict struct {
	Action    int    `json:"action"`
	Response  string `json:"response"`
	IsCommand bool   `json:"is_command"`
}

// OpenAI interprets utterances with a chat completion model. When the API
// call fails the error wraps ErrUnavailable so callers can fall back to
// keyword matching; a malformed model reply is handled here directly.
type OpenAI struct {
	Client openai.Client
	Model  openai.ChatModel
	Logger *slog.Logger
}

// NewOpenAI builds an interpreter around an existing OpenAI client.
func NewOpenAI(client openai.Client, model openai.ChatModel, logger *slog.Logger) *OpenAI {
	if model == "" {
		model = openai.ChatModelGPT4oMini
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &OpenAI{Client: client, Model: model, Logger: logger}
}

func (o *OpenAI) Interpret(ctx context.Context, utterance string) (models.Decision, error) {
	resp, err := o.Client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(utterance),
		},
		Model: o.Model,
	})
	if err != nil {
		return models.Decision{}, fmt.Errorf("%w: chat completion: %v", ErrUnavailable, err)
	}
	if len(resp.Choices) == 0 {
		return models.Decision{}, fmt.Errorf("%w: no choices in response", ErrUnavailable)
	}
	content := resp.Choices[0].Message.Content
	o.Logger.Debug("interpreter reply", "content", content)

	v, err := parseVerdict(content)
	if err != nil {
		// Model answered but not in the agreed shape. Keyword matching
		// still recovers the common movement phrases.
		o.Logger.Warn("unparseable interpreter reply, using keyword fallback",
			"error", err, "content", content)
		return MatchKeywords(utterance), nil
	}
	return v.decision(), nil
}

// parseVerdict extracts the JSON object from a possibly noisy model reply.
// Models occasionally wrap the JSON in prose or markdown fences even when
// told not to.
func parseVerdict(content string) (verdict, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return verdict{}, fmt.Errorf("empty message content")
	}
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start >= 0 && end > start {
		content = content[start : end+1]
	}
	var v verdict
	if err := json.Unmarshal([]byte(content), &v); err != nil {
		return verdict{}, fmt.Errorf("unmarshal verdict: %w", err)
	}
	return v, nil
}

func (v verdict) decision() models.Decision {
	reply := strings.TrimSpace(v.Response)
	if !v.IsCommand || !models.ValidAction(v.Action) || v.Action == models.ActionNone {
		if reply == "" {
			reply = "I understand."
		}
		return models.Decision{Action: models.ActionNone, Reply: reply, Kind: models.KindConversation}
	}
	if reply == "" {
		reply = defaultReply(v.Action)
	}
	return models.Decision{Action: v.Action, Reply: reply, Kind: models.KindCommand}
}
