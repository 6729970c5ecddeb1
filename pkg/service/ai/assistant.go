// Package ai wraps the Gemini API behind the two model-facing
// services the platform needs: the chat/builder assistant and image
// generation. Clients are constructed explicitly and injected; nothing
// here is module-level state.
package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/codeforge-ai/codeforge/internal/store"
	"github.com/codeforge-ai/codeforge/pkg/common/errors"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "gemini-2.0-flash"

// AssistantService answers chat messages and generates full projects.
type AssistantService struct {
	client *genai.Client
	model  *genai.GenerativeModel
	log    *zap.Logger
}

// NewAssistantService creates the chat/builder service. The API key is
// required; the model name falls back to DefaultModel.
func NewAssistantService(ctx context.Context, apiKey, modelName string, log *zap.Logger) (*AssistantService, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: gemini api key not configured", errors.ErrUnavailable)
	}
	if log == nil {
		log = zap.NewNop()
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}

	if modelName == "" {
		modelName = DefaultModel
	}
	model := client.GenerativeModel(modelName)
	model.SetTemperature(0.2) // Low temperature for technical accuracy

	return &AssistantService{client: client, model: model, log: log}, nil
}

// Close releases the underlying client.
func (s *AssistantService) Close() {
	if s.client != nil {
		s.client.Close()
	}
}

// Chat sends a message with the project's stored history as chat
// context and returns the model's reply.
func (s *AssistantService) Chat(ctx context.Context, history []store.Message, message string) (string, error) {
	cs := s.model.StartChat()
	cs.History = chatHistory(history)

	resp, err := cs.SendMessage(ctx, genai.Text(message))
	if err != nil {
		s.log.Warn("chat request failed", zap.Error(err))
		return "", fmt.Errorf("gemini chat failed: %w", err)
	}
	return collectText(resp), nil
}

// GenerateApp asks the model to emit a complete project as labeled
// file blocks and returns the raw completion. Parsing the completion
// into files is the extractor's job; this method stays format-blind.
func (s *AssistantService) GenerateApp(ctx context.Context, prompt string) (string, error) {
	resp, err := s.model.GenerateContent(ctx, genai.Text(BuildAppPrompt(prompt)))
	if err != nil {
		s.log.Warn("app generation failed", zap.Error(err))
		return "", fmt.Errorf("gemini generation failed: %w", err)
	}
	return collectText(resp), nil
}

const fence = "```"

// BuildAppPrompt wraps the user's idea in the builder instruction that
// pins the FILE: block output format the extractor's primary pattern
// expects.
func BuildAppPrompt(idea string) string {
	return fmt.Sprintf(`You are an expert full-stack engineer generating a complete, runnable project.

Output every file of the project, and nothing else, using exactly this format for each file:

FILE: <relative/path/to/file>
%s<language>
<file content>
%s

Rules:
- Start each file with a "FILE:" line naming its relative path.
- Put the entire file content in one fenced block directly below it.
- Do not add commentary between files.

## Project request
%s`, fence, fence, idea)
}

// chatHistory converts stored messages into genai chat turns. The
// assistant role maps to the API's "model" role.
func chatHistory(history []store.Message) []*genai.Content {
	turns := make([]*genai.Content, 0, len(history))
	for _, m := range history {
		role := "user"
		if m.Role == store.RoleAssistant {
			role = "model"
		}
		turns = append(turns, &genai.Content{
			Role:  role,
			Parts: []genai.Part{genai.Text(m.Content)},
		})
	}
	return turns
}

// collectText concatenates the text parts of the first candidate.
func collectText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			sb.WriteString(string(txt))
		}
	}
	return sb.String()
}
