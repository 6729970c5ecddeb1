package ai

import (
	"testing"

	"github.com/google/generative-ai-go/genai"
	"github.com/stretchr/testify/assert"

	"github.com/codeforge-ai/codeforge/internal/store"
)

func TestBuildAppPromptPinsFormat(t *testing.T) {
	prompt := BuildAppPrompt("a todo list app with React")

	assert.Contains(t, prompt, "FILE: <relative/path/to/file>")
	assert.Contains(t, prompt, "a todo list app with React")
	assert.Contains(t, prompt, fence)
}

func TestChatHistoryRoleMapping(t *testing.T) {
	turns := chatHistory([]store.Message{
		{Role: store.RoleUser, Content: "hi"},
		{Role: store.RoleAssistant, Content: "hello"},
	})

	assert.Len(t, turns, 2)
	assert.Equal(t, "user", turns[0].Role)
	assert.Equal(t, "model", turns[1].Role)
	assert.Equal(t, genai.Text("hello"), turns[1].Parts[0])
}

func TestCollectText(t *testing.T) {
	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{
				Parts: []genai.Part{genai.Text("part one "), genai.Text("part two")},
			},
		}},
	}
	assert.Equal(t, "part one part two", collectText(resp))

	assert.Equal(t, "", collectText(nil))
	assert.Equal(t, "", collectText(&genai.GenerateContentResponse{}))
}
