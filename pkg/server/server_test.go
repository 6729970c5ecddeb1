package server

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/codeforge-ai/codeforge/internal/manager"
	"github.com/codeforge-ai/codeforge/internal/store"
	"github.com/codeforge-ai/codeforge/pkg/auth"
	"github.com/codeforge-ai/codeforge/pkg/runner"
	"github.com/codeforge-ai/codeforge/pkg/service/ai"
)

// fakeAssistant returns canned completions without touching the
// network.
type fakeAssistant struct {
	chatReply   string
	generateRaw string
	err         error
}

func (f *fakeAssistant) Chat(_ context.Context, _ []store.Message, _ string) (string, error) {
	return f.chatReply, f.err
}

func (f *fakeAssistant) GenerateApp(_ context.Context, _ string) (string, error) {
	return f.generateRaw, f.err
}

type fakeImages struct {
	img *ai.Image
	err error
}

func (f *fakeImages) Generate(_ context.Context, _ string) (*ai.Image, error) {
	return f.img, f.err
}

const appCompletion = "Here is your app.\n\n" +
	"FILE: src/index.ts\n```typescript\nconsole.log('hi');\n```\n\n" +
	"FILE: package.json\n```json\n{\"name\": \"demo\"}\n```\n"

func setupServer(t *testing.T, assistant Assistant, images ImageGenerator, tokens []string) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	run := runner.New(zap.NewNop(),
		runner.WithTimeout(5*time.Second),
		runner.WithCommands(map[string]runner.Command{
			"shell": {Bin: "sh", Ext: ".sh"},
		}))

	return NewServer(manager.New(st, zap.NewNop()), assistant, images, run, auth.NewTokenSet(tokens), zap.NewNop())
}

func doJSON(s *Server, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func createProject(t *testing.T, s *Server, name string) string {
	t.Helper()
	w := doJSON(s, http.MethodPost, "/v1/projects", gin.H{"name": name})
	require.Equal(t, http.StatusCreated, w.Code)

	var p store.Project
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &p))
	require.NotEmpty(t, p.ID)
	return p.ID
}

func TestHealthCheck(t *testing.T) {
	s := setupServer(t, nil, nil, nil)
	w := doJSON(s, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestProjectLifecycle(t *testing.T) {
	s := setupServer(t, nil, nil, nil)

	id := createProject(t, s, "demo")

	w := doJSON(s, http.MethodGet, "/v1/projects/"+id, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(s, http.MethodGet, "/v1/projects", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	var list []store.Project
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Len(t, list, 1)

	w = doJSON(s, http.MethodDelete, "/v1/projects/"+id, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = doJSON(s, http.MethodGet, "/v1/projects/"+id, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCreateProjectEmptyName(t *testing.T) {
	s := setupServer(t, nil, nil, nil)
	w := doJSON(s, http.MethodPost, "/v1/projects", gin.H{"name": ""})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestChatPersistsHistory(t *testing.T) {
	s := setupServer(t, &fakeAssistant{chatReply: "use a map here"}, nil, nil)
	id := createProject(t, s, "demo")

	w := doJSON(s, http.MethodPost, "/v1/chat", gin.H{"project_id": id, "message": "which structure?"})
	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "use a map here", resp["reply"])

	w = doJSON(s, http.MethodGet, "/v1/projects/"+id+"/messages", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var messages []store.Message
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &messages))
	require.Len(t, messages, 2)
	assert.Equal(t, store.RoleUser, messages[0].Role)
	assert.Equal(t, store.RoleAssistant, messages[1].Role)
}

func TestChatWithoutAssistant(t *testing.T) {
	s := setupServer(t, nil, nil, nil)
	id := createProject(t, s, "demo")

	w := doJSON(s, http.MethodPost, "/v1/chat", gin.H{"project_id": id, "message": "hello"})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestChatUnknownProject(t *testing.T) {
	s := setupServer(t, &fakeAssistant{chatReply: "x"}, nil, nil)
	w := doJSON(s, http.MethodPost, "/v1/chat", gin.H{"project_id": "nope", "message": "hello"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGenerateExtractsFiles(t *testing.T) {
	s := setupServer(t, &fakeAssistant{generateRaw: appCompletion}, nil, nil)
	id := createProject(t, s, "demo")

	w := doJSON(s, http.MethodPost, "/v1/generate", gin.H{"project_id": id, "prompt": "a todo app"})
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Files []struct {
			Path     string `json:"path"`
			Language string `json:"language"`
		} `json:"files"`
		FileCount int    `json:"fileCount"`
		Raw       string `json:"raw"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.FileCount)
	require.Len(t, resp.Files, 2)
	assert.Equal(t, "src/index.ts", resp.Files[0].Path)
	assert.Equal(t, "typescript", resp.Files[0].Language)
	assert.Equal(t, appCompletion, resp.Raw)
}

func TestGenerateNoFilesStillOK(t *testing.T) {
	s := setupServer(t, &fakeAssistant{generateRaw: "Sorry, I can only describe the app in prose."}, nil, nil)
	id := createProject(t, s, "demo")

	w := doJSON(s, http.MethodPost, "/v1/generate", gin.H{"project_id": id, "prompt": "a todo app"})
	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, float64(0), resp["fileCount"])
	assert.NotEmpty(t, resp["raw"])
}

func TestGenerateThenZip(t *testing.T) {
	s := setupServer(t, &fakeAssistant{generateRaw: appCompletion}, nil, nil)
	id := createProject(t, s, "demo")

	w := doJSON(s, http.MethodPost, "/v1/generate", gin.H{"project_id": id, "prompt": "a todo app"})
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(s, http.MethodGet, "/v1/projects/"+id+"/zip", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/zip", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), ".zip")

	zr, err := zip.NewReader(bytes.NewReader(w.Body.Bytes()), int64(w.Body.Len()))
	require.NoError(t, err)
	require.Len(t, zr.File, 2)
	assert.Equal(t, "src/index.ts", zr.File[0].Name)
	assert.Equal(t, "package.json", zr.File[1].Name)
}

func TestZipWithoutBuild(t *testing.T) {
	s := setupServer(t, nil, nil, nil)
	id := createProject(t, s, "demo")

	// No build yet, but the project exists: an empty archive is a
	// valid answer.
	w := doJSON(s, http.MethodGet, "/v1/projects/"+id+"/zip", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestPackage(t *testing.T) {
	s := setupServer(t, nil, nil, nil)

	w := doJSON(s, http.MethodPost, "/v1/package", gin.H{
		"name": "demo",
		"files": []gin.H{
			{"path": "main.py", "content": "print('hi')", "language": "python"},
		},
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "demo.zip")

	zr, err := zip.NewReader(bytes.NewReader(w.Body.Bytes()), int64(w.Body.Len()))
	require.NoError(t, err)
	require.Len(t, zr.File, 1)
	assert.Equal(t, "main.py", zr.File[0].Name)
}

func TestExecuteRecordsResult(t *testing.T) {
	s := setupServer(t, nil, nil, nil)
	id := createProject(t, s, "demo")

	w := doJSON(s, http.MethodPost, "/v1/execute", gin.H{
		"project_id": id,
		"language":   "shell",
		"code":       "echo hello",
	})
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Stdout   string `json:"stdout"`
		ExitCode int    `json:"exit_code"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "hello\n", resp.Stdout)
	assert.Equal(t, 0, resp.ExitCode)

	w = doJSON(s, http.MethodGet, "/v1/executions?project="+id, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var executions []store.Execution
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &executions))
	require.Len(t, executions, 1)
	assert.Equal(t, "echo hello", executions[0].Code)
}

func TestExecuteUnknownLanguage(t *testing.T) {
	s := setupServer(t, nil, nil, nil)
	w := doJSON(s, http.MethodPost, "/v1/execute", gin.H{"language": "cobol", "code": "x"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestImage(t *testing.T) {
	s := setupServer(t, nil, &fakeImages{img: &ai.Image{MIMEType: "image/png", Data: []byte{1, 2, 3}}}, nil)

	w := doJSON(s, http.MethodPost, "/v1/images", gin.H{"prompt": "a logo"})
	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "image/png", resp["mime_type"])
	assert.NotEmpty(t, resp["data"])
}

func TestImageWithoutService(t *testing.T) {
	s := setupServer(t, nil, nil, nil)
	w := doJSON(s, http.MethodPost, "/v1/images", gin.H{"prompt": "a logo"})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestSearchMessages(t *testing.T) {
	s := setupServer(t, &fakeAssistant{chatReply: "the websocket handler reconnects on close"}, nil, nil)
	id := createProject(t, s, "demo")

	w := doJSON(s, http.MethodPost, "/v1/chat", gin.H{"project_id": id, "message": "how does reconnect work"})
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(s, http.MethodGet, "/v1/search?q=websocket", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Count   int `json:"count"`
		Results []struct {
			Score float64 `json:"score"`
		} `json:"results"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.GreaterOrEqual(t, resp.Count, 1)
}

func TestSearchMissingQuery(t *testing.T) {
	s := setupServer(t, nil, nil, nil)
	w := doJSON(s, http.MethodGet, "/v1/search", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestConfigRoundTrip(t *testing.T) {
	s := setupServer(t, nil, nil, nil)

	w := doJSON(s, http.MethodPut, "/v1/config", gin.H{"theme": "dark", "editor": "vim"})
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(s, http.MethodGet, "/v1/config", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var cfg map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &cfg))
	assert.Equal(t, "dark", cfg["theme"])
	assert.Equal(t, "vim", cfg["editor"])
}

func TestAuthRequired(t *testing.T) {
	s := setupServer(t, nil, nil, []string{"secret-token"})

	// Health stays open.
	w := doJSON(s, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(s, http.MethodGet, "/v1/projects", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req := httptest.NewRequest(http.MethodGet, "/v1/projects", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	w = httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/v1/projects", nil)
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", "secret-token"))
	w = httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestTokenAdministration(t *testing.T) {
	s := setupServer(t, nil, nil, nil)

	// Auth starts disabled; registering a token enables it.
	w := doJSON(s, http.MethodPost, "/v1/tokens", gin.H{"token": "new-token", "label": "ci"})
	require.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(s, http.MethodGet, "/v1/projects", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req := httptest.NewRequest(http.MethodGet, "/v1/projects", nil)
	req.Header.Set("Authorization", "Bearer new-token")
	w = httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	// The token lands in the store, so it would survive a restart.
	stored, err := s.manager.Store().ListTokens()
	require.NoError(t, err)
	assert.Equal(t, []string{"new-token"}, stored)

	// Revoking the only token disables auth again.
	req = httptest.NewRequest(http.MethodDelete, "/v1/tokens/new-token", nil)
	req.Header.Set("Authorization", "Bearer new-token")
	w = httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusNoContent, w.Code)

	w = doJSON(s, http.MethodGet, "/v1/projects", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAddTokenRequiresValue(t *testing.T) {
	s := setupServer(t, nil, nil, nil)
	w := doJSON(s, http.MethodPost, "/v1/tokens", gin.H{"label": "no token"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
