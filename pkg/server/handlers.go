package server

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/codeforge-ai/codeforge/internal/store"
	"github.com/codeforge-ai/codeforge/pkg/archive"
	"github.com/codeforge-ai/codeforge/pkg/common/errors"
	"github.com/codeforge-ai/codeforge/pkg/extract"
	"github.com/codeforge-ai/codeforge/pkg/search"
)

// handleListProjects returns all projects.
func (s *Server) handleListProjects(c *gin.Context) {
	projects, err := s.manager.Store().ListProjects()
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, projects)
}

// handleCreateProject creates a named project.
func (s *Server) handleCreateProject(c *gin.Context) {
	var req struct {
		Name string `json:"name"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		handleError(c, errors.NewAppError(http.StatusBadRequest, "Invalid request body", err))
		return
	}

	project, err := s.manager.Store().CreateProject(req.Name)
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, project)
}

// handleGetProject returns one project by ID.
func (s *Server) handleGetProject(c *gin.Context) {
	project, err := s.manager.Store().GetProject(c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, project)
}

// handleDeleteProject removes a project and its cached build.
func (s *Server) handleDeleteProject(c *gin.Context) {
	id := c.Param("id")
	if err := s.manager.Store().DeleteProject(id); err != nil {
		handleError(c, err)
		return
	}
	s.manager.DropBuild(id)
	c.Status(http.StatusNoContent)
}

// handleListMessages returns a project's chat history.
func (s *Server) handleListMessages(c *gin.Context) {
	id := c.Param("id")
	if _, err := s.manager.Store().GetProject(id); err != nil {
		handleError(c, err)
		return
	}

	messages, err := s.manager.Store().ListMessages(id, 0)
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, messages)
}

// chatHistoryLimit bounds how many stored turns are replayed to the
// model per chat request.
const chatHistoryLimit = 20

// handleChat answers a chat message in a project's context and
// persists both sides of the exchange.
func (s *Server) handleChat(c *gin.Context) {
	var req struct {
		ProjectID string `json:"project_id"`
		Message   string `json:"message"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		handleError(c, errors.NewAppError(http.StatusBadRequest, "Invalid request body", err))
		return
	}
	if req.Message == "" {
		handleError(c, errors.NewAppError(http.StatusBadRequest, "Missing message", nil))
		return
	}
	if s.assistant == nil {
		handleError(c, errors.NewAppError(http.StatusServiceUnavailable, "AI service not initialized", nil))
		return
	}

	if _, err := s.manager.Store().GetProject(req.ProjectID); err != nil {
		handleError(c, err)
		return
	}

	history, err := s.manager.Store().ListMessages(req.ProjectID, chatHistoryLimit)
	if err != nil {
		handleError(c, err)
		return
	}

	reply, err := s.assistant.Chat(c.Request.Context(), history, req.Message)
	if err != nil {
		handleError(c, err)
		return
	}

	if _, err := s.manager.Store().AppendMessage(req.ProjectID, store.RoleUser, req.Message); err != nil {
		handleError(c, err)
		return
	}
	if _, err := s.manager.Store().AppendMessage(req.ProjectID, store.RoleAssistant, reply); err != nil {
		handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"reply": reply})
}

// handleGenerate runs the app builder: one completion, parsed into
// file records. Zero extracted files is a valid outcome and still
// answers 200 so the raw text stays inspectable by the caller.
func (s *Server) handleGenerate(c *gin.Context) {
	var req struct {
		ProjectID string `json:"project_id"`
		Prompt    string `json:"prompt"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		handleError(c, errors.NewAppError(http.StatusBadRequest, "Invalid request body", err))
		return
	}
	if req.Prompt == "" {
		handleError(c, errors.NewAppError(http.StatusBadRequest, "Missing prompt", nil))
		return
	}
	if s.assistant == nil {
		handleError(c, errors.NewAppError(http.StatusServiceUnavailable, "AI service not initialized", nil))
		return
	}

	if _, err := s.manager.Store().GetProject(req.ProjectID); err != nil {
		handleError(c, err)
		return
	}

	raw, err := s.assistant.GenerateApp(c.Request.Context(), req.Prompt)
	if err != nil {
		handleError(c, err)
		return
	}

	files := extract.Files(raw)
	if len(files) == 0 {
		s.log.Warn("builder completion yielded no files",
			zap.String("project", req.ProjectID),
			zap.Int("raw_len", len(raw)))
	}

	if err := s.manager.PutBuild(req.ProjectID, req.Prompt, raw, files); err != nil {
		handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"files":     files,
		"fileCount": len(files),
		"raw":       raw,
	})
}

// handlePackage zips an explicit file list supplied by the client.
func (s *Server) handlePackage(c *gin.Context) {
	var req struct {
		Name  string               `json:"name"`
		Files []extract.FileRecord `json:"files"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		handleError(c, errors.NewAppError(http.StatusBadRequest, "Invalid request body", err))
		return
	}

	data, err := archive.Build(req.Files)
	if err != nil {
		handleError(c, err)
		return
	}

	name := req.Name
	if name == "" {
		name = "project"
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name+".zip"))
	c.Data(http.StatusOK, "application/zip", data)
}

// handleProjectZip zips a project's most recent build.
func (s *Server) handleProjectZip(c *gin.Context) {
	id := c.Param("id")

	build, err := s.manager.GetBuild(id)
	if err != nil {
		handleError(c, err)
		return
	}

	data, err := archive.Build(build.Files)
	if err != nil {
		handleError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", id+".zip"))
	c.Data(http.StatusOK, "application/zip", data)
}

// handleExecute runs a code snippet in the sandbox and records the
// result. A failing snippet is still a successful API call.
func (s *Server) handleExecute(c *gin.Context) {
	var req struct {
		ProjectID string `json:"project_id"`
		Language  string `json:"language"`
		Code      string `json:"code"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		handleError(c, errors.NewAppError(http.StatusBadRequest, "Invalid request body", err))
		return
	}

	result, err := s.runner.Run(c.Request.Context(), req.Language, req.Code)
	if err != nil {
		handleError(c, err)
		return
	}

	exec := &store.Execution{
		ProjectID: req.ProjectID,
		Language:  req.Language,
		Code:      req.Code,
		Stdout:    result.Stdout,
		Stderr:    result.Stderr,
		ExitCode:  result.ExitCode,
	}
	if err := s.manager.Store().RecordExecution(exec); err != nil {
		// The run already happened; losing the audit row is not worth
		// failing the request over.
		s.log.Warn("failed to record execution", zap.Error(err))
	}

	c.JSON(http.StatusOK, gin.H{
		"id":        exec.ID,
		"stdout":    result.Stdout,
		"stderr":    result.Stderr,
		"exit_code": result.ExitCode,
		"timed_out": result.TimedOut,
	})
}

// handleListExecutions returns recent executions, optionally filtered
// by project.
func (s *Server) handleListExecutions(c *gin.Context) {
	limit := 50
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}

	executions, err := s.manager.Store().ListExecutions(c.Query("project"), limit)
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, executions)
}

// handleImage proxies a prompt to the image model and returns the
// result inline; gin encodes the byte slice as base64.
func (s *Server) handleImage(c *gin.Context) {
	var req struct {
		Prompt string `json:"prompt"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		handleError(c, errors.NewAppError(http.StatusBadRequest, "Invalid request body", err))
		return
	}
	if s.images == nil {
		handleError(c, errors.NewAppError(http.StatusServiceUnavailable, "Image service not initialized", nil))
		return
	}

	img, err := s.images.Generate(c.Request.Context(), req.Prompt)
	if err != nil {
		handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"mime_type": img.MIMEType,
		"data":      img.Data,
	})
}

// handleSearch fuzzy-matches the query against all stored messages.
func (s *Server) handleSearch(c *gin.Context) {
	query := c.Query("q")
	if query == "" {
		handleError(c, errors.NewAppError(http.StatusBadRequest, "Missing q parameter", nil))
		return
	}

	messages, err := s.manager.Store().AllMessages()
	if err != nil {
		handleError(c, err)
		return
	}

	matches := search.Messages(query, messages)
	c.JSON(http.StatusOK, gin.H{
		"query":   query,
		"count":   len(matches),
		"results": matches,
	})
}

// handleGetConfig returns the stored config map.
func (s *Server) handleGetConfig(c *gin.Context) {
	cfg, err := s.manager.Store().AllConfig()
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, cfg)
}

// handlePutConfig upserts the provided config keys.
func (s *Server) handlePutConfig(c *gin.Context) {
	var req map[string]string
	if err := c.ShouldBindJSON(&req); err != nil {
		handleError(c, errors.NewAppError(http.StatusBadRequest, "Invalid request body", err))
		return
	}

	for k, v := range req {
		if err := s.manager.Store().SetConfig(k, v); err != nil {
			handleError(c, err)
			return
		}
	}

	cfg, err := s.manager.Store().AllConfig()
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, cfg)
}

// handleAddToken registers an API token in the store and in the live
// set, so it takes effect without a restart. Registering the first
// token switches authentication on for subsequent requests.
func (s *Server) handleAddToken(c *gin.Context) {
	var req struct {
		Token string `json:"token"`
		Label string `json:"label"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		handleError(c, errors.NewAppError(http.StatusBadRequest, "Invalid request body", err))
		return
	}
	if req.Token == "" {
		handleError(c, errors.NewAppError(http.StatusBadRequest, "Missing token", nil))
		return
	}

	if err := s.manager.Store().AddToken(req.Token, req.Label); err != nil {
		handleError(c, err)
		return
	}
	s.tokens.Add(req.Token)
	c.JSON(http.StatusCreated, gin.H{"label": req.Label})
}

// handleRemoveToken revokes a token from the store and the live set.
func (s *Server) handleRemoveToken(c *gin.Context) {
	token := c.Param("token")

	if err := s.manager.Store().RemoveToken(token); err != nil {
		handleError(c, err)
		return
	}
	s.tokens.Remove(token)
	c.Status(http.StatusNoContent)
}

// handleError helper
func handleError(c *gin.Context, err error) {
	appErr := errors.MapError(err)
	c.JSON(appErr.Code, gin.H{"error": appErr.Message})
}
