// Package server exposes the platform over a REST API.
package server

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/codeforge-ai/codeforge/internal/manager"
	"github.com/codeforge-ai/codeforge/internal/store"
	"github.com/codeforge-ai/codeforge/pkg/auth"
	"github.com/codeforge-ai/codeforge/pkg/runner"
	"github.com/codeforge-ai/codeforge/pkg/service/ai"
)

// Assistant is the chat/builder model client consumed by the routes.
type Assistant interface {
	Chat(ctx context.Context, history []store.Message, message string) (string, error)
	GenerateApp(ctx context.Context, prompt string) (string, error)
}

// ImageGenerator is the prompt-to-image client consumed by the routes.
type ImageGenerator interface {
	Generate(ctx context.Context, prompt string) (*ai.Image, error)
}

// Server holds the state for the REST API server.
type Server struct {
	manager   *manager.Manager
	assistant Assistant
	images    ImageGenerator
	runner    *runner.Runner
	tokens    *auth.TokenSet
	router    *gin.Engine
	log       *zap.Logger
}

// NewServer creates a new Server instance. Assistant and images may be
// nil when the corresponding API key is not configured; their routes
// then answer 503.
func NewServer(mgr *manager.Manager, assistant Assistant, images ImageGenerator, run *runner.Runner, tokens *auth.TokenSet, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	if tokens == nil {
		tokens = auth.NewTokenSet(nil)
	}
	r := gin.Default()
	s := &Server{
		manager:   mgr,
		assistant: assistant,
		images:    images,
		runner:    run,
		tokens:    tokens,
		router:    r,
		log:       log,
	}
	s.setupRoutes()
	return s
}

// Run starts the server on the specified address.
func (s *Server) Run(addr string) error {
	return s.router.Run(addr)
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.healthCheck)

	v1 := s.router.Group("/v1", auth.Middleware(s.tokens))
	v1.GET("/projects", s.handleListProjects)
	v1.POST("/projects", s.handleCreateProject)
	v1.GET("/projects/:id", s.handleGetProject)
	v1.DELETE("/projects/:id", s.handleDeleteProject)
	v1.GET("/projects/:id/messages", s.handleListMessages)
	v1.GET("/projects/:id/zip", s.handleProjectZip)
	v1.POST("/chat", s.handleChat)
	v1.POST("/generate", s.handleGenerate)
	v1.POST("/package", s.handlePackage)
	v1.POST("/execute", s.handleExecute)
	v1.GET("/executions", s.handleListExecutions)
	v1.POST("/images", s.handleImage)
	v1.GET("/search", s.handleSearch)
	v1.GET("/config", s.handleGetConfig)
	v1.PUT("/config", s.handlePutConfig)
	v1.POST("/tokens", s.handleAddToken)
	v1.DELETE("/tokens/:token", s.handleRemoveToken)
}

// Health check
func (s *Server) healthCheck(c *gin.Context) {
	c.Status(http.StatusOK)
}
