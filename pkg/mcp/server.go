// Package mcp exposes the platform to MCP clients over stdio.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/codeforge-ai/codeforge/internal/manager"
	"github.com/codeforge-ai/codeforge/pkg/extract"
	"github.com/codeforge-ai/codeforge/pkg/runner"
)

// Assistant is the builder model client consumed by the generate_app
// tool.
type Assistant interface {
	GenerateApp(ctx context.Context, prompt string) (string, error)
}

// MCPServer wraps the build manager to expose it via MCP.
type MCPServer struct {
	manager   *manager.Manager
	assistant Assistant
	runner    *runner.Runner
	log       *zap.Logger
}

// Run starts the MCP server on Stdio.
func Run(ctx context.Context, mgr *manager.Manager, assistant Assistant, run *runner.Runner, log *zap.Logger) error {
	if log == nil {
		log = zap.NewNop()
	}

	s := server.NewMCPServer(
		"CodeForge-Backend",
		"0.1.0",
		server.WithResourceCapabilities(true, true),
		server.WithLogging(),
	)

	ms := &MCPServer{
		manager:   mgr,
		assistant: assistant,
		runner:    run,
		log:       log,
	}

	// --- Resources ---

	// Resource: Generated Files
	// Pattern: codeforge://projects/{id}/files
	s.AddResource(
		mcp.NewResource(
			"codeforge://projects/{id}/files",
			"Generated Files",
			mcp.WithResourceDescription("File listing of a project's most recent generated build"),
			mcp.WithMIMEType("application/json"),
		),
		ms.handleProjectFiles,
	)

	// --- Tools ---

	// Tool: Generate App
	s.AddTool(
		mcp.NewTool(
			"generate_app",
			mcp.WithDescription("Generate a complete application from a natural-language prompt and store the result in a project."),
			mcp.WithString("project_id", mcp.Required(), mcp.Description("Target project ID")),
			mcp.WithString("prompt", mcp.Required(), mcp.Description("What the application should do")),
		),
		ms.handleGenerateApp,
	)

	// Tool: Run Code
	s.AddTool(
		mcp.NewTool(
			"run_code",
			mcp.WithDescription("Execute a code snippet in a sandbox and return stdout, stderr and the exit code."),
			mcp.WithString("language", mcp.Required(), mcp.Description("Snippet language (python, javascript, bash)")),
			mcp.WithString("code", mcp.Required(), mcp.Description("The code to execute")),
		),
		ms.handleRunCode,
	)

	// Tool: List Projects
	s.AddTool(
		mcp.NewTool(
			"list_projects",
			mcp.WithDescription("List all projects with their IDs and names."),
		),
		ms.handleListProjects,
	)

	log.Info("starting MCP server on stdio")
	return server.ServeStdio(s)
}

// --- Resource Handlers ---

func (ms *MCPServer) handleProjectFiles(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	// Extract the ID from the URI: codeforge://projects/{id}/files
	uriStr := request.Params.URI
	prefix := "codeforge://projects/"
	suffix := "/files"
	if !strings.HasPrefix(uriStr, prefix) || !strings.HasSuffix(uriStr, suffix) {
		return nil, fmt.Errorf("invalid URI format")
	}
	id := strings.TrimSuffix(strings.TrimPrefix(uriStr, prefix), suffix)

	build, err := ms.manager.GetBuild(id)
	if err != nil {
		return nil, fmt.Errorf("project not found: %s", id)
	}

	jsonBytes, err := json.MarshalIndent(build.Files, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal files: %w", err)
	}

	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      request.Params.URI,
			MIMEType: "application/json",
			Text:     string(jsonBytes),
		},
	}, nil
}

// --- Tool Handlers ---

func (ms *MCPServer) handleGenerateApp(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	projectID, ok := args["project_id"].(string)
	if !ok {
		return mcp.NewToolResultError("project_id argument required"), nil
	}
	prompt, ok := args["prompt"].(string)
	if !ok || prompt == "" {
		return mcp.NewToolResultError("prompt argument required"), nil
	}
	if ms.assistant == nil {
		return mcp.NewToolResultError("AI service not configured"), nil
	}

	if _, err := ms.manager.Store().GetProject(projectID); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("project lookup failed: %v", err)), nil
	}

	raw, err := ms.assistant.GenerateApp(ctx, prompt)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("generation failed: %v", err)), nil
	}

	files := extract.Files(raw)
	if err := ms.manager.PutBuild(projectID, prompt, raw, files); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to store build: %v", err)), nil
	}

	summary := make([]string, 0, len(files)+1)
	summary = append(summary, fmt.Sprintf("Generated %d file(s):", len(files)))
	for _, f := range files {
		summary = append(summary, fmt.Sprintf("  %s (%s, %d bytes)", f.Path, f.Language, len(f.Content)))
	}

	return mcp.NewToolResultText(strings.Join(summary, "\n")), nil
}

func (ms *MCPServer) handleRunCode(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	language, ok := args["language"].(string)
	if !ok {
		return mcp.NewToolResultError("language argument required"), nil
	}
	code, ok := args["code"].(string)
	if !ok {
		return mcp.NewToolResultError("code argument required"), nil
	}

	result, err := ms.runner.Run(ctx, language, code)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("run failed: %v", err)), nil
	}

	out := map[string]interface{}{
		"stdout":    result.Stdout,
		"stderr":    result.Stderr,
		"exit_code": result.ExitCode,
		"timed_out": result.TimedOut,
	}
	jsonBytes, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return mcp.NewToolResultError("failed to marshal result"), nil
	}

	return mcp.NewToolResultText(string(jsonBytes)), nil
}

func (ms *MCPServer) handleListProjects(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	projects, err := ms.manager.Store().ListProjects()
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("listing failed: %v", err)), nil
	}
	if len(projects) == 0 {
		return mcp.NewToolResultText("No projects found."), nil
	}

	var formatted []string
	for _, p := range projects {
		formatted = append(formatted, fmt.Sprintf("%s  %s", p.ID, p.Name))
	}
	return mcp.NewToolResultText(strings.Join(formatted, "\n")), nil
}
