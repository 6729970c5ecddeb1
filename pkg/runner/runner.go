// Package runner executes user-supplied code snippets in a child
// process with a hard deadline and capped output.
package runner

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/codeforge-ai/codeforge/pkg/common/errors"
)

// DefaultTimeout bounds a single run when the caller does not set one.
const DefaultTimeout = 10 * time.Second

// DefaultOutputLimit caps captured stdout/stderr bytes per stream.
const DefaultOutputLimit = 64 * 1024

// Command describes how to run one language: the interpreter binary,
// fixed arguments, and the extension for the temp source file. The
// source path is appended as the final argument.
type Command struct {
	Bin  string
	Args []string
	Ext  string
}

// DefaultCommands maps the supported languages to their interpreters.
func DefaultCommands() map[string]Command {
	return map[string]Command{
		"python":     {Bin: "python3", Ext: ".py"},
		"javascript": {Bin: "node", Ext: ".js"},
		"bash":       {Bin: "bash", Ext: ".sh"},
	}
}

// Result captures one finished run.
type Result struct {
	Stdout   string        `json:"stdout"`
	Stderr   string        `json:"stderr"`
	ExitCode int           `json:"exit_code"`
	Duration time.Duration `json:"duration_ns"`
	TimedOut bool          `json:"timed_out"`
}

// Runner executes snippets using an injected language map.
type Runner struct {
	commands    map[string]Command
	timeout     time.Duration
	outputLimit int
	log         *zap.Logger
}

// Option configures a Runner.
type Option func(*Runner)

// WithTimeout overrides the per-run deadline.
func WithTimeout(d time.Duration) Option {
	return func(r *Runner) { r.timeout = d }
}

// WithOutputLimit overrides the per-stream capture cap.
func WithOutputLimit(n int) Option {
	return func(r *Runner) { r.outputLimit = n }
}

// WithCommands replaces the language map entirely.
func WithCommands(commands map[string]Command) Option {
	return func(r *Runner) { r.commands = commands }
}

// New builds a Runner with the default language map.
func New(log *zap.Logger, opts ...Option) *Runner {
	if log == nil {
		log = zap.NewNop()
	}
	r := &Runner{
		commands:    DefaultCommands(),
		timeout:     DefaultTimeout,
		outputLimit: DefaultOutputLimit,
		log:         log,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Languages lists the supported language names.
func (r *Runner) Languages() []string {
	names := make([]string, 0, len(r.commands))
	for name := range r.commands {
		names = append(names, name)
	}
	return names
}

// Run writes code to a temp file and executes the configured
// interpreter. A non-zero exit from the child is reported in the
// Result, not as an error; errors are reserved for unknown languages
// and failures to start the process at all.
func (r *Runner) Run(ctx context.Context, language, code string) (*Result, error) {
	cmd, ok := r.commands[language]
	if !ok {
		return nil, fmt.Errorf("%w: unsupported language %q", errors.ErrInvalidInput, language)
	}
	if code == "" {
		return nil, fmt.Errorf("%w: empty code", errors.ErrInvalidInput)
	}

	dir, err := os.MkdirTemp("", "codeforge-run-")
	if err != nil {
		return nil, fmt.Errorf("create sandbox dir: %w", err)
	}
	defer os.RemoveAll(dir)

	src := filepath.Join(dir, "snippet"+cmd.Ext)
	if err := os.WriteFile(src, []byte(code), 0o600); err != nil {
		return nil, fmt.Errorf("write snippet: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	args := append(append([]string{}, cmd.Args...), src)
	proc := exec.CommandContext(ctx, cmd.Bin, args...)
	proc.Dir = dir

	var stdout, stderr bytes.Buffer
	proc.Stdout = &limitedWriter{w: &stdout, n: r.outputLimit}
	proc.Stderr = &limitedWriter{w: &stderr, n: r.outputLimit}

	start := time.Now()
	err = proc.Run()
	elapsed := time.Since(start)

	res := &Result{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: elapsed,
		TimedOut: ctx.Err() == context.DeadlineExceeded,
	}

	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			res.ExitCode = exitErr.ExitCode()
		} else if res.TimedOut {
			res.ExitCode = -1
		} else {
			return nil, fmt.Errorf("start %s: %w", cmd.Bin, err)
		}
	}

	r.log.Debug("snippet executed",
		zap.String("language", language),
		zap.Int("exit_code", res.ExitCode),
		zap.Bool("timed_out", res.TimedOut),
		zap.Duration("duration", elapsed))
	return res, nil
}

// limitedWriter keeps the first n bytes and discards the rest, so a
// runaway snippet cannot balloon the response.
type limitedWriter struct {
	w *bytes.Buffer
	n int
}

func (lw *limitedWriter) Write(p []byte) (int, error) {
	if remaining := lw.n - lw.w.Len(); remaining > 0 {
		if len(p) > remaining {
			lw.w.Write(p[:remaining])
		} else {
			lw.w.Write(p)
		}
	}
	return len(p), nil
}
