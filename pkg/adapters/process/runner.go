// Package process bridges local executables into the tool catalog. Commands
// must be registered up front; there is no ad-hoc execution path.
package process

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"

	"github.com/TobiWan1995/statemcp/pkg/domain"
	"github.com/TobiWan1995/statemcp/pkg/registry"
)

// RegisteredProcess is one allow-listed command.
type RegisteredProcess struct {
	Command     string
	Args        []string
	Env         map[string]string
	Description string
}

// Runner executes allow-listed local processes as tools.
type Runner struct {
	registry map[string]RegisteredProcess
	baseDir  string
}

// RunnerOption configures the runner.
type RunnerOption func(*Runner)

// WithRegistry populates the allow-list from a loaded config.
func WithRegistry(tools map[string]ProcessConfig) RunnerOption {
	return func(r *Runner) {
		for name, tool := range tools {
			r.registry[name] = RegisteredProcess{
				Command:     tool.Command,
				Args:        tool.Args,
				Env:         tool.Environment,
				Description: tool.Description,
			}
		}
	}
}

// WithBaseDir sets the working directory for executed processes.
func WithBaseDir(dir string) RunnerOption {
	return func(r *Runner) {
		r.baseDir = dir
	}
}

// NewRunner creates a process runner.
func NewRunner(opts ...RunnerOption) *Runner {
	r := &Runner{
		registry: make(map[string]RegisteredProcess),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds a trusted command to the allow-list.
func (r *Runner) Register(name string, command string, args ...string) {
	r.registry[name] = RegisteredProcess{
		Command: command,
		Args:    args,
	}
}

// Names returns the allow-listed command names.
func (r *Runner) Names() []string {
	names := make([]string, 0, len(r.registry))
	for name := range r.registry {
		names = append(names, name)
	}
	return names
}

// Run executes the named command. Invocation arguments are passed as
// STATEMCP_ARG_* environment variables rather than command-line flags, which
// closes the flag-injection hole of splicing caller input into argv.
func (r *Runner) Run(ctx context.Context, name string, args map[string]any) (*domain.ToolResult, error) {
	proc, ok := r.registry[name]
	if !ok {
		return nil, fmt.Errorf("process %q: %w", name, registry.ErrNotRegistered)
	}

	cmd := exec.CommandContext(ctx, proc.Command, proc.Args...)
	cmd.Dir = r.baseDir

	env := cmd.Environ()
	for k, v := range proc.Env {
		env = append(env, k+"="+v)
	}
	for k, v := range args {
		env = append(env, fmt.Sprintf("STATEMCP_ARG_%s=%s", strings.ToUpper(k), encodeArg(v)))
	}
	cmd.Env = env

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return &domain.ToolResult{
			IsError: true,
			Error:   fmt.Sprintf("execution failed: %v. Stderr: %s", err, stderr.String()),
		}, nil
	}

	return &domain.ToolResult{Content: decodeOutput(stdout.String())}, nil
}

// Tool exposes one allow-listed command as a registry tool function.
func (r *Runner) Tool(name string) registry.ToolFunc {
	return func(ctx context.Context, args map[string]any) (any, error) {
		return r.Run(ctx, name, args)
	}
}

func encodeArg(v any) string {
	switch v.(type) {
	case string, int, int64, float64, bool:
		return fmt.Sprintf("%v", v)
	case nil:
		return ""
	default:
		if data, err := json.Marshal(v); err == nil {
			return string(data)
		}
		return fmt.Sprintf("%v", v)
	}
}

// decodeOutput returns stdout as parsed JSON when the process emits a JSON
// document, otherwise as a trimmed string.
func decodeOutput(output string) any {
	trimmed := strings.TrimSpace(output)
	if (strings.HasPrefix(trimmed, "{") && strings.HasSuffix(trimmed, "}")) ||
		(strings.HasPrefix(trimmed, "[") && strings.HasSuffix(trimmed, "]")) {
		var parsed any
		if err := json.Unmarshal([]byte(trimmed), &parsed); err == nil {
			return parsed
		}
	}
	return trimmed
}
