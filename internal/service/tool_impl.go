package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/afero"
)

type toolService struct {
	fs      afero.Fs
	timeout time.Duration
	stdout  io.Writer
}

// NewToolService creates a ToolService that looks up project-local binaries on
// fs and streams output to stdout when asked to.
func NewToolService(fs afero.Fs, stdout io.Writer) ToolService {
	if stdout == nil {
		stdout = os.Stdout
	}
	return &toolService{fs: fs, timeout: DefaultToolTimeout, stdout: stdout}
}

// resolveBinary prefers the project-local binary in node_modules/.bin.
func (s *toolService) resolveBinary(dir, name string) string {
	if strings.ContainsRune(name, filepath.Separator) {
		return name
	}
	local := filepath.Join(dir, "node_modules", ".bin", name)
	if info, err := s.fs.Stat(local); err == nil && !info.IsDir() {
		// exec resolves relative paths against cmd.Dir, which already is dir.
		if abs, err := filepath.Abs(local); err == nil {
			return abs
		}
	}
	return name
}

// Run executes the invocation and returns its output. A non-zero exit is an
// error, but the result is still returned so callers can show the output.
func (s *toolService) Run(ctx context.Context, inv ToolInvocation) (*ToolResult, error) {
	if inv.Name == "" {
		return nil, fmt.Errorf("tool name cannot be empty")
	}
	timeout := inv.Timeout
	if timeout <= 0 {
		timeout = s.timeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	dir := inv.Dir
	if dir == "" {
		dir = "."
	}
	cmd := exec.CommandContext(ctx, s.resolveBinary(dir, inv.Name), inv.Args...)
	cmd.Dir = dir
	cmd.WaitDelay = time.Second
	cmd.Env = append(os.Environ(), inv.Env...)
	var output bytes.Buffer
	var sink io.Writer = &output
	if inv.Stream || os.Getenv("GITHUB_ACTIONS") == githubActionsTrue {
		sink = io.MultiWriter(&output, s.stdout)
	}
	cmd.Stdout = sink
	cmd.Stderr = sink

	start := time.Now()
	err := cmd.Run()
	result := &ToolResult{Output: output.String(), Duration: time.Since(start)}
	if err == nil {
		return result, nil
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		result.ExitCode = -1
		return result, fmt.Errorf("%s timed out after %v", inv.Name, timeout)
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		result.ExitCode = exitErr.ExitCode()
		return result, fmt.Errorf("%s exited with code %d", inv.Name, result.ExitCode)
	}
	result.ExitCode = -1
	return result, fmt.Errorf("failed to run %s: %w", inv.Name, err)
}

// Shell runs script through sh -c.
func (s *toolService) Shell(ctx context.Context, dir, script string) (*ToolResult, error) {
	if strings.TrimSpace(script) == "" {
		return nil, fmt.Errorf("script cannot be empty")
	}
	return s.Run(ctx, ToolInvocation{Name: "sh", Args: []string{"-c", script}, Dir: dir})
}
