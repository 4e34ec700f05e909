package service

import (
	"context"
	"time"
)

// ToolInvocation describes one external command.
type ToolInvocation struct {
	Name    string
	Args    []string
	Dir     string
	Env     []string
	Stream  bool
	Timeout time.Duration
}

// ToolResult carries the combined output of a finished command.
type ToolResult struct {
	Output   string
	ExitCode int
	Duration time.Duration
}

// ToolService runs project tools such as linters, formatters and package managers.
type ToolService interface {
	Run(ctx context.Context, inv ToolInvocation) (*ToolResult, error)
	Shell(ctx context.Context, dir, script string) (*ToolResult, error)
}
