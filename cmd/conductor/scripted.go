package main

import (
	"context"
	"fmt"
	"strings"

	"conductor/internal/agent/ports"
)

// scriptedClient is the dry-run model: it inspects the working root once and
// then reports, exercising the full loop (tool call, observation, summary)
// without a provider.
type scriptedClient struct{}

func newScriptedClient() ports.LLMClient {
	return &scriptedClient{}
}

func (c *scriptedClient) Model() string { return "scripted/dry-run" }

func (c *scriptedClient) Complete(ctx context.Context, req ports.CompletionRequest) (*ports.CompletionResponse, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	if !hasToolResult(req.Messages) && hasTool(req.Tools, "list_dir") {
		return &ports.CompletionResponse{
			Content:    "Inspecting the working root first.",
			StopReason: ports.StopReasonToolUse,
			ToolCalls: []ports.ToolCall{{
				Name:      "list_dir",
				Arguments: map[string]any{"path": "."},
			}},
			Usage: ports.TokenUsage{CompletionTokens: 40, TotalTokens: 40},
		}, nil
	}

	return &ports.CompletionResponse{
		Content:    fmt.Sprintf("Dry run: inspected the working root, made no changes. Task: %s", firstUserLine(req.Messages)),
		StopReason: ports.StopReasonEndTurn,
		Usage:      ports.TokenUsage{CompletionTokens: 60, TotalTokens: 60},
	}, nil
}

func hasToolResult(messages []ports.Message) bool {
	for _, m := range messages {
		if m.Role == "tool" {
			return true
		}
	}
	return false
}

func hasTool(tools []ports.ToolDefinition, name string) bool {
	for _, t := range tools {
		if t.Name == name {
			return true
		}
	}
	return false
}

func firstUserLine(messages []ports.Message) string {
	for _, m := range messages {
		if m.Role == "user" {
			line, _, _ := strings.Cut(m.Content, "\n")
			return strings.TrimPrefix(line, "Task: ")
		}
	}
	return "unknown"
}
