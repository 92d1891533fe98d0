package ports

import "context"

// Stop reasons reported by a model completion.
const (
	StopReasonEndTurn = "end_turn"
	StopReasonToolUse = "tool_use"
)

// LLMClient represents any model-completion provider.
type LLMClient interface {
	// Complete sends the transcript and returns a response (non-streaming)
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)

	// Model returns the model identifier
	Model() string
}

// CompletionRequest contains all parameters for a model completion.
type CompletionRequest struct {
	SystemPrompt string           `json:"system,omitempty"`
	Messages     []Message        `json:"messages"`
	Tools        []ToolDefinition `json:"tools,omitempty"`
	Temperature  float64          `json:"temperature,omitempty"`
	MaxTokens    int              `json:"max_tokens,omitempty"`
	Metadata     map[string]any   `json:"metadata,omitempty"`
}

// CompletionResponse is the model's response: zero or more text blocks
// (joined into Content), zero or more tool invocations, and a stop signal
// distinguishing "more tool calls pending" from a natural end of turn.
type CompletionResponse struct {
	Content    string         `json:"content"`
	ToolCalls  []ToolCall     `json:"tool_calls,omitempty"`
	StopReason string         `json:"stop_reason"`
	Usage      TokenUsage     `json:"usage"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// EndOfTurn reports whether the model signalled a natural end of turn.
func (r *CompletionResponse) EndOfTurn() bool {
	return len(r.ToolCalls) == 0 && r.StopReason != StopReasonToolUse
}

// TokenUsage tracks token consumption.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Message represents a conversation message.
type Message struct {
	Role        string         `json:"role"`
	Content     string         `json:"content"`
	ToolCallID  string         `json:"tool_call_id,omitempty"`
	ToolCalls   []ToolCall     `json:"tool_calls,omitempty"`
	ToolResults []ToolResult   `json:"tool_results,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}
