// Package domain implements the bounded execution loop: drive a conversation
// with a model-completion capability that may request tool calls, until the
// model signals completion, the run is cancelled, or the iteration budget is
// exhausted.
package domain

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"conductor/internal/agent/ports"
	id "conductor/internal/utils/id"
)

const defaultMaxIterations = 10

// Engine orchestrates the think-act-observe cycle for one task at a time.
// A single Engine may run many tasks; per-run state lives on the stack, so
// concurrent Run calls never share mutable state.
type Engine struct {
	maxIterations int
	logger        ports.Logger
	clock         ports.Clock
	completion    completionConfig
}

type completionConfig struct {
	temperature float64
	maxTokens   int
}

// Config captures the dependencies required to construct an Engine.
type Config struct {
	MaxIterations int
	Temperature   float64
	MaxTokens     int
	Logger        ports.Logger
	Clock         ports.Clock
}

// NewEngine builds an execution loop engine.
func NewEngine(cfg Config) *Engine {
	maxIterations := cfg.MaxIterations
	if maxIterations <= 0 {
		maxIterations = defaultMaxIterations
	}
	return &Engine{
		maxIterations: maxIterations,
		logger:        ports.OrNop(cfg.Logger),
		clock:         ports.OrSystem(cfg.Clock),
		completion: completionConfig{
			temperature: cfg.Temperature,
			maxTokens:   cfg.MaxTokens,
		},
	}
}

// RunSpec describes one execution: the task identity, the prompt, and the
// collaborators the loop calls out to.
type RunSpec struct {
	TaskID        string
	Role          string
	SystemPrompt  string
	Prompt        string
	WorkingDir    string
	MaxIterations int // overrides the engine default when > 0
	LLM           ports.LLMClient
	Tools         ports.ToolRegistry
	Listener      ports.EventListener
}

// runState is the per-run accumulator. Private to one Run call.
type runState struct {
	messages    []ports.Message
	iterations  int
	tokensUsed  int
	records     []ports.ToolExecutionRecord
	fileChanges []ports.FileChange
	lastText    string
}

// Run drives the loop to a terminal state and always returns a structured
// result; errors surface as Success=false, never as a panic or error return.
// Exactly one terminal event (completed or failed) is emitted per run.
func (e *Engine) Run(ctx context.Context, spec RunSpec) *ports.AgentResult {
	start := e.clock.Now()
	maxIterations := spec.MaxIterations
	if maxIterations <= 0 {
		maxIterations = e.maxIterations
	}

	e.logger.Info("starting execution loop: task=%s role=%s max_iterations=%d", spec.TaskID, spec.Role, maxIterations)

	state := &runState{}
	state.messages = append(state.messages, ports.Message{Role: "user", Content: spec.Prompt})

	e.emit(spec, &StartedEvent{
		BaseEvent:     newBaseEvent(spec.TaskID, e.clock.Now()),
		Role:          spec.Role,
		MaxIterations: maxIterations,
	})

	if spec.LLM == nil {
		return e.fail(spec, state, start, "no model client configured")
	}
	if spec.Tools == nil {
		return e.fail(spec, state, start, "no tool registry configured")
	}

	toolDefs := spec.Tools.List()

	for state.iterations < maxIterations {
		// Cancellation is cooperative: checked between iterations, never
		// inside a tool call already in flight.
		if ctx.Err() != nil {
			e.logger.Info("run cancelled: task=%s after %d iteration(s)", spec.TaskID, state.iterations)
			return e.failWithReason(spec, state, start, fmt.Sprintf("cancelled: %v", ctx.Err()), "cancelled")
		}

		state.iterations++
		e.logger.Debug("iteration %d/%d: task=%s messages=%d", state.iterations, maxIterations, spec.TaskID, len(state.messages))

		e.emit(spec, &IterationStartEvent{
			BaseEvent:  newBaseEvent(spec.TaskID, e.clock.Now()),
			Iteration:  state.iterations,
			TotalIters: maxIterations,
		})

		response, err := e.think(ctx, spec, state, toolDefs)
		if err != nil {
			e.logger.Error("model completion failed: task=%s iteration=%d err=%v", spec.TaskID, state.iterations, err)
			return e.fail(spec, state, start, fmt.Sprintf("model completion failed: %v", err))
		}

		state.tokensUsed += response.Usage.TotalTokens

		assistant := ports.Message{
			Role:      "assistant",
			Content:   response.Content,
			ToolCalls: response.ToolCalls,
		}
		if strings.TrimSpace(response.Content) != "" || len(response.ToolCalls) > 0 {
			state.messages = append(state.messages, assistant)
		}

		if text := strings.TrimSpace(response.Content); text != "" {
			state.lastText = text
			e.emit(spec, &ThinkingEvent{
				BaseEvent: newBaseEvent(spec.TaskID, e.clock.Now()),
				Iteration: state.iterations,
				Content:   text,
			})
		}

		if len(response.ToolCalls) == 0 {
			if response.EndOfTurn() {
				if state.lastText != "" {
					e.logger.Info("natural end of turn: task=%s iterations=%d", spec.TaskID, state.iterations)
					return e.complete(spec, state, start)
				}
				// End of turn but the run never produced any text: there is
				// no summary to complete with.
				e.logger.Warn("end of turn with no output: task=%s iteration=%d", spec.TaskID, state.iterations)
				return e.failWithReason(spec, state, start, "model ended turn without producing output", "no_output")
			}
			// No tool calls and the turn is not over: give the model another
			// turn within the budget.
			e.logger.Warn("no tool calls and no final text, continuing loop: task=%s", spec.TaskID)
			continue
		}

		for _, call := range response.ToolCalls {
			if call.ID == "" {
				call.ID = id.NewCallID()
			}
			call.TaskID = spec.TaskID
			result := e.executeCall(ctx, spec, state, call)
			state.messages = append(state.messages, toolMessage(result))
		}
	}

	e.logger.Warn("iteration budget exhausted: task=%s max=%d", spec.TaskID, maxIterations)
	return e.failWithReason(spec, state, start,
		fmt.Sprintf("exceeded max iterations (%d)", maxIterations), "max_iterations")
}

// think performs one model completion with tracing.
func (e *Engine) think(ctx context.Context, spec RunSpec, state *runState, toolDefs []ports.ToolDefinition) (*ports.CompletionResponse, error) {
	spanCtx, span := startLoopSpan(ctx, traceSpanLLMGenerate, spec.TaskID, spec.Role,
		attribute.Int(traceAttrIteration, state.iterations),
		attribute.String(traceAttrModel, spec.LLM.Model()),
	)
	defer span.End()

	response, err := spec.LLM.Complete(spanCtx, ports.CompletionRequest{
		SystemPrompt: spec.SystemPrompt,
		Messages:     state.messages,
		Tools:        toolDefs,
		Temperature:  e.completion.temperature,
		MaxTokens:    e.completion.maxTokens,
	})
	markSpanResult(span, err)
	if err != nil {
		return nil, err
	}
	return response, nil
}

// executeCall runs one tool call, converting every failure mode (unknown
// tool, validation failure, execution error, panic) into a failed ToolResult
// fed back to the model, so one bad call cannot crash the run.
func (e *Engine) executeCall(ctx context.Context, spec RunSpec, state *runState, call ports.ToolCall) *ports.ToolResult {
	e.emit(spec, &ToolCallEvent{
		BaseEvent: newBaseEvent(spec.TaskID, e.clock.Now()),
		Iteration: state.iterations,
		CallID:    call.ID,
		ToolName:  call.Name,
		Arguments: call.Arguments,
	})

	callStart := e.clock.Now()
	result := e.invokeTool(ctx, spec, call)
	duration := e.clock.Now().Sub(callStart)

	record := ports.ToolExecutionRecord{
		CallID:    call.ID,
		Tool:      call.Name,
		Arguments: call.Arguments,
		Output:    result.Content,
		Timestamp: callStart,
		Duration:  duration,
	}
	if result.Error != nil {
		record.Error = result.Error.Error()
	}
	state.records = append(state.records, record)

	if result.Error == nil {
		if change, ok := classifyFileChange(call); ok {
			state.fileChanges = recordFileChange(state.fileChanges, change)
		}
	}

	e.emit(spec, &ToolResultEvent{
		BaseEvent: newBaseEvent(spec.TaskID, e.clock.Now()),
		Iteration: state.iterations,
		CallID:    call.ID,
		ToolName:  call.Name,
		Result:    result.Content,
		Error:     result.Error,
		Duration:  duration,
	})

	return result
}

// invokeTool performs lookup, validation and execution with panic recovery.
func (e *Engine) invokeTool(ctx context.Context, spec RunSpec, call ports.ToolCall) (result *ports.ToolResult) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("tool %s panicked: %v", call.Name, r)
			result = failedResult(call, fmt.Errorf("tool %s panicked: %v", call.Name, r))
		}
	}()

	tool, err := spec.Tools.Get(call.Name)
	if err != nil {
		// Unknown tool names are routed back to the model, not fatal.
		e.logger.Warn("unknown tool requested: %s", call.Name)
		return failedResult(call, fmt.Errorf("unknown tool: %s", call.Name))
	}

	if validator, ok := tool.(ports.ToolValidator); ok {
		if err := validator.Validate(call.Arguments); err != nil {
			e.logger.Warn("tool %s rejected arguments: %v", call.Name, err)
			return failedResult(call, fmt.Errorf("invalid arguments for %s: %w", call.Name, err))
		}
	}

	spanCtx, span := startLoopSpan(ctx, traceSpanToolExecute, spec.TaskID, spec.Role,
		attribute.String(traceAttrToolName, call.Name),
	)
	defer span.End()

	res, err := tool.Execute(spanCtx, call)
	markSpanResult(span, err)
	if err != nil {
		return failedResult(call, err)
	}
	if res == nil {
		return failedResult(call, fmt.Errorf("tool %s returned no result", call.Name))
	}
	if res.CallID == "" {
		res.CallID = call.ID
	}
	return res
}

// toolMessage converts a tool result into the next transcript turn.
func toolMessage(result *ports.ToolResult) ports.Message {
	var content string
	switch {
	case result.Error != nil:
		content = fmt.Sprintf("Tool call %s failed: %v", result.CallID, result.Error)
	case strings.TrimSpace(result.Content) != "":
		content = strings.TrimSpace(result.Content)
	default:
		content = fmt.Sprintf("Tool call %s completed successfully.", result.CallID)
	}
	return ports.Message{
		Role:        "tool",
		Content:     content,
		ToolCallID:  result.CallID,
		ToolResults: []ports.ToolResult{*result},
	}
}

func failedResult(call ports.ToolCall, err error) *ports.ToolResult {
	return &ports.ToolResult{CallID: call.ID, Error: err}
}

func (e *Engine) complete(spec RunSpec, state *runState, start time.Time) *ports.AgentResult {
	duration := e.clock.Now().Sub(start)
	e.emit(spec, &CompletedEvent{
		BaseEvent:  newBaseEvent(spec.TaskID, e.clock.Now()),
		Summary:    state.lastText,
		Iterations: state.iterations,
		ToolCalls:  len(state.records),
		Duration:   duration,
	})
	return &ports.AgentResult{
		TaskID:      spec.TaskID,
		Success:     true,
		Summary:     state.lastText,
		StopReason:  "end_turn",
		Iterations:  state.iterations,
		ToolRecords: state.records,
		FileChanges: state.fileChanges,
		TokensUsed:  state.tokensUsed,
		Duration:    duration,
	}
}

func (e *Engine) fail(spec RunSpec, state *runState, start time.Time, reason string) *ports.AgentResult {
	return e.failWithReason(spec, state, start, reason, "error")
}

func (e *Engine) failWithReason(spec RunSpec, state *runState, start time.Time, reason, stopReason string) *ports.AgentResult {
	duration := e.clock.Now().Sub(start)
	e.emit(spec, &FailedEvent{
		BaseEvent:  newBaseEvent(spec.TaskID, e.clock.Now()),
		Reason:     reason,
		Iterations: state.iterations,
		Duration:   duration,
	})
	return &ports.AgentResult{
		TaskID:      spec.TaskID,
		Success:     false,
		Error:       reason,
		StopReason:  stopReason,
		Iterations:  state.iterations,
		ToolRecords: state.records,
		FileChanges: state.fileChanges,
		TokensUsed:  state.tokensUsed,
		Duration:    duration,
	}
}

func (e *Engine) emit(spec RunSpec, event AgentEvent) {
	if spec.Listener != nil {
		spec.Listener.OnEvent(event)
	}
}
