// Package bridge drives chat requests through the multi-turn tool-calling
// loop against Ollama, dispatching tool calls to their owning MCP servers.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/bobmcallan/mcp-bridge/internal/common"
	"github.com/bobmcallan/mcp-bridge/internal/mcp"
	"github.com/bobmcallan/mcp-bridge/internal/ollama"
)

// ErrToolLoopExceeded indicates the backend kept requesting tools past the
// configured turn bound. Fatal to the request, not the process.
var ErrToolLoopExceeded = errors.New("tool loop exceeded maximum turns")

// Sink receives chunks forwarded to the client in backend emission order.
type Sink interface {
	Chunk(chunk *ollama.ChatChunk) error
}

// Options configures an Orchestrator.
type Options struct {
	// MaxTurns bounds backend round trips per request. Zero means 10.
	MaxTurns int

	// InvokeTimeout bounds each tool invocation. Zero means 30s.
	InvokeTimeout time.Duration

	// MaxParallel bounds concurrent tool invocations per turn. Zero means 5.
	MaxParallel int
}

// Orchestrator runs one client request at a time through the
// request/tool-call/result loop. It is stateless across requests and safe
// for concurrent use.
type Orchestrator struct {
	client        *ollama.Client
	logger        *common.Logger
	maxTurns      int
	invokeTimeout time.Duration
	maxParallel   int
}

// New creates an orchestrator over the given Ollama client.
func New(client *ollama.Client, opts Options, logger *common.Logger) *Orchestrator {
	maxTurns := opts.MaxTurns
	if maxTurns <= 0 {
		maxTurns = 10
	}
	invokeTimeout := opts.InvokeTimeout
	if invokeTimeout <= 0 {
		invokeTimeout = 30 * time.Second
	}
	maxParallel := opts.MaxParallel
	if maxParallel <= 0 {
		maxParallel = 5
	}
	return &Orchestrator{
		client:        client,
		logger:        logger,
		maxTurns:      maxTurns,
		invokeTimeout: invokeTimeout,
		maxParallel:   maxParallel,
	}
}

// Stream runs the tool-calling loop for a streaming request. Content and
// thinking deltas are forwarded to the sink as they arrive; tool-call
// round trips are invisible to the client. The final backend record with
// done=true is forwarded only when a turn produces no tool calls.
func (o *Orchestrator) Stream(ctx context.Context, req *ollama.ChatRequest, catalog *mcp.Catalog, sink Sink) error {
	messages := append([]ollama.Message(nil), req.Messages...)
	tools := catalog.ToolDescriptors()

	for turn := 1; turn <= o.maxTurns; turn++ {
		turnReq := *req
		turnReq.Messages = messages
		turnReq.Tools = tools

		stream, err := o.client.ChatStream(ctx, &turnReq)
		if err != nil {
			return err
		}

		acc := newToolCallAccumulator()
		var assistant strings.Builder
		var doneChunk *ollama.ChatChunk

		for {
			chunk, err := stream.Next()
			if err == io.EOF {
				break
			}
			if err != nil {
				stream.Close()
				return err
			}
			if chunk.Error != "" {
				stream.Close()
				return fmt.Errorf("ollama error: %s", chunk.Error)
			}

			for _, tc := range chunk.Message.ToolCalls {
				acc.add(tc)
			}
			assistant.WriteString(chunk.Message.Content)

			if chunk.Done {
				// Held back until we know whether this turn requested tools.
				doneChunk = chunk
				continue
			}
			if chunk.Message.Content == "" && chunk.Message.Thinking == "" {
				continue // tool-call-only chunk, not client-visible
			}

			forwarded := *chunk
			forwarded.Message.ToolCalls = nil
			if err := sink.Chunk(&forwarded); err != nil {
				stream.Close()
				return err
			}
		}
		stream.Close()

		calls := acc.finalize()
		if len(calls) == 0 {
			if doneChunk != nil {
				return sink.Chunk(doneChunk)
			}
			return sink.Chunk(&ollama.ChatChunk{
				Model:      req.Model,
				Message:    ollama.Message{Role: "assistant"},
				Done:       true,
				DoneReason: "stop",
			})
		}

		if err := ctx.Err(); err != nil {
			return err
		}

		o.logger.Debug().Int("turn", turn).Int("tool_calls", len(calls)).Msg("dispatching tool calls")

		messages = append(messages, assistantMessage(assistant.String(), calls))
		results, err := o.dispatch(ctx, catalog, calls)
		if err != nil {
			return err
		}
		messages = append(messages, results...)
	}

	return fmt.Errorf("%w (%d)", ErrToolLoopExceeded, o.maxTurns)
}

// Complete runs the tool-calling loop for a non-streaming request and
// returns the backend's final response object.
func (o *Orchestrator) Complete(ctx context.Context, req *ollama.ChatRequest, catalog *mcp.Catalog) (*ollama.ChatChunk, error) {
	messages := append([]ollama.Message(nil), req.Messages...)
	tools := catalog.ToolDescriptors()

	for turn := 1; turn <= o.maxTurns; turn++ {
		turnReq := *req
		turnReq.Messages = messages
		turnReq.Tools = tools

		resp, err := o.client.Chat(ctx, &turnReq)
		if err != nil {
			return nil, err
		}

		acc := newToolCallAccumulator()
		for _, tc := range resp.Message.ToolCalls {
			acc.add(tc)
		}
		calls := acc.finalize()
		if len(calls) == 0 {
			return resp, nil
		}

		o.logger.Debug().Int("turn", turn).Int("tool_calls", len(calls)).Msg("dispatching tool calls")

		messages = append(messages, assistantMessage(resp.Message.Content, calls))
		results, err := o.dispatch(ctx, catalog, calls)
		if err != nil {
			return nil, err
		}
		messages = append(messages, results...)
	}

	return nil, fmt.Errorf("%w (%d)", ErrToolLoopExceeded, o.maxTurns)
}

// dispatch invokes the pending calls, concurrently across distinct servers,
// and returns one tool-role message per call in the backend's request order
// regardless of completion order. Per-call failures are folded into the
// result message; a lost connection or client cancellation aborts the run.
func (o *Orchestrator) dispatch(ctx context.Context, catalog *mcp.Catalog, calls []ToolCallRequest) ([]ollama.Message, error) {
	results := make([]ollama.Message, len(calls))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.maxParallel)

	for i, call := range calls {
		i, call := i, call
		g.Go(func() error {
			def, err := catalog.Resolve(call.Name)
			if err != nil {
				o.logger.Warn().Str("tool", call.Name).Msg("backend requested unknown tool")
				results[i] = toolErrorMessage(call, err)
				return nil
			}

			text, err := def.Owner().Invoke(gctx, def.OriginalName(), call.Arguments, o.invokeTimeout)
			if err != nil {
				if errors.Is(err, mcp.ErrConnectionLost) || errors.Is(err, context.Canceled) {
					return err
				}
				results[i] = toolErrorMessage(call, err)
				return nil
			}

			results[i] = ollama.Message{Role: "tool", ToolName: call.Name, Content: text}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// assistantMessage builds the transcript entry recording what the backend
// said and which tools it asked for.
func assistantMessage(content string, calls []ToolCallRequest) ollama.Message {
	toolCalls := make([]ollama.ToolCall, len(calls))
	for i, call := range calls {
		toolCalls[i] = ollama.ToolCall{
			ID: call.ID,
			Function: ollama.FunctionCall{
				Name:      call.Name,
				Arguments: call.Arguments,
			},
		}
	}
	return ollama.Message{Role: "assistant", Content: content, ToolCalls: toolCalls}
}

// toolErrorMessage folds a per-call failure back into the conversation so
// the backend can react to it.
func toolErrorMessage(call ToolCallRequest, err error) ollama.Message {
	return ollama.Message{
		Role:     "tool",
		ToolName: call.Name,
		Content:  fmt.Sprintf("Error: %v", err),
	}
}
