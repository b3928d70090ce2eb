// Package ollama implements the client side of Ollama's chat API,
// including the line-delimited streaming transport.
package ollama

import "encoding/json"

// Message is one conversation message in Ollama's chat format.
type Message struct {
	Role      string     `json:"role"`
	Content   string     `json:"content"`
	Thinking  string     `json:"thinking,omitempty"`
	ToolName  string     `json:"tool_name,omitempty"`
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
}

// ToolCall is a tool invocation requested by the model. The id is optional
// on the wire; the bridge synthesizes one when it is absent.
type ToolCall struct {
	ID       string       `json:"id,omitempty"`
	Function FunctionCall `json:"function"`
}

// FunctionCall carries the tool name and structured arguments. Index
// identifies the call when a single call's fragments span several chunks.
type FunctionCall struct {
	Index     int            `json:"index,omitempty"`
	Name      string         `json:"name,omitempty"`
	Arguments map[string]any `json:"arguments,omitempty"`
}

// Tool is one entry of the tools array attached to a chat request.
type Tool struct {
	Type     string       `json:"type"`
	Function ToolFunction `json:"function"`
}

// ToolFunction describes a callable tool to the model.
type ToolFunction struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"`
}

// ChatRequest is the body of POST /api/chat. Think, Format and KeepAlive are
// passed through as raw JSON so client values survive the round trip intact.
type ChatRequest struct {
	Model     string          `json:"model"`
	Messages  []Message       `json:"messages"`
	Stream    *bool           `json:"stream,omitempty"`
	Tools     []Tool          `json:"tools,omitempty"`
	Think     json.RawMessage `json:"think,omitempty"`
	Format    json.RawMessage `json:"format,omitempty"`
	Options   map[string]any  `json:"options,omitempty"`
	KeepAlive json.RawMessage `json:"keep_alive,omitempty"`
}

// Streaming reports whether the client asked for a streamed response.
// Defaults to false when the field is absent.
func (r *ChatRequest) Streaming() bool {
	return r.Stream != nil && *r.Stream
}

// ChatChunk is one line-delimited record of a chat response. For
// non-streaming requests the entire response is a single ChatChunk.
type ChatChunk struct {
	Model      string  `json:"model,omitempty"`
	CreatedAt  string  `json:"created_at,omitempty"`
	Message    Message `json:"message"`
	Done       bool    `json:"done"`
	DoneReason string  `json:"done_reason,omitempty"`
	Error      string  `json:"error,omitempty"`

	// Metrics, present on the final record of a response.
	TotalDuration      int64 `json:"total_duration,omitempty"`
	LoadDuration       int64 `json:"load_duration,omitempty"`
	PromptEvalCount    int   `json:"prompt_eval_count,omitempty"`
	PromptEvalDuration int64 `json:"prompt_eval_duration,omitempty"`
	EvalCount          int   `json:"eval_count,omitempty"`
	EvalDuration       int64 `json:"eval_duration,omitempty"`
}
