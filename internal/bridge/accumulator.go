package bridge

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/bobmcallan/mcp-bridge/internal/ollama"
)

// ToolCallRequest is one fully-reassembled tool call from the backend.
type ToolCallRequest struct {
	ID        string
	Name      string
	Arguments map[string]any
}

// pendingCall collects fragments of one tool call while the stream is open.
type pendingCall struct {
	id   string
	name string
	args map[string]any
}

func (p *pendingCall) complete() bool {
	return p.name != "" && p.args != nil
}

// toolCallAccumulator reassembles tool calls that may arrive as fragments
// across multiple stream chunks. Fragments are keyed by call id when the
// backend supplies one, by stream index otherwise. Request order (first
// sight of each call) is preserved for dispatch.
type toolCallAccumulator struct {
	order []string
	calls map[string]*pendingCall
	seq   int
}

func newToolCallAccumulator() *toolCallAccumulator {
	return &toolCallAccumulator{calls: make(map[string]*pendingCall)}
}

// add folds one wire fragment into the accumulator. A fragment keyed to an
// already-complete call is a new call, not a continuation — backends that
// send whole calls omit both id and index, so the key alone can repeat.
// The same applies when both the existing entry and the fragment carry a
// name: argument fragments never repeat the name, so a second named
// fragment under a reused key is a second call even if the first one never
// sent an arguments object.
func (a *toolCallAccumulator) add(tc ollama.ToolCall) {
	key := tc.ID
	if key == "" {
		key = fmt.Sprintf("#%d", tc.Function.Index)
	}

	if existing, ok := a.calls[key]; ok {
		if !existing.complete() && !(existing.name != "" && tc.Function.Name != "") {
			if tc.Function.Name != "" {
				existing.name = tc.Function.Name
			}
			if tc.Function.Arguments != nil {
				if existing.args == nil {
					existing.args = make(map[string]any, len(tc.Function.Arguments))
				}
				for k, v := range tc.Function.Arguments {
					existing.args[k] = v
				}
			}
			return
		}
		// Distinct call under a reused key; give it its own slot.
		a.seq++
		key = fmt.Sprintf("%s/%d", key, a.seq)
	}

	a.calls[key] = &pendingCall{
		id:   tc.ID,
		name: tc.Function.Name,
		args: cloneArgs(tc.Function.Arguments),
	}
	a.order = append(a.order, key)
}

// finalize produces the reassembled calls in request order. Calls without a
// backend-supplied id get a synthesized one, unique within the conversation.
func (a *toolCallAccumulator) finalize() []ToolCallRequest {
	calls := make([]ToolCallRequest, 0, len(a.order))
	for _, key := range a.order {
		p := a.calls[key]
		if p.name == "" {
			continue // fragments never named a tool; nothing to dispatch
		}
		id := p.id
		if id == "" {
			id = uuid.New().String()
		}
		args := p.args
		if args == nil {
			args = map[string]any{}
		}
		calls = append(calls, ToolCallRequest{ID: id, Name: p.name, Arguments: args})
	}
	return calls
}

func cloneArgs(args map[string]any) map[string]any {
	if args == nil {
		return nil
	}
	cloned := make(map[string]any, len(args))
	for k, v := range args {
		cloned[k] = v
	}
	return cloned
}
