package toolserver

import "context"

// ToolCall is one (tool, arguments) pair in a bulk request, mirroring the
// original CallToolRequest shape.
type ToolCall struct {
	Tool      string
	Arguments map[string]any
}

// ToolCallResult is one entry in a bulk response.
type ToolCallResult struct {
	Tool      string
	Arguments map[string]any
	IsError   bool
	Content   any
}

// BulkDispatcher runs call_tools_bulk / call_tool_bulk against a Registry
// (§4.5). Dispatch is strictly sequential within one process and never
// parallelizes, preserving the continue_on_error=false halt semantics.
type BulkDispatcher struct {
	registry *Registry
}

// NewBulkDispatcher builds a BulkDispatcher over the given Registry.
func NewBulkDispatcher(registry *Registry) *BulkDispatcher {
	return &BulkDispatcher{registry: registry}
}

// CallToolsBulk invokes each (tool, arguments) pair in input order. If
// continueOnError is false and a call reports isError, dispatch halts and
// returns the accumulated prefix (§4.5).
func (d *BulkDispatcher) CallToolsBulk(ctx context.Context, calls []ToolCall, continueOnError bool) []ToolCallResult {
	results := make([]ToolCallResult, 0, len(calls))
	for _, call := range calls {
		result := d.invoke(ctx, call.Tool, call.Arguments)
		results = append(results, result)
		if result.IsError && !continueOnError {
			break
		}
	}
	return results
}

// CallToolBulk repeats one tool across a batch of argument sets (§4.5).
func (d *BulkDispatcher) CallToolBulk(ctx context.Context, tool string, argumentSets []map[string]any, continueOnError bool) []ToolCallResult {
	calls := make([]ToolCall, len(argumentSets))
	for i, args := range argumentSets {
		calls[i] = ToolCall{Tool: tool, Arguments: args}
	}
	return d.CallToolsBulk(ctx, calls, continueOnError)
}

func (d *BulkDispatcher) invoke(ctx context.Context, tool string, args map[string]any) ToolCallResult {
	content, err := d.registry.Call(ctx, tool, args)
	if err != nil {
		return ToolCallResult{Tool: tool, Arguments: args, IsError: true, Content: err.Error()}
	}
	return ToolCallResult{Tool: tool, Arguments: args, IsError: false, Content: content}
}
