// Package toolserver implements the sub-servers (Manage, Ask, Learn,
// Remember), the tool registry, and bulk dispatch (§4.4, §4.5).
package toolserver

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kbmcp/kbmcp/internal/kb"
)

// defaultSessionKey is the ProjectContextStore key used for every call.
// The spec scopes ProjectContext per request, but this service is a
// single process fronting one agent session at a time (§1 Non-goals: no
// cross-node coordination) so one shared slot is sufficient; a transport
// that multiplexes distinct concurrent callers would derive a real
// per-connection key instead.
const defaultSessionKey = "default"

// Mount registers every tool named in §6.1 onto mcpServer, and onto
// registry so call_tools_bulk/call_tool_bulk (§4.5) can reach them by
// fully-qualified name as well.
func Mount(mcpServer *server.MCPServer, registry *Registry, manage *ManageServer, ask *AskServer, learn *LearnServer, remember *RememberServer, pcStore *ProjectContextStore) {
	add := func(name string, tool mcp.Tool, fn ToolFunc) {
		registry.Register(name, fn)
		mcpServer.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			result, err := fn(ctx, req.GetArguments())
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			if result == nil {
				return mcp.NewToolResultText("ok"), nil
			}
			return mcp.NewToolResultText(fmt.Sprintf("%v", result)), nil
		})
	}

	mountManage(add, manage)
	mountAsk(add, ask)
	mountLearn(add, learn)
	mountRemember(add, remember, pcStore)
	mountBulk(add, registry)
}

func mountManage(add func(string, mcp.Tool, ToolFunc), s *ManageServer) {
	add("manage_create",
		mcp.NewTool("manage_create",
			mcp.WithDescription("Create a knowledge base."),
			mcp.WithString("name", mcp.Required()),
			mcp.WithString("type", mcp.Required()),
			mcp.WithString("data_source", mcp.Required()),
			mcp.WithString("description"),
		),
		func(ctx context.Context, args map[string]any) (any, error) {
			proto := kb.CreateProto{
				Name:        stringArg(args, "name"),
				Type:        stringArg(args, "type"),
				DataSource:  stringArg(args, "data_source"),
				Description: stringArg(args, "description"),
			}
			created, err := s.Create(ctx, proto)
			if err != nil {
				return nil, err
			}
			return renderKB(created), nil
		})

	add("manage_get_by_name",
		mcp.NewTool("manage_get_by_name",
			mcp.WithDescription("Get a knowledge base by name."),
			mcp.WithString("name", mcp.Required()),
		),
		func(ctx context.Context, args map[string]any) (any, error) {
			found, err := s.GetByName(ctx, stringArg(args, "name"))
			if err != nil {
				return nil, err
			}
			return renderKB(found), nil
		})

	add("manage_get_by_backend_id",
		mcp.NewTool("manage_get_by_backend_id",
			mcp.WithDescription("Get a knowledge base by backend id."),
			mcp.WithString("backend_id", mcp.Required()),
		),
		func(ctx context.Context, args map[string]any) (any, error) {
			found, err := s.GetByBackendID(ctx, stringArg(args, "backend_id"))
			if err != nil {
				return nil, err
			}
			return renderKB(found), nil
		})

	add("manage_delete_by_name",
		mcp.NewTool("manage_delete_by_name",
			mcp.WithDescription("Delete a knowledge base by name."),
			mcp.WithString("name", mcp.Required()),
		),
		func(ctx context.Context, args map[string]any) (any, error) {
			return nil, s.DeleteByName(ctx, stringArg(args, "name"))
		})

	add("manage_delete_by_backend_id",
		mcp.NewTool("manage_delete_by_backend_id",
			mcp.WithDescription("Delete a knowledge base by backend id."),
			mcp.WithString("backend_id", mcp.Required()),
		),
		func(ctx context.Context, args map[string]any) (any, error) {
			return nil, s.DeleteByBackendID(ctx, stringArg(args, "backend_id"))
		})

	add("manage_update_by_name",
		mcp.NewTool("manage_update_by_name",
			mcp.WithDescription("Update a knowledge base's name/description by its current name."),
			mcp.WithString("name", mcp.Required()),
			mcp.WithString("new_name"),
			mcp.WithString("description"),
		),
		func(ctx context.Context, args map[string]any) (any, error) {
			return nil, s.UpdateByName(ctx, stringArg(args, "name"), updateProtoFromArgs(args))
		})

	add("manage_update_by_backend_id",
		mcp.NewTool("manage_update_by_backend_id",
			mcp.WithDescription("Update a knowledge base's name/description by its backend id."),
			mcp.WithString("backend_id", mcp.Required()),
			mcp.WithString("new_name"),
			mcp.WithString("description"),
		),
		func(ctx context.Context, args map[string]any) (any, error) {
			return nil, s.UpdateByBackendID(ctx, stringArg(args, "backend_id"), updateProtoFromArgs(args))
		})
}

func updateProtoFromArgs(args map[string]any) kb.UpdateProto {
	var update kb.UpdateProto
	if v, ok := args["new_name"].(string); ok && v != "" {
		update.Name = &v
	}
	if v, ok := args["description"].(string); ok && v != "" {
		update.Description = &v
	}
	return update
}

func mountAsk(add func(string, mcp.Tool, ToolFunc), s *AskServer) {
	add("ask_documentation_available",
		mcp.NewTool("ask_documentation_available",
			mcp.WithDescription("List knowledge bases of type docs."),
		),
		func(ctx context.Context, args map[string]any) (any, error) {
			kbs, err := s.DocumentationAvailable(ctx)
			if err != nil {
				return nil, err
			}
			return renderKBs(kbs), nil
		})

	add("ask_questions",
		mcp.NewTool("ask_questions",
			mcp.WithDescription("Ask a batch of natural-language questions across every knowledge base."),
			mcp.WithArray("questions", mcp.Required(), mcp.Items(map[string]any{"type": "string"})),
			mcp.WithString("answer_style"),
		),
		func(ctx context.Context, args map[string]any) (any, error) {
			outcomes, err := s.Questions(ctx, stringSliceArg(args, "questions"), answerStyleArg(args))
			if err != nil {
				return nil, err
			}
			return renderSearchOutcomes(outcomes), nil
		})

	add("ask_questions_for_kb",
		mcp.NewTool("ask_questions_for_kb",
			mcp.WithDescription("Ask a batch of natural-language questions restricted to named knowledge bases."),
			mcp.WithArray("knowledge_base_names", mcp.Required(), mcp.Items(map[string]any{"type": "string"})),
			mcp.WithArray("questions", mcp.Required(), mcp.Items(map[string]any{"type": "string"})),
			mcp.WithString("answer_style"),
		),
		func(ctx context.Context, args map[string]any) (any, error) {
			outcomes, err := s.QuestionsForKB(ctx, stringSliceArg(args, "knowledge_base_names"), stringSliceArg(args, "questions"), answerStyleArg(args))
			if err != nil {
				return nil, err
			}
			return renderSearchOutcomes(outcomes), nil
		})
}

func answerStyleArg(args map[string]any) QuestionAnswerStyle {
	return QuestionAnswerStyle(stringArg(args, "answer_style"))
}

func mountLearn(add func(string, mcp.Tool, ToolFunc), s *LearnServer) {
	add("learn_urls_from_webpage",
		mcp.NewTool("learn_urls_from_webpage",
			mcp.WithDescription("List the crawlable URLs a webpage links to."),
			mcp.WithString("url", mcp.Required()),
		),
		func(ctx context.Context, args map[string]any) (any, error) {
			urls, err := s.UrlsFromWebpage(ctx, stringArg(args, "url"))
			if err != nil {
				return nil, err
			}
			return renderURLs(urls), nil
		})

	add("learn_from_web_documentation",
		mcp.NewTool("learn_from_web_documentation",
			mcp.WithDescription("Launch a crawl of a webpage into a docs knowledge base."),
			mcp.WithString("name", mcp.Required()),
			mcp.WithString("data_source", mcp.Required()),
			mcp.WithString("description"),
			mcp.WithNumber("max_child_page_limit"),
			mcp.WithBoolean("overwrite"),
		),
		func(ctx context.Context, args map[string]any) (any, error) {
			proto := WebDocumentationProto{
				Name:        stringArg(args, "name"),
				URL:         stringArg(args, "data_source"),
				Description: stringArg(args, "description"),
			}
			success, failure := s.FromWebDocumentation(ctx, proto, intArg(args, "max_child_page_limit"), boolArg(args, "overwrite"))
			return renderCrawlResult(success, failure), nil
		})

	add("learn_active_documentation_requests",
		mcp.NewTool("learn_active_documentation_requests",
			mcp.WithDescription("List active and recently completed crawl jobs."),
		),
		func(ctx context.Context, args map[string]any) (any, error) {
			jobs, err := s.ActiveDocumentationRequests(ctx)
			if err != nil {
				return nil, err
			}
			return renderJobs(jobs), nil
		})
}

func mountRemember(add func(string, mcp.Tool, ToolFunc), s *RememberServer, pcStore *ProjectContextStore) {
	pc := func() *ProjectContext { return pcStore.Get(defaultSessionKey) }

	add("memory_set_project",
		mcp.NewTool("memory_set_project",
			mcp.WithDescription("Bind the caller to a project's memory knowledge base, creating it if needed."),
			mcp.WithString("project_name", mcp.Required()),
			mcp.WithBoolean("return_memories", mcp.DefaultBool(true)),
		),
		func(ctx context.Context, args map[string]any) (any, error) {
			returnMemories := true
			if v, ok := args["return_memories"].(bool); ok {
				returnMemories = v
			}
			resp, err := s.SetProject(ctx, pc(), stringArg(args, "project_name"), returnMemories)
			if err != nil {
				return nil, err
			}
			return renderMemoryInit(resp), nil
		})

	add("memory_get_project_name",
		mcp.NewTool("memory_get_project_name",
			mcp.WithDescription("Get the active project's name."),
		),
		func(ctx context.Context, args map[string]any) (any, error) {
			return s.GetProjectName(pc())
		})

	add("memory_encoding",
		mcp.NewTool("memory_encoding",
			mcp.WithDescription("Record a single memory."),
			mcp.WithString("title", mcp.Required()),
			mcp.WithString("content", mcp.Required()),
		),
		func(ctx context.Context, args map[string]any) (any, error) {
			return nil, s.Encoding(ctx, pc(), stringArg(args, "title"), stringArg(args, "content"))
		})

	add("memory_encodings",
		mcp.NewTool("memory_encodings",
			mcp.WithDescription("Record a batch of memories."),
			mcp.WithArray("memories", mcp.Required(), mcp.Items(map[string]any{
				"type": "object",
				"properties": map[string]any{
					"title":   map[string]any{"type": "string"},
					"content": map[string]any{"type": "string"},
				},
			})),
		),
		func(ctx context.Context, args map[string]any) (any, error) {
			return nil, s.Encodings(ctx, pc(), memoriesArg(args))
		})

	add("memory_recall",
		mcp.NewTool("memory_recall",
			mcp.WithDescription("Search the active project's memory knowledge base."),
			mcp.WithArray("questions", mcp.Required(), mcp.Items(map[string]any{"type": "string"})),
		),
		func(ctx context.Context, args map[string]any) (any, error) {
			outcomes, err := s.Recall(ctx, pc(), stringSliceArg(args, "questions"))
			if err != nil {
				return nil, err
			}
			return renderSearchOutcomes(outcomes), nil
		})

	add("memory_recall_last",
		mcp.NewTool("memory_recall_last",
			mcp.WithDescription("Return the active project's most recent memories."),
			mcp.WithNumber("count"),
		),
		func(ctx context.Context, args map[string]any) (any, error) {
			docs, err := s.RecallLast(ctx, pc(), intArg(args, "count"))
			if err != nil {
				return nil, err
			}
			return renderDocuments(docs), nil
		})

	add("memory_update_encoding",
		mcp.NewTool("memory_update_encoding",
			mcp.WithDescription("Update a memory by document id."),
			mcp.WithString("document_id", mcp.Required()),
			mcp.WithString("title", mcp.Required()),
			mcp.WithString("content", mcp.Required()),
		),
		func(ctx context.Context, args map[string]any) (any, error) {
			return nil, s.UpdateEncoding(ctx, pc(), stringArg(args, "document_id"), stringArg(args, "title"), stringArg(args, "content"))
		})

	add("memory_delete_encoding",
		mcp.NewTool("memory_delete_encoding",
			mcp.WithDescription("Delete a memory by document id."),
			mcp.WithString("document_id", mcp.Required()),
		),
		func(ctx context.Context, args map[string]any) (any, error) {
			return nil, s.DeleteEncoding(ctx, pc(), stringArg(args, "document_id"))
		})
}

func memoriesArg(args map[string]any) []Memory {
	raw, _ := args["memories"].([]any)
	out := make([]Memory, 0, len(raw))
	for _, item := range raw {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		out = append(out, Memory{Title: stringArg(m, "title"), Content: stringArg(m, "content")})
	}
	return out
}

func mountBulk(add func(string, mcp.Tool, ToolFunc), registry *Registry) {
	dispatcher := NewBulkDispatcher(registry)

	add("call_tools_bulk",
		mcp.NewTool("call_tools_bulk",
			mcp.WithDescription("Invoke a batch of distinct tool calls in order (§4.5)."),
			mcp.WithArray("tool_calls", mcp.Required(), mcp.Items(map[string]any{
				"type": "object",
				"properties": map[string]any{
					"tool":      map[string]any{"type": "string"},
					"arguments": map[string]any{"type": "object"},
				},
			})),
			mcp.WithBoolean("continue_on_error", mcp.DefaultBool(true)),
		),
		func(ctx context.Context, args map[string]any) (any, error) {
			calls := toolCallsArg(args)
			continueOnError := true
			if v, ok := args["continue_on_error"].(bool); ok {
				continueOnError = v
			}
			return renderBulkResults(dispatcher.CallToolsBulk(ctx, calls, continueOnError)), nil
		})

	add("call_tool_bulk",
		mcp.NewTool("call_tool_bulk",
			mcp.WithDescription("Invoke one tool repeatedly across a batch of argument sets (§4.5)."),
			mcp.WithString("tool", mcp.Required()),
			mcp.WithArray("tool_arguments", mcp.Required(), mcp.Items(map[string]any{"type": "object"})),
			mcp.WithBoolean("continue_on_error", mcp.DefaultBool(true)),
		),
		func(ctx context.Context, args map[string]any) (any, error) {
			tool := stringArg(args, "tool")
			argSets := argumentSetsArg(args)
			continueOnError := true
			if v, ok := args["continue_on_error"].(bool); ok {
				continueOnError = v
			}
			return renderBulkResults(dispatcher.CallToolBulk(ctx, tool, argSets, continueOnError)), nil
		})
}

func toolCallsArg(args map[string]any) []ToolCall {
	raw, _ := args["tool_calls"].([]any)
	out := make([]ToolCall, 0, len(raw))
	for _, item := range raw {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		tool, _ := m["tool"].(string)
		arguments, _ := m["arguments"].(map[string]any)
		out = append(out, ToolCall{Tool: tool, Arguments: arguments})
	}
	return out
}

func argumentSetsArg(args map[string]any) []map[string]any {
	raw, _ := args["tool_arguments"].([]any)
	out := make([]map[string]any, 0, len(raw))
	for _, item := range raw {
		m, _ := item.(map[string]any)
		out = append(out, m)
	}
	return out
}

func stringArg(args map[string]any, key string) string {
	v, _ := args[key].(string)
	return v
}

func stringSliceArg(args map[string]any, key string) []string {
	raw, ok := args[key].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func intArg(args map[string]any, key string) int {
	switch v := args[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return 0
	}
}

func boolArg(args map[string]any, key string) bool {
	v, _ := args[key].(bool)
	return v
}
