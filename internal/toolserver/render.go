package toolserver

import (
	"fmt"
	"strings"

	"github.com/kbmcp/kbmcp/internal/container"
	"github.com/kbmcp/kbmcp/internal/kb"
)

// Responses are rendered as hierarchical structured text rather than JSON
// (§6.1): field names match §3/§4.3.1. Optional fields (a document's url and
// content, a bulk call's arguments) are omitted when empty; a knowledge
// base's fields are always printed, even when empty.

func renderKB(k kb.KnowledgeBase) string {
	var b strings.Builder
	fmt.Fprintf(&b, "name: %s\n", k.Name)
	fmt.Fprintf(&b, "type: %s\n", k.Type)
	fmt.Fprintf(&b, "description: %s\n", k.Description)
	fmt.Fprintf(&b, "data_source: %s\n", k.DataSource)
	fmt.Fprintf(&b, "backend_id: %s\n", k.BackendID)
	fmt.Fprintf(&b, "doc_count: %d\n", k.DocCount)
	return b.String()
}

func renderKBs(kbs []kb.KnowledgeBase) string {
	if len(kbs) == 0 {
		return "(no knowledge bases)\n"
	}
	var b strings.Builder
	for i, k := range kbs {
		fmt.Fprintf(&b, "knowledge_base[%d]:\n", i)
		b.WriteString(indent(renderKB(k), "  "))
	}
	return b.String()
}

func renderDocument(d kb.Document) string {
	var b strings.Builder
	fmt.Fprintf(&b, "id: %s\n", d.ID)
	fmt.Fprintf(&b, "knowledge_base_name: %s\n", d.KnowledgeBaseName)
	fmt.Fprintf(&b, "title: %s\n", d.Title)
	if d.URL != "" {
		fmt.Fprintf(&b, "url: %s\n", d.URL)
	}
	fmt.Fprintf(&b, "score: %g\n", d.Score)
	if len(d.Content) > 0 {
		b.WriteString("content:\n")
		for _, c := range d.Content {
			fmt.Fprintf(&b, "  - %s\n", c)
		}
	}
	return b.String()
}

func renderDocuments(docs []kb.Document) string {
	if len(docs) == 0 {
		return "(no documents)\n"
	}
	var b strings.Builder
	for i, d := range docs {
		fmt.Fprintf(&b, "document[%d]:\n", i)
		b.WriteString(indent(renderDocument(d), "  "))
	}
	return b.String()
}

func renderSearchOutcome(o kb.SearchOutcome) string {
	var b strings.Builder
	if o.IsError() {
		fmt.Fprintf(&b, "phrase: %s\n", o.Err.Phrase)
		fmt.Fprintf(&b, "error: %s\n", o.Err.Error)
		return b.String()
	}
	fmt.Fprintf(&b, "phrase: %s\n", o.Result.Phrase)
	b.WriteString("results:\n")
	if len(o.Result.Results) == 0 {
		b.WriteString("  (none)\n")
	}
	for i, d := range o.Result.Results {
		fmt.Fprintf(&b, "  result[%d]:\n", i)
		b.WriteString(indent(renderDocument(d), "    "))
	}
	b.WriteString("summaries:\n")
	for _, s := range o.Result.Summaries {
		fmt.Fprintf(&b, "  - knowledge_base_name: %s, matches: %d\n", s.KnowledgeBaseName, s.Matches)
	}
	return b.String()
}

func renderSearchOutcomes(outcomes []kb.SearchOutcome) string {
	if len(outcomes) == 0 {
		return "(no results)\n"
	}
	var b strings.Builder
	for i, o := range outcomes {
		fmt.Fprintf(&b, "search_result[%d]:\n", i)
		b.WriteString(indent(renderSearchOutcome(o), "  "))
	}
	return b.String()
}

func renderURLs(urls []string) string {
	if len(urls) == 0 {
		return "(no crawlable urls)\n"
	}
	var b strings.Builder
	for _, u := range urls {
		fmt.Fprintf(&b, "- %s\n", u)
	}
	return b.String()
}

func renderCrawlResult(success *CrawlStartSuccess, failure *CrawlStartFailure) string {
	if failure != nil {
		var b strings.Builder
		fmt.Fprintf(&b, "url: %s\n", failure.URL)
		fmt.Fprintf(&b, "reason: %s\n", failure.Reason)
		return b.String()
	}
	var b strings.Builder
	fmt.Fprintf(&b, "url: %s\n", success.URL)
	fmt.Fprintf(&b, "knowledge_base_id: %s\n", success.KnowledgeBaseID)
	fmt.Fprintf(&b, "container_id: %s\n", success.ContainerID)
	return b.String()
}

func renderJobs(jobs []container.Info) string {
	if len(jobs) == 0 {
		return "(no active crawls)\n"
	}
	var b strings.Builder
	for i, j := range jobs {
		fmt.Fprintf(&b, "job[%d]:\n", i)
		fmt.Fprintf(&b, "  id: %s\n", j.ID)
		fmt.Fprintf(&b, "  name: %s\n", j.Name)
		fmt.Fprintf(&b, "  state: %s\n", j.State)
		if domain, ok := j.Labels["crawl-domain"]; ok {
			fmt.Fprintf(&b, "  crawl_domain: %s\n", domain)
		}
	}
	return b.String()
}

func renderMemoryInit(resp MemoryInitResponse) string {
	var b strings.Builder
	fmt.Fprintf(&b, "memory_count: %d\n", resp.MemoryCount)
	if resp.Memories != nil {
		b.WriteString("memories:\n")
		b.WriteString(indent(renderDocuments(resp.Memories), "  "))
	}
	return b.String()
}

func renderBulkResults(results []ToolCallResult) string {
	if len(results) == 0 {
		return "(no results)\n"
	}
	var b strings.Builder
	for i, r := range results {
		fmt.Fprintf(&b, "call[%d]:\n", i)
		fmt.Fprintf(&b, "  tool: %s\n", r.Tool)
		if len(r.Arguments) > 0 {
			fmt.Fprintf(&b, "  arguments: %v\n", r.Arguments)
		}
		fmt.Fprintf(&b, "  isError: %t\n", r.IsError)
		fmt.Fprintf(&b, "  content: %v\n", r.Content)
	}
	return b.String()
}

func indent(s, prefix string) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	for i, l := range lines {
		lines[i] = prefix + l
	}
	return strings.Join(lines, "\n") + "\n"
}
