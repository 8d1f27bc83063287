// Package tools exposes AUDITOR's structured query as Model Context
// Protocol tools, so downstream plugins can pull records without going
// through the HTTP API's URL-encoded query grammar.
package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	compilequery "github.com/auditor-project/auditor/internal/query"
	"github.com/auditor-project/auditor/internal/sqlstore"
	"github.com/auditor-project/auditor/pkg/query"
)

// recordStore is the subset of *sqlstore.Store the query_records tool
// depends on.
type recordStore interface {
	Scan(ctx context.Context, plan sqlstore.ScanPlan) (*sqlstore.Rows, error)
}

// ToolProvider provides MCP tools for querying AUDITOR records. It wraps
// the same store the HTTP API runs against.
type ToolProvider struct {
	store recordStore
}

// NewToolProvider creates a ToolProvider bound to an existing store. This
// is the only constructor: unlike the teacher's Kubernetes-client-backed
// provider, there is no separate in-cluster-vs-kubeconfig discovery step
// here — the caller already has a *sqlstore.Store from wiring up the
// server.
func NewToolProvider(store recordStore) *ToolProvider {
	return &ToolProvider{store: store}
}

// Close releases resources held by the ToolProvider. The store outlives
// the ToolProvider and is closed by its owner, so this is a no-op kept
// for symmetry with code that defers Close after construction.
func (p *ToolProvider) Close() error {
	return nil
}

// RegisterTools registers all AUDITOR tools with an MCP server.
func (p *ToolProvider) RegisterTools(server *mcp.Server) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "query_records",
		Description: "Search accounting records by time range, runtime, meta fields, and components. Mirrors the HTTP GET /records endpoint's filtering semantics. Returns matching records as JSON.",
	}, p.handleQueryRecords)
}

// QueryRecordsArgs contains the arguments for the query_records tool. It
// follows pkg/query.Query's structure rather than the HTTP API's
// bracket-encoded query string, since an MCP tool call argument is
// already a structured JSON object. Runtime and component amounts take
// only gte, lte and equals bounds here; the strict gt and lt bounds of
// query.IntOperator are not exposed.
type QueryRecordsArgs struct {
	RecordID string `json:"recordID,omitempty" jsonschema:"description=Exact record_id to look up."`

	StartTimeGTE string `json:"startTimeGte,omitempty" jsonschema:"description=RFC3339 timestamp; only records starting at or after this time."`
	StartTimeGT  string `json:"startTimeGt,omitempty" jsonschema:"description=RFC3339 timestamp; only records starting strictly after this time."`
	StartTimeLTE string `json:"startTimeLte,omitempty" jsonschema:"description=RFC3339 timestamp; only records starting at or before this time."`
	StartTimeLT  string `json:"startTimeLt,omitempty" jsonschema:"description=RFC3339 timestamp; only records starting strictly before this time."`

	StopTimeGTE string `json:"stopTimeGte,omitempty" jsonschema:"description=RFC3339 timestamp; only records stopping at or after this time."`
	StopTimeGT  string `json:"stopTimeGt,omitempty" jsonschema:"description=RFC3339 timestamp; only records stopping strictly after this time."`
	StopTimeLTE string `json:"stopTimeLte,omitempty" jsonschema:"description=RFC3339 timestamp; only records stopping at or before this time."`
	StopTimeLT  string `json:"stopTimeLt,omitempty" jsonschema:"description=RFC3339 timestamp; only records stopping strictly before this time."`

	RuntimeGTE *int64 `json:"runtimeGte,omitempty" jsonschema:"description=Only records with runtime (seconds) at or above this value."`
	RuntimeLTE *int64 `json:"runtimeLte,omitempty" jsonschema:"description=Only records with runtime (seconds) at or below this value."`
	RuntimeEq  *int64 `json:"runtimeEquals,omitempty" jsonschema:"description=Only records with runtime (seconds) exactly equal to this value."`

	MetaContains       map[string][]string `json:"metaContains,omitempty" jsonschema:"description=Meta key to list of values that must all be present under that key."`
	MetaDoesNotContain map[string][]string `json:"metaDoesNotContain,omitempty" jsonschema:"description=Meta key to list of values that must all be absent under that key."`

	ComponentEquals map[string]int64 `json:"componentEquals,omitempty" jsonschema:"description=Component name to exact amount it must equal."`
	ComponentGTE    map[string]int64 `json:"componentGte,omitempty" jsonschema:"description=Component name to minimum amount (inclusive)."`
	ComponentLTE    map[string]int64 `json:"componentLte,omitempty" jsonschema:"description=Component name to maximum amount (inclusive)."`

	SortByColumn string `json:"sortByColumn,omitempty" jsonschema:"description=Column to sort by: start_time, stop_time, runtime, or record_id."`
	SortDesc     bool   `json:"sortDesc,omitempty" jsonschema:"description=Sort descending instead of ascending."`

	Limit int `json:"limit,omitempty" jsonschema:"description=Maximum number of results to return."`
}

// handleQueryRecords handles the query_records tool invocation.
func (p *ToolProvider) handleQueryRecords(ctx context.Context, req *mcp.CallToolRequest, args QueryRecordsArgs) (*mcp.CallToolResult, any, error) {
	q, err := buildQuery(args)
	if err != nil {
		return errorResult(fmt.Sprintf("invalid arguments: %v", err)), nil, nil
	}

	plan, err := compilequery.Compile(q)
	if err != nil {
		return errorResult(fmt.Sprintf("failed to compile query: %v", err)), nil, nil
	}

	rows, err := p.store.Scan(ctx, plan)
	if err != nil {
		return errorResult(fmt.Sprintf("query failed: %v", err)), nil, nil
	}
	defer rows.Close()

	var records []json.RawMessage
	for rows.Next() {
		rec, err := rows.Record()
		if err != nil {
			return errorResult(fmt.Sprintf("failed to decode record: %v", err)), nil, nil
		}
		data, err := rec.MarshalJSON()
		if err != nil {
			return errorResult(fmt.Sprintf("failed to encode record: %v", err)), nil, nil
		}
		records = append(records, data)
	}
	if err := rows.Err(); err != nil {
		return errorResult(fmt.Sprintf("error iterating results: %v", err)), nil, nil
	}

	output := map[string]any{
		"count":   len(records),
		"records": records,
	}
	jsonBytes, err := json.MarshalIndent(output, "", "  ")
	if err != nil {
		return errorResult(fmt.Sprintf("failed to format results: %v", err)), nil, nil
	}

	return textResult(string(jsonBytes)), nil, nil
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: text},
		},
	}
}

func errorResult(message string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{
			&mcp.TextContent{Text: message},
		},
	}
}
