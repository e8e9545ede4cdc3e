package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/piumenotechnology/accounting-mcp-sub000/pkg/query"
	"github.com/piumenotechnology/accounting-mcp-sub000/pkg/tenant"
)

// QueryDataTool runs read-only SQL against the caller's tenant schema. The
// schema is resolved from the injected user id; the model never picks it.
type QueryDataTool struct {
	resolver *tenant.Resolver
	runner   *query.Runner
}

func NewQueryDataTool(resolver *tenant.Resolver, runner *query.Runner) *QueryDataTool {
	return &QueryDataTool{resolver: resolver, runner: runner}
}

func (t *QueryDataTool) GetName() string { return "query_data" }

func (t *QueryDataTool) GetInfo() ToolInfo {
	return ToolInfo{
		Name: t.GetName(),
		Description: "Run a read-only SQL SELECT against the user's business data. " +
			"Use get_schema_info first to see the available tables and columns.",
		Parameters: []ToolParameter{
			{Name: "query", Type: "string", Description: "A single SELECT statement", Required: true},
		},
		RequiresIdentity: true,
		ReadOnly:         true,
	}
}

func (t *QueryDataTool) Execute(ctx context.Context, args map[string]any) (ToolResult, error) {
	start := time.Now()

	userID, _ := args[ArgUserID].(string)
	sqlQuery, _ := args["query"].(string)
	if sqlQuery == "" {
		return errorResult(t.GetName(), "missing required parameter: query", time.Since(start)), nil
	}

	binding, err := t.resolver.ResolveSchema(ctx, userID)
	if err != nil {
		if errors.Is(err, tenant.ErrNoTenant) {
			return errorResult(t.GetName(),
				"No business data source is provisioned for this account.", time.Since(start)), nil
		}
		return ToolResult{}, fmt.Errorf("tenant resolution failed: %w", err)
	}

	// Authorization may have been revoked since the binding was cached;
	// re-check against the database right before executing.
	ok, err := t.resolver.HasAccess(ctx, userID, binding.SchemaName)
	if err != nil {
		return ToolResult{}, fmt.Errorf("access check failed: %w", err)
	}
	if !ok {
		return errorResult(t.GetName(),
			"Access to this data source has been revoked.", time.Since(start)), nil
	}

	result, err := t.runner.Run(ctx, binding.SchemaName, sqlQuery)
	if err != nil {
		var rejection *query.Rejection
		if errors.As(err, &rejection) {
			return errorResult(t.GetName(), "Query rejected: "+rejection.Reason, time.Since(start)), nil
		}
		var failure *query.Failure
		if errors.As(err, &failure) {
			msg := "Query failed: " + failure.Message
			if failure.Hint != "" {
				msg += " Hint: " + failure.Hint
			}
			return errorResult(t.GetName(), msg, time.Since(start)), nil
		}
		return ToolResult{}, err
	}

	content, encErr := json.Marshal(result.Rows)
	if encErr != nil {
		return ToolResult{}, fmt.Errorf("failed to encode query result: %w", encErr)
	}

	summary := fmt.Sprintf("%d rows (%d ms)\n%s", result.RowCount, result.ExecutionTimeMs, content)
	res := successResult(t.GetName(), summary, result, time.Since(start))
	res.Metadata = map[string]any{"schema": binding.SchemaName, "row_count": result.RowCount}
	return res, nil
}

// SchemaInfoTool describes the caller's tenant tables so the model can
// write correct queries.
type SchemaInfoTool struct {
	resolver *tenant.Resolver
}

func NewSchemaInfoTool(resolver *tenant.Resolver) *SchemaInfoTool {
	return &SchemaInfoTool{resolver: resolver}
}

func (t *SchemaInfoTool) GetName() string { return "get_schema_info" }

func (t *SchemaInfoTool) GetInfo() ToolInfo {
	return ToolInfo{
		Name:             t.GetName(),
		Description:      "List the tables and columns available in the user's business data source.",
		RequiresIdentity: true,
		ReadOnly:         true,
	}
}

func (t *SchemaInfoTool) Execute(ctx context.Context, args map[string]any) (ToolResult, error) {
	start := time.Now()

	userID, _ := args[ArgUserID].(string)
	binding, err := t.resolver.ResolveSchema(ctx, userID)
	if err != nil {
		if errors.Is(err, tenant.ErrNoTenant) {
			return errorResult(t.GetName(),
				"No business data source is provisioned for this account.", time.Since(start)), nil
		}
		return ToolResult{}, fmt.Errorf("tenant resolution failed: %w", err)
	}

	structure, err := t.resolver.SchemaStructure(ctx, binding)
	if err != nil {
		return ToolResult{}, fmt.Errorf("schema introspection failed: %w", err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Data source: %s\n", binding.TenantLabel)
	for _, table := range structure.Tables {
		fmt.Fprintf(&b, "\n%s\n", table.Name)
		for _, col := range table.Columns {
			nullable := "not null"
			if col.Nullable {
				nullable = "nullable"
			}
			fmt.Fprintf(&b, "  %s %s (%s)\n", col.Name, col.Type, nullable)
		}
	}

	res := successResult(t.GetName(), b.String(), structure, time.Since(start))
	res.Metadata = map[string]any{"schema": binding.SchemaName, "tables": len(structure.Tables)}
	return res, nil
}
