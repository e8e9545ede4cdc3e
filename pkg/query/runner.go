package query

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/piumenotechnology/accounting-mcp-sub000/pkg/observability"
)

var schemaNamePattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Result is a successful query outcome.
type Result struct {
	Columns         []string         `json:"columns"`
	Rows            []map[string]any `json:"rows"`
	RowCount        int              `json:"row_count"`
	ExecutionTimeMs int64            `json:"execution_time_ms"`
}

// Failure is a query that executed but failed, with a hint naming the
// likely cause. The hint never leaks schema details beyond what the
// caller's own tenant can see.
type Failure struct {
	Message string `json:"error"`
	Hint    string `json:"hint,omitempty"`
}

func (f *Failure) Error() string {
	if f.Hint != "" {
		return fmt.Sprintf("%s (%s)", f.Message, f.Hint)
	}
	return f.Message
}

// Runner executes validated statements inside a transaction scoped to one
// tenant schema. On postgres the SET LOCAL search_path dies with the
// transaction, so pooled connections never leak a schema to the next
// request. A dialect that cannot scope the requested schema refuses to
// run; statements never fall through to the connection's default database.
type Runner struct {
	db      *sql.DB
	dialect string
	maxRows int
	timeout time.Duration
}

// NewRunner builds a Runner. dialect is "postgres" or "sqlite"; sqlite is
// the single-database engine for local runs and is addressable only as
// "main". maxRows bounds every statement via AddSafetyLimit; timeout
// bounds each execution.
func NewRunner(db *sql.DB, dialect string, maxRows int, timeout time.Duration) *Runner {
	if maxRows <= 0 {
		maxRows = 1000
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Runner{db: db, dialect: dialect, maxRows: maxRows, timeout: timeout}
}

// Run validates rawQuery, scopes it to schemaName, and executes it.
// A *Rejection or *Failure return is an expected, model-facing outcome;
// the error return is reserved for system faults (connection loss,
// transaction failure).
func (r *Runner) Run(ctx context.Context, schemaName, rawQuery string) (*Result, error) {
	tracer := observability.GetTracer("assistant.query")
	ctx, span := tracer.Start(ctx, observability.SpanQueryExecute,
		trace.WithAttributes(attribute.String(observability.AttrTenantSchema, schemaName)),
	)
	defer span.End()

	start := time.Now()
	result, err := r.run(ctx, schemaName, rawQuery)
	duration := time.Since(start)

	observability.GetGlobalMetrics().RecordQuery(ctx, schemaName, duration, err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetAttributes(attribute.Int("query.rows", result.RowCount))
		span.SetStatus(codes.Ok, "success")
	}
	return result, err
}

func (r *Runner) run(ctx context.Context, schemaName, rawQuery string) (*Result, error) {
	if !schemaNamePattern.MatchString(schemaName) {
		return nil, fmt.Errorf("invalid schema name %q", schemaName)
	}

	switch r.dialect {
	case "postgres":
		// Scoped per transaction below.
	case "sqlite":
		// Single-database engine; the only schema it can serve is its own
		// main database.
		if schemaName != "main" {
			return nil, fmt.Errorf("sqlite cannot serve schema %q", schemaName)
		}
	default:
		return nil, fmt.Errorf("dialect %q cannot enforce schema scoping", r.dialect)
	}

	if rejection := Validate(rawQuery); rejection != nil {
		return nil, rejection
	}
	bounded := AddSafetyLimit(rawQuery, r.maxRows)

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	txOpts := &sql.TxOptions{}
	if r.dialect == "postgres" {
		txOpts.ReadOnly = true
	}
	tx, err := r.db.BeginTx(ctx, txOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if r.dialect == "postgres" {
		// SET LOCAL does not support bind parameters; schemaName was
		// validated against the identifier pattern above.
		if _, err := tx.ExecContext(ctx, fmt.Sprintf(`SET LOCAL search_path TO %q`, schemaName)); err != nil {
			return nil, fmt.Errorf("failed to scope search_path: %w", err)
		}
	}

	start := time.Now()
	rows, err := tx.QueryContext(ctx, bounded)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, &Failure{Message: "query timed out", Hint: "narrow the query or add filters"}
		}
		return nil, classifyQueryError(err)
	}
	defer rows.Close()

	result, err := collectRows(rows)
	if err != nil {
		return nil, fmt.Errorf("failed to read result rows: %w", err)
	}
	result.ExecutionTimeMs = time.Since(start).Milliseconds()

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit read transaction: %w", err)
	}
	return result, nil
}

// classifyQueryError maps driver errors for bad identifiers into Failures
// with a hint; anything else passes through as a Failure without one.
func classifyQueryError(err error) *Failure {
	message := err.Error()
	lower := strings.ToLower(message)

	switch {
	case strings.Contains(lower, "relation") && strings.Contains(lower, "does not exist"):
		return &Failure{Message: message, Hint: "table does not exist in your data schema; check the table name"}
	case strings.Contains(lower, "column") && strings.Contains(lower, "does not exist"):
		return &Failure{Message: message, Hint: "column does not exist; check the column name against the schema"}
	case strings.Contains(lower, "syntax error"):
		return &Failure{Message: message, Hint: "SQL syntax error; revise the statement"}
	default:
		return &Failure{Message: message}
	}
}

func collectRows(rows *sql.Rows) (*Result, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	result := &Result{Columns: columns, Rows: []map[string]any{}}
	values := make([]any, len(columns))
	scanTargets := make([]any, len(columns))
	for i := range values {
		scanTargets[i] = &values[i]
	}

	for rows.Next() {
		if err := rows.Scan(scanTargets...); err != nil {
			return nil, err
		}
		row := make(map[string]any, len(columns))
		for i, col := range columns {
			switch v := values[i].(type) {
			case []byte:
				row[col] = string(v)
			default:
				row[col] = v
			}
		}
		result.Rows = append(result.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	result.RowCount = len(result.Rows)
	return result, nil
}
