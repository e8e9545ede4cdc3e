package query

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

func newTestRunner(t *testing.T) *Runner {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	db.SetMaxOpenConns(1)

	stmts := []string{
		`CREATE TABLE sales_orders (id INTEGER PRIMARY KEY, customer TEXT, total REAL)`,
		`INSERT INTO sales_orders (customer, total) VALUES ('acme', 120.5), ('globex', 90.0), ('initech', 45.25)`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			t.Fatal(err)
		}
	}

	return NewRunner(db, "sqlite", 1000, 5*time.Second)
}

func TestRunner_Run(t *testing.T) {
	runner := newTestRunner(t)

	result, err := runner.Run(context.Background(), "main", "SELECT customer, total FROM sales_orders")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if result.RowCount != 3 {
		t.Errorf("RowCount = %d, want 3", result.RowCount)
	}
	if len(result.Columns) != 2 {
		t.Errorf("Columns = %v, want 2 columns", result.Columns)
	}
	if result.Rows[0]["customer"] != "acme" {
		t.Errorf("first row customer = %v, want acme", result.Rows[0]["customer"])
	}
}

func TestRunner_Run_AppliesRowLimit(t *testing.T) {
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`CREATE TABLE numbers (n INTEGER)`); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 10; i++ {
		if _, err := db.Exec(`INSERT INTO numbers (n) VALUES (?)`, i); err != nil {
			t.Fatal(err)
		}
	}

	runner := NewRunner(db, "sqlite", 3, 5*time.Second)
	result, err := runner.Run(context.Background(), "main", "SELECT n FROM numbers")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if result.RowCount != 3 {
		t.Errorf("RowCount = %d, want limit of 3", result.RowCount)
	}
}

func TestRunner_Run_RejectsUnsafeStatement(t *testing.T) {
	runner := newTestRunner(t)

	_, err := runner.Run(context.Background(), "main", "SELECT * FROM sales_orders; DROP TABLE sales_orders")
	var rejection *Rejection
	if !errors.As(err, &rejection) {
		t.Fatalf("expected *Rejection, got %T: %v", err, err)
	}

	// Table must be untouched.
	var count int
	result, err := runner.Run(context.Background(), "main", "SELECT id FROM sales_orders")
	if err != nil {
		t.Fatalf("follow-up Run() error = %v", err)
	}
	count = result.RowCount
	if count != 3 {
		t.Errorf("table row count = %d, want 3", count)
	}
}

func TestRunner_Run_RejectsBadSchemaName(t *testing.T) {
	runner := newTestRunner(t)

	if _, err := runner.Run(context.Background(), `tenant";--`, "SELECT 1"); err == nil {
		t.Fatal("expected error for malformed schema name")
	}
}

func TestRunner_Run_RefusesUnscopableSchema(t *testing.T) {
	runner := newTestRunner(t)

	// Two tenants on a single-database engine must never share a row set;
	// both calls fail instead of silently reading the same table.
	for _, schema := range []string{"tenant_a", "tenant_b"} {
		_, err := runner.Run(context.Background(), schema, "SELECT customer FROM sales_orders")
		if err == nil {
			t.Fatalf("schema %q: expected scoping error", schema)
		}
		var rejection *Rejection
		var failure *Failure
		if errors.As(err, &rejection) || errors.As(err, &failure) {
			t.Fatalf("schema %q: got model-facing %T, want system error", schema, err)
		}
	}
}

func TestRunner_Run_RefusesUnscopableDialect(t *testing.T) {
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })

	runner := NewRunner(db, "mysql", 1000, time.Second)
	if _, err := runner.Run(context.Background(), "tenant_a", "SELECT 1"); err == nil {
		t.Fatal("expected error for dialect without schema scoping")
	}
}

func TestRunner_Run_FailureForUnknownTable(t *testing.T) {
	runner := newTestRunner(t)

	_, err := runner.Run(context.Background(), "main", "SELECT * FROM nonexistent")
	var failure *Failure
	if !errors.As(err, &failure) {
		t.Fatalf("expected *Failure, got %T: %v", err, err)
	}
}
