package query

import (
	"strings"
	"testing"
)

func TestValidate_AcceptsSelect(t *testing.T) {
	queries := []string{
		"SELECT * FROM sales_orders",
		"select id, total from invoices where total > 100",
		"  \n\tSELECT 1",
	}
	for _, q := range queries {
		if rej := Validate(q); rej != nil {
			t.Errorf("Validate(%q) rejected: %s", q, rej.Reason)
		}
	}
}

func TestValidate_RejectsNonSelect(t *testing.T) {
	queries := []string{
		"",
		"   ",
		"SHOW TABLES",
		"WITH x AS (SELECT 1) SELECT * FROM x", // prefix rule is strict
		"EXPLAIN SELECT 1",
	}
	for _, q := range queries {
		if rej := Validate(q); rej == nil {
			t.Errorf("Validate(%q) accepted, want rejection", q)
		}
	}
}

func TestValidate_RejectsDeniedKeywords(t *testing.T) {
	queries := map[string]string{
		"SELECT * FROM t; DROP TABLE t":             "DROP",
		"SELECT * FROM t WHERE name = 'x' union all select load_file('/etc/passwd')": "LOAD_FILE",
		"SELECT * FROM t INTO OUTFILE '/tmp/x'":     "INTO OUTFILE",
		"SELECT (DELETE FROM t)":                    "DELETE",
		"select * from executors":                   "EXEC", // known false positive, substring match
	}
	for q, keyword := range queries {
		rej := Validate(q)
		if rej == nil {
			t.Errorf("Validate(%q) accepted, want rejection", q)
			continue
		}
		if !strings.Contains(rej.Reason, keyword) {
			t.Errorf("Validate(%q) reason = %q, want mention of %s", q, rej.Reason, keyword)
		}
	}
}

func TestValidate_RejectsMultipleStatements(t *testing.T) {
	rej := Validate("SELECT * FROM invoices; SELECT * FROM payments")
	if rej == nil {
		t.Fatal("expected rejection for statement batch")
	}
	if !strings.Contains(rej.Reason, "multiple statements") {
		t.Errorf("reason = %q, want multiple statements", rej.Reason)
	}
}

func TestValidate_AllowsTrailingSemicolon(t *testing.T) {
	if rej := Validate("SELECT * FROM invoices;"); rej != nil {
		t.Errorf("trailing semicolon rejected: %s", rej.Reason)
	}
}

func TestAddSafetyLimit(t *testing.T) {
	got := AddSafetyLimit("select id, total from sales_orders", 1000)
	want := "select id, total from sales_orders LIMIT 1000"
	if got != want {
		t.Errorf("AddSafetyLimit() = %q, want %q", got, want)
	}
}

func TestAddSafetyLimit_StripsTrailingSemicolon(t *testing.T) {
	got := AddSafetyLimit("SELECT 1;", 50)
	if got != "SELECT 1 LIMIT 50" {
		t.Errorf("AddSafetyLimit() = %q", got)
	}
}

func TestAddSafetyLimit_PreservesExistingLimit(t *testing.T) {
	got := AddSafetyLimit("SELECT * FROM t LIMIT 5", 1000)
	if got != "SELECT * FROM t LIMIT 5" {
		t.Errorf("AddSafetyLimit() = %q, want unchanged", got)
	}
}

func TestAddSafetyLimit_Idempotent(t *testing.T) {
	once := AddSafetyLimit("SELECT * FROM t", 100)
	twice := AddSafetyLimit(once, 100)
	if once != twice {
		t.Errorf("AddSafetyLimit not idempotent: %q vs %q", once, twice)
	}
}
