// Package query implements the safety validation and tenant-scoped
// execution of model-generated SQL.
package query

import (
	"fmt"
	"strings"
)

// Denylisted keywords. Matching is substring-based over the whole
// case-folded statement. This is deliberately coarse: a legitimate SELECT
// containing one of these words in a string literal or identifier is
// rejected too. That false-positive surface is accepted; the filter is a
// keyword gate, not a SQL parser, and comment or encoding based obfuscation
// is out of its reach.
var deniedKeywords = []string{
	"drop",
	"delete",
	"insert",
	"update",
	"truncate",
	"alter",
	"create",
	"grant",
	"revoke",
	"execute",
	"exec",
	"into outfile",
	"load_file",
}

// Rejection explains why a statement was refused. It is surfaced to the
// model as a normal tool-result error so the model can revise the query;
// it is not a system fault.
type Rejection struct {
	Reason string
}

func (r *Rejection) Error() string {
	return r.Reason
}

// Validate decides whether a raw, untrusted statement may run. Rules apply
// in order and the first violation wins:
//
//  1. the statement must begin with SELECT (case-insensitive),
//  2. it must not contain a denylisted keyword anywhere,
//  3. it must be a single statement (no batching via ";").
//
// This order is normative: a batched statement that also contains a write
// keyword is reported for the keyword, not the batching.
//
// A nil return means the statement passed.
func Validate(rawQuery string) *Rejection {
	trimmed := strings.TrimSpace(rawQuery)
	if trimmed == "" {
		return &Rejection{Reason: "empty query"}
	}

	folded := strings.ToLower(trimmed)

	if !strings.HasPrefix(folded, "select") {
		return &Rejection{Reason: "only SELECT statements are allowed"}
	}

	for _, keyword := range deniedKeywords {
		if strings.Contains(folded, keyword) {
			return &Rejection{Reason: fmt.Sprintf("statement contains disallowed keyword %q", strings.ToUpper(keyword))}
		}
	}

	if statementCount(trimmed) > 1 {
		return &Rejection{Reason: "multiple statements are not allowed"}
	}

	return nil
}

func statementCount(statement string) int {
	count := 0
	for _, part := range strings.Split(statement, ";") {
		if strings.TrimSpace(part) != "" {
			count++
		}
	}
	return count
}

// AddSafetyLimit bounds the result set. It strips a single trailing
// semicolon and appends "LIMIT maxRows" unless the statement already
// contains a LIMIT clause, which makes it idempotent. Must only be called
// after Validate has accepted the statement.
func AddSafetyLimit(rawQuery string, maxRows int) string {
	trimmed := strings.TrimSpace(rawQuery)
	trimmed = strings.TrimSuffix(trimmed, ";")

	if strings.Contains(strings.ToLower(trimmed), "limit") {
		return trimmed
	}
	return fmt.Sprintf("%s LIMIT %d", trimmed, maxRows)
}
