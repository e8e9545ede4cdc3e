// Package tenant resolves which data schema a user is authorized to query.
package tenant

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/piumenotechnology/accounting-mcp-sub000/pkg/kvstore"
)

// ErrNoTenant reports that a user has no active tenant binding. It is a
// permanent, user-facing condition, distinct from a transient database
// error, and callers branch on it with errors.Is.
var ErrNoTenant = errors.New("no tenant provisioned for this user")

// Binding ties a user to the one schema they may query.
type Binding struct {
	UserID      string `json:"user_id"`
	SchemaName  string `json:"schema_name"`
	TenantLabel string `json:"tenant_label"`
	ReferralKey string `json:"referral_key,omitempty"`
}

// Column describes one column of a tenant table.
type Column struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Nullable bool   `json:"nullable"`
}

// Table describes one base table of a tenant schema.
type Table struct {
	Name    string   `json:"name"`
	Columns []Column `json:"columns"`
}

// Structure is the introspected shape of a tenant schema.
type Structure struct {
	Tables []Table `json:"tables"`
}

// TableNames returns just the table names, for hints and prompts.
func (s *Structure) TableNames() []string {
	names := make([]string, len(s.Tables))
	for i, t := range s.Tables {
		names[i] = t.Name
	}
	return names
}

// Resolver looks up tenant bindings and schema structures, caching both in
// an injected TTL store. Exactly one active binding exists per user; a user
// with none cannot query any data source.
type Resolver struct {
	db    *sql.DB
	cache kvstore.Store
	ttl   time.Duration
	group singleflight.Group
}

// NewResolver builds a Resolver over the shared database and cache store.
func NewResolver(db *sql.DB, cache kvstore.Store, ttl time.Duration) *Resolver {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Resolver{db: db, cache: cache, ttl: ttl}
}

func bindingKey(userID string) string   { return "tenant:binding:" + userID }
func structureKey(schema string) string { return "tenant:structure:" + schema }

// ResolveSchema returns the user's active binding, from cache when fresh.
// Returns ErrNoTenant when no binding exists; other errors are transient
// database faults and propagate as system errors.
func (r *Resolver) ResolveSchema(ctx context.Context, userID string) (*Binding, error) {
	if userID == "" {
		return nil, fmt.Errorf("user id is required")
	}

	if cached, ok := r.cache.Get(ctx, bindingKey(userID)); ok {
		if binding, ok := cached.(*Binding); ok {
			return binding, nil
		}
	}

	binding := &Binding{UserID: userID}
	row := r.db.QueryRowContext(ctx,
		`SELECT schema_name, tenant_label, COALESCE(referral_key, '')
		 FROM tenant_bindings
		 WHERE user_id = $1 AND active = TRUE`, userID)
	if err := row.Scan(&binding.SchemaName, &binding.TenantLabel, &binding.ReferralKey); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNoTenant
		}
		return nil, fmt.Errorf("failed to resolve tenant binding: %w", err)
	}

	if err := r.cache.Set(ctx, bindingKey(userID), binding, r.ttl); err != nil {
		slog.Warn("failed to cache tenant binding", "user", userID, "error", err)
	}
	return binding, nil
}

// HasAccess is the cheap re-check run immediately before query execution.
// It bypasses the cache on purpose: it exists to close the gap between an
// earlier resolve and a mid-conversation authorization revocation.
func (r *Resolver) HasAccess(ctx context.Context, userID, schemaName string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (
		   SELECT 1 FROM tenant_bindings
		   WHERE user_id = $1 AND schema_name = $2 AND active = TRUE
		 )`, userID, schemaName).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check tenant access: %w", err)
	}
	return exists, nil
}

// SchemaStructure introspects the binding's base tables and columns.
// Results are cached with the binding TTL; concurrent introspections of the
// same schema are deduplicated.
func (r *Resolver) SchemaStructure(ctx context.Context, binding *Binding) (*Structure, error) {
	if cached, ok := r.cache.Get(ctx, structureKey(binding.SchemaName)); ok {
		if structure, ok := cached.(*Structure); ok {
			return structure, nil
		}
	}

	value, err, _ := r.group.Do(structureKey(binding.SchemaName), func() (any, error) {
		structure, err := r.introspect(ctx, binding.SchemaName)
		if err != nil {
			return nil, err
		}
		if err := r.cache.Set(ctx, structureKey(binding.SchemaName), structure, r.ttl); err != nil {
			slog.Warn("failed to cache schema structure", "schema", binding.SchemaName, "error", err)
		}
		return structure, nil
	})
	if err != nil {
		return nil, err
	}
	return value.(*Structure), nil
}

func (r *Resolver) introspect(ctx context.Context, schemaName string) (*Structure, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT c.table_name, c.column_name, c.data_type, c.is_nullable
		 FROM information_schema.columns c
		 JOIN information_schema.tables t
		   ON t.table_schema = c.table_schema AND t.table_name = c.table_name
		 WHERE c.table_schema = $1 AND t.table_type = 'BASE TABLE'
		 ORDER BY c.table_name, c.ordinal_position`, schemaName)
	if err != nil {
		return nil, fmt.Errorf("failed to introspect schema %s: %w", schemaName, err)
	}
	defer rows.Close()

	structure := &Structure{}
	var current *Table
	for rows.Next() {
		var tableName, columnName, dataType, isNullable string
		if err := rows.Scan(&tableName, &columnName, &dataType, &isNullable); err != nil {
			return nil, fmt.Errorf("failed to scan schema row: %w", err)
		}
		if current == nil || current.Name != tableName {
			structure.Tables = append(structure.Tables, Table{Name: tableName})
			current = &structure.Tables[len(structure.Tables)-1]
		}
		current.Columns = append(current.Columns, Column{
			Name:     columnName,
			Type:     dataType,
			Nullable: isNullable == "YES",
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read schema rows: %w", err)
	}
	return structure, nil
}
