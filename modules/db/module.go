// Package db executes SQL query nodes through database/sql.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/specialistvlad/nodegraph/internal/ctxlog"
	"github.com/specialistvlad/nodegraph/internal/executor"
	"github.com/specialistvlad/nodegraph/internal/node"
)

const (
	// DefaultDriver is used when a node names none.
	DefaultDriver = "sqlite3"
	// DefaultMaxRows caps the rows returned when a node sets no limit.
	DefaultMaxRows = 1000
)

// Module registers the db node kind. Connections are pooled per driver and DSN.
type Module struct {
	// MaxRows overrides DefaultMaxRows for nodes without their own limit.
	MaxRows int
	// Timeout bounds each query when the node sets none. Zero means no bound.
	Timeout time.Duration

	mu  sync.Mutex
	dbs map[string]*sql.DB
}

// Result is the value a db node leaves behind.
type Result struct {
	Success   bool             `json:"success"`
	RowCount  int              `json:"rowCount"`
	Data      []map[string]any `json:"data"`
	Truncated bool             `json:"truncated"`
}

// Register implements executor.Module.
func (m *Module) Register(r *executor.Registry) {
	r.Register(node.KindDB, m.Execute)
}

// Close closes every pooled connection.
func (m *Module) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var errs []string
	for key, db := range m.dbs {
		if err := db.Close(); err != nil {
			errs = append(errs, err.Error())
		}
		delete(m.dbs, key)
	}
	if len(errs) > 0 {
		return fmt.Errorf("failed to close databases: %s", strings.Join(errs, "; "))
	}
	return nil
}

func (m *Module) open(driver, dsn string) (*sql.DB, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := driver + "\x00" + dsn
	if db, ok := m.dbs[key]; ok {
		return db, nil
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", driver, err)
	}
	if m.dbs == nil {
		m.dbs = make(map[string]*sql.DB)
	}
	m.dbs[key] = db
	return db, nil
}

// Execute runs the query of a *node.DBConfig and returns its rows.
func (m *Module) Execute(ctx context.Context, cfg node.Config) (any, error) {
	c, err := executor.ConfigAs[*node.DBConfig](cfg)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(c.Query) == "" {
		return nil, fmt.Errorf("query is empty")
	}
	driver := c.Driver
	if driver == "" {
		driver = DefaultDriver
	}
	logger := ctxlog.FromContext(ctx).With("driver", driver)

	timeout := c.Timeout
	if timeout <= 0 {
		timeout = m.Timeout
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	db, err := m.open(driver, c.DSN)
	if err != nil {
		return nil, err
	}

	logger.Info("🗄️ Running query.")
	rows, err := db.QueryContext(ctx, c.Query, namedArgs(c.ResolvedArgs)...)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	maxRows := c.MaxRows
	if maxRows == 0 {
		maxRows = m.MaxRows
	}
	if maxRows <= 0 {
		maxRows = DefaultMaxRows
	}

	res, err := collect(rows, c.Columns, maxRows)
	if err != nil {
		return nil, err
	}
	logger.Debug("Query finished.", "rows", res.RowCount, "truncated", res.Truncated)
	return res, nil
}

// namedArgs turns resolved parameters into sql.Named arguments in key order.
func namedArgs(params map[string]any) []any {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	args := make([]any, 0, len(keys))
	for _, k := range keys {
		args = append(args, sql.Named(k, params[k]))
	}
	return args
}

func collect(rows *sql.Rows, columns []node.Column, maxRows int) (*Result, error) {
	names, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read columns: %w", err)
	}
	selected := selectColumns(names, columns)

	res := &Result{Success: true, Data: []map[string]any{}}
	for rows.Next() {
		if len(res.Data) == maxRows {
			res.Truncated = true
			break
		}
		values := make([]any, len(names))
		ptrs := make([]any, len(names))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		row := make(map[string]any, len(selected))
		for i, name := range names {
			if out, ok := selected[name]; ok {
				row[out] = normalize(values[i])
			}
		}
		res.Data = append(res.Data, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate rows: %w", err)
	}
	res.RowCount = len(res.Data)
	return res, nil
}

// selectColumns maps source column names to output names. With no enabled
// column selection every column is kept under its own name.
func selectColumns(names []string, columns []node.Column) map[string]string {
	out := make(map[string]string, len(names))
	for _, c := range columns {
		if c.Disabled || c.Name == "" {
			continue
		}
		alias := c.Alias
		if alias == "" {
			alias = c.Name
		}
		out[c.Name] = alias
	}
	if len(out) > 0 {
		return out
	}
	for _, n := range names {
		out[n] = n
	}
	return out
}

func normalize(v any) any {
	switch val := v.(type) {
	case []byte:
		return string(val)
	case time.Time:
		return val.Format(time.RFC3339Nano)
	}
	return v
}
