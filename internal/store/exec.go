package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/tablesync/internal/ir"
	"github.com/roach88/tablesync/internal/queryir"
	"github.com/roach88/tablesync/internal/querysql"
)

// Querier is satisfied by *sql.DB and *sql.Tx so the same statement helpers
// run inside or outside a transaction.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

var (
	_ Querier = (*sql.DB)(nil)
	_ Querier = (*sql.Tx)(nil)
)

// ExecResult reports the effect of an Insert, Update or Delete.
type ExecResult struct {
	RowsAffected int64
	LastInsertID int64
}

// Rows is a fully materialized result set.
type Rows struct {
	Columns []string
	Values  [][]ir.Value
}

// Exec compiles and runs a write statement.
func Exec(ctx context.Context, q Querier, stmt queryir.Statement) (ExecResult, error) {
	query, args, err := querysql.NewSQLCompiler().Compile(stmt)
	if err != nil {
		return ExecResult{}, fmt.Errorf("compile: %w", err)
	}

	res, err := q.ExecContext(ctx, query, args...)
	if err != nil {
		return ExecResult{}, fmt.Errorf("exec: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return ExecResult{}, fmt.Errorf("rows affected: %w", err)
	}

	out := ExecResult{RowsAffected: affected}
	if _, isInsert := stmt.(queryir.Insert); isInsert {
		out.LastInsertID, err = res.LastInsertId()
		if err != nil {
			return ExecResult{}, fmt.Errorf("last insert id: %w", err)
		}
	}
	return out, nil
}

// Query compiles and runs a Select, reading every row into ir values.
func Query(ctx context.Context, q Querier, sel queryir.Select) (Rows, error) {
	query, args, err := querysql.NewSQLCompiler().Compile(sel)
	if err != nil {
		return Rows{}, fmt.Errorf("compile: %w", err)
	}

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return Rows{}, fmt.Errorf("query %s: %w", sel.From, err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return Rows{}, fmt.Errorf("columns: %w", err)
	}

	out := Rows{Columns: columns, Values: [][]ir.Value{}}
	for rows.Next() {
		raw := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range raw {
			ptrs[i] = &raw[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return Rows{}, fmt.Errorf("scan %s: %w", sel.From, err)
		}

		row := make([]ir.Value, len(columns))
		for i, cell := range raw {
			v, err := ir.FromNative(cell)
			if err != nil {
				return Rows{}, fmt.Errorf("column %s: %w", columns[i], err)
			}
			row[i] = v
		}
		out.Values = append(out.Values, row)
	}

	if err := rows.Err(); err != nil {
		return Rows{}, fmt.Errorf("iterate %s: %w", sel.From, err)
	}
	return out, nil
}

// Scalar runs a single-value query and returns its integer result.
// A NULL result is reported as 0.
func Scalar(ctx context.Context, q Querier, query string, args ...any) (int64, error) {
	var v sql.NullInt64
	if err := q.QueryRowContext(ctx, query, args...).Scan(&v); err != nil {
		return 0, fmt.Errorf("scalar: %w", err)
	}
	return v.Int64, nil
}
