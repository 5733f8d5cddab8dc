package querysql

import (
	"fmt"
	"strings"

	"github.com/roach88/tablesync/internal/ir"
	"github.com/roach88/tablesync/internal/queryir"
)

// DefaultOrderKey is the ordering column used when a Select names none.
const DefaultOrderKey = "id"

// SQLCompiler compiles queryir statements to parameterized SQL for SQLite.
//
// Every Select carries an ORDER BY. Values are always bound with ?
// placeholders and never interpolated.
type SQLCompiler struct{}

// NewSQLCompiler creates a new SQLCompiler.
func NewSQLCompiler() *SQLCompiler {
	return &SQLCompiler{}
}

// Compile validates stmt and converts it to SQL.
// Returns (sql, params, error).
func (c *SQLCompiler) Compile(stmt queryir.Statement) (string, []any, error) {
	if err := queryir.Validate(stmt); err != nil {
		return "", nil, err
	}

	switch s := stmt.(type) {
	case queryir.Select:
		return c.compileSelect(s)
	case queryir.Insert:
		return c.compileInsert(s)
	case queryir.Update:
		return c.compileUpdate(s)
	case queryir.Delete:
		return c.compileDelete(s)
	default:
		return "", nil, fmt.Errorf("unsupported statement type: %T", stmt)
	}
}

func (c *SQLCompiler) compileSelect(q queryir.Select) (string, []any, error) {
	var sb strings.Builder
	var params []any

	fmt.Fprintf(&sb, "SELECT %s FROM %s", strings.Join(q.Columns, ", "), q.From)

	if q.Filter != nil {
		where, whereParams, err := c.compilePredicate(q.Filter)
		if err != nil {
			return "", nil, fmt.Errorf("compile filter: %w", err)
		}
		sb.WriteString(" WHERE ")
		sb.WriteString(where)
		params = whereParams
	}

	sb.WriteString(" ORDER BY ")
	sb.WriteString(stableOrderKey(q))

	if q.Limit > 0 {
		sb.WriteString(" LIMIT ?")
		params = append(params, int64(q.Limit))
	}

	return sb.String(), params, nil
}

// stableOrderKey returns the ORDER BY clause body for a select.
func stableOrderKey(q queryir.Select) string {
	key := q.OrderBy
	if key == "" {
		key = DefaultOrderKey
	}
	return key + " ASC"
}

func (c *SQLCompiler) compileInsert(q queryir.Insert) (string, []any, error) {
	params := make([]any, len(q.Values))
	for i, v := range q.Values {
		p, err := valueToParam(v)
		if err != nil {
			return "", nil, fmt.Errorf("value for %s: %w", q.Columns[i], err)
		}
		params[i] = p
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(q.Columns)), ", ")
	sql := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		q.Into,
		strings.Join(q.Columns, ", "),
		placeholders)
	return sql, params, nil
}

func (c *SQLCompiler) compileUpdate(q queryir.Update) (string, []any, error) {
	sets := make([]string, len(q.Set))
	params := make([]any, 0, len(q.Set))
	for i, a := range q.Set {
		p, err := valueToParam(a.Value)
		if err != nil {
			return "", nil, fmt.Errorf("value for %s: %w", a.Column, err)
		}
		sets[i] = a.Column + " = ?"
		params = append(params, p)
	}

	where, whereParams, err := c.compilePredicate(q.Filter)
	if err != nil {
		return "", nil, fmt.Errorf("compile filter: %w", err)
	}

	sql := fmt.Sprintf("UPDATE %s SET %s WHERE %s", q.Table, strings.Join(sets, ", "), where)
	return sql, append(params, whereParams...), nil
}

func (c *SQLCompiler) compileDelete(q queryir.Delete) (string, []any, error) {
	where, params, err := c.compilePredicate(q.Filter)
	if err != nil {
		return "", nil, fmt.Errorf("compile filter: %w", err)
	}
	return fmt.Sprintf("DELETE FROM %s WHERE %s", q.From, where), params, nil
}

// compilePredicate compiles a predicate to a WHERE fragment.
// Nested And/Or groups are parenthesized.
func (c *SQLCompiler) compilePredicate(p queryir.Predicate) (string, []any, error) {
	switch pred := p.(type) {
	case nil:
		return "1 = 1", nil, nil
	case queryir.Equals:
		return compileComparison(pred.Field, "=", pred.Value)
	case queryir.Greater:
		return compileComparison(pred.Field, ">", pred.Value)
	case queryir.In:
		params := make([]any, len(pred.Values))
		for i, v := range pred.Values {
			param, err := valueToParam(v)
			if err != nil {
				return "", nil, fmt.Errorf("convert value: %w", err)
			}
			params[i] = param
		}
		placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(params)), ", ")
		return fmt.Sprintf("%s IN (%s)", pred.Field, placeholders), params, nil
	case queryir.And:
		if len(pred.Predicates) == 0 {
			return "1 = 1", nil, nil
		}
		return c.compileGroup(pred.Predicates, " AND ")
	case queryir.Or:
		return c.compileGroup(pred.Predicates, " OR ")
	default:
		return "", nil, fmt.Errorf("unsupported predicate type: %T", p)
	}
}

func (c *SQLCompiler) compileGroup(preds []queryir.Predicate, sep string) (string, []any, error) {
	parts := make([]string, 0, len(preds))
	var params []any
	for _, sub := range preds {
		sql, subParams, err := c.compilePredicate(sub)
		if err != nil {
			return "", nil, err
		}
		switch sub.(type) {
		case queryir.And, queryir.Or:
			sql = "(" + sql + ")"
		}
		parts = append(parts, sql)
		params = append(params, subParams...)
	}
	return strings.Join(parts, sep), params, nil
}

// compileComparison produces "field op ?". A null Equals becomes IS NULL.
func compileComparison(field, op string, v ir.Value) (string, []any, error) {
	if _, isNull := v.(ir.Null); (v == nil || isNull) && op == "=" {
		return field + " IS NULL", nil, nil
	}
	param, err := valueToParam(v)
	if err != nil {
		return "", nil, fmt.Errorf("convert value: %w", err)
	}
	return fmt.Sprintf("%s %s ?", field, op), []any{param}, nil
}

// valueToParam converts a scalar ir.Value to a database/sql parameter.
func valueToParam(v ir.Value) (any, error) {
	switch val := v.(type) {
	case nil, ir.Null:
		return nil, nil
	case ir.String:
		return string(val), nil
	case ir.Int:
		return int64(val), nil
	case ir.Bool:
		return bool(val), nil
	default:
		return nil, fmt.Errorf("unsupported value type for SQL parameter: %T", v)
	}
}
