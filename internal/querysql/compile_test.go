package querysql

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tablesync/internal/ir"
	"github.com/roach88/tablesync/internal/queryir"
)

func TestCompile_DeltaSelect(t *testing.T) {
	compiler := NewSQLCompiler()

	query := queryir.Select{
		From:    "branch",
		Columns: []string{"id", "name"},
		Filter: queryir.And{Predicates: []queryir.Predicate{
			queryir.Equals{Field: "idAccount", Value: ir.Int(1)},
			queryir.Or{Predicates: []queryir.Predicate{
				queryir.Greater{Field: "id", Value: ir.Int(4)},
				queryir.In{Field: "id", Values: []ir.Value{ir.Int(2), ir.Int(3)}},
			}},
		}},
		Limit: 3,
	}

	sql, params, err := compiler.Compile(query)
	require.NoError(t, err)

	assert.Equal(t,
		"SELECT id, name FROM branch WHERE idAccount = ? AND (id > ? OR id IN (?, ?)) ORDER BY id ASC LIMIT ?",
		sql)
	assert.Equal(t, []any{int64(1), int64(4), int64(2), int64(3), int64(3)}, params)
}

func TestCompile_OrderByMandatory(t *testing.T) {
	compiler := NewSQLCompiler()

	for _, q := range []queryir.Select{
		{From: "branch", Columns: []string{"id"}},
		{From: "modify", Columns: []string{"id", "idRow"}, Filter: queryir.Equals{Field: "tableId", Value: ir.Int(2)}},
		{From: "modify", Columns: []string{"id"}, OrderBy: "idRow"},
	} {
		sql, _, err := compiler.Compile(q)
		require.NoError(t, err)
		assert.Contains(t, sql, " ORDER BY ", sql)
	}
}

func TestCompile_NoStringInterpolation(t *testing.T) {
	compiler := NewSQLCompiler()

	dangerousValue := "'; DROP TABLE branch; --"

	sql, params, err := compiler.Compile(queryir.Insert{
		Into:    "branch",
		Columns: []string{"idAccount", "name"},
		Values:  []ir.Value{ir.Int(1), ir.String(dangerousValue)},
	})
	require.NoError(t, err)

	assert.Equal(t, "INSERT INTO branch (idAccount, name) VALUES (?, ?)", sql)
	assert.NotContains(t, sql, dangerousValue)
	assert.Equal(t, []any{int64(1), dangerousValue}, params)
}

func TestCompile_Update(t *testing.T) {
	compiler := NewSQLCompiler()

	sql, params, err := compiler.Compile(queryir.Update{
		Table: "branch",
		Set: []queryir.Assignment{
			{Column: "name", Value: ir.String("y")},
		},
		Filter: queryir.And{Predicates: []queryir.Predicate{
			queryir.Equals{Field: "idAccount", Value: ir.Int(1)},
			queryir.Equals{Field: "id", Value: ir.Int(7)},
		}},
	})
	require.NoError(t, err)

	assert.Equal(t, "UPDATE branch SET name = ? WHERE idAccount = ? AND id = ?", sql)
	assert.Equal(t, []any{"y", int64(1), int64(7)}, params)
}

func TestCompile_Delete(t *testing.T) {
	compiler := NewSQLCompiler()

	sql, params, err := compiler.Compile(queryir.Delete{
		From: "modify",
		Filter: queryir.And{Predicates: []queryir.Predicate{
			queryir.Equals{Field: "idAccount", Value: ir.Int(1)},
			queryir.Equals{Field: "tableId", Value: ir.Int(2)},
			queryir.Equals{Field: "idRow", Value: ir.Int(9)},
		}},
	})
	require.NoError(t, err)

	assert.Equal(t, "DELETE FROM modify WHERE idAccount = ? AND tableId = ? AND idRow = ?", sql)
	assert.Equal(t, []any{int64(1), int64(2), int64(9)}, params)
}

func TestCompile_NullEquals(t *testing.T) {
	compiler := NewSQLCompiler()

	sql, params, err := compiler.Compile(queryir.Select{
		From:    "branch",
		Columns: []string{"id"},
		Filter:  queryir.Equals{Field: "name", Value: ir.Null{}},
	})
	require.NoError(t, err)

	assert.Equal(t, "SELECT id FROM branch WHERE name IS NULL ORDER BY id ASC", sql)
	assert.Empty(t, params)
}

func TestCompile_RejectsInvalid(t *testing.T) {
	compiler := NewSQLCompiler()

	_, _, err := compiler.Compile(queryir.Select{
		From:    "branch",
		Columns: []string{"id"},
		Filter:  queryir.In{Field: "id"},
	})
	assert.ErrorIs(t, err, queryir.ErrInvalidStatement)

	_, _, err = compiler.Compile(queryir.Delete{From: "branch"})
	assert.ErrorIs(t, err, queryir.ErrInvalidStatement)
}

func TestCompile_EmptyAndCannotReachWholeTable(t *testing.T) {
	compiler := NewSQLCompiler()

	_, _, err := compiler.Compile(queryir.Delete{From: "branch", Filter: queryir.And{}})
	assert.ErrorIs(t, err, queryir.ErrInvalidStatement)

	_, _, err = compiler.Compile(queryir.Update{
		Table:  "branch",
		Set:    []queryir.Assignment{{Column: "name", Value: ir.String("x")}},
		Filter: queryir.And{},
	})
	assert.ErrorIs(t, err, queryir.ErrInvalidStatement)

	// An empty And is still allowed on a Select.
	sql, _, err := compiler.Compile(queryir.Select{
		From:    "branch",
		Columns: []string{"id"},
		Filter:  queryir.And{},
		OrderBy: "id",
	})
	require.NoError(t, err)
	assert.Equal(t, "SELECT id FROM branch WHERE 1 = 1 ORDER BY id ASC", sql)
}
