package client

import (
	"sort"

	"github.com/roach88/tablesync/internal/ir"
	"github.com/roach88/tablesync/internal/registry"
)

// Replica is the client's local copy of synchronized tables, keyed by row id.
type Replica struct {
	tables map[string]*replicaTable
}

type replicaTable struct {
	columns []string
	rows    map[int64][]ir.Value
}

// NewReplica returns an empty replica.
func NewReplica() *Replica {
	return &Replica{tables: make(map[string]*replicaTable)}
}

// Apply upserts every row of p. Rows without an integer id are skipped.
func (r *Replica) Apply(p ir.TablePayload) {
	t := r.table(p.Name)
	if len(p.Columns) > 0 {
		t.columns = append([]string(nil), p.Columns...)
	}
	idx := indexOf(t.columns, registry.ColumnID)
	if idx < 0 {
		return
	}
	for _, row := range p.Rows {
		if idx >= len(row) {
			continue
		}
		id, ok := row[idx].(ir.Int)
		if !ok {
			continue
		}
		t.rows[int64(id)] = append([]ir.Value(nil), row...)
	}
}

// Remove deletes a row. Removing an unknown row is a no-op.
func (r *Replica) Remove(table string, id int64) bool {
	t, ok := r.tables[table]
	if !ok {
		return false
	}
	if _, ok := t.rows[id]; !ok {
		return false
	}
	delete(t.rows, id)
	return true
}

// Len returns the number of rows held for table.
func (r *Replica) Len(table string) int {
	if t, ok := r.tables[table]; ok {
		return len(t.rows)
	}
	return 0
}

// IDs returns the row ids held for table in ascending order.
func (r *Replica) IDs(table string) []int64 {
	t, ok := r.tables[table]
	if !ok {
		return nil
	}
	ids := make([]int64, 0, len(t.rows))
	for id := range t.rows {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Row returns one row as a column-name map.
func (r *Replica) Row(table string, id int64) (map[string]ir.Value, bool) {
	t, ok := r.tables[table]
	if !ok {
		return nil, false
	}
	row, ok := t.rows[id]
	if !ok {
		return nil, false
	}
	out := make(map[string]ir.Value, len(t.columns))
	for i, c := range t.columns {
		if i < len(row) {
			out[c] = row[i]
		}
	}
	return out, true
}

// Tables returns the names of tables that have been seen, sorted.
func (r *Replica) Tables() []string {
	names := make([]string, 0, len(r.tables))
	for name := range r.tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *Replica) table(name string) *replicaTable {
	t, ok := r.tables[name]
	if !ok {
		t = &replicaTable{rows: make(map[int64][]ir.Value)}
		r.tables[name] = t
	}
	return t
}

func indexOf(columns []string, name string) int {
	for i, c := range columns {
		if c == name {
			return i
		}
	}
	return -1
}
