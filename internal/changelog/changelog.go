// Package changelog appends to and reads the two change logs.
//
// The modification log (modify) records that a row was created or edited;
// the deletion log (erase) records that a row is gone. Entries are
// (id, idAccount, tableId, idRow) and ids come from an AUTOINCREMENT key, so
// they only grow. Entries are never updated. Modification entries are
// removed only when a newer entry or a deletion supersedes them.
//
// Every function takes a store.Querier so callers append inside the same
// transaction as the row change they record.
package changelog

import (
	"context"
	"errors"
	"fmt"

	"github.com/roach88/tablesync/internal/ir"
	"github.com/roach88/tablesync/internal/queryir"
	"github.com/roach88/tablesync/internal/registry"
	"github.com/roach88/tablesync/internal/store"
)

// ErrIntegrity is returned when a log append does not affect exactly one row.
var ErrIntegrity = errors.New("change log integrity")

// Kind selects one of the two logs.
type Kind int

const (
	Modification Kind = iota
	Deletion
)

func (k Kind) String() string {
	if k == Deletion {
		return "deletion"
	}
	return "modification"
}

func (k Kind) table() string {
	if k == Deletion {
		return registry.TableErase
	}
	return registry.TableModify
}

// Entry is one change-log row.
type Entry struct {
	ID      int64
	Account ir.AccountID
	TableID int
	RowID   int64
}

// Append adds one entry to the log of the given kind and returns its id.
func Append(ctx context.Context, q store.Querier, kind Kind, account ir.AccountID, tableID int, rowID int64) (int64, error) {
	res, err := store.Exec(ctx, q, queryir.Insert{
		Into:    kind.table(),
		Columns: []string{registry.ColumnAccount, registry.ColumnTableID, registry.ColumnRowID},
		Values:  []ir.Value{ir.Int(account), ir.Int(tableID), ir.Int(rowID)},
	})
	if err != nil {
		return 0, fmt.Errorf("append %s: %w", kind, err)
	}
	if res.RowsAffected != 1 {
		return 0, fmt.Errorf("append %s: %w: %d rows affected", kind, ErrIntegrity, res.RowsAffected)
	}
	return res.LastInsertID, nil
}

// PruneModifications removes every modification entry for one row and
// returns how many were removed.
func PruneModifications(ctx context.Context, q store.Querier, account ir.AccountID, tableID int, rowID int64) (int64, error) {
	res, err := store.Exec(ctx, q, queryir.Delete{
		From: registry.TableModify,
		Filter: queryir.And{Predicates: []queryir.Predicate{
			queryir.Equals{Field: registry.ColumnAccount, Value: ir.Int(account)},
			queryir.Equals{Field: registry.ColumnTableID, Value: ir.Int(tableID)},
			queryir.Equals{Field: registry.ColumnRowID, Value: ir.Int(rowID)},
		}},
	})
	if err != nil {
		return 0, fmt.Errorf("prune modifications: %w", err)
	}
	return res.RowsAffected, nil
}

// Modifications returns up to limit modification entries for one table with
// id > since, ascending. limit <= 0 means no limit.
func Modifications(ctx context.Context, q store.Querier, account ir.AccountID, tableID int, since int64, limit int) ([]Entry, error) {
	return read(ctx, q, Modification, queryir.And{Predicates: []queryir.Predicate{
		queryir.Equals{Field: registry.ColumnAccount, Value: ir.Int(account)},
		queryir.Equals{Field: registry.ColumnTableID, Value: ir.Int(tableID)},
		queryir.Greater{Field: registry.ColumnID, Value: ir.Int(since)},
	}}, limit)
}

// Deletions returns up to limit deletion entries across all tables with
// id > since, ascending. limit <= 0 means no limit.
func Deletions(ctx context.Context, q store.Querier, account ir.AccountID, since int64, limit int) ([]Entry, error) {
	return read(ctx, q, Deletion, queryir.And{Predicates: []queryir.Predicate{
		queryir.Equals{Field: registry.ColumnAccount, Value: ir.Int(account)},
		queryir.Greater{Field: registry.ColumnID, Value: ir.Int(since)},
	}}, limit)
}

func read(ctx context.Context, q store.Querier, kind Kind, filter queryir.Predicate, limit int) ([]Entry, error) {
	if limit < 0 {
		limit = 0
	}
	rows, err := store.Query(ctx, q, queryir.Select{
		From:    kind.table(),
		Columns: []string{registry.ColumnID, registry.ColumnAccount, registry.ColumnTableID, registry.ColumnRowID},
		Filter:  filter,
		Limit:   limit,
	})
	if err != nil {
		return nil, fmt.Errorf("read %s log: %w", kind, err)
	}

	entries := make([]Entry, 0, len(rows.Values))
	for _, row := range rows.Values {
		var cells [4]int64
		for i := range cells {
			n, ok := row[i].(ir.Int)
			if !ok {
				return nil, fmt.Errorf("read %s log: column %s is %T, want integer", kind, rows.Columns[i], row[i])
			}
			cells[i] = int64(n)
		}
		entries = append(entries, Entry{
			ID:      cells[0],
			Account: ir.AccountID(cells[1]),
			TableID: int(cells[2]),
			RowID:   cells[3],
		})
	}
	return entries, nil
}

// RowIDs returns the distinct row ids referenced by entries, in first-seen order.
func RowIDs(entries []Entry) []int64 {
	seen := make(map[int64]bool, len(entries))
	ids := make([]int64, 0, len(entries))
	for _, e := range entries {
		if !seen[e.RowID] {
			seen[e.RowID] = true
			ids = append(ids, e.RowID)
		}
	}
	return ids
}

// MaxID returns the largest entry id, or floor when entries is empty.
func MaxID(entries []Entry, floor int64) int64 {
	maxID := floor
	for _, e := range entries {
		if e.ID > maxID {
			maxID = e.ID
		}
	}
	return maxID
}
