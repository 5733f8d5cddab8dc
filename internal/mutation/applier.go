// Package mutation applies client create, update and delete actions.
//
// Each operation validates the table and columns against the registry before
// any statement is built, then runs the row change and its change-log
// bookkeeping in one transaction. Account scoping is part of every statement.
package mutation

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/roach88/tablesync/internal/changelog"
	"github.com/roach88/tablesync/internal/ir"
	"github.com/roach88/tablesync/internal/queryir"
	"github.com/roach88/tablesync/internal/registry"
	"github.com/roach88/tablesync/internal/store"
)

// Result describes a committed mutation.
type Result struct {
	Verb  ir.Verb
	Table string
	RowID int64
	LogID int64
}

// Applier executes mutations for one store and registry.
// Safe for concurrent use; each call runs its own transaction.
type Applier struct {
	store    *store.Store
	registry *registry.Registry
	logger   *slog.Logger
}

// NewApplier creates an Applier. A nil logger means slog.Default().
func NewApplier(s *store.Store, reg *registry.Registry, logger *slog.Logger) *Applier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Applier{store: s, registry: reg, logger: logger}
}

// Apply dispatches action by verb.
//
// CREATE and UPDATE take an object payload; UPDATE reads the target row id
// from its "id" field, matched like any other column name. DELETE takes the
// integer row id.
func (a *Applier) Apply(ctx context.Context, account ir.AccountID, action ir.Action) (Result, error) {
	switch action.Verb {
	case ir.VerbCreate:
		fields, ok := action.Payload.(ir.Object)
		if !ok {
			return Result{}, badRequest("CREATE payload must be an object")
		}
		return a.Create(ctx, account, action.Table, fields)

	case ir.VerbUpdate:
		fields, ok := action.Payload.(ir.Object)
		if !ok {
			return Result{}, badRequest("UPDATE payload must be an object")
		}
		if _, err := a.writableTable(action.Table); err != nil {
			return Result{}, err
		}
		id, err := targetID(fields)
		if err != nil {
			return Result{}, err
		}
		return a.Update(ctx, account, action.Table, id, fields)

	case ir.VerbDelete:
		id, ok := action.Payload.(ir.Int)
		if !ok || id <= 0 {
			return Result{}, badRequest("DELETE payload must be a positive integer row id")
		}
		return a.Delete(ctx, account, action.Table, int64(id))

	default:
		return Result{}, badRequest("unknown verb %q", action.Verb)
	}
}

// Create inserts one row owned by account and appends one modification
// entry for it. Read-only fields are dropped; private, unknown or malformed
// column names are Forbidden.
func (a *Applier) Create(ctx context.Context, account ir.AccountID, table string, fields ir.Object) (Result, error) {
	t, err := a.writableTable(table)
	if err != nil {
		return Result{}, err
	}
	set, err := writeSet(t, fields)
	if err != nil {
		return Result{}, err
	}

	columns := []string{registry.ColumnAccount}
	values := []ir.Value{ir.Int(account)}
	for _, s := range set {
		columns = append(columns, s.Column)
		values = append(values, s.Value)
	}

	res := Result{Verb: ir.VerbCreate, Table: t.Name}
	err = a.inTx(ctx, func(tx *sql.Tx) error {
		ins, err := store.Exec(ctx, tx, queryir.Insert{Into: t.Name, Columns: columns, Values: values})
		if err != nil {
			return storeError("insert", err)
		}
		if ins.RowsAffected != 1 {
			return integrity("insert", fmt.Errorf("%d rows affected", ins.RowsAffected))
		}
		res.RowID = ins.LastInsertID

		res.LogID, err = appendLog(ctx, tx, changelog.Modification, account, t.ID, res.RowID)
		return err
	})
	if err != nil {
		return Result{}, err
	}

	a.logger.Debug("row created", "account", int64(account), "table", t.Name, "row", res.RowID, "log_id", res.LogID)
	return res, nil
}

// Update changes the mutable fields present in fields on row id of account,
// replaces the row's modification entries with a fresh one and fails with
// NotFound unless exactly one row matched.
func (a *Applier) Update(ctx context.Context, account ir.AccountID, table string, id int64, fields ir.Object) (Result, error) {
	t, err := a.writableTable(table)
	if err != nil {
		return Result{}, err
	}
	set, err := writeSet(t, fields)
	if err != nil {
		return Result{}, err
	}
	if len(set) == 0 {
		return Result{}, badRequest("UPDATE has no writable fields")
	}

	res := Result{Verb: ir.VerbUpdate, Table: t.Name, RowID: id}
	err = a.inTx(ctx, func(tx *sql.Tx) error {
		upd, err := store.Exec(ctx, tx, queryir.Update{
			Table:  t.Name,
			Set:    set,
			Filter: rowFilter(account, id),
		})
		if err != nil {
			return storeError("update", err)
		}
		if upd.RowsAffected != 1 {
			return notFound()
		}

		if _, err := changelog.PruneModifications(ctx, tx, account, t.ID, id); err != nil {
			return storeError("prune", err)
		}

		res.LogID, err = appendLog(ctx, tx, changelog.Modification, account, t.ID, id)
		return err
	})
	if err != nil {
		return Result{}, err
	}

	a.logger.Debug("row updated", "account", int64(account), "table", t.Name, "row", id, "log_id", res.LogID)
	return res, nil
}

// Delete removes row id of account, appends one deletion entry and prunes
// the row's modification entries. Fails with NotFound unless exactly one
// row matched.
func (a *Applier) Delete(ctx context.Context, account ir.AccountID, table string, id int64) (Result, error) {
	t, err := a.writableTable(table)
	if err != nil {
		return Result{}, err
	}

	res := Result{Verb: ir.VerbDelete, Table: t.Name, RowID: id}
	err = a.inTx(ctx, func(tx *sql.Tx) error {
		del, err := store.Exec(ctx, tx, queryir.Delete{From: t.Name, Filter: rowFilter(account, id)})
		if err != nil {
			return storeError("delete", err)
		}
		if del.RowsAffected != 1 {
			return notFound()
		}

		res.LogID, err = appendLog(ctx, tx, changelog.Deletion, account, t.ID, id)
		if err != nil {
			return err
		}

		if _, err := changelog.PruneModifications(ctx, tx, account, t.ID, id); err != nil {
			return storeError("prune", err)
		}
		return nil
	})
	if err != nil {
		return Result{}, err
	}

	a.logger.Debug("row deleted", "account", int64(account), "table", t.Name, "row", id, "log_id", res.LogID)
	return res, nil
}

// inTx runs fn in a store transaction and makes sure whatever comes back is
// a *Error.
func (a *Applier) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	err := a.store.InTx(ctx, fn)
	if err == nil {
		return nil
	}
	var me *Error
	if errors.As(err, &me) {
		return me
	}
	return storeError("transaction", err)
}

func (a *Applier) writableTable(name string) (registry.Table, error) {
	t, ok := a.registry.Lookup(name)
	if !ok || t.ReadOnly || t.Kind != registry.KindData {
		return registry.Table{}, forbidden("table is not writable")
	}
	return t, nil
}

// writeSet validates fields against t and returns the assignments to write,
// ordered by column name. Read-only columns are dropped.
func writeSet(t registry.Table, fields ir.Object) ([]queryir.Assignment, error) {
	var set []queryir.Assignment
	seen := make(map[string]bool, len(fields))

	for _, key := range fields.SortedKeys() {
		if !registry.IsValidColumnIdentifier(key) {
			return nil, forbidden("column is not writable")
		}
		col, ok := t.Column(key)
		if !ok || col.Classification == registry.Private {
			return nil, forbidden("column is not writable")
		}
		if seen[col.Name] {
			return nil, badRequest("field given twice")
		}
		seen[col.Name] = true

		if col.Classification == registry.ReadOnly {
			continue
		}

		v := fields[key]
		if v == nil {
			v = ir.Null{}
		}
		if !ir.IsScalar(v) {
			return nil, badRequest("field values must be scalar")
		}
		set = append(set, queryir.Assignment{Column: col.Name, Value: v})
	}

	sort.Slice(set, func(i, j int) bool { return set[i].Column < set[j].Column })
	return set, nil
}

// targetID returns the row id carried by an UPDATE payload. The key is
// compared after normalization, so "Id" and "ID" name the id column too.
func targetID(fields ir.Object) (int64, error) {
	for _, key := range fields.SortedKeys() {
		if registry.Normalize(key) != registry.ColumnID {
			continue
		}
		id, ok := fields[key].(ir.Int)
		if !ok || id <= 0 {
			return 0, badRequest("UPDATE %q must be a positive integer", registry.ColumnID)
		}
		return int64(id), nil
	}
	return 0, badRequest("UPDATE payload must carry %q", registry.ColumnID)
}

func rowFilter(account ir.AccountID, id int64) queryir.Predicate {
	return queryir.And{Predicates: []queryir.Predicate{
		queryir.Equals{Field: registry.ColumnAccount, Value: ir.Int(account)},
		queryir.Equals{Field: registry.ColumnID, Value: ir.Int(id)},
	}}
}

func appendLog(ctx context.Context, tx *sql.Tx, kind changelog.Kind, account ir.AccountID, tableID int, rowID int64) (int64, error) {
	id, err := changelog.Append(ctx, tx, kind, account, tableID, rowID)
	if errors.Is(err, changelog.ErrIntegrity) {
		return 0, integrity("log append", err)
	}
	if err != nil {
		return 0, storeError("log append", err)
	}
	return id, nil
}
