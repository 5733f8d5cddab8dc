// Package delta computes, per table, the bounded page of rows a client is
// missing given its cursor, and whether more pages remain.
//
// For a data table T with cursor (lastRowId r, lastLogId l) and page size K:
//
//  1. read up to K+1 modification entries for (account, T) with id > l;
//     the first K are consumed, an overflow means T is not exhausted
//  2. select rows of account where id > r OR id IN (changed ids), ordered by
//     id, LIMIT K+1; the IN list is never empty (sentinel 0)
//  3. return up to K rows; an overflow row means T is not exhausted
//  4. report lastLogId as the largest consumed entry id, or l
//
// The deletion log is streamed like a table, paged by id > r, and is how
// clients learn about removed rows. The modification log is never streamed.
// EOF for a response is the AND over every table.
package delta

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/tablesync/internal/changelog"
	"github.com/roach88/tablesync/internal/ir"
	"github.com/roach88/tablesync/internal/queryir"
	"github.com/roach88/tablesync/internal/registry"
	"github.com/roach88/tablesync/internal/store"
)

const (
	// DefaultPageSize is the number of rows returned per table per request.
	DefaultPageSize = 2

	// MaxPageSize bounds both LIMIT and the IN list.
	MaxPageSize = 100

	// sentinelRowID never matches a row; ids start at 1.
	sentinelRowID = 0
)

// Resolver computes deltas. Safe for concurrent use.
type Resolver struct {
	store       *store.Store
	registry    *registry.Registry
	pageSize    int
	parallelism int
	logger      *slog.Logger
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithPageSize sets K. Must be in [1, MaxPageSize].
func WithPageSize(k int) Option {
	return func(r *Resolver) { r.pageSize = k }
}

// WithParallelism resolves up to n tables concurrently. n <= 1 is sequential.
func WithParallelism(n int) Option {
	return func(r *Resolver) { r.parallelism = n }
}

// WithLogger sets the logger. nil means slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(r *Resolver) {
		if l != nil {
			r.logger = l
		}
	}
}

// NewResolver creates a Resolver.
func NewResolver(s *store.Store, reg *registry.Registry, opts ...Option) (*Resolver, error) {
	r := &Resolver{
		store:       s,
		registry:    reg,
		pageSize:    DefaultPageSize,
		parallelism: 1,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.pageSize < 1 || r.pageSize > MaxPageSize {
		return nil, fmt.Errorf("page size %d out of range [1, %d]", r.pageSize, MaxPageSize)
	}
	if r.parallelism < 1 {
		r.parallelism = 1
	}
	return r, nil
}

// PageSize returns K.
func (r *Resolver) PageSize() int {
	return r.pageSize
}

// Result is the outcome of one resolution.
type Result struct {
	// Tables holds a payload for every table with rows or consumed log
	// entries, in registry order.
	Tables []ir.TablePayload

	// EOF is true when every table was exhausted this round.
	EOF bool
}

type tableResult struct {
	payload   ir.TablePayload
	include   bool
	exhausted bool
}

// Resolve computes the next page for every registered table. Cursors are
// keyed by table name (case-insensitive); tables without a cursor start from
// zero and cursors for unknown tables are ignored. All reads share one
// transaction, so a concurrent mutation is either fully visible or not at
// all. Any store error fails the whole resolution.
//
// A row edited before the client first received it is sent twice: once when
// paging by id reaches it, and again when its fresh modification entry is
// consumed. With K=2, five rows and row 1 edited, the pages are [1 2],
// [3 4], [1 5]. Clients apply rows by id, so the second copy replaces the
// first.
func (r *Resolver) Resolve(ctx context.Context, account ir.AccountID, cursors map[string]ir.Cursor) (Result, error) {
	normalized := make(map[string]ir.Cursor, len(cursors))
	for name, c := range cursors {
		normalized[registry.Normalize(name)] = c
	}

	tables := r.registry.Tables()
	results := make([]tableResult, len(tables))

	err := r.store.InTx(ctx, func(tx *sql.Tx) error {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(r.parallelism)

		for i, t := range tables {
			if t.Kind == registry.KindModificationLog {
				results[i] = tableResult{exhausted: true}
				continue
			}
			cursor := normalized[registry.Normalize(t.Name)]
			g.Go(func() error {
				res, err := r.resolveTable(gctx, tx, account, t, cursor)
				if err != nil {
					return fmt.Errorf("resolve %s: %w", t.Name, err)
				}
				results[i] = res
				return nil
			})
		}
		return g.Wait()
	})
	if err != nil {
		return Result{}, err
	}

	out := Result{EOF: true, Tables: []ir.TablePayload{}}
	for _, res := range results {
		out.EOF = out.EOF && res.exhausted
		if res.include {
			out.Tables = append(out.Tables, res.payload)
		}
	}

	r.logger.Debug("delta resolved",
		"account", int64(account),
		"tables", len(out.Tables),
		"eof", out.EOF)
	return out, nil
}

func (r *Resolver) resolveTable(ctx context.Context, q store.Querier, account ir.AccountID, t registry.Table, cursor ir.Cursor) (tableResult, error) {
	k := r.pageSize
	res := tableResult{exhausted: true}

	var (
		rows    store.Rows
		changed []int64
		err     error
	)
	lastLogID := cursor.LastLogID

	switch t.Kind {
	case registry.KindData:
		var entries []changelog.Entry
		entries, err = changelog.Modifications(ctx, q, account, t.ID, cursor.LastLogID, k+1)
		if err != nil {
			return tableResult{}, err
		}
		if len(entries) > k {
			entries = entries[:k]
			res.exhausted = false
		}
		changed = changelog.RowIDs(entries)
		lastLogID = changelog.MaxID(entries, cursor.LastLogID)
		res.include = len(entries) > 0

		rows, err = store.Query(ctx, q, queryir.Select{
			From:    t.Name,
			Columns: t.PublicColumns(),
			Filter:  rowFilter(account, cursor.LastRowID, changed),
			Limit:   k + 1,
		})
	case registry.KindDeletionLog:
		rows, err = deletionPage(ctx, q, account, t, cursor.LastRowID, k+1)
	default:
		return tableResult{}, fmt.Errorf("table kind %s is not streamed", t.Kind)
	}
	if err != nil {
		return tableResult{}, err
	}

	values := rows.Values
	if len(values) > k {
		values = values[:k]
		res.exhausted = false
	}
	if len(values) > 0 {
		res.include = true
	}

	res.payload = ir.TablePayload{
		Name:      t.Name,
		Columns:   rows.Columns,
		Rows:      values,
		LastLogID: lastLogID,
	}

	r.logger.Debug("table resolved",
		"table", t.Name,
		"last_row_id", cursor.LastRowID,
		"last_log_id", cursor.LastLogID,
		"rows", len(values),
		"changed", len(changed),
		"exhausted", res.exhausted)
	return res, nil
}

// deletionPage reads up to limit deletion entries of account with id past
// lastRowID and lays them out as rows of t's public columns.
func deletionPage(ctx context.Context, q store.Querier, account ir.AccountID, t registry.Table, lastRowID int64, limit int) (store.Rows, error) {
	entries, err := changelog.Deletions(ctx, q, account, lastRowID, limit)
	if err != nil {
		return store.Rows{}, err
	}

	out := store.Rows{Columns: t.PublicColumns(), Values: make([][]ir.Value, 0, len(entries))}
	for _, e := range entries {
		row := make([]ir.Value, len(out.Columns))
		for i, col := range out.Columns {
			switch col {
			case registry.ColumnID:
				row[i] = ir.Int(e.ID)
			case registry.ColumnTableID:
				row[i] = ir.Int(e.TableID)
			case registry.ColumnRowID:
				row[i] = ir.Int(e.RowID)
			default:
				return store.Rows{}, fmt.Errorf("%s: column %q has no log field", t.Name, col)
			}
		}
		out.Values = append(out.Values, row)
	}
	return out, nil
}

// rowFilter scopes to account and selects rows past the high-water mark
// plus the changed ids.
func rowFilter(account ir.AccountID, lastRowID int64, changed []int64) queryir.Predicate {
	ids := make([]ir.Value, 0, len(changed))
	for _, id := range changed {
		ids = append(ids, ir.Int(id))
	}
	if len(ids) == 0 {
		ids = append(ids, ir.Int(sentinelRowID))
	}

	return queryir.And{Predicates: []queryir.Predicate{
		queryir.Equals{Field: registry.ColumnAccount, Value: ir.Int(account)},
		queryir.Or{Predicates: []queryir.Predicate{
			queryir.Greater{Field: registry.ColumnID, Value: ir.Int(lastRowID)},
			queryir.In{Field: registry.ColumnID, Values: ids},
		}},
	}}
}
