// Package registry holds the static allow-list of synchronizable tables.
//
// Table ids are shared with client builds and are stored in change-log rows,
// so they are append-only: an id is never reassigned or renumbered, and adding
// a table only ever appends a new id. All table and column names are
// case-normalized before lookup.
//
// The registry is pure lookup. It has no state beyond what New was given.
package registry

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// ErrUnknownTable is returned by TableID for names that are not registered.
var ErrUnknownTable = errors.New("unknown table")

// Classification describes what a client may do with a column.
type Classification int

const (
	// Unknown is returned for columns that are not registered.
	Unknown Classification = iota
	// Private columns are never sent to nor accepted from a client.
	Private
	// ReadOnly columns are sent to the client; client writes are dropped.
	ReadOnly
	// Mutable columns are sent and accepted.
	Mutable
)

func (c Classification) String() string {
	switch c {
	case Private:
		return "private"
	case ReadOnly:
		return "read-only"
	case Mutable:
		return "mutable"
	default:
		return "unknown"
	}
}

// Kind distinguishes client data tables from the change-log tables.
type Kind int

const (
	// KindData tables hold client rows and accept mutations unless ReadOnly.
	KindData Kind = iota
	// KindDeletionLog is streamed to clients as the row-removal signal.
	KindDeletionLog
	// KindModificationLog is consumed by the server; clients learn its
	// progress through each table's lastLogId.
	KindModificationLog
)

func (k Kind) String() string {
	switch k {
	case KindDeletionLog:
		return "deletion-log"
	case KindModificationLog:
		return "modification-log"
	default:
		return "data"
	}
}

// Column is one registered column of a table.
type Column struct {
	Name           string
	Classification Classification
}

// Table is one registered table.
type Table struct {
	ID       int
	Name     string
	Kind     Kind
	ReadOnly bool
	Columns  []Column
}

// Column returns the registered column with the given name.
func (t Table) Column(name string) (Column, bool) {
	key := Normalize(name)
	for _, c := range t.Columns {
		if Normalize(c.Name) == key {
			return c, true
		}
	}
	return Column{}, false
}

// PublicColumns returns the names of the non-private columns in
// registration order. These are the columns a client sees.
func (t Table) PublicColumns() []string {
	var out []string
	for _, c := range t.Columns {
		if c.Classification != Private {
			out = append(out, c.Name)
		}
	}
	return out
}

// IsLog reports whether t is one of the change-log tables.
func (t Table) IsLog() bool {
	return t.Kind == KindDeletionLog || t.Kind == KindModificationLog
}

// Registry is an immutable set of tables keyed by normalized name.
type Registry struct {
	byName  map[string]Table
	ordered []Table
}

// New builds a registry and validates it. Every table needs a valid
// identifier name, a unique id, a read-only "id" column and a private
// "idAccount" column.
func New(tables ...Table) (*Registry, error) {
	r := &Registry{byName: make(map[string]Table, len(tables))}
	ids := make(map[int]string, len(tables))

	for _, t := range tables {
		if !IsValidColumnIdentifier(t.Name) {
			return nil, fmt.Errorf("table %q: invalid identifier", t.Name)
		}
		key := Normalize(t.Name)
		if _, dup := r.byName[key]; dup {
			return nil, fmt.Errorf("table %q: registered twice", t.Name)
		}
		if other, dup := ids[t.ID]; dup {
			return nil, fmt.Errorf("table %q: id %d already used by %q", t.Name, t.ID, other)
		}
		if t.ID < 0 {
			return nil, fmt.Errorf("table %q: negative id %d", t.Name, t.ID)
		}

		seen := make(map[string]bool, len(t.Columns))
		for _, c := range t.Columns {
			if !IsValidColumnIdentifier(c.Name) {
				return nil, fmt.Errorf("table %q: column %q: invalid identifier", t.Name, c.Name)
			}
			ck := Normalize(c.Name)
			if seen[ck] {
				return nil, fmt.Errorf("table %q: column %q registered twice", t.Name, c.Name)
			}
			seen[ck] = true
			if c.Classification == Unknown {
				return nil, fmt.Errorf("table %q: column %q has no classification", t.Name, c.Name)
			}
		}
		if c, ok := t.Column(ColumnID); !ok || c.Classification != ReadOnly {
			return nil, fmt.Errorf("table %q: needs a read-only %q column", t.Name, ColumnID)
		}
		if c, ok := t.Column(ColumnAccount); !ok || c.Classification != Private {
			return nil, fmt.Errorf("table %q: needs a private %q column", t.Name, ColumnAccount)
		}
		if t.IsLog() && !t.ReadOnly {
			return nil, fmt.Errorf("table %q: change-log tables must be read-only", t.Name)
		}

		t.Columns = append([]Column(nil), t.Columns...)
		r.byName[key] = t
		ids[t.ID] = t.Name
		r.ordered = append(r.ordered, t)
	}

	sort.Slice(r.ordered, func(i, j int) bool { return r.ordered[i].ID < r.ordered[j].ID })
	return r, nil
}

// MustNew is New for static registries; it panics on an invalid definition.
func MustNew(tables ...Table) *Registry {
	r, err := New(tables...)
	if err != nil {
		panic(err)
	}
	return r
}

// Normalize case-normalizes a table or column name for lookup.
func Normalize(name string) string {
	return strings.TrimSpace(cases.Lower(language.Und).String(norm.NFC.String(name)))
}

// IsValidColumnIdentifier reports whether name may be interpolated into a
// statement as an identifier: non-empty and ASCII letters and digits only.
// Nothing else from a client ever reaches SQL text.
func IsValidColumnIdentifier(name string) bool {
	if name == "" {
		return false
	}
	for i := 0; i < len(name); i++ {
		c := name[i]
		if !('a' <= c && c <= 'z' || 'A' <= c && c <= 'Z' || '0' <= c && c <= '9') {
			return false
		}
	}
	return true
}

// Lookup returns the registered table with the given name.
func (r *Registry) Lookup(name string) (Table, bool) {
	t, ok := r.byName[Normalize(name)]
	return t, ok
}

// Tables returns every registered table ordered by id.
func (r *Registry) Tables() []Table {
	return append([]Table(nil), r.ordered...)
}

// IsSynchronizable reports whether name is a registered table.
func (r *Registry) IsSynchronizable(name string) bool {
	_, ok := r.Lookup(name)
	return ok
}

// IsMutable reports whether clients may create, update or delete rows of name.
func (r *Registry) IsMutable(name string) bool {
	t, ok := r.Lookup(name)
	return ok && !t.ReadOnly
}

// TableID returns the stable numeric id of name.
func (r *Registry) TableID(name string) (int, error) {
	t, ok := r.Lookup(name)
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownTable, name)
	}
	return t.ID, nil
}

// ColumnClassification returns how column of table may be used.
// Unknown tables and columns yield Unknown.
func (r *Registry) ColumnClassification(table, column string) Classification {
	t, ok := r.Lookup(table)
	if !ok {
		return Unknown
	}
	c, ok := t.Column(column)
	if !ok {
		return Unknown
	}
	return c.Classification
}

// TableByID returns the registered table with the given id.
func (r *Registry) TableByID(id int) (Table, bool) {
	for _, t := range r.ordered {
		if t.ID == id {
			return t, true
		}
	}
	return Table{}, false
}
