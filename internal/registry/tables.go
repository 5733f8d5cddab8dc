package registry

// Column names shared by every synchronizable table.
const (
	ColumnID      = "id"
	ColumnAccount = "idAccount"
)

// Change-log column names.
const (
	ColumnTableID = "tableId"
	ColumnRowID   = "idRow"
)

// Table ids. These must match the client build and never change.
const (
	IDErase  = 0
	IDModify = 1
	IDBranch = 2
)

// Table names, always lower case.
const (
	TableErase  = "erase"
	TableModify = "modify"
	TableBranch = "branch"
)

func logColumns() []Column {
	return []Column{
		{Name: ColumnID, Classification: ReadOnly},
		{Name: ColumnAccount, Classification: Private},
		{Name: ColumnTableID, Classification: ReadOnly},
		{Name: ColumnRowID, Classification: ReadOnly},
	}
}

// DefaultTables returns the production table definitions. Append new
// tables at the end with a fresh id.
func DefaultTables() []Table {
	return []Table{
		{
			ID:       IDErase,
			Name:     TableErase,
			Kind:     KindDeletionLog,
			ReadOnly: true,
			Columns:  logColumns(),
		},
		{
			ID:       IDModify,
			Name:     TableModify,
			Kind:     KindModificationLog,
			ReadOnly: true,
			Columns:  logColumns(),
		},
		{
			ID:   IDBranch,
			Name: TableBranch,
			Kind: KindData,
			Columns: []Column{
				{Name: ColumnID, Classification: ReadOnly},
				{Name: ColumnAccount, Classification: Private},
				{Name: "name", Classification: Mutable},
			},
		},
	}
}

// Default returns the production registry.
func Default() *Registry {
	return MustNew(DefaultTables()...)
}
