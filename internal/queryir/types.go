package queryir

import "github.com/roach88/tablesync/internal/ir"

// Statement is one SQL statement in IR form.
//
// Sealed: only types in this package implement it.
type Statement interface {
	statementNode()
}

// Predicate is a WHERE condition.
//
// Sealed: only types in this package implement it.
type Predicate interface {
	predicateNode()
}

// Select reads Columns from From.
//
//	SELECT <columns> FROM <from> WHERE <filter> ORDER BY <orderBy> ASC LIMIT <limit>
//
// Columns must be explicit. OrderBy defaults to "id". Limit 0 means no limit.
type Select struct {
	From    string
	Columns []string
	Filter  Predicate
	OrderBy string
	Limit   int
}

func (Select) statementNode() {}

// Insert adds one row.
//
//	INSERT INTO <into> (<columns>) VALUES (?, ...)
type Insert struct {
	Into    string
	Columns []string
	Values  []ir.Value
}

func (Insert) statementNode() {}

// Assignment is one "column = ?" pair of an Update.
type Assignment struct {
	Column string
	Value  ir.Value
}

// Update changes rows matched by Filter.
//
//	UPDATE <table> SET <column> = ?, ... WHERE <filter>
type Update struct {
	Table  string
	Set    []Assignment
	Filter Predicate
}

func (Update) statementNode() {}

// Delete removes rows matched by Filter.
//
//	DELETE FROM <from> WHERE <filter>
type Delete struct {
	From   string
	Filter Predicate
}

func (Delete) statementNode() {}

// Equals is "field = ?".
type Equals struct {
	Field string
	Value ir.Value
}

func (Equals) predicateNode() {}

// Greater is "field > ?".
type Greater struct {
	Field string
	Value ir.Value
}

func (Greater) predicateNode() {}

// In is "field IN (?, ...)". Values must not be empty.
type In struct {
	Field  string
	Values []ir.Value
}

func (In) predicateNode() {}

// And is a conjunction. An empty And is always true.
type And struct {
	Predicates []Predicate
}

func (And) predicateNode() {}

// Or is a disjunction. An empty Or is invalid.
type Or struct {
	Predicates []Predicate
}

func (Or) predicateNode() {}
