package queryir

import (
	"errors"
	"fmt"

	"github.com/roach88/tablesync/internal/ir"
	"github.com/roach88/tablesync/internal/registry"
)

// ErrInvalidStatement is wrapped by every error returned from Validate.
var ErrInvalidStatement = errors.New("invalid statement")

// Validate checks that a statement can be compiled safely:
//   - every table and column name passes registry.IsValidColumnIdentifier
//   - literals are scalar (null, string, integer, bool)
//   - Insert has as many values as columns
//   - Update has at least one assignment
//   - Update and Delete have a filter that is not an empty And
//   - In and Or are not empty
//
// Validate is a pure function with no side effects.
func Validate(stmt Statement) error {
	v := &validator{}
	v.statement(stmt)
	if len(v.errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidStatement, errors.Join(v.errs...))
}

type validator struct {
	errs []error
}

func (v *validator) fail(format string, args ...any) {
	v.errs = append(v.errs, fmt.Errorf(format, args...))
}

func (v *validator) identifier(kind, name string) {
	if !registry.IsValidColumnIdentifier(name) {
		v.fail("%s %q is not a valid identifier", kind, name)
	}
}

func (v *validator) literal(where string, val ir.Value) {
	switch val.(type) {
	case nil, ir.Null, ir.String, ir.Int, ir.Bool:
	default:
		v.fail("%s: literal must be scalar, got %T", where, val)
	}
}

func (v *validator) statement(stmt Statement) {
	switch s := stmt.(type) {
	case nil:
		v.fail("nil statement")
	case Select:
		v.identifier("table", s.From)
		if len(s.Columns) == 0 {
			v.fail("select from %q: explicit columns required", s.From)
		}
		for _, c := range s.Columns {
			v.identifier("column", c)
		}
		if s.OrderBy != "" {
			v.identifier("order column", s.OrderBy)
		}
		if s.Limit < 0 {
			v.fail("select from %q: negative limit %d", s.From, s.Limit)
		}
		v.predicate(s.Filter)
	case Insert:
		v.identifier("table", s.Into)
		if len(s.Columns) == 0 {
			v.fail("insert into %q: no columns", s.Into)
		}
		if len(s.Columns) != len(s.Values) {
			v.fail("insert into %q: %d columns but %d values", s.Into, len(s.Columns), len(s.Values))
		}
		for _, c := range s.Columns {
			v.identifier("column", c)
		}
		for i, val := range s.Values {
			v.literal(fmt.Sprintf("insert value %d", i), val)
		}
	case Update:
		v.identifier("table", s.Table)
		if len(s.Set) == 0 {
			v.fail("update %q: empty SET", s.Table)
		}
		for _, a := range s.Set {
			v.identifier("column", a.Column)
			v.literal("set "+a.Column, a.Value)
		}
		if !constrains(s.Filter) {
			v.fail("update %q: filter required", s.Table)
		}
		v.predicate(s.Filter)
	case Delete:
		v.identifier("table", s.From)
		if !constrains(s.Filter) {
			v.fail("delete from %q: filter required", s.From)
		}
		v.predicate(s.Filter)
	default:
		v.fail("unknown statement type %T", stmt)
	}
}

// constrains reports whether p restricts the rows it matches. A nil
// predicate and an And with no constraining members match everything.
func constrains(p Predicate) bool {
	switch pred := p.(type) {
	case nil:
		return false
	case And:
		for _, sub := range pred.Predicates {
			if constrains(sub) {
				return true
			}
		}
		return false
	default:
		return true
	}
}

func (v *validator) predicate(p Predicate) {
	switch pred := p.(type) {
	case nil:
	case Equals:
		v.identifier("column", pred.Field)
		v.literal(pred.Field, pred.Value)
	case Greater:
		v.identifier("column", pred.Field)
		v.literal(pred.Field, pred.Value)
	case In:
		v.identifier("column", pred.Field)
		if len(pred.Values) == 0 {
			v.fail("%s IN (): empty value list", pred.Field)
		}
		for _, val := range pred.Values {
			v.literal(pred.Field, val)
		}
	case And:
		for _, sub := range pred.Predicates {
			v.predicate(sub)
		}
	case Or:
		if len(pred.Predicates) == 0 {
			v.fail("empty OR")
		}
		for _, sub := range pred.Predicates {
			v.predicate(sub)
		}
	default:
		v.fail("unknown predicate type %T", p)
	}
}
