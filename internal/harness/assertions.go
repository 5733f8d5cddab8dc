package harness

import (
	"bytes"
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/roach88/tablesync/internal/ir"
	"github.com/roach88/tablesync/internal/queryir"
	"github.com/roach88/tablesync/internal/registry"
	"github.com/roach88/tablesync/internal/store"
)

// AssertionError is a failed assertion with the values that differed.
type AssertionError struct {
	Type     string
	Message  string
	Expected any
	Actual   any
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	return fmt.Sprintf("%s: %s (expected %v, got %v)", e.Type, e.Message, e.Expected, e.Actual)
}

// AssertionContext gives assertions access to the scenario's store.
type AssertionContext struct {
	Ctx      context.Context
	Store    *store.Store
	Accounts map[string]ir.AccountID
}

// EvaluateAssertions runs every assertion and returns the failure messages.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errs []string
	for i, a := range assertions {
		var err error
		switch a.Type {
		case AssertRowCount:
			err = assertRowCount(actx, a)
		case AssertFinalState:
			err = assertFinalState(actx, a)
		case AssertStateSequence:
			err = assertStateSequence(result.Trace, a)
		case AssertTraceCount:
			err = assertTraceCount(result.Trace, a)
		default:
			err = fmt.Errorf("unknown assertion type %q", a.Type)
		}
		if err != nil {
			errs = append(errs, fmt.Sprintf("assertion[%d]: %v", i, err))
		}
	}
	return errs
}

func assertRowCount(actx *AssertionContext, a Assertion) error {
	n, err := actx.Store.CountRows(actx.Ctx, actx.Accounts[a.Account], a.Table)
	if err != nil {
		return fmt.Errorf("row_count: %w", err)
	}
	if n != int64(a.Count) {
		return &AssertionError{
			Type:     AssertRowCount,
			Message:  fmt.Sprintf("%s rows of account %s", a.Table, a.Account),
			Expected: a.Count,
			Actual:   n,
		}
	}
	return nil
}

// assertFinalState selects the first row of a.Table matching a.Where (and
// the account, if named) and compares the a.Expect columns.
func assertFinalState(actx *AssertionContext, a Assertion) error {
	filter := queryir.And{}
	for _, k := range sortedKeys(a.Where) {
		v, err := ir.FromNative(a.Where[k])
		if err != nil {
			return fmt.Errorf("final_state where %s: %w", k, err)
		}
		filter.Predicates = append(filter.Predicates, queryir.Equals{Field: k, Value: v})
	}
	if a.Account != "" {
		filter.Predicates = append(filter.Predicates, queryir.Equals{
			Field: registry.ColumnAccount,
			Value: ir.Int(actx.Accounts[a.Account]),
		})
	}

	columns := sortedKeys(a.Expect)
	rows, err := store.Query(actx.Ctx, actx.Store.DB(), queryir.Select{
		From:    a.Table,
		Columns: columns,
		Filter:  filter,
		Limit:   1,
	})
	if err != nil {
		return fmt.Errorf("final_state: %w", err)
	}
	if len(rows.Values) == 0 {
		return &AssertionError{
			Type:     AssertFinalState,
			Message:  fmt.Sprintf("no %s row where %v", a.Table, a.Where),
			Expected: a.Expect,
			Actual:   nil,
		}
	}

	row := rows.Values[0]
	for i, c := range columns {
		want, err := ir.FromNative(a.Expect[c])
		if err != nil {
			return fmt.Errorf("final_state expect %s: %w", c, err)
		}
		if !valuesEqual(want, row[i]) {
			return &AssertionError{
				Type:     AssertFinalState,
				Message:  fmt.Sprintf("%s.%s where %v", a.Table, c, a.Where),
				Expected: a.Expect[c],
				Actual:   ir.ToNative(row[i]),
			}
		}
	}
	return nil
}

func assertStateSequence(trace []TraceEvent, a Assertion) error {
	var got []string
	for _, e := range trace {
		if e.Type == EventState && e.Step == a.Step {
			got = append(got, e.State)
		}
	}
	if !slices.Equal(got, a.States) {
		return &AssertionError{
			Type:     AssertStateSequence,
			Message:  fmt.Sprintf("states of step %q", a.Step),
			Expected: strings.Join(a.States, " > "),
			Actual:   strings.Join(got, " > "),
		}
	}
	return nil
}

func assertTraceCount(trace []TraceEvent, a Assertion) error {
	n := 0
	for _, e := range trace {
		if e.Type == EventState && e.State == a.State {
			n++
		}
	}
	if n != a.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Message:  fmt.Sprintf("entries into %q", a.State),
			Expected: a.Count,
			Actual:   n,
		}
	}
	return nil
}

// checkExpect compares one step's response with its expectations.
func checkExpect(step string, exp *Expect, status int, resp *ir.Response) []string {
	var errs []string
	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Sprintf("step %q: ", step)+fmt.Sprintf(format, args...))
	}

	want := exp.Status
	if want == 0 {
		want = 200
	}
	if status != want {
		fail("status %d, want %d", status, want)
	}

	needsBody := exp.EOF != nil || exp.ActionOK || exp.ActionResult != "" || exp.Message != "" ||
		len(exp.Tables) > 0 || len(exp.Absent) > 0
	if !needsBody {
		return errs
	}
	if resp == nil {
		fail("response body could not be decoded")
		return errs
	}

	if exp.EOF != nil && resp.EOF != *exp.EOF {
		fail("eof %v, want %v", resp.EOF, *exp.EOF)
	}
	if exp.ActionOK && resp.ActionResult != nil {
		fail("actionResult %q, want null", *resp.ActionResult)
	}
	if exp.ActionResult != "" {
		switch {
		case resp.ActionResult == nil:
			fail("actionResult null, want prefix %q", exp.ActionResult)
		case !strings.HasPrefix(*resp.ActionResult, exp.ActionResult):
			fail("actionResult %q, want prefix %q", *resp.ActionResult, exp.ActionResult)
		}
	}
	if exp.Message != "" {
		switch {
		case resp.Message == nil:
			fail("message null, want %q", exp.Message)
		case !strings.Contains(*resp.Message, exp.Message):
			fail("message %q, want substring %q", *resp.Message, exp.Message)
		}
	}

	for _, name := range sortedKeys(exp.Tables) {
		te := exp.Tables[name]
		p, ok := resp.Table(name)
		if !ok {
			fail("table %s missing from response", name)
			continue
		}
		if te.Rows != nil {
			got := p.RowIDs()
			if got == nil {
				got = []int64{}
			}
			if !slices.Equal(got, te.Rows) {
				fail("table %s rows %v, want %v", name, got, te.Rows)
			}
		}
		if te.Columns != nil && !slices.Equal(p.Columns, te.Columns) {
			fail("table %s columns %v, want %v", name, p.Columns, te.Columns)
		}
		if te.LastLogID != nil && p.LastLogID != *te.LastLogID {
			fail("table %s lastLogId %d, want %d", name, p.LastLogID, *te.LastLogID)
		}
	}
	for _, name := range exp.Absent {
		if _, ok := resp.Table(name); ok {
			fail("table %s present, want absent", name)
		}
	}
	return errs
}

func valuesEqual(a, b ir.Value) bool {
	x, err1 := ir.MarshalCanonical(a)
	y, err2 := ir.MarshalCanonical(b)
	return err1 == nil && err2 == nil && bytes.Equal(x, y)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
