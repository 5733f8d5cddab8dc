package harness

import (
	"fmt"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/tablesync/internal/ir"
)

// Snapshot renders a trace as canonical JSON:
//
//	{"scenario_name": ..., "trace": [ {seq, step, type, ...}, ... ]}
func Snapshot(scenarioName string, result *Result) ([]byte, error) {
	trace := make(ir.Array, len(result.Trace))
	for i, e := range result.Trace {
		trace[i] = e.ToValue()
	}
	return ir.MarshalCanonical(ir.Object{
		"scenario_name": ir.String(scenarioName),
		"trace":         trace,
	})
}

// RunWithGolden runs scenario and compares its trace with
// goldenDir/<name>.golden. Regenerate with:
//
//	go test ./internal/harness -update
//
// A scenario whose expectations fail is returned as an error after the
// golden comparison.
func RunWithGolden(t *testing.T, scenario *Scenario, goldenDir string) error {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return err
	}
	if err := AssertGolden(t, scenario.Name, result, goldenDir); err != nil {
		return err
	}
	if !result.Pass {
		return fmt.Errorf("scenario %s failed: %s", scenario.Name, strings.Join(result.Errors, "; "))
	}
	return nil
}

// AssertGolden compares an existing result with its golden file.
func AssertGolden(t *testing.T, scenarioName string, result *Result, goldenDir string) error {
	t.Helper()

	data, err := Snapshot(scenarioName, result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir(goldenDir),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, data)
	return nil
}
