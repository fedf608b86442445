package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/rdialog/internal/ir"
)

// Snapshot returns the canonical JSON trace of a run. Golden files hold
// exactly these bytes.
func Snapshot(scenario *Scenario, result *Result) ([]byte, error) {
	steps := make(ir.Array, len(result.Trace))
	for i, tr := range result.Trace {
		steps[i] = tr.Object()
	}
	return ir.MarshalCanonical(ir.Object{
		"scenario": ir.String(scenario.Name),
		"dialog":   ir.String(scenario.Dialog),
		"steps":    steps,
	})
}

// RunWithGolden executes a scenario and compares its trace against
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an existing result against its golden file.
func AssertGolden(t *testing.T, scenario *Scenario, result *Result) error {
	t.Helper()

	data, err := Snapshot(scenario, result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenario.Name, data)
	return nil
}
