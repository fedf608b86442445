package harness

import (
	"fmt"
	"strings"
)

// AssertionError is returned when an assertion fails.
// It includes the step's updates to help debug the failure.
type AssertionError struct {
	Type     string    // Assertion type for categorization
	Step     int       // Step the assertion applies to
	Expected string    // Human-readable expected outcome
	Actual   string    // Human-readable actual outcome
	Trace    StepTrace // Trace of the step
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s (step %d)\n", e.Type, e.Step)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	fmt.Fprintf(&buf, "\nUpdates of %s:\n", e.Trace.Trigger)
	for i, u := range e.Trace.Updates {
		fmt.Fprintf(&buf, "  [%d] %s %s\n", i+1, u.Destination, formatValues(u.Values))
	}
	return buf.String()
}

// assertUpdateCount checks the number of updates a step emitted.
func assertUpdateCount(tr StepTrace, a Assertion) error {
	if len(tr.Updates) == a.Count {
		return nil
	}
	return &AssertionError{
		Type:     AssertUpdateCount,
		Step:     a.Step,
		Expected: fmt.Sprintf("%d updates", a.Count),
		Actual:   fmt.Sprintf("%d updates", len(tr.Updates)),
		Trace:    tr,
	}
}

// assertUpdateOrder checks that destinations appear in the given order.
// Other updates may appear in between.
func assertUpdateOrder(tr StepTrace, a Assertion) error {
	positions := make(map[string]int)
	for i, u := range tr.Updates {
		dest := u.Destination.String()
		if _, seen := positions[dest]; !seen {
			positions[dest] = i + 1 // 1-indexed for readability
		}
	}

	for _, dest := range a.Destinations {
		if positions[dest] == 0 {
			return &AssertionError{
				Type:     AssertUpdateOrder,
				Step:     a.Step,
				Expected: fmt.Sprintf("all destinations present: %v", a.Destinations),
				Actual:   fmt.Sprintf("missing destination: %s", dest),
				Trace:    tr,
			}
		}
	}

	for i := 1; i < len(a.Destinations); i++ {
		prev, curr := a.Destinations[i-1], a.Destinations[i]
		if positions[prev] >= positions[curr] {
			return &AssertionError{
				Type:     AssertUpdateOrder,
				Step:     a.Step,
				Expected: fmt.Sprintf("destinations in order: %v", a.Destinations),
				Actual: fmt.Sprintf("%s (pos %d) should be before %s (pos %d)",
					prev, positions[prev], curr, positions[curr]),
				Trace: tr,
			}
		}
	}
	return nil
}

// assertNoUpdate checks that a step emitted nothing for a destination.
func assertNoUpdate(tr StepTrace, a Assertion) error {
	for i, u := range tr.Updates {
		if u.Destination.String() == a.Destination {
			return &AssertionError{
				Type:     AssertNoUpdate,
				Step:     a.Step,
				Expected: fmt.Sprintf("no update for %s", a.Destination),
				Actual:   fmt.Sprintf("update at position %d", i+1),
				Trace:    tr,
			}
		}
	}
	return nil
}

// assertComputedOnce checks that a provider ran its compute phase exactly
// once per instance it produced.
func assertComputedOnce(tr StepTrace, a Assertion) error {
	instances, ok := tr.Instances[a.Provider]
	if !ok || instances == 0 {
		return &AssertionError{
			Type:     AssertComputedOnce,
			Step:     a.Step,
			Expected: fmt.Sprintf("%s evaluated", a.Provider),
			Actual:   "no values produced",
			Trace:    tr,
		}
	}
	if computes := tr.Computes[a.Provider]; computes != instances {
		return &AssertionError{
			Type:     AssertComputedOnce,
			Step:     a.Step,
			Expected: fmt.Sprintf("%d computes for %d instances of %s", instances, instances, a.Provider),
			Actual:   fmt.Sprintf("%d computes", computes),
			Trace:    tr,
		}
	}
	return nil
}

// EvaluateAssertions runs every assertion against the result and returns
// the failure messages.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errs []string
	for i, a := range assertions {
		tr, ok := result.step(a.Step)
		if !ok {
			errs = append(errs, fmt.Sprintf("assertions[%d]: step %d did not run", i, a.Step))
			continue
		}

		var err error
		switch a.Type {
		case AssertUpdateCount:
			err = assertUpdateCount(tr, a)
		case AssertUpdateOrder:
			err = assertUpdateOrder(tr, a)
		case AssertNoUpdate:
			err = assertNoUpdate(tr, a)
		case AssertComputedOnce:
			err = assertComputedOnce(tr, a)
		default:
			err = fmt.Errorf("unknown assertion type %q", a.Type)
		}
		if err != nil {
			errs = append(errs, fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return errs
}
