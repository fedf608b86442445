package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/roach88/rdialog/internal/ir"
)

// Scenario defines a conformance test scenario.
type Scenario struct {
	// Name uniquely identifies this scenario. It names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Dialogs is the directory of CUE dialog definitions.
	// Relative to the scenario file once loaded.
	Dialogs string `yaml:"dialogs"`

	// Dialog names the dialog to instantiate.
	Dialog string `yaml:"dialog"`

	// PassPrefix prefixes generated pass ids. Defaults to the scenario name.
	PassPrefix string `yaml:"pass_prefix,omitempty"`

	Steps      []Step      `yaml:"steps"`
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// Step is one trigger sent to the dialog.
type Step struct {
	// Trigger is the trigger kind: value, open or button.
	Trigger string `yaml:"trigger"`

	// Target is the Reference (value) or button handler (button).
	Target string `yaml:"target,omitempty"`

	// Values are non-repeated Reference values.
	Values map[string]any `yaml:"values,omitempty"`

	// Indexed are Reference values inside repeated structures.
	Indexed map[string][]IndexedInput `yaml:"indexed,omitempty"`

	// ButtonState is the current state of the pressed button.
	ButtonState string `yaml:"button_state,omitempty"`

	// Form is the form snapshot handed to button handlers.
	Form map[string]any `yaml:"form,omitempty"`

	Expect *Expect `yaml:"expect,omitempty"`
}

// IndexedInput is one value at a position in nested arrays.
type IndexedInput struct {
	Indices []int `yaml:"indices"`
	Value   any   `yaml:"value"`
}

// Expect states the expected outcome of a step.
type Expect struct {
	// Status is ok, fatal or rejected. Empty means ok.
	Status string `yaml:"status,omitempty"`

	// Error is a substring of the expected error message.
	Error string `yaml:"error,omitempty"`

	// Updates, when present, must match the emitted updates exactly and
	// in order. `updates: []` expects none.
	Updates []ExpectedUpdate `yaml:"updates,omitempty"`

	// Skipped lists the providers expected to fail or be skipped, in
	// evaluation order.
	Skipped []string `yaml:"skipped,omitempty"`
}

// ExpectedUpdate describes one expected Update Result.
type ExpectedUpdate struct {
	// To is the destination as ir.Destination prints it.
	To string `yaml:"to"`

	// Value is shorthand for a single value with empty indices.
	Value yaml.Node `yaml:"value,omitempty"`

	// Values lists indexed values. Takes precedence over Value.
	Values []IndexedInput `yaml:"values,omitempty"`

	// State is the expected button state.
	State string `yaml:"state,omitempty"`
}

// Assertion validates the trace of a run.
type Assertion struct {
	// Type is update_count, update_order, no_update or computed_once.
	Type string `yaml:"type"`

	// Step is the zero-based step the assertion applies to.
	Step int `yaml:"step"`

	// Count is the expected number of updates (update_count).
	Count int `yaml:"count,omitempty"`

	// Destinations is the expected relative order (update_order).
	Destinations []string `yaml:"destinations,omitempty"`

	// Destination is the destination that must not appear (no_update).
	Destination string `yaml:"destination,omitempty"`

	// Provider is the provider id (computed_once).
	Provider string `yaml:"provider,omitempty"`
}

// Assertion type constants.
const (
	AssertUpdateCount  = "update_count"
	AssertUpdateOrder  = "update_order"
	AssertNoUpdate     = "no_update"
	AssertComputedOnce = "computed_once"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	scenario, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}

	if !filepath.IsAbs(scenario.Dialogs) {
		scenario.Dialogs = filepath.Join(filepath.Dir(path), scenario.Dialogs)
	}
	if info, err := os.Stat(scenario.Dialogs); err != nil || !info.IsDir() {
		return nil, fmt.Errorf("invalid scenario: dialogs directory not found: %s", scenario.Dialogs)
	}
	return scenario, nil
}

// ParseScenario parses scenario YAML without touching the filesystem.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // catches typos like "assertion:"
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Dialogs == "" {
		return fmt.Errorf("dialogs directory is required")
	}
	if s.Dialog == "" {
		return fmt.Errorf("dialog is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	for i, step := range s.Steps {
		if err := validateStep(i, &step); err != nil {
			return err
		}
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(i, &a, len(s.Steps)); err != nil {
			return err
		}
	}
	return nil
}

func validateStep(index int, step *Step) error {
	kind := ir.TriggerKind(step.Trigger)
	if !ir.ValidTriggerKinds[kind] {
		return fmt.Errorf("steps[%d]: unknown trigger %q", index, step.Trigger)
	}
	if kind != ir.TriggerOpen && step.Target == "" {
		return fmt.Errorf("steps[%d]: target is required for %s triggers", index, step.Trigger)
	}
	if kind == ir.TriggerOpen && step.Target != "" {
		return fmt.Errorf("steps[%d]: open triggers take no target", index)
	}
	for ref := range step.Indexed {
		if _, dup := step.Values[ref]; dup {
			return fmt.Errorf("steps[%d]: %q is in both values and indexed", index, ref)
		}
	}

	if e := step.Expect; e != nil {
		switch e.Status {
		case "", "ok", "fatal", "rejected":
		default:
			return fmt.Errorf("steps[%d].expect: unknown status %q", index, e.Status)
		}
		for j, u := range e.Updates {
			if u.To == "" {
				return fmt.Errorf("steps[%d].expect.updates[%d]: to is required", index, j)
			}
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion, steps int) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}
	if a.Step < 0 || a.Step >= steps {
		return fmt.Errorf("assertions[%d]: step %d out of range", index, a.Step)
	}

	switch a.Type {
	case AssertUpdateCount:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for update_count", index)
		}
	case AssertUpdateOrder:
		if len(a.Destinations) < 2 {
			return fmt.Errorf("assertions[%d]: update_order needs at least two destinations", index)
		}
	case AssertNoUpdate:
		if a.Destination == "" {
			return fmt.Errorf("assertions[%d]: destination is required for no_update", index)
		}
	case AssertComputedOnce:
		if a.Provider == "" {
			return fmt.Errorf("assertions[%d]: provider is required for computed_once", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}

// Request converts a step into an engine request.
func (s *Step) Request() (ir.Request, error) {
	req := ir.Request{
		TriggerKind:      ir.TriggerKind(s.Trigger),
		TriggerTarget:    s.Target,
		DependencyValues: ir.DependencyValues{},
		ButtonState:      s.ButtonState,
	}

	for ref, raw := range s.Values {
		v, err := ir.FromGo(raw)
		if err != nil {
			return ir.Request{}, fmt.Errorf("values[%q]: %w", ref, err)
		}
		req.DependencyValues[ref] = []ir.IndexedValue{ir.At(v)}
	}
	for ref, inputs := range s.Indexed {
		values, err := indexedValues(inputs)
		if err != nil {
			return ir.Request{}, fmt.Errorf("indexed[%q]: %w", ref, err)
		}
		req.DependencyValues[ref] = values
	}

	if s.Form != nil {
		form, err := ir.FromGo(s.Form)
		if err != nil {
			return ir.Request{}, fmt.Errorf("form: %w", err)
		}
		req.FormSnapshot = form.(ir.Object)
	}
	return req, nil
}

func indexedValues(inputs []IndexedInput) ([]ir.IndexedValue, error) {
	out := make([]ir.IndexedValue, len(inputs))
	for i, in := range inputs {
		v, err := ir.FromGo(in.Value)
		if err != nil {
			return nil, fmt.Errorf("[%d]: %w", i, err)
		}
		out[i] = ir.At(v, in.Indices...)
	}
	return out, nil
}

// expected converts an expected update into an Update Result shape for
// comparison. ok is false when the update states no values.
func (u *ExpectedUpdate) expected() (values []ir.IndexedValue, ok bool, err error) {
	if u.Values != nil {
		values, err = indexedValues(u.Values)
		return values, true, err
	}
	if u.Value.Kind == 0 {
		return nil, false, nil
	}
	var raw any
	if err := u.Value.Decode(&raw); err != nil {
		return nil, false, err
	}
	v, err := ir.FromGo(raw)
	if err != nil {
		return nil, false, err
	}
	return []ir.IndexedValue{ir.At(v)}, true, nil
}
