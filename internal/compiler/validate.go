package compiler

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/rdialog/internal/ir"
)

// Validation error codes (E100-E199)
const (
	// Dialog errors (E101-E102)
	ErrDialogNameEmpty = "E101" // dialog name is required
	ErrDialogNoFields  = "E102" // at least one field required

	// Field errors (E103-E105)
	ErrInvalidFieldType = "E103" // invalid type string
	ErrElementMismatch  = "E104" // array without element, or element on a non-array
	ErrChildrenMismatch = "E105" // children on a non-object field

	// Provider errors (E106-E108)
	ErrProviderNoExpr = "E106" // provider expr is required
	ErrInvalidDep     = "E107" // dependency must name exactly one target
	ErrStateNoKind    = "E108" // state provider needs id and kind

	// Button errors (E109-E111)
	ErrButtonIncomplete = "E109" // handler, states, initial and invoke required
	ErrDuplicateState   = "E110" // duplicate button state
	ErrInvalidUpdate    = "E111" // update handler needs deps and expr

	// Internal provider errors (E112)
	ErrProviderNoID = "E112" // internal provider id is required

	// Repetition errors (E113)
	ErrRepeatedButton = "E113" // buttons cannot live inside array elements
)

// ValidationError represents a schema validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Line    int    `json:"line,omitempty"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("[%s] line %d: %s: %s", e.Code, e.Line, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validate checks a compiled dialog for structural problems.
// Returns all errors found (does not fail-fast).
//
// Graph-level problems (unknown dependency targets, duplicate identities,
// cycles) are reported by graph.Build, not here.
func Validate(spec *ir.DialogSpec) []ValidationError {
	var errs []ValidationError

	// E101: name is required
	if strings.TrimSpace(spec.Name) == "" {
		errs = append(errs, ValidationError{
			Field:   "name",
			Message: "dialog name is required",
			Code:    ErrDialogNameEmpty,
		})
	}

	// E102: at least one field required
	if len(spec.Fields) == 0 {
		errs = append(errs, ValidationError{
			Field:   "fields",
			Message: "at least one field is required",
			Code:    ErrDialogNoFields,
		})
	}

	for i := range spec.Fields {
		f := &spec.Fields[i]
		errs = append(errs, validateField(f, "fields."+f.Name, false)...)
	}

	for i, p := range spec.Providers {
		at := fmt.Sprintf("providers[%d]", i)
		// E112: internal providers have no field path to default from
		if strings.TrimSpace(p.ID) == "" {
			errs = append(errs, ValidationError{
				Field:   at + ".id",
				Message: "internal provider id is required",
				Code:    ErrProviderNoID,
			})
		}
		errs = append(errs, validateProvider(&p, at)...)
	}

	return errs
}

func validateField(f *ir.FieldSpec, at string, repeated bool) []ValidationError {
	var errs []ValidationError

	// E103: check for valid type
	if !ir.ValidFieldTypes[f.Type] {
		msg := fmt.Sprintf("invalid type %q for field %q", f.Type, f.Name)
		if isFloatType(string(f.Type)) {
			msg = fmt.Sprintf("float type forbidden for field %q, use int instead", f.Name)
		}
		errs = append(errs, ValidationError{Field: at + ".type", Message: msg, Code: ErrInvalidFieldType})
	}

	// E104: element templates belong to arrays only
	switch {
	case f.Type == ir.FieldArray && f.Element == nil:
		errs = append(errs, ValidationError{
			Field:   at + ".element",
			Message: fmt.Sprintf("array field %q needs an element template", f.Name),
			Code:    ErrElementMismatch,
		})
	case f.Type != ir.FieldArray && f.Element != nil:
		errs = append(errs, ValidationError{
			Field:   at + ".element",
			Message: fmt.Sprintf("%s field %q cannot have an element template", f.Type, f.Name),
			Code:    ErrElementMismatch,
		})
	}

	// E105: children belong to objects only
	if len(f.Fields) > 0 && f.Type != ir.FieldObject {
		errs = append(errs, ValidationError{
			Field:   at + ".fields",
			Message: fmt.Sprintf("%s field %q cannot have children", f.Type, f.Name),
			Code:    ErrChildrenMismatch,
		})
	}

	if f.Provider != nil {
		errs = append(errs, validateProvider(f.Provider, at+".provider")...)
	}

	for i, s := range f.State {
		sat := fmt.Sprintf("%s.state[%d]", at, i)
		// E108: state providers are addressed by id and categorized by kind
		if strings.TrimSpace(s.ID) == "" || strings.TrimSpace(s.Kind) == "" {
			errs = append(errs, ValidationError{
				Field:   sat,
				Message: "state provider needs an id and a kind",
				Code:    ErrStateNoKind,
			})
		}
		errs = append(errs, validateProvider(&s, sat)...)
	}

	if f.Button != nil {
		errs = append(errs, validateButton(f.Button, at+".button")...)
		// E113: a button request names its handler, not an element
		if repeated {
			errs = append(errs, ValidationError{
				Field:   at + ".button",
				Message: fmt.Sprintf("button %q cannot be declared inside an array element", f.Button.Handler),
				Code:    ErrRepeatedButton,
			})
		}
	}

	for i := range f.Fields {
		c := &f.Fields[i]
		errs = append(errs, validateField(c, at+".fields."+c.Name, repeated)...)
	}
	if f.Element != nil {
		errs = append(errs, validateField(f.Element, at+".element", true)...)
	}

	return errs
}

func validateProvider(p *ir.ProviderSpec, at string) []ValidationError {
	var errs []ValidationError

	// E106: expr is required
	if strings.TrimSpace(p.Expr) == "" {
		errs = append(errs, ValidationError{
			Field:   at + ".expr",
			Message: "provider expr is required",
			Code:    ErrProviderNoExpr,
		})
	}

	// E107: exactly one target per dependency
	for i, d := range p.Deps {
		if (d.Ref == "") == (d.Provider == "") {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("%s.deps[%d]", at, i),
				Message: "dependency must set exactly one of ref or provider",
				Code:    ErrInvalidDep,
			})
		}
	}

	return errs
}

func validateButton(b *ir.ButtonSpec, at string) []ValidationError {
	var errs []ValidationError

	// E109: handler, states and both entry points are required
	var missing []string
	if strings.TrimSpace(b.Handler) == "" {
		missing = append(missing, "handler")
	}
	if len(b.States) == 0 {
		missing = append(missing, "states")
	}
	if strings.TrimSpace(b.Initial) == "" {
		missing = append(missing, "initial")
	}
	if strings.TrimSpace(b.Invoke) == "" {
		missing = append(missing, "invoke")
	}
	if len(missing) > 0 {
		errs = append(errs, ValidationError{
			Field:   at,
			Message: "button is missing " + strings.Join(missing, ", "),
			Code:    ErrButtonIncomplete,
		})
	}

	// E110: states are a set
	for i, s := range b.States {
		if slices.Contains(b.States[:i], s) {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("%s.states[%d]", at, i),
				Message: fmt.Sprintf("duplicate state %q", s),
				Code:    ErrDuplicateState,
			})
		}
	}

	// E111: update handlers react to named references
	if b.Update != nil && (len(b.Update.Deps) == 0 || strings.TrimSpace(b.Update.Expr) == "") {
		errs = append(errs, ValidationError{
			Field:   at + ".update",
			Message: "update handler needs deps and expr",
			Code:    ErrInvalidUpdate,
		})
	}

	return errs
}

// isFloatType checks if a type string represents a float type.
func isFloatType(t string) bool {
	switch strings.ToLower(t) {
	case "float", "float32", "float64", "number", "double":
		return true
	}
	return false
}
