package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/rdialog/internal/ir"
)

func codes(errs []ValidationError) []string {
	out := make([]string, len(errs))
	for i, e := range errs {
		out[i] = e.Code
	}
	return out
}

func TestValidateCompiledDialog(t *testing.T) {
	errs := Validate(compileJob(t))
	assert.Empty(t, errs, "compiled dialog should be valid")
}

func TestValidateEmptyDialog(t *testing.T) {
	errs := Validate(&ir.DialogSpec{})
	assert.Equal(t, []string{ErrDialogNameEmpty, ErrDialogNoFields}, codes(errs))
}

func TestValidateFieldShape(t *testing.T) {
	spec := &ir.DialogSpec{
		Name: "shape",
		Fields: []ir.FieldSpec{
			{Name: "price", Type: "float"},
			{Name: "rows", Type: ir.FieldArray},
			{Name: "label", Type: ir.FieldString, Element: &ir.FieldSpec{Type: ir.FieldString}},
			{Name: "flag", Type: ir.FieldBool, Fields: []ir.FieldSpec{{Name: "x", Type: ir.FieldString}}},
		},
	}

	errs := Validate(spec)
	assert.Equal(t, []string{ErrInvalidFieldType, ErrElementMismatch, ErrElementMismatch, ErrChildrenMismatch}, codes(errs))
	assert.Contains(t, errs[0].Message, "float type forbidden")
	assert.Equal(t, "fields.price.type", errs[0].Field)
}

func TestValidateProviders(t *testing.T) {
	spec := &ir.DialogSpec{
		Name: "providers",
		Fields: []ir.FieldSpec{
			{
				Name: "a",
				Type: ir.FieldString,
				Provider: &ir.ProviderSpec{
					Deps: []ir.DepSpec{{Ref: "x", Provider: "y"}, {}},
				},
				State: []ir.ProviderSpec{{ID: "aChoices", Expr: "[]"}},
			},
		},
		Providers: []ir.ProviderSpec{{Expr: "1"}},
	}

	errs := Validate(spec)
	assert.Equal(t, []string{ErrProviderNoExpr, ErrInvalidDep, ErrInvalidDep, ErrStateNoKind, ErrProviderNoID}, codes(errs))
	assert.Equal(t, "fields.a.provider.deps[1]", errs[2].Field)
}

func TestValidateButton(t *testing.T) {
	spec := &ir.DialogSpec{
		Name: "buttons",
		Fields: []ir.FieldSpec{
			{Name: "empty", Type: ir.FieldString, Button: &ir.ButtonSpec{}},
			{
				Name: "dup",
				Type: ir.FieldString,
				Button: &ir.ButtonSpec{
					Handler: "dup",
					States:  []string{"a", "b", "a"},
					Initial: "x",
					Invoke:  "y",
					Update:  &ir.UpdateSpec{Expr: "z"},
				},
			},
		},
	}

	errs := Validate(spec)
	assert.Equal(t, []string{ErrButtonIncomplete, ErrDuplicateState, ErrInvalidUpdate}, codes(errs))
	assert.Equal(t, "button is missing handler, states, initial, invoke", errs[0].Message)
	assert.Equal(t, "fields.dup.button.states[2]", errs[1].Field)
}

func TestValidateNestedFields(t *testing.T) {
	spec := &ir.DialogSpec{
		Name: "nested",
		Fields: []ir.FieldSpec{{
			Name: "rows",
			Type: ir.FieldArray,
			Element: &ir.FieldSpec{
				Name: "*",
				Type: ir.FieldObject,
				Fields: []ir.FieldSpec{
					{Name: "bad", Type: "decimal"},
				},
			},
		}},
	}

	errs := Validate(spec)
	assert.Equal(t, []string{ErrInvalidFieldType}, codes(errs))
	assert.Equal(t, "fields.rows.element.fields.bad.type", errs[0].Field)
}

func TestValidateButtonInsideElement(t *testing.T) {
	run := &ir.ButtonSpec{
		Handler: "run",
		States:  []string{"idle", "running"},
		Initial: `{value: "Start", state: "idle"}`,
		Invoke:  `{value: "Stop", state: "running"}`,
	}
	spec := &ir.DialogSpec{
		Name: "rows",
		Fields: []ir.FieldSpec{
			{Name: "all", Type: ir.FieldString, Button: run},
			{
				Name: "rows",
				Type: ir.FieldArray,
				Element: &ir.FieldSpec{
					Name: "*",
					Type: ir.FieldObject,
					Fields: []ir.FieldSpec{
						{Name: "run", Type: ir.FieldString, Button: run},
					},
				},
			},
		},
	}

	errs := Validate(spec)
	assert.Equal(t, []string{ErrRepeatedButton}, codes(errs))
	assert.Equal(t, "fields.rows.element.fields.run.button", errs[0].Field)
	assert.Equal(t, `button "run" cannot be declared inside an array element`, errs[0].Message)
}

func TestValidationErrorFormat(t *testing.T) {
	err := ValidationError{Field: "fields", Message: "at least one field is required", Code: ErrDialogNoFields}
	assert.Equal(t, "[E102] fields: at least one field is required", err.Error())

	err.Line = 4
	assert.Equal(t, "[E102] line 4: fields: at least one field is required", err.Error())
}
