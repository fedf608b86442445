package ir

// DialogSpec is the compiled, declarative description of one dialog.
// It is the input to field tree construction.
type DialogSpec struct {
	Name        string      `json:"name"`
	Title       string      `json:"title,omitempty"`
	Fields      []FieldSpec `json:"fields"`

	// Providers are internal providers: they have no destination and never
	// emit an Update Result, but other providers may depend on them.
	Providers []ProviderSpec `json:"providers,omitempty"`
}

// FieldType is the declared type of a field.
type FieldType string

const (
	FieldObject FieldType = "object"
	FieldArray  FieldType = "array"
	FieldString FieldType = "string"
	FieldInt    FieldType = "int"
	FieldBool   FieldType = "bool"
	FieldAny    FieldType = "any"
)

// ValidFieldTypes defines allowed field types.
var ValidFieldTypes = map[FieldType]bool{
	FieldObject: true,
	FieldArray:  true,
	FieldString: true,
	FieldInt:    true,
	FieldBool:   true,
	FieldAny:    true,
}

// FieldSpec declares one field of the dialog.
type FieldSpec struct {
	Name string    `json:"name"`
	Type FieldType `json:"type"`

	// Reference is the nominal identity this field exposes its value under.
	Reference string `json:"reference,omitempty"`

	// Provider computes this field's value.
	Provider *ProviderSpec `json:"provider,omitempty"`

	// State lists providers computing non-field UI state scoped to this
	// field (choices, placeholder, ...).
	State []ProviderSpec `json:"state,omitempty"`

	// Button attaches a button action state machine to this field.
	Button *ButtonSpec `json:"button,omitempty"`

	// Fields are the children of an object field, in declaration order.
	Fields []FieldSpec `json:"fields,omitempty"`

	// Element is the element template of an array field.
	Element *FieldSpec `json:"element,omitempty"`
}

// ProviderSpec declares a provider computation.
type ProviderSpec struct {
	// ID is the provider identity. Field providers default to the dotted
	// field path when empty.
	ID string `json:"id"`

	// Kind is the UI-state category for state providers.
	Kind string `json:"kind,omitempty"`

	Deps []DepSpec `json:"deps,omitempty"`

	// Eager marks the provider as computed when the dialog opens.
	Eager bool `json:"eager,omitempty"`

	// Expr computes the output from the dependency values.
	Expr string `json:"expr"`

	// FailWhen is an optional boolean expression; true means the provider
	// cannot compute now (declared failure).
	FailWhen string `json:"fail_when,omitempty"`
}

// DepSpec names one dependency: either a Reference or a Provider.
// Exactly one of the two is set.
type DepSpec struct {
	Ref      string `json:"ref,omitempty"`
	Provider string `json:"provider,omitempty"`
}

// ButtonSpec declares a button action state machine.
type ButtonSpec struct {
	Handler string   `json:"handler"`
	States  []string `json:"states"`

	// Initial computes {value, state} from the current field value.
	Initial string `json:"initial"`

	// Invoke computes {value, state} from the current state and form snapshot.
	Invoke string `json:"invoke"`

	// Update reacts to other fields changing without a state transition.
	Update *UpdateSpec `json:"update,omitempty"`
}

// UpdateSpec declares a button update handler.
type UpdateSpec struct {
	Deps []string `json:"deps"`
	Expr string   `json:"expr"`
}
