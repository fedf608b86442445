package provider

// Kind categorizes the non-field UI state a state provider computes.
// Free-form kinds are allowed; these are the ones the form renderer knows.
const (
	KindChoices     = "choices"
	KindPlaceholder = "placeholder"
	KindDescription = "description"
	KindVisibility  = "visibility"
)
