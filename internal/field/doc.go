// Package field models the dialog's field tree.
//
// A tree is built once per dialog instance from Object, Array and Scalar
// nodes. Fields may expose their value under a Reference identity and may
// carry a Provider that computes their value, state providers that compute
// non-field UI state, or a button handler. Once NewTree returns, the tree
// and every field in it are read-only.
//
// Array fields have exactly one element template. Every element of the
// array shares the template's providers, so a provider nested in n arrays
// produces one value per index tuple of length n.
package field
