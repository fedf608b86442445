// Package ir provides the value and request types shared by every layer of
// the dialog engine.
//
// This package contains type definitions only. All other internal packages
// import ir; ir imports nothing internal. This keeps the data model the
// foundational layer with no circular dependencies.
//
// Key design constraints:
//   - NO float types anywhere - use int64 for numbers
//   - Values are immutable once handed to the engine
//   - All JSON tags use snake_case
//   - Canonical JSON (RFC 8785) is the only encoding used for hashing and traces
package ir
