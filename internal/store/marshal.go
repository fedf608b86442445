package store

import (
	"encoding/json"
	"fmt"

	"github.com/roach88/rdialog/internal/ir"
)

// marshalUpdate converts an Update Result to canonical JSON TEXT.
// Uses RFC 8785 canonical JSON for deterministic serialization.
func marshalUpdate(u ir.UpdateResult) (string, error) {
	data, err := ir.MarshalCanonical(u.Object())
	if err != nil {
		return "", fmt.Errorf("marshal update: %w", err)
	}
	return string(data), nil
}

// marshalDestination renders the destination column, used for lookups.
func marshalDestination(d ir.Destination) (string, error) {
	data, err := ir.MarshalCanonical(ir.UpdateResult{Destination: d}.Object()["destination"])
	if err != nil {
		return "", fmt.Errorf("marshal destination: %w", err)
	}
	return string(data), nil
}

// unmarshalUpdate parses canonical JSON TEXT back into an Update Result.
// Integers go through json.Number so large values keep their precision.
func unmarshalUpdate(data string) (ir.UpdateResult, error) {
	var u ir.UpdateResult
	if err := json.Unmarshal([]byte(data), &u); err != nil {
		return ir.UpdateResult{}, fmt.Errorf("unmarshal update: %w", err)
	}
	if u.Values == nil {
		u.Values = []ir.IndexedValue{}
	}
	return u, nil
}
