// Package patch applies field Update Results to a form data document.
//
// Update Results address fields by location template ("/rows/*/name") plus
// an index tuple. FromUpdates expands each value to concrete JSON pointers
// and emits RFC 6902 operations; Apply runs them with json-patch. A value
// whose index tuple is shorter than the template's wildcard count is
// broadcast to every element that exists in the document.
package patch

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	jsonpatch "github.com/evanphx/json-patch/v5"

	"github.com/roach88/rdialog/internal/field"
	"github.com/roach88/rdialog/internal/ir"
)

// Operation kinds emitted by FromUpdates.
const (
	OperationAdd     = "add"
	OperationReplace = "replace"
)

// Operation is one RFC 6902 operation.
type Operation struct {
	Op    string   `json:"op"`
	Path  string   `json:"path"`
	Value ir.Value `json:"value"`
}

// FromUpdates converts the field Update Results into patch operations
// against doc, in update order. Non-field destinations are ignored.
// Pointers whose parent does not exist in doc are dropped.
func FromUpdates(doc []byte, updates []ir.UpdateResult) ([]Operation, error) {
	var root any
	if err := json.Unmarshal(doc, &root); err != nil {
		return nil, fmt.Errorf("failed to parse document: %w", err)
	}

	ops := []Operation{}
	for _, u := range updates {
		if u.Destination.Kind != ir.DestinationField {
			continue
		}
		location := u.Destination.Location
		wildcards := field.Wildcards(location)

		for _, iv := range u.Values {
			if len(iv.Indices) > wildcards {
				return nil, fmt.Errorf("%s: %d indices for %d wildcards", location, len(iv.Indices), wildcards)
			}
			value := iv.Value
			if value == nil {
				value = ir.Null{}
			}

			for _, path := range expand(root, field.Pointer(location, iv.Indices)) {
				op := OperationAdd
				if pathExists(root, path) {
					op = OperationReplace
				}
				ops = append(ops, Operation{Op: op, Path: path, Value: value})
			}
		}
	}
	return ops, nil
}

// Apply applies the field Update Results to doc and returns the patched
// document.
func Apply(doc []byte, updates []ir.UpdateResult) ([]byte, error) {
	ops, err := FromUpdates(doc, updates)
	if err != nil {
		return nil, err
	}
	if len(ops) == 0 {
		return doc, nil
	}

	patchJSON, err := json.Marshal(ops)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal patch operations: %w", err)
	}

	p, err := jsonpatch.DecodePatch(patchJSON)
	if err != nil {
		return nil, fmt.Errorf("failed to decode patch: %w", err)
	}

	out, err := p.Apply(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to apply patch: %w", err)
	}
	return out, nil
}

// expand resolves the remaining wildcards of pointer against the elements
// present in doc.
func expand(doc any, pointer string) []string {
	if pointer == "" {
		return []string{""}
	}
	if !strings.HasPrefix(pointer, "/") {
		return nil
	}

	var out []string
	var walk func(node any, tokens []string, prefix string)
	walk = func(node any, tokens []string, prefix string) {
		tok := tokens[0]
		last := len(tokens) == 1

		if tok == field.ElementName {
			arr, ok := node.([]any)
			if !ok {
				return
			}
			for i, elem := range arr {
				p := prefix + "/" + strconv.Itoa(i)
				if last {
					out = append(out, p)
					continue
				}
				walk(elem, tokens[1:], p)
			}
			return
		}

		p := prefix + "/" + tok
		if last {
			switch node.(type) {
			case map[string]any, []any:
				out = append(out, p)
			}
			return
		}
		child, ok := lookup(node, unescape(tok))
		if !ok {
			return
		}
		walk(child, tokens[1:], p)
	}

	walk(doc, strings.Split(pointer[1:], "/"), "")
	return out
}

func pathExists(doc any, path string) bool {
	if path == "" {
		return true
	}
	cur := doc
	for _, tok := range strings.Split(path[1:], "/") {
		next, ok := lookup(cur, unescape(tok))
		if !ok {
			return false
		}
		cur = next
	}
	return true
}

func lookup(node any, token string) (any, bool) {
	switch n := node.(type) {
	case map[string]any:
		v, ok := n[token]
		return v, ok
	case []any:
		i, err := strconv.Atoi(token)
		if err != nil || i < 0 || i >= len(n) {
			return nil, false
		}
		return n[i], true
	default:
		return nil, false
	}
}

func unescape(token string) string {
	token = strings.ReplaceAll(token, "~1", "/")
	return strings.ReplaceAll(token, "~0", "~")
}
