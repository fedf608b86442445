package field

import (
	"strconv"
	"strings"
)

var pointerEscaper = strings.NewReplacer("~", "~0", "/", "~1")

// Location renders a field path as a JSON pointer template ("/items/*/name").
// The root path renders as "".
func Location(path []string) string {
	var sb strings.Builder
	for _, seg := range path {
		sb.WriteByte('/')
		if seg == ElementName {
			sb.WriteString(ElementName)
			continue
		}
		sb.WriteString(pointerEscaper.Replace(seg))
	}
	return sb.String()
}

// Pointer expands a location template with an index tuple. The i-th "*"
// segment is replaced with indices[i]; wildcards beyond the tuple are kept.
func Pointer(location string, indices []int) string {
	if location == "" {
		return ""
	}
	segs := strings.Split(location[1:], "/")
	next := 0
	for i, seg := range segs {
		if seg != ElementName {
			continue
		}
		if next >= len(indices) {
			break
		}
		segs[i] = strconv.Itoa(indices[next])
		next++
	}
	return "/" + strings.Join(segs, "/")
}

// Wildcards counts the "*" segments of a location template.
func Wildcards(location string) int {
	if location == "" {
		return 0
	}
	n := 0
	for _, seg := range strings.Split(location[1:], "/") {
		if seg == ElementName {
			n++
		}
	}
	return n
}
