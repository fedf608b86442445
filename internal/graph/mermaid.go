package graph

import (
	"fmt"
	"strings"

	"github.com/roach88/rdialog/internal/field"
	"github.com/roach88/rdialog/internal/provider"
)

// Mermaid renders the graph as a Mermaid flowchart. Edges point in the
// direction values flow: from a dependency to its consumer.
//
// Shapes:
// - Reference: (["Stadium"])
// - Field provider: [Rectangle]
// - State provider: {{Hexagon}}
// - Internal provider: [[Subroutine]]
//
// When plan is non-nil its steps are styled: emitting steps as "planned",
// support steps as "support".
func Mermaid(g *Graph, plan *Plan) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")

	for _, ref := range g.refIDs {
		fmt.Fprintf(&sb, "    %s([\"%s\"])\n", refNodeID(ref), escapeLabel(ref))
	}

	for _, n := range g.nodes {
		opener, closer := "[", "]"
		switch n.Target {
		case field.TargetState:
			opener, closer = "{{", "}}"
		case field.TargetInternal:
			opener, closer = "[[", "]]"
		}
		label := escapeLabel(n.ID)
		if n.Eager {
			label += " (eager)"
		}
		fmt.Fprintf(&sb, "    %s%s\"%s\"%s\n", providerNodeID(n.ID), opener, label, closer)
	}

	for _, n := range g.nodes {
		for _, d := range n.Deps {
			from := providerNodeID(d.Target)
			if d.Kind == provider.DepReference {
				from = refNodeID(d.Target)
			}
			fmt.Fprintf(&sb, "    %s --> %s\n", from, providerNodeID(n.ID))
		}
	}

	if len(g.eager) > 0 {
		sb.WriteString("\n    classDef eager stroke-width:3px;\n")
		for _, id := range g.eager {
			fmt.Fprintf(&sb, "    class %s eager;\n", providerNodeID(id))
		}
	}

	if plan != nil && len(plan.Steps) > 0 {
		sb.WriteString("\n    %% Plan\n")
		sb.WriteString("    classDef planned fill:#e1f5fe,stroke:#01579b,color:#000;\n")
		sb.WriteString("    classDef support fill:#eeeeee,stroke:#9e9e9e,color:#000;\n")
		for _, s := range plan.Steps {
			class := "planned"
			if !s.Emit {
				class = "support"
			}
			fmt.Fprintf(&sb, "    class %s %s;\n", providerNodeID(s.Node.ID), class)
		}
	}

	return sb.String()
}

func refNodeID(ref string) string { return "r_" + sanitizeMermaidID(ref) }

func providerNodeID(id string) string { return "p_" + sanitizeMermaidID(id) }

func sanitizeMermaidID(id string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			return r
		default:
			return '_'
		}
	}, id)
}

func escapeLabel(s string) string {
	return strings.ReplaceAll(s, "\"", "'")
}
