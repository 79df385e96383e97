package graph

import (
	"fmt"
	"strings"

	"github.com/aretw0/wayfinder/pkg/domain"
)

// endNode closes every flowchart.
const endNode = "__end"

// Overlay contains run state to visualize on the graph.
type Overlay struct {
	VisitedSteps []string
	CurrentStep  string
}

// GenerateMermaid produces a Mermaid flowchart of a guide. Shapes follow the step type:
// - First step: ((Circle))
// - Action: [/Parallelogram/] (waits for the user)
// - Interactive: [[Subroutine]]
// - Info: [Rectangle]
// Step conditions label the edge entering the step. Overlay styles are applied when given.
func GenerateMermaid(g domain.Guide, overlay *Overlay) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")

	for i, step := range g.Steps {
		safeID := sanitizeMermaidID(step.ID)

		opener, closer := "[", "]"
		switch {
		case i == 0:
			opener, closer = "((", "))"
		case step.Type == domain.StepTypeAction:
			opener, closer = "[/", "/]"
		case step.Type == domain.StepTypeInteractive:
			opener, closer = "[[", "]]"
		}

		sb.WriteString(fmt.Sprintf("    %s%s\"%s\"%s\n", safeID, opener, label(step), closer))

		next := endNode
		if i+1 < len(g.Steps) {
			next = sanitizeMermaidID(g.Steps[i+1].ID)
		}

		arrow := "-->"
		if i+1 < len(g.Steps) && len(g.Steps[i+1].Conditions) > 0 {
			conds := make([]string, 0, len(g.Steps[i+1].Conditions))
			for _, c := range g.Steps[i+1].Conditions {
				conds = append(conds, c.String())
			}
			arrow = fmt.Sprintf("-- \"%s\" -->", strings.ReplaceAll(strings.Join(conds, ", "), "\"", "'"))
		}
		if step.Display.AutoAdvance > 0 {
			// Auto-advancing steps move on without a click.
			arrow = fmt.Sprintf("-. \"⏩ %s\" .->", step.Display.AutoAdvance)
		}
		sb.WriteString(fmt.Sprintf("    %s %s %s\n", safeID, arrow, next))
	}
	sb.WriteString(fmt.Sprintf("    %s(((\"%s\")))\n", endNode, "completed"))

	if overlay != nil {
		sb.WriteString("\n    %% Overlay Styles\n")
		// Black text keeps contrast on both light and dark themes.
		sb.WriteString("    classDef visited fill:#e1f5fe,stroke:#01579b,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef current fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")

		visitedSet := make(map[string]bool)
		for _, id := range overlay.VisitedSteps {
			safeID := sanitizeMermaidID(id)
			if !visitedSet[safeID] && safeID != "" {
				visitedSet[safeID] = true
				sb.WriteString(fmt.Sprintf("    class %s visited;\n", safeID))
			}
		}

		if overlay.CurrentStep != "" {
			sb.WriteString(fmt.Sprintf("    class %s current;\n", sanitizeMermaidID(overlay.CurrentStep)))
		}
	}

	return sb.String()
}

func label(step domain.Step) string {
	text := step.Title
	if text == "" {
		text = step.ID
	}
	text = strings.ReplaceAll(text, "\"", "'")
	if step.Target != nil {
		text += " <br/> 🎯 " + strings.ReplaceAll(step.Target.Value, "\"", "'")
	}
	if step.Display.ActionTimeout > 0 {
		text += fmt.Sprintf(" <br/> ⏱️ %s", step.Display.ActionTimeout)
	}
	return text
}

func sanitizeMermaidID(id string) string {
	s := strings.ReplaceAll(id, ".", "_")
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, "\\", "_")
	s = strings.ReplaceAll(s, " ", "_")
	return s
}
