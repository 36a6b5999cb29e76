package graph

import (
	"fmt"
	"slices"
	"strings"

	"github.com/aretw0/conductor/pkg/domain"
)

// RunOverlay marks execution results on the graph.
type RunOverlay struct {
	Completed []string
	Skipped   []string
	Failed    string
}

// OverlayFromResult builds an overlay from a (possibly partial) run result.
func OverlayFromResult(res *domain.RunResult) *RunOverlay {
	if res == nil {
		return nil
	}
	o := &RunOverlay{}
	for _, rec := range res.Steps {
		switch {
		case rec.Error != "":
			o.Failed = rec.StepID
		case rec.Skipped:
			o.Skipped = append(o.Skipped, rec.StepID)
		default:
			o.Completed = append(o.Completed, rec.StepID)
		}
	}
	return o
}

// GenerateMermaid produces a Mermaid flowchart of plan's data flow.
// It applies semantic styling:
// - Input: ((Circle))
// - Repeated step: [[Subroutine]]
// - Conditional step: {{Hexagon}}
// - Default: [Rectangle]
// Edges go from each referenced step or input to the step using it.
func GenerateMermaid(plan *domain.Plan, overlay *RunOverlay) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")
	if plan == nil {
		return sb.String()
	}

	for _, in := range plan.Inputs {
		fmt.Fprintf(&sb, "    %s((\"$%s\"))\n", nodeID(in), in)
	}

	for _, step := range plan.Steps {
		safeID := nodeID(step.ID)

		opener, closer := "[", "]"
		switch {
		case step.Repeat != nil:
			opener, closer = "[[", "]]"
		case step.When != nil:
			opener, closer = "{{", "}}"
		}

		label := fmt.Sprintf("%s <br/> %s", step.ID, step.Capability)
		if step.Repeat != nil {
			label += " <br/> " + repeatLabel(step.Repeat)
		}
		fmt.Fprintf(&sb, "    %s%s\"%s\"%s\n", safeID, opener, escape(label), closer)

		var seen []string
		for _, ref := range step.Refs() {
			if slices.Contains(seen, ref.Ref) {
				continue
			}
			seen = append(seen, ref.Ref)

			arrow := "-->"
			if step.When != nil && (step.When.Ref.Ref == ref.Ref || step.When.Value.Ref == ref.Ref) {
				arrow = fmt.Sprintf("-. \"%s\" .->", escape(conditionLabel(step.When)))
			}
			fmt.Fprintf(&sb, "    %s %s %s\n", nodeID(ref.Ref), arrow, safeID)
		}
	}

	if overlay != nil {
		sb.WriteString("\n    %% Overlay Styles\n")
		sb.WriteString("    classDef completed fill:#e1f5fe,stroke:#01579b,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef skipped fill:#eeeeee,stroke:#9e9e9e,stroke-dasharray:4,color:#000;\n")
		sb.WriteString("    classDef failed fill:#ffcdd2,stroke:#c62828,stroke-width:4px,color:#000;\n")
		writeClass(&sb, overlay.Completed, "completed")
		writeClass(&sb, overlay.Skipped, "skipped")
		if overlay.Failed != "" {
			fmt.Fprintf(&sb, "    class %s failed;\n", nodeID(overlay.Failed))
		}
	}

	return sb.String()
}

func writeClass(sb *strings.Builder, ids []string, class string) {
	done := make(map[string]bool, len(ids))
	for _, id := range ids {
		safeID := nodeID(id)
		if safeID == "" || done[safeID] {
			continue
		}
		done[safeID] = true
		fmt.Fprintf(sb, "    class %s %s;\n", safeID, class)
	}
}

func repeatLabel(r *domain.Repeat) string {
	switch {
	case r.Over != nil:
		return "for each " + r.Over.String()
	case r.While != nil:
		return fmt.Sprintf("while %s (max %d)", conditionLabel(r.While), r.Max)
	default:
		return fmt.Sprintf("%d times", r.Times)
	}
}

func conditionLabel(c *domain.Condition) string {
	if c.Op.Unary() {
		return fmt.Sprintf("%s %s", c.Ref, c.Op)
	}
	return fmt.Sprintf("%s %s %s", c.Ref, c.Op, c.Value)
}

func escape(s string) string {
	return strings.ReplaceAll(s, "\"", "'")
}

func nodeID(id string) string {
	s := strings.ReplaceAll(id, ".", "_")
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, "\\", "_")
	return s
}
