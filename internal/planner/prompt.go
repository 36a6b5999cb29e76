package planner

import (
	"fmt"
	"strings"

	"github.com/aretw0/conductor/pkg/domain"
	"github.com/aretw0/conductor/pkg/ports"
)

const systemPrompt = `You are a planner. Break the user's goal into an ordered list of calls to the functions listed below.

Rules:
- Use only the listed functions and only their declared parameters.
- Every step has a unique "id"; its result can be used by later steps as "$id" (or "$id.field" for object results).
- Plan inputs can be used as "$name".
- A step may only use results of steps that come before it.
- Optional "when": {"ref": "$id", "op": "eq|ne|gt|gte|lt|lte|truthy|falsy|contains", "value": ...} skips the step unless the condition holds.
- Optional "repeat": {"over": "$list", "as": "item"} runs the step once per item, {"times": N, "as": "i"} runs it N times,
  {"while": {...}, "max": N} runs it while the condition holds (its own previous result is "$id"). The result is the list of iteration results.
- The result of the last step is the answer to the goal.
- Literal strings that start with "$" must be written with "$$".
- If the goal cannot be achieved with the functions, return {"steps": []}.

Respond with JSON only, no prose:
{"steps": [{"id": "...", "capability": "...", "args": {"param": "value or $ref"}}]}`

// BuildPrompt renders the planning request sent to the reasoning service.
func BuildPrompt(goal string, caps []domain.CapabilityInfo, inputs []string, history string) ports.CompletionRequest {
	var b strings.Builder

	b.WriteString("[AVAILABLE FUNCTIONS]\n")
	if len(caps) == 0 {
		b.WriteString("(none)\n")
	}
	for _, c := range caps {
		writeCapability(&b, c)
	}

	if len(inputs) > 0 {
		b.WriteString("\n[PLAN INPUTS]\n")
		for _, in := range inputs {
			fmt.Fprintf(&b, "- $%s\n", in)
		}
	}

	if history != "" {
		b.WriteString("\n[CONVERSATION]\n")
		b.WriteString(history)
		b.WriteString("\n")
	}

	b.WriteString("\n[GOAL]\n")
	b.WriteString(goal)
	b.WriteString("\n")

	return ports.CompletionRequest{
		System: systemPrompt,
		Prompt: b.String(),
	}
}

func writeCapability(b *strings.Builder, c domain.CapabilityInfo) {
	fmt.Fprintf(b, "%s: %s\n", c.Name, oneLine(c.Description))
	for _, p := range c.Parameters {
		typ := p.Type
		if typ == "" {
			typ = "any"
		}
		req := "optional"
		if p.Required {
			req = "required"
		}
		fmt.Fprintf(b, "  - %s (%s, %s)", p.Name, typ, req)
		if p.Description != "" {
			fmt.Fprintf(b, ": %s", oneLine(p.Description))
		}
		if p.Default != nil {
			fmt.Fprintf(b, " [default: %v]", p.Default)
		}
		b.WriteString("\n")
	}
	if c.Output != "" {
		fmt.Fprintf(b, "  returns: %s\n", oneLine(c.Output))
	}
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
