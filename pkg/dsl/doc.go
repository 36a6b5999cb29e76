/*
Package dsl provides a Go DSL for building Conductor plans by hand.

Plans are normally generated by the reasoning service. Building them in Go is
useful for tests, fixed workflows and examples, and it produces the same
domain.Plan the orchestrator validates and executes.

Example usage:

	b := dsl.New("area of a 3x4 rectangle, doubled").Inputs("scale")

	b.Add("area").Call("math.multiply").Arg("a", 3).Arg("b", 4)
	b.Add("scaled").Call("math.multiply").Ref("a", "area").Ref("b", "scale")

	plan, err := b.Build()
	if err != nil {
		return err
	}
	if err := orchestrator.Validate(plan); err != nil {
		return err // *domain.PlanValidationError lists every problem
	}
	result, err := orchestrator.Execute(ctx, plan, conductor.WithInputs(map[string]any{"scale": 2}))

Execute validates too, so the explicit call only matters when the problems
should be reported before anything runs.
*/
package dsl
