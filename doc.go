/*
Package conductor is a goal-driven orchestration library: it turns a natural-language goal into a
plan of calls to registered capabilities, validates that plan, and executes it.

A reasoning service (usually a large language model) proposes the plan in a single call.
Everything after that is deterministic: the plan is checked against the registry before any
capability runs, step arguments are bound to plan inputs and earlier outputs, and the output of
the last step is the answer.

# Concepts

  - Capability: a named, described function with typed parameters, registered in a Registry.
    Plugins group capabilities under a namespace ("math.add").
  - Plan: an ordered list of steps. Each step names a capability and binds its arguments to
    literals or references ("$sum", "$profile.tags.0"). Steps may be conditional (when) or
    repeated (repeat over/times/while).
  - Session: the conversation history. It is append-only and trimmed only when rendered into
    a prompt.

# Usage

	reg := registry.NewRegistry()
	reg.MustRegister(registry.Plugin("math", plugins.Math()...)...)
	reg.Seal()

	orch, err := conductor.New(
		conductor.WithRegistry(reg),
		conductor.WithReasoner(openai.New(openai.Config{Model: "gpt-4o-mini"})),
	)
	if err != nil {
		log.Fatal(err)
	}

	history := session.New("")
	result, err := orch.RunGoal(ctx, "What is 3 plus 4, times 5?", history)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(result.Output) // 35

Generate and Execute are also exposed separately, so a plan can be inspected, stored or
edited before it runs.
*/
package conductor
