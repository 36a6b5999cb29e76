/*
Package domain contains the core domain models of the Conductor orchestrator.

It defines the entities that flow between the registry, the planner and the
executor. The package is kept pure and free of external dependencies like I/O
or persistence, following Hexagonal Architecture principles.

# Key Entities

  - CapabilityInfo: The descriptor of a callable unit (name, description, parameters).
  - Plan: An ordered list of Steps produced for a single goal.
  - Step: One capability invocation with argument Bindings, an optional Condition and an optional Repeat.
  - Turn: One immutable message of a conversation.
  - RunResult: The outcome of executing a Plan, including per-step records.
*/
package domain
