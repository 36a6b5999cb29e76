/*
Package ports defines the driven ports (interfaces) for the Conductor orchestrator.

These interfaces decouple the core logic from external implementations, allowing
the orchestrator to work with various storage backends, reasoning services and
event sinks.

# Key Interfaces

  - ReasoningService: The opaque AI backend that turns a prompt into text.
  - HistoryStore: Responsible for persisting and loading conversation turns.
  - DistributedLocker: Provides distributed locking for handling concurrent session access.
  - EventPublisher: Receives lifecycle events for external consumers.
*/
package ports
