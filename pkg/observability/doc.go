/*
Package observability turns orchestrator lifecycle hooks into logs, metrics, traces and events.

Every helper returns a domain.LifecycleHooks value; combine them with ComposeHooks and pass the
result to conductor.WithLifecycleHooks.
*/
package observability
