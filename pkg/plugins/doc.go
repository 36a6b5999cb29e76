// Package plugins provides native capabilities that ship with Conductor.
//
// Each constructor returns plain capabilities; register them under a
// namespace with registry.Plugin:
//
//	reg.MustRegister(registry.Plugin("math", plugins.Math()...)...)
//
// Handlers decode their validated arguments into typed structs with
// mapstructure, so integer and float inputs are interchangeable.
package plugins
