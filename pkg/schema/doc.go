// Package schema validates capability arguments against declared parameter types.
//
// Types are written as short strings so they can travel in capability
// descriptors and plan files:
//
//	string, int, float, number, bool, object, any, [string], [[int]]
//
// A list of Fields describes a capability's parameters in declaration order:
//
//	fields, err := schema.ParseFields([]schema.FieldSpec{
//	    {Name: "a", Type: "number", Required: true},
//	    {Name: "b", Type: "number", Required: true},
//	})
//	if err := schema.Check(fields, args, schema.Strict()); err != nil {
//	    for _, e := range schema.ValidationErrors(err) {
//	        // one entry per offending argument
//	    }
//	}
//
// Custom types can be built with Custom for domain-specific checks.
package schema
