package plugins

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/aretw0/conductor/pkg/registry"
)

type textArg struct {
	Text string `arg:"text"`
}

type concatArgs struct {
	Items     []string `arg:"items"`
	Separator string   `arg:"separator"`
}

func textFunc(name, description string, fn func(string) any) registry.Capability {
	return registry.New(name, description, func(_ context.Context, args map[string]any) (any, error) {
		in, err := decode[textArg](args)
		if err != nil {
			return nil, err
		}
		return fn(in.Text), nil
	}, param("text", "string", "Input text"))
}

// Text returns string manipulation capabilities.
func Text() []registry.Capability {
	return []registry.Capability{
		textFunc("upper", "Converts text to upper case", func(s string) any { return strings.ToUpper(s) }),
		textFunc("lower", "Converts text to lower case", func(s string) any { return strings.ToLower(s) }),
		textFunc("trim", "Removes leading and trailing whitespace", func(s string) any { return strings.TrimSpace(s) }),
		withOutput(textFunc("length", "Counts the characters in text", func(s string) any { return utf8.RuneCountInString(s) }), "int"),
		registry.New("concat", "Joins items with an optional separator", func(_ context.Context, args map[string]any) (any, error) {
			in, err := decode[concatArgs](args)
			if err != nil {
				return nil, err
			}
			return strings.Join(in.Items, in.Separator), nil
		}, param("items", "[any]", "Values to join"), optional("separator", "string", "Placed between items", "")),
	}
}
