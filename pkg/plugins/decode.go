package plugins

import (
	"fmt"

	"github.com/aretw0/conductor/pkg/domain"
	"github.com/aretw0/conductor/pkg/registry"
	"github.com/mitchellh/mapstructure"
)

func decode[T any](args map[string]any) (T, error) {
	var out T
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &out,
		WeaklyTypedInput: true,
		TagName:          "arg",
	})
	if err != nil {
		return out, err
	}
	if err := dec.Decode(args); err != nil {
		return out, fmt.Errorf("invalid arguments: %w", err)
	}
	return out, nil
}

func param(name, typ, description string) domain.Parameter {
	return domain.Parameter{Name: name, Type: typ, Required: true, Description: description}
}

func optional(name, typ, description string, def any) domain.Parameter {
	return domain.Parameter{Name: name, Type: typ, Description: description, Default: def}
}

func withOutput(c registry.Capability, output string) registry.Capability {
	c.Info.Output = output
	return c
}
