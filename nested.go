package conductor

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/aretw0/conductor/pkg/domain"
	"github.com/aretw0/conductor/pkg/registry"
)

// GoalParam is the argument carrying the sub-goal of a nested-goal capability.
const GoalParam = "goal"

// NestedGoal builds a capability that solves its "goal" argument with a plan of its own.
//
// The nested plan is generated by o and may use every registered capability
// except the ones already executing, including this one. Remaining arguments
// are passed as plan inputs. The capability's output is the nested run's text.
func NestedGoal(o *Orchestrator, info domain.CapabilityInfo) registry.Capability {
	params := slices.Clone(info.Parameters)
	if _, ok := info.Param(GoalParam); !ok {
		params = append([]domain.Parameter{{
			Name:        GoalParam,
			Type:        "string",
			Required:    true,
			Description: "What to solve, in natural language",
		}}, params...)
	}
	info.Parameters = params

	handler := func(ctx context.Context, args map[string]any) (any, error) {
		goal, _ := args[GoalParam].(string)
		if goal == "" {
			return nil, errors.New("nested goal is empty")
		}

		inputs := maps.Clone(args)
		delete(inputs, GoalParam)

		result, err := o.RunGoal(ctx, goal, nil, WithInputs(inputs))
		if err != nil {
			return nil, fmt.Errorf("nested goal: %w", err)
		}
		return result.Output, nil
	}

	return registry.Capability{Info: info, Handler: handler}
}
