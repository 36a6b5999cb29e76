package runtime

import (
	"reflect"
	"strconv"
	"sync"

	"github.com/aretw0/conductor/pkg/domain"
)

// scope is the execution context of one run: plan inputs plus step outputs.
// It lives only as long as Execute.
type scope struct {
	mu     sync.RWMutex
	values map[string]any
}

func newScope(inputs map[string]any) *scope {
	s := &scope{values: make(map[string]any, len(inputs))}
	for k, v := range inputs {
		s.values[k] = v
	}
	return s
}

func (s *scope) set(name string, v any) {
	s.mu.Lock()
	s.values[name] = v
	s.mu.Unlock()
}

func (s *scope) get(name string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[name]
	return v, ok
}

// frame layers loop-local names over the run scope.
type frame struct {
	parent *scope
	locals map[string]any
}

func (f frame) lookup(name string) (any, bool) {
	if v, ok := f.locals[name]; ok {
		return v, true
	}
	return f.parent.get(name)
}

// resolve returns the concrete value of b.
func (f frame) resolve(stepID string, b domain.Binding) (any, error) {
	if !b.IsRef() {
		return b.Value, nil
	}
	v, ok := f.lookup(b.Ref)
	if !ok {
		return nil, &domain.UnresolvedReferenceError{StepID: stepID, Ref: b.Expr()}
	}
	for _, key := range b.Path {
		next, ok := descend(v, key)
		if !ok {
			return nil, &domain.UnresolvedReferenceError{StepID: stepID, Ref: b.Expr()}
		}
		v = next
	}
	return v, nil
}

func (f frame) resolveArgs(stepID string, args map[string]domain.Binding) (map[string]any, error) {
	out := make(map[string]any, len(args))
	for name, b := range args {
		v, err := f.resolve(stepID, b)
		if err != nil {
			return nil, err
		}
		out[name] = v
	}
	return out, nil
}

// descend indexes into maps by key and into slices by position.
func descend(v any, key string) (any, bool) {
	if m, ok := v.(map[string]any); ok {
		next, ok := m[key]
		return next, ok
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return nil, false
		}
		next := rv.MapIndex(reflect.ValueOf(key).Convert(rv.Type().Key()))
		if !next.IsValid() {
			return nil, false
		}
		return next.Interface(), true
	case reflect.Slice, reflect.Array:
		i, err := strconv.Atoi(key)
		if err != nil || i < 0 || i >= rv.Len() {
			return nil, false
		}
		return rv.Index(i).Interface(), true
	case reflect.Pointer:
		if rv.IsNil() {
			return nil, false
		}
		return descend(rv.Elem().Interface(), key)
	case reflect.Struct:
		field := rv.FieldByName(key)
		if !field.IsValid() || !field.CanInterface() {
			return nil, false
		}
		return field.Interface(), true
	}
	return nil, false
}
