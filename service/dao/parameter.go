package dao

import (
	"time"

	"github.com/viant/intake/model/workflow"
)

// Parameter names understood by every InstanceStore.List.
const (
	ParamState          = "State"
	ParamIdentity       = "Identity"
	ParamDeadlineBefore = "DeadlineBefore"
)

type Parameter struct {
	Name  string
	Value interface{}
}

func NewParameter(name string, values ...string) *Parameter {
	if len(values) == 1 {
		return &Parameter{Name: name, Value: values[0]}
	}
	return &Parameter{Name: name, Value: values}
}

// WithStates filters instances in any of states.
func WithStates(states ...workflow.State) *Parameter {
	values := make([]string, 0, len(states))
	for _, s := range states {
		values = append(values, string(s))
	}
	return &Parameter{Name: ParamState, Value: values}
}

// WithDeadlineBefore filters suspended instances whose deadline is not after at.
func WithDeadlineBefore(at time.Time) *Parameter {
	return &Parameter{Name: ParamDeadlineBefore, Value: at}
}

// States returns the state filter values, if any.
func States(parameters []*Parameter) []string {
	for _, p := range parameters {
		if p == nil || p.Name != ParamState {
			continue
		}
		switch actual := p.Value.(type) {
		case string:
			return []string{actual}
		case []string:
			return actual
		case workflow.State:
			return []string{string(actual)}
		}
	}
	return nil
}
