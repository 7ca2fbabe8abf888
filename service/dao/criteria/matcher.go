package criteria

import (
	"time"

	"github.com/viant/intake/model/workflow"
	"github.com/viant/intake/service/dao"
)

// FilterByState reports whether state passes the State parameter, if any.
func FilterByState(state string, parameters []*dao.Parameter) bool {
	states := dao.States(parameters)
	if states == nil {
		return true
	}
	for _, s := range states {
		if state == s {
			return true
		}
	}
	return false
}

// Match reports whether instance passes every parameter.
func Match(instance *workflow.Instance, parameters []*dao.Parameter) bool {
	if !FilterByState(string(instance.State), parameters) {
		return false
	}
	for _, p := range parameters {
		if p == nil {
			continue
		}
		switch p.Name {
		case dao.ParamIdentity:
			if value, ok := p.Value.(string); ok && string(instance.Identity) != value {
				return false
			}
		case dao.ParamDeadlineBefore:
			at, ok := p.Value.(time.Time)
			if !ok {
				continue
			}
			if instance.DeadlineAt == nil || instance.DeadlineAt.After(at) {
				return false
			}
		}
	}
	return true
}
