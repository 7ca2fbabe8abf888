package event

import (
	"time"

	"github.com/viant/intake/internal/clock"
)

// Event types.
const (
	TypeTransition = "transition"
	TypeDuplicate  = "duplicate"
)

type Context struct {
	InstanceID  string `json:"instanceID"`
	Identity    string `json:"identity,omitempty"`
	EventType   string `json:"eventType"`
	From        string `json:"from,omitempty"`
	To          string `json:"to,omitempty"`
	Reason      string `json:"reason,omitempty"`
	TimeTakenMs int    `json:"timeTakenMs,omitempty"`
}

type Event[T any] struct {
	Context   *Context               `json:"context"`
	CreatedAt time.Time              `json:"createdAt"`
	Metadata  map[string]interface{} `json:"metadata"`
	Data      T                      `json:"data"`
}

func NewEvent[T any](context *Context, data T) *Event[T] {
	return &Event[T]{
		Context:   context,
		CreatedAt: clock.Now(),
		Metadata:  make(map[string]interface{}),
		Data:      data,
	}
}
