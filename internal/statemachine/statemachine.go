// Package statemachine evaluates challenge state machines: a state graph of
// event handlers, each with an optional condition, context actions, and a
// transition.
package statemachine

import (
	"encoding/json"
	"fmt"
)

// Definition is a challenge's state machine.
type Definition struct {
	Context   map[string]any                    `json:"Context"`
	Constants map[string]any                    `json:"Constants,omitempty"`
	States    map[string]map[string]HandlerList `json:"States"`
}

// Handler reacts to one event in one state.
type Handler struct {
	Condition  any    `json:"Condition,omitempty"`
	Actions    any    `json:"Actions,omitempty"`
	Transition string `json:"Transition,omitempty"`
}

// HandlerList is the ordered handlers for one event. The JSON form may be a
// single handler object or an array of them.
type HandlerList []Handler

// UnmarshalJSON accepts a handler object or an array of handlers.
func (h *HandlerList) UnmarshalJSON(data []byte) error {
	var many []Handler
	if err := json.Unmarshal(data, &many); err == nil {
		*h = many
		return nil
	}
	var one Handler
	if err := json.Unmarshal(data, &one); err != nil {
		return fmt.Errorf("event handler: %w", err)
	}
	*h = HandlerList{one}
	return nil
}

// Timer is an opaque running timer carried alongside the state.
type Timer struct {
	StartTime float64 `json:"startTime"`
	Path      string  `json:"path,omitempty"`
}

// Options selects the event being handled and the machine's position.
type Options struct {
	EventName    string
	CurrentState string
	Timers       []Timer
}

// Result is the machine's position after an event.
type Result struct {
	State   string
	Context map[string]any
	Timers  []Timer
}

// AnyEvent handlers run for every event in a state, after the specific ones.
const AnyEvent = "-"

// Evaluator runs events through definitions. It holds no state.
type Evaluator struct{}

// NewEvaluator returns an evaluator.
func NewEvaluator() *Evaluator {
	return &Evaluator{}
}

// HandleEvent applies one event. The input context is not modified; the
// returned context is a fresh copy. Unknown states and events leave the
// machine unchanged.
func (e *Evaluator) HandleEvent(def Definition, context map[string]any, value any, opts Options) (Result, error) {
	ctx, err := copyContext(context)
	if err != nil {
		return Result{}, err
	}
	val, err := generic(value)
	if err != nil {
		return Result{}, fmt.Errorf("event value: %w", err)
	}

	result := Result{State: opts.CurrentState, Context: ctx, Timers: opts.Timers}

	state, ok := def.States[opts.CurrentState]
	if !ok {
		return result, nil
	}

	handlers := append(HandlerList{}, state[opts.EventName]...)
	if opts.EventName != AnyEvent {
		handlers = append(handlers, state[AnyEvent]...)
	}

	env := &env{context: ctx, value: val, constants: def.Constants}
	for i, h := range handlers {
		if h.Condition != nil {
			ok, err := env.condition(h.Condition)
			if err != nil {
				return Result{}, fmt.Errorf("state %s event %s handler %d condition: %w", opts.CurrentState, opts.EventName, i, err)
			}
			if !ok {
				continue
			}
		}
		if h.Actions != nil {
			if err := env.actions(h.Actions); err != nil {
				return Result{}, fmt.Errorf("state %s event %s handler %d actions: %w", opts.CurrentState, opts.EventName, i, err)
			}
		}
		if h.Transition != "" {
			result.State = h.Transition
			break
		}
	}
	return result, nil
}

func copyContext(context map[string]any) (map[string]any, error) {
	if context == nil {
		return make(map[string]any), nil
	}
	g, err := generic(context)
	if err != nil {
		return nil, fmt.Errorf("context: %w", err)
	}
	m, ok := g.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("context is not an object")
	}
	return m, nil
}

// generic deep-copies v into the plain JSON value model (maps, slices,
// float64, string, bool, nil).
func generic(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}
