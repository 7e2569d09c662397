package statemachine

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
)

const (
	valueRef   = "$Value"
	contextRef = "$."
	elementRef = "$.#"
)

type env struct {
	context   map[string]any
	value     any
	constants map[string]any

	element    any
	hasElement bool
}

// resolve turns a reference string into the value it names. Anything else is
// a literal.
func (e *env) resolve(v any) any {
	s, ok := v.(string)
	if !ok {
		return v
	}
	switch {
	case s == elementRef && e.hasElement:
		return e.element
	case s == valueRef:
		return e.value
	case strings.HasPrefix(s, valueRef+"."):
		return lookup(e.value, strings.TrimPrefix(s, valueRef+"."))
	case strings.HasPrefix(s, elementRef+".") && e.hasElement:
		return lookup(e.element, strings.TrimPrefix(s, elementRef+"."))
	case strings.HasPrefix(s, contextRef):
		path := strings.TrimPrefix(s, contextRef)
		if got := lookup(e.context, path); got != nil {
			return got
		}
		return lookup(e.constants, path)
	}
	return s
}

func lookup(root any, path string) any {
	cur := root
	for _, part := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur = m[part]
	}
	return cur
}

func (e *env) condition(cond any) (bool, error) {
	switch c := cond.(type) {
	case bool:
		return c, nil
	case []any:
		for _, sub := range c {
			ok, err := e.condition(sub)
			if err != nil || !ok {
				return false, err
			}
		}
		return true, nil
	case map[string]any:
		if len(c) == 0 {
			return true, nil
		}
		ops := make([]string, 0, len(c))
		for op := range c {
			ops = append(ops, op)
		}
		sort.Strings(ops)
		for _, op := range ops {
			ok, err := e.operator(op, c[op])
			if err != nil || !ok {
				return false, err
			}
		}
		return true, nil
	}
	return false, fmt.Errorf("unsupported condition %T", cond)
}

func (e *env) operator(op string, arg any) (bool, error) {
	switch op {
	case "$eq", "$ne", "$gt", "$lt":
		args, ok := arg.([]any)
		if !ok || len(args) < 2 {
			return false, fmt.Errorf("%s needs at least two operands", op)
		}
		first := e.resolve(args[0])
		for _, other := range args[1:] {
			if !compare(op, first, e.resolve(other)) {
				return false, nil
			}
		}
		return true, nil

	case "$and", "$or":
		conds, ok := arg.([]any)
		if !ok {
			return false, fmt.Errorf("%s needs a list of conditions", op)
		}
		for _, sub := range conds {
			got, err := e.condition(sub)
			if err != nil {
				return false, err
			}
			if op == "$or" && got {
				return true, nil
			}
			if op == "$and" && !got {
				return false, nil
			}
		}
		return op == "$and", nil

	case "$not":
		got, err := e.condition(arg)
		return !got, err

	case "$inarray":
		params, ok := arg.(map[string]any)
		if !ok {
			return false, fmt.Errorf("$inarray needs an object")
		}
		list, _ := e.resolve(params["in"]).([]any)
		pred, hasPred := params["?"]
		for _, item := range list {
			if !hasPred {
				return true, nil
			}
			inner := *e
			inner.element, inner.hasElement = item, true
			got, err := inner.condition(pred)
			if err != nil {
				return false, err
			}
			if got {
				return true, nil
			}
		}
		return false, nil
	}
	return false, fmt.Errorf("unsupported operator %s", op)
}

func compare(op string, a, b any) bool {
	af, aNum := number(a)
	bf, bNum := number(b)
	switch op {
	case "$eq":
		if aNum && bNum {
			return af == bf
		}
		return reflect.DeepEqual(a, b)
	case "$ne":
		if aNum && bNum {
			return af != bf
		}
		return !reflect.DeepEqual(a, b)
	case "$gt":
		return aNum && bNum && af > bf
	case "$lt":
		return aNum && bNum && af < bf
	}
	return false
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

// actions applies one action object or a list of them, in order.
func (e *env) actions(actions any) error {
	switch a := actions.(type) {
	case []any:
		for _, sub := range a {
			if err := e.actions(sub); err != nil {
				return err
			}
		}
		return nil
	case map[string]any:
		ops := make([]string, 0, len(a))
		for op := range a {
			ops = append(ops, op)
		}
		sort.Strings(ops)
		for _, op := range ops {
			if err := e.action(op, a[op]); err != nil {
				return err
			}
		}
		return nil
	}
	return fmt.Errorf("unsupported actions %T", actions)
}

func (e *env) action(op string, arg any) error {
	switch op {
	case "$inc", "$dec":
		path, amount := "", 1.0
		switch a := arg.(type) {
		case string:
			path = a
		case []any:
			if len(a) != 2 {
				return fmt.Errorf("%s needs a path and an amount", op)
			}
			path, _ = a[0].(string)
			n, ok := number(e.resolve(a[1]))
			if !ok {
				return fmt.Errorf("%s amount is not a number", op)
			}
			amount = n
		}
		path = strings.TrimPrefix(path, contextRef)
		if path == "" {
			return fmt.Errorf("%s needs a context path", op)
		}
		cur, _ := number(lookup(e.context, path))
		if op == "$dec" {
			amount = -amount
		}
		return assign(e.context, path, cur+amount)

	case "$set", "$push", "$pushunique":
		a, ok := arg.([]any)
		if !ok || len(a) != 2 {
			return fmt.Errorf("%s needs a path and a value", op)
		}
		path, _ := a[0].(string)
		path = strings.TrimPrefix(path, contextRef)
		if path == "" {
			return fmt.Errorf("%s needs a context path", op)
		}
		val := e.resolve(a[1])
		if op == "$set" {
			return assign(e.context, path, val)
		}
		list, _ := lookup(e.context, path).([]any)
		if op == "$pushunique" {
			for _, existing := range list {
				if compare("$eq", existing, val) {
					return nil
				}
			}
		}
		return assign(e.context, path, append(list, val))
	}
	return fmt.Errorf("unsupported action %s", op)
}

func assign(root map[string]any, path string, v any) error {
	parts := strings.Split(strings.TrimPrefix(path, contextRef), ".")
	cur := root
	for _, part := range parts[:len(parts)-1] {
		next, ok := cur[part].(map[string]any)
		if !ok {
			if cur[part] != nil {
				return fmt.Errorf("context path %s crosses a non-object", path)
			}
			next = make(map[string]any)
			cur[part] = next
		}
		cur = next
	}
	cur[parts[len(parts)-1]] = v
	return nil
}
