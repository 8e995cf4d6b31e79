// Package lifecycle holds the state machines governing curriculum versions,
// approvals and mappings, and the role policy admitting callers to them.
package lifecycle

import (
	"fmt"
	"sort"
	"strings"
)

// Event names a lifecycle trigger.
type Event string

// Origin tells who may fire a rule.
type Origin int

const (
	// OriginManual rules may be requested directly by a caller.
	OriginManual Origin = iota + 1
	// OriginWorkflow rules are only fired by the approval workflow.
	OriginWorkflow
)

func (o Origin) String() string {
	switch o {
	case OriginManual:
		return "manual"
	case OriginWorkflow:
		return "workflow"
	default:
		return "unknown"
	}
}

// Rule is one row of a transition table.
type Rule[S ~string] struct {
	From   S
	Event  Event
	To     S
	Origin Origin
}

type ruleKey[S ~string] struct {
	from  S
	event Event
}

// Machine is an immutable {state, event} -> state table.
type Machine[S ~string] struct {
	name  string
	rules []Rule[S]
	index map[ruleKey[S]]Rule[S]
}

// NewMachine indexes rules. Duplicate {from, event} pairs panic since tables are static.
func NewMachine[S ~string](name string, rules []Rule[S]) *Machine[S] {
	index := make(map[ruleKey[S]]Rule[S], len(rules))
	for _, r := range rules {
		k := ruleKey[S]{from: r.From, event: r.Event}
		if _, dup := index[k]; dup {
			panic(fmt.Sprintf("lifecycle: duplicate %s rule %s/%s", name, r.From, r.Event))
		}
		index[k] = r
	}
	return &Machine[S]{name: name, rules: rules, index: index}
}

// Name identifies the machine in errors and signals.
func (m *Machine[S]) Name() string {
	return m.name
}

// Fire applies event to from.
func (m *Machine[S]) Fire(from S, event Event) (S, error) {
	r, ok := m.index[ruleKey[S]{from: from, event: event}]
	if !ok {
		return from, &TransitionError{
			Machine: m.name,
			From:    string(from),
			Event:   event,
			Message: fmt.Sprintf("%s: event %s is not allowed from %s", m.name, event, from),
		}
	}
	return r.To, nil
}

// Resolve finds the rule moving from -> to that a caller of the given origin may fire.
// Workflow callers may also fire manual rules.
func (m *Machine[S]) Resolve(from, to S, origin Origin) (Rule[S], error) {
	for _, r := range m.rules {
		if r.From != from || r.To != to {
			continue
		}
		if origin == OriginManual && r.Origin != OriginManual {
			continue
		}
		return r, nil
	}
	msg := fmt.Sprintf("%s: transition %s -> %s is not allowed", m.name, from, to)
	if allowed := m.Targets(from, origin); len(allowed) > 0 {
		names := make([]string, len(allowed))
		for i, s := range allowed {
			names[i] = string(s)
		}
		msg += " (allowed: " + strings.Join(names, ", ") + ")"
	}
	return Rule[S]{}, &TransitionError{
		Machine: m.name,
		From:    string(from),
		To:      string(to),
		Message: msg,
	}
}

// Can reports whether any rule moves from -> to.
func (m *Machine[S]) Can(from, to S) bool {
	_, err := m.Resolve(from, to, OriginWorkflow)
	return err == nil
}

// Targets lists the states a caller of origin can reach from from in one step.
func (m *Machine[S]) Targets(from S, origin Origin) []S {
	seen := map[S]struct{}{}
	var out []S
	for _, r := range m.rules {
		if r.From != from {
			continue
		}
		if origin == OriginManual && r.Origin != OriginManual {
			continue
		}
		if _, ok := seen[r.To]; ok {
			continue
		}
		seen[r.To] = struct{}{}
		out = append(out, r.To)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Rules returns a copy of the table.
func (m *Machine[S]) Rules() []Rule[S] {
	out := make([]Rule[S], len(m.rules))
	copy(out, m.rules)
	return out
}

// Terminal reports whether no rule leaves state.
func (m *Machine[S]) Terminal(state S) bool {
	for _, r := range m.rules {
		if r.From == state {
			return false
		}
	}
	return true
}

// TransitionError is a structured error for rejected transitions.
type TransitionError struct {
	Machine string `json:"machine"`
	From    string `json:"from"`
	To      string `json:"to,omitempty"`
	Event   Event  `json:"event,omitempty"`
	Message string `json:"message"`
}

func (e *TransitionError) Error() string {
	return e.Message
}
