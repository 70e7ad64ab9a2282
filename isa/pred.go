package isa

import "strings"

// Predicate is the execution condition of an instruction.
type Predicate uint8

// The predicates. Everything after NotIF1 needs extended sources.
const (
	PredAlways Predicate = iota
	PredP0
	PredP1
	PredP2
	PredNotIF0
	PredNotIF1
	PredIF0
	PredIF1
	PredALUZ
	PredNotALUZ
	PredALUN
	PredNotALUN
	PredNotP0
	PredNotP1
	PredNotP2

	NumPredicates
)

var predNames = [NumPredicates]string{
	"always", "p0", "p1", "p2", "!if0", "!if1",
	"if0", "if1", "aluz", "!aluz", "alun", "!alun", "!p0", "!p1", "!p2",
}

func (p Predicate) String() string {
	if p >= NumPredicates {
		return "pred?"
	}

	return predNames[p]
}

// LookupPredicate parses a predicate name such as "p1" or "!if0".
func LookupPredicate(name string) (Predicate, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for p, n := range predNames {
		if n == name {
			return Predicate(p), true
		}
	}

	return 0, false
}

// Extended reports whether the predicate needs extended sources.
func (p Predicate) Extended() bool {
	return p > PredNotIF1
}

// Condition codes of the flow-control encoding.
const (
	FlowAlways = 0
	FlowP0     = 1
	FlowP1     = 2
	FlowP2     = 3
	FlowIF0    = 4
	FlowIF1    = 5
	FlowALUZ   = 6
	FlowALUN   = 7
)

// GeneralCondition returns the 3-bit condition code used by every opcode
// outside the flow-control family.
func GeneralCondition(p Predicate, ext bool) (uint32, bool) {
	switch p {
	case PredAlways:
		return 0, true
	case PredP0:
		return 1, true
	case PredP1:
		return 2, true
	case PredP2:
		return 3, true
	case PredNotIF0:
		return 4, true
	case PredNotIF1:
		return 5, true
	case PredALUZ:
		return 6, ext
	}

	return 0, false
}

// FlowCondition returns the condition code and negate bit of the
// flow-control encoding.
func FlowCondition(p Predicate, ext bool) (cc uint32, negate bool, ok bool) {
	switch p {
	case PredAlways:
		return FlowAlways, false, true
	case PredP0:
		return FlowP0, false, true
	case PredP1:
		return FlowP1, false, true
	case PredP2:
		return FlowP2, false, true
	case PredNotIF0:
		return FlowIF0, true, true
	case PredNotIF1:
		return FlowIF1, true, true
	}

	if !ext {
		return 0, false, false
	}

	switch p {
	case PredIF0:
		return FlowIF0, false, true
	case PredIF1:
		return FlowIF1, false, true
	case PredALUZ:
		return FlowALUZ, false, true
	case PredNotALUZ:
		return FlowALUZ, true, true
	case PredALUN:
		return FlowALUN, false, true
	case PredNotALUN:
		return FlowALUN, true, true
	case PredNotP0:
		return FlowP0, true, true
	case PredNotP1:
		return FlowP1, true, true
	case PredNotP2:
		return FlowP2, true, true
	}

	return 0, false, false
}

// PredicateFromGeneral maps a general condition code back to a predicate.
func PredicateFromGeneral(cc uint32) (Predicate, bool) {
	table := []Predicate{PredAlways, PredP0, PredP1, PredP2, PredNotIF0, PredNotIF1, PredALUZ}
	if cc >= uint32(len(table)) {
		return 0, false
	}

	return table[cc], true
}

// PredicateFromFlow maps a flow condition code and negate bit back to a
// predicate.
func PredicateFromFlow(cc uint32, negate bool) (Predicate, bool) {
	pos := []Predicate{PredAlways, PredP0, PredP1, PredP2, PredIF0, PredIF1, PredALUZ, PredALUN}
	neg := []Predicate{0, PredNotP0, PredNotP1, PredNotP2, PredNotIF0, PredNotIF1, PredNotALUZ, PredNotALUN}

	if cc >= uint32(len(pos)) {
		return 0, false
	}

	if !negate {
		return pos[cc], true
	}

	if cc == FlowAlways {
		return 0, false
	}

	return neg[cc], true
}
