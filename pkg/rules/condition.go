package rules

import "strings"

// EvaluateCondition reports whether a condition fires for one cell
// transition. Comparison is exact: values are matched byte-for-byte with no
// trimming or case folding, so a trailing space in the sheet never triggers
// a rule by accident.
//
// changes_to requires an actual transition (old != new) into the trigger
// value; equals also fires on a re-save of an already-matching value.
// Unknown operators never fire.
func EvaluateCondition(op Operator, triggerValue, oldValue, newValue string) bool {
	switch op {
	case OperatorEquals:
		return newValue == triggerValue
	case OperatorContains:
		return strings.Contains(newValue, triggerValue)
	case OperatorChangesTo:
		return oldValue != newValue && newValue == triggerValue
	default:
		return false
	}
}

// Matches reports whether the rule's condition fires for the given cell
// transition. Pure; safe to call concurrently.
func (r *AutomationRule) Matches(oldValue, newValue string) bool {
	return EvaluateCondition(r.Operator, r.TriggerValue, oldValue, newValue)
}
