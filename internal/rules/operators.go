package rules

import "strings"

// NormalizeOperator maps accepted spellings (symbols, short names, hyphenated
// forms) onto the canonical operator. Unknown operators are returned as-is so
// that validation can reject them and evaluation can fail closed.
func NormalizeOperator(op Operator) Operator {
	switch strings.ToLower(strings.TrimSpace(string(op))) {
	case "==", "eq", "equals":
		return OpEquals
	case "!=", "neq", "not_equals", "not-equals", "notequals":
		return OpNotEquals
	case ">", "gt", "greater_than", "greater-than":
		return OpGreaterThan
	case ">=", "gte", "greater_or_equal", "greater-or-equal", "greater_than_or_equal":
		return OpGreaterOrEqual
	case "<", "lt", "less_than", "less-than":
		return OpLessThan
	case "<=", "lte", "less_or_equal", "less-or-equal", "less_than_or_equal":
		return OpLessOrEqual
	case "contains":
		return OpContains
	case "is_empty", "is-empty", "empty":
		return OpIsEmpty
	case "is_not_empty", "is-not-empty", "not_empty":
		return OpIsNotEmpty
	default:
		return op
	}
}

// NormalizeCombinator upper-cases the combinator and defaults an empty one to AND.
func NormalizeCombinator(c Combinator) Combinator {
	switch strings.ToUpper(strings.TrimSpace(string(c))) {
	case "", "AND", "ALL":
		return CombinatorAnd
	case "OR", "ANY":
		return CombinatorOr
	default:
		return c
	}
}

// IsValueless reports whether the operator ignores the condition value.
func IsValueless(op Operator) bool {
	op = NormalizeOperator(op)
	return op == OpIsEmpty || op == OpIsNotEmpty
}
