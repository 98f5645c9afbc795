package engine

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/TimurManjosov/loanrules/internal/rules"
	"github.com/shopspring/decimal"
)

// OperatorHandler evaluates one condition operator. inputValue is nil when the
// field is absent from the input bag.
type OperatorHandler interface {
	Check(inputValue, ruleValue any) bool
}

var operatorHandlers = map[rules.Operator]OperatorHandler{
	rules.OpEquals:         equalsHandler{},
	rules.OpNotEquals:      notEqualsHandler{},
	rules.OpGreaterThan:    numericCompareHandler{cmp: func(c int) bool { return c > 0 }},
	rules.OpGreaterOrEqual: numericCompareHandler{cmp: func(c int) bool { return c >= 0 }},
	rules.OpLessThan:       numericCompareHandler{cmp: func(c int) bool { return c < 0 }},
	rules.OpLessOrEqual:    numericCompareHandler{cmp: func(c int) bool { return c <= 0 }},
	rules.OpContains:       containsHandler{},
	rules.OpIsEmpty:        isEmptyHandler{},
	rules.OpIsNotEmpty:     isNotEmptyHandler{},
}

func getOperatorHandler(op rules.Operator) (OperatorHandler, bool) {
	h, ok := operatorHandlers[rules.NormalizeOperator(op)]
	return h, ok
}

// EvaluateCondition checks one condition against the input bag. Unknown
// operators and values that cannot be compared yield false.
func EvaluateCondition(c rules.Condition, inputs rules.Inputs) bool {
	handler, ok := getOperatorHandler(c.Operator)
	if !ok {
		return false
	}
	return handler.Check(inputs[c.Field], c.Value)
}

type equalsHandler struct{}

func (equalsHandler) Check(inputValue, ruleValue any) bool {
	input, ok := toLooseString(inputValue)
	if !ok {
		return false
	}
	rule, ok := toLooseString(ruleValue)
	return ok && input == rule
}

type notEqualsHandler struct{}

// An absent side differs from any scalar. A present value that is not a
// scalar cannot be compared and never matches.
func (notEqualsHandler) Check(inputValue, ruleValue any) bool {
	if inputValue == nil && ruleValue == nil {
		return false
	}
	if inputValue != nil && !rules.IsScalar(inputValue) {
		return false
	}
	if ruleValue != nil && !rules.IsScalar(ruleValue) {
		return false
	}
	return !equalsHandler{}.Check(inputValue, ruleValue)
}

type numericCompareHandler struct {
	cmp func(c int) bool
}

func (h numericCompareHandler) Check(inputValue, ruleValue any) bool {
	input, ok := toDecimal(inputValue)
	if !ok {
		return false
	}
	rule, ok := toDecimal(ruleValue)
	if !ok {
		return false
	}
	return h.cmp(input.Cmp(rule))
}

type containsHandler struct{}

func (containsHandler) Check(inputValue, ruleValue any) bool {
	input, ok := toStringLike(inputValue)
	if !ok {
		return false
	}
	rule, ok := toLooseString(ruleValue)
	if !ok {
		return false
	}
	return strings.Contains(strings.ToLower(input), strings.ToLower(rule))
}

type isEmptyHandler struct{}

func (isEmptyHandler) Check(inputValue, _ any) bool {
	return isEmpty(inputValue)
}

type isNotEmptyHandler struct{}

func (isNotEmptyHandler) Check(inputValue, _ any) bool {
	return !isEmpty(inputValue)
}

func isEmpty(v any) bool {
	if v == nil {
		return true
	}
	s, ok := v.(string)
	return ok && s == ""
}

// toLooseString renders a scalar the way a form field would display it: the
// numbers 680 and 680.0 both become "680". nil and non-scalars are rejected.
func toLooseString(v any) (string, bool) {
	switch val := v.(type) {
	case string:
		return val, true
	case bool:
		return strconv.FormatBool(val), true
	case json.Number:
		if d, err := decimal.NewFromString(val.String()); err == nil {
			return d.String(), true
		}
		return val.String(), true
	case float64:
		if math.IsNaN(val) || math.IsInf(val, 0) {
			return strconv.FormatFloat(val, 'f', -1, 64), true
		}
		return decimal.NewFromFloat(val).String(), true
	case float32:
		return toLooseString(float64(val))
	case int:
		return strconv.Itoa(val), true
	case int8:
		return strconv.FormatInt(int64(val), 10), true
	case int16:
		return strconv.FormatInt(int64(val), 10), true
	case int32:
		return strconv.FormatInt(int64(val), 10), true
	case int64:
		return strconv.FormatInt(val, 10), true
	case uint:
		return strconv.FormatUint(uint64(val), 10), true
	case uint8:
		return strconv.FormatUint(uint64(val), 10), true
	case uint16:
		return strconv.FormatUint(uint64(val), 10), true
	case uint32:
		return strconv.FormatUint(uint64(val), 10), true
	case uint64:
		return strconv.FormatUint(val, 10), true
	default:
		return "", false
	}
}

func toStringLike(v any) (string, bool) {
	switch val := v.(type) {
	case string:
		return val, true
	case json.Number:
		return val.String(), true
	default:
		return "", false
	}
}

// toDecimal coerces numbers and numeric strings. Empty strings, booleans,
// NaN and infinities are not numbers here.
func toDecimal(v any) (decimal.Decimal, bool) {
	switch n := v.(type) {
	case int:
		return decimal.NewFromInt(int64(n)), true
	case int8:
		return decimal.NewFromInt(int64(n)), true
	case int16:
		return decimal.NewFromInt(int64(n)), true
	case int32:
		return decimal.NewFromInt32(n), true
	case int64:
		return decimal.NewFromInt(n), true
	case uint8:
		return decimal.NewFromInt(int64(n)), true
	case uint16:
		return decimal.NewFromInt(int64(n)), true
	case uint32:
		return decimal.NewFromInt(int64(n)), true
	case uint:
		return parseDecimal(strconv.FormatUint(uint64(n), 10))
	case uint64:
		return parseDecimal(strconv.FormatUint(n, 10))
	case float32:
		return fromFloat(float64(n))
	case float64:
		return fromFloat(n)
	case json.Number:
		return parseDecimal(n.String())
	case string:
		return parseDecimal(n)
	default:
		return decimal.Decimal{}, false
	}
}

func fromFloat(f float64) (decimal.Decimal, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return decimal.Decimal{}, false
	}
	return decimal.NewFromFloat(f), true
}

func parseDecimal(s string) (decimal.Decimal, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Decimal{}, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, false
	}
	return d, true
}
