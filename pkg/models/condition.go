package models

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// ConditionOperator names a branch condition test.
type ConditionOperator string

const (
	OperatorStringEquals   ConditionOperator = "string_equals"
	OperatorStringContains ConditionOperator = "string_contains"
	OperatorNumberCompare  ConditionOperator = "number_compare"
	OperatorRegexMatch     ConditionOperator = "regex_match"
	OperatorExists         ConditionOperator = "exists"
	OperatorNotExists      ConditionOperator = "not_exists"
)

// NumberComparator selects the comparison for number_compare conditions.
type NumberComparator string

const (
	CompareGT  NumberComparator = "gt"
	CompareGTE NumberComparator = "gte"
	CompareLT  NumberComparator = "lt"
	CompareLTE NumberComparator = "lte"
	CompareEQ  NumberComparator = "eq"
)

// Condition tests a value read from the run context against an expected
// value. SourcePath addresses accumulated step outputs, e.g.
// "current.output.priority" or "triage.output.status". Conditions are
// validated at save time so malformed ones never reach execution.
type Condition struct {
	SourcePath    string            `json:"source_path"              validate:"required"`
	Operator      ConditionOperator `json:"operator"                 validate:"required"`
	Value         any               `json:"value,omitempty"`
	Comparator    NumberComparator  `json:"comparator,omitempty"`
	CaseSensitive bool              `json:"case_sensitive,omitempty"`
}

// Validate rejects unknown operators, non-numeric number_compare values and
// uncompilable regex patterns.
func (c *Condition) Validate() error {
	if strings.TrimSpace(c.SourcePath) == "" {
		return fmt.Errorf("condition source path is empty")
	}

	for _, segment := range strings.Split(c.SourcePath, ".") {
		if segment == "" {
			return fmt.Errorf("condition source path %q has an empty segment", c.SourcePath)
		}
	}

	switch c.Operator {
	case OperatorStringEquals, OperatorStringContains:
		return nil
	case OperatorNumberCompare:
		switch c.Comparator {
		case CompareGT, CompareGTE, CompareLT, CompareLTE, CompareEQ:
		default:
			return fmt.Errorf("unknown number comparator %q", c.Comparator)
		}

		if _, err := toNumber(c.Value); err != nil {
			return fmt.Errorf("number_compare value: %w", err)
		}

		return nil
	case OperatorRegexMatch:
		pattern, ok := c.Value.(string)
		if !ok {
			return fmt.Errorf("regex_match value must be a string pattern, got %T", c.Value)
		}

		_, err := regexp.Compile(pattern)

		return err
	case OperatorExists, OperatorNotExists:
		return nil
	default:
		return fmt.Errorf("unknown condition operator %q", c.Operator)
	}
}

// Matches evaluates the condition against the run context. A missing source
// value satisfies only not_exists; every other operator treats absence as a
// non-match rather than an error, so branch evaluation stays total.
func (c *Condition) Matches(rctx *RunContext) (bool, error) {
	value, found := rctx.Lookup(c.SourcePath)

	switch c.Operator {
	case OperatorExists:
		return found && value != nil, nil
	case OperatorNotExists:
		return !found || value == nil, nil
	}

	if !found {
		return false, nil
	}

	switch c.Operator {
	case OperatorStringEquals:
		left, right := toString(value), toString(c.Value)
		if !c.CaseSensitive {
			left, right = strings.ToLower(left), strings.ToLower(right)
		}

		return left == right, nil
	case OperatorStringContains:
		left, right := toString(value), toString(c.Value)
		if !c.CaseSensitive {
			left, right = strings.ToLower(left), strings.ToLower(right)
		}

		return strings.Contains(left, right), nil
	case OperatorNumberCompare:
		left, err := toNumber(value)
		if err != nil {
			return false, nil
		}

		right, err := toNumber(c.Value)
		if err != nil {
			return false, fmt.Errorf("number_compare value: %w", err)
		}

		switch c.Comparator {
		case CompareGT:
			return left > right, nil
		case CompareGTE:
			return left >= right, nil
		case CompareLT:
			return left < right, nil
		case CompareLTE:
			return left <= right, nil
		case CompareEQ:
			return left == right, nil
		default:
			return false, fmt.Errorf("unknown number comparator %q", c.Comparator)
		}
	case OperatorRegexMatch:
		pattern, ok := c.Value.(string)
		if !ok {
			return false, fmt.Errorf("regex_match value must be a string pattern, got %T", c.Value)
		}

		matched, err := regexp.MatchString(pattern, toString(value))
		if err != nil {
			return false, err
		}

		return matched, nil
	default:
		return false, fmt.Errorf("unknown condition operator %q", c.Operator)
	}
}

func toString(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	default:
		return fmt.Sprintf("%v", v)
	}
}

func toNumber(value any) (float64, error) {
	switch v := value.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int32:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, fmt.Errorf("cannot convert string %q to number: %w", v, err)
		}

		return parsed, nil
	default:
		return 0, fmt.Errorf("cannot convert %T to number", value)
	}
}
