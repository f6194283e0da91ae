package automation

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/aurihome/aurihome-core/internal/device"
)

// defaultProperty is read when a condition names no attribute.
const defaultProperty = "power"

// evaluateCondition applies a single condition against a device's
// current state. A nil device (unknown ID) evaluates to false.
func evaluateCondition(c Condition, dev *device.Device) bool {
	if dev == nil {
		return false
	}

	property := c.Property
	if property == "" {
		property = defaultProperty
	}
	actual, ok := dev.State[property]
	if !ok {
		return false
	}

	switch c.Operator {
	case OpEquals:
		return stringify(actual) == stringify(c.Value)
	case OpGreater:
		a, aok := toNumber(actual)
		b, bok := toNumber(c.Value)
		return aok && bok && a > b
	case OpLess:
		a, aok := toNumber(actual)
		b, bok := toNumber(c.Value)
		return aok && bok && a < b
	case OpContains:
		return strings.Contains(stringify(actual), stringify(c.Value))
	default:
		return false
	}
}

// combineResults folds per-condition results with the block's combinator.
// A block with zero conditions is unconditionally true.
func combineResults(op Combinator, results []bool) bool {
	if len(results) == 0 {
		return true
	}
	switch op {
	case CombineOr:
		for _, r := range results {
			if r {
				return true
			}
		}
		return false
	default: // AND
		for _, r := range results {
			if !r {
				return false
			}
		}
		return true
	}
}

// stringify renders a value for string comparison. Floats that carry no
// fractional part print without a decimal point so 25.0 equals "25".
func stringify(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	default:
		return fmt.Sprintf("%v", val)
	}
}

// toNumber coerces a value to float64 for numeric comparison.
func toNumber(v any) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case float32:
		return float64(val), true
	case int:
		return float64(val), true
	case int64:
		return float64(val), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		return f, err == nil
	case bool:
		if val {
			return 1, true
		}
		return 0, true
	default:
		return 0, false
	}
}
