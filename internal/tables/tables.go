// Package tables holds condition-guarded lookup tables: assumption rate
// vectors and expense formula buckets.
package tables

import (
	"errors"
	"fmt"
	"strings"
)

// MaxConditions is the number of condition expressions a row may carry.
const MaxConditions = 3

var (
	ErrNoMatch            = errors.New("no matching row")
	ErrUnknownKey         = errors.New("unknown key")
	ErrUnknownExpenseType = errors.New("unknown expense type")
	ErrTooManyConditions  = fmt.Errorf("more than %d conditions", MaxConditions)
)

// ConditionFunc evaluates one condition expression. Blank conditions are
// passed through and are expected to hold.
type ConditionFunc func(src string) (bool, error)

// CompositeKey joins the non-blank parts with "|".
func CompositeKey(parts ...string) string {
	kept := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, "|")
}

// matches reports whether every condition holds, stopping at the first
// that does not.
func matches(conds []string, eval ConditionFunc) (bool, error) {
	for _, c := range conds {
		ok, err := eval(c)
		if err != nil {
			return false, fmt.Errorf("condition %q: %w", c, err)
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

func checkConditions(conds []string) error {
	if len(conds) > MaxConditions {
		return fmt.Errorf("%w: got %d", ErrTooManyConditions, len(conds))
	}
	return nil
}
