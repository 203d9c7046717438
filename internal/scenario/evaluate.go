package scenario

import "fmt"

var comparators = map[string]func(a, b float64) bool{
	"<":  func(a, b float64) bool { return a < b },
	"<=": func(a, b float64) bool { return a <= b },
	">":  func(a, b float64) bool { return a > b },
	">=": func(a, b float64) bool { return a >= b },
	"==": func(a, b float64) bool { return a == b },
	"!=": func(a, b float64) bool { return a != b },
}

// Issue is one failed check.
type Issue struct {
	Check   Check    `json:"check"`
	Actual  *float64 `json:"actual,omitempty"`
	Message string   `json:"message"`
}

func (i Issue) String() string { return i.Message }

// Evaluate runs every check of s against m. A metric with no data fails its check.
func Evaluate(s Scenario, m Measurements) []Issue {
	var issues []Issue
	for _, c := range s.Checks {
		cmp, ok := comparators[c.Op]
		if !ok {
			issues = append(issues, Issue{Check: c, Message: fmt.Sprintf("%s: unknown op %q", c.Metric, c.Op)})
			continue
		}
		v, ok := m[c.Metric]
		if !ok {
			issues = append(issues, Issue{Check: c, Message: fmt.Sprintf("%s: no data (expected %s %g)", c.Metric, c.Op, c.Value)})
			continue
		}
		if !cmp(v, c.Value) {
			actual := v
			issues = append(issues, Issue{
				Check:   c,
				Actual:  &actual,
				Message: fmt.Sprintf("%s is %.4g (expected %s %g)", c.Metric, v, c.Op, c.Value),
			})
		}
	}
	return issues
}
