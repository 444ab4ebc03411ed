package webhook

import (
	"fmt"
	"strings"

	"github.com/Knetic/govaluate"
)

// Rule is a named boolean expression over event fields. Available
// variables: event_type, event_id, order_id and has_data.
type Rule struct {
	ID         string
	Expression string
}

type compiledRule struct {
	id   string
	expr *govaluate.EvaluableExpression
}

// Filter accepts an event only when every rule evaluates to true.
type Filter struct {
	rules []compiledRule
}

// NewFilter compiles rules. An empty rule set accepts everything.
func NewFilter(rules []Rule) (*Filter, error) {
	f := &Filter{}
	for _, r := range rules {
		if strings.TrimSpace(r.Expression) == "" {
			return nil, fmt.Errorf("filter rule ID '%s' has an empty expression", r.ID)
		}
		expr, err := govaluate.NewEvaluableExpression(r.Expression)
		if err != nil {
			return nil, fmt.Errorf("failed to compile rule ID '%s': %w", r.ID, err)
		}
		f.rules = append(f.rules, compiledRule{id: r.ID, expr: expr})
	}
	return f, nil
}

// ParseRules reads rules from a semicolon separated list of expressions,
// naming them rule1, rule2, ...
func ParseRules(spec string) []Rule {
	var rules []Rule
	for _, part := range strings.Split(spec, ";") {
		if part = strings.TrimSpace(part); part != "" {
			rules = append(rules, Rule{ID: fmt.Sprintf("rule%d", len(rules)+1), Expression: part})
		}
	}
	return rules
}

// Len returns the number of rules.
func (f *Filter) Len() int {
	if f == nil {
		return 0
	}
	return len(f.rules)
}

// Allow evaluates the rules in order and stops at the first one that
// rejects the event.
func (f *Filter) Allow(vars map[string]interface{}) (bool, error) {
	if f == nil {
		return true, nil
	}
	for _, r := range f.rules {
		result, err := r.expr.Evaluate(vars)
		if err != nil {
			return false, fmt.Errorf("failed to evaluate rule ID '%s': %w", r.id, err)
		}
		ok, isBool := result.(bool)
		if !isBool {
			return false, fmt.Errorf("rule ID '%s' did not evaluate to a boolean (got %T)", r.id, result)
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}
