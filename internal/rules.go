package internal

import (
	"encoding/json"
	"log"

	"github.com/Knetic/govaluate"
)

// SkipRule marks a webhook as not reviewable when its expression evaluates
// true against the flattened payload, e.g.
//
//	when: '[object_attributes.work_in_progress] == true'
//	reason: wip merge request
//
// Flattened keys contain dots, so they are referenced in brackets.
type SkipRule struct {
	When   string `yaml:"when"`
	Reason string `yaml:"reason"`
}

type compiledSkipRule struct {
	reason string
	expr   *govaluate.EvaluableExpression
}

// SkipRuleEngine evaluates configured skip rules against webhook payloads.
// Rules are compiled once at startup.
type SkipRuleEngine struct {
	rules  []compiledSkipRule
	logger *log.Logger
}

func NewSkipRuleEngine(rules []SkipRule, logger *log.Logger) (*SkipRuleEngine, error) {
	if logger == nil {
		logger = NewLogger("rules")
	}
	compiled := make([]compiledSkipRule, 0, len(rules))
	for _, rule := range rules {
		expr, err := govaluate.NewEvaluableExpression(rule.When)
		if err != nil {
			return nil, err
		}
		reason := rule.Reason
		if reason == "" {
			reason = rule.When
		}
		compiled = append(compiled, compiledSkipRule{reason: reason, expr: expr})
	}
	return &SkipRuleEngine{rules: compiled, logger: logger}, nil
}

// ShouldSkip reports whether any rule matches the payload, with the matching
// rule's reason. Evaluation errors (usually missing fields) do not match.
func (e *SkipRuleEngine) ShouldSkip(payload json.RawMessage) (string, bool) {
	if e == nil || len(e.rules) == 0 {
		return "", false
	}
	var decoded map[string]interface{}
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return "", false
	}
	flat := Flatten(decoded)
	for _, rule := range e.rules {
		result, err := rule.expr.Evaluate(flat)
		if err != nil {
			e.logger.Printf("skip rule eval failed: %v", err)
			continue
		}
		if matched, _ := result.(bool); matched {
			return rule.reason, true
		}
	}
	return "", false
}
