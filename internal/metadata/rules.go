package metadata

import (
	"fmt"
	"strings"

	"github.com/google/cel-go/cel"
)

// RuleSet marks targets transactional by CEL expressions.
// Each expression sees a `target` map with `name` and `group` keys and must
// evaluate to bool, e.g. `target.group == "ledger" && target.name != "balance"`.
type RuleSet struct {
	rules []rule
}

type rule struct {
	expr string
	prg  cel.Program
}

// CompileRules compiles expressions. Blank expressions are skipped.
func CompileRules(exprs ...string) (*RuleSet, error) {
	env, err := cel.NewEnv(
		cel.Variable("target", cel.MapType(cel.StringType, cel.StringType)),
	)
	if err != nil {
		return nil, fmt.Errorf("create cel env: %w", err)
	}

	rs := &RuleSet{}
	for _, expr := range exprs {
		expr = strings.TrimSpace(expr)
		if expr == "" {
			continue
		}

		ast, iss := env.Compile(expr)
		if iss != nil && iss.Err() != nil {
			return nil, fmt.Errorf("compile rule %q: %w", expr, iss.Err())
		}
		prg, err := env.Program(ast)
		if err != nil {
			return nil, fmt.Errorf("program rule %q: %w", expr, err)
		}
		rs.rules = append(rs.rules, rule{expr: expr, prg: prg})
	}
	return rs, nil
}

// ParseRules splits a semicolon-separated list and compiles it.
func ParseRules(list string) (*RuleSet, error) {
	return CompileRules(strings.Split(list, ";")...)
}

// Len returns the number of compiled rules.
func (rs *RuleSet) Len() int {
	if rs == nil {
		return 0
	}
	return len(rs.rules)
}

// Matches reports whether any rule selects def.
func (rs *RuleSet) Matches(def TargetDef) (bool, error) {
	if rs == nil {
		return false, nil
	}

	vars := map[string]any{
		"target": map[string]any{
			"name":  def.Name,
			"group": def.Group,
		},
	}
	for _, r := range rs.rules {
		out, _, err := r.prg.Eval(vars)
		if err != nil {
			return false, fmt.Errorf("eval rule %q: %w", r.expr, err)
		}
		matched, ok := out.Value().(bool)
		if !ok {
			return false, fmt.Errorf("rule %q returned %T, want bool", r.expr, out.Value())
		}
		if matched {
			return true, nil
		}
	}
	return false, nil
}

// Resolve returns def with Transactional set when the explicit flag is set
// or a rule matches. Rules never clear an explicit flag.
func (rs *RuleSet) Resolve(def TargetDef) (TargetDef, error) {
	if def.Transactional {
		return def, nil
	}
	matched, err := rs.Matches(def)
	if err != nil {
		return TargetDef{}, err
	}
	def.Transactional = matched
	return def, nil
}
