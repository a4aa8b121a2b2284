package engine

import (
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"datagate/internal/authz"
)

// RequestPolicyEvaluator checks a grant's request policy against the
// incoming record before a write is accepted. Templates use the same
// grammar as database policies; they are translated to expr-lang syntax
// and the compiled programs cached by expression string.
type RequestPolicyEvaluator struct {
	mu    sync.Mutex
	cache map[string]*vm.Program
}

func NewRequestPolicyEvaluator() *RequestPolicyEvaluator {
	return &RequestPolicyEvaluator{
		cache: make(map[string]*vm.Program),
	}
}

// Evaluate substitutes the request's claims into the template, translates
// the predicate, and evaluates it with the candidate record bound as
// "item". Claim errors surface as authorization failures; translation or
// evaluation errors mean the policy itself is broken.
func (e *RequestPolicyEvaluator) Evaluate(template string, claims authz.ClaimSet, record map[string]any) (bool, error) {
	compiled, err := authz.CompileTemplate(template, claims)
	if err != nil {
		return false, err
	}
	expression := translatePredicate(compiled)

	prog, err := e.program(expression)
	if err != nil {
		return false, fmt.Errorf("compile request policy: %w", err)
	}

	result, err := expr.Run(prog, map[string]any{"item": record})
	if err != nil {
		return false, fmt.Errorf("evaluate request policy: %w", err)
	}

	pass, ok := result.(bool)
	if !ok {
		return false, fmt.Errorf("request policy did not return bool")
	}
	return pass, nil
}

func (e *RequestPolicyEvaluator) program(expression string) (*vm.Program, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	prog, ok := e.cache[expression]
	if !ok {
		var err error
		prog, err = expr.Compile(expression, expr.AsBool(), expr.AllowUndefinedVariables())
		if err != nil {
			return nil, err
		}
		e.cache[expression] = prog
	}
	return prog, nil
}

var policyOps = []struct {
	pattern *regexp.Regexp
	repl    string
}{
	{regexp.MustCompile(`@item\.(\w+)`), "item.$1"},
	{regexp.MustCompile(`\beq\b`), "=="},
	{regexp.MustCompile(`\bne\b`), "!="},
	{regexp.MustCompile(`\bge\b`), ">="},
	{regexp.MustCompile(`\ble\b`), "<="},
	{regexp.MustCompile(`\bgt\b`), ">"},
	{regexp.MustCompile(`\blt\b`), "<"},
	{regexp.MustCompile(`\band\b`), "&&"},
	{regexp.MustCompile(`\bor\b`), "||"},
	{regexp.MustCompile(`\bnot\b`), "!"},
	{regexp.MustCompile(`\bnull\b`), "nil"},
}

var quotedLiteral = regexp.MustCompile(`'[^']*'`)

// translatePredicate maps the policy grammar's operators onto expr-lang
// syntax. Single-quoted string literals are kept verbatim; an operator
// word inside a substituted claim value must not be rewritten.
func translatePredicate(predicate string) string {
	var out strings.Builder
	last := 0
	for _, loc := range quotedLiteral.FindAllStringIndex(predicate, -1) {
		out.WriteString(translateSpan(predicate[last:loc[0]]))
		out.WriteString(predicate[loc[0]:loc[1]])
		last = loc[1]
	}
	out.WriteString(translateSpan(predicate[last:]))
	return out.String()
}

func translateSpan(span string) string {
	for _, op := range policyOps {
		span = op.pattern.ReplaceAllString(span, op.repl)
	}
	return span
}
