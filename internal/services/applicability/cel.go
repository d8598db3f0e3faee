// Package applicability evaluates expression-based applicability rules with CEL.
package applicability

import (
	"fmt"

	"github.com/google/cel-go/cel"
)

// TypeNameVariable is the variable holding the prim's declared type inside expressions
const TypeNameVariable = "typeName"

// CELEngine compiles and evaluates applicability expressions
type CELEngine struct {
	env *cel.Env
}

// Predicate is a compiled applicability expression
type Predicate struct {
	expression string
	program    cel.Program
}

// NewCELEngine creates a new CEL engine exposing `typeName` as a string
func NewCELEngine() (*CELEngine, error) {
	env, err := cel.NewEnv(
		cel.Variable(TypeNameVariable, cel.StringType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	return &CELEngine{
		env: env,
	}, nil
}

// Compile parses, type-checks and plans an expression.
// The expression must produce a boolean.
func (e *CELEngine) Compile(expression string) (*Predicate, error) {
	ast, issues := e.env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("failed to compile CEL expression: %w", issues.Err())
	}

	if ast.OutputType() != cel.BoolType {
		return nil, fmt.Errorf("CEL expression must return boolean, got: %s", ast.OutputType())
	}

	program, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL program: %w", err)
	}

	return &Predicate{
		expression: expression,
		program:    program,
	}, nil
}

// ValidateExpression validates an expression without keeping the program
func (e *CELEngine) ValidateExpression(expression string) error {
	if _, err := e.Compile(expression); err != nil {
		return fmt.Errorf("invalid CEL expression: %w", err)
	}
	return nil
}

// Evaluate compiles and evaluates an expression in one step
func (e *CELEngine) Evaluate(expression string, typeName string) (bool, error) {
	predicate, err := e.Compile(expression)
	if err != nil {
		return false, err
	}
	return predicate.Evaluate(typeName)
}

// Expression returns the source text of the predicate
func (p *Predicate) Expression() string {
	return p.expression
}

// Evaluate runs the predicate against a declared prim type
func (p *Predicate) Evaluate(typeName string) (bool, error) {
	result, _, err := p.program.Eval(map[string]interface{}{
		TypeNameVariable: typeName,
	})
	if err != nil {
		return false, fmt.Errorf("failed to evaluate CEL expression: %w", err)
	}

	boolResult, ok := result.Value().(bool)
	if !ok {
		return false, fmt.Errorf("CEL expression did not evaluate to boolean, got: %T", result.Value())
	}

	return boolResult, nil
}
