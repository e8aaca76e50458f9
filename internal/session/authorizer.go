package session

import (
	"fmt"

	"github.com/google/cel-go/cel"
)

// Authorizer evaluates a boolean CEL policy against an Identity.
//
// The policy sees a single variable, user, with fields id (string) and
// claims (map). Helper functions from ClaimsLibrary are available, e.g.
//
//	hasRole(user.claims, "admin") || user.id == "1"
type Authorizer struct {
	program cel.Program
}

// NewAuthorizer compiles expression. An empty expression allows everyone.
func NewAuthorizer(expression string) (*Authorizer, error) {
	if expression == "" {
		return &Authorizer{}, nil
	}

	env, err := cel.NewEnv(
		cel.Variable("user", cel.MapType(cel.StringType, cel.DynType)),
		ClaimsLibrary(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	ast, issues := env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("failed to compile authorization policy: %w", issues.Err())
	}
	if !ast.OutputType().IsExactType(cel.BoolType) && !ast.OutputType().IsExactType(cel.DynType) {
		return nil, fmt.Errorf("authorization policy must evaluate to bool, got %s", ast.OutputType())
	}

	prg, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to build authorization program: %w", err)
	}
	return &Authorizer{program: prg}, nil
}

// Authorize returns nil if id may manage settings, ErrForbidden if not.
// Evaluation errors deny.
func (a *Authorizer) Authorize(id *Identity) error {
	if id == nil {
		return ErrUnauthenticated
	}
	if a.program == nil {
		return nil
	}

	claims := id.Claims
	if claims == nil {
		claims = map[string]any{}
	}
	out, _, err := a.program.Eval(map[string]any{
		"user": map[string]any{
			"id":     id.ID,
			"claims": claims,
		},
	})
	if err != nil {
		return fmt.Errorf("%w: policy evaluation failed: %v", ErrForbidden, err)
	}
	if allowed, ok := out.Value().(bool); !ok || !allowed {
		return ErrForbidden
	}
	return nil
}
