package session

import (
	"strings"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
)

// ClaimsLibrary creates a CEL library with helpers for session claims.
//
// Provides:
//   - hasRole(claims, roleName) - checks if claims.roles contains roleName
//   - hasScope(claims, scope) - checks the space-separated claims.scope
//   - safeToString(val) - converts value to string safely (returns empty string if nil)
func ClaimsLibrary() cel.EnvOption {
	return cel.Lib(&claimsLib{})
}

type claimsLib struct{}

func (lib *claimsLib) CompileOptions() []cel.EnvOption {
	return []cel.EnvOption{
		cel.Function("hasRole",
			cel.Overload("hasRole_dyn_string",
				[]*cel.Type{cel.DynType, cel.StringType},
				cel.BoolType,
				cel.BinaryBinding(lib.hasRole),
			),
		),
		cel.Function("hasScope",
			cel.Overload("hasScope_dyn_string",
				[]*cel.Type{cel.DynType, cel.StringType},
				cel.BoolType,
				cel.BinaryBinding(lib.hasScope),
			),
		),
		cel.Function("safeToString",
			cel.Overload("safeToString_any",
				[]*cel.Type{cel.DynType},
				cel.StringType,
				cel.UnaryBinding(lib.safeToString),
			),
		),
	}
}

func (lib *claimsLib) ProgramOptions() []cel.ProgramOption {
	return []cel.ProgramOption{}
}

func (lib *claimsLib) hasRole(claimsVal, roleVal ref.Val) ref.Val {
	role, ok := roleVal.Value().(string)
	if !ok {
		return types.Bool(false)
	}
	claims, ok := claimsVal.Value().(map[string]any)
	if !ok {
		return types.Bool(false)
	}

	switch roles := claims["roles"].(type) {
	case []any:
		for _, r := range roles {
			if s, ok := r.(string); ok && s == role {
				return types.Bool(true)
			}
		}
	case []string:
		for _, s := range roles {
			if s == role {
				return types.Bool(true)
			}
		}
	}
	return types.Bool(false)
}

func (lib *claimsLib) hasScope(claimsVal, scopeVal ref.Val) ref.Val {
	want, ok := scopeVal.Value().(string)
	if !ok {
		return types.Bool(false)
	}
	claims, ok := claimsVal.Value().(map[string]any)
	if !ok {
		return types.Bool(false)
	}
	scope, ok := claims["scope"].(string)
	if !ok {
		return types.Bool(false)
	}
	for _, s := range strings.Fields(scope) {
		if s == want {
			return types.Bool(true)
		}
	}
	return types.Bool(false)
}

func (lib *claimsLib) safeToString(val ref.Val) ref.Val {
	if val.Type() == types.NullType {
		return types.String("")
	}
	if val.Value() == nil {
		return types.String("")
	}
	result := types.DefaultTypeAdapter.NativeToValue(val.Value()).ConvertToType(types.StringType)
	if types.IsError(result) {
		return types.String("")
	}
	return result
}
