package jack

import "fmt"

// ----------------------------------------------------------------------------
// Jack Type Checker

// The TypeChecker performs a semantic analysis pass over a 'jack.Program' before lowering:
// it resolves every variable reference against the declaring scope and validates that every
// subroutine call targets a subroutine that is actually declared somewhere in the program
// (or injected via the standard library ABI, see 'cmd/jack_compiler').
//
// It deliberately does not attempt full static type inference (Jack's type system is weak
// enough, and the VM backend forgiving enough about ints/chars/booleans, that the Hack
// toolchain itself never required one): the invariant worth catching before codegen is an
// undeclared name, not a type mismatch the VM would silently coerce anyway.
type TypeChecker struct {
	program Program
	scopes  ScopeTable // Keeps track of the scopes and declared variables inside each one
}

func NewTypeChecker(program Program) TypeChecker {
	return TypeChecker{program: program, scopes: ScopeTable{}}
}

func (tc *TypeChecker) Check() (bool, error) {
	if tc.program == nil {
		return false, fmt.Errorf("the given 'program' is empty or nil")
	}

	for name, class := range tc.program {
		if _, err := tc.HandleClass(class); err != nil {
			return false, fmt.Errorf("error handling class '%s': %w", name, err)
		}
	}

	return true, nil
}

// Specialized function to type-check a 'jack.Class' and nested fields.
func (tc *TypeChecker) HandleClass(class Class) (bool, error) {
	tc.scopes.PushClassScope(class.Name) // Keep track of the current scope being processed
	defer tc.scopes.PopClassScope()      // Reset the function name after processing

	for _, field := range class.Fields.Entries() {
		tc.scopes.RegisterVariable(field)
	}

	for _, subroutine := range class.Subroutines.Entries() {
		if _, err := tc.HandleSubroutine(subroutine); err != nil {
			return false, fmt.Errorf("error handling subroutine '%s' in class '%s': %w", subroutine.Name, class.Name, err)
		}
	}

	return true, nil
}

// Specialized function to type-check a 'jack.Subroutine' and nested fields.
func (tc *TypeChecker) HandleSubroutine(subroutine Subroutine) (bool, error) {
	tc.scopes.PushSubRoutineScope(subroutine.Name) // Keep track of the current subroutine function being processed
	defer tc.scopes.PopSubroutineScope()           // Reset the function name after processing

	// We add to the current scope also all of the arguments of the subroutine
	for _, arg := range subroutine.Arguments {
		// Like this we're actually supporting shadowing of variables, so if a variable
		// with the same name is already present in the current scope, we just temporarily
		// override it with the most update one instead of returning an error (like Go does
		tc.scopes.RegisterVariable(arg)
	}

	for _, stmt := range subroutine.Statements {
		if _, err := tc.HandleStatement(stmt); err != nil {
			return false, fmt.Errorf("error handling nested statement %T: %w", stmt, err)
		}
	}

	return true, nil
}

// Generalized function to type-check multiple statements types.
func (tc *TypeChecker) HandleStatement(stmt Statement) (bool, error) {
	switch s := stmt.(type) {
	case VarStmt:
		for _, v := range s.Vars {
			tc.scopes.RegisterVariable(v)
		}
		return true, nil

	case LetStmt:
		switch lhs := s.Lhs.(type) {
		case VarExpr:
			if _, _, err := tc.scopes.ResolveVariable(lhs.Var); err != nil {
				return false, err
			}
		case ArrayExpr:
			if _, _, err := tc.scopes.ResolveVariable(lhs.Var); err != nil {
				return false, err
			}
			if _, err := tc.HandleExpression(lhs.Index); err != nil {
				return false, err
			}
		default:
			return false, fmt.Errorf("'let' target must be a variable or array element, got %T", s.Lhs)
		}
		if _, err := tc.HandleExpression(s.Rhs); err != nil {
			return false, err
		}
		return true, nil

	case IfStmt:
		if _, err := tc.HandleExpression(s.Condition); err != nil {
			return false, err
		}
		for _, nested := range s.ThenBlock {
			if _, err := tc.HandleStatement(nested); err != nil {
				return false, err
			}
		}
		for _, nested := range s.ElseBlock {
			if _, err := tc.HandleStatement(nested); err != nil {
				return false, err
			}
		}
		return true, nil

	case WhileStmt:
		if _, err := tc.HandleExpression(s.Condition); err != nil {
			return false, err
		}
		for _, nested := range s.Block {
			if _, err := tc.HandleStatement(nested); err != nil {
				return false, err
			}
		}
		return true, nil

	case DoStmt:
		if _, err := tc.HandleExpression(s.FuncCall); err != nil {
			return false, err
		}
		return true, nil

	case ReturnStmt:
		if s.Expr == nil {
			return true, nil
		}
		if _, err := tc.HandleExpression(s.Expr); err != nil {
			return false, err
		}
		return true, nil

	default:
		return false, fmt.Errorf("unrecognized statement type: %T", stmt)
	}
}

// Generalized function to type-check multiple expression types.
func (tc *TypeChecker) HandleExpression(expr Expression) (bool, error) {
	switch e := expr.(type) {
	case VarExpr:
		if e.Var == "this" {
			return true, nil
		}
		_, _, err := tc.scopes.ResolveVariable(e.Var)
		return err == nil, err

	case LiteralExpr:
		return true, nil

	case ArrayExpr:
		if _, _, err := tc.scopes.ResolveVariable(e.Var); err != nil {
			return false, err
		}
		return tc.HandleExpression(e.Index)

	case UnaryExpr:
		return tc.HandleExpression(e.Rhs)

	case BinaryExpr:
		if _, err := tc.HandleExpression(e.Lhs); err != nil {
			return false, err
		}
		return tc.HandleExpression(e.Rhs)

	case FuncCallExpr:
		for _, arg := range e.Arguments {
			if _, err := tc.HandleExpression(arg); err != nil {
				return false, err
			}
		}
		return tc.resolveSubroutine(e)

	default:
		return false, fmt.Errorf("unrecognized expression type: %T", expr)
	}
}

// resolveSubroutine checks that a call targets a subroutine declared somewhere in the
// program: either the enclosing class (local/unqualified call), a variable's own class
// (method call through an instance), or another top-level class (qualified function call).
// Classes entirely absent from 'tc.program' (the standard library, when the caller opted out
// of '--stdlib') are assumed correct: we have no ABI to check them against here.
func (tc *TypeChecker) resolveSubroutine(call FuncCallExpr) (bool, error) {
	if !call.IsExtCall {
		class, ok := tc.program[tc.scopes.CurrentClass()]
		if !ok {
			return true, nil
		}
		if _, found := class.Subroutines.Get(call.FuncName); !found {
			return false, fmt.Errorf("undeclared subroutine '%s' in class '%s'", call.FuncName, class.Name)
		}
		return true, nil
	}

	// Qualified call: 'call.Var' is either a known variable (method call through an instance)
	// or a class name (function/constructor call).
	if _, variable, err := tc.scopes.ResolveVariable(call.Var); err == nil {
		class, ok := tc.program[variable.DataType.Subtype]
		if !ok {
			return true, nil
		}
		if _, found := class.Subroutines.Get(call.FuncName); !found {
			return false, fmt.Errorf("undeclared method '%s' on class '%s'", call.FuncName, class.Name)
		}
		return true, nil
	}

	class, ok := tc.program[call.Var]
	if !ok {
		return true, nil
	}
	if _, found := class.Subroutines.Get(call.FuncName); !found {
		return false, fmt.Errorf("undeclared subroutine '%s' in class '%s'", call.FuncName, class.Name)
	}
	return true, nil
}
