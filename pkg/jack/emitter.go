package jack

import (
	"fmt"
	"strconv"
	"strings"

	"its-hmny.dev/nand2tetris/pkg/vm"
)

// ----------------------------------------------------------------------------
// Jack Emitter

// The Emitter takes a single 'jack.Class' (one compiled '.jack' file) and produces
// its 'vm.Module' counterpart. Each class is self-contained — a subroutine call
// either targets the current object/class or names its target class explicitly, so
// compiling a class never requires resolving identifiers against any other class,
// including the standard library. This lets every class in a program be compiled
// independently (see spec.md §5's "may freely parallelize across files").
//
// Rather than walking a fully-materialized 'jack.Program', the Emitter is handed one
// class at a time: the Parser first builds that class's complete AST (every subroutine
// included), and emission starts only once the whole class has been parsed.
type Emitter struct {
	class   Class          // The class currently being compiled, used to resolve 'this' field counts
	scopes  ScopeTable     // Keeps track of the scopes and declared variables inside each one
	nLabel  uint           // Counter to keep 'vm.LabelDecl(s)' unique within the class
	subType SubroutineType // Type of the subroutine currently being processed, used by 'HandleReturnStmt'
}

// Initializes and returns to the caller a brand new 'Emitter' struct.
func NewEmitter() Emitter {
	return Emitter{}
}

// Triggers the emission process for an entire class. Iterates field by field and
// subroutine by subroutine, recursively calling the necessary helper function
// based on the construct type (much like a recursive descent parser but for
// codegen), so the class body is visited in the same order it was declared.
func (e *Emitter) Emit(class Class) (vm.Module, error) {
	ops, err := e.HandleClass(class)
	if err != nil {
		return nil, fmt.Errorf("error handling class '%s': %w", class.Name, err)
	}
	return vm.Module(ops), nil
}

// Specialized function to convert a 'jack.Class' node to a list of 'vm.Operation'.
func (e *Emitter) HandleClass(class Class) ([]vm.Operation, error) {
	e.class = class
	e.scopes.PushClassScope(class.Name) // Keep track of the current scope being processed
	defer e.scopes.PopClassScope()      // Reset the function name after processing

	operations := []vm.Operation{}

	for _, field := range class.Fields.Entries() {
		ops, err := e.HandleVarStmt(VarStmt{Vars: []Variable{field}})
		if err != nil {
			return nil, fmt.Errorf("error handling field '%s' in class '%s': %w", field.Name, class.Name, err)
		}
		operations = append(operations, ops...)
	}

	for _, subroutine := range class.Subroutines.Entries() {
		ops, err := e.HandleSubroutine(subroutine)
		if err != nil {
			return nil, fmt.Errorf("error handling subroutine '%s' in class '%s': %w", subroutine.Name, class.Name, err)
		}
		operations = append(operations, ops...)
	}

	return operations, nil
}

// Specialized function to convert a 'jack.Subroutine' node to a list of 'vm.Operation'.
func (e *Emitter) HandleSubroutine(subroutine Subroutine) ([]vm.Operation, error) {
	e.scopes.PushSubRoutineScope(subroutine.Name) // Keep track of the current subroutine function being processed
	defer e.scopes.PopSubroutineScope()           // Reset the function name after processing

	e.subType = subroutine.Type // 'HandleReturnStmt' needs this to special-case a bare 'return;' in a constructor

	// When dealing with a method subroutine, where the object instance fields are available to be
	// both read and written, we receive the 'this' pointer as the first argument. The subroutine
	// itself (in its prelude) pops that address from the argument memory segment and sets 'this'.
	if subroutine.Type == Method {
		e.scopes.SeedThis(e.class.Name)
	}

	// We add to the current scope also all of the arguments of the subroutine
	for _, arg := range subroutine.Arguments {
		// Like this we're actually supporting shadowing of variables, so if a variable
		// with the same name is already present in the current scope, we just temporarily
		// override it with the most update one instead of returning an error (like Go does
		e.scopes.RegisterVariable(arg)
	}

	fName, fBody := e.scopes.GetScope(), []vm.Operation{}
	for _, stmt := range subroutine.Statements {
		ops, err := e.HandleStatement(stmt)
		if err != nil {
			return nil, fmt.Errorf("error handling nested statement %T': %w", stmt, err)
		}
		fBody = append(fBody, ops...)
	}

	fDecl := vm.FuncDecl{Name: fName, NLocal: uint8(e.scopes.local.entries.Count())}

	// By convention, constructors allocate the memory for the object instance themselves and then
	// set the desired values for each field based on their own code logic (unlike e.g. C++, where
	// memory is allocated externally and the constructor only initializes fields).
	if subroutine.Type == Constructor {
		nFields := uint16(0)
		for _, field := range e.class.Fields.Entries() {
			if field.VarType == Field { // Count only the fields, not the static ones
				nFields++
			}
		}

		preludeOps := []vm.Operation{
			// Each field is exactly one word long, so we can just allocate enough memory as fields declared in the class
			vm.MemoryOp{Operation: vm.Push, Segment: vm.Constant, Offset: nFields},
			vm.FuncCallOp{Name: "Memory.alloc", NArgs: 1},
			// We then set the 'this' pointer to the base pointer of the newly allocated memory
			vm.MemoryOp{Operation: vm.Pop, Segment: vm.Pointer, Offset: 0},
		}

		return append(append([]vm.Operation{fDecl}, preludeOps...), fBody...), nil
	}

	// By convention we receive the object instance pointer as the first argument on the stack. In
	// order to correctly access the object instance fields, we set 'this' to the received address.
	if subroutine.Type == Method {
		preludeOps := []vm.Operation{
			vm.MemoryOp{Operation: vm.Push, Segment: vm.Argument, Offset: 0},
			vm.MemoryOp{Operation: vm.Pop, Segment: vm.Pointer, Offset: 0},
		}

		return append(append([]vm.Operation{fDecl}, preludeOps...), fBody...), nil
	}

	return append([]vm.Operation{fDecl}, fBody...), nil
}

// Generalized function to emit multiple statements types returning a 'vm.Operation' list.
func (e *Emitter) HandleStatement(stmt Statement) ([]vm.Operation, error) {
	switch tStmt := stmt.(type) {
	case DoStmt:
		return e.HandleDoStmt(tStmt)
	case VarStmt:
		return e.HandleVarStmt(tStmt)
	case LetStmt:
		return e.HandleLetStmt(tStmt)
	case IfStmt:
		return e.HandleIfStmt(tStmt)
	case WhileStmt:
		return e.HandleWhileStmt(tStmt)
	case ReturnStmt:
		return e.HandleReturnStmt(tStmt)
	default:
		return nil, fmt.Errorf("unrecognized statement: %T", stmt)
	}
}

// Specialized function to convert a 'jack.DoStmt' to a list of 'vm.Operation'.
func (e *Emitter) HandleDoStmt(statement DoStmt) ([]vm.Operation, error) {
	ops, err := e.HandleFuncCallExpr(statement.FuncCall)
	if err != nil {
		return nil, fmt.Errorf("error handling nested function call expression: %w", err)
	}

	// Do statements do not return a value, so we can just drop whatever has been returned
	return append(ops, vm.MemoryOp{Operation: vm.Pop, Segment: vm.Temp, Offset: 0}), nil
}

// Specialized function to convert a 'jack.VarStmt' to a list of 'vm.Operation'.
func (e *Emitter) HandleVarStmt(statement VarStmt) ([]vm.Operation, error) {
	for _, variable := range statement.Vars {
		// Like this we're actually supporting shadowing of variables, so if a variable
		// with the same name is already present in the current scope, we just temporarily
		// override it with the most update one instead of returning an error (like Go does BTW).
		e.scopes.RegisterVariable(variable)
	}
	return []vm.Operation{}, nil // No operations needed for variable declaration, just update the scope
}

// Specialized function to convert a 'jack.LetStmt' to a list of 'vm.Operation'.
func (e *Emitter) HandleLetStmt(statement LetStmt) ([]vm.Operation, error) {
	// This is just the value to be assigned, nothing difficult about it
	rhsOps, err := e.HandleExpression(statement.Rhs)
	if err != nil {
		return nil, fmt.Errorf("error handling RHS expression: %w", err)
	}

	// If it's a VarExpr then we somewhat reuse the same logic as HandleVarExpr, but we need to write memory instead of reading
	if expr, isVarExpr := statement.Lhs.(VarExpr); isVarExpr {
		offset, variable, err := e.scopes.ResolveVariable(expr.Var)
		if err != nil {
			return nil, fmt.Errorf("error resolving variable '%s': %w", expr.Var, err)
		}

		switch variable.VarType {
		case Local:
			return append(rhsOps, vm.MemoryOp{Operation: vm.Pop, Segment: vm.Local, Offset: offset}), nil
		case Parameter:
			return append(rhsOps, vm.MemoryOp{Operation: vm.Pop, Segment: vm.Argument, Offset: offset}), nil
		case Field:
			return append(rhsOps, vm.MemoryOp{Operation: vm.Pop, Segment: vm.This, Offset: offset}), nil
		case Static:
			return append(rhsOps, vm.MemoryOp{Operation: vm.Pop, Segment: vm.Static, Offset: offset}), nil
		default:
			return nil, fmt.Errorf("variable type '%s' is not supported yet", variable.VarType)
		}
	}

	// For ArrayExpr instead we reuse the pointer + offset logic from HandleArrayExpr but after that we write
	// a bit of glue code to save the RHS on temporary memory before loading the new address and writing it
	if expr, isArrayExpr := statement.Lhs.(ArrayExpr); isArrayExpr {
		baseOps, err := e.HandleVarExpr(VarExpr{Var: expr.Var})
		if err != nil {
			return nil, fmt.Errorf("error handling base variable expression: %w", err)
		}

		// Handle the index expression to get the offset of the array element
		indexOps, err := e.HandleExpression(expr.Index)
		if err != nil {
			return nil, fmt.Errorf("error handling index expression: %w", err)
		}

		// Calculates the specific element of array memory location that will be accessed later on
		refOps := append(append(baseOps, indexOps...), vm.ArithmeticOp{Operation: vm.Add})

		// The temp dance is required because evaluating 'e' could itself touch 'pointer 1'.
		writeOps := []vm.Operation{
			vm.MemoryOp{Operation: vm.Pop, Segment: vm.Temp, Offset: 0},
			vm.MemoryOp{Operation: vm.Pop, Segment: vm.Pointer, Offset: 1},
			vm.MemoryOp{Operation: vm.Push, Segment: vm.Temp, Offset: 0},
			vm.MemoryOp{Operation: vm.Pop, Segment: vm.That, Offset: 0},
		}

		return append(append(refOps, rhsOps...), writeOps...), nil
	}

	return nil, fmt.Errorf("LHS expression must be either a 'VarExpr' or an 'ArrayExpr', got: %T", statement.Lhs)
}

// Specialized function to convert a 'jack.WhileStmt' to a list of 'vm.Operation'.
func (e *Emitter) HandleWhileStmt(statement WhileStmt) ([]vm.Operation, error) {
	condOps, err := e.HandleExpression(statement.Condition)
	if err != nil {
		return nil, fmt.Errorf("error handling while condition expression: %w", err)
	}

	blockOps := []vm.Operation{}
	for _, stmt := range statement.Block {
		ops, err := e.HandleStatement(stmt)
		if err != nil {
			return nil, fmt.Errorf("error handling statement in while block: %w", err)
		}
		blockOps = append(blockOps, ops...)
	}

	start, end := e.nextLabel(), e.nextLabel()

	return append(append(append(append(
		[]vm.Operation{vm.LabelDecl{Name: start}},
		condOps...),
		vm.ArithmeticOp{Operation: vm.Not},
		vm.GotoOp{Label: end, Jump: vm.Conditional}),
		blockOps...),
		vm.GotoOp{Label: start, Jump: vm.Unconditional},
		vm.LabelDecl{Name: end},
	), nil
}

// Specialized function to convert a 'jack.IfStmt' to a list of 'vm.Operation'.
func (e *Emitter) HandleIfStmt(statement IfStmt) ([]vm.Operation, error) {
	condOps, err := e.HandleExpression(statement.Condition)
	if err != nil {
		return nil, fmt.Errorf("error handling if condition expression: %w", err)
	}

	thenOps, elseOps := []vm.Operation{}, []vm.Operation{}

	for _, stmt := range statement.ThenBlock {
		ops, err := e.HandleStatement(stmt)
		if err != nil {
			return nil, fmt.Errorf("error handling statement in 'then' block: %w", err)
		}
		thenOps = append(thenOps, ops...)
	}

	for _, stmt := range statement.ElseBlock {
		ops, err := e.HandleStatement(stmt)
		if err != nil {
			return nil, fmt.Errorf("error handling statement in 'else' block: %w", err)
		}
		elseOps = append(elseOps, ops...)
	}

	// If there's no else block, we can just implement a one-way fork in the control flow
	if len(statement.ElseBlock) == 0 {
		label := e.nextLabel()

		return append(append(append(
			condOps,
			vm.ArithmeticOp{Operation: vm.Not},
			vm.GotoOp{Label: label, Jump: vm.Conditional}),
			thenOps...),
			vm.LabelDecl{Name: label},
		), nil
	}

	// With an else block we need a two-way fork in the control flow
	thenLabel, elseLabel, endLabel := e.nextLabel(), e.nextLabel(), e.nextLabel()

	return append(append(append(append(append(
		condOps,
		vm.GotoOp{Label: thenLabel, Jump: vm.Conditional},
		vm.GotoOp{Label: elseLabel, Jump: vm.Unconditional},
		vm.LabelDecl{Name: thenLabel}),
		thenOps...),
		vm.GotoOp{Label: endLabel, Jump: vm.Unconditional},
		vm.LabelDecl{Name: elseLabel}),
		elseOps...),
		vm.LabelDecl{Name: endLabel},
	), nil
}

// Generates the next class-scoped, monotonically increasing control-flow label.
func (e *Emitter) nextLabel() string {
	label := fmt.Sprintf("%s_L_%d", e.class.Name, e.nLabel)
	e.nLabel++
	return label
}

// Specialized function to convert a 'jack.ReturnStmt' to a list of 'vm.Operation'.
func (e *Emitter) HandleReturnStmt(statement ReturnStmt) ([]vm.Operation, error) {
	if statement.Expr == nil {
		// A bare 'return;' inside a constructor still must hand back the freshly
		// allocated object ('this'), matching Jack convention even when the source
		// omits the explicit 'return this;'. Every other bare return is void.
		if e.subType == Constructor {
			return []vm.Operation{
				vm.MemoryOp{Operation: vm.Push, Segment: vm.Pointer, Offset: 0},
				vm.ReturnOp{},
			}, nil
		}
		return []vm.Operation{
			vm.MemoryOp{Operation: vm.Push, Segment: vm.Constant, Offset: 0},
			vm.ReturnOp{},
		}, nil
	}

	ops, err := e.HandleExpression(statement.Expr)
	if err != nil {
		return nil, fmt.Errorf("error handling return expression: %w", err)
	}

	return append(ops, vm.ReturnOp{}), nil
}

// Generalized function to emit multiple expression types returning a 'vm.Operation' list.
func (e *Emitter) HandleExpression(expr Expression) ([]vm.Operation, error) {
	switch tExpr := expr.(type) {
	case VarExpr:
		return e.HandleVarExpr(tExpr)
	case LiteralExpr:
		return e.HandleLiteralExpr(tExpr)
	case ArrayExpr:
		return e.HandleArrayExpr(tExpr)
	case UnaryExpr:
		return e.HandleUnaryExpr(tExpr)
	case BinaryExpr:
		return e.HandleBinaryExpr(tExpr)
	case FuncCallExpr:
		return e.HandleFuncCallExpr(tExpr)
	default:
		return nil, fmt.Errorf("unrecognized expression: %T", expr)
	}
}

// Specialized function to convert a 'jack.VarExpr' to a list of 'vm.Operation'.
func (e *Emitter) HandleVarExpr(expression VarExpr) ([]vm.Operation, error) {
	if expression.Var == "this" {
		return []vm.Operation{vm.MemoryOp{Operation: vm.Push, Segment: vm.Pointer, Offset: 0}}, nil
	}

	offset, variable, err := e.scopes.ResolveVariable(expression.Var)
	if err != nil {
		return nil, fmt.Errorf("error resolving variable '%s': %w", expression.Var, err)
	}

	switch variable.VarType {
	case Local:
		return []vm.Operation{vm.MemoryOp{Operation: vm.Push, Segment: vm.Local, Offset: offset}}, nil
	case Parameter:
		return []vm.Operation{vm.MemoryOp{Operation: vm.Push, Segment: vm.Argument, Offset: offset}}, nil
	case Field:
		return []vm.Operation{vm.MemoryOp{Operation: vm.Push, Segment: vm.This, Offset: offset}}, nil
	case Static:
		return []vm.Operation{vm.MemoryOp{Operation: vm.Push, Segment: vm.Static, Offset: offset}}, nil
	default:
		return nil, fmt.Errorf("variable type '%s' is not supported yet", variable.VarType)
	}
}

// Specialized function to convert a 'jack.LiteralExpr' to a list of 'vm.Operation'.
func (e *Emitter) HandleLiteralExpr(expression LiteralExpr) ([]vm.Operation, error) {
	switch expression.Type.Main {
	case Int:
		value, err := strconv.ParseUint(expression.Value, 10, 16)
		if err != nil {
			return nil, fmt.Errorf("error parsing integer literal '%s': %w", expression.Value, err)
		}

		return []vm.Operation{vm.MemoryOp{Operation: vm.Push, Segment: vm.Constant, Offset: uint16(value)}}, nil

	case Bool:
		value, err := strconv.ParseBool(expression.Value)
		if err != nil {
			return nil, fmt.Errorf("error parsing boolean literal '%s': %w", expression.Value, err)
		}
		if !value {
			return []vm.Operation{vm.MemoryOp{Operation: vm.Push, Segment: vm.Constant, Offset: 0}}, nil
		}
		// 'true' is represented as all bits set (-1), consistent with what eq/lt/gt
		// push, so bitwise boolean ops stay correct regardless of operand origin.
		return []vm.Operation{
			vm.MemoryOp{Operation: vm.Push, Segment: vm.Constant, Offset: 1},
			vm.ArithmeticOp{Operation: vm.Neg},
		}, nil

	case Char:
		if len(expression.Value) != 1 {
			return nil, fmt.Errorf("error parsing char literal '%s'", expression.Value)
		}

		return []vm.Operation{vm.MemoryOp{Operation: vm.Push, Segment: vm.Constant, Offset: uint16(expression.Value[0])}}, nil

	case Null, Object:
		return []vm.Operation{vm.MemoryOp{Operation: vm.Push, Segment: vm.Constant, Offset: 0}}, nil

	case String:
		ops := []vm.Operation{
			// Reserves/Allocates enough space for the entire string literal via the constructor
			vm.MemoryOp{Operation: vm.Push, Segment: vm.Constant, Offset: uint16(len(expression.Value))},
			vm.FuncCallOp{Name: "String.new", NArgs: 1},
		}

		for _, char := range expression.Value {
			// Set each character in the string literal one by one until completion
			ops = append(ops, vm.MemoryOp{Operation: vm.Push, Segment: vm.Constant, Offset: uint16(char)})
			ops = append(ops, vm.FuncCallOp{Name: "String.appendChar", NArgs: 2})
		}

		return ops, nil

	default:
		return nil, fmt.Errorf("unrecognized literal expression type: %s", expression.Type.Main)
	}
}

// Specialized function to convert a 'jack.ArrayExpr' to a list of 'vm.Operation'.
func (e *Emitter) HandleArrayExpr(expression ArrayExpr) ([]vm.Operation, error) {
	baseOps, err := e.HandleVarExpr(VarExpr{Var: expression.Var})
	if err != nil {
		return nil, fmt.Errorf("error handling base variable expression: %w", err)
	}

	// Handle the index expression to get the offset of the array element
	indexOps, err := e.HandleExpression(expression.Index)
	if err != nil {
		return nil, fmt.Errorf("error handling index expression: %w", err)
	}

	// We need to add the index to the base address of the array
	return append(append(baseOps, indexOps...),
		vm.ArithmeticOp{Operation: vm.Add},
		// Add the pointer + offset and then set the 'That' pointer to the memory location
		vm.MemoryOp{Operation: vm.Pop, Segment: vm.Pointer, Offset: 1},
		vm.MemoryOp{Operation: vm.Push, Segment: vm.That, Offset: 0},
	), nil
}

// Specialized function to convert a 'jack.UnaryExpr' to a list of 'vm.Operation'.
func (e *Emitter) HandleUnaryExpr(expression UnaryExpr) ([]vm.Operation, error) {
	ops, err := e.HandleExpression(expression.Rhs)
	if err != nil {
		return nil, fmt.Errorf("error handling nested expression: %w", err)
	}

	switch expression.Type {
	case Minus:
		return append(ops, vm.ArithmeticOp{Operation: vm.Neg}), nil
	case BoolNot:
		return append(ops, vm.ArithmeticOp{Operation: vm.Not}), nil
	case ShiftLeft:
		return append(ops, vm.ArithmeticOp{Operation: vm.ShiftLeft}), nil
	case ShiftRight:
		return append(ops, vm.ArithmeticOp{Operation: vm.ShiftRight}), nil
	default:
		return nil, fmt.Errorf("unrecognized unary expression type: %s", expression.Type)
	}
}

// Specialized function to convert a 'jack.BinaryExpr' to a list of 'vm.Operation'.
func (e *Emitter) HandleBinaryExpr(expression BinaryExpr) ([]vm.Operation, error) {
	lhsOps, err := e.HandleExpression(expression.Lhs)
	if err != nil {
		return nil, fmt.Errorf("error handling nested LHS expression: %w", err)
	}

	rhsOps, err := e.HandleExpression(expression.Rhs)
	if err != nil {
		return nil, fmt.Errorf("error handling nested RHS expression: %w", err)
	}

	switch expression.Type {
	case Plus:
		return append(append(lhsOps, rhsOps...), vm.ArithmeticOp{Operation: vm.Add}), nil
	case Minus:
		return append(append(lhsOps, rhsOps...), vm.ArithmeticOp{Operation: vm.Sub}), nil
	case Divide:
		return append(append(lhsOps, rhsOps...), vm.FuncCallOp{Name: "Math.divide", NArgs: 2}), nil
	case Multiply:
		return append(append(lhsOps, rhsOps...), vm.FuncCallOp{Name: "Math.multiply", NArgs: 2}), nil
	case BoolOr:
		return append(append(lhsOps, rhsOps...), vm.ArithmeticOp{Operation: vm.Or}), nil
	case BoolAnd:
		return append(append(lhsOps, rhsOps...), vm.ArithmeticOp{Operation: vm.And}), nil
	case Equal:
		return append(append(lhsOps, rhsOps...), vm.ArithmeticOp{Operation: vm.Eq}), nil
	case LessThan:
		return append(append(lhsOps, rhsOps...), vm.ArithmeticOp{Operation: vm.Lt}), nil
	case GreatThan:
		return append(append(lhsOps, rhsOps...), vm.ArithmeticOp{Operation: vm.Gt}), nil
	default:
		return nil, fmt.Errorf("unrecognized binary expression type: %s", expression.Type)
	}
}

// Specialized function to convert a 'jack.FuncCallExpr' to a list of 'vm.Operation'.
//
// Call resolution never needs a whole-program class table (not even for the standard
// library): an unqualified call is always a method call on the current object: a
// qualifier that resolves to a variable in scope is a method call on that variable;
// any other qualifier names a class directly, and constructors/functions are called
// identically at the call site (`call Class.name nArgs`) regardless of which one it is.
func (e *Emitter) HandleFuncCallExpr(expression FuncCallExpr) ([]vm.Operation, error) {
	argsInit, argsLen := []vm.Operation{}, len(expression.Arguments)

	for _, expr := range expression.Arguments {
		ops, err := e.HandleExpression(expr)
		if err != nil {
			return nil, fmt.Errorf("error handling argument expression: %w", err)
		}
		argsInit = append(argsInit, ops...)
	}

	if !expression.IsExtCall {
		className := strings.Split(e.scopes.GetScope(), ".")[0]
		fName := fmt.Sprintf("%s.%s", className, expression.FuncName)
		thisOp := vm.MemoryOp{Operation: vm.Push, Segment: vm.Pointer, Offset: 0}
		return append([]vm.Operation{thisOp}, append(argsInit, vm.FuncCallOp{Name: fName, NArgs: uint8(argsLen + 1)})...), nil
	}

	// A qualifier resolving to a declared variable is a method call on that variable.
	if _, variable, err := e.scopes.ResolveVariable(expression.Var); err == nil {
		if variable.DataType.Main != Object {
			return nil, fmt.Errorf("variable '%s' is not an object", expression.Var)
		}

		thisArg, err := e.HandleVarExpr(VarExpr{Var: expression.Var})
		if err != nil {
			return nil, fmt.Errorf("error handling variable expression for 'this' pointer: %w", err)
		}

		fName := fmt.Sprintf("%s.%s", variable.DataType.Subtype, expression.FuncName)
		return append(append(thisArg, argsInit...), vm.FuncCallOp{Name: fName, NArgs: uint8(argsLen + 1)}), nil
	}

	// Otherwise the qualifier names a class directly: constructor and function calls
	// are call-site identical, so no lookup of the target subroutine's kind is needed.
	fName := fmt.Sprintf("%s.%s", expression.Var, expression.FuncName)
	return append(argsInit, vm.FuncCallOp{Name: fName, NArgs: uint8(argsLen)}), nil
}
