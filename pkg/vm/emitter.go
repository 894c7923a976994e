package vm

import (
	"fmt"

	"its-hmny.dev/nand2tetris/pkg/asm"
)

// ----------------------------------------------------------------------------
// Vm Emitter

// The Emitter takes an already-parsed 'vm.Module' and produces its 'asm.Program'
// counterpart, implementing the full nand2tetris calling convention: segment
// addressing, signed comparison, branching and function call/return.
//
// Unlike the simpler translation phases above, code generation here is stateful:
// static segment addressing is qualified by the current file name, branch/compare
// labels must stay unique across the whole file, and every label declared with
// "label foo" is scoped to the enclosing function. All of this state lives on the
// Emitter struct rather than as module-level counters, so that translating
// multiple files in sequence never leaks state between them by accident.
type Emitter struct {
	file         string // Name of the '.vm' file currently being translated (sans extension)
	function     string // Name of the function currently being translated, "" outside one
	callIndex    uint   // Running counter for 'call' return-address labels, unique per file
	compareIndex uint   // Running counter for 'eq'/'gt'/'lt' decision-tree labels, unique per file
}

// Initializes and returns to the caller a brand new 'Emitter' struct.
func NewEmitter() Emitter {
	return Emitter{}
}

// Translates a whole 'vm.Module' (one '.vm' file) into its 'asm.Program' counterpart.
// Resets the per-function state (but not the call/compare counters, which must stay
// unique across the entire file) every time a new module starts.
func (e *Emitter) Emit(filename string, module Module) (asm.Program, error) {
	e.file, e.function = filename, ""
	program := asm.Program{}

	for _, operation := range module {
		var generated []asm.Instruction
		var err error

		switch op := operation.(type) {
		case MemoryOp:
			generated, err = e.emitMemoryOp(op)
		case ArithmeticOp:
			generated, err = e.emitArithmeticOp(op)
		case LabelDecl:
			generated, err = e.emitLabelDecl(op)
		case GotoOp:
			generated, err = e.emitGotoOp(op)
		case FuncDecl:
			generated, err = e.emitFuncDecl(op)
		case FuncCallOp:
			generated, err = e.emitFuncCallOp(op)
		case ReturnOp:
			generated, err = e.emitReturnOp(op)
		default:
			err = fmt.Errorf("unrecognized operation '%T'", operation)
		}

		if err != nil {
			return nil, fmt.Errorf("%s: %w", e.file, err)
		}
		for _, inst := range generated {
			program = append(program, inst)
		}
	}

	return program, nil
}

// Returns the bootstrap sequence (SP := 256; call Sys.init 0) for the caller to prepend.
// Only emitted once, ahead of every translated file, when translating a directory.
func (e *Emitter) Bootstrap() (asm.Program, error) {
	e.file, e.function = "Bootstrap", ""

	init := []asm.Instruction{
		asm.AInstruction{Location: "256"},
		asm.CInstruction{Dest: "D", Comp: "A"},
		asm.AInstruction{Location: "SP"},
		asm.CInstruction{Dest: "M", Comp: "D"},
	}

	call, err := e.emitFuncCallOp(FuncCallOp{Name: "Sys.init", NArgs: 0})
	if err != nil {
		return nil, fmt.Errorf("bootstrap: %w", err)
	}

	return append(init, call...), nil
}

// ----------------------------------------------------------------------------
// Stack primitives

// Pushes the value currently held in the 'D' register onto the stack's top.
func pushD() []asm.Instruction {
	return []asm.Instruction{
		asm.AInstruction{Location: "SP"},
		asm.CInstruction{Dest: "A", Comp: "M"},
		asm.CInstruction{Dest: "M", Comp: "D"},
		asm.AInstruction{Location: "SP"},
		asm.CInstruction{Dest: "M", Comp: "M+1"},
	}
}

// Pops the stack's top into the 'D' register, leaving 'A' pointed at the freed slot.
func popD() []asm.Instruction {
	return []asm.Instruction{
		asm.AInstruction{Location: "SP"},
		asm.CInstruction{Dest: "M", Comp: "M-1"},
		asm.CInstruction{Dest: "A", Comp: "M"},
		asm.CInstruction{Dest: "D", Comp: "M"},
	}
}

// ----------------------------------------------------------------------------
// Memory Op

// Every real pointer-backed segment resolves to the Hack built-in register that
// holds its base address; 'temp' resolves to the literal start address instead
// (it has no pointer indirection, the segment itself starts at RAM[5]).
var segmentBase = map[SegmentType]string{
	Local: "LCL", Argument: "ARG", This: "THIS", That: "THAT", Temp: "5",
}

func (e *Emitter) emitMemoryOp(op MemoryOp) ([]asm.Instruction, error) {
	if op.Segment == Pointer && op.Offset > 1 {
		return nil, fmt.Errorf("invalid 'pointer' offset, got %d", op.Offset)
	}
	if op.Segment == Temp && op.Offset > 7 {
		return nil, fmt.Errorf("invalid 'temp' offset, got %d", op.Offset)
	}

	switch op.Segment {
	case Local, Argument, This, That, Temp:
		if op.Operation == Push {
			return e.pushIndirect(segmentBase[op.Segment], op.Segment == Temp, op.Offset), nil
		}
		return e.popIndirect(segmentBase[op.Segment], op.Segment == Temp, op.Offset), nil

	case Static:
		label := fmt.Sprintf("%s.%d", e.file, op.Offset)
		if op.Operation == Push {
			return append([]asm.Instruction{
				asm.AInstruction{Location: label},
				asm.CInstruction{Dest: "D", Comp: "M"},
			}, pushD()...), nil
		}
		return append(popD(), asm.AInstruction{Location: label}, asm.CInstruction{Dest: "M", Comp: "D"}), nil

	case Constant:
		if op.Operation == Pop {
			return nil, fmt.Errorf("the 'constant' segment is read-only, cannot 'pop' into it")
		}
		return append([]asm.Instruction{
			asm.AInstruction{Location: fmt.Sprint(op.Offset)},
			asm.CInstruction{Dest: "D", Comp: "A"},
		}, pushD()...), nil

	case Pointer:
		// THIS/THAT occupy consecutive RAM cells (3 and 4), so the pointer
		// segment is addressed exactly like local/argument/this/that but with
		// THIS's register address used as the literal base instead of its value.
		return e.pushPopLiteralBase("THIS", op.Operation, op.Offset), nil
	}

	return nil, fmt.Errorf("unrecognized segment '%s'", op.Segment)
}

// Push/pop through a segment pointer that must be dereferenced ('D=M') to find the
// segment's base address, except 'temp' whose base is a literal constant ('D=A').
func (e *Emitter) pushIndirect(base string, literal bool, offset uint16) []asm.Instruction {
	comp := "M"
	if literal {
		comp = "A"
	}
	return append([]asm.Instruction{
		asm.AInstruction{Location: base},
		asm.CInstruction{Dest: "D", Comp: comp},
		asm.AInstruction{Location: fmt.Sprint(offset)},
		asm.CInstruction{Dest: "A", Comp: "D+A"},
		asm.CInstruction{Dest: "D", Comp: "M"},
	}, pushD()...)
}

func (e *Emitter) popIndirect(base string, literal bool, offset uint16) []asm.Instruction {
	comp := "M"
	if literal {
		comp = "A"
	}
	instructions := []asm.Instruction{
		asm.AInstruction{Location: base},
		asm.CInstruction{Dest: "D", Comp: comp},
		asm.AInstruction{Location: fmt.Sprint(offset)},
		asm.CInstruction{Dest: "D", Comp: "D+A"},
		asm.AInstruction{Location: "R13"},
		asm.CInstruction{Dest: "M", Comp: "D"},
	}
	instructions = append(instructions, popD()...)
	return append(instructions,
		asm.AInstruction{Location: "R13"},
		asm.CInstruction{Dest: "A", Comp: "M"},
		asm.CInstruction{Dest: "M", Comp: "D"},
	)
}

// Push/pop using a register's own address as a literal base (the 'pointer' segment).
func (e *Emitter) pushPopLiteralBase(base string, operation OperationType, offset uint16) []asm.Instruction {
	if operation == Push {
		return e.pushIndirect(base, true, offset)
	}
	return e.popIndirect(base, true, offset)
}

// ----------------------------------------------------------------------------
// Arithmetic Op

var binaryOperatorTable = map[ArithOpType]string{Add: "D+M", Sub: "M-D", And: "D&M", Or: "D|M"}
var unaryOperatorTable = map[ArithOpType]string{Neg: "-", Not: "!"}
var shiftOperatorTable = map[ArithOpType]string{ShiftLeft: "<<", ShiftRight: ">>"}
var compareJumpTable = map[ArithOpType]string{Eq: "JEQ", Gt: "JGT", Lt: "JLT"}

func (e *Emitter) emitArithmeticOp(op ArithmeticOp) ([]asm.Instruction, error) {
	if operator, found := binaryOperatorTable[op.Operation]; found {
		return []asm.Instruction{
			asm.AInstruction{Location: "SP"},
			asm.CInstruction{Dest: "M", Comp: "M-1"},
			asm.CInstruction{Dest: "A", Comp: "M"},
			asm.CInstruction{Dest: "D", Comp: "M"},
			asm.CInstruction{Dest: "A", Comp: "A-1"},
			asm.CInstruction{Dest: "M", Comp: operator},
		}, nil
	}

	if operator, found := unaryOperatorTable[op.Operation]; found {
		return []asm.Instruction{
			asm.AInstruction{Location: "SP"},
			asm.CInstruction{Dest: "A", Comp: "M-1"},
			asm.CInstruction{Dest: "M", Comp: fmt.Sprintf("%sM", operator)},
		}, nil
	}

	if operator, found := shiftOperatorTable[op.Operation]; found {
		return []asm.Instruction{
			asm.AInstruction{Location: "SP"},
			asm.CInstruction{Dest: "A", Comp: "M-1"},
			asm.CInstruction{Dest: "M", Comp: fmt.Sprintf("M%s", operator)},
		}, nil
	}

	if _, found := compareJumpTable[op.Operation]; found {
		return e.emitCompareOp(op.Operation)
	}

	return nil, fmt.Errorf("unrecognized arithmetic operation '%s'", op.Operation)
}

// Implements eq/gt/lt via a sign-split decision tree: two numbers whose signs
// differ can be compared by sign alone (avoiding two's-complement subtraction
// overflow), numbers that share a sign are compared with a plain subtraction.
func (e *Emitter) emitCompareOp(operation ArithOpType) ([]asm.Instruction, error) {
	e.compareIndex++
	i := e.compareIndex

	neg := fmt.Sprintf("%s.%s$NEG.%d", e.file, operation, i)
	posNeg := fmt.Sprintf("%s.%s$POS_NEG.%d", e.file, operation, i)
	sameSign := fmt.Sprintf("%s.%s$SAME_SIGN.%d", e.file, operation, i)
	checkCmd := fmt.Sprintf("%s.%s$CHECK.%d", e.file, operation, i)
	isTrue := fmt.Sprintf("%s.%s$TRUE.%d", e.file, operation, i)
	done := fmt.Sprintf("%s.%s$DONE.%d", e.file, operation, i)
	jump := compareJumpTable[operation]

	return []asm.Instruction{
		asm.AInstruction{Location: "SP"},
		asm.CInstruction{Dest: "M", Comp: "M-1"},
		asm.CInstruction{Dest: "A", Comp: "M"},
		asm.CInstruction{Dest: "D", Comp: "M"},
		asm.AInstruction{Location: neg},
		asm.CInstruction{Comp: "D", Jump: "JLT"},
		asm.AInstruction{Location: "SP"},
		asm.CInstruction{Dest: "A", Comp: "M-1"},
		asm.CInstruction{Dest: "D", Comp: "M"},
		asm.AInstruction{Location: posNeg},
		asm.CInstruction{Comp: "D", Jump: "JLT"},
		asm.AInstruction{Location: sameSign},
		asm.CInstruction{Comp: "0", Jump: "JMP"},

		asm.LabelDecl{Name: neg},
		asm.AInstruction{Location: "SP"},
		asm.CInstruction{Dest: "A", Comp: "M-1"},
		asm.CInstruction{Dest: "D", Comp: "M"},
		asm.AInstruction{Location: sameSign},
		asm.CInstruction{Comp: "D", Jump: "JLT"},
		asm.CInstruction{Dest: "D", Comp: "1"},
		asm.AInstruction{Location: checkCmd},
		asm.CInstruction{Comp: "0", Jump: "JMP"},

		asm.LabelDecl{Name: posNeg},
		asm.CInstruction{Dest: "D", Comp: "-1"},
		asm.AInstruction{Location: checkCmd},
		asm.CInstruction{Comp: "0", Jump: "JMP"},

		asm.LabelDecl{Name: sameSign},
		asm.AInstruction{Location: "SP"},
		asm.CInstruction{Dest: "A", Comp: "M"},
		asm.CInstruction{Dest: "D", Comp: "M"},
		asm.AInstruction{Location: "SP"},
		asm.CInstruction{Dest: "A", Comp: "M-1"},
		asm.CInstruction{Dest: "D", Comp: "M-D"},

		asm.LabelDecl{Name: checkCmd},
		asm.AInstruction{Location: isTrue},
		asm.CInstruction{Comp: "D", Jump: jump},
		asm.AInstruction{Location: "SP"},
		asm.CInstruction{Dest: "A", Comp: "M-1"},
		asm.CInstruction{Dest: "M", Comp: "0"},
		asm.AInstruction{Location: done},
		asm.CInstruction{Comp: "0", Jump: "JMP"},

		asm.LabelDecl{Name: isTrue},
		asm.AInstruction{Location: "SP"},
		asm.CInstruction{Dest: "A", Comp: "M-1"},
		asm.CInstruction{Dest: "M", Comp: "-1"},

		asm.LabelDecl{Name: done},
	}, nil
}

// ----------------------------------------------------------------------------
// Label Declaration, Goto

// Labels are scoped to the enclosing file and function: "label foo" inside "Xxx.bar"
// of file "Xxx.vm" becomes the symbol "Xxx.Xxx.bar$foo", so the same name can be
// reused in another function without colliding.
func (e *Emitter) scopedLabel(name string) string {
	return fmt.Sprintf("%s.%s$%s", e.file, e.function, name)
}

func (e *Emitter) emitLabelDecl(op LabelDecl) ([]asm.Instruction, error) {
	if op.Name == "" {
		return nil, fmt.Errorf("unable to produce empty label declaration")
	}
	return []asm.Instruction{asm.LabelDecl{Name: e.scopedLabel(op.Name)}}, nil
}

func (e *Emitter) emitGotoOp(op GotoOp) ([]asm.Instruction, error) {
	if op.Label == "" {
		return nil, fmt.Errorf("unable to produce empty jump label")
	}

	if op.Jump == Unconditional {
		return []asm.Instruction{
			asm.AInstruction{Location: e.scopedLabel(op.Label)},
			asm.CInstruction{Comp: "0", Jump: "JMP"},
		}, nil
	}

	return append(popD(), []asm.Instruction{
		asm.AInstruction{Location: e.scopedLabel(op.Label)},
		asm.CInstruction{Comp: "D", Jump: "JNE"},
	}...), nil
}

// ----------------------------------------------------------------------------
// Function Declaration, Call, Return

func (e *Emitter) emitFuncDecl(op FuncDecl) ([]asm.Instruction, error) {
	if op.Name == "" {
		return nil, fmt.Errorf("unable to produce empty function declaration")
	}
	e.function = op.Name

	instructions := []asm.Instruction{asm.LabelDecl{Name: op.Name}}
	for i := uint8(0); i < op.NLocal; i++ {
		instructions = append(instructions,
			asm.AInstruction{Location: "0"},
			asm.CInstruction{Dest: "D", Comp: "A"},
		)
		instructions = append(instructions, pushD()...)
	}
	return instructions, nil
}

func (e *Emitter) emitFuncCallOp(op FuncCallOp) ([]asm.Instruction, error) {
	if op.Name == "" {
		return nil, fmt.Errorf("unable to produce empty function call")
	}

	returnLabel := fmt.Sprintf("%s.%s$ret.%d", e.file, op.Name, e.callIndex)
	e.callIndex++

	instructions := []asm.Instruction{
		asm.AInstruction{Location: returnLabel},
		asm.CInstruction{Dest: "D", Comp: "A"},
	}
	instructions = append(instructions, pushD()...)
	for _, saved := range []string{"LCL", "ARG", "THIS", "THAT"} {
		instructions = append(instructions,
			asm.AInstruction{Location: saved},
			asm.CInstruction{Dest: "D", Comp: "M"},
		)
		instructions = append(instructions, pushD()...)
	}

	instructions = append(instructions,
		// ARG = SP - 5 - nArgs
		asm.AInstruction{Location: fmt.Sprint(op.NArgs)},
		asm.CInstruction{Dest: "D", Comp: "A"},
		asm.AInstruction{Location: "5"},
		asm.CInstruction{Dest: "D", Comp: "D+A"},
		asm.AInstruction{Location: "SP"},
		asm.CInstruction{Dest: "D", Comp: "M-D"},
		asm.AInstruction{Location: "ARG"},
		asm.CInstruction{Dest: "M", Comp: "D"},
		// LCL = SP
		asm.AInstruction{Location: "SP"},
		asm.CInstruction{Dest: "D", Comp: "M"},
		asm.AInstruction{Location: "LCL"},
		asm.CInstruction{Dest: "M", Comp: "D"},
		// goto function
		asm.AInstruction{Location: op.Name},
		asm.CInstruction{Comp: "0", Jump: "JMP"},
		asm.LabelDecl{Name: returnLabel},
	)

	return instructions, nil
}

func (e *Emitter) emitReturnOp(ReturnOp) ([]asm.Instruction, error) {
	instructions := []asm.Instruction{
		// R14 (frame) = LCL
		asm.AInstruction{Location: "LCL"},
		asm.CInstruction{Dest: "D", Comp: "M"},
		asm.AInstruction{Location: "R14"},
		asm.CInstruction{Dest: "M", Comp: "D"},
		// R15 (return address) = *(frame-5)
		asm.AInstruction{Location: "5"},
		asm.CInstruction{Dest: "A", Comp: "D-A"},
		asm.CInstruction{Dest: "D", Comp: "M"},
		asm.AInstruction{Location: "R15"},
		asm.CInstruction{Dest: "M", Comp: "D"},
		// *ARG = pop()
		asm.AInstruction{Location: "SP"},
		asm.CInstruction{Dest: "A", Comp: "M-1"},
		asm.CInstruction{Dest: "D", Comp: "M"},
		asm.AInstruction{Location: "ARG"},
		asm.CInstruction{Dest: "A", Comp: "M"},
		asm.CInstruction{Dest: "M", Comp: "D"},
		// SP = ARG + 1
		asm.AInstruction{Location: "ARG"},
		asm.CInstruction{Dest: "D", Comp: "M+1"},
		asm.AInstruction{Location: "SP"},
		asm.CInstruction{Dest: "M", Comp: "D"},
	}

	// Restore THAT, THIS, ARG, LCL by walking R14 (frame) down from the top.
	for _, segment := range []string{"THAT", "THIS", "ARG", "LCL"} {
		instructions = append(instructions,
			asm.AInstruction{Location: "R14"},
			asm.CInstruction{Dest: "M", Comp: "M-1"},
			asm.CInstruction{Dest: "A", Comp: "M"},
			asm.CInstruction{Dest: "D", Comp: "M"},
			asm.AInstruction{Location: segment},
			asm.CInstruction{Dest: "M", Comp: "D"},
		)
	}

	return append(instructions,
		asm.AInstruction{Location: "R15"},
		asm.CInstruction{Dest: "A", Comp: "M"},
		asm.CInstruction{Comp: "0", Jump: "JMP"},
	), nil
}
