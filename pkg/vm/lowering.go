package vm

import (
	"fmt"
	"sort"
	"strings"

	"nand2tetris.go.dev/toolchain/pkg/asm"
)

// ----------------------------------------------------------------------------
// Vm Lowerer

// The Lowerer takes a 'vm.Program' and produces its 'asm.Program' counterpart.
//
// Unlike the Asm Lowerer (a pure DFS over an AST) this one keeps a bit of running state:
// the current module (for 'static' qualification and label qualification), the current
// function (for label qualification) and a few monotonic counters used to keep generated
// labels unique across the whole program.
type Lowerer struct {
	program Program

	file        string // Basename (sans extension) of the module currently being lowered
	function    string // Name of the function currently being lowered, used to qualify labels
	cmpCounter  int     // Global counter, guarantees uniqueness of eq/gt/lt branch labels
	callCounter map[string]int // Per-file counter, used to qualify 'call' return addresses
}

// Initializes and returns to the caller a brand new 'Lowerer' struct.
// Requires the argument Program to be not nil nor empty.
func NewLowerer(p Program) Lowerer {
	return Lowerer{program: p, callCounter: map[string]int{}}
}

// Triggers the lowering process, one module at a time (in alphabetical order, so that the
// resulting 'asm.Program' is reproducible across runs regardless of Go's randomized map
// iteration). For each module every operation is lowered in sequence, in the order it
// appears, dispatching on its concrete type (much like a recursive descend parser but for
// lowering).
func (l *Lowerer) Lowerer() (asm.Program, error) {
	if l.program == nil || len(l.program) == 0 {
		return nil, fmt.Errorf("the given 'program' is empty")
	}

	names := make([]string, 0, len(l.program))
	for name := range l.program {
		names = append(names, name)
	}
	sort.Strings(names)

	converted := asm.Program{}
	for _, name := range names {
		l.file, l.function = strings.TrimSuffix(name, ".vm"), ""

		for _, op := range l.program[name] {
			stmts, err := l.lowerOperation(op)
			if err != nil {
				return nil, err
			}
			converted = append(converted, stmts...)
		}
	}

	return converted, nil
}

// Dispatches a single 'vm.Operation' to its specialized handler based on its concrete type.
func (l *Lowerer) lowerOperation(op Operation) (asm.Program, error) {
	switch tOp := op.(type) {
	case MemoryOp:
		return l.HandleMemoryOp(tOp)
	case ArithmeticOp:
		return l.HandleArithmeticOp(tOp)
	case LabelDecl:
		return l.HandleLabelDecl(tOp)
	case GotoOp:
		return l.HandleGotoOp(tOp)
	case FuncDecl:
		return l.HandleFuncDecl(tOp)
	case FuncCallOp:
		return l.HandleFuncCallOp(tOp)
	case ReturnOp:
		return l.HandleReturnOp(tOp)
	default:
		return nil, fmt.Errorf("unrecognized operation '%T'", op)
	}
}

// ----------------------------------------------------------------------------
// Segment addressing

// Segments that are reached indirectly: their base register holds a pointer, the
// effective address is '*base + offset'.
var indirectSegment = map[SegmentType]string{
	Local: "LCL", Argument: "ARG", This: "THIS", That: "THAT",
}

// Segments that are reached directly: the offset is added to a fixed numeric base.
var directSegment = map[SegmentType]uint16{
	Temp: 5, Pointer: 3,
}

// Pushes whatever value is currently in the D register on top of the stack, advancing SP.
func pushD() asm.Program {
	return asm.Program{
		asm.AInstruction{Location: "SP"},
		asm.CInstruction{Dest: "AM", Comp: "M+1"},
		asm.CInstruction{Dest: "A", Comp: "A-1"},
		asm.CInstruction{Dest: "M", Comp: "D"},
	}
}

// Specialized function to convert a 'MemoryOp' operation to its 'asm.Program' counterpart.
func (l *Lowerer) HandleMemoryOp(op MemoryOp) (asm.Program, error) {
	switch op.Operation {
	case Push:
		return l.handlePush(op.Segment, op.Offset)
	case Pop:
		return l.handlePop(op.Segment, op.Offset)
	default:
		return nil, fmt.Errorf("unrecognized operation type '%s'", op.Operation)
	}
}

func (l *Lowerer) handlePush(segment SegmentType, offset uint16) (asm.Program, error) {
	var load asm.Program

	switch {
	case segment == Constant:
		load = asm.Program{
			asm.AInstruction{Location: fmt.Sprint(offset)},
			asm.CInstruction{Dest: "D", Comp: "A"},
		}
	case indirectSegment[segment] != "":
		load = asm.Program{
			asm.AInstruction{Location: indirectSegment[segment]},
			asm.CInstruction{Dest: "D", Comp: "M"},
			asm.AInstruction{Location: fmt.Sprint(offset)},
			asm.CInstruction{Dest: "A", Comp: "D+A"},
			asm.CInstruction{Dest: "D", Comp: "M"},
		}
	case segment == Temp || segment == Pointer:
		load = asm.Program{
			asm.AInstruction{Location: fmt.Sprint(directSegment[segment] + offset)},
			asm.CInstruction{Dest: "D", Comp: "M"},
		}
	case segment == Static:
		load = asm.Program{
			asm.AInstruction{Location: fmt.Sprintf("%s.%d", l.file, offset)},
			asm.CInstruction{Dest: "D", Comp: "M"},
		}
	default:
		return nil, fmt.Errorf("unrecognized segment '%s'", segment)
	}

	return append(load, pushD()...), nil
}

func (l *Lowerer) handlePop(segment SegmentType, offset uint16) (asm.Program, error) {
	if segment == Constant {
		return nil, fmt.Errorf("invalid 'pop constant %d', constant is not an addressable segment", offset)
	}

	// Direct-base and static segments are known at lowering time, so the destination
	// address doesn't need to be stashed anywhere: pop the stack top straight into it.
	switch {
	case segment == Temp || segment == Pointer:
		return asm.Program{
			asm.AInstruction{Location: "SP"},
			asm.CInstruction{Dest: "AM", Comp: "M-1"},
			asm.CInstruction{Dest: "D", Comp: "M"},
			asm.AInstruction{Location: fmt.Sprint(directSegment[segment] + offset)},
			asm.CInstruction{Dest: "M", Comp: "D"},
		}, nil
	case segment == Static:
		return asm.Program{
			asm.AInstruction{Location: "SP"},
			asm.CInstruction{Dest: "AM", Comp: "M-1"},
			asm.CInstruction{Dest: "D", Comp: "M"},
			asm.AInstruction{Location: fmt.Sprintf("%s.%d", l.file, offset)},
			asm.CInstruction{Dest: "M", Comp: "D"},
		}, nil
	case indirectSegment[segment] != "":
		// Indirect segments need the target address computed up front (R13) since
		// popping the stack top overwrites D before the address is otherwise known.
		return asm.Program{
			asm.AInstruction{Location: indirectSegment[segment]},
			asm.CInstruction{Dest: "D", Comp: "M"},
			asm.AInstruction{Location: fmt.Sprint(offset)},
			asm.CInstruction{Dest: "D", Comp: "D+A"},
			asm.AInstruction{Location: "R13"},
			asm.CInstruction{Dest: "M", Comp: "D"},
			asm.AInstruction{Location: "SP"},
			asm.CInstruction{Dest: "AM", Comp: "M-1"},
			asm.CInstruction{Dest: "D", Comp: "M"},
			asm.AInstruction{Location: "R13"},
			asm.CInstruction{Dest: "A", Comp: "M"},
			asm.CInstruction{Dest: "M", Comp: "D"},
		}, nil
	default:
		return nil, fmt.Errorf("unrecognized segment '%s'", segment)
	}
}

// ----------------------------------------------------------------------------
// Arithmetic

// Binary ops: pop y into D, then M = comp on x's slot, leaving the result one slot below the previous top.
var binaryArithComp = map[ArithOpType]string{
	Add: "D+M", Sub: "M-D", And: "D&M", Or: "D|M",
}

// Unary ops: rewrite the current top (M) in place.
var unaryArithComp = map[ArithOpType]string{
	Neg: "-M", Not: "!M", ShiftLeft: "M<<", ShiftRight: "M>>",
}

// Specialized function to convert an 'ArithmeticOp' operation to its 'asm.Program' counterpart.
func (l *Lowerer) HandleArithmeticOp(op ArithmeticOp) (asm.Program, error) {
	if comp, found := binaryArithComp[op.Operation]; found {
		return asm.Program{
			asm.AInstruction{Location: "SP"},
			asm.CInstruction{Dest: "AM", Comp: "M-1"},
			asm.CInstruction{Dest: "D", Comp: "M"},
			asm.CInstruction{Dest: "A", Comp: "A-1"},
			asm.CInstruction{Dest: "M", Comp: comp},
		}, nil
	}

	if comp, found := unaryArithComp[op.Operation]; found {
		return asm.Program{
			asm.AInstruction{Location: "SP"},
			asm.CInstruction{Dest: "A", Comp: "M-1"},
			asm.CInstruction{Dest: "M", Comp: comp},
		}, nil
	}

	if op.Operation == Eq || op.Operation == Gt || op.Operation == Lt {
		return l.handleComparison(op.Operation)
	}

	return nil, fmt.Errorf("unrecognized arithmetic operation '%s'", op.Operation)
}

// Overflow-safe jump condition used once signs are known to agree and 'x - y' is safe.
var comparisonJump = map[ArithOpType]string{Eq: "JEQ", Gt: "JGT", Lt: "JLT"}

// When x and y carry different signs the comparison is decided by sign alone, no subtraction
// needed. 'xPosYNegTrue'/'xNegYPosTrue' tell whether that sign-decided outcome is "true" for
// the given operation (e.g. for 'gt', x >= 0 and y < 0 always means x > y).
var xPosYNegTrue = map[ArithOpType]bool{Eq: false, Gt: true, Lt: false}
var xNegYPosTrue = map[ArithOpType]bool{Eq: false, Gt: false, Lt: true}

// Implements the overflow-safe eq/gt/lt algorithm: the signs of x and y are examined first,
// and the two operands are only subtracted once they're known to share a sign (at which point
// no 16-bit overflow is possible). Outcome pushed is -1 (true) or 0 (false).
func (l *Lowerer) handleComparison(op ArithOpType) (asm.Program, error) {
	n := l.cmpCounter
	l.cmpCounter++

	// Qualified with 'op' so labels read as e.g. 'EQ_X_NEG.3' rather than the bare stage
	// name, which is ambiguous once 'eq'/'gt'/'lt' all share the same 'cmpCounter' sequence.
	label := func(name string) string { return fmt.Sprintf("%s_%s.%d", strings.ToUpper(string(op)), name, n) }
	boolOf := func(b bool) string {
		if b {
			return "-1"
		}
		return "0"
	}

	program := asm.Program{
		asm.AInstruction{Location: "SP"},
		asm.CInstruction{Dest: "AM", Comp: "M-1"},
		asm.CInstruction{Dest: "D", Comp: "M"}, // D = y
		asm.AInstruction{Location: "R13"},
		asm.CInstruction{Dest: "M", Comp: "D"}, // R13 = y
		asm.CInstruction{Dest: "A", Comp: "A-1"},
		asm.CInstruction{Dest: "D", Comp: "M"}, // D = x

		asm.AInstruction{Location: label("X_NEG")},
		asm.CInstruction{Comp: "D", Jump: "JLT"},
		asm.AInstruction{Location: label("X_POS")},
		asm.CInstruction{Comp: "0", Jump: "JMP"},

		asm.LabelDecl{Name: label("X_NEG")},
		asm.AInstruction{Location: "R13"},
		asm.CInstruction{Dest: "D", Comp: "M"},
		asm.AInstruction{Location: label("X_NEG_Y_POS")},
		asm.CInstruction{Comp: "D", Jump: "JGE"},
		asm.AInstruction{Location: label("EQ_SIGN")},
		asm.CInstruction{Comp: "0", Jump: "JMP"},

		asm.LabelDecl{Name: label("X_POS")},
		asm.AInstruction{Location: "R13"},
		asm.CInstruction{Dest: "D", Comp: "M"},
		asm.AInstruction{Location: label("X_POS_Y_NEG")},
		asm.CInstruction{Comp: "D", Jump: "JLT"},
		asm.AInstruction{Location: label("EQ_SIGN")},
		asm.CInstruction{Comp: "0", Jump: "JMP"},

		asm.LabelDecl{Name: label("X_POS_Y_NEG")},
		asm.AInstruction{Location: "SP"},
		asm.CInstruction{Dest: "A", Comp: "M-1"},
		asm.CInstruction{Dest: "M", Comp: boolOf(xPosYNegTrue[op])},
		asm.AInstruction{Location: label("ENDCMP")},
		asm.CInstruction{Comp: "0", Jump: "JMP"},

		asm.LabelDecl{Name: label("X_NEG_Y_POS")},
		asm.AInstruction{Location: "SP"},
		asm.CInstruction{Dest: "A", Comp: "M-1"},
		asm.CInstruction{Dest: "M", Comp: boolOf(xNegYPosTrue[op])},
		asm.AInstruction{Location: label("ENDCMP")},
		asm.CInstruction{Comp: "0", Jump: "JMP"},

		asm.LabelDecl{Name: label("EQ_SIGN")},
		asm.AInstruction{Location: "R13"},
		asm.CInstruction{Dest: "D", Comp: "M"},
		asm.AInstruction{Location: "SP"},
		asm.CInstruction{Dest: "A", Comp: "M-1"},
		asm.CInstruction{Dest: "D", Comp: "M-D"}, // D = x - y, safe since signs agree
		asm.AInstruction{Location: label("TRUE")},
		asm.CInstruction{Comp: "D", Jump: comparisonJump[op]},
		asm.AInstruction{Location: "SP"},
		asm.CInstruction{Dest: "A", Comp: "M-1"},
		asm.CInstruction{Dest: "M", Comp: "0"},
		asm.AInstruction{Location: label("ENDCMP")},
		asm.CInstruction{Comp: "0", Jump: "JMP"},

		asm.LabelDecl{Name: label("TRUE")},
		asm.AInstruction{Location: "SP"},
		asm.CInstruction{Dest: "A", Comp: "M-1"},
		asm.CInstruction{Dest: "M", Comp: "-1"},

		asm.LabelDecl{Name: label("ENDCMP")},
	}

	return program, nil
}

// ----------------------------------------------------------------------------
// Branching

// Qualifies a user-defined VM label with the current file and function, per the VM
// spec's '<File>.<CurrentFunction>$<label>' scheme.
func (l *Lowerer) qualify(label string) string {
	return fmt.Sprintf("%s.%s$%s", l.file, l.function, label)
}

// Specialized function to convert a 'LabelDecl' operation to its 'asm.Program' counterpart.
func (l *Lowerer) HandleLabelDecl(op LabelDecl) (asm.Program, error) {
	if op.Name == "" {
		return nil, fmt.Errorf("unable to produce empty label declaration")
	}
	return asm.Program{asm.LabelDecl{Name: l.qualify(op.Name)}}, nil
}

// Specialized function to convert a 'GotoOp' operation to its 'asm.Program' counterpart.
func (l *Lowerer) HandleGotoOp(op GotoOp) (asm.Program, error) {
	if op.Label == "" {
		return nil, fmt.Errorf("unable to produce empty jump label")
	}

	target := l.qualify(op.Label)

	if op.Jump == Unconditional {
		return asm.Program{
			asm.AInstruction{Location: target},
			asm.CInstruction{Comp: "0", Jump: "JMP"},
		}, nil
	}

	return asm.Program{
		asm.AInstruction{Location: "SP"},
		asm.CInstruction{Dest: "AM", Comp: "M-1"},
		asm.CInstruction{Dest: "D", Comp: "M"},
		asm.AInstruction{Location: target},
		asm.CInstruction{Comp: "D", Jump: "JNE"},
	}, nil
}

// ----------------------------------------------------------------------------
// Functions

// Specialized function to convert a 'FuncDecl' operation to its 'asm.Program' counterpart.
//
// The function's entry label uses its name verbatim (no file qualifier, function names
// already embed their class) and is followed by 'NLocal' zero-initialized local slots.
func (l *Lowerer) HandleFuncDecl(op FuncDecl) (asm.Program, error) {
	if op.Name == "" {
		return nil, fmt.Errorf("unable to produce empty function declaration")
	}
	l.function = op.Name

	program := asm.Program{asm.LabelDecl{Name: op.Name}}
	for i := uint8(0); i < op.NLocal; i++ {
		program = append(program,
			asm.AInstruction{Location: "SP"},
			asm.CInstruction{Dest: "AM", Comp: "M+1"},
			asm.CInstruction{Dest: "A", Comp: "A-1"},
			asm.CInstruction{Dest: "M", Comp: "0"},
		)
	}
	return program, nil
}

// Specialized function to convert a 'FuncCallOp' operation to its 'asm.Program' counterpart.
func (l *Lowerer) HandleFuncCallOp(op FuncCallOp) (asm.Program, error) {
	if op.Name == "" {
		return nil, fmt.Errorf("unable to produce empty function call")
	}

	returnLabel := fmt.Sprintf("%s.%s$returnAddress.%d", l.file, op.Name, l.callCounter[l.file])
	l.callCounter[l.file]++

	program := asm.Program{
		asm.AInstruction{Location: returnLabel},
		asm.CInstruction{Dest: "D", Comp: "A"},
	}
	program = append(program, pushD()...)

	for _, segment := range []string{"LCL", "ARG", "THIS", "THAT"} {
		program = append(program,
			asm.AInstruction{Location: segment},
			asm.CInstruction{Dest: "D", Comp: "M"},
		)
		program = append(program, pushD()...)
	}

	program = append(program,
		asm.AInstruction{Location: "SP"},
		asm.CInstruction{Dest: "D", Comp: "M"},
		asm.AInstruction{Location: fmt.Sprint(uint16(op.NArgs) + 5)},
		asm.CInstruction{Dest: "D", Comp: "D-A"},
		asm.AInstruction{Location: "ARG"},
		asm.CInstruction{Dest: "M", Comp: "D"},

		asm.AInstruction{Location: "SP"},
		asm.CInstruction{Dest: "D", Comp: "M"},
		asm.AInstruction{Location: "LCL"},
		asm.CInstruction{Dest: "M", Comp: "D"},

		asm.AInstruction{Location: op.Name},
		asm.CInstruction{Comp: "0", Jump: "JMP"},

		asm.LabelDecl{Name: returnLabel},
	)

	return program, nil
}

// Specialized function to convert a 'ReturnOp' operation to its 'asm.Program' counterpart.
//
// Uses R13 as the frame pointer and R14 as the return address, the latter captured early
// since local slot 0 may overlap ARG's slot when the callee took zero arguments.
func (l *Lowerer) HandleReturnOp(ReturnOp) (asm.Program, error) {
	return asm.Program{
		asm.AInstruction{Location: "LCL"},
		asm.CInstruction{Dest: "D", Comp: "M"},
		asm.AInstruction{Location: "R13"},
		asm.CInstruction{Dest: "M", Comp: "D"}, // R13 = frame

		asm.AInstruction{Location: "5"},
		asm.CInstruction{Dest: "A", Comp: "D-A"},
		asm.CInstruction{Dest: "D", Comp: "M"},
		asm.AInstruction{Location: "R14"},
		asm.CInstruction{Dest: "M", Comp: "D"}, // R14 = *(frame - 5)

		asm.AInstruction{Location: "SP"},
		asm.CInstruction{Dest: "AM", Comp: "M-1"},
		asm.CInstruction{Dest: "D", Comp: "M"},
		asm.AInstruction{Location: "ARG"},
		asm.CInstruction{Dest: "A", Comp: "M"},
		asm.CInstruction{Dest: "M", Comp: "D"}, // *ARG = pop()

		asm.AInstruction{Location: "ARG"},
		asm.CInstruction{Dest: "D", Comp: "M+1"},
		asm.AInstruction{Location: "SP"},
		asm.CInstruction{Dest: "M", Comp: "D"}, // SP = ARG + 1

		asm.AInstruction{Location: "R13"},
		asm.CInstruction{Dest: "AM", Comp: "M-1"},
		asm.CInstruction{Dest: "D", Comp: "M"},
		asm.AInstruction{Location: "THAT"},
		asm.CInstruction{Dest: "M", Comp: "D"}, // THAT = *(frame - 1)

		asm.AInstruction{Location: "R13"},
		asm.CInstruction{Dest: "AM", Comp: "M-1"},
		asm.CInstruction{Dest: "D", Comp: "M"},
		asm.AInstruction{Location: "THIS"},
		asm.CInstruction{Dest: "M", Comp: "D"}, // THIS = *(frame - 2)

		asm.AInstruction{Location: "R13"},
		asm.CInstruction{Dest: "AM", Comp: "M-1"},
		asm.CInstruction{Dest: "D", Comp: "M"},
		asm.AInstruction{Location: "ARG"},
		asm.CInstruction{Dest: "M", Comp: "D"}, // ARG = *(frame - 3)

		asm.AInstruction{Location: "R13"},
		asm.CInstruction{Dest: "AM", Comp: "M-1"},
		asm.CInstruction{Dest: "D", Comp: "M"},
		asm.AInstruction{Location: "LCL"},
		asm.CInstruction{Dest: "M", Comp: "D"}, // LCL = *(frame - 4)

		asm.AInstruction{Location: "R14"},
		asm.CInstruction{Dest: "A", Comp: "M"},
		asm.CInstruction{Comp: "0", Jump: "JMP"}, // goto returnAddr
	}, nil
}
