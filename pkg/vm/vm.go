package vm

// ----------------------------------------------------------------------------
// General information

// This section contains some general information about the VM intermediate language.
//
// We declare a shared 'Operation' interface for every macro operation available for the
// language and we define some other useful top-level struct such as Program and Module.
// Is important to note that a VM program can be composed of multiple translation units
// that can be also referenced as file or modules or also classes.

// A VM Program is a set of multiple modules/files keyed by module (translation unit) name.
// In the VM spec each Jack class is translated to its own .vm file (just like Java .class
// file) that can be handled as its own translation unit during lowering/codegen; the name
// is required (not just a plain list) so the static segment's '<File>.<i>' qualifier and
// the per-file label/return-address counters can address a specific module.
type Program map[string]Module

// A VM Module is just a linear list of VM operations/instructions
type Module []Operation

// Used to put together all operation in the VM language (Memory, Arithmetic, ... ops).
type Operation interface{}

// ----------------------------------------------------------------------------
// Memory Op

// In memory representation of a Memory operation for the VM language.
//
// In the VM intermediate language there are only two possible memory operation on the stack.
// We could either push a new value taken from the specified segment location on the stack's
// top or take the stack's top and saves its value at the specified segment location.
type MemoryOp struct {
	Operation OperationType // The type of operation, either 'push' or 'pop'
	Segment   SegmentType   // The named memory segment to use (this, that, temp, ...)
	Offset    uint16        // The specific location/offset inside of the memory segment
}

type OperationType string // Enum to manage the operation allowed for a MemoryOp

const (
	Push OperationType = "push"
	Pop  OperationType = "pop"
)

type SegmentType string // Enum to manage the segment accessible for a MemoryOp

const (
	Temp     SegmentType = "temp"     // Real segment used to store intermediate computations
	Constant SegmentType = "constant" // Virtual segment used to access numeric constant

	Local    SegmentType = "local"    // Real segment used to store local function variables
	Static   SegmentType = "static"   // Real segment used to store shared/static variables
	Argument SegmentType = "argument" // Real segment used to store function's argument

	This    SegmentType = "this"    // Virtual segment used to point to a specific memory location
	That    SegmentType = "that"    // Virtual segment used to point to a specific memory location
	Pointer SegmentType = "pointer" // Real segment w/ 2 location used to set the 'this' and 'that' pointers
)

// ----------------------------------------------------------------------------
// Arithmetic Op

// In memory representation of a Arithmetic operation for the VM language.
//
// In the VM intermediate language there are just a handful of operation available.
// In particular each operation acts directly on the top of the stack, of course we have both unary
// and binary operation, the specific management of each op will be handled in the codegen phase.
type ArithmeticOp struct{ Operation ArithOpType }

type ArithOpType string // Enum to manage the operation allowed for an ArithmeticOp

const (
	Eq ArithOpType = "eq" // Comparison operations
	Gt ArithOpType = "gt"
	Lt ArithOpType = "lt"

	Add ArithOpType = "add" // Arithmetic operations
	Sub ArithOpType = "sub"
	Neg ArithOpType = "neg"

	Not ArithOpType = "not" // Bitwise operations
	And ArithOpType = "and"
	Or  ArithOpType = "or"

	ShiftLeft  ArithOpType = "shiftleft" // Unary bit-shift operations (Hack CPU shift extension)
	ShiftRight ArithOpType = "shiftright"
)

// ----------------------------------------------------------------------------
// Label / Branching Op

// A LabelDecl just declares a jump target inside the current function's code.
type LabelDecl struct{ Name string }

// A GotoOp is either an unconditional jump or a conditional one (pops the stack top
// and jumps only if it's non-zero).
type GotoOp struct {
	Jump  JumpType
	Label string
}

type JumpType string // Enum to manage the jump kind allowed for a GotoOp

const (
	Unconditional JumpType = "goto"
	Conditional   JumpType = "if-goto"
)

// ----------------------------------------------------------------------------
// Function Op

// A FuncDecl declares the entrypoint of a function/method/constructor and how many
// local variables (zero-initialized) it needs allocated on top of the stack frame.
type FuncDecl struct {
	Name   string
	NLocal uint8
}

// A FuncCallOp transfers control to 'Name', having already pushed 'NArgs' arguments.
type FuncCallOp struct {
	Name  string
	NArgs uint8
}

// A ReturnOp transfers control back to the caller, restoring its segments and
// leaving the callee's return value on top of the stack.
type ReturnOp struct{}
