package vm

import "nand2tetris.go.dev/toolchain/pkg/asm"

// Bootstrap returns the standard VM bootstrap sequence, emitted once before any translated
// module when the caller asks for it (the VM translator's 'bootstrap' option; the translator
// takes .vm files only and does not emit it on its own): it sets the Stack Pointer to its
// base location (256) then calls 'Sys.init' with zero arguments, following the very same
// calling convention used for every other VM function call.
func Bootstrap() (asm.Program, error) {
	program := asm.Program{
		asm.AInstruction{Location: "256"},
		asm.CInstruction{Dest: "D", Comp: "A"},
		asm.AInstruction{Location: "SP"},
		asm.CInstruction{Dest: "M", Comp: "D"},
	}

	lowerer := Lowerer{file: "Bootstrap", callCounter: map[string]int{}}
	call, err := lowerer.HandleFuncCallOp(FuncCallOp{Name: "Sys.init", NArgs: 0})
	if err != nil {
		return nil, err
	}

	return append(program, call...), nil
}
