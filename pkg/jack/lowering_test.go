package jack_test

import (
	"strings"
	"testing"

	"nand2tetris.go.dev/toolchain/pkg/jack"
	"nand2tetris.go.dev/toolchain/pkg/vm"
)

// lower parses every given class, lowers the whole program to VM and returns 'class''s
// compiled instructions as plain VM text lines, ready to compare against a hand derived
// expectation.
func lower(t *testing.T, class string, sources map[string]string) []string {
	t.Helper()

	program := jack.Program{}
	for name, src := range sources {
		parser := jack.NewParser(strings.NewReader(src), name+".jack")
		c, err := parser.Parse()
		if err != nil {
			t.Fatalf("unexpected parse error for %q: %v", name, err)
		}
		program[name] = c
	}

	lowerer := jack.NewLowerer(program)
	vmProgram, err := lowerer.Lowerer()
	if err != nil {
		t.Fatalf("unexpected lowering error: %v", err)
	}

	codegen := vm.NewCodeGenerator(vmProgram)
	compiled, err := codegen.Generate()
	if err != nil {
		t.Fatalf("unexpected codegen error: %v", err)
	}

	lines, ok := compiled[class]
	if !ok {
		t.Fatalf("no compiled module for class %q", class)
	}
	return lines
}

func assertLines(t *testing.T, got []string, want []string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("unexpected instruction count: got %d want %d\ngot:\n%s", len(got), len(want), strings.Join(got, "\n"))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("line %d: got %q want %q", i, got[i], want[i])
		}
	}
}

func TestLowerWhileStatementLabels(t *testing.T) {
	lines := lower(t, "Main", map[string]string{"Main": `
class Main {
    function void main() {
        var boolean flag;
        while (flag) {
            let flag = false;
        }
        return;
    }
}
`})

	assertLines(t, lines, []string{
		"function Main.main 1",
		"label WHILE_EXP0",
		"push local 0",
		"not",
		"if-goto WHILE_END0",
		"push constant 0",
		"pop local 0",
		"goto WHILE_EXP0",
		"label WHILE_END0",
		"push constant 0",
		"return",
	})
}

func TestLowerIfWithoutElse(t *testing.T) {
	lines := lower(t, "Main", map[string]string{"Main": `
class Main {
    function void main() {
        if (true) {
            do Main.main();
        }
        return;
    }
}
`})

	assertLines(t, lines, []string{
		"function Main.main 0",
		// 'true' lowers to 'push constant 0' + 'not' (Jack true is all-ones, not 1);
		// 'if' then negates the whole condition again to decide the 'IF_FALSE' jump.
		"push constant 0",
		"not",
		"not",
		"if-goto IF_FALSE0",
		"call Main.main 0",
		"pop temp 0",
		"goto IF_TRUE0",
		"label IF_FALSE0",
		"label IF_TRUE0",
		"push constant 0",
		"return",
	})
}

func TestLowerTrueLiteralPushesAllOnes(t *testing.T) {
	lines := lower(t, "Main", map[string]string{"Main": `
class Main {
    function boolean main() {
        return true;
    }
}
`})

	assertLines(t, lines, []string{
		"function Main.main 0",
		"push constant 0",
		"not",
		"return",
	})
}

func TestLowerNullLiteralPushesZero(t *testing.T) {
	lines := lower(t, "Main", map[string]string{"Main": `
class Main {
    function Main main() {
        return null;
    }
}
`})

	assertLines(t, lines, []string{
		"function Main.main 0",
		"push constant 0",
		"return",
	})
}

func TestLowerArrayAssignmentPushesBaseBeforeIndex(t *testing.T) {
	lines := lower(t, "Main", map[string]string{"Main": `
class Main {
    function void main() {
        var Array a;
        let a[1] = 2;
        return;
    }
}
`})

	assertLines(t, lines, []string{
		"function Main.main 1",
		// Base address pushed before the index, per the array-address VM convention.
		"push local 0",
		"push constant 1",
		"add",
		"push constant 2",
		"pop temp 0",
		"pop pointer 1",
		"push temp 0",
		"pop that 0",
		"push constant 0",
		"return",
	})
}

func TestLowerIfWithElse(t *testing.T) {
	lines := lower(t, "Main", map[string]string{"Main": `
class Main {
    function void main() {
        if (false) {
            return;
        } else {
            return;
        }
    }
}
`})

	assertLines(t, lines, []string{
		"function Main.main 0",
		"push constant 0",
		"not",
		"if-goto IF_FALSE0",
		"push constant 0",
		"return",
		"goto IF_TRUE0",
		"label IF_FALSE0",
		"push constant 0",
		"return",
		"label IF_TRUE0",
	})
}

func TestLowerShiftOperators(t *testing.T) {
	lines := lower(t, "Main", map[string]string{"Main": `
class Main {
    function int main() {
        return ^1;
    }
}
`})

	assertLines(t, lines, []string{
		"function Main.main 0",
		"push constant 1",
		"shiftleft",
		"return",
	})
}

func TestLowerConstructorAllocatesFields(t *testing.T) {
	lines := lower(t, "Point", map[string]string{"Point": `
class Point {
    field int x, y;

    constructor Point new() {
        let x = 0;
        let y = 0;
        return this;
    }
}
`})

	assertLines(t, lines, []string{
		"function Point.new 0",
		"push constant 2",
		"call Memory.alloc 1",
		"pop pointer 0",
		"push constant 0",
		"pop this 0",
		"push constant 0",
		"pop this 1",
		"push pointer 0",
		"return",
	})
}

func TestLowerMethodSetsThisFromFirstArgument(t *testing.T) {
	lines := lower(t, "Point", map[string]string{"Point": `
class Point {
    field int x;

    method int getX() {
        return x;
    }
}
`})

	assertLines(t, lines, []string{
		"function Point.getX 0",
		"push argument 0",
		"pop pointer 0",
		"push this 0",
		"return",
	})
}

func TestLowerExternalMethodCallPushesReceiverAsThis(t *testing.T) {
	lines := lower(t, "Main", map[string]string{
		"Main": `
class Main {
    function void main() {
        var Point p;
        let p = Point.new();
        do p.getX();
        return;
    }
}
`,
		"Point": `
class Point {
    field int x;

    constructor Point new() {
        let x = 0;
        return this;
    }

    method int getX() {
        return x;
    }
}
`,
	})

	assertLines(t, lines, []string{
		"function Main.main 1",
		"call Point.new 0",
		"pop local 0",
		"push local 0",
		"call Point.getX 1",
		"pop temp 0",
		"push constant 0",
		"return",
	})
}

func TestLowerArithmeticUsesMathLibraryCalls(t *testing.T) {
	lines := lower(t, "Main", map[string]string{"Main": `
class Main {
    function int main() {
        return 6 / 2 * 3;
    }
}
`})

	assertLines(t, lines, []string{
		"function Main.main 0",
		"push constant 6",
		"push constant 2",
		"call Math.divide 2",
		"push constant 3",
		"call Math.multiply 2",
		"return",
	})
}
