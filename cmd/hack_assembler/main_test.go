package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestHackAssembler(t *testing.T) {
	test := func(t *testing.T, asm string, expected string) {
		dir := t.TempDir()
		input := filepath.Join(dir, "program.asm")
		output := filepath.Join(dir, "program.hack")

		if err := os.WriteFile(input, []byte(asm), 0644); err != nil {
			t.Fatalf("unable to write input fixture: %v", err)
		}

		if status := Handler([]string{input, output}, nil); status != 0 {
			t.Fatalf("unexpected exit status, expected 0 got %d", status)
		}

		got, err := os.ReadFile(output)
		if err != nil {
			t.Fatalf("unable to read output file: %v", err)
		}

		if strings.TrimRight(string(got), "\n") != strings.TrimRight(expected, "\n") {
			t.Fatalf("unexpected output:\ngot:\n%s\nwant:\n%s", got, expected)
		}
	}

	// R0 = 2 + 3, the canonical 'Add' program from the course's 06 project.
	t.Run("Add", func(t *testing.T) {
		test(t, `
@2
D=A
@3
D=D+A
@0
M=D
`, `
0000000000000010
1110110000010000
0000000000000011
1110000010010000
0000000000000000
1110001100001000
`)
	})

	// Exercises a loop, a label and a JMP/jump condition together with symbolic labels.
	t.Run("LabelsAndLoop", func(t *testing.T) {
		test(t, `
(LOOP)
@0
D=M
@END
D;JEQ
@0
M=M-1
@LOOP
0;JMP
(END)
@END
0;JMP
`, `
0000000000000000
1111110000010000
0000000000001000
1110001100000010
0000000000000000
1111110010001000
0000000000000000
1110101010000111
0000000000001000
1110101010000111
`)
	})

	// Predeclared symbols (R0..R15, SCREEN, KBD) and a user-defined variable both get resolved,
	// the variable is allocated starting at RAM address 16.
	t.Run("VariablesAndPredeclared", func(t *testing.T) {
		test(t, `
@SCREEN
D=A
@counter
M=D
@counter
D=M
@R1
M=D
`, `
0100000000000000
1110110000010000
0000000000010000
1110001100001000
0000000000010000
1111110000010000
0000000000000001
1110001100001000
`)
	})
}
