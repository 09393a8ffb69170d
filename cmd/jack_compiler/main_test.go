package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestJackCompiler(t *testing.T) {
	test := func(t *testing.T, class string, expected []string) {
		dir := t.TempDir()
		if err := os.WriteFile(filepath.Join(dir, "Main.jack"), []byte(class), 0644); err != nil {
			t.Fatalf("unable to write input fixture: %v", err)
		}

		if status := Handler([]string{dir}, map[string]string{"typecheck": ""}); status != 0 {
			t.Fatalf("unexpected exit status, expected 0 got %d", status)
		}

		got, err := os.ReadFile(filepath.Join(dir, "Main.vm"))
		if err != nil {
			t.Fatalf("unable to read output file: %v", err)
		}

		lines := strings.Split(strings.TrimRight(string(got), "\n"), "\n")
		if len(lines) != len(expected) {
			t.Fatalf("unexpected instruction count: got %d want %d\ngot:\n%s", len(lines), len(expected), got)
		}
		for i, line := range lines {
			if line != expected[i] {
				t.Fatalf("line %d: got %q want %q", i, line, expected[i])
			}
		}
	}

	t.Run("empty void return", func(t *testing.T) {
		test(t, `
class Main {
    function void main() {
        return;
    }
}
`, []string{"function Main.main 0", "push constant 0", "return"})
	})

	t.Run("local var, arithmetic and a call", func(t *testing.T) {
		test(t, `
class Main {
    function void main() {
        var int x;
        let x = 1 + 2;
        do Main.helper();
        return;
    }

    function int helper() {
        return 42;
    }
}
`, []string{
			"function Main.main 1",
			"push constant 1",
			"push constant 2",
			"add",
			"pop local 0",
			"call Main.helper 0",
			"pop temp 0",
			"push constant 0",
			"return",
			"function Main.helper 0",
			"push constant 42",
			"return",
		})
	})
}
