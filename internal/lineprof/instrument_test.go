package lineprof

import (
	"go/parser"
	"go/token"
	"strings"
	"testing"
)

func TestInstrumentInjectsProbePerStatement(t *testing.T) {
	merged := "func run() {\n" +
		"\ta := 1\n" +
		"\tb := a + 1\n" +
		"\t_ = b\n" +
		"}"

	out, err := Instrument(merged, "run")
	if err != nil {
		t.Fatalf("Instrument failed: %v", err)
	}

	for _, want := range []string{"nbprobe.Hit(2)", "nbprobe.Hit(3)", "nbprobe.Hit(4)"} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %s in instrumented unit:\n%s", want, out)
		}
	}

	// The rewritten declaration must still be valid Go.
	if _, err := parser.ParseFile(token.NewFileSet(), "x.go", "package main\n"+out, 0); err != nil {
		t.Fatalf("instrumented unit does not parse: %v\n%s", err, out)
	}
}

func TestInstrumentLoopBody(t *testing.T) {
	merged := "func run() {\n" +
		"\ttotal := 0\n" +
		"\tfor i := 0; i < 10; i++ {\n" +
		"\t\ttotal += i\n" +
		"\t}\n" +
		"\t_ = total\n" +
		"}"

	out, err := Instrument(merged, "run")
	if err != nil {
		t.Fatalf("Instrument failed: %v", err)
	}

	// The loop body statement gets its own probe so iterations count as hits.
	if !strings.Contains(out, "nbprobe.Hit(4)") {
		t.Fatalf("loop body not instrumented:\n%s", out)
	}
	// The loop statement itself is probed once, at its own line.
	if !strings.Contains(out, "nbprobe.Hit(3)") {
		t.Fatalf("loop statement not instrumented:\n%s", out)
	}
}

func TestInstrumentSwitchClauses(t *testing.T) {
	merged := "func run() {\n" +
		"\tx := 2\n" +
		"\tswitch x {\n" +
		"\tcase 1:\n" +
		"\t\tx = 10\n" +
		"\tdefault:\n" +
		"\t\tx = 20\n" +
		"\t}\n" +
		"\t_ = x\n" +
		"}"

	out, err := Instrument(merged, "run")
	if err != nil {
		t.Fatalf("Instrument failed: %v", err)
	}

	// Clause bodies are instrumented, the clauses themselves are not.
	if !strings.Contains(out, "nbprobe.Hit(5)") || !strings.Contains(out, "nbprobe.Hit(7)") {
		t.Fatalf("switch clause bodies not instrumented:\n%s", out)
	}
	if strings.Contains(out, "nbprobe.Hit(4)") || strings.Contains(out, "nbprobe.Hit(6)") {
		t.Fatalf("probe attributed to a clause line:\n%s", out)
	}
}

func TestInstrumentSyntaxError(t *testing.T) {
	merged := "func run() {\n" +
		"\tthis is not go\n" +
		"}"

	if _, err := Instrument(merged, "run"); err == nil {
		t.Fatalf("expected a parse error for an invalid merged unit")
	}
}

func TestInstrumentMissingEntryPoint(t *testing.T) {
	if _, err := Instrument("func other() {\n}", "run"); err == nil {
		t.Fatalf("expected an error when the entry point is absent")
	}
}
