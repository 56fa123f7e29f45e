package strategy

import (
	"bytes"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestScriptDecide(t *testing.T) {
	src := `
		function decide(person, state) {
			if (person.attributes.young && state.counts.young < 600) {
				return true;
			}
			return false;
		}
	`
	script, err := NewScript(src, log.New(&bytes.Buffer{}, "", 0))
	if err != nil {
		t.Fatalf("NewScript failed: %v", err)
	}

	s := twoAttrState()
	s.Counts["young"] = 10

	accept, err := script.Decide(person("young"), s)
	if err != nil {
		t.Fatalf("Decide failed: %v", err)
	}
	if !accept {
		t.Error("expected acceptance for a needed young person")
	}

	accept, err = script.Decide(person("well_dressed"), s)
	if err != nil {
		t.Fatalf("Decide failed: %v", err)
	}
	if accept {
		t.Error("expected rejection without the young attribute")
	}
}

func TestScriptSeesGameState(t *testing.T) {
	src := `
		function decide(person, state) {
			return person.personIndex === 7 &&
				state.capacity === 1000 &&
				state.constraints.length === 2 &&
				state.constraints[0].attribute === "young" &&
				state.frequencies.young > 0.3;
		}
	`
	script, err := NewScript(src, log.New(&bytes.Buffer{}, "", 0))
	if err != nil {
		t.Fatalf("NewScript failed: %v", err)
	}

	p := person("young")
	p.PersonIndex = 7
	accept, err := script.Decide(p, twoAttrState())
	if err != nil {
		t.Fatalf("Decide failed: %v", err)
	}
	if !accept {
		t.Error("script should see person index, constraints, and frequencies")
	}
}

func TestScriptLogGoesToLogger(t *testing.T) {
	var buf bytes.Buffer
	src := `
		function decide(person, state) {
			log("fill", state.fillRatio);
			console.log("seen person");
			return false;
		}
	`
	script, err := NewScript(src, log.New(&buf, "[script] ", 0))
	if err != nil {
		t.Fatalf("NewScript failed: %v", err)
	}

	if _, err := script.Decide(person(), twoAttrState()); err != nil {
		t.Fatalf("Decide failed: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "fill 0") {
		t.Errorf("log() output missing: %q", out)
	}
	if !strings.Contains(out, "seen person") {
		t.Errorf("console.log output missing: %q", out)
	}
}

func TestScriptMissingDecide(t *testing.T) {
	if _, err := NewScript(`var x = 1;`, nil); err == nil {
		t.Fatal("expected an error for a script without decide()")
	}
	if _, err := NewScript(`var decide = 42;`, nil); err == nil {
		t.Fatal("expected an error when decide is not a function")
	}
}

func TestScriptSyntaxError(t *testing.T) {
	if _, err := NewScript(`function decide( {`, nil); err == nil {
		t.Fatal("expected a load error for broken source")
	}
}

func TestScriptRuntimeErrorSurfaces(t *testing.T) {
	script, err := NewScript(`function decide() { throw new Error("boom"); }`, log.New(&bytes.Buffer{}, "", 0))
	if err != nil {
		t.Fatalf("NewScript failed: %v", err)
	}
	if _, err := script.Decide(person(), twoAttrState()); err == nil {
		t.Fatal("expected the thrown error to surface")
	}
}

func TestScriptSandboxBlocksEval(t *testing.T) {
	script, err := NewScript(`function decide() { return eval("1+1") === 2; }`, log.New(&bytes.Buffer{}, "", 0))
	if err != nil {
		t.Fatalf("NewScript failed: %v", err)
	}
	if _, err := script.Decide(person(), twoAttrState()); err == nil {
		t.Fatal("expected an error: eval must not be callable")
	}
}

func TestScriptTimeout(t *testing.T) {
	script, err := NewScript(`function decide() { while (true) {} }`, log.New(&bytes.Buffer{}, "", 0))
	if err != nil {
		t.Fatalf("NewScript failed: %v", err)
	}
	_, err = script.Decide(person(), twoAttrState())
	if err == nil {
		t.Fatal("expected a timeout error")
	}
	if !strings.Contains(err.Error(), "timed out") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestLoadScript(t *testing.T) {
	path := filepath.Join(t.TempDir(), "strategy.js")
	if err := os.WriteFile(path, []byte(`function decide() { return true; }`), 0o644); err != nil {
		t.Fatalf("write script: %v", err)
	}

	script, err := LoadScript(path, log.New(&bytes.Buffer{}, "", 0))
	if err != nil {
		t.Fatalf("LoadScript failed: %v", err)
	}
	accept, err := script.Decide(person(), twoAttrState())
	if err != nil {
		t.Fatalf("Decide failed: %v", err)
	}
	if !accept {
		t.Error("expected acceptance from the constant script")
	}

	if _, err := LoadScript(filepath.Join(t.TempDir(), "missing.js"), nil); err == nil {
		t.Fatal("expected an error for a missing script file")
	}
}
