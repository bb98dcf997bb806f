package integrity

import (
	"strings"
	"testing"
)

// fixture carries every default marker exactly once, each on a line that can
// be removed independently.
const fixture = `package main

import (
	"context"
	"os"
	"os/exec"
)

// OURO_API_KEY supplies the bearer token.
func main() {
	checker, _ := integrity.NewChecker(nil)
	client := remote.NewClient(remote.Config{}, nil)
	text, _ := client.Complete(context.Background(), remote.Request{})
	replacer := swap.NewReplacer(checker, nil)
	_, _ = replacer.Replace([]byte(text), "agent.go")
	os.Exit(update.Run(context.Background(), update.Options{}))
	_ = exec.Command
}
`

// markerLines maps each default marker to the one fixture line that carries it.
var markerLines = map[string]string{
	"fs-import":       "\t\"os\"\n",
	"spawn-import":    "\t\"os/exec\"\n",
	"update-loop":     "\tos.Exit(update.Run(context.Background(), update.Options{}))\n",
	"api-key-env":     "// OURO_API_KEY supplies the bearer token.\n",
	"integrity-check": "\tchecker, _ := integrity.NewChecker(nil)\n",
	"safe-replace":    "\t_, _ = replacer.Replace([]byte(text), \"agent.go\")\n",
	"remote-retry":    "\ttext, _ := client.Complete(context.Background(), remote.Request{})\n",
	"main-entry":      "func main() {\n",
}

func TestDefaultMarkers_AllPresent(t *testing.T) {
	c, err := NewChecker(nil)
	if err != nil {
		t.Fatalf("NewChecker: %v", err)
	}
	if missing := c.Missing(fixture); len(missing) != 0 {
		t.Fatalf("expected no missing markers, got %v", missing)
	}
	if !c.Valid(fixture) {
		t.Fatal("expected fixture to be valid")
	}
}

func TestDefaultMarkers_EachIndividuallyRequired(t *testing.T) {
	c, err := NewChecker(nil)
	if err != nil {
		t.Fatalf("NewChecker: %v", err)
	}
	if len(markerLines) != len(DefaultMarkers()) {
		t.Fatalf("fixture covers %d markers, default set has %d", len(markerLines), len(DefaultMarkers()))
	}
	for name, line := range markerLines {
		t.Run(name, func(t *testing.T) {
			if !strings.Contains(fixture, line) {
				t.Fatalf("fixture does not contain line %q", line)
			}
			mutated := strings.Replace(fixture, line, "", 1)
			missing := c.Missing(mutated)
			if len(missing) != 1 || missing[0] != name {
				t.Fatalf("got missing %v, want exactly [%s]", missing, name)
			}
			if c.Valid(mutated) {
				t.Fatal("mutated fixture should not be valid")
			}
		})
	}
}

func TestNewChecker_CustomMarkers(t *testing.T) {
	c, err := NewChecker([]Marker{
		{Name: "greeting", Pattern: `hello`},
		{Name: "farewell", Pattern: `goodbye$`},
	})
	if err != nil {
		t.Fatalf("NewChecker: %v", err)
	}
	if got := c.Names(); len(got) != 2 || got[0] != "greeting" || got[1] != "farewell" {
		t.Fatalf("Names() = %v", got)
	}
	if missing := c.Missing("hello world, goodbye"); len(missing) != 0 {
		t.Fatalf("got missing %v, want none", missing)
	}
	if missing := c.Missing("hello world"); len(missing) != 1 || missing[0] != "farewell" {
		t.Fatalf("got missing %v, want [farewell]", missing)
	}
}

func TestNewChecker_Errors(t *testing.T) {
	if _, err := NewChecker([]Marker{{Name: "", Pattern: "x"}}); err == nil {
		t.Fatal("expected error for empty marker name")
	}
	if _, err := NewChecker([]Marker{{Name: "bad", Pattern: "("}}); err == nil {
		t.Fatal("expected error for invalid pattern")
	}
}
