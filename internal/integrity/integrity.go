// Package integrity checks that a candidate program text retains the
// structural capabilities a self-updating program must not lose.
//
// The check is a heuristic over text, not a parse: it can only prove that the
// candidate superficially kept the required machinery, never that it runs.
package integrity

import (
	"fmt"
	"regexp"
	"strings"
)

// Marker is one required structural pattern. A candidate is accepted only if
// every marker matches somewhere in its text.
type Marker struct {
	Name    string
	Pattern string
}

// DefaultMarkers returns the built-in marker set for targets that embed the
// ouro loop. The set is deliberately self-referential: a rewrite that drops
// the integrity check, the safe replace, or the retrying remote call is
// rejected before it ever reaches disk.
func DefaultMarkers() []Marker {
	return []Marker{
		{Name: "fs-import", Pattern: `(?m)^\s*"os"\s*$`},
		{Name: "spawn-import", Pattern: `"os/exec"`},
		{Name: "update-loop", Pattern: `update\.Run\(`},
		{Name: "api-key-env", Pattern: `OURO_API_KEY`},
		{Name: "integrity-check", Pattern: `integrity\.NewChecker\(`},
		{Name: "safe-replace", Pattern: `\.Replace\(`},
		{Name: "remote-retry", Pattern: `\.Complete\(`},
		{Name: "main-entry", Pattern: `func main\(\)`},
	}
}

// Checker holds a compiled marker set.
type Checker struct {
	markers []compiledMarker
}

type compiledMarker struct {
	name string
	re   *regexp.Regexp
}

// NewChecker compiles markers into a Checker. An empty slice selects
// DefaultMarkers.
func NewChecker(markers []Marker) (*Checker, error) {
	if len(markers) == 0 {
		markers = DefaultMarkers()
	}
	c := &Checker{markers: make([]compiledMarker, 0, len(markers))}
	for _, m := range markers {
		name := strings.TrimSpace(m.Name)
		if name == "" {
			return nil, fmt.Errorf("marker name is required")
		}
		re, err := regexp.Compile(m.Pattern)
		if err != nil {
			return nil, fmt.Errorf("marker %q: %w", name, err)
		}
		c.markers = append(c.markers, compiledMarker{name: name, re: re})
	}
	return c, nil
}

// Missing returns the names of markers the text does not contain, in marker
// order. An empty result means the text is acceptable.
func (c *Checker) Missing(text string) []string {
	var missing []string
	for _, m := range c.markers {
		if !m.re.MatchString(text) {
			missing = append(missing, m.name)
		}
	}
	return missing
}

// Valid reports whether every marker matches.
func (c *Checker) Valid(text string) bool {
	return len(c.Missing(text)) == 0
}

// Names lists the marker names in order.
func (c *Checker) Names() []string {
	out := make([]string, 0, len(c.markers))
	for _, m := range c.markers {
		out = append(out, m.name)
	}
	return out
}
