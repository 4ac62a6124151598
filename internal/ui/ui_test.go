package ui

import (
	"strings"
	"testing"
)

func TestPalette(t *testing.T) {
	p := Styles()
	for name, got := range map[string]string{
		"Title": p.Title("routes"),
		"OK":    p.OK("routes"),
		"Err":   p.Err("routes"),
		"Warn":  p.Warn("routes"),
		"Help":  p.Help("routes"),
	} {
		if !strings.Contains(got, "routes") {
			t.Errorf("%s: expected text to survive styling, got %q", name, got)
		}
	}
}

func TestTable(t *testing.T) {
	out := Table([]string{"NAME", "PATH"}, [][]string{{"home", "/"}, {"post", "/posts/{id}"}})

	for _, want := range []string{"NAME", "PATH", "home", "/posts/{id}"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected table to contain %q, got:\n%s", want, out)
		}
	}
	if lines := strings.Split(out, "\n"); len(lines) < 5 {
		t.Errorf("expected bordered rows, got %d lines", len(lines))
	}
}
