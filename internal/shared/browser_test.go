package shared

import (
	"errors"
	"os/exec"
	"testing"
)

func TestOpenBrowser(t *testing.T) {
	origRuntime, origStart := getRuntime, startCommand
	t.Cleanup(func() { getRuntime, startCommand = origRuntime, origStart })

	t.Run("uses platform command", func(t *testing.T) {
		var started *exec.Cmd
		getRuntime = func() string { return "linux" }
		startCommand = func(cmd *exec.Cmd) error { started = cmd; return nil }

		if err := OpenBrowser("http://127.0.0.1:3000/"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if started == nil || started.Args[0] != "xdg-open" || started.Args[1] != "http://127.0.0.1:3000/" {
			t.Errorf("unexpected command: %v", started)
		}
	})

	t.Run("unsupported platform", func(t *testing.T) {
		getRuntime = func() string { return "plan9" }
		if err := OpenBrowser("http://x"); err == nil {
			t.Error("expected error for unsupported platform")
		}
	})

	t.Run("start failure", func(t *testing.T) {
		getRuntime = func() string { return "darwin" }
		startCommand = func(*exec.Cmd) error { return errors.New("boom") }
		if err := OpenBrowser("http://x"); err == nil {
			t.Error("expected error when command fails to start")
		}
	})
}
