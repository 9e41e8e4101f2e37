package testutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewSandboxClearsConfigEnv(t *testing.T) {
	t.Setenv("GIGS_TOKEN", "leaked")
	t.Setenv("GIGS_USER_ID", "developer")

	sb := NewSandbox(t)
	for _, key := range []string{"GIGS_TOKEN", "GIGS_USER_ID"} {
		if v, ok := os.LookupEnv(key); ok {
			t.Errorf("%s still set to %q", key, v)
		}
	}
	if home, _ := os.UserHomeDir(); home != sb.Home {
		t.Errorf("home = %q, want %q", home, sb.Home)
	}
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	want, err := filepath.EvalSymlinks(sb.Work)
	if err != nil {
		t.Fatal(err)
	}
	if got, _ := filepath.EvalSymlinks(wd); got != want {
		t.Errorf("cwd = %q, want %q", got, want)
	}
}

func TestCaptureStdoutLargerThanPipeBuffer(t *testing.T) {
	line := strings.Repeat("五月天 ", 40) + "\n"
	out := CaptureStdout(t, func() {
		for i := 0; i < 2000; i++ {
			fmt.Print(line)
		}
	})
	if len(out) != 2000*len(line) {
		t.Fatalf("captured %d bytes, want %d", len(out), 2000*len(line))
	}
}

func TestCaptureStderrRestoresStream(t *testing.T) {
	orig := os.Stderr
	out := CaptureStderr(t, func() { fmt.Fprint(os.Stderr, "boom") })
	if out != "boom" {
		t.Errorf("captured %q", out)
	}
	if os.Stderr != orig {
		t.Error("stderr not restored")
	}
}
