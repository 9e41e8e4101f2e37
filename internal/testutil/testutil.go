// Package testutil holds the shared test fixtures: an isolated user
// environment, output capture and a fake concert backend.
package testutil

import (
	"bytes"
	"io"
	"os"
	"strings"
	"testing"
)

// envPrefix marks the variables the CLI reads its configuration from.
const envPrefix = "GIGS_"

// Sandbox is an isolated user environment: HOME points at Home, the
// working directory is Work and no GIGS_* variable is set.
type Sandbox struct {
	Home string
	Work string
}

// NewSandbox isolates the test from the developer's home directory, its
// working directory and any GIGS_* variables. Everything is restored when
// the test ends, so tests using it must not run in parallel.
func NewSandbox(t *testing.T) Sandbox {
	t.Helper()
	sb := Sandbox{Home: t.TempDir(), Work: t.TempDir()}
	t.Setenv("HOME", sb.Home)

	for _, kv := range os.Environ() {
		key, _, _ := strings.Cut(kv, "=")
		if strings.HasPrefix(key, envPrefix) {
			t.Setenv(key, "")
			if err := os.Unsetenv(key); err != nil {
				t.Fatalf("unset %s: %v", key, err)
			}
		}
	}

	orig, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(sb.Work); err != nil {
		t.Fatalf("chdir %s: %v", sb.Work, err)
	}
	t.Cleanup(func() { _ = os.Chdir(orig) })
	return sb
}

// CaptureStdout returns what fn wrote to os.Stdout.
func CaptureStdout(t *testing.T, fn func()) string {
	t.Helper()
	return capture(t, &os.Stdout, fn)
}

// CaptureStderr returns what fn wrote to os.Stderr.
func CaptureStderr(t *testing.T, fn func()) string {
	t.Helper()
	return capture(t, &os.Stderr, fn)
}

// capture swaps *target for a pipe while fn runs. The pipe is drained
// concurrently so output larger than the pipe buffer cannot block fn.
func capture(t *testing.T, target **os.File, fn func()) string {
	t.Helper()
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("pipe: %v", err)
	}
	orig := *target
	*target = w

	out := make(chan string, 1)
	go func() {
		var buf bytes.Buffer
		_, _ = io.Copy(&buf, r)
		_ = r.Close()
		out <- buf.String()
	}()

	defer func() {
		*target = orig
		_ = w.Close()
	}()
	fn()
	*target = orig
	_ = w.Close()
	return <-out
}
