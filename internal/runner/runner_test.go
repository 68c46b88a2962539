package runner

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// writeStubBinary writes an executable shell script to dir and returns its path.
func writeStubBinary(t *testing.T, dir, name, script string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+script), 0o755); err != nil { //nolint:gosec // test binary must be executable
		t.Fatalf("write stub %s: %v", name, err)
	}
	return path
}

func TestNew(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		binary     string
		kubeconfig string
		wantErr    bool
	}{
		"valid":            {binary: "/usr/bin/kubectl", kubeconfig: "/tmp/kubeconfig"},
		"empty binary":     {kubeconfig: "/tmp/kubeconfig", wantErr: true},
		"empty kubeconfig": {binary: "/usr/bin/kubectl", wantErr: true},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			_, err := New(tc.binary, tc.kubeconfig, nil)
			if tc.wantErr && err == nil {
				t.Error("expected error, got nil")
			}
			if !tc.wantErr && err != nil {
				t.Errorf("New() error: %v", err)
			}
		})
	}
}

func TestRunner_Run(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("captures stdout", func(t *testing.T) {
		t.Parallel()

		bin := writeStubBinary(t, t.TempDir(), "kubectl", `echo "Client Version: v1.28.9"`)
		r, err := New(bin, "/tmp/kubeconfig", nil)
		if err != nil {
			t.Fatalf("New() error: %v", err)
		}

		out, err := r.Run(ctx, "version")
		if err != nil {
			t.Fatalf("Run() error: %v", err)
		}
		if !strings.Contains(out, "v1.28.9") {
			t.Errorf("output = %q, want version string", out)
		}
	})

	t.Run("injects KUBECONFIG", func(t *testing.T) {
		t.Parallel()

		bin := writeStubBinary(t, t.TempDir(), "kubectl", `echo "$KUBECONFIG"`)
		r, err := New(bin, "/clusters/t1/kubeconfig", nil)
		if err != nil {
			t.Fatalf("New() error: %v", err)
		}

		out, err := r.Run(ctx)
		if err != nil {
			t.Fatalf("Run() error: %v", err)
		}
		if strings.TrimSpace(out) != "/clusters/t1/kubeconfig" {
			t.Errorf("KUBECONFIG seen by subprocess = %q, want %q", strings.TrimSpace(out), "/clusters/t1/kubeconfig")
		}
	})

	t.Run("non-zero exit yields ExitError", func(t *testing.T) {
		t.Parallel()

		bin := writeStubBinary(t, t.TempDir(), "kubectl",
			`echo "partial output"; echo "the server refused" >&2; exit 4`)
		r, err := New(bin, "/tmp/kubeconfig", nil)
		if err != nil {
			t.Fatalf("New() error: %v", err)
		}

		_, err = r.Run(ctx, "get", "pods")
		var exitErr *ExitError
		if !errors.As(err, &exitErr) {
			t.Fatalf("error = %v (%T), want *ExitError", err, err)
		}
		if exitErr.Code != 4 {
			t.Errorf("Code = %d, want 4", exitErr.Code)
		}
		if !strings.Contains(exitErr.Output, "partial output") {
			t.Errorf("Output = %q, want captured stdout", exitErr.Output)
		}
		if !strings.Contains(exitErr.Stderr, "the server refused") {
			t.Errorf("Stderr = %q, want captured stderr", exitErr.Stderr)
		}
		if !strings.Contains(exitErr.Error(), "exit status 4") {
			t.Errorf("Error() = %q, want exit status", exitErr.Error())
		}
	})

	t.Run("missing binary", func(t *testing.T) {
		t.Parallel()

		r, err := New(filepath.Join(t.TempDir(), "does-not-exist"), "/tmp/kubeconfig", nil)
		if err != nil {
			t.Fatalf("New() error: %v", err)
		}

		_, err = r.Run(ctx, "version")
		if err == nil {
			t.Fatal("expected error for missing binary")
		}
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			t.Errorf("error = *ExitError, want plain start failure")
		}
	})
}
