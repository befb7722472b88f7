package e2e

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"
)

func TestE2ESmoke_Bicycle(t *testing.T) {
	if os.Getenv("SCHEMAGRAPH_E2E") == "" {
		t.Skip("set SCHEMAGRAPH_E2E=1 to build and run the CLI")
	}
	if _, err := exec.LookPath("go"); err != nil {
		t.Skip("go not found in PATH")
	}

	repoRoot := findRepoRoot(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	bin := filepath.Join(t.TempDir(), "schemagraph")
	runOrFail(t, ctx, repoRoot, nil, "go", "build", "-o", bin, "./cmd/schemagraph")

	schemaPath := filepath.Join(repoRoot, "examples", "bicycle", "schema.yaml")
	snapshotPath := filepath.Join(repoRoot, "examples", "bicycle", "snapshot.yaml")

	out := runOrFail(t, ctx, repoRoot, nil, bin, "validate", "--strict", schemaPath)
	if !strings.Contains(out, "3 templates") {
		t.Fatalf("unexpected validate output:\n%s", out)
	}

	metricsPath := filepath.Join(t.TempDir(), "metrics.prom")
	out = runOrFail(t, ctx, repoRoot, nil, bin, "import", "--metrics-file", metricsPath, schemaPath, snapshotPath)
	if !strings.Contains(out, "imported 3 instances") {
		t.Fatalf("unexpected import output:\n%s", out)
	}
	metrics, err := os.ReadFile(metricsPath)
	if err != nil {
		t.Fatalf("read metrics: %v", err)
	}
	if !strings.Contains(string(metrics), "schemagraph_engine_commits_total 1") {
		t.Fatalf("metrics file lacks the import commit:\n%s", metrics)
	}

	normalized := filepath.Join(t.TempDir(), "normalized.yaml")
	runOrFail(t, ctx, repoRoot, nil, bin, "normalize", "-o", normalized, schemaPath, snapshotPath)
	out = runOrFail(t, ctx, repoRoot, nil, bin, "digest", schemaPath, normalized)
	if strings.Count(out, "fulfilled: true") != 3 {
		t.Fatalf("expected three fulfilled digests:\n%s", out)
	}

	// One wheel short of a bicycle.
	data, err := os.ReadFile(snapshotPath)
	if err != nil {
		t.Fatalf("read snapshot: %v", err)
	}
	broken := filepath.Join(t.TempDir(), "broken.yaml")
	trimmed := strings.Replace(string(data), "    - 3d0f9a56-7c1e-4b8a-9f25-1c6e2a7d4b02\n", "", 1)
	if err := os.WriteFile(broken, []byte(trimmed), 0o600); err != nil {
		t.Fatalf("write snapshot: %v", err)
	}
	if code := runExitCode(t, ctx, repoRoot, bin, "import", schemaPath, broken); code != 3 {
		t.Fatalf("import of broken snapshot exited %d, want 3", code)
	}
	if code := runExitCode(t, ctx, repoRoot, bin, "validate", snapshotPath); code != 2 {
		t.Fatalf("validate of a snapshot exited %d, want 2", code)
	}
	if code := runExitCode(t, ctx, repoRoot, bin, "validate", filepath.Join(t.TempDir(), "absent.yaml")); code != 4 {
		t.Fatalf("validate of a missing file exited %d, want 4", code)
	}
}

func runExitCode(t *testing.T, ctx context.Context, dir, name string, args ...string) int {
	t.Helper()

	out, err := runOut(ctx, dir, nil, name, args...)
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		t.Fatalf("%s %s: %v\n%s", name, strings.Join(args, " "), err, out)
	}
	return exitErr.ExitCode()
}

func findRepoRoot(t *testing.T) string {
	t.Helper()

	_, file, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("runtime.Caller failed")
	}
	// e2e/smoke_test.go -> repo root
	return filepath.Clean(filepath.Join(filepath.Dir(file), ".."))
}

func runOrFail(t *testing.T, ctx context.Context, dir string, env []string, name string, args ...string) string {
	t.Helper()

	out, err := runOut(ctx, dir, env, name, args...)
	if err != nil {
		t.Fatalf("%s %s failed: %v\n%s", name, strings.Join(args, " "), err, out)
	}
	return out
}

func runOut(ctx context.Context, dir string, env []string, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	if env != nil {
		cmd.Env = env
	}
	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = &buf
	err := cmd.Run()
	return buf.String(), err
}
