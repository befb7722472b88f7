package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	bicycleSchema   = "../../examples/bicycle/schema.yaml"
	bicycleSnapshot = "../../examples/bicycle/snapshot.yaml"
	bicycleID       = "3d0f9a56-7c1e-4b8a-9f25-1c6e2a7d4b03"
)

func runCLI(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var out, errOut bytes.Buffer
	code := run(args, &out, &errOut)
	return code, out.String(), errOut.String()
}

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestValidate(t *testing.T) {
	code, out, _ := runCLI(t, "validate", bicycleSchema)
	require.Equal(t, exitOK, code)
	assert.Contains(t, out, "3 templates, 2 traits, 5 operatives, 1 library instances")
	assert.NotContains(t, out, "unresolved required")
}

func TestValidate_Strict(t *testing.T) {
	path := writeTemp(t, "shelf.yaml", `apiVersion: schemagraph.bayleafwalker.dev/v1alpha1
kind: SchemaDocument
spec:
  traits:
  - name: readable
    methods:
    - name: pages
      returnType: int
  templates:
  - name: shelf
    slots:
    - name: books
      descriptor:
        traits: [readable]
      bounds: {kind: lowerBound, min: 1}
  operatives:
  - name: shelf
    rootTemplate: shelf
`)
	code, out, _ := runCLI(t, "validate", path)
	require.Equal(t, exitOK, code)
	assert.Contains(t, out, "unresolved required slot shelf.books")

	code, _, errOut := runCLI(t, "validate", "--strict", path)
	assert.Equal(t, exitSchemaInvalid, code)
	assert.Contains(t, errOut, errUnresolvedSlots.Error())
}

func TestValidate_Failures(t *testing.T) {
	invalid := writeTemp(t, "invalid.yaml", `apiVersion: schemagraph.bayleafwalker.dev/v1alpha1
kind: SchemaDocument
spec:
  operatives:
  - name: orphan
    rootTemplate: nowhere
`)
	tests := []struct {
		name string
		args []string
		want int
	}{
		{"missing file", []string{"validate", filepath.Join(t.TempDir(), "absent.yaml")}, exitIO},
		{"invalid document", []string{"validate", invalid}, exitSchemaInvalid},
		{"no arguments", []string{"validate"}, exitUsage},
		{"unknown command", []string{"frobnicate"}, exitUsage},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, _, errOut := runCLI(t, tt.args...)
			assert.Equal(t, tt.want, code)
			assert.True(t, strings.HasPrefix(errOut, "error: ") || strings.Contains(errOut, "\nerror: "), errOut)
		})
	}
}

func TestImport(t *testing.T) {
	code, out, _ := runCLI(t, "import", bicycleSchema, bicycleSnapshot)
	require.Equal(t, exitOK, code)
	assert.Equal(t, "imported 3 instances\n", out)
}

func TestImport_Failures(t *testing.T) {
	data, err := os.ReadFile(bicycleSnapshot)
	require.NoError(t, err)
	short := writeTemp(t, "short.yaml",
		strings.Replace(string(data), "    - 3d0f9a56-7c1e-4b8a-9f25-1c6e2a7d4b02\n", "", 1))
	badConfig := writeTemp(t, "config.yaml", "undo: 3\n")

	tests := []struct {
		name string
		args []string
		want int
	}{
		{"bicycle with one wheel", []string{"import", bicycleSchema, short}, exitImportFailed},
		{"missing snapshot", []string{"import", bicycleSchema, filepath.Join(t.TempDir(), "absent.yaml")}, exitIO},
		{"snapshot given as schema", []string{"import", bicycleSnapshot, bicycleSnapshot}, exitSchemaInvalid},
		{"invalid config", []string{"import", "--config", badConfig, bicycleSchema, bicycleSnapshot}, exitUsage},
		{"missing config", []string{"import", "--config", filepath.Join(t.TempDir(), "absent.yaml"), bicycleSchema, bicycleSnapshot}, exitIO},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, _, _ := runCLI(t, tt.args...)
			assert.Equal(t, tt.want, code)
		})
	}
}

func TestImport_MetricsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "metrics.prom")
	code, _, _ := runCLI(t, "import", "--metrics-file", path, bicycleSchema, bicycleSnapshot)
	require.Equal(t, exitOK, code)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "schemagraph_engine_commits_total 1")
	assert.Contains(t, string(data), "schemagraph_engine_instances 3")
}

func TestDigest(t *testing.T) {
	code, out, _ := runCLI(t, "digest", bicycleSchema, bicycleSnapshot, bicycleID)
	require.Equal(t, exitOK, code)
	for _, want := range []string{
		"instance: " + bicycleID,
		"operative: steel-bicycle",
		"fulfilled: true",
		"lockedBy: steel-bicycle",
		"hostedBy: steel-bicycle",
	} {
		assert.Contains(t, out, want)
	}

	code, out, _ = runCLI(t, "digest", bicycleSchema, bicycleSnapshot)
	require.Equal(t, exitOK, code)
	assert.Equal(t, 3, strings.Count(out, "- instance: "))

	code, _, _ = runCLI(t, "digest", bicycleSchema, bicycleSnapshot, "not-a-uid")
	assert.Equal(t, exitUsage, code)
}

func TestNormalize(t *testing.T) {
	first := filepath.Join(t.TempDir(), "first.yaml")
	code, _, _ := runCLI(t, "normalize", "-o", first, bicycleSchema, bicycleSnapshot)
	require.Equal(t, exitOK, code)

	code, out, _ := runCLI(t, "normalize", bicycleSchema, first)
	require.Equal(t, exitOK, code)
	data, err := os.ReadFile(first)
	require.NoError(t, err)
	assert.Equal(t, string(data), out, "normalizing is idempotent")

	code, out, _ = runCLI(t, "normalize", "--format", "json", bicycleSchema, bicycleSnapshot)
	require.Equal(t, exitOK, code)
	assert.True(t, strings.HasPrefix(out, "{"), out)

	code, _, _ = runCLI(t, "normalize", "--format", "toml", bicycleSchema, bicycleSnapshot)
	assert.Equal(t, exitUsage, code)
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, exitOK, exitCode(nil))
	assert.Nil(t, withCode(exitIO, nil))
	assert.Equal(t, exitImportFailed, exitCode(withCode(exitImportFailed, os.ErrClosed)))
	assert.Equal(t, exitUsage, exitCode(os.ErrClosed))
}
