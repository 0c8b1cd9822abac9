package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func executeTest(t *testing.T, format string, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewTestCommand(testOptions(format))
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

// scenarioWorkspace copies the shared tables and the named scenarios into
// a temporary directory laid out like testdata, without golden files.
func scenarioWorkspace(t *testing.T, scenarios ...string) string {
	t.Helper()
	dir := t.TempDir()
	for _, name := range []string{"auth.yaml", "counter.yaml"} {
		copyFile(t, testdataPath(t, "tables", name), filepath.Join(dir, "tables", name))
	}
	for _, name := range scenarios {
		copyFile(t, testdataPath(t, "scenarios", name+".yaml"), filepath.Join(dir, "scenarios", name+".yaml"))
	}
	return filepath.Join(dir, "scenarios")
}

func TestTestCommandMissingArgs(t *testing.T) {
	_, err := executeTest(t, "text")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg")
}

func TestTestCommandNonExistentScenariosDir(t *testing.T) {
	_, err := executeTest(t, "text", "/nonexistent/scenarios")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "scenarios directory not found")
}

func TestTestCommandEmptyScenariosDir(t *testing.T) {
	out, err := executeTest(t, "text", t.TempDir())
	require.NoError(t, err)
	assert.Contains(t, out, "No scenarios found")
}

func TestTestCommandEmptyScenariosDirJSON(t *testing.T) {
	out, err := executeTest(t, "json", t.TempDir())
	require.NoError(t, err)

	var resp struct {
		Status string     `json:"status"`
		Data   TestResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 0, resp.Data.Total)
	assert.NotNil(t, resp.Data.Scenarios)
}

func TestTestCommandRunsRepositoryScenarios(t *testing.T) {
	out, err := executeTest(t, "text", testdataPath(t, "scenarios"))
	require.NoError(t, err, out)

	assert.Contains(t, out, "✓ login")
	assert.Contains(t, out, "✓ force_logout")
	assert.Contains(t, out, "✓ counter")
	assert.Contains(t, out, "✓ interrupt")
	assert.Contains(t, out, "Test Summary: 4 passed, 0 failed, 4 total")
}

func TestTestCommandFilter(t *testing.T) {
	out, err := executeTest(t, "json", testdataPath(t, "scenarios"), "--filter", "log*")
	require.NoError(t, err)

	var resp struct {
		Data TestResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Equal(t, 1, resp.Data.Total)
	assert.Equal(t, "login", resp.Data.Scenarios[0].Name)
	assert.True(t, resp.Data.Scenarios[0].Pass)
}

func TestTestCommandInvalidFilter(t *testing.T) {
	_, err := executeTest(t, "text", t.TempDir(), "--filter", "[")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestTestCommandUpdateWritesGolden(t *testing.T) {
	dir := scenarioWorkspace(t, "login", "counter")

	out, err := executeTest(t, "text", dir, "--update")
	require.NoError(t, err, out)
	assert.Contains(t, out, "✓ login (golden updated)")

	for _, name := range []string{"login", "counter"} {
		got, err := os.ReadFile(filepath.Join(dir, "golden", name+".golden"))
		require.NoError(t, err)
		want, err := os.ReadFile(testdataPath(t, "scenarios", "golden", name+".golden"))
		require.NoError(t, err)
		assert.Equal(t, string(want), string(got))
	}

	// A second run compares against what was written.
	out, err = executeTest(t, "text", dir)
	require.NoError(t, err, out)
	assert.Contains(t, out, "2 passed, 0 failed")
}

func TestTestCommandGoldenMismatch(t *testing.T) {
	dir := scenarioWorkspace(t, "login")
	writeFile(t, dir, filepath.Join("golden", "login.golden"), `{"trace":[]}`)

	out, err := executeTest(t, "text", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ login")
	assert.Contains(t, out, "trace does not match golden file")
}

func TestTestCommandFailingAssertion(t *testing.T) {
	dir := scenarioWorkspace(t)
	writeFile(t, dir, "wrong.yaml", `
name: wrong
description: "Expects a state the run never reaches"
machine: ../tables/auth.yaml
steps:
  - send: Login
assertions:
  - type: final_state
    state: LoggedOut
`)

	out, err := executeTest(t, "json", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp struct {
		Status string     `json:"status"`
		Data   TestResult `json:"data"`
		Error  *CLIError  `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, 1, resp.Data.Failed)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeTestFailed, resp.Error.Code)
	assert.NotEmpty(t, resp.Data.Scenarios[0].Errors)
}

func TestTestCommandLoadError(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "broken.yaml", "name: broken\n")

	out, err := executeTest(t, "text", dir)
	require.Error(t, err)
	assert.Contains(t, out, "✗ broken.yaml")
	assert.Contains(t, out, "failed to load scenario")
}

func TestFindScenarioFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.yaml", "")
	writeFile(t, dir, "b.yml", "")
	writeFile(t, dir, "notes.txt", "")
	writeFile(t, dir, filepath.Join("nested", "c.yaml"), "")
	writeFile(t, dir, filepath.Join("golden", "d.yaml"), "")

	files, err := findScenarioFiles(dir, "")
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "a.yaml"),
		filepath.Join(dir, "b.yml"),
		filepath.Join(dir, "nested", "c.yaml"),
	}, files)

	files, err = findScenarioFiles(dir, "b")
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "b.yml")}, files)
}

func TestGoldenFilePath(t *testing.T) {
	assert.Equal(t,
		filepath.Join("scenarios", "golden", "login.golden"),
		goldenFilePath(filepath.Join("scenarios", "login.yaml")))
}
