package main

import (
	"bytes"
	"encoding/json"
	"io"
	"log"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/awantoch/loanscore/constants"
	"github.com/awantoch/loanscore/testutil"
	"github.com/awantoch/loanscore/utils"
)

func captureOutput(f func()) string {
	var buf bytes.Buffer
	utils.SetUserOutput(&buf)
	defer utils.SetUserOutput(os.Stdout)
	f()
	return buf.String()
}

func captureStderrExit(f func()) (string, int) {
	origStderr := os.Stderr
	origExit := exit
	r, w, _ := os.Pipe()
	os.Stderr = w
	utils.SetInternalOutput(w)
	var buf bytes.Buffer
	exitCode := 0
	exit = func(code int) {
		exitCode = code
		panic("exit")
	}
	func() {
		defer func() {
			if err := recover(); err != nil && err != "exit" {
				log.Printf("panic occurred: %v", err)
			}
		}()
		f()
	}()
	w.Close()
	if _, err := io.Copy(&buf, r); err != nil {
		log.Printf("io.Copy failed: %v", err)
	}
	os.Stderr = origStderr
	utils.SetInternalOutput(origStderr)
	exit = origExit
	return buf.String(), exitCode
}

// run executes the root command with args against an isolated config path.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv(constants.EnvConfigPath, filepath.Join(t.TempDir(), "absent.json"))
	t.Setenv(constants.EnvArtifact, "")
	t.Setenv(constants.EnvDatabaseURL, "")
	t.Setenv(constants.EnvStorage, "")
	t.Setenv(constants.EnvEventDriver, "")
	var err error
	out := captureOutput(func() {
		cmd := NewRootCmd()
		cmd.SetArgs(args)
		err = cmd.Execute()
	})
	return out, err
}

func decodePrediction(t *testing.T, out string) map[string]any {
	t.Helper()
	var got map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &got), out)
	return got
}

func TestPredictFlags(t *testing.T) {
	artifact := testutil.StackedArtifact(t, false)
	out, err := run(t, "predict", "--artifact", artifact,
		"--bank_transaction_average", "50000",
		"--social_media_screentime", "3.5",
		"--ecommerce_screen_time", "1.2",
		"--cibil_score", "750",
		"--geographical_movement", "10",
		"--social_media_reach", "2000",
	)
	require.NoError(t, err)
	got := decodePrediction(t, out)
	assert.Equal(t, float64(1), got["prediction"])
	assert.InDelta(t, 0.8639, got["approval_probability"], 1e-3)
}

func TestPredictJSON(t *testing.T) {
	artifact := testutil.StackedArtifact(t, false)
	body := `{"bank_transaction_average":10000,"social_media_screentime":6,"ecommerce_screen_time":4,` +
		`"cibil_score":500,"geographical_movement":20,"social_media_reach":300}`
	out, err := run(t, "predict", "--artifact", artifact, "--json", body)
	require.NoError(t, err)
	got := decodePrediction(t, out)
	assert.Equal(t, float64(0), got["prediction"])
	assert.InDelta(t, 0.1445, got["approval_probability"], 1e-3)
}

func TestPredictFile(t *testing.T) {
	artifact := testutil.StackedArtifact(t, false)
	body, err := json.Marshal(testutil.ApprovedInput())
	require.NoError(t, err)
	path := testutil.WriteArtifact(t, "request.json", body)

	out, err := run(t, "predict", "--artifact", artifact, "-f", path)
	require.NoError(t, err)
	assert.Equal(t, float64(1), decodePrediction(t, out)["prediction"])
}

func TestPredictInvalidInput(t *testing.T) {
	artifact := testutil.StackedArtifact(t, false)
	_, err := run(t, "predict", "--artifact", artifact, "--cibil_score", "high")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid input")
}

func TestPredictMissingArtifact(t *testing.T) {
	body, err := json.Marshal(testutil.ApprovedInput())
	require.NoError(t, err)
	_, err = run(t, "predict", "--artifact", filepath.Join(t.TempDir(), "missing.json"), "--json", string(body))
	assert.Error(t, err)
}

func TestSchemaCommand(t *testing.T) {
	out, err := run(t, "schema")
	require.NoError(t, err)
	assert.Contains(t, out, `"field": "cibil_score"`)
	assert.Contains(t, out, `"column": "CIBIL score"`)

	out, err = run(t, "schema", "--json-schema")
	require.NoError(t, err)
	assert.Contains(t, out, `"required"`)
}

func TestArtifactCommands(t *testing.T) {
	artifact := testutil.StackedArtifact(t, true)

	out, err := run(t, "artifact", "validate", artifact)
	require.NoError(t, err)
	assert.Contains(t, out, "valid pipeline artifact")

	out, err = run(t, "artifact", "inspect", artifact)
	require.NoError(t, err)
	assert.Contains(t, out, `"estimator": "stacking`)
	assert.Contains(t, out, constants.PipelineFormat)

	broken := testutil.WriteArtifact(t, "broken.json", []byte(`{"format":"pickle"}`))
	_, err = run(t, "artifact", "validate", broken)
	assert.Error(t, err)
}

func TestArtifactFromConfigFallback(t *testing.T) {
	artifact := testutil.StackedArtifact(t, false)
	out, err := run(t, "--artifact", artifact, "artifact", "validate")
	require.NoError(t, err)
	assert.Contains(t, out, artifact)
}

func TestPredictTextOutput(t *testing.T) {
	artifact := testutil.StackedArtifact(t, false)
	body, err := json.Marshal(testutil.ApprovedInput())
	require.NoError(t, err)

	out, err := run(t, "predict", "--artifact", artifact, "--json", string(body), "-o", "text")
	require.NoError(t, err)
	assert.Contains(t, out, "APPROVED (prediction=1, approval probability 86.4%)")

	out, err = run(t, "predict", "--artifact", artifact, "--json", string(body), "--template", "p={{ approval_probability|percent }}")
	require.NoError(t, err)
	assert.Equal(t, "p=86.4%\n", out)

	_, err = run(t, "predict", "--artifact", artifact, "--json", string(body), "-o", "xml")
	assert.ErrorContains(t, err, "unsupported output format")
}

func TestArtifactInspectText(t *testing.T) {
	artifact := testutil.StackedArtifact(t, true)
	out, err := run(t, "artifact", "inspect", artifact, "-o", "text")
	require.NoError(t, err)
	assert.Contains(t, out, "Pipeline:  stacked_ensemble_pipeline")
	assert.Contains(t, out, "Steps:     simple_imputer -> standard_scaler")
}

func TestDecisionsCommands(t *testing.T) {
	artifact := testutil.StackedArtifact(t, false)
	dsn := filepath.Join(t.TempDir(), "decisions.db")
	cfgPath := testutil.WriteArtifact(t, "loanscore.config.json",
		[]byte(`{"artifact":{"url":"`+artifact+`"},"storage":{"driver":"sqlite","dsn":"`+dsn+`"}}`))

	body, err := json.Marshal(testutil.RejectedInput())
	require.NoError(t, err)
	_, err = run(t, "--config", cfgPath, "predict", "--json", string(body))
	require.NoError(t, err)

	out, err := run(t, "--config", cfgPath, "decisions", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "REJECTED")
	assert.Contains(t, out, "cli")

	out, err = run(t, "--config", cfgPath, "decisions", "list", "-o", "json")
	require.NoError(t, err)
	var list []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &list), out)
	require.Len(t, list, 1)
	id, _ := list[0]["id"].(string)

	out, err = run(t, "--config", cfgPath, "decisions", "get", id)
	require.NoError(t, err)
	assert.Contains(t, out, id)

	_, err = run(t, "--config", cfgPath, "decisions", "get", "not-a-uuid")
	assert.Error(t, err)

	out, err = run(t, "--config", cfgPath, "decisions", "delete", id)
	require.NoError(t, err)
	assert.Contains(t, out, "Deleted decision "+id)

	_, err = run(t, "--config", cfgPath, "decisions", "get", id)
	assert.ErrorContains(t, err, "not found")
	_, err = run(t, "--config", cfgPath, "decisions", "delete", id)
	assert.ErrorContains(t, err, "not found")
}

func TestDecisionsDisabled(t *testing.T) {
	_, err := run(t, "decisions", "list")
	assert.ErrorContains(t, err, "disabled")
}

func TestMainExitsOnError(t *testing.T) {
	t.Setenv(constants.EnvConfigPath, filepath.Join(t.TempDir(), "absent.json"))
	origArgs := os.Args
	defer func() { os.Args = origArgs }()
	os.Args = []string{"loanscore", "artifact", "validate", filepath.Join(t.TempDir(), "missing.json")}

	_, code := captureStderrExit(main)
	assert.Equal(t, 1, code)
}
