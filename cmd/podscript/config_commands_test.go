package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"podscript/internal/testsupport"
)

func TestConfigInitAndValidate(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"config", "validate"}, env.configPath)
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, out, "Config path: "+env.configPath)
	requireContains(t, out, "Outline model: openai-compatible/outline-model")
	requireContains(t, out, "Configuration valid")

	target := filepath.Join(t.TempDir(), "nested", "config.toml")
	out, _, err = runCLI(t, []string{"config", "init", "--path", target}, "")
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected config file at %s: %v", target, err)
	}

	if _, _, err := runCLI(t, []string{"config", "init", "--path", target}, ""); err == nil || !strings.Contains(err.Error(), "--overwrite") {
		t.Fatalf("expected overwrite guard, got %v", err)
	}
	if _, _, err := runCLI(t, []string{"config", "init", "--path", target, "--overwrite"}, ""); err != nil {
		t.Fatalf("config init --overwrite: %v", err)
	}

	out, _, err = runCLI(t, []string{"config", "validate"}, target)
	if err != nil {
		t.Fatalf("validate sample: %v", err)
	}
	requireContains(t, out, "Transcript model: anthropic/claude-3-5-sonnet-latest")
}

func TestConfigValidateReportsErrors(t *testing.T) {
	env := setupCLITestEnv(t)
	bad := testsupport.WriteFile(t, filepath.Join(env.baseDir, "bad.toml"), "[generation]\nsegment_failure_policy = \"retry\"\n")

	_, _, err := runCLI(t, []string{"config", "validate"}, bad)
	if err == nil || !strings.Contains(err.Error(), "segment_failure_policy") {
		t.Fatalf("expected policy error, got %v", err)
	}

	// Other commands fail the same way before doing any work.
	if _, _, err := runCLI(t, []string{"episodes", "list"}, bad); err == nil {
		t.Fatal("expected episodes list to fail on invalid config")
	}
}
