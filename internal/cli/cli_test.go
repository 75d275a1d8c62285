package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"gopkg.in/yaml.v3"
)

type fakeManager struct {
	generateResult Result
	sendResult     Result
	entries        []ProjectEntry
	showErr        error

	gotProject string
	gotVID     string
	gotSet     []string
}

func (f *fakeManager) GenerateMetadata(_ context.Context, projectName, vid string) Result {
	f.gotProject, f.gotVID = projectName, vid
	return f.generateResult
}

func (f *fakeManager) SendMetadata(_ context.Context, projectName string) Result {
	f.gotProject = projectName
	return f.sendResult
}

func (f *fakeManager) SetProject(_ context.Context, projectName, key, value string) error {
	f.gotSet = []string{projectName, key, value}
	return nil
}

func (f *fakeManager) ShowProject(_ context.Context, projectName string) ([]ProjectEntry, error) {
	f.gotProject = projectName
	return f.entries, f.showErr
}

func (f *fakeManager) Version() VersionInfo {
	return VersionInfo{Version: "v1.2.3", Commit: "abc123", BuildDate: "2026-10-01", GoVersion: "go1.24.4", Platform: "linux/amd64"}
}

func runCLI(t *testing.T, args []string, manager Manager) (int, string, string) {
	t.Helper()
	var stdout bytes.Buffer
	var stderr bytes.Buffer
	exitCode := Execute(context.Background(), args, manager, &stdout, &stderr)
	return exitCode, stdout.String(), stderr.String()
}

func TestUsageErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{name: "generate without vid", args: []string{"generate-metadata", "--name", "p1"}},
		{name: "generate without name", args: []string{"generate-metadata", "--vid", "1234"}},
		{name: "send without name", args: []string{"send-metadata"}},
		{name: "unknown flag", args: []string{"send-metadata", "--nope"}},
		{name: "bad output format", args: []string{"version", "-o", "xml"}},
		{name: "project set missing value", args: []string{"project", "set", "p1", "visit_id"}},
		{name: "unknown command", args: []string{"bogus"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exitCode, _, stderr := runCLI(t, tt.args, &fakeManager{})
			if exitCode != ExitInvalidUsage {
				t.Fatalf("expected exit code %d, got %d", ExitInvalidUsage, exitCode)
			}
			if !strings.HasPrefix(stderr, "Error: ") {
				t.Errorf("stderr = %q", stderr)
			}
		})
	}
}

func TestGenerateMetadataText(t *testing.T) {
	manager := &fakeManager{generateResult: Result{Success: true, Summary: "Metadata of visit 1234 written to metadata/project_1234.json"}}

	exitCode, stdout, _ := runCLI(t, []string{"generate-metadata", "--name", "p1", "--vid", "1234"}, manager)
	if exitCode != ExitSuccess {
		t.Fatalf("expected exit code %d, got %d", ExitSuccess, exitCode)
	}
	if manager.gotProject != "p1" || manager.gotVID != "1234" {
		t.Errorf("manager called with %q, %q", manager.gotProject, manager.gotVID)
	}
	if !strings.Contains(stdout, "project_1234.json") {
		t.Errorf("stdout = %q", stdout)
	}
}

func TestSendMetadataJSON(t *testing.T) {
	manager := &fakeManager{sendResult: Result{
		Success: true,
		Info:    map[string]any{"records_created": 4, "failed_operations": []string{`sample "x": boom`}},
		Summary: "ignored in json",
	}}

	exitCode, stdout, _ := runCLI(t, []string{"send-metadata", "--name", "p1", "-o", "json"}, manager)
	if exitCode != ExitSuccess {
		t.Fatalf("expected exit code %d, got %d", ExitSuccess, exitCode)
	}

	var decoded struct {
		Success bool           `json:"success"`
		Info    map[string]any `json:"info"`
	}
	if err := json.Unmarshal([]byte(stdout), &decoded); err != nil {
		t.Fatalf("failed to decode %q: %v", stdout, err)
	}
	if !decoded.Success || decoded.Info["records_created"] != float64(4) {
		t.Errorf("decoded = %+v", decoded)
	}
	if strings.Contains(stdout, "ignored in json") {
		t.Error("summary leaked into JSON output")
	}
}

func TestSendMetadataFailure(t *testing.T) {
	failed := Result{Success: false, Info: "registry authentication failed: invalid_client", Summary: "registry authentication failed: invalid_client"}

	t.Run("text", func(t *testing.T) {
		exitCode, stdout, stderr := runCLI(t, []string{"send-metadata", "--name", "p1"}, &fakeManager{sendResult: failed})
		if exitCode != ExitRuntimeError {
			t.Fatalf("expected exit code %d, got %d", ExitRuntimeError, exitCode)
		}
		if stdout != "" {
			t.Errorf("stdout = %q, want empty", stdout)
		}
		if stderr != "Error: registry authentication failed: invalid_client\n" {
			t.Errorf("stderr = %q", stderr)
		}
	})

	t.Run("yaml", func(t *testing.T) {
		exitCode, stdout, stderr := runCLI(t, []string{"send-metadata", "--name", "p1", "--output", "yaml"}, &fakeManager{sendResult: failed})
		if exitCode != ExitRuntimeError {
			t.Fatalf("expected exit code %d, got %d", ExitRuntimeError, exitCode)
		}
		if stderr != "" {
			t.Errorf("stderr = %q, want empty", stderr)
		}

		var decoded map[string]any
		if err := yaml.Unmarshal([]byte(stdout), &decoded); err != nil {
			t.Fatalf("failed to decode %q: %v", stdout, err)
		}
		if decoded["success"] != false || decoded["info"] != "registry authentication failed: invalid_client" {
			t.Errorf("decoded = %v", decoded)
		}
	})
}

func TestProjectCommands(t *testing.T) {
	updated := time.Date(2026, 10, 19, 8, 30, 0, 0, time.UTC)
	manager := &fakeManager{entries: []ProjectEntry{
		{Key: "metadata_path", Value: "metadata/project_1234.json", UpdatedAt: updated},
		{Key: "visit_id", Value: "1234", UpdatedAt: updated},
	}}

	exitCode, stdout, _ := runCLI(t, []string{"project", "set", "p1", "visit_id", "1234"}, manager)
	if exitCode != ExitSuccess {
		t.Fatalf("expected exit code %d, got %d", ExitSuccess, exitCode)
	}
	if strings.Join(manager.gotSet, ",") != "p1,visit_id,1234" {
		t.Errorf("SetProject called with %v", manager.gotSet)
	}
	if !strings.Contains(stdout, `"visit_id" = "1234"`) {
		t.Errorf("stdout = %q", stdout)
	}

	exitCode, stdout, _ = runCLI(t, []string{"project", "show", "p1"}, manager)
	if exitCode != ExitSuccess {
		t.Fatalf("expected exit code %d, got %d", ExitSuccess, exitCode)
	}
	lines := strings.Split(strings.TrimSpace(stdout), "\n")
	if len(lines) != 3 || !strings.HasPrefix(lines[0], "KEY") || !strings.HasPrefix(lines[2], "visit_id") {
		t.Errorf("table = %q", stdout)
	}

	exitCode, stdout, _ = runCLI(t, []string{"project", "show", "p1", "-o", "json"}, manager)
	if exitCode != ExitSuccess {
		t.Fatalf("expected exit code %d, got %d", ExitSuccess, exitCode)
	}
	var entries []ProjectEntry
	if err := json.Unmarshal([]byte(stdout), &entries); err != nil {
		t.Fatalf("failed to decode %q: %v", stdout, err)
	}
	if len(entries) != 2 || entries[1].Value != "1234" {
		t.Errorf("entries = %+v", entries)
	}
}

func TestProjectShowError(t *testing.T) {
	manager := &fakeManager{showErr: errors.New("project \"p9\" not found")}

	exitCode, _, stderr := runCLI(t, []string{"project", "show", "p9"}, manager)
	if exitCode != ExitRuntimeError {
		t.Fatalf("expected exit code %d, got %d", ExitRuntimeError, exitCode)
	}
	if !strings.Contains(stderr, "not found") {
		t.Errorf("stderr = %q", stderr)
	}
}

func TestVersionCommand(t *testing.T) {
	exitCode, stdout, _ := runCLI(t, []string{"version"}, &fakeManager{})
	if exitCode != ExitSuccess {
		t.Fatalf("expected exit code %d, got %d", ExitSuccess, exitCode)
	}
	if !strings.HasPrefix(stdout, "nmrcerm v1.2.3 (commit abc123") {
		t.Errorf("stdout = %q", stdout)
	}

	_, stdout, _ = runCLI(t, []string{"version", "-o", "yaml"}, &fakeManager{})
	if !strings.Contains(stdout, "version: v1.2.3\n") || !strings.Contains(stdout, "go_version: go1.24.4\n") {
		t.Errorf("yaml = %q", stdout)
	}
}
