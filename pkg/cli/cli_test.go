package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"
)

func runCLI(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func writeNote(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "today.md")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

const planJSON = `{
	"action": "propose_sequential_edits",
	"explanation": "reorder",
	"edits": [
		{"edit_type": "delete_context", "target_context": "A\n"},
		{"edit_type": "append_at_end", "target_context": null, "content_fragment": "C"}
	]
}`

func TestPreviewLeavesFileUntouched(t *testing.T) {
	path := writeNote(t, "A\nB")

	out, err := runCLI(t, planJSON, "preview", "--file", path)
	if err != nil {
		t.Fatalf("preview error = %v", err)
	}
	var got struct {
		Preview  string         `json:"preview"`
		Proposal map[string]any `json:"proposal"`
	}
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("bad output %q: %v", out, err)
	}
	if got.Preview != "B\nC" || got.Proposal["action"] != "propose_sequential_edits" {
		t.Errorf("preview output = %+v", got)
	}

	data, _ := os.ReadFile(path)
	if string(data) != "A\nB" {
		t.Errorf("preview wrote the file: %q", data)
	}
}

func TestPreviewYAML(t *testing.T) {
	path := writeNote(t, "A\nB")
	proposalPath := filepath.Join(t.TempDir(), "edit.json")
	if err := os.WriteFile(proposalPath, []byte(planJSON), 0644); err != nil {
		t.Fatal(err)
	}

	out, err := runCLI(t, "", "--format", "yaml", "preview", "--file", path, "--proposal", proposalPath)
	if err != nil {
		t.Fatalf("preview error = %v", err)
	}
	var got map[string]any
	if err := yaml.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("bad yaml %q: %v", out, err)
	}
	if got["preview"] != "B\nC" {
		t.Errorf("preview = %v", got["preview"])
	}
}

func TestApplyWritesFile(t *testing.T) {
	path := writeNote(t, "A\nB")

	out, err := runCLI(t, planJSON, "apply", "--file", path)
	if err != nil {
		t.Fatalf("apply error = %v", err)
	}
	if !strings.Contains(out, `"new_content":"B\nC"`) {
		t.Errorf("apply output = %s", out)
	}
	data, _ := os.ReadFile(path)
	if string(data) != "B\nC" {
		t.Errorf("file = %q", data)
	}
}

func TestApplyRejectsBadProposal(t *testing.T) {
	path := writeNote(t, "X")

	tests := []struct {
		name     string
		proposal string
	}{
		{"invalid json", `{`},
		{"missing anchor", `{"action":"propose_targeted_edit","explanation":"","edit_type":"replace_context","target_context":"Y","content_fragment":"Z"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := runCLI(t, tt.proposal, "apply", "--file", path); err == nil {
				t.Fatal("expected error")
			}
			data, _ := os.ReadFile(path)
			if string(data) != "X" {
				t.Errorf("file changed to %q", data)
			}
		})
	}
}

func TestApplyMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nope.md")
	_, err := runCLI(t, `{"action":"propose_full_content_replacement","explanation":"","new_full_content":"x"}`, "apply", "--file", path)
	if err == nil || !strings.Contains(err.Error(), "does not exist") {
		t.Fatalf("error = %v", err)
	}
}
