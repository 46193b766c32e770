package cli

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/goccy/go-json"

	"adventure-editor/store"
)

var sampleFixture = filepath.Join("..", "fixtures", "testdata", "valid", "adventure.sample.json")

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	RootCmd.SetOut(&out)
	RootCmd.SetErr(&out)
	RootCmd.SetArgs(args)
	err := RootCmd.Execute()
	return out.String(), err
}

func TestValidateCommand(t *testing.T) {
	out, err := run(t, "validate", filepath.Join("..", "fixtures", "testdata", "valid"))
	if err != nil {
		t.Fatalf("validate: %v\n%s", err, out)
	}
	if !strings.Contains(out, "passed: 2") {
		t.Errorf("output:\n%s", out)
	}

	out, err = run(t, "validate", filepath.Join("..", "fixtures", "testdata", "invalid"))
	if err == nil || !strings.Contains(err.Error(), "1 of 1 fixtures failed") {
		t.Errorf("expected failure, got %v\n%s", err, out)
	}
}

func TestSimulateCommand(t *testing.T) {
	out, err := run(t, "simulate", sampleFixture, "0", "1", "2")
	if err != nil {
		t.Fatalf("simulate: %v\n%s", err, out)
	}
	var result struct {
		Success bool  `json:"success"`
		Visited []int `json:"visited"`
	}
	if err := json.Unmarshal([]byte(out), &result); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if !result.Success || len(result.Visited) != 3 {
		t.Errorf("result = %+v", result)
	}

	if _, err := run(t, "simulate", sampleFixture, "2", "0"); err == nil {
		t.Error("path without links should fail")
	}
	if _, err := run(t, "simulate", sampleFixture, "zero"); err == nil {
		t.Error("non-numeric node id should fail")
	}

	out, err = run(t, "simulate", sampleFixture, "--suggest", "--depth", "3")
	if err != nil {
		t.Fatalf("suggest: %v\n%s", err, out)
	}
	if !strings.Contains(out, `"paths"`) {
		t.Errorf("output:\n%s", out)
	}
}

func TestInspectCommand(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("ADVENTURE_STORE_DRIVER", "file")
	t.Setenv("ADVENTURE_DATA_DIR", dir)
	t.Setenv("ADVENTURE_MEDIA_DIR", filepath.Join(dir, "media"))

	fs, err := store.NewFileStore(dir)
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	created, err := fs.Create(context.Background(), "Harbor")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	out, err := run(t, "inspect")
	if err != nil {
		t.Fatalf("inspect: %v\n%s", err, out)
	}
	if !strings.Contains(out, `"Harbor"`) {
		t.Errorf("list output:\n%s", out)
	}

	out, err = run(t, "inspect", created.Slug)
	if err != nil {
		t.Fatalf("inspect slug: %v\n%s", err, out)
	}
	var report struct {
		Slug   string `json:"slug"`
		Report struct {
			NodeCount int `json:"node_count"`
		} `json:"report"`
	}
	if err := json.Unmarshal([]byte(out), &report); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if report.Slug != created.Slug || report.Report.NodeCount != 1 {
		t.Errorf("report = %+v", report)
	}

	if _, err := run(t, "inspect", "missing"); err == nil {
		t.Error("unknown slug should fail")
	}
}
