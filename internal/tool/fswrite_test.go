package tool

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func testEnv(t *testing.T) *Env {
	t.Helper()
	root := t.TempDir()
	return &Env{Cwd: root, Root: root}
}

func TestFsWriteCreate(t *testing.T) {
	env := testEnv(t)
	write := &FsWrite{Command: "create", Path: "/notes/hello.txt", FileText: "Hello, world!"}

	if err := write.Validate(context.Background(), env); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if _, err := write.Invoke(context.Background(), env, io.Discard); err != nil {
		t.Fatalf("Invoke: %v", err)
	}

	content, err := os.ReadFile(filepath.Join(env.Root, "notes", "hello.txt"))
	if err != nil {
		t.Fatal(err)
	}
	if string(content) != "Hello, world!\n" {
		t.Errorf("content = %q, want trailing newline added", content)
	}
}

func TestFsWriteStrReplace(t *testing.T) {
	env := testEnv(t)
	path := filepath.Join(env.Root, "main.go")
	if err := os.WriteFile(path, []byte("package main\n\nfunc main() {}\n"), 0644); err != nil {
		t.Fatal(err)
	}

	replace := &FsWrite{Command: "str_replace", Path: "/main.go", OldStr: "func main() {}", NewStr: "func main() { run() }"}
	if err := replace.Validate(context.Background(), env); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if _, err := replace.Invoke(context.Background(), env, io.Discard); err != nil {
		t.Fatalf("Invoke: %v", err)
	}

	content, _ := os.ReadFile(path)
	if !strings.Contains(string(content), "run()") {
		t.Errorf("content = %q", content)
	}
}

func TestFsWriteStrReplaceRequiresUniqueMatch(t *testing.T) {
	env := testEnv(t)
	path := filepath.Join(env.Root, "dup.txt")
	if err := os.WriteFile(path, []byte("x\nx\n"), 0644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name   string
		oldStr string
	}{
		{"no match", "missing"},
		{"multiple matches", "x"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			replace := &FsWrite{Command: "str_replace", Path: "/dup.txt", OldStr: tt.oldStr, NewStr: "y"}
			if _, err := replace.Invoke(context.Background(), env, io.Discard); err == nil {
				t.Error("Invoke succeeded, want error")
			}
		})
	}
}

func TestFsWriteInsertAndAppend(t *testing.T) {
	env := testEnv(t)
	path := filepath.Join(env.Root, "list.txt")
	if err := os.WriteFile(path, []byte("one\nthree\n"), 0644); err != nil {
		t.Fatal(err)
	}

	insert := &FsWrite{Command: "insert", Path: "/list.txt", NewStr: "two", InsertLine: 1}
	if err := insert.Validate(context.Background(), env); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if _, err := insert.Invoke(context.Background(), env, io.Discard); err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	content, _ := os.ReadFile(path)
	if string(content) != "one\ntwo\nthree\n" {
		t.Fatalf("after insert: %q", content)
	}

	appendCmd := &FsWrite{Command: "append", Path: "/list.txt", NewStr: "four"}
	if _, err := appendCmd.Invoke(context.Background(), env, io.Discard); err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	content, _ = os.ReadFile(path)
	if string(content) != "one\ntwo\nthree\nfour\n" {
		t.Errorf("after append: %q", content)
	}
}

func TestFsWriteValidateErrors(t *testing.T) {
	env := testEnv(t)

	tests := []struct {
		name string
		tool *FsWrite
	}{
		{"empty path", &FsWrite{Command: "create", FileText: "x"}},
		{"create without file_text", &FsWrite{Command: "create", Path: "/a"}},
		{"str_replace without old_str", &FsWrite{Command: "str_replace", Path: "/a"}},
		{"str_replace on missing file", &FsWrite{Command: "str_replace", Path: "/nope", OldStr: "x"}},
		{"insert on missing file", &FsWrite{Command: "insert", Path: "/nope", NewStr: "x", InsertLine: 1}},
		{"unknown command", &FsWrite{Command: "truncate", Path: "/a"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.tool.Validate(context.Background(), env); err == nil {
				t.Error("Validate succeeded, want error")
			}
		})
	}
}

func TestFsWriteQueueDescriptionShowsDiff(t *testing.T) {
	env := testEnv(t)
	path := filepath.Join(env.Root, "config.yaml")
	if err := os.WriteFile(path, []byte("retries: 1\n"), 0644); err != nil {
		t.Fatal(err)
	}

	replace := &FsWrite{Command: "str_replace", Path: "/config.yaml", OldStr: "retries: 1", NewStr: "retries: 3"}
	var out bytes.Buffer
	if err := replace.QueueDescription(env, &out); err != nil {
		t.Fatal(err)
	}

	desc := out.String()
	if !strings.Contains(desc, "-retries: 1") || !strings.Contains(desc, "+retries: 3") {
		t.Errorf("description is not a unified diff:\n%s", desc)
	}
}

func TestFsWriteRequiresAcceptance(t *testing.T) {
	if !(&FsWrite{Command: "create"}).RequiresAcceptance(nil) {
		t.Error("fs_write must always require acceptance")
	}
}
