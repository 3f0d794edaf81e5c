package convo

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func newTestManager(t *testing.T) *ContextManager {
	t.Helper()
	cm, err := NewContextManager(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	return cm
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestProfileLifecycle(t *testing.T) {
	cm := newTestManager(t)

	profiles, err := cm.ListProfiles()
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(profiles, []string{"default"}) {
		t.Fatalf("initial profiles = %v", profiles)
	}

	if err := cm.CreateProfile("dev"); err != nil {
		t.Fatal(err)
	}
	if err := cm.CreateProfile("dev"); err == nil {
		t.Error("creating a duplicate profile must fail")
	}

	if err := cm.SwitchProfile("dev"); err != nil {
		t.Fatal(err)
	}
	if cm.CurrentProfile != "dev" {
		t.Errorf("current profile = %q", cm.CurrentProfile)
	}

	if err := cm.RenameProfile("dev", "work"); err != nil {
		t.Fatal(err)
	}
	if cm.CurrentProfile != "work" {
		t.Errorf("rename must follow the active profile, got %q", cm.CurrentProfile)
	}

	if err := cm.DeleteProfile("work"); err == nil {
		t.Error("deleting the active profile must fail")
	}
	if err := cm.SwitchProfile("default"); err != nil {
		t.Fatal(err)
	}
	if err := cm.DeleteProfile("work"); err != nil {
		t.Fatal(err)
	}

	profiles, err = cm.ListProfiles()
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(profiles, []string{"default"}) {
		t.Errorf("profiles after delete = %v", profiles)
	}
}

func TestDefaultProfileIsProtected(t *testing.T) {
	cm := newTestManager(t)

	if err := cm.DeleteProfile("default"); err == nil {
		t.Error("default profile must not be deletable")
	}
	if err := cm.RenameProfile("default", "other"); err == nil {
		t.Error("default profile must not be renamable")
	}
}

func TestProfileNameValidation(t *testing.T) {
	cm := newTestManager(t)

	for _, name := range []string{"", "-lead", "has space", "a/b", "../escape"} {
		if err := cm.CreateProfile(name); err == nil {
			t.Errorf("CreateProfile(%q) succeeded, want error", name)
		}
	}
}

func TestAddRemoveClearPaths(t *testing.T) {
	cm := newTestManager(t)
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.md"), "alpha")
	writeFile(t, filepath.Join(dir, "b.md"), "beta")

	glob := filepath.Join(dir, "*.md")
	if err := cm.AddPaths([]string{glob}, false, false); err != nil {
		t.Fatal(err)
	}
	if err := cm.AddPaths([]string{glob}, false, false); err == nil {
		t.Error("adding a duplicate path must fail")
	}

	missing := filepath.Join(dir, "nope", "*.txt")
	if err := cm.AddPaths([]string{missing}, false, false); err == nil {
		t.Error("adding a path that matches nothing must fail without --force")
	}
	if err := cm.AddPaths([]string{missing}, false, true); err != nil {
		t.Errorf("adding a path with --force failed: %v", err)
	}

	files, err := cm.ContextFiles(context.Background(), false)
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 2 {
		t.Fatalf("context files = %+v", files)
	}
	if files[0].Content != "alpha" || files[1].Content != "beta" {
		t.Errorf("context file contents = %+v", files)
	}

	if err := cm.RemovePaths([]string{glob}, false); err != nil {
		t.Fatal(err)
	}
	if err := cm.RemovePaths([]string{glob}, false); err == nil {
		t.Error("removing an absent path must fail")
	}

	if err := cm.Clear(false); err != nil {
		t.Fatal(err)
	}
	if len(cm.ProfileConfig.Paths) != 0 {
		t.Errorf("paths after clear = %v", cm.ProfileConfig.Paths)
	}
}

func TestGlobalPathsApplyAcrossProfiles(t *testing.T) {
	cm := newTestManager(t)
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "global.md"), "shared")

	if err := cm.AddPaths([]string{filepath.Join(dir, "global.md")}, true, false); err != nil {
		t.Fatal(err)
	}

	if err := cm.CreateProfile("dev"); err != nil {
		t.Fatal(err)
	}
	if err := cm.SwitchProfile("dev"); err != nil {
		t.Fatal(err)
	}

	files, err := cm.ContextFiles(context.Background(), false)
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 1 || files[0].Content != "shared" {
		t.Errorf("global context not visible from profile: %+v", files)
	}
}

func TestConfigPersistsAcrossManagers(t *testing.T) {
	root := t.TempDir()
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.md"), "alpha")

	cm, err := NewContextManager(root)
	if err != nil {
		t.Fatal(err)
	}
	if err := cm.AddPaths([]string{filepath.Join(dir, "a.md")}, false, false); err != nil {
		t.Fatal(err)
	}

	reloaded, err := NewContextManager(root)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(reloaded.ProfileConfig.Paths, cm.ProfileConfig.Paths) {
		t.Errorf("reloaded paths = %v, want %v", reloaded.ProfileConfig.Paths, cm.ProfileConfig.Paths)
	}
}

func TestDoublestarRecursiveGlob(t *testing.T) {
	cm := newTestManager(t)
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "docs", "deep", "guide.md"), "nested")

	if err := cm.AddPaths([]string{filepath.Join(dir, "**", "*.md")}, false, false); err != nil {
		t.Fatal(err)
	}

	files, err := cm.ContextFiles(context.Background(), false)
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 1 || files[0].Content != "nested" {
		t.Errorf("recursive glob missed the nested file: %+v", files)
	}
}
