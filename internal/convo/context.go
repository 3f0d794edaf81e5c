package convo

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
	"gopkg.in/yaml.v3"
)

// DefaultProfile is the profile every session starts in. It always exists
// and cannot be deleted or renamed.
const DefaultProfile = "default"

// maxContextFileSize caps how much of a single context file is read.
const maxContextFileSize = 1024 * 1024

var profileNameRe = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_-]*$`)

// ContextConfig is a named set of filesystem paths (globs allowed) whose
// contents are prepended as context to each request.
type ContextConfig struct {
	Paths []string `yaml:"paths"`
}

// ContextManager holds the active profile and both context configs. Global
// paths apply to all profiles; profile paths apply to the active one.
type ContextManager struct {
	root string

	CurrentProfile string
	GlobalConfig   ContextConfig
	ProfileConfig  ContextConfig
}

// NewContextManager loads the context configuration rooted at dir (normally
// ~/.qchat), creating the default profile if needed.
func NewContextManager(dir string) (*ContextManager, error) {
	cm := &ContextManager{root: dir, CurrentProfile: DefaultProfile}

	if err := os.MkdirAll(cm.profileDir(DefaultProfile), 0755); err != nil {
		return nil, fmt.Errorf("creating profile directory: %w", err)
	}
	if err := loadYAML(cm.globalPath(), &cm.GlobalConfig); err != nil {
		return nil, err
	}
	if err := loadYAML(cm.profilePath(DefaultProfile), &cm.ProfileConfig); err != nil {
		return nil, err
	}
	return cm, nil
}

func (cm *ContextManager) globalPath() string {
	return filepath.Join(cm.root, "global_context.yaml")
}

func (cm *ContextManager) profileDir(name string) string {
	return filepath.Join(cm.root, "profiles", name)
}

func (cm *ContextManager) profilePath(name string) string {
	return filepath.Join(cm.profileDir(name), "context.yaml")
}

// ListProfiles returns all profile names, default first.
func (cm *ContextManager) ListProfiles() ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(cm.root, "profiles"))
	if err != nil {
		return nil, fmt.Errorf("listing profiles: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() && e.Name() != DefaultProfile {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return append([]string{DefaultProfile}, names...), nil
}

// CreateProfile creates a new empty profile.
func (cm *ContextManager) CreateProfile(name string) error {
	if err := validateProfileName(name); err != nil {
		return err
	}
	dir := cm.profileDir(name)
	if _, err := os.Stat(dir); err == nil {
		return fmt.Errorf("profile '%s' already exists", name)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating profile: %w", err)
	}
	return saveYAML(cm.profilePath(name), ContextConfig{})
}

// DeleteProfile removes a profile. The default and active profiles cannot be
// deleted.
func (cm *ContextManager) DeleteProfile(name string) error {
	if name == DefaultProfile {
		return fmt.Errorf("cannot delete the default profile")
	}
	if name == cm.CurrentProfile {
		return fmt.Errorf("cannot delete the active profile; switch to another profile first")
	}
	if _, err := os.Stat(cm.profileDir(name)); err != nil {
		return fmt.Errorf("profile '%s' does not exist", name)
	}
	return os.RemoveAll(cm.profileDir(name))
}

// SwitchProfile makes the named profile active and loads its config.
func (cm *ContextManager) SwitchProfile(name string) error {
	if err := validateProfileName(name); err != nil {
		return err
	}
	if _, err := os.Stat(cm.profileDir(name)); err != nil {
		return fmt.Errorf("profile '%s' does not exist", name)
	}
	var cfg ContextConfig
	if err := loadYAML(cm.profilePath(name), &cfg); err != nil {
		return err
	}
	cm.CurrentProfile = name
	cm.ProfileConfig = cfg
	return nil
}

// RenameProfile renames a profile, following the active profile if it is the
// one renamed.
func (cm *ContextManager) RenameProfile(oldName, newName string) error {
	if oldName == DefaultProfile {
		return fmt.Errorf("cannot rename the default profile")
	}
	if err := validateProfileName(newName); err != nil {
		return err
	}
	if _, err := os.Stat(cm.profileDir(oldName)); err != nil {
		return fmt.Errorf("profile '%s' does not exist", oldName)
	}
	if _, err := os.Stat(cm.profileDir(newName)); err == nil {
		return fmt.Errorf("profile '%s' already exists", newName)
	}
	if err := os.Rename(cm.profileDir(oldName), cm.profileDir(newName)); err != nil {
		return fmt.Errorf("renaming profile: %w", err)
	}
	if cm.CurrentProfile == oldName {
		cm.CurrentProfile = newName
	}
	return nil
}

// AddPaths adds paths to the profile or global context config. Unless force
// is set, paths that match no existing files are rejected.
func (cm *ContextManager) AddPaths(paths []string, global, force bool) error {
	cfg := cm.activeConfig(global)

	for _, p := range paths {
		for _, existing := range cfg.Paths {
			if existing == p {
				return fmt.Errorf("path '%s' is already in the context", p)
			}
		}
		if !force {
			matches, err := expandPath(p)
			if err != nil {
				return fmt.Errorf("invalid path '%s': %w", p, err)
			}
			if len(matches) == 0 {
				return fmt.Errorf("path '%s' matches no files (use --force to add anyway)", p)
			}
		}
	}

	cfg.Paths = append(cfg.Paths, paths...)
	return cm.save(global)
}

// RemovePaths removes paths from the profile or global context config.
func (cm *ContextManager) RemovePaths(paths []string, global bool) error {
	cfg := cm.activeConfig(global)

	kept := cfg.Paths[:0]
	removed := 0
	for _, existing := range cfg.Paths {
		drop := false
		for _, p := range paths {
			if existing == p {
				drop = true
				break
			}
		}
		if drop {
			removed++
		} else {
			kept = append(kept, existing)
		}
	}
	if removed == 0 {
		return fmt.Errorf("none of the specified paths are in the context")
	}
	cfg.Paths = kept
	return cm.save(global)
}

// Clear removes all paths from the profile or global context config.
func (cm *ContextManager) Clear(global bool) error {
	cm.activeConfig(global).Paths = nil
	return cm.save(global)
}

func (cm *ContextManager) activeConfig(global bool) *ContextConfig {
	if global {
		return &cm.GlobalConfig
	}
	return &cm.ProfileConfig
}

func (cm *ContextManager) save(global bool) error {
	if global {
		return saveYAML(cm.globalPath(), cm.GlobalConfig)
	}
	return saveYAML(cm.profilePath(cm.CurrentProfile), cm.ProfileConfig)
}

// ContextFiles resolves the global and profile paths to their file contents,
// global paths first, each group in configured order. With forceAll set,
// unreadable files surface errors instead of being skipped.
func (cm *ContextManager) ContextFiles(ctx context.Context, forceAll bool) ([]ContextFile, error) {
	var files []ContextFile
	for _, p := range append(append([]string{}, cm.GlobalConfig.Paths...), cm.ProfileConfig.Paths...) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		matches, err := expandPath(p)
		if err != nil {
			return nil, fmt.Errorf("expanding '%s': %w", p, err)
		}
		for _, m := range matches {
			content, err := readCapped(m, maxContextFileSize)
			if err != nil {
				if forceAll {
					return nil, fmt.Errorf("reading context file '%s': %w", m, err)
				}
				continue
			}
			files = append(files, ContextFile{Path: m, Content: content})
		}
	}
	return files, nil
}

// expandPath resolves a literal path or doublestar glob to matching files.
func expandPath(p string) ([]string, error) {
	expanded := p
	if home, err := os.UserHomeDir(); err == nil && len(p) > 1 && p[0] == '~' && p[1] == '/' {
		expanded = filepath.Join(home, p[2:])
	}

	if !doublestar.ValidatePattern(expanded) {
		return nil, fmt.Errorf("invalid glob pattern")
	}

	matches, err := doublestar.FilepathGlob(expanded, doublestar.WithFilesOnly())
	if err != nil {
		return nil, err
	}
	if matches == nil {
		// A literal path with no glob metacharacters still counts if it exists.
		if info, err := os.Stat(expanded); err == nil && !info.IsDir() {
			return []string{expanded}, nil
		}
	}
	sort.Strings(matches)
	return matches, nil
}

func readCapped(path string, limit int) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	if len(data) > limit {
		data = data[:limit]
	}
	return string(data), nil
}

func validateProfileName(name string) error {
	if !profileNameRe.MatchString(name) {
		return fmt.Errorf("profile name must start with an alphanumeric character and contain only alphanumeric characters, hyphens, and underscores")
	}
	return nil
}

func loadYAML(path string, out *ContextConfig) error {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	return nil
}

func saveYAML(path string, cfg ContextConfig) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", path, err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}
